package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	adminadapters "farmshield/internal/admin/adapters"
	adminhandler "farmshield/internal/admin/handler"
	adminservice "farmshield/internal/admin/service"
	"farmshield/internal/claim/assessor"
	claimhandler "farmshield/internal/claim/handler"
	claimmetrics "farmshield/internal/claim/metrics"
	claimservice "farmshield/internal/claim/service"
	identityhandler "farmshield/internal/identity/handler"
	identitymetrics "farmshield/internal/identity/metrics"
	identityservice "farmshield/internal/identity/service"
	"farmshield/internal/identity/token"
	"farmshield/internal/imagestore"
	notificationhandler "farmshield/internal/notification/handler"
	notificationmetrics "farmshield/internal/notification/metrics"
	notificationservice "farmshield/internal/notification/service"
	otpmetrics "farmshield/internal/otp/metrics"
	otpservice "farmshield/internal/otp/service"
	"farmshield/internal/platform/config"
	"farmshield/internal/platform/kafka"
	"farmshield/internal/policy/expiry"
	policyhandler "farmshield/internal/policy/handler"
	policymetrics "farmshield/internal/policy/metrics"
	policymodels "farmshield/internal/policy/models"
	policyservice "farmshield/internal/policy/service"
	ratelimitmetrics "farmshield/internal/ratelimit/metrics"
	ratelimitmw "farmshield/internal/ratelimit/middleware"
	ratelimitmodels "farmshield/internal/ratelimit/models"
	"farmshield/internal/ratelimit/store/bucket"
	sensorhandler "farmshield/internal/sensor/handler"
	sensormetrics "farmshield/internal/sensor/metrics"
	sensorservice "farmshield/internal/sensor/service"
	"farmshield/internal/sms"
	httptransport "farmshield/internal/transport/http"
	verificationhandler "farmshield/internal/verification/handler"
	verificationmetrics "farmshield/internal/verification/metrics"
	verificationservice "farmshield/internal/verification/service"
	"farmshield/pkg/platform/audit/publisher"
	auditworker "farmshield/pkg/platform/audit/worker"
	"farmshield/pkg/platform/circuit"
	"farmshield/pkg/platform/middleware/auth"
)

const (
	tokenAudience   = "farmshield-api"
	auditBufferSize = 1024
)

// smsSender is both the OTP code channel and the notification text channel.
type smsSender interface {
	otpservice.CodeSender
	notificationservice.SMSSender
}

type app struct {
	modules   []httptransport.Module
	workers   []func(ctx context.Context) error
	producer  *kafka.Producer
	rateLimit func(http.Handler) http.Handler
	closers   []func()
}

// close releases resources in reverse construction order so queued
// notifications and audit events drain before their backends go away.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, st *stores, logger *slog.Logger) (*app, error) {
	a := &app{}

	auditPublisher := publisher.NewPublisher(st.audit,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(logger),
	)
	a.closers = append(a.closers, auditPublisher.Close)

	if len(cfg.Kafka.Brokers) > 0 && st.outbox != nil {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			producer.Close()
			return nil, err
		}
		a.producer = producer
		a.closers = append(a.closers, producer.Close)
		relay := auditworker.NewWorker(st.outbox, producer, cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatch, logger)
		a.workers = append(a.workers, relay.Run)
	}

	images, err := imagestore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("image store: %w", err)
	}
	if c, ok := images.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	var sender smsSender
	if cfg.OTP.SenderMode == "sms" {
		sender = sms.NewFast2SMS(cfg.SMS, cfg.OTP.TTL, logger)
	} else {
		sender = sms.NewLogSender(logger, cfg.OTP.TTL)
	}

	// Identity and OTP.
	otpOpts := []otpservice.Option{
		otpservice.WithLogger(logger),
		otpservice.WithMetrics(otpmetrics.New()),
		otpservice.WithAuditPublisher(auditPublisher),
		otpservice.WithIssueLimit(int(cfg.OTP.IssuePerMinute), cfg.OTP.IssueBurst),
	}
	if cfg.OTP.FixedCode != "" {
		logger.WarnContext(ctx, "OTP fixed code enabled; do not use outside demo deployments")
		otpOpts = append(otpOpts, otpservice.WithFixedCode(cfg.OTP.FixedCode))
	}
	otpSvc := otpservice.New(st.otp, sender, cfg.OTP.TTL, otpOpts...)
	a.workers = append(a.workers, func(ctx context.Context) error {
		otpSvc.RunPurger(ctx, cfg.OTP.PurgeInterval)
		return nil
	})

	jwt := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, tokenAudience)
	identitySvc := identityservice.New(st.farmers, st.officials, st.sessions, st.trl, jwt, otpSvc,
		identityservice.Config{
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
			RegistrationTTL: cfg.Auth.RegistrationTTL,
			OTPTTL:          cfg.OTP.TTL,
			MaxImageBytes:   cfg.Claims.MaxImageBytes,
		},
		identityservice.WithLogger(logger),
		identityservice.WithMetrics(identitymetrics.New()),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithImageStore(images),
	)
	if cfg.Auth.SeedOfficialsFile != "" {
		seeds, err := identityservice.LoadSeedFile(cfg.Auth.SeedOfficialsFile)
		if err != nil {
			return nil, fmt.Errorf("seed officials: %w", err)
		}
		n, err := identitySvc.SeedOfficials(ctx, seeds)
		if err != nil {
			return nil, fmt.Errorf("seed officials: %w", err)
		}
		logger.InfoContext(ctx, "officials seeded", "count", n)
	}
	requireAuth := auth.RequireAuth(jwt, identitySvc, logger)

	// Notifications are dispatched asynchronously to every lifecycle service.
	notificationMetrics := notificationmetrics.New()
	notificationSvc := notificationservice.New(st.notifications,
		notificationservice.WithLogger(logger),
		notificationservice.WithMetrics(notificationMetrics),
		notificationservice.WithSMS(sender, identitySvc),
	)
	dispatcher := notificationservice.NewDispatcher(notificationSvc, cfg.Notification.QueueSize, cfg.Notification.Workers,
		notificationservice.WithDispatcherLogger(logger),
		notificationservice.WithDispatcherMetrics(notificationMetrics),
	)
	a.closers = append(a.closers, dispatcher.Close)

	sensorSvc := sensorservice.New(st.sensors,
		sensorservice.WithLogger(logger),
		sensorservice.WithMetrics(sensormetrics.New()),
		sensorservice.WithAuditPublisher(auditPublisher),
	)

	// Policy lifecycle.
	rates := config.DefaultCropRates()
	if cfg.Policy.CropRatesFile != "" {
		if rates, err = config.LoadCropRates(cfg.Policy.CropRatesFile); err != nil {
			return nil, fmt.Errorf("crop rates: %w", err)
		}
	}
	pricer, err := policymodels.NewPricer(rates, cfg.Policy.PremiumMultiplier, cfg.Policy.CoverageDivisor)
	if err != nil {
		return nil, fmt.Errorf("crop rates: %w", err)
	}
	policySvc := policyservice.New(st.lands, st.policies, st.verifications, identitySvc, pricer, st.txRunner,
		policyservice.Config{
			ValidityMonths: cfg.Policy.ValidityMonths,
			Currency:       cfg.Policy.Currency,
			PaymentKeyID:   cfg.Policy.PaymentKeyID,
		},
		policyservice.WithLogger(logger),
		policyservice.WithMetrics(policymetrics.New()),
		policyservice.WithAuditPublisher(auditPublisher),
		policyservice.WithNotifier(dispatcher),
		policyservice.WithSensorLookup(sensorSvc),
	)
	a.workers = append(a.workers, expiry.NewWorker(policySvc, cfg.Policy.ExpirySweep, logger).Run)

	verificationSvc := verificationservice.New(st.verifications, policySvc, sensorSvc, identitySvc, identitySvc, st.txRunner,
		verificationservice.WithLogger(logger),
		verificationservice.WithMetrics(verificationmetrics.New()),
		verificationservice.WithAuditPublisher(auditPublisher),
		verificationservice.WithNotifier(dispatcher),
	)

	// Claims.
	claimMetrics := claimmetrics.New()
	breaker := circuit.New("assessor",
		circuit.WithFailureThreshold(cfg.Assessor.FailureThreshold),
		circuit.WithCooldown(cfg.Assessor.Cooldown),
	)
	damageAssessor := assessor.New(
		assessor.NewHTTPClient(cfg.Assessor.URL, &http.Client{Timeout: cfg.Assessor.Timeout}),
		assessor.NewFallback(cfg.Assessor.FallbackSeed),
		cfg.Assessor.Timeout,
		assessor.WithLogger(logger),
		assessor.WithMetrics(claimMetrics),
		assessor.WithBreaker(breaker),
	)
	claimSvc := claimservice.New(st.claims, policySvc, images, damageAssessor, st.txRunner,
		claimservice.ConfigFrom(cfg.Claims),
		claimservice.WithLogger(logger),
		claimservice.WithMetrics(claimMetrics),
		claimservice.WithAuditPublisher(auditPublisher),
		claimservice.WithNotifier(dispatcher),
		claimservice.WithTracer(otel.Tracer("farmshield/claim")),
	)

	adminSvc := adminservice.New(
		adminadapters.NewFarmerStoreAdapter(st.farmers),
		adminadapters.NewClaimSourceAdapter(claimSvc),
		policySvc,
		sensorSvc,
		adminservice.WithLogger(logger),
	)

	a.modules = []httptransport.Module{
		identityhandler.New(identitySvc, logger, requireAuth, cfg.Claims.MaxImageBytes),
		policyhandler.New(policySvc, logger, requireAuth),
		verificationhandler.New(verificationSvc, logger, requireAuth),
		sensorhandler.New(sensorSvc, logger, requireAuth, cfg.Sensor.IngestKey),
		claimhandler.New(claimSvc, logger, requireAuth, cfg.Claims.MaxImageBytes),
		notificationhandler.New(notificationSvc, logger, requireAuth),
		adminhandler.New(adminSvc, logger, requireAuth),
	}

	limiter := ratelimitmw.New(st.buckets, rateLimits(cfg.RateLimit), logger,
		ratelimitmw.WithMetrics(ratelimitmetrics.New()),
		ratelimitmw.WithDisabled(!cfg.RateLimit.Enabled),
	)
	a.rateLimit = limiter.RateLimit
	if st.sweeper != nil && cfg.RateLimit.Enabled {
		a.workers = append(a.workers, func(ctx context.Context) error {
			sweepBuckets(ctx, st.sweeper, cfg.RateLimit.SweepInterval, logger)
			return nil
		})
	}
	return a, nil
}

func rateLimits(cfg config.RateLimitConfig) map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit {
	perMinute := func(n int) ratelimitmodels.Limit {
		return ratelimitmodels.Limit{Requests: n, Window: time.Minute}
	}
	return map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit{
		ratelimitmodels.ClassAuth:   perMinute(cfg.AuthPerMinute),
		ratelimitmodels.ClassUpload: perMinute(cfg.UploadPerMinute),
		ratelimitmodels.ClassWrite:  perMinute(cfg.WritePerMinute),
		ratelimitmodels.ClassRead:   perMinute(cfg.ReadPerMinute),
	}
}

func sweepBuckets(ctx context.Context, store *bucket.InMemoryBucketStore, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(ctx); n > 0 {
				logger.DebugContext(ctx, "rate limit buckets swept", "removed", n)
			}
		}
	}
}
