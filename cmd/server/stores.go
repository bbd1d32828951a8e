package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	claimservice "farmshield/internal/claim/service"
	claimstore "farmshield/internal/claim/store"
	identityservice "farmshield/internal/identity/service"
	farmerstore "farmshield/internal/identity/store/farmer"
	officialstore "farmshield/internal/identity/store/official"
	revocationstore "farmshield/internal/identity/store/revocation"
	sessionstore "farmshield/internal/identity/store/session"
	notificationservice "farmshield/internal/notification/service"
	notificationstore "farmshield/internal/notification/store"
	otpservice "farmshield/internal/otp/service"
	otpstore "farmshield/internal/otp/store"
	"farmshield/internal/platform/config"
	"farmshield/internal/platform/postgres"
	"farmshield/internal/platform/redis"
	policyservice "farmshield/internal/policy/service"
	landstore "farmshield/internal/policy/store/land"
	policystore "farmshield/internal/policy/store/policy"
	ratelimitmw "farmshield/internal/ratelimit/middleware"
	"farmshield/internal/ratelimit/store/bucket"
	sensorservice "farmshield/internal/sensor/service"
	sensorstore "farmshield/internal/sensor/store"
	verificationservice "farmshield/internal/verification/service"
	verificationstore "farmshield/internal/verification/store"
	"farmshield/pkg/platform/audit"
	auditmemory "farmshield/pkg/platform/audit/store/memory"
	auditpostgres "farmshield/pkg/platform/audit/store/postgres"
	"farmshield/pkg/platform/tx"
)

type farmerStore interface {
	identityservice.FarmerStore
	Count(ctx context.Context) (int, error)
}

// verificationStore is read by the verification workflow and written by the
// policy lifecycle when payment is confirmed.
type verificationStore interface {
	verificationservice.Store
	policyservice.VerificationStore
}

type stores struct {
	farmers       farmerStore
	officials     identityservice.OfficialStore
	sessions      identityservice.SessionStore
	trl           identityservice.TokenRevocationList
	otp           otpservice.Store
	lands         policyservice.LandStore
	policies      policyservice.PolicyStore
	verifications verificationStore
	sensors       sensorservice.Store
	claims        claimservice.Store
	notifications notificationservice.Store
	audit         audit.Store
	// outbox is set only on Postgres, where audit events are relayed to Kafka.
	outbox   *auditpostgres.Store
	txRunner tx.Runner
	buckets  ratelimitmw.BucketStore
	// sweeper is set when rate limit windows live in process memory.
	sweeper *bucket.InMemoryBucketStore
}

// openStores picks Postgres when DATABASE_URL is set and in-memory stores
// otherwise. Redis, when configured, backs the token revocation list and the
// rate limit windows either way.
func openStores(ctx context.Context, cfg *config.Config, db *sql.DB, rc *redis.Client, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	if db == nil {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		s.farmers = farmerstore.NewInMemory()
		s.officials = officialstore.NewInMemory()
		s.sessions = sessionstore.NewInMemory()
		s.otp = otpstore.NewInMemory()
		s.lands = landstore.NewInMemory()
		s.policies = policystore.NewInMemory()
		s.verifications = verificationstore.NewInMemory()
		s.sensors = sensorstore.NewInMemory()
		s.claims = claimstore.NewInMemory()
		s.notifications = notificationstore.NewInMemory()
		s.audit = auditmemory.NewInMemoryStore()
		s.txRunner = tx.NewShardedRunner(cfg.Database.TxTimeout)
	} else {
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s.farmers = farmerstore.NewPostgres(db)
		s.officials = officialstore.NewPostgres(db)
		s.sessions = sessionstore.NewPostgres(db)
		s.otp = otpstore.NewPostgres(db)
		s.lands = landstore.NewPostgres(db)
		s.policies = policystore.NewPostgres(db)
		s.verifications = verificationstore.NewPostgres(db)
		s.sensors = sensorstore.NewPostgres(db)
		s.claims = claimstore.NewPostgres(db)
		s.notifications = notificationstore.NewPostgres(db)
		s.outbox = auditpostgres.New(db)
		s.audit = s.outbox
		s.txRunner = tx.NewPostgresRunner(db, cfg.Database.TxTimeout)
	}

	if rc != nil {
		s.trl = revocationstore.NewRedisTRL(rc.Client)
		s.buckets = bucket.NewRedisBucketStore(rc.Client)
	} else {
		s.trl = revocationstore.NewInMemoryTRL()
		s.sweeper = bucket.NewInMemoryBucketStore()
		s.buckets = s.sweeper
	}
	return s, nil
}
