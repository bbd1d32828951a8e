// Package service adjudicates crop damage claims. Filing runs a fixed
// pipeline: ownership, policy status, geofence, evidence, image upload,
// policy reservation, damage assessment and decision.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"farmshield/internal/claim/geofence"
	"farmshield/internal/claim/metrics"
	"farmshield/internal/claim/models"
	"farmshield/internal/imagestore"
	"farmshield/internal/platform/config"
	policymodels "farmshield/internal/policy/models"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
	"farmshield/pkg/requestcontext"
)

const tracerName = "farmshield/claim"

type Store interface {
	Create(ctx context.Context, c *models.Claim) error
	Adjudicate(ctx context.Context, claimID id.ClaimID, d models.Decision, a *models.Assessment, now time.Time) (*models.Claim, error)
	FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Claim, error)
	ListAll(ctx context.Context) ([]*models.Claim, error)
	Counts(ctx context.Context) (models.Counts, error)
}

// Policies is the policy lifecycle as seen from claims.
type Policies interface {
	Details(ctx context.Context, policyID id.PolicyID) (*policymodels.Details, error)
	MarkClaimed(ctx context.Context, policyID id.PolicyID, allowed []policymodels.Status) (*policymodels.Policy, error)
}

type ImageStore interface {
	Store(ctx context.Context, scope string, file imagestore.File) (string, error)
}

// Assessor estimates damage from stored evidence. It is expected to cover its
// own unavailability with a fallback estimate. A non-nil error leaves the
// claim in processing for manual follow-up.
type Assessor interface {
	Predict(ctx context.Context, imageRefs []string) (*models.Prediction, error)
}

type Notifier interface {
	Notify(ctx context.Context, farmerID id.FarmerID, title, message string, category id.NotificationCategory) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the adjudication rules.
type Config struct {
	ApprovalThreshold decimal.Decimal
	MinImages         int
	// AllowedPolicyStatuses are the statuses a claim may be filed from.
	AllowedPolicyStatuses []policymodels.Status
	Fence                 *geofence.Fence
}

// ConfigFrom maps environment configuration onto the claim rules.
func ConfigFrom(cfg config.ClaimsConfig) Config {
	allowed := make([]policymodels.Status, 0, len(cfg.AllowedPolicyStatuses))
	for _, s := range cfg.AllowedPolicyStatuses {
		allowed = append(allowed, policymodels.Status(s))
	}
	return Config{
		ApprovalThreshold:     cfg.ApprovalThreshold,
		MinImages:             cfg.MinImages,
		AllowedPolicyStatuses: allowed,
		Fence:                 geofence.FromConfig(cfg),
	}
}

type Service struct {
	store          Store
	policies       Policies
	images         ImageStore
	assessor       Assessor
	tx             tx.Runner
	cfg            Config
	notifier       Notifier
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, policies Policies, images ImageStore, assessor Assessor, txRunner tx.Runner, cfg Config, opts ...Option) *Service {
	if len(cfg.AllowedPolicyStatuses) == 0 {
		cfg.AllowedPolicyStatuses = []policymodels.Status{policymodels.StatusActive}
	}
	if cfg.Fence == nil {
		cfg.Fence = geofence.New(500, 0, config.GeofenceWarn)
	}
	s := &Service{
		store:    store,
		policies: policies,
		images:   images,
		assessor: assessor,
		tx:       txRunner,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// step runs one pipeline stage inside its own span.
func (s *Service) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "claim."+name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

func (s *Service) reject(step string, err error) error {
	if s.metrics != nil {
		s.metrics.IncrementRejection(step)
	}
	return err
}

func (s *Service) find(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	c, err := s.store.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim")
	}
	return c, nil
}

// notify hands a message to the notifier. Enqueue failures are logged with
// enough context to replay them.
func (s *Service) notify(ctx context.Context, c *models.Claim, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, c.FarmerID, title, message, id.NotificationClaim); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "claim notification failed",
			"error", err,
			"farmer_id", c.FarmerID.String(),
			"claim_id", c.ID.String(),
			"category", string(id.NotificationClaim),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		FarmerID:  attrs.ExtractString(attributes, "farmer_id"),
		Subject:   attrs.ExtractString(attributes, "policy_number"),
		Action:    event,
		Decision:  attrs.ExtractString(attributes, "status"),
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
