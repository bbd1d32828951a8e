// Package service runs the policy lifecycle: application and pricing,
// payment confirmation, activation after field verification, claim
// reservation and scheduled expiry.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	identitymodels "farmshield/internal/identity/models"
	"farmshield/internal/policy/metrics"
	"farmshield/internal/policy/models"
	sensormodels "farmshield/internal/sensor/models"
	vmodels "farmshield/internal/verification/models"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/tx"
	"farmshield/pkg/requestcontext"
)

// maxNumberAttempts bounds policy-number regeneration on collision.
const maxNumberAttempts = 5

type LandStore interface {
	Create(ctx context.Context, l *models.Land) error
	FindByID(ctx context.Context, landID id.LandID) (*models.Land, error)
	SetSensor(ctx context.Context, landID id.LandID, sensorID id.SensorID) error
}

type PolicyStore interface {
	Create(ctx context.Context, p *models.Policy) error
	FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	FindByOrderRef(ctx context.Context, orderRef string) (*models.Policy, error)
	ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Policy, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Policy, error)
	MarkPaid(ctx context.Context, policyID id.PolicyID, paymentRef string, now time.Time) (*models.Policy, error)
	Transition(ctx context.Context, policyID id.PolicyID, from []models.Status, to models.Status, now time.Time) (*models.Policy, error)
	ExpireDue(ctx context.Context, now time.Time) ([]*models.Policy, error)
	Summary(ctx context.Context) (models.Summary, error)
}

// VerificationStore is the slice of the verification store the lifecycle
// writes through: confirming payment opens the verification.
type VerificationStore interface {
	Create(ctx context.Context, v *vmodels.Verification) error
	FindByPolicy(ctx context.Context, policyID id.PolicyID) (*vmodels.Verification, error)
}

// FarmerLookup resolves the applying farmer.
type FarmerLookup interface {
	GetProfile(ctx context.Context, farmerID id.FarmerID) (*identitymodels.Farmer, error)
}

type SensorLookup interface {
	GetByID(ctx context.Context, sensorID id.SensorID) (*sensormodels.Sensor, error)
}

type Notifier interface {
	Notify(ctx context.Context, farmerID id.FarmerID, title, message string, category id.NotificationCategory) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the lifecycle settings that are not pricing.
type Config struct {
	ValidityMonths int
	Currency       string
	PaymentKeyID   string
}

type Service struct {
	lands          LandStore
	policies       PolicyStore
	verifications  VerificationStore
	farmers        FarmerLookup
	pricer         *models.Pricer
	tx             tx.Runner
	cfg            Config
	sensors        SensorLookup
	notifier       Notifier
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	newNumber      func(now time.Time) string
	newID          func() uuid.UUID
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

// WithSensorLookup lets policy views show the bound sensor's code.
func WithSensorLookup(sensors SensorLookup) Option {
	return func(s *Service) {
		s.sensors = sensors
	}
}

// WithNumberGenerator replaces the policy-number generator.
func WithNumberGenerator(gen func(now time.Time) string) Option {
	return func(s *Service) {
		s.newNumber = gen
	}
}

func New(
	lands LandStore,
	policies PolicyStore,
	verifications VerificationStore,
	farmers FarmerLookup,
	pricer *models.Pricer,
	txRunner tx.Runner,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.ValidityMonths == 0 {
		cfg.ValidityMonths = 6
	}
	s := &Service{
		lands:         lands,
		policies:      policies,
		verifications: verifications,
		farmers:       farmers,
		pricer:        pricer,
		tx:            txRunner,
		cfg:           cfg,
		logger:        slog.Default(),
		newNumber:     GeneratePolicyNumber,
		newID:         uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GeneratePolicyNumber builds "CI-<millis tail>-<4 random digits>".
// Numbers are not guaranteed unique; the store rejects collisions.
func GeneratePolicyNumber(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > 5 {
		millis = millis[5:]
	}
	return fmt.Sprintf("CI-%s-%04d", millis, rand.IntN(10000))
}

func newOrderRef() string {
	return "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func txKey(policyID id.PolicyID) string {
	return "policy:" + policyID.String()
}

// notify hands a message to the notifier. Enqueue failures are logged with
// enough context to replay them.
func (s *Service) notify(ctx context.Context, p *models.Policy, title, message string, category id.NotificationCategory) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, p.FarmerID, title, message, category); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "policy notification failed",
			"error", err,
			"farmer_id", p.FarmerID.String(),
			"policy_id", p.ID.String(),
			"category", string(category),
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
	actorID := ""
	if officialID, ok := requestcontext.Principal(ctx).OfficialID(); ok {
		actorID = officialID.String()
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		FarmerID:  attrs.ExtractString(attributes, "farmer_id"),
		ActorID:   actorID,
		Subject:   attrs.ExtractString(attributes, "policy_number"),
		Action:    event,
		Decision:  attrs.ExtractString(attributes, "status"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
