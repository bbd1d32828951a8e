// Package service implements farmer and official sign-in, session rotation and
// the farmer profile.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"farmshield/internal/identity/metrics"
	"farmshield/internal/identity/models"
	"farmshield/internal/imagestore"
	otpmodels "farmshield/internal/otp/models"
	otpservice "farmshield/internal/otp/service"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/requestcontext"
)

type FarmerStore interface {
	Create(ctx context.Context, f *models.Farmer) error
	FindByID(ctx context.Context, farmerID id.FarmerID) (*models.Farmer, error)
	FindByPhone(ctx context.Context, phone id.Phone) (*models.Farmer, error)
	Update(ctx context.Context, f *models.Farmer) error
}

type OfficialStore interface {
	Upsert(ctx context.Context, o *models.Official) error
	FindByID(ctx context.Context, officialID id.OfficialID) (*models.Official, error)
	FindByGovernmentID(ctx context.Context, governmentID string) (*models.Official, error)
}

type SessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error)
	Rotate(ctx context.Context, sessionID id.SessionID, oldHash, newHash, accessJTI string) error
	Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error
}

type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenIssuer mints access tokens and registration tickets.
type TokenIssuer interface {
	GenerateAccessToken(caller requestcontext.Caller, expiresIn time.Duration) (string, string, error)
	GenerateRegistrationToken(phone id.Phone, expiresIn time.Duration) (string, error)
	ValidateRegistrationToken(token string) (id.Phone, error)
}

// OTPGate is the one-time code gate farmers sign in through.
type OTPGate interface {
	Issue(ctx context.Context, phone string) (*otpservice.IssueResult, error)
	Verify(ctx context.Context, phone, code string) (*otpmodels.Record, error)
}

type ImageStore interface {
	Store(ctx context.Context, scope string, file imagestore.File) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config holds token lifetimes.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RegistrationTTL time.Duration
	OTPTTL          time.Duration
	MaxImageBytes   int64
}

type Service struct {
	farmers        FarmerStore
	officials      OfficialStore
	sessions       SessionStore
	trl            TokenRevocationList
	tokens         TokenIssuer
	otp            OTPGate
	images         ImageStore
	cfg            Config
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
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

func WithImageStore(images ImageStore) Option {
	return func(s *Service) {
		s.images = images
	}
}

func New(
	farmers FarmerStore,
	officials OfficialStore,
	sessions SessionStore,
	trl TokenRevocationList,
	tokens TokenIssuer,
	otp OTPGate,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		farmers:   farmers,
		officials: officials,
		sessions:  sessions,
		trl:       trl,
		tokens:    tokens,
		otp:       otp,
		cfg:       cfg,
		logger:    slog.Default(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTokenRevoked backs the auth middleware's revocation check.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.trl.IsRevoked(ctx, jti)
}

func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	if s.metrics != nil {
		s.metrics.IncrementAuthFailure(reason)
	}
	s.logAudit(ctx, string(audit.EventAuthFailed), append(attributes, "reason", reason)...)
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
		ActorID:   attrs.ExtractString(attributes, "official_id"),
		Subject:   attrs.ExtractString(attributes, "phone"),
		Action:    event,
		Reason:    attrs.ExtractString(attributes, "reason"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
