// Package service implements the one-time code gate used for farmer login.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"farmshield/internal/otp/metrics"
	"farmshield/internal/otp/models"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	audit "farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

type Store interface {
	Rotate(ctx context.Context, rec *models.Record) error
	FindActive(ctx context.Context, phone id.Phone) (*models.Record, error)
	MarkUsed(ctx context.Context, recordID id.OTPID) error
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// CodeSender delivers a code to a phone. delivered=false with a nil error
// means the provider accepted the call but did not deliver.
type CodeSender interface {
	Send(ctx context.Context, phone id.Phone, code string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// IssueResult is returned to the caller after a code is rotated in.
// DebugCode is only set when the gate runs with a fixed code.
type IssueResult struct {
	Phone     id.Phone
	ExpiresAt time.Time
	Delivered bool
	DebugCode string
}

type Service struct {
	store          Store
	sender         CodeSender
	ttl            time.Duration
	fixedCode      string
	issueLimit     rate.Limit
	issueBurst     int
	limiters       sync.Map // id.Phone -> *rate.Limiter
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
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

// WithFixedCode pins every issued code. Demo deployments only.
func WithFixedCode(code string) Option {
	return func(s *Service) {
		s.fixedCode = code
	}
}

// WithIssueLimit caps how many codes one phone may request per minute.
func WithIssueLimit(perMinute, burst int) Option {
	return func(s *Service) {
		if perMinute > 0 {
			s.issueLimit = rate.Every(time.Minute / time.Duration(perMinute))
			s.issueBurst = max(burst, 1)
		}
	}
}

func New(store Store, sender CodeSender, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		store:      store,
		sender:     sender,
		ttl:        ttl,
		issueLimit: rate.Inf,
		issueBurst: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue invalidates every unused code for the phone, stores a fresh one and
// hands it to the sender. A delivery failure is reported, not returned.
func (s *Service) Issue(ctx context.Context, rawPhone string) (*IssueResult, error) {
	phone, err := id.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if !s.limiterFor(phone).AllowN(now, 1) {
		if s.metrics != nil {
			s.metrics.IncrementThrottled()
		}
		s.logAudit(ctx, string(audit.EventOTPRateLimited), "phone", phone.Masked())
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many codes requested, try again shortly")
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	rec, err := models.NewRecord(id.OTPID(uuid.New()), phone, code, now, s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build otp record")
	}
	if err := s.store.Rotate(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "another code was issued concurrently, retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store code")
	}

	delivered, sendErr := s.sender.Send(ctx, phone, code)
	if sendErr != nil || !delivered {
		delivered = false
		if s.metrics != nil {
			s.metrics.IncrementUndelivered()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "otp delivery failed",
				"phone", phone.Masked(),
				"otp_id", rec.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", sendErr,
			)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	s.logAudit(ctx, string(audit.EventOTPIssued), "phone", phone.Masked(), "otp_id", rec.ID.String())

	result := &IssueResult{Phone: phone, ExpiresAt: rec.ExpiresAt, Delivered: delivered}
	if s.fixedCode != "" {
		result.DebugCode = code
	}
	return result, nil
}

// Verify consumes the active code for the phone. A wrong code leaves the
// record in place so the farmer can retry until it expires.
func (s *Service) Verify(ctx context.Context, rawPhone, code string) (*models.Record, error) {
	phone, err := id.NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.FindActive(ctx, phone)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeVerify("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "no active code for this phone")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load code")
	}
	if rec.IsExpired(requestcontext.Now(ctx)) {
		s.observeVerify("expired")
		return nil, dErrors.New(dErrors.CodeExpired, "code has expired")
	}
	if !rec.Matches(code) {
		s.observeVerify("mismatch")
		return nil, dErrors.New(dErrors.CodeOTPMismatch, "code does not match")
	}
	if err := s.store.MarkUsed(ctx, rec.ID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			s.observeVerify("already_used")
			return nil, dErrors.New(dErrors.CodeAlreadyUsed, "code was already used")
		case errors.Is(err, sentinel.ErrNotFound):
			s.observeVerify("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "no active code for this phone")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume code")
	}
	rec.Used = true
	s.observeVerify("ok")
	s.logAudit(ctx, string(audit.EventOTPVerified), "phone", phone.Masked(), "otp_id", rec.ID.String())
	return rec, nil
}

// PurgeExpired deletes expired records and drops idle throttles.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	n, err := s.store.PurgeExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge codes")
	}
	s.limiters.Range(func(key, value any) bool {
		if l := value.(*rate.Limiter); l.TokensAt(now) >= float64(s.issueBurst) {
			s.limiters.Delete(key)
		}
		return true
	})
	return n, nil
}

// RunPurger calls PurgeExpired every interval until ctx is done.
func (s *Service) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "otp purge failed", "error", err)
			} else if n > 0 && s.logger != nil {
				s.logger.DebugContext(ctx, "purged expired otp records", "count", n)
			}
		}
	}
}

func (s *Service) limiterFor(phone id.Phone) *rate.Limiter {
	if l, ok := s.limiters.Load(phone); ok {
		return l.(*rate.Limiter)
	}
	l, _ := s.limiters.LoadOrStore(phone, rate.NewLimiter(s.issueLimit, s.issueBurst))
	return l.(*rate.Limiter)
}

func (s *Service) generateCode() (string, error) {
	if s.fixedCode != "" {
		return s.fixedCode, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", models.CodeLength, n.Int64()), nil
}

func (s *Service) observeVerify(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(outcome)
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
		Subject:   attrs.ExtractString(attributes, "phone"),
		Action:    event,
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
