package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"farmshield/internal/otp/store"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	audit "farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/audit/publisher"
	auditmemory "farmshield/pkg/platform/audit/store/memory"
	"farmshield/pkg/requestcontext"
)

type recordingSender struct {
	mu    sync.Mutex
	codes map[id.Phone][]string
	err   error
}

func (r *recordingSender) Send(_ context.Context, phone id.Phone, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.codes == nil {
		r.codes = make(map[id.Phone][]string)
	}
	r.codes[phone] = append(r.codes[phone], code)
	return true, nil
}

func (r *recordingSender) last(phone id.Phone) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := r.codes[phone]
	return codes[len(codes)-1]
}

type OTPServiceSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	sender *recordingSender
	audit  *auditmemory.InMemoryStore
	svc    *Service
	now    time.Time
}

func TestOTPServiceSuite(t *testing.T) {
	suite.Run(t, new(OTPServiceSuite))
}

func (s *OTPServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.sender = &recordingSender{}
	s.audit = auditmemory.NewInMemoryStore()
	s.now = time.Date(2026, 6, 10, 7, 30, 0, 0, time.UTC)
	s.svc = New(s.store, s.sender, 5*time.Minute,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
}

func (s *OTPServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *OTPServiceSuite) TestIssueNormalizesPhoneAndSends() {
	res, err := s.svc.Issue(s.at(s.now), "+91 98765-43210")
	s.Require().NoError(err)
	s.Equal(id.Phone("9876543210"), res.Phone)
	s.True(res.Delivered)
	s.Equal(s.now.Add(5*time.Minute), res.ExpiresAt)
	s.Empty(res.DebugCode, "random codes are never echoed")
	s.Len(s.sender.last("9876543210"), 6)

	events, err := s.audit.ListRecent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventOTPIssued), events[0].Action)
	s.Equal("******3210", events[0].Subject)
}

func (s *OTPServiceSuite) TestIssueRejectsMalformedPhone() {
	_, err := s.svc.Issue(s.at(s.now), "12345")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *OTPServiceSuite) TestVerifySucceedsExactlyOnce() {
	ctx := s.at(s.now)
	_, err := s.svc.Issue(ctx, "9876543210")
	s.Require().NoError(err)
	code := s.sender.last("9876543210")

	rec, err := s.svc.Verify(ctx, "9876543210", code)
	s.Require().NoError(err)
	s.True(rec.Used)

	_, err = s.svc.Verify(ctx, "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "second verify finds no active code")
}

func (s *OTPServiceSuite) TestReissueInvalidatesPreviousCode() {
	ctx := s.at(s.now)
	_, err := s.svc.Issue(ctx, "9876543210")
	s.Require().NoError(err)
	first := s.sender.last("9876543210")

	_, err = s.svc.Issue(ctx, "9876543210")
	s.Require().NoError(err)
	second := s.sender.last("9876543210")
	s.Equal(1, s.store.CountUnused("9876543210"))

	if first != second {
		_, err = s.svc.Verify(ctx, "9876543210", first)
		s.True(dErrors.HasCode(err, dErrors.CodeOTPMismatch))
	}
	_, err = s.svc.Verify(ctx, "9876543210", second)
	s.NoError(err)
}

func (s *OTPServiceSuite) TestMismatchDoesNotConsume() {
	svc := New(s.store, s.sender, 5*time.Minute, WithFixedCode("123456"))
	ctx := s.at(s.now)
	res, err := svc.Issue(ctx, "9876543210")
	s.Require().NoError(err)
	s.Equal("123456", res.DebugCode)

	_, err = svc.Verify(ctx, "9876543210", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeOTPMismatch))

	_, err = svc.Verify(ctx, "9876543210", "123456")
	s.NoError(err)
}

func (s *OTPServiceSuite) TestExpiredCode() {
	_, err := s.svc.Issue(s.at(s.now), "9876543210")
	s.Require().NoError(err)
	code := s.sender.last("9876543210")

	_, err = s.svc.Verify(s.at(s.now.Add(5*time.Minute)), "9876543210", code)
	s.Require().NoError(err, "valid up to and including the expiry instant")

	_, err = s.svc.Issue(s.at(s.now), "9876543210")
	s.Require().NoError(err)
	code = s.sender.last("9876543210")
	_, err = s.svc.Verify(s.at(s.now.Add(5*time.Minute+time.Second)), "9876543210", code)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *OTPServiceSuite) TestDeliveryFailureStillIssues() {
	s.sender.err = errors.New("provider down")
	res, err := s.svc.Issue(s.at(s.now), "9876543210")
	s.Require().NoError(err)
	s.False(res.Delivered)
	s.Equal(1, s.store.CountUnused("9876543210"))
}

func (s *OTPServiceSuite) TestIssueThrottlePerPhone() {
	svc := New(s.store, s.sender, 5*time.Minute, WithIssueLimit(2, 2))
	ctx := s.at(s.now)

	for range 2 {
		_, err := svc.Issue(ctx, "9876543210")
		s.Require().NoError(err)
	}
	_, err := svc.Issue(ctx, "9876543210")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	_, err = svc.Issue(ctx, "9123456789")
	s.NoError(err, "other phones keep their own budget")

	_, err = svc.Issue(s.at(s.now.Add(time.Minute)), "9876543210")
	s.NoError(err, "budget refills over time")
}

func (s *OTPServiceSuite) TestConcurrentVerifyConsumesOnce() {
	svc := New(s.store, s.sender, 5*time.Minute, WithFixedCode("246810"))
	ctx := s.at(s.now)
	_, err := svc.Issue(ctx, "9876543210")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Verify(ctx, "9876543210", "246810"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, ok)
}

func (s *OTPServiceSuite) TestPurgeExpired() {
	_, err := s.svc.Issue(s.at(s.now), "9876543210")
	s.Require().NoError(err)

	n, err := s.svc.PurgeExpired(s.at(s.now.Add(time.Hour)))
	s.Require().NoError(err)
	s.Equal(1, n)
}
