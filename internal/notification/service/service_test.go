package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	identitymodels "farmshield/internal/identity/models"
	"farmshield/internal/notification/store"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/requestcontext"
)

type stubFarmers map[id.FarmerID]*identitymodels.Farmer

func (f stubFarmers) GetProfile(_ context.Context, farmerID id.FarmerID) (*identitymodels.Farmer, error) {
	farmer, ok := f[farmerID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "farmer not found")
	}
	return farmer, nil
}

type recordingSMS struct {
	mu   sync.Mutex
	sent map[id.Phone][]string
	fail bool
}

func (r *recordingSMS) SendMessage(_ context.Context, phone id.Phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("gateway down")
	}
	if r.sent == nil {
		r.sent = make(map[id.Phone][]string)
	}
	r.sent[phone] = append(r.sent[phone], message)
	return nil
}

type NotificationServiceSuite struct {
	suite.Suite
	svc    *Service
	sms    *recordingSMS
	farmer id.FarmerID
	ctx    context.Context
}

func TestNotificationServiceSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceSuite))
}

func (s *NotificationServiceSuite) SetupTest() {
	s.farmer = id.FarmerID(uuid.New())
	s.sms = &recordingSMS{}
	farmers := stubFarmers{s.farmer: {ID: s.farmer, Phone: "9876543210", Name: "Ramesh"}}
	s.svc = New(store.NewInMemory(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSMS(s.sms, farmers),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
}

// notify delivers synchronously through a dispatcher closed before use.
func (s *NotificationServiceSuite) notify(title, message string, category id.NotificationCategory, at time.Time) {
	d := NewDispatcher(s.svc, 1, 1)
	d.Close()
	s.Require().NoError(d.Notify(requestcontext.WithTime(s.ctx, at), s.farmer, title, message, category))
}

func (s *NotificationServiceSuite) TestDeliver_SMSOnlyForClaimAndPayment() {
	base := requestcontext.Now(s.ctx)
	s.notify("Claim Approved! ✅", "Your claim is approved! Damage: 80.0%, Amount: ₹40000.00", id.NotificationClaim, base)
	s.notify("Payment Received", "Payment received.", id.NotificationPayment, base.Add(time.Minute))
	s.notify("Insurance Verified! ✅", "verified", id.NotificationVerification, base.Add(2*time.Minute))

	s.Equal([]string{
		"Claim Approved! ✅: Your claim is approved! Damage: 80.0%, Amount: ₹40000.00",
		"Payment Received: Payment received.",
	}, s.sms.sent["9876543210"])
}

func (s *NotificationServiceSuite) TestDeliver_SMSFailureKeepsInboxEntry() {
	s.sms.fail = true
	s.notify("Claim Rejected ❌", "rejected", id.NotificationClaim, requestcontext.Now(s.ctx))

	list, err := s.svc.List(s.ctx, s.farmer, 0)
	s.Require().NoError(err)
	s.Len(list.Notifications, 1)
}

func (s *NotificationServiceSuite) TestInbox() {
	base := requestcontext.Now(s.ctx)
	s.notify("older", "m", id.NotificationPolicy, base)
	s.notify("newer", "m", id.NotificationPolicy, base.Add(time.Minute))

	list, err := s.svc.List(s.ctx, s.farmer, 0)
	s.Require().NoError(err)
	s.Require().Len(list.Notifications, 2)
	s.Equal("newer", list.Notifications[0].Title)
	s.Equal(2, list.Unread)

	notificationID, err := id.ParseNotificationID(list.Notifications[1].ID)
	s.Require().NoError(err)

	_, err = s.svc.MarkRead(s.ctx, id.FarmerID(uuid.New()), notificationID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	read, err := s.svc.MarkRead(s.ctx, s.farmer, notificationID)
	s.Require().NoError(err)
	s.True(read.Read)

	unread, err := s.svc.UnreadCount(s.ctx, s.farmer)
	s.Require().NoError(err)
	s.Equal(1, unread)

	updated, err := s.svc.MarkAllRead(s.ctx, s.farmer)
	s.Require().NoError(err)
	s.Equal(1, updated)
}
