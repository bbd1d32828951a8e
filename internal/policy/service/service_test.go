package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	identitymodels "farmshield/internal/identity/models"
	"farmshield/internal/platform/config"
	"farmshield/internal/policy/models"
	landstore "farmshield/internal/policy/store/land"
	policystore "farmshield/internal/policy/store/policy"
	vmodels "farmshield/internal/verification/models"
	vstore "farmshield/internal/verification/store"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit/publisher"
	"farmshield/pkg/platform/audit/store/memory"
	"farmshield/pkg/platform/tx"
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

type sentNotification struct {
	farmerID id.FarmerID
	title    string
	message  string
	category id.NotificationCategory
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, farmerID id.FarmerID, title, message string, category id.NotificationCategory) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{farmerID, title, message, category})
	return nil
}

type PolicyServiceSuite struct {
	suite.Suite
	svc           *Service
	farmers       stubFarmers
	lands         *landstore.InMemoryStore
	policies      *policystore.InMemoryStore
	verifications *vstore.InMemoryStore
	notifier      *recordingNotifier
	audit         *memory.InMemoryStore
	farmerID      id.FarmerID
	otherFarmer   id.FarmerID
	ctx           context.Context
}

func TestPolicyServiceSuite(t *testing.T) {
	suite.Run(t, new(PolicyServiceSuite))
}

func (s *PolicyServiceSuite) SetupTest() {
	s.farmerID = id.FarmerID(uuid.New())
	s.otherFarmer = id.FarmerID(uuid.New())
	s.farmers = stubFarmers{
		s.farmerID:    {ID: s.farmerID, Name: "Ramesh", State: "Madhya Pradesh"},
		s.otherFarmer: {ID: s.otherFarmer, Name: "Sita", State: "Madhya Pradesh"},
	}
	s.lands = landstore.NewInMemory()
	s.policies = policystore.NewInMemory()
	s.verifications = vstore.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.audit = memory.NewInMemoryStore()
	s.svc = s.newService()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 15, 8, 30, 0, 0, time.UTC))
}

func (s *PolicyServiceSuite) newService(opts ...Option) *Service {
	pricer, err := models.NewPricer(config.DefaultCropRates(), decimal.NewFromInt(100), decimal.NewFromInt(10))
	s.Require().NoError(err)
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(s.notifier),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	}
	return New(s.lands, s.policies, s.verifications, s.farmers, pricer, tx.NewShardedRunner(time.Second),
		Config{ValidityMonths: 6, Currency: "INR", PaymentKeyID: "rzp_test"}, append(base, opts...)...)
}

func (s *PolicyServiceSuite) applyReq(khasra string) *models.ApplyRequest {
	area := decimal.RequireFromString("2.5")
	lat, lon := 23.2599, 77.4126
	return &models.ApplyRequest{KhasraNumber: khasra, AreaAcres: &area, CropType: "wheat", Latitude: &lat, Longitude: &lon}
}

func (s *PolicyServiceSuite) apply(khasra string) *models.PaymentOrderResponse {
	order, err := s.svc.Apply(s.ctx, s.farmerID, s.applyReq(khasra))
	s.Require().NoError(err)
	return order
}

func (s *PolicyServiceSuite) pay(order *models.PaymentOrderResponse) *models.Policy {
	p, err := s.svc.ConfirmPayment(s.ctx, s.farmerID, &models.ConfirmPaymentRequest{OrderRef: order.OrderID, PaymentRef: "pay_" + order.PolicyNumber})
	s.Require().NoError(err)
	return p
}

func (s *PolicyServiceSuite) policyID(order *models.PaymentOrderResponse) id.PolicyID {
	policyID, err := id.ParsePolicyID(order.PolicyID)
	s.Require().NoError(err)
	return policyID
}

func (s *PolicyServiceSuite) TestApply_PricesAndOpensPendingPolicy() {
	order := s.apply("45/2")
	s.True(order.Amount.Equal(decimal.RequireFromString("375")))
	s.True(order.Coverage.Equal(decimal.RequireFromString("10000")))
	s.True(strings.HasPrefix(order.OrderID, "order_"))
	s.Len(order.OrderID, len("order_")+14)
	s.Equal("INR", order.Currency)
	s.True(strings.HasPrefix(order.PolicyNumber, "CI-"))

	details, err := s.svc.Get(s.ctx, s.farmerID, s.policyID(order))
	s.Require().NoError(err)
	s.Equal(models.StatusPending, details.Policy.Status)
	s.Equal("45/2", details.Land.KhasraNumber)
	s.Empty(details.VerificationStatus)
	s.Equal(time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC), details.Policy.EndDate)
}

func (s *PolicyServiceSuite) TestApply_KhasraTakenByAnyFarmer() {
	s.apply("45/2")
	_, err := s.svc.Apply(s.ctx, s.otherFarmer, s.applyReq(" 45/2 "))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func (s *PolicyServiceSuite) TestApply_UnknownCropAndFarmer() {
	req := s.applyReq("9/9")
	req.CropType = "quinoa"
	_, err := s.svc.Apply(s.ctx, s.farmerID, req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Apply(s.ctx, id.FarmerID(uuid.New()), s.applyReq("9/9"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestApply_RetriesNumberCollision() {
	numbers := []string{"CI-TAKEN-0001", "CI-TAKEN-0001", "CI-TAKEN-0001", "CI-FRESH-0002"}
	var call atomic.Int32
	s.svc = s.newService(WithNumberGenerator(func(time.Time) string {
		return numbers[min(int(call.Add(1))-1, len(numbers)-1)]
	}))

	first := s.apply("1/1")
	s.Equal("CI-TAKEN-0001", first.PolicyNumber)
	second := s.apply("1/2")
	s.Equal("CI-FRESH-0002", second.PolicyNumber)
}

func (s *PolicyServiceSuite) TestApply_GivesUpAfterRepeatedCollisions() {
	s.svc = s.newService(WithNumberGenerator(func(time.Time) string { return "CI-SAME-0000" }))

	s.apply("2/1")
	_, err := s.svc.Apply(s.ctx, s.farmerID, s.applyReq("2/2"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *PolicyServiceSuite) TestConfirmPayment_OpensVerificationAndNotifies() {
	order := s.apply("45/2")
	paid := s.pay(order)
	s.Equal(models.StatusPaid, paid.Status)

	v, err := s.verifications.FindByPolicy(s.ctx, paid.ID)
	s.Require().NoError(err)
	s.Equal(vmodels.StatusPending, v.Status)

	s.Require().Len(s.notifier.sent, 1)
	s.Equal(id.NotificationPayment, s.notifier.sent[0].category)
	s.Equal("Payment Received", s.notifier.sent[0].title)
	s.Contains(s.notifier.sent[0].message, order.PolicyNumber)

	_, err = s.svc.ConfirmPayment(s.ctx, s.farmerID, &models.ConfirmPaymentRequest{OrderRef: order.OrderID, PaymentRef: "again"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PolicyServiceSuite) TestConfirmPayment_Guards() {
	order := s.apply("45/2")

	_, err := s.svc.ConfirmPayment(s.ctx, s.otherFarmer, &models.ConfirmPaymentRequest{OrderRef: order.OrderID, PaymentRef: "p"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.ConfirmPayment(s.ctx, s.farmerID, &models.ConfirmPaymentRequest{OrderRef: "order_missing", PaymentRef: "p"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.ConfirmPayment(s.ctx, s.farmerID, &models.ConfirmPaymentRequest{OrderRef: order.OrderID})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestActivate_OnlyFromPaid() {
	order := s.apply("45/2")
	policyID := s.policyID(order)

	_, err := s.svc.Activate(s.ctx, policyID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "got %v", err)

	s.pay(order)
	active, err := s.svc.Activate(s.ctx, policyID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, active.Status)

	s.svc.NotifyActivated(s.ctx, active)
	last := s.notifier.sent[len(s.notifier.sent)-1]
	s.Equal(id.NotificationPolicy, last.category)
	s.Contains(last.message, "₹10000.00")
}

func (s *PolicyServiceSuite) TestMarkClaimed_ConcurrentExactlyOneWins() {
	order := s.apply("45/2")
	policyID := s.policyID(order)
	s.pay(order)
	_, err := s.svc.Activate(s.ctx, policyID)
	s.Require().NoError(err)

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.MarkClaimed(s.ctx, policyID, nil)
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(19), conflicts.Load())
}

func (s *PolicyServiceSuite) TestMarkClaimed_BlockedFromPendingByDefault() {
	order := s.apply("45/2")
	_, err := s.svc.MarkClaimed(s.ctx, s.policyID(order), []models.Status{models.StatusActive})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PolicyServiceSuite) TestExpireDue() {
	order := s.apply("45/2")
	policyID := s.policyID(order)
	s.pay(order)
	_, err := s.svc.Activate(s.ctx, policyID)
	s.Require().NoError(err)

	n, err := s.svc.ExpireDue(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	later := requestcontext.WithTime(context.Background(), time.Date(2026, 12, 16, 0, 0, 0, 0, time.UTC))
	n, err = s.svc.ExpireDue(later)
	s.Require().NoError(err)
	s.Equal(1, n)

	active, err := s.svc.ListActive(s.ctx, s.farmerID)
	s.Require().NoError(err)
	s.Empty(active)

	events, err := s.audit.ListRecent(s.ctx, 20)
	s.Require().NoError(err)
	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, "policy_expired")
}

func (s *PolicyServiceSuite) TestGet_OwnershipAndVerificationStatus() {
	order := s.apply("45/2")
	policyID := s.policyID(order)

	_, err := s.svc.Get(s.ctx, s.otherFarmer, policyID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.pay(order)
	details, err := s.svc.Get(s.ctx, s.farmerID, policyID)
	s.Require().NoError(err)
	s.Equal(string(vmodels.StatusPending), details.VerificationStatus)

	_, err = s.svc.Get(s.ctx, s.farmerID, id.PolicyID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestAttachSensor_Once() {
	order := s.apply("45/2")
	details, err := s.svc.Details(s.ctx, s.policyID(order))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.AttachSensor(s.ctx, details.Land.ID, id.SensorID(uuid.New())))
	err = s.svc.AttachSensor(s.ctx, details.Land.ID, id.SensorID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
