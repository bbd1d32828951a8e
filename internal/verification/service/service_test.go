package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	identitymodels "farmshield/internal/identity/models"
	"farmshield/internal/platform/config"
	policymodels "farmshield/internal/policy/models"
	policyservice "farmshield/internal/policy/service"
	landstore "farmshield/internal/policy/store/land"
	policystore "farmshield/internal/policy/store/policy"
	sensormodels "farmshield/internal/sensor/models"
	sensorservice "farmshield/internal/sensor/service"
	sensorstore "farmshield/internal/sensor/store"
	"farmshield/internal/verification/models"
	"farmshield/internal/verification/store"
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

type stubOfficials map[id.OfficialID]*identitymodels.Official

func (o stubOfficials) RequireActiveOfficial(_ context.Context, officialID id.OfficialID) (*identitymodels.Official, error) {
	official, ok := o[officialID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "official not found")
	}
	if !official.Active {
		return nil, dErrors.New(dErrors.CodeForbidden, "official account is inactive")
	}
	return official, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
	msgs   []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ id.FarmerID, title, message string, _ id.NotificationCategory) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	n.msgs = append(n.msgs, message)
	return nil
}

type VerificationServiceSuite struct {
	suite.Suite
	svc      *Service
	policies *policyservice.Service
	sensors  *sensorservice.Service
	store    *store.InMemoryStore
	notifier *recordingNotifier
	audit    *memory.InMemoryStore
	farmers  stubFarmers
	official id.OfficialID
	inactive id.OfficialID
	ctx      context.Context
	seq      int
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := tx.NewShardedRunner(time.Second)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC))
	s.notifier = &recordingNotifier{}
	s.audit = memory.NewInMemoryStore()
	s.farmers = stubFarmers{}
	s.store = store.NewInMemory()
	s.seq = 0

	s.official = id.OfficialID(uuid.New())
	s.inactive = id.OfficialID(uuid.New())
	officials := stubOfficials{
		s.official: {ID: s.official, Name: "Patwari Verma", Area: "Sehore", Active: true},
		s.inactive: {ID: s.inactive, Name: "Retired", Active: false},
	}

	pricer, err := policymodels.NewPricer(config.DefaultCropRates(), decimal.NewFromInt(100), decimal.NewFromInt(10))
	s.Require().NoError(err)
	s.sensors = sensorservice.New(sensorstore.NewInMemory(), sensorservice.WithLogger(logger))
	s.policies = policyservice.New(landstore.NewInMemory(), policystore.NewInMemory(), s.store, s.farmers, pricer, runner,
		policyservice.Config{ValidityMonths: 6},
		policyservice.WithLogger(logger),
		policyservice.WithNotifier(s.notifier),
		policyservice.WithSensorLookup(s.sensors),
	)
	s.svc = New(s.store, s.policies, s.sensors, officials, s.farmers, runner,
		WithLogger(logger),
		WithNotifier(s.notifier),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
	)
}

// paidPolicy takes a new farmer in district through apply and payment and
// returns the opened verification.
func (s *VerificationServiceSuite) paidPolicy(district string) *models.Verification {
	s.seq++
	farmerID := id.FarmerID(uuid.New())
	s.farmers[farmerID] = &identitymodels.Farmer{ID: farmerID, Name: "Farmer", Phone: "9876543210", State: "Madhya Pradesh", District: district}

	area := decimal.RequireFromString("2")
	lat, lon := 23.2, 77.08
	order, err := s.policies.Apply(s.ctx, farmerID, &policymodels.ApplyRequest{
		KhasraNumber: "K-" + uuid.NewString()[:8], AreaAcres: &area, CropType: "SOYBEAN", Latitude: &lat, Longitude: &lon,
	})
	s.Require().NoError(err)
	_, err = s.policies.ConfirmPayment(s.ctx, farmerID, &policymodels.ConfirmPaymentRequest{OrderRef: order.OrderID, PaymentRef: "pay"})
	s.Require().NoError(err)

	policyID, err := id.ParsePolicyID(order.PolicyID)
	s.Require().NoError(err)
	v, err := s.store.FindByPolicy(s.ctx, policyID)
	s.Require().NoError(err)
	return v
}

func (s *VerificationServiceSuite) register(code string) {
	_, err := s.sensors.Register(s.ctx, &sensormodels.RegisterRequest{Code: code})
	s.Require().NoError(err)
}

func (s *VerificationServiceSuite) TestApproveWithSensor_ActivatesAndBinds() {
	s.register("SNS-100")
	v := s.paidPolicy("Sehore")

	view, err := s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "approved", Remarks: "crop matches", SensorCode: "sns-100"})
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, view.Status)
	s.Equal(string(policymodels.StatusActive), view.PolicyStatus)
	s.Equal("SNS-100", view.SensorCode)

	available, err := s.sensors.ListAvailable(s.ctx)
	s.Require().NoError(err)
	s.Empty(available)

	s.Contains(s.notifier.titles, "Insurance Verified! ✅")
	s.Contains(s.notifier.titles, "Insurance Activated! 🎉")
}

func (s *VerificationServiceSuite) TestReject_KeepsPolicyPaid() {
	v := s.paidPolicy("Sehore")
	view, err := s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "REJECTED", Remarks: "khasra mismatch", SensorCode: "SNS-IGNORED"})
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, view.Status)
	s.Equal(string(policymodels.StatusPaid), view.PolicyStatus)
	s.Empty(view.SensorCode)
	s.Contains(s.notifier.msgs[len(s.notifier.msgs)-1], "Reason: khasra mismatch")
}

func (s *VerificationServiceSuite) TestDecide_SecondDecisionConflicts() {
	v := s.paidPolicy("Sehore")
	_, err := s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "approved"})
	s.Require().NoError(err)

	_, err = s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "rejected"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func (s *VerificationServiceSuite) TestDecide_SensorAlreadyBoundConflictsWithoutSideEffects() {
	s.register("SNS-200")
	first := s.paidPolicy("Sehore")
	second := s.paidPolicy("Sehore")

	_, err := s.svc.Decide(s.ctx, s.official, first.ID, &models.DecideRequest{Outcome: "approved", SensorCode: "SNS-200"})
	s.Require().NoError(err)

	_, err = s.svc.Decide(s.ctx, s.official, second.ID, &models.DecideRequest{Outcome: "approved", SensorCode: "SNS-200"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	still, err := s.store.FindByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.True(still.IsPending())
	details, err := s.policies.Details(s.ctx, still.PolicyID)
	s.Require().NoError(err)
	s.Equal(policymodels.StatusPaid, details.Policy.Status)
	s.Nil(details.Land.SensorID)
}

func (s *VerificationServiceSuite) TestDecide_ConcurrentOnSameVerification() {
	for _, code := range []string{"SNS-301", "SNS-302", "SNS-303", "SNS-304"} {
		s.register(code)
	}
	v := s.paidPolicy("Sehore")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, code := range []string{"SNS-301", "SNS-302", "SNS-303", "SNS-304"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "approved", SensorCode: code}); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())

	stats, err := s.sensors.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, stats.Available)
}

func (s *VerificationServiceSuite) TestDecide_ConcurrentApprovalsRaceForOneSensor() {
	s.register("SNS-900")
	pending := make([]*models.Verification, 8)
	for i := range pending {
		pending[i] = s.paidPolicy("Sehore")
	}

	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for _, v := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "approved", SensorCode: "SNS-900"})
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
	s.Equal(int32(7), conflicts.Load())

	bound := 0
	for _, v := range pending {
		details, err := s.policies.Details(s.ctx, v.PolicyID)
		s.Require().NoError(err)
		if details.Land.SensorID != nil {
			bound++
		}
	}
	s.Equal(1, bound)
	stats, err := s.sensors.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Available)
}

func (s *VerificationServiceSuite) TestDecide_OfficialAndInputGuards() {
	v := s.paidPolicy("Sehore")

	_, err := s.svc.Decide(s.ctx, s.inactive, v.ID, &models.DecideRequest{Outcome: "approved"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.Decide(s.ctx, id.OfficialID(uuid.New()), v.ID, &models.DecideRequest{Outcome: "approved"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Decide(s.ctx, s.official, id.VerificationID(uuid.New()), &models.DecideRequest{Outcome: "approved"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "maybe"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Decide(s.ctx, s.official, v.ID, &models.DecideRequest{Outcome: "approved", SensorCode: "SNS-404"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	still, err := s.store.FindByID(s.ctx, v.ID)
	s.Require().NoError(err)
	s.True(still.IsPending())
}

func (s *VerificationServiceSuite) TestListPending_FiltersByArea() {
	s.paidPolicy("Sehore")
	s.paidPolicy("Raisen")

	all, err := s.svc.ListPending(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 2)

	sehore, err := s.svc.ListPending(s.ctx, "sehore")
	s.Require().NoError(err)
	s.Require().Len(sehore, 1)
	s.Equal("Sehore", sehore[0].District)
	s.Equal("SOYBEAN", sehore[0].CropType)
}

func (s *VerificationServiceSuite) TestDashboard() {
	s.register("SNS-400")
	s.register("SNS-401")
	approved := s.paidPolicy("Sehore")
	rejected := s.paidPolicy("Sehore")
	s.paidPolicy("Sehore")

	_, err := s.svc.Decide(s.ctx, s.official, approved.ID, &models.DecideRequest{Outcome: "approved", SensorCode: "SNS-400"})
	s.Require().NoError(err)
	_, err = s.svc.Decide(s.ctx, s.official, rejected.ID, &models.DecideRequest{Outcome: "rejected", Remarks: "no crop"})
	s.Require().NoError(err)

	dash, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, dash.Pending)
	s.Equal(1, dash.Approved)
	s.Equal(1, dash.Rejected)
	s.Equal(2, dash.TotalProcessed)
	s.Equal(1, dash.AvailableSensors)

	events, err := s.audit.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.NotEmpty(events)
	s.Equal("verification_decided", events[0].Action)
	s.Equal(s.official.String(), events[0].ActorID)
}
