package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"farmshield/internal/platform/config"
	"farmshield/internal/policy/handler/mocks"
	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/testutil"
)

type PolicyHandlerSuite struct {
	suite.Suite
	svc      *mocks.MockService
	router   chi.Router
	farmerID id.FarmerID
}

func TestPolicyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PolicyHandlerSuite))
}

func (s *PolicyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	passthrough := func(next http.Handler) http.Handler { return next }
	h := New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)), passthrough)
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.farmerID = id.FarmerID(uuid.New())
}

func (s *PolicyHandlerSuite) farmerRequest(method, path string, body any) *http.Request {
	if body == nil {
		return testutil.WithFarmer(testutil.NewRequest(s.T(), method, path), s.farmerID)
	}
	return testutil.WithFarmer(testutil.NewJSONRequest(s.T(), method, path, body), s.farmerID)
}

func (s *PolicyHandlerSuite) TestCrops_Public() {
	s.svc.EXPECT().Crops().Return(config.DefaultCropRates())
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/crops"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "crops")
}

func (s *PolicyHandlerSuite) TestApply_Created() {
	s.svc.EXPECT().Apply(gomock.Any(), s.farmerID, gomock.Any()).
		Return(&models.PaymentOrderResponse{OrderID: "order_0123456789abcd", Amount: decimal.NewFromInt(375)}, nil)

	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodPost, "/policies", map[string]any{
		"khasra_number": "45/2",
		"area_acres":    "2.5",
		"crop_type":     "WHEAT",
		"latitude":      23.25,
		"longitude":     77.41,
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "order_id", "order_0123456789abcd")
}

func (s *PolicyHandlerSuite) TestApply_KhasraConflict() {
	s.svc.EXPECT().Apply(gomock.Any(), s.farmerID, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "khasra number is already registered"))

	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodPost, "/policies", map[string]any{"khasra_number": "45/2"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *PolicyHandlerSuite) TestApply_OfficialForbidden() {
	req := testutil.WithOfficial(testutil.NewJSONRequest(s.T(), http.MethodPost, "/policies", map[string]any{}),
		id.OfficialID(uuid.New()), "Sehore")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *PolicyHandlerSuite) TestConfirmPayment() {
	policyID := id.PolicyID(uuid.New())
	s.svc.EXPECT().ConfirmPayment(gomock.Any(), s.farmerID, &models.ConfirmPaymentRequest{OrderRef: "order_x", PaymentRef: "pay_y"}).
		Return(&models.Policy{ID: policyID, Number: "CI-1-0001", Status: models.StatusPaid}, nil)

	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodPost, "/policies/payment/confirm",
		map[string]string{"order_id": "order_x", "payment_id": "pay_y"}))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "paid")
}

func (s *PolicyHandlerSuite) TestGet_BadID() {
	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodGet, "/policies/not-a-uuid", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *PolicyHandlerSuite) TestGet_Forbidden() {
	policyID := id.PolicyID(uuid.New())
	s.svc.EXPECT().Get(gomock.Any(), s.farmerID, policyID).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "policy belongs to another farmer"))

	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodGet, "/policies/"+policyID.String(), nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *PolicyHandlerSuite) TestListActive() {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	s.svc.EXPECT().ListActive(gomock.Any(), s.farmerID).Return([]*models.Details{{
		Policy: &models.Policy{ID: id.PolicyID(uuid.New()), Number: "CI-1-0001", Status: models.StatusActive, StartDate: now, EndDate: now.AddDate(0, 6, 0)},
		Land:   &models.Land{ID: id.LandID(uuid.New()), KhasraNumber: "45/2"},
	}}, nil)

	rr := testutil.DoRequest(s.router, s.farmerRequest(http.MethodGet, "/policies/active", nil))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "policies")
}
