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
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"farmshield/internal/sensor/handler/mocks"
	"farmshield/internal/sensor/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/testutil"
)

type SensorHandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
}

func TestSensorHandlerSuite(t *testing.T) {
	suite.Run(t, new(SensorHandlerSuite))
}

func (s *SensorHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	passthrough := func(next http.Handler) http.Handler { return next }
	h := New(s.svc, slog.New(slog.NewTextHandler(io.Discard, nil)), passthrough, "device-secret")
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *SensorHandlerSuite) readingBody() map[string]any {
	return map[string]any{
		"sensor_code":   "SNS-001",
		"soil_moisture": "41.2",
		"humidity":      "68",
		"temperature":   "30.5",
	}
}

func (s *SensorHandlerSuite) TestRecordReading_RequiresIngestKey() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/sensors/readings", s.readingBody())
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *SensorHandlerSuite) TestRecordReading_Created() {
	s.svc.EXPECT().RecordReading(gomock.Any(), gomock.Any()).
		Return(&models.Reading{ID: 7, RecordedAt: time.Now()}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/sensors/readings", s.readingBody())
	req.Header.Set(HeaderIngestKey, "device-secret")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "id", float64(7))
}

func (s *SensorHandlerSuite) TestListAvailable_OfficialOnly() {
	farmer := testutil.WithFarmer(testutil.NewRequest(s.T(), http.MethodGet, "/sensors/available"), id.FarmerID(uuid.New()))
	rr := testutil.DoRequest(s.router, farmer)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	s.svc.EXPECT().ListAvailable(gomock.Any()).Return([]*models.Sensor{{Code: "SNS-002", Active: true}}, nil)
	official := testutil.WithOfficial(testutil.NewRequest(s.T(), http.MethodGet, "/sensors/available"), id.OfficialID(uuid.New()), "Sehore")
	rr = testutil.DoRequest(s.router, official)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "sensors")
}

func (s *SensorHandlerSuite) TestReadings_BadLimit() {
	req := testutil.WithFarmer(testutil.NewRequest(s.T(), http.MethodGet, "/sensors/SNS-001/readings?limit=abc"), id.FarmerID(uuid.New()))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *SensorHandlerSuite) TestReadings_PassesLimit() {
	s.svc.EXPECT().LatestReadings(gomock.Any(), "SNS-001", 25).Return([]models.Reading{}, nil)
	req := testutil.WithFarmer(testutil.NewRequest(s.T(), http.MethodGet, "/sensors/SNS-001/readings?limit=25"), id.FarmerID(uuid.New()))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
}

func (s *SensorHandlerSuite) TestGet_NotFound() {
	s.svc.EXPECT().Get(gomock.Any(), "SNS-404").Return(nil, dErrors.New(dErrors.CodeNotFound, "sensor not found"))
	req := testutil.WithOfficial(testutil.NewRequest(s.T(), http.MethodGet, "/sensors/SNS-404"), id.OfficialID(uuid.New()), "")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *SensorHandlerSuite) TestRegister_Conflict() {
	s.svc.EXPECT().Register(gomock.Any(), &models.RegisterRequest{Code: "SNS-001"}).
		Return(nil, dErrors.New(dErrors.CodeConflict, "sensor code already registered"))
	req := testutil.WithOfficial(testutil.NewJSONRequest(s.T(), http.MethodPost, "/sensors", map[string]string{"code": "SNS-001"}),
		id.OfficialID(uuid.New()), "Sehore")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}
