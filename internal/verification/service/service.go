// Package service runs the field verification workflow: officials review
// paid policies, optionally assign a sensor, and approve or reject.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	identitymodels "farmshield/internal/identity/models"
	policymodels "farmshield/internal/policy/models"
	sensormodels "farmshield/internal/sensor/models"
	"farmshield/internal/verification/metrics"
	"farmshield/internal/verification/models"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
	"farmshield/pkg/requestcontext"
)

type Store interface {
	FindByID(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Verification, error)
	Decide(ctx context.Context, d models.Decision) (*models.Verification, error)
	Counts(ctx context.Context) (models.Counts, error)
}

// Policies is the policy lifecycle as seen from verification.
type Policies interface {
	Details(ctx context.Context, policyID id.PolicyID) (*policymodels.Details, error)
	Activate(ctx context.Context, policyID id.PolicyID) (*policymodels.Policy, error)
	NotifyActivated(ctx context.Context, p *policymodels.Policy)
	AttachSensor(ctx context.Context, landID id.LandID, sensorID id.SensorID) error
}

type Sensors interface {
	Bind(ctx context.Context, code string, landID id.LandID) (*sensormodels.Sensor, error)
	Stats(ctx context.Context) (sensormodels.Stats, error)
}

type Officials interface {
	RequireActiveOfficial(ctx context.Context, officialID id.OfficialID) (*identitymodels.Official, error)
}

type Farmers interface {
	GetProfile(ctx context.Context, farmerID id.FarmerID) (*identitymodels.Farmer, error)
}

type Notifier interface {
	Notify(ctx context.Context, farmerID id.FarmerID, title, message string, category id.NotificationCategory) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	policies       Policies
	sensors        Sensors
	officials      Officials
	farmers        Farmers
	tx             tx.Runner
	notifier       Notifier
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

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, policies Policies, sensors Sensors, officials Officials, farmers Farmers, txRunner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:     store,
		policies:  policies,
		sensors:   sensors,
		officials: officials,
		farmers:   farmers,
		tx:        txRunner,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPending returns pending verifications, oldest first. A non-empty area
// keeps only farmers whose state, district or village matches it.
func (s *Service) ListPending(ctx context.Context, area string) ([]*models.View, error) {
	pending, err := s.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verifications")
	}
	area = strings.TrimSpace(area)
	out := make([]*models.View, 0, len(pending))
	for _, v := range pending {
		view, farmer, err := s.view(ctx, v)
		if err != nil {
			return nil, err
		}
		if area != "" && !inArea(farmer, area) {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, verificationID id.VerificationID) (*models.View, error) {
	v, err := s.find(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	view, _, err := s.view(ctx, v)
	return view, err
}

// Dashboard summarizes the verification queue and the sensor pool.
func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count verifications")
	}
	sensors, err := s.sensors.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{
		Counts:           counts,
		AvailableSensors: sensors.Available,
		TotalProcessed:   counts.Approved + counts.Rejected,
	}, nil
}

func (s *Service) find(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	v, err := s.store.FindByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return v, nil
}

func (s *Service) view(ctx context.Context, v *models.Verification) (*models.View, *identitymodels.Farmer, error) {
	details, err := s.policies.Details(ctx, v.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	farmer, err := s.farmers.GetProfile(ctx, details.Policy.FarmerID)
	if err != nil {
		return nil, nil, err
	}
	p, land := details.Policy, details.Land
	view := &models.View{
		VerificationID: v.ID.String(),
		PolicyID:       p.ID.String(),
		PolicyNumber:   p.Number,
		PolicyStatus:   string(p.Status),
		FarmerName:     farmer.Name,
		FarmerPhone:    string(farmer.Phone),
		FarmerAddress:  farmer.Address,
		State:          farmer.State,
		District:       farmer.District,
		Village:        farmer.Village,
		KhasraNumber:   land.KhasraNumber,
		AreaAcres:      land.AreaAcres,
		Latitude:       land.Latitude,
		Longitude:      land.Longitude,
		CropType:       p.CropType,
		Premium:        p.Premium,
		Coverage:       p.Coverage,
		Status:         v.Status,
		Remarks:        v.Remarks,
		SensorCode:     details.SensorCode,
		CreatedAt:      v.CreatedAt,
		DecidedAt:      v.DecidedAt,
	}
	return view, farmer, nil
}

func inArea(f *identitymodels.Farmer, area string) bool {
	for _, field := range []string{f.District, f.State, f.Village} {
		if strings.EqualFold(strings.TrimSpace(field), area) {
			return true
		}
	}
	return false
}

func (s *Service) notify(ctx context.Context, farmerID id.FarmerID, entityID, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, farmerID, title, message, id.NotificationVerification); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "verification notification failed",
			"error", err,
			"farmer_id", farmerID.String(),
			"verification_id", entityID,
			"category", string(id.NotificationVerification),
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
		ActorID:   attrs.ExtractString(attributes, "official_id"),
		Subject:   attrs.ExtractString(attributes, "policy_number"),
		Action:    event,
		Decision:  attrs.ExtractString(attributes, "outcome"),
		Reason:    attrs.ExtractString(attributes, "remarks"),
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
