// Package service aggregates read-only views across modules for officials.
package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"farmshield/internal/admin/report"
	"farmshield/internal/admin/types"
	policymodels "farmshield/internal/policy/models"
	sensormodels "farmshield/internal/sensor/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

type FarmerStore interface {
	Count(ctx context.Context) (int, error)
	FindByID(ctx context.Context, farmerID id.FarmerID) (*types.AdminFarmer, error)
}

type ClaimSource interface {
	ListAll(ctx context.Context) ([]*types.AdminClaim, error)
	Counts(ctx context.Context) (types.ClaimCounts, error)
}

type Policies interface {
	Summary(ctx context.Context) (policymodels.Summary, error)
}

type Sensors interface {
	Stats(ctx context.Context) (sensormodels.Stats, error)
}

// Stats is the global dashboard.
type Stats struct {
	TotalFarmers         int             `json:"total_farmers"`
	ActivePolicies       int             `json:"active_policies"`
	TotalCoverage        decimal.Decimal `json:"total_coverage"`
	PendingVerifications int             `json:"pending_verifications"`
	TotalClaims          int             `json:"total_claims"`
	ProcessingClaims     int             `json:"processing_claims"`
	ApprovedClaims       int             `json:"approved_claims"`
	RejectedClaims       int             `json:"rejected_claims"`
	SensorCount          int             `json:"sensor_count"`
	AvailableSensors     int             `json:"available_sensors"`
}

type Service struct {
	farmers  FarmerStore
	claims   ClaimSource
	policies Policies
	sensors  Sensors
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(farmers FarmerStore, claims ClaimSource, policies Policies, sensors Sensors, opts ...Option) *Service {
	s := &Service{
		farmers:  farmers,
		claims:   claims,
		policies: policies,
		sensors:  sensors,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats counts farmers, policies, claims and sensors. Pending verifications
// are paid policies still waiting for a field decision.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	farmers, err := s.farmers.Count(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count farmers")
	}
	summary, err := s.policies.Summary(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := s.claims.Counts(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count claims")
	}
	sensors, err := s.sensors.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalFarmers:         farmers,
		ActivePolicies:       summary.Count(policymodels.StatusActive),
		TotalCoverage:        summary.ActiveCoverage,
		PendingVerifications: summary.Count(policymodels.StatusPaid),
		TotalClaims:          claims.Total,
		ProcessingClaims:     claims.Processing,
		ApprovedClaims:       claims.Approved,
		RejectedClaims:       claims.Rejected,
		SensorCount:          sensors.Total,
		AvailableSensors:     sensors.Available,
	}, nil
}

// Claims returns every claim with its farmer, newest first. A claim whose
// farmer cannot be found is still listed.
func (s *Service) Claims(ctx context.Context) ([]*types.ClaimRow, error) {
	claims, err := s.claims.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	farmers := make(map[id.FarmerID]*types.AdminFarmer)
	rows := make([]*types.ClaimRow, len(claims))
	for i, c := range claims {
		farmer, seen := farmers[c.FarmerID]
		if !seen {
			farmer, err = s.farmers.FindByID(ctx, c.FarmerID)
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				s.logger.WarnContext(ctx, "claim farmer missing",
					"claim_id", c.ID.String(),
					"farmer_id", c.FarmerID.String(),
				)
			case err != nil:
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load farmer")
			}
			farmers[c.FarmerID] = farmer
		}
		rows[i] = &types.ClaimRow{Claim: c, Farmer: farmer}
	}
	return rows, nil
}

// ExportClaims renders every claim as an XLSX workbook.
func (s *Service) ExportClaims(ctx context.Context) ([]byte, error) {
	rows, err := s.Claims(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := report.WriteClaims(&buf, rows, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render claims export")
	}
	s.logger.InfoContext(ctx, "claims exported",
		"claims", len(rows),
		"bytes", buf.Len(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return buf.Bytes(), nil
}
