package service

import (
	"context"
	"errors"

	"farmshield/internal/platform/config"
	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/sentinel"
)

// Get returns a policy with its land and verification, for its owner only.
func (s *Service) Get(ctx context.Context, farmerID id.FarmerID, policyID id.PolicyID) (*models.Details, error) {
	p, err := s.find(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(farmerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "policy belongs to another farmer")
	}
	return s.details(ctx, p)
}

// Details is Get without the ownership check, for officials and internal callers.
func (s *Service) Details(ctx context.Context, policyID id.PolicyID) (*models.Details, error) {
	p, err := s.find(ctx, policyID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, p)
}

func (s *Service) ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Details, error) {
	policies, err := s.policies.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return s.detailsAll(ctx, policies)
}

// ListActive returns the farmer's policies that can currently be claimed against.
func (s *Service) ListActive(ctx context.Context, farmerID id.FarmerID) ([]*models.Details, error) {
	policies, err := s.policies.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	active := policies[:0]
	for _, p := range policies {
		if p.Status == models.StatusActive {
			active = append(active, p)
		}
	}
	return s.detailsAll(ctx, active)
}

func (s *Service) Crops() []config.CropRate {
	return s.pricer.Crops()
}

func (s *Service) Summary(ctx context.Context) (models.Summary, error) {
	sum, err := s.policies.Summary(ctx)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize policies")
	}
	return sum, nil
}

func (s *Service) find(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	p, err := s.policies.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return p, nil
}

func (s *Service) detailsAll(ctx context.Context, policies []*models.Policy) ([]*models.Details, error) {
	out := make([]*models.Details, 0, len(policies))
	for _, p := range policies {
		d, err := s.details(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) details(ctx context.Context, p *models.Policy) (*models.Details, error) {
	land, err := s.lands.FindByID(ctx, p.LandID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
	}
	d := &models.Details{Policy: p, Land: land}

	v, err := s.verifications.FindByPolicy(ctx, p.ID)
	switch {
	case err == nil:
		d.VerificationStatus = string(v.Status)
		d.VerificationRemarks = v.Remarks
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}

	if land.SensorID != nil && s.sensors != nil {
		sensor, err := s.sensors.GetByID(ctx, *land.SensorID)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		if sensor != nil {
			d.SensorCode = sensor.Code
		}
	}
	return d, nil
}
