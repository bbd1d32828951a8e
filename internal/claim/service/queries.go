package service

import (
	"context"

	"farmshield/internal/claim/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// Get returns a claim owned by the farmer.
func (s *Service) Get(ctx context.Context, farmerID id.FarmerID, claimID id.ClaimID) (*models.Claim, error) {
	c, err := s.find(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(farmerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "claim does not belong to farmer")
	}
	return c, nil
}

// ListByFarmer returns the farmer's claims, newest first.
func (s *Service) ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Claim, error) {
	claims, err := s.store.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Claim, error) {
	claims, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

func (s *Service) Counts(ctx context.Context) (models.Counts, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return models.Counts{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count claims")
	}
	return counts, nil
}
