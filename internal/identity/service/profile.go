package service

import (
	"context"
	"errors"

	"farmshield/internal/identity/models"
	"farmshield/internal/imagestore"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

func (s *Service) GetProfile(ctx context.Context, farmerID id.FarmerID) (*models.Farmer, error) {
	farmer, err := s.farmers.FindByID(ctx, farmerID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "farmer not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load farmer")
	}
	return farmer, nil
}

func (s *Service) UpdateProfile(ctx context.Context, farmerID id.FarmerID, update *models.ProfileUpdate) (*models.Farmer, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	farmer, err := s.GetProfile(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	farmer.ApplyProfile(*update, requestcontext.Now(ctx))
	if err := s.farmers.Update(ctx, farmer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update farmer")
	}
	s.logAudit(ctx, string(audit.EventFarmerUpdated), "farmer_id", farmer.ID.String())
	return farmer, nil
}

// SetProfileImage stores the photo under the farmer's scope and records its path.
func (s *Service) SetProfileImage(ctx context.Context, farmerID id.FarmerID, file imagestore.File) (*models.Farmer, error) {
	if s.images == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "image uploads are disabled")
	}
	if err := imagestore.Validate(file, s.cfg.MaxImageBytes); err != nil {
		return nil, err
	}
	farmer, err := s.GetProfile(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	path, err := s.images.Store(ctx, "profiles/"+farmerID.String(), file)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store image")
	}
	farmer.ProfileImage = path
	farmer.UpdatedAt = requestcontext.Now(ctx)
	if err := s.farmers.Update(ctx, farmer); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update farmer")
	}
	return farmer, nil
}
