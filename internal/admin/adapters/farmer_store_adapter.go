package adapters

import (
	"context"

	"farmshield/internal/admin/types"
	identitymodels "farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
)

// FarmerStore is the interface that identity farmer stores implement.
type FarmerStore interface {
	FindByID(ctx context.Context, farmerID id.FarmerID) (*identitymodels.Farmer, error)
	Count(ctx context.Context) (int, error)
}

// FarmerStoreAdapter adapts an identity farmer store to admin's FarmerStore interface.
type FarmerStoreAdapter struct {
	store FarmerStore
}

func NewFarmerStoreAdapter(store FarmerStore) *FarmerStoreAdapter {
	return &FarmerStoreAdapter{store: store}
}

func (a *FarmerStoreAdapter) Count(ctx context.Context) (int, error) {
	return a.store.Count(ctx)
}

// FindByID returns the farmer mapped to admin types.
func (a *FarmerStoreAdapter) FindByID(ctx context.Context, farmerID id.FarmerID) (*types.AdminFarmer, error) {
	f, err := a.store.FindByID(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	return &types.AdminFarmer{
		ID:       f.ID,
		Name:     f.Name,
		Phone:    f.Phone,
		District: f.District,
		Village:  f.Village,
	}, nil
}
