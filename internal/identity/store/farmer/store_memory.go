// Package farmer persists farmer profiles.
package farmer

import (
	"context"
	"fmt"
	"sync"

	"farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.FarmerID]*models.Farmer
	byPhone map[id.Phone]id.FarmerID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.FarmerID]*models.Farmer),
		byPhone: make(map[id.Phone]id.FarmerID),
	}
}

// Create inserts the farmer unless the phone is already registered.
func (s *InMemoryStore) Create(_ context.Context, f *models.Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPhone[f.Phone]; taken {
		return fmt.Errorf("farmer phone: %w", sentinel.ErrConflict)
	}
	cp := *f
	s.byID[f.ID] = &cp
	s.byPhone[f.Phone] = f.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, farmerID id.FarmerID) (*models.Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byID[farmerID]
	if !ok {
		return nil, fmt.Errorf("farmer %s: %w", farmerID, sentinel.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, phone id.Phone) (*models.Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	farmerID, ok := s.byPhone[phone]
	if !ok {
		return nil, fmt.Errorf("farmer by phone: %w", sentinel.ErrNotFound)
	}
	cp := *s.byID[farmerID]
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, f *models.Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[f.ID]; !ok {
		return fmt.Errorf("farmer %s: %w", f.ID, sentinel.ErrNotFound)
	}
	cp := *f
	s.byID[f.ID] = &cp
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}
