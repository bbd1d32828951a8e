// Package official persists government verifiers.
package official

import (
	"context"
	"fmt"
	"sync"

	"farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[id.OfficialID]*models.Official
	byGov map[string]id.OfficialID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[id.OfficialID]*models.Official),
		byGov: make(map[string]id.OfficialID),
	}
}

// Upsert inserts the official or refreshes an existing one with the same
// government ID, keeping its original ID.
func (s *InMemoryStore) Upsert(_ context.Context, o *models.Official) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	if existing, ok := s.byGov[o.GovernmentID]; ok {
		cp.ID = existing
		o.ID = existing
	}
	s.byID[cp.ID] = &cp
	s.byGov[cp.GovernmentID] = cp.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, officialID id.OfficialID) (*models.Official, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[officialID]
	if !ok {
		return nil, fmt.Errorf("official %s: %w", officialID, sentinel.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *InMemoryStore) FindByGovernmentID(_ context.Context, governmentID string) (*models.Official, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	officialID, ok := s.byGov[governmentID]
	if !ok {
		return nil, fmt.Errorf("official by government id: %w", sentinel.ErrNotFound)
	}
	cp := *s.byID[officialID]
	return &cp, nil
}
