// Package land persists registered land parcels.
package land

import (
	"context"
	"fmt"
	"sync"

	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.LandID]*models.Land
	byKhasra map[string]id.LandID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.LandID]*models.Land),
		byKhasra: make(map[string]id.LandID),
	}
}

// Create inserts the land unless its khasra number is already registered.
func (s *InMemoryStore) Create(_ context.Context, l *models.Land) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byKhasra[l.KhasraNumber]; taken {
		return fmt.Errorf("khasra %s: %w", l.KhasraNumber, sentinel.ErrConflict)
	}
	s.byID[l.ID] = clone(l)
	s.byKhasra[l.KhasraNumber] = l.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, landID id.LandID) (*models.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[landID]
	if !ok {
		return nil, fmt.Errorf("land %s: %w", landID, sentinel.ErrNotFound)
	}
	return clone(l), nil
}

// SetSensor records the bound sensor. A land holds at most one sensor for
// life; a second call fails with ErrInvalidState.
func (s *InMemoryStore) SetSensor(_ context.Context, landID id.LandID, sensorID id.SensorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.byID[landID]
	if !ok {
		return fmt.Errorf("land %s: %w", landID, sentinel.ErrNotFound)
	}
	if l.SensorID != nil {
		return fmt.Errorf("land %s already has a sensor: %w", landID, sentinel.ErrInvalidState)
	}
	l.SensorID = &sensorID
	return nil
}

func clone(l *models.Land) *models.Land {
	cp := *l
	if l.SensorID != nil {
		sensorID := *l.SensorID
		cp.SensorID = &sensorID
	}
	return &cp
}
