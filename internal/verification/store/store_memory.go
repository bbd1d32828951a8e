// Package store persists verification records.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"farmshield/internal/verification/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.VerificationID]*models.Verification
	byPolicy map[id.PolicyID]id.VerificationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.VerificationID]*models.Verification),
		byPolicy: make(map[id.PolicyID]id.VerificationID),
	}
}

// Create inserts the record unless the policy already has one.
func (s *InMemoryStore) Create(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPolicy[v.PolicyID]; taken {
		return fmt.Errorf("verification for policy %s: %w", v.PolicyID, sentinel.ErrConflict)
	}
	s.byID[v.ID] = clone(v)
	s.byPolicy[v.PolicyID] = v.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[verificationID]
	if !ok {
		return nil, fmt.Errorf("verification %s: %w", verificationID, sentinel.ErrNotFound)
	}
	return clone(v), nil
}

func (s *InMemoryStore) FindByPolicy(_ context.Context, policyID id.PolicyID) (*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verificationID, ok := s.byPolicy[policyID]
	if !ok {
		return nil, fmt.Errorf("verification for policy %s: %w", policyID, sentinel.ErrNotFound)
	}
	return clone(s.byID[verificationID]), nil
}

// ListByStatus returns matching records, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Verification
	for _, v := range s.byID {
		if v.Status == status {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Decide applies the decision only while the record is pending.
func (s *InMemoryStore) Decide(_ context.Context, d models.Decision) (*models.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[d.VerificationID]
	if !ok {
		return nil, fmt.Errorf("verification %s: %w", d.VerificationID, sentinel.ErrNotFound)
	}
	if !v.IsPending() {
		return nil, fmt.Errorf("verification %s is %s: %w", d.VerificationID, v.Status, sentinel.ErrInvalidState)
	}
	v.Apply(d)
	return clone(v), nil
}

func (s *InMemoryStore) Counts(_ context.Context) (models.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c models.Counts
	for _, v := range s.byID {
		switch v.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusApproved:
			c.Approved++
		case models.StatusRejected:
			c.Rejected++
		}
	}
	return c, nil
}

func clone(v *models.Verification) *models.Verification {
	cp := *v
	if v.OfficialID != nil {
		officialID := *v.OfficialID
		cp.OfficialID = &officialID
	}
	if v.SensorID != nil {
		sensorID := *v.SensorID
		cp.SensorID = &sensorID
	}
	if v.DecidedAt != nil {
		at := *v.DecidedAt
		cp.DecidedAt = &at
	}
	return &cp
}
