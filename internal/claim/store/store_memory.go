// Package store persists claims with their evidence images and assessment.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"farmshield/internal/claim/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.ClaimID]*models.Claim
	byPolicy map[id.PolicyID]id.ClaimID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.ClaimID]*models.Claim),
		byPolicy: make(map[id.PolicyID]id.ClaimID),
	}
}

// Create stores a claim and its images. A second claim on the same policy is
// a conflict.
func (s *InMemoryStore) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPolicy[c.PolicyID]; taken {
		return fmt.Errorf("claim for policy %s: %w", c.PolicyID, sentinel.ErrConflict)
	}
	if _, exists := s.byID[c.ID]; exists {
		return fmt.Errorf("claim %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.byID[c.ID] = clone(c)
	s.byPolicy[c.PolicyID] = c.ID
	return nil
}

// Adjudicate records the decision and assessment on a processing claim.
func (s *InMemoryStore) Adjudicate(_ context.Context, claimID id.ClaimID, d models.Decision, a *models.Assessment, now time.Time) (*models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	if c.Status != models.StatusProcessing {
		return nil, fmt.Errorf("claim %s is %s: %w", claimID, c.Status, sentinel.ErrInvalidState)
	}
	assessment := *a
	if err := c.Apply(d, &assessment, now); err != nil {
		return nil, err
	}
	return clone(c), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	return clone(c), nil
}

func (s *InMemoryStore) ListByFarmer(_ context.Context, farmerID id.FarmerID) ([]*models.Claim, error) {
	return s.list(func(c *models.Claim) bool { return c.FarmerID == farmerID }), nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Claim, error) {
	return s.list(func(*models.Claim) bool { return true }), nil
}

func (s *InMemoryStore) Counts(_ context.Context) (models.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts models.Counts
	for _, c := range s.byID {
		counts.Total++
		switch c.Status {
		case models.StatusProcessing, models.StatusPending:
			counts.Processing++
		case models.StatusApproved:
			counts.Approved++
		case models.StatusRejected:
			counts.Rejected++
		}
	}
	return counts, nil
}

// list returns matching claims newest first.
func (s *InMemoryStore) list(match func(*models.Claim) bool) []*models.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Claim, 0)
	for _, c := range s.byID {
		if match(c) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiledAt.After(out[j].FiledAt) })
	return out
}

func clone(c *models.Claim) *models.Claim {
	cp := *c
	cp.Images = append([]models.Image(nil), c.Images...)
	if c.Assessment != nil {
		a := *c.Assessment
		cp.Assessment = &a
	}
	return &cp
}
