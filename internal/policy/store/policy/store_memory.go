// Package policy persists insurance policies and applies their status
// transitions as conditional updates.
package policy

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[id.PolicyID]*models.Policy
	byNumber   map[string]id.PolicyID
	byOrderRef map[string]id.PolicyID
	byLand     map[id.LandID]id.PolicyID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[id.PolicyID]*models.Policy),
		byNumber:   make(map[string]id.PolicyID),
		byOrderRef: make(map[string]id.PolicyID),
		byLand:     make(map[id.LandID]id.PolicyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[p.Number]; taken {
		return fmt.Errorf("policy %s: %w", p.Number, models.ErrNumberTaken)
	}
	if _, taken := s.byLand[p.LandID]; taken {
		return fmt.Errorf("policy for land %s: %w", p.LandID, sentinel.ErrConflict)
	}
	if _, taken := s.byOrderRef[p.OrderRef]; taken {
		return fmt.Errorf("order %s: %w", p.OrderRef, sentinel.ErrConflict)
	}
	cp := *p
	s.byID[p.ID] = &cp
	s.byNumber[p.Number] = p.ID
	s.byOrderRef[p.OrderRef] = p.ID
	s.byLand[p.LandID] = p.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, policyID id.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, sentinel.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) FindByOrderRef(_ context.Context, orderRef string) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policyID, ok := s.byOrderRef[orderRef]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", orderRef, sentinel.ErrNotFound)
	}
	cp := *s.byID[policyID]
	return &cp, nil
}

// ListByFarmer returns the farmer's policies, newest first.
func (s *InMemoryStore) ListByFarmer(_ context.Context, farmerID id.FarmerID) ([]*models.Policy, error) {
	return s.filter(func(p *models.Policy) bool { return p.FarmerID == farmerID }), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Policy, error) {
	return s.filter(func(p *models.Policy) bool { return p.Status == status }), nil
}

func (s *InMemoryStore) filter(keep func(*models.Policy) bool) []*models.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Policy
	for _, p := range s.byID {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MarkPaid moves a pending policy to paid and records the payment reference.
func (s *InMemoryStore) MarkPaid(_ context.Context, policyID id.PolicyID, paymentRef string, now time.Time) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, sentinel.ErrNotFound)
	}
	if p.Status != models.StatusPending {
		return nil, fmt.Errorf("policy %s is %s: %w", policyID, p.Status, sentinel.ErrInvalidState)
	}
	p.Status = models.StatusPaid
	p.PaymentRef = paymentRef
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

// Transition sets the status to `to` only if the current status is one of from.
func (s *InMemoryStore) Transition(_ context.Context, policyID id.PolicyID, from []models.Status, to models.Status, now time.Time) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, sentinel.ErrNotFound)
	}
	if !slices.Contains(from, p.Status) {
		return nil, fmt.Errorf("policy %s is %s: %w", policyID, p.Status, sentinel.ErrInvalidState)
	}
	p.Status = to
	p.UpdatedAt = now
	cp := *p
	return &cp, nil
}

// ExpireDue moves every active policy whose end date is before now's
// calendar day to expired and returns them.
func (s *InMemoryStore) ExpireDue(_ context.Context, now time.Time) ([]*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Policy
	for _, p := range s.byID {
		if p.Status == models.StatusActive && p.Lapsed(now) {
			p.Status = models.StatusExpired
			p.UpdatedAt = now
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Summary(_ context.Context) (models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := models.Summary{ByStatus: make(map[models.Status]int), ActiveCoverage: decimal.Zero}
	for _, p := range s.byID {
		sum.ByStatus[p.Status]++
		if p.Status == models.StatusActive {
			sum.ActiveCoverage = sum.ActiveCoverage.Add(p.Coverage)
		}
	}
	return sum, nil
}
