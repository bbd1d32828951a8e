// Package store persists farmer notifications.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"farmshield/internal/notification/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.NotificationID]*models.Notification
	byFarmer map[id.FarmerID][]id.NotificationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.NotificationID]*models.Notification),
		byFarmer: make(map[id.FarmerID][]id.NotificationID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[n.ID]; exists {
		return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
	}
	c := *n
	s.byID[n.ID] = &c
	s.byFarmer[n.FarmerID] = append(s.byFarmer[n.FarmerID], n.ID)
	return nil
}

// ListByFarmer returns the farmer's inbox newest first. A non-positive limit
// returns everything.
func (s *InMemoryStore) ListByFarmer(_ context.Context, farmerID id.FarmerID, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byFarmer[farmerID]
	out := make([]*models.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		c := *s.byID[ids[i]]
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountUnread(_ context.Context, farmerID id.FarmerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, nID := range s.byFarmer[farmerID] {
		if !s.byID[nID].Read {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one notification. Another farmer's notification is reported
// as missing.
func (s *InMemoryStore) MarkRead(_ context.Context, farmerID id.FarmerID, notificationID id.NotificationID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[notificationID]
	if !ok || !n.OwnedBy(farmerID) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, sentinel.ErrNotFound)
	}
	n.Read = true
	c := *n
	return &c, nil
}

func (s *InMemoryStore) MarkAllRead(_ context.Context, farmerID id.FarmerID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, nID := range s.byFarmer[farmerID] {
		if n := s.byID[nID]; !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}
