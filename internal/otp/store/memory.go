// Package store persists one-time codes.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farmshield/internal/otp/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

// InMemoryStore keeps records per phone. One mutex covers rotate so that
// invalidate-then-insert is atomic for every phone.
type InMemoryStore struct {
	mu      sync.Mutex
	byPhone map[id.Phone][]*models.Record
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byPhone: make(map[id.Phone][]*models.Record)}
}

func (s *InMemoryStore) Rotate(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byPhone[rec.Phone] {
		existing.Used = true
	}
	cp := *rec
	s.byPhone[rec.Phone] = append(s.byPhone[rec.Phone], &cp)
	return nil
}

func (s *InMemoryStore) FindActive(_ context.Context, phone id.Phone) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.byPhone[phone]
	for i := len(records) - 1; i >= 0; i-- {
		if !records[i].Used {
			cp := *records[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no unused otp for phone: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) MarkUsed(_ context.Context, recordID id.OTPID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, records := range s.byPhone {
		for _, r := range records {
			if r.ID != recordID {
				continue
			}
			if r.Used {
				return fmt.Errorf("otp %s: %w", recordID, sentinel.ErrAlreadyUsed)
			}
			r.Used = true
			return nil
		}
	}
	return fmt.Errorf("otp %s: %w", recordID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for phone, records := range s.byPhone {
		kept := records[:0]
		for _, r := range records {
			if r.ExpiresAt.Before(before) {
				purged++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.byPhone, phone)
			continue
		}
		s.byPhone[phone] = kept
	}
	return purged, nil
}

// CountUnused is a test helper for the single-active invariant.
func (s *InMemoryStore) CountUnused(phone id.Phone) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.byPhone[phone] {
		if !r.Used {
			n++
		}
	}
	return n
}
