// Package revocation tracks access-token IDs revoked before their expiry.
package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farmshield/pkg/platform/sentinel"
)

// InMemoryTRL is a single-node token revocation list.
type InMemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewInMemoryTRL() *InMemoryTRL {
	return &InMemoryTRL{revoked: make(map[string]time.Time), now: time.Now}
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if jti == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = t.now().Add(ttl)
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	until, ok := t.revoked[jti]
	return ok && t.now().Before(until), nil
}

// Sweep drops entries whose tokens would have expired anyway.
func (t *InMemoryTRL) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	n := 0
	for jti, until := range t.revoked {
		if !now.Before(until) {
			delete(t.revoked, jti)
			n++
		}
	}
	return n
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}
