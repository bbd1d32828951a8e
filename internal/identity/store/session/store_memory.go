// Package session persists refresh-token sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.Mutex
	byID   map[id.SessionID]*models.Session
	byHash map[string]id.SessionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.SessionID]*models.Session),
		byHash: make(map[string]id.SessionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byHash[sess.RefreshTokenHash]; dup {
		return fmt.Errorf("session refresh token: %w", sentinel.ErrConflict)
	}
	cp := *sess
	s.byID[sess.ID] = &cp
	s.byHash[sess.RefreshTokenHash] = sess.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (s *InMemoryStore) FindByRefreshHash(_ context.Context, hash string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID, ok := s.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("session by refresh token: %w", sentinel.ErrNotFound)
	}
	cp := *s.byID[sessionID]
	return &cp, nil
}

// Rotate swaps the refresh token only if oldHash is still current, so a
// replayed refresh token loses to the one that already rotated.
func (s *InMemoryStore) Rotate(_ context.Context, sessionID id.SessionID, oldHash, newHash, accessJTI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if sess.RevokedAt != nil || sess.RefreshTokenHash != oldHash {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrConflict)
	}
	delete(s.byHash, oldHash)
	sess.RefreshTokenHash = newHash
	sess.AccessTokenJTI = accessJTI
	s.byHash[newHash] = sessionID
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if sess.RevokedAt != nil {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrAlreadyUsed)
	}
	sess.RevokedAt = &at
	return nil
}
