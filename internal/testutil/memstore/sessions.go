package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/models"
)

// Sessions mirrors the sessions table, including atomic rotation.
type Sessions struct {
	mu       sync.Mutex
	clock    *Clock
	sessions map[string]models.Session
}

// NewSessions builds an empty session store.
func NewSessions(clock *Clock) *Sessions {
	return &Sessions{clock: clock, sessions: map[string]models.Session{}}
}

// Create inserts a session.
func (s *Sessions) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.CreatedAt = s.clock.Now()
	session.UpdatedAt = session.CreatedAt
	s.sessions[session.ID] = *session
	return nil
}

// Rotate swaps the tokens of the live session holding oldRefresh.
func (s *Sessions) Rotate(_ context.Context, userID, oldRefresh string, next models.Session) (*models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for id, session := range s.sessions {
		if session.UserID != userID || session.RefreshToken != oldRefresh || !session.ExpiresAt.After(now) {
			continue
		}
		snapshot := &models.SessionSnapshot{ID: id, RefreshToken: session.RefreshToken, AccessToken: session.AccessToken}
		session.RefreshToken = next.RefreshToken
		session.AccessToken = next.AccessToken
		session.ExpiresAt = next.ExpiresAt
		if next.UserAgent != "" {
			session.UserAgent = next.UserAgent
		}
		if next.IPAddress != "" {
			session.IPAddress = next.IPAddress
		}
		session.UpdatedAt = now
		s.sessions[id] = session
		return snapshot, nil
	}
	return nil, nil
}

// ListByUser returns the user's sessions, oldest first.
func (s *Sessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Session{}
	for _, session := range s.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteByRefreshToken removes the matching session.
func (s *Sessions) DeleteByRefreshToken(_ context.Context, userID, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.UserID == userID && session.RefreshToken == refreshToken {
			delete(s.sessions, id)
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllByUser removes every session of the user.
func (s *Sessions) DeleteAllByUser(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes sessions expiring at or before the cutoff.
func (s *Sessions) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if !session.ExpiresAt.After(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored sessions for the user.
func (s *Sessions) Count(userID string) int {
	sessions, _ := s.ListByUser(context.Background(), userID)
	return len(sessions)
}
