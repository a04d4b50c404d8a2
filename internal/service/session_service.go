package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Rotate(ctx context.Context, userID, oldRefresh string, next models.Session) (*models.SessionSnapshot, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	DeleteByRefreshToken(ctx context.Context, userID, refreshToken string) (bool, error)
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionService manages per-device sessions.
type SessionService struct {
	store         sessionStore
	metrics       *MetricsService
	logger        *zap.Logger
	sweepInterval time.Duration
	now           func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store sessionStore, metrics *MetricsService, logger *zap.Logger, sweepInterval time.Duration) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:         store,
		metrics:       metrics,
		logger:        logger,
		sweepInterval: sweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession records a new session for the issued pair.
func (s *SessionService) CreateSession(ctx context.Context, userID string, pair models.TokenPair, meta models.SessionMetadata) (*models.Session, error) {
	session := &models.Session{
		UserID:       userID,
		RefreshToken: pair.RefreshToken,
		AccessToken:  pair.AccessToken,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
		ExpiresAt:    pair.RefreshExpiresAt,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// RotateSession atomically swaps the session's tokens. A nil snapshot means no
// live session held oldRefresh.
func (s *SessionService) RotateSession(ctx context.Context, userID, oldRefresh string, pair models.TokenPair, meta models.SessionMetadata) (*models.SessionSnapshot, error) {
	started := time.Now()
	snapshot, err := s.store.Rotate(ctx, userID, oldRefresh, models.Session{
		RefreshToken: pair.RefreshToken,
		AccessToken:  pair.AccessToken,
		ExpiresAt:    pair.RefreshExpiresAt,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
	})
	s.metrics.ObserveDBQuery("sessions.rotate", time.Since(started))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate session")
	}
	return snapshot, nil
}

// ListSessions returns every session of the user.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// DeleteSession removes the session holding refreshToken.
func (s *SessionService) DeleteSession(ctx context.Context, userID, refreshToken string) error {
	if _, err := s.store.DeleteByRefreshToken(ctx, userID, refreshToken); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// DeleteAllSessions removes every session of the user.
func (s *SessionService) DeleteAllSessions(ctx context.Context, userID string) error {
	if _, err := s.store.DeleteAllByUser(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
	}
	return nil
}

// Sweep deletes sessions whose refresh token has expired.
func (s *SessionService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.AddSessionsSwept(n)
	return n, nil
}

// StartSweeper boots a goroutine that sweeps expired sessions until ctx ends.
func (s *SessionService) StartSweeper(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Sugar().Warnw("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Sugar().Infow("expired sessions swept", "count", n)
				}
			}
		}
	}()
}
