package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/storefront-api/internal/models"
)

const sessionColumns = `id, user_id, refresh_token, access_token, user_agent, ip_address, created_at, updated_at, expires_at`

// SessionRepository persists one row per logged-in device.
type SessionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := r.now()
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, user_id, refresh_token, access_token, user_agent, ip_address, created_at, updated_at, expires_at) VALUES (:id, :user_id, :refresh_token, :access_token, :user_agent, :ip_address, :created_at, :updated_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Rotate swaps the tokens of the live session matching (userID, oldRefresh) in
// one statement and returns the replaced values. A nil snapshot means no live
// session matched, e.g. a concurrent refresh already rotated it.
func (r *SessionRepository) Rotate(ctx context.Context, userID, oldRefresh string, next models.Session) (*models.SessionSnapshot, error) {
	const query = `UPDATE sessions s
SET refresh_token = $3, access_token = $4, expires_at = $5, user_agent = COALESCE(NULLIF($6, ''), s.user_agent), ip_address = COALESCE(NULLIF($7, ''), s.ip_address), updated_at = $8
FROM (SELECT id, refresh_token, access_token FROM sessions WHERE user_id = $1 AND refresh_token = $2 AND expires_at > $8 FOR UPDATE) old
WHERE s.id = old.id
RETURNING old.id, old.refresh_token, old.access_token`

	var snapshot models.SessionSnapshot
	err := r.db.QueryRowxContext(ctx, query,
		userID, oldRefresh,
		next.RefreshToken, next.AccessToken, next.ExpiresAt,
		next.UserAgent, next.IPAddress, r.now(),
	).StructScan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rotate session: %w", err)
	}
	return &snapshot, nil
}

// ListByUser returns every session of the user, expired or not.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at ASC`
	sessions := []models.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByRefreshToken removes the session of the user holding the refresh token.
func (r *SessionRepository) DeleteByRefreshToken(ctx context.Context, userID, refreshToken string) (bool, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1 AND refresh_token = $2`
	res, err := r.db.ExecContext(ctx, query, userID, refreshToken)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return affected > 0, nil
}

// DeleteAllByUser removes every session of the user.
func (r *SessionRepository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes sessions whose expiry has passed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
