package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/pkg/events"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/telemetry"
)

// BreachDetector tears down every session of a user whose revoked refresh token was replayed.
type BreachDetector struct {
	tokens    *TokenService
	sessions  *SessionService
	blacklist *TokenBlacklist
	publisher events.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewBreachDetector constructs a BreachDetector.
func NewBreachDetector(tokens *TokenService, sessions *SessionService, blacklist *TokenBlacklist, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger) *BreachDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BreachDetector{
		tokens:    tokens,
		sessions:  sessions,
		blacklist: blacklist,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Respond revokes and deletes all sessions of the token's owner. It always
// returns an Unauthorized error demanding a fresh login.
func (d *BreachDetector) Respond(ctx context.Context, presentedToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "auth.breach")
	defer span.End()

	reauth := appErrors.Clone(appErrors.ErrUnauthorized, "session revoked, please log in again")

	claims, err := d.tokens.DecodeUnsafe(presentedToken)
	if err != nil || claims.Subject == "" {
		return reauth
	}
	userID := claims.Subject

	sessions, err := d.sessions.ListSessions(ctx, userID)
	if err != nil {
		d.logger.Error("breach response: list sessions failed", zap.String("user_id", userID), zap.Error(err))
	}
	for _, session := range sessions {
		for _, token := range []string{session.RefreshToken, session.AccessToken} {
			if err := d.blacklist.Revoke(ctx, token); err != nil {
				d.logger.Error("breach response: revoke failed", zap.String("user_id", userID), zap.String("session_id", session.ID), zap.Error(err))
			}
		}
	}

	if err := d.sessions.DeleteAllSessions(ctx, userID); err != nil {
		d.logger.Error("breach response: delete sessions failed", zap.String("user_id", userID), zap.Error(err))
	}

	d.metrics.RecordAuthEvent(AuthEventBreach)
	d.logger.Warn("refresh token replay detected, all sessions revoked", zap.String("user_id", userID), zap.Int("sessions", len(sessions)))

	if err := d.publisher.Publish(ctx, events.Event{
		Type:       events.TypeSessionBreach,
		UserID:     userID,
		OccurredAt: d.now(),
		Attributes: map[string]string{"token_id": claims.ID},
	}); err != nil {
		d.logger.Warn("breach event publish failed", zap.Error(err))
	}

	return reauth
}
