package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/pkg/events"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/telemetry"
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error)
	FindByUsernameWithPassword(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	BcryptCost int
}

// AuthDependencies bundles the collaborators of AuthService.
type AuthDependencies struct {
	Users     authUserRepository
	Tokens    *TokenService
	Sessions  *SessionService
	Blacklist *TokenBlacklist
	Breach    *BreachDetector
	Publisher events.Publisher
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// AuthService orchestrates register, login, logout and refresh.
type AuthService struct {
	users     authUserRepository
	tokens    *TokenService
	sessions  *SessionService
	blacklist *TokenBlacklist
	breach    *BreachDetector
	publisher events.Publisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	dummyHash []byte
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDependencies, config AuthConfig) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = bcrypt.DefaultCost
	}

	// Compared against when the identifier is unknown so both failure paths pay for one bcrypt run.
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	dummy, err := bcrypt.GenerateFromPassword(secret[:24], config.BcryptCost)
	if err != nil {
		deps.Logger.Warn("failed to build dummy password hash", zap.Error(err))
	}

	return &AuthService{
		users:     deps.Users,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		blacklist: deps.Blacklist,
		breach:    deps.Breach,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		config:    config,
		dummyHash: dummy,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates the account and opens its first session.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.SessionMetadata) (*models.AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.Register")
	defer span.End()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	conflict := appErrors.Clone(appErrors.ErrConflict, "username or email already in use")
	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing users")
	}
	if exists {
		return nil, conflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, conflict
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	result, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent(AuthEventRegister)
	s.emit(ctx, events.TypeRegister, user.ID, meta)
	return result, nil
}

// Login authenticates by email or username. Unknown identifiers and wrong
// passwords produce the same error after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.SessionMetadata) (*models.AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.Login")
	defer span.End()

	identifier := strings.TrimSpace(req.LoginIdentifier())
	if identifier == "" {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid login payload"),
			[]appErrors.FieldError{{Field: "identifier", Rule: "required"}})
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmailWithPassword(ctx, identifier)
	} else {
		user, err = s.users.FindByUsernameWithPassword(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			s.metrics.RecordAuthEvent(AuthEventLoginFailed)
			return nil, invalidCredentials()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.RecordAuthEvent(AuthEventLoginFailed)
		return nil, invalidCredentials()
	}

	result, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent(AuthEventLogin)
	s.emit(ctx, events.TypeLogin, user.ID, meta)
	return result, nil
}

// Logout revokes whichever tokens are present and drops the matching session.
// Failures are logged, never returned.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta models.SessionMetadata) {
	for _, token := range []string{accessToken, refreshToken} {
		if token == "" {
			continue
		}
		if err := s.blacklist.Revoke(ctx, token); err != nil {
			s.logger.Warn("logout: failed to blacklist token", zap.Error(err))
		}
	}

	if refreshToken == "" {
		return
	}
	claims, err := s.tokens.DecodeUnsafe(refreshToken)
	if err != nil || claims.Subject == "" {
		return
	}
	if err := s.sessions.DeleteSession(ctx, claims.Subject, refreshToken); err != nil {
		s.logger.Warn("logout: failed to delete session", zap.String("user_id", claims.Subject), zap.Error(err))
	}
	s.metrics.RecordAuthEvent(AuthEventLogout)
	s.emit(ctx, events.TypeLogout, claims.Subject, meta)
}

// Refresh rotates the session held by oldRefresh. Every failure collapses to
// the same Unauthorized error. A blacklisted token triggers breach response.
func (s *AuthService) Refresh(ctx context.Context, oldRefresh string, meta models.SessionMetadata) (*models.AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.Refresh")
	defer span.End()

	fail := func(reason string, err error) (*models.AuthResult, error) {
		s.metrics.RecordAuthEvent(AuthEventRefreshFailed)
		fields := []zap.Field{zap.String("reason", reason)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.logger.Info("refresh rejected", fields...)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "could not refresh")
	}

	if oldRefresh == "" {
		return fail("missing token", nil)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, oldRefresh)
	if err != nil {
		return fail("blacklist lookup", err)
	}
	if revoked {
		_ = s.breach.Respond(ctx, oldRefresh)
		return fail("replayed token", nil)
	}

	claims, err := s.tokens.VerifyRefresh(oldRefresh)
	if err != nil {
		return fail("verify", err)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return fail("load user", err)
	}

	pair, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return fail("issue", err)
	}

	snapshot, err := s.sessions.RotateSession(ctx, user.ID, oldRefresh, pair, meta)
	if err != nil {
		return fail("rotate", err)
	}
	if snapshot == nil {
		return fail("no live session", nil)
	}

	for _, token := range []string{snapshot.RefreshToken, snapshot.AccessToken} {
		if err := s.blacklist.Revoke(ctx, token); err != nil {
			s.logger.Warn("refresh: failed to blacklist rotated token", zap.String("session_id", snapshot.ID), zap.Error(err))
		}
	}

	s.metrics.RecordAuthEvent(AuthEventRefresh)
	return &models.AuthResult{User: user.Info(), Tokens: pair}, nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User, meta models.SessionMetadata) (*models.AuthResult, error) {
	pair, err := s.tokens.IssueTokenPair(user)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.CreateSession(ctx, user.ID, pair, meta); err != nil {
		return nil, err
	}
	return &models.AuthResult{User: user.Info(), Tokens: pair}, nil
}

func (s *AuthService) emit(ctx context.Context, eventType, userID string, meta models.SessionMetadata) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: s.now(),
		Attributes: map[string]string{"ip": meta.IPAddress, "user_agent": meta.UserAgent},
	})
	if err != nil {
		s.logger.Warn("security event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func invalidCredentials() error {
	return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
}

func validationError(err error, message string) error {
	return appErrors.Clone(appErrors.Normalize(err), message)
}
