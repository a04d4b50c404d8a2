package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing access token claims.
	ContextUserKey = "currentUser"
	// ContextAccessTokenKey holds the raw access token that authenticated the request.
	ContextAccessTokenKey = "accessToken"

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type accessVerifier interface {
	VerifyAccess(token string) (*models.TokenClaims, error)
}

type revocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Authenticate requires a valid, unrevoked access token from the accessToken
// cookie or a Bearer header.
func Authenticate(tokens accessVerifier, blacklist revocationChecker, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	rejected := appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired access token")

	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			return
		}

		revoked, err := blacklist.IsRevoked(c.Request.Context(), token)
		if err != nil {
			logger.Error("blacklist lookup failed", zap.Error(err))
			abort(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not verify session"))
			return
		}
		if revoked {
			abort(c, rejected)
			return
		}

		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			abort(c, rejected)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextAccessTokenKey, token)
		c.Next()
	}
}

// AccessToken returns the access token carried by the request, preferring the cookie.
func AccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Claims returns the authenticated claims, or nil.
func Claims(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.TokenClaims)
	return claims
}

func abort(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
