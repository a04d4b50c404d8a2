package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
)

const (
	defaultAccessCookieTTL  = 15 * time.Minute
	defaultRefreshCookieTTL = 7 * 24 * time.Hour
	refreshCookiePath       = "/api/auth"
)

// CookieConfig controls the attributes of the auth cookies. Zero TTLs fall
// back to the default token lifetimes.
type CookieConfig struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) set(c *gin.Context, pair models.TokenPair) {
	accessTTL, refreshTTL := cfg.AccessTTL, cfg.RefreshTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessCookieTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshCookieTTL
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken, int(accessTTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken, int(refreshTTL.Seconds()), refreshCookiePath, cfg.Domain, cfg.Secure, true)
}

func (cfg CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, refreshCookiePath, cfg.Domain, cfg.Secure, true)
}
