package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/response"
)

// currentUser returns the authenticated claims or writes a 401.
func currentUser(c *gin.Context) (*models.TokenClaims, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
		return nil, false
	}
	return claims, true
}

func sessionMetadata(c *gin.Context) models.SessionMetadata {
	return models.SessionMetadata{UserAgent: c.GetHeader("User-Agent"), IPAddress: c.ClientIP()}
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
