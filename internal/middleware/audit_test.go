package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/pkg/events"
)

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func TestAuditPublishesOnSuccessOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := &capturePublisher{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "admin-1"}})
	})
	r.PATCH("/users/:id/role", Audit(publisher, "user.update_role", nil), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/users/u-7/role", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/users/missing/role", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, events.TypeAdminAction, event.Type)
	assert.Equal(t, "admin-1", event.UserID)
	assert.Equal(t, "user.update_role", event.Attributes["action"])
	assert.Equal(t, "/users/:id/role", event.Attributes["path"])
	assert.Equal(t, "u-7", event.Attributes["target"])
	assert.Equal(t, "200", event.Attributes["status"])
}
