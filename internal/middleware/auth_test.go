package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

type stubVerifier map[string]*models.TokenClaims

func (s stubVerifier) VerifyAccess(token string) (*models.TokenClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrInvalidToken
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	return s.revoked[token], s.err
}

func newAuthRouter(revocations stubRevocations, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	verifier := stubVerifier{
		"good":   {Role: models.RoleUser},
		"seller": {Role: models.RoleSeller},
	}
	r := gin.New()
	chain := []gin.HandlerFunc{Authenticate(verifier, revocations, nil)}
	if len(roles) > 0 {
		chain = append(chain, RequireRoles(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": Claims(c).Role, "token": c.GetString(ContextAccessTokenKey)})
	})
	r.GET("/protected", chain...)
	return r
}

func doRequest(r http.Handler, mutate func(*http.Request)) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	body := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func errorMessage(body map[string]interface{}) string {
	errObj, _ := body["error"].(map[string]interface{})
	msg, _ := errObj["message"].(string)
	return msg
}

func TestAuthenticateAcceptsCookieAndBearer(t *testing.T) {
	r := newAuthRouter(stubRevocations{})

	rec, body := doRequest(r, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "good", body["token"])

	rec, _ = doRequest(r, func(req *http.Request) { req.Header.Set("Authorization", "bearer good") })
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticateCookieWinsOverHeader(t *testing.T) {
	r := newAuthRouter(stubRevocations{})
	rec, body := doRequest(r, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "seller"})
		req.Header.Set("Authorization", "Bearer good")
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller", body["role"])
}

func TestAuthenticateRejections(t *testing.T) {
	cases := []struct {
		name    string
		rev     stubRevocations
		mutate  func(*http.Request)
		status  int
		message string
	}{
		{"missing", stubRevocations{}, nil, http.StatusUnauthorized, "authentication required"},
		{"wrong scheme", stubRevocations{}, func(req *http.Request) { req.Header.Set("Authorization", "Basic good") }, http.StatusUnauthorized, "authentication required"},
		{"invalid", stubRevocations{}, func(req *http.Request) { req.Header.Set("Authorization", "Bearer forged") }, http.StatusUnauthorized, "invalid or expired access token"},
		{"revoked", stubRevocations{revoked: map[string]bool{"good": true}}, func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusUnauthorized, "invalid or expired access token"},
		{"store down", stubRevocations{err: errors.New("redis down")}, func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusInternalServerError, "could not verify session"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doRequest(newAuthRouter(tc.rev), tc.mutate)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, errorMessage(body))
		})
	}
}

func TestRequireRoles(t *testing.T) {
	r := newAuthRouter(stubRevocations{}, models.RoleSeller, models.RoleAdmin)

	rec, _ := doRequest(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doRequest(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer seller") })
	assert.Equal(t, http.StatusOK, rec.Code)
}
