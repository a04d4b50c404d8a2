package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/middleware/requestid"
)

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		TraceID string `json:"traceId"`
		Stack   string `json:"stack"`
	} `json:"error"`
}

func serveError(t *testing.T, debug bool, err error) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(Debug(debug))
	r.GET("/", func(c *gin.Context) { Error(c, err) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(rec, req)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorIncludesTraceID(t *testing.T) {
	rec, body := serveError(t, false, appErrors.Clone(appErrors.ErrNotFound, "product not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "product not found", body.Error.Message)
	assert.Equal(t, "req-123", body.Error.TraceID)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestErrorStackOnlyInDebug(t *testing.T) {
	cause := appErrors.Wrap(errors.New("connection reset"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")

	_, hidden := serveError(t, false, cause)
	assert.Empty(t, hidden.Error.Stack)

	_, shown := serveError(t, true, cause)
	assert.Contains(t, shown.Error.Stack, "connection reset")
}

func TestErrorDoesNotMutateSharedErrors(t *testing.T) {
	_, _ = serveError(t, false, appErrors.ErrUnauthorized)
	assert.Empty(t, appErrors.ErrUnauthorized.TraceID)
}
