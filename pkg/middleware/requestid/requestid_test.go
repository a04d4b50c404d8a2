package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (header, fromGin, fromCtx string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Header().Get(Header), fromGin, fromCtx
}

func TestInboundIDIsReused(t *testing.T) {
	header, fromGin, fromCtx := serve(t, "edge-7f3a:1")
	assert.Equal(t, "edge-7f3a:1", header)
	assert.Equal(t, header, fromGin)
	assert.Equal(t, header, fromCtx)
}

func TestMissingOrUnsafeIDIsReplaced(t *testing.T) {
	for _, inbound := range []string{"", "bad id\nforged=1", strings.Repeat("a", maxLength+1)} {
		header, fromGin, _ := serve(t, inbound)
		_, err := uuid.Parse(header)
		assert.NoError(t, err, "inbound %q", inbound)
		assert.Equal(t, header, fromGin)
	}
}
