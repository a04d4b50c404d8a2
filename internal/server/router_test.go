package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/storefront-api/internal/handler"
	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/internal/testutil/memstore"
	"github.com/noah-isme/storefront-api/pkg/config"
	"github.com/noah-isme/storefront-api/pkg/events"
)

const (
	shoesCategory = "5f0c8a52-8a3f-4d6b-9d53-2c1b7a3e9f01"
	otherCategory = "9b1d7e3c-2c4a-4e8f-8d6a-1f2e3d4c5b03"
	sellerID      = "c3a1b2d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	variantOne    = "aaaaaaaa-0000-4000-8000-000000000001"
)

type testServer struct {
	router   *gin.Engine
	users    *memstore.Users
	sessions *memstore.Sessions
	events   *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) ofType(eventType string) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func seedProduct(n int, created time.Time) models.Product {
	id := []string{
		"11111111-0000-4000-8000-000000000001",
		"11111111-0000-4000-8000-000000000002",
		"11111111-0000-4000-8000-000000000003",
	}[n]
	variant := []string{variantOne, "aaaaaaaa-0000-4000-8000-000000000002", "aaaaaaaa-0000-4000-8000-000000000003"}[n]
	return models.Product{
		ID:         id,
		Name:       []string{"Trail Runner", "Road Runner", "Leather Boot"}[n],
		Brand:      "Acme",
		CategoryID: shoesCategory,
		SellerID:   sellerID,
		Active:     true,
		Rating:     4,
		Images:     []string{},
		CreatedAt:  created.Add(time.Duration(n) * time.Hour),
		Variants: []models.Variant{{
			ID:      variant,
			SKU:     "SKU-" + variant[len(variant)-1:],
			Options: models.Options{"Size": "42"},
			Active:  true,
			Images:  []string{},
			Inventory: []models.InventoryItem{{
				ID:    "inv-" + variant,
				Stock: 5,
				Price: models.Money{Amount: float64(50 + 10*n), Currency: "USD"},
			}},
		}},
	}
}

func newTestServer(t *testing.T, authLimiter *limiter.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:         "test",
		ServiceName: "storefront-test",
		JWT: config.JWTConfig{
			AccessSecret:      "access-secret",
			RefreshSecret:     "refresh-secret",
			Expiration:        15 * time.Minute,
			RefreshExpiration: 7 * 24 * time.Hour,
			Issuer:            "storefront-test",
		},
		Catalog: config.CatalogConfig{Enabled: true, CacheTTL: time.Minute},
		Cart:    config.CartConfig{Enabled: true},
		Orders:  config.OrdersConfig{Enabled: true},
	}

	now := time.Now().UTC()
	clock := memstore.NewClock(now)
	users := memstore.NewUsers(clock)
	sessionStore := memstore.NewSessions(clock)
	catalog := memstore.NewCatalog(clock, seedProduct(0, now), seedProduct(1, now), seedProduct(2, now))
	metrics := service.NewMetricsService()
	log := &eventLog{}

	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.Expiration,
		RefreshTTL:    cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})
	sessions := service.NewSessionService(sessionStore, metrics, nil, 0)
	blacklist := service.NewTokenBlacklist(memstore.NewBlacklist(clock), tokens, nil)
	breach := service.NewBreachDetector(tokens, sessions, blacklist, log, metrics, nil)
	auth := service.NewAuthService(service.AuthDependencies{
		Users:     users,
		Tokens:    tokens,
		Sessions:  sessions,
		Blacklist: blacklist,
		Breach:    breach,
		Publisher: log,
		Metrics:   metrics,
	}, service.AuthConfig{BcryptCost: bcrypt.MinCost})

	router := NewRouter(Dependencies{
		Config:      cfg,
		Metrics:     metrics,
		Tokens:      tokens,
		Blacklist:   blacklist,
		Auth:        auth,
		Addresses:   service.NewAddressService(users, nil, nil),
		Catalog:     service.NewCatalogService(catalog, nil, metrics, nil, nil),
		Carts:       service.NewCartService(memstore.NewCarts(clock), catalog, nil, nil),
		Users:       service.NewUserService(users, log, nil, nil),
		Publisher:   log,
		AuthLimiter: authLimiter,
		Readiness: map[string]handler.ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})
	return &testServer{router: router, users: users, sessions: sessionStore, events: log}
}

type request struct {
	method  string
	path    string
	body    interface{}
	cookies []*http.Cookie
	bearer  string
	reqID   string
}

func (s *testServer) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if r.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	if r.reqID != "" {
		req.Header.Set("X-Request-ID", r.reqID)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func cookieMap(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func authCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	cookies := cookieMap(rec)
	return []*http.Cookie{
		{Name: middleware.AccessTokenCookie, Value: cookies[middleware.AccessTokenCookie].Value},
		{Name: middleware.RefreshTokenCookie, Value: cookies[middleware.RefreshTokenCookie].Value},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		TraceID string `json:"traceId"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func register(t *testing.T, s *testServer, username, email string) *httptest.ResponseRecorder {
	t.Helper()
	rec := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: gin.H{
		"username": username, "email": email, "password": "password123",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return rec
}

func TestAuthScenario(t *testing.T) {
	s := newTestServer(t, nil)

	// register sets both cookies
	reg := register(t, s, "alice", "alice@x.com")
	cookies := cookieMap(reg)
	access, refresh := cookies[middleware.AccessTokenCookie], cookies[middleware.RefreshTokenCookie]
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, 900, access.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, 604800, refresh.MaxAge)
	assert.Equal(t, "/api/auth", refresh.Path)

	var result models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, reg).Data, &result))
	assert.Equal(t, 1, s.sessions.Count(result.User.ID))

	// wrong password and unknown email are indistinguishable
	wrong := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", reqID: "fixed",
		body: gin.H{"identifier": "alice@x.com", "password": "wrong-password"}})
	unknown := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", reqID: "fixed",
		body: gin.H{"identifier": "nobody@x.com", "password": "wrong-password"}})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.Less(t, cookieMap(wrong)[middleware.AccessTokenCookie].MaxAge, 0)

	// a refresh token carrying a foreign signature is rejected
	parts := strings.Split(refresh.Value, ".")
	foreignSig := strings.Split(access.Value, ".")[2]
	tampered := s.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token",
		body: gin.H{"refreshToken": parts[0] + "." + parts[1] + "." + foreignSig}})
	assert.Equal(t, http.StatusUnauthorized, tampered.Code)
	assert.Equal(t, "could not refresh", decode(t, tampered).Error.Message)

	me := s.do(t, request{method: http.MethodGet, path: "/api/auth/me", cookies: authCookies(reg)})
	require.Equal(t, http.StatusOK, me.Code)

	verify := s.do(t, request{method: http.MethodGet, path: "/api/auth/verify", bearer: access.Value})
	require.Equal(t, http.StatusOK, verify.Code)
	assert.Contains(t, verify.Body.String(), `"username":"alice"`)

	// logout clears cookies and kills the old access token
	logout := s.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookies: authCookies(reg)})
	assert.Equal(t, http.StatusOK, logout.Code)
	cleared := cookieMap(logout)
	assert.Less(t, cleared[middleware.AccessTokenCookie].MaxAge, 0)
	assert.Less(t, cleared[middleware.RefreshTokenCookie].MaxAge, 0)
	assert.Equal(t, 0, s.sessions.Count(result.User.ID))

	after := s.do(t, request{method: http.MethodGet, path: "/api/auth/me", bearer: access.Value})
	assert.Equal(t, http.StatusUnauthorized, after.Code)
	assert.Equal(t, "invalid or expired access token", decode(t, after).Error.Message)

	// logging out again with the same tokens is still fine
	again := s.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookies: authCookies(reg)})
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestRefreshReplayRevokesEverySession(t *testing.T) {
	s := newTestServer(t, nil)
	reg := register(t, s, "bob", "bob@x.com")
	var result models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, reg).Data, &result))

	rotated := s.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token", cookies: authCookies(reg)})
	require.Equal(t, http.StatusOK, rotated.Code, rotated.Body.String())
	assert.Equal(t, 1, s.sessions.Count(result.User.ID))

	replay := s.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token", cookies: authCookies(reg)})
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, 0, s.sessions.Count(result.User.ID))
	require.Len(t, s.events.ofType(events.TypeSessionBreach), 1)

	// the pair handed out by the legitimate rotation is dead too
	me := s.do(t, request{method: http.MethodGet, path: "/api/auth/me", cookies: authCookies(rotated)})
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/api/auth/me", "/api/cart", "/api/orders", "/api/auth/addresses"} {
		rec := s.do(t, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		env := decode(t, rec)
		assert.Equal(t, "authentication required", env.Error.Message, path)
		assert.NotEmpty(t, env.Error.TraceID, path)
	}
}

type searchBody struct {
	Success  bool                  `json:"success"`
	Products []models.SearchResult `json:"products"`
	Meta     models.SearchMeta     `json:"meta"`
}

func search(t *testing.T, s *testServer, query string) (int, searchBody) {
	t.Helper()
	rec := s.do(t, request{method: http.MethodGet, path: "/api/products/storefront/search" + query})
	var body searchBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestStorefrontSearch(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := search(t, s, "?limit=2&sortBy=price&sortOrder=asc")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Products, 2)
	assert.Equal(t, 50.0, body.Products[0].Price.Amount)
	assert.Equal(t, models.SearchMeta{TotalProducts: 3, CurrentPage: 1, TotalPages: 2, HasNextPage: true}, body.Meta)

	_, beyond := search(t, s, "?limit=2&page=5")
	assert.Empty(t, beyond.Products)
	assert.NotNil(t, beyond.Products)
	assert.Equal(t, 3, beyond.Meta.TotalProducts)

	_, none := search(t, s, "?category="+otherCategory)
	assert.Empty(t, none.Products)
	assert.Zero(t, none.Meta.TotalProducts)

	_, text := search(t, s, "?search=runner&sortBy=relevance")
	assert.Len(t, text.Products, 2)

	status, _ = search(t, s, "?minPrice=10&maxPrice=5")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProductDetailAndCreate(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, request{method: http.MethodGet, path: "/api/products/11111111-0000-4000-8000-000000000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache_hit":false`)

	missing := s.do(t, request{method: http.MethodGet, path: "/api/products/not-a-uuid"})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	reg := register(t, s, "carol", "carol@x.com")
	payload := gin.H{
		"name": "Court Shoe", "brand": "Acme", "categoryId": shoesCategory,
		"variants": []gin.H{{"sku": "CS-1", "price": 70, "currency": "USD", "stock": 3}},
	}
	forbidden := s.do(t, request{method: http.MethodPost, path: "/api/products", cookies: authCookies(reg), body: payload})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	var result models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, reg).Data, &result))
	s.users.SetRole(result.User.ID, models.RoleSeller)
	login := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"identifier": "carol", "password": "password123"}})
	require.Equal(t, http.StatusOK, login.Code)

	created := s.do(t, request{method: http.MethodPost, path: "/api/products", cookies: authCookies(login), body: payload})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	_, body := search(t, s, "?search=court")
	require.Len(t, body.Products, 1)
	assert.Equal(t, result.User.ID, body.Products[0].SellerID)
}

func TestCartAndOrders(t *testing.T) {
	s := newTestServer(t, nil)
	cookies := authCookies(register(t, s, "dave", "dave@x.com"))

	add := s.do(t, request{method: http.MethodPost, path: "/api/cart/items", cookies: cookies, body: gin.H{"variantId": variantOne, "quantity": 2}})
	require.Equal(t, http.StatusOK, add.Code, add.Body.String())
	var cart models.Cart
	require.NoError(t, json.Unmarshal(decode(t, add).Data, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	unknown := s.do(t, request{method: http.MethodPost, path: "/api/cart/items", cookies: cookies, body: gin.H{"variantId": "aaaaaaaa-0000-4000-8000-000000000099", "quantity": 1}})
	assert.Equal(t, http.StatusNotFound, unknown.Code)

	patch := s.do(t, request{method: http.MethodPatch, path: "/api/cart/items/" + variantOne, cookies: cookies, body: gin.H{"quantity": 0}})
	require.Equal(t, http.StatusOK, patch.Code)
	require.NoError(t, json.Unmarshal(decode(t, patch).Data, &cart))
	assert.Empty(t, cart.Items)

	order := s.do(t, request{method: http.MethodPost, path: "/api/orders", cookies: cookies})
	assert.Equal(t, http.StatusNotImplemented, order.Code)
	assert.Equal(t, "NOT_IMPLEMENTED", decode(t, order).Error.Code)
}

func TestAddressBook(t *testing.T) {
	s := newTestServer(t, nil)
	cookies := authCookies(register(t, s, "erin", "erin@x.com"))
	payload := gin.H{"recipient": "Erin", "phone": "555", "line1": "1 Main", "city": "Town", "postalCode": "111", "country": "US"}

	created := s.do(t, request{method: http.MethodPost, path: "/api/auth/addAddress", cookies: cookies, body: payload})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var address models.Address
	require.NoError(t, json.Unmarshal(decode(t, created).Data, &address))
	assert.True(t, address.IsDefault)

	payload["city"] = "City"
	updated := s.do(t, request{method: http.MethodPut, path: "/api/auth/updateAddress/" + address.ID, cookies: cookies, body: payload})
	assert.Equal(t, http.StatusOK, updated.Code)

	deleted := s.do(t, request{method: http.MethodDelete, path: "/api/auth/deleteAddress/" + address.ID, cookies: cookies})
	assert.Equal(t, http.StatusNoContent, deleted.Code)

	gone := s.do(t, request{method: http.MethodDelete, path: "/api/auth/deleteAddress/" + address.ID, cookies: cookies})
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestAuthRateLimit(t *testing.T) {
	rate, err := limiter.NewRateFromFormatted("2-M")
	require.NoError(t, err)
	s := newTestServer(t, limiter.New(memory.NewStore(), rate))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"identifier": "x", "password": "y"}})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestOpsEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, request{method: http.MethodGet, path: "/health"}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, request{method: http.MethodGet, path: "/ready"}).Code)

	metrics := s.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "http_requests_total")

	failing := handler.NewMetricsHandler(nil, map[string]handler.ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/ready", failing.Ready)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestAdminRoleManagement(t *testing.T) {
	s := newTestServer(t, nil)

	member := register(t, s, "frank", "frank@x.com")
	var memberResult models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, member).Data, &memberResult))

	adminReg := register(t, s, "grace", "grace@x.com")
	var adminResult models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, adminReg).Data, &adminResult))

	rolePath := "/api/admin/users/" + memberResult.User.ID + "/role"
	denied := s.do(t, request{method: http.MethodPatch, path: rolePath, cookies: authCookies(member), body: gin.H{"role": "seller"}})
	assert.Equal(t, http.StatusForbidden, denied.Code)

	s.users.SetRole(adminResult.User.ID, models.RoleAdmin)
	login := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: gin.H{"identifier": "grace@x.com", "password": "password123"}})
	require.Equal(t, http.StatusOK, login.Code)
	admin := authCookies(login)

	list := s.do(t, request{method: http.MethodGet, path: "/api/admin/users?page_size=1", cookies: admin})
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"total_count":2`)

	badPage := s.do(t, request{method: http.MethodGet, path: "/api/admin/users?page=abc", cookies: admin})
	assert.Equal(t, http.StatusBadRequest, badPage.Code)

	promoted := s.do(t, request{method: http.MethodPatch, path: rolePath, cookies: admin, body: gin.H{"role": "seller"}})
	require.Equal(t, http.StatusOK, promoted.Code, promoted.Body.String())
	assert.Contains(t, promoted.Body.String(), `"role":"seller"`)

	self := s.do(t, request{method: http.MethodPatch, path: "/api/admin/users/" + adminResult.User.ID + "/role", cookies: admin, body: gin.H{"role": "user"}})
	assert.Equal(t, http.StatusForbidden, self.Code)

	changed := s.events.ofType(events.TypeRoleChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, memberResult.User.ID, changed[0].UserID)
	assert.Len(t, s.events.ofType(events.TypeAdminAction), 2)

	// the promoted role applies once the member refreshes
	refreshed := s.do(t, request{method: http.MethodPost, path: "/api/auth/refresh-token", cookies: authCookies(member)})
	require.Equal(t, http.StatusOK, refreshed.Code)
	var after models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, refreshed).Data, &after))
	assert.Equal(t, models.RoleSeller, after.User.Role)
}
