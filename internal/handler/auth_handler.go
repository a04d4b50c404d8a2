package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth and address services.
type AuthHandler struct {
	service   *service.AuthService
	addresses *service.AddressService
	cookies   CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, addresses *service.AddressService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{service: svc, addresses: addresses, cookies: cookies}
}

// Register godoc
// @Summary Register account
// @Description Create a user account and open its first session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Register payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, sessionMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.set(c, res.Tokens)
	response.Created(c, res)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by email or username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.cookies.clear(c)
		response.Error(c, bindError(err, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req, sessionMetadata(c))
	if err != nil {
		h.cookies.clear(c)
		response.Error(c, err)
		return
	}

	h.cookies.set(c, res.Tokens)
	response.JSON(c, http.StatusOK, res, nil)
}

// Refresh godoc
// @Summary Rotate session tokens
// @Description Exchange the refresh token (cookie or body) for a new pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	res, err := h.service.Refresh(c.Request.Context(), refreshToken(c), sessionMetadata(c))
	if err != nil {
		h.cookies.clear(c)
		response.Error(c, err)
		return
	}

	h.cookies.set(c, res.Tokens)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the presented tokens and drop the session. Always succeeds.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), middleware.AccessToken(c), refreshToken(c), sessionMetadata(c))
	h.cookies.clear(c)
	response.Message(c, http.StatusOK, "logged out")
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.service.Me(c.Request.Context(), claims.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Verify godoc
// @Summary Verify access token
// @Description Returns the identity bound to the presented access token
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": claims.Info()}, nil)
}

// Health reports auth service liveness.
func (h *AuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
}

// ListAddresses godoc
// @Summary List addresses
// @Tags Addresses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/addresses [get]
func (h *AuthHandler) ListAddresses(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	addresses, err := h.addresses.List(c.Request.Context(), claims.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, addresses, nil)
}

// AddAddress godoc
// @Summary Add address
// @Tags Addresses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AddressRequest true "Address"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/addAddress [post]
func (h *AuthHandler) AddAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid address payload"))
		return
	}
	address, err := h.addresses.Add(c.Request.Context(), claims.UserID(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, address)
}

// UpdateAddress godoc
// @Summary Replace address
// @Tags Addresses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Address ID"
// @Param payload body models.AddressRequest true "Address"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auth/updateAddress/{id} [put]
func (h *AuthHandler) UpdateAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid address payload"))
		return
	}
	address, err := h.addresses.Update(c.Request.Context(), claims.UserID(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, address, nil)
}

// DeleteAddress godoc
// @Summary Delete address
// @Tags Addresses
// @Security BearerAuth
// @Param id path string true "Address ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /auth/deleteAddress/{id} [delete]
func (h *AuthHandler) DeleteAddress(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.addresses.Delete(c.Request.Context(), claims.UserID(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func refreshToken(c *gin.Context) string {
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	var body models.RefreshRequest
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}
