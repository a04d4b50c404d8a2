package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/pkg/response"
)

// CartHandler exposes the authenticated user's cart.
type CartHandler struct {
	service *service.CartService
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{service: svc}
}

// Get godoc
// @Summary Get cart
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := h.service.Get(c.Request.Context(), claims.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}

// AddItem godoc
// @Summary Add cart item
// @Tags Cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AddCartItemRequest true "Item"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid cart item"))
		return
	}
	cart, err := h.service.AddItem(c.Request.Context(), claims.UserID(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}

// UpdateItem godoc
// @Summary Set cart item quantity
// @Tags Cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param variantId path string true "Variant ID"
// @Param payload body models.UpdateCartItemRequest true "Quantity"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cart/items/{variantId} [patch]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid cart item"))
		return
	}
	cart, err := h.service.UpdateItem(c.Request.Context(), claims.UserID(), c.Param("variantId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}

// RemoveItem godoc
// @Summary Remove cart item
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Param variantId path string true "Variant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cart/items/{variantId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := h.service.RemoveItem(c.Request.Context(), claims.UserID(), c.Param("variantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}

// Clear godoc
// @Summary Empty cart
// @Tags Cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	cart, err := h.service.Clear(c.Request.Context(), claims.UserID())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}
