package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/response"
)

// OrderHandler reserves the order routes; checkout is not offered yet.
type OrderHandler struct{}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler() *OrderHandler {
	return &OrderHandler{}
}

// Create godoc
// @Summary Place order
// @Tags Orders
// @Security BearerAuth
// @Failure 501 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) { notImplemented(c) }

// List godoc
// @Summary List orders
// @Tags Orders
// @Security BearerAuth
// @Failure 501 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) { notImplemented(c) }

// Get godoc
// @Summary Get order
// @Tags Orders
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Failure 501 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) { notImplemented(c) }

func notImplemented(c *gin.Context) {
	response.Error(c, appErrors.Clone(appErrors.ErrNotImplemented, "orders are not available yet"))
}
