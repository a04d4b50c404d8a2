package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/pkg/response"
)

// CatalogHandler exposes storefront search and product endpoints.
type CatalogHandler struct {
	service *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Search godoc
// @Summary Storefront search
// @Description Filter, sort and page sellable inventory rows
// @Tags Products
// @Produce json
// @Param search query string false "Free text"
// @Param category query string false "Comma separated category ids"
// @Param brand query string false "Comma separated brands"
// @Param seller query string false "Seller id"
// @Param minPrice query number false "Minimum price"
// @Param maxPrice query number false "Maximum price"
// @Param minRating query number false "Minimum rating"
// @Param sortBy query string false "relevance, price or createdAt"
// @Param sortOrder query string false "asc or desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} models.SearchPage
// @Failure 400 {object} response.Envelope
// @Router /products/storefront/search [get]
func (h *CatalogHandler) Search(c *gin.Context) {
	page, err := h.service.Search(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "products retrieved",
		"products": page.Products,
		"meta":     page.Meta,
	})
}

// GetProduct godoc
// @Summary Get product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, hit, err := h.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, product, nil, middleware.ExtractMeta(c))
}

// CreateProduct godoc
// @Summary Create product
// @Description Sellers and admins create a product with variants and opening stock
// @Tags Products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateProductRequest true "Product"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /products [post]
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid product payload"))
		return
	}
	product, err := h.service.CreateProduct(c.Request.Context(), claims.UserID(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}
