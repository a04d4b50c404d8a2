// Package server assembles the HTTP surface of the storefront API.
package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/handler"
	"github.com/noah-isme/storefront-api/internal/middleware"
	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/service"
	"github.com/noah-isme/storefront-api/pkg/config"
	"github.com/noah-isme/storefront-api/pkg/events"
	"github.com/noah-isme/storefront-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/storefront-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/storefront-api/pkg/middleware/requestid"
	"github.com/noah-isme/storefront-api/pkg/response"
	"github.com/noah-isme/storefront-api/pkg/telemetry"
)

// Dependencies are the constructed services the router mounts.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *service.MetricsService
	Tokens      *service.TokenService
	Blacklist   *service.TokenBlacklist
	Auth        *service.AuthService
	Addresses   *service.AddressService
	Catalog     *service.CatalogService
	Carts       *service.CartService
	Users       *service.UserService
	Publisher   events.Publisher
	AuthLimiter *limiter.Limiter
	Readiness   map[string]handler.ReadinessCheck
}

// NewRouter builds the gin engine with every enabled route group.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(telemetry.TracingMiddleware(cfg.ServiceName))
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(response.Debug(!cfg.IsProduction()))

	ops := handler.NewMetricsHandler(deps.Metrics, deps.Readiness)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authenticate := middleware.Authenticate(deps.Tokens, deps.Blacklist, deps.Logger)
	throttle := middleware.RateLimit(deps.AuthLimiter, deps.Logger)
	api := r.Group("/api")

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Addresses, handler.CookieConfig{
		Domain:     cfg.Security.CookieDomain,
		Secure:     cfg.IsProduction(),
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})
	auth := api.Group("/auth")
	auth.GET("/health", authHandler.Health)
	auth.POST("/register", throttle, authHandler.Register)
	auth.POST("/login", throttle, authHandler.Login)
	auth.POST("/refresh-token", throttle, authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authenticate, authHandler.Me)
	auth.GET("/verify", authenticate, authHandler.Verify)
	auth.GET("/addresses", authenticate, authHandler.ListAddresses)
	auth.POST("/addAddress", authenticate, authHandler.AddAddress)
	auth.PUT("/updateAddress/:id", authenticate, authHandler.UpdateAddress)
	auth.DELETE("/deleteAddress/:id", authenticate, authHandler.DeleteAddress)

	if cfg.Catalog.Enabled && deps.Catalog != nil {
		catalogHandler := handler.NewCatalogHandler(deps.Catalog)
		products := api.Group("/products")
		products.GET("/storefront/search", catalogHandler.Search)
		products.GET("/:id", middleware.WithResponseMeta(), catalogHandler.GetProduct)
		products.POST("", authenticate, middleware.RequireRoles(models.RoleSeller, models.RoleAdmin), catalogHandler.CreateProduct)
	}

	if cfg.Cart.Enabled && deps.Carts != nil {
		cartHandler := handler.NewCartHandler(deps.Carts)
		cart := api.Group("/cart", authenticate)
		cart.GET("", cartHandler.Get)
		cart.DELETE("", cartHandler.Clear)
		cart.POST("/items", cartHandler.AddItem)
		cart.PATCH("/items/:variantId", cartHandler.UpdateItem)
		cart.DELETE("/items/:variantId", cartHandler.RemoveItem)
	}

	if deps.Users != nil {
		userHandler := handler.NewUserHandler(deps.Users)
		admin := api.Group("/admin", authenticate, middleware.RequireRoles(models.RoleAdmin))
		admin.GET("/users", middleware.Audit(deps.Publisher, "user.list", deps.Logger), userHandler.List)
		admin.GET("/users/:id", middleware.Audit(deps.Publisher, "user.get", deps.Logger), userHandler.Get)
		admin.PATCH("/users/:id/role", middleware.Audit(deps.Publisher, "user.update_role", deps.Logger), userHandler.UpdateRole)
	}

	if cfg.Orders.Enabled {
		orderHandler := handler.NewOrderHandler()
		orders := api.Group("/orders", authenticate)
		orders.POST("", orderHandler.Create)
		orders.GET("", orderHandler.List)
		orders.GET("/:id", orderHandler.Get)
	}

	return r
}
