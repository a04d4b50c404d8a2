package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

const productCachePrefix = "catalog:product:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ProductCache keeps product detail documents in Redis. Cache failures never
// fail a request: lookups degrade to a miss and writes are logged.
type ProductCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewProductCache constructs a product cache. A nil repo or a non-positive ttl
// disables caching.
func NewProductCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ProductCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled indicates whether caching is active.
func (c *ProductCache) Enabled() bool {
	return c != nil && c.repo != nil && c.ttl > 0
}

// Product returns the cached product and whether it was a hit.
func (c *ProductCache) Product(ctx context.Context, id string) (*models.Product, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var product models.Product
	start := time.Now()
	err := c.repo.Get(ctx, productKey(id), &product)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
		return nil, false
	}
	return &product, true
}

// StoreProduct caches the product under its id.
func (c *ProductCache) StoreProduct(ctx context.Context, product *models.Product) {
	if !c.Enabled() || product == nil {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, productKey(product.ID), product, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("product cache write failed", zap.String("product_id", product.ID), zap.Error(err))
	}
}

// InvalidateProducts drops every cached product document.
func (c *ProductCache) InvalidateProducts(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.DeleteByPattern(ctx, productCachePrefix+"*"); err != nil {
		c.logger.Warn("product cache invalidation failed", zap.Error(err))
	}
}

func productKey(id string) string {
	return productCachePrefix + id
}
