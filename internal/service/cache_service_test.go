package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/storefront-api/internal/models"
)

type brokenCacheRepo struct{ calls int }

func (b *brokenCacheRepo) Get(context.Context, string, interface{}) error {
	b.calls++
	return errors.New("connection refused")
}

func (b *brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	b.calls++
	return errors.New("connection refused")
}

func (b *brokenCacheRepo) DeleteByPattern(context.Context, string) error {
	b.calls++
	return errors.New("connection refused")
}

func TestProductCacheRoundTrip(t *testing.T) {
	repo := newMapCacheRepo()
	cache := NewProductCache(repo, NewMetricsService(), time.Minute, nil)

	_, hit := cache.Product(context.Background(), "p1")
	assert.False(t, hit)

	cache.StoreProduct(context.Background(), &models.Product{ID: "p1", Name: "Trail Runner"})
	got, hit := cache.Product(context.Background(), "p1")
	assert.True(t, hit)
	assert.Equal(t, "Trail Runner", got.Name)

	cache.InvalidateProducts(context.Background())
	_, hit = cache.Product(context.Background(), "p1")
	assert.False(t, hit)
}

func TestProductCacheFailsOpen(t *testing.T) {
	repo := &brokenCacheRepo{}
	cache := NewProductCache(repo, nil, time.Minute, nil)

	_, hit := cache.Product(context.Background(), "p1")
	assert.False(t, hit)
	cache.StoreProduct(context.Background(), &models.Product{ID: "p1"})
	cache.InvalidateProducts(context.Background())
	assert.Equal(t, 3, repo.calls)
}

func TestProductCacheDisabled(t *testing.T) {
	repo := &brokenCacheRepo{}
	for _, cache := range []*ProductCache{nil, NewProductCache(repo, nil, 0, nil), NewProductCache(nil, nil, time.Minute, nil)} {
		assert.False(t, cache.Enabled())
		_, hit := cache.Product(context.Background(), "p1")
		assert.False(t, hit)
		cache.StoreProduct(context.Background(), &models.Product{ID: "p1"})
		cache.InvalidateProducts(context.Background())
	}
	assert.Zero(t, repo.calls)
}
