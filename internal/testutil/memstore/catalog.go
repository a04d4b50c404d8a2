package memstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/search"
)

// Catalog keeps products in memory and evaluates search plans over them.
type Catalog struct {
	mu       sync.Mutex
	clock    *Clock
	products []models.Product
}

// NewCatalog builds a catalog seeded with products.
func NewCatalog(clock *Clock, products ...models.Product) *Catalog {
	return &Catalog{clock: clock, products: products}
}

// Search runs the plan with the in-memory evaluator.
func (c *Catalog) Search(_ context.Context, plan search.Plan) ([]models.SearchResult, int, error) {
	if plan.Empty {
		return []models.SearchResult{}, 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, total := search.Evaluate(plan, c.products)
	return rows, total, nil
}

// FindProductByID returns the product or sql.ErrNoRows.
func (c *Catalog) FindProductByID(_ context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, sql.ErrNoRows
}

// CreateProduct assigns ids and stores the product. Duplicate SKUs fail like a unique index.
func (c *Catalog) CreateProduct(_ context.Context, product *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	skus := map[string]struct{}{}
	for _, p := range c.products {
		for _, v := range p.Variants {
			skus[v.SKU] = struct{}{}
		}
	}
	for _, v := range product.Variants {
		if _, dup := skus[v.SKU]; dup {
			return &pq.Error{Code: "23505"}
		}
	}

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = c.clock.Now()
	}
	for vi := range product.Variants {
		v := &product.Variants[vi]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.ProductID = product.ID
		for ii := range v.Inventory {
			item := &v.Inventory[ii]
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.VariantID = v.ID
		}
	}
	c.products = append(c.products, *product)
	return nil
}

// VariantExists reports whether an active variant of an active product has the id.
func (c *Catalog) VariantExists(_ context.Context, variantID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if !p.Active {
			continue
		}
		for _, v := range p.Variants {
			if v.ID == variantID && v.Active {
				return true, nil
			}
		}
	}
	return false, nil
}
