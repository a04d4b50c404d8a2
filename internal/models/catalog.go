package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Options maps a variant option name (e.g. "Color") to its value.
type Options map[string]string

// Value implements driver.Valuer for jsonb columns.
func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for jsonb columns.
func (o *Options) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = Options{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("options: unsupported type %T", src)
	}
	out := Options{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*o = out
	return nil
}

// Money is an amount in a currency's major unit.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Product is a catalog entry owned by a seller.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId"`
	SellerID    string    `json:"sellerId"`
	Active      bool      `json:"active"`
	Images      []string  `json:"images"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
	Variants    []Variant `json:"variants,omitempty"`
}

// Variant is a purchasable configuration of a product.
type Variant struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	SKU       string          `json:"sku"`
	Options   Options         `json:"options"`
	Active    bool            `json:"active"`
	Images    []string        `json:"images"`
	Inventory []InventoryItem `json:"inventory,omitempty"`
}

// InventoryItem is stock held at one price for a variant.
type InventoryItem struct {
	ID        string `json:"id"`
	VariantID string `json:"variantId"`
	Stock     int    `json:"stock"`
	Price     Money  `json:"price"`
}

// SearchResult is one flattened, sellable inventory row.
type SearchResult struct {
	ID          string    `db:"id" json:"id"`
	ProductID   string    `db:"product_id" json:"productId"`
	VariantID   string    `db:"variant_id" json:"variantId"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	Brand       string    `db:"brand" json:"brand"`
	Description string    `db:"description" json:"description"`
	Options     Options   `db:"options" json:"options"`
	Price       Money     `db:"-" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	Images      []string  `db:"-" json:"images"`
	Rating      float64   `db:"rating" json:"rating"`
	SellerID    string    `db:"seller_id" json:"sellerId"`
	CategoryID  string    `db:"category_id" json:"categoryId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// SearchMeta describes the page returned by a search.
type SearchMeta struct {
	TotalProducts int  `json:"totalProducts"`
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}

// SearchPage is the search result set plus its metadata.
type SearchPage struct {
	Products []SearchResult `json:"products"`
	Meta     SearchMeta     `json:"meta"`
}

// CreateProductRequest creates a product with its variants and stock.
type CreateProductRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Brand       string                 `json:"brand" validate:"required,max=100"`
	Description string                 `json:"description" validate:"max=5000"`
	CategoryID  string                 `json:"categoryId" validate:"required,uuid"`
	Images      []string               `json:"images" validate:"omitempty,dive,url"`
	Variants    []CreateVariantRequest `json:"variants" validate:"required,min=1,dive"`
}

// CreateVariantRequest is one variant of a new product.
type CreateVariantRequest struct {
	SKU      string            `json:"sku" validate:"required,max=64"`
	Options  map[string]string `json:"options"`
	Images   []string          `json:"images" validate:"omitempty,dive,url"`
	Stock    int               `json:"stock" validate:"gte=0"`
	Price    float64           `json:"price" validate:"gt=0"`
	Currency string            `json:"currency" validate:"required,len=3"`
}
