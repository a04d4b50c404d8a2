package models

import "time"

// Cart is a user's single shopping cart.
type Cart struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	Items     []CartItem `db:"-" json:"items"`
}

// CartItem is a variant and quantity held in a cart.
type CartItem struct {
	VariantID string    `db:"variant_id" json:"variantId"`
	Quantity  int       `db:"quantity" json:"quantity"`
	AddedAt   time.Time `db:"added_at" json:"addedAt"`
}

// AddCartItemRequest adds quantity of a variant to the cart.
type AddCartItemRequest struct {
	VariantID string `json:"variantId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=999"`
}

// UpdateCartItemRequest sets an item's quantity. Zero removes it.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=999"`
}
