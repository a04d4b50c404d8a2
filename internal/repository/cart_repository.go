package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/storefront-api/internal/models"
)

// CartRepository stores one cart per user and its line items.
type CartRepository struct {
	db *sqlx.DB
}

// NewCartRepository creates a new instance of CartRepository.
func NewCartRepository(db *sqlx.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Ensure returns the user's cart, creating it on first use.
func (r *CartRepository) Ensure(ctx context.Context, userID string) (*models.Cart, error) {
	const query = `INSERT INTO carts (id, user_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, created_at`
	var cart models.Cart
	if err := r.db.GetContext(ctx, &cart, query, uuid.NewString(), userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	return &cart, nil
}

// Items lists the cart's items, oldest first.
func (r *CartRepository) Items(ctx context.Context, cartID string) ([]models.CartItem, error) {
	const query = `SELECT variant_id, quantity, added_at FROM cart_items WHERE cart_id = $1 ORDER BY added_at ASC`
	items := []models.CartItem{}
	if err := r.db.SelectContext(ctx, &items, query, cartID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

// AddItem adds quantity to the variant's line, creating it if needed.
func (r *CartRepository) AddItem(ctx context.Context, cartID, variantID string, quantity int) error {
	const query = `INSERT INTO cart_items (cart_id, variant_id, quantity, added_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, variant_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
	if _, err := r.db.ExecContext(ctx, query, cartID, variantID, quantity, time.Now().UTC()); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// SetQuantity overwrites a line's quantity. Reports false when the line does not exist.
func (r *CartRepository) SetQuantity(ctx context.Context, cartID, variantID string, quantity int) (bool, error) {
	const query = `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND variant_id = $2`
	res, err := r.db.ExecContext(ctx, query, cartID, variantID, quantity)
	if err != nil {
		return false, fmt.Errorf("update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update cart item: %w", err)
	}
	return affected > 0, nil
}

// RemoveItem deletes a line. Reports false when the line does not exist.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, variantID string) (bool, error) {
	const query = `DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2`
	res, err := r.db.ExecContext(ctx, query, cartID, variantID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return affected > 0, nil
}

// Clear empties the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	const query = `DELETE FROM cart_items WHERE cart_id = $1`
	if _, err := r.db.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
