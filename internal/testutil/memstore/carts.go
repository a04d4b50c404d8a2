package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-api/internal/models"
)

// Carts holds one cart per user.
type Carts struct {
	mu     sync.Mutex
	clock  *Clock
	byUser map[string]*models.Cart
	byID   map[string]*models.Cart
}

// NewCarts builds an empty cart store.
func NewCarts(clock *Clock) *Carts {
	return &Carts{clock: clock, byUser: map[string]*models.Cart{}, byID: map[string]*models.Cart{}}
}

// Ensure returns the user's cart, creating it on first use.
func (s *Carts) Ensure(_ context.Context, userID string) (*models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.byUser[userID]
	if !ok {
		cart = &models.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: s.clock.Now()}
		s.byUser[userID] = cart
		s.byID[cart.ID] = cart
	}
	return &models.Cart{ID: cart.ID, UserID: cart.UserID, CreatedAt: cart.CreatedAt}, nil
}

// Items lists a cart's lines in insertion order.
func (s *Carts) Items(_ context.Context, cartID string) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.byID[cartID]
	if !ok {
		return []models.CartItem{}, nil
	}
	return append([]models.CartItem{}, cart.Items...), nil
}

// AddItem accumulates quantity onto the variant's line.
func (s *Carts) AddItem(_ context.Context, cartID, variantID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.byID[cartID]
	if cart == nil {
		return nil
	}
	for i := range cart.Items {
		if cart.Items[i].VariantID == variantID {
			cart.Items[i].Quantity += quantity
			return nil
		}
	}
	cart.Items = append(cart.Items, models.CartItem{VariantID: variantID, Quantity: quantity, AddedAt: s.clock.Now()})
	return nil
}

// SetQuantity overwrites a line's quantity.
func (s *Carts) SetQuantity(_ context.Context, cartID, variantID string, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.byID[cartID]
	if cart == nil {
		return false, nil
	}
	for i := range cart.Items {
		if cart.Items[i].VariantID == variantID {
			cart.Items[i].Quantity = quantity
			return true, nil
		}
	}
	return false, nil
}

// RemoveItem deletes a line.
func (s *Carts) RemoveItem(_ context.Context, cartID, variantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.byID[cartID]
	if cart == nil {
		return false, nil
	}
	for i := range cart.Items {
		if cart.Items[i].VariantID == variantID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Clear empties the cart.
func (s *Carts) Clear(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart := s.byID[cartID]; cart != nil {
		cart.Items = nil
	}
	return nil
}
