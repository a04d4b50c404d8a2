package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

type cartRepository interface {
	Ensure(ctx context.Context, userID string) (*models.Cart, error)
	Items(ctx context.Context, cartID string) ([]models.CartItem, error)
	AddItem(ctx context.Context, cartID, variantID string, quantity int) error
	SetQuantity(ctx context.Context, cartID, variantID string, quantity int) (bool, error)
	RemoveItem(ctx context.Context, cartID, variantID string) (bool, error)
	Clear(ctx context.Context, cartID string) error
}

type variantChecker interface {
	VariantExists(ctx context.Context, variantID string) (bool, error)
}

// CartService manages the single cart each user owns.
type CartService struct {
	carts     cartRepository
	variants  variantChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCartService constructs a CartService.
func NewCartService(carts cartRepository, variants variantChecker, validate *validator.Validate, logger *zap.Logger) *CartService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{carts: carts, variants: variants, validator: validate, logger: logger}
}

// Get returns the user's cart, creating it on first access.
func (s *CartService) Get(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	items, err := s.carts.Items(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart items")
	}
	if items == nil {
		items = []models.CartItem{}
	}
	cart.Items = items
	return cart, nil
}

// AddItem adds quantity of an active variant, accumulating onto an existing line.
func (s *CartService) AddItem(ctx context.Context, userID string, req models.AddCartItemRequest) (*models.Cart, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cart item")
	}

	exists, err := s.variants.VariantExists(ctx, req.VariantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check variant")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "variant not found")
	}

	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	if err := s.carts.AddItem(ctx, cart.ID, req.VariantID, req.Quantity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add cart item")
	}
	return s.Get(ctx, userID)
}

// UpdateItem sets a line's quantity. Zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, variantID string, req models.UpdateCartItemRequest) (*models.Cart, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cart item")
	}
	if req.Quantity == 0 {
		return s.RemoveItem(ctx, userID, variantID)
	}

	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	updated, err := s.carts.SetQuantity(ctx, cart.ID, variantID, req.Quantity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update cart item")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, variantID string) (*models.Cart, error) {
	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	removed, err := s.carts.RemoveItem(ctx, cart.ID, variantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove cart item")
	}
	if !removed {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.carts.Ensure(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cart")
	}
	cart.Items = []models.CartItem{}
	return cart, nil
}
