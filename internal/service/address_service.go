package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

type addressRepository interface {
	ListAddresses(ctx context.Context, userID string) ([]models.Address, error)
	FindAddress(ctx context.Context, userID, id string) (*models.Address, error)
	CreateAddress(ctx context.Context, address *models.Address) error
	UpdateAddress(ctx context.Context, address *models.Address) error
	DeleteAddress(ctx context.Context, userID, id string) error
}

// AddressService manages the authenticated user's address book.
type AddressService struct {
	repo      addressRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAddressService constructs an AddressService.
func NewAddressService(repo addressRepository, validate *validator.Validate, logger *zap.Logger) *AddressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddressService{repo: repo, validator: validate, logger: logger}
}

// List returns the user's addresses, default first.
func (s *AddressService) List(ctx context.Context, userID string) ([]models.Address, error) {
	addresses, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list addresses")
	}
	return addresses, nil
}

// Add stores a new address. The first address becomes the default.
func (s *AddressService) Add(ctx context.Context, userID string, req models.AddressRequest) (*models.Address, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid address payload")
	}

	existing, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list addresses")
	}

	address := addressFromRequest(userID, req)
	if len(existing) == 0 {
		address.IsDefault = true
	}
	if err := s.repo.CreateAddress(ctx, address); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create address")
	}
	return address, nil
}

// Update replaces an address owned by the user.
func (s *AddressService) Update(ctx context.Context, userID, id string, req models.AddressRequest) (*models.Address, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid address payload")
	}

	current, err := s.repo.FindAddress(ctx, userID, id)
	if err != nil {
		return nil, addressLookupError(err)
	}

	address := addressFromRequest(userID, req)
	address.ID = current.ID
	address.CreatedAt = current.CreatedAt
	if err := s.repo.UpdateAddress(ctx, address); err != nil {
		return nil, addressLookupError(err)
	}
	return address, nil
}

// Delete removes an address owned by the user.
func (s *AddressService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteAddress(ctx, userID, id); err != nil {
		return addressLookupError(err)
	}
	return nil
}

func addressFromRequest(userID string, req models.AddressRequest) *models.Address {
	return &models.Address{
		UserID:     userID,
		Label:      req.Label,
		Recipient:  req.Recipient,
		Phone:      req.Phone,
		Line1:      req.Line1,
		Line2:      req.Line2,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		IsDefault:  req.IsDefault,
	}
}

func addressLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "address not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to access address")
}
