package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/search"
	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
	"github.com/noah-isme/storefront-api/pkg/telemetry"
)

type catalogRepository interface {
	Search(ctx context.Context, plan search.Plan) ([]models.SearchResult, int, error)
	FindProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
}

// CatalogService answers storefront searches and product lookups.
type CatalogService struct {
	repo      catalogRepository
	cache     *ProductCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs a CatalogService. cache may be nil.
func NewCatalogService(repo catalogRepository, cache *ProductCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Search decodes the query, plans it and returns one page of sellable rows.
func (s *CatalogService) Search(ctx context.Context, query url.Values) (*models.SearchPage, error) {
	params, err := search.ParseParams(query)
	if err != nil {
		return nil, err
	}
	plan := search.Build(params)

	ctx, span := telemetry.StartSpan(ctx, "catalog.Search")
	defer span.End()

	start := time.Now()
	rows, total, err := s.repo.Search(ctx, plan)
	sortLabel := "createdAt"
	if stage, ok := plan.Stage(search.StageSort); ok && stage.Order != nil {
		sortLabel = string(stage.Order.Field)
	}
	s.metrics.ObserveSearch(sortLabel, time.Since(start))
	if err != nil {
		telemetry.SetSpanError(ctx, err)
		s.logger.Error("catalog search failed", zap.Bool("empty_plan", plan.Empty), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search catalog")
	}
	if rows == nil {
		rows = []models.SearchResult{}
	}

	return &models.SearchPage{Products: rows, Meta: search.NewMeta(total, plan.Page, plan.Limit)}, nil
}

// GetProduct returns an active product with its variants. The bool reports a cache hit.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, bool, error) {
	notFound := appErrors.Clone(appErrors.ErrNotFound, "product not found")
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, notFound
	}

	if cached, hit := s.cache.Product(ctx, id); hit {
		return cached, true, nil
	}

	started := time.Now()
	product, err := s.repo.FindProductByID(ctx, id)
	s.metrics.ObserveDBQuery("catalog.find_product", time.Since(started))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, notFound
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	if !product.Active {
		return nil, false, notFound
	}

	s.cache.StoreProduct(ctx, product)
	return product, false, nil
}

// CreateProduct stores a seller's product with its variants and opening stock.
func (s *CatalogService) CreateProduct(ctx context.Context, sellerID string, req models.CreateProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid product payload")
	}

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Brand:       strings.TrimSpace(req.Brand),
		Description: req.Description,
		CategoryID:  req.CategoryID,
		SellerID:    sellerID,
		Active:      true,
		Images:      nonNil(req.Images),
	}
	seen := make(map[string]struct{}, len(req.Variants))
	for _, v := range req.Variants {
		sku := strings.TrimSpace(v.SKU)
		if _, dup := seen[sku]; dup {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid product payload"),
				[]appErrors.FieldError{{Field: "variants.sku", Rule: "unique"}})
		}
		seen[sku] = struct{}{}

		options := models.Options{}
		for name, value := range v.Options {
			options[name] = value
		}
		product.Variants = append(product.Variants, models.Variant{
			SKU:     sku,
			Options: options,
			Active:  true,
			Images:  nonNil(v.Images),
			Inventory: []models.InventoryItem{{
				Stock: v.Stock,
				Price: models.Money{Amount: v.Price, Currency: strings.ToUpper(v.Currency)},
			}},
		})
	}

	started := time.Now()
	err := s.repo.CreateProduct(ctx, product)
	s.metrics.ObserveDBQuery("catalog.create_product", time.Since(started))
	if err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "sku already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}

	s.cache.InvalidateProducts(ctx)
	return product, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
