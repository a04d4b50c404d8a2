package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/search"
)

const textSearchConfig = "simple"

// CatalogRepository reads and writes products, variants and inventory.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

type searchRow struct {
	ItemID        string         `db:"item_id"`
	ProductID     string         `db:"product_id"`
	VariantID     string         `db:"variant_id"`
	SKU           string         `db:"sku"`
	Name          string         `db:"name"`
	Brand         string         `db:"brand"`
	Description   string         `db:"description"`
	Options       models.Options `db:"options"`
	PriceAmount   float64        `db:"price_amount"`
	PriceCurrency string         `db:"price_currency"`
	Stock         int            `db:"stock"`
	Images        pq.StringArray `db:"images"`
	VariantImages pq.StringArray `db:"variant_images"`
	Rating        float64        `db:"rating"`
	SellerID      string         `db:"seller_id"`
	CategoryID    string         `db:"category_id"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r searchRow) toResult() models.SearchResult {
	images := make([]string, 0, len(r.Images)+len(r.VariantImages))
	images = append(images, r.Images...)
	images = append(images, r.VariantImages...)
	return models.SearchResult{
		ID:          r.ItemID,
		ProductID:   r.ProductID,
		VariantID:   r.VariantID,
		SKU:         r.SKU,
		Name:        r.Name,
		Brand:       r.Brand,
		Description: r.Description,
		Options:     r.Options,
		Price:       models.Money{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		Stock:       r.Stock,
		Images:      images,
		Rating:      r.Rating,
		SellerID:    r.SellerID,
		CategoryID:  r.CategoryID,
		CreatedAt:   r.CreatedAt,
	}
}

// Search executes the plan. The page and the count read one repeatable-read snapshot.
func (r *CatalogRepository) Search(ctx context.Context, plan search.Plan) ([]models.SearchResult, int, error) {
	if plan.Empty {
		return []models.SearchResult{}, 0, nil
	}

	compiled, err := compileSearch(plan)
	if err != nil {
		return nil, 0, err
	}

	var (
		rows  []searchRow
		total int
	)
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err = runInTx(ctx, r.db, opts, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &rows, compiled.query, compiled.args...); err != nil {
			return fmt.Errorf("search products: %w", err)
		}
		if err := tx.GetContext(ctx, &total, compiled.countQuery, compiled.countArgs...); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	results := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, total, nil
}

type compiledSearch struct {
	query      string
	args       []interface{}
	countQuery string
	countArgs  []interface{}
}

type sqlBuilder struct {
	args    []interface{}
	textArg string
}

func (b *sqlBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// compileSearch renders one CTE per filtering stage followed by the sort and
// page clauses. The count statement reuses the CTEs without sort and page.
func compileSearch(plan search.Plan) (compiledSearch, error) {
	b := &sqlBuilder{}

	relevance := "0::real"
	var preConds, postConds []string
	var order *search.Order
	offset, limit := 0, search.DefaultLimit

	for _, stage := range plan.Stages {
		switch stage.Kind {
		case search.StagePrefilter:
			for _, pred := range stage.Predicates {
				cond, err := b.productCondition(pred)
				if err != nil {
					return compiledSearch{}, err
				}
				preConds = append(preConds, cond)
			}
		case search.StagePostfilter:
			for _, pred := range stage.Predicates {
				cond, err := b.itemCondition(pred)
				if err != nil {
					return compiledSearch{}, err
				}
				postConds = append(postConds, cond)
			}
		case search.StageSort:
			order = stage.Order
		case search.StagePaginate:
			offset, limit = stage.Offset, stage.Limit
		}
	}
	if offset < 0 {
		return compiledSearch{}, fmt.Errorf("compile search: negative offset %d", offset)
	}

	if b.textArg != "" {
		relevance = fmt.Sprintf("ts_rank(p.search_vector, plainto_tsquery('%s', %s))", textSearchConfig, b.textArg)
	}

	ctes := fmt.Sprintf(`WITH prefiltered AS (
SELECT p.id, p.name, p.brand, p.description, p.category_id, p.seller_id, p.images, p.rating, p.created_at, %s AS relevance
FROM products p
WHERE %s
), expanded AS (
SELECT pf.*, v.id AS variant_id, v.sku, v.options, v.active AS variant_active, v.images AS variant_images, i.id AS item_id, i.stock, i.price_amount, i.price_currency
FROM prefiltered pf
JOIN product_variants v ON v.product_id = pf.id
JOIN inventory_items i ON i.variant_id = v.id
), postfiltered AS (
SELECT * FROM expanded e
WHERE %s
)`, relevance, joinConditions(preConds), joinConditions(postConds))

	args := b.args
	query := ctes + `
SELECT item_id, id AS product_id, variant_id, sku, name, brand, description, options, price_amount, price_currency, stock, images, variant_images, rating, seller_id, category_id, created_at
FROM postfiltered
ORDER BY ` + orderClause(order) + fmt.Sprintf(`
LIMIT %d OFFSET %d`, limit, offset)

	return compiledSearch{
		query:      query,
		args:       args,
		countQuery: ctes + "\nSELECT COUNT(*) FROM postfiltered",
		countArgs:  args,
	}, nil
}

func (b *sqlBuilder) productCondition(pred search.Predicate) (string, error) {
	switch pred.Field {
	case search.FieldProductActive:
		return "p.active = " + b.bind(pred.Value), nil
	case search.FieldText:
		b.textArg = b.bind(pred.Value)
		return fmt.Sprintf("p.search_vector @@ plainto_tsquery('%s', %s)", textSearchConfig, b.textArg), nil
	case search.FieldCategory:
		return "p.category_id = ANY(" + b.bind(pq.Array(pred.Value)) + "::uuid[])", nil
	case search.FieldBrand:
		brands, _ := pred.Value.([]string)
		patterns := make([]string, 0, len(brands))
		for _, brand := range brands {
			patterns = append(patterns, "%"+escapeLike(brand)+"%")
		}
		return "p.brand ILIKE ANY(" + b.bind(pq.Array(patterns)) + ")", nil
	case search.FieldSeller:
		return "p.seller_id = " + b.bind(pred.Value) + "::uuid", nil
	case search.FieldRating:
		return "p.rating >= " + b.bind(pred.Value), nil
	}
	return "", fmt.Errorf("unsupported product predicate %s", pred.Field)
}

func (b *sqlBuilder) itemCondition(pred search.Predicate) (string, error) {
	switch pred.Field {
	case search.FieldVariantActive:
		return "e.variant_active = " + b.bind(pred.Value), nil
	case search.FieldStock:
		return "e.stock > " + b.bind(pred.Value), nil
	case search.FieldPrice:
		op := "<="
		if pred.Op == search.OpGte {
			op = ">="
		}
		return fmt.Sprintf("e.price_amount %s %s", op, b.bind(pred.Value)), nil
	case search.FieldOption:
		opt, ok := pred.Value.(search.OptionValue)
		if !ok {
			return "", fmt.Errorf("option predicate carries %T", pred.Value)
		}
		return fmt.Sprintf("e.options ->> %s = %s", b.bind(opt.Name), b.bind(opt.Value)), nil
	}
	return "", fmt.Errorf("unsupported item predicate %s", pred.Field)
}

func orderClause(order *search.Order) string {
	if order == nil {
		return "created_at DESC, item_id ASC"
	}
	dir := "ASC"
	if order.Desc {
		dir = "DESC"
	}
	switch order.Field {
	case search.SortRelevance:
		return "relevance DESC, created_at DESC, item_id ASC"
	case search.SortPrice:
		return "price_amount " + dir + ", created_at DESC, item_id ASC"
	default:
		return "created_at " + dir + ", item_id ASC"
	}
}

func joinConditions(conds []string) string {
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type productRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Brand       string         `db:"brand"`
	Description string         `db:"description"`
	CategoryID  string         `db:"category_id"`
	SellerID    string         `db:"seller_id"`
	Active      bool           `db:"active"`
	Images      pq.StringArray `db:"images"`
	Rating      float64        `db:"rating"`
	CreatedAt   time.Time      `db:"created_at"`
}

type variantRow struct {
	ID        string         `db:"id"`
	ProductID string         `db:"product_id"`
	SKU       string         `db:"sku"`
	Options   models.Options `db:"options"`
	Active    bool           `db:"active"`
	Images    pq.StringArray `db:"images"`
}

type inventoryRow struct {
	ID            string  `db:"id"`
	VariantID     string  `db:"variant_id"`
	Stock         int     `db:"stock"`
	PriceAmount   float64 `db:"price_amount"`
	PriceCurrency string  `db:"price_currency"`
}

// FindProductByID loads a product with its variants and inventory.
func (r *CatalogRepository) FindProductByID(ctx context.Context, id string) (*models.Product, error) {
	const productQuery = `SELECT id, name, brand, description, category_id, seller_id, active, images, rating, created_at FROM products WHERE id = $1`
	var p productRow
	if err := r.db.GetContext(ctx, &p, productQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	const variantQuery = `SELECT id, product_id, sku, options, active, images FROM product_variants WHERE product_id = $1 ORDER BY sku ASC`
	var variants []variantRow
	if err := r.db.SelectContext(ctx, &variants, variantQuery, id); err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}

	const inventoryQuery = `SELECT i.id, i.variant_id, i.stock, i.price_amount, i.price_currency FROM inventory_items i JOIN product_variants v ON v.id = i.variant_id WHERE v.product_id = $1 ORDER BY i.price_amount ASC`
	var items []inventoryRow
	if err := r.db.SelectContext(ctx, &items, inventoryQuery, id); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	byVariant := make(map[string][]models.InventoryItem, len(variants))
	for _, item := range items {
		byVariant[item.VariantID] = append(byVariant[item.VariantID], models.InventoryItem{
			ID:        item.ID,
			VariantID: item.VariantID,
			Stock:     item.Stock,
			Price:     models.Money{Amount: item.PriceAmount, Currency: item.PriceCurrency},
		})
	}

	product := &models.Product{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		SellerID:    p.SellerID,
		Active:      p.Active,
		Images:      []string(p.Images),
		Rating:      p.Rating,
		CreatedAt:   p.CreatedAt,
		Variants:    make([]models.Variant, 0, len(variants)),
	}
	for _, v := range variants {
		product.Variants = append(product.Variants, models.Variant{
			ID:        v.ID,
			ProductID: v.ProductID,
			SKU:       v.SKU,
			Options:   v.Options,
			Active:    v.Active,
			Images:    []string(v.Images),
			Inventory: byVariant[v.ID],
		})
	}
	return product, nil
}

// CreateProduct inserts the product, its variants and their inventory in one transaction.
func (r *CatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	return runInTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		const productQuery = `INSERT INTO products (id, name, brand, description, category_id, seller_id, active, images, rating, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.ExecContext(ctx, productQuery,
			product.ID, product.Name, product.Brand, product.Description, product.CategoryID, product.SellerID,
			product.Active, pq.Array(product.Images), product.Rating, product.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		const variantQuery = `INSERT INTO product_variants (id, product_id, sku, options, active, images) VALUES ($1, $2, $3, $4, $5, $6)`
		const inventoryQuery = `INSERT INTO inventory_items (id, variant_id, stock, price_amount, price_currency) VALUES ($1, $2, $3, $4, $5)`
		for vi := range product.Variants {
			v := &product.Variants[vi]
			if v.ID == "" {
				v.ID = uuid.NewString()
			}
			v.ProductID = product.ID
			if _, err := tx.ExecContext(ctx, variantQuery, v.ID, v.ProductID, v.SKU, v.Options, v.Active, pq.Array(v.Images)); err != nil {
				return fmt.Errorf("insert variant %s: %w", v.SKU, err)
			}
			for ii := range v.Inventory {
				item := &v.Inventory[ii]
				if item.ID == "" {
					item.ID = uuid.NewString()
				}
				item.VariantID = v.ID
				if _, err := tx.ExecContext(ctx, inventoryQuery, item.ID, item.VariantID, item.Stock, item.Price.Amount, item.Price.Currency); err != nil {
					return fmt.Errorf("insert inventory for %s: %w", v.SKU, err)
				}
			}
		}
		return nil
	})
}

// VariantExists reports whether an active variant with the id exists.
func (r *CatalogRepository) VariantExists(ctx context.Context, variantID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM product_variants v JOIN products p ON p.id = v.product_id WHERE v.id = $1 AND v.active AND p.active)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, variantID); err != nil {
		return false, fmt.Errorf("check variant exists: %w", err)
	}
	return exists, nil
}
