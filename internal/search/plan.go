package search

import (
	"sort"

	"github.com/google/uuid"
)

// StageKind identifies a pipeline stage.
type StageKind string

const (
	StagePrefilter  StageKind = "prefilter"
	StageExpand     StageKind = "expand"
	StagePostfilter StageKind = "postfilter"
	StageSort       StageKind = "sort"
	StagePaginate   StageKind = "paginate"
)

// Field names a filterable attribute of the product, variant or inventory level.
type Field string

const (
	FieldProductActive Field = "product.active"
	FieldText          Field = "product.text"
	FieldCategory      Field = "product.category_id"
	FieldBrand         Field = "product.brand"
	FieldSeller        Field = "product.seller_id"
	FieldRating        Field = "product.rating"
	FieldVariantActive Field = "variant.active"
	FieldOption        Field = "variant.options"
	FieldStock         Field = "inventory.stock"
	FieldPrice         Field = "inventory.price"
)

// Op is a predicate operator.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpILikeAny Op = "ilike_any"
	OpMatch    Op = "match"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpOptionEq Op = "option_eq"
)

// OptionValue is the operand of an OpOptionEq predicate.
type OptionValue struct {
	Name  string
	Value string
}

// Predicate is a single filter condition.
type Predicate struct {
	Field Field
	Op    Op
	Value interface{}
}

// Order is the resolved sort of a plan.
type Order struct {
	Field SortField
	Desc  bool
}

// Stage is one step of the pipeline. Only the members relevant to Kind are set.
type Stage struct {
	Kind       StageKind
	Predicates []Predicate
	Order      *Order
	Offset     int
	Limit      int
}

// Plan is the ordered stage list for one search request.
type Plan struct {
	Stages []Stage

	// Empty is set when a supplied filter can match nothing; callers skip storage.
	Empty bool
	Text  string
	Page  int
	Limit int
}

// Stage returns the first stage of the given kind.
func (p Plan) Stage(kind StageKind) (Stage, bool) {
	for _, s := range p.Stages {
		if s.Kind == kind {
			return s, true
		}
	}
	return Stage{}, false
}

// Build turns validated params into a plan.
func Build(params Params) Plan {
	page, limit := params.Page, params.Limit
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	plan := Plan{Text: params.Text, Page: page, Limit: limit}

	pre := []Predicate{{Field: FieldProductActive, Op: OpEq, Value: true}}
	if params.Text != "" {
		pre = append(pre, Predicate{Field: FieldText, Op: OpMatch, Value: params.Text})
	}
	if len(params.Categories) > 0 {
		ids := validUUIDs(params.Categories)
		if len(ids) == 0 {
			plan.Empty = true
		}
		pre = append(pre, Predicate{Field: FieldCategory, Op: OpIn, Value: ids})
	}
	if len(params.Brands) > 0 {
		pre = append(pre, Predicate{Field: FieldBrand, Op: OpILikeAny, Value: params.Brands})
	}
	if params.Seller != "" {
		ids := validUUIDs([]string{params.Seller})
		if len(ids) == 0 {
			plan.Empty = true
		} else {
			pre = append(pre, Predicate{Field: FieldSeller, Op: OpEq, Value: ids[0]})
		}
	}
	if params.MinRating != nil {
		pre = append(pre, Predicate{Field: FieldRating, Op: OpGte, Value: *params.MinRating})
	}

	post := []Predicate{
		{Field: FieldVariantActive, Op: OpEq, Value: true},
		{Field: FieldStock, Op: OpGt, Value: 0},
	}
	if params.MinPrice != nil {
		post = append(post, Predicate{Field: FieldPrice, Op: OpGte, Value: *params.MinPrice})
	}
	if params.MaxPrice != nil {
		post = append(post, Predicate{Field: FieldPrice, Op: OpLte, Value: *params.MaxPrice})
	}
	names := make([]string, 0, len(params.Options))
	for name := range params.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		post = append(post, Predicate{Field: FieldOption, Op: OpOptionEq, Value: OptionValue{Name: name, Value: params.Options[name]}})
	}

	order := resolveOrder(params)

	plan.Stages = []Stage{
		{Kind: StagePrefilter, Predicates: pre},
		{Kind: StageExpand},
		{Kind: StagePostfilter, Predicates: post},
		{Kind: StageSort, Order: &order},
		{Kind: StagePaginate, Offset: (page - 1) * limit, Limit: limit},
	}
	return plan
}

func resolveOrder(params Params) Order {
	switch params.SortBy {
	case SortRelevance:
		if params.Text != "" {
			return Order{Field: SortRelevance, Desc: true}
		}
	case SortPrice:
		return Order{Field: SortPrice, Desc: params.SortOrder == "desc"}
	}
	return Order{Field: SortCreatedAt, Desc: params.SortOrder != "asc"}
}

func validUUIDs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, candidate := range raw {
		if id, err := uuid.Parse(candidate); err == nil {
			out = append(out, id.String())
		}
	}
	return out
}
