package search

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxPage bounds page so the row offset stays well inside int range.
	MaxPage      = 1_000_000

	optionPrefix = "option_"
)

// SortField names a whitelisted sort key.
type SortField string

const (
	SortRelevance SortField = "relevance"
	SortPrice     SortField = "price"
	SortCreatedAt SortField = "createdAt"
)

// Params are the decoded storefront search query parameters.
type Params struct {
	Text       string
	Categories []string
	Brands     []string
	Seller     string
	MinPrice   *float64
	MaxPrice   *float64
	MinRating  *float64
	Options    map[string]string
	SortBy     SortField
	SortOrder  string
	Page       int
	Limit      int
}

// ParseParams decodes and validates raw query values.
func ParseParams(values url.Values) (Params, error) {
	p := Params{
		Text:       strings.TrimSpace(values.Get("search")),
		Categories: splitList(values.Get("category")),
		Brands:     splitList(values.Get("brand")),
		Seller:     strings.TrimSpace(values.Get("seller")),
		Options:    map[string]string{},
		SortBy:     SortField(strings.TrimSpace(values.Get("sortBy"))),
		SortOrder:  strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))),
		Page:       DefaultPage,
		Limit:      DefaultLimit,
	}

	var problems []appErrors.FieldError
	invalid := func(field, rule string) {
		problems = append(problems, appErrors.FieldError{Field: field, Rule: rule})
	}

	var err error
	if p.MinPrice, err = optionalFloat(values.Get("minPrice")); err != nil || (p.MinPrice != nil && *p.MinPrice < 0) {
		invalid("minPrice", "number")
	}
	if p.MaxPrice, err = optionalFloat(values.Get("maxPrice")); err != nil || (p.MaxPrice != nil && *p.MaxPrice < 0) {
		invalid("maxPrice", "number")
	}
	if p.MinPrice != nil && p.MaxPrice != nil && *p.MinPrice > *p.MaxPrice {
		invalid("minPrice", "lte_maxPrice")
	}
	if p.MinRating, err = optionalFloat(values.Get("minRating")); err != nil || (p.MinRating != nil && (*p.MinRating < 0 || *p.MinRating > 5)) {
		invalid("minRating", "range_0_5")
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil && isOutOfRange(convErr) && !strings.HasPrefix(raw, "-"):
			p.Page = MaxPage
		case convErr != nil || page < 1:
			invalid("page", "min_1")
		case page > MaxPage:
			p.Page = MaxPage
		default:
			p.Page = page
		}
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil || limit < 1:
			invalid("limit", "min_1")
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}

	switch p.SortBy {
	case "", SortRelevance, SortPrice, SortCreatedAt:
	default:
		invalid("sortBy", "oneof_relevance_price_createdAt")
	}
	switch p.SortOrder {
	case "", "asc", "desc":
	default:
		invalid("sortOrder", "oneof_asc_desc")
	}

	for key, vals := range values {
		if !strings.HasPrefix(key, optionPrefix) || len(vals) == 0 {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(key, optionPrefix))
		value := strings.TrimSpace(vals[0])
		if name == "" || value == "" {
			continue
		}
		p.Options[name] = value
	}

	if len(problems) > 0 {
		return Params{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid search parameters"), problems)
	}
	return p, nil
}

func optionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, strconv.ErrSyntax
	}
	return &v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isOutOfRange(err error) bool {
	var numErr *strconv.NumError
	return errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange)
}
