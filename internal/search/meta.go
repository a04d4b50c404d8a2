package search

import "github.com/noah-isme/storefront-api/internal/models"

// NewMeta computes page metadata. totalPages is 0 for an empty result.
func NewMeta(total, page, limit int) models.SearchMeta {
	if limit < 1 {
		limit = DefaultLimit
	}
	if page < 1 {
		page = DefaultPage
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return models.SearchMeta{
		TotalProducts: total,
		CurrentPage:   page,
		TotalPages:    totalPages,
		HasNextPage:   page < totalPages,
		HasPrevPage:   page > 1,
	}
}
