package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/noah-isme/storefront-api/internal/models"
)

type candidate struct {
	product   *models.Product
	variant   *models.Variant
	item      models.InventoryItem
	relevance int
}

// Evaluate runs the plan over an in-memory catalog and returns the requested
// page plus the total match count. It mirrors the SQL compiled by the catalog
// repository and backs the in-memory store used in tests. Text matching follows
// the 'simple' text search configuration: lower-cased whole words only, every
// query word required, with no stemming.
func Evaluate(plan Plan, catalog []models.Product) ([]models.SearchResult, int) {
	if plan.Empty {
		return []models.SearchResult{}, 0
	}

	var rows []candidate
	for _, stage := range plan.Stages {
		switch stage.Kind {
		case StagePrefilter:
			rows = prefilter(catalog, stage.Predicates, plan.Text)
		case StageExpand:
			rows = expand(rows)
		case StagePostfilter:
			rows = postfilter(rows, stage.Predicates)
		case StageSort:
			sortRows(rows, stage.Order)
		case StagePaginate:
			total := len(rows)
			return flatten(paginate(rows, stage.Offset, stage.Limit)), total
		}
	}
	return flatten(rows), len(rows)
}

func prefilter(catalog []models.Product, preds []Predicate, text string) []candidate {
	tokens := tokenize(text)
	out := make([]candidate, 0, len(catalog))
	for i := range catalog {
		p := &catalog[i]
		score := 0
		keep := true
		for _, pred := range preds {
			switch pred.Field {
			case FieldProductActive:
				keep = p.Active == pred.Value.(bool)
			case FieldText:
				score, keep = matchText(p, tokens)
			case FieldCategory:
				keep = containsString(pred.Value.([]string), p.CategoryID)
			case FieldBrand:
				keep = brandMatches(p.Brand, pred.Value.([]string))
			case FieldSeller:
				keep = p.SellerID == pred.Value.(string)
			case FieldRating:
				keep = p.Rating >= pred.Value.(float64)
			}
			if !keep {
				break
			}
		}
		if keep {
			out = append(out, candidate{product: p, relevance: score})
		}
	}
	return out
}

func expand(rows []candidate) []candidate {
	out := make([]candidate, 0, len(rows))
	for _, row := range rows {
		for vi := range row.product.Variants {
			v := &row.product.Variants[vi]
			for _, item := range v.Inventory {
				out = append(out, candidate{product: row.product, variant: v, item: item, relevance: row.relevance})
			}
		}
	}
	return out
}

func postfilter(rows []candidate, preds []Predicate) []candidate {
	out := rows[:0]
	for _, row := range rows {
		keep := true
		for _, pred := range preds {
			switch pred.Field {
			case FieldVariantActive:
				keep = row.variant.Active == pred.Value.(bool)
			case FieldStock:
				keep = row.item.Stock > pred.Value.(int)
			case FieldPrice:
				bound := pred.Value.(float64)
				if pred.Op == OpGte {
					keep = row.item.Price.Amount >= bound
				} else {
					keep = row.item.Price.Amount <= bound
				}
			case FieldOption:
				opt := pred.Value.(OptionValue)
				keep = row.variant.Options[opt.Name] == opt.Value
			}
			if !keep {
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out
}

func sortRows(rows []candidate, order *Order) {
	if order == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch order.Field {
		case SortRelevance:
			if a.relevance != b.relevance {
				return a.relevance > b.relevance
			}
		case SortPrice:
			if a.item.Price.Amount != b.item.Price.Amount {
				if order.Desc {
					return a.item.Price.Amount > b.item.Price.Amount
				}
				return a.item.Price.Amount < b.item.Price.Amount
			}
		case SortCreatedAt:
			if !a.product.CreatedAt.Equal(b.product.CreatedAt) {
				if order.Desc {
					return a.product.CreatedAt.After(b.product.CreatedAt)
				}
				return a.product.CreatedAt.Before(b.product.CreatedAt)
			}
			return a.item.ID < b.item.ID
		}
		if !a.product.CreatedAt.Equal(b.product.CreatedAt) {
			return a.product.CreatedAt.After(b.product.CreatedAt)
		}
		return a.item.ID < b.item.ID
	})
}

func paginate(rows []candidate, offset, limit int) []candidate {
	if offset < 0 || limit < 1 || offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) || end < offset {
		end = len(rows)
	}
	return rows[offset:end]
}

func flatten(rows []candidate) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		images := make([]string, 0, len(row.product.Images)+len(row.variant.Images))
		images = append(images, row.product.Images...)
		images = append(images, row.variant.Images...)
		out = append(out, models.SearchResult{
			ID:          row.item.ID,
			ProductID:   row.product.ID,
			VariantID:   row.variant.ID,
			SKU:         row.variant.SKU,
			Name:        row.product.Name,
			Brand:       row.product.Brand,
			Description: row.product.Description,
			Options:     row.variant.Options,
			Price:       row.item.Price,
			Stock:       row.item.Stock,
			Images:      images,
			Rating:      row.product.Rating,
			SellerID:    row.product.SellerID,
			CategoryID:  row.product.CategoryID,
			CreatedAt:   row.product.CreatedAt,
		})
	}
	return out
}

// tokenize splits on anything that is not a letter or digit, as the 'simple'
// parser does for plain words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchText(p *models.Product, tokens []string) (int, bool) {
	if len(tokens) == 0 {
		return 0, false
	}
	words := make(map[string]int)
	for _, word := range tokenize(p.Name + " " + p.Brand + " " + p.Description) {
		words[word]++
	}
	score := 0
	for _, token := range tokens {
		n := words[token]
		if n == 0 {
			return 0, false
		}
		score += n
	}
	return score, true
}

func brandMatches(brand string, patterns []string) bool {
	lower := strings.ToLower(brand)
	for _, pattern := range patterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
