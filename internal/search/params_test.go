package search

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

func TestParseParamsDefaults(t *testing.T) {
	p, err := ParseParams(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Empty(t, p.Options)
	assert.Nil(t, p.MinPrice)
}

func TestParseParamsDecodesFilters(t *testing.T) {
	values := url.Values{}
	values.Set("search", "  running shoes ")
	values.Set("category", "a, b,,c")
	values.Set("brand", "Acme")
	values.Set("minPrice", "10")
	values.Set("maxPrice", "99.5")
	values.Set("minRating", "4")
	values.Set("option_Color", "Red")
	values.Set("option_", "ignored")
	values.Set("sortBy", "price")
	values.Set("sortOrder", "DESC")
	values.Set("page", "3")
	values.Set("limit", "500")

	p, err := ParseParams(values)
	require.NoError(t, err)
	assert.Equal(t, "running shoes", p.Text)
	assert.Equal(t, []string{"a", "b", "c"}, p.Categories)
	assert.Equal(t, []string{"Acme"}, p.Brands)
	assert.Equal(t, 10.0, *p.MinPrice)
	assert.Equal(t, 99.5, *p.MaxPrice)
	assert.Equal(t, 4.0, *p.MinRating)
	assert.Equal(t, map[string]string{"Color": "Red"}, p.Options)
	assert.Equal(t, SortPrice, p.SortBy)
	assert.Equal(t, "desc", p.SortOrder)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestParseParamsCapsHugePage(t *testing.T) {
	for _, raw := range []string{"9223372036854775807", "99999999999999999999999", "1000001"} {
		p, err := ParseParams(url.Values{"page": {raw}, "limit": {"20"}})
		require.NoError(t, err, raw)
		assert.Equal(t, MaxPage, p.Page, raw)
	}

	_, err := ParseParams(url.Values{"page": {"-99999999999999999999999"}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestParseParamsRejectsMalformed(t *testing.T) {
	cases := map[string]url.Values{
		"price not number": {"minPrice": {"cheap"}},
		"min above max":    {"minPrice": {"50"}, "maxPrice": {"10"}},
		"nan":              {"maxPrice": {"NaN"}},
		"rating range":     {"minRating": {"7"}},
		"page zero":        {"page": {"0"}},
		"limit negative":   {"limit": {"-1"}},
		"unknown sort":     {"sortBy": {"popularity"}},
		"bad order":        {"sortOrder": {"sideways"}},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParams(values)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}
