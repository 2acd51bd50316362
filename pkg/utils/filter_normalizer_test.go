package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

func identityJSON(t *testing.T, raw map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(NormalizeFilters(raw))
	require.NoError(t, err)
	return string(data)
}

func TestNormalizeFilters_ExcludesPagination(t *testing.T) {
	got := identityJSON(t, map[string]interface{}{
		"platform":     "Instagram",
		"minFollowers": "1000",
		"page":         3,
		"size":         5,
	})
	assert.Equal(t, `{"minFollowers":1000,"platform":"instagram"}`, got)
}

func TestNormalizeFilters_DropsEmptyAndSentinel(t *testing.T) {
	got := identityJSON(t, map[string]interface{}{
		"platform": "tiktok",
		"country":  "all",
		"language": "",
		"gender":   "   ",
		"category": []interface{}{"ALL"},
		"keyword":  nil,
	})
	assert.Equal(t, `{"platform":"tiktok"}`, got)
}

func TestNormalizeFilters_Aliases(t *testing.T) {
	got := identityJSON(t, map[string]interface{}{
		"location":       "us",
		"mainCategory":   "Beauty",
		"minSubscribers": 10000,
		"platform":       "youtube",
	})
	assert.Equal(t, `{"category":["beauty"],"country":"US","minFollowers":10000,"platform":"youtube"}`, got)
}

func TestNormalizeFilters_CanonicalKeyWinsOverAlias(t *testing.T) {
	a := identityJSON(t, map[string]interface{}{"country": "DE", "location": "FR"})
	b := identityJSON(t, map[string]interface{}{"location": "FR", "country": "DE"})
	assert.Equal(t, `{"country":"DE"}`, a)
	assert.Equal(t, a, b)
}

func TestNormalizeFilters_CoercionRejectsInvalidValues(t *testing.T) {
	identity, dropped := NormalizeFiltersWithReport(map[string]interface{}{
		"minFollowers":      0,
		"maxFollowers":      "-5",
		"minEngagementRate": -1.5,
		"maxEngagementRate": "abc",
		"minGrowthRate":     "-0.1",
		"minAvgViews":       1000.5,
		"unknownFilter":     "x",
	})
	assert.Equal(t, 0, identity.Len())
	assert.ElementsMatch(t, []string{
		"minFollowers", "maxFollowers", "minEngagementRate", "maxEngagementRate",
		"minGrowthRate", "minAvgViews", "unknownFilter",
	}, dropped)
}

func TestNormalizeFilters_NumericForms(t *testing.T) {
	cases := []interface{}{1000, int64(1000), 1000.0, "1000", "1,000", "1e3", "1k", json.Number("1000")}
	for _, v := range cases {
		got := identityJSON(t, map[string]interface{}{"minFollowers": v})
		assert.Equal(t, `{"minFollowers":1000}`, got, "value %#v", v)
	}
}

func TestNormalizeFilters_EngagementAsFloat(t *testing.T) {
	a := identityJSON(t, map[string]interface{}{"minEngagementRate": "2"})
	b := identityJSON(t, map[string]interface{}{"minEngagementRate": 2})
	c := identityJSON(t, map[string]interface{}{"engagementRate": "2%"})
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestNormalizeFilters_CategorySet(t *testing.T) {
	a := identityJSON(t, map[string]interface{}{"category": []interface{}{"Fashion", "beauty", "fashion"}})
	b := identityJSON(t, map[string]interface{}{"categories": "beauty, fashion"})
	assert.Equal(t, `{"category":["beauty","fashion"]}`, a)
	assert.Equal(t, a, b)
}

func TestNormalizeFilters_Booleans(t *testing.T) {
	got := identityJSON(t, map[string]interface{}{"hasEmail": "yes", "verified": 0, "desc": "maybe"})
	assert.Equal(t, `{"hasEmail":true,"verified":false}`, got)

	// decoded request bodies carry json.Number
	got = identityJSON(t, map[string]interface{}{"hasEmail": json.Number("1"), "verified": json.Number("0.0")})
	assert.Equal(t, `{"hasEmail":true,"verified":false}`, got)
	assert.Equal(t,
		HashFilters(map[string]interface{}{"hasEmail": 1}),
		HashFilters(map[string]interface{}{"hasEmail": json.Number("1")}),
	)

	got = identityJSON(t, map[string]interface{}{"hasEmail": json.Number("2")})
	assert.Equal(t, `{}`, got)
}

func TestExtractPagination(t *testing.T) {
	assert.Equal(t, 1, ExtractPagination(map[string]interface{}{}, 10, 50).Page)
	assert.Equal(t, 10, ExtractPagination(map[string]interface{}{}, 10, 50).Size)

	p := ExtractPagination(map[string]interface{}{"page": "3", "pageSize": 200}, 10, 50)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.Size)

	p = ExtractPagination(map[string]interface{}{"page": 0, "size": -1}, 10, 50)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Size)
}

func TestValidateFilters(t *testing.T) {
	ok := NormalizeFilters(map[string]interface{}{"minFollowers": 1000, "maxFollowers": 5000, "platform": "tiktok"})
	assert.NoError(t, ValidateFilters(ok))

	bad := NormalizeFilters(map[string]interface{}{"minFollowers": 5000, "maxFollowers": 5000})
	err := ValidateFilters(bad)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "minFollowers")

	err = ValidateFilters(NormalizeFilters(map[string]interface{}{"maxEngagementRate": 150}))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = ValidateFilters(NormalizeFilters(map[string]interface{}{"platform": "myspace"}))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
