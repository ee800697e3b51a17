package listing

import (
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/listings", nil)
	f := parseFilter(r)

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 10, f.PerPage)
	assert.False(t, f.IncludeAll)
	assert.Nil(t, f.MinSize)
	assert.Nil(t, f.MaxSize)
	assert.Nil(t, f.MaxRent)
}

func TestParseFilterReadsCriteria(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/listings?state=Punjab&district=Ludhiana&crop=wheat&min_size=2.5&max_rent=15000&page=3&per_page=25&include_unavailable=true", nil)
	f := parseFilter(r)

	assert.Equal(t, "Punjab", f.State)
	assert.Equal(t, "Ludhiana", f.District)
	assert.Equal(t, "wheat", f.Crop)
	require.NotNil(t, f.MinSize)
	assert.True(t, f.MinSize.Equal(decimal.NewFromFloat(2.5)))
	require.NotNil(t, f.MaxRent)
	assert.True(t, f.MaxRent.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 25, f.PerPage)
	assert.True(t, f.IncludeAll)
}

func TestParseFilterClampsPagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/listings?page=-2&per_page=5000&min_size=abc", nil)
	f := parseFilter(r)

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 10, f.PerPage, "oversized per_page falls back to the default")
	assert.Nil(t, f.MinSize, "unparseable sizes are ignored")
}
