package search

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/lbcscraper/internal/config"
)

func f(v float64) *float64 { return &v }

func TestLocationToken(t *testing.T) {
	assert.Equal(t, "Albi_81000__43.92617_2.14838_10000",
		LocationToken("Albi", "81000", f(43.92617), f(2.14838), 10000))
	assert.Equal(t, "Saint-Jean-de-Luz_64500", LocationToken("Saint Jean de Luz", "64500", nil, nil, 10000))
	assert.Equal(t, "Rennes", LocationToken("Rennes", "", nil, f(1), 5000))
}

func TestRange(t *testing.T) {
	assert.Equal(t, "10-120", Range(10, 120))
	assert.Equal(t, "10-", Range(10, 0))
	assert.Equal(t, "-120", Range(0, 120))
	assert.Equal(t, "", Range(0, 0))
}

func TestDefaultSaleQuery(t *testing.T) {
	cfg := config.DefaultConfig()
	q := NewSaleQuery(cfg).WithLocation(Place{Name: "Albi", Postcode: "81000", Latitude: 43.92617, Longitude: 2.14838})

	u, err := url.Parse(q.Build())
	require.NoError(t, err)
	assert.Equal(t, "https://www.leboncoin.fr/recherche", u.Scheme+"://"+u.Host+u.Path)

	v := u.Query()
	assert.Equal(t, "9", v.Get("category"))
	assert.Equal(t, "15000-300000", v.Get("price"))
	assert.Equal(t, "10-120", v.Get("square"))
	assert.Equal(t, "3-6", v.Get("rooms"))
	assert.Equal(t, "2-6", v.Get("bedrooms"))
	assert.Equal(t, "2,1", v.Get("real_estate_type"))
	assert.Equal(t, "Albi_81000__43.92617_2.14838_10000", v.Get("locations"))
	assert.Empty(t, v.Get("furnished"))
}

func TestQueryIsImmutable(t *testing.T) {
	base := NewSaleQuery(config.DefaultConfig())
	changed := base.WithPrice(50000, 0).WithRooms(2, 0).WithLocationToken("Rennes_35000")

	assert.Equal(t, "15000-300000", base.Param("price"))
	assert.Empty(t, base.Locations())
	assert.Equal(t, "50000-", changed.Param("price"))
	// an open room bound is ignored
	assert.Equal(t, "3-6", changed.Param("rooms"))
	assert.Equal(t, []string{"Rennes_35000"}, changed.Locations())
}

func TestMultipleLocationsAndClear(t *testing.T) {
	q := NewSaleQuery(config.DefaultConfig()).
		WithLocationToken("Albi_81000").
		WithLocationToken("Toulouse_31000")
	assert.Equal(t, "Albi_81000,Toulouse_31000", q.Param("locations"))

	cleared := q.ClearLocations()
	assert.NotContains(t, cleared.Build(), "locations=")
	assert.Contains(t, q.Build(), "locations=Albi_81000%2CToulouse_31000")
}

func TestRentalVariants(t *testing.T) {
	cfg := config.DefaultConfig()
	sale := NewSaleQuery(cfg).WithLocationToken("Albi_81000")
	rental := sale.Rental(cfg.Search.Rental)

	assert.Equal(t, CategoryRental, rental.Param("category"))
	assert.Equal(t, "20-200", rental.Param("square"))
	assert.Empty(t, rental.Param("price"))
	assert.Equal(t, []string{"Albi_81000"}, rental.Locations())

	furnished := rental.WithFurnished(FurnishedOnly)
	unfurnished := rental.WithFurnished(Unfurnished)
	assert.Equal(t, "1", furnished.Param("furnished"))
	assert.Equal(t, "2", unfurnished.Param("furnished"))
	assert.Empty(t, furnished.WithFurnished(AnyFurnishing).Param("furnished"))
	assert.Empty(t, rental.Param("furnished"))
}

func TestParse(t *testing.T) {
	q, err := Parse("https://www.leboncoin.fr/recherche?category=9&locations=Albi_81000,Lyon&price=1-2&foo=bar", 10000)
	require.NoError(t, err)
	assert.Equal(t, "9", q.Param("category"))
	assert.Equal(t, "bar", q.Param("foo"))
	assert.Equal(t, []string{"Albi_81000", "Lyon"}, q.Locations())
	assert.Equal(t, []string{"category", "foo", "locations", "price"}, q.Keys())

	_, err = Parse("/recherche?category=9", 0)
	assert.Error(t, err)
}

func TestPropertyTypes(t *testing.T) {
	q := NewSaleQuery(config.DefaultConfig()).WithPropertyTypes(1)
	assert.Equal(t, "1", q.Param("real_estate_type"))
	assert.Equal(t, q.Param("real_estate_type"), q.WithPropertyTypes().Param("real_estate_type"))
}
