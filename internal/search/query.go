// Package search builds leboncoin search URLs.
package search

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/IshaanNene/lbcscraper/internal/config"
)

// Site category ids.
const (
	CategorySale   = "9"
	CategoryRental = "10"
)

// Query parameter names understood by the search page.
const (
	paramCategory  = "category"
	paramPrice     = "price"
	paramSquare    = "square"
	paramRooms     = "rooms"
	paramBedrooms  = "bedrooms"
	paramTypes     = "real_estate_type"
	paramLocations = "locations"
	paramFurnished = "furnished"
)

// Furnished filter values.
type Furnished int

const (
	AnyFurnishing Furnished = 0
	FurnishedOnly Furnished = 1
	Unfurnished   Furnished = 2
)

// Place is a geocoded location a search can be centered on.
type Place struct {
	Name      string  `json:"name"`
	Postcode  string  `json:"postcode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	InputType string  `json:"input_type"`
}

// Query is an immutable set of search parameters. Every With method
// returns a modified copy.
type Query struct {
	endpoint  string
	radius    int
	params    map[string]string
	locations []string
}

// NewQuery creates a query against endpoint with the given filters.
func NewQuery(endpoint string, radius int, f config.SearchFilters) Query {
	q := Query{endpoint: endpoint, radius: radius, params: map[string]string{}}
	q.params[paramCategory] = f.Category
	q.params[paramPrice] = f.Price
	q.params[paramSquare] = f.Square
	q.params[paramRooms] = f.Rooms
	q.params[paramBedrooms] = f.Bedrooms
	q.params[paramTypes] = f.PropertyTypes
	return q
}

// NewSaleQuery is the default property sale search.
func NewSaleQuery(cfg *config.Config) Query {
	return NewQuery(cfg.Site.SearchURL, cfg.Search.Radius, cfg.Search.Sale)
}

// NewRentalQuery is the default rental search.
func NewRentalQuery(cfg *config.Config) Query {
	return NewQuery(cfg.Site.SearchURL, cfg.Search.Radius, cfg.Search.Rental)
}

// Parse reads an existing search URL. Unknown parameters are kept as is.
func Parse(raw string, radius int) (Query, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Query{}, fmt.Errorf("parse search URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Query{}, fmt.Errorf("parse search URL %q: not absolute", raw)
	}
	endpoint := *u
	endpoint.RawQuery = ""
	endpoint.Fragment = ""

	q := Query{endpoint: endpoint.String(), radius: radius, params: map[string]string{}}
	for k, vs := range u.Query() {
		if len(vs) == 0 {
			continue
		}
		if k == paramLocations {
			for _, tok := range strings.Split(vs[0], ",") {
				if tok != "" {
					q.locations = append(q.locations, tok)
				}
			}
			continue
		}
		q.params[k] = vs[0]
	}
	return q, nil
}

func (q Query) clone() Query {
	c := Query{endpoint: q.endpoint, radius: q.radius, params: make(map[string]string, len(q.params))}
	for k, v := range q.params {
		c.params[k] = v
	}
	c.locations = append([]string(nil), q.locations...)
	return c
}

func (q Query) with(key, value string) Query {
	c := q.clone()
	if value == "" {
		delete(c.params, key)
	} else {
		c.params[key] = value
	}
	return c
}

// Param returns the raw value of a parameter.
func (q Query) Param(key string) string {
	if key == paramLocations {
		return strings.Join(q.locations, ",")
	}
	return q.params[key]
}

// WithCategory sets the category id.
func (q Query) WithCategory(id string) Query { return q.with(paramCategory, id) }

// WithPrice sets the price range. Zero leaves a bound open, two zeros
// leave the query unchanged.
func (q Query) WithPrice(lo, hi int) Query { return q.withRange(paramPrice, Range(lo, hi)) }

// WithSurface sets the surface range in m².
func (q Query) WithSurface(lo, hi int) Query { return q.withRange(paramSquare, Range(lo, hi)) }

// WithRooms sets the room count range. Both bounds are required.
func (q Query) WithRooms(lo, hi int) Query { return q.withRange(paramRooms, closedRange(lo, hi)) }

// WithBedrooms sets the bedroom count range. Both bounds are required.
func (q Query) WithBedrooms(lo, hi int) Query {
	return q.withRange(paramBedrooms, closedRange(lo, hi))
}

func (q Query) withRange(key, value string) Query {
	if value == "" {
		return q
	}
	return q.with(key, value)
}

// WithPropertyTypes sets the property types (1 house, 2 flat).
func (q Query) WithPropertyTypes(types ...int) Query {
	if len(types) == 0 {
		return q
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = strconv.Itoa(t)
	}
	return q.with(paramTypes, strings.Join(parts, ","))
}

// WithFurnished restricts a rental search. AnyFurnishing removes the filter.
func (q Query) WithFurnished(f Furnished) Query {
	switch f {
	case FurnishedOnly, Unfurnished:
		return q.with(paramFurnished, strconv.Itoa(int(f)))
	default:
		return q.with(paramFurnished, "")
	}
}

// WithLocation appends a geocoded place.
func (q Query) WithLocation(p Place) Query {
	c := q.clone()
	c.locations = append(c.locations, LocationToken(p.Name, p.Postcode, &p.Latitude, &p.Longitude, q.radius))
	return c
}

// WithLocationToken appends a raw location token.
func (q Query) WithLocationToken(tok string) Query {
	if tok == "" {
		return q
	}
	c := q.clone()
	c.locations = append(c.locations, tok)
	return c
}

// ClearLocations removes every location.
func (q Query) ClearLocations() Query {
	c := q.clone()
	c.locations = nil
	return c
}

// Locations returns the location tokens in order.
func (q Query) Locations() []string { return append([]string(nil), q.locations...) }

// Rental returns a rental query with filters f and the locations
// of q.
func (q Query) Rental(f config.SearchFilters) Query {
	r := NewQuery(q.endpoint, q.radius, f)
	r.params[paramCategory] = CategoryRental
	r.locations = append([]string(nil), q.locations...)
	return r
}

// Build returns the search URL. Empty parameters are omitted and keys are
// sorted.
func (q Query) Build() string {
	v := url.Values{}
	for k, val := range q.params {
		if val != "" {
			v.Set(k, val)
		}
	}
	if len(q.locations) > 0 {
		v.Set(paramLocations, strings.Join(q.locations, ","))
	}
	if len(v) == 0 {
		return q.endpoint
	}
	return q.endpoint + "?" + v.Encode()
}

func (q Query) String() string { return q.Build() }

// LocationToken encodes one place as the site expects it:
// "Name-With-Dashes_postcode__lat_lon_radius". Missing parts are left out.
func LocationToken(name, postcode string, lat, lon *float64, radius int) string {
	parts := []string{strings.ReplaceAll(strings.TrimSpace(name), " ", "-")}
	if postcode != "" {
		parts = append(parts, postcode)
	}
	if lat != nil && lon != nil {
		parts = append(parts, "", fmt.Sprintf("%s_%s_%d", formatCoord(*lat), formatCoord(*lon), radius))
	}
	return strings.Join(parts, "_")
}

// Range renders a "min-max" filter. A zero bound is left open.
func Range(lo, hi int) string {
	switch {
	case lo > 0 && hi > 0:
		return fmt.Sprintf("%d-%d", lo, hi)
	case lo > 0:
		return fmt.Sprintf("%d-", lo)
	case hi > 0:
		return fmt.Sprintf("-%d", hi)
	}
	return ""
}

func closedRange(lo, hi int) string {
	if lo <= 0 || hi <= 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Keys lists the parameters set on q, sorted.
func (q Query) Keys() []string {
	keys := make([]string, 0, len(q.params)+1)
	for k, v := range q.params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(q.locations) > 0 {
		keys = append(keys, paramLocations)
	}
	sort.Strings(keys)
	return keys
}
