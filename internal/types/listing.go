package types

import (
	"errors"
	"math"
	"strings"
)

// Listing is one classified ad extracted from a search results page.
// Optional numeric fields are nil when the card did not carry them and
// serialize as JSON null.
type Listing struct {
	ID              string `json:"id"`
	Price           *int   `json:"price"`
	Location        string `json:"location"`
	Description     string `json:"description"`
	SurfaceM2       *int   `json:"surface_m2"`
	PricePerM2      *int   `json:"price_per_m2"`
	Rooms           *int   `json:"rooms"`
	URL             string `json:"url"`
	PublicationDate string `json:"publication_date,omitempty"`
	Furnished       *bool  `json:"furnished,omitempty"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// HasPrice reports whether a price was parsed.
func (l *Listing) HasPrice() bool { return l.Price != nil }

// HasSurface reports whether a surface was parsed.
func (l *Listing) HasSurface() bool { return l.SurfaceM2 != nil }

// Recompute derives PricePerM2 from Price and SurfaceM2. A stored value is
// never trusted.
func (l *Listing) Recompute() {
	l.PricePerM2 = nil
	if l.Price == nil || l.SurfaceM2 == nil || *l.SurfaceM2 <= 0 {
		return
	}
	ppm := int(math.Round(float64(*l.Price) / float64(*l.SurfaceM2)))
	l.PricePerM2 = &ppm
}

// Validate enforces the required-field rule: price, location, description
// and url must all be present.
func (l *Listing) Validate() error {
	var missing []string
	if l.Price == nil {
		missing = append(missing, "price")
	}
	if strings.TrimSpace(l.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(l.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(l.URL) == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns a deep copy so callers can stamp or re-index without
// aliasing pointer fields.
func (l Listing) Clone() Listing {
	c := l
	if l.Price != nil {
		c.Price = Int(*l.Price)
	}
	if l.SurfaceM2 != nil {
		c.SurfaceM2 = Int(*l.SurfaceM2)
	}
	if l.PricePerM2 != nil {
		c.PricePerM2 = Int(*l.PricePerM2)
	}
	if l.Rooms != nil {
		c.Rooms = Int(*l.Rooms)
	}
	if l.Furnished != nil {
		c.Furnished = Bool(*l.Furnished)
	}
	return c
}
