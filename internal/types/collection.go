package types

import "strconv"

// Collection is an insertion-ordered set of listings keyed by URL.
//
// When a URL is added twice the stored record is replaced only if the new
// one supplies a price or a surface the stored one lacks. A replacement
// keeps the position of the first insertion.
type Collection struct {
	order []string
	byURL map[string]Listing
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{byURL: make(map[string]Listing)}
}

// Add inserts l or resolves a conflict with the stored record for l.URL.
func (c *Collection) Add(l Listing) (added, replaced bool) {
	old, ok := c.byURL[l.URL]
	if !ok {
		c.order = append(c.order, l.URL)
		c.byURL[l.URL] = l.Clone()
		return true, false
	}
	if moreInformative(old, l) {
		c.byURL[l.URL] = l.Clone()
		return false, true
	}
	return false, false
}

// AddAll adds every record in order.
func (c *Collection) AddAll(records []Listing) {
	for _, r := range records {
		c.Add(r)
	}
}

// Len returns the number of distinct URLs.
func (c *Collection) Len() int { return len(c.order) }

// Records returns the listings in first-insertion order with dense ids
// "1".."N" and freshly derived price per m².
func (c *Collection) Records() []Listing {
	out := make([]Listing, 0, len(c.order))
	for _, u := range c.order {
		out = append(out, c.byURL[u].Clone())
	}
	return Reindex(out)
}

// Reindex assigns dense ids in slice order and recomputes derived fields
// in place. It returns records for chaining.
func Reindex(records []Listing) []Listing {
	for i := range records {
		records[i].ID = strconv.Itoa(i + 1)
		records[i].Recompute()
	}
	return records
}

func moreInformative(old, candidate Listing) bool {
	if !old.HasPrice() && candidate.HasPrice() {
		return true
	}
	if !old.HasSurface() && candidate.HasSurface() {
		return true
	}
	return false
}
