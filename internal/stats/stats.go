// Package stats summarizes scraped listings.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/IshaanNene/lbcscraper/internal/loan"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

// CityMean is the mean value for one city.
type CityMean struct {
	City string  `json:"city"`
	Mean float64 `json:"mean"`
}

// Summary aggregates one numeric field over a set of listings.
type Summary struct {
	Count  int        `json:"count"`
	Mean   float64    `json:"mean"`
	Min    float64    `json:"min"`
	Max    float64    `json:"max"`
	ByCity []CityMean `json:"by_city"`
}

// RentalSummary splits rental statistics by furnishing. A nil part had
// no priced listing.
type RentalSummary struct {
	Global      *Summary `json:"global"`
	Furnished   *Summary `json:"furnished"`
	Unfurnished *Summary `json:"unfurnished"`
}

// CityKey is the city a location is grouped under: its first word.
func CityKey(location string) string {
	fields := strings.Fields(location)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Sales summarizes price per m². It returns nil when no listing has one.
func Sales(records []types.Listing) *Summary {
	return summarize(records, func(l types.Listing) *int { return l.PricePerM2 })
}

// Rentals summarizes monthly rents, overall and per furnishing.
func Rentals(records []types.Listing) RentalSummary {
	var furnished, unfurnished []types.Listing
	for _, r := range records {
		if r.Furnished == nil {
			continue
		}
		if *r.Furnished {
			furnished = append(furnished, r)
		} else {
			unfurnished = append(unfurnished, r)
		}
	}
	price := func(l types.Listing) *int { return l.Price }
	return RentalSummary{
		Global:      summarize(records, price),
		Furnished:   summarize(furnished, price),
		Unfurnished: summarize(unfurnished, price),
	}
}

func summarize(records []types.Listing, field func(types.Listing) *int) *Summary {
	var (
		sum    float64
		s      = &Summary{Min: math.Inf(1), Max: math.Inf(-1)}
		cities = map[string][]float64{}
		order  []string
	)
	for _, r := range records {
		v := field(r)
		if v == nil {
			continue
		}
		f := float64(*v)
		s.Count++
		sum += f
		s.Min = math.Min(s.Min, f)
		s.Max = math.Max(s.Max, f)

		if city := CityKey(r.Location); city != "" {
			if _, ok := cities[city]; !ok {
				order = append(order, city)
			}
			cities[city] = append(cities[city], f)
		}
	}
	if s.Count == 0 {
		return nil
	}
	s.Mean = round2(sum / float64(s.Count))

	for _, c := range order {
		s.ByCity = append(s.ByCity, CityMean{City: c, Mean: round2(mean(cities[c]))})
	}
	sort.SliceStable(s.ByCity, func(i, j int) bool { return s.ByCity[i].Mean > s.ByCity[j].Mean })
	return s
}

// RoomStats aggregates listings with the same room count.
type RoomStats struct {
	Rooms          int     `json:"rooms"`
	Count          int     `json:"count"`
	MeanPrice      float64 `json:"mean_price"`
	MeanSurface    float64 `json:"mean_surface"`
	MeanPricePerM2 float64 `json:"mean_price_per_m2"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	MinPricePerM2  float64 `json:"min_price_per_m2"`
	MaxPricePerM2  float64 `json:"max_price_per_m2"`
}

// ByRooms groups listings having rooms, price and surface by room count,
// sorted by rooms. Mean price per m² is total price over total surface.
func ByRooms(records []types.Listing) []RoomStats {
	type acc struct {
		RoomStats
		totalPrice, totalSurface float64
		hasPPM                   bool
	}
	groups := map[int]*acc{}
	for _, r := range records {
		if r.Rooms == nil || r.Price == nil || r.SurfaceM2 == nil {
			continue
		}
		g, ok := groups[*r.Rooms]
		if !ok {
			g = &acc{RoomStats: RoomStats{Rooms: *r.Rooms, MinPrice: math.Inf(1), MinPricePerM2: math.Inf(1)}}
			groups[*r.Rooms] = g
		}
		price, surface := float64(*r.Price), float64(*r.SurfaceM2)
		g.Count++
		g.totalPrice += price
		g.totalSurface += surface
		g.MinPrice = math.Min(g.MinPrice, price)
		g.MaxPrice = math.Max(g.MaxPrice, price)
		if surface > 0 {
			ppm := price / surface
			g.MinPricePerM2 = math.Min(g.MinPricePerM2, ppm)
			g.MaxPricePerM2 = math.Max(g.MaxPricePerM2, ppm)
			g.hasPPM = true
		}
	}

	out := make([]RoomStats, 0, len(groups))
	for _, g := range groups {
		g.MeanPrice = g.totalPrice / float64(g.Count)
		g.MeanSurface = g.totalSurface / float64(g.Count)
		if g.totalSurface > 0 {
			g.MeanPricePerM2 = g.totalPrice / g.totalSurface
		}
		if !g.hasPPM {
			g.MinPricePerM2 = 0
		}
		out = append(out, g.RoomStats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rooms < out[j].Rooms })
	return out
}

// RentByRooms maps a room count to its mean rent.
func RentByRooms(rooms []RoomStats) map[int]float64 {
	out := make(map[int]float64, len(rooms))
	for _, r := range rooms {
		if r.MeanPrice > 0 {
			out[r.Rooms] = round2(r.MeanPrice)
		} else {
			out[r.Rooms] = r.MeanPricePerM2 * r.MeanSurface
		}
	}
	return out
}

// AverageRentPerM2 is the mean of price / surface over listings with a
// surface, or fallback when there are none.
func AverageRentPerM2(records []types.Listing, fallback float64) float64 {
	var vals []float64
	for _, r := range records {
		if r.Price != nil && r.SurfaceM2 != nil && *r.SurfaceM2 > 0 {
			vals = append(vals, float64(*r.Price)/float64(*r.SurfaceM2))
		}
	}
	if len(vals) == 0 {
		return fallback
	}
	return round2(mean(vals))
}

// Criteria restricts a listing set. Zero values do not filter.
type Criteria struct {
	MaxPrice   int
	MinSurface int
	City       string
}

// Filter returns the listings matching c, in order.
func Filter(records []types.Listing, c Criteria) []types.Listing {
	city := strings.ToLower(strings.TrimSpace(c.City))
	out := make([]types.Listing, 0, len(records))
	for _, r := range records {
		if c.MaxPrice > 0 && (r.Price == nil || *r.Price > c.MaxPrice) {
			continue
		}
		if c.MinSurface > 0 && (r.SurfaceM2 == nil || *r.SurfaceM2 < c.MinSurface) {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(r.Location), city) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Affordability compares a sale's mortgage payment with the rent a
// listing of the same size would fetch.
type Affordability struct {
	Listing types.Listing
	Payment float64  // zero without a price
	Rent    *float64 // nil when no rent is known for the room count
	// Difference is rent minus payment, nil when either is unknown.
	Difference *float64
}

// AffordabilityRows computes one row per listing. Rentals use their own
// price as rent, sales look up rentByRooms.
func AffordabilityRows(records []types.Listing, rentByRooms map[int]float64, ratePercent float64, years int) []Affordability {
	out := make([]Affordability, 0, len(records))
	for _, r := range records {
		row := Affordability{Listing: r}
		if r.Price != nil {
			row.Payment = loan.MonthlyPayment(float64(*r.Price), ratePercent, years)
		}
		switch {
		case r.Furnished != nil && r.Price != nil:
			rent := float64(*r.Price)
			row.Rent = &rent
		case r.Rooms != nil:
			if rent, ok := rentByRooms[*r.Rooms]; ok {
				row.Rent = &rent
			}
		}
		if row.Rent != nil && row.Payment > 0 {
			d := *row.Rent - row.Payment
			row.Difference = &d
		}
		out = append(out, row)
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
