// Package geocode resolves French place names and postal codes to
// coordinates through a Nominatim endpoint.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/fetcher"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/search"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

// Input types reported in search.Place.InputType.
const (
	InputPostalCode = "postal_code"
	InputCityName   = "city_name"
)

var postcodeRe = regexp.MustCompile(`\b(?:0[1-9]|[1-8]\d|9[0-8])\d{3}\b`)

// IsPostalCode reports whether s is a plausible French postal code.
func IsPostalCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil || strings.ContainsAny(s, "+-") {
		return false
	}
	return n >= 1000 && n <= 98999
}

// Queries returns the free-text queries tried for input, in order.
func Queries(input string) []string {
	if IsPostalCode(input) {
		return []string{input + ", France", input + ", FR"}
	}
	return []string{
		input + ", France",
		"Ville de " + input + ", France",
		input + ", " + input + ", France",
	}
}

type result struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	Postcode string `json:"postcode"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
}

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithMetrics counts lookups.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Geocoder) { g.metrics = m }
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(s func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Geocoder) { g.sleep = s }
}

// Geocoder looks places up one at a time, never faster than the
// configured minimum delay.
type Geocoder struct {
	client     *fetcher.HTTPClient
	endpoint   string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Geocoder from cfg.
func New(cfg *config.GeocodeConfig, logger *slog.Logger, opts ...Option) *Geocoder {
	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}
	g := &Geocoder{
		client:     fetcher.NewHTTPClient(cfg.Timeout, cfg.UserAgent, "fr", logger),
		endpoint:   cfg.Endpoint,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		sleep:      sleepContext,
		logger:     logger.With("component", "geocoder"),
	}
	if g.maxRetries < 1 {
		g.maxRetries = 1
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = observability.NewMetrics(logger)
	}
	return g
}

// Lookup resolves a city name or postal code. It fails with
// types.ErrNotFound when no attempt yields a place with a postal code.
func (g *Geocoder) Lookup(ctx context.Context, input string) (search.Place, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return search.Place{}, fmt.Errorf("geocode: empty input")
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if attempt > 1 {
			if err := g.sleep(ctx, g.retryDelay); err != nil {
				return search.Place{}, err
			}
		}

		res, err := g.try(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return search.Place{}, ctx.Err()
			}
			lastErr = err
			g.logger.Warn("geocoding attempt failed", "input", input, "attempt", attempt, "error", err)
			continue
		}
		if res == nil {
			lastErr = nil
			g.logger.Info("location not found, retrying", "input", input, "attempt", attempt, "max", g.maxRetries)
			continue
		}

		place, err := toPlace(input, res)
		if err != nil {
			g.metrics.GeocodeFailures.Add(1)
			return search.Place{}, err
		}
		g.logger.Info("location resolved",
			"input", input,
			"name", place.Name,
			"postcode", place.Postcode,
			"lat", place.Latitude,
			"lon", place.Longitude,
		)
		return place, nil
	}

	g.metrics.GeocodeFailures.Add(1)
	if lastErr != nil {
		return search.Place{}, fmt.Errorf("geocode %q after %d attempts: %w", input, g.maxRetries, lastErr)
	}
	return search.Place{}, fmt.Errorf("geocode %q: %w", input, types.ErrNotFound)
}

// try runs every query variant once. A nil result with a nil error means
// nothing matched.
func (g *Geocoder) try(ctx context.Context, input string) (*result, error) {
	for _, q := range Queries(input) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		g.metrics.GeocodeRequests.Add(1)

		var results []result
		if err := g.client.GetJSON(ctx, g.searchURL(q), &results); err != nil {
			var ferr *types.FetchError
			if errors.As(err, &ferr) && errors.Is(ferr.Err, types.ErrEmptyResponse) {
				continue
			}
			return nil, err
		}
		if len(results) > 0 {
			return &results[0], nil
		}
	}
	return nil, nil
}

func (g *Geocoder) searchURL(q string) string {
	v := url.Values{}
	v.Set("q", q)
	v.Set("format", "jsonv2")
	v.Set("addressdetails", "1")
	v.Set("limit", "1")
	v.Set("accept-language", "fr")
	return g.endpoint + "?" + v.Encode()
}

func toPlace(input string, r *result) (search.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return search.Place{}, fmt.Errorf("geocode %q: bad latitude %q: %w", input, r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return search.Place{}, fmt.Errorf("geocode %q: bad longitude %q: %w", input, r.Lon, err)
	}

	name := firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village, input)
	postcode := r.Address.Postcode
	if postcode == "" {
		postcode = postcodeRe.FindString(r.DisplayName)
	}
	isPostal := IsPostalCode(input)
	if postcode == "" && isPostal {
		postcode = input
	}
	if postcode == "" {
		return search.Place{}, fmt.Errorf("geocode %q: no postal code in result: %w", input, types.ErrNotFound)
	}

	inputType := InputCityName
	if isPostal {
		inputType = InputPostalCode
	}
	return search.Place{
		Name:      name,
		Postcode:  postcode,
		Latitude:  lat,
		Longitude: lon,
		InputType: inputType,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
