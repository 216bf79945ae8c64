package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type nominatim struct {
	mu      sync.Mutex
	queries []string
	agents  []string
	respond func(q string, call int) (int, string)
}

func (n *nominatim) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.queries = append(n.queries, r.URL.Query().Get("q"))
	n.agents = append(n.agents, r.Header.Get("User-Agent"))
	call := len(n.queries)
	n.mu.Unlock()

	status, body := n.respond(r.URL.Query().Get("q"), call)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func newGeocoder(t *testing.T, h http.Handler) (*Geocoder, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig().Geocode
	cfg.Endpoint = srv.URL + "/search"
	cfg.MinDelay = time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = 2 * time.Second

	metrics := observability.NewMetrics(testLogger)
	return New(&cfg, testLogger, WithMetrics(metrics)), metrics
}

const albi = `[{"lat":"43.9277","lon":"2.1480","display_name":"Albi, Tarn, Occitanie, 81000, France",
 "address":{"city":"Albi","postcode":"81000"}}]`

func TestIsPostalCode(t *testing.T) {
	assert.True(t, IsPostalCode("81000"))
	assert.True(t, IsPostalCode("01000"))
	assert.False(t, IsPostalCode("00999"))
	assert.False(t, IsPostalCode("99000"))
	assert.False(t, IsPostalCode("8100"))
	assert.False(t, IsPostalCode("Albi"))
	assert.False(t, IsPostalCode("+8100"))
}

func TestQueries(t *testing.T) {
	assert.Equal(t, []string{"81000, France", "81000, FR"}, Queries("81000"))
	assert.Equal(t, []string{"Albi, France", "Ville de Albi, France", "Albi, Albi, France"}, Queries("Albi"))
}

func TestLookupCity(t *testing.T) {
	n := &nominatim{respond: func(string, int) (int, string) { return http.StatusOK, albi }}
	g, metrics := newGeocoder(t, n)

	p, err := g.Lookup(context.Background(), "Albi")
	require.NoError(t, err)
	assert.Equal(t, "Albi", p.Name)
	assert.Equal(t, "81000", p.Postcode)
	assert.InDelta(t, 43.9277, p.Latitude, 1e-9)
	assert.InDelta(t, 2.1480, p.Longitude, 1e-9)
	assert.Equal(t, InputCityName, p.InputType)

	assert.Equal(t, []string{"Albi, France"}, n.queries)
	assert.Equal(t, "lbc_scraper", n.agents[0])
	assert.Equal(t, int64(1), metrics.GeocodeRequests.Load())
}

func TestLookupTriesVariants(t *testing.T) {
	n := &nominatim{respond: func(q string, _ int) (int, string) {
		if q == "Ville de Lavaur, France" {
			return http.StatusOK, `[{"lat":"43.69","lon":"1.81","display_name":"Lavaur, Tarn, 81500, France","address":{"town":"Lavaur"}}]`
		}
		return http.StatusOK, `[]`
	}}
	g, _ := newGeocoder(t, n)

	p, err := g.Lookup(context.Background(), "Lavaur")
	require.NoError(t, err)
	assert.Equal(t, "Lavaur", p.Name)
	// postcode recovered from the display name
	assert.Equal(t, "81500", p.Postcode)
	assert.Len(t, n.queries, 2)
}

func TestLookupPostalCodeFallsBackToInput(t *testing.T) {
	n := &nominatim{respond: func(string, int) (int, string) {
		return http.StatusOK, `[{"lat":"45.76","lon":"4.83","display_name":"Lyon, France","address":{"village":"Lyon 2e"}}]`
	}}
	g, _ := newGeocoder(t, n)

	p, err := g.Lookup(context.Background(), "69002")
	require.NoError(t, err)
	assert.Equal(t, "69002", p.Postcode)
	assert.Equal(t, "Lyon 2e", p.Name)
	assert.Equal(t, InputPostalCode, p.InputType)
}

func TestLookupNotFoundAfterRetries(t *testing.T) {
	n := &nominatim{respond: func(string, int) (int, string) { return http.StatusOK, `[]` }}
	g, metrics := newGeocoder(t, n)

	_, err := g.Lookup(context.Background(), "Nulle-Part")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	// three variants per attempt, three attempts
	assert.Len(t, n.queries, 9)
	assert.Equal(t, int64(1), metrics.GeocodeFailures.Load())
}

func TestLookupRetriesServerErrors(t *testing.T) {
	n := &nominatim{respond: func(_ string, call int) (int, string) {
		if call == 1 {
			return http.StatusServiceUnavailable, `{"error":"busy"}`
		}
		return http.StatusOK, albi
	}}
	g, _ := newGeocoder(t, n)

	p, err := g.Lookup(context.Background(), "Albi")
	require.NoError(t, err)
	assert.Equal(t, "81000", p.Postcode)
	assert.Len(t, n.queries, 2)
}

func TestLookupGivesUpOnPersistentErrors(t *testing.T) {
	n := &nominatim{respond: func(string, int) (int, string) { return http.StatusBadGateway, "bad" }}
	g, _ := newGeocoder(t, n)

	_, err := g.Lookup(context.Background(), "Albi")
	require.Error(t, err)
	var ferr *types.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
}

func TestLookupNoPostcode(t *testing.T) {
	n := &nominatim{respond: func(string, int) (int, string) {
		return http.StatusOK, `[{"lat":"1","lon":"2","display_name":"Somewhere","address":{}}]`
	}}
	g, _ := newGeocoder(t, n)

	_, err := g.Lookup(context.Background(), "Somewhere")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLookupEmptyInput(t *testing.T) {
	g, _ := newGeocoder(t, http.NotFoundHandler())
	_, err := g.Lookup(context.Background(), "   ")
	assert.Error(t, err)
}
