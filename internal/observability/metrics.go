package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational metrics for a scraping run.
type Metrics struct {
	// Page metrics
	PagesFetched atomic.Int64
	PagesStopped atomic.Int64
	Challenges   atomic.Int64
	FetchErrors  atomic.Int64
	BytesFetched atomic.Int64

	// Card metrics
	CardsSeen        atomic.Int64
	RecordsKept      atomic.Int64
	FragmentsDropped atomic.Int64
	URLsIgnored      atomic.Int64

	// Storage metrics
	RecordsWritten atomic.Int64

	// Geocoding metrics
	GeocodeRequests atomic.Int64
	GeocodeFailures atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"lbcscraper_pages_fetched_total", "Result pages fetched", m.PagesFetched.Load()},
		{"lbcscraper_pages_stopped_total", "Result pages that ended a search", m.PagesStopped.Load()},
		{"lbcscraper_challenges_total", "Anti-bot challenges handed to the operator", m.Challenges.Load()},
		{"lbcscraper_fetch_errors_total", "Navigation or read failures", m.FetchErrors.Load()},
		{"lbcscraper_bytes_fetched_total", "Markup bytes read from the browser", m.BytesFetched.Load()},
		{"lbcscraper_cards_seen_total", "Ad cards found on result pages", m.CardsSeen.Load()},
		{"lbcscraper_records_kept_total", "Listings extracted from cards", m.RecordsKept.Load()},
		{"lbcscraper_fragments_dropped_total", "Cards rejected as incomplete", m.FragmentsDropped.Load()},
		{"lbcscraper_urls_ignored_total", "Cards whose link is not a listing", m.URLsIgnored.Load()},
		{"lbcscraper_records_written_total", "Listings written to JSON stores", m.RecordsWritten.Load()},
		{"lbcscraper_geocode_requests_total", "Geocoding lookups", m.GeocodeRequests.Load()},
		{"lbcscraper_geocode_failures_total", "Geocoding lookups without a result", m.GeocodeFailures.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":     m.PagesFetched.Load(),
		"pages_stopped":     m.PagesStopped.Load(),
		"challenges":        m.Challenges.Load(),
		"fetch_errors":      m.FetchErrors.Load(),
		"bytes_fetched":     m.BytesFetched.Load(),
		"cards_seen":        m.CardsSeen.Load(),
		"records_kept":      m.RecordsKept.Load(),
		"fragments_dropped": m.FragmentsDropped.Load(),
		"urls_ignored":      m.URLsIgnored.Load(),
		"records_written":   m.RecordsWritten.Load(),
		"geocode_requests":  m.GeocodeRequests.Load(),
		"geocode_failures":  m.GeocodeFailures.Load(),
	}
}
