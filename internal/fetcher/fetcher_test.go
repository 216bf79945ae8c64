package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		html string
		kind ChallengeKind
		ok   bool
	}{
		{`<script src="https://ct.captcha-delivery.com/c.js"></script>`, ChallengeDataDome, true},
		{`<html><body>DataDome protection</body></html>`, ChallengeDataDome, true},
		{`<h1>Access Denied</h1>`, ChallengeAccessDenied, true},
		{`<div class="g-recaptcha" data-sitekey="x"></div>`, ChallengeReCaptcha, true},
		{`<div class="cf-turnstile"></div>`, ChallengeTurnstile, true},
		{`<div class="adcard_x">Appartement</div>`, "", false},
		{`<head><script src="https://js.datadome.co/tags.js"></script></head><div class="adcard_x">Maison</div>`, "", false},
	}
	for _, tt := range tests {
		kind, ok := DetectChallenge(tt.html)
		assert.Equal(t, tt.ok, ok, tt.html)
		assert.Equal(t, tt.kind, kind, tt.html)
	}
}

func TestConsoleOperatorResumesOnEnter(t *testing.T) {
	var out bytes.Buffer
	op := NewConsoleOperator(strings.NewReader("\n"), &out, testLogger)

	err := op.AwaitIntervention(context.Background(), "https://www.leboncoin.fr/recherche", ChallengeDataDome)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "datadome")
	assert.Contains(t, out.String(), "press Enter")
}

func TestConsoleOperatorHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	op := NewConsoleOperator(r, io.Discard, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := op.AwaitIntervention(ctx, "https://www.leboncoin.fr", ChallengeAccessDenied)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStealthFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	sc := StealthFromConfig(&cfg)
	assert.Equal(t, "1920,1080", sc.WindowSize)

	js := sc.StealthJS()
	assert.Contains(t, js, "'fr-FR'")
	assert.Contains(t, js, "'Win32'")
	assert.Contains(t, js, "webdriver")
}

func TestBrowserSessionCloseReleasesProcessOnce(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	released := 0
	s := &BrowserSession{cfg: &cfg, logger: testLogger, release: func() { released++ }}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, released)

	assert.ErrorIs(t, s.Navigate(context.Background(), "https://www.leboncoin.fr"), types.ErrSessionClosed)
	_, err := s.HTML()
	assert.ErrorIs(t, err, types.ErrSessionClosed)
	assert.ErrorIs(t, s.Scroll(100), types.ErrSessionClosed)
}

func TestHTTPClientDecodesEncodings(t *testing.T) {
	payload := `[{"display_name":"Lyon, 69003, France"}]`

	encoders := map[string]func(io.Writer) io.WriteCloser{
		"br":   func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"":     nil,
	}

	for encoding, newEncoder := range encoders {
		t.Run("encoding="+encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "lbc_scraper", r.Header.Get("User-Agent"))
				assert.Equal(t, "gzip, deflate, br", r.Header.Get("Accept-Encoding"))
				w.Header().Set("Content-Type", "application/json")
				if newEncoder == nil {
					io.WriteString(w, payload)
					return
				}
				w.Header().Set("Content-Encoding", encoding)
				enc := newEncoder(w)
				io.WriteString(enc, payload)
				enc.Close()
			}))
			defer srv.Close()

			c := NewHTTPClient(5*time.Second, "lbc_scraper", "fr", testLogger)
			var got []map[string]string
			require.NoError(t, c.GetJSON(context.Background(), srv.URL, &got))
			require.Len(t, got, 1)
			assert.Equal(t, "Lyon, 69003, France", got[0]["display_name"])
		})
	}
}

func TestHTTPClientStatusErrors(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, "busy")
	}))
	defer srv.Close()

	c := NewHTTPClient(5*time.Second, "lbc_scraper", "", testLogger)

	var v any
	err := c.GetJSON(context.Background(), srv.URL, &v)
	var ferr *types.FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusServiceUnavailable, ferr.StatusCode)
	assert.True(t, ferr.IsRetryable())

	status = http.StatusNotFound
	err = c.GetJSON(context.Background(), srv.URL, &v)
	require.True(t, errors.As(err, &ferr))
	assert.False(t, ferr.IsRetryable())
}

func TestHTTPClientEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewHTTPClient(5*time.Second, "lbc_scraper", "", testLogger)
	var v any
	err := c.GetJSON(context.Background(), srv.URL, &v)
	assert.ErrorIs(t, err, types.ErrEmptyResponse)
}
