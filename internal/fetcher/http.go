package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

const maxJSONBody = 4 * 1024 * 1024

// HTTPClient fetches JSON documents from web APIs, decoding gzip, deflate
// and brotli bodies itself.
type HTTPClient struct {
	client    *http.Client
	userAgent string
	language  string
	logger    *slog.Logger
}

// NewHTTPClient creates an HTTPClient identifying itself as userAgent.
func NewHTTPClient(timeout time.Duration, userAgent, language string, logger *slog.Logger) *HTTPClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true,
	}

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: userAgent,
		language:  language,
		logger:    logger.With("component", "http_client"),
	}
}

// GetJSON performs a GET request and decodes the JSON body into v.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err, Retryable: isRetryableError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return &types.FetchError{URL: rawURL, Err: err}
	}

	if err := json.NewDecoder(reader).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &types.FetchError{URL: rawURL, Err: types.ErrEmptyResponse}
		}
		return &types.FetchError{URL: rawURL, Err: fmt.Errorf("decode JSON: %w", err), Retryable: errors.Is(err, io.ErrUnexpectedEOF)}
	}

	c.logger.Debug("fetch complete",
		"url", rawURL,
		"status", resp.StatusCode,
		"encoding", resp.Header.Get("Content-Encoding"),
		"duration", time.Since(start),
	)
	return nil
}

// decompressReader wraps a reader with the decoder named by the
// Content-Encoding header.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}
