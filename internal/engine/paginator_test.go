package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/fetcher"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/parser"
	"github.com/IshaanNene/lbcscraper/internal/storage"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const searchURL = "https://www.leboncoin.fr/recherche?category=9&locations=Rennes"

// fakeSession serves canned markup per navigation.
type fakeSession struct {
	render    func(n int, url string) (string, error)
	navigated []string
	scrolls   int
	closes    int
	current   string
	reads     int
	afterRead func(reads int) string
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	html, err := s.render(len(s.navigated), url)
	if err != nil {
		return err
	}
	s.current = html
	return nil
}

func (s *fakeSession) HTML() (string, error) {
	s.reads++
	if s.afterRead != nil {
		if html := s.afterRead(s.reads); html != "" {
			s.current = html
		}
	}
	return s.current, nil
}

func (s *fakeSession) Scroll(int) error {
	s.scrolls++
	return nil
}

func (s *fakeSession) Close() error {
	s.closes++
	return nil
}

type fakeOperator struct {
	calls []fetcher.ChallengeKind
	err   error
}

func (o *fakeOperator) AwaitIntervention(_ context.Context, _ string, kind fetcher.ChallengeKind) error {
	o.calls = append(o.calls, kind)
	return o.err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func resultsPage(n int, next bool) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Annonces - leboncoin</title></head><body>`)
	for i := 0; i < 2; i++ {
		fmt.Fprintf(&b, `<div class="adcard_x"><a href="/ad/ventes_immobilieres/%d%d">`+
			`<p data-test-id="price">%d €</p><p class="text-body-2">Maison %d</p>`+
			`<p class="text-caption text-neutral">Rennes 35000</p></a></div>`, n, i, 100000+n*1000+i, n)
	}
	if next {
		b.WriteString(`<nav><a aria-label="Page suivante" href="?page=next">›</a></nav>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func newTestPaginator(t *testing.T, s *fakeSession, opts ...PaginatorOption) (*Paginator, *observability.Metrics) {
	t.Helper()
	rec, err := parser.NewRecordExtractor("https://www.leboncoin.fr", testLogger)
	require.NoError(t, err)
	pages := parser.NewPageExtractor(rec, "https://www.leboncoin.fr/ad/", testLogger)

	cfg := config.DefaultConfig().Scraper
	cfg.PreScrollChance = 1
	metrics := observability.NewMetrics(testLogger)

	open := func(context.Context) (fetcher.Session, error) { return s, nil }
	base := []PaginatorOption{
		WithSleeper(noSleep),
		WithRand(rand.New(rand.NewSource(1))),
		WithMetrics(metrics),
	}
	return NewPaginator(&cfg, open, pages, testLogger, append(base, opts...)...), metrics
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, searchURL, PageURL(searchURL, 1))
	assert.Equal(t, searchURL+"&page=2", PageURL(searchURL, 2))
	assert.Equal(t, "https://www.leboncoin.fr/recherche?page=3", PageURL("https://www.leboncoin.fr/recherche", 3))
}

func TestRunStopsAtHardCap(t *testing.T) {
	s := &fakeSession{render: func(n int, _ string) (string, error) { return resultsPage(n, true), nil }}
	p, metrics := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)

	assert.Len(t, s.navigated, config.HardPageCap)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonPageCap, res.Reason)
	assert.Len(t, res.Pages, config.HardPageCap)
	assert.Equal(t, 2*config.HardPageCap, res.RecordCount())
	assert.Equal(t, 1, s.closes)
	assert.Equal(t, int64(config.HardPageCap), metrics.PagesFetched.Load())
	assert.Equal(t, searchURL, s.navigated[0])
	assert.Equal(t, searchURL+"&page=20", s.navigated[19])
	assert.Greater(t, s.scrolls, 0)
}

func TestRunMaxPagesClampedToCap(t *testing.T) {
	s := &fakeSession{render: func(n int, _ string) (string, error) { return resultsPage(n, true), nil }}
	p, _ := newTestPaginator(t, s)
	p.cfg.MaxPages = 500
	assert.Equal(t, config.HardPageCap, p.PageLimit())

	p.cfg.MaxPages = 3
	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Len(t, res.Pages, 3)
}

func TestRunStopsWithoutNextPage(t *testing.T) {
	s := &fakeSession{render: func(n int, _ string) (string, error) { return resultsPage(n, n < 2), nil }}
	p, _ := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonNoNextPage, res.Reason)
	require.Len(t, res.Batches(), 2)
	assert.Equal(t, 2, res.Pages[1].Number)
}

func TestRunNoResultsSavesDebug(t *testing.T) {
	dir := t.TempDir()
	s := &fakeSession{render: func(n int, _ string) (string, error) {
		if n == 2 {
			return `<html><head><title>leboncoin</title></head><body><h2>Aucune annonce ne correspond</h2></body></html>`, nil
		}
		return resultsPage(n, true), nil
	}}
	writer := storage.NewPageWriter(filepath.Join(dir, "page.html"), filepath.Join(dir, "debug"), testLogger)
	p, metrics := newTestPaginator(t, s, WithPageWriter(writer))

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonNoResults, res.Reason)
	assert.Len(t, res.Pages, 1)
	assert.Equal(t, int64(1), metrics.PagesStopped.Load())

	assert.FileExists(t, filepath.Join(dir, "debug", "debug_page_2.html"))
	assert.FileExists(t, filepath.Join(dir, "page_page1.html"))
	assert.FileExists(t, filepath.Join(dir, "page.html"))
	assert.Equal(t, filepath.Join(dir, "page_page1.html"), res.Pages[0].Path)
}

func TestRunErrorTitleStops(t *testing.T) {
	s := &fakeSession{render: func(int, string) (string, error) {
		return `<html><head><title>404 - Page introuvable</title></head><body></body></html>`, nil
	}}
	p, _ := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, ReasonErrorPage, res.Reason)
	assert.Empty(t, res.Pages)
}

func TestRunNoAdCardsStops(t *testing.T) {
	s := &fakeSession{render: func(int, string) (string, error) {
		return `<html><head><title>Annonces</title></head><body><p>Résultats</p></body></html>`, nil
	}}
	p, _ := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonNoAdCards, res.Reason)
}

func TestRunFetchErrorKeepsEarlierPages(t *testing.T) {
	boom := errors.New("net::ERR_CONNECTION_RESET")
	s := &fakeSession{render: func(n int, _ string) (string, error) {
		if n == 3 {
			return "", boom
		}
		return resultsPage(n, true), nil
	}}
	p, metrics := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStopError, res.State)
	assert.Equal(t, ReasonFetchFailed, res.Reason)
	assert.ErrorIs(t, res.Err, boom)

	var ferr *types.FetchError
	require.ErrorAs(t, res.Err, &ferr)
	assert.Equal(t, 3, ferr.Page)

	assert.Len(t, res.Pages, 2)
	assert.Equal(t, 1, s.closes)
	assert.Equal(t, int64(1), metrics.FetchErrors.Load())
}

func TestRunOpenFailure(t *testing.T) {
	rec, err := parser.NewRecordExtractor("https://www.leboncoin.fr", testLogger)
	require.NoError(t, err)
	cfg := config.DefaultConfig().Scraper
	open := func(context.Context) (fetcher.Session, error) { return nil, errors.New("no chrome") }
	p := NewPaginator(&cfg, open, parser.NewPageExtractor(rec, "https://www.leboncoin.fr/ad/", testLogger), testLogger)

	res, err := p.Run(context.Background(), searchURL)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestRunChallengeWaitsForOperator(t *testing.T) {
	challenge := `<html><head><title>leboncoin</title></head><body><iframe src="https://geo.captcha-delivery.com/captcha"></iframe></body></html>`
	s := &fakeSession{render: func(n int, _ string) (string, error) {
		if n == 1 {
			return challenge, nil
		}
		return resultsPage(n, false), nil
	}}
	// the operator solves it, so the second read of page 1 shows results
	s.afterRead = func(reads int) string {
		if reads == 2 {
			return resultsPage(1, true)
		}
		return ""
	}
	op := &fakeOperator{}
	p, metrics := newTestPaginator(t, s, WithOperator(op))

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, []fetcher.ChallengeKind{fetcher.ChallengeDataDome}, op.calls)
	assert.Equal(t, int64(1), metrics.Challenges.Load())
	assert.Len(t, res.Pages, 2)
	assert.Equal(t, ReasonNoNextPage, res.Reason)
}

func TestRunChallengeWithoutOperatorStops(t *testing.T) {
	s := &fakeSession{render: func(int, string) (string, error) {
		return `<html><body>Access denied</body></html>`, nil
	}}
	p, _ := newTestPaginator(t, s)

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonChallenge, res.Reason)
	assert.Equal(t, 1, s.closes)
}

func TestRunDataDomeTagOnResultsPageKeepsRecords(t *testing.T) {
	tag := `<head><script src="https://js.datadome.co/tags.js"></script>`
	s := &fakeSession{render: func(n int, _ string) (string, error) {
		return strings.Replace(resultsPage(n, n < 2), "<head>", tag, 1), nil
	}}
	op := &fakeOperator{}
	p, metrics := newTestPaginator(t, s, WithOperator(op))

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Empty(t, op.calls)
	assert.Equal(t, int64(0), metrics.Challenges.Load())
	assert.Len(t, res.Pages, 2)
	assert.Equal(t, 4, res.RecordCount())
	assert.Equal(t, ReasonNoNextPage, res.Reason)
}

func TestRunChallengeAfterOperatorFallsThroughToPageChecks(t *testing.T) {
	s := &fakeSession{render: func(int, string) (string, error) {
		return `<html><head><title>leboncoin</title></head><body><iframe src="https://geo.captcha-delivery.com/captcha"></iframe></body></html>`, nil
	}}
	op := &fakeOperator{}
	p, _ := newTestPaginator(t, s, WithOperator(op))

	res, err := p.Run(context.Background(), searchURL)
	require.NoError(t, err)
	assert.Len(t, op.calls, 1)
	assert.Equal(t, StateStop, res.State)
	assert.Equal(t, ReasonNoAdCards, res.Reason)
	assert.Empty(t, res.Pages)
}

func TestRunCanceledContext(t *testing.T) {
	s := &fakeSession{render: func(n int, _ string) (string, error) { return resultsPage(n, true), nil }}
	p, _ := newTestPaginator(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Run(ctx, searchURL)
	require.NoError(t, err)
	assert.Equal(t, StateStopError, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Empty(t, s.navigated)
	assert.Equal(t, 1, s.closes)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "continue", StateContinue.String())
	assert.Equal(t, "stop", StateStop.String())
	assert.Equal(t, "stop_error", StateStopError.String())
}
