package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/fetcher"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/parser"
	"github.com/IshaanNene/lbcscraper/internal/storage"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

// State is the outcome of validating one page.
type State int

const (
	StateContinue  State = 0
	StateStop      State = 1
	StateStopError State = 2
)

func (s State) String() string {
	switch s {
	case StateContinue:
		return "continue"
	case StateStop:
		return "stop"
	case StateStopError:
		return "stop_error"
	default:
		return "unknown"
	}
}

// Stop reasons reported in RunResult.Reason.
const (
	ReasonNoNextPage    = "no next page"
	ReasonPageCap       = "page cap reached"
	ReasonNoResults     = "no results"
	ReasonErrorPage     = "error page"
	ReasonNoAdCards     = "no ad cards"
	ReasonChallenge     = "challenge not cleared"
	ReasonFetchFailed   = "fetch failed"
	ReasonCanceled      = "canceled"
	ReasonExtractFailed = "extraction failed"
)

// SessionFactory opens the browser session used for one run.
type SessionFactory func(ctx context.Context) (fetcher.Session, error)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PageOutcome is one page that yielded listings.
type PageOutcome struct {
	Number  int
	URL     string
	Path    string // saved markup, empty when no writer is set
	Records []types.Listing
	Result  *parser.PageResult
}

// RunResult is everything a run collected, including the pages gathered
// before an error stop.
type RunResult struct {
	Pages  []PageOutcome
	State  State
	Reason string
	Err    error
}

// Batches returns the records of every page in page order, ready for
// storage.Merge.
func (r *RunResult) Batches() [][]types.Listing {
	out := make([][]types.Listing, 0, len(r.Pages))
	for _, p := range r.Pages {
		out = append(out, p.Records)
	}
	return out
}

// RecordCount is the number of records over all pages before merging.
func (r *RunResult) RecordCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Records)
	}
	return n
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithOperator sets who clears anti-bot challenges. Without one a
// challenge ends the run.
func WithOperator(op fetcher.Operator) PaginatorOption {
	return func(p *Paginator) { p.operator = op }
}

// WithPageWriter persists each page's markup and stop pages' debug dumps.
func WithPageWriter(w *storage.PageWriter) PaginatorOption {
	return func(p *Paginator) { p.writer = w }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) PaginatorOption {
	return func(p *Paginator) { p.metrics = m }
}

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) PaginatorOption {
	return func(p *Paginator) { p.sleep = s }
}

// WithRand sets the source of pacing jitter.
func WithRand(r *rand.Rand) PaginatorOption {
	return func(p *Paginator) { p.rng = r }
}

// Paginator walks the result pages of one search URL through a single
// browser session.
type Paginator struct {
	cfg      *config.ScraperConfig
	open     SessionFactory
	pages    *parser.PageExtractor
	operator fetcher.Operator
	writer   *storage.PageWriter
	metrics  *observability.Metrics
	sleep    Sleeper
	rng      *rand.Rand
	logger   *slog.Logger
}

// NewPaginator creates a Paginator.
func NewPaginator(cfg *config.ScraperConfig, open SessionFactory, pages *parser.PageExtractor, logger *slog.Logger, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		cfg:    cfg,
		open:   open,
		pages:  pages,
		sleep:  SleepContext,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.With("component", "paginator"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics(logger)
	}
	return p
}

// PageURL returns the URL of page n of searchURL.
func PageURL(searchURL string, n int) string {
	if n <= 1 {
		return searchURL
	}
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return searchURL + sep + "page=" + strconv.Itoa(n)
}

// PageLimit is the number of pages a run may fetch.
func (p *Paginator) PageLimit() int {
	limit := p.cfg.MaxPages
	if limit <= 0 || limit > config.HardPageCap {
		limit = config.HardPageCap
	}
	return limit
}

// Run fetches pages of searchURL until a stop condition. The returned
// error is set only when the browser session cannot be opened; every
// other failure is reported through RunResult with the pages collected
// so far.
func (p *Paginator) Run(ctx context.Context, searchURL string) (*RunResult, error) {
	session, err := p.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			p.logger.Warn("browser close failed", "error", cerr)
		}
	}()

	res := &RunResult{State: StateContinue}
	limit := p.PageLimit()
	start := time.Now()

	p.logger.Info("search started", "url", searchURL, "max_pages", limit)

	for n := 1; n <= limit; n++ {
		if err := ctx.Err(); err != nil {
			p.finish(res, StateStopError, ReasonCanceled, err)
			break
		}

		outcome, state, reason, err := p.scrapePage(ctx, session, searchURL, n)
		if outcome != nil {
			res.Pages = append(res.Pages, *outcome)
		}
		if err != nil {
			p.metrics.FetchErrors.Add(1)
			p.logger.Error("page fetch failed", "page", n, "error", err)
			p.finish(res, StateStopError, reason, err)
			break
		}
		if state == StateStop {
			p.finish(res, StateStop, reason, nil)
			break
		}

		if n == limit {
			p.finish(res, StateStop, ReasonPageCap, nil)
			break
		}
		if err := p.pause(ctx, p.cfg.PageDelayMin, p.cfg.PageDelayMax); err != nil {
			p.finish(res, StateStopError, ReasonCanceled, err)
			break
		}
	}

	p.logger.Info("search finished",
		"state", res.State.String(),
		"reason", res.Reason,
		"pages", len(res.Pages),
		"records", res.RecordCount(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return res, nil
}

func (p *Paginator) finish(res *RunResult, state State, reason string, err error) {
	res.State = state
	res.Reason = reason
	res.Err = err
}

// scrapePage runs fetch and validation for page n. A non-nil error means
// the run must end in StateStopError.
func (p *Paginator) scrapePage(ctx context.Context, s fetcher.Session, searchURL string, n int) (*PageOutcome, State, string, error) {
	pageURL := PageURL(searchURL, n)
	log := p.logger.With("page", n, "url", pageURL)

	markup, err := p.fetch(ctx, s, pageURL, n)
	if err != nil {
		if ctx.Err() != nil {
			return nil, StateStopError, ReasonCanceled, err
		}
		return nil, StateStopError, ReasonFetchFailed, err
	}

	if kind, ok := fetcher.DetectChallenge(markup); ok {
		p.metrics.Challenges.Add(1)
		log.Warn("anti-bot challenge detected", "kind", string(kind))
		if p.operator == nil {
			p.saveDebug(n, markup)
			return nil, StateStop, ReasonChallenge, nil
		}
		if err := p.operator.AwaitIntervention(ctx, pageURL, kind); err != nil {
			return nil, StateStopError, ReasonCanceled, err
		}
		markup, err = s.HTML()
		if err != nil {
			return nil, StateStopError, ReasonFetchFailed, &types.FetchError{URL: pageURL, Page: n, Err: err}
		}
		log.Info("operator done, resuming")
	}

	signals, err := parser.InspectPage(markup)
	if err != nil {
		return nil, StateStopError, ReasonExtractFailed, fmt.Errorf("inspect page %d: %w", n, err)
	}
	if signals.NoResults {
		log.Info("no results page, stopping")
		p.stopped(n, markup)
		return nil, StateStop, ReasonNoResults, nil
	}
	if signals.ErrorTitle {
		log.Warn("error page, stopping", "title", signals.Title)
		p.stopped(n, markup)
		return nil, StateStop, ReasonErrorPage, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, StateStopError, ReasonExtractFailed, fmt.Errorf("parse page %d: %w", n, err)
	}
	if !parser.HasAdCards(doc) {
		log.Info("no ad cards on page, stopping")
		p.stopped(n, markup)
		return nil, StateStop, ReasonNoAdCards, nil
	}

	result, err := p.pages.ExtractDocument(doc)
	if err != nil {
		if errors.Is(err, types.ErrNoAds) {
			p.stopped(n, markup)
			return nil, StateStop, ReasonNoAdCards, nil
		}
		return nil, StateStopError, ReasonExtractFailed, fmt.Errorf("extract page %d: %w", n, err)
	}
	p.metrics.CardsSeen.Add(int64(result.Cards))
	p.metrics.RecordsKept.Add(int64(len(result.Records)))
	p.metrics.FragmentsDropped.Add(int64(result.Dropped))
	p.metrics.URLsIgnored.Add(int64(result.Ignored))

	outcome := &PageOutcome{
		Number:  n,
		URL:     pageURL,
		Records: result.Records,
		Result:  result,
	}
	if p.writer != nil {
		path, err := p.writer.SavePage(n, markup)
		if err != nil {
			log.Warn("page markup not saved", "error", err)
		}
		outcome.Path = path
	}

	log.Info("page extracted",
		"cards", result.Cards,
		"records", len(result.Records),
		"dropped", result.Dropped,
		"ignored", result.Ignored,
		"has_next", signals.HasNext,
	)

	if !signals.HasNext {
		return outcome, StateStop, ReasonNoNextPage, nil
	}
	return outcome, StateContinue, "", nil
}

// fetch navigates to pageURL with human-like pacing and returns the
// rendered markup.
func (p *Paginator) fetch(ctx context.Context, s fetcher.Session, pageURL string, n int) (string, error) {
	if n > 1 && p.rng.Float64() < p.cfg.PreScrollChance {
		if err := s.Scroll(200 + p.rng.Intn(400)); err != nil {
			p.logger.Debug("pre-navigation scroll failed", "error", err)
		}
		if err := p.pause(ctx, p.cfg.ScrollPauseMin, p.cfg.ScrollPauseMax); err != nil {
			return "", err
		}
	}

	if err := s.Navigate(ctx, pageURL); err != nil {
		return "", &types.FetchError{URL: pageURL, Page: n, Err: err}
	}
	if err := p.pause(ctx, p.cfg.SettleMin, p.cfg.SettleMax); err != nil {
		return "", err
	}

	steps := p.between(p.cfg.ScrollStepsMin, p.cfg.ScrollStepsMax)
	for i := 0; i < steps; i++ {
		if err := s.Scroll(300 + p.rng.Intn(500)); err != nil {
			p.logger.Debug("scroll failed", "step", i, "error", err)
			break
		}
		if err := p.pause(ctx, p.cfg.ScrollPauseMin, p.cfg.ScrollPauseMax); err != nil {
			return "", err
		}
	}

	markup, err := s.HTML()
	if err != nil {
		return "", &types.FetchError{URL: pageURL, Page: n, Err: err}
	}
	if markup == "" {
		return "", &types.FetchError{URL: pageURL, Page: n, Err: types.ErrEmptyResponse}
	}
	p.metrics.PagesFetched.Add(1)
	p.metrics.BytesFetched.Add(int64(len(markup)))
	return markup, nil
}

func (p *Paginator) stopped(n int, markup string) {
	p.metrics.PagesStopped.Add(1)
	p.saveDebug(n, markup)
}

func (p *Paginator) saveDebug(n int, markup string) {
	if p.writer == nil {
		return
	}
	if _, err := p.writer.SaveDebug(n, markup); err != nil {
		p.logger.Warn("debug page not saved", "page", n, "error", err)
	}
}

func (p *Paginator) pause(ctx context.Context, lo, hi time.Duration) error {
	return p.sleep(ctx, p.jitter(lo, hi))
}

func (p *Paginator) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.rng.Int63n(int64(hi-lo)+1))
}

func (p *Paginator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + p.rng.Intn(hi-lo+1)
}
