package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

// BrowserSession is a Session backed by a Chromium instance driven by rod.
// One session owns one browser and one page for the whole search.
type BrowserSession struct {
	browser    *rod.Browser
	page       *rod.Page
	cfg        *config.BrowserConfig
	stealthCfg *StealthConfig
	logger     *slog.Logger

	// release kills the Chromium process and removes its temporary profile.
	release func()

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// BrowserOption configures a BrowserSession.
type BrowserOption func(*BrowserSession)

// WithStealth overrides the fingerprint derived from the browser config.
func WithStealth(cfg *StealthConfig) BrowserOption {
	return func(s *BrowserSession) { s.stealthCfg = cfg }
}

// OpenBrowser launches Chromium with automation markers removed and opens
// a stealth page carrying the configured user agent.
func OpenBrowser(ctx context.Context, cfg *config.BrowserConfig, logger *slog.Logger, opts ...BrowserOption) (*BrowserSession, error) {
	s := &BrowserSession{
		cfg:        cfg,
		stealthCfg: StealthFromConfig(cfg),
		logger:     logger.With("component", "browser_session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	launchURL, err := s.launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s.browser = browser

	page, err := stealth.Page(browser)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("stealth page: %w", err)
	}
	s.page = page

	if _, err := page.EvalOnNewDocument(s.stealthCfg.StealthJS()); err != nil {
		s.logger.Warn("failed to inject stealth script", "error", err)
	}

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: s.stealthCfg.Language,
		Platform:       s.stealthCfg.Platform,
	})
	if err != nil {
		s.logger.Warn("failed to set user agent", "error", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.stealthCfg.ViewportWidth,
		Height:            s.stealthCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		s.logger.Warn("failed to set viewport", "error", err)
	}

	s.logger.Info("browser session ready",
		"headless", cfg.Headless,
		"user_agent", cfg.UserAgent,
		"window", s.stealthCfg.WindowSize,
	)
	return s, nil
}

// launch starts a Chromium instance with the flags that hide automation.
func (s *BrowserSession) launch(ctx context.Context) (string, error) {
	l := launcher.New().
		Context(ctx).
		Headless(s.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("start-maximized").
		Set("disable-infobars").
		Set("disable-logging").
		Set("log-level", "3").
		Set("window-size", s.stealthCfg.WindowSize).
		Set("lang", s.stealthCfg.Language).
		Delete("enable-automation")

	if s.cfg.BinPath != "" {
		l = l.Bin(s.cfg.BinPath)
	}
	if s.cfg.UserDataDir != "" {
		l = l.UserDataDir(s.cfg.UserDataDir)
	}

	u, err := l.Launch()
	if err != nil {
		return "", err
	}
	s.release = func() {
		l.Kill()
		// a configured profile directory belongs to the user
		if s.cfg.UserDataDir == "" {
			l.Cleanup()
		}
	}
	return u, nil
}

// Navigate implements Session.
func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}

	start := time.Now()
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	defer page.CancelTimeout()
	if err := page.Navigate(url); err != nil {
		return &types.FetchError{URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Warn("page load timeout, continuing", "url", url, "error", err)
	}

	s.logger.Debug("navigation complete", "url", url, "duration", time.Since(start))
	return nil
}

// HTML implements Session.
func (s *BrowserSession) HTML() (string, error) {
	if s.closed.Load() {
		return "", types.ErrSessionClosed
	}
	html, err := s.page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	return html, nil
}

// Scroll implements Session.
func (s *BrowserSession) Scroll(dy int) error {
	if s.closed.Load() {
		return types.ErrSessionClosed
	}
	_, err := s.page.Eval(fmt.Sprintf(`() => window.scrollBy(0, %d)`, dy))
	return err
}

// Close implements Session.
func (s *BrowserSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.release != nil {
			s.release()
		}
		s.logger.Info("browser session closed")
	})
	return s.closeErr
}
