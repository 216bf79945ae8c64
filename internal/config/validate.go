package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if err := ValidateURL(cfg.Site.SearchURL); err != nil {
		return fmt.Errorf("site.search_url: %w", err)
	}
	if !strings.HasPrefix(cfg.Site.ListingPrefix, cfg.Site.BaseURL) {
		return fmt.Errorf("site.listing_prefix %q must start with site.base_url %q", cfg.Site.ListingPrefix, cfg.Site.BaseURL)
	}

	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Browser.WindowWidth < 1 || cfg.Browser.WindowHeight < 1 {
		return fmt.Errorf("browser window size must be positive, got %dx%d", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
	}

	if cfg.Scraper.MaxPages < 1 {
		return fmt.Errorf("scraper.max_pages must be >= 1, got %d", cfg.Scraper.MaxPages)
	}
	if cfg.Scraper.MaxPages > HardPageCap {
		return fmt.Errorf("scraper.max_pages must be <= %d, got %d", HardPageCap, cfg.Scraper.MaxPages)
	}
	if cfg.Scraper.SettleMin < 0 || cfg.Scraper.SettleMax < cfg.Scraper.SettleMin {
		return fmt.Errorf("scraper.settle_min/settle_max must satisfy 0 <= min <= max")
	}
	if cfg.Scraper.PageDelayMin < 0 || cfg.Scraper.PageDelayMax < cfg.Scraper.PageDelayMin {
		return fmt.Errorf("scraper.page_delay_min/page_delay_max must satisfy 0 <= min <= max")
	}
	if cfg.Scraper.ScrollPauseMin < 0 || cfg.Scraper.ScrollPauseMax < cfg.Scraper.ScrollPauseMin {
		return fmt.Errorf("scraper.scroll_pause_min/scroll_pause_max must satisfy 0 <= min <= max")
	}
	if cfg.Scraper.ScrollStepsMin < 0 || cfg.Scraper.ScrollStepsMax < cfg.Scraper.ScrollStepsMin {
		return fmt.Errorf("scraper.scroll_steps_min/scroll_steps_max must satisfy 0 <= min <= max")
	}
	if cfg.Scraper.PreScrollChance < 0 || cfg.Scraper.PreScrollChance > 1 {
		return fmt.Errorf("scraper.pre_scroll_chance must be within [0,1], got %v", cfg.Scraper.PreScrollChance)
	}
	if cfg.Scraper.HTMLFile == "" {
		return fmt.Errorf("scraper.html_file must not be empty")
	}

	if cfg.Search.Radius < 1 {
		return fmt.Errorf("search.radius must be >= 1, got %d", cfg.Search.Radius)
	}

	if err := ValidateURL(cfg.Geocode.Endpoint); err != nil {
		return fmt.Errorf("geocode.endpoint: %w", err)
	}
	if cfg.Geocode.MaxRetries < 1 {
		return fmt.Errorf("geocode.max_retries must be >= 1, got %d", cfg.Geocode.MaxRetries)
	}

	if cfg.Loan.InterestRate < 0 {
		return fmt.Errorf("loan.interest_rate must be >= 0, got %v", cfg.Loan.InterestRate)
	}
	if cfg.Loan.DurationYears < 1 {
		return fmt.Errorf("loan.duration_years must be >= 1, got %d", cfg.Loan.DurationYears)
	}

	if cfg.Storage.SalesFile == "" || cfg.Storage.RentalsFile == "" {
		return fmt.Errorf("storage.sales_file and storage.rentals_file must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}
	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a search or site URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
