package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > .env > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("LBCSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("lbcscraper")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".lbcscraper"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides are seen
// by Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.base_url", cfg.Site.BaseURL)
	v.SetDefault("site.search_url", cfg.Site.SearchURL)
	v.SetDefault("site.listing_prefix", cfg.Site.ListingPrefix)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin_path", cfg.Browser.BinPath)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.language", cfg.Browser.Language)
	v.SetDefault("browser.platform", cfg.Browser.Platform)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)

	v.SetDefault("scraper.max_pages", cfg.Scraper.MaxPages)
	v.SetDefault("scraper.settle_min", cfg.Scraper.SettleMin)
	v.SetDefault("scraper.settle_max", cfg.Scraper.SettleMax)
	v.SetDefault("scraper.page_delay_min", cfg.Scraper.PageDelayMin)
	v.SetDefault("scraper.page_delay_max", cfg.Scraper.PageDelayMax)
	v.SetDefault("scraper.scroll_pause_min", cfg.Scraper.ScrollPauseMin)
	v.SetDefault("scraper.scroll_pause_max", cfg.Scraper.ScrollPauseMax)
	v.SetDefault("scraper.scroll_steps_min", cfg.Scraper.ScrollStepsMin)
	v.SetDefault("scraper.scroll_steps_max", cfg.Scraper.ScrollStepsMax)
	v.SetDefault("scraper.pre_scroll_chance", cfg.Scraper.PreScrollChance)
	v.SetDefault("scraper.html_file", cfg.Scraper.HTMLFile)
	v.SetDefault("scraper.debug_dir", cfg.Scraper.DebugDir)

	v.SetDefault("search.radius", cfg.Search.Radius)
	v.SetDefault("search.sale.category", cfg.Search.Sale.Category)
	v.SetDefault("search.sale.price", cfg.Search.Sale.Price)
	v.SetDefault("search.sale.square", cfg.Search.Sale.Square)
	v.SetDefault("search.sale.rooms", cfg.Search.Sale.Rooms)
	v.SetDefault("search.sale.bedrooms", cfg.Search.Sale.Bedrooms)
	v.SetDefault("search.sale.property_types", cfg.Search.Sale.PropertyTypes)
	v.SetDefault("search.rental.category", cfg.Search.Rental.Category)
	v.SetDefault("search.rental.price", cfg.Search.Rental.Price)
	v.SetDefault("search.rental.square", cfg.Search.Rental.Square)
	v.SetDefault("search.rental.rooms", cfg.Search.Rental.Rooms)
	v.SetDefault("search.rental.bedrooms", cfg.Search.Rental.Bedrooms)
	v.SetDefault("search.rental.property_types", cfg.Search.Rental.PropertyTypes)

	v.SetDefault("geocode.endpoint", cfg.Geocode.Endpoint)
	v.SetDefault("geocode.user_agent", cfg.Geocode.UserAgent)
	v.SetDefault("geocode.timeout", cfg.Geocode.Timeout)
	v.SetDefault("geocode.min_delay", cfg.Geocode.MinDelay)
	v.SetDefault("geocode.max_retries", cfg.Geocode.MaxRetries)
	v.SetDefault("geocode.retry_delay", cfg.Geocode.RetryDelay)

	v.SetDefault("loan.interest_rate", cfg.Loan.InterestRate)
	v.SetDefault("loan.duration_years", cfg.Loan.DurationYears)
	v.SetDefault("loan.default_rent_per_sqm", cfg.Loan.DefaultRentPerSqm)

	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.sales_file", cfg.Storage.SalesFile)
	v.SetDefault("storage.rentals_file", cfg.Storage.RentalsFile)

	v.SetDefault("display.description_width", cfg.Display.DescriptionWidth)
	v.SetDefault("display.location_width", cfg.Display.LocationWidth)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("api.port", cfg.API.Port)
}

// SalesPath returns the sales output file inside the output directory.
func (c *Config) SalesPath() string {
	return filepath.Join(c.Storage.OutputDir, c.Storage.SalesFile)
}

// RentalsPath returns the rentals output file inside the output directory.
func (c *Config) RentalsPath() string {
	return filepath.Join(c.Storage.OutputDir, c.Storage.RentalsFile)
}
