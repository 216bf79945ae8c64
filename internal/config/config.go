package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// HardPageCap bounds the number of result pages fetched per search,
// whatever max_pages says.
const HardPageCap = 20

// Config is the root configuration for lbcscraper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"    yaml:"site"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Scraper ScraperConfig `mapstructure:"scraper" yaml:"scraper"`
	Search  SearchConfig  `mapstructure:"search"  yaml:"search"`
	Geocode GeocodeConfig `mapstructure:"geocode" yaml:"geocode"`
	Loan    LoanConfig    `mapstructure:"loan"    yaml:"loan"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// SiteConfig describes the classifieds site being scraped.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"       yaml:"base_url"`
	SearchURL     string `mapstructure:"search_url"     yaml:"search_url"`
	ListingPrefix string `mapstructure:"listing_prefix" yaml:"listing_prefix"`
}

// BrowserConfig controls the Chromium instance driven by rod.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	BinPath           string        `mapstructure:"bin_path"           yaml:"bin_path"`
	UserDataDir       string        `mapstructure:"user_data_dir"      yaml:"user_data_dir"`
	UserAgent         string        `mapstructure:"user_agent"         yaml:"user_agent"`
	Language          string        `mapstructure:"language"           yaml:"language"`
	Platform          string        `mapstructure:"platform"           yaml:"platform"`
	WindowWidth       int           `mapstructure:"window_width"       yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height"      yaml:"window_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// ScraperConfig controls the pagination loop and its pacing.
type ScraperConfig struct {
	MaxPages        int           `mapstructure:"max_pages"         yaml:"max_pages"`
	SettleMin       time.Duration `mapstructure:"settle_min"        yaml:"settle_min"`
	SettleMax       time.Duration `mapstructure:"settle_max"        yaml:"settle_max"`
	PageDelayMin    time.Duration `mapstructure:"page_delay_min"    yaml:"page_delay_min"`
	PageDelayMax    time.Duration `mapstructure:"page_delay_max"    yaml:"page_delay_max"`
	ScrollPauseMin  time.Duration `mapstructure:"scroll_pause_min"  yaml:"scroll_pause_min"`
	ScrollPauseMax  time.Duration `mapstructure:"scroll_pause_max"  yaml:"scroll_pause_max"`
	ScrollStepsMin  int           `mapstructure:"scroll_steps_min"  yaml:"scroll_steps_min"`
	ScrollStepsMax  int           `mapstructure:"scroll_steps_max"  yaml:"scroll_steps_max"`
	PreScrollChance float64       `mapstructure:"pre_scroll_chance" yaml:"pre_scroll_chance"`
	HTMLFile        string        `mapstructure:"html_file"         yaml:"html_file"`
	DebugDir        string        `mapstructure:"debug_dir"         yaml:"debug_dir"`
}

// SearchConfig holds the default search filters for sale and rental queries.
type SearchConfig struct {
	Radius int           `mapstructure:"radius" yaml:"radius"`
	Sale   SearchFilters `mapstructure:"sale"   yaml:"sale"`
	Rental SearchFilters `mapstructure:"rental" yaml:"rental"`
}

// SearchFilters is one set of range filters. Ranges use the site's
// "min-max" notation.
type SearchFilters struct {
	Category      string `mapstructure:"category"       yaml:"category"`
	Price         string `mapstructure:"price"          yaml:"price"`
	Square        string `mapstructure:"square"         yaml:"square"`
	Rooms         string `mapstructure:"rooms"          yaml:"rooms"`
	Bedrooms      string `mapstructure:"bedrooms"       yaml:"bedrooms"`
	PropertyTypes string `mapstructure:"property_types" yaml:"property_types"`
}

// GeocodeConfig controls the Nominatim client.
type GeocodeConfig struct {
	Endpoint   string        `mapstructure:"endpoint"    yaml:"endpoint"`
	UserAgent  string        `mapstructure:"user_agent"  yaml:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
	MinDelay   time.Duration `mapstructure:"min_delay"   yaml:"min_delay"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

// LoanConfig holds mortgage assumptions used by reports.
type LoanConfig struct {
	InterestRate      float64 `mapstructure:"interest_rate"        yaml:"interest_rate"`
	DurationYears     int     `mapstructure:"duration_years"       yaml:"duration_years"`
	DefaultRentPerSqm float64 `mapstructure:"default_rent_per_sqm" yaml:"default_rent_per_sqm"`
}

// StorageConfig controls output files.
type StorageConfig struct {
	OutputDir   string `mapstructure:"output_dir"   yaml:"output_dir"`
	SalesFile   string `mapstructure:"sales_file"   yaml:"sales_file"`
	RentalsFile string `mapstructure:"rentals_file" yaml:"rentals_file"`
}

// DisplayConfig controls console tables.
type DisplayConfig struct {
	DescriptionWidth int `mapstructure:"description_width" yaml:"description_width"`
	LocationWidth    int `mapstructure:"location_width"    yaml:"location_width"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint exposed during scrapes.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// APIConfig controls the read-only output API.
type APIConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:       "https://www.leboncoin.fr",
			SearchURL:     "https://www.leboncoin.fr/recherche",
			ListingPrefix: "https://www.leboncoin.fr/ad/",
		},
		Browser: BrowserConfig{
			Headless:          false,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Language:          "fr-FR",
			Platform:          "Win32",
			WindowWidth:       1920,
			WindowHeight:      1080,
			NavigationTimeout: 60 * time.Second,
		},
		Scraper: ScraperConfig{
			MaxPages:        HardPageCap,
			SettleMin:       3 * time.Second,
			SettleMax:       6 * time.Second,
			PageDelayMin:    4 * time.Second,
			PageDelayMax:    9 * time.Second,
			ScrollPauseMin:  500 * time.Millisecond,
			ScrollPauseMax:  1500 * time.Millisecond,
			ScrollStepsMin:  2,
			ScrollStepsMax:  5,
			PreScrollChance: 0.5,
			HTMLFile:        "page_telechargee.html",
			DebugDir:        "debug",
		},
		Search: SearchConfig{
			Radius: 10000,
			Sale: SearchFilters{
				Category:      "9",
				Price:         "15000-300000",
				Square:        "10-120",
				Rooms:         "3-6",
				Bedrooms:      "2-6",
				PropertyTypes: "2,1",
			},
			Rental: SearchFilters{
				Category:      "10",
				Square:        "20-200",
				Rooms:         "2-5",
				Bedrooms:      "1-4",
				PropertyTypes: "1,2",
			},
		},
		Geocode: GeocodeConfig{
			Endpoint:   "https://nominatim.openstreetmap.org/search",
			UserAgent:  "lbc_scraper",
			Timeout:    10 * time.Second,
			MinDelay:   2 * time.Second,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		Loan: LoanConfig{
			InterestRate:      3.5,
			DurationYears:     25,
			DefaultRentPerSqm: 15,
		},
		Storage: StorageConfig{
			OutputDir:   "./output",
			SalesFile:   "annonces.json",
			RentalsFile: "annonces_location.json",
		},
		Display: DisplayConfig{
			DescriptionWidth: 30,
			LocationWidth:    25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}
