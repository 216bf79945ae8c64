package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/lbcscraper/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	outputDir string
	maxPages  int
	headless  bool
	showBrows bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lbcscraper",
		Short: "lbcscraper: leboncoin real-estate scraper",
		Long: `lbcscraper collects property listings from leboncoin search results.

Features:
  • Stealth Chromium session with human-like pacing
  • Manual hand-off when an anti-bot challenge shows up
  • Incremental JSON output merged by listing URL
  • Sale and rental statistics, per-room breakdown, mortgage comparison
  • Nominatim geocoding for search locations
  • Read-only JSON API and Prometheus metrics`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "directory holding the JSON output files")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(loanCmd())
	rootCmd.AddCommand(urlCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addBrowserFlags registers the flags shared by commands that drive a
// browser.
func addBrowserFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", 0, fmt.Sprintf("maximum result pages per search (at most %d)", config.HardPageCap))
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVar(&showBrows, "show-browser", false, "force a visible browser window")
}

// loadConfig loads, overrides and validates the configuration, and returns
// the logger it describes.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// setupLogger creates a structured logger.
func setupLogger(lc config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	switch lc.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(lc.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if maxPages > 0 {
		cfg.Scraper.MaxPages = maxPages
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if showBrows {
		cfg.Browser.Headless = false
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lbcscraper %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Site:\n")
			fmt.Printf("  Search URL:        %s\n", cfg.Site.SearchURL)
			fmt.Printf("  Listing prefix:    %s\n", cfg.Site.ListingPrefix)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Language:          %s\n", cfg.Browser.Language)
			fmt.Printf("  Window:            %dx%d\n", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
			fmt.Printf("  Nav timeout:       %s\n", cfg.Browser.NavigationTimeout)
			fmt.Printf("\nScraper:\n")
			fmt.Printf("  Max pages:         %d (cap %d)\n", cfg.Scraper.MaxPages, config.HardPageCap)
			fmt.Printf("  Settle delay:      %s - %s\n", cfg.Scraper.SettleMin, cfg.Scraper.SettleMax)
			fmt.Printf("  Page delay:        %s - %s\n", cfg.Scraper.PageDelayMin, cfg.Scraper.PageDelayMax)
			fmt.Printf("  HTML file:         %s\n", cfg.Scraper.HTMLFile)
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Radius:            %d m\n", cfg.Search.Radius)
			fmt.Printf("  Sale price:        %s\n", cfg.Search.Sale.Price)
			fmt.Printf("  Sale surface:      %s\n", cfg.Search.Sale.Square)
			fmt.Printf("  Rental surface:    %s\n", cfg.Search.Rental.Square)
			fmt.Printf("\nLoan:\n")
			fmt.Printf("  Rate:              %.2f %%\n", cfg.Loan.InterestRate)
			fmt.Printf("  Duration:          %d years\n", cfg.Loan.DurationYears)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Sales file:        %s\n", cfg.SalesPath())
			fmt.Printf("  Rentals file:      %s\n", cfg.RentalsPath())
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
	return cmd
}
