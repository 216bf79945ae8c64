package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/engine"
	"github.com/IshaanNene/lbcscraper/internal/fetcher"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/parser"
	"github.com/IshaanNene/lbcscraper/internal/storage"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var outputFile string

// app bundles what every scraping command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	pages     *parser.PageExtractor
	metricSrv *http.Server

	// stdin is shared by every prompt so buffered input is not lost
	// between them.
	stdin *bufio.Reader
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	records, err := parser.NewRecordExtractor(cfg.Site.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("record extractor: %w", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(logger),
		pages:   parser.NewPageExtractor(records, cfg.Site.ListingPrefix, logger),
		stdin:   bufio.NewReader(os.Stdin),
	}
	if cfg.Metrics.Enabled {
		a.metricSrv = a.metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}
	return a, nil
}

func (a *app) close() {
	if a.metricSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.metricSrv.Shutdown(ctx)
}

// paginator wires a browser-backed paginator. A fresh browser is opened
// for every search.
func (a *app) paginator() *engine.Paginator {
	open := func(ctx context.Context) (fetcher.Session, error) {
		return fetcher.OpenBrowser(ctx, &a.cfg.Browser, a.logger)
	}
	return engine.NewPaginator(&a.cfg.Scraper, open, a.pages, a.logger,
		engine.WithOperator(fetcher.NewConsoleOperator(a.stdin, os.Stderr, a.logger)),
		engine.WithPageWriter(storage.NewPageWriter(a.outputPath(a.cfg.Scraper.HTMLFile), a.outputPath(a.cfg.Scraper.DebugDir), a.logger)),
		engine.WithMetrics(a.metrics),
	)
}

// outputPath resolves p against the output directory unless it is
// absolute.
func (a *app) outputPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.Storage.OutputDir, p)
}

// scrape paginates searchURL and reports how the run ended. Pages fetched
// before a failure are returned with it.
func (a *app) scrape(ctx context.Context, searchURL string) (*engine.RunResult, error) {
	res, err := a.paginator().Run(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		a.logger.Warn("search ended with an error",
			"url", searchURL,
			"pages", len(res.Pages),
			"reason", res.Reason,
			"error", res.Err,
		)
	}
	return res, nil
}

// save merges batches into the JSON file at path.
func (a *app) save(path string, batches ...[]types.Listing) ([]types.Listing, error) {
	merged, err := storage.NewMergeStore(storage.NewJSONFile(path, a.logger), a.logger).Merge(batches...)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordsWritten.Add(int64(len(merged)))
	return merged, nil
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <search-url>",
		Short: "Scrape every result page of a search URL",
		Long: `Scrape paginates a leboncoin search URL with a stealth browser and merges
the listings found into the sales file (or --file).

Examples:
  lbcscraper scrape "https://www.leboncoin.fr/recherche?category=9&locations=Albi_81000"
  lbcscraper scrape "https://www.leboncoin.fr/recherche?category=10" --file rentals.json --max-pages 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateURL(args[0]); err != nil {
				return err
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext(logger)
			defer cancel()

			res, err := a.scrape(ctx, args[0])
			if err != nil {
				return err
			}

			path := cfg.SalesPath()
			if outputFile != "" {
				path = outputFile
			}
			merged, err := a.save(path, res.Batches()...)
			if err != nil {
				return err
			}

			fmt.Printf("\n%d pages, %d listings extracted, %d listings in %s (%s: %s)\n",
				len(res.Pages), res.RecordCount(), len(merged), path, res.State, res.Reason)
			return res.Err
		},
	}
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "output JSON file (defaults to the sales file)")
	addBrowserFlags(cmd)
	return cmd
}

// extractCmd creates the "extract" subcommand for saved pages.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <page.html>...",
		Short: "Extract listings from saved result pages",
		Long: `Extract reads result pages saved by a previous scrape and merges their
listings into the sales file (or --file). No browser is started.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			batches := make([][]types.Listing, 0, len(args))
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				res, err := a.pages.Extract(string(data))
				if err != nil {
					return fmt.Errorf("extract %s: %w", file, err)
				}
				logger.Info("page extracted", "file", file, "records", len(res.Records), "dropped", res.Dropped)
				batches = append(batches, res.Records)
			}

			path := cfg.SalesPath()
			if outputFile != "" {
				path = outputFile
			}
			merged, err := a.save(path, batches...)
			if err != nil {
				return err
			}
			fmt.Printf("%d listings in %s\n", len(merged), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "file", "f", "", "output JSON file (defaults to the sales file)")
	return cmd
}
