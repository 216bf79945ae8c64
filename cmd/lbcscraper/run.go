package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/lbcscraper/internal/geocode"
	"github.com/IshaanNene/lbcscraper/internal/search"
	"github.com/IshaanNene/lbcscraper/internal/storage"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var (
	cities     []string
	skipRental bool
	skipSale   bool
	assumeYes  bool
)

// runCmd creates the "run" subcommand: the full sale and rental workflow.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Geocode cities, scrape sales and rentals, then report",
		Long: `Run geocodes each city (name or postal code), scrapes the matching sale
listings, then the furnished and unfurnished rentals around the first city,
and prints statistics with a mortgage comparison.

Examples:
  lbcscraper run --city Albi --city 81600
  lbcscraper run --headless --max-pages 5`,
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

			ctx, cancel := signalContext(logger)
			defer cancel()

			inputs := cities
			if len(inputs) == 0 {
				inputs, err = promptCities(a.stdin, os.Stdout)
				if err != nil {
					return err
				}
			}
			if len(inputs) == 0 {
				return errors.New("no city given")
			}

			places := a.geocode(ctx, inputs)
			if len(places) == 0 {
				return fmt.Errorf("none of %d cities could be located", len(inputs))
			}

			sale := search.NewSaleQuery(cfg)
			for _, p := range places {
				sale = sale.WithLocation(p)
			}

			rental := search.NewRentalQuery(cfg).WithLocation(places[0])
			if !assumeYes {
				ok, err := confirmURLs(a.stdin, os.Stdout, sale, rental)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Annulé.")
					return nil
				}
			}

			var runErr error
			if !skipSale {
				if err := a.scrapeSales(ctx, sale); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}
			if !skipRental && ctx.Err() == nil {
				if err := a.scrapeRentals(ctx, rental); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}

			if err := printReport(os.Stdout, cfg, logger, criteria()); err != nil {
				runErr = errors.Join(runErr, err)
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&cities, "city", nil, "city name or postal code (repeatable)")
	cmd.Flags().BoolVar(&skipSale, "skip-sales", false, "do not scrape sale listings")
	cmd.Flags().BoolVar(&skipRental, "skip-rentals", false, "do not scrape rental listings")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	addBrowserFlags(cmd)
	addFilterFlags(cmd)
	return cmd
}

// promptCities asks for comma separated cities on in.
func promptCities(in *bufio.Reader, out io.Writer) ([]string, error) {
	fmt.Fprint(out, "Villes ou codes postaux (séparés par des virgules) : ")
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read cities: %w", err)
	}
	var found []string
	for _, c := range strings.Split(line, ",") {
		if c = strings.TrimSpace(c); c != "" {
			found = append(found, c)
		}
	}
	return found, nil
}

// confirmURLs shows the searches about to run and asks to go on. Anything
// but an explicit "n" confirms.
func confirmURLs(in *bufio.Reader, out io.Writer, sale, rental search.Query) (bool, error) {
	fmt.Fprintf(out, "\nVente :\n  %s\n", sale.Build())
	fmt.Fprintf(out, "Location meublée :\n  %s\n", rental.WithFurnished(search.FurnishedOnly).Build())
	fmt.Fprintf(out, "Location non meublée :\n  %s\n", rental.WithFurnished(search.Unfurnished).Build())
	fmt.Fprint(out, "Lancer le scraping ? [O/n] ")

	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer != "n" && answer != "non", nil
}

// geocode resolves inputs, skipping the ones that cannot be found.
func (a *app) geocode(ctx context.Context, inputs []string) []search.Place {
	g := geocode.New(&a.cfg.Geocode, a.logger, geocode.WithMetrics(a.metrics))
	places := make([]search.Place, 0, len(inputs))
	for _, in := range inputs {
		p, err := g.Lookup(ctx, in)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				a.logger.Warn("city not found, skipped", "input", in)
			} else {
				a.logger.Error("geocoding failed", "input", in, "error", err)
			}
			continue
		}
		a.logger.Info("city located", "input", in, "name", p.Name, "postcode", p.Postcode)
		places = append(places, p)
	}
	return places
}

func (a *app) scrapeSales(ctx context.Context, q search.Query) error {
	res, err := a.scrape(ctx, q.Build())
	if err != nil {
		return err
	}
	if _, err := a.save(a.cfg.SalesPath(), res.Batches()...); err != nil {
		return err
	}
	return res.Err
}

// scrapeRentals runs the furnished then the unfurnished search and merges
// both into the rentals file.
func (a *app) scrapeRentals(ctx context.Context, q search.Query) error {
	var (
		variants []storage.Variant
		runErr   error
	)
	for _, f := range []search.Furnished{search.FurnishedOnly, search.Unfurnished} {
		if ctx.Err() != nil {
			break
		}
		res, err := a.scrape(ctx, q.WithFurnished(f).Build())
		if err != nil {
			runErr = errors.Join(runErr, err)
			continue
		}
		var records []types.Listing
		for _, b := range res.Batches() {
			records = append(records, b...)
		}
		variants = append(variants, storage.Variant{Furnished: f == search.FurnishedOnly, Records: records})
		runErr = errors.Join(runErr, res.Err)
	}

	if len(variants) > 0 {
		if _, err := a.save(a.cfg.RentalsPath(), storage.CombineVariants(variants...)); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}
