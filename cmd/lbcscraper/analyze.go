package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/loan"
	"github.com/IshaanNene/lbcscraper/internal/report"
	"github.com/IshaanNene/lbcscraper/internal/search"
	"github.com/IshaanNene/lbcscraper/internal/stats"
	"github.com/IshaanNene/lbcscraper/internal/storage"
)

var (
	maxPrice   int
	minSurface int
	cityFilter string

	loanAmount float64
	loanRate   float64
	loanYears  int

	urlRental    bool
	urlFurnished string
	urlPrice     string
	urlSurface   string
	urlRooms     string
	urlPlaces    []string
	geocodeCity  string
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&maxPrice, "max-price", 0, "only list sales at or below this price")
	cmd.Flags().IntVar(&minSurface, "min-surface", 0, "only list sales of at least this surface (m²)")
	cmd.Flags().StringVar(&cityFilter, "filter-city", "", "only list sales whose location contains this text")
}

func criteria() stats.Criteria {
	return stats.Criteria{MaxPrice: maxPrice, MinSurface: minSurface, City: cityFilter}
}

// printReport prints sale and rental statistics, then the filtered sales
// with their mortgage payment against the rent of a similar rental.
func printReport(w io.Writer, cfg *config.Config, logger *slog.Logger, c stats.Criteria) error {
	sales, err := storage.ReadListings(cfg.SalesPath(), logger)
	if err != nil {
		return err
	}
	rentals, err := storage.ReadListings(cfg.RentalsPath(), logger)
	if err != nil {
		return err
	}

	r := report.New(w, cfg.Display)
	r.Sales(stats.Sales(sales))
	r.Rooms("PRIX MOYEN PAR NOMBRE DE PIÈCES - VENTES", stats.ByRooms(sales))

	rentalRooms := stats.ByRooms(rentals)
	if len(rentals) > 0 {
		r.Rentals(stats.Rentals(rentals))
		r.Rooms("LOYER MOYEN PAR NOMBRE DE PIÈCES - LOCATIONS", rentalRooms)
		fmt.Fprintf(w, "\nLoyer moyen au m² : %.2f €/m²\n",
			stats.AverageRentPerM2(rentals, cfg.Loan.DefaultRentPerSqm))
	}

	rows := stats.AffordabilityRows(stats.Filter(sales, c), stats.RentByRooms(rentalRooms),
		cfg.Loan.InterestRate, cfg.Loan.DurationYears)
	r.Listings(rows, cfg.Loan.InterestRate, cfg.Loan.DurationYears)
	return nil
}

// statsCmd creates the "stats" subcommand.
func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics over the saved listings",
		Long: `Stats reads the sales and rentals files and prints price per m², rents,
per-room breakdowns and a mortgage comparison for every sale.

Examples:
  lbcscraper stats
  lbcscraper stats --max-price 200000 --min-surface 60 --filter-city Albi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return printReport(os.Stdout, cfg, logger, criteria())
		},
	}
	addFilterFlags(cmd)
	return cmd
}

// loanCmd creates the "loan" subcommand.
func loanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Compute a mortgage payment and its amortization table",
		Long: `Loan prints the monthly payment, total cost and an abridged amortization
table. Rate and duration default to the loan section of the config.

Examples:
  lbcscraper loan --amount 200000
  lbcscraper loan --amount 150000 --rate 3.2 --years 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			t := loan.Terms{Principal: loanAmount, RatePercent: cfg.Loan.InterestRate, Years: cfg.Loan.DurationYears}
			if cmd.Flags().Changed("rate") {
				t.RatePercent = loanRate
			}
			if cmd.Flags().Changed("years") {
				t.Years = loanYears
			}
			if err := t.Validate(); err != nil {
				return err
			}
			report.New(os.Stdout, cfg.Display).Loan(t)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&loanAmount, "amount", "a", 0, "amount borrowed in euros")
	cmd.Flags().Float64Var(&loanRate, "rate", 0, "yearly interest rate in percent")
	cmd.Flags().IntVar(&loanYears, "years", 0, "duration in years")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// urlCmd creates the "url" subcommand.
func urlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url",
		Short: "Build a search URL",
		Long: `Url prints the search URL the scraper would visit. Places are given as
"Name_postcode" tokens or geocoded with --geocode.

Examples:
  lbcscraper url --place Albi_81000
  lbcscraper url --rental --furnished yes --place Albi_81000 --surface 20-60`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			q := search.NewSaleQuery(cfg)
			if urlRental {
				q = search.NewRentalQuery(cfg)
				switch urlFurnished {
				case "yes":
					q = q.WithFurnished(search.FurnishedOnly)
				case "no":
					q = q.WithFurnished(search.Unfurnished)
				case "", "any":
				default:
					return fmt.Errorf("--furnished must be yes, no or any, got %q", urlFurnished)
				}
			}
			for key, val := range map[string]string{"price": urlPrice, "square": urlSurface, "rooms": urlRooms} {
				if val == "" {
					continue
				}
				lo, hi, err := parseRange(val)
				if err != nil {
					return fmt.Errorf("--%s: %w", key, err)
				}
				switch key {
				case "price":
					q = q.WithPrice(lo, hi)
				case "square":
					q = q.WithSurface(lo, hi)
				case "rooms":
					q = q.WithRooms(lo, hi)
				}
			}
			for _, p := range urlPlaces {
				q = q.WithLocationToken(p)
			}
			if geocodeCity != "" {
				a := &app{cfg: cfg, logger: logger}
				places := a.geocode(cmd.Context(), []string{geocodeCity})
				if len(places) == 0 {
					return fmt.Errorf("%q could not be located", geocodeCity)
				}
				q = q.WithLocation(places[0])
			}

			fmt.Println(q.Build())
			return nil
		},
	}
	cmd.Flags().BoolVar(&urlRental, "rental", false, "build a rental search")
	cmd.Flags().StringVar(&urlFurnished, "furnished", "", "rental furnishing: yes, no or any")
	cmd.Flags().StringVar(&urlPrice, "price", "", "price range, min-max")
	cmd.Flags().StringVar(&urlSurface, "surface", "", "surface range, min-max")
	cmd.Flags().StringVar(&urlRooms, "rooms", "", "rooms range, min-max")
	cmd.Flags().StringSliceVar(&urlPlaces, "place", nil, "location token (repeatable)")
	cmd.Flags().StringVar(&geocodeCity, "geocode", "", "city name or postal code to geocode and add")
	return cmd
}

// parseRange reads "min-max", "min-max" with an open side ("-max",
// "min-") or a single value.
func parseRange(s string) (int, int, error) {
	var lo, hi int
	if _, err := fmt.Sscanf(s, "%d-%d", &lo, &hi); err == nil {
		return lo, hi, nil
	}
	if _, err := fmt.Sscanf(s, "-%d", &hi); err == nil {
		return 0, hi, nil
	}
	if _, err := fmt.Sscanf(s, "%d", &lo); err == nil {
		if len(s) > 0 && s[len(s)-1] == '-' {
			return lo, 0, nil
		}
		return lo, lo, nil
	}
	return 0, 0, fmt.Errorf("invalid range %q", s)
}
