// Package report renders statistics and listing tables for the console.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/loan"
	"github.com/IshaanNene/lbcscraper/internal/stats"
)

const (
	dateLayout = "2006-01-02"
	na         = "N/A"
	ruleWidth  = 80
)

// Reporter writes human-readable reports to w.
type Reporter struct {
	w       io.Writer
	display config.DisplayConfig
	now     func() time.Time
}

// New creates a Reporter.
func New(w io.Writer, display config.DisplayConfig) *Reporter {
	return &Reporter{w: w, display: display, now: time.Now}
}

// WithClock returns a copy of r using now as the current time.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	c := *r
	c.now = now
	return &c
}

func (r *Reporter) heading(title string) {
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n", rule, title, rule)
}

func (r *Reporter) table() *tabwriter.Writer {
	return tabwriter.NewWriter(r.w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
}

// Sales prints price per m² statistics.
func (r *Reporter) Sales(s *stats.Summary) {
	r.heading("STATISTIQUES - VENTES")
	if s == nil {
		fmt.Fprintln(r.w, "Aucune donnée de prix au m² trouvée.")
		return
	}
	fmt.Fprintf(r.w, "Nombre d'annonces : %d\n", s.Count)
	fmt.Fprintf(r.w, "Prix moyen au m² : %s/m²\n", FormatPrice(s.Mean))
	fmt.Fprintf(r.w, "Prix minimum au m² : %s/m²\n", FormatPrice(s.Min))
	fmt.Fprintf(r.w, "Prix maximum au m² : %s/m²\n", FormatPrice(s.Max))
	r.cities(s.ByCity, "/m²")
}

// Rentals prints rent statistics for each furnishing.
func (r *Reporter) Rentals(s stats.RentalSummary) {
	r.heading("STATISTIQUES - LOCATIONS")
	parts := []struct {
		title string
		sum   *stats.Summary
	}{
		{"STATISTIQUES GLOBALES", s.Global},
		{"LOCATIONS MEUBLÉES", s.Furnished},
		{"LOCATIONS NON MEUBLÉES", s.Unfurnished},
	}
	printed := false
	for _, p := range parts {
		if p.sum == nil {
			continue
		}
		printed = true
		fmt.Fprintf(r.w, "\n%s\n%s\n", p.title, strings.Repeat("-", ruleWidth))
		fmt.Fprintf(r.w, "Nombre d'annonces : %d\n", p.sum.Count)
		fmt.Fprintf(r.w, "Loyer moyen : %s/mois\n", FormatPrice(p.sum.Mean))
		fmt.Fprintf(r.w, "Loyer minimum : %s/mois\n", FormatPrice(p.sum.Min))
		fmt.Fprintf(r.w, "Loyer maximum : %s/mois\n", FormatPrice(p.sum.Max))
		r.cities(p.sum.ByCity, "/mois")
	}
	if !printed {
		fmt.Fprintln(r.w, "Aucune annonce de location avec un prix.")
	}
}

func (r *Reporter) cities(byCity []stats.CityMean, unit string) {
	if len(byCity) == 0 {
		return
	}
	fmt.Fprintln(r.w, "\nMoyennes par ville :")
	for _, c := range byCity {
		fmt.Fprintf(r.w, "- %s: %s%s\n", c.City, FormatPrice(c.Mean), unit)
	}
}

// Rooms prints the per-room breakdown.
func (r *Reporter) Rooms(title string, rooms []stats.RoomStats) {
	r.heading(title)
	if len(rooms) == 0 {
		fmt.Fprintln(r.w, "Aucune donnée à afficher.")
		return
	}
	tw := r.table()
	fmt.Fprintln(tw, "Pièces\tAnnonces\tPrix moyen\tSurface moy.\tPrix/m² moy.\tPrix min\tPrix max\t")
	for _, s := range rooms {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.1f m²\t%.2f €/m²\t%s\t%s\t\n",
			s.Rooms, s.Count, FormatPrice(s.MeanPrice), s.MeanSurface, s.MeanPricePerM2,
			FormatPrice(s.MinPrice), FormatPrice(s.MaxPrice))
	}
	tw.Flush()
}

// Listings prints one row per listing with its mortgage comparison.
func (r *Reporter) Listings(rows []stats.Affordability, ratePercent float64, years int) {
	r.heading(fmt.Sprintf("LISTE DÉTAILLÉE DES ANNONCES (%d résultats)", len(rows)))
	tw := r.table()
	fmt.Fprintf(tw, "ID\tLocalisation\tPrix\tSurface\tPièces\tPrix/m²\tMensualité (%s%% - %d ans)\tDifférence\tPublié\tDescription\t\n",
		strconv.FormatFloat(ratePercent, 'f', -1, 64), years)

	today := r.now()
	for _, row := range rows {
		l := row.Listing
		payment, diff := na, na
		if row.Payment > 0 {
			payment = FormatPrice(math.Trunc(row.Payment))
		}
		if row.Difference != nil {
			diff = FormatPrice(math.Trunc(*row.Difference))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			l.ID,
			Truncate(l.Location, r.display.LocationWidth),
			intOrNA(l.Price, FormatPrice),
			intOrNA(l.SurfaceM2, func(v float64) string { return fmt.Sprintf("%.0f m²", v) }),
			intOrNA(l.Rooms, func(v float64) string { return strconv.Itoa(int(v)) }),
			intOrNA(l.PricePerM2, func(v float64) string { return FormatPrice(v) + "/m²" }),
			payment,
			diff,
			Elapsed(l.PublicationDate, today),
			Truncate(l.Description, r.display.DescriptionWidth),
		)
	}
	tw.Flush()
	fmt.Fprintf(r.w, "%s\nTotal : %d annonces affichées\n", strings.Repeat("-", ruleWidth), len(rows))
}

// Loan prints the repayment summary and the abridged schedule.
func (r *Reporter) Loan(t loan.Terms) {
	r.heading("RÉSULTATS")
	fmt.Fprintf(r.w, "Mensualité : %s\n", formatCents(t.Payment()))
	fmt.Fprintf(r.w, "Coût total du crédit : %s\n", formatCents(t.TotalCost()))
	fmt.Fprintf(r.w, "Dont intérêts : %s\n", formatCents(t.Interest()))

	r.heading("TABLEAU D'AMORTISSEMENT DU PRÊT")
	tw := r.table()
	fmt.Fprintln(tw, "Mois\tCapital restant dû\tIntérêts\tCapital remboursé\t")
	for _, row := range t.Schedule() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", row.Month,
			formatCents(row.Remaining), formatCents(row.Interest), formatCents(row.Principal))
		if row.Month == 12 && t.Years > 1 {
			fmt.Fprintln(tw, "...\t\t\t\t")
		}
	}
	tw.Flush()
}

// Elapsed describes how long ago a YYYY-MM-DD date was, in French.
func Elapsed(published string, today time.Time) string {
	if published == "" {
		return na
	}
	pub, err := time.ParseInLocation(dateLayout, published, today.Location())
	if err != nil {
		return na
	}
	y, m, d := today.Date()
	days := int(time.Date(y, m, d, 0, 0, 0, 0, today.Location()).Sub(pub).Hours() / 24)
	if days <= 0 {
		return "aujourd'hui"
	}

	years := days / 365
	months := (days % 365) / 30
	rest := days % 30
	switch {
	case years > 0:
		s := fmt.Sprintf("il y a %d an%s", years, plural(years))
		if months > 0 {
			s += fmt.Sprintf(" et %d mois", months)
		}
		return s
	case months > 0:
		s := fmt.Sprintf("il y a %d mois", months)
		if rest > 0 {
			s += fmt.Sprintf(" et %d jour%s", rest, plural(rest))
		}
		return s
	case days == 1:
		return "hier"
	default:
		return fmt.Sprintf("il y a %d jours", days)
	}
}

// FormatPrice renders whole euros with spaces between thousands.
func FormatPrice(v float64) string {
	return groupThousands(int64(math.Round(v))) + " €"
}

func formatCents(v float64) string {
	cents := int64(math.Round(v * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s,%02d €", sign, groupThousands(cents/100), cents%100)
}

func groupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}

// Truncate shortens s to at most width runes, ending with "...".
func Truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 3 {
		return string([]rune(s)[:width])
	}
	return string([]rune(s)[:width-3]) + "..."
}

func intOrNA(v *int, format func(float64) string) string {
	if v == nil {
		return na
	}
	return format(float64(*v))
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
