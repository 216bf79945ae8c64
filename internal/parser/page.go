package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

// PageResult is the outcome of extracting one results page.
type PageResult struct {
	Records []types.Listing
	Cards   int // ad cards found
	Dropped int // cards rejected by the record extractor
	Ignored int // cards whose URL is not a listing
}

// PageExtractor extracts every listing of a results page.
type PageExtractor struct {
	records       *RecordExtractor
	listingPrefix string
	logger        *slog.Logger
}

// NewPageExtractor creates a PageExtractor keeping only URLs that start
// with listingPrefix.
func NewPageExtractor(records *RecordExtractor, listingPrefix string, logger *slog.Logger) *PageExtractor {
	return &PageExtractor{
		records:       records,
		listingPrefix: listingPrefix,
		logger:        logger.With("component", "page_extractor"),
	}
}

// Extract parses raw page markup. A page without any ad card yields
// types.ErrNoAds, which is distinct from a page whose cards were all
// rejected.
func (p *PageExtractor) Extract(html string) (*PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return p.ExtractDocument(doc)
}

// ExtractDocument is Extract on an already parsed document.
func (p *PageExtractor) ExtractDocument(doc *goquery.Document) (*PageResult, error) {
	cards := FindCards(doc.Selection)
	if cards.Length() == 0 {
		return nil, types.ErrNoAds
	}

	res := &PageResult{Cards: cards.Length()}
	seen := types.NewCollection()

	cards.Each(func(i int, card *goquery.Selection) {
		rec, err := p.records.Extract(card, i+1)
		if err != nil {
			res.Dropped++
			var perr *types.ParseError
			if errors.As(err, &perr) {
				p.logger.Debug("card dropped", "index", perr.Index, "reason", perr.Reason)
			} else {
				p.logger.Debug("card dropped", "index", i+1, "error", err)
			}
			return
		}
		if !strings.HasPrefix(rec.URL, p.listingPrefix) {
			res.Ignored++
			p.logger.Debug("card ignored, not a listing URL", "index", i+1, "url", rec.URL)
			return
		}
		seen.Add(*rec)
	})

	res.Records = seen.Records()

	p.logger.Debug("page extracted",
		"cards", res.Cards,
		"records", len(res.Records),
		"dropped", res.Dropped,
		"ignored", res.Ignored,
	)
	return res, nil
}

// FindCards returns the outermost ad card containers under root, in
// document order.
func FindCards(root *goquery.Selection) *goquery.Selection {
	return root.Find(cardCandidates).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !hasClassPrefix(s, CardClassPrefix) {
			return false
		}
		outer := s.ParentsFiltered(cardCandidates).FilterFunction(func(_ int, a *goquery.Selection) bool {
			return hasClassPrefix(a, CardClassPrefix)
		})
		return outer.Length() == 0
	})
}

// HasAdCards reports whether the document carries the card marker together
// with at least one listing link inside a card.
func HasAdCards(doc *goquery.Document) bool {
	found := false
	FindCards(doc.Selection).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if card.Find("a[href*='/ad/']").Length() > 0 {
			found = true
			return false
		}
		return true
	})
	return found
}

func hasClassPrefix(s *goquery.Selection, prefix string) bool {
	class, _ := s.Attr("class")
	for _, token := range strings.Fields(class) {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
