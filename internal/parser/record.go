package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/lbcscraper/internal/types"
)

// RecordExtractor turns one ad card into a Listing.
type RecordExtractor struct {
	base   *url.URL
	now    func() time.Time
	logger *slog.Logger
}

// ExtractorOption configures a RecordExtractor.
type ExtractorOption func(*RecordExtractor)

// WithClock sets the clock used to resolve relative publication dates.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *RecordExtractor) { e.now = now }
}

// NewRecordExtractor creates an extractor resolving relative links
// against baseURL.
func NewRecordExtractor(baseURL string, logger *slog.Logger, opts ...ExtractorOption) (*RecordExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	e := &RecordExtractor{
		base:   base,
		now:    time.Now,
		logger: logger.With("component", "record_extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract reads the fields of card. index is the card's 1-based position
// on the page and becomes the provisional id. A card missing a required
// field is rejected with a *types.ParseError.
func (e *RecordExtractor) Extract(card *goquery.Selection, index int) (rec *types.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &types.ParseError{Index: index, Reason: "malformed card", Err: fmt.Errorf("%v", r)}
		}
	}()

	l := &types.Listing{ID: fmt.Sprint(index)}

	if text := firstText(card, PriceSelector); text != "" {
		if price, ok := ParsePrice(text); ok {
			l.Price = types.Int(price)
		}
	}

	l.Location = e.location(card)

	card.Find(BodySelector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if !strings.Contains(text, "m²") && !strings.Contains(text, "m2") {
			return true
		}
		l.Description = text
		if surface, ok := ParseSurface(text); ok {
			l.SurfaceM2 = types.Int(surface)
		}
		if rooms, ok := ParseRooms(text); ok {
			l.Rooms = types.Int(rooms)
		}
		return false
	})

	if href, ok := card.Find(CardLinkSelector).First().Attr("href"); ok {
		if u, err := CanonicalURL(e.base, href); err == nil {
			l.URL = u
		} else {
			e.logger.Debug("unusable card link", "index", index, "href", href, "error", err)
		}
	}

	if caption := e.dateCaption(card); caption != "" {
		date, ok := ParseRelativeDate(caption, e.now())
		if !ok {
			e.logger.Debug("unrecognized publication date, assuming today", "index", index, "caption", caption)
		}
		l.PublicationDate = date
	}

	l.Recompute()

	if err := l.Validate(); err != nil {
		return nil, &types.ParseError{Index: index, Reason: err.Error()}
	}
	return l, nil
}

// location tries the explicit city markers first, then the neutral caption,
// then any caption mixing digits and letters that is not a date.
func (e *RecordExtractor) location(card *goquery.Selection) string {
	if text := firstText(card, CitySelector); text != "" {
		return text
	}

	var found string
	captions := card.Find(CaptionSelector)
	captions.EachWithBreak(func(_ int, p *goquery.Selection) bool {
		class, _ := p.Attr("class")
		text := CleanCaption(p.Text())
		if strings.Contains(class, neutralClass) && text != "" && !isDateCaption(text) {
			found = text
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	captions.EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := CleanCaption(p.Text())
		if hasDigitAndLetter(text) && !isDateCaption(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

// dateCaption returns the cleaned publication caption, or "" if the card
// has none.
func (e *RecordExtractor) dateCaption(card *goquery.Selection) string {
	if text := firstText(card, DateSelector); text != "" {
		return CleanCaption(text)
	}

	var found string
	card.Find(CaptionSelector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		class, _ := p.Attr("class")
		if strings.Contains(class, neutralClass) {
			return true
		}
		text := CleanCaption(p.Text())
		if isDateCaption(text) {
			found = text
			return false
		}
		return true
	})
	return found
}

func isDateCaption(text string) bool {
	return yesterdayWord.MatchString(strings.ToLower(text)) || LooksLikeDate(text)
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func hasDigitAndLetter(s string) bool {
	var digit, letter bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	return digit && letter
}
