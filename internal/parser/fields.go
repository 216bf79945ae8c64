package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the serialized form of publication dates.
const DateLayout = "2006-01-02"

var (
	priceStripper = strings.NewReplacer("\u00a0", "", "\u202f", "", " ", "")

	surfacePattern = regexp.MustCompile(`\b(\d{1,3}(?:[ \x{00a0}\x{202f}]\d{3})+|\d+)[\s\x{00a0}\x{202f}]*m(?:²|2)`)
	roomsPattern   = regexp.MustCompile(`(?i)(\d+)[\s\x{00a0}\x{202f}]*pi[eè]ces?`)

	yesterdayWord = regexp.MustCompile(`\bhier\b`)
	daysAgo       = regexp.MustCompile(`(?:il y a\s+)?(\d+)\s+jours?\b`)
	hoursAgo      = regexp.MustCompile(`il y a\s+\d+\s+(?:heures?|h|minutes?|min)\b`)

	numericDateTime = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\s*(?:à|a|,)?\s*\d{1,2}[:h]\d{2}`)
	namedDateTime   = regexp.MustCompile(`\b(\d{1,2})\s+([a-zéû]+)\.?\s+(\d{4})\s*(?:à|a|,)?\s*\d{1,2}[:h]\d{2}`)
	numericDate     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDate         = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	namedDate       = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s+([a-zéû]+)\.?(?:\s+(\d{4}))?`)
)

var frenchMonths = map[string]time.Month{
	"janv": time.January, "janvier": time.January,
	"févr": time.February, "fevr": time.February, "février": time.February, "fevrier": time.February,
	"mars": time.March,
	"avr": time.April, "avril": time.April,
	"mai":  time.May,
	"juin": time.June,
	"juil": time.July, "juillet": time.July,
	"août": time.August, "aout": time.August,
	"sept": time.September, "septembre": time.September,
	"oct": time.October, "octobre": time.October,
	"nov": time.November, "novembre": time.November,
	"déc": time.December, "dec": time.December, "décembre": time.December, "decembre": time.December,
}

// ParsePrice converts a displayed price such as "1 234,56 €" into whole
// currency units. The right-most separator is read as the decimal point,
// except when it is the only kind of separator and exactly three digits
// follow it, in which case it groups thousands ("1.234" is 1234).
// It reports false when no number can be read.
func ParsePrice(text string) (int, bool) {
	s := priceStripper.Replace(text)

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = strings.TrimRight(b.String(), ".,")
	if s == "" {
		return 0, false
	}

	intPart := s
	if last := strings.LastIndexAny(s, ".,"); last >= 0 {
		sep := s[last]
		other := byte(',')
		if sep == ',' {
			other = '.'
		}
		grouping := len(s)-last-1 == 3 && strings.IndexByte(s, other) < 0
		if !grouping {
			intPart = s[:last]
		}
	}

	digits := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)
	if digits == "" {
		return 0, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseSurface returns the first whole number directly followed by a
// square-meter marker ("45m²", "45 m²", "45 m2"). Thousands may be grouped
// with a space ("1 200 m²").
func ParseSurface(text string) (int, bool) {
	return firstInt(surfacePattern, text)
}

// ParseRooms returns the first whole number followed by "pièce(s)".
func ParseRooms(text string) (int, bool) {
	return firstInt(roomsPattern, text)
}

func firstInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(priceStripper.Replace(m[1]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseRelativeDate turns the publication caption of a card into a
// YYYY-MM-DD date relative to today. Recognized forms, in priority order:
// "aujourd'hui", "hier", "N jours", a full date with time, a bare date.
//
// Unrecognized text yields today's date with ok=false; callers should log
// that the date is a guess.
func ParseRelativeDate(text string, today time.Time) (string, bool) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	s := normalizeCaption(text)

	switch {
	case strings.Contains(s, "aujourd'hui"), hoursAgo.MatchString(s):
		return day.Format(DateLayout), true
	case strings.Contains(s, "avant-hier"):
		return day.AddDate(0, 0, -2).Format(DateLayout), true
	case yesterdayWord.MatchString(s):
		return day.AddDate(0, 0, -1).Format(DateLayout), true
	}

	if m := daysAgo.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return day.AddDate(0, 0, -n).Format(DateLayout), true
		}
	}

	if m := numericDateTime.FindStringSubmatch(s); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], day.Location()); ok {
			return d.Format(DateLayout), true
		}
	}
	if m := namedDateTime.FindStringSubmatch(s); m != nil {
		if d, ok := buildNamedDate(m[1], m[2], m[3], day); ok {
			return d.Format(DateLayout), true
		}
	}
	if m := numericDate.FindStringSubmatch(s); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1], day.Location()); ok {
			return d.Format(DateLayout), true
		}
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3], day.Location()); ok {
			return d.Format(DateLayout), true
		}
	}
	for _, m := range namedDate.FindAllStringSubmatch(s, -1) {
		if d, ok := buildNamedDate(m[1], m[2], m[3], day); ok {
			return d.Format(DateLayout), true
		}
	}

	return day.Format(DateLayout), false
}

// LooksLikeDate reports whether text carries any recognized date form.
func LooksLikeDate(text string) bool {
	_, ok := ParseRelativeDate(text, time.Now())
	return ok
}

// CleanCaption strips separator glyphs and collapses whitespace.
func CleanCaption(text string) string {
	s := strings.NewReplacer("·", " ", "•", " ", "|", " ", "\u00a0", " ", "\u202f", " ").Replace(text)
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " -–,")
}

func normalizeCaption(text string) string {
	s := strings.ToLower(CleanCaption(text))
	return strings.ReplaceAll(s, "’", "'")
}

func buildDate(year, month, dayOfMonth string, loc *time.Location) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(dayOfMonth)
	if err1 != nil || err2 != nil || err3 != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// buildNamedDate resolves "12 mars [2025]". Without a year the most recent
// past occurrence is used.
func buildNamedDate(dayOfMonth, monthName, year string, today time.Time) (time.Time, bool) {
	month, ok := frenchMonths[monthName]
	if !ok {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(dayOfMonth)
	if err != nil {
		return time.Time{}, false
	}
	y := today.Year()
	explicitYear := year != ""
	if explicitYear {
		if y, err = strconv.Atoi(year); err != nil {
			return time.Time{}, false
		}
	}
	t := time.Date(y, month, d, 0, 0, 0, 0, today.Location())
	if t.Day() != d {
		return time.Time{}, false
	}
	if !explicitYear && t.After(today) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, true
}
