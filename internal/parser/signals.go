package parser

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var statusTitle = regexp.MustCompile(`^\s*(?:40[0-9]|50[0-9])\b`)

// PageSignals summarizes what a rendered results page says about the
// state of the search.
type PageSignals struct {
	Title        string
	NoResults    bool
	ErrorTitle   bool
	EndOfResults bool
	HasNext      bool
}

// InspectPage reads the title, the visible text and the pagination
// controls of a results page.
func InspectPage(markup string) (*PageSignals, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}

	s := &PageSignals{}
	if t := htmlquery.FindOne(doc, titleXPath); t != nil {
		s.Title = strings.TrimSpace(htmlquery.InnerText(t))
	}
	s.ErrorTitle = isErrorTitle(s.Title)

	text := strings.ReplaceAll(strings.ToLower(visibleText(doc)), "’", "'")
	s.NoResults = containsAny(text, noResultsPhrases)
	s.EndOfResults = containsAny(text, endOfResultsPhrases)
	s.HasNext = !s.EndOfResults && hasNextControl(doc)

	return s, nil
}

// HasNextPage reports whether the page offers an enabled, visible control
// leading to the next page of results.
func HasNextPage(markup string) bool {
	s, err := InspectPage(markup)
	if err != nil {
		return false
	}
	return s.HasNext
}

func isErrorTitle(title string) bool {
	t := strings.ToLower(title)
	return statusTitle.MatchString(t) || containsAny(t, errorTitlePhrases)
}

func hasNextControl(doc *html.Node) bool {
	nodes, err := htmlquery.QueryAll(doc, nextControlXPath)
	if err == nil {
		for _, n := range nodes {
			if enabled(n) && visible(n) {
				return true
			}
		}
	}

	links, err := htmlquery.QueryAll(doc, textualNextXPath)
	if err != nil {
		return false
	}
	for _, n := range links {
		label := strings.ToLower(htmlquery.InnerText(n) + " " + htmlquery.SelectAttr(n, "aria-label"))
		if strings.Contains(label, "suivant") && enabled(n) && visible(n) {
			return true
		}
	}
	return false
}

func enabled(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "disabled":
			return false
		case "aria-disabled":
			if strings.EqualFold(a.Val, "true") {
				return false
			}
		case "class":
			for _, token := range strings.Fields(a.Val) {
				if strings.Contains(strings.ToLower(token), "disabled") {
					return false
				}
			}
		}
	}
	return true
}

// visible walks up from n and reports false if the node or an ancestor is
// hidden through markup.
func visible(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		for _, a := range cur.Attr {
			switch a.Key {
			case "hidden":
				return false
			case "aria-hidden":
				if strings.EqualFold(a.Val, "true") {
					return false
				}
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			}
		}
	}
	return true
}

// visibleText concatenates text nodes outside script, style and template
// elements.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
