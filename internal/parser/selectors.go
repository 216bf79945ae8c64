package parser

// Markup conventions of the search results page.
const (
	// CardClassPrefix starts one class token of every ad card container.
	CardClassPrefix = "adcard_"
	cardCandidates  = "div[class*='adcard_']"

	PriceSelector    = "p[data-test-id='price'], span[data-test-id='price'], [data-qa-id='aditem_price']"
	CitySelector     = "p[data-test-id='city'], [data-qa-id='aditem_location']"
	DateSelector     = "[data-test-id='date'], [data-qa-id='aditem_date']"
	CaptionSelector  = "p[class*='text-caption']"
	BodySelector     = "p[class*='text-body-2']"
	CardLinkSelector = "a[href]"

	neutralClass = "text-neutral"
)

// XPath expressions for pagination controls.
const (
	nextControlXPath = `//a[@aria-label='Page suivante'] | //button[@aria-label='Page suivante'] | ` +
		`//a[@title='Page suivante'] | //*[@data-spark-component='pagination-next-trigger'] | ` +
		`//*[@data-testid='pagination-next']`
	textualNextXPath = `//a[contains(@href, 'page=')]`
	titleXPath       = `//title`
)

// Phrases shown by the site when a search has nothing (more) to list.
var (
	noResultsPhrases = []string{
		"aucune annonce",
		"aucun résultat",
		"pas de résultat",
		"désolé, nous n'avons pas ça sous la main",
	}
	endOfResultsPhrases = []string{
		"vous avez vu toutes les annonces",
		"fin des résultats",
		"il n'y a plus d'annonces",
	}
	errorTitlePhrases = []string{
		"page introuvable",
		"not found",
		"forbidden",
		"service unavailable",
		"bad gateway",
		"internal server error",
		"erreur",
	}
)
