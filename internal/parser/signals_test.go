package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBody(title, body string) string {
	return `<html><head><title>` + title + `</title><script>var s = "aucune annonce";</script></head><body>` + body + `</body></html>`
}

func TestInspectPageNextControl(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"aria label", `<nav><a aria-label="Page suivante" href="?page=3">›</a></nav>`, true},
		{"spark trigger", `<button data-spark-component="pagination-next-trigger">›</button>`, true},
		{"disabled", `<button aria-label="Page suivante" disabled>›</button>`, false},
		{"aria disabled", `<a aria-label="Page suivante" aria-disabled="true">›</a>`, false},
		{"hidden ancestor", `<div style="display: none"><a aria-label="Page suivante" href="?page=2">›</a></div>`, false},
		{"textual", `<a href="/recherche?category=9&page=2">Suivant</a>`, true},
		{"textual disabled class", `<a class="pagination-disabled" href="/recherche?page=2">Suivant</a>`, false},
		{"none", `<a href="/recherche?page=1">1</a>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := InspectPage(withBody("Annonces - leboncoin", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.HasNext)
		})
	}
}

func TestInspectPageEndOfResultsOverridesNext(t *testing.T) {
	s, err := InspectPage(withBody("Annonces", `<p>Vous avez vu toutes les annonces</p><a aria-label="Page suivante" href="?page=4">›</a>`))
	require.NoError(t, err)
	assert.True(t, s.EndOfResults)
	assert.False(t, s.HasNext)
}

func TestInspectPageNoResults(t *testing.T) {
	s, err := InspectPage(withBody("Annonces", `<h2>Désolé, nous n’avons pas ça sous la main !</h2>`))
	require.NoError(t, err)
	assert.True(t, s.NoResults)

	// phrases inside scripts are not visible text
	s, err = InspectPage(withBody("Annonces", `<p>Résultats</p>`))
	require.NoError(t, err)
	assert.False(t, s.NoResults)
}

func TestInspectPageErrorTitle(t *testing.T) {
	for _, title := range []string{"404 - leboncoin", "Page introuvable", "503 Service Unavailable", "Erreur"} {
		s, err := InspectPage(withBody(title, ""))
		require.NoError(t, err)
		assert.True(t, s.ErrorTitle, title)
	}

	s, err := InspectPage(withBody("Appartement 4 pièces - leboncoin", ""))
	require.NoError(t, err)
	assert.False(t, s.ErrorTitle)
}

func TestHasNextPage(t *testing.T) {
	assert.True(t, HasNextPage(withBody("x", `<a title="Page suivante" href="?page=2">›</a>`)))
	assert.False(t, HasNextPage(withBody("x", "")))
}
