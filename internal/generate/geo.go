package generate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// DefaultGeoURL is the REST Countries listing endpoint.
const DefaultGeoURL = "https://restcountries.com/v3.1/all"

// Geography question kinds.
const (
	GeoCapitals    = "capitals"
	GeoPopulations = "populations"
)

// Geography builds capital or population cards for random countries.
type Geography struct {
	Client  *http.Client
	BaseURL string
	Kind    string
	Count   int
	Rand    *rand.Rand
}

type country struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Population int64    `json:"population"`
}

// DeckName implements Source.
func (g *Geography) DeckName() string {
	if g.Kind == GeoPopulations {
		return "🌍 Populations"
	}
	return "🌍 Capitals"
}

// Generate implements Source.
func (g *Geography) Generate(ctx context.Context) ([]domain.Pair, error) {
	if g.Kind != GeoCapitals && g.Kind != GeoPopulations {
		return nil, fmt.Errorf("%w: geography kind must be %q or %q", domain.ErrValidation, GeoCapitals, GeoPopulations)
	}
	base := g.BaseURL
	if base == "" {
		base = DefaultGeoURL
	}
	count := g.Count
	if count <= 0 {
		count = 10
	}

	var countries []country
	if err := getJSON(ctx, g.Client, base+"?fields=name,capital,population", &countries); err != nil {
		return nil, generationError("geography", err)
	}

	shuffle := rand.Shuffle
	if g.Rand != nil {
		shuffle = g.Rand.Shuffle
	}
	shuffle(len(countries), func(i, j int) { countries[i], countries[j] = countries[j], countries[i] })
	if len(countries) > count {
		countries = countries[:count]
	}

	pairs := make([]domain.Pair, 0, len(countries))
	for _, c := range countries {
		if g.Kind == GeoCapitals {
			capital := "N/A"
			if len(c.Capital) > 0 && c.Capital[0] != "" {
				capital = c.Capital[0]
			}
			pairs = append(pairs, domain.Pair{Front: c.Name.Common, Back: capital})
			continue
		}
		pairs = append(pairs, domain.Pair{
			Front: fmt.Sprintf("Population of %s?", c.Name.Common),
			Back:  fmt.Sprintf("%.1fM", float64(c.Population)/1e6),
		})
	}
	return pairs, nil
}
