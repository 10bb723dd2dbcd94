// Package importer turns generated pairs into a new deck.
package importer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
	"github.com/conorfennell/knoldeck/internal/store"
)

// Result summarises one import.
type Result struct {
	DeckID    string `json:"deckId,omitempty"`
	DeckName  string `json:"deckName"`
	Created   int    `json:"created"`
	Empty     int    `json:"skippedEmpty"`
	Duplicate int    `json:"skippedDuplicate"`
}

// Apply creates a deck named name and one card per usable pair. genErr is the
// adapter's error, if any; pairs produced before it are still imported.
//
// A deck is only kept when at least one card was created. When nothing
// usable arrived the deck is never created and a generation error is
// returned. Persistence failures are non-fatal and returned alongside a
// populated Result.
func Apply(st *store.Store, name string, pairs []domain.Pair, genErr error) (Result, error) {
	res := Result{DeckName: strings.TrimSpace(name)}

	usable := make([]domain.Pair, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if strings.TrimSpace(p.Front) == "" || strings.TrimSpace(p.Back) == "" {
			res.Empty++
			continue
		}
		h := knol.Hash(p)
		if seen[h] {
			res.Duplicate++
			continue
		}
		seen[h] = true
		usable = append(usable, p)
	}

	if len(usable) == 0 {
		if genErr != nil {
			return res, genErr
		}
		return res, fmt.Errorf("%w: source returned no usable cards", domain.ErrGeneration)
	}

	var warnings []error
	deckID, err := st.CreateDeck(res.DeckName)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return res, err
	}
	if err != nil {
		warnings = append(warnings, err)
	}
	res.DeckID = deckID

	for _, p := range usable {
		_, err := st.CreateCard(deckID, p.Front, p.Back)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrPersistence):
			res.Created++
			warnings = append(warnings, err)
		default:
			warnings = append(warnings, err)
		}
	}

	if res.Created == 0 {
		// Never leave an empty orphan deck behind.
		if err := st.DeleteDeck(deckID); err != nil {
			warnings = append(warnings, fmt.Errorf("removing empty deck %s: %w", deckID, err))
		}
		res.DeckID = ""
		return res, errors.Join(append([]error{fmt.Errorf("%w: no card could be created", domain.ErrGeneration)}, warnings...)...)
	}
	return res, errors.Join(append([]error{genErr}, warnings...)...)
}

// Guard allows at most one generation in flight per trigger.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]bool
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]bool)}
}

// Acquire claims trigger. It fails with domain.ErrGenerationInFlight while
// another claim on the same trigger is held. The returned func releases the
// claim.
func (g *Guard) Acquire(trigger string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight[trigger] {
		return nil, fmt.Errorf("%s: %w", trigger, domain.ErrGenerationInFlight)
	}
	g.inFlight[trigger] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, trigger)
			g.mu.Unlock()
		})
	}, nil
}
