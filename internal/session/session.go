// Package session derives the working set of cards being studied from the
// active deck and tracks which of them is on screen.
package session

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/leitner"
	"github.com/conorfennell/knoldeck/internal/store"
)

// State is the coarse session state.
type State int

const (
	NoDeckSelected State = iota
	DeckSelected
)

func (s State) String() string {
	if s == DeckSelected {
		return "deck_selected"
	}
	return "no_deck_selected"
}

// Direction is a navigation step through the working set.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Filter names the single filter applied to the working set.
type Filter int

const (
	FilterNone Filter = iota
	FilterText
	FilterDue
)

func (f Filter) String() string {
	switch f {
	case FilterText:
		return "text"
	case FilterDue:
		return "due"
	default:
		return "none"
	}
}

// Session is transient study state layered over a Store. It subscribes to
// the Store and recomputes its working set after every mutation.
type Session struct {
	store *store.Store
	rng   *rand.Rand

	query   string
	dueOnly bool
	working []*domain.Card
	index   int

	// rank holds the shuffled position of each card id; nil until Shuffle.
	rank map[string]int
}

// New attaches a Session to st. A nil rng uses a randomly seeded source.
func New(st *store.Store, rng *rand.Rand) *Session {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Session{store: st, rng: rng}
	st.Subscribe(s)
	s.Recompute()
	return s
}

// Notify implements store.Observer.
func (s *Session) Notify(ev store.Event) error {
	switch ev.Kind {
	case store.DeckActivated, store.DeckCreated:
		s.reset()
	case store.DeckDeleted:
		if s.store.ActiveDeckID() == "" {
			s.reset()
		}
	}
	s.Recompute()
	return nil
}

// State reports whether a deck is selected.
func (s *Session) State() State {
	if _, ok := s.store.Deck(s.store.ActiveDeckID()); ok {
		return DeckSelected
	}
	return NoDeckSelected
}

// SetActiveDeck switches deck. The Store's DeckActivated event resets the
// index and clears any filter.
func (s *Session) SetActiveDeck(id string) error {
	return s.store.SetActiveDeck(id)
}

// SetSearchQuery filters by case-insensitive substring of front or back.
// A blank query removes the text filter. A non-blank one turns the due
// filter off.
func (s *Session) SetSearchQuery(text string) {
	s.query = strings.TrimSpace(text)
	if s.query != "" {
		s.dueOnly = false
	}
	s.Recompute()
}

// SetDueFilterActive restricts the working set to due cards. Enabling it
// clears the search query.
func (s *Session) SetDueFilterActive(active bool) {
	s.dueOnly = active
	if active {
		s.query = ""
	}
	s.Recompute()
}

// ToggleDueFilter flips the due filter.
func (s *Session) ToggleDueFilter() {
	s.SetDueFilterActive(!s.dueOnly)
}

// Query returns the active search text.
func (s *Session) Query() string {
	return s.query
}

// Filter reports which filter is in effect.
func (s *Session) Filter() Filter {
	switch {
	case s.dueOnly:
		return FilterDue
	case s.query != "":
		return FilterText
	default:
		return FilterNone
	}
}

// Recompute rebuilds the working set from the active deck's cards in stored
// order and clamps the index into it.
func (s *Session) Recompute() {
	cards := s.store.Cards(s.store.ActiveDeckID())
	now := s.store.Now()

	switch s.Filter() {
	case FilterDue:
		cards = slices.DeleteFunc(cards, func(c *domain.Card) bool { return !c.IsDue(now) })
	case FilterText:
		q := strings.ToLower(s.query)
		cards = slices.DeleteFunc(cards, func(c *domain.Card) bool {
			return !strings.Contains(strings.ToLower(c.Front), q) && !strings.Contains(strings.ToLower(c.Back), q)
		})
	}

	if s.rank != nil {
		s.applyRank(cards)
	}
	s.working = cards
	s.index = min(s.index, len(s.working)-1)
	s.index = max(s.index, 0)
}

// WorkingSet returns a copy of the current working set.
func (s *Session) WorkingSet() []*domain.Card {
	return slices.Clone(s.working)
}

// Index is the position of the displayed card, 0 when the set is empty.
func (s *Session) Index() int {
	return s.index
}

// Current returns the displayed card.
func (s *Session) Current() (*domain.Card, bool) {
	if len(s.working) == 0 {
		return nil, false
	}
	return s.working[s.index], true
}

// Advance moves one card forwards or backwards, wrapping at both ends.
func (s *Session) Advance(d Direction) {
	n := len(s.working)
	if n == 0 || (d != Forward && d != Backward) {
		return
	}
	s.index = (s.index + int(d) + n) % n
}

// Shuffle permutes the working set in place and returns to its first card.
// Stored deck order is not affected. The permutation survives later
// recomputes until the deck is switched; cards it does not cover follow in
// stored order.
func (s *Session) Shuffle() {
	s.rng.Shuffle(len(s.working), func(i, j int) {
		s.working[i], s.working[j] = s.working[j], s.working[i]
	})
	s.rank = make(map[string]int, len(s.working))
	for i, c := range s.working {
		s.rank[c.ID] = i
	}
	s.index = 0
}

func (s *Session) applyRank(cards []*domain.Card) {
	pos := func(c *domain.Card) int {
		if i, ok := s.rank[c.ID]; ok {
			return i
		}
		return len(s.rank)
	}
	slices.SortStableFunc(cards, func(a, b *domain.Card) int {
		return cmp.Compare(pos(a), pos(b))
	})
}

// Rate schedules the displayed card and moves to the card that followed it.
// With the due filter on, the rated card usually drops out of the working
// set; the card that took its place is then shown.
func (s *Session) Rate(r leitner.Rating) error {
	if !r.IsValid() {
		return fmt.Errorf("%w: %w", domain.ErrValidation, leitner.ErrInvalidRating)
	}
	card, ok := s.Current()
	if !ok {
		return nil
	}
	pos := s.index

	// A persistence error arrives after the rating was applied.
	err := s.store.RateCard(s.store.ActiveDeckID(), card.ID, r)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return err
	}
	s.moveAfter(card, pos)
	return err
}

func (s *Session) moveAfter(card *domain.Card, pos int) {
	n := len(s.working)
	if n == 0 {
		s.index = 0
		return
	}
	if i := slices.Index(s.working, card); i >= 0 {
		s.index = (i + 1) % n
		return
	}
	if pos >= n {
		pos = 0
	}
	s.index = pos
}

func (s *Session) reset() {
	s.index = 0
	s.rank = nil
	s.query = ""
	s.dueOnly = false
}
