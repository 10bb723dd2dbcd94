package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/leitner"
	"github.com/conorfennell/knoldeck/internal/store"
)

type fixture struct {
	now   time.Time
	store *store.Store
	sess  *Session
	deck  string
	cards []string
}

// newFixture builds a deck named "Deck" holding one card per front/back pair.
func newFixture(t *testing.T, pairs ...[2]string) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	n := 0
	f.store = store.New(
		store.WithClock(func() time.Time { return f.now }),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	f.sess = New(f.store, rand.New(rand.NewPCG(1, 2)))

	deck, err := f.store.CreateDeck("Deck")
	if err != nil {
		t.Fatalf("CreateDeck() returned an unexpected error: %v", err)
	}
	f.deck = deck
	for _, p := range pairs {
		id, err := f.store.CreateCard(deck, p[0], p[1])
		if err != nil {
			t.Fatalf("CreateCard() returned an unexpected error: %v", err)
		}
		f.cards = append(f.cards, id)
	}
	return f
}

func ids(cards []*domain.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func (f *fixture) workingIDs() []string {
	return ids(f.sess.WorkingSet())
}

func TestDueFilterWithUnreviewedCards(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
	f.sess.SetDueFilterActive(true)
	if got := len(f.sess.WorkingSet()); got != 3 {
		t.Errorf("Expected all 3 never-reviewed cards to be due, but got %d", got)
	}
}

func TestDueFilterExcludesFutureCards(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
	f.store.RateCard(f.deck, f.cards[1], leitner.Good)
	f.sess.SetDueFilterActive(true)

	want := []string{f.cards[0], f.cards[2]}
	if diff := cmp.Diff(want, f.workingIDs()); diff != "" {
		t.Errorf("Unexpected working set (-want +got):\n%s", diff)
	}

	// Three days later the rated card is due again.
	f.now = f.now.Add(3 * leitner.Day)
	f.sess.Recompute()
	if diff := cmp.Diff(f.cards, f.workingIDs()); diff != "" {
		t.Errorf("Unexpected working set (-want +got):\n%s", diff)
	}
}

func TestSearchQuery(t *testing.T) {
	f := newFixture(t,
		[2]string{"Capital of France", "Paris"},
		[2]string{"Capital of Italy", "Rome"},
		[2]string{"Largest ocean", "pacific"},
	)

	testCases := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "matches front case-insensitively", query: "CAPITAL", expected: []string{f.cards[0], f.cards[1]}},
		{name: "matches back", query: "PaCiFiC", expected: []string{f.cards[2]}},
		{name: "trimmed query", query: "  rome  ", expected: []string{f.cards[1]}},
		{name: "no match", query: "zebra", expected: []string{}},
		{name: "blank query clears the filter", query: "   ", expected: f.cards},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f.sess.SetSearchQuery(tc.query)
			if diff := cmp.Diff(tc.expected, f.workingIDs()); diff != "" {
				t.Errorf("Unexpected working set (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFiltersAreMutuallyExclusive(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"})

	f.sess.SetSearchQuery("a")
	f.sess.SetDueFilterActive(true)
	if f.sess.Query() != "" || f.sess.Filter() != FilterDue {
		t.Errorf("Expected enabling the due filter to clear the query, but got query %q filter %s", f.sess.Query(), f.sess.Filter())
	}

	f.sess.SetSearchQuery("a")
	if f.sess.Filter() != FilterText {
		t.Errorf("Expected a search query to disable the due filter, but got filter %s", f.sess.Filter())
	}

	f.sess.ToggleDueFilter()
	f.sess.ToggleDueFilter()
	if f.sess.Filter() != FilterNone {
		t.Errorf("Expected toggling twice to leave no filter, but got %s", f.sess.Filter())
	}
}

func TestWorkingSetIsSubsetOfDeck(t *testing.T) {
	f := newFixture(t,
		[2]string{"alpha", "one"}, [2]string{"beta", "two"}, [2]string{"gamma", "three"},
		[2]string{"delta", "four"}, [2]string{"epsilon", "five"},
	)
	rng := rand.New(rand.NewPCG(7, 7))
	queries := []string{"", "a", "ph", "t", "zzz", "E"}

	for step := 0; step < 200; step++ {
		switch rng.IntN(6) {
		case 0:
			f.sess.SetSearchQuery(queries[rng.IntN(len(queries))])
		case 1:
			f.sess.ToggleDueFilter()
		case 2:
			f.sess.Shuffle()
		case 3:
			f.sess.Advance(Forward)
		case 4:
			f.sess.Rate(leitner.Rating(rng.IntN(3) + 1))
		case 5:
			f.now = f.now.Add(time.Duration(rng.IntN(5)) * leitner.Day)
			f.sess.Recompute()
		}

		deck := f.store.Cards(f.deck)
		for _, c := range f.sess.WorkingSet() {
			if !slices.Contains(deck, c) {
				t.Fatalf("Step %d: working set card %s is not in the deck", step, c.ID)
			}
		}
		if n := len(f.sess.WorkingSet()); (n == 0 && f.sess.Index() != 0) || (n > 0 && f.sess.Index() >= n) {
			t.Fatalf("Step %d: index %d is invalid for a working set of %d", step, f.sess.Index(), n)
		}
	}
}

func TestIndexIsClampedAfterDeletion(t *testing.T) {
	t.Run("deleting the only card", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"})
		if err := f.store.DeleteCard(f.deck, f.cards[0]); err != nil {
			t.Fatalf("DeleteCard() returned an unexpected error: %v", err)
		}
		if len(f.sess.WorkingSet()) != 0 || f.sess.Index() != 0 {
			t.Errorf("Expected an empty working set at index 0, but got %d cards at %d", len(f.sess.WorkingSet()), f.sess.Index())
		}
		if _, ok := f.sess.Current(); ok {
			t.Errorf("Expected no current card")
		}
	})

	t.Run("deleting the last card while it is shown", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
		f.sess.Advance(Backward)
		f.store.DeleteCard(f.deck, f.cards[2])
		if f.sess.Index() != 1 {
			t.Errorf("Expected index to be clamped to 1, but got %d", f.sess.Index())
		}
	})
}

func TestCircularNavigation(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"}, [2]string{"d", "4"})
	n := len(f.sess.WorkingSet())

	for start := 0; start < n; start++ {
		for f.sess.Index() != start {
			f.sess.Advance(Forward)
		}
		for i := 0; i < n; i++ {
			f.sess.Advance(Forward)
		}
		if f.sess.Index() != start {
			t.Errorf("Expected %d forward steps to return to %d, but got %d", n, start, f.sess.Index())
		}
	}

	for f.sess.Index() != 0 {
		f.sess.Advance(Forward)
	}
	f.sess.Advance(Backward)
	if f.sess.Index() != n-1 {
		t.Errorf("Expected stepping back from 0 to wrap to %d, but got %d", n-1, f.sess.Index())
	}

	f.sess.Advance(Direction(5))
	if f.sess.Index() != n-1 {
		t.Errorf("Expected an invalid direction to be ignored")
	}
}

func TestAdvanceOnEmptyWorkingSet(t *testing.T) {
	f := newFixture(t)
	f.sess.Advance(Forward)
	f.sess.Advance(Backward)
	if f.sess.Index() != 0 {
		t.Errorf("Expected index 0, but got %d", f.sess.Index())
	}
}

func TestShuffle(t *testing.T) {
	pairs := make([][2]string, 0, 20)
	for i := 0; i < 20; i++ {
		pairs = append(pairs, [2]string{fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)})
	}
	f := newFixture(t, pairs...)
	f.sess.Advance(Forward)
	f.sess.Shuffle()

	if f.sess.Index() != 0 {
		t.Errorf("Expected shuffle to reset the index, but got %d", f.sess.Index())
	}
	got := f.workingIDs()
	if slices.Equal(got, f.cards) {
		t.Errorf("Expected a different order after shuffling 20 cards")
	}
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	want := slices.Clone(f.cards)
	slices.Sort(want)
	if diff := cmp.Diff(want, sorted); diff != "" {
		t.Errorf("Shuffle changed the set of cards (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(f.cards, ids(f.store.Cards(f.deck))); diff != "" {
		t.Errorf("Shuffle changed stored deck order (-want +got):\n%s", diff)
	}
}

func TestRateAdvances(t *testing.T) {
	t.Run("without a filter", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
		if err := f.sess.Rate(leitner.Good); err != nil {
			t.Fatalf("Rate() returned an unexpected error: %v", err)
		}
		if c, _ := f.sess.Current(); c.ID != f.cards[1] {
			t.Errorf("Expected to move to %s, but got %s", f.cards[1], c.ID)
		}
		if c, _ := f.store.Card(f.deck, f.cards[0]); c.Box != 1 {
			t.Errorf("Expected the rated card to move to box 1, but got %d", c.Box)
		}
	})

	t.Run("wraps after the last card", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"})
		f.sess.Advance(Backward)
		f.sess.Rate(leitner.Again)
		if f.sess.Index() != 0 {
			t.Errorf("Expected to wrap to index 0, but got %d", f.sess.Index())
		}
	})

	t.Run("rated card drops out of the due filter", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"}, [2]string{"c", "3"})
		f.sess.SetDueFilterActive(true)
		f.sess.Rate(leitner.Easy)

		if diff := cmp.Diff([]string{f.cards[1], f.cards[2]}, f.workingIDs()); diff != "" {
			t.Errorf("Unexpected working set (-want +got):\n%s", diff)
		}
		if c, _ := f.sess.Current(); c.ID != f.cards[1] {
			t.Errorf("Expected the next due card %s, but got %s", f.cards[1], c.ID)
		}
	})

	t.Run("last due card leaves an empty set", func(t *testing.T) {
		f := newFixture(t, [2]string{"a", "1"})
		f.sess.SetDueFilterActive(true)
		f.sess.Rate(leitner.Good)
		if len(f.sess.WorkingSet()) != 0 || f.sess.Index() != 0 {
			t.Errorf("Expected an empty working set at index 0")
		}
	})

	t.Run("empty working set", func(t *testing.T) {
		f := newFixture(t)
		if err := f.sess.Rate(leitner.Good); err != nil {
			t.Errorf("Expected rating with nothing shown to be a no-op, but got %v", err)
		}
	})

	t.Run("invalid rating is rejected even with nothing shown", func(t *testing.T) {
		for _, f := range []*fixture{newFixture(t), newFixture(t, [2]string{"a", "1"})} {
			err := f.sess.Rate(leitner.Rating(99))
			if !errors.Is(err, domain.ErrValidation) || !errors.Is(err, leitner.ErrInvalidRating) {
				t.Errorf("Expected ErrInvalidRating, but got %v", err)
			}
		}
	})

	t.Run("keeps the shuffled order", func(t *testing.T) {
		pairs := make([][2]string, 0, 6)
		for i := 0; i < 6; i++ {
			pairs = append(pairs, [2]string{fmt.Sprintf("f%d", i), fmt.Sprintf("b%d", i)})
		}
		f := newFixture(t, pairs...)
		f.sess.Shuffle()
		shuffled := f.workingIDs()

		if err := f.sess.Rate(leitner.Good); err != nil {
			t.Fatalf("Rate() returned an unexpected error: %v", err)
		}
		if diff := cmp.Diff(shuffled, f.workingIDs()); diff != "" {
			t.Errorf("Rating lost the shuffled order (-want +got):\n%s", diff)
		}
		if c, _ := f.sess.Current(); c.ID != shuffled[1] {
			t.Errorf("Expected the next shuffled card %s, but got %s", shuffled[1], c.ID)
		}

		added, _ := f.store.CreateCard(f.deck, "new", "card")
		if got := f.workingIDs(); got[len(got)-1] != added {
			t.Errorf("Expected a new card at the end, but got %v", got)
		}

		f.sess.SetActiveDeck(f.deck)
		if diff := cmp.Diff(append(slices.Clone(f.cards), added), f.workingIDs()); diff != "" {
			t.Errorf("Expected stored order after reselecting the deck (-want +got):\n%s", diff)
		}
	})
}

func TestSetActiveDeckResetsState(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"}, [2]string{"b", "2"})
	other, _ := f.store.CreateDeck("Other")
	f.store.CreateCard(other, "x", "y")

	if err := f.sess.SetActiveDeck(f.deck); err != nil {
		t.Fatalf("SetActiveDeck() returned an unexpected error: %v", err)
	}
	f.sess.Advance(Forward)
	f.sess.SetSearchQuery("b")

	if err := f.sess.SetActiveDeck(other); err != nil {
		t.Fatalf("SetActiveDeck() returned an unexpected error: %v", err)
	}
	if f.sess.Index() != 0 || f.sess.Query() != "" {
		t.Errorf("Expected index and query to reset, but got %d and %q", f.sess.Index(), f.sess.Query())
	}
	if got := f.workingIDs(); len(got) != 1 {
		t.Errorf("Expected the other deck's single card, but got %v", got)
	}
}

func TestStateTransitions(t *testing.T) {
	f := newFixture(t, [2]string{"a", "1"})
	if f.sess.State() != DeckSelected {
		t.Errorf("Expected %s after creating a deck, but got %s", DeckSelected, f.sess.State())
	}

	f.sess.SetSearchQuery("a")
	f.store.DeleteDeck(f.deck)
	if f.sess.State() != NoDeckSelected {
		t.Errorf("Expected %s after deleting the active deck, but got %s", NoDeckSelected, f.sess.State())
	}
	if len(f.sess.WorkingSet()) != 0 || f.sess.Query() != "" {
		t.Errorf("Expected an empty, unfiltered session")
	}
}
