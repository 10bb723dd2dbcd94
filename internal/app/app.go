// Package app is the single entry point renderers use. Every operation runs
// to completion under one lock, so the Store and Session observe the same
// single-threaded model no matter how many HTTP requests or terminal events
// arrive concurrently. Only generation adapters run outside the lock.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/generate"
	"github.com/conorfennell/knoldeck/internal/importer"
	"github.com/conorfennell/knoldeck/internal/leitner"
	"github.com/conorfennell/knoldeck/internal/session"
	"github.com/conorfennell/knoldeck/internal/storage"
	"github.com/conorfennell/knoldeck/internal/store"
)

// App owns the Store and Session for the lifetime of the process.
type App struct {
	mu      sync.Mutex
	store   *store.Store
	session *session.Session
	guard   *importer.Guard
	logger  *slog.Logger
}

// Options configures Open.
type Options struct {
	Logger         *slog.Logger
	PersistTimeout time.Duration
	Rand           *rand.Rand
	StoreOptions   []store.Option
}

// Open restores state from backend and wires persistence so that every
// mutation is followed by a working-set recomputation and a save.
func Open(ctx context.Context, backend storage.Backend, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := storage.Load(ctx, backend, logger)
	if err != nil {
		return nil, err
	}

	st := store.New(opts.StoreOptions...)
	st.Restore(doc)
	sess := session.New(st, opts.Rand)
	st.Subscribe(storage.NewPersister(backend, st.Snapshot, opts.PersistTimeout, logger))

	logger.Debug("State restored", "decks", len(st.Decks()), "active_deck_id", st.ActiveDeckID())
	return &App{store: st, session: sess, guard: importer.NewGuard(), logger: logger}, nil
}

// DeckSummary describes one deck for a deck list.
type DeckSummary struct {
	domain.Deck
	Cards  int  `json:"cards"`
	Due    int  `json:"due"`
	Active bool `json:"active"`
}

// Empty reasons reported by View when no card is shown.
const (
	EmptyNoDeck    = "no_deck"
	EmptyDeck      = "empty_deck"
	EmptyCaughtUp  = "caught_up"
	EmptyNoMatches = "no_matches"
)

// View is everything a renderer needs to draw the study screen.
type View struct {
	State  string       `json:"state"`
	Deck   *domain.Deck `json:"deck,omitempty"`
	Card   *domain.Card `json:"card,omitempty"`
	Index  int          `json:"index"`
	Total  int          `json:"total"`
	Filter string       `json:"filter"`
	Query  string       `json:"query,omitempty"`
	Empty  string       `json:"empty,omitempty"`
}

// Decks lists every deck with its card and due counts.
func (a *App) Decks() []DeckSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.store.Now()
	decks := a.store.Decks()
	out := make([]DeckSummary, 0, len(decks))
	for _, d := range decks {
		cards := a.store.Cards(d.ID)
		due := 0
		for _, c := range cards {
			if c.IsDue(now) {
				due++
			}
		}
		out = append(out, DeckSummary{Deck: d, Cards: len(cards), Due: due, Active: d.ID == a.store.ActiveDeckID()})
	}
	return out
}

// Cards returns copies of a deck's cards in stored order.
func (a *App) Cards(deckID string) ([]domain.Card, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.store.Deck(deckID); !ok {
		return nil, notFound("deck", deckID)
	}
	cards := a.store.Cards(deckID)
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, *copyCard(c))
	}
	return out, nil
}

// View describes the current study screen.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view()
}

func (a *App) view() View {
	v := View{
		State:  a.session.State().String(),
		Filter: a.session.Filter().String(),
		Query:  a.session.Query(),
		Total:  len(a.session.WorkingSet()),
		Index:  a.session.Index(),
	}

	deck, ok := a.store.Deck(a.store.ActiveDeckID())
	if !ok {
		v.Empty = EmptyNoDeck
		return v
	}
	v.Deck = &deck

	if card, ok := a.session.Current(); ok {
		v.Card = copyCard(card)
		return v
	}
	switch {
	case len(a.store.Cards(deck.ID)) == 0:
		v.Empty = EmptyDeck
	case a.session.Filter() == session.FilterDue:
		v.Empty = EmptyCaughtUp
	default:
		v.Empty = EmptyNoMatches
	}
	return v
}

// CreateDeck creates and activates a deck.
func (a *App) CreateDeck(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.CreateDeck(name)
}

// RenameDeck renames a deck.
func (a *App) RenameDeck(id, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.RenameDeck(id, name)
}

// DeleteDeck removes a deck and its cards.
func (a *App) DeleteDeck(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.DeleteDeck(id)
}

// SelectDeck makes id the active deck and resets the session.
func (a *App) SelectDeck(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.SetActiveDeck(id)
}

// CreateCard adds a card; an empty deckID means the active deck.
func (a *App) CreateCard(deckID, front, back string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.CreateCard(deckID, front, back)
}

// UpdateCard edits a card's text.
func (a *App) UpdateCard(deckID, cardID, front, back string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.UpdateCard(deckID, cardID, front, back)
}

// DeleteCard removes a card.
func (a *App) DeleteCard(deckID, cardID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.DeleteCard(deckID, cardID)
}

// Search sets the free-text filter and returns the new view.
func (a *App) Search(query string) View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.SetSearchQuery(query)
	return a.view()
}

// SetDueFilter turns the due filter on or off and returns the new view.
func (a *App) SetDueFilter(active bool) View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.SetDueFilterActive(active)
	return a.view()
}

// ToggleDueFilter flips the due filter and returns the new view.
func (a *App) ToggleDueFilter() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.ToggleDueFilter()
	return a.view()
}

// Next shows the following card, wrapping around.
func (a *App) Next() View {
	return a.step(session.Forward)
}

// Prev shows the preceding card, wrapping around.
func (a *App) Prev() View {
	return a.step(session.Backward)
}

func (a *App) step(d session.Direction) View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Advance(d)
	return a.view()
}

// Shuffle randomises the working set order.
func (a *App) Shuffle() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Shuffle()
	return a.view()
}

// Refresh recomputes the working set, e.g. after time has passed and more
// cards have become due.
func (a *App) Refresh() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Recompute()
	return a.view()
}

// Rate schedules the displayed card and moves on.
func (a *App) Rate(r leitner.Rating) (View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.session.Rate(r)
	return a.view(), err
}

// Generate runs src and imports its pairs into a new deck. Only one
// generation per trigger may be in flight; the adapter runs without holding
// the App lock so every other operation stays available meanwhile.
func (a *App) Generate(ctx context.Context, trigger string, src generate.Source) (importer.Result, error) {
	release, err := a.guard.Acquire(trigger)
	if err != nil {
		return importer.Result{DeckName: src.DeckName()}, err
	}
	defer release()

	a.logger.Info("Generating deck", "trigger", trigger, "deck", src.DeckName())
	pairs, genErr := src.Generate(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	res, err := importer.Apply(a.store, src.DeckName(), pairs, genErr)
	if err != nil {
		a.logger.Warn("Generation finished with errors", "trigger", trigger, "created", res.Created, "error", err)
	} else {
		a.logger.Info("Generation complete", "trigger", trigger, "deck_id", res.DeckID, "created", res.Created,
			"skipped_empty", res.Empty, "skipped_duplicate", res.Duplicate)
	}
	return res, err
}

// Snapshot returns a deep copy of the persisted document.
func (a *App) Snapshot() domain.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Snapshot()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

func copyCard(c *domain.Card) *domain.Card {
	copied := *c
	if c.NextReview != nil {
		due := *c.NextReview
		copied.NextReview = &due
	}
	return &copied
}
