// Package store owns the deck and card entity graph. Every mutation either
// succeeds completely and emits one Event, or fails without changing state.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/leitner"
)

// Store holds decks, the cards each deck owns and the active deck id.
// It is not safe for concurrent use; callers serialise access.
type Store struct {
	scheduler *leitner.Scheduler
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string

	decks        []domain.Deck
	cards        map[string][]*domain.Card
	activeDeckID string
	observers    []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithScheduler replaces the default Leitner interval table.
func WithScheduler(scheduler *leitner.Scheduler) Option {
	return func(s *Store) { s.scheduler = scheduler }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		scheduler: leitner.DefaultScheduler(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		newID:     uuid.NewString,
		cards:     make(map[string][]*domain.Card),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type deckInput struct {
	Name string `validate:"required"`
}

type cardInput struct {
	Front string `validate:"required"`
	Back  string `validate:"required"`
}

// Subscribe registers o for every future Event.
func (s *Store) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// Now returns the Store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Scheduler returns the interval table used by RateCard.
func (s *Store) Scheduler() *leitner.Scheduler {
	return s.scheduler
}

// Decks returns the decks in creation order.
func (s *Store) Decks() []domain.Deck {
	return slices.Clone(s.decks)
}

// Deck looks up a deck by id.
func (s *Store) Deck(id string) (domain.Deck, bool) {
	if i := s.deckIndex(id); i >= 0 {
		return s.decks[i], true
	}
	return domain.Deck{}, false
}

// Cards returns the deck's cards in insertion order. The slice is a copy;
// the cards are the Store's own and must be treated as read-only.
func (s *Store) Cards(deckID string) []*domain.Card {
	return slices.Clone(s.cards[deckID])
}

// Card looks up a card inside a deck.
func (s *Store) Card(deckID, cardID string) (*domain.Card, bool) {
	if i := s.cardIndex(deckID, cardID); i >= 0 {
		return s.cards[deckID][i], true
	}
	return nil, false
}

// ActiveDeckID returns the active deck, or "" when none is selected.
func (s *Store) ActiveDeckID() string {
	return s.activeDeckID
}

// SetActiveDeck makes id the active deck.
func (s *Store) SetActiveDeck(id string) error {
	if s.deckIndex(id) < 0 {
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	s.activeDeckID = id
	return s.emit(Event{Kind: DeckActivated, DeckID: id})
}

// CreateDeck adds an empty deck, makes it active and returns its id.
func (s *Store) CreateDeck(name string) (string, error) {
	in := deckInput{Name: strings.TrimSpace(name)}
	if err := s.check(in); err != nil {
		return "", err
	}

	id := s.newID()
	s.decks = append(s.decks, domain.Deck{ID: id, Name: in.Name, CreatedAt: s.now()})
	s.cards[id] = []*domain.Card{}
	s.activeDeckID = id

	err := s.emit(Event{Kind: DeckCreated, DeckID: id})
	return id, err
}

// RenameDeck changes a deck's name.
func (s *Store) RenameDeck(id, name string) error {
	in := deckInput{Name: strings.TrimSpace(name)}
	if err := s.check(in); err != nil {
		return err
	}
	i := s.deckIndex(id)
	if i < 0 {
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	s.decks[i].Name = in.Name
	return s.emit(Event{Kind: DeckRenamed, DeckID: id})
}

// DeleteDeck removes a deck and every card it owns. Unknown ids are ignored.
// Deleting the active deck leaves no deck active.
func (s *Store) DeleteDeck(id string) error {
	i := s.deckIndex(id)
	if i < 0 {
		return nil
	}
	s.decks = slices.Delete(s.decks, i, i+1)
	delete(s.cards, id)
	if s.activeDeckID == id {
		s.activeDeckID = ""
	}
	return s.emit(Event{Kind: DeckDeleted, DeckID: id})
}

// CreateCard appends a new, never reviewed card. An empty deckID means the
// active deck.
func (s *Store) CreateCard(deckID, front, back string) (string, error) {
	deckID, err := s.resolveDeck(deckID)
	if err != nil {
		return "", err
	}
	in := cardInput{Front: strings.TrimSpace(front), Back: strings.TrimSpace(back)}
	if err := s.check(in); err != nil {
		return "", err
	}

	card := &domain.Card{
		ID:        s.newID(),
		Front:     in.Front,
		Back:      in.Back,
		Box:       0,
		UpdatedAt: s.now(),
	}
	s.cards[deckID] = append(s.cards[deckID], card)

	err = s.emit(Event{Kind: CardCreated, DeckID: deckID, CardID: card.ID})
	return card.ID, err
}

// UpdateCard overwrites a card's text in place. Scheduling state is kept.
func (s *Store) UpdateCard(deckID, cardID, front, back string) error {
	deckID, err := s.resolveDeck(deckID)
	if err != nil {
		return err
	}
	in := cardInput{Front: strings.TrimSpace(front), Back: strings.TrimSpace(back)}
	if err := s.check(in); err != nil {
		return err
	}
	card, ok := s.Card(deckID, cardID)
	if !ok {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}

	card.Front = in.Front
	card.Back = in.Back
	card.UpdatedAt = s.now()
	return s.emit(Event{Kind: CardUpdated, DeckID: deckID, CardID: cardID})
}

// DeleteCard removes a card. Unknown ids are ignored.
func (s *Store) DeleteCard(deckID, cardID string) error {
	i := s.cardIndex(deckID, cardID)
	if i < 0 {
		return nil
	}
	s.cards[deckID] = slices.Delete(s.cards[deckID], i, i+1)
	return s.emit(Event{Kind: CardDeleted, DeckID: deckID, CardID: cardID})
}

// RateCard runs the scheduler for a card and stores the new box and due time.
func (s *Store) RateCard(deckID, cardID string, rating leitner.Rating) error {
	if !rating.IsValid() {
		return fmt.Errorf("%w: %w", domain.ErrValidation, leitner.ErrInvalidRating)
	}
	card, ok := s.Card(deckID, cardID)
	if !ok {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}

	box, due, err := s.scheduler.ComputeReview(card.Box, rating, s.now())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	card.Box = box
	card.NextReview = &due
	return s.emit(Event{Kind: CardRated, DeckID: deckID, CardID: cardID})
}

// Snapshot returns a deep copy of the persisted state.
func (s *Store) Snapshot() domain.Document {
	doc := domain.Document{
		Decks:         slices.Clone(s.decks),
		CardsByDeckID: make(map[string][]*domain.Card, len(s.cards)),
	}
	if doc.Decks == nil {
		doc.Decks = []domain.Deck{}
	}
	for id, cards := range s.cards {
		copied := make([]*domain.Card, 0, len(cards))
		for _, c := range cards {
			copied = append(copied, copyCard(c))
		}
		doc.CardsByDeckID[id] = copied
	}
	if s.activeDeckID != "" {
		active := s.activeDeckID
		doc.LastActiveDeckID = &active
	}
	return doc
}

// Restore replaces the whole state with doc. Entries that would break the
// Store's invariants are dropped or repaired rather than rejected. No Event
// is emitted.
func (s *Store) Restore(doc domain.Document) {
	s.decks = nil
	s.cards = make(map[string][]*domain.Card)
	s.activeDeckID = ""

	for _, d := range doc.Decks {
		if d.ID == "" || s.deckIndex(d.ID) >= 0 {
			continue
		}
		s.decks = append(s.decks, d)
		s.cards[d.ID] = []*domain.Card{}
	}
	for deckID, cards := range doc.CardsByDeckID {
		if _, ok := s.cards[deckID]; !ok {
			continue
		}
		for _, c := range cards {
			if c == nil || c.ID == "" {
				continue
			}
			restored := copyCard(c)
			restored.Box = s.scheduler.ClampBox(restored.Box)
			s.cards[deckID] = append(s.cards[deckID], restored)
		}
	}
	if doc.LastActiveDeckID != nil && s.deckIndex(*doc.LastActiveDeckID) >= 0 {
		s.activeDeckID = *doc.LastActiveDeckID
	}
}

func (s *Store) resolveDeck(deckID string) (string, error) {
	if deckID == "" {
		deckID = s.activeDeckID
	}
	if deckID == "" {
		return "", fmt.Errorf("%w: no deck selected", domain.ErrValidation)
	}
	if s.deckIndex(deckID) < 0 {
		return "", fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	return deckID, nil
}

func (s *Store) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return fmt.Errorf("%w: %s must not be empty", domain.ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

func (s *Store) emit(ev Event) error {
	var errs []error
	for _, o := range s.observers {
		if err := o.Notify(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) deckIndex(id string) int {
	return slices.IndexFunc(s.decks, func(d domain.Deck) bool { return d.ID == id })
}

func (s *Store) cardIndex(deckID, cardID string) int {
	return slices.IndexFunc(s.cards[deckID], func(c *domain.Card) bool { return c.ID == cardID })
}

func copyCard(c *domain.Card) *domain.Card {
	copied := *c
	if c.NextReview != nil {
		due := *c.NextReview
		copied.NextReview = &due
	}
	return &copied
}
