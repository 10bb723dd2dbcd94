package store

import "fmt"

// EventKind identifies which mutation produced an Event.
type EventKind int

const (
	DeckCreated EventKind = iota + 1
	DeckRenamed
	DeckDeleted
	DeckActivated
	CardCreated
	CardUpdated
	CardDeleted
	CardRated
)

var eventNames = map[EventKind]string{
	DeckCreated:   "deck_created",
	DeckRenamed:   "deck_renamed",
	DeckDeleted:   "deck_deleted",
	DeckActivated: "deck_activated",
	CardCreated:   "card_created",
	CardUpdated:   "card_updated",
	CardDeleted:   "card_deleted",
	CardRated:     "card_rated",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is emitted after every successful mutation, once the Store is
// already in its new state. CardID is empty for deck-level events.
type Event struct {
	Kind   EventKind
	DeckID string
	CardID string
}

// Observer receives every Event synchronously, in subscription order.
type Observer interface {
	Notify(Event) error
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(Event) error

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) error {
	return f(ev)
}
