package domain

import "time"

// Deck is a named collection of cards. Only its name ever changes.
type Deck struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Card is a single front/back entry together with its Leitner scheduling
// state. NextReview is nil until the card has been rated at least once.
type Card struct {
	ID         string     `json:"id"`
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	Box        int        `json:"box"`
	NextReview *time.Time `json:"nextReview"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsDue reports whether the card should be shown by the due filter at now.
// A card that has never been reviewed is always due.
func (c *Card) IsDue(now time.Time) bool {
	return c.NextReview == nil || !c.NextReview.After(now)
}

// Pair is a candidate card produced by a generation source.
type Pair struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Document is the persisted state layout.
type Document struct {
	Decks            []Deck             `json:"decks"`
	CardsByDeckID    map[string][]*Card `json:"cardsByDeckId"`
	LastActiveDeckID *string            `json:"lastActiveDeckId"`
}
