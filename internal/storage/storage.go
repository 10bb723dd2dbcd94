// Package storage persists the state document to a key-value backend.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/store"
)

// DocumentKey is the key the state document is stored under.
const DocumentKey = "knoldeck_state"

// Backend kinds accepted by Open.
const (
	KindSQLite = "sqlite"
	KindBolt   = "bolt"
)

// ErrCorruptDocument is returned by Decode for documents that cannot be used.
var ErrCorruptDocument = errors.New("corrupt state document")

// Backend stores one opaque document.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Open opens a backend of the given kind at path.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case KindSQLite:
		return OpenSQLite(path)
	case KindBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// EmptyDocument is the state of a fresh install.
func EmptyDocument() domain.Document {
	return domain.Document{
		Decks:         []domain.Deck{},
		CardsByDeckID: map[string][]*domain.Card{},
	}
}

// Encode serialises doc.
func Encode(doc domain.Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Decode parses a stored document. A document whose "decks" field is not an
// array is corrupt.
func Decode(data []byte) (domain.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyDocument(), nil
	}

	var probe struct {
		Decks json.RawMessage `json:"decks"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return EmptyDocument(), fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if decks := bytes.TrimSpace(probe.Decks); len(decks) == 0 || decks[0] != '[' {
		return EmptyDocument(), fmt.Errorf("%w: decks is not a list", ErrCorruptDocument)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return EmptyDocument(), fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if doc.CardsByDeckID == nil {
		doc.CardsByDeckID = map[string][]*domain.Card{}
	}
	return doc, nil
}

// Load reads and decodes the document. Corrupt documents are logged and
// replaced by an empty one; only backend read failures are returned.
func Load(ctx context.Context, b Backend, logger *slog.Logger) (domain.Document, error) {
	data, err := b.Load(ctx)
	if err != nil {
		return EmptyDocument(), err
	}
	doc, err := Decode(data)
	if err != nil {
		logger.Warn("Ignoring stored state", "error", err)
		return EmptyDocument(), nil
	}
	return doc, nil
}

// Persister writes the full document after every Store event.
type Persister struct {
	backend  Backend
	snapshot func() domain.Document
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPersister returns a Persister saving snapshot() to b.
func NewPersister(b Backend, snapshot func() domain.Document, timeout time.Duration, logger *slog.Logger) *Persister {
	return &Persister{backend: b, snapshot: snapshot, timeout: timeout, logger: logger}
}

// Notify implements store.Observer.
func (p *Persister) Notify(ev store.Event) error {
	if err := p.Save(); err != nil {
		p.logger.Error("Failed to persist state", "event", ev.Kind, "deck_id", ev.DeckID, "error", err)
		return err
	}
	return nil
}

// Save writes the current snapshot. Failures are wrapped in
// domain.ErrPersistence.
func (p *Persister) Save() error {
	data, err := Encode(p.snapshot())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.backend.Save(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}
