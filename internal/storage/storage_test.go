package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDocument() domain.Document {
	created := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	due := created.Add(72 * time.Hour)
	active := "d1"
	return domain.Document{
		Decks: []domain.Deck{{ID: "d1", Name: "Math", CreatedAt: created}},
		CardsByDeckID: map[string][]*domain.Card{
			"d1": {
				{ID: "c1", Front: "2+2", Back: "4", Box: 1, NextReview: &due, UpdatedAt: created},
				{ID: "c2", Front: "3+3", Back: "6", UpdatedAt: created},
			},
		},
		LastActiveDeckID: &active,
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "empty input", input: ""},
		{name: "minimal document", input: `{"decks": [], "cardsByDeckId": {}, "lastActiveDeckId": null}`},
		{name: "missing card map", input: `{"decks": []}`},
		{name: "decks is an object", input: `{"decks": {"a": 1}}`, wantErr: true},
		{name: "decks is missing", input: `{"cardsByDeckId": {}}`, wantErr: true},
		{name: "decks is null", input: `{"decks": null}`, wantErr: true},
		{name: "not json", input: `decks: []`, wantErr: true},
		{name: "bad card field", input: `{"decks": [], "cardsByDeckId": {"d": [{"box": "x"}]}}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Decode([]byte(tc.input))
			if tc.wantErr {
				if !errors.Is(err, ErrCorruptDocument) {
					t.Errorf("Expected ErrCorruptDocument, but got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Decode() returned an unexpected error: %v", err)
			}
			if doc.Decks == nil || doc.CardsByDeckID == nil {
				t.Errorf("Expected a usable document even on failure")
			}
		})
	}
}

func TestBackendsRoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		KindSQLite: func(t *testing.T) Backend {
			b, err := Open(KindSQLite, filepath.Join(t.TempDir(), "state.db"))
			if err != nil {
				t.Fatalf("Open() returned an unexpected error: %v", err)
			}
			return b
		},
		KindBolt: func(t *testing.T) Backend {
			b, err := Open(KindBolt, filepath.Join(t.TempDir(), "nested", "state.bolt"))
			if err != nil {
				t.Fatalf("Open() returned an unexpected error: %v", err)
			}
			return b
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			defer b.Close()
			ctx := context.Background()

			doc, err := Load(ctx, b, discardLogger())
			if err != nil {
				t.Fatalf("Load() returned an unexpected error: %v", err)
			}
			if diff := cmp.Diff(EmptyDocument(), doc); diff != "" {
				t.Errorf("Expected an empty document before the first save (-want +got):\n%s", diff)
			}

			for i := 0; i < 2; i++ {
				data, err := Encode(sampleDocument())
				if err != nil {
					t.Fatalf("Encode() returned an unexpected error: %v", err)
				}
				if err := b.Save(ctx, data); err != nil {
					t.Fatalf("Save() returned an unexpected error: %v", err)
				}
			}

			doc, err = Load(ctx, b, discardLogger())
			if err != nil {
				t.Fatalf("Load() returned an unexpected error: %v", err)
			}
			if diff := cmp.Diff(sampleDocument(), doc); diff != "" {
				t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x"); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}

type memoryBackend struct {
	data    []byte
	saveErr error
}

func (m *memoryBackend) Load(context.Context) ([]byte, error) { return m.data, nil }
func (m *memoryBackend) Close() error                         { return nil }
func (m *memoryBackend) Save(_ context.Context, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	return nil
}

func TestLoadIgnoresCorruptDocument(t *testing.T) {
	b := &memoryBackend{data: []byte(`{"decks": "oops"}`)}
	doc, err := Load(context.Background(), b, discardLogger())
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if len(doc.Decks) != 0 {
		t.Errorf("Expected an empty document, but got %d decks", len(doc.Decks))
	}
}

func TestPersister(t *testing.T) {
	t.Run("saves a snapshot on every event", func(t *testing.T) {
		b := &memoryBackend{}
		st := store.New()
		st.Subscribe(NewPersister(b, st.Snapshot, time.Second, discardLogger()))

		if _, err := st.CreateDeck("Math"); err != nil {
			t.Fatalf("CreateDeck() returned an unexpected error: %v", err)
		}
		doc, err := Decode(b.data)
		if err != nil {
			t.Fatalf("Decode() returned an unexpected error: %v", err)
		}
		if len(doc.Decks) != 1 || doc.Decks[0].Name != "Math" {
			t.Errorf("Expected the saved document to hold the new deck, but got %+v", doc.Decks)
		}
	})

	t.Run("write failure keeps memory state", func(t *testing.T) {
		b := &memoryBackend{saveErr: errors.New("quota exceeded")}
		st := store.New()
		st.Subscribe(NewPersister(b, st.Snapshot, 0, discardLogger()))

		id, err := st.CreateDeck("Math")
		if !errors.Is(err, domain.ErrPersistence) {
			t.Fatalf("Expected ErrPersistence, but got %v", err)
		}
		if _, ok := st.Deck(id); !ok {
			t.Errorf("Expected the deck to stay in memory")
		}
		if _, err := st.CreateCard(id, "q", "a"); !errors.Is(err, domain.ErrPersistence) {
			t.Errorf("Expected the store to remain usable, but got %v", err)
		}
		if len(st.Cards(id)) != 1 {
			t.Errorf("Expected the card to stay in memory")
		}
	})
}
