package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/conorfennell/knoldeck/internal/app"
)

type memoryBackend struct{ data []byte }

func (m *memoryBackend) Load(context.Context) ([]byte, error) { return m.data, nil }

func (m *memoryBackend) Save(_ context.Context, data []byte) error {
	m.data = data
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func newTestModel(t *testing.T) (*Model, *app.App) {
	t.Helper()
	a, err := app.Open(context.Background(), &memoryBackend{}, app.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("app.Open() returned an unexpected error: %v", err)
	}
	deck, _ := a.CreateDeck("Capitals")
	a.CreateCard(deck, "France", "Paris")
	a.CreateCard(deck, "Spain", "Madrid")
	return NewModel(a), a
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestFlipAndNavigate(t *testing.T) {
	m, _ := newTestModel(t)

	if out := m.View(); !strings.Contains(out, "France") || !strings.Contains(out, "1/2") {
		t.Fatalf("Expected the first card, but got:\n%s", out)
	}

	press(m, "space")
	if out := m.View(); !strings.Contains(out, "Paris") {
		t.Errorf("Expected the back after flipping, but got:\n%s", out)
	}

	press(m, "right")
	out := m.View()
	if !strings.Contains(out, "Spain") || strings.Contains(out, "Madrid") {
		t.Errorf("Expected the front of the second card, but got:\n%s", out)
	}

	press(m, "right")
	if out := m.View(); !strings.Contains(out, "France") {
		t.Errorf("Expected navigation to wrap, but got:\n%s", out)
	}
}

func TestRateWithDueFilter(t *testing.T) {
	m, a := newTestModel(t)

	press(m, "d", "2")
	if m.view.Total != 1 || m.view.Card == nil || m.view.Card.Front != "Spain" {
		t.Errorf("Expected Spain to remain due, but got %+v", m.view)
	}
	if !strings.Contains(m.View(), "Rated good") {
		t.Errorf("Expected a status line")
	}

	press(m, "3")
	if out := m.View(); !strings.Contains(out, "All caught up") {
		t.Errorf("Expected the caught-up message, but got:\n%s", out)
	}
	if decks := a.Decks(); decks[0].Due != 0 {
		t.Errorf("Expected no due cards, but got %d", decks[0].Due)
	}
}

func TestSearch(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "/", "m", "a", "d")
	if m.view.Total != 1 || m.view.Card.Front != "Spain" {
		t.Errorf("Expected search to match Madrid, but got %+v", m.view)
	}

	press(m, "enter")
	if m.mode != modeStudy || m.view.Query != "mad" {
		t.Errorf("Expected the query to be kept, but got mode %d query %q", m.mode, m.view.Query)
	}

	press(m, "/", "esc")
	if m.view.Total != 2 || m.view.Filter != "none" {
		t.Errorf("Expected esc to clear the search, but got %+v", m.view)
	}
}

func TestDeckPicker(t *testing.T) {
	m, a := newTestModel(t)
	other, _ := a.CreateDeck("Rivers")
	a.CreateCard(other, "Longest", "Nile")
	first := a.Decks()[0].ID
	a.SelectDeck(first)
	m.show(a.View())

	press(m, "tab")
	if out := m.View(); !strings.Contains(out, "Rivers") || !strings.Contains(out, "2 due / 2") {
		t.Errorf("Expected the deck list, but got:\n%s", out)
	}

	press(m, "down", "enter")
	if m.mode != modeStudy || m.view.Deck == nil || m.view.Deck.Name != "Rivers" {
		t.Errorf("Expected Rivers to be selected, but got %+v", m.view.Deck)
	}
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		in    string
		width int
		want  string
	}{
		{"Capitals", 20, "Capitals"},
		{"Capitals of Europe", 10, "Capitals …"},
		{"日本の首都", 6, "日本…"},
		{"anything", 1, ""},
	}
	for _, tc := range testCases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("Expected %q for %q at %d, but got %q", tc.want, tc.in, tc.width, got)
		}
	}
}
