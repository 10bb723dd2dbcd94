// Package tui provides the Bubble Tea study interface.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/conorfennell/knoldeck/internal/app"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/leitner"
)

type mode int

const (
	modeStudy mode = iota
	modeSearch
	modeDecks
)

// Model implements the Bubble Tea study UI.
type Model struct {
	app *app.App

	mode    mode
	view    app.View
	flipped bool
	search  textinput.Model

	decks      []app.DeckSummary
	deckCursor int

	status    string
	statusErr bool

	width  int
	height int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E")).Padding(1, 3)
	backStyle   = cardStyle.BorderForeground(lipgloss.Color("#3A9AC8"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
)

var emptyText = map[string]string{
	app.EmptyNoDeck:    "No deck selected. Press tab to pick one.",
	app.EmptyDeck:      "This deck has no cards yet.",
	app.EmptyCaughtUp:  "All caught up! Nothing is due.",
	app.EmptyNoMatches: "No cards match your search.",
}

// NewModel constructs a study model over a.
func NewModel(a *app.App) *Model {
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "search"
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)

	m := &Model{app: a, search: input}
	m.view = a.View()
	m.decks = a.Decks()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeDecks:
			return m.updateDecks(msg)
		default:
			return m.updateStudy(msg)
		}
	default:
		if m.mode == modeSearch {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m *Model) updateStudy(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case " ", "enter":
		if m.view.Card != nil {
			m.flipped = !m.flipped
		}
	case "right", "l", "n":
		m.show(m.app.Next())
	case "left", "h", "p":
		m.show(m.app.Prev())
	case "1":
		m.rate(leitner.Again)
	case "2":
		m.rate(leitner.Good)
	case "3":
		m.rate(leitner.Easy)
	case "d":
		m.show(m.app.ToggleDueFilter())
	case "s":
		m.show(m.app.Shuffle())
	case "r":
		m.show(m.app.Refresh())
		m.decks = m.app.Decks()
	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.view.Query)
		return m, m.search.Focus()
	case "tab":
		m.openDecks()
	}
	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeStudy
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = modeStudy
		m.search.Blur()
		m.search.SetValue("")
		m.show(m.app.Search(""))
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.show(m.app.Search(m.search.Value()))
	return m, cmd
}

func (m *Model) updateDecks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "tab":
		m.mode = modeStudy
	case "up", "k":
		if m.deckCursor > 0 {
			m.deckCursor--
		}
	case "down", "j":
		if m.deckCursor < len(m.decks)-1 {
			m.deckCursor++
		}
	case "enter", " ":
		if len(m.decks) == 0 {
			return m, nil
		}
		err := m.app.SelectDeck(m.decks[m.deckCursor].ID)
		m.setStatus(err, "")
		m.mode = modeStudy
		m.show(m.app.View())
		m.decks = m.app.Decks()
	}
	return m, nil
}

func (m *Model) openDecks() {
	m.decks = m.app.Decks()
	m.deckCursor = 0
	for i, d := range m.decks {
		if d.Active {
			m.deckCursor = i
		}
	}
	m.mode = modeDecks
}

func (m *Model) rate(r leitner.Rating) {
	if m.view.Card == nil {
		return
	}
	v, err := m.app.Rate(r)
	m.show(v)
	m.decks = m.app.Decks()
	m.setStatus(err, "Rated "+r.String())
}

func (m *Model) show(v app.View) {
	m.view = v
	m.flipped = false
}

func (m *Model) setStatus(err error, ok string) {
	switch {
	case err == nil:
		m.status, m.statusErr = ok, false
	case errors.Is(err, domain.ErrPersistence):
		m.status, m.statusErr = "Not saved: "+err.Error(), true
	default:
		m.status, m.statusErr = err.Error(), true
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	contentWidth := max(20, width*70/100)

	var body string
	if m.mode == modeDecks {
		body = m.renderDecks(contentWidth)
	} else {
		body = m.renderStudy(contentWidth)
	}

	parts := []string{m.renderHeader(contentWidth), body}
	if m.mode == modeSearch {
		parts = append(parts, m.search.View())
	}
	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errorStyle
		}
		parts = append(parts, style.Render(truncate(m.status, contentWidth)))
	}
	parts = append(parts, footerStyle.Render(m.renderFooter()))
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderHeader(width int) string {
	name := "knoldeck"
	if m.view.Deck != nil {
		name = m.view.Deck.Name
	}
	var meta []string
	if m.view.Total > 0 {
		meta = append(meta, fmt.Sprintf("%d/%d", m.view.Index+1, m.view.Total))
	}
	switch m.view.Filter {
	case "due":
		meta = append(meta, "due only")
	case "text":
		meta = append(meta, fmt.Sprintf("search %q", m.view.Query))
	}
	suffix := ""
	if len(meta) > 0 {
		suffix = "  " + strings.Join(meta, " · ")
	}
	name = truncate(name, width-runewidth.StringWidth(suffix))
	return titleStyle.Render(name) + mutedStyle.Render(suffix)
}

func (m *Model) renderStudy(width int) string {
	card := m.view.Card
	if card == nil {
		return cardStyle.Width(width).Render(mutedStyle.Render(emptyText[m.view.Empty]))
	}
	if m.flipped {
		return backStyle.Width(width).Render(card.Back)
	}
	hint := mutedStyle.Render(fmt.Sprintf("box %d", card.Box+1))
	return cardStyle.Width(width).Render(card.Front + "\n\n" + hint)
}

func (m *Model) renderDecks(width int) string {
	if len(m.decks) == 0 {
		return cardStyle.Width(width).Render(mutedStyle.Render("No decks yet. Create one with `knoldeck deck create`."))
	}
	lines := make([]string, 0, len(m.decks))
	for i, d := range m.decks {
		counts := fmt.Sprintf("  %d due / %d", d.Due, d.Cards)
		line := truncate(d.Name, width-runewidth.StringWidth(counts)-2) + mutedStyle.Render(counts)
		if i == m.deckCursor {
			line = activeStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return cardStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	switch m.mode {
	case modeSearch:
		return "enter keep · esc clear"
	case modeDecks:
		return "↑/↓ move · enter select · esc back · q quit"
	default:
		return "space flip · ←/→ move · 1 again 2 good 3 easy · / search · d due · s shuffle · tab decks · q quit"
	}
}

// truncate shortens s to at most width terminal cells.
func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
