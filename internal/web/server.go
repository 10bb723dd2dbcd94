// Package web serves the study UI and a JSON API over app.App.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/conorfennell/knoldeck/internal/app"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/generate"
	"github.com/conorfennell/knoldeck/internal/leitner"
)

//go:embed all:static
var staticFiles embed.FS

// SourceFactory builds the generation source for a trigger.
type SourceFactory interface {
	New(trigger string, p generate.Params) (generate.Source, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	app             *app.App
	sources         SourceFactory
	generateTimeout time.Duration
	logger          *slog.Logger
	router          *http.ServeMux
}

// NewServer creates and configures a new server.
func NewServer(a *app.App, sources SourceFactory, generateTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:             a,
		sources:         sources,
		generateTimeout: generateTimeout,
		logger:          logger,
		router:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("GET /", http.FileServer(http.FS(staticFS)))

	s.router.HandleFunc("GET /api/decks", s.handleListDecks())
	s.router.HandleFunc("POST /api/decks", s.handleCreateDeck())
	s.router.HandleFunc("PATCH /api/decks/{deck}", s.handleRenameDeck())
	s.router.HandleFunc("DELETE /api/decks/{deck}", s.handleDeleteDeck())
	s.router.HandleFunc("POST /api/decks/{deck}/select", s.handleSelectDeck())

	s.router.HandleFunc("GET /api/decks/{deck}/cards", s.handleListCards())
	s.router.HandleFunc("POST /api/decks/{deck}/cards", s.handleCreateCard())
	s.router.HandleFunc("PUT /api/decks/{deck}/cards/{card}", s.handleUpdateCard())
	s.router.HandleFunc("DELETE /api/decks/{deck}/cards/{card}", s.handleDeleteCard())

	s.router.HandleFunc("GET /api/session", s.handleView(s.app.View))
	s.router.HandleFunc("POST /api/session/next", s.handleView(s.app.Next))
	s.router.HandleFunc("POST /api/session/prev", s.handleView(s.app.Prev))
	s.router.HandleFunc("POST /api/session/shuffle", s.handleView(s.app.Shuffle))
	s.router.HandleFunc("POST /api/session/refresh", s.handleView(s.app.Refresh))
	s.router.HandleFunc("POST /api/session/search", s.handleSearch())
	s.router.HandleFunc("POST /api/session/due", s.handleDueFilter())
	s.router.HandleFunc("POST /api/session/rate", s.handleRate())

	s.router.HandleFunc("POST /api/generate/{trigger}", s.handleGenerate())
	s.router.HandleFunc("GET /api/export", s.handleExport())
}

// response wraps a payload with the warning of a non-fatal persistence
// failure.
type response struct {
	Data    any    `json:"data,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

// reply writes data with status, or the error err maps to. Persistence
// failures still succeed, with a warning.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err == nil {
		s.writeJSON(w, status, response{Data: data})
		return
	}

	code := statusFor(err)
	if code == 0 {
		s.logger.Warn("Operation applied but not saved", "path", r.URL.Path, "error", err)
		s.writeJSON(w, status, response{Data: data, Warning: err.Error()})
		return
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps an error to an HTTP status, or 0 for errors that only
// carry a warning.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, leitner.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrPersistence):
		return 0
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(domain.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, r, http.StatusOK, s.app.Decks(), nil)
	}
}

type deckRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deckRequest
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		id, err := s.app.CreateDeck(req.Name)
		if id == "" {
			s.reply(w, r, 0, nil, err)
			return
		}
		s.reply(w, r, http.StatusCreated, map[string]string{"id": id}, err)
	}
}

func (s *Server) handleRenameDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deckRequest
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		err := s.app.RenameDeck(r.PathValue("deck"), req.Name)
		s.reply(w, r, http.StatusOK, nil, err)
	}
}

func (s *Server) handleDeleteDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.app.DeleteDeck(r.PathValue("deck"))
		s.reply(w, r, http.StatusOK, nil, err)
	}
}

func (s *Server) handleSelectDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.app.SelectDeck(r.PathValue("deck"))
		if err != nil && statusFor(err) != 0 {
			s.reply(w, r, 0, nil, err)
			return
		}
		s.reply(w, r, http.StatusOK, s.app.View(), err)
	}
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.app.Cards(r.PathValue("deck"))
		s.reply(w, r, http.StatusOK, cards, err)
	}
}

type cardRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cardRequest
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		id, err := s.app.CreateCard(r.PathValue("deck"), req.Front, req.Back)
		if id == "" {
			s.reply(w, r, 0, nil, err)
			return
		}
		s.reply(w, r, http.StatusCreated, map[string]string{"id": id}, err)
	}
}

func (s *Server) handleUpdateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cardRequest
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		err := s.app.UpdateCard(r.PathValue("deck"), r.PathValue("card"), req.Front, req.Back)
		s.reply(w, r, http.StatusOK, nil, err)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.app.DeleteCard(r.PathValue("deck"), r.PathValue("card"))
		s.reply(w, r, http.StatusOK, nil, err)
	}
}

// handleView serves session operations that cannot fail.
func (s *Server) handleView(op func() app.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.reply(w, r, http.StatusOK, op(), nil)
	}
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		s.reply(w, r, http.StatusOK, s.app.Search(req.Query), nil)
	}
}

// handleDueFilter sets the due filter, or toggles it when "active" is
// omitted.
func (s *Server) handleDueFilter() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Active *bool `json:"active"`
		}
		if r.ContentLength != 0 {
			if err := decode(r, &req); err != nil {
				s.reply(w, r, 0, nil, err)
				return
			}
		}
		if req.Active == nil {
			s.reply(w, r, http.StatusOK, s.app.ToggleDueFilter(), nil)
			return
		}
		s.reply(w, r, http.StatusOK, s.app.SetDueFilter(*req.Active), nil)
	}
}

func (s *Server) handleRate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Rating leitner.Rating `json:"rating"`
		}
		if err := decode(r, &req); err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}
		view, err := s.app.Rate(req.Rating)
		s.reply(w, r, http.StatusOK, view, err)
	}
}

// handleGenerate runs a generator and reports the import. Adapters may take
// a while; the request waits for them.
func (s *Server) handleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p generate.Params
		if r.ContentLength != 0 {
			if err := decode(r, &p); err != nil {
				s.reply(w, r, 0, nil, err)
				return
			}
		}
		trigger := r.PathValue("trigger")
		src, err := s.sources.New(trigger, p)
		if err != nil {
			s.reply(w, r, 0, nil, err)
			return
		}

		ctx := r.Context()
		if s.generateTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
			defer cancel()
		}

		res, err := s.app.Generate(ctx, trigger, src)
		if res.DeckID == "" {
			s.reply(w, r, 0, nil, err)
			return
		}
		// A partial import is a success; the adapter error becomes a warning.
		resp := response{Data: res}
		if err != nil {
			s.logger.Warn("Generation imported with errors", "trigger", trigger, "deck_id", res.DeckID, "error", err)
			resp.Warning = err.Error()
		}
		s.writeJSON(w, http.StatusCreated, resp)
	}
}

// handleExport returns the whole document.
func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="knoldeck.json"`)
		s.writeJSON(w, http.StatusOK, s.app.Snapshot())
	}
}
