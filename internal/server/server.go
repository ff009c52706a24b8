package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/incydecy/internal/database"
	"github.com/TobiSchelling/incydecy/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const maxThingMessages = 200

// Server is the HTTP server for browsing a guild's karma.
type Server struct {
	db      *database.DB
	guildID string
	top     int
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server showing the top entries of guildID.
func New(db *database.DB, guildID string, top int) (*Server, error) {
	funcMap := template.FuncMap{
		"pathEscape": url.PathEscape,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"effect": func(e int) string {
			if e > 0 {
				return "++"
			}
			return "--"
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so their "content" blocks don't collide.
	pageNames := []string{"index.html", "thing.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, guildID: guildID, top: top, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /thing/{thing}", s.handleThing)
	s.mux.HandleFunc("GET /api/leaderboard", s.handleAPILeaderboard)
	s.mux.HandleFunc("GET /api/things/{thing}", s.handleAPIThing)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	values, err := s.db.GetTopValues(ctx, s.guildID, 0)
	if err != nil {
		s.fail(w, "loading values", err)
		return
	}
	stats, err := s.db.GetStats(ctx, s.guildID)
	if err != nil {
		s.fail(w, "loading stats", err)
		return
	}

	top := values
	if s.top > 0 && len(top) > s.top {
		top = top[:s.top]
	}
	board, err := report.FromValues(s.guildID, top).HTML()
	if err != nil {
		s.fail(w, "rendering leaderboard", err)
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"GuildID":     s.guildID,
		"Leaderboard": template.HTML(board), //nolint: gosec
		"Stats":       stats,
		"Things":      values,
	})
}

func (s *Server) handleThing(w http.ResponseWriter, r *http.Request) {
	thing := r.PathValue("thing")

	value, messages, err := s.lookupThing(r, thing)
	status := http.StatusOK
	if errors.Is(err, database.ErrNotFound) {
		status = http.StatusNotFound
	} else if err != nil {
		s.fail(w, "loading thing", err)
		return
	}

	s.render(w, status, "thing.html", map[string]any{
		"GuildID":  s.guildID,
		"Thing":    thing,
		"Value":    value,
		"Messages": messages,
	})
}

func (s *Server) handleAPILeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.top
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	values, err := s.db.GetTopValues(r.Context(), s.guildID, limit)
	if err != nil {
		s.fail(w, "loading values", err)
		return
	}
	s.writeJSON(w, http.StatusOK, report.FromValues(s.guildID, values))
}

type thingResponse struct {
	Thing    string           `json:"thing"`
	Value    int              `json:"value"`
	Messages []messageSummary `json:"messages"`
}

type messageSummary struct {
	ID       string  `json:"id"`
	AuthorID *string `json:"author_id"`
	Content  *string `json:"content"`
	TimeSent *string `json:"time_sent"`
	Effect   int     `json:"effect"`
}

func (s *Server) handleAPIThing(w http.ResponseWriter, r *http.Request) {
	value, messages, err := s.lookupThing(r, r.PathValue("thing"))
	if errors.Is(err, database.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		s.fail(w, "loading thing", err)
		return
	}

	resp := thingResponse{
		Thing:    value.Thing,
		Value:    value.CurrentValue,
		Messages: make([]messageSummary, len(messages)),
	}
	for i, m := range messages {
		resp.Messages[i] = messageSummary{
			ID:       m.ID,
			AuthorID: m.AuthorID,
			Content:  m.Content,
			TimeSent: m.TimeSent,
			Effect:   m.Effect,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookupThing(r *http.Request, thing string) (*database.Value, []database.Message, error) {
	value, err := s.db.GetValue(r.Context(), s.guildID, thing)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.db.GetMessagesForThing(r.Context(), s.guildID, thing, maxThingMessages)
	if err != nil {
		return nil, nil, err
	}
	return value, messages, nil
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("error rendering template")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	log.Error().Err(err).Msg(what)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, guildID string, top, port int) error {
	srv, err := New(db, guildID, top)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Info().Str("addr", "http://"+addr).Msg("server listening")
	return http.ListenAndServe(addr, srv.Handler())
}
