// Package api provides the HTTP API for games, actions and narratives.
// GET endpoints are public (read-only observation). Action submission is
// public but rate limited. Other POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/engine"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/persistence"
	"github.com/talgya/beatloom/internal/scheduler"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodyBytes     = 64 << 10
)

// Server serves games over HTTP.
type Server struct {
	Scheduler  *scheduler.Scheduler
	Ledger     *scheduler.Ledger
	DB         *persistence.DB
	World      *world.Model
	Motivation *motivation.Model
	Culture    *culture.Model

	Port        int
	AdminKey    string   // Bearer token for admin endpoints. Empty = admin disabled.
	CORSOrigins []string // Extra allowed origins besides local dev servers.

	// SubmitLimiter throttles action submission; nil uses 60 per hour per IP.
	SubmitLimiter *RateLimiter
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	limiter := s.SubmitLimiter
	if limiter == nil {
		limiter = NewRateLimiter(60, time.Hour)
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/games", s.handleGames)
	mux.HandleFunc("GET /api/v1/games/{id}", s.handleGame)
	mux.HandleFunc("GET /api/v1/games/{id}/cycles", s.handleCycles)
	mux.HandleFunc("GET /api/v1/games/{id}/state", s.handleState)
	mux.HandleFunc("GET /api/v1/games/{id}/narratives", s.handleNarratives)
	mux.HandleFunc("GET /api/v1/games/{id}/history", s.handleHistory)
	mux.HandleFunc("POST /api/v1/games/{id}/actions", RateLimitMiddleware(limiter, s.handleSubmit))

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/games", s.adminOnly(s.handleCreateGame))
	mux.HandleFunc("POST /api/v1/games/{id}/archive", s.adminOnly(s.handleArchive))
	mux.HandleFunc("POST /api/v1/games/{id}/trigger", s.adminOnly(s.handleTrigger))
	mux.HandleFunc("POST /api/v1/games/{id}/cycles/{cycle}/retry", s.adminOnly(s.handleRetry))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine. Shut the returned
// server down to stop it.
func (s *Server) Start() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins. Localhost
// dev servers are always allowed.
func corsMiddleware(extra []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no BEATLOOM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	active, err := s.DB.ListGames(r.Context(), story.GameActive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         "beatloom",
		"active_games": len(active),
		"time":         time.Now().UTC(),
	})
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.DB.ListGames(r.Context(), story.GameStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Scheduler.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type createGameRequest struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Frequency  story.Frequency `json:"frequency"`
	MaxPlayers int             `json:"max_players"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !decode(w, r, &req) {
		return
	}
	g, c, err := s.Scheduler.CreateGame(r.Context(), story.Game{
		ID:         req.ID,
		Name:       req.Name,
		Frequency:  req.Frequency,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"game": g, "cycle": c})
}

type submitRequest struct {
	ActorID   string          `json:"actor_id"`
	ActorName string          `json:"actor_name"`
	ChapterID *int64          `json:"chapter_id,omitempty"`
	BeatID    *int64          `json:"beat_id,omitempty"`
	Kind      string          `json:"kind"`
	Content   string          `json:"content"`
	Target    string          `json:"target"`
	Sentiment story.Sentiment `json:"sentiment"`
	Priority  int             `json:"priority"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.Ledger.Submit(r.Context(), story.Action{
		GameID:    r.PathValue("id"),
		ActorID:   req.ActorID,
		ActorName: req.ActorName,
		ChapterID: req.ChapterID,
		BeatID:    req.BeatID,
		Kind:      req.Kind,
		Content:   req.Content,
		Target:    req.Target,
		Sentiment: req.Sentiment,
		Priority:  req.Priority,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.DB.ListCycles(r.Context(), r.PathValue("id"), listLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := s.DB.GetGame(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"world":      s.World.GetState(ctx, id),
		"motivation": s.Motivation.GetState(ctx, id),
		"culture":    s.Culture.GetState(ctx, id),
	})
}

func (s *Server) handleNarratives(w http.ResponseWriter, r *http.Request) {
	narratives, err := s.DB.ListNarratives(r.Context(), r.PathValue("id"), listLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, narratives)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.DB.TickHistory(r.Context(), r.PathValue("id"), listLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []engine.TickRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Scheduler.Archive(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": id, "status": story.GameArchived})
}

// handleTrigger runs the game's scheduled cycle now. The tick runs detached
// from the request so a client disconnect cannot strand it in processing.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	c, err := s.Scheduler.Trigger(context.WithoutCancel(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	cycleID, err := strconv.ParseInt(r.PathValue("cycle"), 10, 64)
	if err != nil {
		http.Error(w, "invalid cycle id", http.StatusBadRequest)
		return
	}
	c, err := s.Scheduler.Retry(context.WithoutCancel(r.Context()), r.PathValue("id"), cycleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func listLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return min(n, maxListLimit)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, story.ErrInvalidAction), errors.Is(err, scheduler.ErrUnknownFrequency):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrGameArchived),
		errors.Is(err, scheduler.ErrRosterFull),
		errors.Is(err, scheduler.ErrCycleInProgress),
		errors.Is(err, scheduler.ErrAlreadyScheduled),
		errors.Is(err, scheduler.ErrInvalidTransition),
		errors.Is(err, scheduler.ErrNoOpenCycle):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", code)
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
