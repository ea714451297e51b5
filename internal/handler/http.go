package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/scoring"
	"github.com/shadda-scores/internal/service"
	"github.com/shadda-scores/internal/websocket"
)

// Handler provides HTTP handlers for the score keeper API
type Handler struct {
	games  *service.GameService
	stats  *service.StatisticsService
	hub    *websocket.Hub
	checks map[string]func(context.Context) error
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(games *service.GameService, stats *service.StatisticsService, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		games:  games,
		stats:  stats,
		hub:    hub,
		checks: make(map[string]func(context.Context) error),
		logger: logger,
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check func(context.Context) error) {
	h.checks[name] = check
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/vocabulary", h.GetVocabulary)
		r.Get("/statistics", h.GetStatistics)

		r.Route("/players", func(r chi.Router) {
			r.Post("/", h.CreatePlayer)
			r.Get("/", h.ListPlayers)
			r.Delete("/{playerID}", h.DeletePlayer)
		})

		r.Route("/games", func(r chi.Router) {
			r.Post("/", h.StartGame)
			r.Get("/", h.ListGames)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Get("/standings", h.GetStandings)
				r.Get("/summary", h.GetSummary)
				r.Put("/scores/{gamePlayerID}", h.StageScore)
				r.Post("/voice", h.Voice)
				r.Post("/rounds", h.SubmitRound)
				r.Post("/reconcile", h.Reconcile)
			})
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to its status. Anything that is
// not a domain rejection is logged and hidden behind a generic error.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, action string, attrs ...any) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsConflictError(err):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("failed to "+action, append(attrs, "error", err)...)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	}
	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		data["game_subscribers"] = h.hub.GetSubscriberCount(gameID)
	}
	h.writeSuccess(w, data)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck probes the registered dependencies
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ready"}
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		status["status"] = "not ready"
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Data: status})
		return
	}
	h.writeSuccess(w, status)
}

// GetVocabulary returns the accepted score values with labels and spoken forms
func (h *Handler) GetVocabulary(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, scoring.Vocabulary())
}

// CreatePlayer adds a player to the roster
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	player, err := h.games.CreatePlayer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "create player")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    player,
	})
}

// ListPlayers returns the roster
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.games.ListPlayers(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list players")
		return
	}
	if players == nil {
		players = []domain.Player{}
	}
	h.writeSuccess(w, players)
}

// DeletePlayer removes a player from the roster
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if err := h.games.DeletePlayer(r.Context(), playerID); err != nil {
		h.writeServiceError(w, err, "delete player", "player_id", playerID)
		return
	}
	// removed players drop out of the statistics
	if err := h.stats.Invalidate(r.Context()); err != nil {
		h.logger.Warn("failed to invalidate statistics", "error", err)
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// StartGame starts a game for four roster players
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req domain.StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	state, err := h.games.StartGame(r.Context(), req.PlayerIDs)
	if err != nil {
		h.writeServiceError(w, err, "start game")
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    state,
	})
}

// ListGames returns games, filtered by ?completed=true|false
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	var completed *bool
	if raw := r.URL.Query().Get("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		completed = &v
	}

	games, err := h.games.ListGames(r.Context(), completed)
	if err != nil {
		h.writeServiceError(w, err, "list games")
		return
	}
	if games == nil {
		games = []domain.Game{}
	}
	h.writeSuccess(w, games)
}

// GetGame returns a game with its players and staged scores
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	state, err := h.games.GetGame(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err, "get game", "game_id", gameID)
		return
	}
	h.writeSuccess(w, state)
}

// GetStandings returns the live totals of a game
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	standings, err := h.games.Standings(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err, "get standings", "game_id", gameID)
		return
	}
	h.writeSuccess(w, standings)
}

// GetSummary returns the ranking of a game
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	summary, err := h.games.Summary(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err, "get summary", "game_id", gameID)
		return
	}
	h.writeSuccess(w, summary)
}

// StageScore records a provisional score for a game player
func (h *Handler) StageScore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	gamePlayerID := chi.URLParam(r, "gamePlayerID")

	var req domain.StageScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.games.StageScore(r.Context(), gameID, gamePlayerID, req.Score); err != nil {
		h.writeServiceError(w, err, "stage score", "game_id", gameID)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"game_player_id": gamePlayerID,
		"score":          req.Score,
		"label":          scoring.Label(req.Score),
	})
}

// Voice applies a speech transcript. Missing speech support is a warning,
// not a failure: the table falls back to manual entry.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	var req domain.VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if req.Supported != nil && !*req.Supported {
		h.writeSuccess(w, domain.VoiceResult{Warning: domain.ErrSpeechUnsupported.Error()})
		return
	}

	result, err := h.games.ApplyUtterance(r.Context(), gameID, req.Transcript)
	if err != nil {
		if errors.Is(err, domain.ErrSpeechUnsupported) {
			h.writeSuccess(w, domain.VoiceResult{Warning: err.Error()})
			return
		}
		h.writeServiceError(w, err, "apply utterance", "game_id", gameID)
		return
	}
	h.writeSuccess(w, result)
}

// SubmitRound commits the staged round
func (h *Handler) SubmitRound(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	result, err := h.games.SubmitRound(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err, "submit round", "game_id", gameID)
		return
	}
	h.writeSuccess(w, result)
}

// Reconcile rebuilds a game's totals from its scores
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	changed, err := h.games.Reconcile(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err, "reconcile game", "game_id", gameID)
		return
	}
	h.writeSuccess(w, map[string]bool{"repaired": changed})
}

// GetStatistics returns aggregate statistics over completed games
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		days = d
	}

	stats, err := h.stats.GetStatistics(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, err, "get statistics")
		return
	}
	h.writeSuccess(w, stats)
}
