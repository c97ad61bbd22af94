package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"spoons-server/config"
	"spoons-server/storage"
)

// Handler holds dependencies for the plain-HTTP endpoints that sit next to
// the websocket transport.
type Handler struct {
	Config *config.Config
	Store  storage.GameRecorder // nil when history is disabled
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, store storage.GameRecorder) *Handler {
	return &Handler{Config: cfg, Store: store}
}

// CORS sets CORS headers on the response. Returns true when the request was
// a preflight and has been fully answered.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RecentGames lists the most recently completed game sessions. Returns an
// empty list when no history store is configured.
func (h *Handler) RecentGames(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	if h.Store == nil {
		json.NewEncoder(w).Encode([]storage.GameResult{})
		return
	}

	games, err := h.Store.ListRecent(r.Context(), limit)
	if err != nil {
		slog.Error("listing recent games", "tag", "api", "err", err)
		http.Error(w, `{"error":"history unavailable"}`, http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []storage.GameResult{}
	}
	json.NewEncoder(w).Encode(games)
}
