package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"spoons-server/config"
	"spoons-server/game"
	"spoons-server/registry"
	"spoons-server/storage"
	"spoons-server/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// reconnectTokenTTL bounds how long a reconnect token itself is honored.
// The engine's 45 s seat window is enforced separately by the room.
const reconnectTokenTTL = 24 * time.Hour

// Hub tracks live connections and fans server events out to them. Intents
// are applied by the registry/rooms; the hub only routes bytes, so room
// state never depends on transport behavior.
type Hub struct {
	Config      *config.Config
	Registry    *registry.Registry
	Recorder    storage.GameRecorder // nil disables history
	TokenSecret []byte

	mu      sync.RWMutex
	clients map[string]*Client // conn id -> client
}

// NewHub creates a new Hub.
func NewHub(cfg *config.Config, reg *registry.Registry, secret []byte) *Hub {
	return &Hub{
		Config:      cfg,
		Registry:    reg,
		TokenSecret: secret,
		clients:     make(map[string]*Client),
	}
}

// ServeWS handles WebSocket upgrade requests and starts a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "tag", "ws", "err", err)
		return
	}

	client := &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		ConnID:  uuid.NewString(),
		limiter: rate.NewLimiter(rate.Limit(h.Config.RateLimitPerSec), h.Config.RateLimitBurst),
	}
	h.register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ConnID] = c
	total := len(h.clients)
	h.mu.Unlock()
	slog.Info("client connected", "tag", "ws", "connId", c.ConnID, "total", total)
}

// unregister drops the client and routes the disconnect into the registry:
// a waiting room loses the seat, a running game keeps it for the reconnect
// window. A departing player can also complete the round or the reaction
// race for everyone else, so the resulting side effects are broadcast here.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ConnID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ConnID)
	close(c.Send)
	total := len(h.clients)
	h.mu.Unlock()
	slog.Info("client disconnected", "tag", "ws", "connId", c.ConnID, "total", total)

	room, player, res, err := h.Registry.DisconnectPlayer(c.ConnID)
	if err != nil {
		return // connection was not seated anywhere
	}

	if res.Removed {
		h.broadcastToRoom(room, PlayerIDMsg{Type: "PLAYER_LEFT", PlayerID: player.ID})
	} else {
		h.broadcastToRoom(room, PlayerIDMsg{Type: "PLAYER_DISCONNECTED", PlayerID: player.ID})
	}
	h.emitRoundEffects(room, res.Passed, res.MatchEnded, res.GameComplete, "player_disconnected")
}

// sendToConn delivers one event to a single connection, if still present.
func (h *Hub) sendToConn(connID string, v interface{}) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling event", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

// broadcastToRoom delivers one event to every connected player in the room.
func (h *Hub) broadcastToRoom(room *game.Room, v interface{}) {
	h.broadcastToRoomExcept(room, "", v)
}

func (h *Hub) broadcastToRoomExcept(room *game.Room, exceptConnID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling event", "tag", "ws", "err", err)
		return
	}
	for _, connID := range room.ConnectedConnIDs() {
		if connID == exceptConnID {
			continue
		}
		h.mu.RLock()
		c, ok := h.clients[connID]
		h.mu.RUnlock()
		if ok {
			wsutil.SafeSend(c.Send, data)
		}
	}
}

// broadcastState sends the redacted snapshot to the whole room.
func (h *Hub) broadcastState(room *game.Room) {
	h.broadcastToRoom(room, StateMsg{Type: "GAME_STATE_UPDATE", GameState: room.PublicState()})
}

// unicastHands sends each connected player their own (secret) hand.
func (h *Hub) unicastHands(room *game.Room, msgType string) {
	state := room.PublicState()
	for _, playerID := range room.PlayerIDs() {
		p := room.GetPlayer(playerID)
		if p == nil || !p.Connected {
			continue
		}
		hand := room.PlayerHand(playerID)
		switch msgType {
		case "CARDS_DEALT":
			h.sendToConn(p.ConnID, CardsDealtMsg{Type: msgType, Cards: hand})
		case "CARDS_PASSED":
			h.sendToConn(p.ConnID, CardsPassedMsg{Type: msgType, Cards: hand, GameState: state})
		}
	}
}

// emitRoundEffects broadcasts whatever an auto-advance produced: new hands
// after a pass, a match resolution, or a plain state update.
func (h *Hub) emitRoundEffects(room *game.Room, passed, matchEnded, gameComplete bool, endReason string) {
	if passed {
		h.unicastHands(room, "CARDS_PASSED")
	}
	switch {
	case matchEnded && gameComplete:
		h.broadcastToRoom(room, GameEndedMsg{
			Type:      "GAME_ENDED",
			Winner:    room.GameWinner(),
			Loser:     room.Loser(),
			GameState: room.PublicState(),
		})
		h.recordGameResult(room, endReason)
	case matchEnded:
		h.broadcastToRoom(room, MatchEndedMsg{
			Type:        "MATCH_ENDED",
			MatchWinner: room.Winner(),
			MatchLoser:  room.Loser(),
			MatchNumber: room.MatchNumber(),
			GameState:   room.PublicState(),
		})
	default:
		h.broadcastState(room)
	}
}

// recordGameResult persists a completed game session when a recorder is
// configured. Failures are logged, never surfaced to players.
func (h *Hub) recordGameResult(room *game.Room, endReason string) {
	if h.Recorder == nil {
		return
	}
	state := room.PublicState()
	result := storage.GameResult{
		GameID:        state.RoomID,
		RoomCode:      state.RoomCode,
		MatchesPlayed: state.MatchNumber,
		WinnerID:      state.GameWinner,
		EndReason:     endReason,
	}
	for _, p := range state.Players {
		if p.ID == state.GameWinner {
			result.WinnerName = p.Name
		}
		result.Players = append(result.Players, storage.PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Score,
		})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Recorder.RecordGameResult(ctx, result); err != nil {
			slog.Error("recording game result", "tag", "storage", "roomCode", result.RoomCode, "err", err)
		}
	}()
}
