package registry

import (
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"spoons-server/config"
	"spoons-server/game"
	"spoons-server/gameerrors"
)

// roomCodeChars is the alphabet room codes are sampled from. Ambiguous
// characters (0/O, 1/I) are excluded so codes survive being read aloud.
const roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Registry maps external identifiers — room codes, connection ids, player
// ids — to live rooms. It owns room creation, join/leave, the
// disconnect/reconnect routing, and garbage collection of dead rooms.
//
// The indices are guarded by their own lock; room state is guarded by each
// room's lock. Lock order is always registry then room, and rooms never call
// back into the registry, so cross-room intents run in parallel safely.
type Registry struct {
	mu          sync.Mutex
	cfg         *config.Config
	rooms       map[string]*game.Room // room id -> room
	codes       map[string]string     // room code -> room id
	playerRooms map[string]string     // player id -> room id
	connPlayers map[string]string     // conn id -> player id
}

// New creates an empty Registry.
func New(cfg *config.Config) *Registry {
	return &Registry{
		cfg:         cfg,
		rooms:       make(map[string]*game.Room),
		codes:       make(map[string]string),
		playerRooms: make(map[string]string),
		connPlayers: make(map[string]string),
	}
}

// generateRoomCodeLocked rejection-samples a code until it does not collide
// with a live room.
func (g *Registry) generateRoomCodeLocked() string {
	for {
		var b strings.Builder
		for i := 0; i < g.cfg.RoomCodeLength; i++ {
			b.WriteByte(roomCodeChars[rand.Intn(len(roomCodeChars))])
		}
		code := b.String()
		if _, taken := g.codes[code]; !taken {
			return code
		}
	}
}

// CreateRoom allocates a room with a fresh code, seats the creator as host
// and indexes everything.
func (g *Registry) CreateRoom(name, connID string) (*game.Room, *game.Player) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rules := game.RulesFromConfig(g.cfg)
	room := game.NewRoom(g.generateRoomCodeLocked(), rules)
	player := game.NewPlayer(name, connID, true, rules.ReconnectWindow)

	// A fresh waiting room always admits its host.
	if err := room.AddPlayer(player); err != nil {
		slog.Error("seating host in new room", "tag", "registry", "err", err)
	}

	g.rooms[room.ID] = room
	g.codes[room.Code] = room.ID
	g.playerRooms[player.ID] = room.ID
	g.connPlayers[connID] = player.ID
	return room, player
}

// JoinRoom seats a new player in the room with the given code. Rejected when
// the room is missing or no longer waiting.
func (g *Registry) JoinRoom(code, name, connID string) (*game.Room, *game.Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.roomByCodeLocked(code)
	if room == nil {
		return nil, nil, gameerrors.ErrRoomNotFound
	}

	player := game.NewPlayer(name, connID, false, room.Rules().ReconnectWindow)
	if err := room.AddPlayer(player); err != nil {
		return nil, nil, err
	}

	g.playerRooms[player.ID] = room.ID
	g.connPlayers[connID] = player.ID
	return room, player, nil
}

// LeaveRoom removes the player behind connID from their room. The connection
// index is always cleared; the player index only while the room was still
// waiting (mid-game the seat survives for reconnection). Empty rooms are
// reaped immediately.
func (g *Registry) LeaveRoom(connID string) (*game.Room, *game.Player, game.RemoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leaveLocked(connID)
}

func (g *Registry) leaveLocked(connID string) (*game.Room, *game.Player, game.RemoveResult, error) {
	room, player, err := g.resolveConnLocked(connID)
	if err != nil {
		return nil, nil, game.RemoveResult{}, err
	}

	wasWaiting := room.Phase() == game.Waiting
	res, err := room.RemovePlayer(player.ID)
	if err != nil {
		return nil, nil, game.RemoveResult{}, err
	}

	delete(g.connPlayers, connID)
	if wasWaiting {
		delete(g.playerRooms, player.ID)
	}
	if room.IsEmpty() {
		g.removeRoomLocked(room)
	}
	return room, player, res, nil
}

// DisconnectPlayer handles a dropped connection. In a waiting room this is a
// full leave; mid-game the player is marked disconnected in place and only
// the connection index is cleared, so the player/room mapping survives for
// the reconnect window.
func (g *Registry) DisconnectPlayer(connID string) (*game.Room, *game.Player, game.RemoveResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, player, err := g.resolveConnLocked(connID)
	if err != nil {
		return nil, nil, game.RemoveResult{}, err
	}

	if room.Phase() == game.Waiting {
		return g.leaveLocked(connID)
	}

	res, err := room.MarkDisconnected(player.ID)
	if err != nil {
		return nil, nil, game.RemoveResult{}, err
	}
	delete(g.connPlayers, connID)
	return room, player, res, nil
}

// ReconnectPlayer restores a disconnected player's seat on a new connection.
func (g *Registry) ReconnectPlayer(code, playerID, connID string) (*game.Room, *game.Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.roomByCodeLocked(code)
	if room == nil {
		return nil, nil, gameerrors.ErrRoomNotFound
	}
	if err := room.ReconnectPlayer(playerID, connID); err != nil {
		return nil, nil, err
	}

	g.playerRooms[playerID] = room.ID
	g.connPlayers[connID] = playerID
	return room, room.GetPlayer(playerID), nil
}

// ResolveConn maps a connection id to its (room, player) pair.
func (g *Registry) ResolveConn(connID string) (*game.Room, *game.Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveConnLocked(connID)
}

func (g *Registry) resolveConnLocked(connID string) (*game.Room, *game.Player, error) {
	playerID, ok := g.connPlayers[connID]
	if !ok {
		return nil, nil, gameerrors.ErrNotInRoom
	}
	roomID, ok := g.playerRooms[playerID]
	if !ok {
		return nil, nil, gameerrors.ErrNotInRoom
	}
	room, ok := g.rooms[roomID]
	if !ok {
		return nil, nil, gameerrors.ErrRoomNotFound
	}
	player := room.GetPlayer(playerID)
	if player == nil {
		return nil, nil, gameerrors.ErrPlayerNotFound
	}
	return room, player, nil
}

// RoomByCode returns the live room with the given code, or nil.
func (g *Registry) RoomByCode(code string) *game.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roomByCodeLocked(code)
}

func (g *Registry) roomByCodeLocked(code string) *game.Room {
	roomID, ok := g.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil
	}
	return g.rooms[roomID]
}

// RoomCount returns the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Cleanup sweeps dead rooms: empty ones, and finished rooms whose players
// have all been disconnected for longer than the stale threshold. Meant to
// run periodically.
func (g *Registry) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	staleAfter := time.Duration(g.cfg.StaleRoomMinutes) * time.Minute
	for _, room := range g.rooms {
		if room.IsEmpty() || room.Reapable(staleAfter) {
			g.removeRoomLocked(room)
			slog.Info("reaped room", "tag", "registry", "roomCode", room.Code)
		}
	}
}

// removeRoomLocked fully de-indexes a room and all its players.
func (g *Registry) removeRoomLocked(room *game.Room) {
	for _, playerID := range room.PlayerIDs() {
		delete(g.playerRooms, playerID)
		for connID, pid := range g.connPlayers {
			if pid == playerID {
				delete(g.connPlayers, connID)
			}
		}
	}
	delete(g.codes, room.Code)
	delete(g.rooms, room.ID)
}
