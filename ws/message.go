package ws

import (
	"encoding/json"

	"spoons-server/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server intents ---

// CreateRoomMsg opens a new room with the sender as host.
type CreateRoomMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// JoinRoomMsg seats the sender in an existing waiting room.
type JoinRoomMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

// SelectCardMsg marks the sender's card selection for this round.
type SelectCardMsg struct {
	Type   string `json:"type"`
	CardID string `json:"cardId"`
}

// ReconnectMsg reclaims a seat after a dropped connection. Token is the
// reconnect token handed out on create/join.
type ReconnectMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

// --- Server-to-Client events ---

// ErrorMsg is sent to the offending connection when an intent is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// RoomCreatedMsg confirms room creation to the host.
type RoomCreatedMsg struct {
	Type           string `json:"type"`
	RoomCode       string `json:"roomCode"`
	PlayerID       string `json:"playerId"`
	ReconnectToken string `json:"reconnectToken"`
}

// RoomJoinedMsg confirms a join to the joining player.
type RoomJoinedMsg struct {
	Type           string         `json:"type"`
	PlayerID       string         `json:"playerId"`
	ReconnectToken string         `json:"reconnectToken"`
	GameState      game.RoomState `json:"gameState"`
}

// PlayerJoinedMsg tells the rest of the room about a new player.
type PlayerJoinedMsg struct {
	Type   string                 `json:"type"`
	Player game.PublicPlayerState `json:"player"`
}

// PlayerIDMsg carries events that only name a player
// (PLAYER_LEFT, PLAYER_SELECTED, PLAYER_DISCONNECTED, PLAYER_RECONNECTED).
type PlayerIDMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// StateMsg carries events whose payload is just the public snapshot
// (GAME_STARTED, NEXT_MATCH_STARTED, GAME_STATE_UPDATE).
type StateMsg struct {
	Type      string         `json:"type"`
	GameState game.RoomState `json:"gameState"`
}

// CardsDealtMsg unicasts a freshly dealt hand. Hands are secret, so this
// never travels on a room broadcast.
type CardsDealtMsg struct {
	Type  string      `json:"type"`
	Cards []game.Card `json:"cards"`
}

// CardsPassedMsg unicasts a player's hand after a pass, plus the snapshot.
type CardsPassedMsg struct {
	Type      string         `json:"type"`
	Cards     []game.Card    `json:"cards"`
	GameState game.RoomState `json:"gameState"`
}

// WinDeclaredMsg announces the declare-race winner.
type WinDeclaredMsg struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// PlayerReactedMsg announces a reaction and the order so far.
type PlayerReactedMsg struct {
	Type          string   `json:"type"`
	PlayerID      string   `json:"playerId"`
	ReactionOrder []string `json:"reactionOrder"`
}

// MatchEndedMsg announces a resolved match with more matches remaining.
type MatchEndedMsg struct {
	Type        string         `json:"type"`
	MatchWinner string         `json:"matchWinner"`
	MatchLoser  string         `json:"matchLoser"`
	MatchNumber int            `json:"matchNumber"`
	GameState   game.RoomState `json:"gameState"`
}

// GameEndedMsg announces the end of the final match and the overall winner.
type GameEndedMsg struct {
	Type      string         `json:"type"`
	Winner    string         `json:"winner"`
	Loser     string         `json:"loser"`
	GameState game.RoomState `json:"gameState"`
}

// ReconnectSuccessMsg restores a reconnected player's full view.
type ReconnectSuccessMsg struct {
	Type      string         `json:"type"`
	PlayerID  string         `json:"playerId"`
	GameState game.RoomState `json:"gameState"`
	Cards     []game.Card    `json:"cards"`
}
