package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"spoons-server/auth"
	"spoons-server/gameerrors"
	"spoons-server/validate"
	"spoons-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is a middleman between one websocket connection and the engine.
// Its ConnID is the opaque transport handle the registry indexes by.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	ConnID string

	limiter *rate.Limiter
}

// ReadPump pumps intents from the websocket connection into the engine.
// It runs in its own goroutine per connection, so all intents from one
// client apply in the order the client sent them.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read", "tag", "ws", "err", err)
			}
			break
		}
		if !c.limiter.Allow() {
			c.sendError("Rate limited.", "RATE_LIMITED")
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump pumps events from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.", "BAD_MESSAGE")
		return
	}

	switch envelope.Type {
	case "CREATE_ROOM":
		c.handleCreateRoom(envelope.Raw)
	case "JOIN_ROOM":
		c.handleJoinRoom(envelope.Raw)
	case "LEAVE_ROOM":
		c.handleLeaveRoom()
	case "START_GAME":
		c.handleStartGame()
	case "SELECT_CARD":
		c.handleSelectCard(envelope.Raw)
	case "DECLARE_WIN":
		c.handleDeclareWin()
	case "REACT_TO_WIN":
		c.handleReact()
	case "START_NEXT_MATCH":
		c.handleStartNextMatch()
	case "RECONNECT":
		c.handleReconnect(envelope.Raw)
	default:
		c.sendError("Unknown message type: "+envelope.Type, "BAD_MESSAGE")
	}
}

func (c *Client) handleCreateRoom(raw json.RawMessage) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid CREATE_ROOM message.", "BAD_MESSAGE")
		return
	}
	name, err := validate.PlayerName(msg.Name, c.Hub.Config.MaxNameLength)
	if err != nil {
		c.sendError(err.Error(), "INVALID_NAME")
		return
	}

	room, player := c.Hub.Registry.CreateRoom(name, c.ConnID)
	token, err := auth.MintReconnectToken(c.Hub.TokenSecret, room.Code, player.ID, reconnectTokenTTL)
	if err != nil {
		slog.Error("minting reconnect token", "tag", "ws", "err", err)
	}

	c.send(RoomCreatedMsg{Type: "ROOM_CREATED", RoomCode: room.Code, PlayerID: player.ID, ReconnectToken: token})
	c.send(StateMsg{Type: "GAME_STATE_UPDATE", GameState: room.PublicState()})
	slog.Info("room created", "tag", "ws", "roomCode", room.Code, "host", player.Name)
}

func (c *Client) handleJoinRoom(raw json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid JOIN_ROOM message.", "BAD_MESSAGE")
		return
	}
	code, err := validate.RoomCode(msg.RoomCode, c.Hub.Config.RoomCodeLength)
	if err != nil {
		c.sendError(err.Error(), "INVALID_ROOM")
		return
	}
	name, err := validate.PlayerName(msg.Name, c.Hub.Config.MaxNameLength)
	if err != nil {
		c.sendError(err.Error(), "INVALID_NAME")
		return
	}

	room, player, err := c.Hub.Registry.JoinRoom(code, name, c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	token, err := auth.MintReconnectToken(c.Hub.TokenSecret, room.Code, player.ID, reconnectTokenTTL)
	if err != nil {
		slog.Error("minting reconnect token", "tag", "ws", "err", err)
	}

	c.send(RoomJoinedMsg{Type: "ROOM_JOINED", PlayerID: player.ID, ReconnectToken: token, GameState: room.PublicState()})
	c.Hub.broadcastToRoomExcept(room, c.ConnID, PlayerJoinedMsg{Type: "PLAYER_JOINED", Player: player.PublicState()})
	c.Hub.broadcastState(room)
	slog.Info("player joined", "tag", "ws", "roomCode", room.Code, "player", player.Name)
}

func (c *Client) handleLeaveRoom() {
	room, player, res, err := c.Hub.Registry.LeaveRoom(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	c.Hub.broadcastToRoom(room, PlayerIDMsg{Type: "PLAYER_LEFT", PlayerID: player.ID})
	c.Hub.emitRoundEffects(room, res.Passed, res.MatchEnded, res.GameComplete, "player_left")
	slog.Info("player left", "tag", "ws", "roomCode", room.Code, "player", player.Name)
}

func (c *Client) handleStartGame() {
	room, player, err := c.Hub.Registry.ResolveConn(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	if err := room.Start(player.ID); err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	c.Hub.unicastHands(room, "CARDS_DEALT")
	c.Hub.broadcastToRoom(room, StateMsg{Type: "GAME_STARTED", GameState: room.PublicState()})
	slog.Info("game started", "tag", "ws", "roomCode", room.Code)
}

func (c *Client) handleSelectCard(raw json.RawMessage) {
	var msg SelectCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid SELECT_CARD message.", "BAD_MESSAGE")
		return
	}
	if err := validate.CardID(msg.CardID); err != nil {
		c.sendError(err.Error(), "INVALID_CARD")
		return
	}

	room, player, err := c.Hub.Registry.ResolveConn(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	res, err := room.SelectCard(player.ID, msg.CardID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	// Other players learn that a selection happened, never which card.
	c.Hub.broadcastToRoomExcept(room, c.ConnID, PlayerIDMsg{Type: "PLAYER_SELECTED", PlayerID: player.ID})
	if res.Passed {
		c.Hub.unicastHands(room, "CARDS_PASSED")
	}
	c.Hub.broadcastState(room)
}

func (c *Client) handleDeclareWin() {
	room, player, err := c.Hub.Registry.ResolveConn(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	if err := room.DeclareWin(player.ID); err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	c.Hub.broadcastToRoom(room, WinDeclaredMsg{Type: "WIN_DECLARED", PlayerID: player.ID, PlayerName: player.Name})
	c.Hub.broadcastState(room)
	slog.Info("win declared", "tag", "ws", "roomCode", room.Code, "player", player.Name)
}

func (c *Client) handleReact() {
	room, player, err := c.Hub.Registry.ResolveConn(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	res, err := room.React(player.ID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	c.Hub.broadcastToRoom(room, PlayerReactedMsg{
		Type:          "PLAYER_REACTED",
		PlayerID:      player.ID,
		ReactionOrder: room.ReactionOrder(),
	})
	c.Hub.emitRoundEffects(room, false, res.MatchEnded, res.GameComplete, "completed")
}

func (c *Client) handleStartNextMatch() {
	room, player, err := c.Hub.Registry.ResolveConn(c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}
	if err := room.StartNextMatch(player.ID); err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	c.Hub.unicastHands(room, "CARDS_DEALT")
	c.Hub.broadcastToRoom(room, StateMsg{Type: "NEXT_MATCH_STARTED", GameState: room.PublicState()})
	slog.Info("next match started", "tag", "ws", "roomCode", room.Code, "match", room.MatchNumber())
}

func (c *Client) handleReconnect(raw json.RawMessage) {
	var msg ReconnectMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid RECONNECT message.", "BAD_MESSAGE")
		return
	}
	code, err := validate.RoomCode(msg.RoomCode, c.Hub.Config.RoomCodeLength)
	if err != nil {
		c.sendError(err.Error(), "INVALID_ROOM")
		return
	}

	tokenRoom, tokenPlayer, err := auth.VerifyReconnectToken(c.Hub.TokenSecret, msg.Token)
	if err != nil || tokenRoom != code || tokenPlayer != msg.PlayerID {
		c.sendError("Reconnect token does not match this seat.", "RECONNECT_FAILED")
		return
	}

	room, player, err := c.Hub.Registry.ReconnectPlayer(code, msg.PlayerID, c.ConnID)
	if err != nil {
		c.sendError(err.Error(), gameerrors.Code(err))
		return
	}

	c.send(ReconnectSuccessMsg{
		Type:      "RECONNECT_SUCCESS",
		PlayerID:  player.ID,
		GameState: room.PublicState(),
		Cards:     room.PlayerHand(player.ID),
	})
	c.Hub.broadcastToRoomExcept(room, c.ConnID, PlayerIDMsg{Type: "PLAYER_RECONNECTED", PlayerID: player.ID})
	c.Hub.broadcastState(room)
	slog.Info("player reconnected", "tag", "ws", "roomCode", room.Code, "player", player.Name)
}

func (c *Client) send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling event", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

func (c *Client) sendError(message, code string) {
	c.send(ErrorMsg{Type: "ERROR", Message: message, Code: code})
}
