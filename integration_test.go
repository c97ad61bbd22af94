package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"spoons-server/config"
	"spoons-server/registry"
	"spoons-server/ws"
)

// setupTestServer creates a test HTTP server with the full game server stack.
func setupTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()

	cfg := config.Defaults()
	reg := registry.New(cfg)
	hub := ws.NewHub(cfg, reg, []byte("integration-test-secret"))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)

	server := httptest.NewServer(mux)
	cleanup := func() {
		server.Close()
	}
	return server, cleanup
}

// connectWS creates a WebSocket connection to the test server.
func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn
}

// readMsg reads a JSON message from the WebSocket and returns it as a map.
func readMsg(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v\ndata: %s", err, string(data))
	}
	return msg
}

// readUntilType reads messages until one of the given type arrives, skipping
// interleaved broadcasts.
func readUntilType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMsg(t, conn)
		if msg["type"] == msgType {
			return msg
		}
		if msg["type"] == "ERROR" {
			t.Fatalf("got ERROR while waiting for %s: %v (%v)", msgType, msg["message"], msg["code"])
		}
	}
	t.Fatalf("gave up waiting for %s", msgType)
	return nil
}

// sendMsg sends a JSON message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
}

// setupLobby creates a room with Alice as host and seats Bob and Carol,
// returning the room code and the three connections in join order.
func setupLobby(t *testing.T, server *httptest.Server) (string, []*websocket.Conn) {
	t.Helper()

	conn1 := connectWS(t, server)
	sendMsg(t, conn1, map[string]string{"type": "CREATE_ROOM", "name": "Alice"})
	created := readUntilType(t, conn1, "ROOM_CREATED")
	roomCode, _ := created["roomCode"].(string)
	if len(roomCode) != 6 {
		t.Fatalf("room code %q has wrong length", roomCode)
	}
	if created["reconnectToken"] == "" {
		t.Fatal("expected a reconnect token on create")
	}

	conn2 := connectWS(t, server)
	sendMsg(t, conn2, map[string]string{"type": "JOIN_ROOM", "roomCode": roomCode, "name": "Bob"})
	readUntilType(t, conn2, "ROOM_JOINED")

	conn3 := connectWS(t, server)
	sendMsg(t, conn3, map[string]string{"type": "JOIN_ROOM", "roomCode": roomCode, "name": "Carol"})
	readUntilType(t, conn3, "ROOM_JOINED")

	return roomCode, []*websocket.Conn{conn1, conn2, conn3}
}

func TestIntegration_LobbyFlow(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	conn1 := connectWS(t, server)
	defer conn1.Close()
	sendMsg(t, conn1, map[string]string{"type": "CREATE_ROOM", "name": "Alice"})
	created := readUntilType(t, conn1, "ROOM_CREATED")
	roomCode := created["roomCode"].(string)

	state := readUntilType(t, conn1, "GAME_STATE_UPDATE")
	gs := state["gameState"].(map[string]interface{})
	if gs["phase"] != "waiting" {
		t.Errorf("expected waiting phase, got %v", gs["phase"])
	}

	conn2 := connectWS(t, server)
	defer conn2.Close()
	sendMsg(t, conn2, map[string]string{"type": "JOIN_ROOM", "roomCode": roomCode, "name": "Bob"})
	joined := readUntilType(t, conn2, "ROOM_JOINED")
	if joined["playerId"] == "" {
		t.Error("expected a player id on join")
	}

	// The host hears about the new player.
	pj := readUntilType(t, conn1, "PLAYER_JOINED")
	player := pj["player"].(map[string]interface{})
	if player["name"] != "Bob" {
		t.Errorf("expected PLAYER_JOINED for Bob, got %v", player["name"])
	}
}

func TestIntegration_FullRound(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	_, conns := setupLobby(t, server)
	for _, c := range conns {
		defer c.Close()
	}

	sendMsg(t, conns[0], map[string]string{"type": "START_GAME"})

	// Every player gets a secret 5-card hand, then the shared start event.
	hands := make([][]interface{}, len(conns))
	for i, conn := range conns {
		dealt := readUntilType(t, conn, "CARDS_DEALT")
		cards := dealt["cards"].([]interface{})
		if len(cards) != 5 {
			t.Fatalf("player %d dealt %d cards, expected 5", i+1, len(cards))
		}
		hands[i] = cards

		started := readUntilType(t, conn, "GAME_STARTED")
		gs := started["gameState"].(map[string]interface{})
		if gs["phase"] != "selecting" {
			t.Errorf("expected selecting phase, got %v", gs["phase"])
		}
		if gs["matchNumber"].(float64) != 1 {
			t.Errorf("expected match 1, got %v", gs["matchNumber"])
		}
		players := gs["players"].([]interface{})
		for _, p := range players {
			if _, leaked := p.(map[string]interface{})["cards"]; leaked {
				t.Error("broadcast state must not carry hand contents")
			}
		}
	}

	// Everyone selects their first card; the third selection completes the
	// round and rotates the cards.
	for i, conn := range conns {
		cardID := hands[i][0].(map[string]interface{})["id"].(string)
		sendMsg(t, conn, map[string]string{"type": "SELECT_CARD", "cardId": cardID})
	}

	for i, conn := range conns {
		passed := readUntilType(t, conn, "CARDS_PASSED")
		cards := passed["cards"].([]interface{})
		if len(cards) != 5 {
			t.Errorf("player %d holds %d cards after the pass, expected 5", i+1, len(cards))
		}
		gs := passed["gameState"].(map[string]interface{})
		if gs["roundNumber"].(float64) != 2 {
			t.Errorf("expected round 2 after the pass, got %v", gs["roundNumber"])
		}
	}
}

func TestIntegration_SelectionIsHiddenFromOthers(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	_, conns := setupLobby(t, server)
	for _, c := range conns {
		defer c.Close()
	}

	sendMsg(t, conns[0], map[string]string{"type": "START_GAME"})
	var hand []interface{}
	for i, conn := range conns {
		dealt := readUntilType(t, conn, "CARDS_DEALT")
		if i == 1 {
			hand = dealt["cards"].([]interface{})
		}
		readUntilType(t, conn, "GAME_STARTED")
	}

	cardID := hand[0].(map[string]interface{})["id"].(string)
	sendMsg(t, conns[1], map[string]string{"type": "SELECT_CARD", "cardId": cardID})

	// Another player sees that a selection happened, but never which card.
	selected := readUntilType(t, conns[0], "PLAYER_SELECTED")
	if _, hasCard := selected["cardId"]; hasCard {
		t.Error("PLAYER_SELECTED must not name the card")
	}
	if selected["playerId"] == "" {
		t.Error("PLAYER_SELECTED must name the player")
	}
}

func TestIntegration_ErrorOnInvalidName(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	conn := connectWS(t, server)
	defer conn.Close()

	sendMsg(t, conn, map[string]string{"type": "CREATE_ROOM", "name": "   "})
	msg := readMsg(t, conn)
	if msg["type"] != "ERROR" || msg["code"] != "INVALID_NAME" {
		t.Fatalf("expected INVALID_NAME error, got %v/%v", msg["type"], msg["code"])
	}
}

func TestIntegration_ErrorOnUnknownRoom(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	conn := connectWS(t, server)
	defer conn.Close()

	sendMsg(t, conn, map[string]string{"type": "JOIN_ROOM", "roomCode": "ZZZZ22", "name": "Bob"})
	msg := readMsg(t, conn)
	if msg["type"] != "ERROR" || msg["code"] != "ROOM_NOT_FOUND" {
		t.Fatalf("expected ROOM_NOT_FOUND error, got %v/%v", msg["type"], msg["code"])
	}
}

func TestIntegration_NonHostCannotStart(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	_, conns := setupLobby(t, server)
	for _, c := range conns {
		defer c.Close()
	}

	sendMsg(t, conns[1], map[string]string{"type": "START_GAME"})
	msg := readUntilErrorCode(t, conns[1], "NOT_HOST")
	if msg == nil {
		t.Fatal("expected NOT_HOST error")
	}
}

func TestIntegration_StartNeedsMinPlayers(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	conn := connectWS(t, server)
	defer conn.Close()
	sendMsg(t, conn, map[string]string{"type": "CREATE_ROOM", "name": "Alice"})
	readUntilType(t, conn, "ROOM_CREATED")

	sendMsg(t, conn, map[string]string{"type": "START_GAME"})
	msg := readUntilErrorCode(t, conn, "NOT_ENOUGH_PLAYERS")
	if msg == nil {
		t.Fatal("expected NOT_ENOUGH_PLAYERS error")
	}
}

// readUntilErrorCode reads until an ERROR with the given code arrives,
// skipping interleaved broadcasts. Returns nil after too many messages.
func readUntilErrorCode(t *testing.T, conn *websocket.Conn, code string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMsg(t, conn)
		if msg["type"] == "ERROR" && msg["code"] == code {
			return msg
		}
	}
	return nil
}
