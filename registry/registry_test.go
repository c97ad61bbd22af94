package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"spoons-server/config"
	"spoons-server/game"
	"spoons-server/gameerrors"
)

func testConfig() *config.Config {
	return config.Defaults()
}

// fillAndStart joins enough extra players to start the room, then starts it
// as the host. Returns the joiners' connection ids.
func fillAndStart(t *testing.T, reg *Registry, room *game.Room, host *game.Player) []string {
	t.Helper()
	conns := []string{"conn-b", "conn-c"}
	for i, connID := range conns {
		if _, _, err := reg.JoinRoom(room.Code, "Joiner"+strings.Repeat("x", i), connID); err != nil {
			t.Fatalf("join %s: %v", connID, err)
		}
	}
	if err := room.Start(host.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return conns
}

func TestCreateRoomIndexes(t *testing.T) {
	reg := New(testConfig())

	room, host := reg.CreateRoom("Alice", "conn-a")
	if room == nil || host == nil {
		t.Fatal("expected room and host")
	}
	if !host.IsHost {
		t.Error("creator must be host")
	}
	if reg.RoomCount() != 1 {
		t.Errorf("expected 1 room, got %d", reg.RoomCount())
	}

	if len(room.Code) != testConfig().RoomCodeLength {
		t.Errorf("room code %q has wrong length", room.Code)
	}
	for _, c := range room.Code {
		if !strings.ContainsRune(roomCodeChars, c) {
			t.Errorf("room code %q contains %q outside the alphabet", room.Code, c)
		}
	}

	gotRoom, gotPlayer, err := reg.ResolveConn("conn-a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if gotRoom != room || gotPlayer != host {
		t.Error("ResolveConn returned wrong room or player")
	}
}

func TestRoomByCodeNormalizes(t *testing.T) {
	reg := New(testConfig())
	room, _ := reg.CreateRoom("Alice", "conn-a")

	if got := reg.RoomByCode("  " + strings.ToLower(room.Code) + " "); got != room {
		t.Error("lookup must tolerate case and surrounding whitespace")
	}
	if got := reg.RoomByCode("ZZZZZZ"); got != nil {
		t.Error("unknown code must resolve to nil")
	}
}

func TestJoinRoomErrors(t *testing.T) {
	reg := New(testConfig())
	room, host := reg.CreateRoom("Alice", "conn-a")

	if _, _, err := reg.JoinRoom("NOSUCH", "Bob", "conn-b"); !errors.Is(err, gameerrors.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}

	fillAndStart(t, reg, room, host)
	if _, _, err := reg.JoinRoom(room.Code, "Late", "conn-late"); !errors.Is(err, gameerrors.ErrGameStarted) {
		t.Errorf("expected ErrGameStarted, got %v", err)
	}
	if _, _, err := reg.ResolveConn("conn-late"); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("rejected join must leave no index entry, got %v", err)
	}
}

func TestLeaveWaitingRoomDeindexes(t *testing.T) {
	reg := New(testConfig())
	room, _ := reg.CreateRoom("Alice", "conn-a")
	_, bob, err := reg.JoinRoom(room.Code, "Bob", "conn-b")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	_, left, res, err := reg.LeaveRoom("conn-b")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left != bob || !res.Removed {
		t.Errorf("expected Bob fully removed, got %+v", res)
	}
	if _, _, err := reg.ResolveConn("conn-b"); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("expected conn index cleared, got %v", err)
	}
	if room.PlayerCount() != 1 {
		t.Errorf("expected 1 seat left, got %d", room.PlayerCount())
	}
}

func TestLastLeaveReapsRoom(t *testing.T) {
	reg := New(testConfig())
	room, _ := reg.CreateRoom("Alice", "conn-a")

	if _, _, _, err := reg.LeaveRoom("conn-a"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if reg.RoomCount() != 0 {
		t.Errorf("empty room must be reaped, %d rooms left", reg.RoomCount())
	}
	if got := reg.RoomByCode(room.Code); got != nil {
		t.Error("reaped room's code must be freed")
	}
}

func TestDisconnectWaitingIsLeave(t *testing.T) {
	reg := New(testConfig())
	room, _ := reg.CreateRoom("Alice", "conn-a")
	reg.JoinRoom(room.Code, "Bob", "conn-b")

	_, _, res, err := reg.DisconnectPlayer("conn-b")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if !res.Removed {
		t.Error("waiting-room disconnect must remove the seat")
	}
	if room.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", room.PlayerCount())
	}
}

func TestDisconnectMidGameKeepsSeat(t *testing.T) {
	reg := New(testConfig())
	room, host := reg.CreateRoom("Alice", "conn-a")
	conns := fillAndStart(t, reg, room, host)

	_, player, res, err := reg.DisconnectPlayer(conns[0])
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if res.Removed {
		t.Error("mid-game disconnect must keep the seat")
	}
	if player.Connected {
		t.Error("expected player marked disconnected")
	}
	if room.PlayerCount() != 3 {
		t.Errorf("expected 3 seats, got %d", room.PlayerCount())
	}

	// The connection index is gone but the seat remains reachable by id.
	if _, _, err := reg.ResolveConn(conns[0]); !errors.Is(err, gameerrors.ErrNotInRoom) {
		t.Errorf("expected stale conn unresolvable, got %v", err)
	}
	if room.GetPlayer(player.ID) == nil {
		t.Error("seat must survive for the reconnect window")
	}
}

func TestReconnectPlayer(t *testing.T) {
	reg := New(testConfig())
	room, host := reg.CreateRoom("Alice", "conn-a")
	conns := fillAndStart(t, reg, room, host)

	_, dropped, _, err := reg.DisconnectPlayer(conns[0])
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	gotRoom, gotPlayer, err := reg.ReconnectPlayer(room.Code, dropped.ID, "conn-b2")
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if gotRoom != room || gotPlayer != dropped {
		t.Error("reconnect resolved to wrong room or player")
	}
	if !dropped.Connected || dropped.ConnID != "conn-b2" {
		t.Errorf("reconnect did not rebind: %+v", dropped)
	}
	if _, _, err := reg.ResolveConn("conn-b2"); err != nil {
		t.Errorf("new conn must resolve, got %v", err)
	}

	if _, _, err := reg.ReconnectPlayer("NOSUCH", dropped.ID, "conn-x"); !errors.Is(err, gameerrors.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if _, _, err := reg.ReconnectPlayer(room.Code, "nobody", "conn-x"); !errors.Is(err, gameerrors.ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestReconnectExpired(t *testing.T) {
	reg := New(testConfig())
	room, host := reg.CreateRoom("Alice", "conn-a")
	conns := fillAndStart(t, reg, room, host)

	_, dropped, _, err := reg.DisconnectPlayer(conns[0])
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	dropped.DisconnectedAt = time.Now().Add(-time.Duration(testConfig().ReconnectWindowSec+1) * time.Second)

	if _, _, err := reg.ReconnectPlayer(room.Code, dropped.ID, "conn-x"); !errors.Is(err, gameerrors.ErrReconnectExpired) {
		t.Errorf("expected ErrReconnectExpired, got %v", err)
	}
}

func TestCleanupReapsStaleRooms(t *testing.T) {
	cfg := config.Defaults()
	cfg.StaleRoomMinutes = 0
	reg := New(cfg)

	room, host := reg.CreateRoom("Alice", "conn-a")
	conns := fillAndStart(t, reg, room, host)

	reg.Cleanup()
	if reg.RoomCount() != 1 {
		t.Fatal("running room must survive cleanup")
	}

	// Resolve the game so the room is finished, then drop everyone.
	winner := room.GetPlayer(host.ID)
	for match := 0; match < cfg.TotalMatches; match++ {
		if match > 0 {
			if err := room.StartNextMatch(host.ID); err != nil {
				t.Fatalf("next match: %v", err)
			}
		}
		winner.SetHand(winningHand())
		if err := room.DeclareWin(host.ID); err != nil {
			t.Fatalf("declare: %v", err)
		}
		for _, id := range room.PlayerIDs() {
			if id == host.ID {
				continue
			}
			if _, err := room.React(id); err != nil {
				t.Fatalf("react: %v", err)
			}
		}
	}
	for _, connID := range append([]string{"conn-a"}, conns...) {
		reg.DisconnectPlayer(connID)
	}

	reg.Cleanup()
	if reg.RoomCount() != 0 {
		t.Errorf("stale finished room must be reaped, %d rooms left", reg.RoomCount())
	}
}

func winningHand() []game.Card {
	types := []game.CardType{"A", "A", "A", "B", "C"}
	cards := make([]game.Card, len(types))
	for i, ct := range types {
		cards[i] = game.Card{ID: "test-card-" + string(ct) + string(rune('0'+i)), Type: ct}
	}
	return cards
}
