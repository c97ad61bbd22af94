package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.MinPlayers != 3 {
		t.Errorf("MinPlayers = %d, want 3", cfg.MinPlayers)
	}
	if cfg.CardsPerPlayer != 5 {
		t.Errorf("CardsPerPlayer = %d, want 5", cfg.CardsPerPlayer)
	}
	if cfg.TotalMatches != 3 {
		t.Errorf("TotalMatches = %d, want 3", cfg.TotalMatches)
	}
	if cfg.WinPoints != 2 || cfg.LosePoints != -1 {
		t.Errorf("scoring = %d/%d, want 2/-1", cfg.WinPoints, cfg.LosePoints)
	}
	if cfg.ReconnectWindowSec != 45 {
		t.Errorf("ReconnectWindowSec = %d, want 45", cfg.ReconnectWindowSec)
	}
	if cfg.RoomCodeLength != 6 {
		t.Errorf("RoomCodeLength = %d, want 6", cfg.RoomCodeLength)
	}
	if cfg.TieBreak != TieBreakJoinOrder {
		t.Errorf("TieBreak = %q, want %q", cfg.TieBreak, TieBreakJoinOrder)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIN_PLAYERS", "4")
	t.Setenv("TOTAL_MATCHES", "5")
	t.Setenv("TIE_BREAK", "none")
	t.Setenv("WS_PORT", "9999")

	cfg := Load()

	if cfg.MinPlayers != 4 {
		t.Errorf("MinPlayers = %d, want 4", cfg.MinPlayers)
	}
	if cfg.TotalMatches != 5 {
		t.Errorf("TotalMatches = %d, want 5", cfg.TotalMatches)
	}
	if cfg.TieBreak != TieBreakNone {
		t.Errorf("TieBreak = %q, want %q", cfg.TieBreak, TieBreakNone)
	}
	if cfg.WSPort != 9999 {
		t.Errorf("WSPort = %d, want 9999", cfg.WSPort)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MIN_PLAYERS", "not-a-number")
	t.Setenv("TIE_BREAK", "coin-flip")

	cfg := Load()

	if cfg.MinPlayers != 3 {
		t.Errorf("invalid int override must keep default, got %d", cfg.MinPlayers)
	}
	if cfg.TieBreak != TieBreakJoinOrder {
		t.Errorf("unknown tie-break must fall back to %q, got %q", TieBreakJoinOrder, cfg.TieBreak)
	}
}
