package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Tie-break policies for the overall game winner when several players share
// the highest score after the final match.
const (
	// TieBreakJoinOrder picks the first player in join order among the maxima.
	TieBreakJoinOrder = "join_order"
	// TieBreakNone leaves the game winner unset on a tie.
	TieBreakNone = "none"
)

// Config holds all configurable game and server parameters.
type Config struct {
	MinPlayers         int    `json:"min_players"`
	CardsPerPlayer     int    `json:"cards_per_player"`
	CopiesPerType      int    `json:"copies_per_type"`
	TotalMatches       int    `json:"total_matches"`
	WinPoints          int    `json:"win_points"`
	LosePoints         int    `json:"lose_points"`
	ReconnectWindowSec int    `json:"reconnect_window_sec"`
	RoomCodeLength     int    `json:"room_code_length"`
	MaxNameLength      int    `json:"max_name_length"`
	TieBreak           string `json:"tie_break"`

	WSPort           int `json:"ws_port"`
	RateLimitPerSec  int `json:"rate_limit_per_sec"`
	RateLimitBurst   int `json:"rate_limit_burst"`
	StaleRoomMinutes int `json:"stale_room_minutes"`

	// DatabaseURL enables the optional match-history store when non-empty.
	DatabaseURL string `json:"-"`

	// ReconnectTokenSecret signs the reconnect tokens handed to clients.
	ReconnectTokenSecret string `json:"-"`
}

// Defaults returns a Config with the default rules: 3-player minimum,
// 5-card hands, 3 matches per game, +2/-1 scoring, 45 s reconnect window.
func Defaults() *Config {
	return &Config{
		MinPlayers:         3,
		CardsPerPlayer:     5,
		CopiesPerType:      5,
		TotalMatches:       3,
		WinPoints:          2,
		LosePoints:         -1,
		ReconnectWindowSec: 45,
		RoomCodeLength:     6,
		MaxNameLength:      20,
		TieBreak:           TieBreakJoinOrder,
		WSPort:             8080,
		RateLimitPerSec:    20,
		RateLimitBurst:     40,
		StaleRoomMinutes:   60,
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.MinPlayers, "MIN_PLAYERS")
	overrideInt(&cfg.CardsPerPlayer, "CARDS_PER_PLAYER")
	overrideInt(&cfg.CopiesPerType, "COPIES_PER_TYPE")
	overrideInt(&cfg.TotalMatches, "TOTAL_MATCHES")
	overrideInt(&cfg.WinPoints, "WIN_POINTS")
	overrideInt(&cfg.LosePoints, "LOSE_POINTS")
	overrideInt(&cfg.ReconnectWindowSec, "RECONNECT_WINDOW_SEC")
	overrideInt(&cfg.RoomCodeLength, "ROOM_CODE_LENGTH")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideString(&cfg.TieBreak, "TIE_BREAK")
	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideInt(&cfg.RateLimitPerSec, "RATE_LIMIT_PER_SEC")
	overrideInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	overrideInt(&cfg.StaleRoomMinutes, "STALE_ROOM_MINUTES")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.ReconnectTokenSecret, "RECONNECT_TOKEN_SECRET")

	if cfg.TieBreak != TieBreakJoinOrder && cfg.TieBreak != TieBreakNone {
		log.Printf("Warning: unknown TIE_BREAK %q, using %q", cfg.TieBreak, TieBreakJoinOrder)
		cfg.TieBreak = TieBreakJoinOrder
	}

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
