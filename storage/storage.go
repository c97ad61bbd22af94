package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_history (
	id UUID PRIMARY KEY,
	played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	room_code TEXT NOT NULL,
	matches_played INT NOT NULL,
	winner_id TEXT,
	winner_name TEXT,
	end_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_game_history_room_code ON game_history(room_code);
CREATE TABLE IF NOT EXISTS game_player_result (
	game_id     UUID NOT NULL REFERENCES game_history(id),
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	score       INT  NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_player_result_game_id ON game_player_result(game_id);
`

// PlayerResult is one player's final line in a finished game.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// GameResult is the record persisted when a game session completes.
type GameResult struct {
	GameID        string         `json:"gameId"`
	RoomCode      string         `json:"roomCode"`
	PlayedAt      time.Time      `json:"playedAt"`
	MatchesPlayed int            `json:"matchesPlayed"`
	WinnerID      string         `json:"winnerId,omitempty"`
	WinnerName    string         `json:"winnerName,omitempty"`
	EndReason     string         `json:"endReason"`
	Players       []PlayerResult `json:"players"`
}

// Store persists and retrieves game history through a Postgres pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the history tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence
// occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// RecordGameResult inserts the game row and one row per player,
// transactionally.
func (s *Store) RecordGameResult(ctx context.Context, result GameResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO game_history (id, room_code, matches_played, winner_id, winner_name, end_reason)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`,
		result.GameID, result.RoomCode, result.MatchesPlayed,
		result.WinnerID, result.WinnerName, result.EndReason)
	if err != nil {
		return err
	}
	for _, p := range result.Players {
		_, err = tx.Exec(ctx,
			`INSERT INTO game_player_result (game_id, player_id, player_name, score)
			 VALUES ($1, $2, $3, $4)`,
			result.GameID, p.PlayerID, p.Name, p.Score)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListRecent returns the most recently finished games, newest first, with
// their per-player results.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]GameResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_code, played_at, matches_played,
		        COALESCE(winner_id, ''), COALESCE(winner_name, ''), COALESCE(end_reason, '')
		 FROM game_history ORDER BY played_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var r GameResult
		if err := rows.Scan(&r.GameID, &r.RoomCode, &r.PlayedAt, &r.MatchesPlayed,
			&r.WinnerID, &r.WinnerName, &r.EndReason); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		players, err := s.listPlayers(ctx, results[i].GameID)
		if err != nil {
			return nil, err
		}
		results[i].Players = players
	}
	return results, nil
}

func (s *Store) listPlayers(ctx context.Context, gameID string) ([]PlayerResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT player_id, player_name, score FROM game_player_result WHERE game_id = $1`,
		gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []PlayerResult
	for rows.Next() {
		var p PlayerResult
		if err := rows.Scan(&p.PlayerID, &p.Name, &p.Score); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// GetGame returns a single recorded game by id, or nil if none exists.
func (s *Store) GetGame(ctx context.Context, gameID string) (*GameResult, error) {
	var r GameResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, room_code, played_at, matches_played,
		        COALESCE(winner_id, ''), COALESCE(winner_name, ''), COALESCE(end_reason, '')
		 FROM game_history WHERE id = $1`, gameID).
		Scan(&r.GameID, &r.RoomCode, &r.PlayedAt, &r.MatchesPlayed,
			&r.WinnerID, &r.WinnerName, &r.EndReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	players, err := s.listPlayers(ctx, r.GameID)
	if err != nil {
		return nil, err
	}
	r.Players = players
	return &r, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
