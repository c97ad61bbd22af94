package storage

import "context"

// GameRecorder abstracts persistence of finished game sessions. The engine
// itself keeps no durable state; this is a write-mostly history sink at the
// transport boundary. Implementations can be swapped for testing.
type GameRecorder interface {
	RecordGameResult(ctx context.Context, result GameResult) error
	ListRecent(ctx context.Context, limit int) ([]GameResult, error)
	Close()
}

// Ensure *Store implements GameRecorder at compile time.
var _ GameRecorder = (*Store)(nil)
