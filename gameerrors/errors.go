package gameerrors

import "errors"

// Sentinel errors shared by the game, registry and ws packages to avoid
// circular imports. Every Room/Registry operation validates before mutating
// and reports failure through one of these.
var (
	// Membership
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrGameStarted     = errors.New("game already started")
	ErrDuplicatePlayer = errors.New("player already in room")
	ErrNotInRoom       = errors.New("not in a room")

	// Legality
	ErrWrongPhase         = errors.New("action not allowed in current phase")
	ErrCannotDeclare      = errors.New("cannot declare win in current phase")
	ErrCardNotOwned       = errors.New("card not in hand")
	ErrNoWinningHand      = errors.New("no winning hand")
	ErrAlreadyReacted     = errors.New("already reacted")
	ErrWinnerCannotReact  = errors.New("winner cannot react")
	ErrPlayerDisconnected = errors.New("player disconnected")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrNoMoreMatches      = errors.New("no more matches remain")
	ErrDeckExhausted      = errors.New("not enough cards left in deck")

	// Permission
	ErrNotHost = errors.New("only the host can do that")

	// Timing
	ErrReconnectExpired = errors.New("reconnection window expired")
)

// Code returns the stable machine-readable code sent in ERROR events for err.
// Unknown errors map to INTERNAL.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	case errors.Is(err, ErrGameStarted):
		return "GAME_STARTED"
	case errors.Is(err, ErrDuplicatePlayer):
		return "DUPLICATE_PLAYER"
	case errors.Is(err, ErrNotInRoom):
		return "NOT_IN_ROOM"
	case errors.Is(err, ErrWrongPhase):
		return "WRONG_PHASE"
	case errors.Is(err, ErrCannotDeclare):
		return "CANNOT_DECLARE"
	case errors.Is(err, ErrCardNotOwned):
		return "CARD_NOT_OWNED"
	case errors.Is(err, ErrNoWinningHand):
		return "NO_WINNING_HAND"
	case errors.Is(err, ErrAlreadyReacted):
		return "ALREADY_REACTED"
	case errors.Is(err, ErrWinnerCannotReact):
		return "WINNER_CANNOT_REACT"
	case errors.Is(err, ErrPlayerDisconnected):
		return "PLAYER_DISCONNECTED"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "NOT_ENOUGH_PLAYERS"
	case errors.Is(err, ErrNoMoreMatches):
		return "NO_MORE_MATCHES"
	case errors.Is(err, ErrDeckExhausted):
		return "DECK_EXHAUSTED"
	case errors.Is(err, ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, ErrReconnectExpired):
		return "RECONNECT_EXPIRED"
	default:
		return "INTERNAL"
	}
}
