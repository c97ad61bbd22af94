// Package validate holds the pre-entry input checks invoked by the
// transport layer before an intent reaches the registry. The engine itself
// assumes already-sanitized inputs and validates only game-state legality.
package validate

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNameTooShort = errors.New("name is too short")
	ErrNameTooLong  = errors.New("name is too long")
	ErrBadRoomCode  = errors.New("invalid room code format")
	ErrBadCardID    = errors.New("invalid card id format")
)

// SanitizeName trims, caps and strips markup-dangerous characters from a
// display name.
func SanitizeName(name string, maxLen int) string {
	name = strings.TrimSpace(name)
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, name)
}

// PlayerName sanitizes name and reports whether the result is usable.
func PlayerName(name string, maxLen int) (string, error) {
	sanitized := SanitizeName(name, maxLen)
	if len(sanitized) < 1 {
		return "", ErrNameTooShort
	}
	if len(sanitized) > maxLen {
		return "", ErrNameTooLong
	}
	return sanitized, nil
}

// RoomCode normalizes a room code and checks its format: exactly length
// characters from A-Z / 0-9.
func RoomCode(code string, length int) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != length {
		return "", ErrBadRoomCode
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", ErrBadRoomCode
		}
	}
	return normalized, nil
}

// CardID checks that a card id is a well-formed UUID.
func CardID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrBadCardID
	}
	return nil
}
