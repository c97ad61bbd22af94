// Package auth mints and verifies reconnect tokens. A token binds a player
// id to a room code so a reconnecting client can prove it owns the seat it
// is reclaiming; the engine's reconnect window is enforced separately.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReconnectClaims bind a reconnect token to one seat in one room.
type ReconnectClaims struct {
	RoomCode string `json:"room"`
	jwt.RegisteredClaims
}

// MintReconnectToken signs an HS256 token proving ownership of playerID's
// seat in roomCode. ttl bounds how long the token itself is honored.
func MintReconnectToken(secret []byte, roomCode, playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ReconnectClaims{
		RoomCode: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyReconnectToken parses and validates a reconnect token, returning the
// room code and player id it was minted for.
func VerifyReconnectToken(secret []byte, tokenString string) (roomCode, playerID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReconnectClaims{},
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*ReconnectClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}
	return claims.RoomCode, claims.Subject, nil
}
