package game

import (
	"time"

	"github.com/google/uuid"
	"spoons-server/gameerrors"
)

// Player is one participant's record inside a room. The ID is stable across
// reconnects; ConnID is the transport handle and is rebound on reconnect.
// Players are only ever mutated through their Room, under the room lock.
type Player struct {
	ID     string
	Name   string
	ConnID string

	Hand           []Card
	Selected       *Card
	HasReacted     bool
	Connected      bool
	IsHost         bool
	Score          int
	DisconnectedAt time.Time // zero = never disconnected

	reconnectWindow time.Duration
}

// NewPlayer creates a connected player with a fresh id.
func NewPlayer(name, connID string, isHost bool, reconnectWindow time.Duration) *Player {
	return &Player{
		ID:              uuid.NewString(),
		Name:            name,
		ConnID:          connID,
		Connected:       true,
		IsHost:          isHost,
		reconnectWindow: reconnectWindow,
	}
}

// SetHand replaces the player's hand (used at deal time).
func (p *Player) SetHand(cards []Card) {
	p.Hand = cards
	p.Selected = nil
}

// SelectCard marks the hand card with the given id as the pending selection.
func (p *Player) SelectCard(cardID string) error {
	for i := range p.Hand {
		if p.Hand[i].ID == cardID {
			card := p.Hand[i]
			p.Selected = &card
			return nil
		}
	}
	return gameerrors.ErrCardNotOwned
}

// HasSelected reports whether a selection is pending.
func (p *Player) HasSelected() bool {
	return p.Selected != nil
}

// ClearSelection drops the pending selection without touching the hand.
func (p *Player) ClearSelection() {
	p.Selected = nil
}

// RemoveSelectedCard detaches the pending selection from the hand and
// returns it. ok is false when nothing is selected.
func (p *Player) RemoveSelectedCard() (Card, bool) {
	if p.Selected == nil {
		return Card{}, false
	}
	for i := range p.Hand {
		if p.Hand[i].ID == p.Selected.ID {
			card := p.Hand[i]
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			p.Selected = nil
			return card, true
		}
	}
	p.Selected = nil
	return Card{}, false
}

// ReceiveCard appends a passed card to the hand.
func (p *Player) ReceiveCard(c Card) {
	p.Hand = append(p.Hand, c)
}

// HasWinningHand reports whether any symbol appears at least three times in
// the hand. The test is over counts, not hand size, so a transiently
// oversized hand (mid-pass) stays eligible.
func (p *Player) HasWinningHand() bool {
	counts := make(map[CardType]int, len(CardTypes))
	for _, c := range p.Hand {
		counts[c.Type]++
		if counts[c.Type] >= 3 {
			return true
		}
	}
	return false
}

// React marks the player as having reacted this match.
func (p *Player) React() {
	p.HasReacted = true
}

// ResetForNewMatch clears hand, selection and reaction flag. Score persists.
func (p *Player) ResetForNewMatch() {
	p.Hand = nil
	p.Selected = nil
	p.HasReacted = false
}

// Disconnect marks the player disconnected and stamps the time.
func (p *Player) Disconnect() {
	p.Connected = false
	p.DisconnectedAt = time.Now()
}

// Reconnect restores connectivity with a new transport handle. Hand, score
// and reaction state are untouched.
func (p *Player) Reconnect(connID string) {
	p.Connected = true
	p.ConnID = connID
	p.DisconnectedAt = time.Time{}
}

// CanReconnect reports whether the reconnect grace window is still open.
// Always true for a player who never disconnected. Evaluated lazily; no
// timers are scheduled.
func (p *Player) CanReconnect() bool {
	if p.DisconnectedAt.IsZero() {
		return true
	}
	return time.Since(p.DisconnectedAt) < p.reconnectWindow
}

// AddScore adjusts the player's score by points. Scores have no floor.
func (p *Player) AddScore(points int) {
	p.Score += points
}
