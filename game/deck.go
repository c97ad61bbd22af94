package game

import (
	"math/rand"

	"github.com/google/uuid"
	"spoons-server/gameerrors"
)

// CardType is one symbol of the fixed card alphabet.
type CardType string

// CardTypes is the fixed symbol alphabet every deck is built from.
var CardTypes = []CardType{"A", "B", "C", "D", "E"}

// Card is a single card. Immutable once created.
type Card struct {
	ID   string   `json:"id"`
	Type CardType `json:"type"`
}

// Deck is a shuffled multiset of cards consumed by dealing. A deck is built
// for a specific player count and is not retained after the deal.
type Deck struct {
	cards []Card
}

// NewDeck generates and shuffles a deck sized for playerCount players:
// copiesPerType x playerCount cards of each symbol.
func NewDeck(playerCount, copiesPerType int) *Deck {
	copies := copiesPerType * playerCount
	cards := make([]Card, 0, copies*len(CardTypes))
	for _, t := range CardTypes {
		for i := 0; i < copies; i++ {
			cards = append(cards, Card{ID: uuid.NewString(), Type: t})
		}
	}
	d := &Deck{cards: cards}
	d.shuffle()
	return d
}

// shuffle applies a uniform Fisher-Yates permutation.
func (d *Deck) shuffle() {
	rand.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Deal removes and returns the first n cards. It returns ErrDeckExhausted
// and removes nothing if fewer than n cards remain.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, gameerrors.ErrDeckExhausted
	}
	dealt := d.cards[:n:n]
	d.cards = d.cards[n:]
	return dealt, nil
}

// RemainingCount returns the number of cards not yet dealt.
func (d *Deck) RemainingCount() int {
	return len(d.cards)
}
