package game

// PublicPlayerState is what other players may see about a player: card count
// only, never hand contents. Hand secrecy is part of the game's fairness
// guarantee, so the full hand travels only through Room.PlayerHand.
type PublicPlayerState struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CardCount   int    `json:"cardCount"`
	HasSelected bool   `json:"hasSelected"`
	HasReacted  bool   `json:"hasReacted"`
	Connected   bool   `json:"connected"`
	IsHost      bool   `json:"isHost"`
	Score       int    `json:"score"`
}

// RoomState is the redacted room snapshot broadcast to every participant
// after each state-affecting intent.
type RoomState struct {
	RoomID          string              `json:"roomId"`
	RoomCode        string              `json:"roomCode"`
	Players         []PublicPlayerState `json:"players"`
	Phase           string              `json:"phase"`
	Winner          string              `json:"winner,omitempty"`
	Loser           string              `json:"loser,omitempty"`
	DeclaringPlayer string              `json:"declaringPlayer,omitempty"`
	ReactionOrder   []string            `json:"reactionOrder"`
	RoundNumber     int                 `json:"roundNumber"`
	MatchNumber     int                 `json:"matchNumber"`
	TotalMatches    int                 `json:"totalMatches"`
	GameWinner      string              `json:"gameWinner,omitempty"`
	MinPlayers      int                 `json:"minPlayers"`
}

// PublicState builds the redacted view of p.
func (p *Player) PublicState() PublicPlayerState {
	return PublicPlayerState{
		ID:          p.ID,
		Name:        p.Name,
		CardCount:   len(p.Hand),
		HasSelected: p.HasSelected(),
		HasReacted:  p.HasReacted,
		Connected:   p.Connected,
		IsHost:      p.IsHost,
		Score:       p.Score,
	}
}
