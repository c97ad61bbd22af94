package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"spoons-server/config"
	"spoons-server/gameerrors"
)

// Phase is the room's state-machine state.
type Phase int

const (
	Waiting Phase = iota
	Selecting
	Passing
	Reacting
	Finished
)

// String returns the protocol string for a Phase.
func (ph Phase) String() string {
	switch ph {
	case Waiting:
		return "waiting"
	case Selecting:
		return "selecting"
	case Passing:
		return "passing"
	case Reacting:
		return "reacting"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Rules carries the tunable rule set a room plays under.
type Rules struct {
	MinPlayers      int
	CardsPerPlayer  int
	CopiesPerType   int
	TotalMatches    int
	WinPoints       int
	LosePoints      int
	ReconnectWindow time.Duration
	TieBreak        string
}

// RulesFromConfig extracts the room rule set from the server configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		MinPlayers:      cfg.MinPlayers,
		CardsPerPlayer:  cfg.CardsPerPlayer,
		CopiesPerType:   cfg.CopiesPerType,
		TotalMatches:    cfg.TotalMatches,
		WinPoints:       cfg.WinPoints,
		LosePoints:      cfg.LosePoints,
		ReconnectWindow: time.Duration(cfg.ReconnectWindowSec) * time.Second,
		TieBreak:        cfg.TieBreak,
	}
}

// SelectResult reports what a SelectCard call caused beyond the selection
// itself: a single call may complete the round and trigger the pass.
type SelectResult struct {
	Passed      bool
	RoundNumber int
}

// ReactResult reports what a React call caused.
type ReactResult struct {
	MatchEnded   bool
	IsLast       bool
	GameComplete bool
}

// RemoveResult reports the side effects of removing or disconnecting a
// player: a departing player can complete the selection set or the reaction
// race of the remaining connected players.
type RemoveResult struct {
	Removed      bool // fully removed (waiting phase) vs marked disconnected
	Passed       bool
	MatchEnded   bool
	GameComplete bool
}

// Room owns the player set and the phase state machine. Every exported
// method holds the room mutex across its whole validate -> mutate ->
// auto-advance chain, so intents apply indivisibly in arrival order; that
// receipt order is the tie-break for the declare and reaction races. Room
// methods never perform I/O and never block while holding the lock.
type Room struct {
	ID   string
	Code string

	mu            sync.Mutex
	rules         Rules
	players       map[string]*Player
	order         []string // join order; compacted only during waiting
	phase         Phase
	winner        string
	loser         string
	declaring     string
	reactionOrder []string
	round         int
	match         int
	gameWinner    string
}

// NewRoom creates an empty room in the waiting phase.
func NewRoom(code string, rules Rules) *Room {
	return &Room{
		ID:      uuid.NewString(),
		Code:    code,
		rules:   rules,
		players: make(map[string]*Player),
	}
}

// Rules returns the rule set the room plays under.
func (r *Room) Rules() Rules {
	return r.rules
}

// AddPlayer admits a player while the room is still waiting.
func (r *Room) AddPlayer(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Waiting {
		return gameerrors.ErrGameStarted
	}
	if _, ok := r.players[p.ID]; ok {
		return gameerrors.ErrDuplicatePlayer
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// RemovePlayer removes a player. During waiting the player is deleted, the
// join order compacted and the host role passed to the next player in join
// order. Once the game has started the player is only marked disconnected,
// which may auto-advance the round or resolve the match (see RemoveResult).
func (r *Room) RemovePlayer(playerID string) (RemoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return RemoveResult{}, gameerrors.ErrPlayerNotFound
	}

	if r.phase == Waiting {
		delete(r.players, playerID)
		for i, id := range r.order {
			if id == playerID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		if p.IsHost && len(r.order) > 0 {
			r.players[r.order[0]].IsHost = true
		}
		return RemoveResult{Removed: true}, nil
	}

	return r.markDisconnectedLocked(p), nil
}

// MarkDisconnected flags a player as disconnected in place, preserving their
// seat, hand and score for the reconnect window.
func (r *Room) MarkDisconnected(playerID string) (RemoveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return RemoveResult{}, gameerrors.ErrPlayerNotFound
	}
	return r.markDisconnectedLocked(p), nil
}

// markDisconnectedLocked applies the disconnect and runs the same
// post-condition checks a mutating intent would: the shrunken connected set
// may now have everyone selected (advance the round) or everyone reacted
// (resolve the match, with the disconnector overriding as loser).
func (r *Room) markDisconnectedLocked(p *Player) RemoveResult {
	p.Disconnect()

	res := RemoveResult{}
	switch r.phase {
	case Selecting:
		if r.connectedCountLocked() > 0 && r.allSelectedLocked() {
			r.passCardsLocked()
			res.Passed = true
		}
	case Reacting:
		if r.allReactedLocked() {
			r.endMatchLocked()
			res.MatchEnded = true
			res.GameComplete = r.isGameCompleteLocked()
		}
	}
	return res
}

// Start deals the first match. Only the host may start, the room must still
// be waiting, and at least MinPlayers must be seated.
func (r *Room) Start(byPlayerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller, ok := r.players[byPlayerID]
	if !ok {
		return gameerrors.ErrPlayerNotFound
	}
	if !caller.IsHost {
		return gameerrors.ErrNotHost
	}
	if r.phase != Waiting {
		return gameerrors.ErrGameStarted
	}
	if len(r.players) < r.rules.MinPlayers {
		return gameerrors.ErrNotEnoughPlayers
	}

	if err := r.dealLocked(); err != nil {
		return err
	}
	r.match = 1
	r.round = 1
	r.phase = Selecting
	return nil
}

// dealLocked builds a fresh deck sized to the room and hands every seated
// player a full hand. All hands are drawn before any are assigned, so a
// deal failure leaves no partial state.
func (r *Room) dealLocked() error {
	deck := NewDeck(len(r.players), r.rules.CopiesPerType)
	hands := make([][]Card, len(r.order))
	for i := range r.order {
		hand, err := deck.Deal(r.rules.CardsPerPlayer)
		if err != nil {
			return err
		}
		hands[i] = hand
	}
	for i, id := range r.order {
		r.players[id].SetHand(hands[i])
	}
	return nil
}

// SelectCard marks the player's pending selection. Once every connected
// player has one, the pass runs synchronously inside the same call.
func (r *Room) SelectCard(playerID, cardID string) (SelectResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Selecting {
		return SelectResult{}, gameerrors.ErrWrongPhase
	}
	p, ok := r.players[playerID]
	if !ok {
		return SelectResult{}, gameerrors.ErrPlayerNotFound
	}
	if !p.Connected {
		return SelectResult{}, gameerrors.ErrPlayerDisconnected
	}
	if err := p.SelectCard(cardID); err != nil {
		return SelectResult{}, err
	}

	res := SelectResult{RoundNumber: r.round}
	if r.allSelectedLocked() {
		r.passCardsLocked()
		res.Passed = true
		res.RoundNumber = r.round
	}
	return res, nil
}

func (r *Room) allSelectedLocked() bool {
	for _, p := range r.players {
		if p.Connected && !p.HasSelected() {
			return false
		}
	}
	return true
}

// passCardsLocked rotates the selected cards clockwise across the connected
// subset in join order: the card selected at position i lands at position
// i+1 (wrapping). Disconnected players neither send nor receive; their
// pending selection is cleared but the card stays in their hand.
func (r *Room) passCardsLocked() {
	r.phase = Passing

	connected := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.players[id].Connected {
			connected = append(connected, id)
		}
	}

	passing := make(map[string]Card, len(connected))
	for _, id := range connected {
		if card, ok := r.players[id].RemoveSelectedCard(); ok {
			passing[id] = card
		}
	}
	for i, senderID := range connected {
		receiver := r.players[connected[(i+1)%len(connected)]]
		if card, ok := passing[senderID]; ok {
			receiver.ReceiveCard(card)
		}
	}

	for _, p := range r.players {
		p.ClearSelection()
	}

	r.round++
	r.phase = Selecting
}

// DeclareWin resolves the declare race: the first call that reaches the room
// with a winning hand sets the winner and advances the phase, so any later
// declaration fails the phase check. Permitted from selecting and from the
// transient passing state.
func (r *Room) DeclareWin(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Selecting && r.phase != Passing {
		return gameerrors.ErrCannotDeclare
	}
	p, ok := r.players[playerID]
	if !ok {
		return gameerrors.ErrPlayerNotFound
	}
	if !p.HasWinningHand() {
		return gameerrors.ErrNoWinningHand
	}

	r.winner = playerID
	r.declaring = playerID
	r.reactionOrder = nil
	r.phase = Reacting

	// The winner is exempt from the reaction race.
	p.React()
	return nil
}

// React records a player's reaction to the declared win, in receipt order.
// When every connected non-winner has reacted the match resolves in the
// same call.
func (r *Room) React(playerID string) (ReactResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Reacting {
		return ReactResult{}, gameerrors.ErrWrongPhase
	}
	if playerID == r.winner {
		return ReactResult{}, gameerrors.ErrWinnerCannotReact
	}
	p, ok := r.players[playerID]
	if !ok {
		return ReactResult{}, gameerrors.ErrPlayerNotFound
	}
	if !p.Connected {
		return ReactResult{}, gameerrors.ErrPlayerDisconnected
	}
	if p.HasReacted {
		return ReactResult{}, gameerrors.ErrAlreadyReacted
	}

	p.React()
	r.reactionOrder = append(r.reactionOrder, playerID)

	if r.allReactedLocked() {
		r.endMatchLocked()
		return ReactResult{
			MatchEnded:   true,
			IsLast:       r.loser == playerID,
			GameComplete: r.isGameCompleteLocked(),
		}, nil
	}
	return ReactResult{}, nil
}

func (r *Room) allReactedLocked() bool {
	for _, p := range r.players {
		if p.Connected && !p.HasReacted {
			return false
		}
	}
	return true
}

// endMatchLocked scores the match. The last id appended to reactionOrder is
// the loser, except that a disconnected player who never reacted and is not
// the winner overrides it: disconnection-as-loss takes precedence over the
// last-reactor rule. Join order makes the override deterministic.
func (r *Room) endMatchLocked() {
	if n := len(r.reactionOrder); n > 0 {
		r.loser = r.reactionOrder[n-1]
	}
	for _, id := range r.order {
		p := r.players[id]
		if !p.Connected && !p.HasReacted && id != r.winner {
			r.loser = id
			break
		}
	}

	if w, ok := r.players[r.winner]; ok {
		w.AddScore(r.rules.WinPoints)
	}
	if l, ok := r.players[r.loser]; ok && r.loser != "" {
		l.AddScore(r.rules.LosePoints)
	}

	if r.match >= r.rules.TotalMatches {
		r.gameWinner = r.computeGameWinnerLocked()
	}
	r.phase = Finished
}

// computeGameWinnerLocked picks the player with the strictly highest
// accumulated score. Ties follow the configured policy: first in join order
// among the maxima, or no winner at all.
func (r *Room) computeGameWinnerLocked() string {
	var best string
	bestScore := 0
	tied := false
	for i, id := range r.order {
		score := r.players[id].Score
		if i == 0 || score > bestScore {
			best = id
			bestScore = score
			tied = false
		} else if score == bestScore {
			tied = true
		}
	}
	if tied && r.rules.TieBreak == config.TieBreakNone {
		return ""
	}
	return best
}

// StartNextMatch re-deals for the following match. Host-only; requires a
// finished match with matches remaining. Scores persist across matches.
func (r *Room) StartNextMatch(byPlayerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller, ok := r.players[byPlayerID]
	if !ok {
		return gameerrors.ErrPlayerNotFound
	}
	if !caller.IsHost {
		return gameerrors.ErrNotHost
	}
	if r.phase != Finished {
		return gameerrors.ErrWrongPhase
	}
	if r.match >= r.rules.TotalMatches {
		return gameerrors.ErrNoMoreMatches
	}

	for _, p := range r.players {
		p.ResetForNewMatch()
	}
	if err := r.dealLocked(); err != nil {
		return err
	}

	r.match++
	r.round = 1
	r.winner = ""
	r.loser = ""
	r.declaring = ""
	r.reactionOrder = nil
	r.phase = Selecting
	return nil
}

// ReconnectPlayer restores a player's connectivity and rebinds their
// transport handle. Hand, score and phase are untouched. Fails once the
// reconnect window has expired.
func (r *Room) ReconnectPlayer(playerID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return gameerrors.ErrPlayerNotFound
	}
	if !p.CanReconnect() {
		return gameerrors.ErrReconnectExpired
	}
	p.Reconnect(connID)
	return nil
}

// --- State access ---

// Phase returns the room's current phase.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// GetPlayer returns the player with the given id, or nil. Callers outside
// the game package must treat the result as read-only identity data;
// all mutation goes through Room methods.
func (r *Room) GetPlayer(playerID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.players[playerID]
}

// PlayerIDs returns the player ids in join order.
func (r *Room) PlayerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// ConnectedConnIDs returns the transport handles of all connected players,
// for room-wide broadcast.
func (r *Room) ConnectedConnIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if p := r.players[id]; p.Connected {
			conns = append(conns, p.ConnID)
		}
	}
	return conns
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// ConnectedCount returns the number of connected players.
func (r *Room) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedCountLocked()
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no players remain.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// IsFinished reports whether the current match has finished.
func (r *Room) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == Finished
}

// IsGameComplete reports whether the final match has finished.
func (r *Room) IsGameComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isGameCompleteLocked()
}

func (r *Room) isGameCompleteLocked() bool {
	return r.phase == Finished && r.match >= r.rules.TotalMatches
}

// Winner returns the current match winner's id, if any.
func (r *Room) Winner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winner
}

// Loser returns the current match loser's id, if any.
func (r *Room) Loser() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loser
}

// GameWinner returns the overall game winner's id, set only once the final
// match has finished.
func (r *Room) GameWinner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameWinner
}

// MatchNumber returns the current match number (1-based; 0 before start).
func (r *Room) MatchNumber() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.match
}

// ReactionOrder returns a copy of the reaction order so far.
func (r *Room) ReactionOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reactionOrder))
	copy(out, r.reactionOrder)
	return out
}

// PlayerHand returns a copy of the player's own hand. This is the only path
// that exposes hand contents; PublicState carries counts only.
func (r *Room) PlayerHand(playerID string) []Card {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return nil
	}
	hand := make([]Card, len(p.Hand))
	copy(hand, p.Hand)
	return hand
}

// PublicState builds the redacted snapshot broadcast to the room.
func (r *Room) PublicState() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]PublicPlayerState, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.players[id].PublicState())
	}
	reactions := make([]string, len(r.reactionOrder))
	copy(reactions, r.reactionOrder)

	return RoomState{
		RoomID:          r.ID,
		RoomCode:        r.Code,
		Players:         players,
		Phase:           r.phase.String(),
		Winner:          r.winner,
		Loser:           r.loser,
		DeclaringPlayer: r.declaring,
		ReactionOrder:   reactions,
		RoundNumber:     r.round,
		MatchNumber:     r.match,
		TotalMatches:    r.rules.TotalMatches,
		GameWinner:      r.gameWinner,
		MinPlayers:      r.rules.MinPlayers,
	}
}

// Reapable reports whether the room is finished, fully disconnected, and has
// been so for longer than staleAfter. Used by the registry's periodic sweep.
func (r *Room) Reapable(staleAfter time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != Finished {
		return false
	}
	var lastSeen time.Time
	for _, p := range r.players {
		if p.Connected {
			return false
		}
		if p.DisconnectedAt.After(lastSeen) {
			lastSeen = p.DisconnectedAt
		}
	}
	return time.Since(lastSeen) > staleAfter
}
