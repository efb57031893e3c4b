package main

import (
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	roomCapacity  = 10
	minPlayers    = 3
	maxWordLength = 50
	maxChatLength = 200
)

// GameState tracks where a room is in its lifecycle.
type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
	StateVoting  GameState = "voting"
	StateEnded   GameState = "ended"
)

type Role string

const (
	RoleNone     Role = ""
	RoleCitizen  Role = "citizen"
	RoleImpostor Role = "impostor"
)

// Player holds the data we store server-side for one connection.
type Player struct {
	ID            string
	Name          string
	IsHost        bool
	Role          Role
	Word          string
	HasVoted      bool
	Eliminated    bool
	RoleConfirmed bool
}

// TurnEntry records one submitted word; the room's history is append-only
// for the duration of a game.
type TurnEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Word       string `json:"word"`
	Turn       int    `json:"turn"`
	Round      int    `json:"round"`
}

// ChatMessage is an out-of-band message, accepted in any game state.
type ChatMessage struct {
	PlayerName string    `json:"playerName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// PlayerInfo is the redacted roster entry safe to broadcast to everyone.
type PlayerInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// RoomState is the redacted room view; it never carries roles, words or votes.
type RoomState struct {
	Code        string       `json:"code"`
	Players     []PlayerInfo `json:"players"`
	GameState   GameState    `json:"gameState"`
	PlayerCount int          `json:"playerCount"`
}

// RoleAssignment is what each player is told privately when a game starts.
// Word is empty for the impostor.
type RoleAssignment struct {
	PlayerID string
	Name     string
	Role     Role
	Word     string
}

// TurnResult is returned by submitWord: either the next player to prompt,
// or the completed round's history once the last active player has spoken.
type TurnResult struct {
	RoundComplete bool
	NextID        string
	NextName      string
	Turn          int
	History       []TurnEntry
}

type ConfirmResult struct {
	AllConfirmed bool
	Confirmed    int
	Total        int
}

// GameResult is the single-elimination ("vote") outcome: the game ends as
// soon as every roster player has voted once.
type GameResult struct {
	Winner       string            `json:"winner"`
	ImpostorID   string            `json:"impostorId"`
	ImpostorName string            `json:"impostorName"`
	AccusedID    string            `json:"accusedId"`
	Votes        map[string]string `json:"votes"`
	Word         string            `json:"word"`
}

type VoteResult struct {
	AllVotesIn bool
	Result     *GameResult
}

// RoundOutcome describes what happened once every active player voted:
// either an elimination that ends the game, or one that loops back into a
// fresh playing round.
type RoundOutcome struct {
	EliminatedID   string `json:"eliminatedId"`
	EliminatedName string `json:"eliminatedName"`
	GameOver       bool   `json:"gameOver"`
	Winner         string `json:"winner,omitempty"`
	ImpostorID     string `json:"impostorId,omitempty"`
	ImpostorName   string `json:"impostorName,omitempty"`
	Word           string `json:"word,omitempty"`
	Round          int    `json:"round"`
	NextID         string `json:"nextPlayerId,omitempty"`
	NextName       string `json:"nextPlayerName,omitempty"`
}

type RoundVoteResult struct {
	AllVotesIn bool
	Voted      int
	Active     int
	Outcome    *RoundOutcome
}

// Room owns the full state of one game session. Every mutation happens under
// the room mutex in a single step, so callers never observe a half-applied
// transition.
type Room struct {
	mu  sync.Mutex
	rng *rand.Rand

	code        string
	hostID      string
	players     []*Player
	state       GameState
	words       []string
	currentWord string
	impostorID  string
	votes       map[string]string
	voteOrder   []string
	turnHistory []TurnEntry
	currentTurn int
	chat        []ChatMessage
	round       int
	lastActive  time.Time
}

func newRoom(code, hostID, hostName string, words []string, rng *rand.Rand) *Room {
	return &Room{
		rng:    rng,
		code:   code,
		hostID: hostID,
		players: []*Player{{
			ID:     hostID,
			Name:   hostName,
			IsHost: true,
		}},
		state:      StateWaiting,
		words:      words,
		votes:      make(map[string]string),
		lastActive: time.Now(),
	}
}

func (r *Room) touchLocked() {
	r.lastActive = time.Now()
}

func (r *Room) findLocked(playerID string) *Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// activeLocked returns the non-eliminated players in roster order; this
// ordering defines the turn sequence within a round.
func (r *Room) activeLocked() []*Player {
	active := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if !p.Eliminated {
			active = append(active, p)
		}
	}
	return active
}

// addPlayer admits a new player while the room is still gathering.
func (r *Room) addPlayer(playerID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	if r.state != StateWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.players) >= roomCapacity {
		return ErrRoomFull
	}

	r.players = append(r.players, &Player{
		ID:   playerID,
		Name: name,
	})

	return nil
}

// removePlayer drops a player in any state (disconnects can happen at any
// time). If the host left and players remain, the first remaining roster
// entry is promoted. Returns whether the room is now empty.
func (r *Room) removePlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	dst := r.players[:0]
	for _, p := range r.players {
		if p.ID == playerID {
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst

	if len(r.players) == 0 {
		return true
	}

	hasHost := false
	for _, p := range r.players {
		if p.IsHost {
			hasHost = true
			break
		}
	}
	if !hasHost {
		r.players[0].IsHost = true
		r.hostID = r.players[0].ID
	}

	return false
}

// startGameBy deals a new game: one word drawn from the built-in pool plus
// any caller-supplied words, one player drawn as impostor, everyone else a
// citizen holding the word.
func (r *Room) startGameBy(callerID string, customWords []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	if callerID != r.hostID {
		return ErrNotHost
	}
	if r.state == StateEnded {
		return ErrGameEnded
	}
	if len(r.players) < minPlayers {
		return ErrNeedMorePlayers
	}

	pool := make([]string, 0, len(r.words)+len(customWords))
	pool = append(pool, r.words...)
	pool = append(pool, customWords...)
	r.currentWord = pool[r.rng.Intn(len(pool))]

	impostor := r.rng.Intn(len(r.players))
	r.impostorID = r.players[impostor].ID

	for i, p := range r.players {
		if i == impostor {
			p.Role = RoleImpostor
			p.Word = ""
		} else {
			p.Role = RoleCitizen
			p.Word = r.currentWord
		}
		p.HasVoted = false
		p.Eliminated = false
		p.RoleConfirmed = false
	}

	r.votes = make(map[string]string)
	r.voteOrder = nil
	r.turnHistory = nil
	r.currentTurn = 0
	r.round = 1
	r.state = StatePlaying

	return nil
}

// submitWord accepts one word from the player whose turn it is. Once the
// last active player has spoken, the room flips to voting and the full turn
// history is returned for broadcast.
func (r *Room) submitWord(playerID, word string) (TurnResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	if r.state != StatePlaying {
		return TurnResult{}, ErrNotYourTurn
	}

	active := r.activeLocked()
	if r.currentTurn >= len(active) || active[r.currentTurn].ID != playerID {
		return TurnResult{}, ErrNotYourTurn
	}

	word = strings.TrimSpace(word)
	if word == "" || utf8.RuneCountInString(word) > maxWordLength {
		return TurnResult{}, ErrInvalidWord
	}

	current := active[r.currentTurn]
	r.turnHistory = append(r.turnHistory, TurnEntry{
		PlayerID:   current.ID,
		PlayerName: current.Name,
		Word:       word,
		Turn:       r.currentTurn + 1,
		Round:      r.round,
	})
	r.currentTurn++

	if r.currentTurn >= len(active) {
		r.state = StateVoting
		r.votes = make(map[string]string)
		r.voteOrder = nil
		for _, p := range r.players {
			p.HasVoted = false
		}

		history := make([]TurnEntry, len(r.turnHistory))
		copy(history, r.turnHistory)

		return TurnResult{
			RoundComplete: true,
			History:       history,
		}, nil
	}

	next := active[r.currentTurn]

	return TurnResult{
		NextID:   next.ID,
		NextName: next.Name,
		Turn:     r.currentTurn + 1,
	}, nil
}

// addChatMessage appends to the immutable chat log; chat is a side channel
// and is not gated by game state or turn order.
func (r *Room) addChatMessage(playerName, text string) (ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxChatLength {
		return ChatMessage{}, ErrInvalidMessage
	}

	msg := ChatMessage{
		PlayerName: playerName,
		Text:       text,
		Timestamp:  time.Now(),
	}
	r.chat = append(r.chat, msg)

	return msg, nil
}

// confirmRole marks a player's role acknowledged. The caller decides what
// allConfirmed means; the room state does not change here.
func (r *Room) confirmRole(playerID string) (ConfirmResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	p := r.findLocked(playerID)
	if p == nil {
		return ConfirmResult{}, ErrPlayerNotFound
	}
	p.RoleConfirmed = true

	confirmed := 0
	for _, p := range r.players {
		if p.RoleConfirmed {
			confirmed++
		}
	}

	return ConfirmResult{
		AllConfirmed: confirmed == len(r.players),
		Confirmed:    confirmed,
		Total:        len(r.players),
	}, nil
}

// registerVote is the single-elimination path: every roster player votes
// once, and the game ends as soon as the last vote lands.
func (r *Room) registerVote(voterID, accusedID string) (VoteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	voter := r.findLocked(voterID)
	if voter == nil || voter.HasVoted {
		return VoteResult{}, ErrInvalidVote
	}

	voter.HasVoted = true
	r.recordVoteLocked(voterID, accusedID)

	for _, p := range r.players {
		if !p.HasVoted {
			return VoteResult{}, nil
		}
	}

	result := r.calculateResultsLocked()

	return VoteResult{
		AllVotesIn: true,
		Result:     &result,
	}, nil
}

func (r *Room) recordVoteLocked(voterID, accusedID string) {
	if _, ok := r.votes[voterID]; !ok {
		r.voteOrder = append(r.voteOrder, voterID)
	}
	r.votes[voterID] = accusedID
}

func (r *Room) calculateResultsLocked() GameResult {
	accusedID := tallyVotes(r.voteOrder, r.votes)

	winner := "impostor"
	if accusedID == r.impostorID {
		winner = "citizens"
	}

	impostorName := ""
	if p := r.findLocked(r.impostorID); p != nil {
		impostorName = p.Name
	}

	votes := make(map[string]string, len(r.votes))
	for k, v := range r.votes {
		votes[k] = v
	}

	r.state = StateEnded

	return GameResult{
		Winner:       winner,
		ImpostorID:   r.impostorID,
		ImpostorName: impostorName,
		AccusedID:    accusedID,
		Votes:        votes,
		Word:         r.currentWord,
	}
}

// submitVoteOnline is the round-based elimination path: only active players
// vote, the most-accused is eliminated, and the game either ends or loops
// back into a new playing round.
func (r *Room) submitVoteOnline(voterID, accusedID string) (RoundVoteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()

	if r.state != StateVoting {
		return RoundVoteResult{}, ErrInvalidVoter
	}

	voter := r.findLocked(voterID)
	if voter == nil || voter.Eliminated {
		return RoundVoteResult{}, ErrInvalidVoter
	}
	if voter.HasVoted {
		return RoundVoteResult{}, ErrAlreadyVoted
	}

	voter.HasVoted = true
	r.recordVoteLocked(voterID, accusedID)

	active := r.activeLocked()
	voted := 0
	for _, p := range active {
		if p.HasVoted {
			voted++
		}
	}

	res := RoundVoteResult{
		Voted:  voted,
		Active: len(active),
	}

	if voted < len(active) {
		return res, nil
	}

	outcome := r.resolveRoundLocked()
	res.AllVotesIn = true
	res.Outcome = &outcome

	return res, nil
}

// resolveRoundLocked tallies the open vote, eliminates the most-accused
// player, and evaluates the win condition: citizens win once no active
// player holds the impostor role; the impostor wins once at most two active
// players remain.
func (r *Room) resolveRoundLocked() RoundOutcome {
	accusedID := tallyVotes(r.voteOrder, r.votes)

	outcome := RoundOutcome{
		EliminatedID: accusedID,
		Round:        r.round,
	}

	if p := r.findLocked(accusedID); p != nil {
		p.Eliminated = true
		outcome.EliminatedName = p.Name
	}

	active := r.activeLocked()
	impostorAlive := false
	for _, p := range active {
		if p.Role == RoleImpostor {
			impostorAlive = true
			break
		}
	}

	switch {
	case !impostorAlive:
		outcome.GameOver = true
		outcome.Winner = "citizens"
	case len(active) <= 2:
		outcome.GameOver = true
		outcome.Winner = "impostor"
	}

	if outcome.GameOver {
		outcome.ImpostorID = r.impostorID
		if p := r.findLocked(r.impostorID); p != nil {
			outcome.ImpostorName = p.Name
		}
		outcome.Word = r.currentWord
		r.state = StateEnded

		return outcome
	}

	for _, p := range r.players {
		p.HasVoted = false
	}
	r.votes = make(map[string]string)
	r.voteOrder = nil
	r.currentTurn = 0
	r.round++
	r.state = StatePlaying

	outcome.NextID = active[0].ID
	outcome.NextName = active[0].Name

	return outcome
}

// tallyVotes counts how often each accused id appears and returns the id
// with the strictly highest count. On ties the accused id recorded earliest
// keeps the lead, matching the reference linear scan; order must be the
// voter ids in the order their votes landed.
func tallyVotes(order []string, votes map[string]string) string {
	counts := make(map[string]int, len(votes))
	seen := make([]string, 0, len(votes))

	for _, voter := range order {
		accused := votes[voter]
		if _, ok := counts[accused]; !ok {
			seen = append(seen, accused)
		}
		counts[accused]++
	}

	top := ""
	most := 0
	for _, accused := range seen {
		if counts[accused] > most {
			most = counts[accused]
			top = accused
		}
	}

	return top
}

// snapshot returns the view safe to broadcast to every player: roles, words
// and vote contents stay private.
func (r *Room) snapshot() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, PlayerInfo{
			ID:     p.ID,
			Name:   p.Name,
			IsHost: p.IsHost,
		})
	}

	return RoomState{
		Code:        r.code,
		Players:     players,
		GameState:   r.state,
		PlayerCount: len(r.players),
	}
}

// roleAssignments snapshots each player's private deal for unicast delivery.
func (r *Room) roleAssignments() []RoleAssignment {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RoleAssignment, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, RoleAssignment{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role,
			Word:     p.Word,
		})
	}

	return out
}

func (r *Room) playerIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}

	return ids
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActive
}
