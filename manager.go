package main

import (
	"math/rand"
	"sync"
	"time"
)

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const roomCodeLength = 6

// GameManager owns every live room, keyed by join code, plus the reverse
// index from connection id to room code. It is an explicitly constructed
// service object so tests can run isolated registries side by side.
type GameManager struct {
	mu          sync.Mutex
	rng         *rand.Rand
	rooms       map[string]*Room
	playerRoom  map[string]string
	words       []string
	idleTimeout time.Duration
}

// newGameManager builds a registry seeded for word and impostor selection.
// The base word pool is the built-in list plus extraWords. An idleTimeout
// of zero disables the reaper.
func newGameManager(seed int64, extraWords []string, idleTimeout time.Duration) *GameManager {
	words := make([]string, 0, len(defaultWords)+len(extraWords))
	words = append(words, defaultWords...)
	words = append(words, extraWords...)

	gm := &GameManager{
		rng:         rand.New(rand.NewSource(seed)),
		rooms:       make(map[string]*Room),
		playerRoom:  make(map[string]string),
		words:       words,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}

	return gm
}

// newCodeLocked generates a join code, regenerating on collision with any
// live room. Collisions are vanishingly rare in a 36^6 keyspace but are
// still checked.
func (gm *GameManager) newCodeLocked() string {
	for {
		b := make([]byte, roomCodeLength)
		for i := range b {
			b[i] = codeLetters[gm.rng.Intn(len(codeLetters))]
		}
		code := string(b)

		if _, exists := gm.rooms[code]; !exists {
			return code
		}
	}
}

// createRoom opens a new room with the caller as host and returns its code.
func (gm *GameManager) createRoom(playerID, hostName string) string {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	code := gm.newCodeLocked()
	rng := rand.New(rand.NewSource(gm.rng.Int63()))

	gm.rooms[code] = newRoom(code, playerID, hostName, gm.words, rng)
	gm.playerRoom[playerID] = code

	return code
}

// joinRoom admits a player into an existing room that has not started yet.
func (gm *GameManager) joinRoom(code, playerID, name string) error {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	room, ok := gm.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	if err := room.addPlayer(playerID, name); err != nil {
		return err
	}
	gm.playerRoom[playerID] = code

	return nil
}

// startGame begins a game in the given room; only the current host may do so.
func (gm *GameManager) startGame(code, callerID string, customWords []string) error {
	room, ok := gm.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}

	return room.startGameBy(callerID, customWords)
}

func (gm *GameManager) submitWord(code, playerID, word string) (TurnResult, error) {
	room, ok := gm.getRoom(code)
	if !ok {
		return TurnResult{}, ErrRoomNotFound
	}

	return room.submitWord(playerID, word)
}

func (gm *GameManager) addChatMessage(code, playerName, text string) (ChatMessage, error) {
	room, ok := gm.getRoom(code)
	if !ok {
		return ChatMessage{}, ErrRoomNotFound
	}

	return room.addChatMessage(playerName, text)
}

func (gm *GameManager) confirmRole(code, playerID string) (ConfirmResult, error) {
	room, ok := gm.getRoom(code)
	if !ok {
		return ConfirmResult{}, ErrRoomNotFound
	}

	return room.confirmRole(playerID)
}

func (gm *GameManager) registerVote(code, voterID, accusedID string) (VoteResult, error) {
	room, ok := gm.getRoom(code)
	if !ok {
		return VoteResult{}, ErrRoomNotFound
	}

	return room.registerVote(voterID, accusedID)
}

func (gm *GameManager) submitVoteOnline(code, voterID, accusedID string) (RoundVoteResult, error) {
	room, ok := gm.getRoom(code)
	if !ok {
		return RoundVoteResult{}, ErrRoomNotFound
	}

	return room.submitVoteOnline(voterID, accusedID)
}

// removePlayer resolves the caller's room through the reverse index and
// drops them from it, deleting the room once its roster is empty. The
// returned code lets the caller decide what, if anything, to broadcast.
func (gm *GameManager) removePlayer(playerID string) (string, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	code, ok := gm.playerRoom[playerID]
	if !ok {
		return "", false
	}
	delete(gm.playerRoom, playerID)

	room, ok := gm.rooms[code]
	if !ok {
		return "", false
	}

	if room.removePlayer(playerID) {
		delete(gm.rooms, code)
	}

	return code, true
}

func (gm *GameManager) getRoom(code string) (*Room, bool) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	room, ok := gm.rooms[code]

	return room, ok
}

func (gm *GameManager) roomState(code string) (RoomState, bool) {
	room, ok := gm.getRoom(code)
	if !ok {
		return RoomState{}, false
	}

	return room.snapshot(), true
}

func (gm *GameManager) roleAssignments(code string) ([]RoleAssignment, bool) {
	room, ok := gm.getRoom(code)
	if !ok {
		return nil, false
	}

	return room.roleAssignments(), true
}

func (gm *GameManager) roomPlayers(code string) []string {
	room, ok := gm.getRoom(code)
	if !ok {
		return nil
	}

	return room.playerIDs()
}

func (gm *GameManager) roomCount() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.rooms)
}

// reaperLoop periodically deletes rooms that have been idle longer than
// idleTimeout, clearing their reverse-index entries as it goes.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for code, room := range gm.rooms {
			if !room.idleSince().Before(cutoff) {
				continue
			}

			for _, id := range room.playerIDs() {
				delete(gm.playerRoom, id)
			}
			delete(gm.rooms, code)
		}
		gm.mu.Unlock()
	}
}
