package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCreateRoomCode(t *testing.T) {
	gm := newGameManager(1, nil, 0)

	code := gm.createRoom("host", "Ana")
	if len(code) != roomCodeLength {
		t.Fatalf("expected a %d-character code, got %q", roomCodeLength, code)
	}
	for _, c := range code {
		if !strings.ContainsRune(codeLetters, c) {
			t.Errorf("code %q contains %q outside [A-Z0-9]", code, c)
		}
	}

	state, ok := gm.roomState(code)
	if !ok {
		t.Fatal("created room not found in registry")
	}
	if state.PlayerCount != 1 || !state.Players[0].IsHost || state.Players[0].Name != "Ana" {
		t.Errorf("unexpected initial state: %+v", state)
	}

	if gm.roomCount() != 1 {
		t.Errorf("expected 1 live room, got %d", gm.roomCount())
	}
}

func TestSeededManagersMatch(t *testing.T) {
	a := newGameManager(42, nil, 0)
	b := newGameManager(42, nil, 0)

	if ca, cb := a.createRoom("h", "Ana"), b.createRoom("h", "Ana"); ca != cb {
		t.Errorf("same seed should generate the same code: %q != %q", ca, cb)
	}
}

func TestJoinRoom(t *testing.T) {
	gm := newGameManager(1, nil, 0)
	code := gm.createRoom("host", "Ana")

	if err := gm.joinRoom("NOPE00", "p2", "Bea"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}

	if err := gm.joinRoom(code, "p2", "Bea"); err != nil {
		t.Fatalf("joinRoom: %v", err)
	}
	if err := gm.joinRoom(code, "p3", "Carla"); err != nil {
		t.Fatalf("joinRoom: %v", err)
	}

	state, _ := gm.roomState(code)
	if state.PlayerCount != 3 {
		t.Errorf("expected 3 players, got %d", state.PlayerCount)
	}

	if err := gm.startGame(code, "host", nil); err != nil {
		t.Fatalf("startGame: %v", err)
	}
	if err := gm.joinRoom(code, "p4", "Dani"); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Errorf("expected ErrGameAlreadyStarted, got %v", err)
	}
}

func TestJoinRoomFull(t *testing.T) {
	gm := newGameManager(1, nil, 0)
	code := gm.createRoom("p1", "Player 1")

	for i := 2; i <= roomCapacity; i++ {
		if err := gm.joinRoom(code, fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i)); err != nil {
			t.Fatalf("joinRoom %d: %v", i, err)
		}
	}

	if err := gm.joinRoom(code, "p11", "Player 11"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}

	state, _ := gm.roomState(code)
	if state.PlayerCount != roomCapacity {
		t.Errorf("roster size changed on rejected join: %d", state.PlayerCount)
	}
}

func TestStartGameErrors(t *testing.T) {
	gm := newGameManager(1, nil, 0)
	code := gm.createRoom("host", "Ana")

	if err := gm.startGame("NOPE00", "host", nil); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if err := gm.startGame(code, "host", nil); !errors.Is(err, ErrNeedMorePlayers) {
		t.Errorf("expected ErrNeedMorePlayers, got %v", err)
	}

	_ = gm.joinRoom(code, "p2", "Bea")
	_ = gm.joinRoom(code, "p3", "Carla")

	if err := gm.startGame(code, "p2", nil); !errors.Is(err, ErrNotHost) {
		t.Errorf("expected ErrNotHost, got %v", err)
	}
	if err := gm.startGame(code, "host", nil); err != nil {
		t.Errorf("startGame by host: %v", err)
	}
}

func TestRemovePlayerDeletesEmptyRoom(t *testing.T) {
	gm := newGameManager(1, nil, 0)
	code := gm.createRoom("host", "Ana")

	got, ok := gm.removePlayer("host")
	if !ok || got != code {
		t.Fatalf("expected removal to report room %q, got %q (%v)", code, got, ok)
	}

	if _, ok := gm.roomState(code); ok {
		t.Error("room should be deleted once its last player leaves")
	}
	if gm.roomCount() != 0 {
		t.Errorf("expected no live rooms, got %d", gm.roomCount())
	}

	// reverse index was cleared along with the room
	if _, ok := gm.removePlayer("host"); ok {
		t.Error("second removal of the same player should be a no-op")
	}
}

func TestRemovePlayerKeepsPopulatedRoom(t *testing.T) {
	gm := newGameManager(1, nil, 0)
	code := gm.createRoom("host", "Ana")
	_ = gm.joinRoom(code, "p2", "Bea")

	if _, ok := gm.removePlayer("host"); !ok {
		t.Fatal("expected removal to succeed")
	}

	state, ok := gm.roomState(code)
	if !ok {
		t.Fatal("room with a remaining player should survive")
	}
	if state.PlayerCount != 1 || !state.Players[0].IsHost || state.Players[0].ID != "p2" {
		t.Errorf("expected p2 promoted to host, got %+v", state)
	}
}

func TestRemoveUnknownPlayer(t *testing.T) {
	gm := newGameManager(1, nil, 0)

	if code, ok := gm.removePlayer("ghost"); ok || code != "" {
		t.Errorf("expected no-op for unknown player, got %q (%v)", code, ok)
	}
}

func TestDelegatesRequireRoom(t *testing.T) {
	gm := newGameManager(1, nil, 0)

	if _, err := gm.submitWord("NOPE00", "p1", "mar"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("submitWord: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := gm.addChatMessage("NOPE00", "Ana", "hola"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("addChatMessage: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := gm.confirmRole("NOPE00", "p1"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("confirmRole: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := gm.registerVote("NOPE00", "p1", "p2"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("registerVote: expected ErrRoomNotFound, got %v", err)
	}
	if _, err := gm.submitVoteOnline("NOPE00", "p1", "p2"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("submitVoteOnline: expected ErrRoomNotFound, got %v", err)
	}
}

// Full three-player session: join, start, one word each, unanimous vote
// against a citizen, which leaves only two active players and hands the
// impostor the win.
func TestThreePlayerSession(t *testing.T) {
	gm := newGameManager(7, nil, 0)

	code := gm.createRoom("a", "Ana")
	if err := gm.joinRoom(code, "b", "Bea"); err != nil {
		t.Fatalf("joinRoom: %v", err)
	}
	if err := gm.joinRoom(code, "c", "Carla"); err != nil {
		t.Fatalf("joinRoom: %v", err)
	}

	if err := gm.startGame(code, "a", []string{"Faro"}); err != nil {
		t.Fatalf("startGame: %v", err)
	}

	assignments, ok := gm.roleAssignments(code)
	if !ok {
		t.Fatal("roleAssignments: room missing")
	}
	impostor := ""
	names := make(map[string]string, len(assignments))
	for _, a := range assignments {
		names[a.PlayerID] = a.Name
		if a.Role == RoleImpostor {
			if impostor != "" {
				t.Fatal("more than one impostor assigned")
			}
			impostor = a.PlayerID
		}
	}
	if impostor == "" {
		t.Fatal("no impostor assigned")
	}

	order := []string{"a", "b", "c"}
	for i, id := range order {
		res, err := gm.submitWord(code, id, "palabra")
		if err != nil {
			t.Fatalf("submitWord %s: %v", id, err)
		}
		if i < len(order)-1 {
			if res.RoundComplete || res.NextID != order[i+1] {
				t.Fatalf("unexpected turn handoff after %s: %+v", id, res)
			}
		} else if !res.RoundComplete {
			t.Fatal("last word should complete the round")
		}
	}

	var citizen string
	for _, id := range order {
		if id != impostor {
			citizen = id
			break
		}
	}

	var last RoundVoteResult
	for _, id := range order {
		res, err := gm.submitVoteOnline(code, id, citizen)
		if err != nil {
			t.Fatalf("submitVoteOnline %s: %v", id, err)
		}
		last = res
	}

	if !last.AllVotesIn || last.Outcome == nil {
		t.Fatal("expected the final vote to resolve the round")
	}
	out := last.Outcome
	if out.EliminatedName != names[citizen] {
		t.Errorf("expected %q eliminated, got %q", names[citizen], out.EliminatedName)
	}
	if !out.GameOver || out.Winner != "impostor" {
		t.Errorf("two remaining players should end the game for the impostor, got %+v", out)
	}
}
