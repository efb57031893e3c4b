/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// Domain errors are expected and recoverable; they are reported back to the
// originating caller only and never escape the action boundary as a panic.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrRoomFull           = errors.New("room is full")
	ErrNotHost            = errors.New("only host can start game")
	ErrNeedMorePlayers    = errors.New("need at least 3 players")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidWord        = errors.New("invalid word")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidVoter       = errors.New("invalid voter")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrGameEnded          = errors.New("game has ended")
)
