// El Impostor
//
// A social-deduction word game for 3-10 players. The host opens a room and
// shares its six-character code; everyone else joins with it. When the game
// starts, one player is secretly dealt the impostor role and receives no
// word, while every citizen receives the same secret word. Players take
// turns submitting a single word each, then vote on who they think is
// bluffing. In the round-based mode the most-accused player is eliminated
// each round until the impostor is caught or only two players remain.
//
// Features:
// - Single WebSocket endpoint at /ws; one connection is one player
// - Opaque player ids minted per connection, no accounts
// - Room codes drawn from [A-Z0-9], checked for collisions server-side
// - Roles and words unicast privately; broadcasts carry a redacted roster
// - Free-form chat alongside the turn loop
// - Both the classic single-vote ending and round-based eliminations
// - In-browser QR code to share a room's join link, backed by go-qrcode
// - Idle rooms auto-reaped after a configurable timeout

package main

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type        string   `json:"type"`                  // "create-room", "join-room", "start-game", "submit-word", "send-chat-message", "submit-vote-online", "confirm-role", "vote"
	PlayerName  string   `json:"playerName,omitempty"`  // create-room / join-room / send-chat-message
	RoomCode    string   `json:"roomCode,omitempty"`    // every action except create-room
	Word        string   `json:"word,omitempty"`        // submit-word
	Text        string   `json:"text,omitempty"`        // send-chat-message
	AccusedID   string   `json:"accusedId,omitempty"`   // submit-vote-online / vote
	CustomWords []string `json:"customWords,omitempty"` // start-game
}

// Sent once on connect so the client knows its opaque id.
type ConnectedMessage struct {
	Type     string `json:"type"` // "connected"
	PlayerID string `json:"playerId"`
}

type RoomCreatedMessage struct {
	Type       string `json:"type"` // "room-created"
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

// RoomUpdateMessage carries the redacted room view after roster changes.
type RoomUpdateMessage struct {
	Type string    `json:"type"` // "room-update"
	Room RoomState `json:"room"`
}

// GameStartedMessage is unicast per player; Word is empty for the impostor.
type GameStartedMessage struct {
	Type      string    `json:"type"` // "game-started"
	Role      Role      `json:"role"`
	Word      string    `json:"word,omitempty"`
	GameState GameState `json:"gameState"`
}

// NextTurnMessage is the authoritative "whose turn is it" signal.
type NextTurnMessage struct {
	Type       string `json:"type"` // "next-turn"
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Turn       int    `json:"turn"`
}

type RoundCompleteMessage struct {
	Type      string      `json:"type"` // "round-complete"
	History   []TurnEntry `json:"history"`
	GameState GameState   `json:"gameState"`
}

type ChatBroadcastMessage struct {
	Type    string      `json:"type"` // "chat-message"
	Message ChatMessage `json:"message"`
}

type RoleConfirmedMessage struct {
	Type         string `json:"type"` // "role-confirmed"
	PlayerID     string `json:"playerId"`
	AllConfirmed bool   `json:"allConfirmed"`
	Confirmed    int    `json:"confirmed"`
	Total        int    `json:"total"`
}

type VoteProgressMessage struct {
	Type    string `json:"type"` // "vote-progress"
	VoterID string `json:"voterId"`
	Voted   int    `json:"voted"`
	Active  int    `json:"active"`
}

// RoundResultMessage reports an elimination; when Outcome.GameOver is set it
// also reveals the impostor and the word.
type RoundResultMessage struct {
	Type    string       `json:"type"` // "round-result"
	Outcome RoundOutcome `json:"outcome"`
}

type VoteRegisteredMessage struct {
	Type    string `json:"type"` // "vote-registered"
	VoterID string `json:"voterId"`
}

type GameEndedMessage struct {
	Type   string     `json:"type"` // "game-ended"
	Result GameResult `json:"result"`
}

// ErrorMessage is sent only to the caller whose action was rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Action  string `json:"action"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsServer bridges connections to the game registry: inbound actions are
// resolved through the GameManager, and the returned results are fanned out
// as unicasts or room broadcasts.
type wsServer struct {
	cfg *Config
	gm  *GameManager

	mu      sync.Mutex
	clients map[string]*Client // playerID -> client
}

func newWSServer(cfg *Config, gm *GameManager) *wsServer {
	return &wsServer{
		cfg:     cfg,
		gm:      gm,
		clients: make(map[string]*Client),
	}
}

func (s *wsServer) register(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.playerID] = c
}

func (s *wsServer) unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[c.playerID]; ok {
		delete(s.clients, c.playerID)
		close(c.send)
	}
}

// sendLocked drops the client if its buffer is full rather than blocking
// the whole room.
func (s *wsServer) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(s.clients, c.playerID)
		close(c.send)
	}
}

func (s *wsServer) unicast(playerID string, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[playerID]; ok {
		s.sendLocked(c, msg)
	}
}

func (s *wsServer) broadcast(roomCode string, msg any) {
	ids := s.gm.roomPlayers(roomCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if c, ok := s.clients[id]; ok {
			s.sendLocked(c, msg)
		}
	}
}

func (s *wsServer) reject(c *Client, action string, err error) {
	s.unicast(c.playerID, ErrorMessage{
		Type:    "error",
		Action:  action,
		Message: err.Error(),
	})
}

func (s *wsServer) handleMessage(c *Client, msg ClientMessage) {
	code := strings.ToUpper(strings.TrimSpace(msg.RoomCode))

	switch msg.Type {
	case "create-room":
		roomCode := s.gm.createRoom(c.playerID, msg.PlayerName)
		s.unicast(c.playerID, RoomCreatedMessage{
			Type:       "room-created",
			RoomCode:   roomCode,
			PlayerName: msg.PlayerName,
		})
		if state, ok := s.gm.roomState(roomCode); ok {
			s.unicast(c.playerID, RoomUpdateMessage{Type: "room-update", Room: state})
		}
		logf(s.cfg, "ROOMS: %q created room %s", msg.PlayerName, roomCode)

	case "join-room":
		if err := s.gm.joinRoom(code, c.playerID, msg.PlayerName); err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		if state, ok := s.gm.roomState(code); ok {
			s.broadcast(code, RoomUpdateMessage{Type: "room-update", Room: state})
		}
		logf(s.cfg, "ROOMS: %q joined room %s", msg.PlayerName, code)

	case "start-game":
		if err := s.gm.startGame(code, c.playerID, msg.CustomWords); err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		assignments, ok := s.gm.roleAssignments(code)
		if !ok {
			return
		}
		for _, a := range assignments {
			s.unicast(a.PlayerID, GameStartedMessage{
				Type:      "game-started",
				Role:      a.Role,
				Word:      a.Word,
				GameState: StatePlaying,
			})
		}
		logf(s.cfg, "GAMES: Game started in room %s", code)

	case "submit-word":
		res, err := s.gm.submitWord(code, c.playerID, msg.Word)
		if err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		if res.RoundComplete {
			s.broadcast(code, RoundCompleteMessage{
				Type:      "round-complete",
				History:   res.History,
				GameState: StateVoting,
			})
			return
		}
		s.broadcast(code, NextTurnMessage{
			Type:       "next-turn",
			PlayerID:   res.NextID,
			PlayerName: res.NextName,
			Turn:       res.Turn,
		})

	case "send-chat-message":
		chat, err := s.gm.addChatMessage(code, msg.PlayerName, msg.Text)
		if err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		s.broadcast(code, ChatBroadcastMessage{Type: "chat-message", Message: chat})

	case "submit-vote-online":
		res, err := s.gm.submitVoteOnline(code, c.playerID, msg.AccusedID)
		if err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		s.broadcast(code, VoteProgressMessage{
			Type:    "vote-progress",
			VoterID: c.playerID,
			Voted:   res.Voted,
			Active:  res.Active,
		})
		if res.AllVotesIn {
			s.broadcast(code, RoundResultMessage{Type: "round-result", Outcome: *res.Outcome})
			if res.Outcome.GameOver {
				logf(s.cfg, "GAMES: Room %s ended, winner %s", code, res.Outcome.Winner)
			}
		}

	case "confirm-role":
		res, err := s.gm.confirmRole(code, c.playerID)
		if err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		s.broadcast(code, RoleConfirmedMessage{
			Type:         "role-confirmed",
			PlayerID:     c.playerID,
			AllConfirmed: res.AllConfirmed,
			Confirmed:    res.Confirmed,
			Total:        res.Total,
		})

	case "vote":
		res, err := s.gm.registerVote(code, c.playerID, msg.AccusedID)
		if err != nil {
			s.reject(c, msg.Type, err)
			return
		}
		s.broadcast(code, VoteRegisteredMessage{Type: "vote-registered", VoterID: c.playerID})
		if res.AllVotesIn {
			s.broadcast(code, GameEndedMessage{Type: "game-ended", Result: *res.Result})
			logf(s.cfg, "GAMES: Room %s ended, winner %s", code, res.Result.Winner)
		}

	default:
		// ignore unknown types
	}
}

// disconnect removes the player from their room, broadcasting the updated
// roster unless the room disappeared with them.
func (s *wsServer) disconnect(c *Client) {
	code, ok := s.gm.removePlayer(c.playerID)
	if !ok {
		return
	}

	if state, exists := s.gm.roomState(code); exists {
		s.broadcast(code, RoomUpdateMessage{Type: "room-update", Room: state})
	}
	logf(s.cfg, "ROOMS: Player %s disconnected from room %s", c.playerID, code)
}

func serveWS(cfg *Config, s *wsServer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: uuid.NewString(),
		}

		s.register(client)
		s.unicast(client.playerID, ConnectedMessage{Type: "connected", PlayerID: client.playerID})

		go client.writePump()
		client.readPump(s)
	}
}

func (c *Client) readPump(s *wsServer) {
	defer func() {
		s.unregister(c)
		s.disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		s.handleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code pointing at the join link for a room,
// so co-located players can scan their way in. Only live rooms get a code.
func qrHandler(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToUpper(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}
		if _, ok := gm.roomState(code); !ok {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?room=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerImpostorGame sets up routes so that:
//   - /ws                → WebSocket carrying every game action
//   - /join/:code/qr     → PNG QR code linking to the room's join page
func registerImpostorGame(cfg *Config, gm *GameManager, mux *httprouter.Router) {
	s := newWSServer(cfg, gm)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, s))

	mux.GET(cfg.prefix+"/join/:code/qr", qrHandler(cfg, gm))
}
