package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	eventRoomSnapshot  = "roomSnapshot"
	eventRoomMembers   = "roomMembers"
	eventGameStarted   = "gameStarted"
	eventRoundInfo     = "roundInfo"
	eventRoundResolved = "roundResolved"
	eventStanding      = "standing"
	eventError         = "error"
)

type inboundMessage struct {
	Type   string `json:"type"`
	RoomID uint   `json:"room_id"`
	UserID uint   `json:"user_id"`
	Choice string `json:"choice"`
}

type outboundEvent struct {
	Type       string           `json:"type"`
	RoomID     uint             `json:"room_id,omitempty"`
	Members    []MemberInfo     `json:"members,omitempty"`
	Snapshot   *RoomSnapshot    `json:"snapshot,omitempty"`
	Round      *RoundInfo       `json:"round,omitempty"`
	Resolution *RoundResolution `json:"resolution,omitempty"`
	Standing   *Standing        `json:"standing,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type wsSession struct {
	id     string
	roomID uint
	userID uint
}

// wsHub tracks which connections belong to which room. A session is in
// at most one room; joining another room leaves the previous one.
type wsHub struct {
	mu       sync.Mutex
	rooms    map[uint]map[*websocket.Conn]struct{}
	sessions map[*websocket.Conn]*wsSession
}

func newWSHub() *wsHub {
	return &wsHub{
		rooms:    make(map[uint]map[*websocket.Conn]struct{}),
		sessions: make(map[*websocket.Conn]*wsSession),
	}
}

func (h *wsHub) Register(conn *websocket.Conn) *wsSession {
	session := &wsSession{id: uuid.NewString()}
	h.mu.Lock()
	h.sessions[conn] = session
	h.mu.Unlock()
	return session
}

func (h *wsHub) Join(conn *websocket.Conn, roomID, userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[conn]
	if !ok {
		return
	}
	if session.roomID != 0 && session.roomID != roomID {
		h.removeFromRoom(session.roomID, conn)
	}
	session.roomID = roomID
	session.userID = userID
	group := h.rooms[roomID]
	if group == nil {
		group = make(map[*websocket.Conn]struct{})
		h.rooms[roomID] = group
	}
	group[conn] = struct{}{}
}

func (h *wsHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if session, ok := h.sessions[conn]; ok && session.roomID != 0 {
		h.removeFromRoom(session.roomID, conn)
	}
	delete(h.sessions, conn)
	_ = conn.Close()
}

// removeFromRoom requires h.mu to be held.
func (h *wsHub) removeFromRoom(roomID uint, conn *websocket.Conn) {
	group := h.rooms[roomID]
	if group == nil {
		return
	}
	delete(group, conn)
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *wsHub) Send(conn *websocket.Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast delivers at most once per connected session. A failed write
// drops the connection and never the state change that triggered it.
func (h *wsHub) Broadcast(roomID uint, payload any) {
	h.mu.Lock()
	group := h.rooms[roomID]
	conns := make([]*websocket.Conn, 0, len(group))
	for conn := range group {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Remove(conn)
		}
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	session := s.hub.Register(conn)
	log.Printf("ws connected session=%s remote=%s", session.id, c.Request.RemoteAddr)
	go s.readWS(conn, session)
}

func (s *Server) readWS(conn *websocket.Conn, session *wsSession) {
	defer s.hub.Remove(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws disconnected session=%s error=%v", session.id, err)
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.Send(conn, outboundEvent{Type: eventError, Error: "malformed message"})
			continue
		}
		s.dispatchWS(conn, session, msg)
	}
}

// dispatchWS handles one inbound event. Failures are reported back to
// the sender and logged; they never tear down the session.
func (s *Server) dispatchWS(conn *websocket.Conn, session *wsSession, msg inboundMessage) {
	ctx := context.Background()
	switch msg.Type {
	case "join":
		snapshot, err := s.JoinRoom(ctx, msg.RoomID, msg.UserID)
		if err != nil {
			s.sendWSError(conn, session, msg, err)
			return
		}
		s.hub.Join(conn, msg.RoomID, msg.UserID)
		s.hub.Send(conn, outboundEvent{Type: eventRoomSnapshot, RoomID: msg.RoomID, Snapshot: snapshot})
		s.broadcastMembers(ctx, msg.RoomID)
	case "startGame":
		if err := s.StartGame(ctx, msg.RoomID); err != nil {
			s.sendWSError(conn, session, msg, err)
		}
	case "roundInfo":
		info, err := s.CurrentRoundInfo(ctx, msg.RoomID)
		if err != nil {
			s.sendWSError(conn, session, msg, err)
			return
		}
		s.hub.Broadcast(msg.RoomID, outboundEvent{Type: eventRoundInfo, RoomID: msg.RoomID, Round: info})
	case "submitGuess":
		guesserID := msg.UserID
		if guesserID == 0 {
			guesserID = session.userID
		}
		if err := s.SubmitGuess(ctx, msg.RoomID, guesserID, msg.Choice); err != nil {
			s.sendWSError(conn, session, msg, err)
		}
	case "checkAnswers":
		resolution, err := s.ResolveRound(ctx, msg.RoomID)
		if err != nil {
			s.sendWSError(conn, session, msg, err)
			return
		}
		// Open the next round (or finish the game) before clients hear
		// the results, so a follow-up roundInfo request sees fresh state.
		if _, err := s.AdvanceRound(ctx, msg.RoomID); err != nil && !errors.Is(err, ErrNoMoreRounds) {
			log.Printf("ws advance failed session=%s room_id=%d error=%v", session.id, msg.RoomID, err)
		}
		s.hub.Broadcast(msg.RoomID, outboundEvent{Type: eventRoundResolved, RoomID: msg.RoomID, Resolution: resolution})
		s.broadcastStanding(ctx, msg.RoomID)
	case "requestStanding":
		s.broadcastStanding(ctx, msg.RoomID)
	default:
		s.hub.Send(conn, outboundEvent{Type: eventError, Error: "unknown message type"})
	}
}

func (s *Server) sendWSError(conn *websocket.Conn, session *wsSession, msg inboundMessage, err error) {
	log.Printf("ws request failed session=%s type=%s room_id=%d error=%v", session.id, msg.Type, msg.RoomID, err)
	s.hub.Send(conn, outboundEvent{Type: eventError, RoomID: msg.RoomID, Error: err.Error()})
}

func (s *Server) broadcastMembers(ctx context.Context, roomID uint) {
	members, err := s.ListMembers(ctx, roomID)
	if err != nil {
		log.Printf("broadcast members failed room_id=%d error=%v", roomID, err)
		return
	}
	s.hub.Broadcast(roomID, outboundEvent{Type: eventRoomMembers, RoomID: roomID, Members: members})
}

func (s *Server) broadcastStanding(ctx context.Context, roomID uint) {
	standing, err := s.CurrentStanding(ctx, roomID)
	if err != nil {
		log.Printf("broadcast standing failed room_id=%d error=%v", roomID, err)
		return
	}
	s.hub.Broadcast(roomID, outboundEvent{Type: eventStanding, RoomID: roomID, Standing: standing})
}
