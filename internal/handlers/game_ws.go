// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mbeaudry/quarte/internal/game"
	"github.com/mbeaudry/quarte/internal/middleware"
	"github.com/mbeaudry/quarte/internal/models"
	"github.com/mbeaudry/quarte/internal/reconnect"
)

// SessionMessage is the shape of incoming WebSocket messages during a
// session. Type maps onto an action kind; the optional fields carry the
// kind's payload.
type SessionMessage struct {
	Type string `json:"type"`

	Team       *int         `json:"team,omitempty"`
	TargetName string       `json:"targetName,omitempty"`
	Bet        *models.Bet  `json:"bet,omitempty"`
	Card       *models.Card `json:"card,omitempty"`
}

// sessionHub tracks the live connections of one session: seated players
// keyed by connection id, plus read-only spectators.
type sessionHub struct {
	mu         sync.Mutex
	conns      map[uuid.UUID]*websocket.Conn
	spectators map[uuid.UUID]*websocket.Conn
}

func newSessionHub() *sessionHub {
	return &sessionHub{
		conns:      make(map[uuid.UUID]*websocket.Conn),
		spectators: make(map[uuid.UUID]*websocket.Conn),
	}
}

func (h *sessionHub) addPlayer(id uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

func (h *sessionHub) removePlayer(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func (h *sessionHub) addSpectator(id uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.spectators[id] = c
}

func (h *sessionHub) removeSpectator(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.spectators, id)
}

func (h *sessionHub) get(id uuid.UUID) *websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[id]
}

// all returns every live connection, players and spectators.
func (h *sessionHub) all() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*websocket.Conn, 0, len(h.conns)+len(h.spectators))
	for _, c := range h.conns {
		out = append(out, c)
	}
	for _, c := range h.spectators {
		out = append(out, c)
	}
	return out
}

// SessionWSHandler upgrades the HTTP connection to WebSocket for a specific
// session. Three entry modes share the endpoint: ?name= joins as a new
// player, ?token= resumes a seat, ?spectate=1 watches.
func SessionWSHandler(logger *logrus.Logger, srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/session/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "Missing session_id in path (/session/ws/{session_id})", http.StatusBadRequest)
			return
		}
		sessionID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "Invalid session_id format", http.StatusBadRequest)
			return
		}

		if srv.Admission != nil && !srv.Admission.Allow(r) {
			http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
			return
		}

		s, ok := srv.Registry.Get(sessionID)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		hub := srv.hub(sessionID)
		if hub == nil {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}

		name := r.URL.Query().Get("name")
		token := r.URL.Query().Get("token")
		spectate := r.URL.Query().Get("spectate") != ""

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"quarte"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for session %s: %v", sessionID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "quarte" {
			c.Close(websocket.StatusPolicyViolation, "Client must use the 'quarte' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, sessionID.String())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if spectate {
			srv.runSpectator(ctx, c, s, hub)
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, sessionID.String(), nil)
			return
		}

		connID := uuid.New()

		switch {
		case token != "":
			target, seatName, err := srv.Reconnect.Validate(ctx, token)
			if err != nil {
				srv.rejectResume(ctx, c, s, err)
				return
			}
			if target.ID != sessionID {
				sendWsError(ctx, c, "Token belongs to a different session.")
				c.Close(websocket.StatusPolicyViolation, "Token mismatch.")
				return
			}
			hub.addPlayer(connID, c)
			srv.Registry.CancelTeardown(sessionID)
			if err := s.HandleReconnect(seatName, connID); err != nil {
				hub.removePlayer(connID)
				sendWsError(ctx, c, err.Error())
				c.Close(websocket.StatusPolicyViolation, "Resume failed.")
				return
			}
			name = seatName
			logger.Infof("Seat %s resumed session %s", seatName, sessionID)

		case name != "":
			hub.addPlayer(connID, c)
			srv.Registry.CancelTeardown(sessionID)
			if err := s.AddPlayer(connID, name); err != nil {
				hub.removePlayer(connID)
				sendWsError(ctx, c, err.Error())
				c.Close(websocket.StatusPolicyViolation, "Join failed.")
				return
			}
			signed, err := srv.Reconnect.Issue(ctx, sessionID, name)
			if err != nil {
				logger.Errorf("Failed to issue resume token for %s in session %s: %v", name, sessionID, err)
			} else {
				sendWsMessage(ctx, c, map[string]string{"type": "session_token", "token": signed})
			}
			logger.Infof("Player %s joined session %s", name, sessionID)

		default:
			sendWsError(ctx, c, "Provide ?name= to join or ?token= to resume.")
			c.Close(websocket.StatusPolicyViolation, "Missing identity.")
			return
		}

		readSessionMessages(ctx, c, s, connID, logger)

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, sessionID.String(), nil)
		logger.Infof("Player %s read loop exited for session %s", name, sessionID)
		hub.removePlayer(connID)
		s.HandleDisconnect(connID)
	}
}

// rejectResume answers a failed token validation with a precise reason and
// closes the socket.
func (srv *Server) rejectResume(ctx context.Context, c *websocket.Conn, s *game.Session, err error) {
	reason := "resume_failed"
	switch {
	case errors.Is(err, reconnect.ErrTokenExpired):
		reason = "token_expired"
	case errors.Is(err, reconnect.ErrTokenInvalid):
		reason = "token_invalid"
	case errors.Is(err, reconnect.ErrGameNotFound):
		reason = "session_gone"
	case errors.Is(err, reconnect.ErrSeatConverted):
		reason = "seat_converted"
	case errors.Is(err, reconnect.ErrSeatEmpty):
		reason = "seat_vacated"
	case errors.Is(err, reconnect.ErrGameConcluded):
		reason = "session_concluded"
	}
	sendWsMessage(ctx, c, map[string]string{
		"type":   string(game.EventReconnectionFailed),
		"reason": reason,
	})
	c.Close(websocket.StatusPolicyViolation, reason)
}

// runSpectator registers a read-only connection: it receives the public
// view immediately and every public broadcast after, and its inbound
// messages are drained and ignored.
func (srv *Server) runSpectator(ctx context.Context, c *websocket.Conn, s *game.Session, hub *sessionHub) {
	specID := uuid.New()
	hub.addSpectator(specID, c)
	defer hub.removeSpectator(specID)

	sendWsMessage(ctx, c, game.Event{Type: game.EventPrivateStateSync, State: s.ViewStateFor(uuid.Nil)})

	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}

// createBroadcastFunc returns a function suitable for Session.BroadcastFn.
// It is called while the session lock is held, so the write happens
// asynchronously against the hub's own lock.
func (srv *Server) createBroadcastFunc(s *game.Session) func(ev game.Event) {
	return func(ev game.Event) {
		hub := srv.hub(s.ID)
		if hub == nil {
			return
		}
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			srv.Logger.Errorf("Failed to marshal broadcast event (%s) for session %s: %v", ev.Type, s.ID, err)
			return
		}
		conns := hub.all()
		go func(conns []*websocket.Conn, data []byte) {
			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					srv.Logger.Warnf("Failed to write broadcast message in session %s: %v", s.ID, err)
				}
			}
		}(conns, msgBytes)
	}
}

// createBroadcastToPlayerFunc returns a function suitable for
// Session.BroadcastToPlayerFn. Also called while the session lock is held.
func (srv *Server) createBroadcastToPlayerFunc(s *game.Session) func(connID uuid.UUID, ev game.Event) {
	return func(connID uuid.UUID, ev game.Event) {
		hub := srv.hub(s.ID)
		if hub == nil {
			return
		}
		conn := hub.get(connID)
		if conn == nil {
			return
		}
		msgBytes, err := json.Marshal(ev)
		if err != nil {
			srv.Logger.Errorf("Failed to marshal private event (%s) for session %s: %v", ev.Type, s.ID, err)
			return
		}
		go func(conn *websocket.Conn, data []byte) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				srv.Logger.Warnf("Failed to write private message in session %s: %v", s.ID, err)
			}
		}(conn, msgBytes)
	}
}

// readSessionMessages reads client messages, normalizes them into actions,
// and pushes them through the session's validated entry point. It exits on
// error or context cancellation.
func readSessionMessages(ctx context.Context, c *websocket.Conn, s *game.Session, connID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for conn %s in session %s.", connID, s.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for conn %s in session %s.", connID, s.ID)
			} else {
				logger.Warnf("Error reading from WebSocket for conn %s in session %s: %v (Status: %d)", connID, s.ID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from conn %s in session %s. Ignoring.", msgType, connID, s.ID)
			continue
		}

		var msg SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON from conn %s in session %s: %v. Data: %s", connID, s.ID, err, string(data))
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		logger.Debugf("Received action '%s' from conn %s in session %s.", msg.Type, connID, s.ID)

		if msg.Type == "ping" {
			sendWsMessage(ctx, c, map[string]string{"type": "pong"})
			continue
		}

		act, ok := normalizeMessage(msg)
		if !ok {
			logger.Warnf("Unknown action type '%s' from conn %s in session %s.", msg.Type, connID, s.ID)
			sendWsError(ctx, c, fmt.Sprintf("Unknown action type: %s", msg.Type))
			continue
		}

		// Rejections are reported to the actor by the session itself via
		// action_rejected; nothing more to do here.
		s.ApplyAction(connID, act)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// normalizeMessage maps a wire message onto the closed action set.
func normalizeMessage(msg SessionMessage) (models.Action, bool) {
	kind := models.ActionKind(msg.Type)
	switch kind {
	case models.ActionSelectTeam, models.ActionSwapSeat, models.ActionStartMatch,
		models.ActionPlaceBet, models.ActionPlayCard, models.ActionSignalReady,
		models.ActionVoteRematch, models.ActionLeave:
		return models.Action{
			Kind:       kind,
			Team:       msg.Team,
			TargetName: msg.TargetName,
			Bet:        msg.Bet,
			Card:       msg.Card,
		}, true
	}
	return models.Action{}, false
}

// sendWsMessage marshals a message and sends it to the WebSocket client.
// Includes logging for errors and uses a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, message interface{}) {
	if c == nil {
		log.Println("Error: Attempted to send WebSocket message on nil connection.")
		return
	}
	msgBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling WebSocket message: %v", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = c.Write(writeCtx, websocket.MessageText, msgBytes)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Error writing WebSocket message: %v (Status: %d)", err, status)
		} else if strings.Contains(err.Error(), "context deadline exceeded") {
			log.Printf("Timeout writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, errorMsg string) {
	sendWsMessage(ctx, c, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
