package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/book-expert/voice-demo/internal/agent"
)

const (
	closeWriteTimeout = time.Second
	closeReasonBye    = "server shutting down"
)

const (
	logFmtUpgradeFailed   = "WebSocket upgrade failed: %v"
	logFmtSessionOpened   = "WebSocket session %s opened"
	logFmtSessionClosed   = "WebSocket session %s closed"
	logFmtSessionError    = "WebSocket session %s error: %v"
	logFmtWriteFailed     = "WebSocket session %s: failed to write frame: %v"
	errFmtMalformedFrame  = "malformed message: %w"
	errMsgBinaryFrame     = "expected a JSON text frame"
	logFmtCloseSessionErr = "WebSocket session %s: close failed: %v"
)

var errBinaryFrame = errors.New(errMsgBinaryFrame)

// handleWebSocket runs one conversation: a welcome frame, then one reply
// frame per message. Bad frames get an error frame and the session goes on.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(logFmtUpgradeFailed, err)

		return
	}

	session := s.newSession(nil)
	s.track(conn, session.SessionID())

	defer s.untrack(conn)

	s.log.Info(logFmtSessionOpened, session.SessionID())

	conn.SetReadLimit(maxSocketMessageBytes)

	if !s.writeFrame(conn, session.SessionID(), session.Welcome()) {
		return
	}

	for {
		messageType, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn(logFmtSessionError, session.SessionID(), readErr)
			}

			s.log.Info(logFmtSessionClosed, session.SessionID())

			return
		}

		reply := s.answerFrame(r, session, messageType, payload)

		if !s.writeFrame(conn, session.SessionID(), reply) {
			return
		}
	}
}

func (s *Server) answerFrame(r *http.Request, session *agent.Agent, messageType int, payload []byte) agent.Reply {
	if messageType != websocket.TextMessage {
		return agent.ErrorReply(errBinaryFrame)
	}

	var msg agent.Message

	decodeErr := json.Unmarshal(payload, &msg)
	if decodeErr != nil {
		return agent.ErrorReply(fmt.Errorf(errFmtMalformedFrame, decodeErr))
	}

	return session.ProcessMessage(r.Context(), msg)
}

func (s *Server) writeFrame(conn *websocket.Conn, sessionID string, reply agent.Reply) bool {
	err := conn.WriteJSON(reply)
	if err != nil {
		s.log.Warn(logFmtWriteFailed, sessionID, err)

		return false
	}

	return true
}

func (s *Server) track(conn *websocket.Conn, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[conn] = sessionID
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.sessions, conn)
	s.mu.Unlock()

	_ = conn.Close()
}

// closeSessions sends every live session a close frame and closes it, which
// unblocks the read loops. Runs on server shutdown.
func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	closeFrame := websocket.FormatCloseMessage(websocket.CloseGoingAway, closeReasonBye)

	for conn, sessionID := range s.sessions {
		// WriteControl may run alongside the session's own writer.
		err := conn.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(closeWriteTimeout))
		if err != nil {
			s.log.Warn(logFmtCloseSessionErr, sessionID, err)
		}

		_ = conn.Close()
	}
}
