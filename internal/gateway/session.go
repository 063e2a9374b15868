package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 16384
)

// session wraps one client connection. Outbound messages go through a
// buffered channel drained by writePump, so room broadcasts never block
// on a slow client.
type session struct {
	userID string
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	log    *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newSession(userID string, conn *websocket.Conn, log *zap.Logger) *session {
	return &session{
		userID: userID,
		conn:   conn,
		sendCh: make(chan []byte, 256),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Send marshals a response and queues it. Fire-and-forget: a full queue
// drops the message rather than stalling the sender.
func (s *session) Send(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal error", zap.String("user_id", s.userID), zap.Error(err))
		return
	}
	select {
	case s.sendCh <- data:
	default:
		s.log.Warn("send channel full, dropping message", zap.String("user_id", s.userID))
	}
}

// Close shuts the connection down; safe to call more than once. The
// actual teardown happens in writePump so queued frames (the eviction
// notice in particular) still reach the client first.
func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// drain flushes frames queued before Close was called.
func (s *session) drain() {
	for {
		select {
		case msg := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.sendCh:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.drain()
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
