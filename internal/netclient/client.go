package netclient

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/strifelab/lobbyd/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 16384
)

// ServerMsg is a tea.Msg wrapping one frame from the lobby server.
type ServerMsg struct {
	Type    string
	Success bool
	Message string
	Data    json.RawMessage
}

// ConnectedMsg is sent once the server acknowledges authentication.
type ConnectedMsg struct {
	User protocol.UserInfo
}

// DisconnectedMsg is sent when the connection is lost.
type DisconnectedMsg struct {
	Err error
}

// Client manages the WebSocket connection to the lobby server.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	sendCh  chan []byte
	program *tea.Program
	done    chan struct{}
	closed  bool
}

// New dials the lobby server. The URL carries the auth token as a query
// parameter, e.g. ws://host:8080/ws?token=alice.
func New(serverURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		conn:   conn,
		sendCh: make(chan []byte, 256),
		done:   make(chan struct{}),
	}, nil
}

// SetProgram wires in the bubbletea program so readPump can deliver
// tea.Msgs.
func (c *Client) SetProgram(p *tea.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = p
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send marshals and sends a request to the server.
func (c *Client) Send(req protocol.Request) {
	data, err := json.Marshal(req)
	if err != nil {
		log.Printf("client marshal error: %v", err)
		return
	}
	select {
	case c.sendCh <- data:
	default:
		log.Printf("client send channel full, dropping message")
	}
}

// Close shuts down the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.conn.Close()
}

// readPump reads frames and forwards them to the bubbletea program.
func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		p := c.program
		c.mu.Unlock()
		if p != nil {
			p.Send(DisconnectedMsg{})
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			return
		}

		var resp struct {
			Type    string          `json:"type"`
			Success bool            `json:"success"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			log.Printf("client unmarshal error: %v", err)
			continue
		}

		c.mu.Lock()
		p := c.program
		c.mu.Unlock()
		if p == nil {
			continue
		}

		if resp.Type == protocol.PushConnection && resp.Success {
			var user protocol.UserInfo
			if json.Unmarshal(resp.Data, &user) == nil {
				p.Send(ConnectedMsg{User: user})
				continue
			}
		}
		p.Send(ServerMsg{
			Type:    resp.Type,
			Success: resp.Success,
			Message: resp.Message,
			Data:    resp.Data,
		})
	}
}

// writePump writes messages from sendCh to the WebSocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
