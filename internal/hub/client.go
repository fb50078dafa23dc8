package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/token"
)

// Client wraps a single WebSocket connection. Its principal is nil until the
// CONNECT handshake authenticates it; anonymous clients stay connected but
// cannot subscribe or send.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// QueryToken is the bearer token captured from the upgrade request's
	// query string, consulted if the CONNECT frame carries none.
	QueryToken string

	mu        sync.RWMutex
	principal *token.Principal
	config    config.WebSocketConfig
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:     id,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: cfg,
	}
}

// Authenticate binds the validated principal to the connection.
func (c *Client) Authenticate(p *token.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = p
}

// Principal returns the authenticated principal, or nil for an anonymous
// connection.
func (c *Client) Principal() *token.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

// LoginID returns the authenticated login id, or "" for an anonymous
// connection.
func (c *Client) LoginID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.principal == nil {
		return ""
	}
	return c.principal.LoginID
}

// ReadPump reads frames from the connection and hands them to the handler.
// It unregisters the client when the connection drops.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump writes outbound frames and keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals and queues a frame for this connection. A full send
// buffer drops the frame rather than blocking the caller.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
		log.L().Warn().Str(log.FieldConnID, c.ID).Msg("send buffer full, dropping frame")
	}
	return nil
}
