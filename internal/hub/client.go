package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zawrotmc/streamflow/internal/domain"
	pkglog "github.com/zawrotmc/streamflow/pkg/log"
)

var pongMessage, _ = json.Marshal(domain.PongMessage{Type: domain.MsgTypePong})

// Client is one connected subscriber.
type Client struct {
	ID    string
	Scope Scope
	// SessionID is the admin session the client authenticated with.
	SessionID string
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
}

// NewClient creates a subscriber for conn. Register it before starting the
// pumps. A non-empty sessionID gives the client the admin scope.
func NewClient(h *Hub, conn *websocket.Conn, sessionID string) *Client {
	scope := ScopeViewer
	if sessionID != "" {
		scope = ScopeAdmin
	}
	return &Client{
		ID:        uuid.New().String(),
		Scope:     scope,
		SessionID: sessionID,
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, h.config.SendBuffer),
	}
}

// HandleMessage answers a ping and ignores everything else, including
// malformed frames.
func (c *Client) HandleMessage(message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		return
	}
	if base.Type == domain.MsgTypePing {
		c.Hub.reply(c, pongMessage)
	}
}

// ReadPump reads from the connection until it fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	cfg := c.Hub.config
	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := pkglog.L()
				l.Warn().Err(err).Str(pkglog.FieldClientID, c.ID).Msg("websocket error")
			}
			return
		}
		c.HandleMessage(message)
	}
}

// WritePump drains Send to the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	cfg := c.Hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
