package websocket

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Renderers only send control frames.
	maxInboundSize = 512

	// Snapshots are whole states, so a short queue is enough.
	sendBuffer = 16
)

const clientModule = "WebSocketClient"

// Client is one renderer connection. It only ever receives snapshots.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userId uuid.UUID
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, userId uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userId: userId,
		send:   make(chan []byte, sendBuffer),
	}
}

// ServeWs registers conn with hub and blocks until the renderer goes away.
func ServeWs(hub *Hub, conn *websocket.Conn, userId uuid.UUID) {
	c := newClient(hub, conn, userId)
	hub.register <- c

	go c.writeLoop()
	c.readLoop()
}

// readLoop keeps the read deadline alive and notices the close frame.
// Inbound data frames are discarded.
func (c *Client) readLoop() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn(clientModule, "Unexpected close", map[string]interface{}{
					"user_id": c.userId,
					"error":   err.Error(),
				})
			}
			return
		}
	}
}

// latest drains whatever queued up behind msg and keeps the newest.
func (c *Client) latest(msg []byte) []byte {
	for {
		select {
		case next, ok := <-c.send:
			if !ok {
				return msg
			}
			msg = next
		default:
			return msg
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, c.latest(msg)); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug(clientModule, "Ping failed", map[string]interface{}{
					"user_id": c.userId,
					"error":   err.Error(),
				})
				return
			}
		}
	}
}
