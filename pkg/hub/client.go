package hub

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client is one connected renderer
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	addr string
	send chan Message

	sent    atomic.Uint64
	skipped atomic.Uint64 // Previews missed on a full queue
}

// NewClient creates a client for conn. Run registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		c.addr = addr.String()
	}
	return c
}

// Run registers the client, starts the write pump and blocks in the read
// pump until the connection closes. It returns at once when the hub has
// stopped.
func (c *Client) Run() {
	if !c.hub.join(c) {
		c.conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

// offer queues m without blocking. It reports false when the client must be
// dropped: its queue is full and m is not optional.
func (c *Client) offer(m Message) bool {
	select {
	case c.send <- m:
		return true
	default:
		if m.Optional() {
			c.skipped.Add(1)
			return true
		}
		return false
	}
}

// readPump reads until the connection closes. Renderers send nothing the
// server acts on; reading keeps pong handling and disconnect detection alive.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			wsType := websocket.TextMessage
			if message.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(wsType, message.Data); err != nil {
				return
			}
			c.sent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
