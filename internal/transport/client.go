// File: internal/transport/client.go
package transport

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/iyunix/go-roomchat/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendBufferSize = 64
)

// EventHandler receives every well-formed inbound event from a client.
type EventHandler func(client *Client, ev *Event)

// Client is one websocket connection bound to a room. A single writer
// goroutine consumes the send queue; the hub only ever enqueues.
type Client struct {
	ConnID   string
	RoomID   string
	Identity domain.Identity

	conn   *websocket.Conn
	send   chan []byte
	logger Logger
}

func NewClient(connID, roomID string, identity domain.Identity, conn *websocket.Conn, logger Logger) *Client {
	return &Client{
		ConnID:   connID,
		RoomID:   roomID,
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		logger:   logger,
	}
}

// ReadPump reads frames until the connection drops, decoding each one
// and handing it to the handler. Malformed frames are dropped with a
// log line, never fatal. Blocks; run as the connection's goroutine.
func (c *Client) ReadPump(handler EventHandler, onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("unexpected close", "conn_id", c.ConnID, "error", err)
			}
			return
		}

		ev, err := Decode(data)
		if err != nil {
			c.logger.Debug("dropping malformed frame", "conn_id", c.ConnID, "error", err)
			continue
		}
		handler(c, ev)
	}
}

// WritePump drains the send queue onto the wire and keeps the
// connection alive with pings. Exits when the hub closes the queue.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
