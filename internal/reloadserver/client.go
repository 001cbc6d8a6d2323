// SPDX-License-Identifier: MPL-2.0

package reloadserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// client is one WebSocket connection with its own send queue. Only the
// write loop writes data frames to conn.
type client struct {
	id           uuid.UUID
	conn         *websocket.Conn
	send         chan Message
	writeTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int, writeTimeout time.Duration) *client {
	return &client{
		id:           uuid.New(),
		conn:         conn,
		send:         make(chan Message, buffer),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// enqueue reports false when the queue is full or the client is closed.
func (c *client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() error {
	for {
		select {
		case <-c.done:
			return nil
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return err
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

// shutdown sends a close frame and closes the connection once.
func (c *client) shutdown(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		// WriteControl may be called concurrently with the write loop.
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.conn.Close()
	})
}
