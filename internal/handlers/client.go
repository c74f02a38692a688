package handlers

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong before the connection is
	// considered dead.
	pongWait = 60 * time.Second
	// Ping interval; must be less than pongWait.
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsClient wraps one websocket connection with a buffered write pump and
// exactly-once close semantics. It implements rooms.Conn, so the registry
// can fan out to it and kick it without knowing about websockets.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	once        sync.Once
	closeCode   int
	closeReason string
}

func newWSClient(id string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

// Send enqueues v for the write pump. It never blocks: a dead client or a
// full buffer is an error, which the registry treats as a transport failure
// on this one connection.
func (c *wsClient) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errSendBufferFull
	}
}

// Kick schedules an abnormal close with the given code and reason. Only the
// first call wins; the write pump flushes queued messages, sends the close
// frame, and drops the transport, which makes the read loop run its cleanup.
func (c *wsClient) Kick(code int, reason string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// writePump owns all writes to the connection: queued messages, keep-alive
// pings, and the final close frame. It exits when the client is kicked or
// the transport fails, closing the connection either way.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flushAndClose()
			return
		}
	}
}

// flushAndClose drains anything queued before Kick, then sends the close
// frame so the peer sees the reason before the transport drops.
func (c *wsClient) flushAndClose() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeReason))
			return
		}
	}
}
