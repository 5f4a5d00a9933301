package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection. Its send buffer is never closed;
// shutdown is signalled through closed so that a broadcast racing with a
// disconnect cannot panic.
type Client struct {
	conn *connWrapper
	Send chan *WSMessage
	ID   string

	// room the connection has joined; only touched by the read pump
	roomCode string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}

	return &Client{
		conn:   newConnWrapper(conn),
		Send:   make(chan *WSMessage, buffer),
		ID:     id,
		closed: make(chan struct{}),
	}
}

func (c *Client) RoomCode() string {
	return c.roomCode
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Enqueue offers msg without blocking and reports whether it was accepted.
func (c *Client) Enqueue(msg *WSMessage) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

type pumpTimings struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
}

// readPump hands every frame to handle until the connection fails.
func (c *Client) readPump(t pumpTimings, handle func(raw []byte), onError func(err error)) {
	conn := c.conn.conn
	conn.SetReadLimit(t.maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(t.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				onError(err)
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		handle(raw)
	}
}

func (c *Client) writePump(t pumpTimings, onError func(err error)) {
	ticker := time.NewTicker(t.pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			if err := c.conn.WriteJSON(msg, time.Now().Add(t.writeWait)); err != nil {
				onError(err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, time.Now().Add(t.writeWait)); err != nil {
				onError(err)
				return
			}

		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage, time.Now().Add(t.writeWait))
			return
		}
	}
}
