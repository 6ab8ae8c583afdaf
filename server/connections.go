package server

import (
	"sync"

	"nhooyr.io/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	if buffer <= 0 {
		buffer = 16
	}
	return &client{
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// enqueue never blocks; a full queue drops the message
func (c *client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close(code, reason)
	})
}

func (f *Feed) addConn(conn *websocket.Conn) *client {
	f.connsMu.Lock()
	defer f.connsMu.Unlock()

	c := newClient(conn, f.cfg.SendBuffer)
	f.conns[conn] = c
	return c
}

func (f *Feed) dropConn(c *client) {
	f.connsMu.Lock()
	delete(f.conns, c.conn)
	f.connsMu.Unlock()
}

func (f *Feed) snapshotConns() []*client {
	f.connsMu.Lock()
	defer f.connsMu.Unlock()

	out := make([]*client, 0, len(f.conns))
	for _, c := range f.conns {
		out = append(out, c)
	}
	return out
}

// ConnectionCount returns the number of connected clients
func (f *Feed) ConnectionCount() int {
	f.connsMu.Lock()
	defer f.connsMu.Unlock()
	return len(f.conns)
}

func (f *Feed) closeAll(reason string) {
	for _, c := range f.snapshotConns() {
		c.close(websocket.StatusGoingAway, reason)
	}
}
