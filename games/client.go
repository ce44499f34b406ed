package games

import "sync"

// Client is one live connection. A participant may have several.
type Client struct {
	identity string
	name     string
	send     chan any

	mu     sync.Mutex
	closed bool
	room   *Room
	role   Role
}

func NewClient(identity, name string, buffer int) *Client {
	return &Client{
		identity: identity,
		name:     name,
		send:     make(chan any, buffer),
	}
}

func (c *Client) Identity() string {
	return c.identity
}

// Messages is drained by the connection's write loop; it is closed
// when the client is closed or dropped for being too slow.
func (c *Client) Messages() <-chan any {
	return c.send
}

// Room returns the room this client joined, if any.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.room
}

func (c *Client) session() (*Room, Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.room, c.role
}

func (c *Client) bind(r *Room, role Role) {
	c.mu.Lock()
	c.room = r
	c.role = role
	c.mu.Unlock()
}

func (c *Client) unbind() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.room
	c.room = nil
	return r
}

// trySend never blocks; a full buffer reports false.
func (c *Client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
