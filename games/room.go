/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"sync"
	"time"
)

// Room serializes every event for one room code behind a single lock.
// Outbound messages are delivered while the lock is held, so all clients
// see a room's messages in the order the events were applied.
type Room struct {
	mu         sync.Mutex
	st         *state
	clients    map[*Client]struct{}
	createdAt  time.Time
	lastActive time.Time
	evicted    bool
}

func newRoom(code string, newID func() string) *Room {
	now := time.Now()
	return &Room{
		st:         newState(code, newID),
		clients:    make(map[*Client]struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) Code() string {
	return r.st.code
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.st.snapshot()
}

func (r *Room) Roster() []RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.st.roster()
}

func (r *Room) Asker() *AskerView {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.st.askerView()
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActive
}

// Clients returns the number of attached connections.
func (r *Room) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// apply runs fn under the room lock and fans out its envelopes
// when the action was accepted.
func (r *Room) apply(fn func(*state) (Result, []Envelope)) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, envs := fn(r.st)
	if res.Accepted {
		r.lastActive = time.Now()
		r.deliverLocked(envs)
	}

	return res
}

// attach adds c to the room and runs the join for its identity. The joining
// client alone receives the room meta and the open round after the roster.
func (r *Room) attach(c *Client, m Membership) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evicted {
		return Result{}, false
	}

	if r.st.name == "" {
		r.st.name = m.RoomName
	}

	name := m.DisplayName
	if name == "" {
		name = c.name
	}

	res, envs := r.st.join(c.identity, name)
	if !res.Accepted {
		return res, true
	}

	r.clients[c] = struct{}{}
	c.bind(r, m.Role)
	r.lastActive = time.Now()

	r.deliverLocked(envs)

	for _, env := range []Envelope{r.st.meta(c.identity, m.Role), r.st.sync(c.identity)} {
		if !c.trySend(env.Msg) {
			r.dropLocked(c)
		}
	}

	return res, true
}

// detach removes c and marks its identity disconnected once no other
// connection for that identity remains.
func (r *Room) detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, c)

	if r.evicted || r.connectedLocked(c.identity) {
		return
	}

	p, ok := r.st.participants[c.identity]
	if !ok || !p.Connected {
		return
	}

	r.lastActive = time.Now()
	_, envs := r.st.markDisconnected(c.identity)
	r.deliverLocked(envs)
}

func (r *Room) connectedLocked(identity string) bool {
	for c := range r.clients {
		if c.identity == identity {
			return true
		}
	}
	return false
}

func (r *Room) deliverLocked(envs []Envelope) {
	for _, env := range envs {
		for c := range r.clients {
			if env.To != "" && c.identity != env.To {
				continue
			}
			if !c.trySend(env.Msg) {
				r.dropLocked(c)
			}
		}
	}
}

// dropLocked disconnects a client that cannot keep up. The transport
// notices the closed channel and calls Gateway.Leave.
func (r *Room) dropLocked(c *Client) {
	delete(r.clients, c)
	c.Close()
}

// closeAll disconnects all clients of this room (used on eviction).
func (r *Room) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evicted = true
	for c := range r.clients {
		delete(r.clients, c)
		c.Close()
	}
}
