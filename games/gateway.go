/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
)

// Membership is what the external membership check knows about an
// identity in a room.
type Membership struct {
	IsMember    bool
	Role        Role
	RoomName    string
	DisplayName string
}

// MembershipChecker decides whether identity may join the room with code.
type MembershipChecker interface {
	CheckMembership(ctx context.Context, identity, code string) (Membership, error)
}

type Logger func(format string, args ...any)

func nopLogger(string, ...any) {}

// Gateway authorizes clients against room membership, attaches them to
// live rooms and dispatches their actions.
type Gateway struct {
	rooms    *Registry
	members  MembershipChecker
	feedback bool
	logf     Logger
}

type Option func(*Gateway)

// WithFeedback makes the gateway tell a client privately when one of its
// actions was refused for being out of turn or malformed. Unauthorized
// attempts are always answered.
func WithFeedback(on bool) Option {
	return func(g *Gateway) {
		g.feedback = on
	}
}

func WithLogger(l Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logf = l
		}
	}
}

func NewGateway(rooms *Registry, members MembershipChecker, opts ...Option) *Gateway {
	g := &Gateway{
		rooms:   rooms,
		members: members,
		logf:    nopLogger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Rooms() *Registry {
	return g.rooms
}

// Join checks membership and attaches c to the room's live state.
func (g *Gateway) Join(ctx context.Context, c *Client, code string) Result {
	code = NormalizeCode(code)

	if c.Room() != nil {
		return g.refuse(c, rejected(ReasonInvalidTransition))
	}
	if code == "" {
		return g.refuse(c, rejected(ReasonInvalidInput))
	}

	m, err := g.members.CheckMembership(ctx, c.identity, code)
	if err != nil {
		g.logf("Membership check for %s in %s failed: %v", c.identity, code, err)
		return g.refuse(c, rejected(ReasonUnauthorized))
	}
	if !m.IsMember {
		return g.refuse(c, rejected(ReasonUnauthorized))
	}

	for {
		room := g.rooms.GetOrCreate(code)

		res, ok := room.attach(c, m)
		if !ok {
			// evicted between lookup and attach
			continue
		}
		if !res.Accepted {
			return g.refuse(c, res)
		}

		g.logf("%s joined %s as %s", c.identity, code, m.Role)
		return res
	}
}

// Leave detaches c from its room, if any, and closes it.
func (g *Gateway) Leave(c *Client) {
	if room := c.unbind(); room != nil {
		room.detach(c)
		g.logf("%s left %s", c.identity, room.Code())
	}
	c.Close()
}

// Dispatch applies one inbound message from c.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, msg ClientMessage) Result {
	if msg.Type == TypeJoin {
		return g.Join(ctx, c, msg.Code)
	}

	room, role := c.session()
	if room == nil {
		return g.refuse(c, rejected(ReasonUnauthorized))
	}

	id := c.identity

	var res Result
	switch msg.Type {
	case TypeStartGame:
		res = room.apply(func(s *state) (Result, []Envelope) { return s.startGame(id, role) })
	case TypeSubmitQuestion:
		res = room.apply(func(s *state) (Result, []Envelope) { return s.submitQuestion(id, msg.Text) })
	case TypeSubmitResponse:
		res = room.apply(func(s *state) (Result, []Envelope) { return s.submitResponse(id, msg.Text) })
	case TypeAwardPoints:
		res = room.apply(func(s *state) (Result, []Envelope) { return s.awardPoints(id, msg.ResponseID) })
	case TypeForceSkip, TypeForceNext:
		res = room.apply(func(s *state) (Result, []Envelope) { return s.forceSkip(id, role) })
	default:
		res = rejected(ReasonInvalidInput)
	}

	if !res.Accepted {
		g.logf("%s from %s in %s %s", msg.Type, id, room.Code(), res)
		return g.refuse(c, res)
	}

	return res
}

// refuse answers the caller alone. Only fixed text goes out, never round content.
func (g *Gateway) refuse(c *Client, res Result) Result {
	if res.Reason == ReasonUnauthorized || g.feedback {
		c.trySend(RejectedMessage{
			Type:    "rejected",
			Reason:  res.Reason,
			Message: res.message(),
		})
	}
	return res
}
