package games

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembers struct {
	roles map[string]Role // identity -> role, for every room
	err   error
}

func (f fakeMembers) CheckMembership(_ context.Context, identity, code string) (Membership, error) {
	if f.err != nil {
		return Membership{}, f.err
	}
	role, ok := f.roles[identity]
	if !ok {
		return Membership{}, nil
	}
	return Membership{IsMember: true, Role: role, RoomName: "Room " + code}, nil
}

func newTestGateway(opts ...Option) *Gateway {
	members := fakeMembers{roles: map[string]Role{
		"A": RoleOwner,
		"B": RolePlayer,
		"C": RolePlayer,
		"D": RolePlayer,
	}}
	return NewGateway(NewRegistry(0), members, opts...)
}

// drain returns everything queued for c so far.
func drain(c *Client) []any {
	var out []any
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func ofType[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func joinAll(t *testing.T, g *Gateway, code string, ids ...string) map[string]*Client {
	t.Helper()

	clients := make(map[string]*Client)
	for _, id := range ids {
		c := NewClient(id, "name-"+id, 64)
		res := g.Join(context.Background(), c, code)
		require.True(t, res.Accepted, "join %s", id)
		clients[id] = c
	}
	for _, c := range clients {
		drain(c)
	}
	return clients
}

func TestGatewayJoinSendsRosterMetaAndSync(t *testing.T) {
	g := newTestGateway()

	a := NewClient("A", "Alice", 16)
	res := g.Join(context.Background(), a, " room1 ")
	require.True(t, res.Accepted)

	msgs := drain(a)
	require.Len(t, msgs, 3)

	roster := msgs[0].(RosterMessage)
	assert.Equal(t, []RosterEntry{{ID: "A", Name: "Alice", Connected: true}}, roster.Players)

	meta := msgs[1].(GameMetaMessage)
	assert.Equal(t, "ROOM1", meta.Code)
	assert.Equal(t, "Room ROOM1", meta.Name)
	assert.Equal(t, RoleOwner, meta.Role)
	assert.Equal(t, &AskerView{ID: "A", Name: "Alice"}, meta.Asker)

	assert.IsType(t, SyncMessage{}, msgs[2])

	b := NewClient("B", "Bob", 16)
	require.True(t, g.Join(context.Background(), b, "ROOM1").Accepted)

	// A only sees the roster update, not B's private meta
	msgs = drain(a)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].(RosterMessage).Players, 2)
}

func TestGatewayJoinUnauthorized(t *testing.T) {
	g := newTestGateway()

	a := joinAll(t, g, "R", "A")["A"]

	x := NewClient("X", "Mallory", 16)
	res := g.Join(context.Background(), x, "R")
	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Err(), ErrUnauthorized)

	msgs := drain(x)
	require.Len(t, msgs, 1)
	assert.Equal(t, ReasonUnauthorized, msgs[0].(RejectedMessage).Reason)

	assert.Empty(t, drain(a), "rejections are never broadcast")
	assert.Len(t, g.Rooms().GetOrCreate("R").Roster(), 1)
}

func TestGatewayJoinCheckerError(t *testing.T) {
	g := NewGateway(NewRegistry(0), fakeMembers{err: errors.New("db down")})

	c := NewClient("A", "A", 4)
	res := g.Join(context.Background(), c, "R")
	assert.Equal(t, ReasonUnauthorized, res.Reason)
	assert.Zero(t, g.Rooms().Len())
}

func TestGatewayJoinTwiceOnSameClient(t *testing.T) {
	g := newTestGateway()
	a := joinAll(t, g, "R", "A")["A"]

	res := g.Join(context.Background(), a, "OTHER")
	assert.Equal(t, ReasonInvalidTransition, res.Reason)
	assert.Empty(t, drain(a), "silent without feedback")
}

func TestGatewayDispatchBeforeJoin(t *testing.T) {
	g := newTestGateway()
	c := NewClient("A", "A", 4)

	res := g.Dispatch(context.Background(), c, ClientMessage{Type: TypeSubmitQuestion, Text: "Q"})
	assert.Equal(t, ReasonUnauthorized, res.Reason)
	assert.Len(t, ofType[RejectedMessage](drain(c)), 1)
}

func TestGatewayJoinMessage(t *testing.T) {
	g := newTestGateway()
	c := NewClient("B", "B", 8)

	res := g.Dispatch(context.Background(), c, ClientMessage{Type: TypeJoin, Code: "abc"})
	require.True(t, res.Accepted)
	assert.Equal(t, "ABC", c.Room().Code())
}

func TestGatewayRoundFanOut(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()
	cs := joinAll(t, g, "R", "A", "B", "C")

	require.True(t, g.Dispatch(ctx, cs["A"], ClientMessage{Type: TypeStartGame}).Accepted)
	for _, c := range cs {
		started := ofType[GameStartedMessage](drain(c))
		require.Len(t, started, 1)
		assert.Equal(t, "A", started[0].Asker.ID)
	}

	require.True(t, g.Dispatch(ctx, cs["A"], ClientMessage{Type: TypeSubmitQuestion, Text: "Q1"}).Accepted)
	for _, c := range cs {
		assert.Equal(t, []any{QuestionMessage{Type: "new_question", Question: "Q1"}}, drain(c))
	}

	require.True(t, g.Dispatch(ctx, cs["B"], ClientMessage{Type: TypeSubmitResponse, Text: "ans-B"}).Accepted)
	require.True(t, g.Dispatch(ctx, cs["C"], ClientMessage{Type: TypeSubmitResponse, Text: "ans-C"}).Accepted)
	assert.False(t, g.Dispatch(ctx, cs["B"], ClientMessage{Type: TypeSubmitResponse, Text: "dup"}).Accepted)

	var bID string
	for id, c := range cs {
		msgs := drain(c)
		responses := ofType[ResponseMessage](msgs)
		require.Len(t, responses, 2, "client %s", id)
		assert.Empty(t, ofType[RejectedMessage](msgs))

		for _, m := range msgs {
			data, err := json.Marshal(m)
			require.NoError(t, err)
			assert.NotContains(t, string(data), `"B"`)
			assert.NotContains(t, string(data), `"C"`)
		}
		bID = responses[0].ID
	}

	require.True(t, g.Dispatch(ctx, cs["A"], ClientMessage{Type: TypeAwardPoints, ResponseID: bID}).Accepted)
	for _, c := range cs {
		msgs := drain(c)
		require.Len(t, msgs, 3)
		scores := msgs[0].(ScoresMessage).Scores
		assert.Equal(t, ScoreEntry{ID: "B", Name: "name-B", Score: 1}, scores[1])
		assert.Equal(t, "B", msgs[2].(AskerMessage).Asker.ID)
	}

	snap := cs["A"].Room().Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 1, snap.TurnCursor)
	assert.Empty(t, snap.Responses)
}

func TestGatewayRejectionFeedback(t *testing.T) {
	ctx := context.Background()

	silent := newTestGateway()
	cs := joinAll(t, silent, "R", "A", "B")
	res := silent.Dispatch(ctx, cs["B"], ClientMessage{Type: TypeSubmitQuestion, Text: "mine"})
	assert.Equal(t, ReasonInvalidTransition, res.Reason)
	assert.Empty(t, drain(cs["B"]))
	assert.Empty(t, drain(cs["A"]))

	loud := newTestGateway(WithFeedback(true))
	cs = joinAll(t, loud, "R", "A", "B")
	loud.Dispatch(ctx, cs["B"], ClientMessage{Type: TypeSubmitQuestion, Text: "mine"})

	msgs := drain(cs["B"])
	require.Len(t, msgs, 1)
	assert.Equal(t, ReasonInvalidTransition, msgs[0].(RejectedMessage).Reason)
	assert.Empty(t, drain(cs["A"]), "feedback goes to the caller only")

	res = loud.Dispatch(ctx, cs["B"], ClientMessage{Type: "dance"})
	assert.Equal(t, ReasonInvalidInput, res.Reason)
	assert.Len(t, drain(cs["B"]), 1)
}

func TestGatewayUnauthorizedIsAlwaysAnswered(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()
	cs := joinAll(t, g, "R", "A", "B", "C")

	res := g.Dispatch(ctx, cs["C"], ClientMessage{Type: TypeForceSkip})
	assert.Equal(t, ReasonUnauthorized, res.Reason)
	assert.Len(t, ofType[RejectedMessage](drain(cs["C"])), 1)

	res = g.Dispatch(ctx, cs["A"], ClientMessage{Type: TypeForceNext})
	assert.True(t, res.Accepted)
	assert.Equal(t, "B", cs["A"].Room().Asker().ID)
}

func TestGatewayDisconnectAndRejoin(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()
	cs := joinAll(t, g, "R", "A", "B", "C", "D")
	room := cs["A"].Room()

	g.Dispatch(ctx, cs["A"], ClientMessage{Type: TypeSubmitQuestion, Text: "Q"})
	g.Dispatch(ctx, cs["D"], ClientMessage{Type: TypeSubmitResponse, Text: "ans-D"})
	drain(cs["B"])

	g.Leave(cs["D"])

	rosters := ofType[RosterMessage](drain(cs["B"]))
	require.Len(t, rosters, 1)
	assert.Equal(t, RosterEntry{ID: "D", Name: "name-D", Connected: false}, rosters[0].Players[3])

	_, open := <-cs["D"].Messages()
	for open {
		_, open = <-cs["D"].Messages()
	}

	snap := room.Snapshot()
	assert.Equal(t, PhaseAwaitingResponses, snap.Phase)
	assert.Len(t, snap.Responses, 1)

	d2 := NewClient("D", "name-D", 16)
	require.True(t, g.Join(ctx, d2, "R").Accepted)

	msgs := drain(d2)
	syncs := ofType[SyncMessage](msgs)
	require.Len(t, syncs, 1)
	assert.Equal(t, "Q", syncs[0].Question)
	assert.Equal(t, []ResponseView{{ID: snap.Responses[0].ID, Text: "ans-D"}}, syncs[0].Responses)

	snap = room.Snapshot()
	assert.Equal(t, []string{"A", "B", "C", "D"}, snap.TurnOrder)
	assert.True(t, snap.Participants[3].Connected)

	// the answer D gave before dropping still counts
	res := g.Dispatch(ctx, d2, ClientMessage{Type: TypeSubmitResponse, Text: "again"})
	assert.Equal(t, ReasonInvalidTransition, res.Reason)
}

func TestGatewaySecondTabKeepsConnected(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()
	cs := joinAll(t, g, "R", "A", "B")

	tab := NewClient("B", "name-B", 16)
	require.True(t, g.Join(ctx, tab, "R").Accepted)
	drain(cs["A"])

	g.Leave(cs["B"])
	assert.Empty(t, drain(cs["A"]), "B still has a live tab")
	assert.True(t, tab.Room().Snapshot().Participants[1].Connected)

	g.Leave(tab)
	rosters := ofType[RosterMessage](drain(cs["A"]))
	require.Len(t, rosters, 1)
	assert.False(t, rosters[0].Players[1].Connected)
}

func TestGatewaySlowClientIsDropped(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()

	a := NewClient("A", "A", 64)
	require.True(t, g.Join(ctx, a, "R").Accepted)

	slow := NewClient("B", "B", 3) // roster, meta, sync fill it
	require.True(t, g.Join(ctx, slow, "R").Accepted)

	require.True(t, g.Dispatch(ctx, a, ClientMessage{Type: TypeSubmitQuestion, Text: "Q"}).Accepted)
	assert.Equal(t, 1, a.Room().Clients())

	n := 0
	for range slow.Messages() {
		n++
	}
	assert.Equal(t, 3, n)

	g.Leave(slow)
	roster := a.Room().Roster()
	assert.False(t, roster[1].Connected)
}

func TestGatewayConcurrentResponses(t *testing.T) {
	roles := map[string]Role{"asker": RoleOwner}
	ids := []string{}
	for i := 0; i < 32; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		roles[id] = RolePlayer
		ids = append(ids, id)
	}
	g := NewGateway(NewRegistry(0), fakeMembers{roles: roles})
	ctx := context.Background()

	asker := NewClient("asker", "asker", 512)
	require.True(t, g.Join(ctx, asker, "R").Accepted)

	clients := make([]*Client, len(ids))
	for i, id := range ids {
		clients[i] = NewClient(id, id, 512)
		require.True(t, g.Join(ctx, clients[i], "R").Accepted)
	}

	require.True(t, g.Dispatch(ctx, asker, ClientMessage{Type: TypeSubmitQuestion, Text: "Q"}).Accepted)

	var wg sync.WaitGroup
	for _, c := range clients {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				g.Dispatch(ctx, c, ClientMessage{Type: TypeSubmitResponse, Text: "ans"})
			}(c)
		}
	}
	wg.Wait()

	snap := asker.Room().Snapshot()
	assert.Len(t, snap.Responses, len(ids))

	authors := map[string]bool{}
	for _, r := range snap.Responses {
		assert.False(t, authors[r.Author])
		authors[r.Author] = true
	}
}
