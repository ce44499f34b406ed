/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"strings"
)

// Participant holds the data we keep per identity for the lifetime of a room.
type Participant struct {
	Identity    string
	DisplayName string
	Score       int
	Connected   bool
}

// Response is a submitted answer. Author never leaves this package
// while the round is open.
type Response struct {
	ID     string
	Text   string
	Author string
}

// roundState is ephemeral and never written anywhere.
type roundState struct {
	phase     Phase
	question  string
	asker     string
	responses []Response
}

func (rs *roundState) reset() {
	rs.phase = PhaseIdle
	rs.question = ""
	rs.asker = ""
	rs.responses = nil
}

func (rs *roundState) answered(identity string) bool {
	for _, r := range rs.responses {
		if r.Author == identity {
			return true
		}
	}
	return false
}

// state is the mutable core of a room. It does no locking of its own;
// every method must be called with the owning Room's lock held.
type state struct {
	code         string
	name         string
	participants map[string]*Participant
	turnOrder    []string // join order, append-only; doubles as roster order
	turnCursor   int      // kept in [0, len(turnOrder))
	round        roundState
	started      bool

	newID func() string
}

func newState(code string, newID func() string) *state {
	s := &state{
		code:         code,
		participants: make(map[string]*Participant),
		newID:        newID,
	}
	s.round.reset()
	return s
}

func (s *state) currentAsker() (*Participant, bool) {
	if len(s.turnOrder) == 0 {
		return nil, false
	}

	p, ok := s.participants[s.turnOrder[s.turnCursor%len(s.turnOrder)]]
	return p, ok
}

func (s *state) isAsker(identity string) bool {
	asker, ok := s.currentAsker()
	return ok && asker.Identity == identity
}

func (s *state) askerView() *AskerView {
	asker, ok := s.currentAsker()
	if !ok {
		return nil
	}
	return &AskerView{ID: asker.Identity, Name: asker.DisplayName}
}

func (s *state) roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(s.turnOrder))
	for _, id := range s.turnOrder {
		p := s.participants[id]
		out = append(out, RosterEntry{
			ID:        p.Identity,
			Name:      p.DisplayName,
			Score:     p.Score,
			Connected: p.Connected,
		})
	}
	return out
}

func (s *state) scores() []ScoreEntry {
	out := make([]ScoreEntry, 0, len(s.turnOrder))
	for _, id := range s.turnOrder {
		p := s.participants[id]
		out = append(out, ScoreEntry{ID: p.Identity, Name: p.DisplayName, Score: p.Score})
	}
	return out
}

func (s *state) rosterEnvelope() Envelope {
	return Envelope{Msg: RosterMessage{Type: "roster", Players: s.roster()}}
}

func (s *state) askerEnvelope() Envelope {
	return Envelope{Msg: AskerMessage{Type: "new_asker", Asker: s.askerView()}}
}

func (s *state) meta(identity string, role Role) Envelope {
	return Envelope{To: identity, Msg: GameMetaMessage{
		Type:    "game_meta",
		Code:    s.code,
		Name:    s.name,
		Role:    role,
		Asker:   s.askerView(),
		Started: s.started,
	}}
}

// sync reports the open round without authors.
func (s *state) sync(identity string) Envelope {
	views := make([]ResponseView, 0, len(s.round.responses))
	for _, r := range s.round.responses {
		views = append(views, ResponseView{ID: r.ID, Text: r.Text})
	}

	phase := s.round.phase
	if phase == PhaseIdle {
		if _, ok := s.currentAsker(); ok {
			phase = PhaseAwaitingQuestion
		}
	}

	return Envelope{To: identity, Msg: SyncMessage{
		Type:      "sync",
		Phase:     phase,
		Question:  s.round.question,
		Responses: views,
	}}
}

// join adds identity to the room, or reconnects it keeping score and turn slot.
func (s *state) join(identity, displayName string) (Result, []Envelope) {
	if identity == "" {
		return rejected(ReasonInvalidInput), nil
	}

	if p, ok := s.participants[identity]; ok {
		p.Connected = true
		if displayName != "" {
			p.DisplayName = displayName
		}
	} else {
		s.participants[identity] = &Participant{
			Identity:    identity,
			DisplayName: displayName,
			Connected:   true,
		}
		s.turnOrder = append(s.turnOrder, identity)
	}

	return accepted(), []Envelope{s.rosterEnvelope()}
}

func (s *state) markDisconnected(identity string) (Result, []Envelope) {
	p, ok := s.participants[identity]
	if !ok {
		return rejected(ReasonNotFound), nil
	}

	p.Connected = false

	return accepted(), []Envelope{s.rosterEnvelope()}
}

// advance moves the turn to the next identity in join order and
// clears the round. It is the only place turnCursor changes.
func (s *state) advance() {
	if n := len(s.turnOrder); n > 0 {
		s.turnCursor = (s.turnCursor + 1) % n
	}
	s.round.reset()
}

func (s *state) startGame(identity string, role Role) (Result, []Envelope) {
	if role != RoleOwner {
		return rejected(ReasonUnauthorized), nil
	}
	if _, ok := s.participants[identity]; !ok {
		return rejected(ReasonUnauthorized), nil
	}
	if s.started || len(s.turnOrder) < 2 {
		return rejected(ReasonInvalidTransition), nil
	}

	s.started = true

	return accepted(), []Envelope{{Msg: GameStartedMessage{
		Type:  "game_started",
		Asker: s.askerView(),
	}}}
}

func (s *state) submitQuestion(identity, text string) (Result, []Envelope) {
	if !s.isAsker(identity) || s.round.phase != PhaseIdle {
		return rejected(ReasonInvalidTransition), nil
	}
	if strings.TrimSpace(text) == "" {
		return rejected(ReasonInvalidInput), nil
	}

	s.round.phase = PhaseAwaitingResponses
	s.round.question = truncate(text, MaxQuestionLength)
	s.round.asker = identity
	s.round.responses = nil

	return accepted(), []Envelope{{Msg: QuestionMessage{
		Type:     "new_question",
		Question: s.round.question,
	}}}
}

func (s *state) submitResponse(identity, text string) (Result, []Envelope) {
	if _, ok := s.participants[identity]; !ok {
		return rejected(ReasonUnauthorized), nil
	}
	if s.round.phase != PhaseAwaitingResponses || identity == s.round.asker || s.round.answered(identity) {
		return rejected(ReasonInvalidTransition), nil
	}

	text = truncate(strings.TrimSpace(text), MaxResponseLength)
	if text == "" {
		return rejected(ReasonInvalidInput), nil
	}

	r := Response{ID: s.newID(), Text: text, Author: identity}
	s.round.responses = append(s.round.responses, r)

	return accepted(), []Envelope{{Msg: ResponseMessage{
		Type: "new_response",
		ID:   r.ID,
		Text: r.Text,
	}}}
}

// awardPoints always closes the round and advances the turn once the caller
// is allowed to award, even if responseID matches nothing.
func (s *state) awardPoints(identity, responseID string) (Result, []Envelope) {
	if !s.isAsker(identity) || s.round.phase != PhaseAwaitingResponses {
		return rejected(ReasonInvalidTransition), nil
	}

	res := accepted()
	var envs []Envelope

	var winner *Participant
	for _, r := range s.round.responses {
		if r.ID == responseID {
			winner = s.participants[r.Author]
			break
		}
	}

	if winner != nil {
		winner.Score++
		envs = append(envs,
			Envelope{Msg: ScoresMessage{Type: "scores", Scores: s.scores()}},
			s.rosterEnvelope(),
		)
	} else {
		res.Reason = ReasonNotFound
	}

	s.advance()

	return res, append(envs, s.askerEnvelope())
}

func (s *state) forceSkip(identity string, role Role) (Result, []Envelope) {
	if _, ok := s.currentAsker(); !ok {
		return rejected(ReasonInvalidTransition), nil
	}
	if role != RoleOwner && !s.isAsker(identity) {
		return rejected(ReasonUnauthorized), nil
	}

	s.advance()

	return accepted(), []Envelope{s.askerEnvelope()}
}

// Snapshot is a point-in-time copy of a room's state.
type Snapshot struct {
	Code         string
	Name         string
	Participants []Participant // join order
	TurnOrder    []string
	TurnCursor   int
	Started      bool
	Phase        Phase
	Question     string
	Asker        string
	Responses    []Response
}

func (s *state) snapshot() Snapshot {
	snap := Snapshot{
		Code:       s.code,
		Name:       s.name,
		TurnOrder:  append([]string(nil), s.turnOrder...),
		TurnCursor: s.turnCursor,
		Started:    s.started,
		Phase:      s.round.phase,
		Question:   s.round.question,
		Asker:      s.round.asker,
		Responses:  append([]Response(nil), s.round.responses...),
	}
	for _, id := range s.turnOrder {
		snap.Participants = append(snap.Participants, *s.participants[id])
	}
	return snap
}
