/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

// Inbound message types.
const (
	TypeJoin           = "join"
	TypeStartGame      = "start_game"
	TypeSubmitQuestion = "submit_question"
	TypeSubmitResponse = "submit_response"
	TypeAwardPoints    = "award_points"
	TypeForceSkip      = "force_skip"
	TypeForceNext      = "force_next"
)

// Role is supplied by the membership check and never stored in round state.
type Role string

const (
	RoleOwner  Role = "owner"
	RolePlayer Role = "player"
)

// Phase of the current round.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingQuestion  Phase = "awaiting_question"
	PhaseAwaitingResponses Phase = "awaiting_responses"
)

// Messages coming from clients
type ClientMessage struct {
	Type       string `json:"type"`                  // see Type* constants
	Code       string `json:"code,omitempty"`        // join
	Text       string `json:"text,omitempty"`        // submit_question / submit_response
	ResponseID string `json:"response_id,omitempty"` // award_points
}

// RosterEntry is the broadcastable view of a participant.
type RosterEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

type AskerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResponseView is a response as other participants see it: no author.
type ResponseView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ScoreEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Messages sent to clients
type RosterMessage struct {
	Type    string        `json:"type"` // "roster"
	Players []RosterEntry `json:"players"`
}

// GameMetaMessage is sent only to the joining client.
type GameMetaMessage struct {
	Type    string     `json:"type"` // "game_meta"
	Code    string     `json:"code"`
	Name    string     `json:"name"`
	Role    Role       `json:"role"`
	Asker   *AskerView `json:"asker"`
	Started bool       `json:"started"`
}

// SyncMessage lets a (re)joining client rebuild the open round.
type SyncMessage struct {
	Type      string         `json:"type"` // "sync"
	Phase     Phase          `json:"phase"`
	Question  string         `json:"question,omitempty"`
	Responses []ResponseView `json:"responses"`
}

type GameStartedMessage struct {
	Type  string     `json:"type"` // "game_started"
	Asker *AskerView `json:"asker"`
}

type QuestionMessage struct {
	Type     string `json:"type"` // "new_question"
	Question string `json:"question"`
}

type ResponseMessage struct {
	Type string `json:"type"` // "new_response"
	ID   string `json:"id"`
	Text string `json:"text"`
}

type ScoresMessage struct {
	Type   string       `json:"type"` // "scores"
	Scores []ScoreEntry `json:"scores"`
}

type AskerMessage struct {
	Type  string     `json:"type"` // "new_asker"
	Asker *AskerView `json:"asker"`
}

// RejectedMessage is only ever sent to the client whose action was refused.
type RejectedMessage struct {
	Type    string `json:"type"` // "rejected"
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Envelope addresses an outbound message. An empty To means the whole room.
type Envelope struct {
	To  string
	Msg any
}
