package games

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonUnauthorized      Reason = "unauthorized"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonInvalidInput      Reason = "invalid_input"
	ReasonNotFound          Reason = "not_found"
)

// Result is returned to the caller only and never broadcast.
// An award for an unknown response is Accepted with ReasonNotFound.
type Result struct {
	Accepted bool
	Reason   Reason
}

func accepted() Result {
	return Result{Accepted: true}
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

// Err returns the sentinel error matching r.Reason, or nil.
func (r Result) Err() error {
	switch r.Reason {
	case ReasonUnauthorized:
		return ErrUnauthorized
	case ReasonInvalidTransition:
		return ErrInvalidTransition
	case ReasonInvalidInput:
		return ErrInvalidInput
	case ReasonNotFound:
		return ErrNotFound
	}
	return nil
}

func (r Result) String() string {
	if r.Accepted {
		if r.Reason != ReasonNone {
			return "accepted (" + string(r.Reason) + ")"
		}
		return "accepted"
	}
	return "rejected (" + string(r.Reason) + ")"
}

func (r Result) message() string {
	switch r.Reason {
	case ReasonUnauthorized:
		return "You are not allowed to do that."
	case ReasonInvalidTransition:
		return "That action is not available right now."
	case ReasonInvalidInput:
		return "That message was empty or malformed."
	case ReasonNotFound:
		return "That response no longer exists."
	}
	return ""
}
