// Package perr defines the error taxonomy shared across the consensus core.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies what went wrong. Callers match on Kind via errors.Is against
// the sentinel values below rather than inspecting message text.
type Kind int

const (
	// UnknownParent: an event references a parent not present in the local graph.
	UnknownParent Kind = iota
	// UnknownPeer: an event's creator is not in the peer list.
	UnknownPeer
	// InvalidEvent: internal inconsistency (missing index, empty ancestors,
	// signature mismatch, self-parent chain violation).
	InvalidEvent
	// DuplicateEvent: the event's hash is already present in the graph.
	DuplicateEvent
	// DuplicateVote: a creator voted twice for distinct payloads. Reserved for
	// malice detection; the core itself never emits this.
	DuplicateVote
	// Logic: an invariant was violated that should be unreachable.
	Logic
	// InsufficientVotes: block assembly could not gather a supermajority.
	InsufficientVotes
)

func (k Kind) String() string {
	switch k {
	case UnknownParent:
		return "unknown_parent"
	case UnknownPeer:
		return "unknown_peer"
	case InvalidEvent:
		return "invalid_event"
	case DuplicateEvent:
		return "duplicate_event"
	case DuplicateVote:
		return "duplicate_vote"
	case Logic:
		return "logic"
	case InsufficientVotes:
		return "insufficient_votes"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with a message and an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, or one of the
// package-level sentinels below, so callers can write
// errors.Is(err, perr.ErrUnknownParent).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an *Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinels usable directly with errors.Is(err, perr.ErrUnknownParent).
var (
	ErrUnknownParent     = &Error{Kind: UnknownParent}
	ErrUnknownPeer       = &Error{Kind: UnknownPeer}
	ErrInvalidEvent      = &Error{Kind: InvalidEvent}
	ErrDuplicateEvent    = &Error{Kind: DuplicateEvent}
	ErrDuplicateVote     = &Error{Kind: DuplicateVote}
	ErrLogic             = &Error{Kind: Logic}
	ErrInsufficientVotes = &Error{Kind: InsufficientVotes}
)

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
