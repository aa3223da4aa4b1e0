// Package wire defines the serialisable Request/Response envelopes
// exchanged between drivers, and the conversion to and from gossip.Event.
package wire

import (
	"github.com/google/uuid"

	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/perr"
)

// Event is the wire representation of a gossip.Event: creator identified by
// raw public-key bytes rather than the identity.PublicID interface, so it
// can cross a transport boundary and be reconstructed by the receiver.
type Event struct {
	Creator     []byte
	SelfParent  *identity.Hash
	OtherParent *identity.Hash
	PayloadKind gossip.PayloadKind
	VotePayload []byte // non-nil iff PayloadKind == gossip.PayloadVote
	VoteSig     []byte
	Hash        identity.Hash
	Signature   []byte
	Index       uint64
}

// FromGossipEvent converts a local event to its wire form.
func FromGossipEvent(e *gossip.Event) Event {
	w := Event{
		Creator:     e.Creator.Bytes(),
		SelfParent:  e.SelfParent,
		OtherParent: e.OtherParent,
		PayloadKind: e.PayloadKind,
		Hash:        e.Hash,
		Signature:   e.Signature,
		Index:       e.Index,
	}
	if e.PayloadKind == gossip.PayloadVote && e.Vote != nil {
		w.VotePayload = e.Vote.NetworkEvent.Bytes()
		w.VoteSig = e.Vote.Signature
	}
	return w
}

// ToGossipEvent reconstructs a gossip.Event from its wire form, recomputing
// the identity from raw creator bytes. The caller must still call
// e.Verify(hasher) before trusting the result.
func (w Event) ToGossipEvent() (*gossip.Event, error) {
	creator, err := identity.NewPublicID(w.Creator)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidEvent, "wire event has malformed creator", err)
	}

	var vote *gossip.Vote
	if w.PayloadKind == gossip.PayloadVote {
		vote = &gossip.Vote{
			NetworkEvent: identity.NetworkEvent(w.VotePayload),
			Signature:    w.VoteSig,
		}
	}

	e := &gossip.Event{
		Creator:     creator,
		SelfParent:  w.SelfParent,
		OtherParent: w.OtherParent,
		PayloadKind: w.PayloadKind,
		Vote:        vote,
		Hash:        w.Hash,
		Signature:   w.Signature,
		Index:       w.Index,
	}
	return e, nil
}

// Request is sent to initiate a gossip exchange: every event the sender
// believes the receiver may lack, plus the sender's own per-peer frontier so
// the receiver can compute a minimal reply.
type Request struct {
	ID             uuid.UUID
	Events         []Event
	SenderFrontier map[string]uint64 // peer hex -> latest known index
}

// Response answers a Request with the events the responder believes the
// requester still lacks.
type Response struct {
	ID             uuid.UUID
	Events         []Event
	SenderFrontier map[string]uint64
}

// NewRequest builds a Request carrying events in insertion order.
func NewRequest(events []Event, frontier map[string]uint64) Request {
	return Request{ID: uuid.New(), Events: events, SenderFrontier: frontier}
}

// NewResponse builds a Response carrying events under a fresh ID; a responder
// sets ID to the answered Request's ID so the two can be matched.
func NewResponse(events []Event, frontier map[string]uint64) Response {
	return Response{ID: uuid.New(), Events: events, SenderFrontier: frontier}
}
