// Package gossip implements the per-peer append-only gossip graph: events,
// their derived metadata, and the content-addressed graph that holds them.
package gossip

import (
	"bytes"
	"encoding/binary"

	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/perr"
)

// PayloadKind tags what an event carries.
type PayloadKind byte

const (
	PayloadNone PayloadKind = iota
	PayloadVote
	PayloadRequestMarker
	PayloadResponseMarker
)

// Vote is a signed opaque network-event payload carried by an event.
type Vote struct {
	NetworkEvent identity.NetworkEvent
	Signature    []byte
}

// Bytes returns the canonical signed-vote byte representation used for
// deterministic tie-break ordering during block assembly (spec §4.5).
func (v *Vote) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(v.NetworkEvent.Bytes())
	buf.Write(v.Signature)
	return buf.Bytes()
}

// Event is the sole node type of the gossip graph.
type Event struct {
	Creator     identity.PublicID
	SelfParent  *identity.Hash
	OtherParent *identity.Hash
	PayloadKind PayloadKind
	Vote        *Vote // non-nil iff PayloadKind == PayloadVote

	Hash      identity.Hash
	Signature []byte

	Index            uint64
	TopologicalIndex int

	// Derived metadata, computed once at append time by ComputeMetadata.
	LastAncestors      map[string]uint64 // peer hex -> max index of that peer's ancestor events
	FirstDescendants   map[string]uint64 // peer hex -> min index of that peer's descendant events
	ValidBlocksCarried map[identity.Hash]struct{}
	Observations       map[string]struct{} // peer hex set
}

// NewInitialEvent creates creator's first event (index 0, no parents).
func NewInitialEvent(creator identity.PublicID, kind PayloadKind, vote *Vote) *Event {
	return &Event{
		Creator:     creator,
		PayloadKind: kind,
		Vote:        vote,
		Index:       0,
	}
}

// NewEvent creates a self-parented event, optionally gossip-linked to
// otherParent.
func NewEvent(creator identity.PublicID, selfParent identity.Hash, selfParentIndex uint64, otherParent *identity.Hash, kind PayloadKind, vote *Vote) *Event {
	sp := selfParent
	return &Event{
		Creator:     creator,
		SelfParent:  &sp,
		OtherParent: otherParent,
		PayloadKind: kind,
		Vote:        vote,
		Index:       selfParentIndex + 1,
	}
}

// signingBytes returns the deterministic byte encoding of the immutable
// fields {creator, parents, payload, index}, length-prefixing variable fields to
// avoid boundary ambiguity (adapted from this codebase's transaction-root
// hashing idiom).
func (e *Event) signingBytes() []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, e.Creator.Bytes())
	writeOptHash(&buf, e.SelfParent)
	writeOptHash(&buf, e.OtherParent)
	buf.WriteByte(byte(e.PayloadKind))
	if e.PayloadKind == PayloadVote && e.Vote != nil {
		writeLenPrefixed(&buf, e.Vote.NetworkEvent.Bytes())
		writeLenPrefixed(&buf, e.Vote.Signature)
	}
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], e.Index)
	buf.Write(idxBuf[:])
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func writeOptHash(buf *bytes.Buffer, h *identity.Hash) {
	if h == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(h[:])
}

// ComputeHash returns the content hash of the event's immutable fields.
func (e *Event) ComputeHash(hasher identity.Hasher) identity.Hash {
	return hasher.Hash(e.signingBytes())
}

// Sign sets Hash and signs it with secret, the event's creator's key.
func (e *Event) Sign(hasher identity.Hasher, secret identity.SecretID) {
	e.Hash = e.ComputeHash(hasher)
	e.Signature = secret.Sign(e.Hash[:])
}

// Verify checks that Hash matches the recomputed content hash and that
// Signature is valid for Creator, rejecting tampered events.
func (e *Event) Verify(hasher identity.Hasher) error {
	computed := e.ComputeHash(hasher)
	if computed != e.Hash {
		return perr.New(perr.InvalidEvent, "event hash mismatch: stored "+e.Hash.Hex()+" computed "+computed.Hex())
	}
	if err := e.Creator.Verify(e.Hash[:], e.Signature); err != nil {
		return perr.Wrap(perr.InvalidEvent, "event signature invalid", err)
	}
	return nil
}

// IsInitial reports whether this is a peer's first event.
func (e *Event) IsInitial() bool { return e.SelfParent == nil }
