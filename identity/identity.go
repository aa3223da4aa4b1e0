// Package identity defines the capability interfaces the consensus core
// depends on for peer identity, signing, and content hashing, plus a default
// ed25519 + BLAKE3 implementation. The core never assumes a concrete scheme;
// everything above this package programs against PublicID/SecretID/Hasher.
package identity

// PublicID is a peer's public identity: totally ordered, hashable, and
// comparable by its fixed-size byte representation.
type PublicID interface {
	// Bytes returns the fixed-size canonical encoding of the identity.
	Bytes() []byte
	// Hex returns the hex encoding of Bytes, used as a map key and in
	// wire/debug output.
	Hex() string
	// Equal reports whether two identities are the same peer.
	Equal(other PublicID) bool
	// Less imposes a total order over identities, used for deterministic
	// peer enumeration (e.g. round-robin, tie-breaks).
	Less(other PublicID) bool
	// Verify checks sig against msg for this identity.
	Verify(msg, sig []byte) error
}

// SecretID is a local peer's signing identity.
type SecretID interface {
	// PublicID returns the corresponding public identity.
	PublicID() PublicID
	// Sign signs msg and returns the signature bytes.
	Sign(msg []byte) []byte
}

// NetworkEvent is the opaque payload type the core transports without
// interpreting. Equality and ordering are defined over the raw bytes, which
// also serve as the serialised form — callers that need richer payloads
// encode them into this before calling Driver.VoteFor.
type NetworkEvent []byte

// Equal reports whether two payloads are identical.
func (e NetworkEvent) Equal(other NetworkEvent) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if e[i] != other[i] {
			return false
		}
	}
	return true
}

// Less imposes the canonical total order used for tie-breaking (byte-wise
// lexicographic comparison).
func (e NetworkEvent) Less(other NetworkEvent) bool {
	n := len(e)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if e[i] != other[i] {
			return e[i] < other[i]
		}
	}
	return len(e) < len(other)
}

// Bytes returns the payload's serialised form, which is itself.
func (e NetworkEvent) Bytes() []byte { return []byte(e) }
