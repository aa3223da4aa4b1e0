package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashSize is the fixed digest width in bytes (256 bits).
const HashSize = 32

// Hash is a fixed-width content digest with a total order and an XOR
// comparator, used to content-address gossip-graph events and to rank
// common-coin leaders by distance.
type Hash [HashSize]byte

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// Less imposes the canonical total order (byte-wise) over hashes.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// IsZero reports whether h is the all-zero hash. Absent parents are nil
// *Hash pointers, not zero hashes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// XorCmp ranks a and b by their XOR-distance from self (h), ascending:
// it returns a negative number if a is closer to h than b, positive if
// farther, 0 if equidistant. This is the deterministic leader-ranking
// primitive used by the common-coin round-hash mechanism (spec §4.4).
func (h Hash) XorCmp(a, b Hash) int {
	var da, db Hash
	for i := 0; i < HashSize; i++ {
		da[i] = h[i] ^ a[i]
		db[i] = h[i] ^ b[i]
	}
	return bytes.Compare(da[:], db[:])
}

// Hasher is the swappable hashing capability the core depends on.
type Hasher interface {
	Hash(data []byte) Hash
}

// BLAKE3Hasher is the default Hasher, matching the content-addressing scheme
// used by the more specialised peer-to-peer example in this codebase's
// lineage (BLAKE3 over SHA-256 for speed on the short, frequent event
// hashes the gossip graph produces).
type BLAKE3Hasher struct{}

func (BLAKE3Hasher) Hash(data []byte) Hash {
	sum := blake3.Sum256(data)
	var h Hash
	copy(h[:], sum[:])
	return h
}

// SHA256Hasher is kept as an alternate Hasher for interop with systems that
// expect SHA-256 digests; BLAKE3Hasher is the default used by identity.Default.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(data []byte) Hash {
	return sha256.Sum256(data)
}

// Default is the Hasher used when no explicit Hasher is supplied.
var Default Hasher = BLAKE3Hasher{}
