// Package round maintains, per peer, the hash chain that seeds the
// leaderless common coin, and the XOR-distance ranking used to pick the
// coin's leader deterministically (spec §4.4).
package round

import (
	"sync"

	"github.com/parsecwire/parsec/identity"
)

// Chain is one peer's round-hash sequence. Element 0 is derived from the
// peer's identity and a shared genesis salt; element r+1 is the hash of
// element r.
type Chain struct {
	hasher identity.Hasher
	values []identity.Hash
}

// NewChain seeds a Chain for peerHex using the shared genesis salt.
func NewChain(hasher identity.Hasher, peerHex string, genesisSalt []byte) *Chain {
	seed := append([]byte(peerHex), genesisSalt...)
	return &Chain{hasher: hasher, values: []identity.Hash{hasher.Hash(seed)}}
}

// Value returns the round-hash value at the given round, extending the chain
// (by repeatedly rehashing the previous element) as needed.
func (c *Chain) Value(round uint32) identity.Hash {
	for uint32(len(c.values)) <= round {
		prev := c.values[len(c.values)-1]
		c.values = append(c.values, c.hasher.Hash(prev[:]))
	}
	return c.values[round]
}

// Len reports how many rounds have been computed so far.
func (c *Chain) Len() int { return len(c.values) }

// Map owns one Chain per peer, created lazily on first use. The whole Map is
// cleared whenever a block stabilises (spec §4.5).
type Map struct {
	mu          sync.Mutex
	hasher      identity.Hasher
	genesisSalt []byte
	chains      map[string]*Chain
}

// NewMap creates an empty round-hash Map sharing one genesis salt across all
// peer chains (all peers must derive the same salt to converge).
func NewMap(hasher identity.Hasher, genesisSalt []byte) *Map {
	return &Map{hasher: hasher, genesisSalt: genesisSalt, chains: make(map[string]*Chain)}
}

// Chain returns (creating if necessary) the round-hash chain for peerHex.
func (m *Map) Chain(peerHex string) *Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chains[peerHex]
	if !ok {
		c = NewChain(m.hasher, peerHex, m.genesisSalt)
		m.chains[peerHex] = c
	}
	return c
}

// Value is shorthand for Chain(peerHex).Value(round).
func (m *Map) Value(peerHex string, round uint32) identity.Hash {
	return m.Chain(peerHex).Value(round)
}

// Clear drops every peer's chain, restarting the common coin from genesis.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains = make(map[string]*Chain)
}

// RankPeers orders allHexes by ascending XOR-distance of their identity hash
// from roundHash, giving the deterministic common-coin leader order: element
// 0 is tried first, then 1, and so on (spec §4.4).
func RankPeers(hasher identity.Hasher, roundHash identity.Hash, allHexes []string, idOf func(hex string) (identity.PublicID, bool)) []string {
	type ranked struct {
		hex  string
		dist identity.Hash
	}
	items := make([]ranked, 0, len(allHexes))
	for _, hex := range allHexes {
		pub, ok := idOf(hex)
		if !ok {
			continue
		}
		idHash := hasher.Hash(pub.Bytes())
		items = append(items, ranked{hex: hex, dist: idHash})
	}
	// Insertion sort by XOR-distance from roundHash (group sizes are small —
	// the genesis group is static and typically under a few hundred peers).
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && roundHash.XorCmp(items[j].dist, items[j-1].dist) < 0 {
			items[j], items[j-1] = items[j-1], items[j]
			j--
		}
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.hex
	}
	return out
}
