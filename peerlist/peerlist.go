// Package peerlist indexes, for each peer in the static genesis group, the
// hash of every event that peer has created, by sequence index.
package peerlist

import (
	"sort"
	"strconv"
	"sync"

	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/perr"
)

// PeerList is the per-peer index of created events, mapping each peer's
// sequence index to the event hash; there is no lookup from hash to index.
// Mirrors the teacher's indexed block-store access pattern, generalised
// from "one chain" (the blockchain) to "one chain per peer."
type PeerList struct {
	mu      sync.RWMutex
	ourHex  string
	peers   map[string]identity.PublicID     // hex -> identity
	byIndex map[string]map[uint64]identity.Hash
}

// New creates a PeerList for the static genesis group. our must be a member
// of genesis.
func New(genesis []identity.PublicID, our identity.PublicID) (*PeerList, error) {
	pl := &PeerList{
		ourHex:  our.Hex(),
		peers:   make(map[string]identity.PublicID, len(genesis)),
		byIndex: make(map[string]map[uint64]identity.Hash, len(genesis)),
	}
	found := false
	for _, p := range genesis {
		pl.peers[p.Hex()] = p
		pl.byIndex[p.Hex()] = make(map[uint64]identity.Hash)
		if p.Hex() == our.Hex() {
			found = true
		}
	}
	if !found {
		return nil, perr.New(perr.UnknownPeer, "our identity is not a member of the genesis group")
	}
	return pl, nil
}

// OurHex returns the hex identity of the local peer.
func (pl *PeerList) OurHex() string { return pl.ourHex }

// Contains reports whether hex names a known peer.
func (pl *PeerList) Contains(hex string) bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	_, ok := pl.peers[hex]
	return ok
}

// PublicID returns the identity for a known peer.
func (pl *PeerList) PublicID(hex string) (identity.PublicID, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	p, ok := pl.peers[hex]
	return p, ok
}

// AllHexes returns every peer's hex identity in deterministic (sorted) order.
func (pl *PeerList) AllHexes() []string {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	out := make([]string, 0, len(pl.peers))
	for hex := range pl.peers {
		out = append(out, hex)
	}
	sort.Strings(out)
	return out
}

// NumPeers returns the size of the static genesis group.
func (pl *PeerList) NumPeers() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.peers)
}

// IsSupermajority reports whether count is a strict supermajority (>2/3) of
// the genesis group.
func (pl *PeerList) IsSupermajority(count int) bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return 3*count > 2*len(pl.peers)
}

// SupermajorityThreshold returns the smallest count that is a supermajority.
func (pl *PeerList) SupermajorityThreshold() int {
	pl.mu.RLock()
	n := len(pl.peers)
	pl.mu.RUnlock()
	return n - (n-1)/3
}

// LatestIndex returns the highest event index known for peerHex.
func (pl *PeerList) LatestIndex(peerHex string) (uint64, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	events, ok := pl.byIndex[peerHex]
	if !ok || len(events) == 0 {
		return 0, false
	}
	var max uint64
	first := true
	for idx := range events {
		if first || idx > max {
			max = idx
			first = false
		}
	}
	return max, true
}

// LatestHash returns the hash of the most recent event created by peerHex.
func (pl *PeerList) LatestHash(peerHex string) (identity.Hash, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	events, ok := pl.byIndex[peerHex]
	if !ok {
		return identity.Hash{}, false
	}
	idx, found := pl.latestIndexLocked(peerHex)
	if !found {
		return identity.Hash{}, false
	}
	h, ok := events[idx]
	return h, ok
}

func (pl *PeerList) latestIndexLocked(peerHex string) (uint64, bool) {
	events := pl.byIndex[peerHex]
	if len(events) == 0 {
		return 0, false
	}
	var max uint64
	first := true
	for idx := range events {
		if first || idx > max {
			max = idx
			first = false
		}
	}
	return max, true
}

// RemoveEvent undoes a provisional AddEvent whose later validation failed,
// keeping the peer list consistent with the graph after a rolled-back append.
func (pl *PeerList) RemoveEvent(peerHex string, index uint64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if events, ok := pl.byIndex[peerHex]; ok {
		delete(events, index)
	}
}

// EventByIndex returns the hash of peerHex's event at index idx.
func (pl *PeerList) EventByIndex(peerHex string, idx uint64) (identity.Hash, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	events, ok := pl.byIndex[peerHex]
	if !ok {
		return identity.Hash{}, false
	}
	h, ok := events[idx]
	return h, ok
}

// AddEvent records that peerHex created the event identified by hash at
// index. Returns perr.ErrUnknownPeer if peerHex is not a genesis member, and
// perr.ErrInvalidEvent if index is already recorded with a different hash
// (an index gap or fork would otherwise silently overwrite history).
func (pl *PeerList) AddEvent(peerHex string, index uint64, hash identity.Hash) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	events, ok := pl.byIndex[peerHex]
	if !ok {
		return perr.Wrap(perr.UnknownPeer, "add event for unknown peer "+peerHex, nil)
	}
	if existing, ok := events[index]; ok && existing != hash {
		return perr.New(perr.InvalidEvent, "peer "+peerHex+" index "+strconv.FormatUint(index, 10)+" already has a different event")
	}
	events[index] = hash
	return nil
}
