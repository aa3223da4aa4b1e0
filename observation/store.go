// Package observation tracks which payloads have been voted for, either by
// us locally or as observed anywhere in the gossip graph, so the metadata
// computation can test supermajority support without re-walking the whole
// graph on every append.
package observation

import (
	"sync"

	"github.com/parsecwire/parsec/identity"
)

// Store counts, per payload hash, the distinct creators who have cast a vote
// for it anywhere in the graph.
type Store struct {
	mu     sync.RWMutex
	voters map[identity.Hash]map[string]struct{} // payload hash -> creator hex set
	oldest map[identity.Hash]uint64              // payload hash -> lowest topological index carrying it
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		voters: make(map[identity.Hash]map[string]struct{}),
		oldest: make(map[identity.Hash]uint64),
	}
}

// Record notes that creatorHex cast a vote for payloadHash in the event at
// topoIndex. Recording the same (payload, creator) pair twice is a no-op.
func (s *Store) Record(payloadHash identity.Hash, creatorHex string, topoIndex uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.voters[payloadHash]
	if !ok {
		set = make(map[string]struct{})
		s.voters[payloadHash] = set
	}
	set[creatorHex] = struct{}{}
	if cur, ok := s.oldest[payloadHash]; !ok || topoIndex < cur {
		s.oldest[payloadHash] = topoIndex
	}
}

// Count returns how many distinct creators have voted for payloadHash.
func (s *Store) Count(payloadHash identity.Hash) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.voters[payloadHash])
}

// IsSupermajority reports whether payloadHash has strictly more than 2/3 of
// numPeers distinct voters.
func (s *Store) IsSupermajority(payloadHash identity.Hash, numPeers int) bool {
	return 3*s.Count(payloadHash) > 2*numPeers
}

// Clear removes all recorded observations, called when a block stabilises
// and consensus derivation restarts from the next undecided prefix.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters = make(map[identity.Hash]map[string]struct{})
	s.oldest = make(map[identity.Hash]uint64)
}

// Forget drops bookkeeping for a payload that has now stabilised into a
// block, matching spec's "remove from valid_blocks_carried the hashes of
// events whose payload has now stabilised."
func (s *Store) Forget(payloadHash identity.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.voters, payloadHash)
	delete(s.oldest, payloadHash)
}
