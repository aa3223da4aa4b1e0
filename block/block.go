// Package block assembles stable blocks from fully-decided events and clears
// consensus-derivation state so the next round of decisions can begin, per
// spec §4.5.
package block

import (
	"bytes"
	"sort"

	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metavote"
	"github.com/parsecwire/parsec/observation"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/perr"
)

// Block is a finalised consensus decision: a payload and the set of
// distinct-creator votes that elected it.
type Block struct {
	Payload identity.NetworkEvent
	Votes   map[string]*gossip.Vote // creator hex -> vote
}

// Assembler extracts blocks from fully-decided events and clears the shared
// meta-vote, round-hash, and observation state for the next round.
type Assembler struct {
	hasher identity.Hasher
	graph  *gossip.Graph
	peers  *peerlist.PeerList
	votes  *metavote.Engine
	obs    *observation.Store
}

// NewAssembler creates an Assembler sharing state with the rest of the
// protocol driver.
func NewAssembler(hasher identity.Hasher, graph *gossip.Graph, peers *peerlist.PeerList, votes *metavote.Engine, obs *observation.Store) *Assembler {
	return &Assembler{hasher: hasher, graph: graph, peers: peers, votes: votes, obs: obs}
}

// Ready reports whether latest carries a decided meta-vote for every peer.
func (a *Assembler) Ready(latest *gossip.Event) bool {
	return a.votes.AllDecided(latest.Hash)
}

// Assemble extracts the block decided by latest and clears consensus state
// for the stabilised payload. Returns perr.InsufficientVotes if fewer than a
// super-majority of distinct creators voted for the winning payload.
func (a *Assembler) Assemble(latest *gossip.Event) (*Block, error) {
	decisions := a.votes.VotesFor(latest.Hash)

	var elected []*gossip.Event
	for peerHex, mv := range decisions {
		if mv.Decision == nil || !*mv.Decision {
			continue
		}
		e, ok := a.oldestValidBlockEventForPeer(latest, peerHex)
		if !ok {
			continue
		}
		elected = append(elected, e)
	}

	winner, ok := plurality(elected)
	if !ok {
		return nil, perr.New(perr.InsufficientVotes, "no elected payload to assemble a block from")
	}

	votes := make(map[string]*gossip.Vote)
	for _, e := range a.graph.All() {
		if e.PayloadKind != gossip.PayloadVote || e.Vote == nil {
			continue
		}
		if !e.Vote.NetworkEvent.Equal(winner) {
			continue
		}
		votes[e.Creator.Hex()] = e.Vote
	}
	if !a.peers.IsSupermajority(len(votes)) {
		return nil, perr.New(perr.InsufficientVotes, "fewer than a super-majority of creators voted for the winning payload")
	}

	a.clearForStabilisation(winner)

	return &Block{Payload: winner, Votes: votes}, nil
}

// oldestValidBlockEventForPeer returns the oldest (min-index) ancestor event
// of latest created by peerHex that still carries a valid block.
func (a *Assembler) oldestValidBlockEventForPeer(latest *gossip.Event, peerHex string) (*gossip.Event, bool) {
	latestIdx, ok := latest.LastAncestors[peerHex]
	if !ok {
		return nil, false
	}
	for i := uint64(0); i <= latestIdx; i++ {
		hash, ok2 := a.peers.EventByIndex(peerHex, i)
		if !ok2 {
			continue
		}
		e, ok3 := a.graph.Get(hash)
		if ok3 && len(e.ValidBlocksCarried) > 0 {
			return e, true
		}
	}
	return nil, false
}

// plurality picks the payload with the most elected votes, breaking ties by
// the lexicographically greatest signed-vote bytes ("last equal wins" under
// a total order on votes, per spec §4.5).
func plurality(elected []*gossip.Event) (identity.NetworkEvent, bool) {
	type tally struct {
		payload identity.NetworkEvent
		count   int
		tieKey  []byte
	}
	counts := make(map[string]*tally)
	for _, e := range elected {
		if e.Vote == nil {
			continue
		}
		key := string(e.Vote.NetworkEvent.Bytes())
		t, ok := counts[key]
		if !ok {
			t = &tally{payload: e.Vote.NetworkEvent, tieKey: e.Vote.Bytes()}
			counts[key] = t
		}
		t.count++
		if bytes.Compare(e.Vote.Bytes(), t.tieKey) > 0 {
			t.tieKey = e.Vote.Bytes()
		}
	}
	if len(counts) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best *tally
	for _, k := range keys {
		t := counts[k]
		if best == nil || t.count > best.count || (t.count == best.count && bytes.Compare(t.tieKey, best.tieKey) >= 0) {
			best = t
		}
	}
	return best.payload, true
}

// clearForStabilisation removes winner's vote-carrying hashes from every
// event's valid_blocks_carried set, clears every event's observations, and
// resets the shared meta-vote and round-hash state.
func (a *Assembler) clearForStabilisation(winner identity.NetworkEvent) {
	stabilised := make(map[identity.Hash]struct{})
	for _, e := range a.graph.All() {
		if e.PayloadKind == gossip.PayloadVote && e.Vote != nil && e.Vote.NetworkEvent.Equal(winner) {
			stabilised[e.Hash] = struct{}{}
		}
	}
	for _, e := range a.graph.All() {
		for h := range stabilised {
			delete(e.ValidBlocksCarried, h)
		}
		e.Observations = map[string]struct{}{}
	}
	a.obs.Forget(a.hasher.Hash(winner.Bytes()))
	a.votes.Clear()
}

// OldestReplayPoint returns the oldest event (by topological index) that
// still carries a valid block across all peers — the point from which
// consensus derivation must replay after a block stabilises.
func (a *Assembler) OldestReplayPoint() (*gossip.Event, bool) {
	for _, e := range a.graph.All() {
		if len(e.ValidBlocksCarried) > 0 {
			return e, true
		}
	}
	return nil, false
}
