package metavote

import (
	"sync"

	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/round"
)

// Engine derives and stores meta-votes for every appended event, keyed by
// event hash and then by the subject peer they concern. It owns no graph
// data itself; graph and peer list are shared with the rest of the driver.
type Engine struct {
	mu     sync.Mutex
	hasher identity.Hasher
	graph  *gossip.Graph
	peers  *peerlist.PeerList
	rounds *round.Map
	votes  map[identity.Hash]map[string]*MetaVote
}

// NewEngine creates a meta-vote Engine sharing graph, peers, and rounds with
// the rest of the protocol driver.
func NewEngine(hasher identity.Hasher, graph *gossip.Graph, peers *peerlist.PeerList, rounds *round.Map) *Engine {
	return &Engine{
		hasher: hasher,
		graph:  graph,
		peers:  peers,
		rounds: rounds,
		votes:  make(map[identity.Hash]map[string]*MetaVote),
	}
}

// HasVotes reports whether event h already carries a (possibly partial)
// meta-vote map, the condition gossip.ComputeMetadata needs to decide
// whether to skip steps 4 and 5 for h's children.
func (en *Engine) HasVotes(h identity.Hash) bool {
	en.mu.Lock()
	defer en.mu.Unlock()
	v, ok := en.votes[h]
	return ok && len(v) > 0
}

// VotesFor returns the subject-peer meta-vote map for event h, or nil.
func (en *Engine) VotesFor(h identity.Hash) map[string]*MetaVote {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.votes[h]
}

// AllDecided reports whether event h carries a decided meta-vote for every
// peer in the genesis group, the trigger for block assembly.
func (en *Engine) AllDecided(h identity.Hash) bool {
	en.mu.Lock()
	defer en.mu.Unlock()
	votes, ok := en.votes[h]
	if !ok || len(votes) < en.peers.NumPeers() {
		return false
	}
	for _, mv := range votes {
		if mv.Decision == nil {
			return false
		}
	}
	return true
}

// Clear drops every derived meta-vote and resets the round-hash map, called
// when a block stabilises and derivation replays from the next undecided
// prefix (spec §4.5).
func (en *Engine) Clear() {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.votes = make(map[identity.Hash]map[string]*MetaVote)
	en.rounds.Clear()
}

// Derive computes e's meta-votes, dispatching to the three cases of spec
// §4.3. Must be called once, in topological order, immediately after
// gossip.ComputeMetadata(e).
func (en *Engine) Derive(e *gossip.Event) error {
	en.mu.Lock()
	defer en.mu.Unlock()

	if e.SelfParent != nil {
		if parentVotes, ok := en.votes[*e.SelfParent]; ok && len(parentVotes) > 0 {
			return en.caseA(e, parentVotes)
		}
	}
	return en.caseB(e)
}

// caseA advances, for every subject peer already being voted on by e's
// self-parent, the binary-agreement state one step.
func (en *Engine) caseA(e *gossip.Event, parentVotes map[string]*MetaVote) error {
	totalPeers := en.peers.NumPeers()
	votes := make(map[string]*MetaVote, len(parentVotes))
	for subjectHex, parentVote := range parentVotes {
		if parentVote.Decision != nil {
			d := *parentVote.Decision
			votes[subjectHex] = &MetaVote{
				Round:     parentVote.Round,
				Step:      parentVote.Step,
				Decision:  &d,
				Estimates: copyBoolSet(parentVote.Estimates),
			}
			continue
		}
		otherVotes := en.collectOtherVotes(e, subjectHex, parentVote.Round, parentVote.Step)
		toss := en.coinToss(e, subjectHex, parentVote)
		nv := next(parentVote, otherVotes, toss, totalPeers)
		en.rounds.Value(subjectHex, nv.Round) // grow the chain so it covers the new round
		votes[subjectHex] = nv
	}
	en.votes[e.Hash] = votes
	return nil
}

// caseB seeds round 0, step 0 for every peer if e is an observer event; an
// event that is neither an observer nor has a voting self-parent carries no
// meta-votes at all (Case C).
func (en *Engine) caseB(e *gossip.Event) error {
	if !gossip.IsObserver(en.peers, e) {
		return nil
	}
	votes := make(map[string]*MetaVote, en.peers.NumPeers())
	for _, subjectHex := range en.peers.AllHexes() {
		_, observed := e.Observations[subjectHex]
		votes[subjectHex] = &MetaVote{
			Round:     0,
			Step:      StepForcedTrue,
			Estimates: map[bool]struct{}{observed: {}},
		}
	}
	en.votes[e.Hash] = votes
	return nil
}

// collectOtherVotes gathers, per creator referenced in e.LastAncestors, the
// most recent meta-vote for subjectHex at exactly (round, step), walking
// each creator's chain backward from its last-ancestor event. At most one
// candidate is returned per creator (spec §4.3).
func (en *Engine) collectOtherVotes(e *gossip.Event, subjectHex string, atRound uint32, atStep Step) []MetaVote {
	var out []MetaVote
	for creatorHex, lastIdx := range e.LastAncestors {
		hash, ok := en.peers.EventByIndex(creatorHex, lastIdx)
		if !ok {
			continue
		}
		cur, ok := en.graph.Get(hash)
		for ok {
			if votes, hasVotes := en.votes[cur.Hash]; hasVotes {
				if mv, found := votes[subjectHex]; found && mv.Round == atRound && mv.Step == atStep {
					out = append(out, *mv)
					break
				}
			}
			if cur.SelfParent == nil {
				break
			}
			cur, ok = en.graph.Get(*cur.SelfParent)
		}
	}
	return out
}

// coinToss implements the common-coin lookup of spec §4.4 for subjectHex's
// meta-vote currently at parentVote. Returns nil when no toss is needed or
// none is available yet.
func (en *Engine) coinToss(e *gossip.Event, subjectHex string, parentVote *MetaVote) *bool {
	var inputRound uint32
	switch {
	case len(parentVote.Estimates) == 0:
		if parentVote.Round == 0 {
			return nil
		}
		inputRound = parentVote.Round - 1
	case parentVote.Step == StepGenuineFlip:
		inputRound = parentVote.Round
	default:
		return nil
	}

	roundHash := en.rounds.Value(subjectHex, inputRound)
	ranked := round.RankPeers(en.hasher, roundHash, en.peers.AllHexes(), en.peers.PublicID)

	for i, candidateHex := range ranked {
		lastIdx, ok := e.LastAncestors[candidateHex]
		if !ok {
			continue
		}
		if v, found := en.findAuxValue(candidateHex, lastIdx, subjectHex, inputRound); found {
			return v
		}
		if i == 0 && !en.waitedLongEnough(e, subjectHex, parentVote.Round) {
			return nil
		}
	}
	return nil
}

// findAuxValue walks creatorHex's own chain backward from index fromIdx,
// looking for the most recent event whose meta-vote for subjectHex at
// (round, step=2) carries a defined aux_value.
func (en *Engine) findAuxValue(creatorHex string, fromIdx uint64, subjectHex string, atRound uint32) (*bool, bool) {
	for idx := fromIdx; ; idx-- {
		hash, ok := en.peers.EventByIndex(creatorHex, idx)
		if ok {
			if votes, hasVotes := en.votes[hash]; hasVotes {
				if mv, found := votes[subjectHex]; found && mv.Round == atRound && mv.Step == StepGenuineFlip && mv.AuxValue != nil {
					v := *mv.AuxValue
					return &v, true
				}
			}
		}
		if idx == 0 {
			return nil, false
		}
	}
}

// waitedLongEnough reports whether e has walked back responsivenessThreshold
// response events along self-parents and found the meta-vote for
// (subjectHex, round) already awaiting at that point (spec §4.4).
func (en *Engine) waitedLongEnough(e *gossip.Event, subjectHex string, atRound uint32) bool {
	threshold := responsivenessThreshold(en.peers.NumPeers())
	count := 0
	cur := e
	for cur.SelfParent != nil {
		parent, ok := en.graph.Get(*cur.SelfParent)
		if !ok {
			return false
		}
		if parent.PayloadKind == gossip.PayloadResponseMarker {
			count++
			if count >= threshold {
				votes, ok := en.votes[parent.Hash]
				if !ok {
					return false
				}
				mv, ok := votes[subjectHex]
				if !ok {
					return false
				}
				return mv.Round == atRound && len(mv.Estimates) == 0
			}
		}
		cur = parent
	}
	return false
}

// responsivenessThreshold returns ceil(log2(n)).
func responsivenessThreshold(n int) int {
	threshold := 0
	for (1 << uint(threshold)) < n {
		threshold++
	}
	return threshold
}
