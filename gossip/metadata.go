package gossip

import (
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/observation"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/perr"
)

// ComputeMetadata computes, in order, e's index, last_ancestors,
// first_descendants, valid_blocks_carried, and observations, per spec §4.2.
// It must be called exactly once, immediately after e is appended to graph
// and peers. selfParentHasMetaVotes tells the function whether the current
// consensus round has already started meta-voting on e's self-parent, which
// suppresses steps 4 and 5 (spec: "skipped... remains empty").
func ComputeMetadata(
	graph *Graph,
	peers *peerlist.PeerList,
	obs *observation.Store,
	hasher identity.Hasher,
	e *Event,
	selfParentHasMetaVotes bool,
) error {
	creatorHex := e.Creator.Hex()

	var selfParentEvent, otherParentEvent *Event
	if e.SelfParent != nil {
		sp, ok := graph.Get(*e.SelfParent)
		if !ok {
			return perr.New(perr.UnknownParent, "self-parent missing during metadata computation")
		}
		selfParentEvent = sp
	}
	if e.OtherParent != nil {
		op, ok := graph.Get(*e.OtherParent)
		if !ok {
			return perr.New(perr.UnknownParent, "other-parent missing during metadata computation")
		}
		otherParentEvent = op
		if selfParentEvent == nil {
			return perr.New(perr.InvalidEvent, "event has other-parent without self-parent")
		}
	}

	// Step 1: index.
	if e.IsInitial() {
		if e.Index != 0 {
			return perr.New(perr.InvalidEvent, "initial event must have index 0")
		}
	} else {
		if e.Index != selfParentEvent.Index+1 {
			return perr.New(perr.InvalidEvent, "event index does not follow self-parent chain")
		}
	}

	// Step 2: last_ancestors.
	e.LastAncestors = make(map[string]uint64)
	if e.IsInitial() {
		e.LastAncestors[creatorHex] = 0
	} else {
		for peerHex, idx := range selfParentEvent.LastAncestors {
			e.LastAncestors[peerHex] = idx
		}
		if otherParentEvent != nil {
			for peerHex, idx := range otherParentEvent.LastAncestors {
				if cur, ok := e.LastAncestors[peerHex]; !ok || idx > cur {
					e.LastAncestors[peerHex] = idx
				}
			}
		}
		e.LastAncestors[creatorHex] = e.Index
	}

	// Step 3: first_descendants.
	e.FirstDescendants = map[string]uint64{creatorHex: e.Index}
	for peerHex, lastIdx := range e.LastAncestors {
		if peerHex == creatorHex {
			continue
		}
		hash, ok := peers.EventByIndex(peerHex, lastIdx)
		if !ok {
			continue
		}
		cur, ok := graph.Get(hash)
		for ok {
			if _, has := cur.FirstDescendants[creatorHex]; has {
				break
			}
			cur.FirstDescendants[creatorHex] = e.Index
			if cur.SelfParent == nil {
				break
			}
			cur, ok = graph.Get(*cur.SelfParent)
		}
	}

	// Steps 4 & 5 are skipped once the self-parent has already started
	// meta-voting: we are past the point where new blocks can become valid
	// within the current consensus round.
	if selfParentHasMetaVotes {
		e.ValidBlocksCarried = map[identity.Hash]struct{}{}
		e.Observations = map[string]struct{}{}
		return nil
	}

	// Step 4: valid_blocks_carried.
	e.ValidBlocksCarried = make(map[identity.Hash]struct{})
	if selfParentEvent != nil {
		for h := range selfParentEvent.ValidBlocksCarried {
			e.ValidBlocksCarried[h] = struct{}{}
		}
	}
	if otherParentEvent != nil {
		for h := range otherParentEvent.ValidBlocksCarried {
			e.ValidBlocksCarried[h] = struct{}{}
		}
	}
	if e.PayloadKind == PayloadVote && e.Vote != nil {
		payloadHash := hasher.Hash(e.Vote.NetworkEvent.Bytes())
		obs.Record(payloadHash, creatorHex, uint64(e.TopologicalIndex))
		if obs.IsSupermajority(payloadHash, peers.NumPeers()) {
			e.ValidBlocksCarried[e.Hash] = struct{}{}
		}
	}

	// Step 5: observations.
	e.Observations = make(map[string]struct{})
	oldest, ok := oldestValidBlockAncestor(graph, e)
	if ok {
		for _, hex := range peers.AllHexes() {
			latestHash, ok2 := peers.LatestHash(hex)
			if !ok2 {
				continue
			}
			latest, ok3 := graph.Get(latestHash)
			if !ok3 {
				continue
			}
			if DoesStronglySee(peers, latest, oldest) {
				e.Observations[hex] = struct{}{}
			}
		}
	}

	return nil
}

// oldestValidBlockAncestor walks e's self-parent chain to find the earliest
// ancestor (inclusive of e) whose ValidBlocksCarried set is still non-empty,
// giving "the oldest valid-block-carrying event of this creator's history."
func oldestValidBlockAncestor(graph *Graph, e *Event) (*Event, bool) {
	if len(e.ValidBlocksCarried) == 0 {
		return nil, false
	}
	cur := e
	for cur.SelfParent != nil {
		parent, ok := graph.Get(*cur.SelfParent)
		if !ok || len(parent.ValidBlocksCarried) == 0 {
			break
		}
		cur = parent
	}
	return cur, true
}

// DoesStronglySee reports whether x strongly sees y: a supermajority of
// peers P exist such that y.FirstDescendants[P] <= x.LastAncestors[P].
func DoesStronglySee(peers *peerlist.PeerList, x, y *Event) bool {
	count := 0
	for _, hex := range peers.AllHexes() {
		yFirst, ok1 := y.FirstDescendants[hex]
		xLast, ok2 := x.LastAncestors[hex]
		if ok1 && ok2 && yFirst <= xLast {
			count++
		}
	}
	return peers.IsSupermajority(count)
}

// IsObserver reports whether e's observations cover a supermajority of the
// genesis group — the trigger for starting meta-votes at round 0 (spec §4.3
// Case B).
func IsObserver(peers *peerlist.PeerList, e *Event) bool {
	return peers.IsSupermajority(len(e.Observations))
}
