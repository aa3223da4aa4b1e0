// Package parsec wires the gossip graph, peer list, meta-vote engine, and
// block assembler together into the protocol driver: the single type
// external callers interact with (spec §4.6).
package parsec

import (
	"sync"

	"go.uber.org/zap"

	"github.com/parsecwire/parsec/block"
	"github.com/parsecwire/parsec/config"
	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metavote"
	"github.com/parsecwire/parsec/metrics"
	"github.com/parsecwire/parsec/observation"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/perr"
	"github.com/parsecwire/parsec/round"
	"github.com/parsecwire/parsec/wire"
)

// ExtraVote is one late-arriving vote for a payload whose block has already
// been polled, surfaced through Driver.ExtraVotes instead of being silently
// dropped.
type ExtraVote struct {
	Creator string
	Vote    *gossip.Vote
}

// Driver is the protocol engine for one peer: it owns the gossip graph,
// peer list, meta-vote engine, round-hash map, and stable-block queue, and
// serialises every mutating operation behind mu (spec §5).
type Driver struct {
	mu      sync.Mutex
	logger  *zap.Logger
	metrics *metrics.Metrics

	hasher identity.Hasher
	secret identity.SecretID
	our    identity.PublicID

	graph  *gossip.Graph
	peers  *peerlist.PeerList
	obs    *observation.Store
	rounds *round.Map
	votes  *metavote.Engine
	blocks *block.Assembler

	blockQueue     []*block.Block
	polledPayloads map[identity.Hash]map[string]struct{}
	extraVotes     map[identity.Hash][]ExtraVote
}

// New constructs a Driver from cfg and secret, creates our genesis event,
// and returns the ready-to-use driver.
func New(cfg *config.Config, secret identity.SecretID, hasher identity.Hasher, logger *zap.Logger, m *metrics.Metrics) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	our := secret.PublicID()
	if our.Hex() != cfg.NodeID {
		return nil, perr.New(perr.Logic, "secret identity does not match config node_id")
	}

	peers, err := cfg.NewPeerList()
	if err != nil {
		return nil, err
	}
	genesisSalt, err := cfg.GenesisSaltBytes()
	if err != nil {
		return nil, err
	}

	graph := gossip.New()
	obs := observation.New()
	rounds := round.NewMap(hasher, genesisSalt)
	votes := metavote.NewEngine(hasher, graph, peers, rounds)
	assembler := block.NewAssembler(hasher, graph, peers, votes, obs)

	d := &Driver{
		logger:         logger,
		metrics:        m,
		hasher:         hasher,
		secret:         secret,
		our:            our,
		graph:          graph,
		peers:          peers,
		obs:            obs,
		rounds:         rounds,
		votes:          votes,
		blocks:         assembler,
		polledPayloads: make(map[identity.Hash]map[string]struct{}),
		extraVotes:     make(map[identity.Hash][]ExtraVote),
	}

	genesisEvent := gossip.NewInitialEvent(our, gossip.PayloadNone, nil)
	genesisEvent.Sign(hasher, secret)
	if err := d.appendEventLocked(genesisEvent, "local"); err != nil {
		return nil, err
	}

	return d, nil
}

// OurPublicID returns this driver's own identity.
func (d *Driver) OurPublicID() identity.PublicID { return d.our }

// GraphSize returns the current number of events held in the gossip graph.
func (d *Driver) GraphSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.graph.Len()
}

// VoteFor appends a self-parented event carrying a signed vote for payload.
func (d *Driver) VoteFor(payload identity.NetworkEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ourHex := d.peers.OurHex()
	selfParentIdx, ok := d.peers.LatestIndex(ourHex)
	if !ok {
		return perr.New(perr.Logic, "driver has no prior event to self-parent from")
	}
	selfParentHash, _ := d.peers.LatestHash(ourHex)

	vote := &gossip.Vote{NetworkEvent: payload, Signature: d.secret.Sign(payload.Bytes())}
	e := gossip.NewEvent(d.our, selfParentHash, selfParentIdx, nil, gossip.PayloadVote, vote)
	e.Sign(d.hasher, d.secret)
	return d.appendEventLocked(e, "local")
}

// HaveVotedFor reports whether any of our own events carries a vote for
// payload.
func (d *Driver) HaveVotedFor(payload identity.NetworkEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ourHex := d.peers.OurHex()
	latestIdx, ok := d.peers.LatestIndex(ourHex)
	if !ok {
		return false
	}
	for i := uint64(0); i <= latestIdx; i++ {
		hash, ok2 := d.peers.EventByIndex(ourHex, i)
		if !ok2 {
			continue
		}
		e, ok3 := d.graph.Get(hash)
		if ok3 && e.PayloadKind == gossip.PayloadVote && e.Vote != nil && e.Vote.NetworkEvent.Equal(payload) {
			return true
		}
	}
	return false
}

// CreateGossip returns every event in insertion order for the receiver to
// filter and merge.
func (d *Driver) CreateGossip() wire.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildRequestLocked(nil)
}

// CreateGossipSince is the size-bounded variant of CreateGossip: only events
// past the given per-peer frontier are included. An optimisation, not a
// correctness requirement.
func (d *Driver) CreateGossipSince(frontier map[string]uint64) wire.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buildRequestLocked(frontier)
}

func (d *Driver) buildRequestLocked(frontier map[string]uint64) wire.Request {
	var events []wire.Event
	for _, e := range d.graph.All() {
		if frontier != nil {
			if known, ok := frontier[e.Creator.Hex()]; ok && e.Index <= known {
				continue
			}
		}
		events = append(events, wire.FromGossipEvent(e))
	}
	return wire.NewRequest(events, d.ourFrontierLocked())
}

func (d *Driver) ourFrontierLocked() map[string]uint64 {
	out := make(map[string]uint64, d.peers.NumPeers())
	for _, hex := range d.peers.AllHexes() {
		if idx, ok := d.peers.LatestIndex(hex); ok {
			out[hex] = idx
		}
	}
	return out
}

// HandleRequest inserts every event in req (duplicates ignored, invalid
// events rejected), creates a request-sync event, and returns every event we
// hold that src probably lacks.
func (d *Driver) HandleRequest(src identity.PublicID, req wire.Request) (wire.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics.RequestHandled()

	if err := d.insertForeignEventsLocked(req.Events); err != nil {
		return wire.Response{}, err
	}

	srcHex := src.Hex()
	srcLatestHash, ok := d.peers.LatestHash(srcHex)
	if !ok {
		return wire.Response{}, perr.New(perr.UnknownPeer, "src has no known events")
	}

	ourHex := d.peers.OurHex()
	ourSelfParentHash, _ := d.peers.LatestHash(ourHex)
	ourSelfParentIdx, _ := d.peers.LatestIndex(ourHex)

	syncEvent := gossip.NewEvent(d.our, ourSelfParentHash, ourSelfParentIdx, &srcLatestHash, gossip.PayloadRequestMarker, nil)
	syncEvent.Sign(d.hasher, d.secret)
	if err := d.appendEventLocked(syncEvent, "local"); err != nil {
		return wire.Response{}, err
	}

	srcLatest, _ := d.graph.Get(srcLatestHash)
	events := d.eventsProbablyUnknownToLocked(srcLatest)
	resp := wire.NewResponse(events, d.ourFrontierLocked())
	resp.ID = req.ID
	return resp, nil
}

// HandleResponse inserts every event in resp and creates a response-sync
// event; there is no reply.
func (d *Driver) HandleResponse(src identity.PublicID, resp wire.Response) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics.ResponseHandled()

	if err := d.insertForeignEventsLocked(resp.Events); err != nil {
		return err
	}

	srcHex := src.Hex()
	srcLatestHash, ok := d.peers.LatestHash(srcHex)
	if !ok {
		return perr.New(perr.UnknownPeer, "src has no known events")
	}

	ourHex := d.peers.OurHex()
	ourSelfParentHash, _ := d.peers.LatestHash(ourHex)
	ourSelfParentIdx, _ := d.peers.LatestIndex(ourHex)

	syncEvent := gossip.NewEvent(d.our, ourSelfParentHash, ourSelfParentIdx, &srcLatestHash, gossip.PayloadResponseMarker, nil)
	syncEvent.Sign(d.hasher, d.secret)
	return d.appendEventLocked(syncEvent, "local")
}

func (d *Driver) insertForeignEventsLocked(events []wire.Event) error {
	for _, we := range events {
		e, err := we.ToGossipEvent()
		if err != nil {
			return err
		}
		if d.graph.Contains(e.Hash) {
			continue
		}
		if err := d.appendEventLocked(e, "remote"); err != nil {
			return err
		}
	}
	return nil
}

// eventsProbablyUnknownToLocked returns every event whose (creator, index)
// is not covered by srcLatest's transitive last-ancestors.
func (d *Driver) eventsProbablyUnknownToLocked(srcLatest *gossip.Event) []wire.Event {
	var out []wire.Event
	for _, e := range d.graph.All() {
		if known, ok := srcLatest.LastAncestors[e.Creator.Hex()]; ok && e.Index <= known {
			continue
		}
		out = append(out, wire.FromGossipEvent(e))
	}
	return out
}

// Poll pops the head of the consensused block queue, if any.
func (d *Driver) Poll() (*block.Block, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.blockQueue) == 0 {
		return nil, false
	}
	blk := d.blockQueue[0]
	d.blockQueue = d.blockQueue[1:]
	d.metrics.SetPendingBlocks(len(d.blockQueue))

	payloadHash := d.hasher.Hash(blk.Payload.Bytes())
	accounted := make(map[string]struct{}, len(blk.Votes))
	for creatorHex := range blk.Votes {
		accounted[creatorHex] = struct{}{}
	}
	d.polledPayloads[payloadHash] = accounted

	return blk, true
}

// ExtraVotes drains and returns every vote appended after its payload's block
// was polled, from a creator not already counted in that block's vote set,
// keyed by payload hash. Whether the vote is strongly seen is not checked.
func (d *Driver) ExtraVotes() map[identity.Hash][]ExtraVote {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.extraVotes
	d.extraVotes = make(map[identity.Hash][]ExtraVote)
	return out
}

// appendEventLocked validates, inserts, and derives metadata and meta-votes
// for e. Assumes d.mu is held. Inserting an already-present event is a
// no-op returning success.
func (d *Driver) appendEventLocked(e *gossip.Event, origin string) error {
	if d.graph.Contains(e.Hash) {
		return nil
	}
	if !d.peers.Contains(e.Creator.Hex()) {
		return perr.New(perr.UnknownPeer, "event creator is not a genesis peer")
	}
	if err := e.Verify(d.hasher); err != nil {
		return err
	}

	selfParentHasVotes := false
	if e.SelfParent != nil {
		selfParentHasVotes = d.votes.HasVotes(*e.SelfParent)
	}

	if err := d.graph.Insert(e); err != nil {
		return err
	}
	if err := d.peers.AddEvent(e.Creator.Hex(), e.Index, e.Hash); err != nil {
		d.graph.Remove(e.Hash)
		return err
	}
	if err := gossip.ComputeMetadata(d.graph, d.peers, d.obs, d.hasher, e, selfParentHasVotes); err != nil {
		d.peers.RemoveEvent(e.Creator.Hex(), e.Index)
		d.graph.Remove(e.Hash)
		return err
	}
	if err := d.votes.Derive(e); err != nil {
		d.peers.RemoveEvent(e.Creator.Hex(), e.Index)
		d.graph.Remove(e.Hash)
		return err
	}

	d.metrics.EventAppended(origin)
	d.metrics.SetGraphSize(d.graph.Len())
	if e.PayloadKind == gossip.PayloadVote && e.Vote != nil {
		d.recordExtraVoteIfStabilisedLocked(e)
	}
	d.logger.Debug("event appended",
		zap.String("creator", e.Creator.Hex()),
		zap.Uint64("index", e.Index),
		zap.String("origin", origin),
	)

	d.assembleReadyBlocksLocked()
	return nil
}

func (d *Driver) recordExtraVoteIfStabilisedLocked(e *gossip.Event) {
	payloadHash := d.hasher.Hash(e.Vote.NetworkEvent.Bytes())
	accounted, ok := d.polledPayloads[payloadHash]
	if !ok {
		return
	}
	creatorHex := e.Creator.Hex()
	if _, already := accounted[creatorHex]; already {
		return
	}
	accounted[creatorHex] = struct{}{}
	d.extraVotes[payloadHash] = append(d.extraVotes[payloadHash], ExtraVote{Creator: creatorHex, Vote: e.Vote})
}

// assembleReadyBlocksLocked extracts every block that is ready given the
// current state, replaying meta-vote derivation after each one until a
// fixed point, per spec §4.5.
func (d *Driver) assembleReadyBlocksLocked() {
	for {
		latestHash, ok := d.peers.LatestHash(d.peers.OurHex())
		if !ok {
			return
		}
		latest, ok := d.graph.Get(latestHash)
		if !ok || !d.blocks.Ready(latest) {
			return
		}

		blk, err := d.blocks.Assemble(latest)
		if err != nil {
			if kind, matched := perr.KindOf(err); matched && kind == perr.InsufficientVotes {
				d.metrics.InsufficientVotes()
				d.logger.Warn("block assembly found no super-majority yet", zap.Error(err))
				return
			}
			d.logger.Error("block assembly failed", zap.Error(err))
			return
		}

		d.blockQueue = append(d.blockQueue, blk)
		d.metrics.BlockStabilised()
		d.metrics.SetPendingBlocks(len(d.blockQueue))
		d.logger.Info("block stabilised", zap.Int("votes", len(blk.Votes)))

		if oldest, ok := d.blocks.OldestReplayPoint(); ok {
			for _, e := range d.graph.All() {
				if e.TopologicalIndex < oldest.TopologicalIndex {
					continue
				}
				if err := d.votes.Derive(e); err != nil {
					d.logger.Error("meta-vote replay failed", zap.Error(err))
					return
				}
			}
		}
	}
}
