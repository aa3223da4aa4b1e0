package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/observation"
	"github.com/parsecwire/parsec/peerlist"
)

// appendTestEvent mirrors the minimal sequence parsec.Driver performs on
// every append: insert into the graph, register in the peer list, then
// compute derived metadata. selfParentHasMetaVotes is always false here,
// since these tests never exercise the meta-vote engine directly.
func appendTestEvent(t *testing.T, g *Graph, peers *peerlist.PeerList, obs *observation.Store, hasher identity.Hasher, e *Event) {
	t.Helper()
	require.NoError(t, g.Insert(e))
	require.NoError(t, peers.AddEvent(e.Creator.Hex(), e.Index, e.Hash))
	require.NoError(t, ComputeMetadata(g, peers, obs, hasher, e, false))
}

func threePeerSetup(t *testing.T) (*Graph, *peerlist.PeerList, *observation.Store, identity.Hasher, []identity.SecretID) {
	t.Helper()
	hasher := identity.BLAKE3Hasher{}
	secrets := []identity.SecretID{testSecret(t, "peer-a"), testSecret(t, "peer-b"), testSecret(t, "peer-c")}
	genesis := make([]identity.PublicID, len(secrets))
	for i, s := range secrets {
		genesis[i] = s.PublicID()
	}
	peers, err := peerlist.New(genesis, genesis[0])
	require.NoError(t, err)
	return New(), peers, observation.New(), hasher, secrets
}

func TestComputeMetadataInitialEventLastAncestors(t *testing.T) {
	g, peers, obs, hasher, secrets := threePeerSetup(t)
	a0 := newSignedInitial(t, hasher, secrets[0])
	appendTestEvent(t, g, peers, obs, hasher, a0)

	require.Equal(t, uint64(0), a0.LastAncestors[secrets[0].PublicID().Hex()])
	require.Len(t, a0.LastAncestors, 1)
	require.Equal(t, uint64(0), a0.FirstDescendants[secrets[0].PublicID().Hex()])
}

func TestComputeMetadataMergesOtherParentLastAncestors(t *testing.T) {
	g, peers, obs, hasher, secrets := threePeerSetup(t)
	a0 := newSignedInitial(t, hasher, secrets[0])
	appendTestEvent(t, g, peers, obs, hasher, a0)
	b0 := newSignedInitial(t, hasher, secrets[1])
	appendTestEvent(t, g, peers, obs, hasher, b0)

	a1 := NewEvent(secrets[0].PublicID(), a0.Hash, 0, &b0.Hash, PayloadNone, nil)
	a1.Sign(hasher, secrets[0])
	appendTestEvent(t, g, peers, obs, hasher, a1)

	aHex, bHex := secrets[0].PublicID().Hex(), secrets[1].PublicID().Hex()
	require.Equal(t, uint64(1), a1.LastAncestors[aHex])
	require.Equal(t, uint64(0), a1.LastAncestors[bHex])

	// first_descendants propagates backward: b0 now knows a1 descends from it.
	require.Equal(t, uint64(1), b0.FirstDescendants[aHex])
}

func TestComputeMetadataRejectsOtherParentWithoutSelfParent(t *testing.T) {
	g, peers, obs, hasher, secrets := threePeerSetup(t)
	a0 := newSignedInitial(t, hasher, secrets[0])
	appendTestEvent(t, g, peers, obs, hasher, a0)

	malformed := &Event{
		Creator:     secrets[1].PublicID(),
		OtherParent: &a0.Hash,
		Index:       0,
	}
	malformed.Sign(hasher, secrets[1])

	require.NoError(t, g.Insert(malformed))
	require.NoError(t, peers.AddEvent(malformed.Creator.Hex(), malformed.Index, malformed.Hash))
	err := ComputeMetadata(g, peers, obs, hasher, malformed, false)
	require.Error(t, err)
}

func fourPeerSetup(t *testing.T) (*Graph, *peerlist.PeerList, *observation.Store, identity.Hasher, []identity.SecretID) {
	t.Helper()
	hasher := identity.BLAKE3Hasher{}
	secrets := []identity.SecretID{
		testSecret(t, "peer-a"), testSecret(t, "peer-b"),
		testSecret(t, "peer-c"), testSecret(t, "peer-d"),
	}
	genesis := make([]identity.PublicID, len(secrets))
	for i, s := range secrets {
		genesis[i] = s.PublicID()
	}
	peers, err := peerlist.New(genesis, genesis[0])
	require.NoError(t, err)
	return New(), peers, observation.New(), hasher, secrets
}

func TestDoesStronglySeeMonotoneOverDescendants(t *testing.T) {
	g, peers, obs, hasher, secrets := fourPeerSetup(t)

	genesisEvents := make([]*Event, len(secrets))
	for i, s := range secrets {
		genesisEvents[i] = newSignedInitial(t, hasher, s)
		appendTestEvent(t, g, peers, obs, hasher, genesisEvents[i])
	}
	y := genesisEvents[0] // a0

	// b, c, d each gossip a0 into a second event, so a0.FirstDescendants
	// records each of them.
	followUps := make([]*Event, 3)
	for i, s := range secrets[1:] {
		e := NewEvent(s.PublicID(), genesisEvents[i+1].Hash, 0, &y.Hash, PayloadNone, nil)
		e.Sign(hasher, s)
		appendTestEvent(t, g, peers, obs, hasher, e)
		followUps[i] = e
	}

	// a builds a chain that gossips in all three follow-ups, so its
	// last_ancestors covers every peer's index recorded in a0's
	// first_descendants.
	cur := y
	for i, idx := 0, uint64(0); i < len(followUps); i++ {
		next := NewEvent(secrets[0].PublicID(), cur.Hash, idx, &followUps[i].Hash, PayloadNone, nil)
		next.Sign(hasher, secrets[0])
		appendTestEvent(t, g, peers, obs, hasher, next)
		cur = next
		idx++
	}
	x := cur

	before := DoesStronglySee(peers, x, y)
	require.True(t, before, "x should strongly see y once it has gossiped in a supermajority")

	// A purely self-parented descendant of x must still strongly see y.
	x1 := NewEvent(secrets[0].PublicID(), x.Hash, x.Index, nil, PayloadNone, nil)
	x1.Sign(hasher, secrets[0])
	appendTestEvent(t, g, peers, obs, hasher, x1)

	after := DoesStronglySee(peers, x1, y)
	assert.True(t, after, "strongly-see must be monotone over descendants")
}
