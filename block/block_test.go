package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metavote"
	"github.com/parsecwire/parsec/observation"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/round"
)

func votedEvent(t *testing.T, hasher identity.Hasher, secret identity.SecretID, payload []byte) *gossip.Event {
	t.Helper()
	vote := &gossip.Vote{NetworkEvent: identity.NetworkEvent(payload), Signature: secret.Sign(payload)}
	e := gossip.NewInitialEvent(secret.PublicID(), gossip.PayloadVote, vote)
	e.Sign(hasher, secret)
	return e
}

func TestPluralityPicksHighestCount(t *testing.T) {
	hasher := identity.BLAKE3Hasher{}
	s1, err := identity.GenerateSecretID()
	require.NoError(t, err)
	s2, err := identity.GenerateSecretID()
	require.NoError(t, err)
	s3, err := identity.GenerateSecretID()
	require.NoError(t, err)

	majority := votedEvent(t, hasher, s1, []byte("payload-x"))
	majority2 := votedEvent(t, hasher, s2, []byte("payload-x"))
	minority := votedEvent(t, hasher, s3, []byte("payload-y"))

	winner, ok := plurality([]*gossip.Event{majority, majority2, minority})
	require.True(t, ok)
	assert.True(t, winner.Equal(identity.NetworkEvent("payload-x")))
}

func TestPluralityTieBreaksByLexicographicallyGreatestVoteBytes(t *testing.T) {
	hasher := identity.BLAKE3Hasher{}
	s1, err := identity.GenerateSecretID()
	require.NoError(t, err)
	s2, err := identity.GenerateSecretID()
	require.NoError(t, err)

	a := votedEvent(t, hasher, s1, []byte("payload-a"))
	b := votedEvent(t, hasher, s2, []byte("payload-b"))

	winner, ok := plurality([]*gossip.Event{a, b})
	require.True(t, ok)

	var expect identity.NetworkEvent
	if string(a.Vote.Bytes()) > string(b.Vote.Bytes()) {
		expect = a.Vote.NetworkEvent
	} else {
		expect = b.Vote.NetworkEvent
	}
	assert.True(t, winner.Equal(expect))
}

func TestPluralityEmptyInputReturnsFalse(t *testing.T) {
	_, ok := plurality(nil)
	assert.False(t, ok)
}

func TestReadyFalseWithoutDecidedVotes(t *testing.T) {
	hasher := identity.BLAKE3Hasher{}
	secret, err := identity.GenerateSecretID()
	require.NoError(t, err)
	genesis := []identity.PublicID{secret.PublicID()}

	graph := gossip.New()
	peers, err := peerlist.New(genesis, secret.PublicID())
	require.NoError(t, err)
	rounds := round.NewMap(hasher, []byte("salt"))
	engine := metavote.NewEngine(hasher, graph, peers, rounds)
	obs := observation.New()

	e := gossip.NewInitialEvent(secret.PublicID(), gossip.PayloadNone, nil)
	e.Sign(hasher, secret)
	require.NoError(t, graph.Insert(e))

	assembler := NewAssembler(hasher, graph, peers, engine, obs)
	assert.False(t, assembler.Ready(e))
}
