package peerlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsecwire/parsec/identity"
)

func genIDs(t *testing.T, n int) []identity.PublicID {
	t.Helper()
	out := make([]identity.PublicID, n)
	for i := 0; i < n; i++ {
		secret, err := identity.GenerateSecretID()
		require.NoError(t, err)
		out[i] = secret.PublicID()
	}
	return out
}

func TestNewRejectsNonMember(t *testing.T) {
	genesis := genIDs(t, 4)
	outsider := genIDs(t, 1)[0]

	_, err := New(genesis, outsider)
	assert.Error(t, err)
}

func TestAddEventAndLookups(t *testing.T) {
	genesis := genIDs(t, 4)
	pl, err := New(genesis, genesis[0])
	require.NoError(t, err)

	hex0 := genesis[0].Hex()
	var h0 identity.Hash
	h0[0] = 1
	require.NoError(t, pl.AddEvent(hex0, 0, h0))

	idx, ok := pl.LatestIndex(hex0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), idx)

	latest, ok := pl.LatestHash(hex0)
	require.True(t, ok)
	assert.Equal(t, h0, latest)

	var h1 identity.Hash
	h1[0] = 2
	require.NoError(t, pl.AddEvent(hex0, 1, h1))
	idx, ok = pl.LatestIndex(hex0)
	require.True(t, ok)
	assert.Equal(t, uint64(1), idx)
}

func TestAddEventRejectsConflictingHashAtSameIndex(t *testing.T) {
	genesis := genIDs(t, 4)
	pl, err := New(genesis, genesis[0])
	require.NoError(t, err)

	hex0 := genesis[0].Hex()
	var h0, h1 identity.Hash
	h0[0], h1[0] = 1, 2

	require.NoError(t, pl.AddEvent(hex0, 0, h0))
	err = pl.AddEvent(hex0, 0, h1)
	assert.Error(t, err)

	// Re-adding the same hash at the same index is idempotent.
	assert.NoError(t, pl.AddEvent(hex0, 0, h0))
}

func TestAddEventRejectsUnknownPeer(t *testing.T) {
	genesis := genIDs(t, 4)
	pl, err := New(genesis, genesis[0])
	require.NoError(t, err)

	var h identity.Hash
	err = pl.AddEvent("not-a-genesis-peer", 0, h)
	assert.Error(t, err)
}

func TestIsSupermajorityThreshold(t *testing.T) {
	genesis := genIDs(t, 7)
	pl, err := New(genesis, genesis[0])
	require.NoError(t, err)

	// n=7: supermajority is the smallest k with 3k > 14, i.e. k=5.
	assert.False(t, pl.IsSupermajority(4))
	assert.True(t, pl.IsSupermajority(5))
	assert.Equal(t, 5, pl.SupermajorityThreshold())
}

func TestAllHexesDeterministicOrder(t *testing.T) {
	genesis := genIDs(t, 5)
	pl, err := New(genesis, genesis[0])
	require.NoError(t, err)

	a := pl.AllHexes()
	b := pl.AllHexes()
	assert.Equal(t, a, b)
	assert.Len(t, a, 5)
}
