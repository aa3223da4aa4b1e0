package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsecwire/parsec/gossip"
	"github.com/parsecwire/parsec/identity"
)

func TestFromGossipEventToGossipEventRoundTrip(t *testing.T) {
	hasher := identity.BLAKE3Hasher{}
	secret, err := identity.GenerateSecretID()
	require.NoError(t, err)

	vote := &gossip.Vote{NetworkEvent: identity.NetworkEvent("payload"), Signature: secret.Sign([]byte("payload"))}
	e := gossip.NewInitialEvent(secret.PublicID(), gossip.PayloadVote, vote)
	e.Sign(hasher, secret)

	w := FromGossipEvent(e)
	back, err := w.ToGossipEvent()
	require.NoError(t, err)

	assert.Equal(t, e.Hash, back.Hash)
	assert.Equal(t, e.Signature, back.Signature)
	assert.Equal(t, e.Index, back.Index)
	assert.True(t, back.Creator.Equal(e.Creator))
	assert.True(t, back.Vote.NetworkEvent.Equal(e.Vote.NetworkEvent))
	assert.Equal(t, e.Vote.Signature, back.Vote.Signature)
	assert.NoError(t, back.Verify(hasher))
}

func TestToGossipEventRejectsMalformedCreator(t *testing.T) {
	w := Event{Creator: []byte("too-short")}
	_, err := w.ToGossipEvent()
	assert.Error(t, err)
}

func TestNewRequestResponseHaveDistinctIDs(t *testing.T) {
	req := NewRequest(nil, map[string]uint64{"a": 3})
	resp := NewResponse(nil, map[string]uint64{"a": 3})
	assert.NotEqual(t, req.ID, resp.ID)
	assert.NotEqual(t, req.ID.String(), "")
}
