package config

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsecwire/parsec/identity"
)

func genesisConfig(t *testing.T) (*Config, []identity.SecretID) {
	t.Helper()
	secrets := make([]identity.SecretID, 4)
	peers := make([]string, 4)
	for i := range secrets {
		s, err := identity.GenerateSecretID()
		require.NoError(t, err)
		secrets[i] = s
		peers[i] = s.PublicID().Hex()
	}
	cfg := DefaultConfig()
	cfg.NodeID = peers[0]
	cfg.GenesisPeers = peers
	cfg.GenesisSalt = hex.EncodeToString([]byte("genesis-salt"))
	return cfg, secrets
}

func TestGenesisPeerIDsParsesEveryPeer(t *testing.T) {
	cfg, secrets := genesisConfig(t)
	ids, err := cfg.GenesisPeerIDs()
	require.NoError(t, err)
	require.Len(t, ids, 4)
	for i, id := range ids {
		assert.True(t, id.Equal(secrets[i].PublicID()))
	}
}

func TestOurPeerIDMatchesNodeID(t *testing.T) {
	cfg, secrets := genesisConfig(t)
	pub, err := cfg.OurPeerID()
	require.NoError(t, err)
	assert.True(t, pub.Equal(secrets[0].PublicID()))
}

func TestGenesisSaltBytesDecodesHex(t *testing.T) {
	cfg, _ := genesisConfig(t)
	salt, err := cfg.GenesisSaltBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("genesis-salt"), salt)
}

func TestNewPeerListBuildsMembership(t *testing.T) {
	cfg, secrets := genesisConfig(t)
	pl, err := cfg.NewPeerList()
	require.NoError(t, err)
	assert.Equal(t, 4, pl.NumPeers())
	assert.True(t, pl.Contains(secrets[0].PublicID().Hex()))
}

func TestGenesisPeerIDsRejectsMalformedHex(t *testing.T) {
	cfg, _ := genesisConfig(t)
	cfg.GenesisPeers[0] = "zz-not-hex"
	_, err := cfg.GenesisPeerIDs()
	assert.Error(t, err)
}
