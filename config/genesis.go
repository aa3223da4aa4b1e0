package config

import (
	"encoding/hex"

	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/peerlist"
	"github.com/parsecwire/parsec/perr"
)

// GenesisPeerIDs parses every hex identity in cfg.GenesisPeers into a
// identity.PublicID.
func (c *Config) GenesisPeerIDs() ([]identity.PublicID, error) {
	out := make([]identity.PublicID, 0, len(c.GenesisPeers))
	for _, hexID := range c.GenesisPeers {
		pub, err := identity.PublicIDFromHex(hexID)
		if err != nil {
			return nil, perr.Wrap(perr.InvalidEvent, "genesis peer "+hexID+" is not a valid identity", err)
		}
		out = append(out, pub)
	}
	return out, nil
}

// OurPeerID parses cfg.NodeID into a identity.PublicID.
func (c *Config) OurPeerID() (identity.PublicID, error) {
	pub, err := identity.PublicIDFromHex(c.NodeID)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidEvent, "node_id is not a valid identity", err)
	}
	return pub, nil
}

// GenesisSaltBytes decodes the shared hex salt used to seed every peer's
// round-hash chain.
func (c *Config) GenesisSaltBytes() ([]byte, error) {
	salt, err := hex.DecodeString(c.GenesisSalt)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidEvent, "genesis_salt is not valid hex", err)
	}
	return salt, nil
}

// NewPeerList builds the peerlist.PeerList for this configuration.
func (c *Config) NewPeerList() (*peerlist.PeerList, error) {
	genesis, err := c.GenesisPeerIDs()
	if err != nil {
		return nil, err
	}
	our, err := c.OurPeerID()
	if err != nil {
		return nil, err
	}
	return peerlist.New(genesis, our)
}
