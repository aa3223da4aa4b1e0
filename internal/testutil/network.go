// Package testutil provides in-memory, deterministic test doubles for the
// consensus core: reproducible identities and a multi-driver harness that
// exchanges gossip without any real transport. Never import this in
// production code.
package testutil

import (
	"encoding/hex"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/parsecwire/parsec/config"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metrics"
	"github.com/parsecwire/parsec/parsec"
)

// DeterministicSecret returns a reproducible ed25519 identity.SecretID
// seeded from label, so tests can refer to "peer A" across runs without
// generating random keys.
func DeterministicSecret(label string) identity.SecretID {
	seed := make([]byte, 32)
	copy(seed, label)
	secret, err := identity.SecretIDFromSeed(seed)
	if err != nil {
		panic(err) // a fixed-size deterministic seed never fails
	}
	return secret
}

// Network is a fixed group of in-process drivers sharing one genesis group
// and salt, wired together for tests with no real transport: callers drive
// gossip explicitly via Exchange or by calling driver methods directly.
type Network struct {
	Secrets []identity.SecretID
	Drivers []*parsec.Driver
}

// NewNetwork builds n drivers sharing one genesis group, labelling peers
// "peer-0".."peer-(n-1)" for deterministic identities across test runs.
func NewNetwork(n int) (*Network, error) {
	secrets := make([]identity.SecretID, n)
	genesis := make([]identity.PublicID, n)
	for i := 0; i < n; i++ {
		secrets[i] = DeterministicSecret(fmt.Sprintf("peer-%d", i))
		genesis[i] = secrets[i].PublicID()
	}

	genesisHexes := make([]string, n)
	for i, p := range genesis {
		genesisHexes[i] = p.Hex()
	}
	salt := []byte("testutil-genesis-salt")

	drivers := make([]*parsec.Driver, n)
	logger := zap.NewNop()
	for i := 0; i < n; i++ {
		cfg := &config.Config{
			NodeID:       genesis[i].Hex(),
			GenesisPeers: genesisHexes,
			GenesisSalt:  hex.EncodeToString(salt),
			KeystorePath: "unused",
		}
		d, err := parsec.New(cfg, secrets[i], identity.Default, logger, metrics.New(prometheus.NewRegistry()))
		if err != nil {
			return nil, err
		}
		drivers[i] = d
	}
	return &Network{Secrets: secrets, Drivers: drivers}, nil
}

// Exchange performs one round-robin gossip pass: each driver in turn sends a
// request to the next driver and absorbs its response.
func (n *Network) Exchange() error {
	count := len(n.Drivers)
	for i := 0; i < count; i++ {
		src := n.Drivers[i]
		dst := n.Drivers[(i+1)%count]

		req := src.CreateGossip()
		resp, err := dst.HandleRequest(src.OurPublicID(), req)
		if err != nil {
			return err
		}
		if err := src.HandleResponse(dst.OurPublicID(), resp); err != nil {
			return err
		}
	}
	return nil
}

// ExchangeUntilQuiescent repeats Exchange until no driver's graph grows
// between rounds, or maxRounds is reached (a misbehaving test should not
// hang the suite).
func (n *Network) ExchangeUntilQuiescent(maxRounds int) error {
	for round := 0; round < maxRounds; round++ {
		before := n.totalGraphSize()
		if err := n.Exchange(); err != nil {
			return err
		}
		if n.totalGraphSize() == before {
			return nil
		}
	}
	return nil
}

func (n *Network) totalGraphSize() int {
	total := 0
	for _, d := range n.Drivers {
		total += d.GraphSize()
	}
	return total
}
