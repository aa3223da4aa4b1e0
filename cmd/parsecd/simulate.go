package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/parsecwire/parsec/block"
	"github.com/parsecwire/parsec/config"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metrics"
	"github.com/parsecwire/parsec/parsec"
)

var (
	simPeers     int
	simVotes     string
	simMaxRounds int
	simFanout    int64
)

// simulateCmd runs a fully in-process PARSEC network: every driver lives in
// this process, gossip is fanned out peer-to-peer with no real transport,
// and bounded concurrency keeps one round from issuing more in-flight
// exchanges than --fanout allows (grounded on the weighted send-semaphore
// pattern this codebase's gossip-protocol lineage uses to cap concurrent
// fanout). It exists to let an operator watch consensus converge without
// standing up a network; embedding applications wire their own transport to
// parsec.Driver.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run an in-process multi-peer simulation and print stable blocks as they converge",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simPeers < config.MinGenesisPeers {
			return fmt.Errorf("simulate: --peers must be at least %d, got %d", config.MinGenesisPeers, simPeers)
		}
		votes := splitNonEmpty(simVotes)
		if len(votes) == 0 {
			return fmt.Errorf("simulate: --votes must list at least one payload")
		}

		drivers, err := buildSimulationDrivers(simPeers)
		if err != nil {
			return err
		}
		for i, d := range drivers {
			payload := votes[i%len(votes)]
			if err := d.VoteFor(identity.NetworkEvent(payload)); err != nil {
				return fmt.Errorf("simulate: peer %d vote_for: %w", i, err)
			}
		}

		sem := semaphore.NewWeighted(simFanout)
		for round := 0; round < simMaxRounds; round++ {
			before := totalGraphSize(drivers)
			if err := gossipRound(drivers, sem); err != nil {
				return err
			}
			drained := drainBlocks(drivers)
			for _, b := range drained {
				fmt.Printf("round %d: block stabilised payload=%q votes=%d\n", round, string(b.Payload.Bytes()), len(b.Votes))
			}
			if totalGraphSize(drivers) == before {
				fmt.Printf("quiescent after %d rounds\n", round+1)
				break
			}
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simPeers, "peers", config.MinGenesisPeers, "number of in-process peers to simulate")
	simulateCmd.Flags().StringVar(&simVotes, "votes", "genesis-payload", "comma-separated payloads, assigned round-robin to peers")
	simulateCmd.Flags().IntVar(&simMaxRounds, "max-rounds", 32, "maximum gossip rounds before giving up")
	simulateCmd.Flags().Int64Var(&simFanout, "fanout", 4, "maximum concurrent in-flight gossip exchanges per round")
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func buildSimulationDrivers(n int) ([]*parsec.Driver, error) {
	secrets := make([]identity.SecretID, n)
	genesis := make([]identity.PublicID, n)
	for i := 0; i < n; i++ {
		secret, err := identity.GenerateSecretID()
		if err != nil {
			return nil, fmt.Errorf("simulate: generate peer %d identity: %w", i, err)
		}
		secrets[i] = secret
		genesis[i] = secret.PublicID()
	}
	genesisHexes := make([]string, n)
	for i, p := range genesis {
		genesisHexes[i] = p.Hex()
	}

	logger := zap.NewNop()
	drivers := make([]*parsec.Driver, n)
	for i := 0; i < n; i++ {
		cfg := &config.Config{
			NodeID:       genesisHexes[i],
			GenesisPeers: genesisHexes,
			GenesisSalt:  "73696d756c617465", // "simulate" in hex; fixed so every peer derives the same salt
			KeystorePath: "unused",
		}
		d, err := parsec.New(cfg, secrets[i], identity.Default, logger, metrics.New(prometheus.NewRegistry()))
		if err != nil {
			return nil, fmt.Errorf("simulate: construct peer %d driver: %w", i, err)
		}
		drivers[i] = d
	}
	return drivers, nil
}

// gossipRound fans every driver's CreateGossip out to every other driver,
// bounded by sem so a round never runs more than sem's weight of exchanges
// concurrently, then feeds each response back to its sender.
func gossipRound(drivers []*parsec.Driver, sem *semaphore.Weighted) error {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, src := range drivers {
		for j, dst := range drivers {
			if i == j {
				continue
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("simulate: acquire fanout slot: %w", err)
			}
			wg.Add(1)
			go func(src, dst *parsec.Driver) {
				defer wg.Done()
				defer sem.Release(1)

				req := src.CreateGossip()
				resp, err := dst.HandleRequest(src.OurPublicID(), req)
				if err == nil {
					err = src.HandleResponse(dst.OurPublicID(), resp)
				}
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(src, dst)
		}
	}
	wg.Wait()
	return firstErr
}

func totalGraphSize(drivers []*parsec.Driver) int {
	total := 0
	for _, d := range drivers {
		total += d.GraphSize()
	}
	return total
}

func drainBlocks(drivers []*parsec.Driver) []*block.Block {
	var out []*block.Block
	for _, d := range drivers {
		for {
			blk, ok := d.Poll()
			if !ok {
				break
			}
			out = append(out, blk)
		}
	}
	return out
}
