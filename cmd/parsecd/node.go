package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parsecwire/parsec/config"
	"github.com/parsecwire/parsec/identity"
	"github.com/parsecwire/parsec/metrics"
	"github.com/parsecwire/parsec/parsec"
)

var (
	nodeConfigPath string
	nodePassword   string
)

// nodeCmd boots a single driver from its config and keystore and reports its
// state. The core ships no transport (spec §1 Non-goals), so this command
// stops short of gossiping with peers: wiring a driver to a real network is
// left to the embedding application.
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Load a node's config and keystore and report its initial driver state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nodeConfigPath)
		if err != nil {
			return fmt.Errorf("node: load config: %w", err)
		}

		password := nodePassword
		if password == "" {
			password = os.Getenv("PARSEC_PASSWORD")
		}
		secret, err := identity.LoadKey(cfg.KeystorePath, password)
		if err != nil {
			return fmt.Errorf("node: load keystore: %w", err)
		}

		logLevel := zap.InfoLevel
		if cfg.LogLevel != "" {
			if err := logLevel.Set(cfg.LogLevel); err != nil {
				return fmt.Errorf("node: invalid log_level %q: %w", cfg.LogLevel, err)
			}
		}
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(logLevel)
		logger, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("node: build logger: %w", err)
		}
		defer logger.Sync()

		d, err := parsec.New(cfg, secret, identity.Default, logger, metrics.New(prometheus.DefaultRegisterer))
		if err != nil {
			return fmt.Errorf("node: construct driver: %w", err)
		}

		fmt.Printf("node id:       %s\n", d.OurPublicID().Hex())
		fmt.Printf("genesis peers: %d\n", len(cfg.GenesisPeers))
		fmt.Printf("graph size:    %d\n", d.GraphSize())
		return nil
	},
}

func init() {
	nodeCmd.Flags().StringVar(&nodeConfigPath, "config", "config.json", "path to node config file")
	nodeCmd.Flags().StringVar(&nodePassword, "password", "", "keystore password (falls back to PARSEC_PASSWORD)")
}
