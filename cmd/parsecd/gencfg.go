package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parsecwire/parsec/config"
	"github.com/parsecwire/parsec/identity"
)

var (
	genConfigPeers    int
	genConfigOutDir   string
	genConfigPassword string
)

var genConfigCmd = &cobra.Command{
	Use:   "gencfg",
	Short: "Generate a genesis group: one keystore and config.json per peer, sharing one salt",
	RunE: func(cmd *cobra.Command, args []string) error {
		if genConfigPeers < config.MinGenesisPeers {
			return fmt.Errorf("gencfg: --peers must be at least %d, got %d", config.MinGenesisPeers, genConfigPeers)
		}
		if err := os.MkdirAll(genConfigOutDir, 0755); err != nil {
			return err
		}

		salt := make([]byte, 32)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("gencfg: generate genesis salt: %w", err)
		}
		saltHex := hex.EncodeToString(salt)

		secrets := make([]identity.SecretID, genConfigPeers)
		genesisHexes := make([]string, genConfigPeers)
		for i := 0; i < genConfigPeers; i++ {
			secret, err := identity.GenerateSecretID()
			if err != nil {
				return fmt.Errorf("gencfg: generate peer %d identity: %w", i, err)
			}
			secrets[i] = secret
			genesisHexes[i] = secret.PublicID().Hex()
		}

		for i, secret := range secrets {
			peerDir := filepath.Join(genConfigOutDir, fmt.Sprintf("peer-%d", i))
			if err := os.MkdirAll(peerDir, 0755); err != nil {
				return err
			}

			keystorePath := filepath.Join(peerDir, "node.keystore")
			if err := identity.SaveKey(keystorePath, genConfigPassword, secret); err != nil {
				return fmt.Errorf("gencfg: save keystore for peer %d: %w", i, err)
			}

			cfg := &config.Config{
				NodeID:       genesisHexes[i],
				GenesisPeers: genesisHexes,
				GenesisSalt:  saltHex,
				KeystorePath: keystorePath,
				MetricsAddr:  fmt.Sprintf(":%d", 9090+i),
				LogLevel:     "info",
			}
			cfgPath := filepath.Join(peerDir, "config.json")
			if err := config.Save(cfg, cfgPath); err != nil {
				return fmt.Errorf("gencfg: save config for peer %d: %w", i, err)
			}

			fmt.Printf("peer %d: %s -> %s\n", i, genesisHexes[i], peerDir)
		}

		return nil
	},
}

func init() {
	genConfigCmd.Flags().IntVar(&genConfigPeers, "peers", config.MinGenesisPeers, "number of peers in the genesis group")
	genConfigCmd.Flags().StringVar(&genConfigOutDir, "out-dir", "./genesis", "directory to write per-peer keystores and configs into")
	genConfigCmd.Flags().StringVar(&genConfigPassword, "password", "", "keystore password applied to every generated peer")
}
