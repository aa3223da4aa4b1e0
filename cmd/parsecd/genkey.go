package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parsecwire/parsec/identity"
)

var (
	genKeyOut      string
	genKeyPassword string
)

var genKeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new ed25519 node identity and write it to an encrypted keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := genKeyPassword
		if password == "" {
			password = os.Getenv("PARSEC_PASSWORD")
		}
		if password == "" {
			fmt.Fprintln(os.Stderr, "warning: PARSEC_PASSWORD not set, keystore will use an empty password")
		}

		secret, err := identity.GenerateSecretID()
		if err != nil {
			return fmt.Errorf("generate identity: %w", err)
		}
		if err := identity.SaveKey(genKeyOut, password, secret); err != nil {
			return fmt.Errorf("save keystore: %w", err)
		}

		fmt.Printf("generated identity %s\n", secret.PublicID().Hex())
		fmt.Printf("keystore written to %s\n", genKeyOut)
		return nil
	},
}

func init() {
	genKeyCmd.Flags().StringVar(&genKeyOut, "out", "./node.keystore", "path to write the encrypted keystore")
	genKeyCmd.Flags().StringVar(&genKeyPassword, "password", "", "keystore password (falls back to PARSEC_PASSWORD)")
}
