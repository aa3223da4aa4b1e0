// Command parsecd is the operator-facing entry point for the PARSEC
// consensus core: key management, genesis-group scaffolding, and an
// in-process simulation for exercising the protocol without a real
// transport (the core never ships one, per spec §1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parsecd",
	Short: "Key management and simulation tooling for a PARSEC consensus node",
	Long:  "parsecd manages node identities and genesis configuration for the PARSEC consensus core, and can run an in-process multi-peer simulation to watch the protocol converge on stable blocks.",
}

func init() {
	rootCmd.AddCommand(genKeyCmd)
	rootCmd.AddCommand(genConfigCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
