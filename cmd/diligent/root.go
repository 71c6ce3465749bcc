package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diligent",
	Short: "Run spiking networks whose edges need forced updates.",
	Long: `diligent loads a network from a run file, simulates it in ` +
		`frames and reports how the forced update manager keeps the edges ` +
		`in sync with the traces they read.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "diligent.yaml",
		"Run file to load")
	rootCmd.PersistentFlags().StringSlice("env-file", nil,
		"Env files with DILIGENT_* overrides (default .env)")
}
