package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a run file and print the derived update window.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "interval:           %d\n", cfg.Interval)
		fmt.Fprintf(out, "acceptable latency: %d\n", cfg.AcceptableLatency)
		fmt.Fprintf(out, "min delay:          %d\n", cfg.MinDelay)
		fmt.Fprintf(out, "slice width:        %d\n", cfg.SliceWidth)
		fmt.Fprintf(out, "trace window:       %d\n", cfg.MaxLatency())
		fmt.Fprintf(out, "nodes:              %d\n",
			len(cfg.Network.Sources)+len(cfg.Network.Targets))

		edges := 0
		for _, e := range cfg.Network.Edges {
			edges += e.Count
		}

		fmt.Fprintf(out, "edges:              %d\n", edges)

		return nil
	},
}

func init() {
	addOverrideFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)
}
