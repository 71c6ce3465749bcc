package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/diligent/config"
	"github.com/sarchlab/diligent/sim"
)

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("interval", 0, "Forced update interval in steps")
	cmd.Flags().Int64("acceptable-latency", 0,
		"Acceptable latency of forced updates in steps")
	cmd.Flags().Int("threads", 0, "Number of worker threads")
	cmd.Flags().String("db", "", "Record the update activity into this file")
	cmd.Flags().String("log-level", "", "trace, debug, info, warn or error")
}

// loadConfig loads the run file and applies the flags the user set. Flags
// take precedence over the environment.
func loadConfig(cmd *cobra.Command) (config.RunConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")

	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()

	if flags.Changed("interval") {
		v, _ := flags.GetInt64("interval")
		cfg.Interval = sim.VTimeInStep(v)
	}

	if flags.Changed("acceptable-latency") {
		v, _ := flags.GetInt64("acceptable-latency")
		cfg.AcceptableLatency = sim.VTimeInStep(v)
	}

	if flags.Changed("threads") {
		cfg.Threads, _ = flags.GetInt("threads")
	}

	if flags.Changed("db") {
		cfg.Database, _ = flags.GetString("db")
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return cfg, cfg.Validate()
}
