package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/diligent/config"
	"github.com/sarchlab/diligent/logging"
	"github.com/sarchlab/diligent/sim"
	"github.com/sarchlab/diligent/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the network of a run file.",
	Long: "`run` simulates the network in frames and prints, after each " +
		"frame, how many edges are still connected.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		monitor, _ := cmd.Flags().GetBool("monitor")
		openMonitor, _ := cmd.Flags().GetBool("open-monitor")
		port, _ := cmd.Flags().GetInt("monitor-port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		err = runFrames(ctx, cmd.OutOrStdout(), cfg, runOptions{
			monitor:     monitor || openMonitor,
			openMonitor: openMonitor,
			port:        port,
		})
		if err != nil {
			return err
		}

		atexit.Exit(0)

		return nil
	},
}

func init() {
	addOverrideFlags(runCmd)
	runCmd.Flags().Bool("monitor", false, "Serve the monitor while running")
	runCmd.Flags().Bool("open-monitor", false,
		"Serve the monitor and open it in a browser")
	runCmd.Flags().Int("monitor-port", 0, "Port of the monitor")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	monitor     bool
	openMonitor bool
	port        int
}

func runFrames(
	ctx context.Context,
	out io.Writer,
	cfg config.RunConfig,
	opts runOptions,
) error {
	b := simulation.MakeBuilder().
		WithRunConfig(cfg).
		WithLogger(logging.NewLogger(cfg.LogLevel, os.Stderr))
	if opts.monitor {
		b = b.WithMonitor().WithMonitorPort(opts.port)
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer func() { _ = s.Terminate() }()

	if opts.openMonitor {
		if err := browser.OpenURL(s.MonitorURL()); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open %s: %v\n", s.MonitorURL(), err)
		}
	}

	if err := s.InitSynapseUpdater(cfg.Interval, cfg.AcceptableLatency); err != nil {
		return err
	}

	net, err := s.BuildNetwork(cfg.Network)
	if err != nil {
		return err
	}

	frame := cfg.Frame
	if frame == 0 {
		frame = cfg.Steps
	}

	fmt.Fprintf(out, "%8s %8s %8s %8s\n", "time", "edges", "probes", "retired")

	for done := sim.VTimeInStep(0); done < cfg.Steps; done += frame {
		if err := s.Simulate(ctx, min(frame, cfg.Steps-done)); err != nil {
			return err
		}

		retired := 0
		for _, p := range net.Probes {
			if p.IsDegenerated() {
				retired++
			}
		}

		fmt.Fprintf(out, "%8d %8d %8d %8d\n",
			s.Kernel().CurrentTime(),
			len(s.Kernel().Connections()),
			len(net.Probes)-retired,
			retired)
	}

	return s.Terminate()
}
