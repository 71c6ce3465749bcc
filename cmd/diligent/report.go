package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/diligent/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report <recording.sqlite3>",
	Short: "Print the forced passes and collected edges of a recording.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		return printReport(cmd.Context(), cmd.OutOrStdout(), reader)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func printReport(
	ctx context.Context,
	out io.Writer,
	reader datarecording.Reader,
) error {
	datarecording.MapTables(reader)

	passes, err := datarecording.QueryAs[datarecording.ForcedPassRow](
		ctx, reader, datarecording.TableForcedPass,
		datarecording.QueryParams{OrderBy: "Time, Thread"})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "forced passes: %d\n", len(passes))
	fmt.Fprintf(out, "%8s %8s %8s %8s\n", "time", "thread", "live", "touched")

	for _, p := range passes {
		fmt.Fprintf(out, "%8d %8d %8d %8d\n", p.Time, p.Thread, p.Live, p.Touched)
	}

	collected, err := datarecording.QueryAs[datarecording.GarbageRow](
		ctx, reader, datarecording.TableGarbageCollection,
		datarecording.QueryParams{OrderBy: "Thread, Sender, Target"})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "collected edges: %d\n", len(collected))
	fmt.Fprintf(out, "%8s %8s %8s %8s\n", "thread", "sender", "target", "type")

	for _, g := range collected {
		fmt.Fprintf(out, "%8d %8d %8d %8d\n",
			g.Thread, g.Sender, g.Target, g.EdgeType)
	}

	return nil
}
