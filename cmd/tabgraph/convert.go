package tabgraph

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	tg "github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/archive"
)

func newConvertCmd(a *app) *cobra.Command {
	var archivePath string

	cmd := &cobra.Command{
		Use:   "convert FILE [FILE...]",
		Short: "Convert tables into node and edge files",
		Long: `Convert one or more CSV, TSV or XLSX tables into a pair of node and edge
CSV files. All files are merged into a single graph; rows describing the same
entity become one node. Existing output files are never overwritten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.logger
			var sinks []tg.Sink
			runID := ""
			if archivePath != "" {
				w, err := archive.Open(archivePath)
				if err != nil {
					return err
				}
				defer w.Close()
				runID = uuid.NewString()
				sinks = append(sinks, w.Sink(runID))
				log = slog.New(w.LogHandler(log.Handler(), runID))
			}
			conv := a.converter(log)

			result, err := conv.Convert(cmd.Context(), args, a.config.Output.Dir, a.config.Output.Format, sinks...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Summary())
			fmt.Fprintf(out, "nodes: %s\n", filepath.Join(a.config.Output.Dir, result.NodesFile))
			fmt.Fprintf(out, "edges: %s\n", filepath.Join(a.config.Output.Dir, result.EdgesFile))
			if runID != "" {
				fmt.Fprintf(out, "archived as run %s in %s\n", runID, archivePath)
			}
			for _, d := range result.Diagnostics {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", d)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("format", "f", "gephi", "Output format (gephi, kumu)")
	flags.StringP("out", "o", "outputs", "Output directory")
	flags.String("identity-column", "id", "Column holding each row's entity key")
	flags.String("connections-column", "connections", "Column holding each row's connections")
	flags.String("sheet", "", "Worksheet to read from XLSX inputs (default: first)")
	flags.Int("workers", 0, "Files read concurrently (default: min(4, GOMAXPROCS))")
	flags.StringVar(&archivePath, "archive", "", "Also write the graph to this DuckDB file")

	bindKey(flags, "format", "output.format")
	bindKey(flags, "out", "output.dir")
	bindKey(flags, "identity-column", "input.identity_column")
	bindKey(flags, "connections-column", "input.connections_column")
	bindKey(flags, "sheet", "input.sheet")
	bindKey(flags, "workers", "input.workers")

	return cmd
}
