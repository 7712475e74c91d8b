// Package tabgraph implements the tabgraph command line.
package tabgraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tg "github.com/soundprediction/go-tabgraph"
	"github.com/soundprediction/go-tabgraph/pkg/config"
	"github.com/soundprediction/go-tabgraph/pkg/logger"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	config  *config.Config
	logger  *slog.Logger
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the root command and its subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tabgraph",
		Short: "Convert tables of entities and connections into graph files",
		Long: `tabgraph reads CSV, TSV and XLSX tables in which each row describes an entity
and lists its connections, merges them into one graph, and writes node and
edge files for Gephi or Kumu.

Configuration can be provided through a config file, TABGRAPH_* environment
variables, or command-line flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "color", "Log format (color, text, json)")
	bindKey(flags, "log-level", "log.level")
	bindKey(flags, "log-format", "log.format")

	rootCmd.AddCommand(
		newConvertCmd(a),
		newServerCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) initialize(cmd *cobra.Command, args []string) error {
	if err := a.bindFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log, err := logger.New(cmd.ErrOrStderr(), cfg.Log.Format, level)
	if err != nil {
		return err
	}

	a.config = cfg
	a.logger = log
	return nil
}

func (a *app) converter(log *slog.Logger) *tg.Converter {
	return tg.NewConverter(tg.Config{
		IdentityColumn:    a.config.Input.IdentityColumn,
		ConnectionsColumn: a.config.Input.ConnectionsColumn,
		Sheet:             a.config.Input.Sheet,
		Workers:           a.config.Input.Workers,
	}, log)
}
