package tabgraph

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/go-tabgraph/pkg/metrics"
	"github.com/soundprediction/go-tabgraph/pkg/server"
	"github.com/soundprediction/go-tabgraph/pkg/store"
)

const shutdownTimeout = 30 * time.Second

func newServerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the tabgraph HTTP server",
		Long: `Start the tabgraph HTTP server.

The server provides endpoints for:
- Uploading tables and converting them (POST /upload)
- Downloading generated files (GET /download/:filename)
- Looking up past conversions (GET /api/conversions/:id)
- Previewing row normalization (POST /api/rows/normalize)
- Health checks and Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServer(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("host", "localhost", "Server host")
	flags.Int("port", 8080, "Server port")
	flags.String("mode", "release", "Server mode (debug, release, test)")
	flags.String("upload-dir", "uploads", "Directory for uploaded tables")
	flags.String("out", "outputs", "Directory for generated files")
	flags.String("public-base-url", "", "Base URL used in download links")
	flags.String("store-path", "", "Conversion record database (default: in memory)")

	bindKey(flags, "host", "server.host")
	bindKey(flags, "port", "server.port")
	bindKey(flags, "mode", "server.mode")
	bindKey(flags, "upload-dir", "server.upload_dir")
	bindKey(flags, "out", "output.dir")
	bindKey(flags, "public-base-url", "server.public_base_url")
	bindKey(flags, "store-path", "store.path")

	return cmd
}

func (a *app) runServer(ctx context.Context) error {
	records, err := store.Open(a.config.Store.Path, a.config.Store.TTL)
	if err != nil {
		return err
	}
	defer records.Close()

	srv := server.New(a.config, a.converter(a.logger), records, metrics.DefaultRegistry(), a.logger)
	srv.Setup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutting down", "reason", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		a.logger.Info("server stopped gracefully")
		return nil
	}
}
