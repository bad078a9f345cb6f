package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/qrprint/internal/config"
	"github.com/local/qrprint/internal/layout"
	"github.com/local/qrprint/internal/metrics"
	"github.com/local/qrprint/internal/server"
	"github.com/local/qrprint/internal/storage"
	"github.com/local/qrprint/internal/store"
)

func newServeCmd(cfg config.Config) *cobra.Command {
	c := cfg

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end and print job API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), c)
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.Server.Port, "port", cfg.Server.Port, "HTTP port")
	f.StringVar(&c.Server.OutputDir, "output-dir", cfg.Server.OutputDir, "directory holding job folders and artifacts")
	f.StringVar(&c.Server.StaticDir, "static-dir", cfg.Server.StaticDir, "front-end directory served at /")
	f.StringVar(&c.Communes.Output, "communes", cfg.Communes.Output, "communes JSON file")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	intervals, err := store.Open(cfg.Redis.URL, cfg.Redis.KeyPrefix, cfg.Server.IntervalsFile)
	if err != nil {
		return fmt.Errorf("open interval store: %w", err)
	}
	defer intervals.Close()

	deps := server.Dependencies{
		Intervals:    intervals,
		Layout:       layout.DefaultConfig().WithGrid(cfg.Layout.ImagesPerRow, cfg.Layout.RowsPerPage, cfg.Layout.Margin, cfg.Layout.RowSpacing),
		OutputDir:    cfg.Server.OutputDir,
		StaticDir:    cfg.Server.StaticDir,
		CommunesFile: cfg.Communes.Output,
	}
	if cfg.S3.Enabled() {
		pub, err := storage.NewPublisher(ctx, cfg.S3)
		if err != nil {
			return err
		}
		deps.Publisher = pub
		log.Info().Str("bucket", cfg.S3.Bucket).Str("prefix", cfg.S3.Prefix).Msg("s3 publishing enabled")
	}
	if _, err := layout.Plan(deps.Layout); err != nil {
		return err
	}

	metrics.Init()
	srv := server.New(deps).HTTPServer(":" + cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("shutdown complete")
	return nil
}
