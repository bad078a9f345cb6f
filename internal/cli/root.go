// Package cli wires the qrprint commands: layout, communes and serve.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/qrprint/internal/collector"
	"github.com/local/qrprint/internal/communes"
	"github.com/local/qrprint/internal/config"
	"github.com/local/qrprint/internal/layout"
	logpkg "github.com/local/qrprint/internal/logger"
	"github.com/local/qrprint/internal/render"
)

// Execute runs the command line with cfg as the base configuration.
func Execute(ctx context.Context, cfg config.Config) error {
	defer logpkg.Close()
	return NewRootCommand(cfg).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Flags override cfg.
func NewRootCommand(cfg config.Config) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "qrprint",
		Short:        "Lay out QR code cards for printing and manage print batches",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			opts := logpkg.Options{
				Level:   level,
				Pretty:  cfg.Logging.Pretty,
				Console: cmd.ErrOrStderr(),
				File:    cfg.Logging.File,
				Rotation: logpkg.Rotation{
					MaxSizeMB:  cfg.Logging.MaxSizeMB,
					MaxBackups: cfg.Logging.MaxBackups,
					MaxAgeDays: cfg.Logging.MaxAgeDays,
					Compress:   cfg.Logging.Compress,
				},
			}
			if cfg.Axiom.Send && cfg.Axiom.APIKey != "" {
				opts.Axiom = &logpkg.Axiom{
					Token:      cfg.Axiom.APIKey,
					OrgID:      cfg.Axiom.OrgID,
					Dataset:    cfg.Axiom.Dataset,
					FlushEvery: cfg.Axiom.FlushInterval,
				}
			}
			return logpkg.Init(opts)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newLayoutCmd(cfg))
	root.AddCommand(newCommunesCmd(cfg))
	root.AddCommand(newServeCmd(cfg))
	return root
}

// known failures are reported as plain messages
var known = []error{
	collector.ErrMissingInput,
	collector.ErrNoImages,
	render.ErrEmptyInput,
	communes.ErrMissingInput,
	communes.ErrMissingSchema,
	layout.ErrInvalidConfig,
}

// report prints err for the operator and swallows it: outcomes are
// human-readable only, the exit status does not distinguish them.
func report(out io.Writer, err error) error {
	if err == nil {
		return nil
	}
	for _, k := range known {
		if errors.Is(err, k) {
			log.Warn().Err(err).Msg("command stopped")
			fmt.Fprintf(out, "Error: %v\n", err)
			return nil
		}
	}
	log.Error().Err(err).Msg("command failed")
	fmt.Fprintf(out, "An error occurred: %v\n", err)
	return nil
}
