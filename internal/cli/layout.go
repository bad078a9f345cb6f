package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/qrprint/internal/collector"
	"github.com/local/qrprint/internal/config"
	"github.com/local/qrprint/internal/layout"
	"github.com/local/qrprint/internal/pdfcheck"
	"github.com/local/qrprint/internal/render"
)

type layoutOptions struct {
	input      string
	output     string
	grid       config.LayoutConfig
	preview    string
	previewDPI int
	verify     bool
}

func newLayoutCmd(cfg config.Config) *cobra.Command {
	opts := layoutOptions{grid: cfg.Layout}

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Place the QR images of a folder on a paginated landscape A4 PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd.OutOrStdout(), runLayout(cmd.OutOrStdout(), opts))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "folder containing the QR images")
	f.StringVarP(&opts.output, "output", "o", "", "PDF file to write")
	f.IntVar(&opts.grid.ImagesPerRow, "images-per-row", cfg.Layout.ImagesPerRow, "images per row")
	f.IntVar(&opts.grid.RowsPerPage, "rows-per-page", cfg.Layout.RowsPerPage, "rows per page")
	f.Float64Var(&opts.grid.Margin, "margin", cfg.Layout.Margin, "page margin in points")
	f.Float64Var(&opts.grid.RowSpacing, "row-spacing", cfg.Layout.RowSpacing, "vertical space between rows in points")
	f.StringVar(&opts.preview, "preview", "", "write a JPEG preview of the first page to this path")
	f.IntVar(&opts.previewDPI, "preview-dpi", 72, "preview resolution")
	f.BoolVar(&opts.verify, "verify", true, "check the page count of the written PDF")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runLayout(out io.Writer, opts layoutOptions) error {
	c := layout.DefaultConfig().WithGrid(opts.grid.ImagesPerRow, opts.grid.RowsPerPage, opts.grid.Margin, opts.grid.RowSpacing)
	g, err := layout.Plan(c)
	if err != nil {
		return err
	}

	images, order, err := collector.CollectWithOrder(opts.input)
	if errors.Is(err, collector.ErrNoImages) {
		fmt.Fprintln(out, "No images found.")
		return nil
	}
	if err != nil {
		return err
	}
	log.Debug().Str("order", string(order)).Int("images", len(images)).Msg("images collected")

	sum, err := render.New(g).Render(images, opts.output)
	if err != nil {
		return err
	}
	for _, it := range sum.Items {
		if !it.Placed {
			fmt.Fprintf(out, "Error %s: %s\n", it.Name, it.Reason)
		}
	}

	if opts.verify {
		if err := pdfcheck.Verify(opts.output, sum.Pages); err != nil {
			return err
		}
	}
	if opts.preview != "" {
		if err := pdfcheck.WritePreview(opts.output, opts.preview, 1, opts.previewDPI); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}

	fmt.Fprintf(out, "PDF created: %s (%d pages, %d placed, %d skipped)\n", opts.output, sum.Pages, sum.Placed, sum.Skipped)
	return nil
}
