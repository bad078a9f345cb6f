// Package render places collected QR images on the planned grid and writes the
// paginated print document.
package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/qrprint/internal/collector"
	"github.com/local/qrprint/internal/layout"
	"github.com/local/qrprint/internal/metrics"
)

// ErrEmptyInput is returned when there is nothing to print. No output is created.
var ErrEmptyInput = errors.New("no images to render")

// Canvas receives drawing calls in document order.
type Canvas interface {
	BeginPage() error
	DrawImage(id string, img image.Image, r layout.Rect) error
	DrawFooter(label string) error
	// Close finalizes the last page and writes the document.
	Close() error
}

// OpenFunc creates the canvas for an output path.
type OpenFunc func(output string, g layout.Geometry) (Canvas, error)

// ItemResult is the outcome for one image.
type ItemResult struct {
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	Slot   layout.Slot `json:"slot"`
	Placed bool        `json:"placed"`
	Err    error       `json:"-"`
	Reason string      `json:"reason,omitempty"`
}

// Summary reports a finished run.
type Summary struct {
	Output       string        `json:"output"`
	Pages        int           `json:"pages"`
	Placed       int           `json:"placed"`
	Skipped      int           `json:"skipped"`
	SkippedFiles []string      `json:"skipped_files,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	Items        []ItemResult  `json:"-"`
}

// Renderer draws a list of images with one precomputed geometry.
type Renderer struct {
	Geometry layout.Geometry
	Loader   Loader
	Open     OpenFunc
	// Progress, when set, is called after every image with the number handled so far.
	Progress func(done, total int)
}

// New returns a renderer that writes PDFs and resamples images to the card size.
func New(g layout.Geometry) *Renderer {
	return &Renderer{
		Geometry: g,
		Loader:   NewImageLoader(g.Config.SourceWidth, g.Config.SourceHeight),
		Open:     OpenPDF,
	}
}

// Render places entries in order and writes the document to output.
// A failing image is logged and skipped; its cell stays empty and later
// images keep their cells.
func (r *Renderer) Render(entries []collector.ImageEntry, output string) (Summary, error) {
	start := time.Now()
	sum := Summary{Output: output}

	if len(entries) == 0 {
		metrics.ObserveLayout("empty", time.Since(start))
		return sum, ErrEmptyInput
	}

	doc := layout.Paginate(r.Geometry, len(entries))
	canvas, err := r.Open(output, r.Geometry)
	if err != nil {
		metrics.ObserveLayout("error", time.Since(start))
		return sum, fmt.Errorf("open canvas: %w", err)
	}

	for _, page := range doc.Pages {
		if err := canvas.BeginPage(); err != nil {
			metrics.ObserveLayout("error", time.Since(start))
			return sum, fmt.Errorf("begin page %d: %w", page.Number, err)
		}
		for _, pl := range page.Placements {
			res := r.place(canvas, entries[pl.Index], pl)
			sum.Items = append(sum.Items, res)
			if r.Progress != nil {
				r.Progress(pl.Index+1, len(entries))
			}
			if res.Placed {
				sum.Placed++
				metrics.IncImage("placed")
				continue
			}
			sum.Skipped++
			sum.SkippedFiles = append(sum.SkippedFiles, res.Name)
			metrics.IncImage("skipped")
		}
		if err := canvas.DrawFooter(page.Footer()); err != nil {
			metrics.ObserveLayout("error", time.Since(start))
			return sum, fmt.Errorf("footer page %d: %w", page.Number, err)
		}
		sum.Pages = page.Number
	}

	if err := canvas.Close(); err != nil {
		metrics.ObserveLayout("error", time.Since(start))
		return sum, fmt.Errorf("finalize: %w", err)
	}

	sum.Duration = time.Since(start)
	metrics.AddPages(sum.Pages)
	metrics.ObserveLayout("success", sum.Duration)
	log.Info().
		Str("output", output).
		Int("pages", sum.Pages).
		Int("placed", sum.Placed).
		Int("skipped", sum.Skipped).
		Dur("duration", sum.Duration).
		Msg("print document written")
	return sum, nil
}

func (r *Renderer) place(canvas Canvas, entry collector.ImageEntry, pl layout.Placement) ItemResult {
	res := ItemResult{Name: entry.Name, Path: entry.Path, Slot: pl.Slot}

	img, err := r.Loader.Load(entry.Path)
	if err == nil {
		err = canvas.DrawImage(fmt.Sprintf("img-%d", pl.Index), img, pl.Image)
	}
	if err != nil {
		res.Err = err
		res.Reason = err.Error()
		log.Error().Err(err).Str("file", entry.Name).Int("page", pl.Page).Int("row", pl.Row).Int("col", pl.Col).Msg("image skipped")
		return res
	}
	res.Placed = true
	log.Debug().Str("file", entry.Name).Int("page", pl.Page).Int("row", pl.Row).Int("col", pl.Col).Msg("image placed")
	return res
}
