// Package layout computes the print grid: cell geometry, the fitted QR card size
// and the assignment of images to pages, rows and columns.
//
// Coordinates are PDF user space: points, origin at the bottom-left corner of the page.
package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by Plan for configurations that cannot hold a single cell.
var ErrInvalidConfig = errors.New("invalid layout config")

// Config is the immutable input of the planner. Only Margin, ImagesPerRow, RowsPerPage
// and RowSpacing are meant to be overridden; the other fields are fixed constants.
type Config struct {
	PageWidth  float64
	PageHeight float64

	Margin       float64
	ImagesPerRow int
	RowsPerPage  int
	RowSpacing   float64

	// Gutter is subtracted between columns when sizing the fit box only.
	Gutter float64
	// SourceWidth and SourceHeight give the card aspect ratio; images are resampled to this size.
	SourceWidth  int
	SourceHeight int
	// Fill is the share of the binding fit-box dimension used by the card.
	Fill float64
}

// DefaultConfig returns the landscape A4 layout, 4x2 cards per page.
func DefaultConfig() Config {
	return Config{
		PageWidth:    842,
		PageHeight:   595,
		Margin:       30,
		ImagesPerRow: 4,
		RowsPerPage:  2,
		RowSpacing:   20,
		Gutter:       20,
		SourceWidth:  252,
		SourceHeight: 415,
		Fill:         0.98,
	}
}

// WithGrid returns a copy of c with the caller-overridable knobs replaced.
func (c Config) WithGrid(imagesPerRow, rowsPerPage int, margin, rowSpacing float64) Config {
	c.ImagesPerRow = imagesPerRow
	c.RowsPerPage = rowsPerPage
	c.Margin = margin
	c.RowSpacing = rowSpacing
	return c
}

// Ratio is the card aspect ratio, width over height.
func (c Config) Ratio() float64 { return float64(c.SourceWidth) / float64(c.SourceHeight) }

// PerPage is the cell capacity of one page.
func (c Config) PerPage() int { return c.ImagesPerRow * c.RowsPerPage }

// Rect is an axis-aligned rectangle, X/Y at its bottom-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Geometry is derived once per document and shared by every placement.
type Geometry struct {
	Config Config

	UsableWidth  float64
	UsableHeight float64

	// CellWidth spaces cell origins; FitWidth sizes the card. They differ by the gutter term.
	CellWidth  float64
	CellHeight float64
	FitWidth   float64
	FitHeight  float64

	ImageWidth  float64
	ImageHeight float64
}

// Plan computes the geometry for c.
func Plan(c Config) (Geometry, error) {
	if err := validate(c); err != nil {
		return Geometry{}, err
	}

	cols := float64(c.ImagesPerRow)
	rows := float64(c.RowsPerPage)

	g := Geometry{Config: c}
	g.UsableWidth = c.PageWidth - 2*c.Margin
	g.UsableHeight = c.PageHeight - 2*c.Margin
	g.CellWidth = g.UsableWidth / cols
	g.CellHeight = (g.UsableHeight - (rows-1)*c.RowSpacing) / rows
	g.FitWidth = (g.UsableWidth - (cols-1)*c.Gutter) / cols
	g.FitHeight = g.CellHeight

	if g.CellWidth <= 0 || g.CellHeight <= 0 || g.FitWidth <= 0 {
		return Geometry{}, fmt.Errorf("%w: no room for a %dx%d grid on a %.0fx%.0f page", ErrInvalidConfig, c.ImagesPerRow, c.RowsPerPage, c.PageWidth, c.PageHeight)
	}

	ratio := c.Ratio()
	if g.FitWidth/g.FitHeight > ratio {
		g.ImageHeight = g.FitHeight * c.Fill
		g.ImageWidth = g.ImageHeight * ratio
	} else {
		g.ImageWidth = g.FitWidth * c.Fill
		g.ImageHeight = g.ImageWidth / ratio
	}
	return g, nil
}

func validate(c Config) error {
	switch {
	case c.ImagesPerRow <= 0:
		return fmt.Errorf("%w: imagesPerRow must be positive, got %d", ErrInvalidConfig, c.ImagesPerRow)
	case c.RowsPerPage <= 0:
		return fmt.Errorf("%w: rowsPerPage must be positive, got %d", ErrInvalidConfig, c.RowsPerPage)
	case c.Margin < 0:
		return fmt.Errorf("%w: margin must not be negative, got %g", ErrInvalidConfig, c.Margin)
	case c.RowSpacing < 0:
		return fmt.Errorf("%w: rowSpacing must not be negative, got %g", ErrInvalidConfig, c.RowSpacing)
	case c.PageWidth <= 0 || c.PageHeight <= 0:
		return fmt.Errorf("%w: page size must be positive", ErrInvalidConfig)
	case c.SourceWidth <= 0 || c.SourceHeight <= 0:
		return fmt.Errorf("%w: source size must be positive", ErrInvalidConfig)
	case c.Fill <= 0 || c.Fill > 1:
		return fmt.Errorf("%w: fill must be in (0, 1], got %g", ErrInvalidConfig, c.Fill)
	}
	return nil
}

// PageCount is the number of pages needed for n images.
func (g Geometry) PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	per := g.Config.PerPage()
	return int(math.Ceil(float64(n) / float64(per)))
}

// Slot locates the cell of the image at index within the whole document.
type Slot struct {
	Index int
	// Page is 1-based.
	Page int
	// Position is the cell number within the page, row-major.
	Position int
	Row      int
	Col      int
}

// SlotOf returns the slot for a document-wide image index.
func (g Geometry) SlotOf(index int) Slot {
	cols := g.Config.ImagesPerRow
	per := g.Config.PerPage()
	return Slot{
		Index:    index,
		Page:     index/per + 1,
		Position: index % per,
		Row:      (index / cols) % g.Config.RowsPerPage,
		Col:      index % cols,
	}
}

// CellRect is the cell for a row and column; row 0 is the top row.
func (g Geometry) CellRect(row, col int) Rect {
	c := g.Config
	return Rect{
		X: c.Margin + float64(col)*g.CellWidth,
		Y: c.PageHeight - c.Margin - float64(row+1)*g.CellHeight - float64(row)*c.RowSpacing,
		W: g.CellWidth,
		H: g.CellHeight,
	}
}

// ImageRect centers the fitted card in the cell at row and column.
func (g Geometry) ImageRect(row, col int) Rect {
	cell := g.CellRect(row, col)
	return Rect{
		X: cell.X + (cell.W-g.ImageWidth)/2,
		Y: cell.Y + (cell.H-g.ImageHeight)/2,
		W: g.ImageWidth,
		H: g.ImageHeight,
	}
}
