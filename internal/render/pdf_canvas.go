package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/local/qrprint/internal/layout"
)

const (
	footerFont   = "Helvetica"
	footerSize   = 10
	footerOffset = 15
)

// PDFCanvas draws pages with gofpdf and writes the document on Close.
type PDFCanvas struct {
	pdf    *gofpdf.Fpdf
	output string
	width  float64
	height float64
}

// OpenPDF prepares an in-memory document sized to the geometry's page. Nothing is
// written to output until Close.
func OpenPDF(output string, g layout.Geometry) (Canvas, error) {
	w, h := g.Config.PageWidth, g.Config.PageHeight
	orientation := "L"
	if h > w {
		orientation = "P"
	}
	// gofpdf takes the sheet in portrait and swaps it for landscape
	short, long := w, h
	if short > long {
		short, long = long, short
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: short, Ht: long},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("qrprint", true)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("init pdf: %w", err)
	}
	return &PDFCanvas{pdf: pdf, output: output, width: w, height: h}, nil
}

func (c *PDFCanvas) BeginPage() error {
	c.pdf.AddPage()
	return c.pdf.Error()
}

// DrawImage embeds img as PNG in r. r is in bottom-left user space; gofpdf measures from the top.
func (c *PDFCanvas) DrawImage(id string, img image.Image, r layout.Rect) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	c.pdf.RegisterImageOptionsReader(id, opts, &buf)
	if err := c.pdf.Error(); err != nil {
		// gofpdf errors are sticky; one bad image must not sink the document
		c.pdf.ClearError()
		return fmt.Errorf("embed image: %w", err)
	}
	c.pdf.ImageOptions(id, r.X, c.height-r.Y-r.H, r.W, r.H, false, opts, 0, "")
	if err := c.pdf.Error(); err != nil {
		c.pdf.ClearError()
		return fmt.Errorf("place image: %w", err)
	}
	return nil
}

// DrawFooter centers label footerOffset points above the bottom edge.
func (c *PDFCanvas) DrawFooter(label string) error {
	c.pdf.SetFont(footerFont, "", footerSize)
	x := c.width/2 - c.pdf.GetStringWidth(label)/2
	c.pdf.Text(x, c.height-footerOffset, label)
	return c.pdf.Error()
}

// Close writes the document to its output path.
func (c *PDFCanvas) Close() error {
	if dir := filepath.Dir(c.output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := c.pdf.OutputFileAndClose(c.output); err != nil {
		return fmt.Errorf("write %s: %w", c.output, err)
	}
	return nil
}
