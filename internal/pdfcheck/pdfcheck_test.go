package pdfcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePDF(t *testing.T, pages int) string {
	t.Helper()
	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 10)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Text(400, 580, fmt.Sprintf("Page %d", i))
	}
	p := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, pdf.OutputFileAndClose(p))
	return p
}

func TestPageCount(t *testing.T) {
	p := writePDF(t, 3)

	n, err := PageCount(p)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.NoError(t, Verify(p, 3))
	assert.Error(t, Verify(p, 2))
}

func TestPageCount_NotAPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(p, []byte("nope"), 0o644))
	_, err := PageCount(p)
	assert.Error(t, err)
}

// MuPDF is linked through cgo; run these with QRPRINT_MUPDF_TESTS=1.
func requireMuPDF(t *testing.T) {
	if os.Getenv("QRPRINT_MUPDF_TESTS") == "" {
		t.Skip("set QRPRINT_MUPDF_TESTS=1 to run MuPDF checks")
	}
}

func TestPageTexts(t *testing.T) {
	requireMuPDF(t)
	p := writePDF(t, 2)

	texts, err := PageTexts(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1", "Page 2"}, texts)
}

func TestWritePreview(t *testing.T) {
	requireMuPDF(t)
	p := writePDF(t, 1)
	out := filepath.Join(t.TempDir(), "preview", "page1.jpg")

	require.NoError(t, WritePreview(p, out, 1, 36))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, _, _, err = RenderPageToJPEG(p, 2, 36, 80, ColorGray)
	assert.Error(t, err)
}
