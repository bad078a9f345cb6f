package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/local/qrprint/internal/communes"
	"github.com/local/qrprint/internal/config"
	"github.com/local/qrprint/internal/pdfcheck"
)

func testConfig() config.Config {
	return config.Config{
		Logging: config.LoggingConfig{Level: "error"},
		Layout:  config.LayoutConfig{ImagesPerRow: 4, RowsPerPage: 2, Margin: 30, RowSpacing: 20},
	}
}

func run(t *testing.T, cfg config.Config, args ...string) string {
	t.Helper()
	root := NewRootCommand(cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func writeImages(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 1; i <= n; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("qr_%05d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 12, 20))))
		require.NoError(t, f.Close())
	}
}

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, filepath.Join(dir, "in"), 9)
	out := filepath.Join(dir, "print.pdf")

	got := run(t, testConfig(), "layout", "-i", filepath.Join(dir, "in"), "-o", out)
	assert.Contains(t, got, "PDF created: "+out+" (2 pages, 9 placed, 0 skipped)")

	n, err := pdfcheck.PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLayoutCommand_GridFlags(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, filepath.Join(dir, "in"), 9)
	out := filepath.Join(dir, "print.pdf")

	got := run(t, testConfig(), "layout", "-i", filepath.Join(dir, "in"), "-o", out, "--images-per-row", "3", "--rows-per-page", "1")
	assert.Contains(t, got, "(3 pages, 9 placed, 0 skipped)")
}

func TestLayoutCommand_ReportsKnownErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	out := filepath.Join(dir, "print.pdf")

	got := run(t, testConfig(), "layout", "-i", empty, "-o", out)
	assert.Equal(t, "No images found.\n", got)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	got = run(t, testConfig(), "layout", "-i", filepath.Join(dir, "missing"), "-o", out)
	assert.Contains(t, got, "Error: ")
	assert.NotContains(t, got, "An error occurred")

	writeImages(t, filepath.Join(dir, "in"), 1)
	got = run(t, testConfig(), "layout", "-i", filepath.Join(dir, "in"), "-o", out, "--images-per-row", "0")
	assert.Contains(t, got, "Error: ")
}

func TestLayoutCommand_UnexpectedError(t *testing.T) {
	dir := t.TempDir()
	writeImages(t, filepath.Join(dir, "in"), 1)
	// a directory where the PDF should go makes the final write fail
	out := filepath.Join(dir, "taken")
	require.NoError(t, os.Mkdir(out, 0o755))

	got := run(t, testConfig(), "layout", "-i", filepath.Join(dir, "in"), "-o", out)
	assert.Contains(t, got, "An error occurred: ")
}

func TestCommunesCommand(t *testing.T) {
	dir := t.TempDir()
	xlsx := filepath.Join(dir, "communes.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"SYSCOL_Commune", "Commune"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"12-34AB5678", "foo"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"12345678", "FOO"}))
	require.NoError(t, f.SaveAs(xlsx))
	require.NoError(t, f.Close())

	jsonOut := filepath.Join(dir, "communes.json")
	got := run(t, testConfig(), "communes", "--xlsx", xlsx, "-o", jsonOut)
	assert.Equal(t, "Successfully extracted 1 communes to "+jsonOut+"\n", got)

	list, err := communes.ReadJSON(jsonOut)
	require.NoError(t, err)
	assert.Equal(t, []communes.Commune{{Code: "12345678", Name: "FOO"}}, list)
}

func TestCommunesCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	got := run(t, testConfig(), "communes", "--xlsx", filepath.Join(dir, "none.xlsx"), "-o", filepath.Join(dir, "c.json"))
	assert.Contains(t, got, "Error: spreadsheet not found")
}
