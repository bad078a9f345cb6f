// Package pdfcheck inspects produced print documents: page counts through pdfcpu,
// page text and JPEG previews through MuPDF.
package pdfcheck

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Verify checks that the document at path has exactly want pages.
func Verify(path string, want int) error {
	got, err := PageCount(path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("pdf %s has %d pages, expected %d", path, got, want)
	}
	log.Debug().Str("pdf", path).Int("pages", got).Msg("page count verified")
	return nil
}
