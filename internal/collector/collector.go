// Package collector finds the QR images of a print job and puts them in print order.
package collector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMissingInput is returned when the source directory does not exist.
	ErrMissingInput = errors.New("source directory not found")
	// ErrNoImages is returned when the directory holds no supported image.
	ErrNoImages = errors.New("no images found")
)

// Extensions lists the accepted image extensions, lower case and without dot.
var Extensions = []string{"png", "jpg", "jpeg", "gif"}

// ImageEntry is one collected image. Values are never modified after Collect returns.
type ImageEntry struct {
	Path string
	Name string
	// Key is the integer formed by every digit of Name, in order.
	Key int64
	// HasKey is false when Name has no digits or they overflow int64.
	HasKey bool
}

// Order tells how a collection was sorted.
type Order string

const (
	OrderNumeric Order = "numeric"
	OrderLexical Order = "lexical"
)

// Collect scans dir (non-recursive) and returns its images in print order.
func Collect(dir string) ([]ImageEntry, error) {
	entries, _, err := CollectWithOrder(dir)
	return entries, err
}

// CollectWithOrder is Collect that also reports which ordering was applied.
func CollectWithOrder(dir string) ([]ImageEntry, Order, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrMissingInput, dir)
		}
		return nil, "", fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is not a directory", ErrMissingInput, dir)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	var images []ImageEntry
	for _, de := range dirEntries {
		if de.IsDir() || !IsImageName(de.Name()) {
			continue
		}
		key, ok := SortKey(de.Name())
		images = append(images, ImageEntry{
			Path:   filepath.Join(dir, de.Name()),
			Name:   de.Name(),
			Key:    key,
			HasKey: ok,
		})
	}
	if len(images) == 0 {
		return nil, "", fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	order := Sort(images)
	log.Debug().Str("dir", dir).Int("images", len(images)).Str("order", string(order)).Msg("collected images")
	return images, order, nil
}

// IsImageName reports whether name carries one of the accepted extensions, ignoring case.
func IsImageName(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SortKey concatenates the decimal digits of name and parses them as an integer.
// Any Unicode decimal digit counts, so "qr_٣.png" keys as 3. Superscripts and other
// numeric symbols are ignored. A digit run that overflows int64 reports ok=false.
func SortKey(name string) (int64, bool) {
	var b strings.Builder
	for _, r := range name {
		if d, ok := digitValue(r); ok {
			b.WriteByte('0' + d)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// digitValue maps a Unicode decimal digit to its value. Decimal digits are
// encoded in contiguous runs starting at zero, so the offset into a run is the value.
func digitValue(r rune) (byte, bool) {
	if r >= '0' && r <= '9' {
		return byte(r - '0'), true
	}
	if r < 0x80 || !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rg := range unicode.Nd.R16 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return byte((r - rune(rg.Lo)) % 10), true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return byte((r - rune(rg.Lo)) % 10), true
		}
	}
	return 0, false
}

// Sort orders images in place. Numeric order applies only when every key parsed;
// a single failure switches the whole set to lexical order by name.
func Sort(images []ImageEntry) Order {
	numeric := true
	for _, img := range images {
		if !img.HasKey {
			numeric = false
			break
		}
	}

	if !numeric {
		sort.SliceStable(images, func(i, j int) bool { return images[i].Name < images[j].Name })
		return OrderLexical
	}
	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Key != images[j].Key {
			return images[i].Key < images[j].Key
		}
		return images[i].Name < images[j].Name
	})
	return OrderNumeric
}

// Names returns the file names of images, in order.
func Names(images []ImageEntry) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.Name
	}
	return out
}
