// Package communes extracts the commune code/name lookup table from the
// administrative spreadsheet and reads it back for the web front-end.
package communes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/local/qrprint/internal/metrics"
)

const (
	CodeColumn = "SYSCOL_Commune"
	NameColumn = "Commune"
	// CodeLength caps normalized codes.
	CodeLength = 8
)

var (
	// ErrMissingInput is returned when the spreadsheet file does not exist.
	ErrMissingInput = errors.New("spreadsheet not found")
	// ErrMissingSchema is returned when the code or name column is absent.
	ErrMissingSchema = fmt.Errorf("required columns '%s' and '%s' not found", CodeColumn, NameColumn)
)

// Commune is one lookup record.
type Commune struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Extract reads sheet of the workbook at path; an empty sheet name selects the first sheet.
func Extract(path, sheet string) ([]Commune, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrMissingSchema)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	log.Debug().Str("file", path).Str("sheet", sheet).Int("rows", len(rows)).Msg("read spreadsheet")
	return FromRows(rows)
}

// FromRows builds the table from raw rows whose first row is the header.
// Codes are normalized, names trimmed and upper-cased, rows lacking either are
// dropped, the first row of each code wins and the result is sorted by name.
func FromRows(rows [][]string) ([]Commune, error) {
	if len(rows) == 0 {
		return nil, ErrMissingSchema
	}
	codeCol, nameCol := -1, -1
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if codeCol < 0 && h == strings.ToLower(CodeColumn) {
			codeCol = i
		}
		if nameCol < 0 && h == strings.ToLower(NameColumn) {
			nameCol = i
		}
	}
	if codeCol < 0 || nameCol < 0 {
		return nil, ErrMissingSchema
	}

	out := []Commune{}
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		code := NormalizeCode(cell(row, codeCol))
		name := strings.ToUpper(strings.TrimSpace(cell(row, nameCol)))
		if code == "" || name == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, Commune{Code: code, Name: name})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// NormalizeCode keeps the ASCII digits of raw, at most CodeLength of them.
func NormalizeCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r < '0' || r > '9' {
			continue
		}
		b.WriteRune(r)
		if b.Len() == CodeLength {
			break
		}
	}
	return b.String()
}

// Marshal renders the table as an indented JSON array with non-ASCII text kept as is.
func Marshal(list []Commune) ([]byte, error) {
	if list == nil {
		list = []Commune{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the table to path, creating parent directories.
func WriteJSON(path string, list []Commune) error {
	data, err := Marshal(list)
	if err != nil {
		return fmt.Errorf("encode communes: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	metrics.AddCommunes(len(list))
	log.Info().Str("file", path).Int("communes", len(list)).Msg("communes written")
	return nil
}

// ReadJSON loads a table written by WriteJSON. A missing file yields an empty table.
func ReadJSON(path string) ([]Commune, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Commune{}, nil
		}
		return nil, err
	}
	var list []Commune
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return list, nil
}

// Names maps codes to names.
func Names(list []Commune) map[string]string {
	m := make(map[string]string, len(list))
	for _, c := range list {
		m[c.Code] = c.Name
	}
	return m
}
