package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileIntervals keeps the ledger in a JSON file of the form
// {"<code>": [{"start":..,"end":..,"timestamp":..}]}.
type FileIntervals struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileIntervals creates the ledger file with an empty object if it does not exist.
func NewFileIntervals(path string) (*FileIntervals, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}
	return &FileIntervals{path: path, now: time.Now}, nil
}

func (s *FileIntervals) Close() error { return nil }

// Ping checks that the ledger file is readable JSON.
func (s *FileIntervals) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

func (s *FileIntervals) load() (map[string][]Interval, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]Interval{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string][]Interval{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return m, nil
}

func (s *FileIntervals) save(m map[string][]Interval) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileIntervals) Check(_ context.Context, code string, start, end int) (CheckResult, error) {
	if err := validate(start, end); err != nil {
		return CheckResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return CheckResult{}, err
	}
	return checkAgainst(m[code], start, end), nil
}

// Reserve appends [start, end] for code unless it overlaps an existing
// reservation, in which case an *OverlapError is returned.
func (s *FileIntervals) Reserve(_ context.Context, code string, start, end int) (Interval, error) {
	if err := validate(start, end); err != nil {
		return Interval{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return Interval{}, err
	}
	if oe := firstOverlap(m[code], start, end); oe != nil {
		return Interval{}, oe
	}
	iv := Interval{Start: start, End: end, Timestamp: s.now().UTC()}
	m[code] = append(m[code], iv)
	if err := s.save(m); err != nil {
		return Interval{}, fmt.Errorf("persist intervals: %w", err)
	}
	log.Info().Str("commune", code).Int("start", start).Int("end", end).Msg("interval reserved")
	return iv, nil
}

func (s *FileIntervals) All(_ context.Context) (map[string][]Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}
