package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidRange is returned for a reservation whose end precedes its start.
var ErrInvalidRange = errors.New("invalid interval: end before start")

// Interval is one reserved sequence range of a commune. Bounds are inclusive.
type Interval struct {
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Timestamp time.Time `json:"timestamp"`
}

// Count is the number of identifiers the interval covers.
func (iv Interval) Count() int { return iv.End - iv.Start + 1 }

// Overlaps reports whether [start, end] shares at least one value with iv.
func (iv Interval) Overlaps(start, end int) bool {
	return max(start, iv.Start) <= min(end, iv.End)
}

// CheckResult is the answer to an availability query.
type CheckResult struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// OverlapError reports the first existing interval a request collides with.
type OverlapError struct {
	Existing Interval
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("Interval overlaps with existing range [%d - %d]", e.Existing.Start, e.Existing.End)
}

// Intervals is the reservation ledger, keyed by commune code.
type Intervals interface {
	Check(ctx context.Context, code string, start, end int) (CheckResult, error)
	Reserve(ctx context.Context, code string, start, end int) (Interval, error)
	All(ctx context.Context) (map[string][]Interval, error)
	Ping(ctx context.Context) error
	Close() error
}

func validate(start, end int) error {
	if end < start {
		return fmt.Errorf("%w: [%d - %d]", ErrInvalidRange, start, end)
	}
	return nil
}

func firstOverlap(list []Interval, start, end int) *OverlapError {
	for _, iv := range list {
		if iv.Overlaps(start, end) {
			return &OverlapError{Existing: iv}
		}
	}
	return nil
}

func checkAgainst(list []Interval, start, end int) CheckResult {
	if oe := firstOverlap(list, start, end); oe != nil {
		return CheckResult{Available: false, Message: oe.Error()}
	}
	return CheckResult{Available: true}
}

// HistoryEntry is one reservation as shown to operators.
type HistoryEntry struct {
	CommuneCode string    `json:"communeCode"`
	CommuneName string    `json:"communeName"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Timestamp   time.Time `json:"timestamp"`
	Count       int       `json:"count"`
}

// History flattens the ledger, newest first. names maps codes to display
// names; unknown codes are shown as the code itself.
func History(all map[string][]Interval, names map[string]string) []HistoryEntry {
	out := []HistoryEntry{}
	for code, list := range all {
		name := names[code]
		if name == "" {
			name = code
		}
		for _, iv := range list {
			out = append(out, HistoryEntry{
				CommuneCode: code,
				CommuneName: name,
				Start:       iv.Start,
				End:         iv.End,
				Timestamp:   iv.Timestamp,
				Count:       iv.Count(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		if out[i].CommuneCode != out[j].CommuneCode {
			return out[i].CommuneCode < out[j].CommuneCode
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// Open returns the Redis ledger when redisURL is set and the file ledger otherwise.
func Open(redisURL, keyNS, file string) (Intervals, error) {
	if redisURL != "" {
		return NewRedisIntervals(redisURL, keyNS)
	}
	return NewFileIntervals(file)
}
