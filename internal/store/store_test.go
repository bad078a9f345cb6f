package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlaps(t *testing.T) {
	iv := Interval{Start: 70000, End: 70099}
	cases := []struct {
		start, end int
		want       bool
	}{
		{69000, 69999, false},
		{69000, 70000, true},
		{70050, 70060, true},
		{70099, 70200, true},
		{70100, 70200, false},
		{60000, 80000, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, iv.Overlaps(c.start, c.end), "[%d - %d]", c.start, c.end)
	}
	assert.Equal(t, 100, iv.Count())
}

func newFileStore(t *testing.T) (*FileIntervals, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "data", "intervals.json")
	s, err := NewFileIntervals(p)
	require.NoError(t, err)
	return s, p
}

func TestFileIntervals_InitCreatesEmptyObject(t *testing.T) {
	_, p := newFileStore(t)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestFileIntervals_ReserveAndCheck(t *testing.T) {
	ctx := context.Background()
	s, p := newFileStore(t)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	res, err := s.Check(ctx, "13120201", 70000, 70099)
	require.NoError(t, err)
	assert.True(t, res.Available)

	iv, err := s.Reserve(ctx, "13120201", 70000, 70099)
	require.NoError(t, err)
	assert.Equal(t, 70000, iv.Start)

	res, err = s.Check(ctx, "13120201", 70050, 70150)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "Interval overlaps with existing range [70000 - 70099]", res.Message)

	// other communes are independent
	res, err = s.Check(ctx, "13120202", 70050, 70150)
	require.NoError(t, err)
	assert.True(t, res.Available)

	_, err = s.Reserve(ctx, "13120201", 70099, 70100)
	var oe *OverlapError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, 70000, oe.Existing.Start)

	_, err = s.Reserve(ctx, "13120201", 70100, 70199)
	require.NoError(t, err)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	var onDisk map[string][]Interval
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Len(t, onDisk["13120201"], 2)

	// a fresh handle sees the persisted ledger
	again, err := NewFileIntervals(p)
	require.NoError(t, err)
	all, err := again.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, onDisk, all)
}

func TestFileIntervals_InvalidRange(t *testing.T) {
	s, _ := newFileStore(t)
	_, err := s.Reserve(context.Background(), "13120201", 10, 5)
	assert.True(t, errors.Is(err, ErrInvalidRange))
	_, err = s.Check(context.Background(), "13120201", 10, 5)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestHistory(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	all := map[string][]Interval{
		"13120201": {
			{Start: 1, End: 100, Timestamp: t0},
			{Start: 101, End: 150, Timestamp: t0.Add(2 * time.Hour)},
		},
		"99999999": {
			{Start: 1, End: 1, Timestamp: t0.Add(time.Hour)},
		},
	}
	h := History(all, map[string]string{"13120201": "DIMBOLI"})
	require.Len(t, h, 3)

	assert.Equal(t, "DIMBOLI", h[0].CommuneName)
	assert.Equal(t, 101, h[0].Start)
	assert.Equal(t, 50, h[0].Count)

	assert.Equal(t, "99999999", h[1].CommuneName)
	assert.Equal(t, 1, h[1].Count)

	assert.Equal(t, 100, h[2].Count)
}

func TestHistory_Empty(t *testing.T) {
	h := History(nil, nil)
	require.NotNil(t, h)
	assert.Empty(t, h)
}

// Redis checks need a live server; set QRPRINT_REDIS_URL to run them.
func TestRedisIntervals(t *testing.T) {
	url := os.Getenv("QRPRINT_REDIS_URL")
	if url == "" {
		t.Skip("QRPRINT_REDIS_URL not set")
	}
	ctx := context.Background()
	ns := "qrprint-test-" + uuid.NewString()
	s, err := NewRedisIntervals(url, ns)
	require.NoError(t, err)
	defer func() {
		s.client.Del(ctx, s.key("13120201"), s.codesKey())
		s.Close()
	}()

	_, err = s.Reserve(ctx, "13120201", 1, 100)
	require.NoError(t, err)

	res, err := s.Check(ctx, "13120201", 50, 60)
	require.NoError(t, err)
	assert.False(t, res.Available)

	_, err = s.Reserve(ctx, "13120201", 100, 200)
	var oe *OverlapError
	assert.True(t, errors.As(err, &oe))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all["13120201"], 1)
	assert.Equal(t, 100, all["13120201"][0].End)
}

func TestOpen_FallsBackToFile(t *testing.T) {
	s, err := Open("", "", filepath.Join(t.TempDir(), "intervals.json"))
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*FileIntervals)
	assert.True(t, ok)
}

func TestFileIntervals_Ping(t *testing.T) {
	s, p := newFileStore(t)
	assert.NoError(t, s.Ping(context.Background()))
	require.NoError(t, os.WriteFile(p, []byte("not json"), 0o644))
	assert.Error(t, s.Ping(context.Background()))
}
