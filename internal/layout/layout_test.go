package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestPlan_Defaults(t *testing.T) {
	g, err := Plan(DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, 782, g.UsableWidth, eps)
	assert.InDelta(t, 535, g.UsableHeight, eps)
	assert.InDelta(t, 195.5, g.CellWidth, eps)
	assert.InDelta(t, 257.5, g.CellHeight, eps)
	assert.InDelta(t, 180.5, g.FitWidth, eps)
	assert.InDelta(t, 257.5, g.FitHeight, eps)

	// fit box is wider than the card, so height binds
	assert.InDelta(t, 257.5*0.98, g.ImageHeight, eps)
	assert.InDelta(t, 257.5*0.98*252/415, g.ImageWidth, eps)
}

func TestPlan_WidthBinding(t *testing.T) {
	cfg := DefaultConfig().WithGrid(8, 1, 30, 20)
	g, err := Plan(cfg)
	require.NoError(t, err)

	// (782 - 7*20)/8 = 80.25 wide vs 535 tall: narrower than the card
	assert.InDelta(t, 80.25, g.FitWidth, eps)
	assert.InDelta(t, 80.25*0.98, g.ImageWidth, eps)
	assert.InDelta(t, 80.25*0.98*415/252, g.ImageHeight, eps)
}

func TestPlan_RatioAlwaysPreserved(t *testing.T) {
	for _, cols := range []int{1, 2, 3, 4, 6, 9} {
		for _, rows := range []int{1, 2, 3, 5} {
			for _, margin := range []float64{0, 10, 30, 60} {
				for _, spacing := range []float64{0, 5, 20, 40} {
					g, err := Plan(DefaultConfig().WithGrid(cols, rows, margin, spacing))
					if err != nil {
						continue
					}
					assert.InDelta(t, 252.0/415.0, g.ImageWidth/g.ImageHeight, 1e-9,
						"cols=%d rows=%d margin=%g spacing=%g", cols, rows, margin, spacing)
					assert.LessOrEqual(t, g.ImageWidth, g.FitWidth*0.98+eps)
					assert.LessOrEqual(t, g.ImageHeight, g.FitHeight*0.98+eps)
				}
			}
		}
	}
}

func TestPlan_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero columns", DefaultConfig().WithGrid(0, 2, 30, 20)},
		{"negative rows", DefaultConfig().WithGrid(4, -1, 30, 20)},
		{"negative margin", DefaultConfig().WithGrid(4, 2, -1, 20)},
		{"negative spacing", DefaultConfig().WithGrid(4, 2, 30, -5)},
		{"margin eats page", DefaultConfig().WithGrid(4, 2, 500, 20)},
		{"gutter eats fit box", DefaultConfig().WithGrid(60, 2, 30, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.cfg)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSlotOf(t *testing.T) {
	g, err := Plan(DefaultConfig())
	require.NoError(t, err)

	tests := []struct {
		index int
		want  Slot
	}{
		{0, Slot{Index: 0, Page: 1, Position: 0, Row: 0, Col: 0}},
		{3, Slot{Index: 3, Page: 1, Position: 3, Row: 0, Col: 3}},
		{4, Slot{Index: 4, Page: 1, Position: 4, Row: 1, Col: 0}},
		{7, Slot{Index: 7, Page: 1, Position: 7, Row: 1, Col: 3}},
		{8, Slot{Index: 8, Page: 2, Position: 0, Row: 0, Col: 0}},
		{13, Slot{Index: 13, Page: 2, Position: 5, Row: 1, Col: 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.SlotOf(tt.index))
	}
}

func TestCellAndImageRect(t *testing.T) {
	g, err := Plan(DefaultConfig())
	require.NoError(t, err)

	top := g.CellRect(0, 0)
	assert.InDelta(t, 30, top.X, eps)
	assert.InDelta(t, 307.5, top.Y, eps)

	bottomRight := g.CellRect(1, 3)
	assert.InDelta(t, 616.5, bottomRight.X, eps)
	assert.InDelta(t, 30, bottomRight.Y, eps)

	img := g.ImageRect(1, 3)
	assert.InDelta(t, bottomRight.X+bottomRight.W/2, img.X+img.W/2, eps)
	assert.InDelta(t, bottomRight.Y+bottomRight.H/2, img.Y+img.H/2, eps)
	assert.InDelta(t, g.ImageWidth, img.W, eps)
}

func TestPageCount(t *testing.T) {
	for _, grid := range [][2]int{{4, 2}, {3, 3}, {1, 1}, {5, 2}} {
		g, err := Plan(DefaultConfig().WithGrid(grid[0], grid[1], 10, 5))
		require.NoError(t, err)
		per := grid[0] * grid[1]
		for n := 0; n <= 3*per+1; n++ {
			want := (n + per - 1) / per
			assert.Equal(t, want, g.PageCount(n), "grid=%v n=%d", grid, n)
			assert.Equal(t, want, len(Paginate(g, n).Pages), "grid=%v n=%d", grid, n)
		}
	}
}

func TestPaginate_NineImages(t *testing.T) {
	g, err := Plan(DefaultConfig())
	require.NoError(t, err)

	doc := Paginate(g, 9)
	require.Len(t, doc.Pages, 2)
	assert.Len(t, doc.Pages[0].Placements, 8)
	assert.Len(t, doc.Pages[1].Placements, 1)
	assert.Equal(t, "Page 1", doc.Pages[0].Footer())
	assert.Equal(t, "Page 2", doc.Pages[1].Footer())
	assert.Equal(t, 9, doc.Len())

	last := doc.Pages[1].Placements[0]
	assert.Equal(t, 8, last.Index)
	assert.Equal(t, g.CellRect(0, 0), last.Cell)
}

func TestPaginate_Empty(t *testing.T) {
	g, err := Plan(DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, Paginate(g, 0).Pages)
}
