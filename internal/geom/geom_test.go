package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewportHasArea(t *testing.T) {
	assert.True(t, FullViewport.HasArea())
	assert.False(t, (Viewport{W: 0, H: 1}).HasArea())
	assert.False(t, (Viewport{W: 1, H: 0}).HasArea())
}

func TestViewportIsFull(t *testing.T) {
	assert.True(t, FullViewport.IsFull())
	assert.False(t, (Viewport{X: 0.1, Y: 0, W: 0.9, H: 1}).IsFull())
}

func TestViewportOverlap(t *testing.T) {
	v := Viewport{X: 0, Y: 0.25, W: 1, H: 0.5}
	assert.InDelta(t, 0.5, v.OverlapY(0, 1), Epsilon)
	assert.InDelta(t, 0.25, v.OverlapY(0, 0.5), Epsilon)
	assert.InDelta(t, 0, v.OverlapY(0.8, 1), Epsilon)
}

func TestRangeHasData(t *testing.T) {
	assert.True(t, FullRange.HasData())
	assert.False(t, (Range{Start: 0.5, End: 0.5}).HasData())
}

func TestSplitModeString(t *testing.T) {
	assert.Equal(t, "VERTICAL", Vertical.String())
	assert.Equal(t, "DB", DB.String())
}
