// Package geom holds the fractional 2-D and 1-D shapes the split tree and
// the split solver operate on: Viewport (image-space sub-rectangles) and
// Range (1-D sort-last sub-intervals).
package geom

import "math"

// Epsilon is the general-purpose tolerance used throughout the equalizer for
// floating-point comparisons against zero.
const Epsilon = 1e-6

// Viewport is a fractional sub-rectangle of a channel's output, with all of
// x, y, w, h in [0,1].
type Viewport struct {
	X, Y, W, H float64
}

// FullViewport covers the entire output.
var FullViewport = Viewport{X: 0, Y: 0, W: 1, H: 1}

// XEnd returns x+w.
func (v Viewport) XEnd() float64 { return v.X + v.W }

// YEnd returns y+h.
func (v Viewport) YEnd() float64 { return v.Y + v.H }

// HasArea reports whether the viewport covers a non-degenerate area.
func (v Viewport) HasArea() bool { return v.W > 0 && v.H > 0 }

// Area returns w*h, 0 for degenerate viewports.
func (v Viewport) Area() float64 {
	if !v.HasArea() {
		return 0
	}
	return v.W * v.H
}

// IsFull reports whether v equals FullViewport within Epsilon.
func (v Viewport) IsFull() bool {
	return math.Abs(v.X) < Epsilon && math.Abs(v.Y) < Epsilon &&
		math.Abs(v.XEnd()-1) < Epsilon && math.Abs(v.YEnd()-1) < Epsilon
}

// OverlapY returns the length of the overlap between v's vertical extent and
// [y0,y1].
func (v Viewport) OverlapY(y0, y1 float64) float64 {
	lo := math.Max(v.Y, y0)
	hi := math.Min(v.YEnd(), y1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// OverlapX is the horizontal counterpart of OverlapY.
func (v Viewport) OverlapX(x0, x1 float64) float64 {
	lo := math.Max(v.X, x0)
	hi := math.Min(v.XEnd(), x1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Range is a fractional 1-D sub-interval in [0,1], start <= end.
type Range struct {
	Start, End float64
}

// FullRange is the [0,1] interval, ALL in spec terms.
var FullRange = Range{Start: 0, End: 1}

// HasData reports whether the range is non-degenerate.
func (r Range) HasData() bool { return r.End > r.Start }

// Length returns end-start, clamped to 0.
func (r Range) Length() float64 {
	if !r.HasData() {
		return 0
	}
	return r.End - r.Start
}

// SplitMode selects the axis a tree node partitions its children along.
type SplitMode int

const (
	// TwoD is a configuration-only mode: never stored on a tree node. It
	// expands to alternating Vertical/Horizontal nodes at tree-build time.
	TwoD SplitMode = iota
	Vertical
	Horizontal
	DB
)

func (m SplitMode) String() string {
	switch m {
	case TwoD:
		return "2D"
	case Vertical:
		return "VERTICAL"
	case Horizontal:
		return "HORIZONTAL"
	case DB:
		return "DB"
	default:
		return "UNKNOWN"
	}
}

// Size2i is an integer pixel size, used for maxSize and the boundary2i
// alignment quantum.
type Size2i struct {
	W, H int
}
