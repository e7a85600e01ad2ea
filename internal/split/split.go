// Package split implements the split solver (spec.md §4.4, C5): walking the
// tree, computing each internal node's split position along its axis by
// accumulating normalised load left-to-right until the left subtree's
// target time is reached, then clamping to boundary/maxSize constraints and
// recursing.
//
// The left-to-right discontinuity sweep is grounded on vigilantbsp's
// picknode.go/diffgeometry.go partition-cost evaluation: there, a candidate
// BSP line's cost is accumulated by walking sorted segs and summing a
// per-seg contribution until a decision threshold is reached; here the same
// shape — sorted data, sweep a position forward, accumulate until a time
// budget is met — computes where a normalised split position lands.
package split

import (
	"math"
	"sort"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/history"
	"github.com/vlequalizer/loadeq/internal/tree"
)

// SortedData holds the three presorted observation lists the sweep needs,
// built once per frame (spec.md §4.4 "Pre-sort").
type SortedData struct {
	ByX          []*history.Observation // ascending by Viewport.X, for V nodes
	ByY          []*history.Observation // ascending by Viewport.Y, for H nodes
	ByRangeStart []*history.Observation // ascending by Range.Start, for DB nodes
}

// PrepareSortedData filters out zero-area/empty-range observations and
// builds the three sorted copies.
func PrepareSortedData(rec *history.FrameRecord) *SortedData {
	var usable []*history.Observation
	for _, o := range rec.Observations {
		if o.NoRender() {
			continue
		}
		usable = append(usable, o)
	}

	byX := append([]*history.Observation(nil), usable...)
	sort.Slice(byX, func(i, j int) bool { return byX[i].Viewport.X < byX[j].Viewport.X })

	byY := append([]*history.Observation(nil), usable...)
	sort.Slice(byY, func(i, j int) bool { return byY[i].Viewport.Y < byY[j].Viewport.Y })

	byR := append([]*history.Observation(nil), usable...)
	sort.Slice(byR, func(i, j int) bool { return byR[i].Range.Start < byR[j].Range.Start })

	return &SortedData{ByX: byX, ByY: byY, ByRangeStart: byR}
}

// Compute recurses over node, assigning viewport/range to every leaf and
// appending a pending observation to frame for each (to be filled later by
// package stats). rootPixelViewport is the root channel's pixel size, used
// to convert the boundary2i pixel quantum into normalised units.
func Compute(node *tree.Node, sorted *SortedData, vp geom.Viewport, rng geom.Range, frame *history.FrameRecord, rootPixelViewport geom.Size2i) {
	if node.IsLeaf() {
		computeLeaf(node, vp, rng, frame)
		return
	}

	if !vp.IsFull() && rng != geom.FullRange {
		panic("split: topology error — leaf path mixes 2-D and DB splits (neither vp==FULL nor range==ALL holds)")
	}

	switch node.SplitMode {
	case geom.Vertical:
		computeVertical(node, sorted, vp, rng, frame, rootPixelViewport)
	case geom.Horizontal:
		computeHorizontal(node, sorted, vp, rng, frame, rootPixelViewport)
	case geom.DB:
		computeDB(node, sorted, vp, rng, frame)
	default:
		panic("split: internal node has no valid split mode")
	}
}

func computeLeaf(node *tree.Node, vp geom.Viewport, rng geom.Range, frame *history.FrameRecord) {
	node.Viewport = vp
	node.Range = rng

	c := node.Compound
	c.SetViewport(vp)
	c.SetRange(rng)

	hasContent := vp.HasArea() || rng.HasData()
	t := history.Measured(0)
	if hasContent {
		t = history.Pending
	}

	obs := &history.Observation{
		TaskID:   c.TaskID(),
		Channel:  c.Channel(),
		Viewport: vp,
		Range:    rng,
		Time:     t,
	}
	frame.Observations = append(frame.Observations, obs)
}

// axis abstracts the V/H sweep, which are otherwise identical modulo which
// viewport component is primary and which is the overlap dimension.
type axis struct {
	start   func(geom.Viewport) float64
	end     func(geom.Viewport) float64
	overlap func(v geom.Viewport, lo, hi float64) float64
}

var axisX = axis{
	start:   func(v geom.Viewport) float64 { return v.X },
	end:     func(v geom.Viewport) float64 { return v.XEnd() },
	overlap: func(v geom.Viewport, lo, hi float64) float64 { return v.OverlapY(lo, hi) },
}

var axisY = axis{
	start:   func(v geom.Viewport) float64 { return v.Y },
	end:     func(v geom.Viewport) float64 { return v.YEnd() },
	overlap: func(v geom.Viewport, lo, hi float64) float64 { return v.OverlapX(lo, hi) },
}

func computeVertical(node *tree.Node, sorted *SortedData, vp geom.Viewport, rng geom.Range, frame *history.FrameRecord, rootPvp geom.Size2i) {
	if rng != geom.FullRange {
		panic("split: V node requires range == ALL")
	}
	x0, x1 := vp.X, vp.XEnd()
	splitPos := sweepViewportAxis(sorted.ByX, axisX, x0, x1, vp.H, vp.Y, vp.YEnd(), node.Left.Time)
	splitPos = clampSplit(splitPos, x0, x1, node.Left.Usage, node.Right.Usage, node.Left.MaxSize.W, node.Right.MaxSize.W, node.Boundary2i.W, rootPvp.W)

	leftVp := geom.Viewport{X: x0, Y: vp.Y, W: splitPos - x0, H: vp.H}
	rightVp := geom.Viewport{X: splitPos, Y: vp.Y, W: x1 - splitPos, H: vp.H}
	for rightVp.XEnd() < x1 {
		rightVp.W += geom.Epsilon
	}

	Compute(node.Left, sorted, leftVp, rng, frame, rootPvp)
	Compute(node.Right, sorted, rightVp, rng, frame, rootPvp)
}

func computeHorizontal(node *tree.Node, sorted *SortedData, vp geom.Viewport, rng geom.Range, frame *history.FrameRecord, rootPvp geom.Size2i) {
	if rng != geom.FullRange {
		panic("split: H node requires range == ALL")
	}
	y0, y1 := vp.Y, vp.YEnd()
	splitPos := sweepViewportAxis(sorted.ByY, axisY, y0, y1, vp.W, vp.X, vp.XEnd(), node.Left.Time)
	splitPos = clampSplit(splitPos, y0, y1, node.Left.Usage, node.Right.Usage, node.Left.MaxSize.H, node.Right.MaxSize.H, node.Boundary2i.H, rootPvp.H)

	topVp := geom.Viewport{X: vp.X, Y: y0, W: vp.W, H: splitPos - y0}
	bottomVp := geom.Viewport{X: vp.X, Y: splitPos, W: vp.W, H: y1 - splitPos}
	for bottomVp.YEnd() < y1 {
		bottomVp.H += geom.Epsilon
	}

	Compute(node.Left, sorted, topVp, rng, frame, rootPvp)
	Compute(node.Right, sorted, bottomVp, rng, frame, rootPvp)
}

func computeDB(node *tree.Node, sorted *SortedData, vp geom.Viewport, rng geom.Range, frame *history.FrameRecord) {
	if !vp.IsFull() {
		panic("split: DB node requires viewport == FULL")
	}
	r0, r1 := rng.Start, rng.End
	splitPos := sweepRangeAxis(sorted.ByRangeStart, r0, r1, node.Left.Time)
	splitPos = clampDBSplit(splitPos, r0, r1, node.Left.Usage, node.Right.Usage, node.Boundaryf)

	left := geom.Range{Start: r0, End: splitPos}
	right := geom.Range{Start: splitPos, End: r1}

	Compute(node.Left, sorted, vp, left, frame, geom.Size2i{})
	Compute(node.Right, sorted, vp, right, frame, geom.Size2i{})
}

// sweepViewportAxis implements the discontinuity walk of spec.md §4.4 for a
// 2-D (V or H) split. extent is the fixed cross-axis length (vp.h for V,
// vp.w for H); otherLo/otherHi bound the fixed cross-axis band the overlap
// is measured against.
func sweepViewportAxis(sorted []*history.Observation, ax axis, segStart, segEnd, extent, otherLo, otherHi, targetLeft float64) float64 {
	splitPos := segStart
	timeLeft := targetLeft
	ws := sorted

	for timeLeft > geom.Epsilon && splitPos < segEnd {
		ws = pruneByEnd(ws, ax.end, splitPos)
		if len(ws) == 0 {
			break
		}

		currentPos := segEnd
		for _, d := range ws {
			if e := ax.end(d.Viewport); e < currentPos {
				currentPos = e
			}
		}

		load := 0.0
		for _, d := range ws {
			if ax.start(d.Viewport) >= currentPos {
				break
			}
			if ov := ax.overlap(d.Viewport, otherLo, otherHi); ov > 0 {
				load += d.Load * ov / extent
			}
		}

		stripTime := (currentPos - splitPos) * extent * load
		if stripTime >= timeLeft {
			if stripTime > 0 {
				splitPos += (currentPos - splitPos) * timeLeft / stripTime
			}
			timeLeft = 0
		} else {
			timeLeft -= stripTime
			splitPos = currentPos
		}
	}

	if splitPos > segEnd {
		splitPos = segEnd
	}
	return splitPos
}

// sweepRangeAxis is the DB counterpart: load is a straight sum, no overlap
// factor (spec.md §4.4).
func sweepRangeAxis(sorted []*history.Observation, segStart, segEnd, targetLeft float64) float64 {
	splitPos := segStart
	timeLeft := targetLeft
	ws := sorted

	for timeLeft > geom.Epsilon && splitPos < segEnd {
		ws = pruneRangeByEnd(ws, splitPos)
		if len(ws) == 0 {
			break
		}

		currentPos := segEnd
		for _, d := range ws {
			if d.Range.End < currentPos {
				currentPos = d.Range.End
			}
		}

		load := 0.0
		for _, d := range ws {
			if d.Range.Start >= currentPos {
				break
			}
			load += d.Load
		}

		stripTime := (currentPos - splitPos) * load
		if stripTime >= timeLeft {
			if stripTime > 0 {
				splitPos += (currentPos - splitPos) * timeLeft / stripTime
			}
			timeLeft = 0
		} else {
			timeLeft -= stripTime
			splitPos = currentPos
		}
	}

	if splitPos > segEnd {
		splitPos = segEnd
	}
	return splitPos
}

func pruneByEnd(ws []*history.Observation, end func(geom.Viewport) float64, splitPos float64) []*history.Observation {
	out := make([]*history.Observation, 0, len(ws))
	for _, d := range ws {
		if end(d.Viewport) > splitPos {
			out = append(out, d)
		}
	}
	return out
}

func pruneRangeByEnd(ws []*history.Observation, splitPos float64) []*history.Observation {
	out := make([]*history.Observation, 0, len(ws))
	for _, d := range ws {
		if d.Range.End > splitPos {
			out = append(out, d)
		}
	}
	return out
}

// snapToBoundary rounds pos to the nearest multiple of boundary (round-half
// up), safe across the full [0,1] domain — unlike the source's
// (uint32_t)(splitPos/boundary+0.5) cast, which has undefined behaviour for
// out-of-range intermediates (spec.md §9).
func snapToBoundary(pos, boundary float64) float64 {
	if boundary <= 0 {
		return pos
	}
	return math.Floor(pos/boundary+0.5) * boundary
}

// clampSplit applies the V/H clamping rules of spec.md §4.4.
func clampSplit(splitPos, x0, x1, leftUsage, rightUsage float64, leftMaxPx, rightMaxPx, boundaryPx, rootPx int) float64 {
	if leftUsage == 0 {
		splitPos = x0
	}
	if rightUsage == 0 {
		splitPos = x1
	}

	if leftUsage > 0 && rightUsage > 0 && rootPx > 0 {
		boundary := float64(boundaryPx) / float64(rootPx)
		rightMax := float64(rightMaxPx) / float64(rootPx)
		if x1-splitPos > rightMax {
			splitPos = x1 - rightMax
		} else {
			leftMax := float64(leftMaxPx) / float64(rootPx)
			if splitPos-x0 > leftMax {
				splitPos = x0 + leftMax
			}
		}

		if splitPos < x0+boundary {
			splitPos = x0 + boundary
		}
		if splitPos > x1-boundary {
			splitPos = x1 - boundary
		}

		splitPos = snapToBoundary(splitPos, boundary)
	}

	if splitPos < x0 {
		splitPos = x0
	}
	if splitPos > x1 {
		splitPos = x1
	}
	return splitPos
}

// clampDBSplit applies the DB clamping rules of spec.md §4.4.
func clampDBSplit(splitPos, r0, r1, leftUsage, rightUsage, boundaryf float64) float64 {
	if leftUsage == 0 {
		splitPos = r0
	}
	if rightUsage == 0 {
		splitPos = r1
	}

	splitPos = snapToBoundary(splitPos, boundaryf)

	if splitPos-r0 < boundaryf {
		splitPos = r0
	}
	if r1-splitPos < boundaryf {
		splitPos = r1
	}

	if splitPos < r0 {
		splitPos = r0
	}
	if splitPos > r1 {
		splitPos = r1
	}
	return splitPos
}
