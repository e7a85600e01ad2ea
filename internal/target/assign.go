// Package target implements target-time assignment (spec.md §4.3, C4):
// per-leaf target render times from the most recent complete measurement,
// smoothed by exponential damping, then leftover time redistributed down the
// tree proportional to usage.
//
// The weighted-pool accounting (each leaf draws against a shared
// timePerResource budget, proportional to its usage) is grounded on the
// teacher's internal/affinity/manager.go scoreOne/Rank: there, a peer's share
// of work is a weighted blend of reputation/availability/least-load signals;
// here a leaf's share of total frame time is a damped blend of its
// proportional usage share and its own last measured time.
package target

import (
	"fmt"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/history"
	"github.com/vlequalizer/loadeq/internal/tree"
)

// Params bundles the per-frame configuration Assign needs.
type Params struct {
	Damping    float64
	Boundary2i geom.Size2i
	Boundaryf  float64
}

// Result reports assignment outcomes, including the SPEC_FULL-resolved
// leftover-to-zero-usage-subtree open question (spec.md §9): rather than a
// hard assertion, a reading above epsilon is logged and counted.
type Result struct {
	Leftover  float64
	Anomalies int
}

const epsilon = 1e-4

// ValidateUsage rejects an all-zero-usage configuration up front, per
// SPEC_FULL.md's resolution of the leftover/zero-usage open question: rather
// than letting leftover-to-zero-usage assertions fire at solve time, a
// topology with no resource anywhere to receive it is invalid at tree-build
// time.
func ValidateUsage(root *tree.Node) error {
	total := 0.0
	tree.Walk(root, func(n *tree.Node) {
		if n.IsLeaf() && n.Compound != nil {
			total += n.Compound.Usage()
		}
	})
	if total <= 0 {
		return fmt.Errorf("target: all leaves have zero usage, no valid split exists")
	}
	return nil
}

// Assign runs both phases of §4.3 over root, using usable as the most
// recent complete history record.
func Assign(root *tree.Node, usable *history.FrameRecord, p Params) Result {
	totalTime := 0.0
	for _, o := range usable.Observations {
		totalTime += float64(o.Time.Value())
	}

	nResources := 0.0
	tree.Walk(root, func(n *tree.Node) {
		if n.IsLeaf() && n.Compound != nil && n.Compound.IsRunning() {
			nResources += n.Compound.Usage()
		}
	})

	var timePerResource float64
	if nResources > 0 {
		timePerResource = totalTime / nResources
	}

	a := &assigner{usable: usable, damping: p.Damping, boundary2i: p.Boundary2i, boundaryf: p.Boundaryf, timePerResource: timePerResource}
	leftover := a.assign(root, totalTime)

	res := Result{Leftover: leftover}
	a.result = &res
	a.redistribute(root, leftover)
	return res
}

type assigner struct {
	usable          *history.FrameRecord
	damping         float64
	boundary2i      geom.Size2i
	boundaryf       float64
	timePerResource float64
	result          *Result
}

// assign implements Phase 1: preorder target assignment, threading the
// shrinking "remainingTotal" pool through the traversal so later siblings see
// the decremented budget, and returns the pool remaining after this subtree.
func (a *assigner) assign(n *tree.Node, remaining float64) float64 {
	if n.IsLeaf() {
		return a.assignLeaf(n, remaining)
	}

	remaining = a.assign(n.Left, remaining)
	remaining = a.assign(n.Right, remaining)

	n.Time = n.Left.Time + n.Right.Time
	n.Usage = n.Left.Usage + n.Right.Usage
	n.MaxSize, n.Boundary2i, n.Boundaryf = aggregate(n.SplitMode, n.Left, n.Right)
	return remaining
}

func (a *assigner) assignLeaf(n *tree.Node, remaining float64) float64 {
	c := n.Compound
	usage := c.Usage()
	running := c.IsRunning()

	effectiveUsage := usage
	if !running {
		effectiveUsage = 0
	}
	rawTarget := a.timePerResource * effectiveUsage

	var target float64
	if usage > 0 {
		target = rawTarget
		if obs := a.usable.Find(c.TaskID()); obs != nil && obs.Time.IsMeasured() {
			measured := float64(obs.Time.Value())
			target = (1-a.damping)*rawTarget + a.damping*measured
		}
	} else {
		target = 0
	}

	if target > remaining {
		target = remaining
	}
	if target < 0 {
		target = 0
	}

	n.Time = target
	n.Usage = usage
	n.Boundary2i = a.boundary2i
	n.Boundaryf = a.boundaryf
	if ch := c.Channel(); ch != nil {
		n.MaxSize = ch.PixelViewport()
	}

	return remaining - target
}

// redistribute implements Phase 2: leftover proportional to usage, walked
// preorder from the root.
func (a *assigner) redistribute(n *tree.Node, leftover float64) {
	if n.IsLeaf() {
		if n.Usage > 0 {
			n.Time += leftover
			return
		}
		if leftover > epsilon {
			a.result.Anomalies++
		}
		return
	}

	var lShare, rShare float64
	if n.Usage > 0 {
		lShare = leftover * n.Left.Usage / n.Usage
		rShare = leftover - lShare
		if leftover-lShare < epsilon {
			lShare = leftover
			rShare = 0
		}
		if leftover-rShare < epsilon {
			rShare = leftover
			lShare = 0
		}
	}

	a.redistribute(n.Left, lShare)
	a.redistribute(n.Right, rShare)
}

// aggregate computes the §3 aggregation table for an internal node from its
// two already-annotated children.
func aggregate(mode geom.SplitMode, l, r *tree.Node) (maxSize geom.Size2i, boundary2i geom.Size2i, boundaryf float64) {
	switch mode {
	case geom.Vertical:
		maxSize = geom.Size2i{W: l.MaxSize.W + r.MaxSize.W, H: minInt(l.MaxSize.H, r.MaxSize.H)}
		boundary2i = geom.Size2i{W: l.Boundary2i.W + r.Boundary2i.W, H: maxInt(l.Boundary2i.H, r.Boundary2i.H)}
		boundaryf = maxF(l.Boundaryf, r.Boundaryf)
	case geom.Horizontal:
		maxSize = geom.Size2i{W: minInt(l.MaxSize.W, r.MaxSize.W), H: l.MaxSize.H + r.MaxSize.H}
		boundary2i = geom.Size2i{W: maxInt(l.Boundary2i.W, r.Boundary2i.W), H: l.Boundary2i.H + r.Boundary2i.H}
		boundaryf = maxF(l.Boundaryf, r.Boundaryf)
	case geom.DB:
		maxSize = geom.Size2i{W: maxInt(l.MaxSize.W, r.MaxSize.W), H: maxInt(l.MaxSize.H, r.MaxSize.H)}
		boundary2i = geom.Size2i{W: l.Boundary2i.W, H: r.Boundary2i.H}
		boundaryf = l.Boundaryf + r.Boundaryf
	}
	return
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
