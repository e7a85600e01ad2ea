// Package tree implements the split tree (spec.md §3/§4.1, C1): a recursive
// binary tree over an ordered list of compounds, with a per-node split axis.
// Construction is structural only — the numeric per-frame fields (Time,
// Usage, MaxSize, Boundary2i, Boundaryf, Viewport, Range) are filled in every
// frame by package target (C4) and consumed/overwritten by package split
// (C5); tree itself only builds and tears down the shape.
//
// The Leaf/Internal distinction is a total tag switch rather than nil child
// pointers, per spec.md §9 ("avoid null pointers in child slots"), grounded
// on vigilantbsp's split-tree node representation (nodegen.go's NodesWork /
// node_intro.go) and on the original _buildTree recursion in
// loadEqualizer.cpp.
package tree

import (
	"fmt"
	"io"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/render"
)

// Kind tags a Node as a leaf (bound to one compound) or an internal split.
type Kind int

const (
	Leaf Kind = iota
	Internal
)

// Node is either a leaf or an internal node of the split tree. The fields
// below the Kind/topology group are recomputed every frame by package
// target; tree.Build never writes to them beyond their zero value.
type Node struct {
	Kind      Kind
	SplitMode geom.SplitMode

	// Leaf-only.
	Compound render.Compound

	// Internal-only; owned children.
	Left, Right *Node

	// Per-frame aggregate state (spec.md §3), written by package target and
	// read by package split.
	MaxSize    geom.Size2i
	Boundary2i geom.Size2i
	Boundaryf  float64
	Time       float64
	Usage      float64
	Viewport   geom.Viewport
	Range      geom.Range
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool { return n.Kind == Leaf }

// Build constructs the split tree from an ordered list of children, per
// spec.md §4.1. mode is the configured SplitMode (including geom.TwoD, which
// expands into alternating Vertical/Horizontal internal nodes). Building a
// leaf registers listener on that leaf's channel — the sole mechanism by
// which statistics enter the equalizer (spec.md §4.1 "Listening").
func Build(children []render.Compound, mode geom.SplitMode, listener render.Listener) (*Node, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("tree: Build requires at least one child")
	}
	return build(children, mode, listener), nil
}

func build(children []render.Compound, mode geom.SplitMode, listener render.Listener) *Node {
	if len(children) == 1 {
		c := children[0]
		leafMode := mode
		if mode == geom.TwoD {
			leafMode = geom.Vertical
		}
		if ch := c.Channel(); ch != nil && listener != nil {
			ch.AddListener(listener)
		}
		return &Node{
			Kind:      Leaf,
			SplitMode: leafMode,
			Compound:  c,
		}
	}

	mid := len(children) / 2
	left := build(children[:mid], mode, listener)
	right := build(children[mid:], mode, listener)

	var splitMode geom.SplitMode
	if mode == geom.TwoD {
		if right.SplitMode == geom.Vertical {
			splitMode = geom.Horizontal
		} else {
			splitMode = geom.Vertical
		}
	} else {
		splitMode = mode
	}

	return &Node{
		Kind:      Internal,
		SplitMode: splitMode,
		Left:      left,
		Right:     right,
	}
}

// Destroy tears the tree down, deregistering every leaf's listener
// (spec.md §4.1 "destroying a leaf deregisters it").
func Destroy(n *Node, listener render.Listener) {
	if n == nil {
		return
	}
	if n.IsLeaf() {
		if n.Compound != nil {
			if ch := n.Compound.Channel(); ch != nil && listener != nil {
				ch.RemoveListener(listener)
			}
		}
		return
	}
	Destroy(n.Left, listener)
	Destroy(n.Right, listener)
}

// Walk visits every node of the tree in preorder (node, then left, then
// right) — the traversal order spec.md §4.3/§4.4 use throughout.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	if !n.IsLeaf() {
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	}
}

// Dump writes a human-readable tree summary, grounded on vigilantbsp's
// mylogger.go slot-based diagnostic dump style (EQLOG(LOG_LB2) in the
// original prints the same shape via operator<<).
func Dump(w io.Writer, n *Node) {
	dump(w, n, 0)
}

func dump(w io.Writer, n *Node, depth int) {
	if n == nil {
		return
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	if n.IsLeaf() {
		fmt.Fprintf(w, "%sleaf mode=%s time=%.3f usage=%.3f vp=%+v range=%+v\n",
			indent, n.SplitMode, n.Time, n.Usage, n.Viewport, n.Range)
		return
	}
	fmt.Fprintf(w, "%snode mode=%s time=%.3f usage=%.3f vp=%+v range=%+v\n",
		indent, n.SplitMode, n.Time, n.Usage, n.Viewport, n.Range)
	dump(w, n.Left, depth+1)
	dump(w, n.Right, depth+1)
}
