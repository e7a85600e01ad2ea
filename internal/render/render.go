// Package render defines the external collaborator surface the equalizer
// core consumes: the compound tree, its channels, and the statistic stream
// produced by the rendering pipeline. None of these are implemented here —
// per spec.md §1 the compound tree, its traversal driver, and the transport
// that carries statistics are deliberately out of scope. cmd/equalizer-demo
// provides a toy implementation for demonstration and the test suites use
// small fakes.
package render

import "github.com/vlequalizer/loadeq/internal/geom"

// Channel is the GPU/output surface that actually draws a Compound's
// viewport. Identity is compared with ==, matching spec.md §9's "matches by
// channel identity" default behaviour.
type Channel interface {
	Name() string
	PixelViewport() geom.Size2i
	AddListener(l Listener)
	RemoveListener(l Listener)
}

// Listener receives per-frame statistics for a Channel. The equalizer
// registers itself as a Listener on every leaf's channel when the split tree
// is built (see tree.Build).
type Listener interface {
	NotifyLoadData(channel Channel, frameNumber uint32, stats []Statistic)
}

// Compound is one node of the externally-owned rendering tree.
type Compound interface {
	Children() []Compound
	IsRunning() bool
	Usage() float64
	TaskID() uint32
	Channel() Channel
	SetViewport(v geom.Viewport)
	SetRange(r geom.Range)
}

// StatType enumerates the statistic kinds notifyLoadData folds over, per
// spec.md §4.2 and §6.
type StatType int

const (
	ChannelClear StatType = iota
	ChannelDraw
	ChannelReadback
	ChannelAssemble
	ChannelFrameTransmit
)

// Statistic is one timing record from the rendering pipeline's statistic
// stream for a single frame.
type Statistic struct {
	Task      uint32
	Type      StatType
	StartTime int64
	EndTime   int64
}
