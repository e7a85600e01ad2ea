// Package equalizer is the pre-frame driver (spec.md §4.5, C6): the entry
// point invoked once per frame, wiring together the split tree (C1),
// measurement history (C2), statistics reducer (C3), target-time assignment
// (C4) and split solver (C5).
//
// The Unbuilt/Measuring/Frozen state machine and its single atomic liveness
// gate are grounded on the teacher's internal/app.Runtime: there, a single
// process-level atomic.Bool (nodeUp) gates whether per-frame subsystems
// (SWIM, anti-entropy, reporter) do their work, flipped by
// QuiesceForLeave/StartAll; here the same shape gates one instance's
// planning work, flipped by SetFrozen, and the "subsystems" being
// started/stopped are the tree build and history reset rather than gossip
// loops.
package equalizer

import (
	"sync"
	"sync/atomic"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/history"
	"github.com/vlequalizer/loadeq/internal/lbconfig"
	"github.com/vlequalizer/loadeq/internal/logx"
	"github.com/vlequalizer/loadeq/internal/render"
	"github.com/vlequalizer/loadeq/internal/split"
	"github.com/vlequalizer/loadeq/internal/stats"
	"github.com/vlequalizer/loadeq/internal/target"
	"github.com/vlequalizer/loadeq/internal/tree"
)

// State is the C6 state machine of spec.md §4.5.
type State int

const (
	Unbuilt State = iota
	Measuring
	Frozen
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "Unbuilt"
	case Measuring:
		return "Measuring"
	case Frozen:
		return "Frozen"
	}
	return "Unknown"
}

// Equalizer is one load-equalizer instance bound to one root compound.
// notifyUpdatePre is not reentrant and must be called from a single driver
// context (spec.md §5); notifyLoadData may be called concurrently from the
// rendering pipeline and only ever touches the mutex-protected History.
type Equalizer struct {
	cfg lbconfig.Config
	log *logx.Logger

	mu    sync.Mutex // guards state/root; serialises notifyUpdatePre against Destroy
	state State
	root  *tree.Node

	history *history.History
	frozen  atomic.Bool
}

// New constructs an Equalizer in the Unbuilt state. The tree is built lazily
// on the first notifyUpdatePre, per spec.md §4.1.
func New(cfg lbconfig.Config, log *logx.Logger) *Equalizer {
	e := &Equalizer{cfg: cfg, log: log, history: history.New()}
	e.frozen.Store(cfg.Frozen)
	if cfg.Frozen {
		log.MuteInfo()
	}
	return e
}

// SetFrozen toggles the Frozen state at runtime (spec.md §6 "frozen" option).
func (e *Equalizer) SetFrozen(frozen bool) {
	e.frozen.Store(frozen)
	if frozen {
		e.log.MuteInfo()
	} else {
		e.log.UnmuteInfo()
	}
}

// State reports the current lifecycle state.
func (e *Equalizer) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// NotifyUpdatePre is C6's entry point, run once per frame before rendering
// (spec.md §4.2 step 1-5, §4.5). root's children are read only on the first
// call, to build the tree.
func (e *Equalizer) NotifyUpdatePre(rootChildren []render.Compound, running bool, frameNumber uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Unbuilt {
		root, err := tree.Build(rootChildren, e.cfg.Mode, listenerFor(e))
		if err != nil {
			return err
		}
		if err := target.ValidateUsage(root); err != nil {
			return err
		}
		e.root = root
		e.state = Measuring
	}

	usable := e.history.CheckHistory()

	if e.frozen.Load() {
		e.state = Frozen
		return nil
	}
	e.state = Measuring

	if !running {
		return nil
	}

	frame := e.history.PushNewFrame(frameNumber)

	res := target.Assign(e.root, usable, target.Params{
		Damping:    e.cfg.Damping,
		Boundary2i: e.cfg.Boundary2i,
		Boundaryf:  e.cfg.Boundaryf,
	})
	if res.Anomalies > 0 {
		e.log.Warnf("leftover reached %d zero-usage subtree(s) and was not assigned there", res.Anomalies)
	}

	rootPvp := rootPixelViewport(e.root)
	sorted := split.PrepareSortedData(usable)
	split.Compute(e.root, sorted, geom.FullViewport, geom.FullRange, frame, rootPvp)

	return nil
}

// NotifyLoadData is C3's entry point (spec.md §4.2): fold incoming
// statistics into the matching history record. May run on a different
// goroutine than NotifyUpdatePre; touches only the mutex-protected history.
func (e *Equalizer) NotifyLoadData(channel render.Channel, frameNumber uint32, statList []render.Statistic) {
	stats.Reduce(e.history, channel, frameNumber, statList, e.cfg.MatchByTaskID)
}

// Destroy tears down the tree, deregisters listeners and clears history
// (spec.md §4.5 terminal transition).
func (e *Equalizer) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.root != nil {
		tree.Destroy(e.root, listenerFor(e))
		e.root = nil
	}
	e.history.Reset()
	e.state = Unbuilt
}

// Root returns the current split tree, for diagnostics (see tree.Dump).
func (e *Equalizer) Root() *tree.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// rootPixelViewport returns the root node's aggregated pixel size — the
// §4.4 "rootPixelViewport" denominator boundary2i is normalised against.
// target.Assign's aggregate step has already folded every leaf's channel
// pixel size up to the root by the time this runs.
func rootPixelViewport(root *tree.Node) geom.Size2i {
	if root == nil {
		return geom.Size2i{}
	}
	return root.MaxSize
}

// listenerFor adapts Equalizer to render.Listener so tree.Build/Destroy can
// register/deregister it on each leaf's channel (spec.md §4.1 "Listening").
func listenerFor(e *Equalizer) render.Listener { return (*equalizerListener)(e) }

type equalizerListener Equalizer

func (l *equalizerListener) NotifyLoadData(channel render.Channel, frameNumber uint32, stats []render.Statistic) {
	(*Equalizer)(l).NotifyLoadData(channel, frameNumber, stats)
}
