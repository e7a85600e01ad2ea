// Package history implements the bounded, mutex-protected sliding window of
// per-frame measurements (spec.md §4.2, C2): a FIFO of frame records, the
// newest of which is the frame currently being planned for.
//
// The locking shape is adapted from the teacher's
// internal/antientropy/store.go Store: a single mutex guarding a map/slice,
// an Upsert-style writer that only accepts fresher data, and an AgeOut-style
// pruning pass — here "freshness" is "all observations measured" rather than
// "higher timestamp", and pruning runs from checkHistory instead of a TTL
// timer, per spec.md §4.2/§5.
package history

import (
	"sync"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/render"
)

// Time is a tagged option for an observation's measured render time: either
// Pending (not yet measured) or Measured(ms). spec.md §9 calls for this
// instead of the source's -1 sentinel.
type Time struct {
	measured bool
	value    int64
}

// Pending is the zero value: no measurement yet.
var Pending = Time{}

// Measured builds a Time holding a concrete measurement in milliseconds.
func Measured(ms int64) Time { return Time{measured: true, value: ms} }

// IsMeasured reports whether a real measurement was recorded.
func (t Time) IsMeasured() bool { return t.measured }

// Value returns the measured time, or -1 if Pending.
func (t Time) Value() int64 {
	if !t.measured {
		return -1
	}
	return t.value
}

// Observation is one leaf's per-frame measurement, spec.md §3.
type Observation struct {
	TaskID   uint32
	Channel  render.Channel
	Viewport geom.Viewport
	Range    geom.Range
	Time     Time
	Load     float64
}

// Complete reports whether the observation has a real measurement.
func (o *Observation) Complete() bool { return o.Time.IsMeasured() }

// UsesRange reports whether this observation belongs to a DB-split leaf
// (range-restricted) as opposed to a 2-D leaf (viewport-restricted). Per the
// leaf-case invariant (spec.md §4.4), vp == FULL XOR range == ALL for any
// leaf with actual content, so a non-full range is the DB-mode signal.
func (o *Observation) UsesRange() bool {
	return o.Range != geom.FullRange
}

// NoRender reports whether this is a "will not render" entry: zero-area
// viewport for a 2-D leaf, or empty range for a DB leaf (spec.md §4.2/§4.4).
func (o *Observation) NoRender() bool {
	if o.UsesRange() {
		return !o.Range.HasData()
	}
	return !o.Viewport.HasArea()
}

// FrameRecord is all per-leaf observations planned for one frame number.
type FrameRecord struct {
	FrameNumber  uint32
	Observations []*Observation
}

// Complete reports whether every observation in the record has time >= 0.
func (r *FrameRecord) Complete() bool {
	for _, o := range r.Observations {
		if !o.Complete() {
			return false
		}
	}
	return true
}

// Find returns the observation for taskID, or nil.
func (r *FrameRecord) Find(taskID uint32) *Observation {
	for _, o := range r.Observations {
		if o.TaskID == taskID {
			return o
		}
	}
	return nil
}

// FindByChannel returns the first observation bound to channel — first match
// wins, per spec.md §9's documented channel-reuse limitation.
func (r *FrameRecord) FindByChannel(channel render.Channel) *Observation {
	for _, o := range r.Observations {
		if o.Channel == channel {
			return o
		}
	}
	return nil
}

// History is the FIFO deque of frame records, oldest first, protected by a
// mutex because notifyUpdatePre and notifyLoadData may run on different
// goroutines (spec.md §5).
type History struct {
	mu      sync.Mutex
	records []*FrameRecord
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// PushNewFrame appends an empty record for frameNumber — the one that will
// be populated by the split solver and later filled in by the statistics
// reducer.
func (h *History) PushNewFrame(frameNumber uint32) *FrameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := &FrameRecord{FrameNumber: frameNumber}
	h.records = append(h.records, rec)
	return rec
}

// Reset clears the history (equalizer destruction, or tree rebuild).
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

// Len reports the number of retained frame records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// syntheticRecord is the degrade-gracefully base case from spec.md §4.2: a
// single fabricated observation of unit load, used when nothing has been
// measured yet.
func syntheticRecord() *FrameRecord {
	return &FrameRecord{
		FrameNumber: 0,
		Observations: []*Observation{
			{
				TaskID: 0,
				Time:   Measured(1),
				Load:   1.0,
			},
		},
	}
}

// CheckHistory scans newest-first for the usable record (the newest whose
// observations are all measured), drops everything older than it, and falls
// back to a synthetic unit-load record if history is empty or nothing is
// usable yet. It returns the usable record.
func (h *History) CheckHistory() *FrameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	usableIdx := -1
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].Complete() {
			usableIdx = i
			break
		}
	}

	if usableIdx < 0 {
		synthetic := syntheticRecord()
		h.records = []*FrameRecord{synthetic}
		return synthetic
	}

	h.records = h.records[usableIdx:]
	return h.records[0]
}

// WithFrame locates the frame record for frameNumber; callers use this
// to hand raw statistics to the reducer under the history lock, keeping the
// critical section (spec.md §5: "a linear scan of the deque") as short as a
// single lookup.
func (h *History) WithFrame(frameNumber uint32, fn func(*FrameRecord)) (found bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.FrameNumber == frameNumber {
			fn(r)
			return true
		}
	}
	return false
}
