package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlequalizer/loadeq/internal/geom"
	"github.com/vlequalizer/loadeq/internal/history"
	"github.com/vlequalizer/loadeq/internal/render"
)

type fakeChannel struct{ name string }

func (c *fakeChannel) Name() string                { return c.name }
func (c *fakeChannel) PixelViewport() geom.Size2i  { return geom.Size2i{W: 100, H: 100} }
func (c *fakeChannel) AddListener(render.Listener) {}
func (c *fakeChannel) RemoveListener(render.Listener) {}

func TestReduceComputesTimeAndLoadFor2D(t *testing.T) {
	h := history.New()
	h.PushNewFrame(1)
	ch := &fakeChannel{name: "a"}
	h.WithFrame(1, func(rec *history.FrameRecord) {
		rec.Observations = append(rec.Observations, &history.Observation{
			TaskID: 1, Channel: ch, Viewport: geom.Viewport{X: 0, Y: 0, W: 0.5, H: 1}, Range: geom.FullRange, Time: history.Pending,
		})
	})

	Reduce(h, ch, 1, []render.Statistic{
		{Task: 1, Type: render.ChannelClear, StartTime: 0, EndTime: 2},
		{Task: 1, Type: render.ChannelDraw, StartTime: 2, EndTime: 100},
	}, false)

	var obs *history.Observation
	h.WithFrame(1, func(rec *history.FrameRecord) { obs = rec.Find(1) })
	require.NotNil(t, obs)
	assert.True(t, obs.Complete())
	assert.Equal(t, int64(100), obs.Time.Value())
	assert.InDelta(t, 100.0/0.5, obs.Load, 1e-9)
}

func TestReduceComputesLoadForDBUsingRangeLength(t *testing.T) {
	h := history.New()
	h.PushNewFrame(1)
	ch := &fakeChannel{name: "a"}
	h.WithFrame(1, func(rec *history.FrameRecord) {
		rec.Observations = append(rec.Observations, &history.Observation{
			TaskID: 1, Channel: ch, Viewport: geom.FullViewport, Range: geom.Range{Start: 0, End: 0.25}, Time: history.Pending,
		})
	})

	Reduce(h, ch, 1, []render.Statistic{
		{Task: 1, Type: render.ChannelClear, StartTime: 0, EndTime: 50},
	}, false)

	var obs *history.Observation
	h.WithFrame(1, func(rec *history.FrameRecord) { obs = rec.Find(1) })
	require.NotNil(t, obs)
	assert.InDelta(t, 50.0/0.25, obs.Load, 1e-9)
}

func TestReduceLeavesNoRenderObservationUntouched(t *testing.T) {
	h := history.New()
	h.PushNewFrame(1)
	ch := &fakeChannel{name: "a"}
	h.WithFrame(1, func(rec *history.FrameRecord) {
		rec.Observations = append(rec.Observations, &history.Observation{
			TaskID: 1, Channel: ch, Viewport: geom.Viewport{}, Range: geom.FullRange, Time: history.Pending,
		})
	})

	Reduce(h, ch, 1, []render.Statistic{{Task: 1, Type: render.ChannelDraw, StartTime: 0, EndTime: 100}}, false)

	var obs *history.Observation
	h.WithFrame(1, func(rec *history.FrameRecord) { obs = rec.Find(1) })
	require.NotNil(t, obs)
	assert.False(t, obs.Complete(), "zero-area 2-D leaf must stay untouched (will not render)")
}

func TestReduceStopsAtAssemble(t *testing.T) {
	h := history.New()
	h.PushNewFrame(1)
	ch := &fakeChannel{name: "a"}
	h.WithFrame(1, func(rec *history.FrameRecord) {
		rec.Observations = append(rec.Observations, &history.Observation{
			TaskID: 1, Channel: ch, Viewport: geom.FullViewport, Range: geom.FullRange, Time: history.Pending,
		})
	})

	Reduce(h, ch, 1, []render.Statistic{
		{Task: 1, Type: render.ChannelDraw, StartTime: 0, EndTime: 10},
		{Task: 1, Type: render.ChannelAssemble, StartTime: 10, EndTime: 5000},
		{Task: 1, Type: render.ChannelFrameTransmit, StartTime: 10, EndTime: 5000},
	}, false)

	var obs *history.Observation
	h.WithFrame(1, func(rec *history.FrameRecord) { obs = rec.Find(1) })
	require.NotNil(t, obs)
	assert.Equal(t, int64(10), obs.Time.Value(), "ChannelFrameTransmit after ChannelAssemble belongs to a parent and must be ignored")
}

func TestReduceIgnoresUnknownFrame(t *testing.T) {
	h := history.New()
	ch := &fakeChannel{name: "a"}
	// No frame pushed; Reduce must simply do nothing.
	Reduce(h, ch, 1, []render.Statistic{{Task: 1, Type: render.ChannelDraw, StartTime: 0, EndTime: 10}}, false)
	assert.Equal(t, 0, h.Len())
}

func TestReduceMatchByTaskIDIgnoresChannelIdentity(t *testing.T) {
	h := history.New()
	h.PushNewFrame(1)
	// obs is bound to a different channel instance than the one Reduce is
	// called with — first-match-by-channel would miss it, match-by-taskId
	// must not.
	boundCh := &fakeChannel{name: "bound"}
	calledWithCh := &fakeChannel{name: "reused"}
	h.WithFrame(1, func(rec *history.FrameRecord) {
		rec.Observations = append(rec.Observations, &history.Observation{
			TaskID: 1, Channel: boundCh, Viewport: geom.FullViewport, Range: geom.FullRange, Time: history.Pending,
		})
	})

	Reduce(h, calledWithCh, 1, []render.Statistic{
		{Task: 1, Type: render.ChannelDraw, StartTime: 0, EndTime: 10},
	}, true)

	var obs *history.Observation
	h.WithFrame(1, func(rec *history.FrameRecord) { obs = rec.Find(1) })
	require.NotNil(t, obs)
	assert.True(t, obs.Complete())
	assert.Equal(t, int64(10), obs.Time.Value())
}
