// Package stats is the statistics reducer (spec.md §4.2, C3): it folds the
// raw per-frame Statistic stream the rendering pipeline delivers via
// notifyLoadData into the matching history.Observation.
//
// The fold (find-by-key, only update if something relevant was found, leave
// untouched otherwise) is grounded on the teacher's
// internal/antientropy/store.go Store.UpsertBatch, generalised from "upsert a
// per-node stats row keyed by node id" to "fold a statistic batch into the
// observation keyed by channel".
package stats

import (
	"math"

	"github.com/vlequalizer/loadeq/internal/history"
	"github.com/vlequalizer/loadeq/internal/render"
)

// Reduce folds stats for frameNumber/channel into h, per spec.md §4.2's
// notifyLoadData algorithm. It is the whole of the statistics reducer; the
// equalizer calls it directly under history's lock via History.WithFrame.
//
// matchByTaskID switches the observation lookup from channel identity to
// taskId (spec.md §9's documented channel-reuse workaround); statList's
// entries are always filtered down to their own taskId either way.
func Reduce(h *history.History, channel render.Channel, frameNumber uint32, statList []render.Statistic, matchByTaskID bool) {
	h.WithFrame(frameNumber, func(rec *history.FrameRecord) {
		reduceOne(rec, channel, statList, matchByTaskID)
	})
}

func reduceOne(rec *history.FrameRecord, channel render.Channel, statList []render.Statistic, matchByTaskID bool) {
	var obs *history.Observation
	if matchByTaskID {
		if len(statList) == 0 {
			return
		}
		obs = rec.Find(statList[0].Task)
	} else {
		obs = rec.FindByChannel(channel)
	}
	if obs == nil {
		return
	}
	if obs.NoRender() {
		// "will not render" entry — leave untouched.
		return
	}

	var (
		startTime    int64 = math.MaxInt64
		endTime      int64
		timeTransmit int64
		sawAny       bool
	)

	for _, st := range statList {
		if st.Task != obs.TaskID {
			continue
		}
		switch st.Type {
		case render.ChannelClear, render.ChannelDraw, render.ChannelReadback:
			if st.StartTime < startTime {
				startTime = st.StartTime
			}
			if st.EndTime > endTime {
				endTime = st.EndTime
			}
			sawAny = true
		case render.ChannelFrameTransmit:
			timeTransmit += st.EndTime - st.StartTime
			sawAny = true
		case render.ChannelAssemble:
			// Downstream work belongs to a parent — stop scanning.
			goto done
		}
	}
done:
	if !sawAny {
		return
	}

	elapsed := endTime - startTime
	measured := elapsed
	if timeTransmit > measured {
		measured = timeTransmit
	}
	if measured < 1 {
		measured = 1
	}

	obs.Time = history.Measured(measured)
	if obs.UsesRange() {
		obs.Load = float64(measured) / obs.Range.Length()
	} else {
		obs.Load = float64(measured) / obs.Viewport.Area()
	}
}
