package plog

import (
	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/rangeutil"
)

// FrameEpsilonMS is the tolerance used when matching frame end times.
const FrameEpsilonMS = 0.001

// AllFrames returns a window over every frame.
func (l *Log) AllFrames() rangeutil.Window[*Frame] {
	return rangeutil.NewWindow(l.Frames, 0, len(l.Frames))
}

// FrameWindow returns the frames [start, end), clamped to the log.
func (l *Log) FrameWindow(start, end int) rangeutil.Window[*Frame] {
	start, end = l.clampRange(start, end)
	return rangeutil.Between(l.Frames, start, end)
}

// FramesInRange returns the frames whose end time lies in
// [startMS-FrameEpsilonMS, endMS+FrameEpsilonMS].
func (l *Log) FramesInRange(startMS, endMS float64) rangeutil.Window[*Frame] {
	key := (*Frame).EndTimeMS
	start := rangeutil.Abs(rangeutil.SearchFloat(l.Frames, startMS, FrameEpsilonMS, key))
	end := rangeutil.Abs(rangeutil.SearchFloat(l.Frames, endMS, FrameEpsilonMS, key))
	// Frames may share an end time and the search lands on any of them.
	for start > 0 && l.Frames[start-1].EndTimeMS() >= startMS-FrameEpsilonMS {
		start--
	}
	for end < len(l.Frames) && l.Frames[end].EndTimeMS() <= endMS+FrameEpsilonMS {
		end++
	}
	return rangeutil.Between(l.Frames, start, end)
}

// NodeTimeSeries returns, for every frame in frames, the summed exclusive
// time of all records of id. Frames without the node yield 0.
func (l *Log) NodeTimeSeries(id nametable.NodeID, frames rangeutil.Window[*Frame]) []uint64 {
	series := make([]uint64, frames.Len())
	for i, f := range frames.Slice() {
		for j := 1; j < len(f.Calls); j++ {
			if f.Calls[j].ID == id {
				series[i] += uint64(f.Calls[j].ExclusiveTime)
			}
		}
	}
	return series
}

// NodeFrameEntry describes a node's cost in one frame.
type NodeFrameEntry struct {
	FrameIndex    int    `json:"frame_index"`
	ExclusiveTime uint64 `json:"exclusive_time"`
	Time          uint64 `json:"time"`
	CallCount     uint64 `json:"call_count"`
	// Percent is the exclusive time as a fraction of the time of the
	// threads the node ran in.
	Percent float64 `json:"percent"`
}

// NodeFrameStats returns one entry per frame in which id occurs. Duplicate
// records within a frame are summed. When threadName is not empty only
// records of threads with that name are considered.
func (l *Log) NodeFrameStats(id nametable.NodeID, frames rangeutil.Window[*Frame], threadName string) []NodeFrameEntry {
	var entries []NodeFrameEntry
	for _, f := range frames.Slice() {
		entry := NodeFrameEntry{FrameIndex: f.Index}
		var threadTime uint64
		var lastThread *calltree.Thread
		found := false

		for j := 1; j < len(f.Calls); j++ {
			r := f.Calls[j]
			if r.ID != id {
				continue
			}
			t := f.ThreadOf(j)
			if threadName != "" && (t == nil || t.Name != threadName) {
				continue
			}
			found = true
			entry.ExclusiveTime += uint64(r.ExclusiveTime)
			entry.Time += uint64(r.Time)
			entry.CallCount += uint64(r.CallCount)
			if t != nil && t != lastThread {
				threadTime += uint64(t.Time)
				lastThread = t
			}
		}
		if !found {
			continue
		}
		if threadTime > 0 {
			entry.Percent = float64(entry.ExclusiveTime) / float64(threadTime)
		}
		entries = append(entries, entry)
	}
	return entries
}

// FramesWithMarker returns the frames carrying at least one marker of kind.
func (l *Log) FramesWithMarker(kind MarkerKind) []*Frame {
	var frames []*Frame
	for _, f := range l.Frames {
		if f.HasMarker(kind) {
			frames = append(frames, f)
		}
	}
	return frames
}
