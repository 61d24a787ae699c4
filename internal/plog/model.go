// Package plog decodes profiler logs into an immutable model of frames,
// attributed call trees and per-node statistics, and answers range queries
// over it.
package plog

import (
	"time"

	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/metrics"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

// SectionID indexes the coarse per-frame section timings.
type SectionID int

const (
	SectionUnspecified SectionID = iota
	SectionProfiler
	SectionMemory
	SectionLoading
	SectionGame
	SectionRendering
	SectionPhysics
	SectionCollision
	SectionAnimation
	SectionSound
	SectionEngine
	SectionEffects
	SectionPathing
	SectionGC
)

var sectionNames = []string{
	"unspecified", "profiler", "memory", "loading", "game", "rendering", "physics",
	"collision", "animation", "sound", "engine", "effects", "pathing", "gc",
}

func (s SectionID) String() string {
	if s >= 0 && int(s) < len(sectionNames) {
		return sectionNames[s]
	}
	return "unknown"
}

// MarkerKind classifies out-of-band annotations. Kinds this package does not
// know are kept numerically.
type MarkerKind uint32

const (
	MarkerUser MarkerKind = iota
	MarkerFocusGained
	MarkerFocusLost
	MarkerTracesFlushed
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerUser:
		return "user"
	case MarkerFocusGained:
		return "focus_gained"
	case MarkerFocusLost:
		return "focus_lost"
	case MarkerTracesFlushed:
		return "traces_flushed"
	default:
		return "unknown"
	}
}

// Marker is an annotation recorded while a frame was open.
type Marker struct {
	Kind      MarkerKind       `json:"kind"`
	ThreadID  uint8            `json:"thread_id"`
	UserValue uint32           `json:"user_value"`
	LabelID   nametable.NodeID `json:"label_id,omitempty"`
	Label     string           `json:"label,omitempty"`
	// Timestamp is in microseconds since the start of the log.
	Timestamp int64 `json:"timestamp"`
}

// Frame is one profiling tick.
type Frame struct {
	Index int `json:"index"`
	// StartTime and EndTime are in microseconds since the start of the log.
	StartTime int64    `json:"start_time"`
	EndTime   int64    `json:"end_time"`
	Sections  []uint32 `json:"sections,omitempty"`

	// Calls holds the frame's records in pre-order. Calls[0] is a sentinel
	// at depth 0 and carries no data.
	Calls    []calltree.CallRecord `json:"-"`
	MaxDepth int32                 `json:"max_depth"`
	Markers  []Marker              `json:"markers,omitempty"`

	Threads []calltree.Thread `json:"threads"`
	// MainThread indexes Threads, or is -1.
	MainThread int `json:"main_thread"`
	// NetTime is the summed thread time after idle and GC lifting.
	NetTime uint64 `json:"net_time"`
	// Clamped counts time subtractions that saturated at zero.
	Clamped int `json:"clamped"`
}

// Duration is the wall time between the end of the previous frame and the end
// of this one.
func (f *Frame) Duration() time.Duration {
	return timeutil.MicrosToDuration(f.EndTime - f.StartTime)
}

func (f *Frame) TimeMS() float64 {
	return timeutil.MicrosToMS(f.EndTime - f.StartTime)
}

func (f *Frame) StartTimeMS() float64 {
	return timeutil.MicrosToMS(f.StartTime)
}

func (f *Frame) EndTimeMS() float64 {
	return timeutil.MicrosToMS(f.EndTime)
}

func (f *Frame) NetTimeMS() float64 {
	return timeutil.RawToMS(int64(f.NetTime))
}

// CallCount is the number of records, excluding the sentinel.
func (f *Frame) CallCount() int {
	return max(len(f.Calls)-1, 0)
}

// Section returns the raw time of a section, or 0 when the frame carried
// fewer sections.
func (f *Frame) Section(id SectionID) uint32 {
	if id < 0 || int(id) >= len(f.Sections) {
		return 0
	}
	return f.Sections[id]
}

func (f *Frame) HasChildren(i int) bool {
	return calltree.HasChildren(f.Calls, i)
}

func (f *Frame) ChildIndexes(i int) []int {
	return calltree.ChildIndexes(f.Calls, i)
}

// NodeIndex returns the index of the first record with id in [start, end),
// or -1. A negative end searches to the end of the frame.
func (f *Frame) NodeIndex(id nametable.NodeID, start, end int) int {
	if end < 0 {
		end = len(f.Calls)
	}
	return calltree.NodeIndex(f.Calls, id, start, end)
}

// Main returns the thread running the game update, if any.
func (f *Frame) Main() *calltree.Thread {
	if f.MainThread < 0 || f.MainThread >= len(f.Threads) {
		return nil
	}
	return &f.Threads[f.MainThread]
}

// ThreadOf returns the thread owning the record at index, if any.
func (f *Frame) ThreadOf(index int) *calltree.Thread {
	for i := range f.Threads {
		if f.Threads[i].ContainsNode(index) {
			return &f.Threads[i]
		}
	}
	return nil
}

// ThreadByName returns the first thread with the given name, if any.
func (f *Frame) ThreadByName(name string) *calltree.Thread {
	for i := range f.Threads {
		if f.Threads[i].Name == name {
			return &f.Threads[i]
		}
	}
	return nil
}

func (f *Frame) HasMarker(kind MarkerKind) bool {
	for _, m := range f.Markers {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// Log is a decoded plog. It is immutable once returned by Load.
type Log struct {
	Version byte `json:"version"`
	// CostPerCall is the profiler's own overhead per call in seconds.
	CostPerCall float64 `json:"cost_per_call"`
	// StartTime is the absolute timestamp, in microseconds, all frame times
	// are relative to.
	StartTime int64 `json:"start_time"`

	Names     *nametable.Table    `json:"-"`
	WellKnown *calltree.WellKnown `json:"-"`
	Frames    []*Frame            `json:"-"`
	Network   NetworkSummary      `json:"network"`
	// NodeStats covers every frame of the log, ordered by node id.
	NodeStats  []metrics.NodeStats `json:"-"`
	TotalNodes int                 `json:"total_nodes"`

	nodeLookup map[nametable.NodeID]int
	networkIDs nametable.IDSet
	workers    int
}

// Duration is the time covered by all frames.
func (l *Log) Duration() time.Duration {
	if len(l.Frames) == 0 {
		return 0
	}
	return timeutil.MicrosToDuration(l.Frames[len(l.Frames)-1].EndTime)
}

// Node returns the whole-log statistics of id.
func (l *Log) Node(id nametable.NodeID) (metrics.NodeStats, bool) {
	i, ok := l.nodeLookup[id]
	if !ok {
		return metrics.NodeStats{}, false
	}
	return l.NodeStats[i], true
}

// NodeByName returns the whole-log statistics of the node called name.
func (l *Log) NodeByName(name string) (metrics.NodeStats, bool) {
	id := l.Names.ID(name)
	if id == nametable.NoNode {
		return metrics.NodeStats{}, false
	}
	return l.Node(id)
}

// PeakNode returns the statistics of the record with the largest exclusive
// time in frame f, as a single-record NodeStats.
func (l *Log) PeakNode(f *Frame) (metrics.NodeStats, bool) {
	i := calltree.PeakIndex(f.Calls)
	if i < 0 {
		return metrics.NodeStats{}, false
	}
	r := f.Calls[i]
	return metrics.NewNodeStats(r.ID, l.Names.NameOrID(r.ID), metrics.Accumulator{
		NodeCount:          1,
		CallCount:          uint64(r.CallCount),
		TotalTime:          uint64(r.Time),
		TotalExclusiveTime: uint64(r.ExclusiveTime),
		FrameCount:         1,
		PeakAvgTime:        float64(r.ExclusiveTime) / float64(max(r.CallCount, 1)),
		PeakTime:           r.ExclusiveTime,
	}), true
}
