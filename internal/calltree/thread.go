package calltree

import (
	"strings"

	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

type ThreadFlag uint8

const (
	FlagGCStep ThreadFlag = 1 << iota
	FlagWaiting
	FlagIdle
	FlagMainThread
)

var flagNames = []string{"gc_step", "waiting", "idle", "main_thread"}

func (f ThreadFlag) Has(flag ThreadFlag) bool {
	return f&flag == flag
}

func (f ThreadFlag) String() string {
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Thread is a profiler thread: the contiguous run of records starting at a
// Thread record and ending before the next one.
type Thread struct {
	// ID and Name identify the thread's entry node.
	ID    nametable.NodeID `json:"id"`
	Name  string           `json:"name"`
	Flags ThreadFlag       `json:"flags"`

	// Time is the Thread record's time after idle and GC lifting.
	Time      uint32 `json:"time"`
	IdleTime  uint64 `json:"idle_time"`
	IdleCount uint32 `json:"idle_count"`
	GCTime    uint64 `json:"gc_time"`
	GCCount   uint32 `json:"gc_count"`

	StartIndex int `json:"start_index"`
	EntryIndex int `json:"entry_index"`
	NodeCount  int `json:"node_count"`
}

func (t *Thread) EndIndex() int {
	return t.StartIndex + t.NodeCount
}

// ContainsNode reports whether the record at index belongs to the thread.
func (t *Thread) ContainsNode(index int) bool {
	return index >= t.StartIndex && index < t.EndIndex()
}

func (t *Thread) TimeMS() float64 {
	return timeutil.RawToMS(int64(t.Time))
}

func (t *Thread) IdleTimeMS() float64 {
	return timeutil.RawToMS(int64(t.IdleTime))
}

func (t *Thread) GCTimeMS() float64 {
	return timeutil.RawToMS(int64(t.GCTime))
}

// Records returns the thread's slice of calls.
func (t *Thread) Records(calls []CallRecord) []CallRecord {
	return calls[t.StartIndex:t.EndIndex()]
}

// NodeIndex returns the index of the first record of the thread with the
// given id, or -1.
func (t *Thread) NodeIndex(calls []CallRecord, id nametable.NodeID) int {
	return NodeIndex(calls, id, t.StartIndex, t.EndIndex())
}

// ChildTime sums the time of the thread's direct children.
func (t *Thread) ChildTime(calls []CallRecord) uint64 {
	var total uint64
	for _, i := range ChildIndexes(calls, t.StartIndex) {
		total += uint64(calls[i].Time)
	}
	return total
}

func (t *Thread) addIdle(r *CallRecord) {
	t.IdleTime += uint64(r.Time)
	t.IdleCount += r.CallCount
	t.Flags |= FlagIdle
}

func (t *Thread) addGC(r *CallRecord) {
	t.GCTime += uint64(r.Time)
	t.GCCount += r.CallCount
	t.Flags |= FlagGCStep
}

// newThread opens a thread at the Thread record start. The entry node is the
// first direct child that is not a heap allocator call, the first child when
// all of them are, or the Thread record itself when it has no children.
func newThread(calls []CallRecord, start int, wk *WellKnown, names *nametable.Table) Thread {
	depth := calls[start].Depth
	entry := start
	if HasChildren(calls, start) {
		entry = start + 1
		if wk.IsHeap(calls[entry].ID) {
			for j := start + 1; j < len(calls) && calls[j].Depth > depth; j++ {
				if calls[j].Depth == depth+1 && !wk.IsHeap(calls[j].ID) {
					entry = j
					break
				}
			}
		}
	}

	t := Thread{
		ID:         calls[entry].ID,
		StartIndex: start,
		EntryIndex: entry,
	}
	if names != nil {
		t.Name = names.NameOrID(t.ID)
	}
	if wk.IsMainEntry(t.ID) {
		t.Flags |= FlagMainThread
	}
	return t
}
