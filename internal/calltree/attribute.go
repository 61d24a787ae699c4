package calltree

import "github.com/NS2CDT/PerfAnalyzer/internal/nametable"

// Result is the outcome of attributing one frame.
type Result struct {
	Threads []Thread
	// MainThread indexes Threads, or is -1 when no thread runs a game update.
	MainThread int
	// NetTime is the summed time of all threads after lifting.
	NetTime uint64
	// Clamped counts subtractions that would have gone below zero.
	Clamped int
}

func (r *Result) clampSub(v *uint32, d uint32) {
	if d > *v {
		*v = 0
		r.Clamped++
		return
	}
	*v -= d
}

// Attribute computes the exclusive time of every record in calls, splits the
// records into threads and lifts idle and GC time out of ancestor totals.
// calls[0] is a sentinel at depth 0 and is never attributed. Records that
// precede the first Thread record belong to no thread and keep an exclusive
// time of zero.
//
// A lifted record's time is removed from the inclusive time of every
// ancestor up to the root and from the exclusive time of its direct parent,
// on top of the parent's ordinary child subtraction. Ancestors above the
// parent already exclude the whole subtree from their exclusive time.
func Attribute(calls []CallRecord, wk *WellKnown, names *nametable.Table) (Result, error) {
	res := Result{MainThread: -1}
	if len(calls) <= 1 {
		return res, nil
	}

	var maxDepth int32
	for i := 1; i < len(calls); i++ {
		maxDepth = max(maxDepth, calls[i].Depth)
	}
	depthToParent := make([]int, maxDepth+1)

	var prevDepth int32
	parent := 0
	current := -1

	for i := 1; i < len(calls); i++ {
		rec := &calls[i]
		depth := rec.Depth

		switch {
		case depth > prevDepth:
			if calls[i-1].Depth != depth-1 {
				return Result{}, &StructureError{Index: i, Depth: int(depth), ParentDepth: int(calls[i-1].Depth)}
			}
			parent = i - 1
			depthToParent[depth] = parent
		case depth < prevDepth:
			parent = depthToParent[depth]
		}
		if depth == 0 {
			parent = i
		}
		prevDepth = depth

		if rec.ID == wk.Thread {
			if current >= 0 {
				res.Threads[current].NodeCount = i - res.Threads[current].StartIndex
			}
			res.Threads = append(res.Threads, newThread(calls, i, wk, names))
			current = len(res.Threads) - 1
			if res.Threads[current].Flags.Has(FlagMainThread) {
				res.MainThread = current
			}
		} else if current < 0 {
			continue
		}
		thread := &res.Threads[current]

		rec.ExclusiveTime = rec.Time

		switch {
		case wk.IsIdle(rec.ID):
			thread.addIdle(rec)
			res.lift(calls, depthToParent, i)
		case rec.ID == wk.GCStep && thread.ID != wk.GCThread:
			thread.addGC(rec)
			res.lift(calls, depthToParent, i)
		case wk.IsWait(rec.ID):
			thread.Flags |= FlagWaiting
		}

		if parent != i && parent != 0 {
			res.clampSub(&calls[parent].ExclusiveTime, rec.Time)
		}
	}

	if current >= 0 {
		res.Threads[current].NodeCount = len(calls) - res.Threads[current].StartIndex
	}

	// Lifting through an ancestor shorter than the lifted record can leave
	// its exclusive time above its time.
	for i := 1; i < len(calls); i++ {
		if calls[i].ExclusiveTime > calls[i].Time {
			calls[i].ExclusiveTime = calls[i].Time
			res.Clamped++
		}
	}
	for i := range res.Threads {
		t := &res.Threads[i]
		t.Time = calls[t.StartIndex].Time
		res.NetTime += uint64(t.Time)
	}
	return res, nil
}

// lift removes the time of the record at i from the time of every ancestor
// and from the exclusive time of its parent.
func (r *Result) lift(calls []CallRecord, depthToParent []int, i int) {
	t := calls[i].Time
	depth := calls[i].Depth
	for d := depth; d >= 1; d-- {
		j := depthToParent[d]
		if j == 0 {
			continue
		}
		r.clampSub(&calls[j].Time, t)
		if d == depth {
			r.clampSub(&calls[j].ExclusiveTime, t)
		}
	}
}
