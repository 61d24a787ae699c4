package plog

import (
	"fmt"

	"github.com/NS2CDT/PerfAnalyzer/internal/nodetree"
	"github.com/NS2CDT/PerfAnalyzer/internal/speedscope"
)

// CallTrees returns the call tree of every thread of f, in thread order.
// With merge set, sibling records of the same node are folded together.
func (l *Log) CallTrees(f *Frame, merge bool) []*nodetree.Node {
	trees := make([]*nodetree.Node, 0, len(f.Threads))
	for _, t := range f.Threads {
		root := nodetree.FromThread(f.Calls, t, l.Names)
		if root == nil {
			continue
		}
		if merge {
			root.MergeSiblings()
		}
		trees = append(trees, root)
	}
	return trees
}

func (l *Log) speedscopeThreads(f *Frame) []speedscope.Thread {
	threads := make([]speedscope.Thread, 0, len(f.Threads))
	for i, t := range f.Threads {
		threads = append(threads, speedscope.Thread{
			Name:   t.Name,
			IsMain: i == f.MainThread,
			Root:   nodetree.FromThread(f.Calls, t, l.Names),
		})
	}
	return threads
}

// Speedscope exports the threads of f as sampled profiles weighted by
// exclusive time.
func (l *Log) Speedscope(f *Frame) speedscope.Output {
	return speedscope.NewOutput(fmt.Sprintf("frame %d", f.Index), l.speedscopeThreads(f))
}

// SpeedscopeEvented exports the threads of f as evented profiles, which keep
// the order of calls.
func (l *Log) SpeedscopeEvented(f *Frame) speedscope.EventedOutput {
	return speedscope.NewEventedOutput(fmt.Sprintf("frame %d", f.Index), l.speedscopeThreads(f))
}
