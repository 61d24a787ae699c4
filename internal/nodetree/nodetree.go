// Package nodetree materializes the flat, pre-order call records of a frame
// into linked call trees for export.
package nodetree

import (
	"hash"
	"hash/fnv"

	"github.com/NS2CDT/PerfAnalyzer/internal/calltree"
	"github.com/NS2CDT/PerfAnalyzer/internal/nametable"
	"github.com/NS2CDT/PerfAnalyzer/internal/timeutil"
)

type (
	Node struct {
		ID          nametable.NodeID `json:"id"`
		Name        string           `json:"name"`
		Fingerprint uint64           `json:"fingerprint"`
		// Index is the position of the first record folded into the node.
		Index      int     `json:"index"`
		CallCount  uint32  `json:"call_count"`
		DurationNS uint64  `json:"duration_ns"`
		SelfTimeNS uint64  `json:"self_time_ns"`
		StartNS    uint64  `json:"-"`
		EndNS      uint64  `json:"-"`
		Children   []*Node `json:"children,omitempty"`

		depth int32
		next  uint64
	}

	// Function is the self time of one node summed over a tree.
	Function struct {
		ID            nametable.NodeID `json:"id"`
		Name          string           `json:"name"`
		CallCount     uint64           `json:"call_count"`
		SelfTimesNS   []uint64         `json:"self_times_ns"`
		SumSelfTimeNS uint64           `json:"sum_self_time_ns"`
	}
)

// NodeFromRecord returns a leaf for the record at index, starting at start.
func NodeFromRecord(r calltree.CallRecord, name string, index int, start uint64) *Node {
	n := Node{
		ID:         r.ID,
		Name:       name,
		Index:      index,
		CallCount:  r.CallCount,
		DurationNS: timeutil.RawToNS(int64(r.Time)),
		SelfTimeNS: timeutil.RawToNS(int64(r.ExclusiveTime)),
		StartNS:    start,
		depth:      r.Depth,
		next:       start,
	}
	n.EndNS = n.StartNS + n.DurationNS
	return &n
}

func (n *Node) WriteToHash(h hash.Hash) {
	if n.Name == "" {
		h.Write([]byte("-"))
	} else {
		h.Write([]byte(n.Name))
	}
}

// FromRecords builds the trees of calls[start:end]. Records at the shallowest
// depth become roots. Records carry no timestamps, so children are laid out
// one after another from their parent's start.
func FromRecords(calls []calltree.CallRecord, start, end int, names *nametable.Table) []*Node {
	start = max(start, 0)
	end = min(end, len(calls))

	var roots []*Node
	var stack []*Node
	h := fnv.New64a()

	for i := start; i < end; i++ {
		r := calls[i]
		for len(stack) > 0 && stack[len(stack)-1].depth >= r.Depth {
			stack = stack[:len(stack)-1]
		}

		var at uint64
		if len(stack) > 0 {
			at = stack[len(stack)-1].next
		} else if len(roots) > 0 {
			at = roots[len(roots)-1].EndNS
		}
		n := NodeFromRecord(r, names.NameOrID(r.ID), i, at)

		h.Reset()
		for _, a := range stack {
			a.WriteToHash(h)
		}
		n.WriteToHash(h)
		n.Fingerprint = h.Sum64()

		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
			parent.next = n.EndNS
		} else {
			roots = append(roots, n)
		}
		stack = append(stack, n)
	}
	return roots
}

// FromThread builds the tree rooted at the Thread record of t. Trailing
// records at the thread's own depth are not part of it.
func FromThread(calls []calltree.CallRecord, t calltree.Thread, names *nametable.Table) *Node {
	roots := FromRecords(calls, t.StartIndex, t.EndIndex(), names)
	if len(roots) == 0 {
		return nil
	}
	return roots[0]
}

// MergeSiblings folds children with the same id into one node, summing their
// counts and times, and lays the tree out again.
func (n *Node) MergeSiblings() {
	n.merge()
	n.layout(n.StartNS)
}

func (n *Node) merge() {
	if len(n.Children) > 1 {
		byID := make(map[nametable.NodeID]*Node, len(n.Children))
		children := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			m, ok := byID[c.ID]
			if !ok {
				byID[c.ID] = c
				children = append(children, c)
				continue
			}
			m.CallCount += c.CallCount
			m.DurationNS += c.DurationNS
			m.SelfTimeNS += c.SelfTimeNS
			m.Children = append(m.Children, c.Children...)
		}
		n.Children = children
	}
	for _, c := range n.Children {
		c.merge()
	}
}

func (n *Node) layout(start uint64) {
	n.StartNS = start
	n.EndNS = start + n.DurationNS
	next := start
	for _, c := range n.Children {
		c.layout(next)
		next = c.EndNS
	}
}

// CollectFunctions adds the self time of every node of the tree to results.
func (n *Node) CollectFunctions(results map[nametable.NodeID]Function) {
	for _, c := range n.Children {
		c.CollectFunctions(results)
	}
	f, ok := results[n.ID]
	if !ok {
		f = Function{ID: n.ID, Name: n.Name}
	}
	f.CallCount += uint64(n.CallCount)
	if n.SelfTimeNS > 0 {
		f.SelfTimesNS = append(f.SelfTimesNS, n.SelfTimeNS)
		f.SumSelfTimeNS += n.SelfTimeNS
	}
	results[n.ID] = f
}
