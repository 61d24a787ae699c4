// Package nametable maps the small integer node ids of a plog to the
// profiler node names bound by NameId records.
package nametable

import (
	"fmt"
	"strings"

	"github.com/NS2CDT/PerfAnalyzer/internal/errorutil"
)

// NodeID identifies a named profiler call site. Ids are at most 20 bits wide.
type NodeID uint32

// NoNode is returned by lookups that found nothing.
const NoNode = ^NodeID(0)

// ErrDuplicateNodeID is returned when a NameId record rebinds an id.
var ErrDuplicateNodeID = fmt.Errorf("%w: node id bound twice", errorutil.ErrDataIntegrity)

// networkPrefixes are the synthetic names emitted by the network statistics
// block. They are not call sites.
var networkPrefixes = []string{"field-", "class-", "message-", "client-"}

// Table is a bidirectional id/name map. It is filled in stream order by the
// decoder and only read afterwards.
type Table struct {
	names  []string
	bound  []bool
	lookup map[string]NodeID
	count  int
}

func New() *Table {
	return &Table{lookup: make(map[string]NodeID)}
}

// Bind associates id with name. Binding an id twice is an error.
func (t *Table) Bind(id NodeID, name string) error {
	if int(id) < len(t.bound) && t.bound[id] {
		return fmt.Errorf("%w: id %d already bound to %q, rebinding to %q", ErrDuplicateNodeID, id, t.names[id], name)
	}
	if int(id) >= len(t.names) {
		n := int(id) + 1
		if c := 2 * len(t.names); c > n {
			n = c
		}
		names := make([]string, n)
		copy(names, t.names)
		bound := make([]bool, n)
		copy(bound, t.bound)
		t.names, t.bound = names, bound
	}
	t.names[id] = name
	t.bound[id] = true
	t.count++
	// The first binding of a name wins reverse lookups.
	if _, exists := t.lookup[name]; !exists {
		t.lookup[name] = id
	}
	return nil
}

// Has reports whether id is bound.
func (t *Table) Has(id NodeID) bool {
	return int(id) < len(t.bound) && t.bound[id]
}

// Name returns the name bound to id.
func (t *Table) Name(id NodeID) (string, bool) {
	if !t.Has(id) {
		return "", false
	}
	return t.names[id], true
}

// NameOrID returns the bound name or a placeholder carrying the raw id.
func (t *Table) NameOrID(id NodeID) string {
	if name, ok := t.Name(id); ok {
		return name
	}
	return fmt.Sprintf("<unknown %d>", id)
}

// ID returns the id bound to name, or NoNode.
func (t *Table) ID(name string) NodeID {
	if id, ok := t.lookup[name]; ok {
		return id
	}
	return NoNode
}

// FirstID returns the id of the first bound name in names, or NoNode.
func (t *Table) FirstID(names ...string) NodeID {
	for _, name := range names {
		if id := t.ID(name); id != NoNode {
			return id
		}
	}
	return NoNode
}

// Len returns the number of bound ids.
func (t *Table) Len() int {
	return t.count
}

// Cap returns one past the largest bound id, the size needed for arrays
// indexed by NodeID.
func (t *Table) Cap() int {
	for i := len(t.bound) - 1; i >= 0; i-- {
		if t.bound[i] {
			return i + 1
		}
	}
	return 0
}

// Each calls fn for every bound id in increasing id order.
func (t *Table) Each(fn func(id NodeID, name string)) {
	for i, ok := range t.bound {
		if ok {
			fn(NodeID(i), t.names[i])
		}
	}
}

// IDSet is a dense set of node ids.
type IDSet []bool

// Contains reports whether id is in the set.
func (s IDSet) Contains(id NodeID) bool {
	return int(id) < len(s) && s[id]
}

// Count returns the number of ids in the set.
func (s IDSet) Count() int {
	n := 0
	for _, ok := range s {
		if ok {
			n++
		}
	}
	return n
}

// Select returns the set of bound ids whose name satisfies match.
func (t *Table) Select(match func(name string) bool) IDSet {
	set := make(IDSet, t.Cap())
	t.Each(func(id NodeID, name string) {
		if match(name) {
			set[id] = true
		}
	})
	return set
}

// IsNetworkName reports whether name belongs to the network statistics
// namespace.
func IsNetworkName(name string) bool {
	for _, p := range networkPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// IsIdleName reports whether name marks time spent waiting rather than
// working.
func IsIdleName(name string) bool {
	return strings.Contains(name, "Idle")
}

// Match returns the ids whose name contains label, ignoring case. Network ids
// are never returned.
func (t *Table) Match(label string) IDSet {
	needle := strings.ToLower(label)
	return t.Select(func(name string) bool {
		return !IsNetworkName(name) && strings.Contains(strings.ToLower(name), needle)
	})
}
