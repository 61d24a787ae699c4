// Package rangeutil provides non-copying windows over ordered slices and the
// keyed binary search used to locate them.
package rangeutil

// Window is a read-only view of count elements of an ordered slice starting
// at offset start.
type Window[T any] struct {
	items []T
	start int
	count int
}

// NewWindow returns a window over items[start:start+count], clamped to the
// bounds of items.
func NewWindow[T any](items []T, start, count int) Window[T] {
	start = min(max(start, 0), len(items))
	count = min(max(count, 0), len(items)-start)
	return Window[T]{items: items, start: start, count: count}
}

// Between returns the window over items[start:end].
func Between[T any](items []T, start, end int) Window[T] {
	return NewWindow(items, start, end-start)
}

// Start is the offset of the first element in the underlying slice.
func (w Window[T]) Start() int {
	return w.start
}

// End is one past the offset of the last element in the underlying slice.
func (w Window[T]) End() int {
	return w.start + w.count
}

func (w Window[T]) Len() int {
	return w.count
}

func (w Window[T]) Empty() bool {
	return w.count == 0
}

// At returns the i-th element of the window. It panics when i is out of
// range, like a slice index.
func (w Window[T]) At(i int) T {
	if i < 0 || i >= w.count {
		panic("rangeutil: window index out of range")
	}
	return w.items[w.start+i]
}

// Slice returns the window as a slice sharing the underlying array. Callers
// must not modify it.
func (w Window[T]) Slice() []T {
	return w.items[w.start : w.start+w.count : w.start+w.count]
}

// IndexFunc returns the window-relative index of the first element
// satisfying f, or -1.
func (w Window[T]) IndexFunc(f func(T) bool) int {
	for i, v := range w.Slice() {
		if f(v) {
			return i
		}
	}
	return -1
}

// ContainsFunc reports whether any element satisfies f.
func (w Window[T]) ContainsFunc(f func(T) bool) bool {
	return w.IndexFunc(f) >= 0
}

// Index returns the window-relative index of the first element equal to v,
// or -1.
func Index[T comparable](w Window[T], v T) int {
	return w.IndexFunc(func(x T) bool { return x == v })
}

// Contains reports whether v is in the window.
func Contains[T comparable](w Window[T], v T) bool {
	return Index(w, v) >= 0
}
