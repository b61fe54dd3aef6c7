// Package setlist provides the positional set container used to hold meaning
// candidates per token position, together with a reference-counted flat view
// answering "how many positions currently contain this item".
package setlist

import "fmt"

// AutoDiscardDict is a counting map: reading a missing key yields zero, and
// a count reaching exactly zero removes the key entirely, so Len and Keys
// only ever reflect live entries.
type AutoDiscardDict[T comparable] struct {
	items map[T]int
}

func NewAutoDiscardDict[T comparable]() *AutoDiscardDict[T] {
	return &AutoDiscardDict[T]{items: make(map[T]int)}
}

// Count returns the current count for key, zero if absent.
func (d *AutoDiscardDict[T]) Count(key T) int {
	return d.items[key]
}

// Adjust adds delta to the key's count, deleting the key when the result is
// exactly zero.
func (d *AutoDiscardDict[T]) Adjust(key T, delta int) {
	v := d.items[key] + delta
	if v == 0 {
		delete(d.items, key)
		return
	}
	d.items[key] = v
}

// Contains reports whether the key has a nonzero count.
func (d *AutoDiscardDict[T]) Contains(key T) bool {
	_, ok := d.items[key]
	return ok
}

// Len returns the number of live keys.
func (d *AutoDiscardDict[T]) Len() int {
	return len(d.items)
}

// Keys returns the live keys in unspecified order.
func (d *AutoDiscardDict[T]) Keys() []T {
	out := make([]T, 0, len(d.items))
	for k := range d.items {
		out = append(out, k)
	}
	return out
}

// SetList is an ordered sequence of item sets. Accessing an out-of-range
// position materializes empty intermediate positions. The flat view counts,
// for every item, how many positions currently contain it; flat counts and
// position contents are always updated together.
type SetList[T comparable] struct {
	positions []map[T]struct{}
	flat      *AutoDiscardDict[T]
}

func New[T comparable]() *SetList[T] {
	return &SetList[T]{flat: NewAutoDiscardDict[T]()}
}

// FromPositions builds a SetList whose positions hold the given item slices.
func FromPositions[T comparable](positions [][]T) *SetList[T] {
	l := New[T]()
	for _, items := range positions {
		l.Append(items)
	}
	return l
}

// Len returns the number of positions, including materialized empty ones.
func (l *SetList[T]) Len() int {
	return len(l.positions)
}

// Flat returns the deduplicating membership view.
func (l *SetList[T]) Flat() *AutoDiscardDict[T] {
	return l.flat
}

// Get returns the items at index, materializing the position and any missing
// preceding positions.
func (l *SetList[T]) Get(index int) []T {
	pos := l.position(index)
	out := make([]T, 0, len(pos))
	for item := range pos {
		out = append(out, item)
	}
	return out
}

// Contains reports whether index is in range and currently holds item.
func (l *SetList[T]) Contains(index int, item T) bool {
	if index < 0 || index >= len(l.positions) {
		return false
	}
	_, ok := l.positions[index][item]
	return ok
}

// Add inserts item into the position at index, counting it in the flat view
// unless the position already held it.
func (l *SetList[T]) Add(index int, item T) {
	pos := l.position(index)
	if _, ok := pos[item]; ok {
		return
	}
	pos[item] = struct{}{}
	l.flat.Adjust(item, 1)
}

// AddAll inserts every item into the position at index.
func (l *SetList[T]) AddAll(index int, items []T) {
	for _, item := range items {
		l.Add(index, item)
	}
}

// Set replaces the position's contents wholesale, adjusting flat counts for
// both removed and added items.
func (l *SetList[T]) Set(index int, items []T) {
	pos := l.position(index)
	keep := make(map[T]struct{}, len(items))
	for _, item := range items {
		keep[item] = struct{}{}
	}
	for item := range pos {
		if _, ok := keep[item]; !ok {
			delete(pos, item)
			l.flat.Adjust(item, -1)
		}
	}
	for item := range keep {
		if _, ok := pos[item]; !ok {
			pos[item] = struct{}{}
			l.flat.Adjust(item, 1)
		}
	}
}

// Append adds a new position at the end holding the given items.
func (l *SetList[T]) Append(items []T) {
	l.AddAll(len(l.positions), items)
	if len(items) == 0 {
		l.position(len(l.positions))
	}
}

// Discard removes item from the position at index if present. Emptying a
// position truncates trailing empty positions from the end of the list.
func (l *SetList[T]) Discard(index int, item T) {
	if index < 0 || index >= len(l.positions) {
		return
	}
	pos := l.positions[index]
	if _, ok := pos[item]; !ok {
		return
	}
	delete(pos, item)
	l.flat.Adjust(item, -1)
	if len(pos) == 0 {
		l.Truncate()
	}
}

// Truncate drops empty positions from the end of the list.
func (l *SetList[T]) Truncate() {
	for len(l.positions) > 0 && len(l.positions[len(l.positions)-1]) == 0 {
		l.positions = l.positions[:len(l.positions)-1]
	}
}

func (l *SetList[T]) position(index int) map[T]struct{} {
	for len(l.positions) <= index {
		l.positions = append(l.positions, make(map[T]struct{}))
	}
	return l.positions[index]
}

func (l *SetList[T]) String() string {
	out := make([][]T, len(l.positions))
	for i := range l.positions {
		out[i] = l.Get(i)
	}
	return fmt.Sprintf("SetList%v", out)
}
