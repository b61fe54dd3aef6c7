package setlist

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoDiscardDictCounts(t *testing.T) {
	d := NewAutoDiscardDict[string]()

	assert.Equal(t, 0, d.Count("absent"))
	assert.False(t, d.Contains("absent"))

	d.Adjust("a", 2)
	d.Adjust("b", 1)
	assert.Equal(t, 2, d.Count("a"))
	assert.Equal(t, 2, d.Len())

	d.Adjust("a", -1)
	assert.Equal(t, 1, d.Count("a"))
	assert.True(t, d.Contains("a"))
}

func TestAutoDiscardDictRemovesAtZero(t *testing.T) {
	d := NewAutoDiscardDict[string]()
	d.Adjust("a", 1)
	d.Adjust("a", -1)

	assert.False(t, d.Contains("a"))
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Keys())
}

func TestAutoDiscardDictKeepsNegativeCounts(t *testing.T) {
	d := NewAutoDiscardDict[string]()
	d.Adjust("a", -1)

	assert.True(t, d.Contains("a"))
	assert.Equal(t, -1, d.Count("a"))
}

func TestSetListAddAndGet(t *testing.T) {
	l := New[string]()
	l.Add(0, "x")
	l.Add(0, "y")
	l.Add(2, "z")

	assert.Equal(t, 3, l.Len())
	assert.ElementsMatch(t, []string{"x", "y"}, l.Get(0))
	assert.Empty(t, l.Get(1))
	assert.Equal(t, []string{"z"}, l.Get(2))
	assert.True(t, l.Contains(0, "x"))
	assert.False(t, l.Contains(1, "x"))
	assert.False(t, l.Contains(5, "x"))
}

func TestSetListGetMaterializesPositions(t *testing.T) {
	l := New[int]()
	got := l.Get(3)

	assert.Empty(t, got)
	assert.Equal(t, 4, l.Len())
}

func TestSetListFlatCountsDistinctPositions(t *testing.T) {
	l := New[string]()
	l.Add(0, "x")
	l.Add(1, "x")
	l.Add(1, "y")
	// adding again to a position that already holds the item is a no-op
	l.Add(1, "x")

	assert.Equal(t, 2, l.Flat().Count("x"))
	assert.Equal(t, 1, l.Flat().Count("y"))
	assert.Equal(t, 2, l.Flat().Len())
}

func TestSetListSetAdjustsFlat(t *testing.T) {
	l := New[string]()
	l.AddAll(0, []string{"a", "b"})
	l.Set(0, []string{"b", "c"})

	assert.ElementsMatch(t, []string{"b", "c"}, l.Get(0))
	assert.Equal(t, 0, l.Flat().Count("a"))
	assert.Equal(t, 1, l.Flat().Count("b"))
	assert.Equal(t, 1, l.Flat().Count("c"))
}

func TestSetListAppend(t *testing.T) {
	l := New[string]()
	l.Append([]string{"a"})
	l.Append(nil)
	l.Append([]string{"b", "c"})

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"a"}, l.Get(0))
	assert.Empty(t, l.Get(1))
	assert.ElementsMatch(t, []string{"b", "c"}, l.Get(2))
}

func TestSetListEmptySetLeavesPosition(t *testing.T) {
	l := New[string]()
	l.Append([]string{"a"})
	l.Set(0, nil)

	assert.Equal(t, 1, l.Len())
	assert.Empty(t, l.Get(0))

	l.Append([]string{"b"})
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"b"}, l.Get(1))
}

func TestSetListDiscardTruncatesTrailingEmpty(t *testing.T) {
	l := New[string]()
	l.Append([]string{"a"})
	l.Append([]string{"b"})
	l.Append([]string{"c"})

	l.Discard(2, "c")
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.Flat().Count("c"))

	// emptying a middle position keeps it; only the tail is trimmed
	l.Discard(0, "a")
	assert.Equal(t, 2, l.Len())
	assert.Empty(t, l.Get(0))
	assert.Equal(t, []string{"b"}, l.Get(1))

	l.Discard(1, "b")
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.Flat().Len())
}

func TestSetListDiscardAbsentIsNoop(t *testing.T) {
	l := New[string]()
	l.Append([]string{"a"})
	l.Discard(0, "z")
	l.Discard(7, "a")

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.Flat().Count("a"))
}

func TestFromPositions(t *testing.T) {
	l := FromPositions([][]int{{1, 2}, nil, {2}})

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 2, l.Flat().Count(2))

	keys := l.Flat().Keys()
	sort.Ints(keys)
	assert.Equal(t, []int{1, 2}, keys)
}
