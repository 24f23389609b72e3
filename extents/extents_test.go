package extents_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rabidaudio/cdimage/extents"
)

func TestInsertMergesAdjacent(t *testing.T) {
	e := extents.New()
	e.Insert(5)
	e.Insert(6)
	e.Insert(4)
	assert.Equal(t, []extents.Range{{Start: 4, End: 7}}, e.Ranges())
}

func TestInsertRunMergesAcrossGap(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 10)
	e.InsertRun(20, 10)
	assert.Equal(t, []extents.Range{{Start: 0, End: 10}, {Start: 20, End: 30}}, e.Ranges())

	e.InsertRun(10, 10) // fills the gap, should merge all three into one
	assert.Equal(t, []extents.Range{{Start: 0, End: 30}}, e.Ranges())
}

func TestInsertIsIdempotent(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 100)
	e.Insert(50)
	assert.Equal(t, []extents.Range{{Start: 0, End: 100}}, e.Ranges())
}

func TestInsertThenRemoveRestoresCanonicalForm(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 100)
	before := append([]extents.Range{}, e.Ranges()...)

	e.Insert(150)
	e.Remove(150)
	assert.Equal(t, before, e.Ranges())
}

func TestRemoveSplitsRange(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 10)
	e.Remove(5)
	assert.Equal(t, []extents.Range{{Start: 0, End: 5}, {Start: 6, End: 10}}, e.Ranges())
}

func TestRemoveAtEdgeShrinksRange(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 10)
	e.Remove(0)
	assert.Equal(t, []extents.Range{{Start: 1, End: 10}}, e.Ranges())

	e.Remove(9)
	assert.Equal(t, []extents.Range{{Start: 1, End: 9}}, e.Ranges())
}

func TestContains(t *testing.T) {
	e := extents.New()
	e.InsertRun(10, 5)
	assert.True(t, e.Contains(10))
	assert.True(t, e.Contains(14))
	assert.False(t, e.Contains(9))
	assert.False(t, e.Contains(15))
}

func TestTotal(t *testing.T) {
	e := extents.New()
	e.InsertRun(0, 10)
	e.InsertRun(20, 5)
	assert.Equal(t, 15, e.Total())
}

func TestBadBlockSetReverseScanAlternates(t *testing.T) {
	b := extents.NewBadBlockSet()
	b.AddRun(0, 5)
	assert.True(t, b.Forward())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, b.LBAs())

	b.ReverseScan()
	assert.False(t, b.Forward())
	assert.Equal(t, []int{4, 3, 2, 1, 0}, b.LBAs())

	b.ReverseScan()
	assert.True(t, b.Forward())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, b.LBAs())
}

func TestBadBlockSetRemove(t *testing.T) {
	b := extents.NewBadBlockSet()
	b.AddRun(0, 3)
	b.Remove(1)
	assert.False(t, b.Contains(1))
	assert.Equal(t, 2, b.Len())
}
