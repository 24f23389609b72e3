package extents

import "sort"

// BadBlockSet is a sorted set of LBAs pending recovery. Order may
// be reversed between retry passes to alternate scan direction.
type BadBlockSet struct {
	lbas    []int
	reverse bool
}

// NewBadBlockSet returns an empty BadBlockSet.
func NewBadBlockSet() *BadBlockSet { return &BadBlockSet{} }

// search returns the position of lba (or where it would be inserted) in
// the current scan order, ascending or descending.
func (b *BadBlockSet) search(lba int) int {
	if b.reverse {
		return sort.Search(len(b.lbas), func(i int) bool { return b.lbas[i] <= lba })
	}
	return sort.SearchInts(b.lbas, lba)
}

// Add inserts lba into the set if not already present, keeping it sorted.
func (b *BadBlockSet) Add(lba int) {
	i := b.search(lba)
	if i < len(b.lbas) && b.lbas[i] == lba {
		return
	}
	b.lbas = append(b.lbas, 0)
	copy(b.lbas[i+1:], b.lbas[i:])
	b.lbas[i] = lba
}

// AddRun inserts every LBA in [start, start+length).
func (b *BadBlockSet) AddRun(start, length int) {
	for i := 0; i < length; i++ {
		b.Add(start + i)
	}
}

// Remove drops lba from the set, if present.
func (b *BadBlockSet) Remove(lba int) {
	i := b.search(lba)
	if i < len(b.lbas) && b.lbas[i] == lba {
		b.lbas = append(b.lbas[:i], b.lbas[i+1:]...)
	}
}

// Contains reports whether lba is pending recovery.
func (b *BadBlockSet) Contains(lba int) bool {
	i := b.search(lba)
	return i < len(b.lbas) && b.lbas[i] == lba
}

// Len reports the number of pending LBAs.
func (b *BadBlockSet) Len() int { return len(b.lbas) }

// IsEmpty reports whether no LBAs are pending.
func (b *BadBlockSet) IsEmpty() bool { return len(b.lbas) == 0 }

// ReverseScan sorts the set then reverses it, alternating the scan
// direction between retry passes. Calling it again restores
// ascending order.
func (b *BadBlockSet) ReverseScan() {
	sort.Ints(b.lbas)
	if !b.reverse {
		for i, j := 0, len(b.lbas)-1; i < j; i, j = i+1, j-1 {
			b.lbas[i], b.lbas[j] = b.lbas[j], b.lbas[i]
		}
	}
	b.reverse = !b.reverse
}

// Forward reports whether the set is currently in ascending (forward) scan
// order.
func (b *BadBlockSet) Forward() bool { return !b.reverse }

// LBAs returns the pending LBAs in current scan order. The returned slice
// must not be mutated by the caller.
func (b *BadBlockSet) LBAs() []int { return b.lbas }

// Clone returns a deep copy.
func (b *BadBlockSet) Clone() *BadBlockSet {
	c := &BadBlockSet{reverse: b.reverse, lbas: make([]int, len(b.lbas))}
	copy(c.lbas, b.lbas)
	return c
}
