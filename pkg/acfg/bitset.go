package acfg

import "math/bits"

// bitset is a fixed-width word-array bitset, the in/out/GEN/KILL
// representation liveness computes over (spec.md §4.4). Word-array
// bitsets with math/bits population/scan helpers are the only bitset
// style in the corpus this back-end draws from; no example reaches for a
// third-party bit-twiddling library for it, so this follows suit.
type bitset struct {
	w []uint64
	n int
}

func newBitset(n int) *bitset {
	return &bitset{w: make([]uint64, (n+63)/64), n: n}
}

func (b *bitset) Len() int { return b.n }

func (b *bitset) Test(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.w[i/64]&(1<<uint(i%64)) != 0
}

func (b *bitset) Set(i int) {
	b.w[i/64] |= 1 << uint(i%64)
}

func (b *bitset) Clear(i int) {
	b.w[i/64] &^= 1 << uint(i%64)
}

// setAll sets every bit in [0, n), matching complement(KILL) starting
// state described in spec.md §4.4.
func (b *bitset) setAll() {
	for i := range b.w {
		b.w[i] = ^uint64(0)
	}
	b.clearTail()
}

func (b *bitset) clearTail() {
	if b.n%64 == 0 {
		return
	}
	last := b.n / 64
	b.w[last] &= (uint64(1) << uint(b.n%64)) - 1
}

// complement returns a new bitset with every bit in [0, n) flipped.
func (b *bitset) complement() *bitset {
	c := &bitset{w: make([]uint64, len(b.w)), n: b.n}
	for i := range b.w {
		c.w[i] = ^b.w[i]
	}
	c.clearTail()
	return c
}

func (b *bitset) clone() *bitset {
	c := &bitset{w: make([]uint64, len(b.w)), n: b.n}
	copy(c.w, b.w)
	return c
}

// or sets dst to dst ∪ src and reports whether dst changed.
func (b *bitset) or(src *bitset) bool {
	changed := false
	for i := range b.w {
		merged := b.w[i] | src.w[i]
		if merged != b.w[i] {
			changed = true
			b.w[i] = merged
		}
	}
	return changed
}

// and sets dst to dst ∩ src.
func (b *bitset) and(src *bitset) {
	for i := range b.w {
		b.w[i] &= src.w[i]
	}
}

func (b *bitset) equal(o *bitset) bool {
	for i := range b.w {
		if b.w[i] != o.w[i] {
			return false
		}
	}
	return true
}

func (b *bitset) isEmpty() bool {
	for _, w := range b.w {
		if w != 0 {
			return false
		}
	}
	return true
}

// count reports the number of set bits, used by tests asserting on
// bitset sizes.
func (b *bitset) count() int {
	n := 0
	for _, w := range b.w {
		n += bits.OnesCount64(w)
	}
	return n
}
