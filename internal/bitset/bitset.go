// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitset implements fixed size bitsets over a slice of words.
//
// The bitsets never grow, they are windows into larger word arenas,
// e.g. one bucket of a lookup table. Indices beyond the capacity
// are ignored by the mutators and report false in the queries.
//
// Derived from a simplified and stripped down version of:
//
//	github.com/bits-and-blooms/bitset
package bitset

import (
	"math/bits"
)

// the wordSize of a bit set
const wordSize = uint(64)

// log2WordSize is lg(wordSize)
const log2WordSize = uint(6)

// allOnes is a word with all bits set.
const allOnes = ^uint64(0)

// A BitSet is a set of bits, backed by a slice of words.
type BitSet []uint64

// WordsNeeded calculates the number of words needed for n bits.
func WordsNeeded(n int) int {
	return (n + int(wordSize) - 1) >> log2WordSize
}

// wordsIndex calculates the index of words in a `uint64`
func wordsIndex(i uint) uint {
	return i & (wordSize - 1)
}

// bitsCapacity returns the number of possible bits in the current set.
func (b BitSet) bitsCapacity() uint {
	return uint(len(b)) * wordSize
}

// Test whether bit i is set.
func (b BitSet) Test(i uint) bool {
	if i >= b.bitsCapacity() {
		return false
	}
	return b[i>>log2WordSize]&(1<<wordsIndex(i)) != 0
}

// Set bit i to 1.
func (b BitSet) Set(i uint) {
	if i >= b.bitsCapacity() {
		return
	}
	b[i>>log2WordSize] |= 1 << wordsIndex(i)
}

// Clear bit i to 0.
func (b BitSet) Clear(i uint) {
	if i >= b.bitsCapacity() {
		return
	}
	b[i>>log2WordSize] &^= 1 << wordsIndex(i)
}

// SetRange sets the n bits starting at start.
func (b BitSet) SetRange(start, n uint) {
	b.applyRange(start, n, true)
}

// ClearRange clears the n bits starting at start.
func (b BitSet) ClearRange(start, n uint) {
	b.applyRange(start, n, false)
}

func (b BitSet) applyRange(start, n uint, set bool) {
	capacity := b.bitsCapacity()
	if n == 0 || start >= capacity {
		return
	}
	if n > capacity-start {
		n = capacity - start
	}

	for n > 0 {
		x := start >> log2WordSize
		off := wordsIndex(start)

		take := wordSize - off
		if take > n {
			take = n
		}

		mask := allOnes
		if take < wordSize {
			mask = (1<<take - 1) << off
		}

		if set {
			b[x] |= mask
		} else {
			b[x] &^= mask
		}

		start += take
		n -= take
	}
}

// Reset clears all bits in the set.
func (b BitSet) Reset() {
	clear(b)
}

// extract returns k <= 64 bits starting at position i, LSB aligned.
func (b BitSet) extract(i, k uint) uint64 {
	x := i >> log2WordSize
	off := wordsIndex(i)

	w := b[x] >> off
	if off != 0 && off+k > wordSize && int(x)+1 < len(b) {
		w |= b[x+1] << (wordSize - off)
	}

	if k < wordSize {
		w &= 1<<k - 1
	}
	return w
}

// Cut removes the n bits starting at first and shifts all higher bits
// down by n. The freed bits at the top of the set are cleared.
//
// The bit indices after the cut region are thereby renumbered,
// bit first+n becomes bit first and so on.
func (b BitSet) Cut(first, n uint) {
	capacity := b.bitsCapacity()
	if n == 0 || first >= capacity {
		return
	}
	if n > capacity-first {
		n = capacity - first
	}

	top := capacity - n
	for dst := first; dst < top; {
		// copy chunks never crossing a destination word boundary
		off := wordsIndex(dst)

		take := wordSize - off
		if take > top-dst {
			take = top - dst
		}

		w := b.extract(dst+n, take)

		mask := allOnes
		if take < wordSize {
			mask = 1<<take - 1
		}

		x := dst >> log2WordSize
		b[x] = b[x]&^(mask<<off) | (w&mask)<<off

		dst += take
	}

	b.ClearRange(top, n)
}

// NextSet returns the next bit set from the specified index,
// including possibly the current index
// along with an error code (true = valid, false = no set bit found)
// for i,e := v.NextSet(0); e; i,e = v.NextSet(i + 1) {...}
func (b BitSet) NextSet(i uint) (uint, bool) {
	x := int(i >> log2WordSize)
	if x >= len(b) {
		return 0, false
	}
	w := b[x]
	w = w >> wordsIndex(i)
	if w != 0 {
		return i + uint(bits.TrailingZeros64(w)), true
	}
	x++
	// bounds check elimination in the loop
	if x < 0 {
		return 0, false
	}
	for x < len(b) {
		if b[x] != 0 {
			return uint(x)*wordSize + uint(bits.TrailingZeros64(b[x])), true
		}
		x++
	}
	return 0, false
}

// IsEmpty reports whether no bit is set.
func (b BitSet) IsEmpty() bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

// InPlaceIntersection overwrites and computes the intersection of
// base set with the compare set.
// This is the BitSet equivalent of & (and).
//
// Words of b beyond the length of c are cleared.
func (b BitSet) InPlaceIntersection(c BitSet) {
	bLen := len(b)
	cLen := len(c)

	if cLen > bLen {
		cLen = bLen
	}
	if cLen == 0 {
		clear(b)
		return
	}

	// bounds check elimination
	_ = b[cLen-1]
	_ = c[cLen-1]

	for i := range cLen {
		b[i] &= c[i]
	}
	clear(b[cLen:])
}

// InPlaceUnion creates the destructive union of base set with compare set.
// This is the BitSet equivalent of | (or).
//
// Words of c beyond the length of b are ignored.
func (b BitSet) InPlaceUnion(c BitSet) {
	n := min(len(b), len(c))
	if n == 0 {
		return
	}

	// bounds check elimination
	_ = b[n-1]
	_ = c[n-1]

	for i := range n {
		b[i] |= c[i]
	}
}

// Intersection writes the intersection of a and c to b.
func (b BitSet) Intersection(a, c BitSet) {
	n := min(len(a), len(b), len(c))
	for i := range n {
		b[i] = a[i] & c[i]
	}
	clear(b[n:])
}
