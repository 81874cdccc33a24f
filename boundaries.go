// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"
	"math/bits"
)

// boundaries reconstructs the range covered by the n rules starting at
// first, which must stem from the expansion of one entry.
//
// Per group, the lowest bucket holding the first rule is the group value
// of the range start, the highest bucket holding the last rule the one of
// the range end. maskLen is the netmask length of the first rule.
func (f *field) boundaries(first, n int) (left, right []byte, maskLen int) {
	left = make([]byte, f.bytes)
	right = make([]byte, f.bytes)

	lastRule := uint(first + n - 1)

	for g := range f.groups {
		x0, x1 := -1, -1
		span := 0

		for b := range f.buckets() {
			bucket := f.bucket(g, b)

			if bucket.Test(uint(first)) {
				if x0 == -1 {
					x0 = b
				}
				span++
			}
			if bucket.Test(lastRule) {
				x1 = b
			}
		}

		f.putGroup(left, g, x0)
		f.putGroup(right, g, x1)

		// the first rule admits 2^k adjacent values in a group with k wildcard bits
		if span > 0 {
			maskLen += f.bb - bits.Len(uint(span)) + 1
		}
	}

	return left, right, maskLen
}

// putGroup stores the value v of group g into key.
func (f *field) putGroup(key []byte, g, v int) {
	if v < 0 {
		return
	}
	if f.bb == 8 {
		key[g] = byte(v)
		return
	}
	if g&1 == 0 {
		key[g>>1] |= byte(v) << 4
		return
	}
	key[g>>1] |= byte(v)
}

// matchField reports whether the n rules starting at first cover exactly
// the field range [start, end].
func (f *field) matchField(first, n int, start, end []byte) bool {
	left, right, _ := f.boundaries(first, n)
	return bytes.Equal(start, left) && bytes.Equal(end, right)
}
