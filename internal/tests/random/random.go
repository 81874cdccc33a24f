// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package random provides seeded generators of keys and multi-field
// ranges for tests and benchmarks.
package random

import (
	"bytes"
	"math/rand/v2"
	"slices"
)

// Range is a multi-field range, Start and End are the concatenated
// field values.
type Range struct {
	Start []byte
	End   []byte
}

// Bytes returns n random bytes.
func Bytes(prng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(prng.Uint32())
	}
	return b
}

// Key returns a random concatenated key for the field lengths.
func Key(prng *rand.Rand, fieldLen []int) []byte {
	n := 0
	for _, l := range fieldLen {
		n += l
	}
	return Bytes(prng, n)
}

// FieldRange returns a random range of n bytes. Every fourth range is a
// single value.
func FieldRange(prng *rand.Rand, n int) (start, end []byte) {
	a, b := Bytes(prng, n), Bytes(prng, n)
	if prng.IntN(4) == 0 {
		return a, bytes.Clone(a)
	}
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a, b
}

// Disjoint returns up to k sorted, pairwise disjoint ranges of n bytes.
// Some of them are single values.
func Disjoint(prng *rand.Rand, n, k int) []Range {
	vals := make([][]byte, 0, 2*k)
	for range 2 * k {
		vals = append(vals, Bytes(prng, n))
	}
	slices.SortFunc(vals, bytes.Compare)
	vals = slices.CompactFunc(vals, bytes.Equal)

	ranges := make([]Range, 0, k)
	for i := 0; i+1 < len(vals); i += 2 {
		r := Range{Start: vals[i], End: vals[i+1]}
		if prng.IntN(3) == 0 {
			r.End = bytes.Clone(r.Start)
		}
		ranges = append(ranges, r)
	}
	return ranges
}

// Entries returns up to count distinct multi-field ranges for the field
// lengths, per field any two of them are either identical or disjoint.
//
// Every field draws its range from a pool of disjoint ranges of the given
// size, smaller pools give more entries sharing a field range.
func Entries(prng *rand.Rand, fieldLen []int, count, pool int) []Range {
	pools := make([][]Range, len(fieldLen))
	for i, n := range fieldLen {
		pools[i] = Disjoint(prng, n, pool)
	}

	seen := make(map[string]bool, count)
	entries := make([]Range, 0, count)

	for range 4 * count {
		if len(entries) == count {
			break
		}

		var r Range
		for _, p := range pools {
			pick := p[prng.IntN(len(p))]
			r.Start = append(r.Start, pick.Start...)
			r.End = append(r.End, pick.End...)
		}

		id := string(r.Start) + string(r.End)
		if seen[id] {
			continue
		}
		seen[id] = true

		entries = append(entries, r)
	}
	return entries
}

// Inside returns a random key within r, for the field lengths.
func Inside(prng *rand.Rand, fieldLen []int, r Range) []byte {
	key := make([]byte, 0, len(r.Start))

	off := 0
	for _, n := range fieldLen {
		key = append(key, between(prng, r.Start[off:off+n], r.End[off:off+n])...)
		off += n
	}
	return key
}

// between returns a random value in [a, b], big endian byte order.
func between(prng *rand.Rand, a, b []byte) []byte {
	for range 64 {
		v := Bytes(prng, len(a))

		// keep the common prefix, randomize the rest
		i := 0
		for i < len(a) && a[i] == b[i] {
			v[i] = a[i]
			i++
		}
		if bytes.Compare(v, a) >= 0 && bytes.Compare(v, b) <= 0 {
			return v
		}
	}

	if prng.IntN(2) == 0 {
		return bytes.Clone(a)
	}
	return bytes.Clone(b)
}
