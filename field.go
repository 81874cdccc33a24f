// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"github.com/gaissmai/pipapo/internal/bitset"
)

// mapping is a mapping table slot.
//
// Non-terminal fields map a rule to the range of n rules starting at to
// in the next field, the terminal field maps a rule to its element.
type mapping struct {
	to int
	n  int
	e  Element
}

// field is one component of the concatenated key.
//
// The lookup table lt is an arena of buckets addressed by index:
//
//	bucket(group, value) = lt[(group<<bb + value) * bsize :][:bsize]
//
// Bit r of bucket(g, v) is set if rule r admits value v in group g.
type field struct {
	bytes  int // field length in bytes
	groups int // number of bit groups
	bb     int // group width in bits, 4 or 8
	bsize  int // bucket size in words
	rules  int // rules in use

	lt []uint64
	mt []mapping // rule capacity is len(mt)
}

// newField returns an empty field of n bytes with groups of bb bits.
func newField(n, bb int) field {
	return field{
		bytes:  n,
		bb:     bb,
		groups: n * 8 / bb,
	}
}

// buckets returns the number of buckets per group.
func (f *field) buckets() int {
	return 1 << f.bb
}

// ltWords returns the lookup table size in words for the given layout.
func ltWords(groups, bb, bsize int) int {
	return groups << bb * bsize
}

// ltBytes returns the current lookup table size in bytes.
func (f *field) ltBytes() int {
	return ltWords(f.groups, f.bb, f.bsize) * 8
}

// bucket returns the bitmap of group g and value v.
func (f *field) bucket(g, v int) bitset.BitSet {
	off := (g<<f.bb + v) * f.bsize
	return f.lt[off : off+f.bsize : off+f.bsize]
}

// groupValue returns the value of group g in key.
func (f *field) groupValue(key []byte, g int) int {
	if f.bb == 8 {
		return int(key[g])
	}

	b := key[g>>1]
	if g&1 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0f)
}

// bucketSet sets the bit of rule in bucket(g, v).
func (f *field) bucketSet(rule, g, v int) {
	f.bucket(g, v).Set(uint(rule))
}

// capacity returns the number of rule slots in the mapping table.
func (f *field) capacity() int {
	return len(f.mt)
}

// span returns the bytes of key belonging to the field at offset off.
func (f *field) span(key []byte, off int) []byte {
	return key[off : off+f.bytes : off+f.bytes]
}

// clone returns a deep copy of f, elements are shared.
func (f *field) clone(cfg *Config) (field, error) {
	c := *f

	lt, err := cfg.allocWords(len(f.lt))
	if err != nil {
		return c, err
	}
	mt, err := cfg.allocMapping(len(f.mt))
	if err != nil {
		return c, err
	}

	copy(lt, f.lt)
	copy(mt, f.mt)
	c.lt, c.mt = lt, mt

	return c, nil
}

// andBuckets intersects res with the buckets selected by the group
// values of key.
func (f *field) andBuckets(res bitset.BitSet, key []byte) {
	lt := f.lt
	bsize := f.bsize

	if f.bb == 8 {
		for g := range f.groups {
			off := (g<<8 + int(key[g])) * bsize
			res.InPlaceIntersection(lt[off : off+bsize])
		}
		return
	}

	for g := 0; g < f.groups; g += 2 {
		v := key[g>>1]

		off := (g<<4 + int(v>>4)) * bsize
		res.InPlaceIntersection(lt[off : off+bsize])

		off = ((g+1)<<4 + int(v&0x0f)) * bsize
		res.InPlaceIntersection(lt[off : off+bsize])
	}
}
