// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"github.com/pkg/errors"

	"github.com/gaissmai/pipapo/internal/bitset"
)

// allocWords returns n zeroed words, or ErrAlloc if the allocation
// exceeds the configured table limit.
func (c *Config) allocWords(n int) ([]uint64, error) {
	if n < 0 || (c.MaxTableBytes > 0 && n > c.MaxTableBytes/8) {
		return nil, errors.Wrapf(ErrAlloc, "%d words over limit of %d bytes", n, c.MaxTableBytes)
	}
	return make([]uint64, n), nil
}

// allocMapping returns n zeroed mapping slots, or ErrAlloc if the
// allocation exceeds the configured table limit.
func (c *Config) allocMapping(n int) ([]mapping, error) {
	if n < 0 || (c.MaxTableBytes > 0 && n > c.MaxTableBytes/mapSlotBytes) {
		return nil, errors.Wrapf(ErrAlloc, "%d mapping slots over limit of %d bytes", n, c.MaxTableBytes)
	}
	return make([]mapping, n), nil
}

// resize adapts the lookup and mapping tables of f to hold rules rules.
//
// The bucket size follows the rule count in words, the mapping table
// keeps a slack of RuleMargin slots. On error f is left unchanged, the
// caller updates f.rules after a successful resize.
func (f *field) resize(cfg *Config, rules int) error {
	if rules >= cfg.MaxRules {
		return errors.Wrapf(ErrNoSpace, "%d rules, limit %d", rules, cfg.MaxRules)
	}

	var lt []uint64

	bsize := bitset.WordsNeeded(rules)
	if bsize != f.bsize {
		var err error
		if lt, err = cfg.allocWords(ltWords(f.groups, f.bb, bsize)); err != nil {
			return err
		}
		copyBuckets(lt, f.lt, bsize, f.bsize, f.groups<<f.bb)
	}

	mt, resized, err := f.reallocMapping(cfg, rules)
	if err != nil {
		return err
	}

	if lt != nil {
		f.lt = lt
		f.bsize = bsize
	}
	if resized {
		f.mt = mt
	}
	return nil
}

// copyBuckets copies n buckets from src to dst, truncating or zero
// extending every bucket at the new bucket size.
func copyBuckets(dst, src []uint64, dstSize, srcSize, n int) {
	cp := min(dstSize, srcSize)
	if cp == 0 {
		return
	}
	for b := range n {
		copy(dst[b*dstSize:b*dstSize+cp], src[b*srcSize:b*srcSize+cp])
	}
}

// reallocMapping returns a new mapping table for rules if the current
// one is too small or its slack grew beyond twice the margin.
func (f *field) reallocMapping(cfg *Config, rules int) ([]mapping, bool, error) {
	if rules == 0 {
		return nil, true, nil
	}

	capacity := len(f.mt)
	switch {
	case rules > f.rules && capacity >= rules:
		// growing and enough space left
		return nil, false, nil
	case rules < f.rules && capacity-rules < 2*cfg.RuleMargin:
		// shrinking, slack still small
		return nil, false, nil
	case rules == f.rules && capacity >= rules:
		return nil, false, nil
	}

	mt, err := cfg.allocMapping(rules + cfg.RuleMargin)
	if err != nil {
		return nil, false, err
	}
	copy(mt, f.mt[:min(f.rules, rules, capacity)])

	return mt, true, nil
}

// truncate drops the rules from index rules up to the end. The mapping
// slots of the dropped rules are zeroed.
func (f *field) truncate(cfg *Config, rules int) {
	n := f.rules - rules
	if n <= 0 {
		return
	}

	for b := range f.groups << f.bb {
		bitset.BitSet(f.lt[b*f.bsize : (b+1)*f.bsize]).ClearRange(uint(rules), uint(n))
	}
	clear(f.mt[rules:f.rules])

	// shrinking doesn't invalidate the tables, a failure is harmless
	_ = f.resize(cfg, rules)
	f.rules = rules
}

// regroupTarget returns the group width f should switch to, or 0 if the
// current width is fine.
//
// A field starting with GroupBits switches to RegroupBits once its
// lookup table exceeds SizeHigh, and back once it falls below SizeLow,
// unless the table at GroupBits would exceed SizeHigh again.
func (f *field) regroupTarget(cfg *Config) int {
	if cfg.GroupBits == cfg.RegroupBits {
		return 0
	}

	size := f.ltBytes()

	switch f.bb {
	case cfg.GroupBits:
		if size > cfg.SizeHigh {
			return cfg.RegroupBits
		}
	case cfg.RegroupBits:
		if size < cfg.SizeLow {
			groups := f.bytes * 8 / cfg.GroupBits
			if ltWords(groups, cfg.GroupBits, f.bsize)*8 > cfg.SizeHigh {
				return 0
			}
			return cfg.GroupBits
		}
	}
	return 0
}

// regroup converts the lookup table of f to groups of bb bits.
// On error f is left unchanged.
func (f *field) regroup(cfg *Config, bb int) error {
	if bb == f.bb {
		return nil
	}

	groups := f.bytes * 8 / bb
	lt, err := cfg.allocWords(ltWords(groups, bb, f.bsize))
	if err != nil {
		return err
	}

	if bb == 8 {
		lt4to8(f.groups, f.bsize, f.lt, lt)
	} else {
		lt8to4(f.groups, f.bsize, f.lt, lt)
	}

	f.lt = lt
	f.bb = bb
	f.groups = groups
	return nil
}

// lt4to8 merges pairs of 4-bit groups into 8-bit groups.
//
// A rule admits the byte value b if it admits the high nibble of b in the
// first 4-bit group and the low nibble in the second one, so the 8-bit
// bucket is the intersection of the two 4-bit buckets.
func lt4to8(oldGroups, bsize int, old, lt []uint64) {
	for g := range oldGroups / 2 {
		g0, g1 := 2*g, 2*g+1

		for b := range 256 {
			i0 := (g0<<4 + b>>4) * bsize
			i1 := (g1<<4 + b&0x0f) * bsize
			dst := (g<<8 + b) * bsize

			bitset.BitSet(lt[dst:dst+bsize]).Intersection(old[i0:i0+bsize], old[i1:i1+bsize])
		}
	}
}

// lt8to4 splits 8-bit groups into pairs of 4-bit groups.
//
// A rule admits a nibble value if it admits any byte value with that
// nibble, so every 4-bit bucket is the union of the matching 8-bit buckets.
// This is exact since every rule is a netmask, its admitted byte values
// are the product of its admitted high and low nibbles.
func lt8to4(oldGroups, bsize int, old, lt []uint64) {
	for g := range oldGroups {
		hi, lo := 2*g, 2*g+1

		for b := range 256 {
			src := (g<<8 + b) * bsize
			dstHi := (hi<<4 + b>>4) * bsize
			dstLo := (lo<<4 + b&0x0f) * bsize

			bucket := bitset.BitSet(old[src : src+bsize])
			bitset.BitSet(lt[dstHi : dstHi+bsize]).InPlaceUnion(bucket)
			bitset.BitSet(lt[dstLo : dstLo+bsize]).InPlaceUnion(bucket)
		}
	}
}
