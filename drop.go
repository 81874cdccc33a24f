// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"github.com/pkg/errors"

	"github.com/gaissmai/pipapo/internal/bitset"
)

// rulesSameKey returns the number of adjacent rules starting at first
// with an identical mapping slot, the rules of one entry in f.
// It returns 0 if first is beyond the rules.
func (f *field) rulesSameKey(first int) int {
	r := first
	for r < f.rules && f.mt[r] == f.mt[first] {
		r++
	}
	return r - first
}

// unmap removes the n mapping slots starting at start and renumbers the
// targets of the following slots by the shrink of the next field.
func (f *field) unmap(start, n, toOffset int, last bool) {
	copy(f.mt[start:], f.mt[start+n:f.rules])
	clear(f.mt[f.rules-n : f.rules])

	if last {
		return
	}
	for i := start; i < f.rules-n; i++ {
		f.mt[i].to -= toOffset
	}
}

// rulemap collects the rule ranges of the entry whose rules in the first
// field start at first, following the mapping slots field by field.
func (m *match) rulemap(first, n int, rulemap []ruleRange) {
	start := first
	for i := range m.fields {
		rulemap[i] = ruleRange{to: start, n: n}
		if i < len(m.fields)-1 {
			mt := m.fields[i].mt[start]
			start, n = mt.to, mt.n
		}
	}
}

// drop removes the rule ranges in rulemap from every field. The rules
// after a removed range move down, mapping targets are renumbered.
func (m *match) drop(rulemap []ruleRange) {
	for i := range m.fields {
		f := &m.fields[i]
		rm := rulemap[i]

		for b := range f.groups << f.bb {
			bitset.BitSet(f.lt[b*f.bsize : (b+1)*f.bsize]).Cut(uint(rm.to), uint(rm.n))
		}

		toOffset := 0
		if i < len(m.fields)-1 {
			toOffset = rulemap[i+1].n
		}
		f.unmap(rm.to, rm.n, toOffset, i == len(m.fields)-1)

		// shrinking doesn't invalidate the tables, a failure is harmless
		_ = f.resize(m.cfg, f.rules-rm.n)
		f.rules -= rm.n

		m.adjustBits(i)
	}
}

// remove drops the rules of e.
//
// Entries are scanned in the first field, per field the rule range must
// cover exactly the key range of e, in the terminal field the rules must
// map to e itself.
func (m *match) remove(e Element) error {
	var rulemap [MaxFields]ruleRange

	start, end := e.Key(), keyEnd(e)
	if len(start) != m.keyLen || len(end) != m.keyLen {
		return errors.Wrapf(ErrNotFound, "key length %d/%d, want %d", len(start), len(end), m.keyLen)
	}

	f0 := &m.fields[0]
	for first := 0; first < f0.rules; {
		n0 := f0.rulesSameKey(first)

		if m.matchEntry(first, n0, start, end, e, rulemap[:len(m.fields)]) {
			m.drop(rulemap[:len(m.fields)])
			return nil
		}

		first += n0
	}

	return errors.Wrapf(ErrNotFound, "%x-%x", start, end)
}

// matchEntry reports whether the entry with rules [first, first+n) in the
// first field is e, filling rulemap on the way.
func (m *match) matchEntry(first, n int, start, end []byte, e Element, rulemap []ruleRange) bool {
	off := 0
	for i := range m.fields {
		f := &m.fields[i]

		if !f.matchField(first, n, f.span(start, off), f.span(end, off)) {
			return false
		}
		rulemap[i] = ruleRange{to: first, n: n}
		off += f.bytes

		if i == len(m.fields)-1 {
			return f.mt[first].e == e
		}

		first, n = f.mt[first].to, f.mt[first].n
	}
	return false
}
