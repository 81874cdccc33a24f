// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
)

// ruleRange is a contiguous range of n rules starting at to.
type ruleRange struct {
	to int
	n  int
}

// insert adds a rule for key with its first maskBits bits significant
// and returns the rule index. The rule is appended after all others.
func (f *field) insert(cfg *Config, key []byte, maskBits int) (int, error) {
	rule := f.rules
	if err := f.resize(cfg, rule+1); err != nil {
		return 0, err
	}
	f.rules++

	for g := range f.groups {
		v := f.groupValue(key, g)

		switch {
		case maskBits >= (g+1)*f.bb:
			// group fully significant
			f.bucketSet(rule, g, v)

		case maskBits <= g*f.bb:
			// group fully masked
			for b := range f.buckets() {
				f.bucketSet(rule, g, b)
			}

		default:
			// the netmask ends within this group, the low bits are wildcards
			mask := (1<<f.bb - 1) >> (maskBits - g*f.bb)
			base := v &^ mask
			for b := base; b <= base|mask; b++ {
				f.bucketSet(rule, g, b)
			}
		}
	}

	return rule, nil
}

// insertRule inserts a rule into field i and rebalances its group width.
func (m *match) insertRule(i int, key []byte, maskBits int) error {
	if _, err := m.fields[i].insert(m.cfg, key, maskBits); err != nil {
		return err
	}
	m.adjustBits(i)
	return nil
}

// insert adds e to m. If an entry with the same key is visible in genmask
// at now, ErrDuplicate is returned with it. For an overlapping entry
// ErrPartialOverlap is returned with the conflicting element.
//
// On error m is unchanged.
func (m *match) insert(e Element, genmask Genmask, now time.Time) (Element, error) {
	start, end := e.Key(), keyEnd(e)
	if len(start) != m.keyLen || len(end) != m.keyLen {
		return nil, errors.Wrapf(ErrInvalidRange, "key length %d/%d, want %d", len(start), len(end), m.keyLen)
	}

	if dup, ok := m.lookup(start, genmask, now); ok {
		if bytes.Equal(dup.Key(), start) && bytes.Equal(keyEnd(dup), end) {
			return dup, ErrDuplicate
		}
		return dup, errors.Wrapf(ErrPartialOverlap, "start %x", start)
	}

	if dup, ok := m.lookup(end, genmask, now); ok {
		return dup, errors.Wrapf(ErrPartialOverlap, "end %x", end)
	}

	off := 0
	for i := range m.fields {
		f := &m.fields[i]
		if bytes.Compare(f.span(start, off), f.span(end, off)) > 0 {
			return nil, errors.Wrapf(ErrInvalidRange, "field %d: start %x > end %x",
				i, f.span(start, off), f.span(end, off))
		}
		off += f.bytes
	}

	if m.cfg.Overlap == OverlapPerField {
		if dup := m.overlapping(start, end, genmask, now); dup != nil {
			return dup, errors.Wrapf(ErrPartialOverlap, "%x-%x", start, end)
		}
	}

	var (
		saved   [MaxFields]int
		rulemap [MaxFields]ruleRange
	)
	for i := range m.fields {
		saved[i] = m.fields[i].rules
	}

	off = 0
	for i := range m.fields {
		f := &m.fields[i]
		rulemap[i].to = f.rules

		n, err := expand(f.span(start, off), f.span(end, off), func(base []byte, bits int) error {
			return m.insertRule(i, base, bits)
		})
		if err != nil {
			m.rollback(saved[:len(m.fields)])
			return nil, errors.WithMessagef(err, "field %d", i)
		}

		rulemap[i].n = n
		off += f.bytes
	}

	bsize := 0
	for i := range m.fields {
		bsize = max(bsize, m.fields[i].bsize)
	}
	if err := m.growScratch(bsize); err != nil {
		m.rollback(saved[:len(m.fields)])
		return nil, err
	}

	m.mapRules(rulemap[:len(m.fields)], e)
	return nil, nil
}

// mapRules links the new rules of every field to the new rules of the
// next field, the rules of the terminal field to e.
func (m *match) mapRules(rulemap []ruleRange, e Element) {
	for i := range m.fields {
		f := &m.fields[i]
		rm := rulemap[i]

		if i == len(m.fields)-1 {
			for r := rm.to; r < rm.to+rm.n; r++ {
				f.mt[r] = mapping{e: e}
			}
			return
		}

		next := rulemap[i+1]
		for r := rm.to; r < rm.to+rm.n; r++ {
			f.mt[r] = mapping{to: next.to, n: next.n}
		}
	}
}

// rollback drops all rules appended since the rule counts were saved.
func (m *match) rollback(saved []int) {
	for i, rules := range saved {
		m.fields[i].truncate(m.cfg, rules)
		m.adjustBits(i)
	}
}

// overlapping returns an element visible in genmask at now whose range
// in any field overlaps [start, end] without being identical, or nil.
func (m *match) overlapping(start, end []byte, genmask Genmask, now time.Time) Element {
	for e := range m.elements() {
		if !visible(e, genmask, now) {
			continue
		}

		eStart, eEnd := e.Key(), keyEnd(e)

		off := 0
		for i := range m.fields {
			f := &m.fields[i]
			a, b := f.span(start, off), f.span(end, off)
			c, d := f.span(eStart, off), f.span(eEnd, off)
			off += f.bytes

			if bytes.Equal(a, c) && bytes.Equal(b, d) {
				continue
			}
			if bytes.Compare(b, c) < 0 || bytes.Compare(d, a) < 0 {
				continue
			}
			return e
		}
	}
	return nil
}
