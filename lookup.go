// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"time"

	"github.com/gaissmai/pipapo/internal/bitset"
)

const (
	refillNone    = -1 // no rule matched
	refillCorrupt = -2 // rule index beyond the rule count
)

// refill propagates the rules in res to the next field: for every set bit
// the rule range of its mapping slot is set in fill. The scanned words of
// res are cleared.
//
// It returns 0, refillNone if res is empty or refillCorrupt if res
// holds a bit beyond the rules of f.
func (f *field) refill(res, fill bitset.BitSet) int {
	ret := refillNone

	for i, ok := res.NextSet(0); ok; i, ok = res.NextSet(i + 1) {
		if i >= uint(f.rules) {
			return refillCorrupt
		}

		mt := f.mt[i]
		fill.SetRange(uint(mt.to), uint(mt.n))
		ret = 0
	}
	res.Reset()

	return ret
}

// first returns the lowest rule in res and clears its bit. It returns
// refillNone if res is empty or refillCorrupt for a bit beyond the rules.
func (f *field) first(res bitset.BitSet) int {
	i, ok := res.NextSet(0)
	if !ok {
		return refillNone
	}
	if i >= uint(f.rules) {
		return refillCorrupt
	}

	res.Clear(i)
	return int(i)
}

// lookup returns the first element matching key, visible in genmask and
// not expired at now. It never allocates, the scratches are provisioned
// on the control path.
//
// The result bitmap starts with all rules of the first field. Per field
// it's intersected with the buckets selected by the key, then every
// remaining rule selects its range of rules in the next field.
// The rules left in the terminal field map to the candidate elements.
func (m *match) lookup(key []byte, genmask Genmask, now time.Time) (Element, bool) {
	s := m.scratch.Get()
	res, fill := s.res, s.fill

	res.SetRange(0, uint(m.fields[0].rules))

	off := 0
	for i := range m.fields {
		f := &m.fields[i]
		cur := res[:f.bsize]

		f.andBuckets(cur, f.span(key, off))
		off += f.bytes

		if i == len(m.fields)-1 {
			for {
				r := f.first(cur)
				if r == refillCorrupt {
					return m.lookupCorrupt(s)
				}
				if r == refillNone {
					m.scratch.Put(s)
					return nil, false
				}

				if e := f.mt[r].e; visible(e, genmask, now) {
					cur.Reset()
					m.scratch.Put(s)
					return e, true
				}
			}
		}

		switch f.refill(cur, fill[:m.fields[i+1].bsize]) {
		case refillCorrupt:
			return m.lookupCorrupt(s)
		case refillNone:
			m.scratch.Put(s)
			return nil, false
		}

		res, fill = fill, res
	}

	// not reached, the terminal field returns
	m.scratch.Put(s)
	return nil, false
}

// lookupCorrupt fails a lookup closed on a corrupt rule index.
func (m *match) lookupCorrupt(s *scratch) (Element, bool) {
	m.corrupt.Add(1)
	m.metrics.corruptIndex()

	s.res.Reset()
	s.fill.Reset()
	m.scratch.Put(s)

	return nil, false
}
