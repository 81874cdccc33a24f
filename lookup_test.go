// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaissmai/pipapo/internal/bitset"
)

func TestFieldRefill(t *testing.T) {
	t.Parallel()

	f := newField(1, 4)
	f.rules = 3
	f.bsize = 1
	f.mt = []mapping{{to: 0, n: 2}, {to: 2, n: 1}, {to: 3, n: 4}}

	res := bitset.BitSet{0b101}
	fill := make(bitset.BitSet, 1)

	assert.Equal(t, 0, f.refill(res, fill))
	assert.Equal(t, bitset.BitSet{0b111_1011}, fill)
	assert.True(t, res.IsEmpty(), "res cleared")

	fill.Reset()
	assert.Equal(t, refillNone, f.refill(res, fill))

	res = bitset.BitSet{0b1000}
	assert.Equal(t, refillCorrupt, f.refill(res, fill))
}

func TestFieldFirst(t *testing.T) {
	t.Parallel()

	f := newField(1, 4)
	f.rules = 70

	res := bitset.BitSet{0, 1<<5 | 1<<3}
	assert.Equal(t, 67, f.first(res))
	assert.Equal(t, 69, f.first(res))
	assert.Equal(t, refillNone, f.first(res))

	res = bitset.BitSet{0, 1 << 10}
	assert.Equal(t, refillCorrupt, f.first(res))
}

// A stale bucket bit beyond the rule count, reached through a mapping
// slot, fails the lookup closed.
func TestLookupCorruptIndex(t *testing.T) {
	t.Parallel()

	m := NewMetrics(nil)
	s := newTestSet(t, []int{1, 1}, WithMetrics(m), WithName("corrupt"))

	e := NewElem([]byte{1, 1}, nil, "e", WithGenmask(1))
	mustInsert(t, s, e)
	s.Commit()

	pub := s.match.Load()
	f0, f1 := &pub.fields[0], &pub.fields[1]

	// rule 0 of the first field now maps to rules 0-2 of the second one,
	// rule 2 is set in every bucket but doesn't exist
	f0.mt[0].n = 3
	for b := range f1.groups << f1.bb {
		bitset.BitSet(f1.lt[b*f1.bsize : (b+1)*f1.bsize]).Set(2)
	}

	// e is visible, rule 0 is found first
	got, ok := s.Lookup([]byte{1, 1}, 0, time.Time{})
	require.True(t, ok)
	assert.Same(t, e, got)

	// e is invisible, the scan runs into rule 2
	_, ok = s.Lookup([]byte{1, 1}, 1, time.Time{})
	assert.False(t, ok)

	assert.Equal(t, int64(1), pub.corrupt.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.corrupt.WithLabelValues("corrupt")), 0)

	// the scratch is clean for the next lookup
	sc := pub.scratch.Get()
	assert.True(t, sc.res.IsEmpty())
	assert.True(t, sc.fill.IsEmpty())
	pub.scratch.Put(sc)
}

func TestLookupScratchClean(t *testing.T) {
	t.Parallel()

	s := newTestSet(t, []int{4, 2})

	for i := range 100 {
		mustInsert(t, s, NewElem(
			cat(ip4("10.0.0.0"), port(uint16(i))),
			cat(ip4("10.0.255.255"), port(uint16(i))), i))
	}
	s.Commit()

	m := s.match.Load()
	keys := [][]byte{
		cat(ip4("10.0.3.4"), port(42)),  // match
		cat(ip4("10.0.3.4"), port(142)), // miss in the second field
		cat(ip4("10.1.3.4"), port(42)),  // miss in the first field
	}

	for _, key := range keys {
		for range 10 {
			m.lookup(key, 0, time.Time{})
		}

		for i := range m.scratch.slots {
			sc := &m.scratch.slots[i]
			assert.Len(t, sc.res, m.bsizeMax)
			assert.True(t, sc.res.IsEmpty(), "%x slot %d", key, i)
			assert.True(t, sc.fill.IsEmpty(), "%x slot %d", key, i)
		}
	}

	live, total := m.scratch.Stats()
	assert.Equal(t, int64(0), live)
	assert.Equal(t, int64(scratchSlots()), total)
}

// not parallel, allocations are counted process wide
func TestLookupNoAllocAfterGC(t *testing.T) {
	s := newTestSet(t, []int{4, 2})

	for i := range 300 {
		mustInsert(t, s, NewElem(
			cat(ip4("10.0.0.0"), port(uint16(i))),
			cat(ip4("10.0.255.255"), port(uint16(i))), i))
	}
	s.Commit()

	key := cat(ip4("10.0.3.4"), port(42))
	_, ok := s.Lookup(key, 0, time.Time{})
	require.True(t, ok)

	lookup := func() { s.Lookup(key, 0, time.Time{}) }
	assert.Zero(t, testing.AllocsPerRun(100, lookup))

	// the scratches must not depend on anything the collector reclaims
	gcOnly := testing.AllocsPerRun(20, func() {
		runtime.GC()
	})
	gcLookup := testing.AllocsPerRun(20, func() {
		runtime.GC()
		lookup()
	})
	assert.LessOrEqual(t, gcLookup, gcOnly+1)
}
