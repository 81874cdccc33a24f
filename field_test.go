// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaissmai/pipapo/internal/bitset"
	"github.com/gaissmai/pipapo/internal/tests/random"
)

// insertRange expands [start, end] into f and returns the rule count.
func insertRange(t testing.TB, cfg *Config, f *field, start, end []byte) int {
	t.Helper()

	n, err := expand(start, end, func(base []byte, bits int) error {
		_, err := f.insert(cfg, base, bits)
		return err
	})
	require.NoError(t, err)

	return n
}

// bucketsWith returns the buckets of group g holding rule.
func bucketsWith(f *field, g, rule int) []int {
	var bs []int
	for b := range f.buckets() {
		if f.bucket(g, b).Test(uint(rule)) {
			bs = append(bs, b)
		}
	}
	return bs
}

func TestFieldGroupValue(t *testing.T) {
	t.Parallel()

	key := []byte{0xab, 0xcd}

	f4 := newField(2, 4)
	assert.Equal(t, 4, f4.groups)
	assert.Equal(t, []int{0xa, 0xb, 0xc, 0xd}, []int{
		f4.groupValue(key, 0), f4.groupValue(key, 1), f4.groupValue(key, 2), f4.groupValue(key, 3),
	})

	f8 := newField(2, 8)
	assert.Equal(t, 2, f8.groups)
	assert.Equal(t, []int{0xab, 0xcd}, []int{f8.groupValue(key, 0), f8.groupValue(key, 1)})
}

func TestFieldInsertBuckets(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	f := newField(2, 4)

	// exact
	r0, err := f.insert(&cfg, []byte{0x12, 0x34}, 16)
	require.NoError(t, err)
	assert.Equal(t, 0, r0)

	// netmask ends within group 2: 0x56 0x4_/10 admits the nibble values 0x4-0x7
	r1, err := f.insert(&cfg, []byte{0x56, 0x40}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, r1)

	// wildcard
	r2, err := f.insert(&cfg, []byte{0, 0}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, r2)

	assert.Equal(t, 3, f.rules)
	assert.Equal(t, 1, f.bsize)

	assert.Equal(t, []int{0x1}, bucketsWith(&f, 0, r0))
	assert.Equal(t, []int{0x4}, bucketsWith(&f, 3, r0))

	assert.Equal(t, []int{0x5}, bucketsWith(&f, 0, r1))
	assert.Equal(t, []int{0x6}, bucketsWith(&f, 1, r1))
	assert.Equal(t, []int{0x4, 0x5, 0x6, 0x7}, bucketsWith(&f, 2, r1))
	assert.Len(t, bucketsWith(&f, 3, r1), 16)

	for g := range f.groups {
		assert.Len(t, bucketsWith(&f, g, r2), 16)
	}

	// rules admitting 0x5678
	assert.Equal(t, bitset.BitSet{0b110}, fieldRules(&f, []byte{0x56, 0x78}))
}

func TestFieldResize(t *testing.T) {
	t.Parallel()

	cfg := testConfig(func(c *Config) { c.RuleMargin = 16 })
	f := newField(1, 4)

	for i := range 64 {
		_, err := f.insert(&cfg, []byte{byte(i)}, 8)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.bsize)
	assert.GreaterOrEqual(t, f.capacity(), 64)

	// the 65th rule needs a second word per bucket, all bits survive
	_, err := f.insert(&cfg, []byte{64}, 8)
	require.NoError(t, err)
	assert.Equal(t, 2, f.bsize)
	assert.Equal(t, 2*16*2, len(f.lt))

	for i := range 65 {
		res := fieldRules(&f, []byte{byte(i)})
		assert.Equal(t, []uint{uint(i)}, slices.Collect(res.All()), "value %d", i)
	}

	// shrink the mapping table only with enough slack
	capacity := f.capacity()
	f.truncate(&cfg, 60)
	assert.Equal(t, capacity, f.capacity())
	assert.Equal(t, 1, f.bsize)

	f.truncate(&cfg, 10)
	assert.Equal(t, 10+cfg.RuleMargin, f.capacity())

	f.truncate(&cfg, 0)
	assert.Equal(t, 0, f.capacity())
	assert.Equal(t, 0, f.bsize)
	assert.Empty(t, f.lt)
}

func TestFieldResizeLimits(t *testing.T) {
	t.Parallel()

	cfg := testConfig(func(c *Config) { c.MaxRules = 3 })
	f := newField(1, 4)

	for i := range 2 {
		_, err := f.insert(&cfg, []byte{byte(i)}, 8)
		require.NoError(t, err)
	}
	_, err := f.insert(&cfg, []byte{2}, 8)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, 2, f.rules)

	// one 4-bit field of one byte has 32 buckets, a word each
	cfg = testConfig(func(c *Config) { c.MaxTableBytes = 32 * 8; c.RuleMargin = 0 })
	f = newField(1, 4)

	for i := range 8 {
		_, err := f.insert(&cfg, []byte{byte(i)}, 8)
		require.NoError(t, err)
	}
	_, err = f.insert(&cfg, []byte{8}, 8)
	require.ErrorIs(t, err, ErrAlloc)
	assert.Equal(t, 8, f.rules)
	assert.Equal(t, 8, f.capacity())
}

func TestFieldRegroupRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	prng := rand.New(rand.NewPCG(1, 2))

	f := newField(2, 4)
	for range 30 {
		start, end := random.FieldRange(prng, 2)
		insertRange(t, &cfg, &f, start, end)
	}

	orig, err := f.clone(&cfg)
	require.NoError(t, err)

	want := make([]bitset.BitSet, 1<<16)
	for k := range want {
		want[k] = fieldRules(&f, port(uint16(k)))
	}

	require.NoError(t, f.regroup(&cfg, 8))
	assert.Equal(t, 8, f.bb)
	assert.Equal(t, 2, f.groups)
	assert.Equal(t, 2*256*f.bsize, len(f.lt))

	for k := range want {
		if got := fieldRules(&f, port(uint16(k))); !slices.Equal(want[k], got) {
			t.Fatalf("8-bit groups, key %04x: rules %v, want %v", k, got, want[k])
		}
	}

	require.NoError(t, f.regroup(&cfg, 4))
	assert.Equal(t, 4, f.bb)
	assert.Equal(t, 4, f.groups)

	// netmask rules survive the round trip bit by bit
	assert.Equal(t, orig.lt, f.lt)
}

func TestFieldRegroupTarget(t *testing.T) {
	t.Parallel()

	cfg := testConfig(func(c *Config) {
		c.SizeHigh = 4 << 10
		c.SizeLow = 2 << 10
	})

	f := newField(4, 4)
	assert.Equal(t, 0, f.regroupTarget(&cfg))

	// 8 groups * 16 buckets * 8 bytes per word
	f.bsize = 4
	assert.Equal(t, 0, f.regroupTarget(&cfg), "4 KiB is not above SizeHigh")
	f.bsize = 5
	assert.Equal(t, 8, f.regroupTarget(&cfg))

	// 4 groups * 256 buckets * 8 bytes per word
	f.bb, f.groups = 8, 4
	assert.Equal(t, 0, f.regroupTarget(&cfg))
	f.bsize = 0
	assert.Equal(t, 4, f.regroupTarget(&cfg))

	// regrouping disabled
	cfg.RegroupBits = cfg.GroupBits
	assert.Equal(t, 0, f.regroupTarget(&cfg))
}

func TestFieldBoundaries(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	for _, bb := range []int{4, 8} {
		f := newField(4, bb)

		n := insertRange(t, &cfg, &f, ip4("192.168.1.0"), ip4("192.168.2.1"))
		require.Equal(t, 2, n)

		left, right, maskLen := f.boundaries(0, n)
		assert.Equal(t, ip4("192.168.1.0"), left, "bb %d", bb)
		assert.Equal(t, ip4("192.168.2.1"), right, "bb %d", bb)
		assert.Equal(t, 24, maskLen, "bb %d", bb)

		assert.True(t, f.matchField(0, n, ip4("192.168.1.0"), ip4("192.168.2.1")))
		assert.False(t, f.matchField(0, n, ip4("192.168.1.0"), ip4("192.168.2.3")))
		assert.False(t, f.matchField(0, 1, ip4("192.168.1.0"), ip4("192.168.2.1")))
	}
}

func TestFieldBoundariesRandom(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	prng := rand.New(rand.NewPCG(7, 7))

	for _, bb := range []int{4, 8} {
		f := newField(4, bb)

		for range 200 {
			start, end := random.FieldRange(prng, 4)
			masks, err := ExpandRange(start, end)
			require.NoError(t, err)

			first := f.rules
			n := insertRange(t, &cfg, &f, start, end)

			left, right, maskLen := f.boundaries(first, n)
			require.Equal(t, start, left)
			require.Equal(t, end, right)
			require.Equal(t, masks[0].Bits, maskLen)
		}
	}
}

func TestFieldUnmap(t *testing.T) {
	t.Parallel()

	f := newField(1, 4)
	f.rules = 5
	f.mt = []mapping{{0, 1, nil}, {1, 2, nil}, {1, 2, nil}, {3, 1, nil}, {4, 3, nil}, {}}

	// drop rules 1 and 2, pointing to two rules of the next field
	f.unmap(1, 2, 2, false)

	assert.Equal(t, []mapping{{0, 1, nil}, {1, 1, nil}, {2, 3, nil}, {}, {}, {}}, f.mt)
}

func TestFieldRulesSameKey(t *testing.T) {
	t.Parallel()

	a, b := NewElem([]byte{1}, nil, nil), NewElem([]byte{2}, nil, nil)

	f := newField(1, 4)
	f.rules = 4
	f.mt = []mapping{{e: a}, {e: a}, {e: a}, {e: b}}

	assert.Equal(t, 3, f.rulesSameKey(0))
	assert.Equal(t, 2, f.rulesSameKey(1))
	assert.Equal(t, 1, f.rulesSameKey(3))
	assert.Equal(t, 0, f.rulesSameKey(4))
}
