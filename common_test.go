// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gaissmai/pipapo/internal/bitset"
)

// workLoadN to adjust loops for tests with -short
func workLoadN() int {
	if testing.Short() {
		return 100
	}
	return 1_000
}

// ip4 returns the address bytes of s.
func ip4(s string) []byte {
	return netip.MustParseAddr(s).AsSlice()
}

// port returns the big endian bytes of p.
func port(p uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, p)
}

// cat concatenates field values to a key.
func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func newTestSet(t testing.TB, fieldLen []int, opts ...Option) *Set {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithName(t.Name())}, opts...)
	s, err := New(SetDesc{FieldLen: fieldLen}, opts...)
	require.NoError(t, err)

	return s
}

func mustInsert(t testing.TB, s *Set, e Element) {
	t.Helper()

	_, err := s.Insert(e, 0)
	require.NoError(t, err)
}

// lookup in the published match, all generations, no expiration.
func lookup(s *Set, key []byte) (Element, bool) {
	return s.Lookup(key, 0, time.Time{})
}

// pendingLookup looks up key in the pending clone.
func pendingLookup(t testing.TB, s *Set, key []byte) (Element, bool) {
	t.Helper()

	e, err := s.Get(key, 0)
	if err != nil {
		require.ErrorIs(t, err, ErrNotFound)
		return nil, false
	}
	return e, true
}

// fieldRules returns the rules of f admitting the field value key.
func fieldRules(f *field, key []byte) bitset.BitSet {
	res := make(bitset.BitSet, f.bsize)
	res.SetRange(0, uint(f.rules))
	f.andBuckets(res, key)

	return res
}

// testConfig returns the default config with the given changes applied.
func testConfig(mods ...func(*Config)) Config {
	cfg := DefaultConfig()
	for _, mod := range mods {
		mod(&cfg)
	}
	return cfg
}
