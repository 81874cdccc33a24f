// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package random

import (
	"bytes"
	"math/rand/v2"
	"testing"
)

func TestFieldRange(t *testing.T) {
	prng := rand.New(rand.NewPCG(0, 0))

	for range 100 {
		start, end := FieldRange(prng, 4)

		if len(start) != 4 || len(end) != 4 {
			t.Fatalf("wrong length: %x-%x", start, end)
		}
		if bytes.Compare(start, end) > 0 {
			t.Errorf("start > end: %x-%x", start, end)
		}
	}
}

func TestDisjoint(t *testing.T) {
	prng := rand.New(rand.NewPCG(0, 0))

	for _, n := range []int{1, 2, 4, 16} {
		ranges := Disjoint(prng, n, 50)
		if len(ranges) == 0 {
			t.Fatalf("n=%d: no ranges", n)
		}

		for i, r := range ranges {
			if bytes.Compare(r.Start, r.End) > 0 {
				t.Errorf("n=%d: start > end: %x-%x", n, r.Start, r.End)
			}
			if i > 0 && bytes.Compare(ranges[i-1].End, r.Start) >= 0 {
				t.Errorf("n=%d: ranges overlap: %x-%x and %x-%x",
					n, ranges[i-1].Start, ranges[i-1].End, r.Start, r.End)
			}
		}
	}
}

func TestEntries(t *testing.T) {
	prng := rand.New(rand.NewPCG(0, 0))
	fieldLen := []int{4, 2}

	entries := Entries(prng, fieldLen, 200, 20)
	if len(entries) == 0 {
		t.Fatal("no entries")
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		id := string(e.Start) + string(e.End)
		if seen[id] {
			t.Errorf("duplicate entry %x-%x", e.Start, e.End)
		}
		seen[id] = true
	}

	// per field identical or disjoint
	for i, a := range entries {
		for _, b := range entries[i+1:] {
			off := 0
			for _, n := range fieldLen {
				as, ae := a.Start[off:off+n], a.End[off:off+n]
				bs, be := b.Start[off:off+n], b.End[off:off+n]
				off += n

				identical := bytes.Equal(as, bs) && bytes.Equal(ae, be)
				disjoint := bytes.Compare(ae, bs) < 0 || bytes.Compare(be, as) < 0
				if !identical && !disjoint {
					t.Fatalf("partial overlap: %x-%x and %x-%x", a.Start, a.End, b.Start, b.End)
				}
			}
		}
	}
}

func TestInside(t *testing.T) {
	prng := rand.New(rand.NewPCG(0, 0))
	fieldLen := []int{2, 1}

	for _, r := range Entries(prng, fieldLen, 50, 10) {
		for range 10 {
			key := Inside(prng, fieldLen, r)

			off := 0
			for _, n := range fieldLen {
				k := key[off : off+n]
				if bytes.Compare(k, r.Start[off:off+n]) < 0 || bytes.Compare(k, r.End[off:off+n]) > 0 {
					t.Fatalf("key %x outside of %x-%x", key, r.Start, r.End)
				}
				off += n
			}
		}
	}
}

func TestDeterministicWithSameSeed(t *testing.T) {
	a := Entries(rand.New(rand.NewPCG(42, 42)), []int{4}, 20, 30)
	b := Entries(rand.New(rand.NewPCG(42, 42)), []int{4}, 20, 30)

	if len(a) != len(b) {
		t.Fatalf("different lengths %d, %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i].Start, b[i].Start) || !bytes.Equal(a[i].End, b[i].End) {
			t.Errorf("entry %d differs", i)
		}
	}
}
