// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitset

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

// randomSet returns a set of n bits with about a quarter of them set.
func randomSet(prng *rand.Rand, n int) BitSet {
	b := make(BitSet, WordsNeeded(n))
	for range n / 4 {
		b.Set(uint(prng.IntN(n)))
	}
	return b
}

var benchSizes = []int{64, 512, 4096, 32768}

func BenchmarkBitSetInPlace(b *testing.B) {
	prng := rand.New(rand.NewPCG(42, 42))

	for _, n := range benchSizes {
		bs := randomSet(prng, n)
		cs := randomSet(prng, n)

		b.Run(fmt.Sprintf("Intersection/%d", n), func(b *testing.B) {
			for range b.N {
				bs.InPlaceIntersection(cs)
			}
		})

		b.Run(fmt.Sprintf("Union/%d", n), func(b *testing.B) {
			for range b.N {
				bs.InPlaceUnion(cs)
			}
		})
	}
}

func BenchmarkBitSetCut(b *testing.B) {
	prng := rand.New(rand.NewPCG(42, 42))

	for _, n := range benchSizes {
		bs := randomSet(prng, n)
		first := uint(n / 3)

		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			for range b.N {
				bs.Cut(first, 7)
			}
		})
	}
}

func BenchmarkBitSetSetRange(b *testing.B) {
	for _, n := range benchSizes {
		bs := make(BitSet, WordsNeeded(n))

		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			for range b.N {
				bs.SetRange(1, uint(n-2))
				bs.Reset()
			}
		})
	}
}

func BenchmarkBitSetNextSet(b *testing.B) {
	prng := rand.New(rand.NewPCG(42, 42))

	for _, n := range benchSizes {
		bs := randomSet(prng, n)

		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			for range b.N {
				for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
					_ = i
				}
			}
		})
	}
}

func BenchmarkBitSetAll(b *testing.B) {
	prng := rand.New(rand.NewPCG(42, 42))

	for _, n := range benchSizes {
		bs := randomSet(prng, n)

		b.Run(fmt.Sprintf("%d", n), func(b *testing.B) {
			for range b.N {
				for i := range bs.All() {
					_ = i
				}
			}
		})
	}
}
