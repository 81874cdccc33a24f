// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"math"
	"math/bits"
)

// Features are the set capabilities a caller asks for.
type Features uint32

const (
	FeatureInterval Features = 1 << iota // entries are ranges
	FeatureMap                           // elements carry a value
	FeatureObject                        // elements reference an object
	FeatureTimeout                       // elements expire
	FeatureConcat                        // keys are concatenations of fields
)

// supported are the features a set can provide.
const supported = FeatureInterval | FeatureMap | FeatureObject | FeatureTimeout | FeatureConcat

// minEstimateFields is the minimum field count this set type is
// recommended for, single field ranges are better served by a tree.
const minEstimateFields = 2

// Class is an asymptotic cost class.
type Class int

const (
	ClassO1 Class = iota
	ClassOLogN
	ClassON
)

func (c Class) String() string {
	switch c {
	case ClassO1:
		return "O(1)"
	case ClassOLogN:
		return "O(log n)"
	case ClassON:
		return "O(n)"
	}
	return "unknown"
}

// SetEstimate is the expected footprint and the cost classes of a set.
type SetEstimate struct {
	Size   uint64 `json:"size"`
	Lookup Class  `json:"lookup"`
	Space  Class  `json:"space"`
}

// fixed overhead of a set, its two matches and a field
const (
	estSetBytes   = 256
	estMatchBytes = 128
	estFieldBytes = 96
)

// Estimate reports whether a set for desc and features is a good choice
// and the expected memory footprint for desc.Size elements.
//
// Every field of n bits expands to about 2*log2(n) rules per entry in
// the worst case, each rule taking one bit per bucket of every group and
// a mapping slot.
func Estimate(desc SetDesc, features Features) (SetEstimate, bool) {
	if features&FeatureInterval == 0 || features&^supported != 0 {
		return SetEstimate{}, false
	}

	fl, err := desc.fieldLen()
	if err != nil || len(fl) < minEstimateFields || desc.Size < 0 {
		return SetEstimate{}, false
	}

	size, ok := estimateSize(fl, uint64(desc.Size))
	if !ok {
		return SetEstimate{}, false
	}

	return SetEstimate{
		Size:   size,
		Lookup: ClassOLogN,
		Space:  ClassON,
	}, true
}

// estimateSize sizes the lookup tables for the widest group width a
// field may switch to, every group holding one bucket bit per rule.
func estimateSize(fieldLen []int, elems uint64) (uint64, bool) {
	cfg := DefaultConfig()
	bb := max(cfg.GroupBits, cfg.RegroupBits)

	var entry uint64
	for _, n := range fieldLen {
		rules := uint64(bits.Len(uint(n*8))-1) * 2
		groups := uint64(n * 8 / bb)

		entry += rules * groups * (1 << bb) / 8
		entry += rules * mapSlotBytes
	}

	hi, size := bits.Mul64(elems, entry)
	if hi != 0 {
		return 0, false
	}

	overhead := uint64(estSetBytes + 2*estMatchBytes + estFieldBytes*len(fieldLen))
	if size > math.MaxUint64-overhead {
		return 0, false
	}
	return size + overhead, true
}
