// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"

	"github.com/pkg/errors"
)

// Netmask is a value with its leading Bits significant, the remaining
// low order bits are wildcards.
type Netmask struct {
	Base []byte
	Bits int
}

// ExpandRange returns the minimal ordered list of netmasks covering
// exactly the byte range [start, end].
func ExpandRange(start, end []byte) ([]Netmask, error) {
	if len(start) != len(end) || len(start) == 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "length %d/%d", len(start), len(end))
	}
	if bytes.Compare(start, end) > 0 {
		return nil, errors.Wrapf(ErrInvalidRange, "start %x > end %x", start, end)
	}

	var masks []Netmask
	_, err := expand(start, end, func(base []byte, bits int) error {
		masks = append(masks, Netmask{Base: bytes.Clone(base), Bits: bits})
		return nil
	})
	return masks, err
}

// expand calls fn for every netmask of the minimal cover of [start, end]
// and returns the number of netmasks. The caller ensures start <= end.
//
// Starting at base = start, the widest netmask at base not exceeding end
// is emitted, then base advances past it, until base passes end.
func expand(start, end []byte, fn func(base []byte, bits int) error) (int, error) {
	var buf [MaxFieldBytes]byte

	width := len(start) * 8
	base := buf[:len(start)]
	copy(base, start)

	if bytes.Equal(start, end) {
		return 1, fn(base, width)
	}

	masks := 0
	for bytes.Compare(base, end) <= 0 {
		step := 0
		for bitClear(base, step) && !stepAfterEnd(base, end, step) {
			step++
			if step >= width {
				// the range spans the whole field
				if masks == 0 {
					if err := fn(base, 0); err != nil {
						return masks, err
					}
					masks = 1
				}
				return masks, nil
			}
		}

		if err := fn(base, width-step); err != nil {
			return masks, err
		}
		masks++

		if baseSum(base, step) {
			break
		}
	}

	return masks, nil
}

// bitClear reports whether bit i, counted from the least significant
// bit of the big endian value b, is zero.
func bitClear(b []byte, i int) bool {
	return b[len(b)-1-i/8]&(1<<(i%8)) == 0
}

// stepAfterEnd reports whether base with bits 0..step set exceeds end.
func stepAfterEnd(base, end []byte, step int) bool {
	var buf [MaxFieldBytes]byte
	tmp := buf[:len(base)]
	copy(tmp, base)

	for i := 0; i <= step; i++ {
		tmp[len(tmp)-1-i/8] |= 1 << (i % 8)
	}

	return bytes.Compare(tmp, end) > 0
}

// baseSum adds 1<<step to the big endian value base and reports
// whether the addition overflowed.
func baseSum(base []byte, step int) bool {
	i := len(base) - 1 - step/8
	carry := uint(1) << (step % 8)

	for ; i >= 0 && carry != 0; i-- {
		sum := uint(base[i]) + carry
		base[i] = byte(sum)
		carry = sum >> 8
	}

	return carry != 0
}
