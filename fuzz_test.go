package pipapo

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/gaissmai/pipapo/internal/golden"
	"github.com/gaissmai/pipapo/internal/tests/random"
)

func FuzzExpandRange(f *testing.F) {
	f.Add([]byte{192, 168, 1, 0}, []byte{192, 168, 2, 1})
	f.Add([]byte{0, 0}, []byte{0xff, 0xff})
	f.Add([]byte{0x04, 0x00}, []byte{0xff, 0xff})
	f.Add([]byte{7}, []byte{7})

	f.Fuzz(func(t *testing.T, start, end []byte) {
		if len(start) != len(end) || len(start) == 0 || len(start) > MaxFieldBytes {
			t.Skip("length")
		}
		if bytes.Compare(start, end) > 0 {
			start, end = end, start
		}

		masks, err := ExpandRange(start, end)
		if err != nil {
			t.Fatal(err)
		}

		width := len(start) * 8
		if len(masks) == 0 || len(masks) > 2*width {
			t.Fatalf("%x-%x: %d netmasks", start, end, len(masks))
		}

		// the netmasks are adjacent, starting at start and ending at end
		next := bytes.Clone(start)
		for i, m := range masks {
			if !bytes.Equal(m.Base, next) {
				t.Fatalf("%x-%x: netmask %d starts at %x, want %x", start, end, i, m.Base, next)
			}

			last := bytes.Clone(m.Base)
			for b := m.Bits; b < width; b++ {
				last[b/8] |= 0x80 >> (b % 8)
			}

			if i == len(masks)-1 {
				if !bytes.Equal(last, end) {
					t.Fatalf("%x-%x: last netmask ends at %x", start, end, last)
				}
				break
			}

			// next = last + 1
			copy(next, last)
			for j := len(next) - 1; j >= 0; j-- {
				next[j]++
				if next[j] != 0 {
					break
				}
			}
		}
	})
}

func FuzzSetGolden(f *testing.F) {
	f.Add(uint64(12345), 50)
	f.Add(uint64(67890), 150)
	f.Add(uint64(0), 8)

	f.Fuzz(func(t *testing.T, seed uint64, n int) {
		if n < 1 || n > 300 {
			t.Skip("bounds")
		}

		prng := rand.New(rand.NewPCG(seed, 13))
		fl := []int{4, 2, 1}

		s, err := New(SetDesc{FieldLen: fl})
		if err != nil {
			t.Fatal(err)
		}
		gold := golden.New[Element](fl...)

		for _, r := range random.Entries(prng, fl, n, 8) {
			e := NewElem(r.Start, r.End, nil)
			if _, err := s.Insert(e, 0); err != nil {
				t.Fatalf("insert %v: %v", e, err)
			}
			gold.Insert(r.Start, r.End, e)
		}
		s.Commit()

		checkGolden(t, prng, s, gold)
	})
}
