// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"fmt"
	"io"
	"strings"

	"github.com/gaissmai/pipapo/internal/bitset"
)

// Dump writes the lookup and mapping tables of the pending clone, or of
// the published match if there is none, to w.
func (s *Set) Dump(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.clone
	if m == nil {
		m = s.match.Load()
	}
	m.dump(w)
}

// dumpString is just a wrapper for dump.
func (m *match) dumpString() string {
	w := new(strings.Builder)
	m.dump(w)

	return w.String()
}

// dump all fields of m to w.
func (m *match) dump(w io.Writer) {
	if m == nil {
		return
	}

	fmt.Fprintf(w, "### match: fields(%d), key(%d)\n", len(m.fields), m.keyLen)

	last := len(m.fields) - 1
	for i := range m.fields {
		m.fields[i].dump(w, i, i == last)
	}
}

// dump the buckets and mapping slots of f to w, empty buckets are skipped.
// Slot capacity isn't part of the dump, it depends on the history of f.
func (f *field) dump(w io.Writer, i int, last bool) {
	fmt.Fprintf(w, "\n[field %d] bytes: %d groups: %d bits: %d bsize: %d rules: %d\n",
		i, f.bytes, f.groups, f.bb, f.bsize, f.rules)

	if f.rules == 0 {
		return
	}

	for g := range f.groups {
		for b := range f.buckets() {
			bucket := f.bucket(g, b)
			if bucket.IsEmpty() {
				continue
			}
			fmt.Fprintf(w, "  g%02d/%02x: %s\n", g, b, ruleList(bucket))
		}
	}

	fmt.Fprint(w, "  mt:")
	for r := range f.rules {
		mt := f.mt[r]
		if last {
			fmt.Fprintf(w, " %d->%v", r, mt.e)
			continue
		}
		fmt.Fprintf(w, " %d->%d+%d", r, mt.to, mt.n)
	}
	fmt.Fprintln(w)
}

// ruleList formats the rules in b as ranges, e.g. "0-3,7".
func ruleList(b bitset.BitSet) string {
	var sb strings.Builder

	first, prev := -1, -1
	flush := func() {
		if first < 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		if first == prev {
			fmt.Fprintf(&sb, "%d", first)
			return
		}
		fmt.Fprintf(&sb, "%d-%d", first, prev)
	}

	for r := range b.All() {
		if int(r) != prev+1 || first < 0 {
			flush()
			first = int(r)
		}
		prev = int(r)
	}
	flush()

	return sb.String()
}
