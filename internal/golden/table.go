// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package golden provides a simple and slow multi-field range classifier
// as a golden reference for pipapo.
package golden

import (
	"bytes"
	"fmt"
	"slices"
)

// Table is a slice of entries, matched by comparing every field of the
// key against the entry range.
type Table[V any] struct {
	FieldLen []int
	Items    []Item[V]
}

// Item is a multi-field range with a value, Start and End are the
// concatenated field values.
type Item[V any] struct {
	Start []byte
	End   []byte
	Val   V
}

func (i Item[V]) String() string {
	if bytes.Equal(i.Start, i.End) {
		return fmt.Sprintf("(%x, %v)", i.Start, i.Val)
	}
	return fmt.Sprintf("(%x-%x, %v)", i.Start, i.End, i.Val)
}

// New returns an empty table for keys with the given field lengths.
func New[V any](fieldLen ...int) *Table[V] {
	return &Table[V]{FieldLen: slices.Clone(fieldLen)}
}

// Len returns the number of entries.
func (t *Table[V]) Len() int {
	return len(t.Items)
}

// Insert adds the range, an identical range gets the new value.
func (t *Table[V]) Insert(start, end []byte, val V) {
	for i, item := range t.Items {
		if bytes.Equal(item.Start, start) && bytes.Equal(item.End, end) {
			t.Items[i].Val = val // de-dupe
			return
		}
	}
	t.Items = append(t.Items, Item[V]{bytes.Clone(start), bytes.Clone(end), val})
}

// Delete removes the range and reports whether it existed.
func (t *Table[V]) Delete(start, end []byte) (exists bool) {
	for i, item := range t.Items {
		if bytes.Equal(item.Start, start) && bytes.Equal(item.End, end) {
			t.Items = slices.Delete(t.Items, i, i+1)
			return true
		}
	}
	return false
}

// Lookup returns the value of the first entry containing key in all fields.
func (t *Table[V]) Lookup(key []byte) (val V, ok bool) {
	for _, item := range t.Items {
		if t.contains(item, key) {
			return item.Val, true
		}
	}
	return val, false
}

func (t *Table[V]) contains(item Item[V], key []byte) bool {
	off := 0
	for _, n := range t.FieldLen {
		k := key[off : off+n]
		if bytes.Compare(k, item.Start[off:off+n]) < 0 || bytes.Compare(k, item.End[off:off+n]) > 0 {
			return false
		}
		off += n
	}
	return true
}

// Overlaps reports whether any entry has a range overlapping [start, end]
// in some field without being identical to it.
func (t *Table[V]) Overlaps(start, end []byte) bool {
	for _, item := range t.Items {
		off := 0
		for _, n := range t.FieldLen {
			a, b := start[off:off+n], end[off:off+n]
			c, d := item.Start[off:off+n], item.End[off:off+n]
			off += n

			if bytes.Equal(a, c) && bytes.Equal(b, d) {
				continue
			}
			if bytes.Compare(b, c) < 0 || bytes.Compare(d, a) < 0 {
				continue
			}
			return true
		}
	}
	return false
}

// Sort, inplace by start and end key.
func (t *Table[V]) Sort() {
	slices.SortFunc(t.Items, func(a, b Item[V]) int {
		if c := bytes.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return bytes.Compare(a.End, b.End)
	})
}
