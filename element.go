// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"
)

// Genmask selects one or more generations, see [Generation].
// A set bit in an element's genmask means the element is inactive in
// that generation. The zero Genmask selects no generation, every
// element is active for it.
type Genmask uint8

// Generation is the generation cursor of a set owner. Changes are staged
// in the next generation and become current with Flip after commit.
type Generation struct {
	cursor atomic.Uint32
}

// Cur returns the genmask of the current generation.
func (g *Generation) Cur() Genmask {
	return 1 << (g.cursor.Load() & 1)
}

// Next returns the genmask of the next generation.
func (g *Generation) Next() Genmask {
	return 1 << ((g.cursor.Load() + 1) & 1)
}

// Flip makes the next generation the current one.
func (g *Generation) Flip() {
	g.cursor.Add(1)
}

// Element is the reference stored for a set entry.
//
// Elements are owned by the caller, the set only stores them and
// compares them for identity, so implementations must be comparable,
// usually pointer types.
//
// Key and KeyEnd return the concatenated field values of the start and
// the end of the entry. KeyEnd returns nil for entries without a range.
// Both must not change while the element is in a set.
type Element interface {
	Key() []byte
	KeyEnd() []byte

	// Active reports whether the element is active in the generations
	// of genmask.
	Active(genmask Genmask) bool

	// Expired reports whether the element timed out at now.
	Expired(now time.Time) bool

	// Activate clears the inactive bits of genmask.
	Activate(genmask Genmask)

	// ChangeActive toggles the inactive bits of genmask.
	ChangeActive(genmask Genmask)
}

// keyEnd returns the end key of e, the start key for single value entries.
func keyEnd(e Element) []byte {
	if end := e.KeyEnd(); end != nil {
		return end
	}
	return e.Key()
}

// visible reports whether e is neither expired at now nor inactive in genmask.
func visible(e Element, genmask Genmask, now time.Time) bool {
	return !e.Expired(now) && e.Active(genmask)
}

// Elem is a ready to use [Element] carrying an arbitrary value.
type Elem struct {
	key     []byte
	keyEnd  []byte
	expires time.Time
	genmask atomic.Uint32

	// Value is the payload, e.g. a verdict or a map target.
	Value any
}

// ElemOption configures an [Elem].
type ElemOption func(*Elem)

// WithExpiration sets the time the element times out.
func WithExpiration(t time.Time) ElemOption {
	return func(e *Elem) {
		e.expires = t
	}
}

// WithGenmask sets the initial inactive generations, usually the
// current generation for elements added in a transaction.
func WithGenmask(genmask Genmask) ElemOption {
	return func(e *Elem) {
		e.genmask.Store(uint32(genmask))
	}
}

// NewElem returns an element for the entry [key, keyEnd]. keyEnd may be
// nil for single value entries. The key slices are copied.
func NewElem(key, keyEnd []byte, value any, opts ...ElemOption) *Elem {
	e := &Elem{
		key:   bytes.Clone(key),
		Value: value,
	}
	if keyEnd != nil {
		e.keyEnd = bytes.Clone(keyEnd)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key implements [Element].
func (e *Elem) Key() []byte { return e.key }

// KeyEnd implements [Element].
func (e *Elem) KeyEnd() []byte { return e.keyEnd }

// Expiration returns the expiration time, the zero time if the element
// never expires.
func (e *Elem) Expiration() time.Time { return e.expires }

// Active implements [Element].
func (e *Elem) Active(genmask Genmask) bool {
	return Genmask(e.genmask.Load())&genmask == 0
}

// Expired implements [Element].
func (e *Elem) Expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Activate implements [Element].
func (e *Elem) Activate(genmask Genmask) {
	for {
		old := e.genmask.Load()
		if e.genmask.CompareAndSwap(old, old&^uint32(genmask)) {
			return
		}
	}
}

// ChangeActive implements [Element].
func (e *Elem) ChangeActive(genmask Genmask) {
	for {
		old := e.genmask.Load()
		if e.genmask.CompareAndSwap(old, old^uint32(genmask)) {
			return
		}
	}
}

// String returns the key range in hex and the value.
func (e *Elem) String() string {
	if e.keyEnd == nil {
		return fmt.Sprintf("%x: %v", e.key, e.Value)
	}
	return fmt.Sprintf("%x-%x: %v", e.key, e.keyEnd, e.Value)
}
