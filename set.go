// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"bytes"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SetDesc describes the key layout of a set.
type SetDesc struct {
	// KeyLen is the length of the concatenated key in bytes.
	KeyLen int `mapstructure:"key_len" yaml:"key_len"`

	// FieldLen holds the byte length of every field, in key order.
	// Empty means a single field of KeyLen bytes.
	FieldLen []int `mapstructure:"field_len" yaml:"field_len"`

	// Size is the expected number of elements, a hint for [Estimate].
	Size int `mapstructure:"size" yaml:"size"`
}

// fieldLen returns the validated field lengths of d.
func (d SetDesc) fieldLen() ([]int, error) {
	fl := d.FieldLen
	if len(fl) == 0 {
		fl = []int{d.KeyLen}
	}

	if len(fl) > MaxFields {
		return nil, errors.Wrapf(ErrInvalidDesc, "%d fields, max %d", len(fl), MaxFields)
	}

	sum := 0
	for i, n := range fl {
		if n < 1 || n > MaxFieldBytes {
			return nil, errors.Wrapf(ErrInvalidDesc, "field %d: length %d, want 1..%d", i, n, MaxFieldBytes)
		}
		sum += n
	}
	if d.KeyLen != 0 && d.KeyLen != sum {
		return nil, errors.Wrapf(ErrInvalidDesc, "key length %d, fields sum up to %d", d.KeyLen, sum)
	}
	return fl, nil
}

// WalkMode selects the match a walk iterates.
type WalkMode int

const (
	// WalkSnapshot iterates the published match without blocking lookups
	// or the control path.
	WalkSnapshot WalkMode = iota

	// WalkUpdate iterates the pending clone, creating it if needed.
	// The callback may modify elements, e.g. toggle their genmask.
	WalkUpdate
)

// Set is a multi-field range set. Lookups are lock-free against the
// published match, all modifications go to a pending clone which is
// published on [Set.Commit] or discarded on [Set.Abort].
//
// Control path methods serialize on a mutex, only one transaction is
// open at a time.
type Set struct {
	name    string
	desc    SetDesc
	cfg     Config
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
	gc      GCHandler

	// published match, read lock-free
	match atomic.Pointer[match]

	// mu guards the pending clone and the transaction state
	mu     sync.Mutex
	clone  *match
	dirty  bool
	lastGC time.Time

	sm *setMetrics
}

// New returns an empty set for keys laid out as described by desc.
func New(desc SetDesc, opts ...Option) (*Set, error) {
	s := &Set{
		name: "pipapo",
		cfg:  DefaultConfig(),
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	fl, err := desc.fieldLen()
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	s.desc = desc
	s.desc.FieldLen = fl
	s.desc.KeyLen = 0
	for _, n := range fl {
		s.desc.KeyLen += n
	}

	s.log = s.log.With(zap.String("set", s.name))
	s.sm = s.metrics.forSet(s.name)
	s.lastGC = s.now()

	m := newMatch(fl, &s.cfg, s.log, s.sm)
	s.match.Store(m)
	s.sm.published(m)

	return s, nil
}

// Desc returns the key layout of s.
func (s *Set) Desc() SetDesc {
	d := s.desc
	d.FieldLen = append([]int(nil), s.desc.FieldLen...)
	return d
}

// enter returns the published match with the reader count taken.
// The caller must call leave on it when done.
func (s *Set) enter() *match {
	for {
		m := s.match.Load()
		m.readers.Add(1)

		// a commit may have retired m in between, its readers are no longer awaited
		if s.match.Load() == m {
			return m
		}
		m.leave()
	}
}

// Lookup returns the element matching key, visible in genmask and not
// expired at now. Lookup never blocks and may be called concurrently with
// all other methods.
func (s *Set) Lookup(key []byte, genmask Genmask, now time.Time) (Element, bool) {
	m := s.enter()
	defer m.leave()

	if len(key) != m.keyLen {
		s.sm.lookup(false)
		return nil, false
	}

	e, ok := m.lookup(key, genmask, now)
	s.sm.lookup(ok)

	return e, ok
}

// pending returns the clone, cloning the published match if needed.
// s.mu must be held.
func (s *Set) pending() (*match, error) {
	if s.clone != nil {
		return s.clone, nil
	}

	c, err := s.match.Load().clone()
	if err != nil {
		return nil, err
	}
	s.clone = c

	s.log.Debug("clone created")
	return c, nil
}

// Get returns the element matching key, visible in genmask, in the pending
// clone if there is one, else in the published match.
func (s *Set) Get(key []byte, genmask Genmask) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.clone
	if m == nil {
		m = s.match.Load()
	}

	if len(key) != m.keyLen {
		return nil, errors.Wrapf(ErrInvalidRange, "key length %d, want %d", len(key), m.keyLen)
	}

	if e, ok := m.lookup(key, genmask, s.now()); ok {
		return e, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "%x", key)
}

// Insert adds e to the pending clone. Existing entries visible in genmask
// are checked for duplicates and overlaps.
//
// For ErrDuplicate the existing element is returned, callers may treat
// that as success. For ErrPartialOverlap the conflicting element is
// returned. On any error the set is unchanged.
func (s *Set) Insert(e Element, genmask Genmask) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.insert(e, genmask)
	s.sm.insert(err)

	return existing, err
}

func (s *Set) insert(e Element, genmask Genmask) (Element, error) {
	m, err := s.pending()
	if err != nil {
		return nil, err
	}

	existing, err := m.insert(e, genmask, s.now())
	if err != nil {
		return existing, err
	}

	s.dirty = true
	return nil, nil
}

// Activate makes e active in the generations of genmask.
func (s *Set) Activate(e Element, genmask Genmask) {
	e.Activate(genmask)
}

// Deactivate finds the element with the key range of e, visible in
// genmask in the pending clone, and toggles its activity in genmask.
// It returns the element found.
func (s *Set) Deactivate(e Element, genmask Genmask) (Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.pending()
	if err != nil {
		return nil, err
	}

	start, end := e.Key(), keyEnd(e)
	if len(start) != m.keyLen {
		return nil, errors.Wrapf(ErrNotFound, "key length %d, want %d", len(start), m.keyLen)
	}

	found, ok := m.lookup(start, genmask, s.now())
	if !ok || !bytes.Equal(found.Key(), start) || !bytes.Equal(keyEnd(found), end) {
		return nil, errors.Wrapf(ErrNotFound, "%x-%x", start, end)
	}

	found.ChangeActive(genmask)
	return found, nil
}

// Flush toggles the activity of e in genmask without looking it up.
func (s *Set) Flush(e Element, genmask Genmask) {
	e.ChangeActive(genmask)
}

// Remove drops e from the pending clone.
func (s *Set) Remove(e Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.pending()
	if err != nil {
		return err
	}
	if err := m.remove(e); err != nil {
		return err
	}

	s.dirty = true
	s.sm.removed()
	return nil
}

// Commit publishes the pending clone. Expired elements are collected
// first if the gc interval elapsed.
//
// Commit returns once no lookup runs on the retired match anymore,
// collected elements are passed to the Destroy callback then.
func (s *Set) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	collected := s.collect(s.now())
	if !s.dirty {
		return
	}

	m := s.clone
	old := s.match.Swap(m)
	s.clone = nil
	s.dirty = false

	old.waitReaders()

	if n := old.corrupt.Load(); n > 0 {
		s.log.Warn("lookups hit a corrupt rule index", zap.Int64("lookups", n))
	}

	s.sm.published(m)
	s.sm.committed(len(collected))

	rules := make([]int, len(m.fields))
	for i := range m.fields {
		rules[i] = m.fields[i].rules
	}
	s.log.Info("committed", zap.Ints("rules", rules), zap.Int("collected", len(collected)))

	if s.gc.Destroy != nil {
		for _, e := range collected {
			s.gc.Destroy(e)
		}
	}
}

// collect runs the garbage collection on the pending clone, if due and
// if any element expired. s.mu must be held.
func (s *Set) collect(now time.Time) []Element {
	if now.Sub(s.lastGC) < s.cfg.GCInterval {
		return nil
	}
	s.lastGC = now

	m := s.clone
	if m == nil {
		m = s.match.Load()
	}
	if !hasExpired(m, now) {
		return nil
	}

	c, err := s.pending()
	if err != nil {
		s.log.Warn("gc skipped", zap.Error(err))
		return nil
	}

	collected := c.gc(now, s.gc.Deactivate)
	if len(collected) > 0 {
		s.dirty = true
	}
	return collected
}

func hasExpired(m *match, now time.Time) bool {
	for e := range m.elements() {
		if e.Expired(now) {
			return true
		}
	}
	return false
}

// Abort discards the pending clone.
func (s *Set) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clone == nil {
		return
	}

	s.clone = nil
	s.dirty = false
	s.sm.aborted()

	s.log.Debug("aborted")
}

// Walk calls fn for every distinct element, in rule order, until fn
// returns false. fn must not call back into s.
func (s *Set) Walk(mode WalkMode, fn func(Element) bool) error {
	if mode == WalkSnapshot {
		m := s.enter()
		defer m.leave()

		for e := range m.elements() {
			if !fn(e) {
				break
			}
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.pending()
	if err != nil {
		return err
	}
	for e := range m.elements() {
		if !fn(e) {
			break
		}
	}
	return nil
}

// All returns an iterator over the distinct elements of the published match.
// The loop body must not call back into s, a Commit from within the loop
// waits for the loop itself and never returns.
func (s *Set) All() iter.Seq[Element] {
	return func(yield func(Element) bool) {
		_ = s.Walk(WalkSnapshot, yield)
	}
}

// Len returns the number of distinct elements in the published match.
func (s *Set) Len() int {
	m := s.enter()
	defer m.leave()

	return m.size()
}
