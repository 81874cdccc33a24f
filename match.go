// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"iter"
	"runtime"
	"sync/atomic"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// match is the matching structure of a set: the ordered fields of the
// concatenated key and the pool of lookup scratches.
//
// A published match is never modified, changes go to a clone which
// replaces it on commit.
type match struct {
	fields   []field
	keyLen   int
	bsizeMax int // largest bucket size over all fields, in words
	scratch  *scratchPool

	readers atomic.Int64 // lookups in flight
	corrupt atomic.Int64 // lookups aborted on a corrupt rule index

	cfg     *Config
	log     *zap.Logger
	metrics *setMetrics
}

// newMatch returns an empty match for fields of the given byte lengths.
func newMatch(fieldLen []int, cfg *Config, log *zap.Logger, metrics *setMetrics) *match {
	m := &match{
		fields:  make([]field, len(fieldLen)),
		scratch: newScratchPool(0, scratchSlots()),
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}

	for i, n := range fieldLen {
		m.fields[i] = newField(n, cfg.GroupBits)
		m.keyLen += n
	}
	return m
}

// clone returns a deep copy of m, the scratch pool is shared until a
// field of the clone needs larger buckets.
func (m *match) clone() (*match, error) {
	c := &match{
		fields:   make([]field, len(m.fields)),
		keyLen:   m.keyLen,
		bsizeMax: m.bsizeMax,
		scratch:  m.scratch,
		cfg:      m.cfg,
		log:      m.log,
		metrics:  m.metrics,
	}

	for i := range m.fields {
		f, err := m.fields[i].clone(m.cfg)
		if err != nil {
			return nil, errors.WithMessagef(err, "clone field %d", i)
		}
		c.fields[i] = f
	}
	return c, nil
}

// last returns the terminal field.
func (m *match) last() *field {
	return &m.fields[len(m.fields)-1]
}

// growScratch provides scratches with bitmaps of at least bsize words.
// The new pool is allocated here, lookups only claim its slots.
func (m *match) growScratch(bsize int) error {
	if bsize <= m.bsizeMax {
		return nil
	}
	if m.cfg.MaxTableBytes > 0 && 2*bsize*8 > m.cfg.MaxTableBytes {
		return errors.Wrapf(ErrAlloc, "scratch of %d words over limit of %d bytes", 2*bsize, m.cfg.MaxTableBytes)
	}

	m.scratch = newScratchPool(bsize, scratchSlots())
	m.bsizeMax = bsize

	m.log.Debug("scratch resized", zap.Int("words", bsize))
	return nil
}

// adjustBits switches the group width of field i if its lookup table
// crossed a size threshold. A failed regroup keeps the current width.
func (m *match) adjustBits(i int) {
	f := &m.fields[i]

	bb := f.regroupTarget(m.cfg)
	if bb == 0 {
		return
	}

	from := f.bb
	if err := f.regroup(m.cfg, bb); err != nil {
		m.log.Warn("regroup skipped",
			zap.Int("field", i), zap.Int("from", from), zap.Int("to", bb), zap.Error(err))
		return
	}

	m.log.Debug("field regrouped",
		zap.Int("field", i),
		zap.Int("from", from),
		zap.Int("to", bb),
		zap.Int("rules", f.rules),
		zap.String("table", units.BytesSize(float64(f.ltBytes()))))
	m.metrics.regrouped(from, bb)
}

// elements returns an iterator over the distinct elements of m, in rule
// order. All rules of an element are adjacent in the terminal field.
func (m *match) elements() iter.Seq[Element] {
	return func(yield func(Element) bool) {
		f := m.last()
		for r := 0; r < f.rules; r++ {
			e := f.mt[r].e
			if r+1 < f.rules && f.mt[r+1].e == e {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// size returns the number of distinct elements.
func (m *match) size() int {
	n := 0
	for range m.elements() {
		n++
	}
	return n
}

// leave ends a lookup started with [Set.enter].
func (m *match) leave() {
	m.readers.Add(-1)
}

// waitReaders blocks until no lookup is in flight on m. m must no longer
// be published, so no new lookup can start on it.
func (m *match) waitReaders() {
	for m.readers.Load() != 0 {
		runtime.Gosched()
	}
}
