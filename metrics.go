// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pipapo"

// Metrics holds the prometheus collectors shared by any number of sets,
// every series is labelled with the set name.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	lookups     *prometheus.CounterVec
	corrupt     *prometheus.CounterVec
	inserts     *prometheus.CounterVec
	removes     *prometheus.CounterVec
	commits     *prometheus.CounterVec
	aborts      *prometheus.CounterVec
	gcCollected *prometheus.CounterVec
	regroups    *prometheus.CounterVec

	rules      *prometheus.GaugeVec
	tableBytes *prometheus.GaugeVec
	groupBits  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, append([]string{"set"}, labels...))
	}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, []string{"set", "field"})
	}

	return &Metrics{
		lookups:     counter("lookups_total", "Lookups on the published match, by result.", "result"),
		corrupt:     counter("lookup_corrupt_total", "Lookups aborted on a rule index beyond the rule count."),
		inserts:     counter("inserts_total", "Insert attempts, by result.", "result"),
		removes:     counter("removes_total", "Elements removed from the pending clone."),
		commits:     counter("commits_total", "Pending clones published."),
		aborts:      counter("aborts_total", "Pending clones discarded."),
		gcCollected: counter("gc_collected_total", "Expired elements collected on commit."),
		regroups:    counter("regroups_total", "Lookup table group width changes, by direction.", "direction"),

		rules:      gauge("rules", "Rules per field of the published match."),
		tableBytes: gauge("lookup_table_bytes", "Lookup table size per field of the published match."),
		groupBits:  gauge("group_bits", "Group width per field of the published match."),
	}
}

// setMetrics are the collectors curried with one set name.
// A nil *setMetrics records nothing.
type setMetrics struct {
	m    *Metrics
	name string

	lookupMatch prometheus.Counter
	lookupMiss  prometheus.Counter
	corrupt     prometheus.Counter
}

func (m *Metrics) forSet(name string) *setMetrics {
	if m == nil {
		return nil
	}
	return &setMetrics{
		m:           m,
		name:        name,
		lookupMatch: m.lookups.WithLabelValues(name, "match"),
		lookupMiss:  m.lookups.WithLabelValues(name, "miss"),
		corrupt:     m.corrupt.WithLabelValues(name),
	}
}

func (s *setMetrics) lookup(ok bool) {
	if s == nil {
		return
	}
	if ok {
		s.lookupMatch.Inc()
		return
	}
	s.lookupMiss.Inc()
}

func (s *setMetrics) corruptIndex() {
	if s == nil {
		return
	}
	s.corrupt.Inc()
}

func (s *setMetrics) insert(err error) {
	if s == nil {
		return
	}
	s.m.inserts.WithLabelValues(s.name, insertResult(err)).Inc()
}

func (s *setMetrics) removed() {
	if s == nil {
		return
	}
	s.m.removes.WithLabelValues(s.name).Inc()
}

func (s *setMetrics) committed(collected int) {
	if s == nil {
		return
	}
	s.m.commits.WithLabelValues(s.name).Inc()
	s.m.gcCollected.WithLabelValues(s.name).Add(float64(collected))
}

func (s *setMetrics) aborted() {
	if s == nil {
		return
	}
	s.m.aborts.WithLabelValues(s.name).Inc()
}

func (s *setMetrics) regrouped(from, to int) {
	if s == nil {
		return
	}
	direction := "up"
	if to < from {
		direction = "down"
	}
	s.m.regroups.WithLabelValues(s.name, direction).Inc()
}

// published sets the per field gauges from m.
func (s *setMetrics) published(m *match) {
	if s == nil {
		return
	}
	for i := range m.fields {
		f := &m.fields[i]
		label := strconv.Itoa(i)

		s.m.rules.WithLabelValues(s.name, label).Set(float64(f.rules))
		s.m.tableBytes.WithLabelValues(s.name, label).Set(float64(f.ltBytes()))
		s.m.groupBits.WithLabelValues(s.name, label).Set(float64(f.bb))
	}
}

// insertResult maps an insert error to its result label.
func insertResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrPartialOverlap):
		return "overlap"
	case errors.Is(err, ErrInvalidRange):
		return "invalid"
	case errors.Is(err, ErrNoSpace):
		return "full"
	case errors.Is(err, ErrAlloc):
		return "alloc"
	default:
		return "error"
	}
}
