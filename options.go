// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a [Set].
type Option func(*Set)

// WithConfig sets the table tunables, the default is [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(s *Set) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger, the default logs nothing.
func WithLogger(log *zap.Logger) Option {
	return func(s *Set) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics records the set in m.
func WithMetrics(m *Metrics) Option {
	return func(s *Set) {
		s.metrics = m
	}
}

// WithClock sets the time source for expiration checks on the control
// path and the garbage collection interval.
func WithClock(now func() time.Time) Option {
	return func(s *Set) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGC sets the callbacks for collected elements.
func WithGC(h GCHandler) Option {
	return func(s *Set) {
		s.gc = h
	}
}

// WithName sets the set name used in logs and metric labels.
func WithName(name string) Option {
	return func(s *Set) {
		s.name = name
	}
}
