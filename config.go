// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// MaxFields is the maximum number of concatenated fields in a key.
	MaxFields = 16

	// MaxFieldBytes is the maximum length of one field, an IPv6 address.
	MaxFieldBytes = 16

	// maxRulesLimit is the hard cap on rules per field, tied to the width
	// of the rule indices stored in the mapping tables.
	maxRulesLimit = 1<<24 - 1<<7

	// mapSlotBytes is the size of one mapping table slot on 64-bit
	// platforms, a page of them is the default rule margin.
	mapSlotBytes = 32
	pageSize     = 4096
)

// OverlapPolicy selects how new entries are checked against existing ones.
type OverlapPolicy string

const (
	// OverlapPerField rejects a new entry if, in any field, its range
	// overlaps the range of an existing entry without being identical.
	OverlapPerField OverlapPolicy = "per-field"

	// OverlapTuple only probes the start and end key of the new entry
	// against the existing entries.
	OverlapTuple OverlapPolicy = "tuple"
)

// Config holds the tunables of the lookup and mapping tables.
//
// The zero value is not usable, start with [DefaultConfig].
type Config struct {
	// GroupBits is the group width of a new field, 4 or 8.
	GroupBits int `mapstructure:"group_bits" yaml:"group_bits"`

	// RegroupBits is the group width a field switches to once its
	// lookup table grows beyond SizeHigh, 4 or 8. Equal to GroupBits
	// disables regrouping.
	RegroupBits int `mapstructure:"regroup_bits" yaml:"regroup_bits"`

	// SizeHigh and SizeLow are the lookup table byte sizes triggering
	// a regroup and the regroup back to GroupBits.
	SizeHigh int `mapstructure:"size_high" yaml:"size_high"`
	SizeLow  int `mapstructure:"size_low" yaml:"size_low"`

	// RuleMargin is the slack of rule slots kept in the mapping tables.
	RuleMargin int `mapstructure:"rule_margin" yaml:"rule_margin"`

	// MaxRules caps the number of rules per field.
	MaxRules int `mapstructure:"max_rules" yaml:"max_rules"`

	// MaxTableBytes limits a single table allocation, 0 is unlimited.
	MaxTableBytes int `mapstructure:"max_table_bytes" yaml:"max_table_bytes"`

	// GCInterval is the minimum time between two garbage collection
	// sweeps on commit.
	GCInterval time.Duration `mapstructure:"gc_interval" yaml:"gc_interval"`

	// Overlap is the policy for overlapping entries.
	Overlap OverlapPolicy `mapstructure:"overlap" yaml:"overlap"`
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		GroupBits:   4,
		RegroupBits: 8,
		SizeHigh:    1 << 21,
		SizeLow:     1<<21 - 1<<16,
		RuleMargin:  pageSize / mapSlotBytes,
		MaxRules:    maxRulesLimit,
		GCInterval:  time.Second,
		Overlap:     OverlapPerField,
	}
}

// Validate checks the tunables for consistency.
func (c Config) Validate() error {
	if !validGroupBits(c.GroupBits) {
		return errors.Wrapf(ErrInvalidDesc, "group bits %d, want 4 or 8", c.GroupBits)
	}
	if !validGroupBits(c.RegroupBits) {
		return errors.Wrapf(ErrInvalidDesc, "regroup bits %d, want 4 or 8", c.RegroupBits)
	}
	if c.SizeLow < 0 || c.SizeHigh < 0 || c.SizeLow > c.SizeHigh {
		return errors.Wrapf(ErrInvalidDesc, "size thresholds low %d, high %d", c.SizeLow, c.SizeHigh)
	}
	if c.RuleMargin < 0 {
		return errors.Wrapf(ErrInvalidDesc, "rule margin %d", c.RuleMargin)
	}
	if c.MaxRules <= 0 || c.MaxRules > maxRulesLimit {
		return errors.Wrapf(ErrInvalidDesc, "max rules %d, want 1..%d", c.MaxRules, maxRulesLimit)
	}
	if c.MaxTableBytes < 0 {
		return errors.Wrapf(ErrInvalidDesc, "max table bytes %d", c.MaxTableBytes)
	}
	if c.GCInterval < 0 {
		return errors.Wrapf(ErrInvalidDesc, "gc interval %s", c.GCInterval)
	}
	switch c.Overlap {
	case OverlapPerField, OverlapTuple:
	default:
		return errors.Wrapf(ErrInvalidDesc, "overlap policy %q", c.Overlap)
	}
	return nil
}

func validGroupBits(bb int) bool {
	return bb == 4 || bb == 8
}
