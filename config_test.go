// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.GroupBits)
	assert.Equal(t, 8, cfg.RegroupBits)
	assert.Equal(t, 128, cfg.RuleMargin)
	assert.Equal(t, OverlapPerField, cfg.Overlap)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"group bits", func(c *Config) { c.GroupBits = 2 }},
		{"regroup bits", func(c *Config) { c.RegroupBits = 16 }},
		{"thresholds swapped", func(c *Config) { c.SizeLow = c.SizeHigh + 1 }},
		{"negative threshold", func(c *Config) { c.SizeLow, c.SizeHigh = -1, -1 }},
		{"rule margin", func(c *Config) { c.RuleMargin = -1 }},
		{"max rules zero", func(c *Config) { c.MaxRules = 0 }},
		{"max rules over limit", func(c *Config) { c.MaxRules = maxRulesLimit + 1 }},
		{"max table bytes", func(c *Config) { c.MaxTableBytes = -1 }},
		{"gc interval", func(c *Config) { c.GCInterval = -time.Second }},
		{"overlap policy", func(c *Config) { c.Overlap = "none" }},
	}

	for _, tt := range tests {
		err := testConfig(tt.mod).Validate()
		assert.ErrorIs(t, err, ErrInvalidDesc, tt.name)
	}

	// regrouping disabled, 8-bit groups throughout
	require.NoError(t, testConfig(func(c *Config) { c.GroupBits, c.RegroupBits = 8, 8 }).Validate())
}
