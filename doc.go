// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package pipapo provides a multi-field range set classifier,
// PIle PAcket POlicies, for matching concatenated packet fields
// against sets of per-field values, netmasks and ranges.
//
// Every field of the key owns a bitsliced lookup table: the field is cut
// into groups of 4 or 8 bits and for every group value a bucket records
// the rules admitting it. A lookup ANDs one bucket per group, the
// surviving rules select a range of rules in the next field via the
// mapping table, the rules left in the last field map to the element.
// The lookup cost depends on the key length, not on the number of
// elements.
//
// Arbitrary ranges are expanded into a minimal set of netmasks, one rule
// each. Lookup tables switch their group width when they grow beyond or
// shrink below configurable sizes.
//
// A [Set] publishes an immutable match for lock-free lookups. Inserts
// and removals work on a clone, published with [Set.Commit] or dropped
// with [Set.Abort]. Elements carry a generation mask for transactional
// visibility and may expire, expired elements are collected on commit.
package pipapo
