// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicate is returned by Insert if an identical entry is already
	// present, the existing element is returned alongside.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrPartialOverlap is returned by Insert if the new entry overlaps an
	// existing entry without duplicating it, the conflicting element is
	// returned alongside.
	ErrPartialOverlap = errors.New("partial overlap with existing entry")

	// ErrInvalidRange is returned for keys with a wrong length or with a
	// start greater than the end in any field.
	ErrInvalidRange = errors.New("invalid range")

	// ErrNoSpace is returned if a field ran out of rule indices, the set is full.
	ErrNoSpace = errors.New("set full")

	// ErrAlloc is returned if a table, scratch or clone allocation failed.
	ErrAlloc = errors.New("allocation failure")

	// ErrNotFound is returned if an element to remove or deactivate is
	// not in the set.
	ErrNotFound = errors.New("element not found")

	// ErrInvalidDesc is returned for bad set descriptions and configs.
	ErrInvalidDesc = errors.New("invalid set description")
)
