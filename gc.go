// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"time"
)

// GCHandler connects the garbage collection of expired elements with the
// owner of the elements. Both callbacks are optional.
type GCHandler struct {
	// Deactivate is called for an expired element before its rules are
	// dropped from the pending clone.
	Deactivate func(Element)

	// Destroy is called for a collected element once no lookup can
	// return it anymore.
	Destroy func(Element)
}

// gc drops the rules of all elements expired at now and returns them.
func (m *match) gc(now time.Time, deactivate func(Element)) []Element {
	var (
		collected []Element
		rulemap   [MaxFields]ruleRange
	)

	f0 := &m.fields[0]
	for first := 0; first < f0.rules; {
		n0 := f0.rulesSameKey(first)
		m.rulemap(first, n0, rulemap[:len(m.fields)])

		last := rulemap[len(m.fields)-1]
		e := m.last().mt[last.to].e

		if !e.Expired(now) {
			first += n0
			continue
		}

		if deactivate != nil {
			deactivate(e)
		}

		// the next entry moved down to first
		m.drop(rulemap[:len(m.fields)])
		collected = append(collected, e)
	}

	return collected
}
