// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"encoding/hex"
	"encoding/json"
)

// FieldStats describes the tables of one field.
type FieldStats struct {
	Bytes        int `json:"bytes"`
	Groups       int `json:"groups"`
	GroupBits    int `json:"group_bits"`
	BucketWords  int `json:"bucket_words"`
	Rules        int `json:"rules"`
	Capacity     int `json:"capacity"`
	TableBytes   int `json:"table_bytes"`
	MappingBytes int `json:"mapping_bytes"`
}

// Stats describes the published match of a set.
type Stats struct {
	Name         string       `json:"name"`
	Elements     int          `json:"elements"`
	Fields       []FieldStats `json:"fields"`
	ScratchWords int          `json:"scratch_words"`
	ScratchLive  int64        `json:"scratch_live"`
	ScratchTotal int64        `json:"scratch_total"`
	ScratchWaits int64        `json:"scratch_waits"`
	Pending      bool         `json:"pending"`
}

// Stats returns the statistics of the published match.
func (s *Set) Stats() Stats {
	s.mu.Lock()
	pending := s.clone != nil
	s.mu.Unlock()

	m := s.enter()
	defer m.leave()

	st := Stats{
		Name:         s.name,
		Elements:     m.size(),
		Fields:       make([]FieldStats, len(m.fields)),
		ScratchWords: m.bsizeMax,
		Pending:      pending,
	}
	st.ScratchLive, st.ScratchTotal = m.scratch.Stats()
	st.ScratchWaits = m.scratch.contended.Load()

	for i := range m.fields {
		f := &m.fields[i]
		st.Fields[i] = FieldStats{
			Bytes:        f.bytes,
			Groups:       f.groups,
			GroupBits:    f.bb,
			BucketWords:  f.bsize,
			Rules:        f.rules,
			Capacity:     f.capacity(),
			TableBytes:   f.ltBytes(),
			MappingBytes: f.capacity() * mapSlotBytes,
		}
	}
	return st
}

// ListElement is the JSON form of an element, keys in hex.
type ListElement struct {
	Key    string `json:"key"`
	KeyEnd string `json:"key_end,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// MarshalJSON dumps the elements of the published match as a list,
// in rule order.
func (s *Set) MarshalJSON() ([]byte, error) {
	result := struct {
		Name     string        `json:"name"`
		Elements []ListElement `json:"elements"`
	}{
		Name:     s.name,
		Elements: s.DumpList(),
	}

	return json.Marshal(result)
}

// DumpList returns the elements of the published match as a list.
func (s *Set) DumpList() []ListElement {
	list := []ListElement{}
	for e := range s.All() {
		le := ListElement{Key: hex.EncodeToString(e.Key())}
		if end := e.KeyEnd(); end != nil {
			le.KeyEnd = hex.EncodeToString(end)
		}
		if v, ok := e.(*Elem); ok {
			le.Value = v.Value
		}
		list = append(list, le)
	}
	return list
}
