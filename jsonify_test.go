// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package pipapo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONEmpty(t *testing.T) {
	t.Parallel()

	s, err := New(SetDesc{KeyLen: 2}, WithName("empty"))
	require.NoError(t, err)

	got, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"empty","elements":[]}`, string(got))
}

func TestJSONElements(t *testing.T) {
	t.Parallel()

	s, err := New(SetDesc{FieldLen: []int{1, 1}}, WithName("two"))
	require.NoError(t, err)

	mustInsert(t, s, NewElem([]byte{1, 2}, []byte{1, 4}, "a"))
	mustInsert(t, s, NewElem([]byte{5, 9}, nil, 42))
	s.Commit()

	got, err := json.Marshal(s)
	require.NoError(t, err)

	want := `{"name":"two","elements":[
		{"key":"0102","key_end":"0104","value":"a"},
		{"key":"0509","value":42}
	]}`
	assert.JSONEq(t, want, string(got))
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := newTestSet(t, []int{4, 2})

	mustInsert(t, s, NewElem(cat(ip4("192.168.1.0"), port(2048)), cat(ip4("192.168.2.1"), port(2048)), "b"))
	assert.True(t, s.Stats().Pending)

	s.Commit()
	st := s.Stats()

	assert.False(t, st.Pending)
	assert.Equal(t, 1, st.Elements)
	require.Len(t, st.Fields, 2)

	f0 := st.Fields[0]
	assert.Equal(t, FieldStats{
		Bytes:        4,
		Groups:       8,
		GroupBits:    4,
		BucketWords:  1,
		Rules:        2,
		Capacity:     1 + 128, // allocated for the first rule
		TableBytes:   8 * 16 * 8,
		MappingBytes: (1 + 128) * mapSlotBytes,
	}, f0)

	assert.Equal(t, 1, st.Fields[1].Rules)
	assert.Equal(t, 1, st.ScratchWords)

	got, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"rules":2`)
}
