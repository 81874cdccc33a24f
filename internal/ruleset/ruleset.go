// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package ruleset loads the elements of a set from a YAML rule file.
//
// A rule file names the key fields and lists the elements, one match
// string per field:
//
//	name: filter
//	fields:
//	  - {name: src, type: ipv4_addr, selector: saddr}
//	  - {name: port, type: inet_service, selector: dport}
//	  - {name: proto, type: inet_proto, selector: proto}
//	elements:
//	  - match: [10.0.0.0/8, 80-443, tcp]
//	    value: accept
//	  - match: [192.168.1.1-192.168.1.9, 1024-65535, udp]
//	    value: drop
//	    timeout: 1h
package ruleset

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/gaissmai/pipapo"
)

var (
	// ErrType is returned for unknown field types.
	ErrType = errors.New("unknown field type")

	// ErrValue is returned for malformed match strings.
	ErrValue = errors.New("invalid value")

	// ErrFile is returned for rule files with a broken structure.
	ErrFile = errors.New("invalid rule file")
)

// File is the content of a rule file.
type File struct {
	Name     string    `yaml:"name"`
	Fields   []Field   `yaml:"fields"`
	Elements []Element `yaml:"elements"`
}

// Field describes one key field.
type Field struct {
	Name string `yaml:"name"`
	Type Type   `yaml:"type"`

	// Selector optionally names the packet header the field is read
	// from, see package packetkey.
	Selector string `yaml:"selector,omitempty"`
}

// Element is one entry, Match holds a range per field.
type Element struct {
	Match   []string      `yaml:"match"`
	Value   string        `yaml:"value,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Load decodes and validates a rule file from r.
func Load(r io.Reader) (*File, error) {
	f := new(File)

	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding rule file")
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFile loads the rule file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Load(fh)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return f, nil
}

func (f *File) validate() error {
	if len(f.Fields) == 0 {
		return errors.Wrap(ErrFile, "no fields")
	}
	for i, fd := range f.Fields {
		if fd.Type.Len() == 0 {
			return errors.Wrapf(ErrType, "field %d %q: %q", i, fd.Name, fd.Type)
		}
	}
	for i, e := range f.Elements {
		if len(e.Match) != len(f.Fields) {
			return errors.Wrapf(ErrFile, "element %d: %d match values for %d fields", i, len(e.Match), len(f.Fields))
		}
		if e.Timeout < 0 {
			return errors.Wrapf(ErrFile, "element %d: negative timeout", i)
		}
	}
	return nil
}

// Desc returns the set description for the fields of f.
func (f *File) Desc() pipapo.SetDesc {
	d := pipapo.SetDesc{Size: len(f.Elements)}
	for _, fd := range f.Fields {
		d.FieldLen = append(d.FieldLen, fd.Type.Len())
	}
	return d
}

// ParseKey parses one value per field into a concatenated key.
func (f *File) ParseKey(values []string) ([]byte, error) {
	if len(values) != len(f.Fields) {
		return nil, errors.Wrapf(ErrValue, "%d values for %d fields", len(values), len(f.Fields))
	}

	var key []byte
	for i, fd := range f.Fields {
		start, end, err := ParseRange(fd.Type, values[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "field %q", fd.Name)
		}
		if string(start) != string(end) {
			return nil, errors.Wrapf(ErrValue, "field %q: %q is not a single value", fd.Name, values[i])
		}
		key = append(key, start...)
	}
	return key, nil
}

// Elems returns the elements of f, the timeouts counted from now.
func (f *File) Elems(now time.Time) ([]*pipapo.Elem, error) {
	elems := make([]*pipapo.Elem, 0, len(f.Elements))

	for i, e := range f.Elements {
		var start, end []byte
		for j, fd := range f.Fields {
			a, b, err := ParseRange(fd.Type, e.Match[j])
			if err != nil {
				return nil, errors.WithMessagef(err, "element %d, field %q", i, fd.Name)
			}
			start = append(start, a...)
			end = append(end, b...)
		}

		var opts []pipapo.ElemOption
		if e.Timeout > 0 {
			opts = append(opts, pipapo.WithExpiration(now.Add(e.Timeout)))
		}

		keyEnd := end
		if string(start) == string(end) {
			keyEnd = nil
		}
		elems = append(elems, pipapo.NewElem(start, keyEnd, e.Value, opts...))
	}
	return elems, nil
}

// Build creates a set for f and commits all elements of f to it.
// Duplicate elements are skipped.
func (f *File) Build(opts ...pipapo.Option) (*pipapo.Set, error) {
	if f.Name != "" {
		opts = append([]pipapo.Option{pipapo.WithName(f.Name)}, opts...)
	}

	s, err := pipapo.New(f.Desc(), opts...)
	if err != nil {
		return nil, err
	}

	elems, err := f.Elems(time.Now())
	if err != nil {
		return nil, err
	}

	for i, e := range elems {
		if _, err := s.Insert(e, 0); err != nil && !errors.Is(err, pipapo.ErrDuplicate) {
			s.Abort()
			return nil, errors.WithMessagef(err, "element %d %v", i, e)
		}
	}
	s.Commit()

	return s, nil
}
