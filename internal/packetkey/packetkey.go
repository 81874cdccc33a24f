// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package packetkey builds concatenated set keys from raw Ethernet frames.
package packetkey

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/pkg/errors"
)

// Selector names the packet header value of a key field.
type Selector string

const (
	SrcAddr  Selector = "saddr"
	DstAddr  Selector = "daddr"
	SrcPort  Selector = "sport"
	DstPort  Selector = "dport"
	Protocol Selector = "proto"
	SrcMAC   Selector = "smac"
	DstMAC   Selector = "dmac"
)

var (
	// ErrSelector is returned for unknown selectors or field lengths not
	// fitting the selector.
	ErrSelector = errors.New("invalid selector")

	// ErrNoValue is returned if a packet lacks the header a selector
	// reads, e.g. a port of an ICMP packet or an IPv6 address of an
	// IPv4 packet.
	ErrNoValue = errors.New("packet has no value for selector")
)

// Field is one key field, filled from the packet header selected.
type Field struct {
	Selector Selector
	Len      int
}

// lengths returns the field lengths a selector can fill.
func (s Selector) lengths() []int {
	switch s {
	case SrcAddr, DstAddr:
		return []int{4, 16}
	case SrcPort, DstPort:
		return []int{2}
	case Protocol:
		return []int{1}
	case SrcMAC, DstMAC:
		return []int{6}
	}
	return nil
}

// decodedLayers flags the layers found in the last frame.
type decodedLayers struct {
	eth, ip4, ip6, tcp, udp bool
}

// Extractor decodes frames and builds keys. It reuses its decoding
// layers and key buffer, an Extractor must not be used concurrently.
type Extractor struct {
	fields []Field
	keyLen int

	parser  *gopacket.DecodingLayerParser
	decoded []gopacket.LayerType

	eth layers.Ethernet
	ip4 layers.IPv4
	ip6 layers.IPv6
	tcp layers.TCP
	udp layers.UDP

	has decodedLayers

	key []byte
}

// New returns an extractor for keys made of fields.
func New(fields []Field) (*Extractor, error) {
	x := &Extractor{fields: fields}

	for i, f := range fields {
		ok := false
		for _, n := range f.Selector.lengths() {
			ok = ok || n == f.Len
		}
		if !ok {
			return nil, errors.Wrapf(ErrSelector, "field %d: %q with length %d", i, f.Selector, f.Len)
		}
		x.keyLen += f.Len
	}

	x.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet,
		&x.eth, &x.ip4, &x.ip6, &x.tcp, &x.udp)
	x.parser.IgnoreUnsupported = true
	x.decoded = make([]gopacket.LayerType, 0, 5)
	x.key = make([]byte, 0, x.keyLen)

	return x, nil
}

// KeyLen returns the length of the keys built.
func (x *Extractor) KeyLen() int {
	return x.keyLen
}

// Key decodes the frame in data and returns its key. The key is valid
// until the next call.
func (x *Extractor) Key(data []byte) ([]byte, error) {
	if err := x.parser.DecodeLayers(data, &x.decoded); err != nil {
		return nil, errors.Wrap(err, "decoding frame")
	}

	x.has = decodedLayers{}
	for _, lt := range x.decoded {
		switch lt {
		case layers.LayerTypeEthernet:
			x.has.eth = true
		case layers.LayerTypeIPv4:
			x.has.ip4 = true
		case layers.LayerTypeIPv6:
			x.has.ip6 = true
		case layers.LayerTypeTCP:
			x.has.tcp = true
		case layers.LayerTypeUDP:
			x.has.udp = true
		}
	}

	key := x.key[:0]
	for i, f := range x.fields {
		var err error
		if key, err = x.appendField(key, f); err != nil {
			return nil, errors.WithMessagef(err, "field %d", i)
		}
	}
	x.key = key

	return key, nil
}

func (x *Extractor) appendField(key []byte, f Field) ([]byte, error) {
	switch f.Selector {
	case SrcAddr, DstAddr:
		return x.appendAddr(key, f)

	case SrcPort, DstPort:
		var sport, dport uint16
		switch {
		case x.has.tcp:
			sport, dport = uint16(x.tcp.SrcPort), uint16(x.tcp.DstPort)
		case x.has.udp:
			sport, dport = uint16(x.udp.SrcPort), uint16(x.udp.DstPort)
		default:
			return nil, errors.Wrapf(ErrNoValue, "%q", f.Selector)
		}
		p := sport
		if f.Selector == DstPort {
			p = dport
		}
		return append(key, byte(p>>8), byte(p)), nil

	case Protocol:
		switch {
		case x.has.ip4:
			return append(key, byte(x.ip4.Protocol)), nil
		case x.has.ip6:
			return append(key, byte(x.ip6.NextHeader)), nil
		}
		return nil, errors.Wrapf(ErrNoValue, "%q", f.Selector)

	case SrcMAC, DstMAC:
		if !x.has.eth {
			return nil, errors.Wrapf(ErrNoValue, "%q", f.Selector)
		}
		if f.Selector == SrcMAC {
			return append(key, x.eth.SrcMAC...), nil
		}
		return append(key, x.eth.DstMAC...), nil
	}

	return nil, errors.Wrapf(ErrSelector, "%q", f.Selector)
}

func (x *Extractor) appendAddr(key []byte, f Field) ([]byte, error) {
	src := f.Selector == SrcAddr

	switch {
	case f.Len == 4 && x.has.ip4:
		if src {
			return append(key, x.ip4.SrcIP.To4()...), nil
		}
		return append(key, x.ip4.DstIP.To4()...), nil

	case f.Len == 16 && x.has.ip6:
		if src {
			return append(key, x.ip6.SrcIP.To16()...), nil
		}
		return append(key, x.ip6.DstIP.To16()...), nil
	}

	return nil, errors.Wrapf(ErrNoValue, "%q of length %d", f.Selector, f.Len)
}
