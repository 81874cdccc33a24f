// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ruleset

import (
	"bytes"
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go4.org/netipx"
)

// Type is the data type of a key field.
type Type string

const (
	IPv4Addr    Type = "ipv4_addr"
	IPv6Addr    Type = "ipv6_addr"
	InetService Type = "inet_service"
	InetProto   Type = "inet_proto"
	EtherAddr   Type = "ether_addr"
	Mark        Type = "mark"
)

// Len returns the byte length of t, 0 for unknown types.
func (t Type) Len() int {
	switch t {
	case IPv4Addr, Mark:
		return 4
	case IPv6Addr:
		return 16
	case InetService:
		return 2
	case InetProto:
		return 1
	case EtherAddr:
		return 6
	}
	return 0
}

var services = map[string]uint16{
	"ssh":    22,
	"smtp":   25,
	"domain": 53,
	"dns":    53,
	"http":   80,
	"ntp":    123,
	"https":  443,
}

var protocols = map[string]uint8{
	"icmp":   1,
	"igmp":   2,
	"tcp":    6,
	"udp":    17,
	"gre":    47,
	"esp":    50,
	"icmpv6": 58,
	"sctp":   132,
}

// ParseRange parses a field value of type t into its first and last
// value in big endian byte order.
//
// Accepted forms are a single value, a range "from-to" and "*" for the
// whole field. Address fields accept prefixes as well.
func ParseRange(t Type, s string) (start, end []byte, err error) {
	n := t.Len()
	if n == 0 {
		return nil, nil, errors.Wrapf(ErrType, "%q", t)
	}

	s = strings.TrimSpace(s)
	if s == "*" {
		return make([]byte, n), bytes.Repeat([]byte{0xff}, n), nil
	}

	switch t {
	case IPv4Addr, IPv6Addr:
		start, end, err = parseAddrRange(t, s)
	default:
		start, end, err = parseValueRange(t, s)
	}
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "%s %q", t, s)
	}

	if bytes.Compare(start, end) > 0 {
		return nil, nil, errors.Wrapf(ErrValue, "%s %q: from > to", t, s)
	}
	return start, end, nil
}

func parseAddrRange(t Type, s string) ([]byte, []byte, error) {
	var r netipx.IPRange

	switch {
	case strings.Contains(s, "/"):
		pfx, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, nil, errors.Wrap(ErrValue, err.Error())
		}
		r = netipx.RangeOfPrefix(pfx.Masked())

	case strings.Contains(s, "-"):
		var err error
		if r, err = netipx.ParseIPRange(s); err != nil {
			return nil, nil, errors.Wrap(ErrValue, err.Error())
		}

	default:
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, nil, errors.Wrap(ErrValue, err.Error())
		}
		r = netipx.IPRangeFrom(a, a)
	}

	from, to := r.From(), r.To()
	if (t == IPv4Addr) != from.Is4() || (t == IPv4Addr) != to.Is4() {
		return nil, nil, errors.Wrap(ErrValue, "address family mismatch")
	}
	return from.AsSlice(), to.AsSlice(), nil
}

func parseValueRange(t Type, s string) ([]byte, []byte, error) {
	from, to, isRange := s, s, false

	// MAC addresses use '-' as an optional separator, ranges of them
	// need the colon form
	if t != EtherAddr || strings.Count(s, "-") == 1 {
		if i := strings.Index(s, "-"); i > 0 {
			from, to, isRange = s[:i], s[i+1:], true
		}
	}

	start, err := parseValue(t, strings.TrimSpace(from))
	if err != nil {
		return nil, nil, err
	}
	if !isRange {
		return start, bytes.Clone(start), nil
	}

	end, err := parseValue(t, strings.TrimSpace(to))
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseValue(t Type, s string) ([]byte, error) {
	switch t {
	case InetService:
		if p, ok := services[s]; ok {
			return binary.BigEndian.AppendUint16(nil, p), nil
		}
		p, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, errors.Wrap(ErrValue, err.Error())
		}
		return binary.BigEndian.AppendUint16(nil, uint16(p)), nil

	case InetProto:
		if p, ok := protocols[s]; ok {
			return []byte{p}, nil
		}
		p, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, errors.Wrap(ErrValue, err.Error())
		}
		return []byte{byte(p)}, nil

	case Mark:
		m, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return nil, errors.Wrap(ErrValue, err.Error())
		}
		return binary.BigEndian.AppendUint32(nil, uint32(m)), nil

	case EtherAddr:
		hw, err := net.ParseMAC(s)
		if err != nil {
			return nil, errors.Wrap(ErrValue, err.Error())
		}
		if len(hw) != 6 {
			return nil, errors.Wrapf(ErrValue, "%d byte hardware address", len(hw))
		}
		return []byte(hw), nil
	}

	return nil, errors.Wrapf(ErrType, "%q", t)
}
