package odr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadOID is returned for malformed OID content or dotted strings.
var ErrBadOID = errors.New("bad object identifier")

// EncodeArcs returns the BER content octets for an OID given as arcs.
// The first two arcs are combined as 40*a+b.
func EncodeArcs(arcs []uint64) ([]byte, error) {
	if len(arcs) < 2 {
		return nil, fmt.Errorf("%w: need at least two arcs", ErrBadOID)
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] >= 40) {
		return nil, fmt.Errorf("%w: invalid leading arcs %d.%d", ErrBadOID, arcs[0], arcs[1])
	}
	out := appendBase128(nil, arcs[0]*40+arcs[1])
	for _, a := range arcs[2:] {
		out = appendBase128(out, a)
	}
	return out, nil
}

// DecodeArcs splits BER OID content octets into arcs.
func DecodeArcs(content []byte) ([]uint64, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadOID)
	}
	var arcs []uint64
	var v uint64
	for i, b := range content {
		if v == 0 && b == 0x80 {
			return nil, fmt.Errorf("%w: non-minimal arc at byte %d", ErrBadOID, i)
		}
		if v > (^uint64(0))>>7 {
			return nil, fmt.Errorf("%w: arc overflow at byte %d", ErrBadOID, i)
		}
		v = v<<7 | uint64(b&0x7F)
		if b&0x80 != 0 {
			continue
		}
		if arcs == nil {
			switch {
			case v < 40:
				arcs = append(arcs, 0, v)
			case v < 80:
				arcs = append(arcs, 1, v-40)
			default:
				arcs = append(arcs, 2, v-80)
			}
		} else {
			arcs = append(arcs, v)
		}
		v = 0
	}
	if content[len(content)-1]&0x80 != 0 {
		return nil, fmt.Errorf("%w: truncated final arc", ErrBadOID)
	}
	return arcs, nil
}

// FormatOID renders OID content octets in dotted notation.
func FormatOID(content []byte) (string, error) {
	arcs, err := DecodeArcs(content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, a := range arcs {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.FormatUint(a, 10))
	}
	return b.String(), nil
}

// ParseOID converts dotted notation ("1.2.840.10003.5.10") to OID content
// octets.
func ParseOID(s string) ([]byte, error) {
	parts := strings.Split(s, ".")
	arcs := make([]uint64, 0, len(parts))
	for _, p := range parts {
		a, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrBadOID, s)
		}
		arcs = append(arcs, a)
	}
	return EncodeArcs(arcs)
}

func appendBase128(dst []byte, v uint64) []byte {
	n := 1
	for x := v >> 7; x > 0; x >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte(v>>(7*uint(i))) & 0x7F
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
