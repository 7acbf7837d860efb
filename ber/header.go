package ber

import (
	"math"

	"github.com/golangsnmp/goodr/odr"
)

const (
	constructedBit = 0x20
	indefinite     = -1
	maxLengthBytes = 4
)

// header is a parsed identifier and length.
type header struct {
	tag         odr.Tag
	constructed bool
	length      int // content length, or indefinite
	size        int // identifier and length octets
	eoc         bool
}

// parseHeader reads one header from b. It returns ok=false without an error
// when b ends before the header does.
func parseHeader(b []byte) (h header, ok bool, code Code) {
	if len(b) == 0 {
		return h, false, 0
	}
	lead := b[0]
	if lead&^constructedBit == 0 {
		if lead != 0 {
			return h, false, ErrBadTag
		}
		if len(b) < 2 {
			return h, false, 0
		}
		if b[1] != 0 {
			return h, false, ErrBadTag
		}
		return header{eoc: true, size: 2}, true, 0
	}
	h.constructed = lead&constructedBit != 0
	tag := uint32(lead&^constructedBit) << 24
	p := 1
	if lead&0x1F == 0x1F {
		for i := 0; ; i++ {
			if i == 3 {
				return h, false, ErrTagTooLong
			}
			if p >= len(b) {
				return h, false, 0
			}
			c := b[p]
			p++
			tag |= uint32(c) << (8 * (2 - i))
			if c&0x80 == 0 {
				break
			}
		}
	}
	h.tag = odr.Tag(tag)

	if p >= len(b) {
		return h, false, 0
	}
	l := b[p]
	p++
	switch {
	case l < 0x80:
		h.length = int(l)
	case l == 0x80:
		if !h.constructed {
			return h, false, ErrBadLength
		}
		h.length = indefinite
	case l == 0xFF:
		return h, false, ErrBadLength
	default:
		n := int(l & 0x7F)
		if n > maxLengthBytes {
			return h, false, ErrLengthTooLong
		}
		if p+n > len(b) {
			return h, false, 0
		}
		var v uint64
		for _, c := range b[p : p+n] {
			v = v<<8 | uint64(c)
		}
		p += n
		if v > math.MaxInt32 {
			return h, false, ErrBadLength
		}
		h.length = int(v)
	}
	h.size = p
	return h, true, 0
}

// appendLength appends a definite length in the shortest form.
func appendLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	k := 0
	for v := n; v > 0; v >>= 8 {
		k++
	}
	dst = append(dst, 0x80|byte(k))
	for i := k - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return dst
}

// lengthSize returns the size of the length octets for n.
func lengthSize(n int) int {
	if n < 0x80 {
		return 1
	}
	k := 1
	for v := n; v > 0; v >>= 8 {
		k++
	}
	return k
}
