package ber

import (
	"bytes"

	"github.com/golangsnmp/goodr/odr"
)

// checkLength rejects content lengths a primitive codec can never accept.
func checkLength(c odr.Codec, n int) Code {
	switch c {
	case odr.CodecInt:
		if n < 1 || n > 8 {
			return ErrBadValue
		}
	case odr.CodecBool:
		if n != 1 {
			return ErrBadValue
		}
	case odr.CodecNull:
		if n != 0 {
			return ErrBadValue
		}
	case odr.CodecBit:
		if n < 1 {
			return ErrBadValue
		}
	case odr.CodecOID:
		if n < 1 {
			return ErrBadOID
		}
	case odr.CodecExtDRef:
		if n < 1 {
			return ErrBadExternalOID
		}
	}
	return 0
}

// streams reports whether a codec consumes content as it arrives rather
// than waiting for all of it.
func streams(c odr.Codec) bool {
	return c == odr.CodecOctet || c == odr.CodecBit || c == odr.CodecSkip
}

// decodePrimitive converts complete content octets. The result never
// aliases content.
func decodePrimitive(c odr.Codec, content []byte) (Value, Code) {
	if code := checkLength(c, len(content)); code != 0 {
		return Value{}, code
	}
	switch c {
	case odr.CodecOctet:
		return Bytes(bytes.Clone(content)), 0
	case odr.CodecBit:
		return decodeBits(content)
	case odr.CodecInt:
		v := int64(int8(content[0]))
		for _, b := range content[1:] {
			v = v<<8 | int64(b)
		}
		return Int(v), 0
	case odr.CodecBool:
		return Bool(content[0] != 0), 0
	case odr.CodecNull:
		return Null(), 0
	case odr.CodecOID:
		if !validOID(content) {
			return Value{}, ErrBadOID
		}
		return OID(bytes.Clone(content)), 0
	case odr.CodecExtDRef:
		if !validOID(content) {
			return Value{}, ErrBadExternalOID
		}
		return OID(bytes.Clone(content)), 0
	case odr.CodecSkip:
		return Bytes([]byte{}), 0
	}
	return Value{}, ErrBadSchema
}

func decodeBits(content []byte) (Value, Code) {
	unused := int(content[0])
	data := bytes.Clone(content[1:])
	if unused > 7 || (len(data) == 0 && unused != 0) {
		return Value{}, ErrBadValue
	}
	if len(data) > 0 {
		data[len(data)-1] &= 0xFF << unused
	}
	return Bits(data, unused), 0
}

func validOID(content []byte) bool {
	return len(content) > 0 && content[len(content)-1]&0x80 == 0
}

// encodePrimitive returns the content octets of v for codec c. Octet
// string content aliases the value.
func encodePrimitive(c odr.Codec, v Value) ([]byte, Code) {
	switch c {
	case odr.CodecOctet, odr.CodecSkip:
		if v.kind != KindBytes {
			return nil, ErrBadValue
		}
		return v.bytes, 0
	case odr.CodecBit:
		switch v.kind {
		case KindBits:
			if len(v.bytes) == 0 && v.num != 0 {
				return nil, ErrBadValue
			}
			out := make([]byte, 0, len(v.bytes)+1)
			out = append(out, byte(v.num))
			out = append(out, v.bytes...)
			if len(v.bytes) > 0 {
				out[len(out)-1] &= 0xFF << v.num
			}
			return out, 0
		case KindBytes:
			return append([]byte{0}, v.bytes...), 0
		}
		return nil, ErrBadValue
	case odr.CodecInt:
		if v.kind != KindInt {
			return nil, ErrBadValue
		}
		return appendInt(nil, v.num), 0
	case odr.CodecBool:
		if v.kind != KindBool {
			return nil, ErrBadValue
		}
		if v.num != 0 {
			return []byte{0xFF}, 0
		}
		return []byte{0x00}, 0
	case odr.CodecNull:
		if v.kind != KindNull {
			return nil, ErrBadValue
		}
		return nil, 0
	case odr.CodecOID:
		if v.kind != KindOID {
			return nil, ErrBadValue
		}
		if !validOID(v.bytes) {
			return nil, ErrBadOID
		}
		return v.bytes, 0
	case odr.CodecExtDRef:
		if v.kind != KindOID {
			return nil, ErrBadValue
		}
		if !validOID(v.bytes) {
			return nil, ErrBadExternalOID
		}
		return v.bytes, 0
	}
	return nil, ErrBadSchema
}

// appendInt appends the minimal two's complement form of v.
func appendInt(dst []byte, v int64) []byte {
	n := 1
	for x := v; x > 127 || x < -128; x >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}
