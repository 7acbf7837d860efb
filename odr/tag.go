// Package odr defines the compiled schema format shared by the compiler and
// the BER codec: flat type records, the sorted module index, and the name
// pool, plus the loader that validates an artifact before use.
package odr

import (
	"errors"
	"fmt"
)

// Class is a BER tag class.
type Class uint8

const (
	ClassUniversal   Class = 0
	ClassApplication Class = 1
	ClassContext     Class = 2
	ClassPrivate     Class = 3
)

func (c Class) String() string {
	switch c {
	case ClassUniversal:
		return "UNIVERSAL"
	case ClassApplication:
		return "APPLICATION"
	case ClassContext:
		return "CONTEXT"
	case ClassPrivate:
		return "PRIVATE"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// MaxTagNumber is the largest tag number that fits the packed Tag form
// (three base-128 continuation octets).
const MaxTagNumber = 1<<21 - 1

// ErrTagTooLarge is returned for tag numbers above MaxTagNumber.
var ErrTagTooLarge = errors.New("tag number too large")

// Tag is a tag identity: the BER identifier octets without the constructed
// bit, packed big-endian into 32 bits. The first identifier octet is the most
// significant byte and unused continuation positions are zero. The zero Tag
// means "untagged" and marks CHOICE heads and open types.
type Tag uint32

// Universal tags used by the built-in types.
const (
	TagBoolean          Tag = 1 << 24
	TagInteger          Tag = 2 << 24
	TagBitString        Tag = 3 << 24
	TagOctetString      Tag = 4 << 24
	TagNull             Tag = 5 << 24
	TagOID              Tag = 6 << 24
	TagObjectDescriptor Tag = 7 << 24
	TagExternal         Tag = 8 << 24
	TagReal             Tag = 9 << 24
	TagEnumerated       Tag = 10 << 24
	TagSequence         Tag = 16 << 24
	TagSet              Tag = 17 << 24
)

// MakeTag packs a class and number into a Tag.
func MakeTag(class Class, number uint32) (Tag, error) {
	lead := uint32(class&3) << 30
	if number < 31 {
		return Tag(lead | number<<24), nil
	}
	if number > MaxTagNumber {
		return 0, fmt.Errorf("%w: %d", ErrTagTooLarge, number)
	}
	t := lead | 0x1F<<24
	var cont [3]byte
	n := 0
	for v := number; v > 0; v >>= 7 {
		n++
	}
	for i := 0; i < n; i++ {
		b := byte(number>>(7*(n-1-i))) & 0x7F
		if i < n-1 {
			b |= 0x80
		}
		cont[i] = b
	}
	t |= uint32(cont[0])<<16 | uint32(cont[1])<<8 | uint32(cont[2])
	return Tag(t), nil
}

// MustTag is like MakeTag but panics on error. Intended for constants in
// tests and tables.
func MustTag(class Class, number uint32) Tag {
	t, err := MakeTag(class, number)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) lead() byte { return byte(t >> 24) }

// Class returns the tag class.
func (t Tag) Class() Class {
	return Class(t.lead() >> 6)
}

// Number returns the tag number.
func (t Tag) Number() uint32 {
	if t.lead()&0x1F != 0x1F {
		return uint32(t.lead() & 0x1F)
	}
	var n uint32
	for i := 2; i >= 0; i-- {
		b := byte(t >> (8 * i))
		n = n<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	return n
}

// Len returns the number of identifier octets.
func (t Tag) Len() int {
	if t.lead()&0x1F != 0x1F {
		return 1
	}
	n := 1
	for i := 2; i >= 0; i-- {
		n++
		if byte(t>>(8*i))&0x80 == 0 {
			break
		}
	}
	return n
}

// AppendTo appends the identifier octets to dst, setting the constructed
// bit if requested.
func (t Tag) AppendTo(dst []byte, constructed bool) []byte {
	lead := t.lead()
	if constructed {
		lead |= 0x20
	}
	dst = append(dst, lead)
	for i := 1; i < t.Len(); i++ {
		dst = append(dst, byte(t>>(8*(3-i))))
	}
	return dst
}

func (t Tag) String() string {
	if t == 0 {
		return "untagged"
	}
	if t.Class() == ClassContext {
		return fmt.Sprintf("[%d]", t.Number())
	}
	return fmt.Sprintf("[%s %d]", t.Class(), t.Number())
}
