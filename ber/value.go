package ber

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/golangsnmp/goodr/odr"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindBytes
	KindBits
	KindOID
	KindTable
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindBytes:   "bytes",
	KindBits:    "bits",
	KindOID:     "oid",
	KindTable:   "table",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a decoded or to-be-encoded value tree.
//
// SEQUENCE, SET and CHOICE values are tables keyed by the component
// ordinal of the schema record; a missing key is an absent component.
// SEQUENCE OF and SET OF values are tables keyed 1, 2, 3 and so on. A CHOICE
// value holds exactly one key, the ordinal of the chosen alternative.
//
// The zero Value is invalid. Tables share their map on copy.
type Value struct {
	kind  Kind
	num   int64
	bytes []byte
	table map[int]Value
}

// Null returns a NULL value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a BOOLEAN value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int returns an INTEGER value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Bytes returns an OCTET STRING value. The slice is not copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

// Text returns an OCTET STRING value holding s.
func Text(s string) Value { return Bytes([]byte(s)) }

// Bits returns a BIT STRING value. unused is the number of unused bits in
// the final octet, 0 to 7.
func Bits(b []byte, unused int) Value {
	return Value{kind: KindBits, bytes: b, num: int64(unused & 7)}
}

// OID returns an OBJECT IDENTIFIER value from BER content octets.
func OID(content []byte) Value { return Value{kind: KindOID, bytes: content} }

// Table returns a constructed value. A nil map starts an empty table.
func Table(m map[int]Value) Value {
	if m == nil {
		m = make(map[int]Value)
	}
	return Value{kind: KindTable, table: m}
}

// List returns a SEQUENCE OF value with the elements at ordinals 1..n.
func List(elems ...Value) Value {
	m := make(map[int]Value, len(elems))
	for i, e := range elems {
		m[i+1] = e
	}
	return Value{kind: KindTable, table: m}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bool returns the BOOLEAN payload.
func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Int returns the INTEGER payload.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.num
}

// Bytes returns the payload of an OCTET STRING, BIT STRING or OBJECT
// IDENTIFIER value.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindBytes, KindBits, KindOID:
		return v.bytes
	}
	return nil
}

// Unused returns the unused bit count of a BIT STRING.
func (v Value) Unused() int {
	if v.kind != KindBits {
		return 0
	}
	return int(v.num)
}

// Get returns the component at ordinal ord.
func (v Value) Get(ord int) (Value, bool) {
	if v.kind != KindTable {
		return Value{}, false
	}
	e, ok := v.table[ord]
	return e, ok
}

// Set stores e at ordinal ord. It panics if v is not a table.
func (v Value) Set(ord int, e Value) {
	if v.kind != KindTable {
		panic("ber: Set on " + v.kind.String() + " value")
	}
	v.table[ord] = e
}

// Len returns the number of components of a table.
func (v Value) Len() int { return len(v.table) }

// Ords returns the ordinals present in a table in ascending order.
func (v Value) Ords() []int {
	ords := make([]int, 0, len(v.table))
	for k := range v.table {
		ords = append(ords, k)
	}
	slices.Sort(ords)
	return ords
}

// Equal reports whether v and w hold the same value tree.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindBool, KindInt:
		return v.num == w.num
	case KindBytes, KindOID:
		return bytes.Equal(v.bytes, w.bytes)
	case KindBits:
		return v.num == w.num && bytes.Equal(v.bytes, w.bytes)
	case KindTable:
		if len(v.table) != len(w.table) {
			return false
		}
		for k, e := range v.table {
			f, ok := w.table[k]
			if !ok || !e.Equal(f) {
				return false
			}
		}
	}
	return true
}

// String renders v compactly for logs and test failures.
func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		fmt.Fprint(b, v.Bool())
	case KindInt:
		fmt.Fprint(b, v.num)
	case KindBytes:
		fmt.Fprintf(b, "%q", v.bytes)
	case KindBits:
		b.WriteString(formatBits(v.bytes, v.Unused()))
		b.WriteByte('b')
	case KindOID:
		s, err := odr.FormatOID(v.bytes)
		if err != nil {
			fmt.Fprintf(b, "oid(% x)", v.bytes)
			return
		}
		b.WriteString(s)
	case KindTable:
		b.WriteByte('{')
		for i, k := range v.Ords() {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%d: ", k)
			v.table[k].format(b)
		}
		b.WriteByte('}')
	default:
		b.WriteString("<invalid>")
	}
}

// formatBits renders a bit string as '0' and '1' characters.
func formatBits(data []byte, unused int) string {
	n := len(data)*8 - unused
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	for i := range n {
		if data[i/8]&(0x80>>(i%8)) != 0 {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}

// parseBits is the inverse of formatBits.
func parseBits(s string) ([]byte, int, error) {
	data := make([]byte, (len(s)+7)/8)
	for i, c := range s {
		switch c {
		case '1':
			data[i/8] |= 0x80 >> (i % 8)
		case '0':
		default:
			return nil, 0, fmt.Errorf("bit string %q: unexpected %q", s, c)
		}
	}
	return data, len(data)*8 - len(s), nil
}

// nest wraps v in one single-entry table per ordinal, outermost first.
func nest(ords []int, v Value) Value {
	for i := len(ords) - 1; i >= 0; i-- {
		v = Table(map[int]Value{ords[i]: v})
	}
	return v
}
