package ber_test

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golangsnmp/goodr"
	"github.com/golangsnmp/goodr/ber"
	"github.com/golangsnmp/goodr/odr"
)

const fooSchema = `
Foo-Module DEFINITIONS ::= BEGIN
  Foo ::= SEQUENCE { a INTEGER, b OCTET STRING OPTIONAL }
END`

const recursiveSchema = `
Tree-Module DEFINITIONS ::= BEGIN
  Node ::= SEQUENCE { a INTEGER, b Node OPTIONAL }
END`

const intSchema = `
Int-Module DEFINITIONS ::= BEGIN
  N ::= INTEGER
END`

const choiceSchema = `
Pdu-Module DEFINITIONS IMPLICIT TAGS ::= BEGIN
  Pdu ::= CHOICE {
    a [0] INTEGER,
    b [1] OCTET STRING,
    c [2] BOOLEAN
  }
END`

const nestedChoiceSchema = `
Nest-Module DEFINITIONS IMPLICIT TAGS ::= BEGIN
  A ::= CHOICE { b B, z [5] INTEGER }
  B ::= CHOICE { c C, y [6] INTEGER }
  C ::= CHOICE { x [7] INTEGER }
END`

const richSchema = `
Rich-Module { 1 2 840 10003 99 10 } DEFINITIONS IMPLICIT TAGS ::= BEGIN
  Record ::= SEQUENCE {
    id      INTEGER,
    name    [0] VisibleString OPTIONAL,
    flags   [1] BIT STRING OPTIONAL,
    ok      BOOLEAN,
    kind    OBJECT IDENTIFIER OPTIONAL,
    items   [2] SEQUENCE OF Item,
    choice  Alt,
    note    [3] EXPLICIT OCTET STRING OPTIONAL,
    nothing NULL OPTIONAL
  }
  Item ::= SEQUENCE { n INTEGER, tags SET OF VisibleString OPTIONAL }
  Alt ::= CHOICE { small [4] INTEGER, big [5] OCTET STRING, nested [6] Item }
END`

const externalSchema = `
Outer-Module { 1 2 840 10003 99 1 } DEFINITIONS ::= BEGIN
  Outer ::= SEQUENCE { id INTEGER, ext EXTERNAL }
END

Inner-Module { 1 2 840 10003 99 2 } DEFINITIONS ::= BEGIN
  Inner ::= SEQUENCE { name OCTET STRING }
END`

const externalPairSchema = `
Pair-Module { 1 2 840 10003 99 3 } DEFINITIONS ::= BEGIN
  Pair ::= SEQUENCE { e1 EXTERNAL, e2 EXTERNAL }
END

Inner-Module { 1 2 840 10003 99 2 } DEFINITIONS ::= BEGIN
  Inner ::= SEQUENCE { name OCTET STRING }
END`

func compile(t testing.TB, src string) *odr.Schema {
	t.Helper()
	res, err := goodr.Compile(context.Background(), []goodr.Input{
		{Name: "test.asn", Data: []byte(src), Start: true},
	})
	require.NoError(t, err)
	return res.Schema
}

func unhex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func oid(t testing.TB, s string) []byte {
	t.Helper()
	b, err := odr.ParseOID(s)
	require.NoError(t, err)
	return b
}

func requireValue(t testing.TB, want, got ber.Value) {
	t.Helper()
	require.True(t, want.Equal(got), "want %s\n got %s", want, got)
}

// decodeAll feeds chunks to one decoder and expects exactly one PDU that
// ends with the last byte.
func decodeAll(t testing.TB, d *ber.Decoder, chunks ...[]byte) (ber.Value, error) {
	t.Helper()
	for i, c := range chunks {
		v, tail, done, err := d.Decode(c)
		if err != nil {
			return ber.Value{}, err
		}
		if done {
			require.Empty(t, tail, "tail after PDU")
			require.Equal(t, len(chunks)-1, i, "PDU ended early")
			return v, nil
		}
	}
	t.Fatalf("decoder wants more input after %d chunks", len(chunks))
	return ber.Value{}, nil
}

func decode(t testing.TB, s *odr.Schema, data []byte, opts ...ber.Option) (ber.Value, error) {
	t.Helper()
	return decodeAll(t, ber.NewDecoder(s, opts...), data)
}

func requireCode(t testing.TB, err error, code ber.Code, offset int) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, code)
	var be *ber.Error
	require.True(t, errors.As(err, &be), "error %v is not a *ber.Error", err)
	assert.Equal(t, offset, be.Offset, "offset of %v", err)
}

func richValue(t testing.TB) ber.Value {
	item := func(n int64, tags ...string) ber.Value {
		v := ber.Table(map[int]ber.Value{1: ber.Int(n)})
		if len(tags) > 0 {
			elems := make([]ber.Value, len(tags))
			for i, s := range tags {
				elems[i] = ber.Text(s)
			}
			v.Set(2, ber.List(elems...))
		}
		return v
	}
	return ber.Table(map[int]ber.Value{
		1: ber.Int(42),
		2: ber.Text("alice"),
		3: ber.Bits([]byte{0xA0}, 5),
		4: ber.Bool(true),
		5: ber.OID(oid(t, "1.2.840.10003.5.1")),
		6: ber.List(item(1), item(2, "x", "y")),
		7: ber.Table(map[int]ber.Value{3: item(-300, "z")}),
		8: ber.Text("note"),
		9: ber.Null(),
	})
}

func TestDecodeFoo(t *testing.T) {
	s := compile(t, fooSchema)
	v, err := decode(t, s, unhex(t, "30 03 02 01 05"))
	require.NoError(t, err)
	requireValue(t, ber.Table(map[int]ber.Value{1: ber.Int(5)}), v)
	_, ok := v.Get(2)
	assert.False(t, ok, "absent component has no key")
}

func TestDecodeInteger(t *testing.T) {
	s := compile(t, intSchema)
	tests := []struct {
		in   string
		want int64
	}{
		{"02 01 80", -128},
		{"02 02 00 80", 128},
		{"02 01 00", 0},
		{"02 01 FF", -1},
		{"02 08 7F FF FF FF FF FF FF FF", 1<<63 - 1},
	}
	for _, tt := range tests {
		v, err := decode(t, s, unhex(t, tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, ber.KindInt, v.Kind())
		assert.Equal(t, tt.want, v.Int(), tt.in)
	}
}

func TestDecodeIndefiniteMatchesDefinite(t *testing.T) {
	s := compile(t, fooSchema)
	definite, err := decode(t, s, unhex(t, "30 07 02 01 05 04 02 68 69"))
	require.NoError(t, err)
	indefinite, err := decode(t, s, unhex(t, "30 80 02 01 05 04 02 68 69 00 00"))
	require.NoError(t, err)
	requireValue(t, definite, indefinite)
}

func TestDecodeConstructedString(t *testing.T) {
	s := compile(t, fooSchema)
	v, err := decode(t, s, unhex(t, "30 80 02 01 05 24 80 04 02 68 65 24 03 04 01 6C 04 02 6C 6F 00 00 00 00"))
	require.NoError(t, err)
	b, ok := v.Get(2)
	require.True(t, ok)
	assert.Equal(t, "hello", string(b.Bytes()))
}

func TestDecodeChoiceDisambiguation(t *testing.T) {
	s := compile(t, choiceSchema)
	tests := []struct {
		in   string
		want ber.Value
	}{
		{"80 01 07", ber.Table(map[int]ber.Value{1: ber.Int(7)})},
		{"81 02 68 69", ber.Table(map[int]ber.Value{2: ber.Text("hi")})},
		{"82 01 01", ber.Table(map[int]ber.Value{3: ber.Bool(true)})},
	}
	for _, tt := range tests {
		v, err := decode(t, s, unhex(t, tt.in))
		require.NoError(t, err, tt.in)
		requireValue(t, tt.want, v)
	}

	_, err := decode(t, s, unhex(t, "83 01 01"))
	requireCode(t, err, ber.ErrNoMatch, 0)
}

func TestDecodeNestedChoices(t *testing.T) {
	s := compile(t, nestedChoiceSchema)
	in := unhex(t, "87 01 01")

	v, err := decode(t, s, in)
	require.NoError(t, err)
	want := ber.Table(map[int]ber.Value{
		1: ber.Table(map[int]ber.Value{
			1: ber.Table(map[int]ber.Value{1: ber.Int(1)}),
		}),
	})
	requireValue(t, want, v)

	v, err = decode(t, s, unhex(t, "85 01 02"))
	require.NoError(t, err)
	requireValue(t, ber.Table(map[int]ber.Value{2: ber.Int(2)}), v)

	_, err = decode(t, s, in, ber.WithMaxChoices(1))
	requireCode(t, err, ber.ErrChoicesOverflow, 0)
}

func TestDecodeExternal(t *testing.T) {
	s := compile(t, externalSchema)
	in := unhex(t, "30 15 02 01 01 28 10 06 07 2A 86 48 CE 13 63 02 A0 05 30 03 04 01 78")
	v, err := decode(t, s, in)
	require.NoError(t, err)

	inner := ber.Table(map[int]ber.Value{1: ber.Text("x")})
	want := ber.Table(map[int]ber.Value{
		1: ber.Int(1),
		2: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.2")),
			4: ber.Table(map[int]ber.Value{1: inner}),
		}),
	})
	requireValue(t, want, v)
}

func TestDecodeExternalUnknownModule(t *testing.T) {
	s := compile(t, externalSchema)
	in := unhex(t, "30 15 02 01 01 28 10 06 07 2A 86 48 CE 13 63 03 A0 05 30 03 04 01 78")
	v, err := decode(t, s, in)
	require.NoError(t, err)

	ext, ok := v.Get(2)
	require.True(t, ok)
	enc, ok := ext.Get(4)
	require.True(t, ok)
	body, ok := enc.Get(1)
	require.True(t, ok)
	assert.Equal(t, ber.KindBytes, body.Kind())
	assert.Empty(t, body.Bytes())
}

func TestDecodeExternalReferenceDoesNotLeak(t *testing.T) {
	s := compile(t, externalPairSchema)
	// e1 names Inner-Module but carries octet-aligned data; e2 has no
	// direct reference, so its embedded value stays opaque.
	in := unhex(t, "30 17"+
		" 28 0C 06 07 2A 86 48 CE 13 63 02 81 01 72"+
		" 28 07 A0 05 30 03 04 01 78")
	v, err := decode(t, s, in)
	require.NoError(t, err)

	want := ber.Table(map[int]ber.Value{
		1: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.2")),
			4: ber.Table(map[int]ber.Value{2: ber.Text("r")}),
		}),
		2: ber.Table(map[int]ber.Value{
			4: ber.Table(map[int]ber.Value{1: ber.Bytes(nil)}),
		}),
	})
	requireValue(t, want, v)
}

func TestDecodeChunkInvariance(t *testing.T) {
	s := compile(t, richSchema)
	data, err := ber.Marshal(s, richValue(t))
	require.NoError(t, err)
	whole, err := decode(t, s, data)
	require.NoError(t, err)
	requireValue(t, richValue(t), whole)

	for i := 1; i < len(data); i++ {
		v, err := decodeAll(t, ber.NewDecoder(s), data[:i], data[i:])
		require.NoError(t, err, "split at %d", i)
		requireValue(t, whole, v)
	}

	bytewise := make([][]byte, len(data))
	for i := range data {
		bytewise[i] = data[i : i+1]
	}
	v, err := decodeAll(t, ber.NewDecoder(s), bytewise...)
	require.NoError(t, err)
	requireValue(t, whole, v)
}

func TestDecodeChunkedIndefinite(t *testing.T) {
	s := compile(t, fooSchema)
	data := unhex(t, "30 80 02 01 05 24 80 04 02 68 65 04 03 6C 6C 6F 00 00 00 00")
	whole, err := decode(t, s, data)
	require.NoError(t, err)
	for i := 1; i < len(data); i++ {
		v, err := decodeAll(t, ber.NewDecoder(s), data[:i], data[i:])
		require.NoError(t, err, "split at %d", i)
		requireValue(t, whole, v)
	}
}

func TestDecodeSequentialPDUs(t *testing.T) {
	s := compile(t, fooSchema)
	d := ber.NewDecoder(s)
	in := unhex(t, "30 03 02 01 05 30 03 02 01 06 30")

	v, tail, done, err := d.Decode(in)
	require.NoError(t, err)
	require.True(t, done)
	requireValue(t, ber.Table(map[int]ber.Value{1: ber.Int(5)}), v)

	v, tail, done, err = d.Decode(tail)
	require.NoError(t, err)
	require.True(t, done)
	requireValue(t, ber.Table(map[int]ber.Value{1: ber.Int(6)}), v)
	assert.Equal(t, []byte{0x30}, tail)

	_, _, done, err = d.Decode(tail)
	require.NoError(t, err)
	assert.False(t, done)
	v, tail, done, err = d.Decode(unhex(t, "03 02 01 07"))
	require.NoError(t, err)
	require.True(t, done)
	assert.Empty(t, tail)
	requireValue(t, ber.Table(map[int]ber.Value{1: ber.Int(7)}), v)
}

func TestDecodeErrors(t *testing.T) {
	foo := compile(t, fooSchema)
	num := compile(t, intSchema)
	tree := compile(t, recursiveSchema)

	tests := []struct {
		name   string
		schema *odr.Schema
		in     string
		opts   []ber.Option
		code   ber.Code
		offset int
	}{
		{"no match", foo, "31 03 02 01 05", nil, ber.ErrNoMatch, 0},
		{"missing mandatory", foo, "30 03 04 01 05", nil, ber.ErrNoMatch, 2},
		{"eoc at root", foo, "00 00", nil, ber.ErrBadTag, 0},
		{"eoc in definite", foo, "30 04 00 00 02 00", nil, ber.ErrBadTag, 2},
		{"primitive sequence", foo, "10 00", nil, ber.ErrBadTag, 0},
		{"constructed integer", num, "22 03 02 01 05", nil, ber.ErrBadTag, 0},
		{"tag too long", foo, "3F 81 81 81 01 00", nil, ber.ErrTagTooLong, 0},
		{"length too long", foo, "30 85 00 00 00 00 03", nil, ber.ErrLengthTooLong, 0},
		{"overrun", foo, "30 03 02 05 05", nil, ber.ErrBadLength, 2},
		{"header overrun", foo, "30 01 02 01 05", nil, ber.ErrBadLength, 2},
		{"indefinite primitive", num, "02 80", nil, ber.ErrBadLength, 0},
		{"empty integer", num, "02 00", nil, ber.ErrBadValue, 0},
		{"long integer", num, "02 09 00 00 00 00 00 00 00 00 01", nil, ber.ErrBadValue, 0},
		{"depth", tree, "30 08 02 01 01 30 03 02 01 02", []ber.Option{ber.WithMaxDepth(3)}, ber.ErrStackOverflow, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(t, tt.schema, unhex(t, tt.in), tt.opts...)
			requireCode(t, err, tt.code, tt.offset)
		})
	}
}

func TestDecodePrimitiveErrors(t *testing.T) {
	s := compile(t, `
P DEFINITIONS ::= BEGIN
  P ::= SEQUENCE { b BOOLEAN OPTIONAL, n NULL OPTIONAL, o OBJECT IDENTIFIER OPTIONAL }
END`)
	tests := []struct {
		name string
		in   string
		code ber.Code
	}{
		{"bool length", "30 04 01 02 FF FF", ber.ErrBadValue},
		{"null length", "30 03 05 01 00", ber.ErrBadValue},
		{"empty oid", "30 02 06 00", ber.ErrBadOID},
		{"open oid", "30 03 06 01 81", ber.ErrBadOID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(t, s, unhex(t, tt.in))
			requireCode(t, err, tt.code, 2)
		})
	}

	v, err := decode(t, s, unhex(t, "30 08 01 01 07 05 00 06 01 2A"))
	require.NoError(t, err)
	want := ber.Table(map[int]ber.Value{
		1: ber.Bool(true),
		2: ber.Null(),
		3: ber.OID([]byte{0x2A}),
	})
	requireValue(t, want, v)
}

func TestDecodeStickyErrorAndReset(t *testing.T) {
	s := compile(t, fooSchema)
	d := ber.NewDecoder(s)
	_, _, _, err := d.Decode(unhex(t, "31 00"))
	requireCode(t, err, ber.ErrNoMatch, 0)

	_, _, _, again := d.Decode(unhex(t, "30 03 02 01 05"))
	assert.Equal(t, err, again, "error is sticky")

	d.Reset()
	v, err := decodeAll(t, d, unhex(t, "30 03 02 01 05"))
	require.NoError(t, err)
	requireValue(t, ber.Table(map[int]ber.Value{1: ber.Int(5)}), v)
}

func TestDecodeBadSchema(t *testing.T) {
	art := &odr.Artifact{Records: []odr.Record{{}}, Names: odr.NewNamePool().Bytes()}
	data, err := art.MarshalBinary()
	require.NoError(t, err)
	s, err := odr.Load(data)
	require.NoError(t, err)

	_, _, _, err = ber.NewDecoder(s).Decode([]byte{0x30, 0x00})
	requireCode(t, err, ber.ErrBadSchema, 0)
}

func TestConcurrentSessions(t *testing.T) {
	s := compile(t, richSchema)
	want := richValue(t)
	data, err := ber.Marshal(s, want)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 20 {
				d := ber.NewDecoder(s)
				var got ber.Value
				for off := 0; off < len(data); off += 7 {
					v, _, done, err := d.Decode(data[off:min(off+7, len(data))])
					if err != nil {
						errs[i] = err
						return
					}
					if done {
						got = v
					}
				}
				if !want.Equal(got) {
					errs[i] = errors.New("decoded value differs")
					return
				}
				out, err := ber.Marshal(s, got)
				if err != nil {
					errs[i] = err
					return
				}
				if string(out) != string(data) {
					errs[i] = errors.New("re-encoded bytes differ")
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
