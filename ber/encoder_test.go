package ber_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golangsnmp/goodr/ber"
	"github.com/golangsnmp/goodr/odr"
)

// encodeWith drains an encoder through a dst of the given size.
func encodeWith(t testing.TB, e *ber.Encoder, size int) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, size)
	for range 1 << 20 {
		n, done, err := e.Encode(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		if done {
			return out
		}
		require.Positive(t, n, "no progress with a %d byte buffer", size)
	}
	t.Fatal("encoder did not finish")
	return nil
}

func TestEncodeFoo(t *testing.T) {
	s := compile(t, fooSchema)
	got, err := ber.Marshal(s, ber.Table(map[int]ber.Value{1: ber.Int(5)}))
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "30 03 02 01 05"), got)

	got, err = ber.Marshal(s, ber.Table(map[int]ber.Value{1: ber.Int(5), 2: ber.Text("hi")}))
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "30 07 02 01 05 04 02 68 69"), got)
}

func TestEncodeInteger(t *testing.T) {
	s := compile(t, intSchema)
	tests := []struct {
		v    int64
		want string
	}{
		{128, "02 02 00 80"},
		{-128, "02 01 80"},
		{0, "02 01 00"},
		{-1, "02 01 FF"},
		{256, "02 02 01 00"},
		{-129, "02 02 FF 7F"},
	}
	for _, tt := range tests {
		got, err := ber.Marshal(s, ber.Int(tt.v))
		require.NoError(t, err)
		assert.Equal(t, unhex(t, tt.want), got, "int %d", tt.v)
	}
}

func TestEncodePrimitives(t *testing.T) {
	s := compile(t, `
Prim-Module DEFINITIONS ::= BEGIN
  P ::= SEQUENCE {
    b BOOLEAN OPTIONAL,
    n NULL OPTIONAL,
    o OBJECT IDENTIFIER OPTIONAL,
    f BIT STRING OPTIONAL,
    e [1] INTEGER OPTIONAL
  }
END`)
	tests := []struct {
		name string
		ord  int
		v    ber.Value
		want string
	}{
		{"true", 1, ber.Bool(true), "01 01 FF"},
		{"false", 1, ber.Bool(false), "01 01 00"},
		{"null", 2, ber.Null(), "05 00"},
		{"oid", 3, ber.OID([]byte{0x2A, 0x03}), "06 02 2A 03"},
		{"bits", 4, ber.Bits([]byte{0xA7}, 5), "03 02 05 A0"},
		{"bytes as bits", 4, ber.Bytes([]byte{0xFF}), "03 02 00 FF"},
		{"explicit", 5, ber.Int(7), "A1 03 02 01 07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ber.Marshal(s, ber.Table(map[int]ber.Value{tt.ord: tt.v}))
			require.NoError(t, err)
			want := unhex(t, tt.want)
			assert.Equal(t, append([]byte{0x30, byte(len(want))}, want...), got)
		})
	}
}

func TestEncodeChoiceTakesFirstPresent(t *testing.T) {
	s := compile(t, choiceSchema)
	got, err := ber.Marshal(s, ber.Table(map[int]ber.Value{3: ber.Bool(false), 2: ber.Text("x")}))
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "81 01 78"), got)

	_, err = ber.Marshal(s, ber.Table(map[int]ber.Value{9: ber.Int(1)}))
	assert.ErrorIs(t, err, ber.ErrBadValue)
}

func TestEncodeNestedChoices(t *testing.T) {
	s := compile(t, nestedChoiceSchema)
	v := ber.Table(map[int]ber.Value{
		1: ber.Table(map[int]ber.Value{
			1: ber.Table(map[int]ber.Value{1: ber.Int(1)}),
		}),
	})
	got, err := ber.Marshal(s, v)
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "87 01 01"), got)

	_, err = ber.Marshal(s, v, ber.WithMaxChoices(1))
	assert.ErrorIs(t, err, ber.ErrChoicesOverflow)
}

func TestEncodeExternal(t *testing.T) {
	s := compile(t, externalSchema)
	v := ber.Table(map[int]ber.Value{
		1: ber.Int(1),
		2: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.2")),
			4: ber.Table(map[int]ber.Value{
				1: ber.Table(map[int]ber.Value{1: ber.Text("x")}),
			}),
		}),
	})
	got, err := ber.Marshal(s, v)
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "30 15 02 01 01 28 10 06 07 2A 86 48 CE 13 63 02 A0 05 30 03 04 01 78"), got)

	// Decoding tolerates an unknown module; encoding cannot.
	unknown := ber.Table(map[int]ber.Value{
		1: ber.Int(1),
		2: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.3")),
			4: ber.Table(map[int]ber.Value{1: ber.Bytes(nil)}),
		}),
	})
	_, err = ber.Marshal(s, unknown)
	assert.ErrorIs(t, err, ber.ErrUnknownModule)

	noRef := ber.Table(map[int]ber.Value{
		1: ber.Int(1),
		2: ber.Table(map[int]ber.Value{
			4: ber.Table(map[int]ber.Value{1: ber.Bytes(nil)}),
		}),
	})
	_, err = ber.Marshal(s, noRef)
	assert.ErrorIs(t, err, ber.ErrBadExternal)

	octets := ber.Table(map[int]ber.Value{
		1: ber.Int(1),
		2: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.3")),
			4: ber.Table(map[int]ber.Value{2: ber.Text("raw")}),
		}),
	})
	got, err = ber.Marshal(s, octets)
	require.NoError(t, err)
	back, err := decode(t, s, got)
	require.NoError(t, err)
	requireValue(t, octets, back)
}

func TestEncodeExternalReferenceDoesNotLeak(t *testing.T) {
	s := compile(t, externalPairSchema)
	v := ber.Table(map[int]ber.Value{
		1: ber.Table(map[int]ber.Value{
			1: ber.OID(oid(t, "1.2.840.10003.99.2")),
			4: ber.Table(map[int]ber.Value{2: ber.Text("r")}),
		}),
		2: ber.Table(map[int]ber.Value{
			4: ber.Table(map[int]ber.Value{
				1: ber.Table(map[int]ber.Value{1: ber.Text("x")}),
			}),
		}),
	})
	_, err := ber.Marshal(s, v)
	assert.ErrorIs(t, err, ber.ErrBadExternal)
}

func TestEncodeErrors(t *testing.T) {
	foo := compile(t, fooSchema)
	tree := compile(t, recursiveSchema)

	tests := []struct {
		name   string
		schema *odr.Schema
		v      ber.Value
		opts   []ber.Option
		code   ber.Code
	}{
		{"missing mandatory", foo, ber.Table(map[int]ber.Value{2: ber.Text("x")}), nil, ber.ErrBadValue},
		{"wrong kind", foo, ber.Table(map[int]ber.Value{1: ber.Text("x")}), nil, ber.ErrBadValue},
		{"not a table", foo, ber.Int(5), nil, ber.ErrBadPDU},
		{"invalid", foo, ber.Value{}, nil, ber.ErrBadPDU},
		{"bad oid", compile(t, "Oid-Module DEFINITIONS ::= BEGIN O ::= OBJECT IDENTIFIER END"), ber.OID([]byte{0x81}), nil, ber.ErrBadOID},
		{"depth", tree, ber.Table(map[int]ber.Value{
			1: ber.Int(1),
			2: ber.Table(map[int]ber.Value{1: ber.Int(2)}),
		}), []ber.Option{ber.WithMaxDepth(2)}, ber.ErrStackOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ber.NewEncoder(tt.schema, tt.v, tt.opts...)
			_, err := e.Bytes()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.code)

			_, _, again := e.Encode(make([]byte, 64))
			assert.Equal(t, err, again, "error is sticky")
		})
	}
}

func TestEncodeTransferLimit(t *testing.T) {
	s := compile(t, fooSchema)
	e := ber.NewEncoder(s, ber.Table(map[int]ber.Value{1: ber.Int(5)}))
	_, _, err := e.Encode(make([]byte, ber.MinBufferSize-1))
	assert.ErrorIs(t, err, ber.ErrTransferLimit)

	got := encodeWith(t, e, ber.MinBufferSize)
	assert.Equal(t, unhex(t, "30 03 02 01 05"), got, "session survives a short buffer")
}

func TestEncodeLongFormLength(t *testing.T) {
	s := compile(t, fooSchema)
	payload := bytes.Repeat([]byte{'a'}, 200)
	got, err := ber.Marshal(s, ber.Table(map[int]ber.Value{1: ber.Int(5), 2: ber.Bytes(payload)}))
	require.NoError(t, err)

	want := unhex(t, "30 81 CE 02 01 05 04 81 C8")
	want = append(want, payload...)
	assert.Equal(t, want, got)
}

func TestEncodeWindowFallsBackToIndefinite(t *testing.T) {
	s := compile(t, fooSchema)
	payload := bytes.Repeat([]byte{0x5A}, 5000)
	v := ber.Table(map[int]ber.Value{1: ber.Int(5), 2: ber.Bytes(payload)})

	got, err := ber.Marshal(s, v)
	require.NoError(t, err)
	want := unhex(t, "30 80 02 01 05 04 82 13 88")
	want = append(want, payload...)
	want = append(want, 0, 0)
	assert.Equal(t, want, got)

	wide, err := ber.Marshal(s, v, ber.WithWindow(1<<16))
	require.NoError(t, err)
	want = unhex(t, "30 82 13 8F 02 01 05 04 82 13 88")
	want = append(want, payload...)
	assert.Equal(t, want, wide)

	for _, data := range [][]byte{got, wide} {
		back, err := decode(t, s, data)
		require.NoError(t, err)
		requireValue(t, v, back)
	}
}

func TestEncodeBufferSizeInvariance(t *testing.T) {
	s := compile(t, richSchema)
	v := richValue(t)
	want, err := ber.Marshal(s, v)
	require.NoError(t, err)

	for size := ber.MinBufferSize; size <= 64; size++ {
		got := encodeWith(t, ber.NewEncoder(s, v), size)
		require.Equal(t, want, got, "buffer size %d", size)
	}

	foo := compile(t, fooSchema)
	big := ber.Table(map[int]ber.Value{1: ber.Int(5), 2: ber.Bytes(bytes.Repeat([]byte{7}, 3*ber.MinBufferSize+5))})
	for _, window := range []int{ber.MinBufferSize, 32, 100} {
		ref := encodeWith(t, ber.NewEncoder(foo, big, ber.WithWindow(window)), 1024)
		for size := ber.MinBufferSize; size <= 64; size++ {
			got := encodeWith(t, ber.NewEncoder(foo, big, ber.WithWindow(window)), size)
			require.Equal(t, ref, got, "window %d buffer size %d", window, size)
		}
		back, err := decode(t, foo, ref)
		require.NoError(t, err)
		requireValue(t, big, back)
	}
}

func TestEncodeNestedWindow(t *testing.T) {
	s := compile(t, richSchema)
	v := richValue(t)
	items := make([]ber.Value, 40)
	for i := range items {
		items[i] = ber.Table(map[int]ber.Value{
			1: ber.Int(int64(i)),
			2: ber.List(ber.Text("abcdefghij"), ber.Text("klmnopqrst")),
		})
	}
	v.Set(6, ber.List(items...))

	for _, window := range []int{ber.MinBufferSize, 64, 256, ber.DefaultWindow} {
		data := encodeWith(t, ber.NewEncoder(s, v, ber.WithWindow(window)), 37)
		back, err := decode(t, s, data)
		require.NoError(t, err, "window %d", window)
		requireValue(t, v, back)
	}
}

func TestRoundTrip(t *testing.T) {
	s := compile(t, richSchema)
	v := richValue(t)

	data, err := ber.Marshal(s, v)
	require.NoError(t, err)
	back, err := decode(t, s, data)
	require.NoError(t, err)
	requireValue(t, v, back)

	again, err := ber.Marshal(s, back)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	// Optional components left out stay absent.
	minimal := ber.Table(map[int]ber.Value{
		1: ber.Int(0),
		4: ber.Bool(false),
		6: ber.List(),
		7: ber.Table(map[int]ber.Value{1: ber.Int(3)}),
	})
	data, err = ber.Marshal(s, minimal)
	require.NoError(t, err)
	back, err = decode(t, s, data)
	require.NoError(t, err)
	requireValue(t, minimal, back)
}

func TestEncoderReset(t *testing.T) {
	s := compile(t, fooSchema)
	e := ber.NewEncoder(s, ber.Int(1))
	_, err := e.Bytes()
	assert.ErrorIs(t, err, ber.ErrBadPDU)

	e.Reset(ber.Table(map[int]ber.Value{1: ber.Int(5)}))
	got, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, unhex(t, "30 03 02 01 05"), got)
}
