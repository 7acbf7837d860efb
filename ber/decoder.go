// Package ber translates between BER byte streams and Value trees using a
// compiled odr.Schema.
//
// Decoder and Encoder are resumable sessions. A Decoder accepts input in
// chunks of any size and reports when it needs more; an Encoder fills
// caller-supplied buffers and reports when it has more to give. Neither
// blocks, starts goroutines or keeps references to caller buffers between
// calls. Sessions are not safe for concurrent use; any number of sessions may
// share one Schema.
package ber

import (
	"log/slog"

	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

type frameKind uint8

const (
	frameRoot frameKind = iota
	frameSeq
	frameChoice
	frameTypeOf
	frameExplicit
	frameExternal
	frameSegments
	frameSkip
	frameLeaf
)

var frameNames = [...]string{
	frameRoot:     "root",
	frameSeq:      "seq",
	frameChoice:   "choice",
	frameTypeOf:   "type-of",
	frameExplicit: "explicit",
	frameExternal: "external",
	frameSegments: "segments",
	frameSkip:     "skip",
	frameLeaf:     "leaf",
}

func (k frameKind) String() string {
	return frameNames[k]
}

// frame is one open element of a decode session.
type frame struct {
	kind  frameKind
	rec   odr.Addr
	codec odr.Codec
	at    int // stream offset of the element's identifier
	end   int // stream offset past the content, or indefinite
	limit int // nearest definite end at or above this frame
	next  odr.Addr
	ords  []int // ordinal path of the value in the parent

	table  map[int]Value
	value  Value
	count  int
	buf    []byte
	unused int
}

// Decoder is a resumable BER decode session.
type Decoder struct {
	schema *odr.Schema
	opts   options
	types.Logger

	stack []frame
	carry []byte
	data  []byte
	p     int
	base  int // stream offset of data[0]

	ext   odr.ModuleID
	extOK bool
	err   error
}

// NewDecoder returns a decode session over schema.
func NewDecoder(schema *odr.Schema, opts ...Option) *Decoder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder{
		schema: schema,
		opts:   o,
		Logger: types.Component(o.logger, "decoder"),
	}
}

// Reset discards all session state, including a sticky error. Stream
// offsets restart at zero.
func (d *Decoder) Reset() {
	d.stack = d.stack[:0]
	d.carry = nil
	d.data = nil
	d.p = 0
	d.base = 0
	d.extOK = false
	d.err = nil
}

// Decode consumes chunk. When a complete PDU has been read it returns the
// value, the unread rest of the input and done=true; the next call starts a
// new PDU, so callers pass tail back in. Otherwise all of chunk has been
// consumed or buffered and the caller supplies the following bytes.
//
// A returned error is a *Error and ends the session until Reset.
func (d *Decoder) Decode(chunk []byte) (v Value, tail []byte, done bool, err error) {
	if d.err != nil {
		return Value{}, nil, false, d.err
	}
	data := chunk
	if len(d.carry) > 0 {
		data = append(d.carry, chunk...)
	}
	d.data, d.p = data, 0

	done, err = d.run()
	switch {
	case err != nil:
		d.err = err
		d.data = nil
		return Value{}, nil, false, err
	case !done:
		d.base += d.p
		d.carry = append(d.carry[:0], data[d.p:]...)
		d.data = nil
		return Value{}, nil, false, nil
	}
	v = d.stack[0].value
	tail = data[d.p:]
	d.base += d.p
	d.stack = d.stack[:0]
	d.carry = nil
	d.data = nil
	d.extOK = false
	d.Log(slog.LevelDebug, "pdu decoded", slog.Int("end", d.base))
	return v, tail, true, nil
}

func (d *Decoder) pos() int {
	return d.base + d.p
}

func (d *Decoder) top() *frame {
	return &d.stack[len(d.stack)-1]
}

func (d *Decoder) fail(code Code, at int) error {
	d.Log(slog.LevelDebug, "decode failed",
		slog.String("error", Strerror(code)),
		slog.Int("offset", at))
	return &Error{Code: code, Offset: at}
}

func (d *Decoder) run() (bool, error) {
	if len(d.stack) == 0 {
		start := d.schema.Start()
		if start == odr.NoAddr {
			return false, d.fail(ErrBadSchema, d.pos())
		}
		d.stack = append(d.stack, frame{
			kind:  frameRoot,
			at:    d.pos(),
			end:   indefinite,
			limit: indefinite,
			next:  start,
		})
	}
	for {
		f := d.top()
		switch {
		case f.kind == frameRoot && f.count > 0:
			return true, nil
		case f.kind == frameLeaf:
			if !d.fill(f) {
				return false, nil
			}
			if err := d.finish(); err != nil {
				return false, err
			}
			continue
		case f.end != indefinite && d.pos() >= f.end:
			if err := d.finish(); err != nil {
				return false, err
			}
			continue
		}

		at := d.pos()
		avail := d.data[d.p:]
		bounded := false
		if f.limit != indefinite && len(avail) > f.limit-at {
			avail = avail[:f.limit-at]
			bounded = true
		}
		h, ok, code := parseHeader(avail)
		if code != 0 {
			return false, d.fail(code, at)
		}
		if !ok {
			if bounded {
				return false, d.fail(ErrBadLength, at)
			}
			return false, nil
		}
		d.p += h.size
		if h.eoc {
			if f.end != indefinite || f.kind == frameRoot {
				return false, d.fail(ErrBadTag, at)
			}
			if err := d.finish(); err != nil {
				return false, err
			}
			continue
		}
		if h.length != indefinite && f.limit != indefinite && d.pos()+h.length > f.limit {
			return false, d.fail(ErrBadLength, at)
		}
		if err := d.element(h, at); err != nil {
			return false, err
		}
	}
}

// element opens the element whose header was just read.
func (d *Decoder) element(h header, at int) error {
	f := d.top()
	switch f.kind {
	case frameSkip:
		if h.constructed {
			return d.push(frame{kind: frameSkip}, h, at)
		}
		return d.push(frame{kind: frameLeaf, codec: odr.CodecSkip}, h, at)
	case frameSegments:
		want := odr.TagOctetString
		if f.codec == odr.CodecBit {
			want = odr.TagBitString
		}
		if h.tag != want {
			return d.fail(ErrBadTag, at)
		}
		if h.constructed {
			return d.push(frame{kind: frameSegments, codec: f.codec}, h, at)
		}
		if code := checkLength(f.codec, h.length); code != 0 {
			return d.fail(code, at)
		}
		return d.push(frame{kind: frameLeaf, codec: f.codec}, h, at)
	case frameRoot, frameExplicit, frameExternal:
		if f.count > 0 {
			return d.fail(ErrBadValue, at)
		}
	}
	a, ords, code := d.lookup(f, h.tag)
	if code != 0 {
		return d.fail(code, at)
	}
	return d.open(a, ords, h, at)
}

// open pushes the frame decoding record a.
func (d *Decoder) open(a odr.Addr, ords []int, h header, at int) error {
	r := d.schema.Record(a)
	fr := frame{rec: a, ords: ords, next: r.Sub}
	if r.Tag == odr.TagExternal {
		d.extOK = false
	}
	if !r.Constructed() {
		c := r.Codec()
		fr.codec = c
		switch {
		case c == odr.CodecExtASN:
			if !h.constructed {
				return d.fail(ErrBadExternal, at)
			}
			fr.kind = frameSkip
			if d.extOK {
				fr.kind = frameExternal
				fr.next = d.ext.Root
			}
			d.extOK = false
		case h.constructed:
			switch c {
			case odr.CodecOctet, odr.CodecBit:
				fr.kind = frameSegments
			case odr.CodecSkip:
				fr.kind = frameSkip
			default:
				return d.fail(ErrBadTag, at)
			}
		default:
			if code := checkLength(c, h.length); code != 0 {
				return d.fail(code, at)
			}
			fr.kind = frameLeaf
		}
		return d.push(fr, h, at)
	}

	if !h.constructed {
		return d.fail(ErrBadTag, at)
	}
	switch {
	case r.Has(odr.FlagExplicit):
		fr.kind = frameExplicit
	case r.Has(odr.FlagChoice):
		fr.kind = frameChoice
	case r.Has(odr.FlagTypeOf):
		fr.kind = frameTypeOf
	default:
		fr.kind = frameSeq
	}
	return d.push(fr, h, at)
}

func (d *Decoder) push(fr frame, h header, at int) error {
	if len(d.stack) >= d.opts.maxDepth {
		return d.fail(ErrStackOverflow, at)
	}
	parent := d.top()
	fr.at = at
	if h.length == indefinite {
		fr.end = indefinite
		fr.limit = parent.limit
	} else {
		fr.end = d.pos() + h.length
		fr.limit = fr.end
	}
	switch fr.kind {
	case frameSeq, frameChoice, frameTypeOf:
		fr.table = make(map[int]Value)
	}
	if d.TraceEnabled() {
		d.Frame("push", fr.kind.String(), d.schema.RecordName(fr.rec),
			slog.String("tag", h.tag.String()),
			slog.Int("offset", at),
			slog.Int("length", h.length))
	}
	d.stack = append(d.stack, fr)
	return nil
}

// lookup finds the record for tag among the candidates of f and returns
// the ordinal path from f's level down to it. Untagged CHOICE heads on the
// way contribute their own ordinals.
func (d *Decoder) lookup(f *frame, tag odr.Tag) (odr.Addr, []int, Code) {
	switch f.kind {
	case frameChoice:
		a, ords, code := d.choose(f.next, tag, 0)
		if code != 0 {
			return odr.NoAddr, nil, code
		}
		if a == odr.NoAddr {
			return odr.NoAddr, nil, ErrNoMatch
		}
		f.next = odr.NoAddr
		return a, ords, 0

	case frameSeq:
		for a, steps := f.next, 0; a != odr.NoAddr; steps++ {
			if steps > d.schema.Len() {
				return odr.NoAddr, nil, ErrBadSchema
			}
			r := d.schema.Record(a)
			if r.Tag == tag {
				f.next = r.Next
				return a, []int{int(r.Ord)}, 0
			}
			if isHead(r) {
				m, ords, code := d.choose(r.Sub, tag, 1)
				if code != 0 {
					return odr.NoAddr, nil, code
				}
				if m != odr.NoAddr {
					f.next = r.Next
					return m, append([]int{int(r.Ord)}, ords...), 0
				}
			}
			if !r.Has(odr.FlagOptional) {
				break
			}
			a = r.Next
		}
		return odr.NoAddr, nil, ErrNoMatch
	}

	a := f.next
	if a == odr.NoAddr {
		return odr.NoAddr, nil, ErrNoMatch
	}
	r := d.schema.Record(a)
	if r.Tag == tag {
		return a, []int{int(r.Ord)}, 0
	}
	if isHead(r) {
		m, ords, code := d.choose(r.Sub, tag, 1)
		if code != 0 {
			return odr.NoAddr, nil, code
		}
		if m != odr.NoAddr {
			return m, append([]int{int(r.Ord)}, ords...), 0
		}
	}
	return odr.NoAddr, nil, ErrNoMatch
}

// choose searches the alternatives starting at a, entering nested
// untagged CHOICE heads. depth is the number of heads already entered.
func (d *Decoder) choose(a odr.Addr, tag odr.Tag, depth int) (odr.Addr, []int, Code) {
	for steps := 0; a != odr.NoAddr; steps++ {
		if steps > d.schema.Len() {
			return odr.NoAddr, nil, ErrBadSchema
		}
		r := d.schema.Record(a)
		if r.Tag == tag {
			return a, []int{int(r.Ord)}, 0
		}
		if isHead(r) {
			if depth >= d.opts.maxChoices {
				return odr.NoAddr, nil, ErrChoicesOverflow
			}
			m, ords, code := d.choose(r.Sub, tag, depth+1)
			if code != 0 {
				return odr.NoAddr, nil, code
			}
			if m != odr.NoAddr {
				return m, append([]int{int(r.Ord)}, ords...), 0
			}
		}
		a = r.Next
	}
	return odr.NoAddr, nil, 0
}

// isHead reports whether r is an untagged CHOICE, whose alternatives are
// matched in its place.
func isHead(r odr.Record) bool {
	return r.Tag == 0 && r.Has(odr.FlagChoice)
}

// fill moves leaf content from the input into f. It reports whether the
// content is complete.
func (d *Decoder) fill(f *frame) bool {
	need := f.end - d.pos()
	avail := len(d.data) - d.p
	if !streams(f.codec) && avail < need {
		return false
	}
	n := min(need, avail)
	if f.codec != odr.CodecSkip {
		f.buf = append(f.buf, d.data[d.p:d.p+n]...)
	}
	d.p += n
	return n == need
}

// finish pops the top frame and stores its value in the parent.
func (d *Decoder) finish() error {
	if len(d.stack) < 2 {
		return d.fail(ErrStackUnderflow, d.pos())
	}
	f := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	p := d.top()
	if d.TraceEnabled() {
		d.Frame("pop", f.kind.String(), d.schema.RecordName(f.rec), slog.Int("offset", d.pos()))
	}

	var v Value
	switch f.kind {
	case frameLeaf:
		switch p.kind {
		case frameSkip:
			return nil
		case frameSegments:
			return d.segment(p, f.codec, f.buf, f.at)
		}
		var code Code
		v, code = decodePrimitive(f.codec, f.buf)
		if code != 0 {
			return d.fail(code, f.at)
		}
		if f.codec == odr.CodecExtDRef {
			d.ext, d.extOK = d.schema.LookupModule(v.Bytes())
		}
	case frameSegments:
		if p.kind == frameSegments {
			if p.unused != 0 {
				return d.fail(ErrBadValue, f.at)
			}
			p.buf = append(p.buf, f.buf...)
			p.unused = f.unused
			return nil
		}
		if f.codec == odr.CodecBit {
			if len(f.buf) == 0 && f.unused != 0 {
				return d.fail(ErrBadValue, f.at)
			}
			if len(f.buf) > 0 {
				f.buf[len(f.buf)-1] &= 0xFF << f.unused
			}
			v = Bits(nonNil(f.buf), f.unused)
		} else {
			v = Bytes(nonNil(f.buf))
		}
	case frameSkip:
		if p.kind == frameSkip {
			return nil
		}
		v = Bytes([]byte{})
	case frameSeq, frameTypeOf:
		v = Table(f.table)
	case frameChoice:
		if len(f.table) == 0 {
			return d.fail(ErrBadValue, f.at)
		}
		v = Table(f.table)
	case frameExplicit, frameExternal:
		if f.count != 1 {
			return d.fail(ErrBadValue, f.at)
		}
		v = f.value
	default:
		return d.fail(ErrStackUnderflow, f.at)
	}

	switch p.kind {
	case frameSeq, frameChoice:
		p.table[f.ords[0]] = nest(f.ords[1:], v)
	case frameTypeOf:
		p.count++
		p.table[p.count] = nest(f.ords[1:], v)
	default:
		p.count++
		p.value = nest(f.ords[1:], v)
	}
	return nil
}

// segment appends one primitive segment of a constructed string.
func (d *Decoder) segment(p *frame, c odr.Codec, raw []byte, at int) error {
	if c == odr.CodecBit {
		if p.unused != 0 || len(raw) == 0 || raw[0] > 7 {
			return d.fail(ErrBadValue, at)
		}
		p.unused = int(raw[0])
		raw = raw[1:]
	}
	p.buf = append(p.buf, raw...)
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
