package ber

import (
	"log/slog"

	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// encFrame is one open element of an encode session.
type encFrame struct {
	kind    frameKind
	rec     odr.Addr
	value   Value
	next    odr.Addr
	ords    []int  // type-of ordinals still to encode
	raw     []byte // leaf content still to stage
	started bool
	tagged  bool
	indef   bool
	ph      int // stage offset of the length placeholder
}

// pending reports whether f still waits for a definite length.
func (f *encFrame) pending() bool {
	return f.tagged && !f.indef
}

// Encoder is a resumable BER encode session for one value.
//
// Encoded bytes are staged until their enclosing lengths are known. A
// constructed element is given a definite length when it closes while still
// held in the staging window; once the held bytes outgrow the window, the
// outermost waiting element switches to indefinite length and everything
// before its content is released. The output therefore depends on the window
// size but never on the sizes of the buffers passed to Encode.
type Encoder struct {
	schema *odr.Schema
	opts   options
	types.Logger

	stack    []encFrame
	stage    []byte
	out      int
	finished bool
	err      error

	ext     odr.ModuleID
	extOK   bool
	extSeen bool
}

// NewEncoder returns an encode session for v against schema.
func NewEncoder(schema *odr.Schema, v Value, opts ...Option) *Encoder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Encoder{
		schema: schema,
		opts:   o,
		Logger: types.Component(o.logger, "encoder"),
	}
	e.Reset(v)
	return e
}

// Reset starts a new session for v, discarding any state and error.
func (e *Encoder) Reset(v Value) {
	e.stack = append(e.stack[:0], encFrame{
		kind:  frameRoot,
		rec:   e.schema.Start(),
		next:  e.schema.Start(),
		value: v,
		ph:    -1,
	})
	e.stage = e.stage[:0]
	e.out = 0
	e.finished = false
	e.err = nil
	e.extOK, e.extSeen = false, false
}

// Encode writes encoded bytes into dst and returns how many it wrote. done
// is true once the whole value has been written. A dst shorter than
// MinBufferSize fails with ErrTransferLimit without ending the session; any
// other error ends it until Reset.
func (e *Encoder) Encode(dst []byte) (n int, done bool, err error) {
	if e.err != nil {
		return 0, false, e.err
	}
	if len(dst) < MinBufferSize {
		return 0, false, &Error{Code: ErrTransferLimit, Offset: e.out}
	}
	for n < len(dst) {
		if r := e.releasable(); r > 0 {
			k := copy(dst[n:], e.stage[:r])
			e.release(k)
			n += k
			continue
		}
		if e.finished {
			break
		}
		if err := e.step(); err != nil {
			e.err = err
			return n, false, err
		}
		e.spill()
	}
	done = e.finished && len(e.stage) == 0
	if done {
		e.Log(slog.LevelDebug, "pdu encoded", slog.Int("size", e.out))
	}
	return n, done, nil
}

// Bytes encodes the whole value into a new slice.
func (e *Encoder) Bytes() ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, done, err := e.Encode(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out, err
		}
		if done {
			return out, nil
		}
	}
}

// Marshal encodes v against schema in one call.
func Marshal(schema *odr.Schema, v Value, opts ...Option) ([]byte, error) {
	return NewEncoder(schema, v, opts...).Bytes()
}

func (e *Encoder) fail(code Code) error {
	at := e.out + len(e.stage)
	e.Log(slog.LevelDebug, "encode failed",
		slog.String("error", Strerror(code)),
		slog.Int("offset", at))
	return &Error{Code: code, Offset: at}
}

// releasable returns how many staged bytes precede the first placeholder
// still waiting for a definite length.
func (e *Encoder) releasable() int {
	for i := range e.stack {
		if e.stack[i].pending() {
			return e.stack[i].ph
		}
	}
	return len(e.stage)
}

func (e *Encoder) release(k int) {
	copy(e.stage, e.stage[k:])
	e.stage = e.stage[:len(e.stage)-k]
	for i := range e.stack {
		if e.stack[i].pending() {
			e.stack[i].ph -= k
		}
	}
	e.out += k
}

// spill commits waiting elements to indefinite length, outermost first,
// until the held bytes fit the window. The placeholder octet already holds
// the indefinite marker.
func (e *Encoder) spill() {
	for i := range e.stack {
		f := &e.stack[i]
		if !f.pending() {
			continue
		}
		if len(e.stage)-f.ph <= e.opts.window {
			return
		}
		f.indef = true
		f.ph = -1
		if e.TraceEnabled() {
			e.Trace("indefinite", slog.String("name", e.schema.RecordName(f.rec)))
		}
	}
}

// step advances the top frame by one element.
func (e *Encoder) step() error {
	f := &e.stack[len(e.stack)-1]
	switch f.kind {
	case frameLeaf:
		n := min(len(f.raw), e.opts.window)
		e.stage = append(e.stage, f.raw[:n]...)
		f.raw = f.raw[n:]
		if len(f.raw) == 0 {
			e.stack = e.stack[:len(e.stack)-1]
		}
		return nil

	case frameSeq:
		for steps := 0; f.next != odr.NoAddr; steps++ {
			if steps > e.schema.Len() {
				return e.fail(ErrBadSchema)
			}
			a := f.next
			r := e.schema.Record(a)
			f.next = r.Next
			v, ok := f.value.Get(int(r.Ord))
			if !ok {
				if !r.Has(odr.FlagOptional) {
					return e.fail(ErrBadValue)
				}
				continue
			}
			return e.begin(a, v)
		}
		return e.close()

	case frameTypeOf:
		if len(f.ords) == 0 {
			return e.close()
		}
		v, _ := f.value.Get(f.ords[0])
		f.ords = f.ords[1:]
		return e.begin(f.next, v)

	case frameChoice:
		if f.started {
			return e.close()
		}
		f.started = true
		a, v, code := e.alternative(f.next, f.value)
		if code != 0 {
			return e.fail(code)
		}
		return e.begin(a, v)
	}

	// root, explicit, external
	if !f.started {
		if f.next == odr.NoAddr {
			return e.fail(ErrBadSchema)
		}
		f.started = true
		return e.begin(f.next, f.value)
	}
	if f.kind == frameRoot {
		e.stack = e.stack[:0]
		e.finished = true
		return nil
	}
	return e.close()
}

// begin emits record a with value v: a complete primitive, or the header of
// a constructed element whose frame is pushed.
func (e *Encoder) begin(a odr.Addr, v Value) error {
	r := e.schema.Record(a)
	for depth := 0; isHead(r); depth++ {
		if depth >= e.opts.maxChoices {
			return e.fail(ErrChoicesOverflow)
		}
		alt, av, code := e.alternative(r.Sub, v)
		if code != 0 {
			return e.fail(code)
		}
		a, v, r = alt, av, e.schema.Record(alt)
	}

	if r.Tag == odr.TagExternal {
		e.extSeen, e.extOK = false, false
	}
	if !r.Constructed() {
		c := r.Codec()
		if c == odr.CodecExtASN {
			return e.external(a, r, v)
		}
		content, code := encodePrimitive(c, v)
		if code != 0 {
			return e.fail(code)
		}
		if c == odr.CodecExtDRef {
			e.ext, e.extOK = e.schema.LookupModule(content)
			e.extSeen = true
		}
		if r.Tag != 0 {
			e.stage = r.Tag.AppendTo(e.stage, false)
			e.stage = appendLength(e.stage, len(content))
		}
		if len(content) <= e.opts.window {
			e.stage = append(e.stage, content...)
			return nil
		}
		return e.push(encFrame{kind: frameLeaf, rec: a, raw: content, ph: -1}, 0)
	}

	fr := encFrame{rec: a, value: v, next: r.Sub, ph: -1}
	switch {
	case r.Has(odr.FlagExplicit):
		fr.kind = frameExplicit
	case v.Kind() != KindTable:
		return e.fail(ErrBadPDU)
	case r.Has(odr.FlagChoice):
		fr.kind = frameChoice
	case r.Has(odr.FlagTypeOf):
		fr.kind = frameTypeOf
		fr.ords = v.Ords()
	default:
		fr.kind = frameSeq
	}
	return e.push(fr, r.Tag)
}

// external opens an EXTERNAL's embedded value, typed by the module named
// in the preceding direct reference.
func (e *Encoder) external(a odr.Addr, r odr.Record, v Value) error {
	switch {
	case !e.extSeen:
		return e.fail(ErrBadExternal)
	case !e.extOK:
		return e.fail(ErrUnknownModule)
	}
	e.extSeen, e.extOK = false, false
	return e.push(encFrame{kind: frameExternal, rec: a, value: v, next: e.ext.Root, ph: -1}, r.Tag)
}

// alternative returns the first alternative from a whose ordinal is
// present in v.
func (e *Encoder) alternative(a odr.Addr, v Value) (odr.Addr, Value, Code) {
	if v.Kind() != KindTable {
		return odr.NoAddr, Value{}, ErrBadPDU
	}
	for steps := 0; a != odr.NoAddr; steps++ {
		if steps > e.schema.Len() {
			return odr.NoAddr, Value{}, ErrBadSchema
		}
		r := e.schema.Record(a)
		if av, ok := v.Get(int(r.Ord)); ok {
			return a, av, 0
		}
		a = r.Next
	}
	return odr.NoAddr, Value{}, ErrBadValue
}

// push opens fr, emitting the constructed identifier and a placeholder
// length octet when tag is set.
func (e *Encoder) push(fr encFrame, tag odr.Tag) error {
	if len(e.stack) >= e.opts.maxDepth {
		return e.fail(ErrStackOverflow)
	}
	if tag != 0 {
		e.stage = tag.AppendTo(e.stage, true)
		fr.tagged = true
		fr.ph = len(e.stage)
		e.stage = append(e.stage, 0x80)
	}
	if e.TraceEnabled() {
		e.Frame("push", fr.kind.String(), e.schema.RecordName(fr.rec), slog.String("tag", tag.String()))
	}
	e.stack = append(e.stack, fr)
	return nil
}

// close pops the top frame and completes its length.
func (e *Encoder) close() error {
	f := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	switch {
	case !f.tagged:
	case f.indef:
		e.stage = append(e.stage, 0, 0)
	default:
		n := len(e.stage) - f.ph - 1
		if n < 0x80 {
			e.stage[f.ph] = byte(n)
			break
		}
		k := lengthSize(n)
		e.stage = append(e.stage, make([]byte, k-1)...)
		copy(e.stage[f.ph+k:], e.stage[f.ph+1:len(e.stage)-(k-1)])
		copy(e.stage[f.ph:], appendLength(nil, n))
	}
	return nil
}
