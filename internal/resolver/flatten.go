package resolver

import (
	"log/slog"
	"math"

	"github.com/golangsnmp/goodr/internal/module"
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// MaxComponents is the largest number of components in one list.
const MaxComponents = math.MaxUint8

type tmplState uint8

const (
	tmplNone tmplState = iota
	tmplBusy
	tmplReady
)

// flattener emits records for definitions. Each definition has a template
// record, computed once, that every use copies. Structured types allocate
// their child records when the template is computed and fill them from the
// job queue, so recursive types never recurse here.
type flattener struct {
	reg     *module.Registry
	records []odr.Record
	pool    *odr.NamePool
	names   bool

	tmpl    []odr.Record
	state   []tmplState
	canon   []odr.Addr
	builtin map[module.Builtin]odr.Addr

	queue []job
	types.Logger
}

// job fills records allocated earlier. def locates errors.
type job struct {
	def  module.DefID
	fill func() error
}

func newFlattener(reg *module.Registry, names bool, logger types.Logger) *flattener {
	n := reg.Len()
	return &flattener{
		reg:     reg,
		records: make([]odr.Record, 1, 64),
		pool:    odr.NewNamePool(),
		names:   names,
		tmpl:    make([]odr.Record, n),
		state:   make([]tmplState, n),
		canon:   make([]odr.Addr, n),
		builtin: make(map[module.Builtin]odr.Addr),
		Logger:  logger,
	}
}

func (f *flattener) alloc(n int, at module.DefID) (odr.Addr, error) {
	if len(f.records)+n > math.MaxUint16 {
		return 0, defError(types.DiagTooManyRecords, f.reg.Def(at),
			"schema needs more than %d records", math.MaxUint16)
	}
	a := odr.Addr(len(f.records))
	f.records = append(f.records, make([]odr.Record, n)...)
	return a, nil
}

func (f *flattener) intern(name string, at *module.Def) (uint16, error) {
	if !f.names || name == "" {
		return 0, nil
	}
	off, err := f.pool.Intern(name)
	if err != nil {
		return 0, defError(types.DiagNamePoolOverflow, at, "%v", err)
	}
	return off, nil
}

func (f *flattener) push(at module.DefID, fill func() error) {
	f.queue = append(f.queue, job{def: at, fill: fill})
}

// run drains the job queue in FIFO order.
func (f *flattener) run() error {
	for len(f.queue) > 0 {
		j := f.queue[0]
		f.queue = f.queue[1:]
		if err := j.fill(); err != nil {
			return err
		}
	}
	return nil
}

// canonical returns the named head record of a definition, allocating it
// and queuing its fill on first use.
func (f *flattener) canonical(id module.DefID) (odr.Addr, error) {
	id, _ = f.reg.Resolve(id)
	if a := f.canon[id]; a != 0 {
		return a, nil
	}
	a, err := f.alloc(1, id)
	if err != nil {
		return 0, err
	}
	f.canon[id] = a
	f.push(id, func() error {
		d := f.reg.Def(id)
		rec, err := f.template(id)
		if err != nil {
			return err
		}
		rec.Flags |= odr.FlagDefinition
		rec.Ord = 1
		if rec.Name, err = f.intern(d.Name, d); err != nil {
			return err
		}
		f.records[a] = rec
		if f.TraceEnabled() {
			f.Trace("canonical record",
				slog.String("definition", d.QualifiedName()),
				slog.Int("addr", int(a)))
		}
		return nil
	})
	return a, nil
}

// builtinCanonical returns the shared named record of a built-in type.
func (f *flattener) builtinCanonical(b module.Builtin, at module.DefID) (odr.Addr, error) {
	if a, ok := f.builtin[b]; ok {
		return a, nil
	}
	a, err := f.alloc(1, at)
	if err != nil {
		return 0, err
	}
	rec := builtinTemplate(b)
	rec.Flags |= odr.FlagDefinition
	rec.Ord = 1
	if rec.Name, err = f.intern(b.String(), f.reg.Def(at)); err != nil {
		return 0, err
	}
	f.records[a] = rec
	f.builtin[b] = a
	return a, nil
}

func builtinTemplate(b module.Builtin) odr.Record {
	return odr.Record{
		Tag:   b.Tag(),
		Flags: odr.FlagSimple | odr.FlagImplicit,
		Sub:   odr.Addr(b.Codec()),
	}
}

// template returns the memoized record of a definition's type.
func (f *flattener) template(id module.DefID) (odr.Record, error) {
	id, _ = f.reg.Resolve(id)
	d := f.reg.Def(id)
	switch f.state[id] {
	case tmplReady:
		return f.tmpl[id], nil
	case tmplBusy:
		return odr.Record{}, defError(types.DiagCircularType, d,
			"circular type definition %s", d.Name)
	}
	if d.Kind != module.DefType {
		return odr.Record{}, defError(types.DiagUndefinedType, d, "undefined type %s", d.Name)
	}
	f.state[id] = tmplBusy
	rec, err := f.record(d.Type, id)
	if err != nil {
		return odr.Record{}, err
	}
	f.tmpl[id] = rec
	f.state[id] = tmplReady
	return rec, nil
}

// record returns the record for a type expression used inside definition
// at. Only the tag, flags and sub fields are set.
func (f *flattener) record(t *module.Type, at module.DefID) (odr.Record, error) {
	if t.Tag == nil {
		return f.untagged(t, at)
	}
	inner := t.Untagged()
	base, err := f.record(inner, at)
	if err != nil {
		return odr.Record{}, err
	}
	tag := t.Tag.Tag

	switch {
	case base.Tag == 0:
		// Tagless types (untagged CHOICE, open types) take the tag directly;
		// BER encodes them as if explicitly tagged.
		base.Tag = tag
		return base, nil
	case t.Tag.Implicit:
		base.Tag = tag
		base.Flags |= odr.FlagImplicit
		return base, nil
	}

	var sub odr.Addr
	switch {
	case inner.Tag == nil && inner.Kind == module.KindRef:
		sub, err = f.canonical(inner.Ref)
	case inner.Tag == nil && inner.Kind == module.KindBuiltin:
		sub, err = f.builtinCanonical(inner.Builtin, at)
	default:
		sub, err = f.alloc(1, at)
		if err == nil {
			base.Ord = 1
			f.records[sub] = base
		}
	}
	if err != nil {
		return odr.Record{}, err
	}
	return odr.Record{Tag: tag, Flags: odr.FlagExplicit, Sub: sub}, nil
}

// untagged returns the record for a type expression without an outer tag.
func (f *flattener) untagged(t *module.Type, at module.DefID) (odr.Record, error) {
	switch t.Kind {
	case module.KindBuiltin:
		return builtinTemplate(t.Builtin), nil
	case module.KindRef:
		return f.template(t.Ref)
	case module.KindSequence, module.KindSet, module.KindChoice:
		first, err := f.components(t.Components, at)
		if err != nil {
			return odr.Record{}, err
		}
		switch t.Kind {
		case module.KindSequence:
			return odr.Record{Tag: odr.TagSequence, Flags: odr.FlagComponents, Sub: first}, nil
		case module.KindSet:
			return odr.Record{Tag: odr.TagSet, Flags: odr.FlagComponents, Sub: first}, nil
		}
		return odr.Record{Flags: odr.FlagChoice | odr.FlagComponents, Sub: first}, nil
	case module.KindSequenceOf, module.KindSetOf:
		elem, err := f.alloc(1, at)
		if err != nil {
			return odr.Record{}, err
		}
		et := t.Elem
		f.push(at, func() error {
			rec, err := f.record(et, at)
			if err != nil {
				return err
			}
			rec.Ord = 1
			f.records[elem] = rec
			return nil
		})
		tag := odr.TagSequence
		if t.Kind == module.KindSetOf {
			tag = odr.TagSet
		}
		return odr.Record{Tag: tag, Flags: odr.FlagTypeOf, Sub: elem}, nil
	}
	// KindTagged: the outer tag was already removed.
	return f.record(t.Elem, at)
}

// components allocates the records of a component list and queues their
// fill. It returns the address of the first record, or NoAddr for an empty
// list.
func (f *flattener) components(comps []module.Component, at module.DefID) (odr.Addr, error) {
	if len(comps) == 0 {
		return odr.NoAddr, nil
	}
	if len(comps) > MaxComponents {
		return 0, defError(types.DiagTooManyComponents, f.reg.Def(at),
			"%d components, at most %d allowed", len(comps), MaxComponents)
	}
	first, err := f.alloc(len(comps), at)
	if err != nil {
		return 0, err
	}
	f.push(at, func() error {
		d := f.reg.Def(at)
		for i, c := range comps {
			rec, err := f.record(c.Type, at)
			if err != nil {
				return err
			}
			rec.Ord = uint8(i + 1)
			if c.Optional {
				rec.Flags |= odr.FlagOptional
			}
			if i < len(comps)-1 {
				rec.Next = first + odr.Addr(i+1)
			}
			if rec.Name, err = f.intern(c.Name, d); err != nil {
				return err
			}
			f.records[first+odr.Addr(i)] = rec
		}
		return nil
	})
	return first, nil
}
