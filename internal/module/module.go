// Package module holds the compile-time schema graph: modules, the
// definition arena, and the type expressions the parser builds.
//
// Definitions are addressed by DefID. A reference to a name that is not
// defined yet creates a placeholder slot; when the definition arrives the
// slot is filled in place and the definitions waiting on it are replayed.
// Nothing outside this package holds pointers to slots across arena growth.
package module

import (
	"log/slog"
	"slices"

	"github.com/golangsnmp/goodr/internal/types"
)

// GlobalModule is the name of modules whose definitions are visible in every
// module without an import.
const GlobalModule = "_USE"

// ExportMode is the EXPORTS clause of a module.
type ExportMode uint8

const (
	// ExportDefault means no EXPORTS clause: everything is exported.
	ExportDefault ExportMode = iota
	// ExportAll is "EXPORTS ALL;".
	ExportAll
	// ExportList is an explicit, possibly empty, EXPORTS list.
	ExportList
)

// Module is one ASN.1 module.
type Module struct {
	Name   string
	File   string
	Line   int
	OID    []byte // BER content octets of the module identifier
	HasOID bool

	// Start marks the module whose root is the artifact's entry point.
	Start bool
	// Forward is set while the module is known only from IMPORTS.
	Forward bool
	// Global is set for _USE modules.
	Global bool

	Exports ExportMode
	Defs    map[string]DefID
	Order   []DefID // type assignments in source order
	Imports []DefID
	Root    DefID // first type assignment
}

func newModule(name string) *Module {
	return &Module{Name: name, Defs: make(map[string]DefID)}
}

// Indexed reports whether the module goes into the artifact's module index.
func (m *Module) Indexed() bool {
	return m.HasOID || m.Start
}

// Registry owns all modules and the definition arena of one compilation.
type Registry struct {
	defs    []Def
	modules []*Module
	byName  map[string]*Module
	globals map[string]DefID
	types.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		defs:    make([]Def, 1),
		byName:  make(map[string]*Module),
		globals: make(map[string]DefID),
		Logger:  types.Component(logger, "module"),
	}
}

// Def returns the arena slot for id. The pointer is valid until the next
// call that adds a definition.
func (r *Registry) Def(id DefID) *Def {
	return &r.defs[id]
}

// Len returns the arena size, including the unused zero slot.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Modules returns all modules in order of first appearance.
func (r *Registry) Modules() []*Module {
	return slices.Clone(r.modules)
}

// Module returns the named module.
func (r *Registry) Module(name string) (*Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Global returns the global definition with the given name.
func (r *Registry) Global(name string) (DefID, bool) {
	id, ok := r.globals[name]
	return id, ok
}

// DeclareModule registers a module header. A module already known from
// IMPORTS is completed; a second declaration of the same name fails.
// Every _USE module is registered separately.
func (r *Registry) DeclareModule(name, file string, line int) (*Module, error) {
	if name == GlobalModule {
		m := newModule(name)
		m.File, m.Line, m.Global = file, line, true
		r.modules = append(r.modules, m)
		return m, nil
	}
	if m, ok := r.byName[name]; ok {
		if !m.Forward {
			return nil, types.Errorf(types.DiagDuplicateModule, file, name, line,
				"duplicate module (first declared in %s:%d)", m.File, m.Line)
		}
		m.Forward = false
		m.File, m.Line = file, line
		r.Log(slog.LevelDebug, "forward module declared", slog.String("module", name))
		return m, nil
	}
	m := newModule(name)
	m.File, m.Line = file, line
	r.byName[name] = m
	r.modules = append(r.modules, m)
	return m, nil
}

// ForwardModule returns the named module, creating a forward entry if it has
// not been declared yet.
func (r *Registry) ForwardModule(name string) *Module {
	if m, ok := r.byName[name]; ok {
		return m
	}
	m := newModule(name)
	m.Forward = true
	r.byName[name] = m
	r.modules = append(r.modules, m)
	return m
}

// FinishModule is called after a module's END. Definitions of _USE modules
// become globals.
func (r *Registry) FinishModule(m *Module) {
	if !m.Global {
		return
	}
	for _, id := range m.Order {
		r.globals[r.defs[id].Name] = id
	}
}

func (r *Registry) newDef(m *Module, name string, kind DefKind, file string, line int) DefID {
	id := DefID(len(r.defs))
	r.defs = append(r.defs, Def{Name: name, Module: m, Kind: kind, File: file, Line: line})
	m.Defs[name] = id
	return id
}

// Lookup resolves a type name as seen from module m. Globals take
// precedence over module names, except inside _USE modules.
func (r *Registry) Lookup(m *Module, name string) (DefID, bool) {
	if !m.Global {
		if id, ok := r.globals[name]; ok {
			return id, true
		}
	}
	id, ok := m.Defs[name]
	return id, ok
}

// Reference resolves name in m on behalf of definition from, creating a
// placeholder if the name is unknown. If the result is not defined yet,
// from waits on it.
func (r *Registry) Reference(m *Module, name string, from DefID, file string, line int) DefID {
	id, ok := r.Lookup(m, name)
	if !ok {
		id = r.newDef(m, name, DefPlaceholder, file, line)
		r.Trace("placeholder created",
			slog.String("module", m.Name),
			slog.String("name", name),
			slog.Int("line", line))
	}
	r.depend(from, id)
	return id
}

func (r *Registry) depend(from, on DefID) {
	if from == 0 || r.defs[on].Defined() {
		return
	}
	r.defs[from].Pending++
	r.defs[on].RequiredBy = append(r.defs[on].RequiredBy, from)
}

// Declare reserves the slot for a type assignment of name in m, reusing a
// placeholder if one exists. The slot stays a placeholder until Define.
func (r *Registry) Declare(m *Module, name, file string, line int) (DefID, error) {
	id, ok := m.Defs[name]
	if !ok {
		return r.newDef(m, name, DefPlaceholder, file, line), nil
	}
	d := &r.defs[id]
	switch d.Kind {
	case DefType:
		return 0, types.Errorf(types.DiagDuplicateDef, file, m.Name, line,
			"duplicate definition of %s (first defined at line %d)", name, d.Line)
	case DefImport:
		return 0, types.Errorf(types.DiagImportClash, file, m.Name, line,
			"definition of %s clashes with an imported name", name)
	}
	d.File, d.Line = file, line
	return id, nil
}

// Define fills a declared slot with its type and replays everything that
// was waiting on it.
func (r *Registry) Define(id DefID, t *Type) {
	d := &r.defs[id]
	d.Kind = DefType
	d.Type = t
	m := d.Module
	m.Order = append(m.Order, id)
	if m.Root == 0 {
		m.Root = id
	}
	r.Trace("definition",
		slog.String("module", m.Name),
		slog.String("name", d.Name),
		slog.Int("pending", d.Pending))
	r.resolved(id)
}

// resolved replays the dependents of a definition that just became defined.
// An import waiting only on this definition becomes defined in turn, so the
// replay continues through chains of re-exports.
func (r *Registry) resolved(id DefID) {
	waiting := r.defs[id].RequiredBy
	r.defs[id].RequiredBy = nil
	for _, dep := range waiting {
		d := &r.defs[dep]
		d.Pending--
		if d.Kind == DefImport && d.Pending == 0 {
			r.Trace("import resolved", slog.String("name", d.QualifiedName()))
			r.resolved(dep)
		}
	}
}

// Import binds name in m to the definition of the same name in from. The
// target may not exist yet, in which case a placeholder is created in from.
func (r *Registry) Import(m *Module, name string, from *Module, file string, line int) (DefID, error) {
	id, ok := m.Defs[name]
	if ok && r.defs[id].Kind != DefPlaceholder {
		return 0, types.Errorf(types.DiagImportClash, file, m.Name, line,
			"%s is already defined or imported", name)
	}
	target, ok := from.Defs[name]
	if !ok {
		target = r.newDef(from, name, DefPlaceholder, file, line)
	}
	if id == 0 {
		id = r.newDef(m, name, DefImport, file, line)
	} else {
		d := &r.defs[id]
		d.Kind, d.File, d.Line = DefImport, file, line
	}
	r.defs[id].Target = target
	m.Imports = append(m.Imports, id)
	r.depend(id, target)
	if r.defs[id].Defined() {
		r.resolved(id)
	}
	return id, nil
}

// Export marks name in m as explicitly exported.
func (r *Registry) Export(m *Module, name, file string, line int) {
	id, ok := m.Defs[name]
	if !ok {
		id = r.newDef(m, name, DefPlaceholder, file, line)
	}
	r.defs[id].Exported = true
}

// Resolve follows import bindings to the definition they name. It reports
// false for import cycles.
func (r *Registry) Resolve(id DefID) (DefID, bool) {
	for range len(r.defs) {
		if r.defs[id].Kind != DefImport {
			return id, true
		}
		id = r.defs[id].Target
	}
	return id, false
}

// Retained reports whether a definition belongs to its module's retention
// set: every type assignment unless an explicit EXPORTS list names a subset.
func (r *Registry) Retained(id DefID) bool {
	d := &r.defs[id]
	if d.Kind != DefType {
		return false
	}
	if d.Module.Exports == ExportList {
		return d.Exported
	}
	return true
}

// Visible reports whether other modules may import name from m.
func (m *Module) Visible(r *Registry, name string) bool {
	if m.Exports != ExportList {
		return true
	}
	id, ok := m.Defs[name]
	return ok && r.defs[id].Exported
}
