// Package resolver checks the definition graph built by the parser and
// flattens it into the ODR record array.
//
// # Phases
//
//  1. Check: import visibility, import and alias cycles, and completeness of
//     everything that is retained or reachable from a module root.
//  2. Flatten: breadth-first emission of records from the indexed module
//     roots and the retained definitions.
//  3. Index: the module table, sorted by OID.
//
// # Usage
//
//	a, diags, err := resolver.Resolve(reg, resolver.Config{Names: true})
package resolver

import (
	"fmt"
	"log/slog"

	"github.com/golangsnmp/goodr/internal/graph"
	"github.com/golangsnmp/goodr/internal/module"
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// Config controls a resolution.
type Config struct {
	// Names emits type and component names into the name pool.
	Names bool
	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

type resolver struct {
	reg         *module.Registry
	cfg         Config
	diagnostics []types.Diagnostic
	types.Logger
}

// Resolve checks the registry and produces the artifact. Warnings are
// returned even when resolution fails; a fatal problem is returned as a
// *types.Error.
func Resolve(reg *module.Registry, cfg Config) (*odr.Artifact, []types.Diagnostic, error) {
	r := &resolver{
		reg:    reg,
		cfg:    cfg,
		Logger: types.Component(cfg.Logger, "resolver"),
	}

	r.Phase("check")
	if err := r.check(); err != nil {
		return nil, r.diagnostics, err
	}

	r.Phase("flatten")
	f := newFlattener(reg, cfg.Names, r.Logger)
	a, err := r.emit(f)
	if err != nil {
		return nil, r.diagnostics, err
	}
	r.Log(slog.LevelInfo, "resolution complete",
		slog.Int("records", len(a.Records)),
		slog.Int("modules", len(a.Modules)),
		slog.Int("names", len(a.Names)))
	return a, r.diagnostics, nil
}

func (r *resolver) warn(code string, d *module.Def, format string, args ...any) {
	diag := types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
	if d != nil {
		diag.File, diag.Line = d.File, d.Line
		if d.Module != nil {
			diag.Module = d.Module.Name
		}
	}
	r.diagnostics = append(r.diagnostics, diag)
}

func defError(code string, d *module.Def, format string, args ...any) *types.Error {
	return types.Errorf(code, d.File, d.Module.Name, d.Line, format, args...)
}

// aliasOf returns the definition a type expression takes its template
// from: the reference under any number of tags.
func aliasOf(t *module.Type) (module.DefID, bool) {
	for t.Kind == module.KindTagged {
		t = t.Elem
	}
	if t.Kind == module.KindRef {
		return t.Ref, true
	}
	return 0, false
}

func (r *resolver) check() error {
	reg := r.reg
	mods := reg.Modules()

	for _, m := range mods {
		if m.Forward {
			r.diagnostics = append(r.diagnostics, types.Diagnostic{
				Severity: types.SeverityWarning,
				Code:     types.DiagMissingModule,
				Module:   m.Name,
				Message:  "module is imported but never defined",
			})
		}
	}

	for _, m := range mods {
		for _, id := range m.Imports {
			d := reg.Def(id)
			if _, ok := reg.Resolve(id); !ok {
				return defError(types.DiagCircularType, d, "import cycle through %s", d.Name)
			}
			target := reg.Def(d.Target)
			if target.Module.Forward || target.Kind != module.DefType {
				continue
			}
			if !target.Module.Visible(reg, d.Name) {
				return defError(types.DiagImportNotExported, d,
					"%s is not exported by module %s", d.Name, target.Module.Name)
			}
		}
	}

	deps := graph.New[module.DefID]()
	aliases := graph.New[module.DefID]()
	for i := 1; i < reg.Len(); i++ {
		id := module.DefID(i)
		d := reg.Def(id)
		deps.AddNode(id)
		switch d.Kind {
		case module.DefImport:
			deps.AddEdge(id, d.Target)
		case module.DefType:
			d.Type.Refs(func(ref module.DefID) { deps.AddEdge(id, ref) })
			if ref, ok := aliasOf(d.Type); ok {
				target, _ := reg.Resolve(ref)
				aliases.AddEdge(id, target)
			}
		}
	}
	if cycles := aliases.Cycles(); len(cycles) > 0 {
		cycle := cycles[0]
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = reg.Def(id).QualifiedName()
		}
		return defError(types.DiagCircularType, reg.Def(cycle[0]),
			"circular type definition: %v", names)
	}

	var roots []module.DefID
	for _, m := range mods {
		if m.Forward {
			continue
		}
		if m.Indexed() && m.Root != 0 {
			roots = append(roots, m.Root)
		}
		if m.Global {
			continue
		}
		for _, id := range m.Order {
			if reg.Retained(id) {
				roots = append(roots, id)
			}
		}
	}
	live := deps.Reachable(roots...)
	r.Log(slog.LevelDebug, "reachability",
		slog.Int("roots", len(roots)),
		slog.Int("live", len(live)),
		slog.Int("definitions", reg.Len()-1))

	for i := 1; i < reg.Len(); i++ {
		d := reg.Def(module.DefID(i))
		if d.Kind != module.DefPlaceholder {
			continue
		}
		switch {
		case d.Exported:
			return defError(types.DiagExportUndefined, d, "exported type %s is not defined", d.Name)
		case live[module.DefID(i)] && d.Module.Forward:
			return defError(types.DiagUndefinedType, d,
				"undefined type %s: module %s was never defined", d.Name, d.Module.Name)
		case live[module.DefID(i)]:
			return defError(types.DiagUndefinedType, d, "undefined type %s", d.Name)
		default:
			r.warn(types.DiagUnresolvedOrphan, d,
				"undefined type %s is only used by unused definitions", d.Name)
		}
	}
	return nil
}

// emit flattens the roots and retained definitions and builds the module
// index. The start module's root is emitted first.
func (r *resolver) emit(f *flattener) (*odr.Artifact, error) {
	reg := r.reg
	var start *module.Module
	indexed := make([]*module.Module, 0)
	for _, m := range reg.Modules() {
		if m.Start {
			start = m
		} else if m.Indexed() && !m.Forward {
			indexed = append(indexed, m)
		}
	}
	if start == nil {
		return nil, types.Errorf(types.DiagEmptyStartModule, "", "", 0, "no start module")
	}
	if start.Root == 0 {
		return nil, types.Errorf(types.DiagEmptyStartModule, start.File, start.Name, start.Line,
			"start module has no type definitions")
	}
	indexed = append([]*module.Module{start}, indexed...)

	a := &odr.Artifact{}
	seen := make(map[[odr.OIDSize]byte]*module.Module)
	for _, m := range indexed {
		if m.Root == 0 {
			r.warn(types.DiagEmptyStartModule, nil, "module %s has an identifier but no types", m.Name)
			continue
		}
		root, err := f.canonical(m.Root)
		if err != nil {
			return nil, err
		}
		oid := m.OID
		if !m.HasOID {
			oid = []byte{0x00}
		}
		name, err := f.intern(m.Name, reg.Def(m.Root))
		if err != nil {
			return nil, err
		}
		mid, err := odr.NewModuleID(oid, root, name)
		if err != nil {
			return nil, types.Errorf(types.DiagBadModuleID, m.File, m.Name, m.Line, "%v", err)
		}
		if prev, ok := seen[mid.OID]; ok {
			return nil, types.Errorf(types.DiagModuleIDDuplicate, m.File, m.Name, m.Line,
				"module identifier already used by module %s", prev.Name)
		}
		seen[mid.OID] = m
		a.Modules = append(a.Modules, mid)
		if m == start {
			a.Start = root
		}
	}

	for _, m := range reg.Modules() {
		if m.Forward || m.Global {
			continue
		}
		for _, id := range m.Order {
			if !reg.Retained(id) {
				continue
			}
			if _, err := f.canonical(id); err != nil {
				return nil, err
			}
		}
	}

	if err := f.run(); err != nil {
		return nil, err
	}
	odr.SortModules(a.Modules)
	a.Records = f.records
	a.Names = f.pool.Bytes()
	return a, nil
}
