package module

// DefID indexes the definition arena. The zero DefID is never a definition.
type DefID int32

// DefKind says what an arena slot currently holds.
type DefKind uint8

const (
	// DefPlaceholder is a name that was referenced, imported, or exported
	// before being defined.
	DefPlaceholder DefKind = iota
	// DefType is a type assignment.
	DefType
	// DefImport is a local binding of a name imported from another module.
	DefImport
)

func (k DefKind) String() string {
	switch k {
	case DefPlaceholder:
		return "placeholder"
	case DefType:
		return "type"
	case DefImport:
		return "import"
	}
	return "unknown"
}

// Def is one slot of the definition arena.
type Def struct {
	Name   string
	Module *Module
	Kind   DefKind
	Type   *Type // DefType
	Target DefID // DefImport
	File   string
	Line   int // definition line, or first reference for placeholders

	// Exported is set when the name appears in an explicit EXPORTS list.
	Exported bool

	// Pending counts referenced definitions that were not yet defined when
	// referenced. RequiredBy lists the definitions waiting on this one; it is
	// replayed and cleared when this definition becomes defined.
	Pending    int
	RequiredBy []DefID
}

// Defined reports whether the slot names a usable definition: a type
// assignment, or an import whose target is defined.
func (d *Def) Defined() bool {
	return d.Kind == DefType || (d.Kind == DefImport && d.Pending == 0)
}

// QualifiedName returns "Module.Name".
func (d *Def) QualifiedName() string {
	if d.Module == nil {
		return d.Name
	}
	return d.Module.Name + "." + d.Name
}
