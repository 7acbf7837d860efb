package module

import "github.com/golangsnmp/goodr/odr"

// Kind is the shape of a type expression.
type Kind uint8

const (
	KindBuiltin Kind = iota
	KindRef
	KindSequence
	KindSet
	KindSequenceOf
	KindSetOf
	KindChoice
	// KindTagged is a tag applied over another tagged type, as in
	// "[0] EXPLICIT [1] IMPLICIT INTEGER"; Elem is the inner type.
	KindTagged
)

var kindNames = [...]string{
	KindBuiltin:    "builtin",
	KindRef:        "reference",
	KindSequence:   "SEQUENCE",
	KindSet:        "SET",
	KindSequenceOf: "SEQUENCE OF",
	KindSetOf:      "SET OF",
	KindChoice:     "CHOICE",
	KindTagged:     "tagged",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Builtin identifies a built-in simple type.
type Builtin uint8

const (
	BuiltinBoolean Builtin = iota
	BuiltinInteger
	BuiltinBitString
	BuiltinOctetString
	BuiltinNull
	BuiltinOID
	BuiltinReal
	BuiltinAny
	// BuiltinExtDRef is the direct-reference OID of an EXTERNAL.
	BuiltinExtDRef
	// BuiltinExtASN is the embedded value of an EXTERNAL, typed by the
	// module named by the preceding direct reference.
	BuiltinExtASN

	numBuiltins
)

type builtinInfo struct {
	name  string
	tag   odr.Tag
	codec odr.Codec
}

var builtins = [numBuiltins]builtinInfo{
	BuiltinBoolean:     {"BOOLEAN", odr.TagBoolean, odr.CodecBool},
	BuiltinInteger:     {"INTEGER", odr.TagInteger, odr.CodecInt},
	BuiltinBitString:   {"BIT STRING", odr.TagBitString, odr.CodecBit},
	BuiltinOctetString: {"OCTET STRING", odr.TagOctetString, odr.CodecOctet},
	BuiltinNull:        {"NULL", odr.TagNull, odr.CodecNull},
	BuiltinOID:         {"OBJECT IDENTIFIER", odr.TagOID, odr.CodecOID},
	BuiltinReal:        {"REAL", odr.TagReal, odr.CodecOctet},
	BuiltinAny:         {"ANY", odr.TagOctetString, odr.CodecOctet},
	BuiltinExtDRef:     {"EXT_DREF", odr.TagOID, odr.CodecExtDRef},
	BuiltinExtASN:      {"EXT_ASN", 0, odr.CodecExtASN},
}

func (b Builtin) String() string { return builtins[b].name }

// Tag returns the universal tag of the built-in, or 0 for open types.
func (b Builtin) Tag() odr.Tag { return builtins[b].tag }

// Codec returns the primitive codec that handles the built-in.
func (b Builtin) Codec() odr.Codec { return builtins[b].codec }

// Builtins returns every built-in type in index order.
func Builtins() []Builtin {
	out := make([]Builtin, numBuiltins)
	for i := range out {
		out[i] = Builtin(i)
	}
	return out
}

// Tag is a tag written on a type, with its resolved tagging mode.
type Tag struct {
	Tag      odr.Tag
	Implicit bool
}

// Type is a parsed type expression.
type Type struct {
	Kind       Kind
	Tag        *Tag
	Builtin    Builtin
	Ref        DefID
	Elem       *Type // element of SEQUENCE OF / SET OF, inner type of KindTagged
	Components []Component
	Line       int
}

// Component is a named member of a SEQUENCE, SET, or CHOICE.
type Component struct {
	Name     string
	Type     *Type
	Optional bool
	Line     int
}

// Untagged returns the type with its outermost tag removed.
func (t *Type) Untagged() *Type {
	if t.Kind == KindTagged {
		return t.Elem
	}
	if t.Tag == nil {
		return t
	}
	c := *t
	c.Tag = nil
	return &c
}

// Refs calls fn for every definition referenced directly by t, including
// references inside anonymous component types.
func (t *Type) Refs(fn func(DefID)) {
	switch t.Kind {
	case KindRef:
		fn(t.Ref)
	case KindSequenceOf, KindSetOf, KindTagged:
		t.Elem.Refs(fn)
	case KindSequence, KindSet, KindChoice:
		for _, c := range t.Components {
			c.Type.Refs(fn)
		}
	}
}
