package odr

import (
	"fmt"
	"strings"
)

// Addr is the index of a record in the schema's record array.
// Address 0 is the reserved sentinel and means "none".
type Addr uint16

// NoAddr is the sentinel address.
const NoAddr Addr = 0

// Flags is the option bitmask of a record.
type Flags uint8

const (
	// FlagExplicit marks an explicit tag wrapper. Its sub is the wrapped
	// record and its decoded value is the wrapped value.
	FlagExplicit Flags = 1 << iota
	// FlagImplicit marks a record whose tag replaced the underlying type's tag.
	FlagImplicit
	// FlagSimple marks a primitive; sub holds the Codec.
	FlagSimple
	// FlagDefinition marks the canonical head record of a named type.
	FlagDefinition
	// FlagChoice marks an alternative set.
	FlagChoice
	// FlagComponents marks a record whose sub is a component list.
	FlagComponents
	// FlagTypeOf marks a SEQUENCE OF / SET OF container; sub is the element.
	FlagTypeOf
	// FlagOptional marks a component that may be absent.
	FlagOptional
)

var flagNames = [...]string{
	"explicit", "implicit", "simple", "definition",
	"choice", "components", "type-of", "optional",
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Codec selects the primitive value codec of a SIMPLE record.
type Codec uint16

const (
	CodecOctet Codec = iota
	CodecBit
	CodecOID
	CodecInt
	CodecBool
	CodecNull
	// CodecExtDRef decodes the direct-reference OID of an EXTERNAL and
	// selects the module used by a following CodecExtASN.
	CodecExtDRef
	// CodecExtASN carries a value of the module selected by CodecExtDRef.
	CodecExtASN
	// CodecSkip consumes content without producing a value.
	CodecSkip

	NumCodecs
)

var codecNames = [...]string{
	CodecOctet:   "octet",
	CodecBit:     "bit",
	CodecOID:     "oid",
	CodecInt:     "int",
	CodecBool:    "bool",
	CodecNull:    "null",
	CodecExtDRef: "ext-dref",
	CodecExtASN:  "ext-asn",
	CodecSkip:    "skip",
}

func (c Codec) String() string {
	if c < NumCodecs {
		return codecNames[c]
	}
	return fmt.Sprintf("Codec(%d)", uint16(c))
}

// Record is one flattened type node.
type Record struct {
	Tag   Tag
	Flags Flags
	Ord   uint8  // 1-based component ordinal
	Sub   Addr   // child, element, wrapped record, or Codec for simple records
	Next  Addr   // next sibling, NoAddr at the end of a list
	Name  uint16 // offset into the name pool
}

// RecordSize is the serialized size of a Record.
const RecordSize = 12

// Has reports whether all flags in f are set.
func (r Record) Has(f Flags) bool {
	return r.Flags&f == f
}

// Codec returns the primitive codec of a simple record.
func (r Record) Codec() Codec {
	return Codec(r.Sub)
}

// Constructed reports whether values of this record use the constructed
// encoding.
func (r Record) Constructed() bool {
	return r.Flags&FlagSimple == 0
}

// OIDSize is the size of a module record's OID field, including the
// leading length byte.
const OIDSize = 12

// ModuleRecordSize is the serialized size of a ModuleID.
const ModuleRecordSize = OIDSize + 4

// ModuleID is one entry of the module index.
type ModuleID struct {
	OID  [OIDSize]byte // OID[0] is the content length
	Root Addr
	Name uint16
}

// NewModuleID builds a module index entry from OID content bytes.
func NewModuleID(oid []byte, root Addr, name uint16) (ModuleID, error) {
	if len(oid) > OIDSize-1 {
		return ModuleID{}, fmt.Errorf("module identifier too long: %d bytes", len(oid))
	}
	m := ModuleID{Root: root, Name: name}
	m.OID[0] = byte(len(oid))
	copy(m.OID[1:], oid)
	return m, nil
}

// Bytes returns the OID content bytes.
func (m ModuleID) Bytes() []byte {
	n := min(int(m.OID[0]), OIDSize-1)
	return m.OID[1 : 1+n]
}
