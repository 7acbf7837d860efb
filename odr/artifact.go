package odr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Sentinel is the first string of every name pool. Name offset 0 refers to
// it, and the loader uses it to recognize a genuine artifact.
const Sentinel = "NIL"

// HeaderSize is the size of the artifact header.
const HeaderSize = 6

// ErrTooLarge is returned when a table outgrows its 16-bit addressing.
var ErrTooLarge = errors.New("schema table too large")

// Artifact is the in-memory form of a compiled schema, ready to serialize.
type Artifact struct {
	Start   Addr
	Records []Record // Records[0] is the sentinel
	Modules []ModuleID
	Names   []byte // name pool, beginning with Sentinel
}

// MarshalBinary serializes the artifact. The module index is written sorted
// by OID bytes.
func (a *Artifact) MarshalBinary() ([]byte, error) {
	if len(a.Records) == 0 {
		return nil, errors.New("artifact has no sentinel record")
	}
	if len(a.Records) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d records", ErrTooLarge, len(a.Records))
	}
	if len(a.Modules) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d modules", ErrTooLarge, len(a.Modules))
	}
	if !bytes.HasPrefix(a.Names, []byte(Sentinel+"\x00")) {
		return nil, errors.New("name pool does not begin with the sentinel")
	}

	modules := slices.Clone(a.Modules)
	SortModules(modules)

	size := HeaderSize + len(a.Records)*RecordSize + len(modules)*ModuleRecordSize + len(a.Names)
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(a.Start))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(a.Records)))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(modules)))
	for _, r := range a.Records {
		buf = binary.BigEndian.AppendUint32(buf, uint32(r.Tag))
		buf = append(buf, byte(r.Flags), r.Ord)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(r.Sub))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(r.Next))
		buf = binary.LittleEndian.AppendUint16(buf, r.Name)
	}
	for _, m := range modules {
		buf = append(buf, m.OID[:]...)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(m.Root))
		buf = binary.LittleEndian.AppendUint16(buf, m.Name)
	}
	buf = append(buf, a.Names...)
	return buf, nil
}

// SortModules sorts a module index by OID bytes, the order LookupModule
// searches in.
func SortModules(modules []ModuleID) {
	slices.SortFunc(modules, func(x, y ModuleID) int {
		return bytes.Compare(x.OID[:], y.OID[:])
	})
}

// NamePool builds a deduplicated pool of NUL-terminated strings.
type NamePool struct {
	buf   []byte
	index map[string]uint16
}

// NewNamePool returns a pool holding only the sentinel at offset 0.
func NewNamePool() *NamePool {
	p := &NamePool{index: make(map[string]uint16)}
	p.buf = append(p.buf, Sentinel...)
	p.buf = append(p.buf, 0)
	p.index[Sentinel] = 0
	return p
}

// Intern returns the offset of s, adding it if needed.
func (p *NamePool) Intern(s string) (uint16, error) {
	if off, ok := p.index[s]; ok {
		return off, nil
	}
	off := len(p.buf)
	if off+len(s)+1 > math.MaxUint16 {
		return 0, fmt.Errorf("%w: name pool exceeds %d bytes", ErrTooLarge, math.MaxUint16)
	}
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
	p.index[s] = uint16(off)
	return uint16(off), nil
}

// Bytes returns the pool contents.
func (p *NamePool) Bytes() []byte {
	return p.buf
}
