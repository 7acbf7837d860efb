package odr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrBadArtifact is returned by Load for buffers that are not a consistent
// compiled schema.
var ErrBadArtifact = errors.New("bad odr artifact")

// Schema is a loaded, validated artifact. It is immutable and safe for
// concurrent use by any number of codec sessions.
type Schema struct {
	start   Addr
	records []Record
	modules []ModuleID
	names   []byte
}

// Load validates data and returns the schema it describes. This is the only
// place where artifact bounds are checked; every accessor on the result
// relies on it.
func Load(data []byte) (*Schema, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrBadArtifact, len(data))
	}
	start := Addr(binary.LittleEndian.Uint16(data[0:]))
	nrecords := int(binary.LittleEndian.Uint16(data[2:]))
	nmodules := int(binary.LittleEndian.Uint16(data[4:]))

	recOff := HeaderSize
	modOff := recOff + nrecords*RecordSize
	namesOff := modOff + nmodules*ModuleRecordSize
	if len(data) < namesOff+len(Sentinel)+1 {
		return nil, fmt.Errorf("%w: %d records and %d modules need more than %d bytes",
			ErrBadArtifact, nrecords, nmodules, len(data))
	}
	names := data[namesOff:]
	if !bytes.HasPrefix(names, []byte(Sentinel+"\x00")) {
		return nil, fmt.Errorf("%w: missing %s sentinel", ErrBadArtifact, Sentinel)
	}
	if nrecords == 0 {
		return nil, fmt.Errorf("%w: no sentinel record", ErrBadArtifact)
	}

	s := &Schema{
		start:   start,
		records: make([]Record, nrecords),
		modules: make([]ModuleID, nmodules),
		names:   bytes.Clone(names),
	}
	if int(start) >= nrecords {
		return nil, fmt.Errorf("%w: start %d out of range", ErrBadArtifact, start)
	}

	for i := range s.records {
		b := data[recOff+i*RecordSize:]
		r := Record{
			Tag:   Tag(binary.BigEndian.Uint32(b)),
			Flags: Flags(b[4]),
			Ord:   b[5],
			Sub:   Addr(binary.LittleEndian.Uint16(b[6:])),
			Next:  Addr(binary.LittleEndian.Uint16(b[8:])),
			Name:  binary.LittleEndian.Uint16(b[10:]),
		}
		if err := s.checkRecord(i, r); err != nil {
			return nil, err
		}
		s.records[i] = r
	}

	for i := range s.modules {
		b := data[modOff+i*ModuleRecordSize:]
		var m ModuleID
		copy(m.OID[:], b[:OIDSize])
		m.Root = Addr(binary.LittleEndian.Uint16(b[OIDSize:]))
		m.Name = binary.LittleEndian.Uint16(b[OIDSize+2:])
		if int(m.OID[0]) > OIDSize-1 {
			return nil, fmt.Errorf("%w: module %d OID length %d", ErrBadArtifact, i, m.OID[0])
		}
		if int(m.Root) >= nrecords {
			return nil, fmt.Errorf("%w: module %d root %d out of range", ErrBadArtifact, i, m.Root)
		}
		if int(m.Name) >= len(names) {
			return nil, fmt.Errorf("%w: module %d name offset %d out of range", ErrBadArtifact, i, m.Name)
		}
		if i > 0 && bytes.Compare(s.modules[i-1].OID[:], m.OID[:]) > 0 {
			return nil, fmt.Errorf("%w: module index not sorted at %d", ErrBadArtifact, i)
		}
		s.modules[i] = m
	}
	return s, nil
}

func (s *Schema) checkRecord(i int, r Record) error {
	n := len(s.records)
	switch {
	case r.Has(FlagSimple) && r.Codec() >= NumCodecs:
		return fmt.Errorf("%w: record %d has unknown codec %d", ErrBadArtifact, i, r.Sub)
	case !r.Has(FlagSimple) && int(r.Sub) >= n:
		return fmt.Errorf("%w: record %d sub %d out of range", ErrBadArtifact, i, r.Sub)
	case int(r.Next) >= n:
		return fmt.Errorf("%w: record %d next %d out of range", ErrBadArtifact, i, r.Next)
	case int(r.Name) >= len(s.names):
		return fmt.Errorf("%w: record %d name offset %d out of range", ErrBadArtifact, i, r.Name)
	}
	return nil
}

// Start returns the address of the root PDU type.
func (s *Schema) Start() Addr {
	return s.start
}

// Len returns the number of records, including the sentinel.
func (s *Schema) Len() int {
	return len(s.records)
}

// Record returns the record at a. Out-of-range addresses yield the zero
// sentinel record.
func (s *Schema) Record(a Addr) Record {
	if int(a) >= len(s.records) {
		return Record{}
	}
	return s.records[a]
}

// Name returns the pool string at off.
func (s *Schema) Name(off uint16) string {
	if int(off) >= len(s.names) {
		return ""
	}
	b := s.names[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// RecordName returns the name of the record at a, or the sentinel name for
// unnamed records.
func (s *Schema) RecordName(a Addr) string {
	return s.Name(s.Record(a).Name)
}

// LookupModule finds the module index entry for OID content bytes by
// binary search.
func (s *Schema) LookupModule(oid []byte) (ModuleID, bool) {
	if len(oid) > OIDSize-1 {
		return ModuleID{}, false
	}
	var key [OIDSize]byte
	key[0] = byte(len(oid))
	copy(key[1:], oid)
	i := sort.Search(len(s.modules), func(i int) bool {
		return bytes.Compare(s.modules[i].OID[:], key[:]) >= 0
	})
	if i < len(s.modules) && s.modules[i].OID == key {
		return s.modules[i], true
	}
	return ModuleID{}, false
}

// ResolveModuleName returns the name of the module with the given OID.
func (s *Schema) ResolveModuleName(oid []byte) (string, bool) {
	m, ok := s.LookupModule(oid)
	if !ok {
		return "", false
	}
	return s.Name(m.Name), true
}

// Modules maps module names to OID content bytes for every module with a
// real OID (more than one content byte).
func (s *Schema) Modules() map[string][]byte {
	out := make(map[string][]byte)
	for _, m := range s.modules {
		if m.OID[0] > 1 {
			out[s.Name(m.Name)] = bytes.Clone(m.Bytes())
		}
	}
	return out
}

// ModuleList returns the module index in OID order.
func (s *Schema) ModuleList() []ModuleID {
	return append([]ModuleID(nil), s.modules...)
}

// Artifact returns a copy of the schema in serializable form.
func (s *Schema) Artifact() *Artifact {
	return &Artifact{
		Start:   s.start,
		Records: append([]Record(nil), s.records...),
		Modules: s.ModuleList(),
		Names:   bytes.Clone(s.names),
	}
}
