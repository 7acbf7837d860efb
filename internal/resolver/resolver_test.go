package resolver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golangsnmp/goodr/internal/module"
	"github.com/golangsnmp/goodr/internal/parser"
	"github.com/golangsnmp/goodr/internal/testutil"
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// build parses the prelude and the sources, the first being the start file,
// and resolves them.
func build(t *testing.T, names bool, srcs ...string) (*odr.Artifact, []types.Diagnostic, error) {
	t.Helper()
	reg := module.NewRegistry(nil)
	_, err := parser.New(module.Prelude(), module.PreludeFile, reg, nil).Parse(false)
	testutil.NoError(t, err, "prelude")
	for i, src := range srcs {
		p := parser.New([]byte(src), fmt.Sprintf("f%d.asn", i), reg, nil)
		_, err := p.Parse(i == 0)
		testutil.NoError(t, err, "parse source %d", i)
	}
	return Resolve(reg, Config{Names: names})
}

func mustBuild(t *testing.T, srcs ...string) (*odr.Artifact, *odr.Schema) {
	t.Helper()
	a, _, err := build(t, true, srcs...)
	testutil.NoError(t, err, "resolve")
	data, err := a.MarshalBinary()
	testutil.NoError(t, err, "marshal")
	s, err := odr.Load(data)
	testutil.NoError(t, err, "load")
	return a, s
}

func buildErr(t *testing.T, srcs ...string) *types.Error {
	t.Helper()
	_, _, err := build(t, true, srcs...)
	testutil.Error(t, err, "resolve should fail")
	var e *types.Error
	testutil.True(t, errors.As(err, &e), "error type %T", err)
	return e
}

func TestRecursiveSequence(t *testing.T) {
	a, s := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  Foo ::= SEQUENCE { a INTEGER, b Foo OPTIONAL }
END`)
	testutil.Len(t, a.Records, 4, "records")
	testutil.Equal(t, odr.Addr(1), a.Start, "start")

	head := a.Records[1]
	testutil.Equal(t, odr.TagSequence, head.Tag, "head tag")
	testutil.True(t, head.Has(odr.FlagDefinition|odr.FlagComponents), "head flags %v", head.Flags)
	testutil.Equal(t, uint8(1), head.Ord, "head ord")
	testutil.Equal(t, "Foo", s.RecordName(1), "head name")

	first := a.Records[head.Sub]
	testutil.Equal(t, odr.TagInteger, first.Tag, "a tag")
	testutil.Equal(t, odr.CodecInt, first.Codec(), "a codec")
	testutil.Equal(t, uint8(1), first.Ord, "a ord")
	testutil.Equal(t, "a", s.RecordName(head.Sub), "a name")

	second := a.Records[first.Next]
	testutil.Equal(t, uint8(2), second.Ord, "b ord")
	testutil.True(t, second.Has(odr.FlagOptional), "b optional")
	testutil.Equal(t, head.Sub, second.Sub, "b shares Foo's components")
	testutil.Equal(t, odr.NoAddr, second.Next, "end of list")
	testutil.False(t, second.Has(odr.FlagDefinition), "use is not a definition")

	mods := s.ModuleList()
	testutil.Len(t, mods, 1, "module index")
	testutil.Equal(t, byte(1), mods[0].OID[0], "pseudo OID length")
	testutil.Equal(t, byte(0), mods[0].OID[1], "pseudo OID")
	testutil.Equal(t, odr.Addr(1), mods[0].Root, "module root")
	testutil.Equal(t, 0, len(s.Modules()), "pseudo OID not listed")
}

func TestForwardReferenceRecords(t *testing.T) {
	// A use of a type before its definition gets the same record as a use
	// after it.
	a, _ := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  Top ::= SEQUENCE { early Later, late Later }
  Later ::= SEQUENCE { x BOOLEAN }
END`)
	top := a.Records[a.Start]
	early := a.Records[top.Sub]
	late := a.Records[early.Next]
	testutil.Equal(t, early.Tag, late.Tag, "tag")
	testutil.Equal(t, early.Flags, late.Flags, "flags")
	testutil.Equal(t, early.Sub, late.Sub, "sub")
}

func TestExplicitTagOverReference(t *testing.T) {
	a, s := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  A ::= [1] B
  B ::= SEQUENCE { x BOOLEAN }
END`)
	head := a.Records[a.Start]
	testutil.Equal(t, odr.MustTag(odr.ClassContext, 1), head.Tag, "wrapper tag")
	testutil.True(t, head.Has(odr.FlagExplicit), "explicit")
	inner := a.Records[head.Sub]
	testutil.True(t, inner.Has(odr.FlagDefinition), "wrapped record is B's canonical record")
	testutil.Equal(t, "B", s.RecordName(head.Sub), "wrapped name")
	testutil.Equal(t, odr.TagSequence, inner.Tag, "wrapped tag")
}

func TestExplicitTagOverBuiltin(t *testing.T) {
	a, s := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  A ::= SEQUENCE { x [0] INTEGER, y [1] INTEGER }
END`)
	x := a.Records[a.Records[a.Start].Sub]
	y := a.Records[x.Next]
	testutil.True(t, x.Has(odr.FlagExplicit), "x explicit")
	testutil.Equal(t, x.Sub, y.Sub, "built-in canonical record is shared")
	testutil.Equal(t, "INTEGER", s.RecordName(x.Sub), "built-in name")
	testutil.Equal(t, odr.CodecInt, a.Records[x.Sub].Codec(), "codec")
}

func TestImplicitTagOverReference(t *testing.T) {
	a, _ := mustBuild(t, `
M DEFINITIONS IMPLICIT TAGS ::= BEGIN
  A ::= [APPLICATION 5] B
  B ::= SEQUENCE { x BOOLEAN }
END`)
	head := a.Records[a.Start]
	testutil.Equal(t, odr.MustTag(odr.ClassApplication, 5), head.Tag, "tag replaced")
	testutil.True(t, head.Has(odr.FlagImplicit|odr.FlagComponents), "flags %v", head.Flags)
	testutil.False(t, head.Has(odr.FlagExplicit), "no wrapper")
}

func TestTagOverUntaggedChoice(t *testing.T) {
	a, _ := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  Top ::= SEQUENCE { c [0] C, d C }
  C ::= CHOICE { x INTEGER, y BOOLEAN }
END`)
	c := a.Records[a.Records[a.Start].Sub]
	d := a.Records[c.Next]
	testutil.Equal(t, odr.MustTag(odr.ClassContext, 0), c.Tag, "tag applied to the choice")
	testutil.True(t, c.Has(odr.FlagChoice), "still a choice")
	testutil.False(t, c.Has(odr.FlagExplicit), "no wrapper")
	testutil.Equal(t, odr.Tag(0), d.Tag, "untagged choice")
	testutil.True(t, d.Has(odr.FlagChoice|odr.FlagComponents), "choice flags")
	testutil.Equal(t, c.Sub, d.Sub, "same alternatives")
}

func TestStackedTags(t *testing.T) {
	a, _ := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  T ::= [0] EXPLICIT [1] IMPLICIT INTEGER
END`)
	head := a.Records[a.Start]
	testutil.True(t, head.Has(odr.FlagExplicit), "outer explicit")
	inner := a.Records[head.Sub]
	testutil.Equal(t, odr.MustTag(odr.ClassContext, 1), inner.Tag, "inner tag")
	testutil.True(t, inner.Has(odr.FlagSimple|odr.FlagImplicit), "inner flags %v", inner.Flags)
	testutil.Equal(t, odr.CodecInt, inner.Codec(), "inner codec")
}

func TestSequenceOf(t *testing.T) {
	a, _ := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  L ::= SET OF CHOICE { a INTEGER, b NULL }
END`)
	head := a.Records[a.Start]
	testutil.Equal(t, odr.TagSet, head.Tag, "tag")
	testutil.True(t, head.Has(odr.FlagTypeOf), "type-of")
	elem := a.Records[head.Sub]
	testutil.True(t, elem.Has(odr.FlagChoice), "element is a choice head")
	testutil.Equal(t, uint8(1), elem.Ord, "element ord")
	alt := a.Records[elem.Sub]
	testutil.Equal(t, odr.TagInteger, alt.Tag, "first alternative")
}

func TestExternalFromPrelude(t *testing.T) {
	a, _ := mustBuild(t, `
M DEFINITIONS ::= BEGIN
  E ::= SEQUENCE { ext EXTERNAL, s VisibleString }
END`)
	ext := a.Records[a.Records[a.Start].Sub]
	testutil.Equal(t, odr.TagExternal, ext.Tag, "EXTERNAL tag")
	testutil.True(t, ext.Has(odr.FlagComponents|odr.FlagImplicit), "flags %v", ext.Flags)
	dref := a.Records[ext.Sub]
	testutil.Equal(t, odr.CodecExtDRef, dref.Codec(), "direct reference codec")
	s := a.Records[ext.Next]
	testutil.Equal(t, odr.MustTag(odr.ClassUniversal, 26), s.Tag, "VisibleString tag")
	testutil.Equal(t, odr.CodecOctet, s.Codec(), "VisibleString codec")
}

func TestModuleIndex(t *testing.T) {
	_, s := mustBuild(t, `
Main { 1 2 3 } DEFINITIONS ::= BEGIN
  IMPORTS Item FROM Lib;
  Top ::= SEQUENCE OF Item
END`, `
Lib { 1 2 1 } DEFINITIONS ::= BEGIN
  Item ::= INTEGER
  Other ::= BOOLEAN
END`)
	mods := s.ModuleList()
	testutil.Len(t, mods, 2, "indexed modules")
	testutil.True(t, string(mods[0].Bytes()) < string(mods[1].Bytes()), "sorted by OID")

	lib, ok := s.LookupModule([]byte{0x2A, 0x01})
	testutil.True(t, ok, "Lib found")
	testutil.Equal(t, "Item", s.RecordName(lib.Root), "Lib root")
	name, ok := s.ResolveModuleName([]byte{0x2A, 0x03})
	testutil.True(t, ok, "Main found")
	testutil.Equal(t, "Main", name, "Main name")
	testutil.Equal(t, 2, len(s.Modules()), "named modules")
}

func TestWithoutNames(t *testing.T) {
	a, _, err := build(t, false, `
M { 1 3 } DEFINITIONS ::= BEGIN
  Foo ::= SEQUENCE { a INTEGER }
END`)
	testutil.NoError(t, err, "resolve")
	for i, r := range a.Records {
		testutil.Equal(t, uint16(0), r.Name, "record %d name", i)
	}
	testutil.Equal(t, odr.Sentinel+"\x00", string(a.Names), "pool holds only the sentinel")
	testutil.Equal(t, uint16(0), a.Modules[0].Name, "module name")
}

func TestUndefinedType(t *testing.T) {
	e := buildErr(t, `
M DEFINITIONS ::= BEGIN
  A ::= SEQUENCE { x Missing }
END`)
	testutil.Equal(t, types.DiagUndefinedType, e.Code, "code")
	testutil.Contains(t, e.Message, "Missing", "message")
	testutil.Equal(t, 3, e.Line, "line of first reference")
}

func TestUnresolvedOrphan(t *testing.T) {
	_, diags, err := build(t, true, `
M DEFINITIONS ::= BEGIN
  EXPORTS Root;
  Root ::= INTEGER
  Dead ::= SEQUENCE { x Missing }
END`)
	testutil.NoError(t, err, "orphan is not fatal")
	testutil.Len(t, diags, 1, "diagnostics")
	testutil.Equal(t, types.DiagUnresolvedOrphan, diags[0].Code, "code")
	testutil.Equal(t, types.SeverityWarning, diags[0].Severity, "severity")
}

func TestRetainedMustResolve(t *testing.T) {
	e := buildErr(t, `
M DEFINITIONS ::= BEGIN
  Root ::= INTEGER
  Dead ::= SEQUENCE { x Missing }
END`)
	testutil.Equal(t, types.DiagUndefinedType, e.Code, "retained definition is checked")
}

func TestExportUndefined(t *testing.T) {
	e := buildErr(t, `
M DEFINITIONS ::= BEGIN
  EXPORTS Nope;
  A ::= INTEGER
END`)
	testutil.Equal(t, types.DiagExportUndefined, e.Code, "code")
}

func TestImportNotExported(t *testing.T) {
	e := buildErr(t, `
Main DEFINITIONS ::= BEGIN
  IMPORTS Hidden FROM Lib;
  A ::= Hidden
END
Lib DEFINITIONS ::= BEGIN
  EXPORTS Shown;
  Shown ::= INTEGER
  Hidden ::= BOOLEAN
END`)
	testutil.Equal(t, types.DiagImportNotExported, e.Code, "code")
	testutil.Equal(t, "Main", e.Module, "reported in importing module")
}

func TestMissingModule(t *testing.T) {
	_, diags, err := build(t, true, `
M DEFINITIONS ::= BEGIN
  IMPORTS Unused FROM Gone;
  A ::= INTEGER
END`)
	testutil.NoError(t, err, "unused import")
	codes := make([]string, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	testutil.SliceEqual(t, []string{types.DiagMissingModule, types.DiagUnresolvedOrphan}, codes, "diagnostics")

	e := buildErr(t, `
M DEFINITIONS ::= BEGIN
  IMPORTS Used FROM Gone;
  A ::= SEQUENCE { u Used }
END`)
	testutil.Equal(t, types.DiagUndefinedType, e.Code, "needed import")
	testutil.Contains(t, e.Message, "Gone", "names the missing module")
}

func TestCircularAlias(t *testing.T) {
	e := buildErr(t, `
M DEFINITIONS ::= BEGIN
  A ::= B
  B ::= [1] IMPLICIT A
END`)
	testutil.Equal(t, types.DiagCircularType, e.Code, "code")
}

func TestImportCycle(t *testing.T) {
	e := buildErr(t, `
A DEFINITIONS ::= BEGIN
  IMPORTS X FROM B;
  T ::= X
END
B DEFINITIONS ::= BEGIN
  IMPORTS X FROM A;
END`)
	testutil.Equal(t, types.DiagCircularType, e.Code, "code")
}

func TestDuplicateModuleOID(t *testing.T) {
	e := buildErr(t, `
A { 1 2 3 } DEFINITIONS ::= BEGIN T ::= INTEGER END
B { 1 2 3 } DEFINITIONS ::= BEGIN U ::= INTEGER END`)
	testutil.Equal(t, types.DiagModuleIDDuplicate, e.Code, "code")
}

func TestEmptyStartModule(t *testing.T) {
	e := buildErr(t, `M DEFINITIONS ::= BEGIN END`)
	testutil.Equal(t, types.DiagEmptyStartModule, e.Code, "code")
}

func TestTooManyComponents(t *testing.T) {
	src := "M DEFINITIONS ::= BEGIN T ::= SEQUENCE {"
	for i := range MaxComponents + 1 {
		if i > 0 {
			src += ","
		}
		src += fmt.Sprintf(" c%d INTEGER", i)
	}
	src += " } END"
	e := buildErr(t, src)
	testutil.Equal(t, types.DiagTooManyComponents, e.Code, "code")
}
