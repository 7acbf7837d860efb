// Package integration compiles the ASN.1 corpus in testdata/asn and runs the
// BER codec against the cases in testdata/cases.yaml.
//
// # Adding Test Cases
//
//  1. Write the PDU value with ordinal keys, as goodr decode prints it
//  2. Work out the definite-length encoding and cross-check it with a second
//     BER tool (e.g. dumpasn1 or openssl asn1parse -inform DER)
//  3. Add the case to cases.yaml; set decode_only for non-canonical input
//
// # File Organization
//
//   - corpus_test.go: shared loading and compile assertions
//   - codec_test.go: decode and encode of the YAML cases
package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/golangsnmp/goodr"
	"github.com/golangsnmp/goodr/ber"
	"github.com/golangsnmp/goodr/odr"
)

// Compile order of the corpus; the last file holds the start module.
var corpusFiles = []string{"diag.asn", "sutrs.asn", "apdu.asn"}

var (
	corpusResult *goodr.Result
	corpusOnce   sync.Once
	corpusErr    error
)

func corpusPath(name string) string {
	return filepath.Join("testdata", "asn", name)
}

// loadCorpus compiles the corpus once and shares the result.
func loadCorpus(t *testing.T) *goodr.Result {
	t.Helper()

	corpusOnce.Do(func() {
		paths := make([]string, len(corpusFiles))
		for i, f := range corpusFiles {
			paths[i] = corpusPath(f)
		}
		inputs, err := goodr.ReadInputs(context.Background(), goodr.Files(paths...), paths[len(paths)-1])
		if err != nil {
			corpusErr = err
			return
		}
		corpusResult, corpusErr = goodr.Compile(context.Background(), inputs)
	})

	if corpusErr != nil {
		t.Fatalf("failed to compile corpus: %v", corpusErr)
	}
	return corpusResult
}

// codecCase is one entry of testdata/cases.yaml.
type codecCase struct {
	Name       string    `yaml:"name"`
	BER        string    `yaml:"ber"`
	Value      ber.Value `yaml:"value"`
	DecodeOnly bool      `yaml:"decode_only"`
	Error      ber.Code  `yaml:"error"`
	Offset     int       `yaml:"offset"`
}

func loadCases(t *testing.T) []codecCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "cases.yaml"))
	require.NoError(t, err)
	var cases []codecCase
	require.NoError(t, yaml.Unmarshal(data, &cases))
	require.NotEmpty(t, cases)
	return cases
}

func TestCorpusCompiles(t *testing.T) {
	res := loadCorpus(t)
	require.Empty(t, res.Diagnostics)

	s := res.Schema
	require.Equal(t, "PDU", s.RecordName(s.Start()))
	require.Greater(t, s.Len(), 0)

	// The serialized artifact loads to the same schema.
	again, err := odr.Load(res.Artifact)
	require.NoError(t, err)
	require.Equal(t, s.Len(), again.Len())
	require.Equal(t, s.Dump(), again.Dump())
}

func TestCorpusModules(t *testing.T) {
	s := loadCorpus(t).Schema

	want := map[string]string{
		"Mini-APDU":          "1.2.840.10003.2.1",
		"Mini-Diag":          "1.2.840.10003.4.1",
		"RecordSyntax-SUTRS": "1.2.840.10003.5.101",
	}
	got := make(map[string]string)
	for name, oid := range s.Modules() {
		dotted, err := odr.FormatOID(oid)
		require.NoError(t, err)
		got[name] = dotted
	}
	require.Equal(t, want, got)

	for name, dotted := range want {
		oid, err := odr.ParseOID(dotted)
		require.NoError(t, err)
		resolved, ok := s.ResolveModuleName(oid)
		require.True(t, ok, dotted)
		require.Equal(t, name, resolved)
	}

	missing, err := odr.ParseOID("1.2.840.10003.5.109")
	require.NoError(t, err)
	_, ok := s.ResolveModuleName(missing)
	require.False(t, ok)
}

func TestCorpusDump(t *testing.T) {
	s := loadCorpus(t).Schema

	var apdu *odr.ModuleDump
	for _, m := range s.Dump() {
		if m.Name == "Mini-APDU" {
			apdu = &m
		}
	}
	require.NotNil(t, apdu)
	require.Equal(t, "PDU", apdu.Root.Name)
	require.Equal(t, odr.KindChoice, apdu.Root.Kind)

	names := make([]string, len(apdu.Root.Children))
	for i, c := range apdu.Root.Children {
		names[i] = c.Name
	}
	require.Equal(t, []string{"initRequest", "initResponse", "presentResponse", "close"}, names)

	out, err := yaml.Marshal(apdu)
	require.NoError(t, err)
	require.Contains(t, string(out), "name: closeReason")
}

func TestCorpusWithoutNames(t *testing.T) {
	inputs, err := goodr.ReadInputs(context.Background(), goodr.Files(
		corpusPath("diag.asn"), corpusPath("sutrs.asn"), corpusPath("apdu.asn")), corpusPath("apdu.asn"))
	require.NoError(t, err)

	res, err := goodr.Compile(context.Background(), inputs, goodr.WithoutNames())
	require.NoError(t, err)
	require.Less(t, len(res.Artifact), len(loadCorpus(t).Artifact))
	require.Equal(t, loadCorpus(t).Schema.Len(), res.Schema.Len())
}
