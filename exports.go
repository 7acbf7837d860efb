package goodr

import (
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// Diagnostic represents an issue found during compilation.
type Diagnostic = types.Diagnostic

// Severity is the severity of a diagnostic. Lower values are more severe.
type Severity = types.Severity

// CompileError is a fatal diagnostic returned by Compile. Use errors.As to
// inspect its file, line, module and code.
type CompileError = types.Error

// DiagnosticConfig controls which diagnostics are reported and which fail
// compilation.
type DiagnosticConfig = types.DiagnosticConfig

// Severity constants (lower = more severe).
const (
	SeverityFatal   = types.SeverityFatal   // compilation stops
	SeverityError   = types.SeverityError   // should correct
	SeverityWarning = types.SeverityWarning // might be correct
	SeverityInfo    = types.SeverityInfo    // informational
)

// Config constructors.
var (
	DefaultConfig = types.DefaultConfig
	StrictConfig  = types.StrictConfig
)

// Schema is a loaded ODR artifact.
type Schema = odr.Schema

// LoadSchema validates and loads a serialized artifact.
var LoadSchema = odr.Load

// ParseOID parses an OID from a dotted string (e.g., "1.2.840.10003.5.10")
// into BER content octets.
var ParseOID = odr.ParseOID

// FormatOID formats BER content octets as a dotted string.
var FormatOID = odr.FormatOID
