package types

import (
	"fmt"
	"slices"
	"strings"
)

// Severity levels for diagnostics. Lower values are more severe.
type Severity int

const (
	SeverityFatal   Severity = 0 // compilation stops
	SeverityError   Severity = 2
	SeverityWarning Severity = 5
	SeverityInfo    Severity = 6
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

// Diagnostic represents an issue found during compilation.
type Diagnostic struct {
	Severity Severity
	Code     string // e.g., "identifier-truncated", "undefined-type"
	Message  string
	File     string // source name, empty for the built-in prelude
	Module   string // module being compiled, if any
	Line     int    // 1-based line number, 0 if not applicable
}

// String returns a human-readable representation of the diagnostic.
// Format: "[severity] file:line: module M: message" with empty parts omitted.
func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(d.Severity.String())
	b.WriteString("] ")
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
		b.WriteString(": ")
	}
	if d.Module != "" {
		b.WriteString("module ")
		b.WriteString(d.Module)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Error is a fatal diagnostic returned as an error.
type Error struct {
	Diagnostic
}

func (e *Error) Error() string {
	return e.Diagnostic.String()
}

// Errorf builds a fatal diagnostic error.
func Errorf(code, file, module string, line int, format string, args ...any) *Error {
	return &Error{Diagnostic{
		Severity: SeverityFatal,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Module:   module,
		Line:     line,
	}}
}

// DiagnosticConfig controls which warnings are reported and which fail
// compilation.
type DiagnosticConfig struct {
	// FailAt sets the severity threshold for failure.
	// Any reported diagnostic with severity <= FailAt fails compilation.
	// Default (0) means fail on Fatal only.
	FailAt Severity

	// Ignore lists diagnostic codes to suppress entirely.
	// Supports glob patterns (e.g., "unresolved-*").
	Ignore []string
}

// DefaultConfig returns the default diagnostic configuration.
func DefaultConfig() DiagnosticConfig {
	return DiagnosticConfig{FailAt: SeverityFatal}
}

// StrictConfig returns a configuration that fails on warnings.
func StrictConfig() DiagnosticConfig {
	return DiagnosticConfig{FailAt: SeverityWarning}
}

// ShouldReport returns true if a diagnostic with the given code should be
// reported under this configuration.
func (c DiagnosticConfig) ShouldReport(code string) bool {
	return !slices.ContainsFunc(c.Ignore, func(pattern string) bool {
		return MatchGlob(pattern, code)
	})
}

// ShouldFail returns true if a diagnostic with the given severity should
// cause compilation to fail.
func (c DiagnosticConfig) ShouldFail(sev Severity) bool {
	return sev <= c.FailAt
}

// MatchGlob performs simple glob matching with * wildcard.
func MatchGlob(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(s, suffix)
	}
	return pattern == s
}
