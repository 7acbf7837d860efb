// Package goodr compiles a subset of ASN.1 into ODR, a compact binary schema
// that drives the resumable BER codec in package ber.
//
// Example:
//
//	inputs, err := goodr.ReadInputs(ctx, goodr.Files("z3950.asn"), "z3950.asn")
//	if err != nil {
//	    return err
//	}
//	res, err := goodr.Compile(ctx, inputs, goodr.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("z3950.odr", res.Artifact, 0o644)
package goodr

import (
	"errors"
	"log/slog"
)

var (
	// ErrNoSources is returned when Compile is called with no inputs.
	ErrNoSources = errors.New("no ASN.1 sources provided")
	// ErrNoStart is returned when no input is marked as the start file.
	ErrNoStart = errors.New("no start file")
	// ErrMultipleStart is returned when more than one input is marked as
	// the start file.
	ErrMultipleStart = errors.New("more than one start file")
)

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (tokens, records, TLVs).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = slog.Level(-8)

// Option configures Compile.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	noNames    bool
	diagConfig DiagnosticConfig
}

// WithLogger sets the logger for debug/trace output.
// If not set, no logging occurs (zero overhead).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithoutNames leaves type and component names out of the artifact. Every
// record then reports the sentinel name.
func WithoutNames() Option {
	return func(c *config) { c.noNames = true }
}

// WithDiagnosticConfig sets which diagnostics are reported and which fail
// compilation. StrictConfig fails on warnings.
func WithDiagnosticConfig(cfg DiagnosticConfig) Option {
	return func(c *config) { c.diagConfig = cfg }
}
