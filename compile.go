package goodr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golangsnmp/goodr/internal/module"
	"github.com/golangsnmp/goodr/internal/parser"
	"github.com/golangsnmp/goodr/internal/resolver"
	"github.com/golangsnmp/goodr/internal/types"
	"github.com/golangsnmp/goodr/odr"
)

// Input is one ASN.1 source file.
type Input struct {
	// Name identifies the input in diagnostics, usually its path.
	Name string
	Data []byte
	// Start marks the file whose first module's root type is the
	// artifact's decode entry point. Exactly one input must set it.
	Start bool
}

// Result is the output of a successful compilation.
type Result struct {
	// Artifact is the serialized ODR schema.
	Artifact []byte
	// Schema is Artifact loaded and validated.
	Schema *Schema
	// Diagnostics lists the reported non-fatal diagnostics.
	Diagnostics []Diagnostic
}

// Compile parses the inputs, after the built-in prelude, and produces an
// ODR artifact. Inputs are parsed in order. A fatal problem is returned as
// a *CompileError; the diagnostics reported up to that point are returned
// with it in a non-nil Result.
func Compile(ctx context.Context, inputs []Input, opts ...Option) (*Result, error) {
	cfg := config{diagConfig: DefaultConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(inputs) == 0 {
		return nil, ErrNoSources
	}
	starts := 0
	for _, in := range inputs {
		if in.Start {
			starts++
		}
	}
	switch {
	case starts == 0:
		return nil, ErrNoStart
	case starts > 1:
		return nil, fmt.Errorf("%w: %d inputs are marked", ErrMultipleStart, starts)
	}

	c := &compilation{cfg: cfg, log: types.Component(cfg.logger, "compile")}
	return c.run(ctx, inputs)
}

type compilation struct {
	cfg   config
	log   types.Logger
	diags []Diagnostic
}

// report filters diagnostics through the configuration. It returns the
// first one that fails compilation.
func (c *compilation) report(diags []Diagnostic) error {
	for _, d := range diags {
		if !c.cfg.diagConfig.ShouldReport(d.Code) {
			continue
		}
		c.diags = append(c.diags, d)
		if c.cfg.diagConfig.ShouldFail(d.Severity) {
			return &CompileError{Diagnostic: d}
		}
	}
	return nil
}

func (c *compilation) fail(err error) (*Result, error) {
	return &Result{Diagnostics: c.diags}, err
}

func (c *compilation) run(ctx context.Context, inputs []Input) (*Result, error) {
	reg := module.NewRegistry(c.cfg.logger)

	p := parser.New(module.Prelude(), module.PreludeFile, reg, c.cfg.logger)
	if _, err := p.Parse(false); err != nil {
		return c.fail(fmt.Errorf("prelude: %w", err))
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		p := parser.New(in.Data, in.Name, reg, c.cfg.logger)
		mods, err := p.Parse(in.Start)
		if rerr := c.report(p.Diagnostics()); rerr != nil && err == nil {
			err = rerr
		}
		if err != nil {
			return c.fail(err)
		}
		c.log.Log(slog.LevelDebug, "parsed file",
			slog.String("file", in.Name),
			slog.Int("modules", len(mods)))
	}
	if err := ctx.Err(); err != nil {
		return c.fail(err)
	}

	artifact, diags, err := resolver.Resolve(reg, resolver.Config{
		Names:  !c.cfg.noNames,
		Logger: c.cfg.logger,
	})
	if rerr := c.report(diags); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return c.fail(err)
	}

	data, err := artifact.MarshalBinary()
	if err != nil {
		return c.fail(err)
	}
	schema, err := odr.Load(data)
	if err != nil {
		return c.fail(fmt.Errorf("compiled artifact does not load: %w", err))
	}
	c.log.Log(slog.LevelInfo, "compilation complete",
		slog.Int("files", len(inputs)),
		slog.Int("records", schema.Len()),
		slog.Int("bytes", len(data)))
	return &Result{Artifact: data, Schema: schema, Diagnostics: c.diags}, nil
}
