// Package types holds the logger and diagnostic types shared by the
// compiler and codec packages.
package types

import (
	"context"
	"log/slog"
)

// LevelTrace sits below Debug and is used for per-token, per-record and
// per-TLV logging. A handler shows it with Level: slog.Level(-8).
const LevelTrace = slog.Level(-8)

var bg = context.Background()

// Logger is a possibly disabled slog.Logger. The zero value logs nothing.
type Logger struct {
	L *slog.Logger
}

// Component derives the logger of one subsystem (lexer, parser, resolver,
// decoder, encoder). A nil base yields the zero Logger.
func Component(base *slog.Logger, name string) Logger {
	if base == nil {
		return Logger{}
	}
	return Logger{L: base.With(slog.String("component", name))}
}

// Enabled reports whether a record at level would be emitted.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.L != nil && l.L.Enabled(bg, level)
}

// Log emits msg at level.
func (l *Logger) Log(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.Enabled(level) {
		l.L.LogAttrs(bg, level, msg, attrs...)
	}
}

// TraceEnabled guards trace calls whose attributes are costly to build.
func (l *Logger) TraceEnabled() bool {
	return l.Enabled(LevelTrace)
}

// Trace emits msg at LevelTrace.
func (l *Logger) Trace(msg string, attrs ...slog.Attr) {
	l.Log(LevelTrace, msg, attrs...)
}

// Phase logs the start of a compile phase.
func (l *Logger) Phase(name string) {
	l.Log(slog.LevelDebug, "starting phase", slog.String("phase", name))
}

// Frame traces a codec stack operation (push or pop) on the record called
// name. Callers build extra attributes only under TraceEnabled.
func (l *Logger) Frame(op, kind, name string, attrs ...slog.Attr) {
	if !l.TraceEnabled() {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+2)
	all = append(all, slog.String("kind", kind), slog.String("name", name))
	l.L.LogAttrs(bg, LevelTrace, op, append(all, attrs...)...)
}
