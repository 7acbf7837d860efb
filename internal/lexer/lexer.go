package lexer

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/golangsnmp/goodr/internal/types"
)

// MaxNameLen is the longest name the lexer passes through unchanged.
// Longer names are cut and end in TruncMarker.
const MaxNameLen = 64

// TruncMarker is the last byte of a truncated name.
const TruncMarker = '|'

// Lexer tokenizes ASN.1 module source text.
type Lexer struct {
	source      []byte
	pos         int
	line        int
	file        string
	diagnostics []types.Diagnostic
	types.Logger
}

// New returns a Lexer that tokenizes the given source bytes.
// file is used only to label diagnostics.
func New(source []byte, file string, logger *slog.Logger) *Lexer {
	l := &Lexer{
		source: source,
		line:   1,
		file:   file,
		Logger: types.Component(logger, "lexer"),
	}
	l.Log(slog.LevelDebug, "lexer initialized",
		slog.String("file", file),
		slog.Int("bytes", len(source)))
	return l
}

// Diagnostics returns a copy of all collected diagnostics.
func (l *Lexer) Diagnostics() []types.Diagnostic {
	return slices.Clone(l.diagnostics)
}

// Line returns the current line number.
func (l *Lexer) Line() int {
	return l.line
}

// Tokenize consumes all source text and returns the token stream.
func (l *Lexer) Tokenize() []Token {
	tokens := make([]Token, 0, max(len(l.source)/6, 64))
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF || tok.Kind == TokError {
			break
		}
	}
	return tokens
}

// Next advances the lexer and returns the next token.
// Returns TokEOF when all input is consumed.
func (l *Lexer) Next() Token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.source) {
		return l.token(TokEOF, "")
	}

	b := l.source[l.pos]
	if kind, ok := punctuation(b); ok {
		l.pos++
		return l.token(kind, string(b))
	}

	if b == ':' {
		if l.hasPrefix("::=") {
			l.pos += 3
			return l.token(TokAssign, "::=")
		}
		l.pos++
		l.warn(types.DiagBadCharacter, "unexpected ':'")
		return l.token(TokError, ":")
	}

	if b == '"' {
		return l.token(TokName, l.quoted())
	}

	start := l.pos
	for l.pos < len(l.source) && !l.atDelimiter() {
		l.pos++
	}
	return l.token(TokName, l.name(start))
}

func (l *Lexer) token(kind TokenKind, text string) Token {
	tok := Token{Kind: kind, Text: text, Line: l.line}
	if l.TraceEnabled() {
		l.Trace("token",
			slog.String("kind", kind.String()),
			slog.String("text", text),
			slog.Int("line", l.line))
	}
	return tok
}

// name returns the source text from start to the cursor, truncating it if it
// is longer than MaxNameLen.
func (l *Lexer) name(start int) string {
	text := string(l.source[start:l.pos])
	if len(text) <= MaxNameLen {
		return text
	}
	cut := text[:MaxNameLen-1] + string(TruncMarker)
	l.warn(types.DiagIdentifierTruncated, fmt.Sprintf("name %q truncated to %q", text, cut))
	return cut
}

// quoted scans a quoted string, which may span lines. A doubled quote is
// part of the string.
func (l *Lexer) quoted() string {
	start := l.pos
	l.pos++
	for l.pos < len(l.source) {
		switch l.source[l.pos] {
		case '\n':
			l.line++
		case '"':
			if l.hasPrefix(`""`) {
				l.pos++
				break
			}
			l.pos++
			return string(l.source[start:l.pos])
		}
		l.pos++
	}
	return string(l.source[start:l.pos])
}

func (l *Lexer) warn(code, msg string) {
	l.diagnostics = append(l.diagnostics, types.Diagnostic{
		Severity: types.SeverityWarning,
		Code:     code,
		Message:  msg,
		File:     l.file,
		Line:     l.line,
	})
}

func punctuation(b byte) (TokenKind, bool) {
	switch b {
	case '{':
		return TokLBrace, true
	case '}':
		return TokRBrace, true
	case ',':
		return TokComma, true
	case ';':
		return TokSemicolon, true
	case '(':
		return TokLParen, true
	case ')':
		return TokRParen, true
	case '[':
		return TokLBracket, true
	case ']':
		return TokRBracket, true
	}
	return 0, false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == '\v'
}

func (l *Lexer) atDelimiter() bool {
	b := l.source[l.pos]
	if isSpace(b) || b == ':' {
		return true
	}
	if _, ok := punctuation(b); ok {
		return true
	}
	return l.hasPrefix("--") || l.hasPrefix("/*")
}

func (l *Lexer) hasPrefix(s string) bool {
	if l.pos+len(s) > len(l.source) {
		return false
	}
	return string(l.source[l.pos:l.pos+len(s)]) == s
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.source) {
		b := l.source[l.pos]
		switch {
		case b == '\n':
			l.line++
			l.pos++
		case isSpace(b):
			l.pos++
		case l.hasPrefix("--"):
			l.skipLineComment()
		case l.hasPrefix("/*"):
			l.skipBlockComment()
		default:
			return
		}
	}
}

// skipLineComment skips a "--" comment, which ends at the next "--" or at
// the end of the line.
func (l *Lexer) skipLineComment() {
	l.pos += 2
	for l.pos < len(l.source) {
		if l.source[l.pos] == '\n' {
			return
		}
		if l.hasPrefix("--") {
			l.pos += 2
			return
		}
		l.pos++
	}
}

// skipBlockComment skips a "/* */" comment. Block comments nest.
func (l *Lexer) skipBlockComment() {
	depth := 0
	for l.pos < len(l.source) {
		switch {
		case l.hasPrefix("/*"):
			depth++
			l.pos += 2
		case l.hasPrefix("*/"):
			depth--
			l.pos += 2
			if depth == 0 {
				return
			}
		default:
			if l.source[l.pos] == '\n' {
				l.line++
			}
			l.pos++
		}
	}
}
