// Package lexer provides tokenization for ASN.1 module source text.
package lexer

import "fmt"

// Token is a token with kind, text, and the line it starts on.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// TokenKind identifies a token type.
type TokenKind int

const (
	// TokError is a lexical error; Text holds the offending input.
	TokError TokenKind = iota
	// TokEOF is end of input.
	TokEOF
	// TokName is an identifier, number, or any other bare word
	// ("...", "1..10", "-5").
	TokName
	// TokAssign is "::=".
	TokAssign
	TokLBrace
	TokRBrace
	TokComma
	TokSemicolon
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
)

var tokenKindNames = [...]string{
	TokError:     "error",
	TokEOF:       "end of input",
	TokName:      "name",
	TokAssign:    "::=",
	TokLBrace:    "{",
	TokRBrace:    "}",
	TokComma:     ",",
	TokSemicolon: ";",
	TokLParen:    "(",
	TokRParen:    ")",
	TokLBracket:  "[",
	TokRBracket:  "]",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Is reports whether the token is a name with exactly the given text.
func (t Token) Is(text string) bool {
	return t.Kind == TokName && t.Text == text
}

// Describe returns the token as it should appear in error messages.
func (t Token) Describe() string {
	switch t.Kind {
	case TokName, TokError:
		return fmt.Sprintf("%q", t.Text)
	default:
		return "'" + t.Kind.String() + "'"
	}
}
