package lexer

import "slices"

// keywords is the sorted table of ASN.1 reserved words recognized by the
// compiler. None of them may be used as a type or module name.
// IMPORTANT: This slice MUST remain sorted in ASCII byte order.
var keywords = []string{
	"ALL",
	"ANY",
	"APPLICATION",
	"AUTOMATIC",
	"BEGIN",
	"BIT",
	"BOOLEAN",
	"BY",
	"CHOICE",
	"COMPONENTS",
	"DEFAULT",
	"DEFINED",
	"DEFINITIONS",
	"END",
	"EXPLICIT",
	"EXPORTS",
	"FROM",
	"IDENTIFIER",
	"IMPLICIT",
	"IMPORTS",
	"INTEGER",
	"MACRO",
	"NULL",
	"OBJECT",
	"OCTET",
	"OF",
	"OPTIONAL",
	"PRIVATE",
	"REAL",
	"SEQUENCE",
	"SET",
	"SIZE",
	"STRING",
	"TAGS",
	"UNIVERSAL",
}

// IsKeyword reports whether text is a reserved word.
func IsKeyword(text string) bool {
	_, ok := slices.BinarySearch(keywords, text)
	return ok
}
