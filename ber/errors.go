package ber

import "fmt"

// Code is a codec error code. Codes are negative and keep the numbering of
// the classic C codec so they can be exchanged with existing tooling.
type Code int

const (
	ErrMem             Code = -1
	ErrBadTag          Code = -10
	ErrBadLength       Code = -11
	ErrTagTooLong      Code = -12
	ErrNoMatch         Code = -13
	ErrLengthTooLong   Code = -15
	ErrBadOID          Code = -20
	ErrUnknownModule   Code = -21
	ErrBadExternal     Code = -30
	ErrBadExternalOID  Code = -31
	ErrStackOverflow   Code = -40
	ErrStackUnderflow  Code = -41
	ErrChoicesOverflow Code = -50
	ErrBadValue        Code = -60
	ErrBadPDU          Code = -61
	ErrTransferLimit   Code = -70
	ErrBadSchema       Code = -80
)

var codeText = map[Code]string{
	ErrMem:             "memory",
	ErrBadTag:          "bad tag",
	ErrBadLength:       "bad length",
	ErrTagTooLong:      "tag number too long",
	ErrNoMatch:         "no schema match",
	ErrLengthTooLong:   "length of length too long",
	ErrBadOID:          "bad OID",
	ErrUnknownModule:   "unknown external OID",
	ErrBadExternal:     "bad EXTERNAL",
	ErrBadExternalOID:  "bad EXTERNAL OID",
	ErrStackOverflow:   "stack overflow",
	ErrStackUnderflow:  "stack underflow",
	ErrChoicesOverflow: "choices stack overflow",
	ErrBadValue:        "bad value",
	ErrBadPDU:          "bad encode PDU",
	ErrTransferLimit:   "transfer limit",
	ErrBadSchema:       "bad schema",
}

// Strerror returns the text for a code.
func Strerror(c Code) string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "unknown error"
}

func (c Code) String() string {
	return Strerror(c)
}

// Error makes a Code usable as a sentinel with errors.Is.
func (c Code) Error() string {
	return "ber: " + Strerror(c)
}

// Error is a fatal codec error. It ends the session it came from; the
// schema and other sessions are unaffected.
type Error struct {
	Code Code
	// Offset is the stream offset of the element that failed. For encoders
	// it is the number of bytes produced so far.
	Offset int
}

func (e *Error) Error() string {
	return fmt.Sprintf("ber: %s (%d) at offset %d", Strerror(e.Code), int(e.Code), e.Offset)
}

// Is reports whether target is the Code of e.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}
