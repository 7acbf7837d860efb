package module

import _ "embed"

// PreludeFile is the source name reported for diagnostics in the prelude.
const PreludeFile = "<prelude>"

//go:embed prelude.asn
var prelude []byte

// Prelude returns the source of the built-in _USE module, compiled ahead of
// user sources. It defines EXTERNAL and the universal string types.
func Prelude() []byte {
	return prelude
}
