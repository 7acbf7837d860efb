package types

// Diagnostic codes emitted by the lexer, parser, and resolver phases.
// Centralizing these prevents silent breakage from typos in string literals.

// Lexer diagnostic codes.
const (
	DiagIdentifierTruncated = "identifier-truncated"
	DiagBadCharacter        = "bad-character"
)

// Parser diagnostic codes.
const (
	DiagParseError         = "parse-error"
	DiagBadTagDefault      = "bad-tag-default"
	DiagBadModuleID        = "bad-module-identifier"
	DiagTagTooLarge        = "tag-number-too-large"
	DiagDuplicateModule    = "duplicate-module"
	DiagDuplicateDef       = "duplicate-definition"
	DiagUnsupported        = "unsupported-construct"
	DiagSkippedAssignment  = "skipped-assignment"
	DiagUnbalanced         = "unbalanced-delimiter"
	DiagImportClash        = "import-clash"
	DiagExportUndefined    = "export-undefined"
	DiagImportNotExported  = "import-not-exported"
	DiagModuleIDDuplicate  = "duplicate-module-identifier"
	DiagMultipleStartFiles = "multiple-start-files"
)

// Resolver diagnostic codes.
const (
	DiagUndefinedType     = "undefined-type"
	DiagUnresolvedOrphan  = "unresolved-orphan"
	DiagMissingModule     = "missing-module"
	DiagCircularType      = "circular-type"
	DiagEmptyStartModule  = "empty-start-module"
	DiagTooManyRecords    = "too-many-records"
	DiagTooManyComponents = "too-many-components"
	DiagNamePoolOverflow  = "name-pool-overflow"
)

// AllDiagnosticCodes returns all known diagnostic codes grouped by phase.
func AllDiagnosticCodes() []DiagCodeInfo {
	return []DiagCodeInfo{
		// Lexer
		{Code: DiagIdentifierTruncated, Phase: "lexer"},
		{Code: DiagBadCharacter, Phase: "lexer"},
		// Parser
		{Code: DiagParseError, Phase: "parser"},
		{Code: DiagBadTagDefault, Phase: "parser"},
		{Code: DiagBadModuleID, Phase: "parser"},
		{Code: DiagTagTooLarge, Phase: "parser"},
		{Code: DiagDuplicateModule, Phase: "parser"},
		{Code: DiagDuplicateDef, Phase: "parser"},
		{Code: DiagUnsupported, Phase: "parser"},
		{Code: DiagSkippedAssignment, Phase: "parser"},
		{Code: DiagUnbalanced, Phase: "parser"},
		{Code: DiagImportClash, Phase: "parser"},
		// Resolver
		{Code: DiagExportUndefined, Phase: "resolver"},
		{Code: DiagImportNotExported, Phase: "resolver"},
		{Code: DiagModuleIDDuplicate, Phase: "resolver"},
		{Code: DiagMultipleStartFiles, Phase: "resolver"},
		{Code: DiagUndefinedType, Phase: "resolver"},
		{Code: DiagUnresolvedOrphan, Phase: "resolver"},
		{Code: DiagMissingModule, Phase: "resolver"},
		{Code: DiagCircularType, Phase: "resolver"},
		{Code: DiagEmptyStartModule, Phase: "resolver"},
		{Code: DiagTooManyRecords, Phase: "resolver"},
		{Code: DiagTooManyComponents, Phase: "resolver"},
		{Code: DiagNamePoolOverflow, Phase: "resolver"},
	}
}

// DiagCodeInfo describes a diagnostic code and the phase that emits it.
type DiagCodeInfo struct {
	Code  string
	Phase string
}
