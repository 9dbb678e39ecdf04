// Package semantic resolves declared types onto the symbol table and
// walks each POU's statements producing the diagnostic catalog of
// spec §4.4: type errors, range errors, call errors, control-flow
// warnings, and usage warnings, each carrying a stable numeric code.
package semantic

import "github.com/stplatform/st-platform/internal/lexer"

// Severity classifies how strongly a Diagnostic should be surfaced.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

// Code is a stable numeric diagnostic identifier, stable across
// releases so IDE clients and DAP consumers can filter/suppress by code
// rather than by matching message text.
type Code int

// Syntax errors (0xx), surfaced from the parser's own diagnostics so IDE
// consumers can filter/suppress them through the same Code catalog as
// every semantic finding.
const (
	CodeParseError Code = 0 + iota
)

// Type errors (1xx)
const (
	CodeIncompatibleAssignment Code = 100 + iota
	CodeConditionNotBoolean
	CodeArgumentTypeMismatch
	CodeInvalidArgumentCount
	CodeInvalidReturnType
	CodeInvalidAssignmentTarget
	CodeCannotResolve
	CodeAmbiguousReference
)

// Range errors (2xx)
const (
	CodeSubrangeOutOfBounds Code = 200 + iota
	CodeSubrangeBoundsInverted
	CodeArrayIndexOutOfBounds
	CodeArrayIndexSubrangeNotContained
	CodeStringInitializerTooLong
)

// Call errors (3xx)
const (
	CodeDuplicateFormalParameter Code = 300 + iota
	CodeUnknownParameter
	CodeMissingInOutBinding
	CodeOutputConnectionMisuse
	CodePositionalSkipsENEO
	CodeRefAdrOnNonLvalue
	CodeQAssignOnNonReference
)

// Control-flow warnings (4xx)
const (
	CodeUnreachableCode Code = 400 + iota
	CodeLiteralFalseBranch
	CodeCaseWithoutElse
	CodeHighCyclomaticComplexity
)

// Usage warnings (5xx)
const (
	CodeUnusedVariable Code = 500 + iota
	CodeUnusedParameter
	CodeUnusedPOU
	CodeImplicitConversion
	CodeNondeterministicUse
	CodeSharedGlobalAcrossTasks
)

// RelatedLocation points a diagnostic at a second range that explains
// it (e.g. the other candidate in an ambiguous reference).
type RelatedLocation struct {
	Message string
	Range   lexer.Range
}

// Diagnostic is one analyzer finding.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	Range    lexer.Range
	Related  []RelatedLocation
}

// CyclomaticThreshold is the complexity count at or above which
// CodeHighCyclomaticComplexity fires for one POU body.
const CyclomaticThreshold = 15
