// Package diag provides structured diagnostics for the SQL code generator.
// Diagnostics are LSP-ready from day one.
package diag

import (
	"fmt"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

// Severity represents the severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// Range represents a range in the source code.
type Range struct {
	Start token.Position
	End   token.Position
}

// Diagnostic represents a single generator diagnostic.
type Diagnostic struct {
	Range    Range
	Severity Severity
	Kind     string // one of the Kind* constants below
	Code     string // e.g. "E0203"
	Message  string
	Source   string // "sqlgen" when built by AddError/AddWarning or the scanner; may be empty otherwise
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Range.Start.Filename != "" {
		fmt.Fprintf(&b, "%s:", d.Range.Start.Filename)
	}
	fmt.Fprintf(&b, "%d:%d: ", d.Range.Start.Line, d.Range.Start.Column)
	fmt.Fprintf(&b, "%s: %s", d.Severity, d.Message)
	if d.Code != "" {
		fmt.Fprintf(&b, " [%s/%s]", d.Kind, d.Code)
	}
	return b.String()
}

// Diagnostics is an ordered collection of diagnostics accumulated across
// one generator run.
type Diagnostics struct {
	items []Diagnostic
}

// New creates an empty Diagnostics collection.
func New() *Diagnostics {
	return &Diagnostics{items: make([]Diagnostic, 0)}
}

// Add appends a diagnostic.
func (d *Diagnostics) Add(diag Diagnostic) {
	d.items = append(d.items, diag)
}

// AddError appends an error-severity diagnostic of the given kind/code.
func (d *Diagnostics) AddError(r Range, kind, code, message string) {
	d.Add(Diagnostic{Range: r, Severity: Error, Kind: kind, Code: code, Message: message, Source: "sqlgen"})
}

// AddErrorAt is AddError with a zero-width range at pos.
func (d *Diagnostics) AddErrorAt(pos token.Position, kind, code, message string) {
	d.AddError(Range{Start: pos, End: pos}, kind, code, message)
}

// AddWarning appends a warning-severity diagnostic.
func (d *Diagnostics) AddWarning(r Range, kind, code, message string) {
	d.Add(Diagnostic{Range: r, Severity: Warning, Kind: kind, Code: code, Message: message, Source: "sqlgen"})
}

// AddWarningAt is AddWarning with a zero-width range at pos.
func (d *Diagnostics) AddWarningAt(pos token.Position, kind, code, message string) {
	d.AddWarning(Range{Start: pos, End: pos}, kind, code, message)
}

// All returns every diagnostic recorded so far.
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Errors returns only the error-severity diagnostics.
func (d *Diagnostics) Errors() []Diagnostic {
	var out []Diagnostic
	for _, it := range d.items {
		if it.Severity == Error {
			out = append(out, it)
		}
	}
	return out
}

// HasErrors reports whether any error-severity diagnostic is present.
func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the total number of diagnostics.
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// Merge appends every diagnostic from other onto d.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

// Kind labels, matching the error taxonomy. Each kind owns a block of
// codes below, mirroring the original E01xx/E02xx banding.
const (
	KindFileLayout        = "FileLayoutError"
	KindSqlParse          = "SqlParseError"
	KindSqlExecution      = "SqlExecutionError"
	KindAnnotation        = "AnnotationError"
	KindViewCycle         = "ViewCycleError"
	KindTypeResolution    = "TypeResolutionError"
	KindDynamicMapping    = "DynamicMappingError"
	KindSharedResultShape = "SharedResultShapeMismatchError"
	KindUnsupported       = "UnsupportedFeatureError"
)

const (
	// FileLayoutError (E01xx)
	ErrMissingSchemaDir   = "E0101"
	ErrEmptySchema        = "E0102"
	ErrMultiStatementFile = "E0103"
	ErrDuplicateMigration = "E0104"

	// SqlParseError (E02xx)
	ErrUnexpectedToken  = "E0201"
	ErrExpectedToken    = "E0202"
	ErrUnsupportedStmt  = "E0203"
	ErrMalformedCollect = "E0204"

	// SqlExecutionError (E03xx)
	ErrSchemaBootstrap = "E0301"

	// AnnotationError (E04xx)
	ErrUnknownAnnotationKey = "E0401"
	ErrMalformedAnnotation  = "E0402"
	ErrIllegalCombination   = "E0403"

	// ViewCycleError (E05xx)
	ErrViewCycle = "E0501"

	// TypeResolutionError (E06xx)
	ErrNoTypeMapping      = "E0601"
	ErrAdapterConflict    = "E0602"
	ErrUnresolvedProperty = "E0603"
	ErrNonScalarCollection = "E0604"

	// DynamicMappingError (E07xx)
	ErrMissingCollectionKey  = "E0701"
	ErrUnresolvedSourceTable = "E0702"
	ErrAmbiguousAliasPrefix  = "E0703"
	ErrAmbiguousAlias        = "E0704"

	// SharedResultShapeMismatchError (E08xx)
	ErrSharedResultMismatch = "E0801"

	// UnsupportedFeatureError (E09xx)
	ErrReturningExpression = "E0901"
	ErrUnsupportedKind     = "E0902"
)
