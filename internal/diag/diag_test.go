package diag

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

func TestHasErrorsOnlyTrueForErrorSeverity(t *testing.T) {
	d := New()
	d.AddWarningAt(token.Position{}, KindAnnotation, ErrMalformedAnnotation, "just a warning")
	if d.HasErrors() {
		t.Fatal("a warning-only collection must not report HasErrors")
	}
	d.AddErrorAt(token.Position{}, KindSqlParse, ErrUnexpectedToken, "boom")
	if !d.HasErrors() {
		t.Fatal("expected HasErrors after adding an error")
	}
	if len(d.Errors()) != 1 {
		t.Fatalf("got %d errors, want 1", len(d.Errors()))
	}
	if d.Count() != 2 {
		t.Fatalf("got count %d, want 2", d.Count())
	}
}

func TestMergeAppendsAndToleratesNil(t *testing.T) {
	d := New()
	d.AddErrorAt(token.Position{}, KindSqlParse, ErrUnexpectedToken, "a")
	other := New()
	other.AddErrorAt(token.Position{}, KindAnnotation, ErrUnknownAnnotationKey, "b")
	d.Merge(other)
	d.Merge(nil)
	if d.Count() != 2 {
		t.Fatalf("got count %d, want 2", d.Count())
	}
}

func TestDiagnosticStringIncludesCode(t *testing.T) {
	dg := Diagnostic{
		Range:    Range{Start: token.Position{Filename: "x.sql", Line: 3, Column: 5}},
		Severity: Error,
		Kind:     KindSqlParse,
		Code:     ErrUnexpectedToken,
		Message:  "unexpected token",
	}
	s := dg.String()
	if s == "" {
		t.Fatal("expected a non-empty string")
	}
	want := "x.sql:3:5: error: unexpected token [SqlParseError/E0201]"
	if s != want {
		t.Errorf("got %q, want %q", s, want)
	}
}
