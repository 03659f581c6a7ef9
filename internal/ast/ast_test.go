package ast

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

func TestEffectiveQueryResultPrefersQueryResult(t *testing.T) {
	s := StatementAnnotationOverrides{QueryResult: "A", SharedResult: "B"}
	if got := s.EffectiveQueryResult(); got != "A" {
		t.Errorf("got %q, want A", got)
	}
}

func TestEffectiveQueryResultFallsBackToSharedResult(t *testing.T) {
	s := StatementAnnotationOverrides{SharedResult: "B"}
	if got := s.EffectiveQueryResult(); got != "B" {
		t.Errorf("got %q, want B", got)
	}
}

func TestEffectiveQueryResultEmptyWhenNeitherSet(t *testing.T) {
	s := StatementAnnotationOverrides{}
	if got := s.EffectiveQueryResult(); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNewSelectInitializesMaps(t *testing.T) {
	s := NewSelect("stmt", "SELECT 1", token.Position{}, token.Position{})
	if s.TableAliases == nil || s.ParameterCastTypes == nil {
		t.Fatal("expected NewSelect to initialize its maps")
	}
	if s.StatementName() != "stmt" {
		t.Errorf("got %q", s.StatementName())
	}
}

func TestNewDMLInitializesMaps(t *testing.T) {
	d := NewDML("stmt", KindInsert, "INSERT INTO t (a) VALUES (?)", "t", token.Position{}, token.Position{})
	if d.ParamToColumn == nil || d.ParamToColumnName == nil || d.ParameterCastTypes == nil {
		t.Fatal("expected NewDML to initialize its maps")
	}
	if d.StatementName() != "stmt" {
		t.Errorf("got %q", d.StatementName())
	}
}

func TestFieldAnnotationOverridesZeroValueHasNoAnnotations(t *testing.T) {
	var a FieldAnnotationOverrides
	if a != (FieldAnnotationOverrides{}) {
		t.Fatal("expected zero value to equal the empty struct literal")
	}
}
