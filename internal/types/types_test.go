package types

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

func TestHostPrimitiveKnownAndUnknown(t *testing.T) {
	if prim, ok := HostPrimitive("integer"); !ok || prim != "Long" {
		t.Errorf("got %q, %v", prim, ok)
	}
	if _, ok := HostPrimitive("GEOMETRY"); ok {
		t.Error("did not expect a mapping for GEOMETRY")
	}
}

func TestResolveColumnNoMappingReportsError(t *testing.T) {
	r := NewResolver()
	d := diag.New()
	col := &ast.Column{Name: "shape", SqlType: "GEOMETRY"}
	r.ResolveColumn(col, ast.FieldAnnotationOverrides{}, d, token.Position{})
	if !d.HasErrors() {
		t.Fatal("expected a no-type-mapping diagnostic")
	}
	if d.Errors()[0].Code != diag.ErrNoTypeMapping {
		t.Errorf("got code %q", d.Errors()[0].Code)
	}
}

func TestResolveColumnPropertyTypeOverrideRequiresAdapter(t *testing.T) {
	r := NewResolver()
	d := diag.New()
	col := &ast.Column{Name: "birth_date", SqlType: "TEXT", NotNull: true}
	ft := r.ResolveColumn(col, ast.FieldAnnotationOverrides{PropertyType: "LocalDate"}, d, token.Position{})
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	if ft.HostType != "LocalDate" || !ft.NeedsAdapter {
		t.Errorf("got %+v", ft)
	}
	if ft.Nullable {
		t.Error("expected NOT NULL column to resolve non-nullable")
	}
}

func TestResolveColumnNullableOverrideWins(t *testing.T) {
	r := NewResolver()
	d := diag.New()
	col := &ast.Column{Name: "id", SqlType: "INTEGER", NotNull: true}
	ft := r.ResolveColumn(col, ast.FieldAnnotationOverrides{NullableSet: true, Nullable: true}, d, token.Position{})
	if !ft.Nullable {
		t.Error("expected nullable override to win over NOT NULL")
	}
}

func TestResolveProjectedJoinedAliasWidensToNullable(t *testing.T) {
	r := NewResolver()
	d := diag.New()
	fs := &ast.FieldSource{FieldName: "city", SqlType: "TEXT"}
	ft := r.ResolveProjected(fs, ast.FieldAnnotationOverrides{}, false, d)
	if !ft.Nullable {
		t.Error("expected a non-primary-alias projected field to widen to nullable")
	}
}

func TestResolveProjectedPrimaryAliasNotNull(t *testing.T) {
	r := NewResolver()
	d := diag.New()
	fs := &ast.FieldSource{FieldName: "id", SqlType: "INTEGER"}
	ft := r.ResolveProjected(fs, ast.FieldAnnotationOverrides{}, true, d)
	if ft.Nullable {
		t.Error("expected a primary-alias non-expression field to default non-nullable")
	}
}

func TestAdapterNameDirections(t *testing.T) {
	if got := AdapterName("birth_date", true); got != "birthDateToSqlValue" {
		t.Errorf("got %q", got)
	}
	if got := AdapterName("birth_date", false); got != "sqlValueToBirthDate" {
		t.Errorf("got %q", got)
	}
}

func TestRegisterAdapterDeduplicates(t *testing.T) {
	r := NewResolver()
	cfg := AdapterParamConfig{Namespace: "person", AdapterFunctionName: "sqlValueToBirthDate", InputType: "String", OutputType: "LocalDate"}
	r.RegisterAdapter(cfg)
	r.RegisterAdapter(cfg)
	r.RegisterAdapter(AdapterParamConfig{Namespace: "person", AdapterFunctionName: "sqlValueToEmail", InputType: "String", OutputType: "Email"})
	if len(r.Adapters()) != 2 {
		t.Fatalf("got %d adapters, want 2: %+v", len(r.Adapters()), r.Adapters())
	}
}
