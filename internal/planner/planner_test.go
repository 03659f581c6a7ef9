package planner

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/resolver"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
	"github.com/sqlitenow/sqlitenow-go/internal/types"
)

func newSelect(stmtName string) *ast.Select {
	return ast.NewSelect(stmtName, "", token.Position{}, token.Position{})
}

func TestBuildRegularFieldsOnly(t *testing.T) {
	sel := newSelect("find_person")
	sel.FromTable = "person"
	sel.TableAliases = map[string]string{"person": "person"}
	sel.Fields = []*ast.FieldSource{
		{FieldName: "id", TableName: "person", OriginalColumnName: "id", SqlType: "INTEGER"},
		{FieldName: "name", TableName: "person", OriginalColumnName: "name", SqlType: "TEXT"},
	}

	reg := resolver.New()
	tr := types.NewResolver()
	d := diag.New()
	plan := Build(sel, reg, tr, "person", d)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	if len(plan.RegularFields) != 2 {
		t.Fatalf("got %d regular fields", len(plan.RegularFields))
	}
	if plan.HasCollection {
		t.Error("did not expect a collection role")
	}
}

func TestBuildCollectionRequiresCollectionKey(t *testing.T) {
	sel := newSelect("person_with_addresses")
	sel.FromTable = "person"
	sel.TableAliases = map[string]string{"person": "person", "a": "address"}
	sel.Fields = []*ast.FieldSource{
		{FieldName: "id", TableName: "person", OriginalColumnName: "id", SqlType: "INTEGER"},
	}
	sel.DynamicFields = []*ast.DynamicField{
		{Name: "addresses", MappingType: ast.MappingCollection, SourceTable: "a", PropertyType: "Address"},
	}
	// no CollectionKey set on the field or the statement.

	reg := resolver.New()
	tr := types.NewResolver()
	d := diag.New()
	plan := Build(sel, reg, tr, "person", d)
	if !d.HasErrors() {
		t.Fatal("expected a MissingCollectionKey diagnostic")
	}
	if !plan.HasCollection {
		t.Error("expected HasCollection to be set")
	}
}

func TestBuildCollectionGroupingKeyResolved(t *testing.T) {
	sel := newSelect("person_with_addresses")
	sel.FromTable = "person"
	sel.TableAliases = map[string]string{"person": "person", "a": "address"}
	sel.Fields = []*ast.FieldSource{
		{FieldName: "id", TableName: "person", OriginalColumnName: "id", SqlType: "INTEGER"},
	}
	sel.DynamicFields = []*ast.DynamicField{
		{Name: "addresses", MappingType: ast.MappingCollection, SourceTable: "a", PropertyType: "Address", CollectionKey: "id"},
	}
	sel.Annotations.CollectionKey = "id"

	reg := resolver.New()
	tr := types.NewResolver()
	d := diag.New()
	plan := Build(sel, reg, tr, "person", d)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	if plan.GroupingKey == nil || plan.GroupingKey.Name != "id" {
		t.Fatalf("got grouping key %+v", plan.GroupingKey)
	}
	if len(plan.DynamicRoles.Collection) != 1 {
		t.Fatalf("got %d collection roles", len(plan.DynamicRoles.Collection))
	}
}

func TestValidateAliasPrefixFreeDetectsAmbiguity(t *testing.T) {
	d := diag.New()
	validateAliasPrefixFree([]string{"addr", "address"}, d)
	if !d.HasErrors() {
		t.Fatal("expected an AmbiguousAliasPrefix diagnostic")
	}
}

func TestValidateAliasPrefixFreeAllowsDisjointPrefixes(t *testing.T) {
	d := diag.New()
	validateAliasPrefixFree([]string{"addr", "phone"}, d)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
}
