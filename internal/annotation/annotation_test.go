package annotation

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

func TestExtractFindsBlock(t *testing.T) {
	content, ok := Extract("leading text @@{ propertyType=LocalDate } trailing")
	if !ok {
		t.Fatal("expected a block to be found")
	}
	if content != "propertyType=LocalDate" {
		t.Fatalf("got %q", content)
	}
}

func TestExtractNoBlock(t *testing.T) {
	if _, ok := Extract("plain comment"); ok {
		t.Fatal("did not expect a block")
	}
}

func TestParseHandlesBareKeyAndListValue(t *testing.T) {
	d := diag.New()
	entries := Parse("adapter, propertyType=List<String>", token.Position{}, d)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries: %+v", len(entries), entries)
	}
	if entries[0].Key != "adapter" || entries[0].Value != "true" {
		t.Errorf("got %+v", entries[0])
	}
	if entries[1].Key != "propertyType" || entries[1].Value != "List<String>" {
		t.Errorf("got %+v", entries[1])
	}
}

func TestApplyFieldRejectsUnknownKey(t *testing.T) {
	d := diag.New()
	entries := Parse("bogusKey=1", token.Position{}, d)
	ApplyField(entries, d)
	if !d.HasErrors() {
		t.Fatal("expected an unknown-key diagnostic")
	}
	if d.Errors()[0].Code != diag.ErrUnknownAnnotationKey {
		t.Errorf("got code %q", d.Errors()[0].Code)
	}
}

func TestApplyFieldRejectsConflictingNullability(t *testing.T) {
	d := diag.New()
	entries := Parse("notNull=true, nullable=true", token.Position{}, d)
	ApplyField(entries, d)
	if !d.HasErrors() {
		t.Fatal("expected notNull/nullable conflict diagnostic")
	}
}

func TestApplyStatementParsesExcludeOverrideFieldsList(t *testing.T) {
	d := diag.New()
	entries := Parse("queryResult=PersonSummary, excludeOverrideFields=[id, createdAt]", token.Position{}, d)
	ov := ApplyStatement(entries, d)
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	if ov.QueryResult != "PersonSummary" {
		t.Errorf("got QueryResult=%q", ov.QueryResult)
	}
	if len(ov.ExcludeOverrideFields) != 2 || ov.ExcludeOverrideFields[0] != "id" || ov.ExcludeOverrideFields[1] != "createdAt" {
		t.Errorf("got %+v", ov.ExcludeOverrideFields)
	}
}
