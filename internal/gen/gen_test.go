package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunEndToEndSimpleNamespace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "schema", "person.sql"), `
CREATE TABLE person (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  /* @@{ propertyType=LocalDate, adapter } */
  birth_date TEXT
);`)
	writeFile(t, filepath.Join(root, "queries", "person", "find_by_id.sql"), `
SELECT id, name, birth_date FROM person WHERE id = :id;`)

	outDir := t.TempDir()
	cfg := Config{
		Name:          "main",
		SourceRoot:    root,
		PackagePrefix: "com.example.db",
		OutputDir:     outDir,
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()

	if err := g.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(outDir, "com/example/db/person/PersonQueries.kt"))
	if err != nil {
		t.Fatalf("expected generated output file: %v", err)
	}
	generated := string(content)
	if !strings.Contains(generated, "object FindById") {
		t.Errorf("expected FindById statement, got:\n%s", generated)
	}
	if !strings.Contains(generated, "val birthDate: LocalDate?") && !strings.Contains(generated, "val birth_date: LocalDate?") {
		t.Errorf("expected birth_date field with LocalDate host type, got:\n%s", generated)
	}
	if strings.Contains(generated, "TODO()") {
		t.Errorf("expected no TODO() stubs in generated output, got:\n%s", generated)
	}
	if !strings.Contains(generated, "stmt.bindLong(1, params.id)") {
		t.Errorf("expected the id param actually bound via bindLong, got:\n%s", generated)
	}
	if !strings.Contains(generated, "stmt.step()") {
		t.Errorf("expected the runner to step the prepared statement, got:\n%s", generated)
	}

	if _, err := os.Stat(filepath.Join(outDir, "com/example/db/DatabaseMigrations.kt")); err != nil {
		t.Errorf("expected a migration class output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "com/example/db/Database.kt")); err != nil {
		t.Errorf("expected a database facade output: %v", err)
	}
}

func TestRunEndToEndReturningDelete(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "schema", "person.sql"), `
CREATE TABLE person (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL
);`)
	writeFile(t, filepath.Join(root, "queries", "person", "delete_by_id.sql"), `
DELETE FROM person WHERE id = :id RETURNING id, name;`)

	outDir := t.TempDir()
	cfg := Config{
		Name:          "main",
		SourceRoot:    root,
		PackagePrefix: "com.example.db",
		OutputDir:     outDir,
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()

	if err := g.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(outDir, "com/example/db/person/PersonQueries.kt"))
	if err != nil {
		t.Fatalf("expected generated output file: %v", err)
	}
	generated := string(content)
	if strings.Contains(generated, "TODO()") {
		t.Errorf("expected no TODO() stubs for a RETURNING runner, got:\n%s", generated)
	}
	if !strings.Contains(generated, "fun list(params: Params): List<DeleteById_Result>") {
		t.Errorf("expected a list() runner typed on the RETURNING result, got:\n%s", generated)
	}
	if !strings.Contains(generated, "val name: String") {
		t.Errorf("expected the RETURNING name column mapped into the result, got:\n%s", generated)
	}
	if !strings.Contains(generated, "stmt.bindLong(1, params.id)") {
		t.Errorf("expected the id param bound for the DELETE, got:\n%s", generated)
	}
}

func TestRunReportsMissingSchemaDirectory(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	cfg := Config{Name: "main", SourceRoot: root, PackagePrefix: "com.example.db", OutputDir: outDir}
	g, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()

	err = g.Run()
	if err == nil {
		t.Fatal("expected an error for a missing schema directory")
	}
	if _, ok := err.(*GenerationError); !ok {
		t.Fatalf("expected a *GenerationError, got %T", err)
	}
}
