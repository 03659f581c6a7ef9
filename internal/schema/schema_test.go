package schema

import "testing"

func TestBootstrapOrdersViewsByDependency(t *testing.T) {
	ins, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer ins.Close()

	stmts := []string{
		"CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		// view_b depends on view_a; declared before it to exercise reordering.
		"CREATE VIEW view_b AS SELECT * FROM view_a",
		"CREATE VIEW view_a AS SELECT id, name FROM person",
	}
	if _, err := ins.Bootstrap(stmts); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	cols, err := ins.ColumnMetadata("view_b")
	if err != nil {
		t.Fatalf("ColumnMetadata(view_b): %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2: %+v", len(cols), cols)
	}
}

func TestBootstrapDetectsViewCycle(t *testing.T) {
	ins, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer ins.Close()

	stmts := []string{
		"CREATE TABLE person (id INTEGER PRIMARY KEY)",
		"CREATE VIEW view_a AS SELECT * FROM view_b",
		"CREATE VIEW view_b AS SELECT * FROM view_a",
	}
	d, err := ins.Bootstrap(stmts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.HasErrors() {
		t.Fatal("expected a ViewCycleError diagnostic")
	}
}

func TestColumnMetadataIsCached(t *testing.T) {
	ins, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer ins.Close()

	if _, err := ins.Bootstrap([]string{"CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"}); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	first, err := ins.ColumnMetadata("person")
	if err != nil {
		t.Fatal(err)
	}
	second, err := ins.ColumnMetadata("person")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached result mismatch: %d vs %d", len(first), len(second))
	}
	if !first[1].NotNull {
		t.Errorf("expected name column to read back NOT NULL, got %+v", first[1])
	}
}
