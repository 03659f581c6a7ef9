package sqlparser

import (
	"strings"
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
)

func TestParseDDLCreateTable(t *testing.T) {
	sql := `CREATE TABLE person (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT UNIQUE
	)`
	stmt, d := ParseDDL(sql, "person.sql")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	tbl, ok := stmt.(*ast.CreateTable)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if tbl.Name != "person" || len(tbl.Columns) != 3 {
		t.Fatalf("got name=%q columns=%d", tbl.Name, len(tbl.Columns))
	}
	if !tbl.Columns[0].PrimaryKey || !tbl.Columns[0].AutoIncrement {
		t.Errorf("expected id to be primary key + autoincrement, got %+v", tbl.Columns[0])
	}
	if !tbl.Columns[1].NotNull {
		t.Errorf("expected name to be NOT NULL, got %+v", tbl.Columns[1])
	}
	if !tbl.Columns[2].Unique {
		t.Errorf("expected email to be UNIQUE, got %+v", tbl.Columns[2])
	}
}

func TestParseDDLCreateView(t *testing.T) {
	sql := `CREATE VIEW person_view AS SELECT p.id, p.name FROM person p`
	stmt, d := ParseDDL(sql, "person_view.sql")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	view, ok := stmt.(*ast.CreateView)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if view.Name != "person_view" {
		t.Errorf("got name %q", view.Name)
	}
	if view.Select.FromTable != "person" {
		t.Errorf("got from table %q", view.Select.FromTable)
	}
}

func TestParseQuerySelectWithNamedParams(t *testing.T) {
	sql := `SELECT id, name FROM person WHERE id = :id AND status IN :statuses`
	stmt, d := ParseQuery(sql, "find.sql", "find")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	sel, ok := stmt.(*ast.Select)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if len(sel.NamedParameters) != 2 {
		t.Fatalf("got params %v", sel.NamedParameters)
	}
	if sel.NamedParameters[0] != "id" || sel.NamedParameters[1] != "statuses" {
		t.Errorf("got %v", sel.NamedParameters)
	}
}

func TestParseQueryJoinRegistersAliases(t *testing.T) {
	sql := `SELECT p.id, a.city FROM person p JOIN address a ON a.person_id = p.id`
	stmt, d := ParseQuery(sql, "joined.sql", "joined")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	sel := stmt.(*ast.Select)
	if sel.TableAliases["p"] != "person" || sel.TableAliases["a"] != "address" {
		t.Errorf("got aliases %v", sel.TableAliases)
	}
	if len(sel.JoinTables) != 1 || sel.JoinTables[0] != "address" {
		t.Errorf("got join tables %v", sel.JoinTables)
	}
}

func TestParseInsertMapsValuesToColumns(t *testing.T) {
	sql := `INSERT INTO person (id, name) VALUES (:id, :name)`
	stmt, d := ParseQuery(sql, "insert.sql", "insert")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	dml := stmt.(*ast.DML)
	if dml.Kind != ast.KindInsert || dml.Table != "person" {
		t.Fatalf("got %+v", dml)
	}
	if dml.ParamToColumnName["id"] != "id" || dml.ParamToColumnName["name"] != "name" {
		t.Errorf("got %v", dml.ParamToColumnName)
	}
}

func TestParseDeleteInCollectionAssociation(t *testing.T) {
	sql := `DELETE FROM person WHERE id IN :ids`
	stmt, d := ParseQuery(sql, "delete.sql", "delete")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	dml := stmt.(*ast.DML)
	assoc, ok := dml.ParamToColumn["ids"]
	if !ok {
		t.Fatal("expected ids to be associated with a column")
	}
	if assoc.ColumnName != "id" || assoc.Kind != ast.AssocCollection {
		t.Errorf("got %+v", assoc)
	}
}

func TestParseReturningRejectsAlias(t *testing.T) {
	sql := `INSERT INTO person (id) VALUES (:id) RETURNING id AS person_id`
	_, d := ParseQuery(sql, "bad_returning.sql", "bad_returning")
	if !d.HasErrors() {
		t.Fatal("expected a ReturningExpression diagnostic")
	}
}

func TestRewriteSQLExpandsCollectionParam(t *testing.T) {
	out := RewriteSQL("SELECT * FROM person WHERE id IN :ids AND name = :name", map[string]ast.AssociatedColumnKind{
		"ids": ast.AssocCollection,
	})
	if !strings.Contains(out, "(SELECT value FROM json_each(?))") {
		t.Errorf("expected collection expansion, got %q", out)
	}
	if strings.Count(out, "?") != 2 {
		t.Errorf("expected two placeholders total, got %q", out)
	}
}
