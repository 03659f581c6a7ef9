// Package schema bootstraps an ephemeral SQLite connection from parsed
// DDL statements, orders CREATE VIEW statements so that no view runs
// before the views or tables it depends on, and reads back column
// metadata via PRAGMA table_info so later stages can see real SQLite
// type affinities rather than guesses from the DDL text.
package schema

import (
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
)

// Inspector owns one ephemeral (or file-backed, if Path is set) SQLite
// connection for the duration of a single generator run. It is not
// safe for concurrent use by multiple database builds; callers must
// construct one Inspector per database, matching the generator's
// single-connection-per-build resource model.
type Inspector struct {
	db   *sql.DB
	path string

	tableInfoCache map[string][]columnInfo
}

// Open creates a new Inspector backed by an in-memory database, or by
// a file at path when path is non-empty (used for the optional
// "snapshot for inspection" output).
func Open(path string) (*Inspector, error) {
	dsn := ":memory:"
	if path != "" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening schema connection: %w", err)
	}
	return &Inspector{db: db, path: path, tableInfoCache: make(map[string][]columnInfo)}, nil
}

// Close releases the underlying SQLite connection.
func (ins *Inspector) Close() error {
	return ins.db.Close()
}

// DB exposes the underlying *sql.DB for callers (e.g. the migration
// bootstrap path) that need to run statements directly.
func (ins *Inspector) DB() *sql.DB {
	return ins.db
}

type columnInfo struct {
	Name         string
	Type         string
	NotNull      bool
	PrimaryKey   bool
	DefaultValue sql.NullString
}

var (
	createTableRe = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?["` + "`" + `\[]?([A-Za-z_][A-Za-z0-9_]*)["` + "`" + `\]]?`)
	createViewRe  = regexp.MustCompile(`(?is)^\s*CREATE\s+VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?["` + "`" + `\[]?([A-Za-z_][A-Za-z0-9_]*)["` + "`" + `\]]?`)
	identRe       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// ddlUnit is a single CREATE TABLE or CREATE VIEW statement paired
// with the name it declares.
type ddlUnit struct {
	name   string
	sql    string
	isView bool
}

// Bootstrap executes the given DDL statement texts against the
// connection: tables first in source order, then views in a
// topological order of their FROM/JOIN dependencies on other views.
// Cycles in the view dependency graph produce a ViewCycleError.
func (ins *Inspector) Bootstrap(statements []string) (*diag.Diagnostics, error) {
	d := diag.New()

	var tables, views []ddlUnit
	viewNames := make(map[string]bool)
	for _, s := range statements {
		if m := createViewRe.FindStringSubmatch(s); m != nil {
			viewNames[strings.ToLower(m[1])] = true
		}
	}
	for _, s := range statements {
		if m := createTableRe.FindStringSubmatch(s); m != nil {
			tables = append(tables, ddlUnit{name: m[1], sql: s, isView: false})
			continue
		}
		if m := createViewRe.FindStringSubmatch(s); m != nil {
			views = append(views, ddlUnit{name: m[1], sql: s, isView: true})
			continue
		}
		// index or other DDL: executed in source order among the tables, before views
		tables = append(tables, ddlUnit{name: "", sql: s})
	}

	ordered, err := orderViews(views, viewNames)
	if err != nil {
		d.AddError(diag.Range{}, diag.KindViewCycle, diag.ErrViewCycle, err.Error())
		return d, nil
	}

	for _, t := range tables {
		if _, err := ins.db.Exec(t.sql); err != nil {
			d.AddError(diag.Range{}, diag.KindSqlExecution, diag.ErrSchemaBootstrap, fmt.Sprintf("executing %q: %v", t.name, err))
			return d, nil
		}
	}
	for _, v := range ordered {
		if _, err := ins.db.Exec(v.sql); err != nil {
			d.AddError(diag.Range{}, diag.KindSqlExecution, diag.ErrSchemaBootstrap, fmt.Sprintf("executing view %q: %v", v.name, err))
			return d, nil
		}
	}

	return d, nil
}

// orderViews performs a depth-first topological sort of views by their
// dependencies on other views referenced in FROM/JOIN clauses, tracking
// each view as unvisited/visiting/done to detect cycles as it walks.
// Dependencies on plain tables are not edges (tables are always
// bootstrapped first). Returns an error describing the cycle when one
// exists.
func orderViews(views []ddlUnit, viewNames map[string]bool) ([]ddlUnit, error) {
	byName := make(map[string]ddlUnit, len(views))
	deps := make(map[string]map[string]bool, len(views))
	for _, v := range views {
		lname := strings.ToLower(v.name)
		byName[lname] = v
		deps[lname] = dependsOnViews(v.sql, lname, viewNames)
	}

	var order []string
	visited := make(map[string]int) // 0=unvisited 1=visiting 2=done
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("view dependency cycle: %s", strings.Join(append(path, name), " -> "))
		}
		visited[name] = 1
		names := make([]string, 0, len(deps[name]))
		for dep := range deps[name] {
			names = append(names, dep)
		}
		sort.Strings(names)
		for _, dep := range names {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, strings.ToLower(v.name))
	}
	sort.Strings(names)
	for _, n := range names {
		if err := visit(n, nil); err != nil {
			return nil, err
		}
	}

	ordered := make([]ddlUnit, 0, len(order))
	for _, n := range order {
		ordered = append(ordered, byName[n])
	}
	return ordered, nil
}

// dependsOnViews does a conservative textual scan of a CREATE VIEW
// statement's FROM/JOIN clauses for identifiers that match another
// known view name.
func dependsOnViews(sqlText, selfName string, viewNames map[string]bool) map[string]bool {
	deps := make(map[string]bool)
	upper := strings.ToUpper(sqlText)
	for _, kw := range []string{"FROM", "JOIN"} {
		idx := 0
		for {
			i := strings.Index(upper[idx:], kw)
			if i < 0 {
				break
			}
			pos := idx + i + len(kw)
			idx = pos
			rest := sqlText[pos:]
			m := identRe.FindString(strings.TrimSpace(rest))
			lname := strings.ToLower(m)
			if lname != "" && lname != selfName && viewNames[lname] {
				deps[lname] = true
			}
		}
	}
	return deps
}

// ColumnMetadata returns the live column metadata for tableOrView,
// reading through PRAGMA table_info and caching the result for the
// lifetime of this Inspector.
func (ins *Inspector) ColumnMetadata(tableOrView string) ([]*ast.Column, error) {
	key := strings.ToLower(tableOrView)
	if cached, ok := ins.tableInfoCache[key]; ok {
		return toColumns(cached), nil
	}

	rows, err := ins.db.Query(fmt.Sprintf("PRAGMA table_info(%q)", tableOrView))
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info(%s): %w", tableOrView, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning table_info row: %w", err)
		}
		cols = append(cols, columnInfo{
			Name:         name,
			Type:         ctype,
			NotNull:      notnull != 0,
			PrimaryKey:   pk != 0,
			DefaultValue: dflt,
		})
	}
	ins.tableInfoCache[key] = cols
	return toColumns(cols), rows.Err()
}

func toColumns(cols []columnInfo) []*ast.Column {
	out := make([]*ast.Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, &ast.Column{
			Name:       c.Name,
			SqlType:    strings.ToUpper(c.Type),
			NotNull:    c.NotNull,
			PrimaryKey: c.PrimaryKey,
		})
	}
	return out
}
