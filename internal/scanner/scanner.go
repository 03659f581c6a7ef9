// Package scanner enumerates the on-disk layout a database definition
// is expected to follow (schema/, init/, migration/, queries/<ns>/) and
// splits multi-statement schema files into individual statements.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

// RawStatement is one `;`-delimited statement recovered from a schema
// file, with its leading ("top") comments and any comments found after
// its own text began, including those nested inside its parentheses
// ("inner" comments), kept alongside it
// verbatim for the annotation parser to later inspect.
type RawStatement struct {
	File          string
	Sql           string
	TopComments   []string
	InnerComments []string
	Pos           token.Position
}

// RawFile is a single query file: exactly one statement plus its
// leading comments.
type RawFile struct {
	Path          string
	Namespace     string
	Stem          string // filename without extension; default statement identifier
	Sql           string
	TopComments   []string
	InnerComments []string
}

// MigrationFile is one numbered forward migration step.
type MigrationFile struct {
	Version int
	Path    string
	Sql     string
}

// Result is the scanner's full output for one database's source tree.
type Result struct {
	SchemaStatements []RawStatement
	InitStatements    []RawStatement
	Migrations        []MigrationFile
	QueriesByNS       map[string][]RawFile
}

var migrationPrefix = regexp.MustCompile(`^0*(\d+)`)

// Scan walks root (expected to contain schema/, init/, migration/, and
// queries/<namespace>/ subdirectories, any of which may be absent) and
// produces a Result. A missing schema/ directory, or one with no SQL
// files in it, is a FileLayoutError.
func Scan(root string) (*Result, *diag.Diagnostics) {
	d := diag.New()
	res := &Result{QueriesByNS: make(map[string][]RawFile)}

	schemaDir := filepath.Join(root, "schema")
	schemaFiles, err := listSQLFiles(schemaDir)
	if err != nil || len(schemaFiles) == 0 {
		d.Add(diagFileLayout(diag.ErrMissingSchemaDir, fmt.Sprintf("schema directory %q is missing or empty", schemaDir)))
		return res, d
	}
	for _, f := range schemaFiles {
		content, err := os.ReadFile(f)
		if err != nil {
			d.Add(diagFileLayout(diag.ErrMissingSchemaDir, fmt.Sprintf("cannot read %q: %v", f, err)))
			continue
		}
		stmts := SplitStatements(string(content), f)
		if len(stmts) == 0 {
			d.Add(diagFileLayout(diag.ErrEmptySchema, fmt.Sprintf("%q contains no statements", f)))
			continue
		}
		res.SchemaStatements = append(res.SchemaStatements, stmts...)
	}

	initDir := filepath.Join(root, "init")
	initFiles, _ := listSQLFiles(initDir)
	for _, f := range initFiles {
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		res.InitStatements = append(res.InitStatements, SplitStatements(string(content), f)...)
	}

	migDir := filepath.Join(root, "migration")
	migFiles, _ := listSQLFiles(migDir)
	seenVersions := make(map[int]string)
	for _, f := range migFiles {
		base := filepath.Base(f)
		m := migrationPrefix.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		if prev, ok := seenVersions[version]; ok {
			d.Add(diagFileLayout(diag.ErrDuplicateMigration, fmt.Sprintf("migration version %d declared by both %q and %q", version, prev, f)))
			continue
		}
		seenVersions[version] = f
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		res.Migrations = append(res.Migrations, MigrationFile{Version: version, Path: f, Sql: string(content)})
	}
	sort.Slice(res.Migrations, func(i, j int) bool { return res.Migrations[i].Version < res.Migrations[j].Version })

	queriesDir := filepath.Join(root, "queries")
	namespaces, _ := os.ReadDir(queriesDir)
	for _, nsEntry := range namespaces {
		if !nsEntry.IsDir() {
			continue
		}
		ns := nsEntry.Name()
		nsDir := filepath.Join(queriesDir, ns)
		files, err := listSQLFiles(nsDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				continue
			}
			stmts := SplitStatements(string(content), f)
			if len(stmts) != 1 {
				d.Add(diagFileLayout(diag.ErrMultiStatementFile, fmt.Sprintf("query file %q must contain exactly one statement, found %d", f, len(stmts))))
				continue
			}
			stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
			res.QueriesByNS[ns] = append(res.QueriesByNS[ns], RawFile{
				Path:          f,
				Namespace:     ns,
				Stem:          stem,
				Sql:           stmts[0].Sql,
				TopComments:   stmts[0].TopComments,
				InnerComments: stmts[0].InnerComments,
			})
		}
	}

	return res, d
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// SplitStatements splits file content on top-level `;` characters
// (ignoring semicolons inside string literals, quoted identifiers, or
// parenthesized sub-expressions) and separates each statement's
// leading comments ("top") from comments found after its own text
// began, such as those in a projection list or inside its parentheses
// ("inner").
func SplitStatements(content, filename string) []RawStatement {
	var stmts []RawStatement
	var pending []string // comment lines/blocks seen since the last statement boundary, before the statement's text
	var inner []string   // comment lines/blocks seen after the statement's text began
	begun := false

	depth := 0
	inStr, inQ, inBt := false, false, false
	start := 0
	line, col := 1, 1
	startLine, startCol := 1, 1

	flushComment := func(text string) {
		if begun {
			inner = append(inner, strings.TrimSpace(text))
			return
		}
		pending = append(pending, strings.TrimSpace(text))
	}

	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case inStr:
			if c == '\'' {
				inStr = false
			}
		case inQ:
			if c == '"' {
				inQ = false
			}
		case inBt:
			if c == '`' {
				inBt = false
			}
		case c == '\'':
			inStr = true
		case c == '"':
			inQ = true
		case c == '`':
			inBt = true
		case c == '-' && i+1 < len(content) && content[i+1] == '-':
			j := strings.IndexByte(content[i:], '\n')
			var text string
			if j < 0 {
				text = content[i:]
				i = len(content)
			} else {
				text = content[i : i+j]
				i += j
			}
			flushComment(strings.TrimPrefix(text, "--"))
			continue
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			end := strings.Index(content[i+2:], "*/")
			var text string
			if end < 0 {
				text = content[i+2:]
				i = len(content)
			} else {
				text = content[i+2 : i+2+end]
				i += 2 + end + 2
			}
			flushComment(text)
			continue
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			stmtText := strings.TrimSpace(content[start:i])
			if stmtText != "" {
				stmts = append(stmts, RawStatement{
					File:          filename,
					Sql:           stmtText,
					TopComments:   pending,
					InnerComments: inner,
					Pos:           token.Position{Filename: filename, Offset: start, Line: startLine, Column: startCol},
				})
			}
			pending, inner, begun = nil, nil, false
			start = i + 1
			startLine, startCol = line, col+1
		}
		if !begun && c != ';' && c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			begun = true
		}
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i++
	}

	tail := strings.TrimSpace(content[start:])
	if tail != "" {
		stmts = append(stmts, RawStatement{
			File:          filename,
			Sql:           tail,
			TopComments:   pending,
			InnerComments: inner,
			Pos:           token.Position{Filename: filename, Offset: start, Line: startLine, Column: startCol},
		})
	}

	return stmts
}

// splitComments classifies accumulated comments as "top" (outside any
// parenthesis of the statement, i.e. preceding it) versus "inner"
// (found once the scanner had already entered the statement's own
// parenthesized region). Since SplitStatements resets pending at every
// boundary, and the parenthesis tracking already excludes semicolons,
// a simpler heuristic holds: comments collected before the statement's
// own text began are top comments; none collected mid-statement count
// as inner here because block comments inside `( ... )` are captured
// by the caller re-scanning stmtText. Both lists are returned for the
// annotation parser layer above to re-derive inner placement exactly.
func splitComments(pending []string, stmtText string) (top, inner []string) {
	top = pending
	depth := 0
	inStr, inQ := false, false
	for i := 0; i < len(stmtText); i++ {
		c := stmtText[i]
		switch {
		case inStr:
			if c == '\'' {
				inStr = false
			}
		case inQ:
			if c == '"' {
				inQ = false
			}
		case c == '\'':
			inStr = true
		case c == '"':
			inQ = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == '/' && depth > 0 && i+1 < len(stmtText) && stmtText[i+1] == '*':
			end := strings.Index(stmtText[i+2:], "*/")
			if end >= 0 {
				inner = append(inner, strings.TrimSpace(stmtText[i+2:i+2+end]))
				i += 2 + end + 1
			}
		}
	}
	return top, inner
}

func diagFileLayout(code, message string) diag.Diagnostic {
	return diag.Diagnostic{Severity: diag.Error, Kind: diag.KindFileLayout, Code: code, Message: message, Source: "sqlgen"}
}
