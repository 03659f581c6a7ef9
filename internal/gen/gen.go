// Package gen is the top-level generator orchestrator: it drives the
// file scanner, schema inspector, annotation parser, statement
// processor, field annotation resolver, type mapper, result planner,
// and emitter in sequence for one configured database, and exposes a
// single aggregated GenerationError at the task boundary.
package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/sqlitenow/sqlitenow-go/internal/annotation"
	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/emitter"
	"github.com/sqlitenow/sqlitenow-go/internal/planner"
	"github.com/sqlitenow/sqlitenow-go/internal/resolver"
	"github.com/sqlitenow/sqlitenow-go/internal/scanner"
	"github.com/sqlitenow/sqlitenow-go/internal/schema"
	"github.com/sqlitenow/sqlitenow-go/internal/sqlparser"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
	"github.com/sqlitenow/sqlitenow-go/internal/types"
)

// Config is one database's generator configuration, loaded from
// `sqlitenow.toml`.
type Config struct {
	Name              string `toml:"name"`
	SourceRoot        string `toml:"source_root"`
	PackagePrefix     string `toml:"package_prefix"`
	OutputDir         string `toml:"output_dir"`
	SchemaSnapshotPath string `toml:"schema_snapshot_path"`
	Debug             bool   `toml:"debug"`
}

// ProjectConfig is the top-level `sqlitenow.toml` shape: one or more
// named database configurations.
type ProjectConfig struct {
	Database []Config `toml:"database"`
}

// LoadProjectConfig reads and parses a sqlitenow.toml file.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	var cfg ProjectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &cfg, nil
}

// GenerationError aggregates every diagnostic produced across an
// entire run into the single error the CLI reports at the task
// boundary.
type GenerationError struct {
	Diagnostics *diag.Diagnostics
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	for _, d := range e.Diagnostics.Errors() {
		fmt.Fprintln(&b, d.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Generator owns one database build's resources: its own SQLite
// connection, its own annotation registry, its own type resolver. No
// state is shared across Generator instances so that multiple
// database builds can run concurrently.
type Generator struct {
	cfg      Config
	inspect  *schema.Inspector
	registry *resolver.Registry
	types    *types.Resolver
	emit     *emitter.Emitter
	diags    *diag.Diagnostics
}

// New constructs a Generator for one configured database. When the
// database is configured for debug output but no explicit schema
// snapshot path was given, a unique (random per run) snapshot path is
// generated under the OS temp directory so the bootstrapped schema can
// still be inspected after the run.
func New(cfg Config) (*Generator, error) {
	snapshotPath := cfg.SchemaSnapshotPath
	if snapshotPath == "" && cfg.Debug {
		snapshotPath = filepath.Join(os.TempDir(), fmt.Sprintf("sqlitenow-%s-%s.sqlite", cfg.Name, uuid.NewString()))
	}
	ins, err := schema.Open(snapshotPath)
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:      cfg,
		inspect:  ins,
		registry: resolver.New(),
		types:    types.NewResolver(),
		emit:     emitter.New(cfg.PackagePrefix),
		diags:    diag.New(),
	}, nil
}

// Close releases the Generator's SQLite connection.
func (g *Generator) Close() error {
	return g.inspect.Close()
}

// Run drives the full A-H pipeline for this Generator's configured
// database and writes every emitted file beneath OutputDir. A single
// file failure aborts the run and is returned as a *GenerationError.
func (g *Generator) Run() error {
	scanned, scanDiags := scanner.Scan(g.cfg.SourceRoot)
	g.diags.Merge(scanDiags)
	if g.diags.HasErrors() {
		return &GenerationError{Diagnostics: g.diags}
	}

	var ddlSQL []string
	var tables []*ast.CreateTable
	var views []*ast.CreateView
	for _, stmt := range scanned.SchemaStatements {
		ddlSQL = append(ddlSQL, stmt.Sql)
		parsed, pdiag := sqlparser.ParseDDL(stmt.Sql, stmt.File)
		g.diags.Merge(pdiag)
		switch v := parsed.(type) {
		case *ast.CreateTable:
			applyColumnAnnotations(v, stmt.InnerComments, g.diags)
			tables = append(tables, v)
			g.registry.AddTable(v)
		case *ast.CreateView:
			applyStatementAnnotations(&v.Select.Annotations, stmt.TopComments, g.diags)
			views = append(views, v)
			g.registry.AddView(v)
		}
	}
	if g.diags.HasErrors() {
		return &GenerationError{Diagnostics: g.diags}
	}

	var initSQL []string
	for _, stmt := range scanned.InitStatements {
		initSQL = append(initSQL, stmt.Sql)
	}

	bootDiags, err := g.inspect.Bootstrap(append(append([]string{}, ddlSQL...), initSQL...))
	if err != nil {
		return err
	}
	g.diags.Merge(bootDiags)
	if g.diags.HasErrors() {
		return &GenerationError{Diagnostics: g.diags}
	}

	for _, t := range tables {
		if cols, err := g.inspect.ColumnMetadata(t.Name); err == nil {
			mergeColumnMetadata(t, cols)
		}
	}
	for _, v := range views {
		if cols, err := g.inspect.ColumnMetadata(v.Name); err == nil {
			populateViewFields(v, cols)
		}
	}

	namespaces := make([]string, 0, len(scanned.QueriesByNS))
	for ns := range scanned.QueriesByNS {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	var outputs []emitter.Output
	for _, ns := range namespaces {
		var units []emitter.QueryUnit
		for _, qf := range scanned.QueriesByNS[ns] {
			stmt, pdiag := sqlparser.ParseQuery(qf.Sql, qf.Path, qf.Stem)
			g.diags.Merge(pdiag)
			if stmt == nil {
				continue
			}
			unit, udiag := g.buildUnit(ns, qf, stmt)
			g.diags.Merge(udiag)
			units = append(units, unit)
		}
		if g.diags.HasErrors() {
			return &GenerationError{Diagnostics: g.diags}
		}
		outputs = append(outputs, g.emit.EmitNamespace(ns, units, g.types, g.diags))
	}

	outputs = append(outputs, g.emit.EmitSharedResults())
	var migrationVersions []int
	for _, m := range scanned.Migrations {
		migrationVersions = append(migrationVersions, m.Version)
	}
	outputs = append(outputs, emitter.EmitMigrationClass(g.cfg.PackagePrefix, ddlSQL, initSQL, migrationVersions))
	outputs = append(outputs, emitter.EmitDatabaseFacade(g.cfg.PackagePrefix, namespaces))

	if g.diags.HasErrors() {
		return &GenerationError{Diagnostics: g.diags}
	}

	for _, out := range outputs {
		if err := writeOutput(g.cfg.OutputDir, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) buildUnit(ns string, qf scanner.RawFile, stmt ast.Statement) (emitter.QueryUnit, *diag.Diagnostics) {
	d := diag.New()
	switch s := stmt.(type) {
	case *ast.Select:
		applyStatementAnnotations(&s.Annotations, qf.TopComments, d)
		applyFieldAnnotationsToSelect(s, qf.InnerComments, d)
		plan := planner.Build(s, g.registry, g.types, ns, d)
		paramKinds := make(map[string]ast.AssociatedColumnKind)
		return emitter.QueryUnit{
			Name:           qf.Stem,
			Namespace:      ns,
			Kind:           "select",
			RewrittenSQL:   sqlparser.RewriteSQL(s.Sql, paramKinds),
			Params:         g.buildParams(s.NamedParameters, s.ParameterCastTypes, nil, ""),
			Plan:           plan,
			Annotations:    s.Annotations,
			AffectedTables: affectedTables(s),
		}, d
	case *ast.DML:
		applyStatementAnnotations(&s.Annotations, qf.TopComments, d)
		kindStr := map[ast.DMLKind]string{ast.KindInsert: "insert", ast.KindUpdate: "update", ast.KindDelete: "delete"}[s.Kind]
		paramKinds := make(map[string]ast.AssociatedColumnKind)
		for name, assoc := range s.ParamToColumn {
			paramKinds[name] = assoc.Kind
		}
		var plan *planner.ResultMappingPlan
		if s.HasReturning {
			plan = planner.BuildReturning(s, g.registry, g.types, ns, d)
		}
		return emitter.QueryUnit{
			Name:           qf.Stem,
			Namespace:      ns,
			Kind:           kindStr,
			RewrittenSQL:   sqlparser.RewriteSQL(s.Sql, paramKinds),
			Params:         g.buildParams(s.NamedParameters, s.ParameterCastTypes, s.ParamToColumn, s.Table),
			Plan:           plan,
			HasReturning:   s.HasReturning,
			Annotations:    s.Annotations,
			AffectedTables: []string{s.Table},
		}, d
	}
	return emitter.QueryUnit{}, d
}

func (g *Generator) buildParams(names []string, castTypes map[string]string, paramToCol map[string]ast.AssociatedColumn, table string) []emitter.ParamField {
	var out []emitter.ParamField
	for _, name := range names {
		hostType := "String"
		isCollection := false
		if assoc, ok := paramToCol[name]; ok {
			isCollection = assoc.Kind == ast.AssocCollection
			if t, ok := g.registry.Table(table); ok {
				for _, c := range t.Columns {
					if prim, ok := types.HostPrimitive(c.SqlType); ok && strings.EqualFold(c.Name, assoc.ColumnName) {
						hostType = prim
					}
				}
			}
		}
		if cast, ok := castTypes[name]; ok {
			if prim, ok := types.HostPrimitive(cast); ok {
				hostType = prim
			} else {
				hostType = cast
			}
		}
		out = append(out, emitter.ParamField{Name: name, HostType: hostType, IsCollection: isCollection})
	}
	return out
}

func affectedTables(s *ast.Select) []string {
	set := map[string]bool{}
	if s.FromTable != "" {
		set[s.FromTable] = true
	}
	for _, j := range s.JoinTables {
		set[j] = true
	}
	for _, w := range s.WithSelects {
		for _, t := range affectedTables(w) {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}

func applyColumnAnnotations(t *ast.CreateTable, comments []string, d *diag.Diagnostics) {
	for _, c := range comments {
		content, ok := annotation.Extract(c)
		if !ok {
			continue
		}
		entries := annotation.Parse(content, token.Position{}, d)
		ov := annotation.ApplyField(entries, d)
		target := ov.Field
		for _, col := range t.Columns {
			if target == "" || strings.EqualFold(col.Name, target) {
				col.Annotations = ov
			}
		}
	}
}

func applyStatementAnnotations(dst *ast.StatementAnnotationOverrides, comments []string, d *diag.Diagnostics) {
	for _, c := range comments {
		content, ok := annotation.Extract(c)
		if !ok {
			continue
		}
		entries := annotation.Parse(content, token.Position{}, d)
		*dst = annotation.ApplyStatement(entries, d)
	}
}

func applyFieldAnnotationsToSelect(s *ast.Select, comments []string, d *diag.Diagnostics) {
	for _, c := range comments {
		content, ok := annotation.Extract(c)
		if !ok {
			continue
		}
		entries := annotation.Parse(content, s.Pos(), d)
		ov := annotation.ApplyField(entries, d)
		if ov.IsDynamicField {
			s.DynamicFields = append(s.DynamicFields, &ast.DynamicField{
				Name:          firstNonEmpty(ov.PropertyName, ov.Field),
				MappingType:   ov.MappingType,
				PropertyType:  ov.PropertyType,
				SourceTable:   ov.SourceTable,
				AliasPrefix:   ov.AliasPrefix,
				CollectionKey: ov.CollectionKey,
				DefaultValue:  ov.DefaultValue,
				NotNull:       ov.NotNull,
			})
			continue
		}
		target := ov.Field
		for _, fs := range s.Fields {
			if target == "" || strings.EqualFold(fs.FieldName, target) {
				fs.Annotations = ov
			}
		}
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeColumnMetadata(t *ast.CreateTable, live []*ast.Column) {
	byName := make(map[string]*ast.Column, len(live))
	for _, c := range live {
		byName[strings.ToLower(c.Name)] = c
	}
	for _, c := range t.Columns {
		if lc, ok := byName[strings.ToLower(c.Name)]; ok {
			if c.SqlType == "" {
				c.SqlType = lc.SqlType
			}
		}
	}
}

func populateViewFields(v *ast.CreateView, live []*ast.Column) {
	if len(v.Fields) > 0 || v.Select == nil {
		return
	}
	for _, col := range live {
		v.Fields = append(v.Fields, &ast.ViewField{
			FieldName:          col.Name,
			OriginalColumnName: col.Name,
			SqlType:            col.SqlType,
		})
	}
}

func writeOutput(outDir string, out emitter.Output) error {
	full := filepath.Join(outDir, out.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", full, err)
	}
	if err := os.WriteFile(full, []byte(out.Content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", full, err)
	}
	return nil
}
