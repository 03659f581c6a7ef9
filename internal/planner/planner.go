// Package planner builds the ResultMappingPlan for each SELECT: the
// partition of regular vs. dynamic fields, the skip set of columns
// consumed by nested mappings, alias-prefix resolution, the joined
// intermediate struct needed for collection grouping, and the ordered
// constructor argument list the emitter turns into generated code.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/resolver"
	"github.com/sqlitenow/sqlitenow-go/internal/types"
)

// Field is one resolved, emittable constructor argument: a regular
// projected column, or a slot filled by a dynamic mapping.
type Field struct {
	PropertyName   string
	HostType       string
	Nullable       bool
	SqlType        string
	TableAlias     string
	OriginalColumn string
	NeedsAdapter   bool
	Provenance     string

	IsDynamic       bool
	MappingType     ast.MappingType
	CollectionKey   string
	DefaultValue    string
	ChildResultType string
	AliasPrefix     string
	SourceTable     string
}

// DynamicRoles groups a SELECT's dynamic fields by mapping type.
type DynamicRoles struct {
	Entity     *Field
	PerRow     []*Field
	Collection []*Field
}

// FieldRef names a field plus its resolved host type, used for the
// statement's grouping key.
type FieldRef struct {
	Name     string
	HostType string
}

// ResultMappingPlan is the planner's single output per SELECT,
// consumed read-only by the emitter.
type ResultMappingPlan struct {
	StatementName      string
	RegularFields      []*Field
	DynamicRoles       DynamicRoles
	SkipSet            map[string]bool
	AliasPrefixes      []string
	JoinedStructFields []*Field
	GroupingKey        *FieldRef
	HasCollection      bool
}

// Build constructs the ResultMappingPlan for sel.
func Build(sel *ast.Select, reg *resolver.Registry, tr *types.Resolver, namespace string, d *diag.Diagnostics) *ResultMappingPlan {
	plan := &ResultMappingPlan{
		StatementName: sel.StmtName,
		SkipSet:       make(map[string]bool),
	}

	primaryAlias := strings.ToLower(firstNonEmpty(sel.FromTable, ""))

	dynFields := collectDynamicFields(sel, reg)

	// 1+2: inherit dynamic fields from referenced views, already folded
	// into dynFields by collectDynamicFields; partition by role.
	for _, df := range dynFields {
		f := &Field{
			PropertyName:    df.Name,
			HostType:        df.PropertyType,
			Nullable:        !df.NotNull,
			IsDynamic:       true,
			MappingType:     df.MappingType,
			CollectionKey:   df.CollectionKey,
			DefaultValue:    df.DefaultValue,
			ChildResultType: df.PropertyType,
			AliasPrefix:     df.AliasPrefix,
			SourceTable:     df.SourceTable,
		}
		switch df.MappingType {
		case ast.MappingEntity:
			plan.DynamicRoles.Entity = f
		case ast.MappingPerRow:
			plan.DynamicRoles.PerRow = append(plan.DynamicRoles.PerRow, f)
		case ast.MappingCollection:
			plan.DynamicRoles.Collection = append(plan.DynamicRoles.Collection, f)
			plan.HasCollection = true
		}
		if df.AliasPrefix != "" {
			plan.AliasPrefixes = append(plan.AliasPrefixes, df.AliasPrefix)
		}
		if !resolveSourceTable(sel, reg, df.SourceTable) {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindDynamicMapping,
				Code:     diag.ErrUnresolvedSourceTable,
				Message:  fmt.Sprintf("dynamic field %q: sourceTable %q is not resolvable in this SELECT", df.Name, df.SourceTable),
			})
		}
	}
	validateAliasPrefixFree(plan.AliasPrefixes, d)

	// 3: compute skip set from every collection dynamic field's alias path.
	for _, c := range plan.DynamicRoles.Collection {
		path := resolver.AliasPath(reg, sel, primaryAlias, c.SourceTable)
		plan.SkipSet[strings.ToLower(strings.Join(path, "."))] = true
		for _, fs := range sel.Fields {
			if strings.EqualFold(fs.TableName, c.SourceTable) {
				plan.SkipSet[strings.ToLower(c.SourceTable+"."+fs.OriginalColumnName)] = true
			}
		}
		if c.CollectionKey == "" {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindDynamicMapping,
				Code:     diag.ErrMissingCollectionKey,
				Message:  fmt.Sprintf("collection dynamic field %q is missing a field-level collectionKey", c.PropertyName),
			})
		}
		if sel.Annotations.CollectionKey == "" {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindDynamicMapping,
				Code:     diag.ErrMissingCollectionKey,
				Message:  "statement has a collection dynamic field but no statement-level collectionKey",
			})
		}
	}

	// regular fields: every projected column not in the skip set.
	for _, fs := range sel.Fields {
		path := strings.ToLower(fs.TableName + "." + fs.OriginalColumnName)
		isPrimary := strings.EqualFold(fs.TableName, sel.FromTable) || fs.TableName == ""

		resolvedTable := resolveAliasTarget(sel, fs.TableName)
		ov := fs.Annotations
		if ov == (ast.FieldAnnotationOverrides{}) && resolvedTable != "" {
			if inherited, ok := reg.Resolve(resolvedTable, fs.OriginalColumnName); ok {
				ov = inherited
			}
		}
		sqlType := fs.SqlType
		if sqlType == "" && resolvedTable != "" {
			sqlType = columnSQLType(reg, resolvedTable, fs.OriginalColumnName)
		}
		fs.SqlType = sqlType

		ft := tr.ResolveProjected(fs, ov, isPrimary, d)
		prov := fmt.Sprintf("%s %s.%s%s", sqlType, firstNonEmpty(fs.TableName, sel.FromTable), fs.OriginalColumnName, notNullSuffix(!ft.Nullable))
		f := &Field{
			PropertyName:   firstNonEmpty(ov.PropertyName, fs.FieldName),
			HostType:       ft.HostType,
			Nullable:       ft.Nullable,
			SqlType:        sqlType,
			TableAlias:     fs.TableName,
			OriginalColumn: fs.OriginalColumnName,
			NeedsAdapter:   ft.NeedsAdapter,
			Provenance:     prov,
		}
		if ft.NeedsAdapter {
			tr.RegisterAdapter(types.AdapterParamConfig{
				ParamName:           f.PropertyName,
				AdapterFunctionName: types.AdapterName(fs.OriginalColumnName, false),
				InputType:           "String",
				OutputType:          ft.HostType,
				Nullable:            ft.Nullable,
				Namespace:           namespace,
				Kind:                types.KindResultField,
			})
		}
		if plan.HasCollection {
			plan.JoinedStructFields = append(plan.JoinedStructFields, f)
		}
		if plan.SkipSet[path] {
			continue
		}
		plan.RegularFields = append(plan.RegularFields, f)
	}

	if sel.Annotations.CollectionKey != "" {
		for _, f := range plan.RegularFields {
			if strings.EqualFold(f.PropertyName, sel.Annotations.CollectionKey) || strings.EqualFold(f.OriginalColumn, sel.Annotations.CollectionKey) {
				plan.GroupingKey = &FieldRef{Name: f.PropertyName, HostType: f.HostType}
				break
			}
		}
		if plan.GroupingKey == nil && plan.HasCollection {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindDynamicMapping,
				Code:     diag.ErrMissingCollectionKey,
				Message:  fmt.Sprintf("collectionKey %q does not name a projected column", sel.Annotations.CollectionKey),
			})
		}
	}

	return plan
}

// BuildReturning constructs the ResultMappingPlan for an INSERT/UPDATE/
// DELETE statement's RETURNING clause: one regular field per returned
// column, resolved against the DML's own table the same way a
// primary-alias SELECT column resolves (RETURNING always reads back
// the affected table's own rows, never a joined one). "*" expands to
// every column the table declares, in declaration order.
func BuildReturning(dml *ast.DML, reg *resolver.Registry, tr *types.Resolver, namespace string, d *diag.Diagnostics) *ResultMappingPlan {
	plan := &ResultMappingPlan{StatementName: dml.StmtName, SkipSet: make(map[string]bool)}

	names := dml.ReturningColumns
	if len(names) == 1 && names[0] == "*" {
		names = nil
		if t, ok := reg.Table(dml.Table); ok {
			for _, c := range t.Columns {
				names = append(names, c.Name)
			}
		}
	}

	for _, col := range names {
		sqlType := columnSQLType(reg, dml.Table, col)
		fs := &ast.FieldSource{FieldName: col, TableName: dml.Table, OriginalColumnName: col, SqlType: sqlType}
		ov, _ := reg.Resolve(dml.Table, col)
		ft := tr.ResolveProjected(fs, ov, true, d)
		prov := fmt.Sprintf("%s %s.%s%s", sqlType, dml.Table, col, notNullSuffix(!ft.Nullable))
		f := &Field{
			PropertyName:   firstNonEmpty(ov.PropertyName, col),
			HostType:       ft.HostType,
			Nullable:       ft.Nullable,
			SqlType:        sqlType,
			TableAlias:     dml.Table,
			OriginalColumn: col,
			NeedsAdapter:   ft.NeedsAdapter,
			Provenance:     prov,
		}
		if ft.NeedsAdapter {
			tr.RegisterAdapter(types.AdapterParamConfig{
				ParamName:           f.PropertyName,
				AdapterFunctionName: types.AdapterName(col, false),
				InputType:           "String",
				OutputType:          ft.HostType,
				Nullable:            ft.Nullable,
				Namespace:           namespace,
				Kind:                types.KindResultField,
			})
		}
		plan.RegularFields = append(plan.RegularFields, f)
	}
	return plan
}

func notNullSuffix(notNull bool) string {
	if notNull {
		return " notNull"
	}
	return ""
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// collectDynamicFields merges the SELECT's own declared dynamic fields
// with every dynamic field inherited from a referenced view (step 2 of
// §4.G), adapting each inherited field's alias path to this SELECT.
func collectDynamicFields(sel *ast.Select, reg *resolver.Registry) []*ast.DynamicField {
	seen := make(map[string]bool)
	var out []*ast.DynamicField
	for _, df := range sel.DynamicFields {
		out = append(out, df)
		seen[strings.ToLower(df.Name)] = true
	}
	for alias, target := range sel.TableAliases {
		v, ok := reg.View(target)
		if !ok {
			continue
		}
		for _, df := range v.DynamicFields {
			if seen[strings.ToLower(df.Name)] {
				continue
			}
			adapted := *df
			adapted.AliasPath = append([]string{alias}, df.AliasPath...)
			out = append(out, &adapted)
			seen[strings.ToLower(df.Name)] = true
		}
	}
	return out
}

// resolveAliasTarget maps a projected field's table alias (or the bare
// table name if unaliased) to the underlying table/view name the
// resolver registry knows about.
func resolveAliasTarget(sel *ast.Select, alias string) string {
	if alias == "" {
		return sel.FromTable
	}
	if target, ok := sel.TableAliases[strings.ToLower(alias)]; ok {
		return target
	}
	return alias
}

// columnSQLType looks up a column's declared SQL type on the named
// table or view, so projected fields pick up the real type affinity
// even when the parser could not infer it from the query text alone.
func columnSQLType(reg *resolver.Registry, tableOrView, column string) string {
	if t, ok := reg.Table(tableOrView); ok {
		for _, c := range t.Columns {
			if strings.EqualFold(c.Name, column) {
				return c.SqlType
			}
		}
	}
	if v, ok := reg.View(tableOrView); ok {
		for _, f := range v.Fields {
			if strings.EqualFold(f.FieldName, column) {
				return f.SqlType
			}
		}
	}
	return ""
}

func resolveSourceTable(sel *ast.Select, reg *resolver.Registry, sourceTable string) bool {
	if sourceTable == "" {
		return false
	}
	if _, ok := sel.TableAliases[strings.ToLower(sourceTable)]; ok {
		return true
	}
	if strings.EqualFold(sourceTable, sel.FromTable) {
		return true
	}
	for _, j := range sel.JoinTables {
		if strings.EqualFold(j, sourceTable) {
			return true
		}
	}
	return false
}

func validateAliasPrefixFree(prefixes []string, d *diag.Diagnostics) {
	sorted := append([]string(nil), prefixes...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] && strings.HasPrefix(sorted[i], sorted[i-1]) {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindDynamicMapping,
				Code:     diag.ErrAmbiguousAliasPrefix,
				Message:  fmt.Sprintf("aliasPrefix %q is a prefix of %q, which is ambiguous", sorted[i-1], sorted[i]),
			})
		}
	}
}
