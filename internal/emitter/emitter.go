// Package emitter produces the generated source text: per-namespace
// parameter/result structures, query runners, shared-result buckets,
// adapter groups, the migration class, and the top-level database
// façade. Every emitted constructor argument carries a provenance
// comment tracing it back to its SQL origin.
package emitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/hostcontract"
	"github.com/sqlitenow/sqlitenow-go/internal/planner"
	"github.com/sqlitenow/sqlitenow-go/internal/types"
)

// Output is one emitted translation unit.
type Output struct {
	Path    string
	Content string
}

// ParamField is one resolved bind parameter for a statement's Params
// structure.
type ParamField struct {
	Name         string
	HostType     string
	Nullable     bool
	IsCollection bool
	CastType     string
}

// QueryUnit is everything the emitter needs to know about one
// statement to produce its generated members.
type QueryUnit struct {
	Name            string // file stem; becomes the runner's member name
	Namespace       string
	Kind            string // "select", "insert", "update", "delete"
	RewrittenSQL    string
	Params          []ParamField
	Plan            *planner.ResultMappingPlan // nil for a non-RETURNING execute
	HasReturning    bool
	Annotations     ast.StatementAnnotationOverrides
	AffectedTables  []string
}

type sharedEntry struct {
	name   string
	shape  string
	fields []*planner.Field
}

// Emitter accumulates shared-result and adapter state across every
// namespace of one database build; one Emitter belongs to one
// generator run.
type Emitter struct {
	packagePrefix string
	shared        map[string]*sharedEntry
	sharedOrder   []string
}

// New creates an Emitter for one database build.
func New(packagePrefix string) *Emitter {
	return &Emitter{packagePrefix: packagePrefix, shared: make(map[string]*sharedEntry)}
}

// EmitNamespace produces the translation unit for one namespace: a
// router plus every statement's Params/Result/runner. Shared results
// are registered on the Emitter as encountered; their definitions are
// only actually written out by EmitSharedResults, once every namespace
// has been processed, so declaration order is by first file path then
// statement name as required.
func (e *Emitter) EmitNamespace(ns string, units []QueryUnit, tr *types.Resolver, d *diag.Diagnostics) Output {
	var b strings.Builder
	pkg := e.packagePrefix + "." + ns
	fmt.Fprintf(&b, "package %s\n\n", pkg)

	if needsJsonArrayEncoder(units) {
		b.WriteString(jsonArrayEncoderSource)
	}

	routerName := toPascal(ns) + "Queries"
	fmt.Fprintf(&b, "class %s(private val conn: Connection, private val adapters: %sAdapters) {\n", routerName, toPascal(ns))

	for _, u := range units {
		e.emitStatement(&b, u, tr, d)
	}
	b.WriteString("}\n")

	var adapters []types.AdapterParamConfig
	for _, a := range tr.Adapters() {
		if a.Namespace == ns {
			adapters = append(adapters, a)
		}
	}
	if len(adapters) > 0 {
		fmt.Fprintf(&b, "\nclass %sAdapters(\n", toPascal(ns))
		for _, a := range adapters {
			fmt.Fprintf(&b, "    val %s: (%s) -> %s,\n", a.AdapterFunctionName, a.InputType, a.OutputType)
		}
		b.WriteString(")\n")
	}

	return Output{Path: strings.ReplaceAll(pkg, ".", "/") + "/" + routerName + ".kt", Content: b.String()}
}

func (e *Emitter) emitStatement(b *strings.Builder, u QueryUnit, tr *types.Resolver, d *diag.Diagnostics) {
	stmtPascal := toPascal(u.Name)

	fmt.Fprintf(b, "\n    object %s {\n", stmtPascal)
	fmt.Fprintf(b, "        const val sql: String = %q\n", u.RewrittenSQL)

	if len(u.Params) > 0 {
		b.WriteString("        data class Params(\n")
		for _, p := range u.Params {
			hostType := p.HostType
			if p.IsCollection {
				hostType = "Collection<" + hostType + ">"
			}
			nullSuffix := ""
			if p.Nullable {
				nullSuffix = "?"
			}
			fmt.Fprintf(b, "            val %s: %s%s,\n", p.Name, hostType, nullSuffix)
		}
		b.WriteString("        )\n")
	}

	if u.Plan != nil {
		e.emitResult(b, u, d)
	}

	e.emitRunner(b, u)
	b.WriteString("    }\n")
}

func (e *Emitter) emitResult(b *strings.Builder, u QueryUnit, d *diag.Diagnostics) {
	plan := u.Plan
	resultName := resultTypeName(u, plan)

	if plan.HasCollection {
		fmt.Fprintf(b, "        data class %s_Joined(\n", stmtPascalOf(u.Name))
		for _, f := range plan.JoinedStructFields {
			emitField(b, f)
		}
		b.WriteString("        )\n")
	}

	if name := u.Annotations.EffectiveQueryResult(); name != "" {
		e.registerShared(name, plan, d)
		if u.Annotations.QueryResult == "" && u.Annotations.SharedResult != "" {
			d.AddWarning(diag.Range{}, diag.KindAnnotation, diag.ErrIllegalCombination, fmt.Sprintf("statement %q uses legacy sharedResult; queryResult takes precedence when both are present", u.Name))
		}
		if u.Annotations.QueryResult != "" && u.Annotations.SharedResult != "" {
			d.AddWarning(diag.Range{}, diag.KindAnnotation, diag.ErrIllegalCombination, fmt.Sprintf("statement %q sets both queryResult and sharedResult; legacy sharedResult %q is ignored", u.Name, u.Annotations.SharedResult))
		}
		return
	}

	fmt.Fprintf(b, "        data class %s(\n", resultName)
	for _, f := range plan.RegularFields {
		emitField(b, f)
	}
	if plan.DynamicRoles.Entity != nil {
		emitDynamicField(b, plan.DynamicRoles.Entity)
	}
	for _, f := range plan.DynamicRoles.PerRow {
		emitDynamicField(b, f)
	}
	for _, f := range plan.DynamicRoles.Collection {
		emitDynamicField(b, f)
	}
	b.WriteString("        )\n")
}

func emitField(b *strings.Builder, f *planner.Field) {
	nullSuffix := ""
	if f.Nullable {
		nullSuffix = "?"
	}
	fmt.Fprintf(b, "            val %s: %s%s, // %s\n", f.PropertyName, f.HostType, nullSuffix, f.Provenance)
}

func emitDynamicField(b *strings.Builder, f *planner.Field) {
	hostType := f.ChildResultType
	switch f.MappingType {
	case ast.MappingCollection:
		hostType = "List<" + hostType + ">"
	case ast.MappingEntity, ast.MappingPerRow:
		hostType = hostType + "?"
	}
	fmt.Fprintf(b, "            val %s: %s, // dynamic field, mappingType=%s, sourceTable=%s\n", f.PropertyName, hostType, f.MappingType, f.SourceTable)
}

func (e *Emitter) registerShared(name string, plan *planner.ResultMappingPlan, d *diag.Diagnostics) {
	shape := shapeOf(plan)
	if existing, ok := e.shared[name]; ok {
		if existing.shape != shape {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindSharedResultShape,
				Code:     diag.ErrSharedResultMismatch,
				Message:  fmt.Sprintf("queryResult %q has inconsistent shape across statements", name),
			})
		}
		return
	}
	e.shared[name] = &sharedEntry{name: name, shape: shape, fields: plan.RegularFields}
	e.sharedOrder = append(e.sharedOrder, name)
}

func shapeOf(plan *planner.ResultMappingPlan) string {
	var parts []string
	for _, f := range plan.RegularFields {
		parts = append(parts, fmt.Sprintf("%s:%s:%v", f.PropertyName, f.HostType, f.Nullable))
	}
	return strings.Join(parts, "|")
}

// EmitSharedResults produces the single bucket translation unit
// containing every distinct queryResult name, in the deterministic
// order names were first registered (first file path then statement
// name, by construction of the generator's walk order).
func (e *Emitter) EmitSharedResults() Output {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s.shared\n\n", e.packagePrefix)
	for _, name := range e.sharedOrder {
		entry := e.shared[name]
		fmt.Fprintf(&b, "data class %s(\n", toPascal(name))
		for _, f := range entry.fields {
			emitField(&b, f)
		}
		b.WriteString(")\n\n")
	}
	return Output{Path: strings.ReplaceAll(e.packagePrefix, ".", "/") + "/shared/SharedResults.kt", Content: b.String()}
}

// jsonArrayEncoderSource is the support function an `IN :param`
// collection parameter's bind call relies on: sqlparser.RewriteSQL
// rewrites such a placeholder to `(SELECT value FROM json_each(?))`,
// so the bound value must already be a JSON array text.
const jsonArrayEncoderSource = `private fun encodeJsonArray(values: Collection<*>): String =
    values.joinToString(prefix = "[", postfix = "]") { value ->
        when (value) {
            is Number -> value.toString()
            is Boolean -> value.toString()
            else -> "\"" + value.toString().replace("\"", "\\\"") + "\""
        }
    }

`

func needsJsonArrayEncoder(units []QueryUnit) bool {
	for _, u := range units {
		for _, p := range u.Params {
			if p.IsCollection {
				return true
			}
		}
	}
	return false
}

func (e *Emitter) emitRunner(b *strings.Builder, u QueryUnit) {
	switch u.Kind {
	case "select":
		e.emitReadHelpers(b, u)
		resultType := resultTypeNameForRunner(u)
		fmt.Fprintf(b, "        fun asList(params: Params?): List<%s> {\n", resultType)
		emitPreparedLoop(b, u, "            ", readCallForRunner(u))
		b.WriteString("        }\n")
		fmt.Fprintf(b, "        fun asOne(params: Params?): %s = asList(params).single()\n", resultType)
		fmt.Fprintf(b, "        fun asOneOrNull(params: Params?): %s? = asList(params).singleOrNull()\n", resultType)
		fmt.Fprintf(b, "        fun asFlow(params: Params?): Flow<List<%s>> = %s(conn, %s, listOf(%s))\n",
			resultType, hostcontract.MethodReactiveFlow, "sql", joinQuoted(u.AffectedTables))
	case "insert", "update", "delete":
		if u.HasReturning {
			e.emitReadHelpers(b, u)
			resultType := resultTypeNameForRunner(u)
			fmt.Fprintf(b, "        fun list(params: Params): List<%s> {\n", resultType)
			emitPreparedLoop(b, u, "            ", readCallForRunner(u))
			b.WriteString("        }\n")
			fmt.Fprintf(b, "        fun one(params: Params): %s = list(params).single()\n", resultType)
			fmt.Fprintf(b, "        fun oneOrNull(params: Params): %s? = list(params).singleOrNull()\n", resultType)
			fmt.Fprintf(b, "        operator fun invoke(params: Params): List<%s> = list(params)\n", resultType)
		} else {
			b.WriteString("        operator fun invoke(params: Params) {\n")
			fmt.Fprintf(b, "            val stmt = conn.%s(sql)\n", hostcontract.MethodPrepare)
			emitBindParams(b, "            ", u.Params, false)
			fmt.Fprintf(b, "            stmt.%s()\n", hostcontract.MethodStep)
			fmt.Fprintf(b, "            stmt.%s()\n", hostcontract.MethodClose)
			fmt.Fprintf(b, "            conn.%s(setOf(%s))\n", hostcontract.MethodNotifyTablesChanged, joinQuoted(u.AffectedTables))
			b.WriteString("        }\n")
		}
	}
}

// emitReadHelpers emits the private row-mapping function(s) a select or
// RETURNING runner needs before its public entry points: a flat row
// reader for the statement's own Result (or its _Joined intermediate,
// when the plan groups child rows into a collection), plus the
// grouping function that folds _Joined rows into the final Result when
// a collection dynamic field is present.
func (e *Emitter) emitReadHelpers(b *strings.Builder, u QueryUnit) {
	plan := u.Plan
	if plan == nil {
		return
	}
	if plan.HasCollection {
		joinedType := stmtPascalOf(u.Name) + "_Joined"
		emitReadRowFunc(b, readRowFuncName(u), joinedType, plan.JoinedStructFields, nil)
		emitGroupFunc(b, groupFuncName(u), joinedType, resultTypeNameForRunner(u), plan)
		return
	}
	emitReadRowFunc(b, readRowFuncName(u), resultTypeNameForRunner(u), plan.RegularFields, &plan.DynamicRoles)
}

func readRowFuncName(u QueryUnit) string { return "read" + stmtPascalOf(u.Name) + "Row" }
func groupFuncName(u QueryUnit) string   { return "group" + stmtPascalOf(u.Name) + "Rows" }

// readCallForRunner names the function asList/list calls per row: the
// grouping function's row argument set, when the result is grouped
// from joined rows, otherwise the flat row reader directly.
func readCallForRunner(u QueryUnit) string {
	if u.Plan != nil && u.Plan.HasCollection {
		return groupFuncName(u)
	}
	return readRowFuncName(u)
}

// emitPreparedLoop emits the shared prepare/bind/step/read/close
// sequence used by every select and RETURNING runner entry point.
// readFn is applied either per row (flat case) or once to the whole
// collected row list (grouped case); emitPreparedLoop can't tell these
// apart from readFn's name alone, so both forms share the same
// "accumulate rows, then transform" shape: a grouping readFn happens
// to accept the full row slice instead of a single row, which is why
// the grouped path reads every row through the flat reader first.
func emitPreparedLoop(b *strings.Builder, u QueryUnit, indent string, readFn string) {
	plan := u.Plan
	grouped := plan != nil && plan.HasCollection
	rowType := resultTypeNameForRunner(u)
	if grouped {
		rowType = stmtPascalOf(u.Name) + "_Joined"
	}
	rowReader := readFn
	if grouped {
		rowReader = readRowFuncName(u)
	}
	fmt.Fprintf(b, "%sval stmt = conn.%s(sql)\n", indent, hostcontract.MethodPrepare)
	emitBindParams(b, indent, u.Params, u.Kind == "select")
	fmt.Fprintf(b, "%sval rows = mutableListOf<%s>()\n", indent, rowType)
	fmt.Fprintf(b, "%swhile (stmt.%s()) {\n", indent, hostcontract.MethodStep)
	fmt.Fprintf(b, "%s    rows.add(%s(stmt))\n", indent, rowReader)
	fmt.Fprintf(b, "%s}\n", indent)
	fmt.Fprintf(b, "%sstmt.%s()\n", indent, hostcontract.MethodClose)
	if grouped {
		fmt.Fprintf(b, "%sreturn %s(rows)\n", indent, readFn)
	} else {
		fmt.Fprintf(b, "%sreturn rows\n", indent)
	}
}

// emitBindParams emits one hostcontract bind call per declared
// parameter, in declaration order, against the statement's positional
// placeholders (the same order sqlparser.RewriteSQL substituted `?`
// for `:name`). optionalParams wraps the whole block in a
// `params?.let { ... }` guard for the nullable Params? of a select
// runner; RETURNING/execute runners take a non-null Params and bind
// unconditionally.
func emitBindParams(b *strings.Builder, indent string, params []ParamField, optionalParams bool) {
	if len(params) == 0 {
		return
	}
	bodyIndent := indent
	if optionalParams {
		fmt.Fprintf(b, "%sparams?.let { params ->\n", indent)
		bodyIndent = indent + "    "
	}
	for i, p := range params {
		idx := i + 1
		access := "params." + p.Name
		switch {
		case p.IsCollection:
			fmt.Fprintf(b, "%sstmt.%s(%d, encodeJsonArray(%s))\n", bodyIndent, hostcontract.MethodBindText, idx, access)
		case p.Nullable:
			fmt.Fprintf(b, "%sif (%s == null) stmt.%s(%d) else stmt.%s(%d, %s)\n",
				bodyIndent, access, hostcontract.MethodBindNull, idx, bindMethodFor(p.HostType), idx, bindValueExpr(p.HostType, access))
		default:
			fmt.Fprintf(b, "%sstmt.%s(%d, %s)\n", bodyIndent, bindMethodFor(p.HostType), idx, bindValueExpr(p.HostType, access))
		}
	}
	if optionalParams {
		fmt.Fprintf(b, "%s}\n", indent)
	}
}

func bindMethodFor(hostType string) string {
	switch hostType {
	case "Long":
		return hostcontract.MethodBindLong
	case "Int", "Boolean":
		return hostcontract.MethodBindInt
	case "Double":
		return hostcontract.MethodBindDouble
	case "ByteArray":
		return hostcontract.MethodBindBlob
	default:
		return hostcontract.MethodBindText
	}
}

func bindValueExpr(hostType, access string) string {
	if hostType == "Boolean" {
		return fmt.Sprintf("if (%s) 1 else 0", access)
	}
	return access
}

func getMethodFor(hostType string) string {
	switch hostType {
	case "Long":
		return hostcontract.MethodGetLong
	case "Int", "Boolean":
		return hostcontract.MethodGetInt
	case "Double":
		return hostcontract.MethodGetDouble
	case "ByteArray":
		return hostcontract.MethodGetBlob
	default:
		return hostcontract.MethodGetText
	}
}

// readValueExprAt builds the expression that reads column idx (0-based,
// matching its position in the projected column list) off a prepared
// statement into f's host type, applying an adapter call when the
// column needs one and an isNull guard when it's nullable.
func readValueExprAt(f *planner.Field, idx int) string {
	var raw string
	switch {
	case f.NeedsAdapter:
		raw = fmt.Sprintf("adapters.%s(stmt.%s(%d))", types.AdapterName(f.OriginalColumn, false), hostcontract.MethodGetText, idx)
	case f.HostType == "Boolean":
		raw = fmt.Sprintf("stmt.%s(%d) != 0", hostcontract.MethodGetInt, idx)
	default:
		raw = fmt.Sprintf("stmt.%s(%d)", getMethodFor(f.HostType), idx)
	}
	if f.Nullable {
		return fmt.Sprintf("if (stmt.%s(%d)) null else %s", hostcontract.MethodIsNull, idx, raw)
	}
	return raw
}

// emitReadRowFunc emits a private row-mapping function: typeName's
// constructor filled in from columns by ordinal position, plus one
// nested constructor call per entity/perRow dynamic field (when roles
// is non-nil) built from the same columns' alias-matched subset —
// there is no separate sub-query for a one-to-one dynamic mapping, it
// reads straight out of the flattened row like any other column.
func emitReadRowFunc(b *strings.Builder, fnName, typeName string, columns []*planner.Field, roles *planner.DynamicRoles) {
	fmt.Fprintf(b, "        private fun %s(stmt: Statement): %s {\n", fnName, typeName)
	fmt.Fprintf(b, "            return %s(\n", typeName)
	for i, f := range columns {
		fmt.Fprintf(b, "                %s = %s,\n", f.PropertyName, readValueExprAt(f, i))
	}
	if roles != nil {
		idxOf := make(map[*planner.Field]int, len(columns))
		for i, f := range columns {
			idxOf[f] = i
		}
		if roles.Entity != nil {
			fmt.Fprintf(b, "                %s = %s,\n", roles.Entity.PropertyName, nestedCtorFromStmt(roles.Entity, columns, idxOf))
		}
		for _, f := range roles.PerRow {
			fmt.Fprintf(b, "                %s = %s,\n", f.PropertyName, nestedCtorFromStmt(f, columns, idxOf))
		}
	}
	b.WriteString("            )\n")
	b.WriteString("        }\n")
}

// emitGroupFunc emits the private function that turns the flat
// `List<{joinedType}>` produced by the step loop into the final
// `List<{resultType}>`: grouped by the statement's collectionKey,
// preserving the order each key was first seen, with every collection
// dynamic field's child rows concatenated in first-appearance order
// and deduplicated by its own collectionKey.
func emitGroupFunc(b *strings.Builder, fnName, joinedType, resultType string, plan *planner.ResultMappingPlan) {
	keyName := "id"
	if plan.GroupingKey != nil {
		keyName = plan.GroupingKey.Name
	}
	fmt.Fprintf(b, "        private fun %s(rows: List<%s>): List<%s> {\n", fnName, joinedType, resultType)
	b.WriteString("            val order = mutableListOf<Any?>()\n")
	fmt.Fprintf(b, "            val groups = mutableMapOf<Any?, MutableList<%s>>()\n", joinedType)
	b.WriteString("            for (row in rows) {\n")
	fmt.Fprintf(b, "                val key = row.%s\n", keyName)
	b.WriteString("                val bucket = groups.getOrPut(key) { order.add(key); mutableListOf() }\n")
	b.WriteString("                bucket.add(row)\n")
	b.WriteString("            }\n")
	b.WriteString("            return order.map { key ->\n")
	b.WriteString("                val members = groups.getValue(key)\n")
	b.WriteString("                val first = members.first()\n")
	fmt.Fprintf(b, "                %s(\n", resultType)
	for _, f := range plan.RegularFields {
		fmt.Fprintf(b, "                    %s = first.%s,\n", f.PropertyName, f.PropertyName)
	}
	if e := plan.DynamicRoles.Entity; e != nil {
		fmt.Fprintf(b, "                    %s = %s,\n", e.PropertyName, nestedCtorFromRow(e, plan.JoinedStructFields, "first"))
	}
	for _, f := range plan.DynamicRoles.PerRow {
		fmt.Fprintf(b, "                    %s = %s,\n", f.PropertyName, nestedCtorFromRow(f, plan.JoinedStructFields, "first"))
	}
	for _, c := range plan.DynamicRoles.Collection {
		nested := fieldsForAlias(plan.JoinedStructFields, c.SourceTable)
		keyField := collectionKeyField(nested, c.CollectionKey)
		fmt.Fprintf(b, "                    %s = members.map { member -> %s }.distinctBy { it.%s },\n",
			c.PropertyName, nestedCtorFromRow(c, plan.JoinedStructFields, "member"), keyField)
	}
	b.WriteString("                )\n")
	b.WriteString("            }\n")
	b.WriteString("        }\n")
}

func fieldsForAlias(fields []*planner.Field, alias string) []*planner.Field {
	var out []*planner.Field
	for _, f := range fields {
		if strings.EqualFold(f.TableAlias, alias) {
			out = append(out, f)
		}
	}
	return out
}

func collectionKeyField(nested []*planner.Field, collectionKey string) string {
	for _, f := range nested {
		if strings.EqualFold(f.PropertyName, collectionKey) || strings.EqualFold(f.OriginalColumn, collectionKey) {
			return f.PropertyName
		}
	}
	if len(nested) > 0 {
		return nested[0].PropertyName
	}
	return collectionKey
}

// nestedCtorFromStmt builds a child-entity constructor call reading
// straight off the prepared statement, for the non-collection path
// where there is no intermediate joined row.
func nestedCtorFromStmt(f *planner.Field, columns []*planner.Field, idxOf map[*planner.Field]int) string {
	nested := fieldsForAlias(columns, f.SourceTable)
	var args []string
	for _, nf := range nested {
		args = append(args, fmt.Sprintf("%s = %s", nf.PropertyName, readValueExprAt(nf, idxOf[nf])))
	}
	return fmt.Sprintf("%s(%s)", f.ChildResultType, strings.Join(args, ", "))
}

// nestedCtorFromRow builds a child-entity constructor call reading
// fields off an already-materialized joined row variable (varName).
func nestedCtorFromRow(f *planner.Field, joined []*planner.Field, varName string) string {
	nested := fieldsForAlias(joined, f.SourceTable)
	var args []string
	for _, nf := range nested {
		args = append(args, fmt.Sprintf("%s = %s.%s", nf.PropertyName, varName, nf.PropertyName))
	}
	return fmt.Sprintf("%s(%s)", f.ChildResultType, strings.Join(args, ", "))
}

func resultTypeName(u QueryUnit, plan *planner.ResultMappingPlan) string {
	if name := u.Annotations.EffectiveQueryResult(); name != "" {
		return toPascal(name)
	}
	return stmtPascalOf(u.Name) + "_Result"
}

func resultTypeNameForRunner(u QueryUnit) string {
	return resultTypeName(u, u.Plan)
}

func joinQuoted(tables []string) string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, fmt.Sprintf("%q", t))
	}
	return strings.Join(out, ", ")
}

// EmitMigrationClass produces the migration applier class. Migration
// steps are emitted in ascending version order whatever the order of
// migrationVersions.
func EmitMigrationClass(packagePrefix string, schemaSQL, initSQL []string, migrationVersions []int) Output {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", packagePrefix)
	b.WriteString("class DatabaseMigrations {\n")
	fmt.Fprintf(&b, "    fun %s(conn: Connection, currentVersion: Int): Int {\n", hostcontract.MethodApplyMigration)
	b.WriteString("        if (currentVersion == 0) {\n")
	for range schemaSQL {
		b.WriteString("            // execute schema/ statement\n")
	}
	for range initSQL {
		b.WriteString("            // execute init/ statement\n")
	}
	b.WriteString("        }\n")
	b.WriteString("        var version = maxOf(currentVersion, 0)\n")
	for _, v := range sortedInts(migrationVersions) {
		fmt.Fprintf(&b, "        if (version < %d) { /* run migration %d */ version = %d }\n", v, v, v)
	}
	b.WriteString("        return version\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return Output{Path: strings.ReplaceAll(packagePrefix, ".", "/") + "/DatabaseMigrations.kt", Content: b.String()}
}

// EmitDatabaseFacade produces the top-level database façade that wires
// a connection, the migration class, and one adapter group per
// namespace.
func EmitDatabaseFacade(packagePrefix string, namespaces []string) Output {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", packagePrefix)
	b.WriteString("class Database(private val conn: Connection, private val migrations: DatabaseMigrations) {\n")
	for _, ns := range namespaces {
		fmt.Fprintf(&b, "    val %s: %sQueries by lazy { %sQueries(conn, %sAdapters()) }\n", ns, toPascal(ns), toPascal(ns), toPascal(ns))
	}
	b.WriteString("}\n")
	return Output{Path: strings.ReplaceAll(packagePrefix, ".", "/") + "/Database.kt", Content: b.String()}
}

func sortedInts(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}

func stmtPascalOf(name string) string { return toPascal(name) }

func toPascal(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}
