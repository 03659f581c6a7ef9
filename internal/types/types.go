// Package types maps SQLite column types to target-language types,
// decides column nullability, and derives/dedupes adapter function
// configurations.
package types

import (
	"fmt"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

// AdapterKind distinguishes the three places an adapter signature can
// be required.
type AdapterKind int

const (
	KindInput AdapterKind = iota
	KindResultField
	KindMapResult
)

// AdapterParamConfig describes one adapter function signature the
// emitter must expose on the database façade.
type AdapterParamConfig struct {
	ParamName           string
	AdapterFunctionName string
	InputType           string
	OutputType          string
	Nullable            bool
	ProviderNamespace   string
	Namespace           string // groups adapters for the emitter's per-namespace bucket
	Kind                AdapterKind
}

func (a AdapterParamConfig) dedupeKey() string {
	return a.Namespace + "\x00" + a.AdapterFunctionName + "\x00" + a.InputType + "\x00" + a.OutputType
}

// primitiveTable is the default, configurable SQL->host primitive
// mapping.
var primitiveTable = map[string]string{
	"INTEGER": "Long",
	"INT":     "Long",
	"REAL":    "Double",
	"FLOAT":   "Double",
	"TEXT":    "String",
	"VARCHAR": "String",
	"BLOB":    "ByteArray",
	"NUMERIC": "String",
	"BOOLEAN": "Boolean",
	"BOOL":    "Boolean",
}

// Resolver decides host types, nullability, and adapter requirements
// for every projected/bound column, deduplicating adapter signatures
// as it goes.
type Resolver struct {
	adapters map[string]AdapterParamConfig
	order    []string
}

// NewResolver creates an empty type Resolver.
func NewResolver() *Resolver {
	return &Resolver{adapters: make(map[string]AdapterParamConfig)}
}

// HostPrimitive maps a SQLite type affinity to its default host
// primitive type. Returns "", false when sqlType is not recognized and
// a propertyType override is therefore required.
func HostPrimitive(sqlType string) (string, bool) {
	t, ok := primitiveTable[strings.ToUpper(strings.TrimSpace(sqlType))]
	return t, ok
}

// FieldType is the resolved type information for one column or
// projected field: its host type, nullability, and whether it needs an
// adapter.
type FieldType struct {
	HostType    string
	Nullable    bool
	NeedsAdapter bool
}

// ResolveColumn resolves the host type and nullability of a DDL
// column, honoring the annotation-chain overrides of ov (which may
// come from the column itself or an upstream view/table via the
// resolver package's precedence chain).
func (r *Resolver) ResolveColumn(col *ast.Column, ov ast.FieldAnnotationOverrides, d *diag.Diagnostics, pos token.Position) FieldType {
	needsAdapter := ov.Adapter
	hostType := ov.PropertyType
	if hostType == "" {
		prim, ok := HostPrimitive(col.SqlType)
		if !ok {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindTypeResolution,
				Code:     diag.ErrNoTypeMapping,
				Message:  fmt.Sprintf("column %q has SQL type %q with no primitive mapping and no propertyType annotation", col.Name, col.SqlType),
			})
			return FieldType{}
		}
		hostType = prim
	} else if _, builtin := reversePrimitive()[hostType]; !builtin {
		needsAdapter = true
	}

	nullable := !col.NotNull
	if ov.NotNullSet {
		nullable = !ov.NotNull
	}
	if ov.NullableSet {
		nullable = ov.Nullable
	}

	return FieldType{HostType: hostType, Nullable: nullable, NeedsAdapter: needsAdapter}
}

// ResolveProjected resolves the host type/nullability for a SELECT's
// projected FieldSource; joined/aliased columns from a non-primary
// table default to nullable widening unless overridden.
func (r *Resolver) ResolveProjected(fs *ast.FieldSource, ov ast.FieldAnnotationOverrides, isPrimaryAlias bool, d *diag.Diagnostics) FieldType {
	needsAdapter := ov.Adapter
	hostType := ov.PropertyType
	if hostType == "" {
		sqlType := fs.SqlType
		if sqlType == "" {
			hostType = "String"
		} else if prim, ok := HostPrimitive(sqlType); ok {
			hostType = prim
		} else {
			d.Add(diag.Diagnostic{
				Severity: diag.Error,
				Kind:     diag.KindTypeResolution,
				Code:     diag.ErrNoTypeMapping,
				Message:  fmt.Sprintf("field %q has no primitive mapping and no propertyType annotation", fs.FieldName),
			})
			return FieldType{}
		}
	} else if _, builtin := reversePrimitive()[hostType]; !builtin {
		needsAdapter = true
	}

	nullable := fs.Expression != "" // function/expression results default nullable
	if !isPrimaryAlias {
		nullable = true
	}
	if ov.NotNullSet {
		nullable = !ov.NotNull
		if ov.NotNull && !isPrimaryAlias && ov.SourceTable == "" {
			nullable = true // joined alias keeps runtime null-check unless bound to the primary
		}
	}
	if ov.NullableSet {
		nullable = ov.Nullable
	}

	return FieldType{HostType: hostType, Nullable: nullable, NeedsAdapter: needsAdapter}
}

func reversePrimitive() map[string]bool {
	out := make(map[string]bool, len(primitiveTable))
	for _, v := range primitiveTable {
		out[v] = true
	}
	return out
}

// AdapterName derives the adapter function name for a column in the
// given direction. Names are derived from the column name so that
// identical columns across SELECTs share one adapter entry even when
// propertyName differs.
func AdapterName(columnName string, input bool) string {
	pascal := toPascal(columnName)
	if input {
		return toCamel(columnName) + "ToSqlValue"
	}
	return "sqlValueTo" + pascal
}

// RegisterAdapter records an adapter requirement, collapsing
// duplicates keyed by (namespace, adapterFunctionName, inputType,
// outputType).
func (r *Resolver) RegisterAdapter(cfg AdapterParamConfig) {
	key := cfg.dedupeKey()
	if _, ok := r.adapters[key]; ok {
		return
	}
	r.adapters[key] = cfg
	r.order = append(r.order, key)
}

// Adapters returns every registered adapter in first-registration
// order.
func (r *Resolver) Adapters() []AdapterParamConfig {
	out := make([]AdapterParamConfig, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.adapters[k])
	}
	return out
}

func toPascal(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' })
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

func toCamel(s string) string {
	p := toPascal(s)
	if p == "" {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}
