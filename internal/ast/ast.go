// Package ast defines the statement model produced by the SQL parser:
// the tagged union of CREATE TABLE / CREATE VIEW / SELECT / INSERT /
// UPDATE / DELETE statements, their columns, and the annotation
// overrides attached to them.
package ast

import "github.com/sqlitenow/sqlitenow-go/internal/token"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node()
	Pos() token.Position
	End() token.Position
}

// Statement is the interface implemented by every top-level statement
// variant: CreateTable, CreateView, Select, Insert, Update, Delete.
type Statement interface {
	Node
	stmt()
	StatementName() string
}

// MappingType enumerates the dynamic-field mapping strategies.
type MappingType string

const (
	MappingEntity     MappingType = "entity"
	MappingPerRow     MappingType = "perRow"
	MappingCollection MappingType = "collection"
)

// AssociatedColumnKind distinguishes a plain bound column from one
// bound through an IN (...) collection expansion.
type AssociatedColumnKind int

const (
	AssocDefault AssociatedColumnKind = iota
	AssocCollection
)

// AssociatedColumn names the column a named parameter binds to, and
// whether that binding is a plain scalar or an IN-list collection.
type AssociatedColumn struct {
	ColumnName string
	Kind       AssociatedColumnKind
}

// FieldAnnotationOverrides is the typed record of every recognized
// field-level annotation key. Every field is optional; zero value means
// "not specified", never "false"/"empty" as a meaningful override.
type FieldAnnotationOverrides struct {
	Field          string
	PropertyName   string
	PropertyType   string
	Adapter        bool
	NotNull        bool
	NotNullSet     bool
	Nullable       bool
	NullableSet    bool
	DefaultValue   string
	IsDynamicField bool
	MappingType    MappingType
	SourceTable    string
	AliasPrefix    string
	CollectionKey  string
}

// StatementAnnotationOverrides is the typed record of statement-level
// annotation keys recognized on a SELECT.
type StatementAnnotationOverrides struct {
	QueryResult           string
	SharedResult          string // legacy alias for QueryResult
	Implements            string
	ExcludeOverrideFields []string
	Name                  string
	PropertyNameGenerator string
	CollectionKey         string
	MapTo                 string
	Debug                 bool
}

// EffectiveQueryResult returns QueryResult if set, otherwise falls back
// to the legacy SharedResult alias. Callers that need to know whether a
// fallback happened (to emit a warning diagnostic) should check
// QueryResult == "" && SharedResult != "" themselves before calling.
func (s StatementAnnotationOverrides) EffectiveQueryResult() string {
	if s.QueryResult != "" {
		return s.QueryResult
	}
	return s.SharedResult
}

// Column is a single CREATE TABLE column definition.
type Column struct {
	Name          string
	SqlType       string
	NotNull       bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Annotations   FieldAnnotationOverrides
	pos, end      token.Position
}

func (c *Column) node()             {}
func (c *Column) Pos() token.Position { return c.pos }
func (c *Column) End() token.Position { return c.end }

// TableAnnotations holds statement-level annotations recognized on a
// CREATE TABLE (currently just a subset of StatementAnnotationOverrides
// that makes sense for DDL, kept as its own type so table annotation
// handling can diverge from SELECT annotation handling over time).
type TableAnnotations struct {
	Name string
}

// ViewAnnotations holds statement-level annotations recognized on a
// CREATE VIEW.
type ViewAnnotations struct {
	Name          string
	CollectionKey string
}

// FieldSource describes the provenance of one projected SELECT column:
// which alias/table it came from, its original column name, and its
// resolved SQL type once schema lookup has run.
type FieldSource struct {
	FieldName         string // alias, or column name when unaliased
	TableName         string // alias or view/table name
	OriginalColumnName string
	SqlType           string
	Expression        string // non-empty when the projected item is an expression, not a bare column
	Annotations       FieldAnnotationOverrides
}

// DynamicField is a field synthesized from annotations rather than
// projected directly from SQL. It appears on CreateView (inherited by
// consuming SELECTs) and on Select (declared inline via comment
// annotations).
type DynamicField struct {
	Name          string
	MappingType   MappingType
	PropertyType  string
	SourceTable   string
	AliasPrefix   string
	CollectionKey string
	DefaultValue  string
	NotNull       bool
	AliasPath     []string
}

// ViewField is a single projected column of a CREATE VIEW, carrying the
// same provenance data as a FieldSource plus the view's own annotation
// overrides for that field.
type ViewField = FieldSource

// CreateTable is the `CreateTable { name, sql, columns, annotations }`
// statement variant.
type CreateTable struct {
	Name        string
	Sql         string
	Columns     []*Column
	Annotations TableAnnotations
	pos, end    token.Position
}

func (c *CreateTable) node()               {}
func (c *CreateTable) stmt()                {}
func (c *CreateTable) Pos() token.Position  { return c.pos }
func (c *CreateTable) End() token.Position  { return c.end }
func (c *CreateTable) StatementName() string { return c.Name }

// CreateView is the `CreateView { name, sql, select, column_names?,
// annotations, fields, dynamic_fields }` statement variant.
type CreateView struct {
	Name          string
	Sql           string
	Select        *Select
	ColumnNames   []string
	Annotations   ViewAnnotations
	Fields        []*ViewField
	DynamicFields []*DynamicField
	pos, end      token.Position
}

func (c *CreateView) node()               {}
func (c *CreateView) stmt()                {}
func (c *CreateView) Pos() token.Position  { return c.pos }
func (c *CreateView) End() token.Position  { return c.end }
func (c *CreateView) StatementName() string { return c.Name }

// Select is the `Select { sql, from_table?, table_aliases, join_tables,
// fields, named_parameters, parameter_cast_types, with_selects }`
// statement variant.
type Select struct {
	StmtName            string // file stem, the default statement identifier
	Sql                 string
	FromTable           string
	TableAliases        map[string]string // alias -> table or view name
	JoinTables          []string
	Fields              []*FieldSource
	DynamicFields       []*DynamicField
	NamedParameters     []string
	ParameterCastTypes  map[string]string
	WithSelects         []*Select
	Annotations         StatementAnnotationOverrides
	pos, end            token.Position
}

func (s *Select) node()               {}
func (s *Select) stmt()                {}
func (s *Select) Pos() token.Position  { return s.pos }
func (s *Select) End() token.Position  { return s.end }
func (s *Select) StatementName() string { return s.StmtName }

// DMLKind distinguishes INSERT / UPDATE / DELETE.
type DMLKind int

const (
	KindInsert DMLKind = iota
	KindUpdate
	KindDelete
)

// DML is the shared shape of the `Insert/Update/Delete { sql, table,
// named_parameters, param_to_column, param_to_column_name,
// with_selects, parameter_cast_types, has_returning,
// returning_columns }` statement variant. One struct serves all three
// kinds, distinguished by Kind, matching the spec's explicit grouping
// of the three under one shape.
type DML struct {
	StmtName           string
	Kind               DMLKind
	Sql                string
	Table              string
	NamedParameters    []string
	ParamToColumn      map[string]AssociatedColumn
	ParamToColumnName  map[string]string
	WithSelects        []*Select
	ParameterCastTypes map[string]string
	HasReturning       bool
	ReturningColumns   []string
	Annotations        StatementAnnotationOverrides
	pos, end           token.Position
}

func (d *DML) node()               {}
func (d *DML) stmt()                {}
func (d *DML) Pos() token.Position  { return d.pos }
func (d *DML) End() token.Position  { return d.end }
func (d *DML) StatementName() string { return d.StmtName }

// NewCreateTable constructs a CreateTable with position information.
func NewCreateTable(name, sql string, columns []*Column, ann TableAnnotations, pos, end token.Position) *CreateTable {
	return &CreateTable{Name: name, Sql: sql, Columns: columns, Annotations: ann, pos: pos, end: end}
}

// NewCreateView constructs a CreateView with position information.
func NewCreateView(name, sql string, sel *Select, colNames []string, ann ViewAnnotations, pos, end token.Position) *CreateView {
	return &CreateView{Name: name, Sql: sql, Select: sel, ColumnNames: colNames, Annotations: ann, pos: pos, end: end}
}

// NewSelect constructs a Select with position information.
func NewSelect(stmtName, sql string, pos, end token.Position) *Select {
	return &Select{
		StmtName:           stmtName,
		Sql:                sql,
		TableAliases:       make(map[string]string),
		ParameterCastTypes: make(map[string]string),
		pos:                pos,
		end:                end,
	}
}

// NewDML constructs an Insert/Update/Delete statement with position
// information.
func NewDML(stmtName string, kind DMLKind, sql, table string, pos, end token.Position) *DML {
	return &DML{
		StmtName:           stmtName,
		Kind:               kind,
		Sql:                sql,
		Table:              table,
		ParamToColumn:      make(map[string]AssociatedColumn),
		ParamToColumnName:  make(map[string]string),
		ParameterCastTypes: make(map[string]string),
		pos:                pos,
		end:                end,
	}
}

// Comment carries a raw comment's text plus the annotation block found
// inside it, if any (the text between `@@{` and the matching `}`).
type Comment struct {
	Text       string
	Annotation string // non-empty when this comment contains an @@{...} block
	Pos        token.Position
	End        token.Position
}
