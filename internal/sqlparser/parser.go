// Package sqlparser parses one SQL statement at a time into the
// statement model of package ast: CREATE TABLE, CREATE VIEW, SELECT,
// INSERT, UPDATE, DELETE. It is a handwritten recursive-descent parser
// over the token stream produced by package lexer, in the same
// cur/peek-token style used elsewhere in this module's lexer-driven
// components.
package sqlparser

import (
	"fmt"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/lexer"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

// Parser parses a single SQL statement.
type Parser struct {
	l    *lexer.Lexer
	cur  token.Token
	peek token.Token
	diag *diag.Diagnostics

	filename string
	stmtName string

	namedParams   []string
	seenParams    map[string]bool
	castTypes     map[string]string
	lastParamName string
}

// normalize collapses runs of two or more blank lines into a single
// newline, matching the pre-parse normalization some SQL tokenizers
// require because they truncate on blank-line runs.
func normalize(sql string) string {
	lines := strings.Split(sql, "\n")
	var out []string
	blank := 0
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}

// New creates a Parser for one statement's SQL text.
func New(sql, filename, stmtName string) *Parser {
	p := &Parser{
		l:           lexer.New(normalize(sql), filename),
		diag:        diag.New(),
		filename:    filename,
		stmtName:    stmtName,
		seenParams:  make(map[string]bool),
		castTypes:   make(map[string]string),
	}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
	if p.cur.Type == token.PARAM {
		name := p.cur.Literal
		if !p.seenParams[name] {
			p.seenParams[name] = true
			p.namedParams = append(p.namedParams, name)
		}
		p.lastParamName = name
	}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.diag.AddErrorAt(p.cur.Pos, diag.KindSqlParse, diag.ErrUnexpectedToken, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(t token.Type) bool {
	if p.cur.Type != t {
		p.errorf("expected %s, got %s (%q)", t, p.cur.Type, p.cur.Literal)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) identName() string {
	if p.cur.Type == token.IDENT || p.cur.Type == token.QIDENT {
		name := p.cur.Literal
		p.advance()
		return name
	}
	// allow keywords to double as identifiers in loose positions (e.g. table named "key")
	name := p.cur.Literal
	p.advance()
	return name
}

// Diagnostics returns the diagnostics accumulated during parsing.
func (p *Parser) Diagnostics() *diag.Diagnostics {
	return p.diag
}

// ParseDDL parses a single CREATE TABLE or CREATE VIEW statement.
func ParseDDL(sql, filename string) (ast.Statement, *diag.Diagnostics) {
	p := New(sql, filename, "")
	if p.cur.Type != token.CREATE {
		p.errorf("expected CREATE, got %s", p.cur.Type)
		return nil, p.diag
	}
	p.advance()
	switch p.cur.Type {
	case token.TABLE:
		return p.parseCreateTable(sql), p.diag
	case token.VIEW:
		return p.parseCreateView(sql), p.diag
	default:
		p.errorf("unsupported DDL statement kind %s", p.cur.Type)
		return nil, p.diag
	}
}

func (p *Parser) parseCreateTable(rawSQL string) *ast.CreateTable {
	startPos := p.cur.Pos
	p.advance() // TABLE
	if p.cur.Type == token.IDENT && strings.EqualFold(p.cur.Literal, "IF") {
		p.advance()
		p.advance() // NOT
		p.advance() // EXISTS
	}
	name := p.identName()

	var cols []*ast.Column
	if p.cur.Type == token.LPAREN {
		p.advance()
		for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
			if strings.EqualFold(p.cur.Literal, "PRIMARY") || strings.EqualFold(p.cur.Literal, "UNIQUE") ||
				strings.EqualFold(p.cur.Literal, "FOREIGN") || strings.EqualFold(p.cur.Literal, "CHECK") ||
				strings.EqualFold(p.cur.Literal, "CONSTRAINT") {
				p.skipToCommaOrClose()
				continue
			}
			col := p.parseColumnDef()
			cols = append(cols, col)
			if p.cur.Type == token.COMMA {
				p.advance()
			}
		}
		if p.cur.Type == token.RPAREN {
			p.advance()
		}
	}
	endPos := p.cur.Pos
	return ast.NewCreateTable(name, rawSQL, cols, ast.TableAnnotations{Name: name}, startPos, endPos)
}

func (p *Parser) skipToCommaOrClose() {
	depth := 0
	for p.cur.Type != token.EOF {
		if p.cur.Type == token.LPAREN {
			depth++
		}
		if p.cur.Type == token.RPAREN {
			if depth == 0 {
				return
			}
			depth--
		}
		if p.cur.Type == token.COMMA && depth == 0 {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *Parser) parseColumnDef() *ast.Column {
	startPos := p.cur.Pos
	name := p.identName()
	sqlType := ""
	if p.cur.Type != token.COMMA && p.cur.Type != token.RPAREN {
		var typeParts []string
		for p.cur.Type != token.COMMA && p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
			switch p.cur.Type {
			case token.NOT:
				p.advance()
				if p.cur.Type == token.NULL {
					p.advance()
				}
				return p.finishColumn(startPos, name, strings.Join(typeParts, " "), true, false, false, false)
			case token.PRIMARY:
				p.advance()
				if p.cur.Type == token.KEY {
					p.advance()
				}
				autoInc := false
				if p.cur.Type == token.AUTOINCREMENT {
					autoInc = true
					p.advance()
				}
				return p.finishColumn(startPos, name, strings.Join(typeParts, " "), false, true, autoInc, false)
			case token.UNIQUE:
				p.advance()
				return p.finishColumn(startPos, name, strings.Join(typeParts, " "), false, false, false, true)
			case token.DEFAULT:
				p.advance()
				p.advance() // skip default value token
			case token.REFERENCES:
				p.advance()
				p.advance() // ref table
				if p.cur.Type == token.LPAREN {
					p.skipToCommaOrClose()
				}
			default:
				typeParts = append(typeParts, p.cur.Literal)
				p.advance()
			}
		}
		sqlType = strings.Join(typeParts, " ")
	}
	return p.finishColumn(startPos, name, sqlType, false, false, false, false)
}

func (p *Parser) finishColumn(startPos token.Position, name, sqlType string, notNull, pk, autoInc, unique bool) *ast.Column {
	// Continue scanning remaining column constraints on the same definition.
	for p.cur.Type != token.COMMA && p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.NOT:
			p.advance()
			if p.cur.Type == token.NULL {
				p.advance()
			}
			notNull = true
		case token.PRIMARY:
			p.advance()
			if p.cur.Type == token.KEY {
				p.advance()
			}
			pk = true
			if p.cur.Type == token.AUTOINCREMENT {
				autoInc = true
				p.advance()
			}
		case token.UNIQUE:
			unique = true
			p.advance()
		case token.DEFAULT:
			p.advance()
			p.advance()
		default:
			p.advance()
		}
	}
	return &ast.Column{
		Name:          name,
		SqlType:       strings.ToUpper(strings.TrimSpace(sqlType)),
		NotNull:       notNull,
		PrimaryKey:    pk,
		AutoIncrement: autoInc,
		Unique:        unique,
	}
}

func (p *Parser) parseCreateView(rawSQL string) *ast.CreateView {
	startPos := p.cur.Pos
	p.advance() // VIEW
	name := p.identName()

	var colNames []string
	if p.cur.Type == token.LPAREN {
		p.advance()
		for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
			colNames = append(colNames, p.identName())
			if p.cur.Type == token.COMMA {
				p.advance()
			}
		}
		if p.cur.Type == token.RPAREN {
			p.advance()
		}
	}
	if p.cur.Type == token.AS {
		p.advance()
	}

	selStart := p.cur.Pos
	sel := p.parseSelectBody(name, rawSQL)
	_ = selStart

	endPos := p.cur.Pos
	return ast.NewCreateView(name, rawSQL, sel, colNames, ast.ViewAnnotations{Name: name}, startPos, endPos)
}

// ParseQuery parses a single SELECT/INSERT/UPDATE/DELETE query file
// into its statement model.
func ParseQuery(sql, filename, stmtName string) (ast.Statement, *diag.Diagnostics) {
	p := New(sql, filename, stmtName)
	switch p.cur.Type {
	case token.SELECT, token.WITH:
		return p.parseSelectBody(stmtName, sql), p.diag
	case token.INSERT:
		return p.parseInsert(sql), p.diag
	case token.UPDATE:
		return p.parseUpdate(sql), p.diag
	case token.DELETE:
		return p.parseDelete(sql), p.diag
	default:
		p.errorf("unsupported statement kind %s", p.cur.Type)
		return nil, p.diag
	}
}

func (p *Parser) parseSelectBody(stmtName, rawSQL string) *ast.Select {
	startPos := p.cur.Pos
	sel := ast.NewSelect(stmtName, rawSQL, startPos, startPos)

	if p.cur.Type == token.WITH {
		p.advance()
		for {
			cteName := p.identName()
			if p.cur.Type == token.AS {
				p.advance()
			}
			if p.cur.Type == token.LPAREN {
				p.advance()
				inner := p.captureBalanced()
				innerP := New(inner, p.filename, cteName)
				withSel := innerP.parseSelectBody(cteName, inner)
				sel.WithSelects = append(sel.WithSelects, withSel)
				p.diag.Merge(innerP.diag)
			}
			if p.cur.Type == token.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	if p.cur.Type != token.SELECT {
		p.errorf("expected SELECT, got %s", p.cur.Type)
		return sel
	}
	p.advance()
	if p.cur.Type == token.DISTINCT {
		p.advance()
	}

	sel.Fields = p.parseProjection()

	if p.cur.Type == token.FROM {
		p.advance()
		p.parseFromClause(sel)
	}

	p.skipClauseTokens(sel)

	sel.NamedParameters = p.namedParams
	sel.ParameterCastTypes = p.castTypes
	return sel
}

func (p *Parser) parseProjection() []*ast.FieldSource {
	var fields []*ast.FieldSource
	for {
		if p.cur.Type == token.STAR {
			fields = append(fields, &ast.FieldSource{FieldName: "*", Expression: "*"})
			p.advance()
		} else {
			expr, exprText, wasExpression := p.parseSelectItem()
			fieldName := expr
			tableName := ""
			if dot := strings.LastIndex(expr, "."); dot >= 0 {
				tableName = expr[:dot]
				fieldName = expr[dot+1:]
			}
			if p.cur.Type == token.AS {
				p.advance()
				fieldName = p.identName()
			} else if p.cur.Type == token.IDENT {
				fieldName = p.identName()
			}
			fs := &ast.FieldSource{FieldName: fieldName, TableName: tableName, OriginalColumnName: fieldName}
			if wasExpression {
				fs.Expression = exprText
			}
			fields = append(fields, fs)
		}
		if p.cur.Type == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return fields
}

// parseSelectItem scans one projection item up to (but not including)
// a trailing alias, AS keyword, comma, or FROM, recording any
// CAST(:param AS TYPE) hints it observes along the way.
func (p *Parser) parseSelectItem() (ident string, raw string, isExpr bool) {
	var parts []string
	depth := 0
	isExpr = false
	for {
		if p.cur.Type == token.EOF {
			break
		}
		if depth == 0 && (p.cur.Type == token.COMMA || p.cur.Type == token.FROM || p.cur.Type == token.AS) {
			break
		}
		if depth == 0 && p.cur.Type == token.IDENT && len(parts) > 0 {
			// bare trailing alias with no AS keyword
			break
		}
		if p.cur.Type == token.CAST {
			isExpr = true
			p.advance()
			if p.cur.Type == token.LPAREN {
				p.advance()
				depth++
				paramName := ""
				if p.cur.Type == token.PARAM {
					paramName = p.cur.Literal
				}
				for depth > 0 && p.cur.Type != token.EOF {
					if p.cur.Type == token.LPAREN {
						depth++
					}
					if p.cur.Type == token.RPAREN {
						depth--
						if depth == 0 {
							p.advance()
							break
						}
					}
					if p.cur.Type == token.AS && paramName != "" {
						p.advance()
						if p.cur.Type == token.IDENT {
							p.castTypes[paramName] = p.cur.Literal
						}
						continue
					}
					p.advance()
				}
			}
			continue
		}
		if p.cur.Type == token.LPAREN {
			depth++
			isExpr = true
		}
		if p.cur.Type == token.RPAREN {
			depth--
		}
		if p.cur.Type != token.DOT {
			parts = append(parts, p.cur.Literal)
		} else {
			parts[len(parts)-1] = parts[len(parts)-1] + "."
		}
		p.advance()
	}
	raw = strings.Join(parts, " ")
	ident = strings.ReplaceAll(raw, " . ", ".")
	ident = strings.ReplaceAll(ident, ". ", ".")
	ident = strings.ReplaceAll(ident, " .", ".")
	return ident, raw, isExpr
}

func (p *Parser) parseFromClause(sel *ast.Select) {
	first := true
	for {
		name := p.identName()
		alias := name
		if p.cur.Type == token.AS {
			p.advance()
			alias = p.identName()
		} else if p.cur.Type == token.IDENT {
			alias = p.identName()
		}
		sel.TableAliases[strings.ToLower(alias)] = name
		if first {
			sel.FromTable = name
			first = false
		} else {
			sel.JoinTables = append(sel.JoinTables, name)
		}

		if p.cur.Type == token.COMMA {
			p.advance()
			continue
		}
		if p.cur.Type == token.JOIN || p.cur.Type == token.LEFT || p.cur.Type == token.INNER || p.cur.Type == token.CROSS {
			for p.cur.Type == token.LEFT || p.cur.Type == token.INNER || p.cur.Type == token.CROSS {
				p.advance()
			}
			if p.cur.Type == token.JOIN {
				p.advance()
				continue
			}
		}
		break
	}
	if p.cur.Type == token.ON {
		p.advance()
		p.skipExpressionUntilClauseKeyword()
	}
}

// skipClauseTokens consumes WHERE/GROUP BY/HAVING/ORDER BY/LIMIT and
// any remaining JOIN..ON chains, recording named parameters and CAST
// hints as it walks (the same CAST-hint logic used in the projection).
func (p *Parser) skipClauseTokens(sel *ast.Select) {
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.JOIN, token.LEFT, token.INNER, token.CROSS:
			for p.cur.Type == token.LEFT || p.cur.Type == token.INNER || p.cur.Type == token.CROSS {
				p.advance()
			}
			if p.cur.Type == token.JOIN {
				p.advance()
				name := p.identName()
				alias := name
				if p.cur.Type == token.AS {
					p.advance()
					alias = p.identName()
				} else if p.cur.Type == token.IDENT {
					alias = p.identName()
				}
				sel.TableAliases[strings.ToLower(alias)] = name
				sel.JoinTables = append(sel.JoinTables, name)
				if p.cur.Type == token.ON {
					p.advance()
					p.skipExpressionUntilClauseKeyword()
				}
			}
		case token.CAST:
			p.parseSelectItem()
		default:
			p.advance()
		}
	}
}

func (p *Parser) skipExpressionUntilClauseKeyword() {
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.JOIN, token.LEFT, token.INNER, token.CROSS, token.WHERE, token.GROUP, token.ORDER, token.HAVING, token.LIMIT:
			return
		default:
			p.advance()
		}
	}
}

// captureBalanced returns the raw text of a parenthesized group whose
// opening paren has already been consumed, advancing past the closing
// paren.
func (p *Parser) captureBalanced() string {
	var sb strings.Builder
	depth := 1
	for depth > 0 && p.cur.Type != token.EOF {
		if p.cur.Type == token.LPAREN {
			depth++
		}
		if p.cur.Type == token.RPAREN {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		}
		sb.WriteString(p.cur.Literal)
		sb.WriteByte(' ')
		p.advance()
	}
	return sb.String()
}

func (p *Parser) parseInsert(rawSQL string) *ast.DML {
	startPos := p.cur.Pos
	p.advance() // INSERT
	if p.cur.Type == token.INTO {
		p.advance()
	}
	table := p.identName()
	dml := ast.NewDML(p.stmtName, ast.KindInsert, rawSQL, table, startPos, startPos)

	var cols []string
	if p.cur.Type == token.LPAREN {
		p.advance()
		for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
			cols = append(cols, p.identName())
			if p.cur.Type == token.COMMA {
				p.advance()
			}
		}
		if p.cur.Type == token.RPAREN {
			p.advance()
		}
	}

	if p.cur.Type == token.VALUES {
		p.advance()
		if p.cur.Type == token.LPAREN {
			p.advance()
			i := 0
			for p.cur.Type != token.RPAREN && p.cur.Type != token.EOF {
				if p.cur.Type == token.PARAM && i < len(cols) {
					dml.ParamToColumn[p.cur.Literal] = ast.AssociatedColumn{ColumnName: cols[i]}
					dml.ParamToColumnName[p.cur.Literal] = cols[i]
				}
				if p.cur.Type == token.IN && i < len(cols) {
					// handled via WHERE-position IN below; not expected in VALUES
				}
				i++
				p.advance()
				if p.cur.Type == token.COMMA {
					p.advance()
				}
			}
			if p.cur.Type == token.RPAREN {
				p.advance()
			}
		}
	}

	p.parseConflictAndReturning(dml)
	dml.NamedParameters = p.namedParams
	dml.ParameterCastTypes = p.castTypes
	return dml
}

func (p *Parser) parseConflictAndReturning(dml *ast.DML) {
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.CONFLICT:
			p.advance()
			if p.cur.Type == token.LPAREN {
				p.skipToCommaOrClose()
			}
			if p.cur.Type == token.DO {
				p.advance()
				if p.cur.Type == token.NOTHING {
					p.advance()
				} else if p.cur.Type == token.UPDATE {
					p.advance()
					if p.cur.Type == token.SET {
						p.advance()
						p.parseSetList(dml)
					}
				}
			}
		case token.RETURNING:
			p.advance()
			p.parseReturning(dml)
		default:
			p.advance()
		}
	}
}

func (p *Parser) parseSetList(dml *ast.DML) {
	for {
		col := p.identName()
		if p.cur.Type == token.ASSIGN {
			p.advance()
		}
		if p.cur.Type == token.PARAM {
			dml.ParamToColumn[p.cur.Literal] = ast.AssociatedColumn{ColumnName: col}
			dml.ParamToColumnName[p.cur.Literal] = col
			p.advance()
		} else {
			p.skipExpressionToken()
		}
		if p.cur.Type == token.COMMA {
			p.advance()
			continue
		}
		break
	}
}

func (p *Parser) skipExpressionToken() {
	depth := 0
	for p.cur.Type != token.EOF {
		if p.cur.Type == token.LPAREN {
			depth++
		}
		if p.cur.Type == token.RPAREN {
			if depth == 0 {
				return
			}
			depth--
		}
		if depth == 0 && (p.cur.Type == token.COMMA || p.cur.Type == token.WHERE || p.cur.Type == token.RETURNING) {
			return
		}
		p.advance()
	}
}

func (p *Parser) parseReturning(dml *ast.DML) {
	dml.HasReturning = true
	for {
		if p.cur.Type == token.STAR {
			dml.ReturningColumns = append(dml.ReturningColumns, "*")
			p.advance()
		} else if p.cur.Type == token.IDENT || p.cur.Type == token.QIDENT {
			name := p.cur.Literal
			p.advance()
			if p.cur.Type == token.AS || p.cur.Type == token.IDENT {
				p.diag.AddErrorAt(p.cur.Pos, diag.KindUnsupported, diag.ErrReturningExpression, "RETURNING with an alias is not supported")
				for p.cur.Type != token.COMMA && p.cur.Type != token.EOF {
					p.advance()
				}
			}
			dml.ReturningColumns = append(dml.ReturningColumns, name)
		} else {
			p.diag.AddErrorAt(p.cur.Pos, diag.KindUnsupported, diag.ErrReturningExpression, "RETURNING with an expression is not supported")
			for p.cur.Type != token.COMMA && p.cur.Type != token.EOF {
				p.advance()
			}
		}
		if p.cur.Type == token.COMMA {
			p.advance()
			continue
		}
		break
	}
}

func (p *Parser) parseUpdate(rawSQL string) *ast.DML {
	startPos := p.cur.Pos
	p.advance() // UPDATE
	table := p.identName()
	dml := ast.NewDML(p.stmtName, ast.KindUpdate, rawSQL, table, startPos, startPos)
	if p.cur.Type == token.SET {
		p.advance()
		p.parseSetList(dml)
	}
	p.parseConflictAndReturning(dml)
	dml.NamedParameters = p.namedParams
	dml.ParameterCastTypes = p.castTypes
	return dml
}

func (p *Parser) parseDelete(rawSQL string) *ast.DML {
	startPos := p.cur.Pos
	p.advance() // DELETE
	if p.cur.Type == token.FROM {
		p.advance()
	}
	table := p.identName()
	dml := ast.NewDML(p.stmtName, ast.KindDelete, rawSQL, table, startPos, startPos)

	var lastCol string
	for p.cur.Type != token.EOF {
		switch p.cur.Type {
		case token.IDENT, token.QIDENT:
			lastCol = p.cur.Literal
			p.advance()
		case token.IN:
			p.advance()
			if p.cur.Type == token.PARAM {
				dml.ParamToColumn[p.cur.Literal] = ast.AssociatedColumn{ColumnName: lastCol, Kind: ast.AssocCollection}
				dml.ParamToColumnName[p.cur.Literal] = lastCol
				p.advance()
			}
		case token.ASSIGN, token.EQ:
			p.advance()
			if p.cur.Type == token.PARAM {
				dml.ParamToColumn[p.cur.Literal] = ast.AssociatedColumn{ColumnName: lastCol}
				dml.ParamToColumnName[p.cur.Literal] = lastCol
				p.advance()
			}
		case token.RETURNING:
			p.advance()
			p.parseReturning(dml)
		default:
			p.advance()
		}
	}
	dml.NamedParameters = p.namedParams
	dml.ParameterCastTypes = p.castTypes
	return dml
}

// RewriteSQL replaces every `:name` parameter placeholder with `?`,
// expanding AssociatedColumn::Collection bindings (found via
// paramKinds) to `(SELECT value FROM json_each(?))`.
func RewriteSQL(sql string, paramKinds map[string]ast.AssociatedColumnKind) string {
	var sb strings.Builder
	i := 0
	for i < len(sql) {
		if sql[i] == ':' && i+1 < len(sql) && (isIdentByte(sql[i+1])) {
			j := i + 1
			for j < len(sql) && isIdentByte(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			if paramKinds[name] == ast.AssocCollection {
				sb.WriteString("(SELECT value FROM json_each(?))")
			} else {
				sb.WriteByte('?')
			}
			i = j
			continue
		}
		sb.WriteByte(sql[i])
		i++
	}
	return sb.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
