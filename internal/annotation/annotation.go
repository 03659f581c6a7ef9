// Package annotation parses the inline `@@{ key=value, ... }` blocks
// embedded in SQL comments into typed field- and statement-level
// override records.
package annotation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlitenow/sqlitenow-go/internal/ast"
	"github.com/sqlitenow/sqlitenow-go/internal/diag"
	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

// RawEntry is one parsed `key[=value]` pair before it has been
// classified against a field or statement key set.
type RawEntry struct {
	Key   string
	Value string // raw textual value; "true" when no "=" was present
	Pos   token.Position
}

// Extract locates the first `@@{ ... }` block inside a comment's text
// and returns its inner content, or "", false if none is present.
func Extract(commentText string) (string, bool) {
	open := strings.Index(commentText, "@@{")
	if open < 0 {
		return "", false
	}
	rest := commentText[open+len("@@{"):]
	close := strings.Index(rest, "}")
	if close < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:close]), true
}

// Parse parses the content between `@@{` and `}` into an ordered list
// of raw key/value entries. pos is the position of the opening `@@{`,
// used to anchor diagnostics.
func Parse(content string, pos token.Position, d *diag.Diagnostics) []RawEntry {
	var entries []RawEntry
	for _, part := range splitTopLevel(content, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := indexTopLevel(part, '=')
		if eq < 0 {
			entries = append(entries, RawEntry{Key: part, Value: "true", Pos: pos})
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		if key == "" {
			d.AddErrorAt(pos, diag.KindAnnotation, diag.ErrMalformedAnnotation, fmt.Sprintf("malformed annotation entry %q", part))
			continue
		}
		entries = append(entries, RawEntry{Key: key, Value: unquote(val), Pos: pos})
	}
	return entries
}

// splitTopLevel splits s on sep, ignoring separators nested inside
// [...] or <...> or '...' so `propertyType=List<String>` and
// `values=[a, b, c]` survive intact.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inStr:
			inStr = true
		case c == '\'' && inStr:
			inStr = false
		case inStr:
			// inside a quoted value, ignore structural characters
		case c == '[' || c == '<':
			depth++
		case c == ']' || c == '>':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func indexTopLevel(s string, sep byte) int {
	depth := 0
	inStr := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inStr:
			inStr = true
		case c == '\'' && inStr:
			inStr = false
		case inStr:
		case c == '[' || c == '<':
			depth++
		case c == ']' || c == '>':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			return i
		}
	}
	return -1
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		if s, err := strconv.Unquote(`"` + strings.ReplaceAll(v[1:len(v)-1], `"`, `\"`) + `"`); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	}
	return v
}

// splitList parses a bracketed list value `[a, b, c]` into its
// elements. Returns nil, false if v is not bracketed.
func splitList(v string) ([]string, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "[") || !strings.HasSuffix(v, "]") {
		return nil, false
	}
	inner := v[1 : len(v)-1]
	var out []string
	for _, p := range splitTopLevel(inner, ',') {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, unquote(p))
		}
	}
	return out, true
}

// fieldKeys is the set of keys legal on a field-level annotation block.
var fieldKeys = map[string]bool{
	"field": true, "propertyName": true, "propertyType": true,
	"adapter": true, "notNull": true, "nullable": true,
	"defaultValue": true, "isDynamicField": true, "mappingType": true,
	"sourceTable": true, "aliasPrefix": true, "collectionKey": true,
}

// statementKeys is the set of keys legal on a statement-level
// annotation block.
var statementKeys = map[string]bool{
	"queryResult": true, "sharedResult": true, "implements": true,
	"excludeOverrideFields": true, "name": true,
	"propertyNameGenerator": true, "collectionKey": true,
	"mapTo": true, "debug": true,
}

// ApplyField folds raw entries into a FieldAnnotationOverrides record,
// reporting UnknownAnnotationError for any key outside fieldKeys.
func ApplyField(entries []RawEntry, d *diag.Diagnostics) ast.FieldAnnotationOverrides {
	var out ast.FieldAnnotationOverrides
	for _, e := range entries {
		if !fieldKeys[e.Key] {
			d.AddErrorAt(e.Pos, diag.KindAnnotation, diag.ErrUnknownAnnotationKey, fmt.Sprintf("unknown field annotation key %q", e.Key))
			continue
		}
		switch e.Key {
		case "field":
			out.Field = e.Value
		case "propertyName":
			out.PropertyName = e.Value
		case "propertyType":
			out.PropertyType = e.Value
		case "adapter":
			out.Adapter = asBool(e.Value)
		case "notNull":
			out.NotNull = asBool(e.Value)
			out.NotNullSet = true
		case "nullable":
			out.Nullable = asBool(e.Value)
			out.NullableSet = true
		case "defaultValue":
			out.DefaultValue = e.Value
		case "isDynamicField":
			out.IsDynamicField = asBool(e.Value)
		case "mappingType":
			out.MappingType = ast.MappingType(e.Value)
		case "sourceTable":
			out.SourceTable = e.Value
		case "aliasPrefix":
			out.AliasPrefix = e.Value
		case "collectionKey":
			out.CollectionKey = e.Value
		}
	}
	if out.NotNullSet && out.NullableSet && out.NotNull == out.Nullable {
		d.AddErrorAt(entries[0].Pos, diag.KindAnnotation, diag.ErrIllegalCombination, "notNull and nullable must not agree on the same field")
	}
	return out
}

// ApplyStatement folds raw entries into a StatementAnnotationOverrides
// record, reporting UnknownAnnotationError for any key outside
// statementKeys.
func ApplyStatement(entries []RawEntry, d *diag.Diagnostics) ast.StatementAnnotationOverrides {
	var out ast.StatementAnnotationOverrides
	for _, e := range entries {
		if !statementKeys[e.Key] {
			d.AddErrorAt(e.Pos, diag.KindAnnotation, diag.ErrUnknownAnnotationKey, fmt.Sprintf("unknown statement annotation key %q", e.Key))
			continue
		}
		switch e.Key {
		case "queryResult":
			out.QueryResult = e.Value
		case "sharedResult":
			out.SharedResult = e.Value
		case "implements":
			out.Implements = e.Value
		case "excludeOverrideFields":
			if list, ok := splitList(e.Value); ok {
				out.ExcludeOverrideFields = list
			} else if e.Value != "" {
				out.ExcludeOverrideFields = []string{e.Value}
			}
		case "name":
			out.Name = e.Value
		case "propertyNameGenerator":
			out.PropertyNameGenerator = e.Value
		case "collectionKey":
			out.CollectionKey = e.Value
		case "mapTo":
			out.MapTo = e.Value
		case "debug":
			out.Debug = asBool(e.Value)
		}
	}
	return out
}

func asBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "":
		return true
	case "false":
		return false
	default:
		return true
	}
}
