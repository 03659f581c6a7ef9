// Package resolver flattens field annotations across tables and
// views — including chains of views referencing other views — so that
// any (tableOrView, field) pair resolves to a single effective
// annotation set.
package resolver

import "strings"

import "github.com/sqlitenow/sqlitenow-go/internal/ast"

// Registry holds every CreateTable and CreateView parsed for one
// database build, keyed lower-cased by name, and the memoized lookup
// cache used by Resolve. One Registry belongs to exactly one generator
// run; it must not be shared across concurrent database builds.
type Registry struct {
	tables map[string]*ast.CreateTable
	views  map[string]*ast.CreateView

	memo map[string]ast.FieldAnnotationOverrides
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		tables: make(map[string]*ast.CreateTable),
		views:  make(map[string]*ast.CreateView),
		memo:   make(map[string]ast.FieldAnnotationOverrides),
	}
}

// AddTable registers a CreateTable.
func (r *Registry) AddTable(t *ast.CreateTable) {
	r.tables[strings.ToLower(t.Name)] = t
}

// AddView registers a CreateView.
func (r *Registry) AddView(v *ast.CreateView) {
	r.views[strings.ToLower(v.Name)] = v
}

// Table looks up a registered table by name, case-insensitively.
func (r *Registry) Table(name string) (*ast.CreateTable, bool) {
	t, ok := r.tables[strings.ToLower(name)]
	return t, ok
}

// View looks up a registered view by name, case-insensitively.
func (r *Registry) View(name string) (*ast.CreateView, bool) {
	v, ok := r.views[strings.ToLower(name)]
	return v, ok
}

// Resolve returns the effective FieldAnnotationOverrides for
// (tableOrView, field), walking the precedence chain: direct column on
// the table/view, then (for views) the originating table/view field,
// recursively, with a fallback scan of all table aliases the view
// draws from. Results are memoized per Registry.
func (r *Registry) Resolve(tableOrView, field string) (ast.FieldAnnotationOverrides, bool) {
	key := strings.ToLower(tableOrView) + "\x00" + strings.ToLower(field)
	if cached, ok := r.memo[key]; ok {
		return cached, true
	}
	visited := make(map[string]bool)
	result, ok := r.resolve(tableOrView, field, visited)
	if ok {
		r.memo[key] = result
	}
	return result, ok
}

func (r *Registry) resolve(tableOrView, field string, visited map[string]bool) (ast.FieldAnnotationOverrides, bool) {
	key := strings.ToLower(tableOrView) + "\x00" + strings.ToLower(field)
	if visited[key] {
		return ast.FieldAnnotationOverrides{}, false
	}
	visited[key] = true

	lname := strings.ToLower(tableOrView)

	if t, ok := r.tables[lname]; ok {
		for _, col := range t.Columns {
			if strings.EqualFold(col.Name, field) {
				if hasAnnotations(col.Annotations) {
					return col.Annotations, true
				}
				return ast.FieldAnnotationOverrides{}, false
			}
		}
		return ast.FieldAnnotationOverrides{}, false
	}

	v, ok := r.views[lname]
	if !ok {
		return ast.FieldAnnotationOverrides{}, false
	}

	var vf *ast.ViewField
	for _, f := range v.Fields {
		if strings.EqualFold(f.FieldName, field) {
			vf = f
			break
		}
	}
	if vf == nil {
		// Fallback: iterate all table aliases of the view and re-attempt.
		for alias, target := range v.Select.TableAliases {
			_ = alias
			if ov, ok := r.resolve(target, field, visited); ok {
				return ov, true
			}
		}
		return ast.FieldAnnotationOverrides{}, false
	}

	if hasAnnotations(vf.Annotations) {
		return vf.Annotations, true
	}

	// Promote: recurse using viewField.TableName (source alias) resolved
	// to its underlying table/view, and the field's original column name.
	target := vf.TableName
	if resolvedTarget, ok := v.Select.TableAliases[strings.ToLower(vf.TableName)]; ok {
		target = resolvedTarget
	}
	if target != "" {
		if ov, ok := r.resolve(target, vf.OriginalColumnName, visited); ok {
			return ov, true
		}
	}

	// Fallback: iterate all table aliases of the view and re-attempt.
	for _, underlying := range v.Select.TableAliases {
		if ov, ok := r.resolve(underlying, field, visited); ok {
			return ov, true
		}
	}
	return ast.FieldAnnotationOverrides{}, false
}

func hasAnnotations(a ast.FieldAnnotationOverrides) bool {
	return a != ast.FieldAnnotationOverrides{}
}

// AliasPath computes the ordered alias chain for a dynamic field whose
// SourceTable is alias a within sel, extended transitively when a
// itself is a view containing its own dynamic fields whose source
// tables chain further. primaryAlias is the root alias of sel (its
// FromTable, lower-cased) that anchors the path.
func AliasPath(r *Registry, sel *ast.Select, primaryAlias, a string) []string {
	path := []string{primaryAlias, a}
	seen := map[string]bool{primaryAlias: true, a: true}
	cur := a
	for {
		target, ok := sel.TableAliases[strings.ToLower(cur)]
		if !ok {
			break
		}
		v, ok := r.View(target)
		if !ok {
			break
		}
		advanced := false
		for _, df := range v.DynamicFields {
			if df.SourceTable != "" && !seen[df.SourceTable] {
				path = append(path, df.SourceTable)
				seen[df.SourceTable] = true
				cur = df.SourceTable
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return path
}
