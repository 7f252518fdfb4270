// Package query builds parameterized SELECT statements over a projected table.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps logical field names to alias-qualified columns of one table.
// Lookups are case-insensitive and also accept the raw column name, so
// "CreatedAt", "createdat" and "created_at" resolve to the same column.
type ProjectionMap struct {
	schema  string
	table   string
	alias   string
	lookup  map[string]string
	ordered []string
}

// NewProjectionMap creates a ProjectionMap for schema.table aliased as alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema: schema,
		table:  table,
		alias:  alias,
		lookup: make(map[string]string),
	}
}

// Project maps column to field and appends it to the select list.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.lookup[strings.ToLower(field)] = qualified
	p.lookup[strings.ToLower(column)] = qualified
	p.ordered = append(p.ordered, qualified)
	return p
}

// From returns the FROM target, "schema.table alias".
func (p *ProjectionMap) From() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.alias)
}

// Column resolves a field to its qualified column.
func (p *ProjectionMap) Column(field string) (string, bool) {
	col, ok := p.lookup[strings.ToLower(field)]
	return col, ok
}

// Columns returns the select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.ordered, ", ")
}
