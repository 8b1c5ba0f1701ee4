// Package columns reads the `db:"column"` tags of struct types into cached
// column tables.
package columns

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gaborage/go-sqltx/database/template"
)

// TagName is the struct tag holding the column name.
const TagName = "db"

// Column describes one tagged struct field.
type Column struct {
	// Name is the column name from the tag.
	Name string
	// FieldName is the Go field name.
	FieldName string
	// Index is the field index within the struct.
	Index int
	// Type is the field type.
	Type reflect.Type
}

// Table is the ordered column list of a struct type.
type Table struct {
	TypeName string
	Columns  []Column
}

// Names returns the column names in declaration order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// parseStruct extracts the tagged fields of a struct type. Unexported
// fields, untagged fields and fields tagged "-" are skipped.
func parseStruct(rt reflect.Type) (*Table, error) {
	if rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("columns: expected a struct type, got %s", rt)
	}

	table := &Table{
		TypeName: rt.Name(),
		Columns:  make([]Column, 0, rt.NumField()),
	}
	seen := make(map[string]string, rt.NumField())

	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get(TagName)
		if tag == "" || tag == "-" {
			continue
		}
		if err := validateDBTag(tag, rt.Name(), field.Name); err != nil {
			return nil, err
		}
		if other, dup := seen[tag]; dup {
			return nil, fmt.Errorf("columns: fields %s.%s and %s.%s map to the same column %q",
				rt.Name(), other, rt.Name(), field.Name, tag)
		}
		seen[tag] = field.Name

		table.Columns = append(table.Columns, Column{
			Name:      tag,
			FieldName: field.Name,
			Index:     i,
			Type:      field.Type,
		})
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("columns: no fields with `db` tags found in struct %s", rt.Name())
	}
	return table, nil
}

// validateDBTag rejects tags that are not plain identifiers. Tag values are
// spliced into SQL text verbatim.
func validateDBTag(tag, structName, fieldName string) error {
	if strings.ContainsAny(tag, `"'`) {
		return fmt.Errorf("columns: invalid db tag %q in field %s.%s: contains quotes", tag, structName, fieldName)
	}
	if !template.IsValidIdentifier(tag) {
		return fmt.Errorf("columns: invalid db tag %q in field %s.%s: %w", tag, structName, fieldName, template.ErrInvalidIdentifier)
	}
	return nil
}
