// Package mapping declares how application types map onto table columns.
//
// An Extractor is a static, ordered table of fields built once per type:
//
//	var employees = mapping.MustExtractor(
//		mapping.Field("id", func(e Employee) int64 { return e.ID }, func(e *Employee, v int64) { e.ID = v }),
//		mapping.Field("name", func(e Employee) string { return e.Name }, func(e *Employee, v string) { e.Name = v }),
//	)
//
// The extractor splices into templates as a column list and produces the
// Entries and Values parameters for updates and inserts. It also maps result
// rows selected with its own column list back into values.
package mapping

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gaborage/go-sqltx/database/template"
	"github.com/gaborage/go-sqltx/database/types"
)

var (
	// ErrDuplicateField is returned when two fields share a column name.
	ErrDuplicateField = errors.New("duplicate field")
	// ErrUnknownField is returned when a field name is not part of the extractor.
	ErrUnknownField = errors.New("unknown field")
)

// FieldDef is one column of an Extractor.
type FieldDef[T any] struct {
	name string
	get  func(T) any
	scan func(types.Row, int, *T) error
}

// Field declares a column name with its accessor pair. set may be nil for
// columns that are written but never read back.
func Field[T, V any](name string, get func(T) V, set func(*T, V)) FieldDef[T] {
	return FieldDef[T]{
		name: name,
		get:  func(t T) any { return get(t) },
		scan: func(row types.Row, i int, t *T) error {
			if set == nil {
				return nil
			}
			var v V
			if err := row.Scan(i, &v); err != nil {
				return err
			}
			set(t, v)
			return nil
		},
	}
}

// Name returns the column name.
func (f FieldDef[T]) Name() string {
	return f.name
}

// Extractor is an ordered field table for T. Excluded fields are kept as
// gaps so that positions stay stable across projections.
type Extractor[T any] struct {
	fields []FieldDef[T]
	active []bool
}

// NewExtractor validates the field table.
func NewExtractor[T any](fields ...FieldDef[T]) (*Extractor[T], error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, err := template.NewIdentifier(f.name); err != nil {
			return nil, err
		}
		if _, ok := seen[f.name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.name)
		}
		seen[f.name] = struct{}{}
	}

	active := make([]bool, len(fields))
	for i := range active {
		active[i] = true
	}
	return &Extractor[T]{fields: slices.Clone(fields), active: active}, nil
}

// MustExtractor is like NewExtractor but panics on an invalid table.
func MustExtractor[T any](fields ...FieldDef[T]) *Extractor[T] {
	e, err := NewExtractor(fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// Names returns the column names, with excluded fields as empty strings.
// It makes the extractor usable as a template.ColumnList.
func (e *Extractor[T]) Names() []string {
	names := make([]string, len(e.fields))
	for i, f := range e.fields {
		if e.active[i] {
			names[i] = f.name
		}
	}
	return names
}

// Entries returns the "name = ?" assignments of t.
func (e *Extractor[T]) Entries(t T) template.Entries {
	return template.NewEntries(e.Names(), 1, func(_, i int) any { return e.fields[i].get(t) })
}

// Values returns the placeholders and values of t.
func (e *Extractor[T]) Values(t T) template.Values {
	return template.NewValues(e.Names(), 1, func(_, i int) any { return e.fields[i].get(t) })
}

// Batch returns the values of every element of ts, one batch row each.
func (e *Extractor[T]) Batch(ts []T) template.Values {
	ts = slices.Clone(ts)
	return template.NewValues(e.Names(), len(ts), func(row, i int) any { return e.fields[i].get(ts[row]) })
}

// Excluding returns a projection without the named fields.
func (e *Extractor[T]) Excluding(names ...string) (*Extractor[T], error) {
	return e.project(names, false)
}

// Only returns a projection with just the named fields.
func (e *Extractor[T]) Only(names ...string) (*Extractor[T], error) {
	return e.project(names, true)
}

func (e *Extractor[T]) project(names []string, keep bool) (*Extractor[T], error) {
	for _, name := range names {
		if !slices.ContainsFunc(e.fields, func(f FieldDef[T]) bool { return f.name == name }) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}

	active := make([]bool, len(e.fields))
	for i, f := range e.fields {
		listed := slices.Contains(names, f.name)
		active[i] = e.active[i] && listed == keep
	}
	return &Extractor[T]{fields: e.fields, active: active}, nil
}

// Map reads a row selected with this extractor's column list into a T.
func (e *Extractor[T]) Map(row types.Row) (T, error) {
	var t T
	column := 0
	for i, f := range e.fields {
		if !e.active[i] {
			continue
		}
		if err := f.scan(row, column, &t); err != nil {
			return t, fmt.Errorf("field %s: %w", f.name, err)
		}
		column++
	}
	return t, nil
}

// Mapper returns Map as a Mapper.
func (e *Extractor[T]) Mapper() Mapper[T] {
	return e.Map
}
