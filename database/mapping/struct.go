package mapping

import (
	"reflect"

	"github.com/gaborage/go-sqltx/database/internal/columns"
	"github.com/gaborage/go-sqltx/database/types"
)

// Struct builds an Extractor from the `db:"column"` tags of the struct type
// T, in field declaration order:
//
//	type Employee struct {
//		ID   int64  `db:"id"`
//		Name string `db:"name"`
//	}
//
//	var employees = mapping.MustStruct[Employee]()
//
// Untagged fields and fields tagged "-" are not mapped.
func Struct[T any]() (*Extractor[T], error) {
	table, err := columns.Of[T]()
	if err != nil {
		return nil, err
	}

	fields := make([]FieldDef[T], len(table.Columns))
	for i, col := range table.Columns {
		fields[i] = structField[T](col)
	}
	return NewExtractor(fields...)
}

// MustStruct is like Struct but panics on an unusable type.
func MustStruct[T any]() *Extractor[T] {
	e, err := Struct[T]()
	if err != nil {
		panic(err)
	}
	return e
}

func structField[T any](col columns.Column) FieldDef[T] {
	index := col.Index
	return FieldDef[T]{
		name: col.Name,
		get: func(t T) any {
			return reflect.ValueOf(&t).Elem().Field(index).Interface()
		},
		scan: func(row types.Row, i int, t *T) error {
			return row.Scan(i, reflect.ValueOf(t).Elem().Field(index).Addr().Interface())
		},
	}
}
