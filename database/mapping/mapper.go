package mapping

import "github.com/gaborage/go-sqltx/database/types"

// Mapper turns a result row into a value.
type Mapper[T any] func(types.Row) (T, error)

// String reads the first column as a string.
func String(row types.Row) (string, error) {
	return row.String(0)
}

// Int reads the first column as an int.
func Int(row types.Row) (int, error) {
	return row.Int(0)
}

// Int64 reads the first column as an int64.
func Int64(row types.Row) (int64, error) {
	return row.Int64(0)
}

// Bytes reads the first column as a byte slice.
func Bytes(row types.Row) ([]byte, error) {
	return row.Bytes(0)
}

// Scan returns a mapper decoding the first column into a T through the
// row's converters.
func Scan[T any]() Mapper[T] {
	return func(row types.Row) (T, error) {
		var t T
		err := row.Scan(0, &t)
		return t, err
	}
}
