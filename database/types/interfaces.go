// Package types contains the leaf types shared by the database packages:
// the result row accessor, the type converter registry and vendor identifiers.
// They live apart from the main database package to avoid import cycles with
// the mapping package.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "time"

// Database vendor identifiers shared across the database packages.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
)

// Row is a single result row positioned by zero based column index.
//
// Typed accessors read SQL NULL as the zero value of the requested type.
// Use Value or Scan into a pointer to tell NULL apart.
type Row interface {
	// Len returns the number of columns.
	Len() int
	// Columns returns the column names as reported by the driver.
	Columns() []string
	// Value returns the raw driver value of column i.
	Value(i int) any
	// Values returns a copy of all raw values.
	Values() []any

	String(i int) (string, error)
	Int(i int) (int, error)
	Int64(i int) (int64, error)
	Float64(i int) (float64, error)
	Bool(i int) (bool, error)
	Bytes(i int) ([]byte, error)
	Time(i int) (time.Time, error)

	// Scan decodes column i into dest, which must be a non-nil pointer.
	// Registered converters take precedence over built-in conversions.
	Scan(i int, dest any) error
}
