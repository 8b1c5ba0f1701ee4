//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "errors"

// Sentinel errors for row access and value conversion.
// These can be used with errors.Is() for programmatic error checking.
var (
	// ErrColumnIndex is returned when a column index is outside the row.
	ErrColumnIndex = errors.New("column index out of range")

	// ErrInvalidScanTarget is returned when Scan receives a nil or non-pointer destination.
	ErrInvalidScanTarget = errors.New("scan destination must be a non-nil pointer")

	// ErrUnsupportedConversion is returned when a value cannot be converted to the requested type.
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrNoConverter is returned when a converter is required but none is registered.
	ErrNoConverter = errors.New("no converter registered")
)
