// Package template turns structured SQL templates into executable SQL text plus
// an ordered, possibly batched, parameter binding plan.
//
// A template is an ordered interleaving of literal text fragments and
// parameter values. Literal fragments are copied verbatim; every parameter is
// either bound positionally ("?") or, for a small set of safe parameter kinds,
// spliced into the SQL text:
//
//   - Identifier: a validated SQL identifier, spliced verbatim
//   - ColumnList: comma separated column names, optionally alias prefixed
//   - Entries: "name = ?" pairs, for UPDATE ... SET clauses
//   - Values: "?" placeholders, for INSERT ... VALUES clauses
//   - Composite: one placeholder per component
//   - slices and arrays: an implicit batch, one logical row per element
//
// Compilation is a pure function of the template and performs no I/O.
// Compiled SQL always uses "?" placeholders; callers rebind them for the
// target driver.
package template

import (
	"errors"
	"fmt"
	"strings"
)

// SlotMarker marks a parameter slot in the text passed to New.
const SlotMarker = "{}"

// ErrSlotMismatch is returned when the number of slots in a template text
// does not match the number of supplied arguments.
var ErrSlotMismatch = errors.New("template slot count does not match argument count")

// Template is an ordered interleaving of literal fragments and parameter
// values. It always holds exactly one more fragment than values.
type Template struct {
	fragments []string
	values    []any
}

// New creates a template from text in which every SlotMarker is replaced by
// the next argument.
//
// Example:
//
//	template.New("SELECT {} FROM employee WHERE id = {}", columns, 42)
func New(text string, args ...any) (Template, error) {
	fragments := strings.Split(text, SlotMarker)
	if len(fragments)-1 != len(args) {
		return Template{}, fmt.Errorf("%w: %d slots, %d arguments", ErrSlotMismatch, len(fragments)-1, len(args))
	}

	return Template{fragments: fragments, values: append([]any(nil), args...)}, nil
}

// MustNew is like New but panics when the template is malformed.
func MustNew(text string, args ...any) Template {
	t, err := New(text, args...)
	if err != nil {
		panic(err)
	}
	return t
}

// Of creates a template from explicit fragments and values.
func Of(fragments []string, values []any) (Template, error) {
	if len(fragments) != len(values)+1 {
		return Template{}, fmt.Errorf("%w: %d fragments, %d values", ErrSlotMismatch, len(fragments), len(values))
	}

	return Template{
		fragments: append([]string(nil), fragments...),
		values:    append([]any(nil), values...),
	}, nil
}

// Fragments returns a copy of the literal fragments.
func (t Template) Fragments() []string {
	return append([]string(nil), t.fragments...)
}

// Values returns a copy of the parameter values.
func (t Template) Values() []any {
	return append([]any(nil), t.values...)
}

func (t Template) String() string {
	return fmt.Sprintf("Template{fragments=%q, values=%v}", t.fragments, t.values)
}
