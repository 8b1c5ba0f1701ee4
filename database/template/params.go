package template

// ColumnList is a parameter that splices a comma separated list of column
// names. Empty names are gaps and are skipped. When the fragment preceding the
// slot ends in "alias." every name is prefixed with that alias.
type ColumnList interface {
	Names() []string
}

// Composite is a structured value with several encodable components. It
// expands to one placeholder per component.
type Composite interface {
	Components() []any
}

// Encoder converts an outgoing value into a form the driver accepts.
type Encoder interface {
	Encode(v any) (any, error)
}

// ValueFunc returns the value of field index for the given batch row.
type ValueFunc func(row, index int) any

type fieldSet struct {
	names []string
	width int
	value ValueFunc
}

// Fields returns the field names, with gaps represented as empty strings.
func (f fieldSet) Fields() []string {
	return append([]string(nil), f.names...)
}

// Width returns the number of logical rows this parameter supplies.
func (f fieldSet) Width() int {
	return f.width
}

func (f fieldSet) valueAt(row, index int) any {
	if f.width == 1 {
		row = 0
	}
	return f.value(row, index)
}

// Entries splices "name = ?" pairs, one bound value per non-empty name.
// Suitable for the SET clause of UPDATE statements.
type Entries struct {
	fieldSet
}

// NewEntries creates an Entries parameter supplying width rows of values.
func NewEntries(names []string, width int, value ValueFunc) Entries {
	return Entries{fieldSet{names: append([]string(nil), names...), width: width, value: value}}
}

// Values splices "?" placeholders, one bound value per non-empty name.
// Suitable for the VALUES clause of INSERT statements. A Values with a width
// greater than one turns the statement into a batch.
type Values struct {
	fieldSet
}

// NewValues creates a Values parameter supplying width rows of values.
func NewValues(names []string, width int, value ValueFunc) Values {
	return Values{fieldSet{names: append([]string(nil), names...), width: width, value: value}}
}
