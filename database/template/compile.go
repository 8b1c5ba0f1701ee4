package template

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

const (
	placeholder = "?"
	separator   = ", "
)

var (
	// ErrBatchSizeMismatch is returned when two batch parameters of a template
	// supply a different number of rows.
	ErrBatchSizeMismatch = errors.New("batches are of different sizes")
	// ErrEmptyBatch is returned when a batch parameter supplies no rows.
	ErrEmptyBatch = errors.New("empty batch parameter")
	// ErrPlaceholderCount is returned by Compiled.Replace when the number of
	// tokens differs from the number of placeholders.
	ErrPlaceholderCount = errors.New("placeholder count mismatch")
)

// aliasSuffix matches a fragment ending in "alias." so that a following
// column list can be qualified with that alias.
var aliasSuffix = regexp.MustCompile(`(?s)^.*? (([a-zA-Z][a-zA-Z_0-9]*) *\. *)$`)

// Compiled is the immutable result of compiling a Template.
type Compiled struct {
	sql   string
	marks []int // byte offsets of the emitted placeholders
	width int
	rows  [][]any
}

// SQL returns the generated SQL text with "?" placeholders.
func (c *Compiled) SQL() string {
	return c.sql
}

// Placeholders returns the number of placeholders emitted per row.
func (c *Compiled) Placeholders() int {
	return len(c.marks)
}

// Replace returns the SQL with the i-th emitted placeholder replaced by
// tokens[i]. Literal text, including any "?" it contains, is kept as is.
func (c *Compiled) Replace(tokens []string) (string, error) {
	if len(tokens) != len(c.marks) {
		return "", fmt.Errorf("%w: got %d tokens for %d placeholders", ErrPlaceholderCount, len(tokens), len(c.marks))
	}

	var buf strings.Builder
	last := 0
	for i, offset := range c.marks {
		buf.WriteString(c.sql[last:offset])
		buf.WriteString(tokens[i])
		last = offset + len(placeholder)
	}
	buf.WriteString(c.sql[last:])
	return buf.String(), nil
}

// Batch reports whether the statement must be executed once per row.
func (c *Compiled) Batch() bool {
	return c.width > 1
}

// Width returns the number of logical rows.
func (c *Compiled) Width() int {
	return c.width
}

// Args returns the bound arguments of the first row.
func (c *Compiled) Args() []any {
	return append([]any(nil), c.rows[0]...)
}

// Rows returns the bound arguments of every row.
func (c *Compiled) Rows() [][]any {
	rows := make([][]any, len(c.rows))
	for i, row := range c.rows {
		rows[i] = append([]any(nil), row...)
	}
	return rows
}

// Compile generates SQL text and the binding plan for t. Every bound scalar
// is passed through enc, which may be nil.
func Compile(t Template, enc Encoder) (*Compiled, error) {
	width, err := batchWidth(t.values)
	if err != nil {
		return nil, err
	}

	var w sqlWriter
	for i, value := range t.values {
		fragment := t.fragments[i]
		w.buf.WriteString(fragment)
		w.writeSlot(fragment, value)
	}
	w.buf.WriteString(t.fragments[len(t.fragments)-1])

	rows := make([][]any, width)
	for r := range rows {
		var args []any
		for _, value := range t.values {
			if args, err = bindSlot(args, value, r, enc); err != nil {
				return nil, err
			}
		}
		rows[r] = args
	}

	return &Compiled{sql: w.buf.String(), marks: w.marks, width: width, rows: rows}, nil
}

// sqlWriter assembles the SQL text and remembers where each placeholder
// was written.
type sqlWriter struct {
	buf   bytes.Buffer
	marks []int
}

func (w *sqlWriter) placeholder() {
	w.marks = append(w.marks, w.buf.Len())
	w.buf.WriteString(placeholder)
}

func (w *sqlWriter) writeSlot(fragment string, value any) {
	switch v := value.(type) {
	case nil:
		w.placeholder()
	case Identifier:
		w.buf.WriteString(v.name)
	case Entries:
		w.writeJoined(v.names, func(name string) {
			w.buf.WriteString(name + " = ")
			w.placeholder()
		})
	case Values:
		w.writeJoined(v.names, func(string) { w.placeholder() })
	case ColumnList:
		prefix := ""
		if m := aliasSuffix.FindStringSubmatch(fragment); m != nil {
			w.buf.Truncate(w.buf.Len() - len(m[1]))
			prefix = m[2] + "."
		}
		w.writeJoined(v.Names(), func(name string) { w.buf.WriteString(prefix + name) })
	case Composite:
		w.writePlaceholders(len(v.Components()))
	default:
		if n, ok := sliceLen(value); ok {
			count := 1
			if n > 0 {
				if c, ok := reflect.ValueOf(value).Index(0).Interface().(Composite); ok {
					count = len(c.Components())
				}
			}
			w.writePlaceholders(count)
			return
		}
		w.placeholder()
	}
}

func (w *sqlWriter) writeJoined(names []string, write func(string)) {
	first := true
	for _, name := range names {
		if name == "" {
			continue
		}
		if !first {
			w.buf.WriteString(separator)
		}
		write(name)
		first = false
	}
}

func (w *sqlWriter) writePlaceholders(count int) {
	for i := 0; i < count; i++ {
		if i > 0 {
			w.buf.WriteString(separator)
		}
		w.placeholder()
	}
}

// batchWidth returns the common width of all batch capable parameters.
// Parameters of width one are broadcast to every row.
func batchWidth(values []any) (int, error) {
	width := 1
	for i, value := range values {
		w, ok := slotWidth(value)
		if !ok {
			continue
		}
		if w == 0 {
			return 0, fmt.Errorf("%w: parameter %d of type %T should not be empty", ErrEmptyBatch, i, value)
		}
		if w == 1 {
			continue
		}
		if width != 1 && width != w {
			return 0, ErrBatchSizeMismatch
		}
		width = w
	}
	return width, nil
}

func slotWidth(value any) (int, bool) {
	switch v := value.(type) {
	case nil, Identifier, ColumnList, Composite:
		return 0, false
	case Entries:
		return v.width, true
	case Values:
		return v.width, true
	}
	return sliceLen(value)
}

// sliceLen reports the length of value if it is treated as an implicit batch.
// Byte slices and driver.Valuer implementations are scalars.
func sliceLen(value any) (int, bool) {
	if _, ok := value.(driver.Valuer); ok {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return 0, false
		}
		return rv.Len(), true
	default:
		return 0, false
	}
}

func bindSlot(args []any, value any, row int, enc Encoder) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return append(args, nil), nil
	case Identifier, ColumnList:
		return args, nil
	case Entries:
		return bindFields(args, v.fieldSet, row, enc)
	case Values:
		return bindFields(args, v.fieldSet, row, enc)
	case Composite:
		return bindValue(args, v, enc)
	}

	if n, ok := sliceLen(value); ok {
		if n == 1 {
			row = 0
		}
		return bindValue(args, reflect.ValueOf(value).Index(row).Interface(), enc)
	}
	return bindValue(args, value, enc)
}

func bindFields(args []any, fields fieldSet, row int, enc Encoder) ([]any, error) {
	var err error
	for i, name := range fields.names {
		if name == "" {
			continue
		}
		if args, err = bindValue(args, fields.valueAt(row, i), enc); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return args, nil
}

func bindValue(args []any, value any, enc Encoder) ([]any, error) {
	if value == nil {
		return append(args, nil), nil
	}
	if c, ok := value.(Composite); ok {
		var err error
		for _, component := range c.Components() {
			if args, err = bindValue(args, component, enc); err != nil {
				return nil, err
			}
		}
		return args, nil
	}
	if enc == nil {
		return append(args, value), nil
	}

	encoded, err := enc.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", value, err)
	}
	return append(args, encoded), nil
}
