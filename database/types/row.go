//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// StaticRow is a Row backed by values already read from the driver.
type StaticRow struct {
	columns  []string
	values   []any
	registry *Registry
}

var _ Row = (*StaticRow)(nil)

// NewStaticRow creates a row over values. The registry may be nil.
func NewStaticRow(columns []string, values []any, registry *Registry) *StaticRow {
	return &StaticRow{columns: columns, values: values, registry: registry}
}

func (r *StaticRow) Len() int {
	return len(r.values)
}

func (r *StaticRow) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Value returns the raw value of column i, or nil when i is out of range.
func (r *StaticRow) Value(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

func (r *StaticRow) Values() []any {
	return append([]any(nil), r.values...)
}

func (r *StaticRow) value(i int) (any, error) {
	if i < 0 || i >= len(r.values) {
		return nil, fmt.Errorf("%w: %d of %d", ErrColumnIndex, i, len(r.values))
	}
	return r.values[i], nil
}

func (r *StaticRow) String(i int) (string, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return "", err
	}
	return asString(v)
}

func (r *StaticRow) Int(i int) (int, error) {
	n, err := r.Int64(i)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d overflows int", ErrUnsupportedConversion, n)
	}
	return int(n), nil
}

func (r *StaticRow) Int64(i int) (int64, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return 0, err
	}
	return asInt64(v)
}

func (r *StaticRow) Float64(i int) (float64, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return 0, err
	}
	return asFloat64(v)
}

func (r *StaticRow) Bool(i int) (bool, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return false, err
	}
	return asBool(v)
}

func (r *StaticRow) Bytes(i int) ([]byte, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return nil, err
	}
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("%w: %T to []byte", ErrUnsupportedConversion, v)
}

func (r *StaticRow) Time(i int) (time.Time, error) {
	v, err := r.value(i)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	return asTime(v)
}

// Scan decodes column i into dest. NULL sets dest to its zero value.
func (r *StaticRow) Scan(i int, dest any) error {
	v, err := r.value(i)
	if err != nil {
		return err
	}

	target := reflect.ValueOf(dest)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return fmt.Errorf("%w: got %T", ErrInvalidScanTarget, dest)
	}
	elem := target.Elem()

	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}

	// Pointer destinations receive a freshly allocated value.
	if elem.Kind() == reflect.Pointer {
		fresh := reflect.New(elem.Type().Elem())
		if err := r.Scan(i, fresh.Interface()); err != nil {
			return err
		}
		elem.Set(fresh)
		return nil
	}

	if c, ok := r.registry.Lookup(elem.Type()); ok {
		decoded, err := c.Decode(v)
		if err != nil {
			return fmt.Errorf("column %d: %w", i, err)
		}
		elem.Set(reflect.ValueOf(decoded))
		return nil
	}

	if scanner, ok := dest.(sql.Scanner); ok {
		return scanner.Scan(v)
	}

	if err := assign(elem, v); err != nil {
		return fmt.Errorf("column %d: %w", i, err)
	}
	return nil
}

func assign(dest reflect.Value, v any) error {
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dest.Type()) {
		dest.Set(src)
		return nil
	}

	switch dest.Kind() {
	case reflect.String:
		s, err := asString(v)
		if err != nil {
			return err
		}
		dest.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		if dest.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrUnsupportedConversion, n, dest.Type())
		}
		dest.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		if n < 0 || dest.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrUnsupportedConversion, n, dest.Type())
		}
		dest.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		dest.SetFloat(f)
	case reflect.Bool:
		b, err := asBool(v)
		if err != nil {
			return err
		}
		dest.SetBool(b)
	default:
		if dest.Type() == reflect.TypeFor[time.Time]() {
			t, err := asTime(v)
			if err != nil {
				return err
			}
			dest.Set(reflect.ValueOf(t))
			return nil
		}
		if !src.Type().ConvertibleTo(dest.Type()) {
			return fmt.Errorf("%w: %T to %s", ErrUnsupportedConversion, v, dest.Type())
		}
		dest.Set(src.Convert(dest.Type()))
	}
	return nil
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case time.Time:
		return s.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return s.String(), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return fmt.Sprint(v), nil
	}
	return "", fmt.Errorf("%w: %T to string", ErrUnsupportedConversion, v)
}

func asInt64(v any) (int64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedConversion, u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: %v is not integral", ErrUnsupportedConversion, f)
		}
		return int64(f), nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}

	switch s := v.(type) {
	case string:
		return parseInt(s)
	case []byte:
		return parseInt(string(s))
	}
	return 0, fmt.Errorf("%w: %T to int64", ErrUnsupportedConversion, v)
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}
	return n, nil
}

func asFloat64(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return 0, fmt.Errorf("%w: %T to float64", ErrUnsupportedConversion, v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}
	return f, nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return parseBool(b)
	case []byte:
		return parseBool(string(b))
	}

	n, err := asInt64(v)
	if err != nil {
		return false, fmt.Errorf("%w: %T to bool", ErrUnsupportedConversion, v)
	}
	return n != 0, nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}
	return b, nil
}

func asTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("%w: %T to time.Time", ErrUnsupportedConversion, v)
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrUnsupportedConversion, err)
	}
	return parsed, nil
}
