//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Converter translates between an application value type and the type the
// driver binds or returns for it.
type Converter interface {
	// ValueType is the application type handled by this converter.
	ValueType() reflect.Type
	// Encode converts an application value into a driver value.
	Encode(v any) (any, error)
	// Decode converts a driver value into an application value.
	Decode(raw any) (any, error)
}

type converter[V, E any] struct {
	encode func(V) (E, error)
	decode func(E) (V, error)
}

// NewConverter builds a Converter from a pair of typed functions. Decode
// accepts any driver value convertible to E, so a converter declared over
// string also decodes []byte columns.
func NewConverter[V, E any](encode func(V) (E, error), decode func(E) (V, error)) Converter {
	return converter[V, E]{encode: encode, decode: decode}
}

func (c converter[V, E]) ValueType() reflect.Type {
	return reflect.TypeFor[V]()
}

func (c converter[V, E]) Encode(v any) (any, error) {
	value, ok := v.(V)
	if !ok {
		return nil, fmt.Errorf("%w: cannot encode %T as %s", ErrUnsupportedConversion, v, c.ValueType())
	}
	return c.encode(value)
}

func (c converter[V, E]) Decode(raw any) (any, error) {
	if e, ok := raw.(E); ok {
		return c.decode(e)
	}

	target := reflect.TypeFor[E]()
	rv := reflect.ValueOf(raw)
	if !rv.IsValid() || !rv.Type().ConvertibleTo(target) || runeConversion(rv.Type(), target) {
		return nil, fmt.Errorf("%w: cannot decode %T into %s", ErrUnsupportedConversion, raw, c.ValueType())
	}
	return c.decode(rv.Convert(target).Interface().(E))
}

// runeConversion reports whether converting from to to would turn an integer
// into a one character string.
func runeConversion(from, to reflect.Type) bool {
	if to.Kind() != reflect.String {
		return false
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// UUIDConverter stores uuid.UUID values as their canonical string form.
var UUIDConverter = NewConverter(
	func(id uuid.UUID) (string, error) { return id.String(), nil },
	func(s string) (uuid.UUID, error) { return uuid.Parse(s) },
)

// Registry holds the converters of one database, keyed by application type.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	converters map[reflect.Type]Converter
}

// NewRegistry returns a registry preloaded with the standard converters.
func NewRegistry() *Registry {
	r := &Registry{converters: make(map[reflect.Type]Converter)}
	r.Register(UUIDConverter.ValueType(), UUIDConverter)
	return r
}

// Register adds or replaces the converter used for values of type t.
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[t] = c
}

// Lookup returns the converter registered for t.
func (r *Registry) Lookup(t reflect.Type) (Converter, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[t]
	return c, ok
}

// Encode converts v with the converter registered for its dynamic type, or
// returns v unchanged when there is none.
func (r *Registry) Encode(v any) (any, error) {
	c, ok := r.Lookup(reflect.TypeOf(v))
	if !ok {
		return v, nil
	}
	return c.Encode(v)
}

// Decode converts raw into a value of type t using the registered converter.
func (r *Registry) Decode(raw any, t reflect.Type) (any, error) {
	c, ok := r.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoConverter, t)
	}
	return c.Decode(raw)
}
