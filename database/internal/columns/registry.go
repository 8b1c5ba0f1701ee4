package columns

import (
	"reflect"
	"sync"
)

// Registry caches parsed tables per struct type. Types are parsed on first
// use; invalid types are not cached.
type Registry struct {
	cache sync.Map // map[reflect.Type]*Table
}

var global Registry

// For returns the cached table of rt, parsing it on first use.
func (r *Registry) For(rt reflect.Type) (*Table, error) {
	if cached, ok := r.cache.Load(rt); ok {
		return cached.(*Table), nil
	}

	table, err := parseStruct(rt)
	if err != nil {
		return nil, err
	}

	// LoadOrStore keeps a single instance when goroutines race on first use.
	actual, _ := r.cache.LoadOrStore(rt, table)
	return actual.(*Table), nil
}

// Of returns the table of T from the process wide registry.
func Of[T any]() (*Table, error) {
	return global.For(reflect.TypeFor[T]())
}
