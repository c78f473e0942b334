// Package lazy provides memoized, on-demand construction of resources.
//
// A Value holds a single resource that is built the first time it is requested.
// A Map holds a family of resources identified by a string key, each built the
// first time its key is requested.
//
//	conn := lazy.NewValue(func(ctx context.Context) (*Conn, error) {
//		return dial(ctx, "eu-west-1")
//	})
//
//	buckets := lazy.NewMap(func(ctx context.Context, name string) (*Bucket, error) {
//		c, err := conn.Get(ctx)
//		if err != nil {
//			return nil, err
//		}
//
//		return c.Bucket(ctx, name)
//	})
//
// Both are safe for concurrent use. Entries are never invalidated: a resource
// lives as long as the Value or Map that built it.
package lazy

import (
	"context"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Factory builds the resource held by a Value.
type Factory[T any] func(ctx context.Context) (T, error)

// KeyedFactory builds the resource for the given key of a Map.
type KeyedFactory[V any] func(ctx context.Context, key string) (V, error)

// Value is a single resource constructed on first use.
//
// Once the factory succeeds its result is kept, even when that result is nil.
// A failed call stores nothing and the next Get tries again.
type Value[T any] struct {
	factory Factory[T]

	mux sync.Mutex
	set bool
	val T
}

// NewValue returns a Value built by the given factory.
func NewValue[T any](factory Factory[T]) *Value[T] {
	return &Value[T]{factory: factory}
}

// Get returns the resource, invoking the factory if it wasn't built yet.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mux.Lock()
	defer v.mux.Unlock()

	if v.set {
		return v.val, nil
	}

	val, err := v.factory(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	v.val = val
	v.set = true

	return val, nil
}

// Loaded reports whether the resource has been built.
func (v *Value[T]) Loaded() bool {
	v.mux.Lock()
	defer v.mux.Unlock()

	return v.set
}

// Map is a set of keyed resources, each constructed on first use of its key.
//
// A slot holding nil counts as empty: Get invokes the factory for it again and
// only stores non-nil results. Errors are returned to the caller and never
// cached.
type Map[V any] struct {
	factory KeyedFactory[V]

	mux     sync.RWMutex
	entries map[string]V
	group   singleflight.Group
}

// NewMap returns a Map whose values are built by the given factory.
func NewMap[V any](factory KeyedFactory[V]) *Map[V] {
	return &Map[V]{
		factory: factory,
		entries: map[string]V{},
	}
}

// Get returns the resource for key, invoking the factory on a miss.
//
// Concurrent first requests for the same key share a single factory call.
func (m *Map[V]) Get(ctx context.Context, key string) (V, error) {
	if val, ok := m.load(key); ok {
		return val, nil
	}

	res, err, _ := m.group.Do(key, func() (any, error) {
		if val, ok := m.load(key); ok {
			return val, nil
		}

		val, err := m.factory(ctx, key)
		if err != nil {
			return nil, err
		}

		if !isNil(val) {
			m.mux.Lock()
			m.entries[key] = val
			m.mux.Unlock()
		}

		return val, nil
	})
	if err != nil || res == nil {
		var zero V
		return zero, err
	}

	return res.(V), nil
}

// Set stores val for key, replacing whatever was there.
func (m *Map[V]) Set(key string, val V) {
	m.mux.Lock()
	defer m.mux.Unlock()

	m.entries[key] = val
}

// Loaded reports whether key holds a non-nil resource.
func (m *Map[V]) Loaded(key string) bool {
	_, ok := m.load(key)
	return ok
}

// Len returns the amount of slots, including those holding nil.
func (m *Map[V]) Len() int {
	m.mux.RLock()
	defer m.mux.RUnlock()

	return len(m.entries)
}

func (m *Map[V]) load(key string) (V, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()

	val, ok := m.entries[key]
	if !ok || isNil(val) {
		var zero V
		return zero, false
	}

	return val, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
