package sandbox

import (
	"sort"
	"strconv"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// StateView is a read-only window onto a map of host state. Nested maps
// and slices are never handed out raw: traversal always goes through
// wrapper types, so extension code has no path to a mutable reference.
// Every write-shaped method fails with ErrMutationDenied.
type StateView struct {
	data map[string]any
	path string
}

// NewStateView wraps a snapshot of host state. The caller must not
// mutate the map after handing it over.
func NewStateView(data map[string]any) *StateView {
	return &StateView{data: data}
}

// Get returns the value at key.
func (v *StateView) Get(key string) (Value, bool) {
	raw, ok := v.data[key]
	if !ok {
		return Value{}, false
	}
	return Value{raw: raw, path: join(v.path, key)}, true
}

// Has reports whether key exists.
func (v *StateView) Has(key string) bool {
	_, ok := v.data[key]
	return ok
}

// Keys returns the keys in sorted order.
func (v *StateView) Keys() []string {
	keys := make([]string, 0, len(v.data))
	for k := range v.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (v *StateView) Len() int {
	return len(v.data)
}

// Set always fails: host state is read-only from extension code.
func (v *StateView) Set(key string, _ any) error {
	return &entities.MutationDeniedError{Path: join(v.path, key)}
}

// Delete always fails: host state is read-only from extension code.
func (v *StateView) Delete(key string) error {
	return &entities.MutationDeniedError{Path: join(v.path, key)}
}

// Value is a single state entry. Composite values unwrap to further
// read-only views; scalars unwrap to their Go value.
type Value struct {
	raw  any
	path string
}

// AsMap returns the value as a nested read-only view.
func (val Value) AsMap() (*StateView, bool) {
	m, ok := val.raw.(map[string]any)
	if !ok {
		return nil, false
	}
	return &StateView{data: m, path: val.path}, true
}

// AsList returns the value as a read-only list view.
func (val Value) AsList() (*ListView, bool) {
	items, ok := val.raw.([]any)
	if !ok {
		return nil, false
	}
	return &ListView{items: items, path: val.path}, true
}

// Scalar returns the underlying value when it is not a map or slice.
func (val Value) Scalar() (any, bool) {
	switch val.raw.(type) {
	case map[string]any, []any:
		return nil, false
	}
	return val.raw, true
}

// String returns the value as a string, or "" if it is not one.
func (val Value) String() string {
	s, _ := val.raw.(string)
	return s
}

// Int returns the value as an int64, converting common numeric types.
func (val Value) Int() (int64, bool) {
	switch n := val.raw.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Float returns the value as a float64.
func (val Value) Float() (float64, bool) {
	switch n := val.raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Bool returns the value as a bool, or false if it is not one.
func (val Value) Bool() bool {
	b, _ := val.raw.(bool)
	return b
}

// ListView is a read-only window onto a slice of host state.
type ListView struct {
	items []any
	path  string
}

// Get returns the element at index i.
func (l *ListView) Get(i int) (Value, bool) {
	if i < 0 || i >= len(l.items) {
		return Value{}, false
	}
	return Value{raw: l.items[i], path: join(l.path, indexSegment(i))}, true
}

// Len returns the number of elements.
func (l *ListView) Len() int {
	return len(l.items)
}

// Set always fails: host state is read-only from extension code.
func (l *ListView) Set(i int, _ any) error {
	return &entities.MutationDeniedError{Path: join(l.path, indexSegment(i))}
}

// Append always fails: host state is read-only from extension code.
func (l *ListView) Append(any) error {
	return &entities.MutationDeniedError{Path: l.path}
}

func join(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + "." + segment
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
