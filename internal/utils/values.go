package utils

import (
	"encoding/json"
	"reflect"
	"strings"
)

func Ptr[T any](v T) *T {
	return &v
}

// Returns nil on an empty or all whitespace string
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Opt is a patch field: it tells "not supplied" apart from "supplied".
// For pointer types a supplied nil means "clear the stored value".
type Opt[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Opt[T]) IsSet() bool {
	return o.set
}

func (o Opt[T]) Or(fallback T) T {
	if !o.set {
		return fallback
	}
	return o.value
}

// A JSON null only counts as supplied for pointer types.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		var zero T
		o.value = zero
		o.set = reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Pointer
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.set = true
	return nil
}

// TrimmedText treats a value that trims to empty as not supplied.
func TrimmedText(o Opt[string]) Opt[string] {
	v, ok := o.Get()
	if !ok {
		return o
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return Opt[string]{}
	}
	return Some(v)
}
