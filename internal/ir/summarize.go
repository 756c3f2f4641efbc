package ir

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Snapshot is the canonical JSON text of a summarized value.
// Snapshots compare with ==; the empty Snapshot means "no value recorded".
type Snapshot string

// MarshalJSON emits the snapshot as raw JSON so feed consumers receive the
// structured summary rather than a quoted string.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return []byte(s), nil
}

// UnmarshalJSON stores the raw JSON text as the snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	*s = Snapshot(data)
	return nil
}

// String returns the canonical JSON text.
func (s Snapshot) String() string {
	return string(s)
}

// Summarizer turns an arbitrary live value into a comparable Snapshot.
// Implementations must be total: they may not panic on cyclic or exotic input.
type Summarizer func(v any) Snapshot

// Markers used for nested values that are not expanded.
const (
	ArrayLengthKey = "~array-length"
	ObjectKey      = "~object"
)

// Summarize reduces v to a one-level summary and renders it canonically.
//
// Scalars are kept as-is. Maps and structs become objects whose keys starting
// with '$' or '_' are dropped; their values are summarized as properties, so
// nested slices collapse to {"~array-length": n} and nested maps or structs to
// {"~object": true}. A top-level slice becomes an array of property summaries.
//
// Because only one level is expanded, a mutation deep inside a nested value is
// invisible to the summary and does not count as a change.
func Summarize(v any) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			snap = Snapshot(fmt.Sprintf("%q", "~unsummarizable"))
		}
	}()

	b, err := MarshalCanonical(summarizeTop(reflect.ValueOf(v)))
	if err != nil {
		return Snapshot("null")
	}
	return Snapshot(b)
}

func summarizeTop(v reflect.Value) Value {
	v, ok := deref(v)
	if !ok {
		return Null{}
	}
	if s, ok := textValue(v); ok {
		return s
	}
	if scalar, ok := scalarValue(v); ok {
		return scalar
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		arr := make(Array, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if p, keep := summarizeProperty(v.Index(i)); keep {
				arr = append(arr, p)
			} else {
				arr = append(arr, Null{})
			}
		}
		return arr
	case reflect.Map:
		return summarizeMap(v)
	case reflect.Struct:
		return summarizeStruct(v)
	case reflect.Func:
		return String("~function")
	case reflect.Chan:
		return String("~channel")
	default:
		return String(fmt.Sprintf("~%s", v.Kind()))
	}
}

func summarizeMap(v reflect.Value) Object {
	obj := make(Object, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key := mapKey(iter.Key())
		if hiddenKey(key) {
			continue
		}
		if p, keep := summarizeProperty(iter.Value()); keep {
			obj[key] = p
		}
	}
	return obj
}

func summarizeStruct(v reflect.Value) Object {
	t := v.Type()
	obj := make(Object, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		if hiddenKey(name) {
			continue
		}
		if p, keep := summarizeProperty(v.Field(i)); keep {
			obj[name] = p
		}
	}
	return obj
}

// summarizeProperty summarizes a value one level below the top.
// The second result is false when the property should be omitted entirely.
func summarizeProperty(v reflect.Value) (Value, bool) {
	v, ok := deref(v)
	if !ok {
		return Null{}, true
	}
	if s, ok := textValue(v); ok {
		return s, true
	}
	if scalar, ok := scalarValue(v); ok {
		return scalar, true
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return Object{ArrayLengthKey: Int(v.Len())}, true
	case reflect.Map, reflect.Struct:
		return Object{ObjectKey: Bool(true)}, true
	default:
		// functions, channels and unsafe pointers are not model data
		return nil, false
	}
}

// deref follows pointers and interfaces. It reports false for nil.
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return v, false
		}
		if v.Kind() == reflect.Pointer {
			if _, ok := textValue(v); ok {
				return v, true
			}
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, false
	}
	if v.Kind() == reflect.Map && v.IsNil() {
		return v, false
	}
	return v, true
}

func textValue(v reflect.Value) (Value, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	tm, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		return nil, false
	}
	text, err := tm.MarshalText()
	if err != nil {
		return String("~" + err.Error()), true
	}
	return String(text), true
}

func scalarValue(v reflect.Value) (Value, bool) {
	switch v.Kind() {
	case reflect.Bool:
		return Bool(v.Bool()), true
	case reflect.String:
		return String(v.String()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return Float(float64(u)), true
		}
		return Int(int64(u)), true
	case reflect.Float32, reflect.Float64:
		return floatValue(v.Float()), true
	}
	return nil, false
}

func floatValue(f float64) Value {
	switch {
	case math.IsNaN(f):
		return String("NaN")
	case math.IsInf(f, 1):
		return String("Infinity")
	case math.IsInf(f, -1):
		return String("-Infinity")
	}
	return Float(f)
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

func hiddenKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.HasPrefix(key, "_")
}
