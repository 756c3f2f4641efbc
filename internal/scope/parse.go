package scope

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// OneTimePrefix marks an expression that stops being watched once it
// produces a defined value.
const OneTimePrefix = "::"

// Expression is a parsed property path such as "cart.items[0].name".
//
// Paths resolve through maps with string keys, exported struct fields (by
// Go name or json tag) and slice indexes. A missing step yields nil rather
// than an error, so watching a path that does not exist yet is legal.
type Expression struct {
	src      string
	segments []string
	oneTime  bool
}

// Parse parses a property path. An empty path denotes the model itself.
func Parse(src string) (*Expression, error) {
	text := strings.TrimSpace(src)
	e := &Expression{src: src}
	if strings.HasPrefix(text, OneTimePrefix) {
		e.oneTime = true
		text = strings.TrimSpace(text[len(OneTimePrefix):])
	}
	if text == "" {
		return e, nil
	}

	var seg strings.Builder
	flush := func(pos int) error {
		if seg.Len() == 0 {
			return NewParseError(src, fmt.Sprintf("empty path segment at offset %d", pos))
		}
		e.segments = append(e.segments, seg.String())
		seg.Reset()
		return nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '.':
			if err := flush(i); err != nil {
				return nil, err
			}
		case c == '[':
			if seg.Len() > 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
			} else if len(e.segments) == 0 {
				return nil, NewParseError(src, "index without a base")
			}
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				return nil, NewParseError(src, "unterminated index")
			}
			index := text[i+1 : i+end]
			if _, err := strconv.Atoi(index); err != nil {
				return nil, NewParseError(src, fmt.Sprintf("index %q is not an integer", index))
			}
			e.segments = append(e.segments, index)
			i += end
			if i+1 < len(text) && text[i+1] != '.' && text[i+1] != '[' {
				return nil, NewParseError(src, fmt.Sprintf("unexpected %q after index", text[i+1]))
			}
			if i+1 < len(text) && text[i+1] == '.' {
				i++
				if i+1 >= len(text) {
					return nil, NewParseError(src, "trailing dot")
				}
			}
		case isIdentByte(c):
			seg.WriteByte(c)
		default:
			return nil, NewParseError(src, fmt.Sprintf("unexpected character %q at offset %d", c, i))
		}
	}
	if seg.Len() > 0 {
		e.segments = append(e.segments, seg.String())
	} else if text[len(text)-1] == '.' {
		return nil, NewParseError(src, "trailing dot")
	}
	return e, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// String returns the source text.
func (e *Expression) String() string { return e.src }

// OneTime reports whether the expression carried the "::" prefix.
func (e *Expression) OneTime() bool { return e.oneTime }

// Segments returns the path steps.
func (e *Expression) Segments() []string {
	return append([]string(nil), e.segments...)
}

// Eval resolves the path against root.
func (e *Expression) Eval(root any) (any, error) {
	cur := reflect.ValueOf(root)
	for _, seg := range e.segments {
		cur = step(cur, seg)
		if !cur.IsValid() {
			return nil, nil
		}
	}
	if !cur.IsValid() || !cur.CanInterface() {
		return nil, nil
	}
	return cur.Interface(), nil
}

// Assign stores value at the path, creating intermediate maps where a
// map[string]any step is missing.
func (e *Expression) Assign(root any, value any) error {
	if len(e.segments) == 0 {
		return NewAssignError(e.src, "expression has no target")
	}

	cur := reflect.ValueOf(root)
	last := len(e.segments) - 1
	for _, seg := range e.segments[:last] {
		next, err := descend(cur, seg, e.src)
		if err != nil {
			return err
		}
		cur = next
	}
	return store(cur, e.segments[last], value, e.src)
}

func step(v reflect.Value, seg string) reflect.Value {
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}
	}
	switch v.Kind() {
	case reflect.Map:
		key, ok := mapKey(v.Type(), seg)
		if !ok {
			return reflect.Value{}
		}
		return v.MapIndex(key)
	case reflect.Struct:
		return field(v, seg)
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= v.Len() {
			return reflect.Value{}
		}
		return v.Index(i)
	}
	return reflect.Value{}
}

func descend(v reflect.Value, seg, expr string) (reflect.Value, error) {
	v = indirect(v)
	if !v.IsValid() {
		return v, NewAssignError(expr, fmt.Sprintf("cannot read %q of nil", seg))
	}
	if v.Kind() != reflect.Map {
		next := step(v, seg)
		if !next.IsValid() || !indirect(next).IsValid() {
			return next, NewAssignError(expr, fmt.Sprintf("cannot read %q", seg))
		}
		return next, nil
	}

	key, ok := mapKey(v.Type(), seg)
	if !ok {
		return v, NewAssignError(expr, fmt.Sprintf("map key type %s", v.Type().Key()))
	}
	if next := v.MapIndex(key); next.IsValid() && indirect(next).IsValid() {
		return next, nil
	}

	created := reflect.ValueOf(map[string]any{})
	if !created.Type().AssignableTo(v.Type().Elem()) {
		return v, NewAssignError(expr, fmt.Sprintf("cannot create %q in %s", seg, v.Type()))
	}
	if v.IsNil() {
		return v, NewAssignError(expr, "assignment to nil map")
	}
	v.SetMapIndex(key, created)
	return created, nil
}

func store(v reflect.Value, seg string, value any, expr string) error {
	v = indirect(v)
	if !v.IsValid() {
		return NewAssignError(expr, fmt.Sprintf("cannot set %q of nil", seg))
	}

	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return NewAssignError(expr, "assignment to nil map")
		}
		key, ok := mapKey(v.Type(), seg)
		if !ok {
			return NewAssignError(expr, fmt.Sprintf("map key type %s", v.Type().Key()))
		}
		val, err := convertTo(v.Type().Elem(), value, expr)
		if err != nil {
			return err
		}
		v.SetMapIndex(key, val)
		return nil
	case reflect.Struct, reflect.Slice, reflect.Array:
		target := step(v, seg)
		if !target.IsValid() {
			return NewAssignError(expr, fmt.Sprintf("no field or index %q", seg))
		}
		if !target.CanSet() {
			return NewAssignError(expr, fmt.Sprintf("%q is not settable", seg))
		}
		val, err := convertTo(target.Type(), value, expr)
		if err != nil {
			return err
		}
		target.Set(val)
		return nil
	}
	return NewAssignError(expr, fmt.Sprintf("cannot set %q on %s", seg, v.Kind()))
}

func convertTo(t reflect.Type, value any, expr string) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if (isNumber(rv.Kind()) && isNumber(t.Kind())) ||
		(rv.Kind() == reflect.String && t.Kind() == reflect.String) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, NewAssignError(expr, fmt.Sprintf("cannot use %T as %s", value, t))
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// indirect follows pointers and interfaces; nil yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func mapKey(t reflect.Type, seg string) (reflect.Value, bool) {
	if t.Key().Kind() != reflect.String {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(seg).Convert(t.Key()), true
}

func field(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return v.FieldByIndex(f.Index)
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("json"); ok {
			if tagName, _, _ := strings.Cut(tag, ","); tagName == name {
				return v.Field(i)
			}
		}
	}
	return reflect.Value{}
}
