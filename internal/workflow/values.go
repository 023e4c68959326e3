package workflow

import (
	"reflect"
	"strconv"
	"strings"
)

// lookup walks a dot path through maps and slices. Missing segments report
// false.
func lookup(v any, path string) (any, bool) {
	if path == "" {
		return v, v != nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if cur == nil {
			return nil, false
		}
		switch c := cur.(type) {
		case Values:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
			continue
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
			continue
		}

		rv := reflect.ValueOf(cur)
		switch rv.Kind() {
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			mv := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
			if !mv.IsValid() {
				return nil, false
			}
			cur = mv.Interface()
		case reflect.Slice, reflect.Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= rv.Len() {
				return nil, false
			}
			cur = rv.Index(i).Interface()
		default:
			return nil, false
		}
	}
	return cur, true
}

// toSlice converts any slice or array to []any.
func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// equal compares gate values. Numbers compare by value across types and
// named string types compare as strings.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return ra.String() == rb.String()
	}
	if ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool {
		return ra.Bool() == rb.Bool()
	}
	if ra.Type().Comparable() && rb.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
