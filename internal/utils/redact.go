package utils

import (
	"fmt"
	"reflect"
	"regexp"
)

// RedactedValue replaces sensitive values.
const RedactedValue = "[REDACTED]"

var sensitiveName = regexp.MustCompile(`(?i)(password|passwd|secret|credential|authorization|card[-_ ]?number|cvv|cvc|ssn|token$|(^|[-_])key$|api[-_]?key$)`)

// IsSensitiveName reports whether a field or key name looks like it holds sensitive data.
func IsSensitiveName(name string) bool {
	return sensitiveName.MatchString(name)
}

// Redact returns a copy of v in which every map entry or struct field with a
// sensitive name is replaced by RedactedValue. Nested maps, slices and structs
// are walked recursively; v itself is not modified.
func Redact(v interface{}) interface{} {
	return redactValue(reflect.ValueOf(v), 0)
}

// RedactKeyvals redacts a flat key/value list as used by Logger.
func RedactKeyvals(keyvals []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keyvals))
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			out = append(out, keyvals[i])
			break
		}
		key := fmt.Sprint(keyvals[i])
		if IsSensitiveName(key) {
			out = append(out, key, RedactedValue)
			continue
		}
		val := keyvals[i+1]
		if _, isErr := val.(error); !isErr {
			val = Redact(val)
		}
		out = append(out, key, val)
	}
	return out
}

const maxRedactDepth = 32

func redactValue(v reflect.Value, depth int) interface{} {
	if !v.IsValid() {
		return nil
	}
	if depth > maxRedactDepth {
		return RedactedValue
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return redactValue(v.Elem(), depth+1)

	case reflect.Map:
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if IsSensitiveName(key) {
				out[key] = RedactedValue
				continue
			}
			out[key] = redactValue(iter.Value(), depth+1)
		}
		return out

	case reflect.Slice, reflect.Array:
		if isOpaque(v) || v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface()
		}
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = redactValue(v.Index(i), depth+1)
		}
		return out

	case reflect.Struct:
		if isOpaque(v) {
			return v.Interface()
		}
		t := v.Type()
		out := make(map[string]interface{}, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := fieldName(field)
			if name == "-" {
				continue
			}
			if IsSensitiveName(field.Name) || IsSensitiveName(name) {
				out[name] = RedactedValue
				continue
			}
			out[name] = redactValue(v.Field(i), depth+1)
		}
		return out

	default:
		return v.Interface()
	}
}

// isOpaque reports whether v renders itself, like time.Time or uuid.UUID.
func isOpaque(v reflect.Value) bool {
	if !v.CanInterface() {
		return false
	}
	switch v.Interface().(type) {
	case fmt.Stringer, error:
		return true
	}
	return false
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			tag = tag[:i]
			break
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}
