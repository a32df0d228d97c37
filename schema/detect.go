// Package schema implements field-type detection and dynamic-field
// discovery, spec section 4.1.
package schema

import (
	"regexp"

	"github.com/antflydb/collectioncore/model"
)

// DetectType walks a decoded JSON value and returns the narrowest
// scalar/array field type it maps to. object/object[] detection treats
// any map as FieldObject and any slice-of-maps as FieldObjectArray.
func DetectType(value any) model.FieldType {
	switch v := value.(type) {
	case string:
		return model.FieldString
	case bool:
		return model.FieldBool
	case float64:
		if v == float64(int64(v)) {
			return model.FieldInt64
		}
		return model.FieldFloat
	case int, int32, int64:
		return model.FieldInt64
	case map[string]any:
		return model.FieldObject
	case []any:
		return detectArrayType(v)
	default:
		return model.FieldString
	}
}

func detectArrayType(arr []any) model.FieldType {
	if len(arr) == 0 {
		return model.FieldStringArray
	}
	switch arr[0].(type) {
	case string:
		return model.FieldStringArray
	case bool:
		return model.FieldBoolArray
	case map[string]any:
		return model.FieldObjectArray
	case float64:
		for _, e := range arr {
			if f, ok := e.(float64); ok && f != float64(int64(f)) {
				return model.FieldFloatArray
			}
		}
		return model.FieldInt64Array
	default:
		return model.FieldStringArray
	}
}

// CoarsenToFallback narrows a detected type down to the declared
// fallback_field_type for undeclared fields, spec section 4.1: a
// wildcard string fallback turns every array into string[] and every
// scalar into string.
func CoarsenToFallback(detected model.FieldType, fallback model.FieldType) model.FieldType {
	if fallback != model.FieldStringWildcard {
		return detected
	}
	if detected.IsArray() {
		return model.FieldStringArray
	}
	return model.FieldString
}

// matchesPattern reports whether name matches a dynamic field's regex-like
// NamePattern. It compiles the pattern on every call; Discoverer keeps
// its own compiled-pattern cache and does not call this helper.
func matchesPattern(pattern, name string) (bool, error) {
	re, err := regexp.Compile("^" + pattern + "$")
	if err != nil {
		return false, err
	}
	return re.MatchString(name), nil
}
