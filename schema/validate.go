package schema

import (
	"fmt"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/model"
)

// CoerceField reconciles a single field's raw JSON value against its
// declared type under policy, spec section 4.1's validate. It returns the
// coerced value, whether the field should be kept (false means "drop it"
// under DirtyDrop), and an error for DirtyReject/DirtyCoerceOrReject
// failures.
func CoerceField(f model.Field, value any, policy model.DirtyValuesPolicy) (any, bool, error) {
	if matchesType(f.Type, value) {
		return value, true, nil
	}

	coerced, ok := tryCoerce(f.Type, value)
	switch policy {
	case model.DirtyCoerceOrReject:
		if ok {
			return coerced, true, nil
		}
		return nil, false, collerr.BadRequest("field %q: value %v cannot be coerced to %s", f.Name, value, f.Type)
	case model.DirtyCoerceOrDrop:
		if ok {
			return coerced, true, nil
		}
		return nil, false, nil
	case model.DirtyDrop:
		return nil, false, nil
	case model.DirtyReject:
		fallthrough
	default:
		return nil, false, collerr.BadRequest("field %q: expected type %s, got %T", f.Name, f.Type, value)
	}
}

func matchesType(t model.FieldType, value any) bool {
	switch t {
	case model.FieldString:
		_, ok := value.(string)
		return ok
	case model.FieldBool:
		_, ok := value.(bool)
		return ok
	case model.FieldInt32, model.FieldInt64:
		return isIntegral(value)
	case model.FieldFloat:
		_, ok := value.(float64)
		return ok
	case model.FieldObject:
		_, ok := value.(map[string]any)
		return ok
	case model.FieldStringArray, model.FieldInt32Array, model.FieldInt64Array,
		model.FieldFloatArray, model.FieldBoolArray, model.FieldObjectArray, model.FieldFloatVector:
		arr, ok := value.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if !matchesType(elementType(t), e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func elementType(arrayType model.FieldType) model.FieldType {
	switch arrayType {
	case model.FieldStringArray:
		return model.FieldString
	case model.FieldInt32Array, model.FieldInt64Array:
		return model.FieldInt64
	case model.FieldFloatArray, model.FieldFloatVector:
		return model.FieldFloat
	case model.FieldBoolArray:
		return model.FieldBool
	case model.FieldObjectArray:
		return model.FieldObject
	default:
		return model.FieldString
	}
}

func isIntegral(value any) bool {
	f, ok := value.(float64)
	if !ok {
		return false
	}
	return f == float64(int64(f))
}

// tryCoerce attempts a best-effort conversion of value into t, the way
// CoerceOrReject/CoerceOrDrop ask for: numeric-looking strings become
// numbers, single scalars become one-element arrays, and booleans parse
// from "true"/"false".
func tryCoerce(t model.FieldType, value any) (any, bool) {
	switch t {
	case model.FieldString:
		return fmt.Sprintf("%v", value), true
	case model.FieldInt32, model.FieldInt64, model.FieldFloat:
		switch v := value.(type) {
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
				return f, true
			}
		}
		return nil, false
	case model.FieldBool:
		if s, ok := value.(string); ok {
			switch s {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false
	case model.FieldStringArray, model.FieldInt32Array, model.FieldInt64Array,
		model.FieldFloatArray, model.FieldBoolArray:
		if _, isArray := value.([]any); !isArray {
			elem, ok := tryCoerce(elementType(t), value)
			if !ok {
				return nil, false
			}
			return []any{elem}, true
		}
		return nil, false
	default:
		return nil, false
	}
}
