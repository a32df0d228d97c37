// Package document implements spec section 4.1: converting raw JSON into
// an indexable record against the current schema, including flattening,
// dynamic-field discovery wiring, and reference-helper resolution.
package document

import (
	"sort"

	"github.com/antflydb/collectioncore/model"
)

// Flatten produces the dotted-key projection of doc used for indexing,
// while leaving doc itself untouched for retrieval, spec section 3:
// "Nested objects are flattened to dotted keys for indexing while the
// original structure is preserved for retrieval."
func Flatten(doc model.Document) model.FlattenedDocument {
	flat := make(map[string]any)
	flattenInto("", doc, flat)
	return model.FlattenedDocument{Original: doc, Flat: flat}
}

func flattenInto(prefix string, obj map[string]any, out map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		v := obj[k]
		switch child := v.(type) {
		case map[string]any:
			flattenInto(path, child, out)
		case []any:
			if arr, ok := flattenObjectArray(path, child, out); ok {
				out[path] = arr
				continue
			}
			out[path] = v
		default:
			out[path] = v
		}
	}
}

// flattenObjectArray flattens an array of objects into per-leaf arrays
// (e.g. "tags.name" -> [a, b, c] across all array elements), the
// convention spec section 4.1 calls out for nested object-array fields.
// It returns ok=false for arrays that aren't all objects, leaving the
// caller to store the value as-is.
func flattenObjectArray(prefix string, arr []any, out map[string]any) ([]any, bool) {
	for _, e := range arr {
		if _, ok := e.(map[string]any); !ok {
			return nil, false
		}
	}
	if len(arr) == 0 {
		return arr, true
	}

	leafKeys := make(map[string]bool)
	for _, e := range arr {
		obj := e.(map[string]any)
		nested := make(map[string]any)
		flattenInto("", obj, nested)
		for k := range nested {
			leafKeys[k] = true
		}
	}
	keys := make([]string, 0, len(leafKeys))
	for k := range leafKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		vals := make([]any, 0, len(arr))
		for _, e := range arr {
			obj := e.(map[string]any)
			nested := make(map[string]any)
			flattenInto("", obj, nested)
			vals = append(vals, nested[k])
		}
		out[prefix+"."+k] = vals
	}
	// Preserve the array itself under its own path too, so .flat can be
	// dropped independently of the original nested structure.
	return arr, true
}
