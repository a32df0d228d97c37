package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/antflydb/collectioncore/model"
)

// Discoverer finds new top-level fields in a document against the live
// schema and the collection's dynamic-field patterns, caching compiled
// regexes across calls. Spec section 4.1's detect_new_fields.
type Discoverer struct {
	compiled map[string]*regexp.Regexp
}

// NewDiscoverer returns an empty, ready-to-use Discoverer.
func NewDiscoverer() *Discoverer {
	return &Discoverer{compiled: make(map[string]*regexp.Regexp)}
}

func (d *Discoverer) pattern(p string) (*regexp.Regexp, error) {
	if re, ok := d.compiled[p]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^" + p + "$")
	if err != nil {
		return nil, fmt.Errorf("compiling dynamic field pattern %q: %w", p, err)
	}
	d.compiled[p] = re
	return re, nil
}

// DetectNewFields walks doc's top-level keys, matches each key not
// already in schema against the dynamic patterns (in declaration order,
// first match wins), and falls back to fallbackType otherwise. Nested
// objects become an object field with Nested=true; their primitive
// leaves are also flattened into added fields when enableNestedFields
// requests field-level indexing of the leaves.
func (d *Discoverer) DetectNewFields(doc model.Document, s *model.Schema, fallbackType model.FieldType, enableNestedFields bool) ([]model.Field, error) {
	var added []model.Field

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic discovery order across a batch

	dynamics := s.DynamicFields()

	for _, key := range keys {
		if key == "id" {
			continue
		}
		if _, ok := s.Get(key); ok {
			continue
		}

		value := doc[key]
		detected := DetectType(value)

		var proto *model.Field
		for i := range dynamics {
			ok, err := d.matches(dynamics[i].NamePattern, key)
			if err != nil {
				return nil, err
			}
			if ok {
				p := dynamics[i]
				proto = &p
				break
			}
		}

		var f model.Field
		if proto != nil {
			f = *proto
			f.NamePattern = ""
			f.Name = key
			if proto.Type == model.FieldAuto {
				f.Type = detected
			} else if proto.Type == model.FieldStringWildcard {
				f.Type = CoarsenToFallback(detected, model.FieldStringWildcard)
			} else {
				f.Type = proto.Type
			}
		} else {
			if fallbackType == "" {
				continue // no fallback configured: undeclared field is dropped, not indexed
			}
			f = model.Field{
				Name:     key,
				Type:     CoarsenToFallback(detected, fallbackType),
				Index:    true,
				Optional: true,
			}
		}

		if detected == model.FieldObject && enableNestedFields {
			f.Type = model.FieldObject
			f.Nested = true
		}

		added = append(added, f)
		if detected == model.FieldObject && enableNestedFields {
			added = append(added, flattenedLeafFields(key, value.(map[string]any), fallbackType)...)
		}
	}

	return added, nil
}

func (d *Discoverer) matches(pattern, name string) (bool, error) {
	re, err := d.pattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(name), nil
}

// flattenedLeafFields recurses into a nested object's primitive leaves,
// producing dotted-path field descriptors for each, spec section 4.1.
func flattenedLeafFields(prefix string, obj map[string]any, fallbackType model.FieldType) []model.Field {
	var out []model.Field
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := prefix + "." + k
		v := obj[k]
		if child, ok := v.(map[string]any); ok {
			out = append(out, flattenedLeafFields(path, child, fallbackType)...)
			continue
		}
		out = append(out, model.Field{
			Name:     path,
			Type:     CoarsenToFallback(DetectType(v), fallbackType),
			Index:    true,
			Optional: true,
		})
	}
	return out
}
