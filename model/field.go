// Package model holds the data types shared across the collection core:
// field descriptors, documents, overrides, synonyms, and the handful of
// small value types the query/search/rank/assemble pipeline passes
// between packages. Keeping these in one leaf package avoids import
// cycles between schema, document, query, search, and rank.
package model

// FieldType enumerates the scalar/array/object field kinds spec section 3
// names. "Auto" and "StringWildcard" are only valid as dynamic-field
// prototype types, never as a concrete field's resolved type.
type FieldType string

const (
	FieldString          FieldType = "string"
	FieldInt32           FieldType = "int32"
	FieldInt64           FieldType = "int64"
	FieldFloat           FieldType = "float"
	FieldBool            FieldType = "bool"
	FieldGeopoint        FieldType = "geopoint"
	FieldObject          FieldType = "object"
	FieldStringArray     FieldType = "string[]"
	FieldInt32Array      FieldType = "int32[]"
	FieldInt64Array      FieldType = "int64[]"
	FieldFloatArray      FieldType = "float[]"
	FieldBoolArray       FieldType = "bool[]"
	FieldObjectArray     FieldType = "object[]"
	FieldFloatVector     FieldType = "float[]#vector" // float[] with a fixed "num_dim"
	FieldAuto            FieldType = "auto"
	FieldStringWildcard  FieldType = "string*"
)

// IsArray reports whether t is one of the array-shaped field types.
func (t FieldType) IsArray() bool {
	switch t {
	case FieldStringArray, FieldInt32Array, FieldInt64Array, FieldFloatArray, FieldBoolArray, FieldObjectArray, FieldFloatVector:
		return true
	default:
		return false
	}
}

// EmbedConfig describes an embed.from auto-embedding field.
type EmbedConfig struct {
	From        []string `json:"from"`
	ModelConfig map[string]any `json:"model_config,omitempty"`
}

// Field is a single field descriptor in a Schema, spec section 3.
type Field struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Index        bool      `json:"index"`
	Facet        bool      `json:"facet"`
	Sort         bool      `json:"sort"`
	Optional     bool      `json:"optional"`
	Infix        bool      `json:"infix"`
	Stem         bool      `json:"stem"`
	Store        bool      `json:"store"`
	Nested       bool      `json:"nested"`
	RangeIndex   bool      `json:"range_index"`
	Locale       string    `json:"locale,omitempty"`
	Embed        *EmbedConfig `json:"embed,omitempty"`
	VecDist      string    `json:"vec_dist,omitempty"`
	NumDim       int       `json:"num_dim,omitempty"`
	Reference    string    `json:"reference,omitempty"` // "coll.field"

	// Dynamic field prototypes carry a name pattern instead of a fixed Name.
	// A concrete field expanded from a dynamic prototype has both NamePattern
	// (inherited, for provenance) and a concrete Name.
	NamePattern string `json:"name_pattern,omitempty"`
}

// IsDynamic reports whether f is a dynamic-field prototype rather than a
// concrete, already-expanded field.
func (f Field) IsDynamic() bool {
	return f.NamePattern != ""
}

// Schema is the ordered field map a Collection validates documents
// against. Order matters for deterministic serialization of the catalog
// record and for "first matching dynamic pattern wins" semantics.
type Schema struct {
	Fields []Field
	byName map[string]int
}

// NewSchema builds a Schema from an ordered field list.
func NewSchema(fields []Field) *Schema {
	s := &Schema{Fields: fields}
	s.reindex()
	return s
}

func (s *Schema) reindex() {
	s.byName = make(map[string]int, len(s.Fields))
	for i, f := range s.Fields {
		if !f.IsDynamic() {
			s.byName[f.Name] = i
		}
	}
}

// Get looks up a concrete field by name.
func (s *Schema) Get(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Add appends a field and keeps the lookup index current. Used both by
// initial schema construction and by dynamic-field discovery/alter.
func (s *Schema) Add(f Field) {
	s.Fields = append(s.Fields, f)
	if !f.IsDynamic() {
		s.byName[f.Name] = len(s.Fields) - 1
	}
}

// Remove drops a concrete field by name, returning whether it was present.
func (s *Schema) Remove(name string) bool {
	i, ok := s.byName[name]
	if !ok {
		return false
	}
	s.Fields = append(s.Fields[:i], s.Fields[i+1:]...)
	s.reindex()
	return true
}

// DynamicFields returns the dynamic-field prototypes in declaration order,
// used by detect_new_fields to find the first matching pattern.
func (s *Schema) DynamicFields() []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.IsDynamic() {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep-enough copy for alter's dry-run validation, which
// must not mutate the live schema until validation succeeds.
func (s *Schema) Clone() *Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	return NewSchema(fields)
}
