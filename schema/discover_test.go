package schema

import (
	"testing"

	"github.com/antflydb/collectioncore/model"
)

func TestDetectNewFieldsSkipsIDAndKnownFields(t *testing.T) {
	s := model.NewSchema([]model.Field{{Name: "title", Type: model.FieldString}})
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"id": "1", "title": "known"}, s, "", false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 0 {
		t.Errorf("added = %#v, want none: id and title are already accounted for", added)
	}
}

func TestDetectNewFieldsNoFallbackDropsUndeclared(t *testing.T) {
	s := model.NewSchema(nil)
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"mystery": "value"}, s, "", false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 0 {
		t.Errorf("added = %#v, want none: no fallback type configured", added)
	}
}

func TestDetectNewFieldsFallbackType(t *testing.T) {
	s := model.NewSchema(nil)
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"count": float64(3)}, s, model.FieldStringWildcard, false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 1 || added[0].Name != "count" || added[0].Type != model.FieldString {
		t.Fatalf("added = %#v, want one string field named count", added)
	}
	if !added[0].Optional || !added[0].Index {
		t.Errorf("undeclared fallback fields should be optional and indexed, got %+v", added[0])
	}
}

func TestDetectNewFieldsMatchesDynamicPattern(t *testing.T) {
	s := model.NewSchema([]model.Field{
		{NamePattern: `attr_.*`, Type: model.FieldAuto, Index: true, Optional: true},
	})
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"attr_color": "red"}, s, "", false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("added = %#v, want one matched field", added)
	}
	f := added[0]
	if f.Name != "attr_color" || f.Type != model.FieldString || f.IsDynamic() {
		t.Errorf("expanded field = %+v, want a concrete string field named attr_color", f)
	}
}

func TestDetectNewFieldsDynamicPatternCoarsesToWildcardFallback(t *testing.T) {
	s := model.NewSchema([]model.Field{
		{NamePattern: `attr_.*`, Type: model.FieldStringWildcard, Index: true, Optional: true},
	})
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"attr_count": float64(3)}, s, "", false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 1 || added[0].Type != model.FieldString {
		t.Fatalf("added = %#v, want a string field coarsened from the wildcard prototype", added)
	}
}

func TestDetectNewFieldsFirstMatchingPatternWins(t *testing.T) {
	s := model.NewSchema([]model.Field{
		{NamePattern: `attr_.*`, Type: model.FieldString, Index: true, Optional: true},
		{NamePattern: `.*`, Type: model.FieldInt64, Index: true, Optional: true},
	})
	d := NewDiscoverer()

	added, err := d.DetectNewFields(model.Document{"attr_x": "v"}, s, "", false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 1 || added[0].Type != model.FieldString {
		t.Fatalf("added = %#v, want the first declared pattern (string) to win over the catch-all", added)
	}
}

func TestDetectNewFieldsNestedObjectWithLeafFlattening(t *testing.T) {
	s := model.NewSchema(nil)
	d := NewDiscoverer()

	doc := model.Document{"address": map[string]any{"city": "Springfield", "zip": "00000"}}
	added, err := d.DetectNewFields(doc, s, model.FieldStringWildcard, true)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}

	byName := make(map[string]model.Field, len(added))
	for _, f := range added {
		byName[f.Name] = f
	}
	top, ok := byName["address"]
	if !ok || !top.Nested || top.Type != model.FieldObject {
		t.Fatalf("expected a nested object field named address, got %#v", added)
	}
	if _, ok := byName["address.city"]; !ok {
		t.Errorf("expected a flattened leaf field address.city, got %#v", added)
	}
	if _, ok := byName["address.zip"]; !ok {
		t.Errorf("expected a flattened leaf field address.zip, got %#v", added)
	}
}

func TestDetectNewFieldsNestedObjectWithoutLeafFlattening(t *testing.T) {
	s := model.NewSchema(nil)
	d := NewDiscoverer()

	doc := model.Document{"address": map[string]any{"city": "Springfield"}}
	added, err := d.DetectNewFields(doc, s, model.FieldStringWildcard, false)
	if err != nil {
		t.Fatalf("DetectNewFields() error = %v", err)
	}
	if len(added) != 1 || added[0].Nested {
		t.Fatalf("added = %#v, want a single non-nested object field", added)
	}
}

func TestDetectNewFieldsInvalidPatternErrors(t *testing.T) {
	s := model.NewSchema([]model.Field{
		{NamePattern: `attr_(`, Type: model.FieldAuto, Index: true, Optional: true},
	})
	d := NewDiscoverer()

	if _, err := d.DetectNewFields(model.Document{"attr_x": "v"}, s, "", false); err == nil {
		t.Fatal("expected an error for an invalid dynamic field pattern")
	}
}
