package document

import (
	"reflect"
	"testing"

	"github.com/antflydb/collectioncore/model"
)

func TestFlattenNestedObject(t *testing.T) {
	doc := model.Document{
		"title": "a book",
		"address": map[string]any{
			"city": "Springfield",
			"zip":  "00000",
		},
	}
	flat := Flatten(doc)

	if flat.Flat["title"] != "a book" {
		t.Errorf("title = %v, want %q", flat.Flat["title"], "a book")
	}
	if flat.Flat["address.city"] != "Springfield" {
		t.Errorf("address.city = %v, want %q", flat.Flat["address.city"], "Springfield")
	}
	if flat.Flat["address.zip"] != "00000" {
		t.Errorf("address.zip = %v, want %q", flat.Flat["address.zip"], "00000")
	}
	if flat.Original["title"] != "a book" {
		t.Errorf("Original should preserve the nested structure unchanged")
	}
}

func TestFlattenObjectArrayProducesPerLeafArrays(t *testing.T) {
	doc := model.Document{
		"tags": []any{
			map[string]any{"name": "a", "weight": 1.0},
			map[string]any{"name": "b", "weight": 2.0},
		},
	}
	flat := Flatten(doc)

	names, ok := flat.Flat["tags.name"].([]any)
	if !ok || !reflect.DeepEqual(names, []any{"a", "b"}) {
		t.Errorf("tags.name = %#v, want [a b]", flat.Flat["tags.name"])
	}
	weights, ok := flat.Flat["tags.weight"].([]any)
	if !ok || !reflect.DeepEqual(weights, []any{1.0, 2.0}) {
		t.Errorf("tags.weight = %#v, want [1 2]", flat.Flat["tags.weight"])
	}
	if _, ok := flat.Flat["tags"].([]any); !ok {
		t.Errorf("tags itself should still be present as the original array")
	}
}

func TestFlattenPlainArrayIsLeftAsIs(t *testing.T) {
	doc := model.Document{"scores": []any{1.0, 2.0, 3.0}}
	flat := Flatten(doc)

	scores, ok := flat.Flat["scores"].([]any)
	if !ok || len(scores) != 3 {
		t.Errorf("scores = %#v, want [1 2 3]", flat.Flat["scores"])
	}
}

func TestFlattenEmptyDocument(t *testing.T) {
	flat := Flatten(model.Document{})
	if len(flat.Flat) != 0 {
		t.Errorf("Flat = %#v, want empty", flat.Flat)
	}
}
