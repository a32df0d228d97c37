package document

import (
	"errors"
	"testing"

	"github.com/antflydb/collectioncore/model"
)

type fakeLookup struct {
	bySeqID map[any][]uint32
	err     error
}

func (f fakeLookup) FilterEquals(collection, field string, value any) ([]uint32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySeqID[value], nil
}

func TestAddReferenceHelperFieldsScalar(t *testing.T) {
	lookup := fakeLookup{bySeqID: map[any][]uint32{"author-1": {7}}}
	targets := []ReferenceTarget{{FieldName: "author_id", TargetCollection: "authors", TargetField: "id"}}

	helpers, err := AddReferenceHelperFields(model.Document{"author_id": "author-1"}, targets, lookup)
	if err != nil {
		t.Fatalf("AddReferenceHelperFields() error = %v", err)
	}
	if got := helpers["author_id_sequence_id"]; got != uint32(7) {
		t.Errorf("author_id_sequence_id = %v, want 7", got)
	}
}

func TestAddReferenceHelperFieldsScalarRequiresExactlyOneMatch(t *testing.T) {
	targets := []ReferenceTarget{{FieldName: "author_id", TargetCollection: "authors", TargetField: "id"}}

	t.Run("no match", func(t *testing.T) {
		lookup := fakeLookup{bySeqID: map[any][]uint32{}}
		if _, err := AddReferenceHelperFields(model.Document{"author_id": "missing"}, targets, lookup); err == nil {
			t.Fatal("expected an error when no document matches")
		}
	})

	t.Run("ambiguous match", func(t *testing.T) {
		lookup := fakeLookup{bySeqID: map[any][]uint32{"dup": {1, 2}}}
		if _, err := AddReferenceHelperFields(model.Document{"author_id": "dup"}, targets, lookup); err == nil {
			t.Fatal("expected an error when more than one document matches")
		}
	})
}

func TestAddReferenceHelperFieldsOptionalAbsent(t *testing.T) {
	targets := []ReferenceTarget{{FieldName: "author_id", TargetCollection: "authors", TargetField: "id", Optional: true}}

	helpers, err := AddReferenceHelperFields(model.Document{}, targets, fakeLookup{})
	if err != nil {
		t.Fatalf("AddReferenceHelperFields() error = %v", err)
	}
	if _, ok := helpers["author_id_sequence_id"]; ok {
		t.Errorf("helper should be absent for an optional, unset reference")
	}
}

func TestAddReferenceHelperFieldsRequiredAbsent(t *testing.T) {
	targets := []ReferenceTarget{{FieldName: "author_id", TargetCollection: "authors", TargetField: "id"}}

	if _, err := AddReferenceHelperFields(model.Document{}, targets, fakeLookup{}); err == nil {
		t.Fatal("expected an error for a required reference field with no value")
	}
}

func TestAddReferenceHelperFieldsArray(t *testing.T) {
	lookup := fakeLookup{bySeqID: map[any][]uint32{"t1": {1}, "t2": {2, 3}}}
	targets := []ReferenceTarget{{FieldName: "tag_ids", TargetCollection: "tags", TargetField: "id", IsArray: true}}

	helpers, err := AddReferenceHelperFields(model.Document{"tag_ids": []any{"t1", "t2"}}, targets, lookup)
	if err != nil {
		t.Fatalf("AddReferenceHelperFields() error = %v", err)
	}
	got, ok := helpers["tag_ids_sequence_id"].([]uint32)
	if !ok || len(got) != 3 {
		t.Fatalf("tag_ids_sequence_id = %#v, want 3 ids", helpers["tag_ids_sequence_id"])
	}
}

func TestAddReferenceHelperFieldsObjectArray(t *testing.T) {
	lookup := fakeLookup{bySeqID: map[any][]uint32{"a1": {10}, "a2": {20}}}
	targets := []ReferenceTarget{{FieldName: "authors", TargetCollection: "people", TargetField: "id", IsObjectArray: true}}

	doc := model.Document{"authors": []any{
		map[string]any{"id": "a1"},
		map[string]any{"id": "a2"},
	}}
	helpers, err := AddReferenceHelperFields(doc, targets, lookup)
	if err != nil {
		t.Fatalf("AddReferenceHelperFields() error = %v", err)
	}
	pairs, ok := helpers["authors_sequence_id"].([][2]uint32)
	if !ok || len(pairs) != 2 {
		t.Fatalf("authors_sequence_id = %#v, want 2 [object_index, seq_id] pairs", helpers["authors_sequence_id"])
	}
	if pairs[0] != ([2]uint32{0, 10}) || pairs[1] != ([2]uint32{1, 20}) {
		t.Errorf("pairs = %v, want [[0 10] [1 20]]", pairs)
	}
}

func TestAddReferenceHelperFieldsPropagatesLookupError(t *testing.T) {
	lookup := fakeLookup{err: errors.New("boom")}
	targets := []ReferenceTarget{{FieldName: "author_id", TargetCollection: "authors", TargetField: "id"}}

	if _, err := AddReferenceHelperFields(model.Document{"author_id": "x"}, targets, lookup); err == nil {
		t.Fatal("expected lookup error to propagate")
	}
}
