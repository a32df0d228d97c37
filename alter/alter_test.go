package alter

import (
	"context"
	"testing"

	"github.com/antflydb/collectioncore/model"
)

type memSource struct {
	docs map[uint32]model.Document
}

func (m memSource) ForEach(ctx context.Context, fn func(seqID uint32, doc model.Document) error) error {
	for id, doc := range m.docs {
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return nil
}

func TestDecomposePlanSplitsReindex(t *testing.T) {
	changes := []FieldChange{
		{Field: model.Field{Name: "brand"}, Drop: true},
		{Field: model.Field{Name: "brand", Type: model.FieldString}},
		{Field: model.Field{Name: "color", Type: model.FieldString}},
		{Field: model.Field{Name: "oldfield"}, Drop: true},
	}
	p, err := DecomposePlan(changes)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.ReindexFields) != 1 || p.ReindexFields[0].Name != "brand" {
		t.Fatalf("expected brand reindexed, got %+v", p.ReindexFields)
	}
	if len(p.AdditionFields) != 1 || p.AdditionFields[0].Name != "color" {
		t.Fatalf("expected color added, got %+v", p.AdditionFields)
	}
	if len(p.DelFields) != 1 || p.DelFields[0] != "oldfield" {
		t.Fatalf("expected oldfield dropped, got %+v", p.DelFields)
	}
}

func TestDecomposePlanRejectsIDField(t *testing.T) {
	_, err := DecomposePlan([]FieldChange{{Field: model.Field{Name: "id"}}})
	if err == nil {
		t.Fatal("expected error for immutable id field")
	}
}

func TestDecomposePlanRejectsDuplicateFallback(t *testing.T) {
	changes := []FieldChange{
		{Field: model.Field{Name: ".*", Type: model.FieldString}},
		{Field: model.Field{Name: ".*", Type: model.FieldInt64}},
	}
	_, err := DecomposePlan(changes)
	if err == nil {
		t.Fatal("expected error for duplicate fallback entry")
	}
}

func TestApplyAddsFieldsAndStripsDeleted(t *testing.T) {
	s := model.NewSchema([]model.Field{{Name: "title", Type: model.FieldString}})

	src := memSource{docs: map[uint32]model.Document{
		1: {"title": "shoe", "legacy": "x"},
	}}

	plan := Plan{
		DelFields:      []string{"legacy"},
		AdditionFields: []model.Field{{Name: "color", Type: model.FieldString, Optional: true}},
	}

	var reindexed []uint32
	err := Apply(context.Background(), src, s, plan, 1, func(seqID uint32, doc model.Document) error {
		reindexed = append(reindexed, seqID)
		if _, ok := doc["legacy"]; ok {
			t.Fatal("expected legacy field stripped before reindex")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reindexed) != 1 {
		t.Fatalf("expected 1 document reindexed, got %d", len(reindexed))
	}
	if _, ok := s.Get("color"); !ok {
		t.Fatal("expected color field added to schema")
	}
}

func TestCleanupOrphanedEmbedSources(t *testing.T) {
	s := model.NewSchema([]model.Field{{Name: "title", Type: model.FieldString}})
	s.Add(model.Field{
		Name: "vec", Type: model.FieldFloatVector,
		Embed: &model.EmbedConfig{From: []string{"title", "deleted_field"}},
	})
	CleanupOrphanedEmbedSources(s)
	f, _ := s.Get("vec")
	if len(f.Embed.From) != 1 || f.Embed.From[0] != "title" {
		t.Fatalf("expected orphaned source stripped, got %+v", f.Embed.From)
	}
}
