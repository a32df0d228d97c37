package collection

import (
	"context"
	"testing"

	"github.com/antflydb/collectioncore/alter"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/query"
	"github.com/antflydb/collectioncore/store"
)

// fakeEmbedder implements document.Embedder deterministically: the
// vector has one element, the source text's length, so tests can assert
// on it without a real embedding model.
type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(field model.Field, sourceText string) ([]float32, error) {
	f.calls++
	return []float32{float32(len(sourceText))}, nil
}

// fakeReranker implements rerank.Model with descending scores by
// position: the first prompt gets the highest score.
type fakeReranker struct{ calls int }

func (f *fakeReranker) Rerank(ctx context.Context, query string, prompts []string) ([]float32, error) {
	f.calls++
	scores := make([]float32, len(prompts))
	for i := range prompts {
		scores[i] = float32(len(prompts) - i)
	}
	return scores, nil
}

func (f *fakeReranker) Close() error { return nil }

// fakeRefLookup implements document.ReferenceLookup against a static
// value->seqID table.
type fakeRefLookup struct{ bySeqID map[any][]uint32 }

func (f fakeRefLookup) FilterEquals(collection, field string, value any) ([]uint32, error) {
	return f.bySeqID[value], nil
}

// memPostingList and fakeIndex mirror search/executor_test.go's stand-in
// for a real trie/posting-list InvertedIndex, rebuilt here from whatever
// AddOne/AddMany just wrote so Search has something to find.
type memPostingList []store.Posting

func (l memPostingList) Postings(ctx context.Context) func(func(store.Posting) bool) {
	return func(yield func(store.Posting) bool) {
		for _, p := range l {
			if !yield(p) {
				return
			}
		}
	}
}

func (l memPostingList) Size() int { return len(l) }

type fakeIndex struct {
	exact map[string]memPostingList
}

func newFakeIndex() *fakeIndex { return &fakeIndex{exact: make(map[string]memPostingList)} }

func (f *fakeIndex) put(field, token string, seqID uint32) {
	key := field + ":" + token
	f.exact[key] = append(f.exact[key], store.Posting{SeqID: seqID, Offsets: []uint16{0}})
}

func (f *fakeIndex) Lookup(ctx context.Context, field, token string) (store.PostingList, error) {
	pl, ok := f.exact[field+":"+token]
	if !ok {
		return nil, nil
	}
	return pl, nil
}

func (f *fakeIndex) LookupTypo(ctx context.Context, field, token string, maxTypos, maxCandidates int) ([]store.PostingList, error) {
	return nil, nil
}

func (f *fakeIndex) LookupPrefix(ctx context.Context, field, prefix string, maxCandidates int) ([]store.PostingList, error) {
	return nil, nil
}

func (f *fakeIndex) LookupInfix(ctx context.Context, field, infix string, maxCandidates int) ([]store.PostingList, error) {
	return nil, nil
}

type fakeFilter struct{ ids []uint32 }

func (f fakeFilter) Evaluate(ctx context.Context, expr string) ([]uint32, error) { return f.ids, nil }

func testSchema() *model.Schema {
	return model.NewSchema([]model.Field{
		{Name: "id", Type: model.FieldString},
		{Name: "title", Type: model.FieldString, Index: true, Store: true},
		{Name: "points", Type: model.FieldInt32, Sort: true, Facet: true, Store: true},
	})
}

func openTestCollection(t *testing.T) (*Collection, *fakeIndex) {
	t.Helper()
	idx := newFakeIndex()
	c, err := Open(context.Background(), "books", testSchema(), Config{
		Store:         store.NewMemStore(),
		InvertedIndex: idx,
		FilterEvaluator: fakeFilter{},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c, idx
}

func TestAddOneThenDocumentBySeqID(t *testing.T) {
	c, _ := openTestCollection(t)
	ctx := context.Background()

	res, err := c.AddOne(ctx, AddOneRequest{
		Doc:        model.Document{"id": "1", "title": "the quick fox", "points": float64(10)},
		Op:         model.OpEmplace,
		Dirty:      model.DirtyCoerceOrReject,
		ReturnDoc:  true,
	})
	if err != nil {
		t.Fatalf("AddOne() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("AddOne() result not successful: %+v", res.Error)
	}

	doc, found, err := c.DocumentBySeqID(res.SeqID)
	if err != nil || !found {
		t.Fatalf("DocumentBySeqID(%d) = %v, %v, %v", res.SeqID, doc, found, err)
	}
	if doc["title"] != "the quick fox" {
		t.Errorf("title = %v, want %q", doc["title"], "the quick fox")
	}
}

func TestAddManyDuplicateIDLastWriterWins(t *testing.T) {
	c, _ := openTestCollection(t)
	ctx := context.Background()

	res, err := c.AddMany(ctx, AddManyRequest{
		Lines: []model.Document{
			{"id": "1", "title": "first", "points": float64(1)},
			{"id": "1", "title": "second", "points": float64(2)},
		},
		Op: model.OpUpsert, Dirty: model.DirtyCoerceOrReject,
	})
	if err != nil {
		t.Fatalf("AddMany() error = %v", err)
	}
	if res.NumImported != 2 {
		t.Fatalf("NumImported = %d, want 2", res.NumImported)
	}

	r := idResolver{ctx: ctx, c: c}
	seqID, ok := r.SeqIDFor("1")
	if !ok {
		t.Fatalf("SeqIDFor(1) not found")
	}
	doc, found, err := c.DocumentBySeqID(seqID)
	if err != nil || !found {
		t.Fatalf("DocumentBySeqID(%d) = %v, %v, %v", seqID, doc, found, err)
	}
	if doc["title"] != "second" {
		t.Errorf("title = %v, want %q (last writer wins)", doc["title"], "second")
	}
	if c.numDocuments.Load() != 1 {
		t.Errorf("numDocuments = %d, want 1 (same id, not two)", c.numDocuments.Load())
	}
}

func TestSearchFindsIndexedDocument(t *testing.T) {
	c, idx := openTestCollection(t)
	ctx := context.Background()

	res, err := c.AddOne(ctx, AddOneRequest{
		Doc:   model.Document{"id": "1", "title": "the quick fox", "points": float64(10)},
		Op:    model.OpEmplace,
		Dirty: model.DirtyCoerceOrReject,
	})
	if err != nil || !res.Success {
		t.Fatalf("AddOne() = %+v, %v", res, err)
	}
	idx.put("title", "fox", res.SeqID)

	resp, err := c.Search(ctx, query.Request{
		Q: "fox", QueryBy: []string{"title"},
		Page: 1, PerPage: 10,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Found != 1 {
		t.Fatalf("Found = %d, want 1", resp.Found)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Document["id"] != "1" {
		t.Fatalf("Hits = %+v, want doc id 1", resp.Hits)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	c, _ := openTestCollection(t)
	ctx := context.Background()

	res, err := c.AddOne(ctx, AddOneRequest{
		Doc: model.Document{"id": "1", "title": "gone soon", "points": float64(1)},
		Op:  model.OpEmplace, Dirty: model.DirtyCoerceOrReject,
	})
	if err != nil || !res.Success {
		t.Fatalf("AddOne() = %+v, %v", res, err)
	}

	if err := c.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if c.numDocuments.Load() != 0 {
		t.Errorf("numDocuments = %d, want 0", c.numDocuments.Load())
	}
	if err := c.Delete(ctx, "1"); err == nil {
		t.Errorf("Delete() of already-deleted document should error")
	}
}

func TestAlterAddsOptionalField(t *testing.T) {
	c, _ := openTestCollection(t)
	ctx := context.Background()

	_, err := c.AddOne(ctx, AddOneRequest{
		Doc: model.Document{"id": "1", "title": "a book", "points": float64(5)},
		Op:  model.OpEmplace, Dirty: model.DirtyCoerceOrReject,
	})
	if err != nil {
		t.Fatalf("AddOne() error = %v", err)
	}

	changes := []alter.FieldChange{
		{Field: model.Field{Name: "rating", Type: model.FieldFloat, Optional: true, Store: true}},
	}
	err = c.Alter(ctx, changes, nil)
	if err != nil {
		t.Fatalf("Alter() error = %v", err)
	}

	s := c.Schema()
	if _, ok := s.Get("rating"); !ok {
		t.Errorf("schema missing added field %q", "rating")
	}
}

func TestAddOneEmbedsConfiguredField(t *testing.T) {
	idx := newFakeIndex()
	embedder := &fakeEmbedder{}
	schema := model.NewSchema([]model.Field{
		{Name: "id", Type: model.FieldString},
		{Name: "title", Type: model.FieldString, Store: true},
		{Name: "title_vec", Type: model.FieldFloatVector, NumDim: 1, Optional: true, Store: true,
			Embed: &model.EmbedConfig{From: []string{"title"}}},
	})
	c, err := Open(context.Background(), "books", schema, Config{
		Store: store.NewMemStore(), InvertedIndex: idx, Embedder: embedder,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	res, err := c.AddOne(context.Background(), AddOneRequest{
		Doc: model.Document{"id": "1", "title": "hello", "title_vec": []any{}},
		Op:  model.OpEmplace, Dirty: model.DirtyCoerceOrDrop, ReturnDoc: true,
	})
	if err != nil || !res.Success {
		t.Fatalf("AddOne() = %+v, %v", res, err)
	}
	if embedder.calls == 0 {
		t.Fatalf("embedder was never called")
	}
	vec, ok := res.Doc["title_vec"].([]any)
	if !ok || len(vec) != 1 {
		t.Fatalf("title_vec = %#v, want a 1-element embedded vector", res.Doc["title_vec"])
	}
}

func TestAddOneResolvesReferenceHelperField(t *testing.T) {
	idx := newFakeIndex()
	lookup := fakeRefLookup{bySeqID: map[any][]uint32{"author-1": {42}}}
	schema := model.NewSchema([]model.Field{
		{Name: "id", Type: model.FieldString},
		{Name: "author_id", Type: model.FieldString, Store: true, Reference: "authors.id"},
	})
	c, err := Open(context.Background(), "books", schema, Config{
		Store: store.NewMemStore(), InvertedIndex: idx, ReferenceLookup: lookup,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	res, err := c.AddOne(context.Background(), AddOneRequest{
		Doc: model.Document{"id": "1", "author_id": "author-1"},
		Op:  model.OpEmplace, Dirty: model.DirtyCoerceOrReject, ReturnDoc: true,
	})
	if err != nil || !res.Success {
		t.Fatalf("AddOne() = %+v, %v", res, err)
	}
	if got := res.Doc["author_id_sequence_id"]; got != uint32(42) {
		t.Errorf("author_id_sequence_id = %v, want 42", got)
	}
}

func TestAddOneRejectsUnconfiguredReferenceLookup(t *testing.T) {
	idx := newFakeIndex()
	schema := model.NewSchema([]model.Field{
		{Name: "id", Type: model.FieldString},
		{Name: "author_id", Type: model.FieldString, Store: true, Reference: "authors.id"},
	})
	c, err := Open(context.Background(), "books", schema, Config{Store: store.NewMemStore(), InvertedIndex: idx})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	_, err = c.AddOne(context.Background(), AddOneRequest{
		Doc: model.Document{"id": "1", "author_id": "author-1"},
		Op:  model.OpEmplace, Dirty: model.DirtyCoerceOrReject,
	})
	if err == nil {
		t.Fatalf("AddOne() with a reference field but no ReferenceLookup should error")
	}
}

func TestSearchAppliesReranker(t *testing.T) {
	idx := newFakeIndex()
	reranker := &fakeReranker{}
	c, err := Open(context.Background(), "books", testSchema(), Config{
		Store: store.NewMemStore(), InvertedIndex: idx, Reranker: reranker,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()

	for i, title := range []string{"alpha fox", "beta fox"} {
		res, err := c.AddOne(ctx, AddOneRequest{
			Doc:   model.Document{"id": title, "title": title, "points": float64(i)},
			Op:    model.OpEmplace, Dirty: model.DirtyCoerceOrReject,
		})
		if err != nil || !res.Success {
			t.Fatalf("AddOne(%q) = %+v, %v", title, res, err)
		}
		idx.put("title", "fox", res.SeqID)
	}

	resp, err := c.Search(ctx, query.Request{Q: "fox", QueryBy: []string{"title"}, Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if reranker.calls == 0 {
		t.Fatalf("reranker was never called")
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("Hits = %+v, want 2", resp.Hits)
	}
}
