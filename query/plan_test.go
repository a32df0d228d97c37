package query

import (
	"testing"

	"github.com/antflydb/collectioncore/model"
)

func testSchema() *model.Schema {
	return model.NewSchema([]model.Field{
		{Name: "title", Type: model.FieldString, Index: true},
		{Name: "points", Type: model.FieldInt32, Index: true, Sort: true},
		{Name: "brand", Type: model.FieldString, Index: true, Facet: true},
	})
}

func TestResolveDefaultSort(t *testing.T) {
	p, err := Resolve(Request{Q: "denim", QueryBy: []string{"title"}}, testSchema(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.SortFields) == 0 || p.SortFields[0].Kind != model.SortTextMatch {
		t.Fatalf("expected text_match default first, got %+v", p.SortFields)
	}
}

func TestResolveExplicitSort(t *testing.T) {
	p, err := Resolve(Request{Q: "denim", QueryBy: []string{"title"}, SortBy: []string{"points:desc"}}, testSchema(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.SortFields) != 1 || p.SortFields[0].Field != "points" {
		t.Fatalf("got %+v", p.SortFields)
	}
}

func TestResolveTooManySortClausesErrors(t *testing.T) {
	_, err := Resolve(Request{Q: "x", QueryBy: []string{"title"}, SortBy: []string{"points:desc", "points:asc", "points:desc", "points:asc"}}, testSchema(), nil, nil)
	if err == nil {
		t.Fatal("expected error for > 3 sort clauses")
	}
}

func TestResolveUnknownQueryByField(t *testing.T) {
	_, err := Resolve(Request{Q: "x", QueryBy: []string{"nope"}}, testSchema(), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown query_by field")
	}
}

func TestResolvePaginationPageWins(t *testing.T) {
	p, err := Resolve(Request{Q: "*", Page: 2, PerPage: 10, Offset: 999}, testSchema(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Offset != 10 {
		t.Fatalf("expected page to win and offset=10, got %d", p.Offset)
	}
}

func TestResolvePaginationPastLimitHits(t *testing.T) {
	_, err := Resolve(Request{Q: "*", Page: 5, PerPage: 10, LimitHits: 20}, testSchema(), nil, nil)
	if err == nil {
		t.Fatal("expected 422 for pagination past limit_hits")
	}
}

func TestResolveFilterByUnknownField(t *testing.T) {
	_, err := Resolve(Request{Q: "*", FilterBy: "nope:=1"}, testSchema(), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown filter_by field")
	}
}

func TestResolveWildcard(t *testing.T) {
	p, err := Resolve(Request{Q: "*"}, testSchema(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Wildcard {
		t.Fatal("expected wildcard plan")
	}
	if len(p.SearchPlan.Tokens) != 0 {
		t.Fatalf("expected no tokens for wildcard, got %v", p.SearchPlan.Tokens)
	}
}
