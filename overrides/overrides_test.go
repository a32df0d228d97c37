package overrides

import (
	"testing"

	"github.com/antflydb/collectioncore/model"
)

func TestMatchingUntaggedOnly(t *testing.T) {
	s := NewSet([]model.Override{
		{ID: "a", Rule: model.OverrideRule{Query: "shoes", Match: model.MatchExact}},
		{ID: "b", Rule: model.OverrideRule{Query: "shoes", Match: model.MatchExact, Tags: []string{"sale"}}},
	})

	got := s.Matching("shoes", nil, 0)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only untagged override to match, got %+v", got)
	}

	got = s.Matching("shoes", []string{"sale"}, 0)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected tagged override to match with tag, got %+v", got)
	}
}

func TestMatchingContainsAndEffectiveWindow(t *testing.T) {
	s := NewSet([]model.Override{
		{ID: "a", Rule: model.OverrideRule{Query: "shoe", Match: model.MatchContains}, EffectiveFromTS: 100, EffectiveToTS: 200},
	})
	if got := s.Matching("running shoes", nil, 50); len(got) != 0 {
		t.Fatalf("expected no match before effective window, got %+v", got)
	}
	if got := s.Matching("running shoes", nil, 150); len(got) != 1 {
		t.Fatalf("expected match within effective window, got %+v", got)
	}
}

func TestApplyStopsProcessing(t *testing.T) {
	matching := []model.Override{
		{ID: "a", SortBy: "price:asc", StopProcessing: true},
		{ID: "b", SortBy: "price:desc"},
	}
	eff := Apply(matching)
	if eff.SortBy != "price:asc" {
		t.Fatalf("expected first override's sort_by to win, got %q", eff.SortBy)
	}
}

func TestResolvePinsPrecedence(t *testing.T) {
	eff := Effect{
		AddHits:  []model.Hit{{DocID: "2", Position: 1}},
		DropHits: []model.Hit{{DocID: "3"}},
	}
	pins, hidden := ResolvePins(eff, []model.Hit{{DocID: "3", Position: 1}}, []model.Hit{{DocID: "2"}})

	if hidden["2"] != true {
		t.Fatalf("expected query-time hide to win over override add, hidden=%+v", hidden)
	}
	if hidden["3"] {
		t.Fatalf("expected query-time pin to win over override drop")
	}
	found := false
	for _, p := range pins {
		if p.DocID == "3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected doc 3 pinned, got %+v", pins)
	}
}

func TestSetPutReplacesNotDuplicates(t *testing.T) {
	s := NewSet(nil)
	s.Put(model.Override{ID: "a", SortBy: "x"})
	s.Put(model.Override{ID: "a", SortBy: "y"})
	if len(s.order) != 1 {
		t.Fatalf("expected single entry in order, got %v", s.order)
	}
	o, _ := s.Get("a")
	if o.SortBy != "y" {
		t.Fatalf("expected replace, got %+v", o)
	}
}
