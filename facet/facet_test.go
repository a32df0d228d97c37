package facet

import "testing"

type fakeValues struct {
	byID map[uint32][]string
}

func (f fakeValues) Values(seqID uint32, field string) []string {
	return f.byID[seqID]
}

func TestComputeCountFacet(t *testing.T) {
	values := fakeValues{byID: map[uint32][]string{
		1: {"Levis"}, 2: {"Levis"}, 3: {"Spykar"},
	}}
	res := Compute(Spec{Field: "brand", MaxValues: 10}, []uint32{1, 2, 3}, values)
	if len(res.Counts) != 2 {
		t.Fatalf("got %+v", res.Counts)
	}
	if res.Counts[0].Value != "Levis" || res.Counts[0].Count != 2 {
		t.Fatalf("expected Levis first with count 2, got %+v", res.Counts[0])
	}
}

func TestComputeRangeFacet(t *testing.T) {
	values := fakeValues{byID: map[uint32][]string{1: {"10"}, 2: {"60"}, 3: {"30"}}}
	spec := Spec{
		Field: "points", Kind: KindRange,
		Ranges: []RangeBucket{
			{Label: "low", Lo: 0, Hi: 50, HasHi: true},
			{Label: "high", Lo: 50},
		},
	}
	res := Compute(spec, []uint32{1, 2, 3}, values)
	counts := map[string]int{}
	for _, c := range res.Counts {
		counts[c.Value] = c.Count
	}
	if counts["low"] != 2 || counts["high"] != 1 {
		t.Fatalf("got %+v", counts)
	}
}

func TestComputeMaxValuesCap(t *testing.T) {
	values := fakeValues{byID: map[uint32][]string{1: {"a"}, 2: {"b"}, 3: {"c"}}}
	res := Compute(Spec{Field: "x", MaxValues: 2}, []uint32{1, 2, 3}, values)
	if len(res.Counts) != 2 {
		t.Fatalf("expected capped at 2, got %d", len(res.Counts))
	}
}

func TestParentLookupNestedArray(t *testing.T) {
	doc := map[string]any{
		"tags": []any{
			map[string]any{"name": "red"},
			map[string]any{"name": "blue"},
		},
	}
	parent, ok := ParentLookup(doc, "tags.name", "blue")
	if !ok {
		t.Fatal("expected parent found")
	}
	if parent["name"] != "blue" {
		t.Fatalf("got %+v", parent)
	}
}

func TestSortAlpha(t *testing.T) {
	values := fakeValues{byID: map[uint32][]string{1: {"b"}, 2: {"a"}}}
	res := Compute(Spec{Field: "x", SortMode: SortAlpha}, []uint32{1, 2}, values)
	if res.Counts[0].Value != "a" {
		t.Fatalf("got %+v", res.Counts)
	}
}
