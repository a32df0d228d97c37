package synonym

import (
	"reflect"
	"testing"
)

func TestExpandAllRooted(t *testing.T) {
	idx := NewIndex([]Synonym{{Root: "smartphone", Synonyms: []string{"cell phone", "mobile"}}})
	got := idx.ExpandAll([]string{"buy", "cell", "phone", "now"})
	want := []string{"buy", "smartphone", "now"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExpandAllMutual(t *testing.T) {
	idx := NewIndex([]Synonym{{Synonyms: []string{"couch", "sofa"}}})
	got := idx.ExpandAll([]string{"sofa"})
	if len(got) != 1 || got[0] != "couch" {
		t.Fatalf("got %v", got)
	}
}

func TestExpandNoMatch(t *testing.T) {
	idx := NewIndex([]Synonym{{Root: "tv", Synonyms: []string{"television"}}})
	got := idx.ExpandAll([]string{"red", "shoes"})
	want := []string{"red", "shoes"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
