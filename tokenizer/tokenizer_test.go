package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	cfg := Config{}
	toks := Tokenize("Denim Jeans!", cfg)
	var got []string
	for _, tok := range toks {
		got = append(got, tok.Text)
	}
	want := []string{"denim", "jeans"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTokenizeKeepsSymbolsToIndex(t *testing.T) {
	cfg := Config{SymbolsToIndex: map[rune]bool{'+': true}}
	toks := Tokenize("c++ programming", cfg)
	if len(toks) != 2 || toks[0].Text != "c++" {
		t.Fatalf("got %v", toks)
	}
}

func TestDropStopwords(t *testing.T) {
	cfg := Config{Stopwords: map[string]bool{"the": true}}
	toks := Tokenize("the quick fox", cfg)
	toks = DropStopwords(toks, cfg)
	if len(toks) != 2 || toks[0].Text != "quick" {
		t.Fatalf("got %v", toks)
	}
}

func TestParseQueryTermsPhraseAndExclude(t *testing.T) {
	terms := ParseQueryTerms(`"denim jeans" -jacket blue`)
	if len(terms) != 3 {
		t.Fatalf("got %d terms: %+v", len(terms), terms)
	}
	if terms[0].Text != "denim jeans" || !terms[0].Phrase {
		t.Fatalf("term0 = %+v", terms[0])
	}
	if terms[1].Text != "jacket" || !terms[1].Excluded {
		t.Fatalf("term1 = %+v", terms[1])
	}
	if terms[2].Text != "blue" || terms[2].Excluded {
		t.Fatalf("term2 = %+v", terms[2])
	}
}

func TestIsWildcard(t *testing.T) {
	if !IsWildcard(" * ") {
		t.Fatal("expected wildcard")
	}
	if IsWildcard("*foo") {
		t.Fatal("did not expect wildcard")
	}
}
