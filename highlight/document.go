package highlight

import "strings"

// FieldSource supplies the leaves to match against for a given dotted
// field path, resolved by the caller from the query's expanded tokens
// and the index trie (store.InvertedIndex, an external collaborator).
type FieldSource interface {
	LeavesFor(field string) []Leaf
}

// V1Entry is one element of the legacy "highlights[]" array, spec
// section 4.7: "Emit both v1 (highlights[] with field/matched_tokens/
// snippet(s)/value(s)) and v2 (highlight nested shape mirroring the
// document)."
type V1Entry struct {
	Field         string   `json:"field"`
	MatchedTokens []string `json:"matched_tokens"`
	Snippet       string   `json:"snippet,omitempty"`
	Snippets      []string `json:"snippets,omitempty"` // populated instead of Snippet for a string-array field
	Value         string   `json:"value,omitempty"`
	Values        []string `json:"values,omitempty"`
}

// Document highlights every field in fields against doc, returning both
// the v1 list and the v2 nested shape, spec section 4.7.
func Document(doc map[string]any, fields []string, source FieldSource, cfg Config) ([]V1Entry, map[string]any) {
	var v1 []V1Entry
	v2 := make(map[string]any)

	for _, field := range fields {
		leaves := source.LeavesFor(field)
		if len(leaves) == 0 {
			continue
		}
		entry, nested, ok := highlightField(doc, strings.Split(field, "."), leaves, cfg)
		if !ok {
			continue
		}
		entry.Field = field
		v1 = append(v1, entry)
		mergeNested(v2, strings.Split(field, "."), nested)
	}

	return v1, v2
}

// highlightField descends doc along path, highlighting whichever leaf
// value it finds (string, string array, or array of objects recursed
// one level further), spec section 4.7: "For nested paths, descend
// recursively; for object arrays, iterate siblings ... exhaustively when
// the element is part of an is_arr_obj_ele path."
func highlightField(node map[string]any, path []string, leaves []Leaf, cfg Config) (V1Entry, any, bool) {
	if len(path) == 0 {
		return V1Entry{}, nil, false
	}
	v, ok := node[path[0]]
	if !ok {
		return V1Entry{}, nil, false
	}

	if len(path) == 1 {
		switch val := v.(type) {
		case string:
			r := Highlight(path[0], val, leaves, cfg)
			return V1Entry{MatchedTokens: r.MatchedTokens, Snippet: r.Snippet, Value: val}, r.Snippet, true
		case []any:
			var snippets, values, matched []string
			for _, elem := range val {
				s, ok := elem.(string)
				if !ok {
					continue
				}
				r := Highlight(path[0], s, leaves, cfg)
				snippets = append(snippets, r.Snippet)
				values = append(values, s)
				matched = append(matched, r.MatchedTokens...)
			}
			return V1Entry{MatchedTokens: dedupe(matched), Snippets: snippets, Values: values}, snippets, true
		}
		return V1Entry{}, nil, false
	}

	switch child := v.(type) {
	case map[string]any:
		return highlightField(child, path[1:], leaves, cfg)
	case []any:
		var matched []string
		var nestedSnippets []any
		for _, elem := range child {
			obj, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			entry, nested, ok := highlightField(obj, path[1:], leaves, cfg)
			if !ok {
				continue
			}
			matched = append(matched, entry.MatchedTokens...)
			nestedSnippets = append(nestedSnippets, nested)
		}
		return V1Entry{MatchedTokens: dedupe(matched)}, nestedSnippets, len(nestedSnippets) > 0
	}
	return V1Entry{}, nil, false
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// mergeNested writes value into v2 at the dotted path, building
// intermediate maps as needed, spec section 4.7's "v2 (highlight nested
// shape mirroring the document)".
func mergeNested(v2 map[string]any, path []string, value any) {
	node := v2
	for i, p := range path {
		if i == len(path)-1 {
			node[p] = value
			return
		}
		child, ok := node[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[p] = child
		}
		node = child
	}
}
