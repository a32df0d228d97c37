// Package synonym implements synonym-set expansion of query tokens,
// spec section 3's Synonym data model and spec section 4.3's "expand
// synonyms" planning step.
package synonym

import "strings"

// Synonym mirrors model.Synonym's shape locally to avoid this leaf
// package importing model just for a struct it only reads by value;
// callers construct it from model.Synonym fields directly.
type Synonym struct {
	ID       string
	Root     string // empty => all Synonyms are mutually interchangeable
	Synonyms []string
}

// Index resolves a token (or multi-word phrase) to its synonym
// expansions. Multi-word synonym entries are matched as a whole phrase
// against a run of consecutive tokens, spec section 3: "synonyms[]" can
// itself be multi-word.
type Index struct {
	// byTerm maps a lowercased term (single word or a space-joined
	// phrase) to the set of expansions substitutable for it.
	byTerm map[string][][]string
	// maxPhraseLen is the longest synonym entry's token count, so
	// Expand knows how many leading tokens of a query to try matching.
	maxPhraseLen int
}

// NewIndex builds an Index from a set of synonym rules.
func NewIndex(synonyms []Synonym) *Index {
	idx := &Index{byTerm: make(map[string][][]string), maxPhraseLen: 1}

	add := func(term string, expansion []string) {
		key := normalizePhrase(term)
		idx.byTerm[key] = append(idx.byTerm[key], expansion)
		if n := len(strings.Fields(key)); n > idx.maxPhraseLen {
			idx.maxPhraseLen = n
		}
	}

	for _, s := range synonyms {
		if s.Root != "" {
			// one-way: each synonym expands to root.
			rootTokens := strings.Fields(normalizePhrase(s.Root))
			for _, syn := range s.Synonyms {
				add(syn, rootTokens)
			}
			continue
		}
		// mutual: every entry expands to every other entry, not to
		// itself.
		for i, syn := range s.Synonyms {
			for j, other := range s.Synonyms {
				if i == j {
					continue
				}
				add(syn, strings.Fields(normalizePhrase(other)))
			}
		}
	}
	return idx
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Expand attempts to match a synonym phrase starting at tokens[i],
// trying the longest phrase length down to 1. It returns the matched
// expansions and the number of source tokens consumed, or (nil, 0) if no
// synonym starts at i.
func (idx *Index) Expand(tokens []string, i int) (expansions [][]string, consumed int) {
	if idx == nil {
		return nil, 0
	}
	maxLen := idx.maxPhraseLen
	if i+maxLen > len(tokens) {
		maxLen = len(tokens) - i
	}
	for n := maxLen; n >= 1; n-- {
		phrase := strings.ToLower(strings.Join(tokens[i:i+n], " "))
		if exp, ok := idx.byTerm[phrase]; ok {
			return exp, n
		}
	}
	return nil, 0
}

// ExpandAll walks tokens left to right, replacing each synonym match
// with its first expansion; any further expansions of the same match are
// not used. It never loops: a token consumed by a match is not
// reconsidered for further matching against the substituted text.
func (idx *Index) ExpandAll(tokens []string) []string {
	if idx == nil {
		return tokens
	}
	var out []string
	for i := 0; i < len(tokens); {
		exp, n := idx.Expand(tokens, i)
		if n == 0 {
			out = append(out, tokens[i])
			i++
			continue
		}
		out = append(out, exp[0]...)
		i += n
	}
	return out
}
