// Package highlight implements the highlighter, spec section 4.7:
// token-offset discovery, snippet windowing, safe tag wrapping, and
// nested-path/array-element highlighting.
package highlight

import (
	"strings"

	"github.com/antflydb/collectioncore/tokenizer"
)

// Leaf is one query-token's matchable form against the index trie: the
// token itself, or a typo/prefix expansion of it. Resolving these
// against the inverted index's trie is the external store.InvertedIndex
// collaborator's job (spec section 1); this package only consumes the
// already-resolved leaves.
type Leaf struct {
	Text       string
	Root       string // the original query token this leaf expands; equals Text for an exact match
	IsTypo     bool   // true if Text reached the field via typo correction rather than a literal prefix
}

// Span is a matched token's rune-offset range within the source text,
// [Start, End).
type Span struct {
	Start, End int
}

// FieldResult is one field's highlight outcome, spec section 4.7.
type FieldResult struct {
	Field          string
	MatchedTokens  []string
	Spans          []Span
	Snippet        string
	FullyHighlighted bool
}

// Config bundles the highlighter's tunables, spec section 4.3's table.
type Config struct {
	StartTag            string
	EndTag               string
	SnippetThreshold     int
	AffixNumTokens       int
	FullField            bool // true for a field in highlight_full_fields
	TokenizerConfig       tokenizer.Config
}

// Highlight runs spec section 4.7's per-field procedure: re-tokenize
// value, match against leaves, select a snippet window, and wrap matched
// spans with the configured tags.
func Highlight(field, value string, leaves []Leaf, cfg Config) FieldResult {
	tokens := tokenizer.Tokenize(value, cfg.TokenizerConfig)
	spans, matched := matchSpans(tokens, leaves)

	result := FieldResult{Field: field, Spans: spans, MatchedTokens: matched}

	if cfg.FullField || len(tokens) <= cfg.SnippetThreshold {
		result.Snippet = wrap(value, spans, cfg.StartTag, cfg.EndTag)
		result.FullyHighlighted = true
		return result
	}

	result.Snippet = snippetWindow(value, tokens, spans, cfg)
	return result
}

// matchSpans walks tokens left to right, recording a Span for each token
// that matches one of leaves, spec section 4.7:
//   - exact leaf match: highlight the whole token.
//   - prefix leaf match with a strictly shorter root: highlight only the
//     root-length prefix, UNLESS the unhighlighted suffix is <=2 chars
//     and the leaf is a typo expansion, in which case highlight the
//     whole token.
func matchSpans(tokens []tokenizer.Token, leaves []Leaf) ([]Span, []string) {
	var spans []Span
	var matchedSet = map[string]bool{}

	for _, tok := range tokens {
		leaf, ok := bestLeaf(tok.Text, leaves)
		if !ok {
			continue
		}
		runes := []rune(tok.Text)
		start := tok.Offset

		highlightLen := len(runes)
		if len(leaf.Root) > 0 && len(leaf.Root) < len(runes) {
			suffixLen := len(runes) - len([]rune(leaf.Root))
			if !(suffixLen <= 2 && leaf.IsTypo) {
				highlightLen = len([]rune(leaf.Root))
			}
		}

		spans = append(spans, Span{Start: start, End: start + highlightLen})
		matchedSet[leaf.Root] = true
	}

	matched := make([]string, 0, len(matchedSet))
	for m := range matchedSet {
		matched = append(matched, m)
	}
	return spans, matched
}

// bestLeaf finds the leaf that best explains tokenText: an exact match
// wins over a prefix match.
func bestLeaf(tokenText string, leaves []Leaf) (Leaf, bool) {
	var prefixMatch Leaf
	foundPrefix := false
	for _, l := range leaves {
		if l.Text == tokenText {
			return l, true
		}
		if strings.HasPrefix(tokenText, l.Text) && len(l.Text) > 0 {
			prefixMatch = l
			foundPrefix = true
		}
	}
	return prefixMatch, foundPrefix
}

// snippetWindow anchors on the first matched token and extends
// AffixNumTokens tokens on each side, capped by SnippetThreshold tokens
// overall, spec section 4.7.
func snippetWindow(value string, tokens []tokenizer.Token, spans []Span, cfg Config) string {
	if len(spans) == 0 || len(tokens) == 0 {
		return value
	}

	anchorIdx := tokenIndexForOffset(tokens, spans[0].Start)
	lo := anchorIdx - cfg.AffixNumTokens
	if lo < 0 {
		lo = 0
	}
	hi := anchorIdx + cfg.AffixNumTokens
	if hi >= len(tokens) {
		hi = len(tokens) - 1
	}
	for hi-lo+1 > cfg.SnippetThreshold && cfg.SnippetThreshold > 0 {
		if hi > anchorIdx {
			hi--
		} else if lo < anchorIdx {
			lo++
		} else {
			break
		}
	}

	runes := []rune(value)
	windowStart := tokens[lo].Offset
	windowEnd := len(runes)
	if hi+1 < len(tokens) {
		windowEnd = tokens[hi+1].Offset
	}
	windowStart, windowEnd = clampWindow(windowStart, windowEnd, len(runes))

	windowSpans := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start >= windowStart && s.End <= windowEnd {
			windowSpans = append(windowSpans, Span{Start: s.Start - windowStart, End: s.End - windowStart})
		}
	}
	return wrap(string(runes[windowStart:windowEnd]), windowSpans, cfg.StartTag, cfg.EndTag)
}

func clampWindow(start, end, total int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return start, end
}

func tokenIndexForOffset(tokens []tokenizer.Token, offset int) int {
	for i, t := range tokens {
		if t.Offset == offset {
			return i
		}
	}
	return 0
}

// wrap inserts start/end tags around each span of text (rune offsets),
// spec section 4.7's "safe tag wrapping": spans never overlap by
// construction (matchSpans emits at most one span per token) so a
// single left-to-right pass suffices.
func wrap(text string, spans []Span, startTag, endTag string) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.Start < last || s.Start > len(runes) || s.End > len(runes) || s.Start > s.End {
			continue
		}
		b.WriteString(string(runes[last:s.Start]))
		b.WriteString(startTag)
		b.WriteString(string(runes[s.Start:s.End]))
		b.WriteString(endTag)
		last = s.End
	}
	b.WriteString(string(runes[last:]))
	return b.String()
}
