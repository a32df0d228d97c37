// Package tokenizer implements locale-aware tokenization of query and
// document text, spec section 4.3 step 4: splitting on the collection's
// configured symbols/separators, stopword removal, and phrase/exclude
// token parsing. Grounded on spec.md directly — the original C++'s
// tokenizer.h is not present in the retrieval pack (see DESIGN.md).
package tokenizer

import (
	"strings"
	"unicode"
)

// Config is the per-field/per-collection tokenization configuration,
// spec section 3's symbols_to_index/token_separators and a field's
// locale.
type Config struct {
	// SymbolsToIndex are runes that are normally separators but should be
	// kept as part of a token (e.g. "+" in "c++").
	SymbolsToIndex map[rune]bool
	// TokenSeparators are runes that normally belong to a token but
	// should instead split it (e.g. "-" in a hyphenated SKU).
	TokenSeparators map[rune]bool
	Locale          string
	Stopwords       map[string]bool
}

// Token is one normalized token and its byte/rune offset within the
// source text, used by the highlighter to re-locate matches.
type Token struct {
	Text   string
	Offset int // rune offset of the token's first rune in the source text
}

// isDefaultSeparator reports whether r is Unicode whitespace, punctuation
// or a symbol, the default separator set spec section 3 describes
// token_separators augmenting. SymbolsToIndex is applied by isSeparator.
func isDefaultSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return true
	}
	return false
}

func isSeparator(r rune, cfg Config) bool {
	if cfg.SymbolsToIndex[r] {
		return false
	}
	if cfg.TokenSeparators[r] {
		return true
	}
	return isDefaultSeparator(r)
}

// Tokenize splits text into lowercased tokens per cfg, recording each
// token's rune offset in the original (unlowered) text.
func Tokenize(text string, cfg Config) []Token {
	runes := []rune(text)
	var out []Token
	var cur []rune
	start := -1

	flush := func(end int) {
		if len(cur) == 0 {
			return
		}
		out = append(out, Token{Text: strings.ToLower(string(cur)), Offset: start})
		cur = cur[:0]
		start = -1
	}

	for i, r := range runes {
		if isSeparator(r, cfg) {
			flush(i)
			continue
		}
		if start == -1 {
			start = i
		}
		cur = append(cur, r)
	}
	flush(len(runes))
	return out
}

// DropStopwords filters tokens whose lowercased text is in cfg's
// stopword set, spec section 4.3 step 4: "strip stopwords".
func DropStopwords(tokens []Token, cfg Config) []Token {
	if len(cfg.Stopwords) == 0 {
		return tokens
	}
	out := tokens[:0:0]
	for _, t := range tokens {
		if cfg.Stopwords[t.Text] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// QueryTerm is one parsed term from a raw query string, before
// tokenization: a quoted phrase, an excluded ("-term") token, or a bare
// term, spec section 4.3 step 4: "identify phrase tokens (quoted),
// exclude tokens (leading -)".
type QueryTerm struct {
	Text     string
	Phrase   bool
	Excluded bool
}

// ParseQueryTerms splits a raw q string into quoted-phrase, excluded, and
// bare terms, preserving surface order. Quoted phrases keep their
// internal whitespace; a leading "-" (not inside quotes) marks a term or
// phrase as excluded.
func ParseQueryTerms(q string) []QueryTerm {
	var out []QueryTerm
	runes := []rune(q)
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}

		excluded := false
		if runes[i] == '-' && i+1 < len(runes) {
			excluded = true
			i++
		}

		if runes[i] == '"' {
			i++
			start := i
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			phrase := string(runes[start:i])
			if i < len(runes) {
				i++ // consume closing quote
			}
			if strings.TrimSpace(phrase) != "" {
				out = append(out, QueryTerm{Text: phrase, Phrase: true, Excluded: excluded})
			}
			continue
		}

		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		term := string(runes[start:i])
		if term != "" {
			out = append(out, QueryTerm{Text: term, Excluded: excluded})
		}
	}
	return out
}

// IsWildcard reports whether q is the browse-all wildcard, spec section
// 4.3: "`*` is wildcard (browse)".
func IsWildcard(q string) bool {
	return strings.TrimSpace(q) == "*"
}
