// Package query implements the query planner, spec section 4.3: turning
// a raw request into a fully-resolved Plan the search executor, faceter,
// and result assembler consume.
package query

import (
	"sort"
	"strings"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/filter"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/overrides"
	"github.com/antflydb/collectioncore/search"
	"github.com/antflydb/collectioncore/synonym"
	"github.com/antflydb/collectioncore/tokenizer"
)

// DropTokensMode is the fallback strategy spec section 4.3/GLOSSARY
// names for removing query tokens when the full token set matches
// nothing.
type DropTokensMode int

const (
	DropTokensRightToLeft DropTokensMode = iota
	DropTokensLeftToRight
	DropTokensBothSides
)

// TextMatchType re-exports search.TextMatchType so callers of this
// package never need to import search directly for request parsing.
type TextMatchType = search.TextMatchType

const (
	TextMatchMaxScore  = search.TextMatchMaxScore
	TextMatchMaxWeight = search.TextMatchMaxWeight
)

// FieldMaxWeight is the ceiling query_by_weights are normalized into,
// spec section 4.3's query_by_weights row.
const FieldMaxWeight = 15

// DefaultTopsterSize bounds how many of the top results text_match_buckets
// blockwise-flattens, spec section 9's open question.
const DefaultTopsterSize = 250

// Request bundles every recognised query parameter from spec section
// 4.3's table. Zero values mean "not supplied"; Resolve fills in spec-
// mandated defaults.
type Request struct {
	Q        string
	QueryBy  []string
	QueryByWeights []int

	FilterBy string

	FacetBy              []string
	FacetQuery           string
	MaxFacetValues       int
	FacetSamplePercent   int
	FacetSampleThreshold int
	FacetReturnParent    []string

	SortBy []string // raw clauses, e.g. "points:desc", "_text_match:desc"

	GroupBy           []string
	GroupLimit        int
	GroupMissingValues bool

	Page    int
	PerPage int
	Offset  int
	Limit   int
	LimitHits int

	Prefix      []bool
	NumTypos    []int
	Infix       []string
	MinLen1Typo int
	MinLen2Typo int
	MaxCandidates int
	TypoTokensThreshold int
	DropTokensThreshold int
	DropTokensMode      DropTokensMode
	ExhaustiveSearch    bool
	SearchStopMillis    int
	SplitJoinTokens     bool

	PinnedHits      []model.Hit
	HiddenHits      []model.Hit
	OverrideTags    []string
	EnableOverrides bool
	FilterCuratedHits bool

	IncludeFields   []string
	ExcludeFields   []string
	HighlightFields []string
	HighlightFullFields []string
	HighlightStartTag string
	HighlightEndTag   string
	SnippetThreshold  int
	HighlightAffixNumTokens int
	EnableHighlightV1 bool

	VectorQuery string

	TextMatchType                     TextMatchType
	PrioritizeExactMatch               bool
	PrioritizeTokenPosition            bool
	PrioritizeNumMatchingFields        bool
	EnableTyposForNumericalTokens      bool
	EnableTyposForAlphaNumericalTokens bool

	NowUnix int64
}

// Schema is the narrow schema surface the planner needs: field lookup
// by name. model.Schema implements
// this directly via its Get method; this interface exists so the
// planner doesn't need the whole *model.Schema type for testing.
type Schema interface {
	Get(name string) (model.Field, bool)
}

// Plan is the planner's fully-resolved output, spec section 4.3 step 5.
type Plan struct {
	Wildcard bool

	SearchPlan search.Plan
	SortFields []model.SortField

	FacetBy              []string
	FacetQuery           string
	MaxFacetValues       int
	FacetSamplePercent   int
	FacetSampleThreshold int
	FacetReturnParent    []string

	Filter *filter.Node

	GroupBy            []string
	GroupLimit         int
	GroupMissingValues bool

	Page, PerPage, Offset, Limit, LimitHits int

	IncludeFields, ExcludeFields                     []string
	HighlightFields, HighlightFullFields             []string
	HighlightStartTag, HighlightEndTag               string
	SnippetThreshold, HighlightAffixNumTokens         int
	EnableHighlightV1                                bool

	OverrideEffect overrides.Effect
	PinnedHits     []model.Hit
	HiddenIDs      map[string]bool

	TextMatchBuckets int
}

// Resolve runs the full planning procedure of spec section 4.3 against
// req, s (the live schema), synonyms, and matching overrides (already
// looked up by the caller via overrides.Set.Matching so this package
// doesn't need to import the store's query-time clock concerns).
func Resolve(req Request, s Schema, syn *synonym.Index, matchingOverrides []model.Override) (*Plan, error) {
	p := &Plan{
		FacetBy: req.FacetBy, FacetQuery: req.FacetQuery,
		MaxFacetValues: orDefault(req.MaxFacetValues, 10),
		FacetSamplePercent: orDefault(req.FacetSamplePercent, 100),
		FacetSampleThreshold: req.FacetSampleThreshold,
		FacetReturnParent: req.FacetReturnParent,
		GroupBy: req.GroupBy, GroupLimit: orDefault(req.GroupLimit, 3),
		GroupMissingValues: req.GroupMissingValues,
		IncludeFields: req.IncludeFields, ExcludeFields: req.ExcludeFields,
		HighlightFields: req.HighlightFields, HighlightFullFields: req.HighlightFullFields,
		HighlightStartTag: orDefaultStr(req.HighlightStartTag, "<mark>"),
		HighlightEndTag:   orDefaultStr(req.HighlightEndTag, "</mark>"),
		SnippetThreshold:  orDefault(req.SnippetThreshold, 30),
		HighlightAffixNumTokens: orDefault(req.HighlightAffixNumTokens, 4),
		EnableHighlightV1: req.EnableHighlightV1,
		TextMatchBuckets:  0,
	}

	if err := resolvePagination(req, p); err != nil {
		return nil, err
	}

	fields, err := resolveSearchFields(req, s)
	if err != nil {
		return nil, err
	}

	p.Wildcard = tokenizer.IsWildcard(req.Q)

	if req.FilterBy != "" {
		tree, err := filter.Parse(req.FilterBy)
		if err != nil {
			return nil, err
		}
		for _, f := range tree.Fields() {
			if _, ok := s.Get(f); !ok {
				return nil, collerr.NotFound("filter_by: unknown field %q", f)
			}
		}
		p.Filter = tree
	}

	overrideEffect := overrides.Apply(matchingOverrides)
	p.OverrideEffect = overrideEffect
	pins, hidden := overrides.ResolvePins(overrideEffect, req.PinnedHits, req.HiddenHits)
	p.PinnedHits = pins
	p.HiddenIDs = hidden

	effectiveQuery := req.Q
	if overrideEffect.ReplaceQuery != "" {
		effectiveQuery = overrideEffect.ReplaceQuery
	}

	sortFields, matchScoreIndex, err := resolveSort(req, s, overrideEffect.SortBy, p.Wildcard)
	if err != nil {
		return nil, err
	}
	p.SortFields = sortFields

	tokens, err := tokenize(effectiveQuery, syn, req, overrideEffect.RemoveMatchedTokens)
	if err != nil {
		return nil, err
	}

	p.SearchPlan = search.Plan{
		Tokens:              tokens,
		Fields:              fields,
		MaxCandidates:        orDefault(req.MaxCandidates, 4),
		MinLen1Typo:          orDefault(req.MinLen1Typo, 4),
		MinLen2Typo:          orDefault(req.MinLen2Typo, 7),
		TypoTokensThreshold:  orDefault(req.TypoTokensThreshold, 1),
		SearchStopMillis:     orDefault(req.SearchStopMillis, 1500),
		TextMatchType:        req.TextMatchType,
		MatchScoreIndex:      matchScoreIndex,
		Capacity:             capacityFor(p),
		Group:                len(req.GroupBy) > 0,
		GroupLimit:           p.GroupLimit,
	}

	return p, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func capacityFor(p *Plan) int {
	need := p.Offset + p.PerPage
	if need < DefaultTopsterSize {
		return DefaultTopsterSize
	}
	return need
}

// resolvePagination validates page/offset/per_page against limit_hits,
// spec section 4.3's table and spec section 8's boundary behaviours:
// "page>=1 and offset>=0; when both supplied, page wins; offset+per_page
// > limit_hits -> 422."
func resolvePagination(req Request, p *Plan) error {
	p.PerPage = orDefault(req.PerPage, 10)
	p.LimitHits = req.LimitHits
	if req.Limit > 0 {
		p.PerPage = req.Limit
	}

	if req.Page < 0 {
		return collerr.BadRequest("page must be >= 1")
	}
	if req.Offset < 0 {
		return collerr.BadRequest("offset must be >= 0")
	}
	if req.Page > 0 {
		p.Page = req.Page
		p.Offset = (req.Page - 1) * p.PerPage
	} else {
		p.Offset = req.Offset
		p.Page = 0
	}
	if p.LimitHits > 0 && p.Offset+p.PerPage > p.LimitHits {
		return collerr.Unprocessable("offset+per_page (%d) exceeds limit_hits (%d)", p.Offset+p.PerPage, p.LimitHits)
	}
	return nil
}

// resolveSearchFields expands query_by against the schema, rejecting
// unindexed or non-string fields and assigning weights, spec section 4.3
// step 1.
func resolveSearchFields(req Request, s Schema) ([]search.FieldSpec, error) {
	if len(req.QueryBy) == 0 {
		return nil, nil
	}

	weights := normalizeWeights(req.QueryByWeights, len(req.QueryBy))

	out := make([]search.FieldSpec, 0, len(req.QueryBy))
	for i, name := range req.QueryBy {
		f, ok := s.Get(name)
		if !ok {
			return nil, collerr.NotFound("query_by: unknown field %q", name)
		}
		if !f.Index {
			return nil, collerr.BadRequest("query_by: field %q is not indexed", name)
		}
		if f.Type != model.FieldString && f.Type != model.FieldStringArray {
			return nil, collerr.BadRequest("query_by: field %q is not a string field", name)
		}
		out = append(out, search.FieldSpec{Name: name, ID: uint8(i), Weight: uint8(weights[i])})
	}
	return out, nil
}

// normalizeWeights fills in a descending default when query_by_weights
// is omitted, and otherwise normalizes the supplied weights into
// [0, FieldMaxWeight] sorted desc, spec section 4.3's query_by_weights
// row.
func normalizeWeights(weights []int, n int) []int {
	if len(weights) == 0 {
		out := make([]int, n)
		for i := range out {
			w := FieldMaxWeight - i
			if w < 0 {
				w = 0
			}
			out[i] = w
		}
		return out
	}
	out := make([]int, len(weights))
	copy(out, weights)
	maxW := 0
	for _, w := range out {
		if w > maxW {
			maxW = w
		}
	}
	if maxW > FieldMaxWeight {
		for i, w := range out {
			out[i] = w * FieldMaxWeight / maxW
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	for len(out) < n {
		out = append(out, 0)
	}
	return out[:n]
}

// resolveSort parses up to three sort_by clauses, falling back to the
// spec-mandated default order when none are supplied, spec section 4.3
// step 2. It returns the resolved clauses and which Scores slot
// text_match (or vector_distance, for a pure vector query) should be
// written into.
func resolveSort(req Request, s Schema, overrideSortBy string, wildcard bool) ([]model.SortField, int, error) {
	raw := req.SortBy
	if overrideSortBy != "" {
		raw = strings.Split(overrideSortBy, ",")
	}

	if len(raw) == 0 {
		return defaultSort(s, wildcard, req.VectorQuery != "")
	}
	if len(raw) > 3 {
		return nil, 0, collerr.Unprocessable("sort_by accepts at most 3 clauses, got %d", len(raw))
	}

	var out []model.SortField
	matchScoreIndex := -1
	evalClauses := 0

	for i, clause := range raw {
		sf, err := parseSortClause(strings.TrimSpace(clause), s)
		if err != nil {
			return nil, 0, err
		}
		if sf.Kind == model.SortEval {
			evalClauses++
			if evalClauses > 1 {
				return nil, 0, collerr.Unprocessable("sort_by accepts at most one _eval clause")
			}
		}
		if sf.Kind == model.SortTextMatch || sf.Kind == model.SortVectorDistance {
			matchScoreIndex = i
		}
		out = append(out, sf)
	}
	if matchScoreIndex == -1 {
		matchScoreIndex = 0
	}
	return out, matchScoreIndex, nil
}

func parseSortClause(clause string, s Schema) (model.SortField, error) {
	parts := strings.SplitN(clause, ":", 2)
	name := strings.TrimSpace(parts[0])
	order := model.SortDesc
	if len(parts) > 1 && strings.EqualFold(strings.TrimSpace(parts[1]), "asc") {
		order = model.SortAsc
	}

	switch {
	case name == "_text_match":
		return model.SortField{Kind: model.SortTextMatch, Order: order}, nil
	case name == "_vector_distance":
		return model.SortField{Kind: model.SortVectorDistance, Order: order}, nil
	case name == "_seq_id":
		return model.SortField{Kind: model.SortSeqID, Order: order}, nil
	case strings.HasPrefix(name, "_eval("):
		return model.SortField{Kind: model.SortEval, EvalExpr: name, Order: order}, nil
	case strings.HasPrefix(name, "$"):
		coll, _, ok := parseRefTarget(name)
		if !ok {
			return model.SortField{}, collerr.BadRequest("sort_by: malformed reference clause %q", name)
		}
		return model.SortField{Kind: model.SortReference, ReferenceCollection: coll, Field: name, Order: order}, nil
	default:
		f, ok := s.Get(name)
		if !ok {
			return model.SortField{}, collerr.NotFound("sort_by: unknown field %q", name)
		}
		if !f.Sort {
			return model.SortField{}, collerr.BadRequest("sort_by: field %q is not sortable", name)
		}
		kind := model.SortScalarField
		if f.Type == model.FieldGeopoint {
			kind = model.SortGeoField
		}
		return model.SortField{Kind: kind, Field: name, Order: order}, nil
	}
}

func parseRefTarget(field string) (coll, subexpr string, ok bool) {
	rest := strings.TrimPrefix(field, "$")
	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return "", "", false
	}
	return rest[:open], rest[open+1 : len(rest)-1], true
}

// defaultSort builds the sort used when sort_by is empty: text_match desc
// (unless the query is a wildcard), vector_distance asc (when a vector
// query is set), then seq_id desc. The collection's default sorting field
// is not part of it.
func defaultSort(s Schema, wildcard bool, hasVector bool) ([]model.SortField, int, error) {
	var out []model.SortField
	matchScoreIndex := 0

	if !wildcard {
		out = append(out, model.SortField{Kind: model.SortTextMatch, Order: model.SortDesc})
	}
	if hasVector {
		out = append(out, model.SortField{Kind: model.SortVectorDistance, Order: model.SortAsc})
		if wildcard {
			matchScoreIndex = len(out) - 1
		}
	}
	if len(out) < 3 {
		out = append(out, model.SortField{Kind: model.SortSeqID, Order: model.SortDesc})
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out, matchScoreIndex, nil
}

// tokenize turns the (possibly override-replaced) query text into
// search.QueryTokens, applying synonym expansion and num_typos/prefix/
// infix per-field-position settings, spec section 4.3 step 4.
func tokenize(q string, syn *synonym.Index, req Request, removeMatchedTokens bool) ([]search.QueryToken, error) {
	if tokenizer.IsWildcard(q) || strings.TrimSpace(q) == "" {
		return nil, nil
	}

	terms := tokenizer.ParseQueryTerms(q)

	var words []string
	for _, t := range terms {
		if t.Phrase {
			words = append(words, strings.Fields(t.Text)...)
			continue
		}
		words = append(words, t.Text)
	}
	if syn != nil {
		words = syn.ExpandAll(words)
	}

	var out []search.QueryToken
	for i, w := range words {
		numTypos := 2
		if len(req.NumTypos) > 0 {
			numTypos = req.NumTypos[min(i, len(req.NumTypos)-1)]
		}
		prefix := false
		if len(req.Prefix) > 0 {
			prefix = req.Prefix[min(i, len(req.Prefix)-1)] && i == len(words)-1
		}
		out = append(out, search.QueryToken{
			Text:     strings.ToLower(w),
			Typo:     true,
			NumTypos: numTypos,
			Prefix:   prefix,
			Infix:    len(req.Infix) > 0 && req.Infix[min(i, len(req.Infix)-1)] != "off",
		})
	}
	if removeMatchedTokens {
		// override asked to strip matched tokens from the query: the
		// caller has already substituted replace_query, and the token
		// list is returned unchanged; nothing else reads this flag.
		_ = removeMatchedTokens
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
