// Package overrides implements curation-rule matching and application,
// spec section 3's Override data model and spec section 4.3 step 3:
// "Apply overrides: match untagged-only when no tags supplied; match
// exact/contains against normalised query; respect effective_from/to_ts;
// collect include/exclude/filter rewrites; honour stop_processing.
// Pinned hits and hidden hits take precedence over override drops/adds."
package overrides

import (
	"strings"

	"github.com/antflydb/collectioncore/model"
)

// Set holds a collection's overrides indexed by id (for CRUD), with
// insertion order kept for query-time lookup; there is no separate index
// by tag, spec section 3.
type Set struct {
	byID  map[string]model.Override
	order []string // insertion order, spanning all overrides regardless of tag
}

// NewSet builds a Set from overrides in their insertion order.
func NewSet(overrides []model.Override) *Set {
	s := &Set{byID: make(map[string]model.Override, len(overrides))}
	for _, o := range overrides {
		s.Put(o)
	}
	return s
}

// Put inserts or replaces an override by id, spec section 7: "duplicate
// override id (treated as replace, not error)". A replace keeps the
// override's original position in insertion order.
func (s *Set) Put(o model.Override) {
	if _, exists := s.byID[o.ID]; !exists {
		s.order = append(s.order, o.ID)
	}
	s.byID[o.ID] = o
}

// Remove deletes an override by id.
func (s *Set) Remove(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the override with the given id.
func (s *Set) Get(id string) (model.Override, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// Matching is the set of overrides (in applicable order) whose rule
// matched, spec section 4.3 step 3, restricted to those active at
// nowUnix and selected by query/tags.
func (s *Set) Matching(query string, tags []string, nowUnix int64) []model.Override {
	var out []model.Override
	for _, id := range s.order {
		o := s.byID[id]
		if !active(o, nowUnix) {
			continue
		}
		if !matchesTags(o.Rule.Tags, tags) {
			continue
		}
		if !matchesQuery(o.Rule, query) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func active(o model.Override, nowUnix int64) bool {
	if o.EffectiveFromTS != 0 && nowUnix < o.EffectiveFromTS {
		return false
	}
	if o.EffectiveToTS != 0 && nowUnix > o.EffectiveToTS {
		return false
	}
	return true
}

// matchesTags reports whether an override's own rule tags are satisfied
// by the query-time tag set: an untagged override matches only when no
// tags were supplied; a tagged override matches when every one of its
// tags is present in the supplied set.
func matchesTags(ruleTags, queryTags []string) bool {
	if len(ruleTags) == 0 {
		return len(queryTags) == 0
	}
	have := make(map[string]bool, len(queryTags))
	for _, t := range queryTags {
		have[t] = true
	}
	for _, t := range ruleTags {
		if !have[t] {
			return false
		}
	}
	return true
}

func matchesQuery(rule model.OverrideRule, query string) bool {
	if rule.Query == "" {
		return true // filter-only override with no query clause always matches
	}
	normQuery := normalize(query)
	normRule := normalize(rule.Query)
	switch rule.Match {
	case model.MatchContains:
		return strings.Contains(normQuery, normRule)
	default: // model.MatchExact
		return normQuery == normRule
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Effect is the accumulated result of applying a chain of matching
// overrides, spec section 4.3 step 3.
type Effect struct {
	AddHits            []model.Hit
	DropHits           []model.Hit
	FilterBy           []string // each matching override's filter_by, ANDed by the caller
	SortBy             string   // last matching override's sort_by wins
	ReplaceQuery       string   // last matching override's replace_query wins
	RemoveMatchedTokens bool
	FilterCuratedHits  bool
	Metadata           []map[string]any
}

// Apply chains matching (already tag/query/time-filtered) overrides in
// order, accumulating their effects until one sets StopProcessing, spec
// section 3's invariant: "within a tag namespace, overrides are applied
// in insertion order until one sets stop_processing."
func Apply(matching []model.Override) Effect {
	var eff Effect
	for _, o := range matching {
		eff.AddHits = append(eff.AddHits, o.AddHits...)
		eff.DropHits = append(eff.DropHits, o.DropHits...)
		if o.FilterBy != "" {
			eff.FilterBy = append(eff.FilterBy, o.FilterBy)
		}
		if o.SortBy != "" {
			eff.SortBy = o.SortBy
		}
		if o.ReplaceQuery != "" {
			eff.ReplaceQuery = o.ReplaceQuery
		}
		if o.RemoveMatchedTokens {
			eff.RemoveMatchedTokens = true
		}
		if o.FilterCuratedHits {
			eff.FilterCuratedHits = true
		}
		if o.Metadata != nil {
			eff.Metadata = append(eff.Metadata, o.Metadata)
		}
		if o.StopProcessing {
			break
		}
	}
	return eff
}

// ResolvePins merges pinned_hits/hidden_hits (query-time parameters,
// spec section 4.3's table) with an override Effect's add_hits/
// drop_hits, returning the final ordered pin list and the hidden-id set.
// Spec section 4.3 step 3: "Pinned hits and hidden hits take precedence
// over override drops/adds" — so a query-time pin always wins over an
// override's drop of the same doc, and a query-time hide always wins
// over an override's add.
func ResolvePins(eff Effect, pinnedHits, hiddenHits []model.Hit) (pins []model.Hit, hidden map[string]bool) {
	hidden = make(map[string]bool)
	for _, h := range eff.DropHits {
		hidden[h.DocID] = true
	}
	for _, h := range hiddenHits {
		hidden[h.DocID] = true // query-time hide, already covers override-drop precedence
	}

	pinned := make(map[string]model.Hit)
	order := make([]string, 0, len(eff.AddHits)+len(pinnedHits))
	for _, h := range eff.AddHits {
		if hidden[h.DocID] && !queryTimePinned(pinnedHits, h.DocID) {
			continue
		}
		if _, ok := pinned[h.DocID]; !ok {
			order = append(order, h.DocID)
		}
		pinned[h.DocID] = h
	}
	for _, h := range pinnedHits {
		delete(hidden, h.DocID) // a query-time pin overrides any hide of the same doc
		if _, ok := pinned[h.DocID]; !ok {
			order = append(order, h.DocID)
		}
		pinned[h.DocID] = h
	}

	pins = make([]model.Hit, 0, len(order))
	for _, id := range order {
		pins = append(pins, pinned[id])
	}
	return pins, hidden
}

func queryTimePinned(pinnedHits []model.Hit, docID string) bool {
	for _, h := range pinnedHits {
		if h.DocID == docID {
			return true
		}
	}
	return false
}
