package assemble

import (
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/rank"
)

// FacetCount is one facet field's result, spec section 6's response
// shape. The faceter (package facet) fills Counts/Stats; this package
// only carries the shape through to the final response envelope.
type FacetCount struct {
	FieldName string         `json:"field_name"`
	Sampled   bool           `json:"sampled"`
	Counts    []FacetValue   `json:"counts"`
	Stats     map[string]any `json:"stats,omitempty"`
}

// FacetValue is one bucket within a FacetCount.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
	Highlighted string `json:"highlighted,omitempty"`
}

// GroupedHit is one group_by bucket in the grouped-results shape, spec
// section 6.
type GroupedHit struct {
	GroupKey []any `json:"group_key"`
	Found    int   `json:"found"`
	Hits     []Hit `json:"hits"`
}

// Response is the search API's normative response shape, spec section 6.
type Response struct {
	Found        int                    `json:"found"`
	OutOf        int                    `json:"out_of"`
	Page         int                    `json:"page"`
	SearchCutoff bool                   `json:"search_cutoff"`
	RequestParams map[string]any        `json:"request_params"`
	Metadata     []map[string]any       `json:"metadata,omitempty"`
	Hits         []Hit                  `json:"hits,omitempty"`
	GroupedHits  []GroupedHit           `json:"grouped_hits,omitempty"`
	FacetCounts  []FacetCount           `json:"facet_counts,omitempty"`
}

// BuildHits pages through sorted (already-ranked, curated-merged)
// KVs, producing the Hits slice for a flat (non-grouped) response,
// spec section 4.6.
func BuildHits(sorted []model.KV, offset, perPage int, fetch DocFetcher, projector *Projector, referenceFieldNames []string) ([]Hit, error) {
	end := offset + perPage
	if end > len(sorted) {
		end = len(sorted)
	}
	if offset > len(sorted) {
		offset = len(sorted)
	}
	page := sorted[offset:end]

	out := make([]Hit, 0, len(page))
	for _, kv := range page {
		h, err := BuildHit(kv, fetch, projector, referenceFieldNames)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// BuildGroupedHits pages through rank.Group results, attaching group_key
// values resolved by keyLabels and per-group "found" counts, spec
// section 4.6 step 4: "For grouped results, add group_key and found
// (group size)."
func BuildGroupedHits(groups []rank.Group, offset, perPage int, fetch DocFetcher, projector *Projector, referenceFieldNames []string, keyLabels func(uint64) []any) ([]GroupedHit, error) {
	end := offset + perPage
	if end > len(groups) {
		end = len(groups)
	}
	if offset > len(groups) {
		offset = len(groups)
	}
	page := groups[offset:end]

	out := make([]GroupedHit, 0, len(page))
	for _, g := range page {
		hits := make([]Hit, 0, len(g.Hits))
		for _, kv := range g.Hits {
			h, err := BuildHit(kv, fetch, projector, referenceFieldNames)
			if err != nil {
				return nil, err
			}
			if keyLabels != nil {
				h.GroupKey = keyLabels(g.DistinctKey)
			}
			hits = append(hits, h)
		}
		gh := GroupedHit{Found: g.Found, Hits: hits}
		if keyLabels != nil {
			gh.GroupKey = keyLabels(g.DistinctKey)
		}
		out = append(out, gh)
	}
	return out, nil
}

// MergeCurated splices curated.Sort() hits into main's sorted order at
// their pinned positions, spec section 4.4: "Curated hits ... merged
// positionally." Position is 1-based; out-of-range positions are
// appended at the end in their curated order.
func MergeCurated(main []model.KV, curated []model.KV, positions map[uint32]int) []model.KV {
	if len(curated) == 0 {
		return main
	}

	curatedSet := make(map[uint32]bool, len(curated))
	for _, kv := range curated {
		curatedSet[kv.SeqID] = true
	}
	rest := make([]model.KV, 0, len(main))
	for _, kv := range main {
		if !curatedSet[kv.SeqID] {
			rest = append(rest, kv)
		}
	}

	total := len(rest) + len(curated)
	out := make([]model.KV, total)
	filled := make([]bool, total)

	for _, kv := range curated {
		pos := positions[kv.SeqID]
		idx := pos - 1
		if idx < 0 || idx >= total || filled[idx] {
			continue
		}
		out[idx] = kv
		filled[idx] = true
	}

	ri := 0
	for i := 0; i < total; i++ {
		if filled[i] {
			continue
		}
		if ri >= len(rest) {
			break
		}
		out[i] = rest[ri]
		filled[i] = true
		ri++
	}

	// any curated hit whose requested position collided with another is
	// appended at the first remaining free slot, in curated order.
	for _, kv := range curated {
		pos := positions[kv.SeqID]
		idx := pos - 1
		if idx >= 0 && idx < total && out[idx].SeqID == kv.SeqID {
			continue
		}
		for i := 0; i < total; i++ {
			if !filled[i] {
				out[i] = kv
				filled[i] = true
				break
			}
		}
	}

	return out
}
