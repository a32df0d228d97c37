package assemble

import (
	"github.com/antflydb/collectioncore/model"
)

// DocFetcher reads a stored document by seq_id, the collaborator
// assembly needs to materialize a KV into a Hit, spec section 4.6 step
// 1. Implemented by the collection core's storage layer over the
// abstract store.Store (spec section 1).
type DocFetcher interface {
	DocumentBySeqID(seqID uint32) (model.Document, bool, error)
}

// TextMatchInfo mirrors the per-hit diagnostic fields spec section 6's
// response shape names under "text_match_info".
type TextMatchInfo struct {
	Score             int64  `json:"score"`
	BestFieldScore    string `json:"best_field_score"`
	BestFieldWeight   int    `json:"best_field_weight"`
	FieldsMatched     int    `json:"fields_matched"`
	TokensMatched     int    `json:"tokens_matched"`
}

// HybridSearchInfo is the response shape for a hit ranked by fusing text
// and vector ranks, spec section 4.4's RRF path. BuildHit does not fill
// it in, so hits omit it.
type HybridSearchInfo struct {
	RankFusionScore float64 `json:"rank_fusion_score"`
}

// Hit is one assembled search result, spec section 6's response shape.
type Hit struct {
	Document         model.Document     `json:"document"`
	Highlight        map[string]any     `json:"highlight,omitempty"`
	Highlights       []any              `json:"highlights,omitempty"`
	TextMatch        int64              `json:"text_match"`
	TextMatchInfo    *TextMatchInfo     `json:"text_match_info,omitempty"`
	VectorDistance   *float32           `json:"vector_distance,omitempty"`
	GeoDistanceMeters map[string]float64 `json:"geo_distance_meters,omitempty"`
	Curated          bool               `json:"curated,omitempty"`
	HybridSearchInfo *HybridSearchInfo  `json:"hybrid_search_info,omitempty"`
	GroupKey         []any              `json:"group_key,omitempty"`
	SeqID            uint32             `json:"-"`
}

// BuildHit materializes kv into a Hit, spec section 4.6 steps 1-4: fetch
// the document, strip internal keys, project, and compute the per-hit
// diagnostic fields.
func BuildHit(kv model.KV, fetch DocFetcher, projector *Projector, referenceFieldNames []string) (Hit, error) {
	doc, found, err := fetch.DocumentBySeqID(kv.SeqID)
	if err != nil {
		return Hit{}, err
	}
	if !found {
		return Hit{}, nil
	}

	stripped := StripInternal(doc, referenceFieldNames)
	projected := stripped
	if projector != nil {
		projected = projector.Project(stripped)
	}

	h := Hit{
		Document:  projected,
		TextMatch: kv.TextMatchScore,
		Curated:   kv.Curated,
		SeqID:     kv.SeqID,
	}
	if !kv.Curated {
		h.TextMatchInfo = &TextMatchInfo{
			Score:         kv.TextMatchScore,
			FieldsMatched: numMatchingFields(kv.TextMatchScore),
			TokensMatched: tokensMatched(kv.TextMatchScore),
		}
	}
	if kv.HasVectorDistance {
		d := kv.VectorDistance
		h.VectorDistance = &d
	}
	return h, nil
}

// numMatchingFields/tokensMatched decode the low/high bit ranges of the
// composite text-match score, spec section 4.4's bit layout, so the
// assembled text_match_info surfaces the same components the executor
// packed in.
func numMatchingFields(composite int64) int {
	return int(composite & 0x7)
}

func tokensMatched(composite int64) int {
	return int((composite >> 59) & 0xF)
}
