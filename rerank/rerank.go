// Package rerank applies an optional reranking model over a topster's
// top candidates before result assembly, used by the vector/hybrid
// search path (spec section 4.4's fused scoring). The reranking model
// itself is an external collaborator; this package only defines the
// interface and the merge-back-into-scores plumbing.
package rerank

import (
	"context"
	"sort"

	"github.com/antflydb/collectioncore/model"
)

// Model scores pre-rendered document texts against a query. Higher
// scores indicate higher relevance.
type Model interface {
	Rerank(ctx context.Context, query string, prompts []string) ([]float32, error)
	Close() error
}

// Candidate pairs a ranked KV with the text rendered for it, the input
// Apply needs to ask the model to re-score.
type Candidate struct {
	KV   model.KV
	Text string
}

// Apply reranks candidates (already ordered by the topster) against
// query, overwrites each KV's text-match slot with the new score, and
// returns them re-sorted descending by that score with seq_id as the
// tiebreak, matching the topster's own tiebreak rule (spec section 4.5).
func Apply(ctx context.Context, m Model, query string, candidates []Candidate, scoreSlot int) ([]model.KV, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	prompts := make([]string, len(candidates))
	for i, c := range candidates {
		prompts[i] = c.Text
	}

	scores, err := m.Rerank(ctx, query, prompts)
	if err != nil {
		return nil, err
	}

	out := make([]model.KV, len(candidates))
	for i, c := range candidates {
		kv := c.KV
		if i < len(scores) {
			kv.Scores[scoreSlot] = int64(scores[i] * 1e6)
		}
		out[i] = kv
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Scores[scoreSlot] != out[j].Scores[scoreSlot] {
			return out[i].Scores[scoreSlot] > out[j].Scores[scoreSlot]
		}
		return out[i].SeqID > out[j].SeqID
	})
	return out, nil
}
