package search

import (
	"context"
	"time"

	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/rank"
	"github.com/antflydb/collectioncore/store"
)

// QueryToken is one tokenised, already-stopword-filtered term from q,
// spec section 4.3 step 4.
type QueryToken struct {
	Text     string
	Typo     bool // false for a quoted/exact phrase token
	NumTypos int  // 0, 1, or 2; clamped against MinLen1Typo/MinLen2Typo per field
	Prefix   bool // true only for the final token of a prefix search
	Infix    bool
}

// FieldSpec is one resolved search field, spec section 4.3 step 1.
type FieldSpec struct {
	Name   string
	ID     uint8
	Weight uint8
}

// Plan is the search executor's input, assembled by the query planner
// (spec section 4.3 step 5) from a parsed request.
type Plan struct {
	Tokens        []QueryToken
	Fields        []FieldSpec
	MaxCandidates int
	MinLen1Typo   int
	MinLen2Typo   int

	TypoTokensThreshold int
	SearchStopMillis    int
	TextMatchType       TextMatchType
	MatchScoreIndex     int

	// HasFilter/FilterSeqIDs restrict candidates to a precomputed
	// filter_by result set (spec section 1's FilterEvaluator collaborator
	// has already run by the time Execute is called).
	HasFilter    bool
	FilterSeqIDs []uint32

	CuratedSeqIDs  []uint32
	ExcludedSeqIDs map[uint32]bool

	Capacity   int
	Group      bool
	GroupLimit int
	// DistinctKey resolves a seq_id's group_by hash; nil when Group is
	// false. Populating it requires reading the stored document, which
	// the executor leaves to the caller rather than depending on Store.
	DistinctKey func(seqID uint32) uint64

	// VectorHits, when non-nil, are the vector index's nearest neighbors
	// already resolved by the caller, spec section 4.4's vector path.
	VectorHits []store.VectorHit
	// VectorOnly is true for q="*" combined with a vector query: rank by
	// vector distance alone rather than fusing with text rank.
	VectorOnly bool
}

// Result is the executor's output, spec section 4.4's contract: two
// topsters, total matched, and whether search_stop_millis was hit.
type Result struct {
	Main         *rank.Topster
	GroupedMain  *rank.GroupedTopster
	Curated      *rank.Topster
	GroupFound   rank.GroupFoundTracker
	Found        int
	SearchCutoff bool
}

// fieldAccum tracks one candidate document's per-query-token offsets and
// accumulated typo/prefix cost within a single field.
type fieldAccum struct {
	offsets [][]uint16 // indexed by query token index
	cost    [16]int    // per-token cost contribution, aligned with offsets
	matched bool
}

type docAccum struct {
	fields      map[uint8]*fieldAccum
	matchedTypo bool
}

// defaultSearchStopMillis is the budget Execute uses when
// plan.SearchStopMillis is zero, the same default the query planner sets.
const defaultSearchStopMillis = 1500

// Execute enumerates candidates for plan against idx, scores them and
// returns the ranked result, spec section 4.4. now is the point Execute
// is called from, used to evaluate SearchStopMillis.
func Execute(ctx context.Context, idx store.InvertedIndex, plan Plan, now time.Time) (*Result, error) {
	res := &Result{Found: 0}
	if plan.Group {
		res.GroupedMain = rank.NewGroupedTopster(plan.Capacity, plan.GroupLimit, rank.DefaultComparator)
		res.GroupFound = make(rank.GroupFoundTracker)
	} else {
		res.Main = rank.NewTopster(plan.Capacity, rank.DefaultComparator)
	}
	res.Curated = rank.NewTopster(len(plan.CuratedSeqIDs), rank.DefaultComparator)

	if plan.VectorOnly {
		scoreVectorOnly(plan, res)
		return res, nil
	}

	stopMillis := plan.SearchStopMillis
	if stopMillis <= 0 {
		stopMillis = defaultSearchStopMillis
	}
	deadline := now.Add(time.Duration(stopMillis) * time.Millisecond)
	docs := make(map[uint32]*docAccum)

	if err := gatherTextCandidates(ctx, idx, plan, docs, deadline, res); err != nil {
		return nil, err
	}

	var filterSet map[uint32]bool
	if plan.HasFilter {
		filterSet = make(map[uint32]bool, len(plan.FilterSeqIDs))
		for _, id := range plan.FilterSeqIDs {
			filterSet[id] = true
		}
	}

	curatedSet := make(map[uint32]bool, len(plan.CuratedSeqIDs))
	for i, id := range plan.CuratedSeqIDs {
		curatedSet[id] = true
		res.Curated.Add(model.KV{
			SeqID:           id,
			QueryIndex:      0,
			MatchScoreIndex: model.CuratedRecordIdentifier,
			Curated:         true,
			Scores:          [3]int64{int64(len(plan.CuratedSeqIDs) - i), 0, 0},
		})
	}

	for seqID, acc := range docs {
		if plan.ExcludedSeqIDs != nil && plan.ExcludedSeqIDs[seqID] {
			continue
		}
		if curatedSet[seqID] {
			continue // curated hits are merged positionally, not re-ranked with the rest
		}
		if filterSet != nil && !filterSet[seqID] {
			continue
		}

		kv, ok := scoreDocument(plan, seqID, acc)
		if !ok {
			continue
		}
		res.Found++

		if plan.Group {
			key := uint64(0)
			if plan.DistinctKey != nil {
				key = plan.DistinctKey(seqID)
			}
			kv.DistinctKey = key
			res.GroupFound[key]++
			res.GroupedMain.Add(kv)
		} else {
			res.Main.Add(kv)
		}
	}

	if plan.VectorHits != nil && !plan.VectorOnly {
		fuseVectorRanks(plan, res)
	}

	return res, nil
}

// gatherTextCandidates runs candidate generation per field per token
// (spec section 4.4's exact/typo-1/typo-2/prefix/infix postings lookup)
// and accumulates per-document per-field token offsets into docs.
func gatherTextCandidates(ctx context.Context, idx store.InvertedIndex, plan Plan, docs map[uint32]*docAccum, deadline time.Time, res *Result) error {
	typoFreeMatches := 0

	for _, field := range plan.Fields {
		for ti, tok := range plan.Tokens {
			if time.Now().After(deadline) {
				res.SearchCutoff = true
				return nil
			}
			if typoFreeMatches >= plan.TypoTokensThreshold && plan.TypoTokensThreshold > 0 {
				// keep scanning exact postings for remaining fields/tokens so
				// every field still contributes to num_matching_fields, but
				// stop paying for further typo/prefix/infix expansion.
				if err := lookupInto(ctx, idx, field, tok, ti, docs, &typoFreeMatches); err != nil {
					return err
				}
				continue
			}

			if err := lookupInto(ctx, idx, field, tok, ti, docs, &typoFreeMatches); err != nil {
				return err
			}

			if tok.Typo && tok.NumTypos >= 1 && len(tok.Text) >= plan.MinLen1Typo {
				maxTypos := 1
				if tok.NumTypos >= 2 && len(tok.Text) >= plan.MinLen2Typo {
					maxTypos = 2
				}
				lists, err := idx.LookupTypo(ctx, field.Name, tok.Text, maxTypos, plan.MaxCandidates)
				if err != nil {
					return err
				}
				for i, pl := range lists {
					addPostings(ctx, pl, field, ti, i+1, docs, &typoFreeMatches, false)
				}
			}

			if tok.Prefix {
				lists, err := idx.LookupPrefix(ctx, field.Name, tok.Text, plan.MaxCandidates)
				if err != nil {
					return err
				}
				for _, pl := range lists {
					addPostings(ctx, pl, field, ti, 1, docs, &typoFreeMatches, false)
				}
			}
			if tok.Infix {
				lists, err := idx.LookupInfix(ctx, field.Name, tok.Text, plan.MaxCandidates)
				if err != nil {
					return err
				}
				for _, pl := range lists {
					addPostings(ctx, pl, field, ti, 2, docs, &typoFreeMatches, false)
				}
			}
		}
	}
	return nil
}

func lookupInto(ctx context.Context, idx store.InvertedIndex, field FieldSpec, tok QueryToken, ti int, docs map[uint32]*docAccum, typoFreeMatches *int) error {
	pl, err := idx.Lookup(ctx, field.Name, tok.Text)
	if err != nil {
		return err
	}
	if pl == nil {
		return nil
	}
	addPostings(ctx, pl, field, ti, 0, docs, typoFreeMatches, true)
	return nil
}

func addPostings(ctx context.Context, pl store.PostingList, field FieldSpec, tokenIdx, cost int, docs map[uint32]*docAccum, typoFreeMatches *int, exact bool) {
	for p := range pl.Postings(ctx) {
		acc, ok := docs[p.SeqID]
		if !ok {
			acc = &docAccum{fields: make(map[uint8]*fieldAccum)}
			docs[p.SeqID] = acc
		}
		fa, ok := acc.fields[field.ID]
		if !ok {
			fa = &fieldAccum{offsets: make([][]uint16, 16)}
			acc.fields[field.ID] = fa
		}
		if tokenIdx < len(fa.offsets) {
			fa.offsets[tokenIdx] = p.Offsets
			fa.cost[tokenIdx] = cost
			fa.matched = true
		}
		if exact && cost == 0 {
			*typoFreeMatches++
		} else {
			acc.matchedTypo = true
		}
	}
}

// scoreDocument computes the best field's Match and packs the composite
// text-match score into plan.MatchScoreIndex, spec section 4.4.
func scoreDocument(plan Plan, seqID uint32, acc *docAccum) (model.KV, bool) {
	var bestScore uint64
	var bestWeight uint8
	var bestWordsPresent int
	numMatchingFields := 0

	for _, field := range plan.Fields {
		fa, ok := acc.fields[field.ID]
		if !ok || !fa.matched {
			continue
		}
		numMatchingFields++

		m := ComputeMatch(fa.offsets)
		totalCost := 0
		for i, off := range fa.offsets {
			if off != nil {
				totalCost += fa.cost[i]
			}
		}

		fs := bestFieldScore(m, totalCost, field.ID)
		if fs > bestScore {
			bestScore = fs
			bestWeight = field.Weight
			bestWordsPresent = int(m.WordsPresent)
		}
	}

	if numMatchingFields == 0 {
		return model.KV{}, false
	}

	composite := packComposite(plan.TextMatchType, bestWordsPresent, bestScore, bestWeight, numMatchingFields)

	var scores [3]int64
	idx := plan.MatchScoreIndex
	if idx < 0 || idx > 2 {
		idx = 0
	}
	scores[idx] = composite

	return model.KV{
		SeqID:           seqID,
		MatchScoreIndex: idx,
		TextMatchScore:  composite,
		Scores:          scores,
	}, true
}

// scoreVectorOnly ranks plan.VectorHits by distance alone (closer is
// better), spec section 4.4's q="*" vector path. filter_by and excluded
// ids still apply; curated hits still take their separate topster.
func scoreVectorOnly(plan Plan, res *Result) {
	var filterSet map[uint32]bool
	if plan.HasFilter {
		filterSet = make(map[uint32]bool, len(plan.FilterSeqIDs))
		for _, id := range plan.FilterSeqIDs {
			filterSet[id] = true
		}
	}
	curatedSet := make(map[uint32]bool, len(plan.CuratedSeqIDs))
	for i, id := range plan.CuratedSeqIDs {
		curatedSet[id] = true
		res.Curated.Add(model.KV{
			SeqID:           id,
			MatchScoreIndex: model.CuratedRecordIdentifier,
			Curated:         true,
			Scores:          [3]int64{int64(len(plan.CuratedSeqIDs) - i), 0, 0},
		})
	}

	idx := plan.MatchScoreIndex
	if idx < 0 || idx > 2 {
		idx = 0
	}

	for _, h := range plan.VectorHits {
		if plan.ExcludedSeqIDs != nil && plan.ExcludedSeqIDs[h.SeqID] {
			continue
		}
		if curatedSet[h.SeqID] {
			continue
		}
		if filterSet != nil && !filterSet[h.SeqID] {
			continue
		}
		res.Found++

		// negate so that "closer" (smaller distance) sorts as "better"
		// under the topster's highest-first comparator.
		score := int64(-h.Distance * 1e6)
		var scores [3]int64
		scores[idx] = score
		kv := model.KV{
			SeqID:             h.SeqID,
			MatchScoreIndex:   idx,
			VectorDistance:    h.Distance,
			HasVectorDistance: true,
			Scores:            scores,
		}

		if plan.Group {
			key := uint64(0)
			if plan.DistinctKey != nil {
				key = plan.DistinctKey(h.SeqID)
			}
			kv.DistinctKey = key
			res.GroupFound[key]++
			res.GroupedMain.Add(kv)
		} else {
			res.Main.Add(kv)
		}
	}
}

// fuseVectorRanks applies reciprocal-rank fusion between the text
// topster's rank order and the vector index's distance order, spec
// section 4.4's "Vector path": fused score 1/(k+rank_text) + 1/(k+rank_vector),
// scaled to fit an int64 composite slot. k=60 is RRF's conventional
// constant.
func fuseVectorRanks(plan Plan, res *Result) {
	const rrfK = 60
	const scale = 1_000_000

	vecRank := make(map[uint32]int, len(plan.VectorHits))
	for i, h := range plan.VectorHits {
		vecRank[h.SeqID] = i + 1
	}

	rescoreAll := func(sorted []model.KV) []model.KV {
		out := make([]model.KV, len(sorted))
		for i, kv := range sorted {
			textRank := i + 1
			fused := 1.0 / float64(rrfK+textRank)
			if vr, ok := vecRank[kv.SeqID]; ok {
				fused += 1.0 / float64(rrfK+vr)
				kv.HasVectorDistance = true
			}
			kv.Scores[kv.MatchScoreIndex] = int64(fused * scale)
			out[i] = kv
		}
		return out
	}

	if plan.Group {
		return // grouped results are not fused with vector ranks: group order comes from the inner topsters' own sort
	}

	sorted := res.Main.Sort()
	fused := rescoreAll(sorted)
	res.Main = rank.NewTopster(plan.Capacity, rank.DefaultComparator)
	for _, kv := range fused {
		res.Main.Add(kv)
	}
}
