package collection

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/antflydb/collectioncore/assemble"
	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/document"
	"github.com/antflydb/collectioncore/facet"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/query"
	"github.com/antflydb/collectioncore/rerank"
	"github.com/antflydb/collectioncore/search"
	"github.com/antflydb/collectioncore/store"
)

// Search runs a full query through the planner, executor, ranker, and
// assembler, spec sections 4.3-4.6. req.NowUnix should already be set by
// the caller (process-wide clock, kept out of this package per the
// style the rest of this module uses for injected time).
func (c *Collection) Search(ctx context.Context, req query.Request) (*assemble.Response, error) {
	release, err := c.acquireLifecycle()
	if err != nil {
		return nil, err
	}
	defer release()

	var resp *assemble.Response
	err = c.withSchemaShared(func() error {
		r, serr := c.runSearch(ctx, req)
		resp = r
		return serr
	})
	return resp, err
}

func (c *Collection) runSearch(ctx context.Context, req query.Request) (*assemble.Response, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.QueryDuration.Observe(time.Since(start).Seconds())
		}
	}()

	nowUnix := req.NowUnix
	if nowUnix == 0 {
		nowUnix = time.Now().Unix()
	}
	var tags []string
	if req.EnableOverrides {
		tags = req.OverrideTags
	}
	matching := c.overrideSet.Matching(req.Q, tags, nowUnix)

	plan, err := query.Resolve(req, c.schema, c.synonymIdx, matching)
	if err != nil {
		return nil, err
	}

	var filterIDs []uint32
	hasFilter := false
	if req.FilterBy != "" && c.filterEval != nil {
		ids, ferr := c.filterEval.Evaluate(ctx, req.FilterBy)
		if ferr != nil {
			return nil, ferr
		}
		filterIDs = ids
		hasFilter = true
	}

	excluded := make(map[uint32]bool, len(plan.HiddenIDs))
	for docID := range plan.HiddenIDs {
		if seqID, ok := (idResolver{ctx: ctx, c: c}).SeqIDFor(docID); ok {
			excluded[seqID] = true
		}
	}
	var curatedSeqIDs []uint32
	for _, h := range plan.PinnedHits {
		if seqID, ok := (idResolver{ctx: ctx, c: c}).SeqIDFor(h.DocID); ok {
			curatedSeqIDs = append(curatedSeqIDs, seqID)
		}
	}

	sp := plan.SearchPlan
	sp.HasFilter = hasFilter
	sp.FilterSeqIDs = filterIDs
	sp.CuratedSeqIDs = curatedSeqIDs
	sp.ExcludedSeqIDs = excluded

	var vecHits []store.VectorHit
	if req.VectorQuery != "" && c.vecIdx != nil {
		if c.embedder != nil {
			vf, ok := vectorFieldOf(c.schema)
			if !ok {
				return nil, collerr.NotFound("vector_query given but collection %q has no float[]#vector field", c.name)
			}
			vec, verr := c.embedder.Embed(vf, req.VectorQuery)
			if verr != nil {
				return nil, collerr.Internal(verr, "embedding vector_query")
			}
			k := sp.Capacity
			if k <= 0 {
				k = query.DefaultTopsterSize
			}
			hits, herr := c.vecIdx.Search(ctx, vec, k)
			if herr != nil {
				return nil, herr
			}
			vecHits = hits
		}
		// without an embedder wired, vector_query still honors the
		// planner's wildcard/vector_only detection, just with zero hits,
		// which degrades to a pure text search rather than erroring.
		sp.VectorOnly = plan.Wildcard
	}
	sp.VectorHits = vecHits

	res, err := search.Execute(ctx, c.invIdx, sp, time.Now())
	if err != nil {
		return nil, err
	}
	if res.SearchCutoff && res.Found == 0 {
		if c.metrics != nil {
			c.metrics.QueryTimeouts.Inc()
		}
		return nil, collerr.Timeout("search_stop_millis exceeded with no results")
	}

	referenceFieldNames := referenceFieldNamesOf(c.schema)
	projector := assemble.NewProjector(plan.IncludeFields, plan.ExcludeFields)

	resp := &assemble.Response{
		Found:        res.Found,
		OutOf:        int(c.numDocuments.Load()),
		Page:         plan.Page,
		SearchCutoff: res.SearchCutoff,
		RequestParams: map[string]any{"q": req.Q, "per_page": plan.PerPage},
	}

	if plan.GroupBy != nil {
		groups := res.GroupedMain.Sort(res.GroupFound, nil)
		if c.metrics != nil {
			for range groups {
				c.metrics.TopsterFillRatio.Observe(0)
			}
		}
		hits, err := assemble.BuildGroupedHits(groups, plan.Offset, plan.PerPage, c, projector, referenceFieldNames, nil)
		if err != nil {
			return nil, err
		}
		resp.GroupedHits = hits
	} else {
		sorted := res.Main.Sort()
		if c.metrics != nil {
			c.metrics.TopsterFillRatio.Observe(res.Main.FillRatio())
		}
		if c.reranker != nil && len(sorted) > 0 {
			reranked, rerr := c.rerank(ctx, req.Q, sp.Fields, sp.MatchScoreIndex, sorted)
			if rerr != nil {
				return nil, rerr
			}
			sorted = reranked
		}
		curatedPositions := curatedPositionsOf(plan.PinnedHits, idResolver{ctx: ctx, c: c})
		merged := assemble.MergeCurated(sorted, res.Curated.Sort(), curatedPositions)
		hits, err := assemble.BuildHits(merged, plan.Offset, plan.PerPage, c, projector, referenceFieldNames)
		if err != nil {
			return nil, err
		}
		resp.Hits = hits
	}

	if len(plan.FacetBy) > 0 {
		resp.FacetCounts = c.computeFacets(plan)
	}

	return resp, nil
}

// vectorFieldOf returns the collection's single float[]#vector field,
// used to resolve vector_query's text into an embedding model call, spec
// section 4.3's auto-embedding path.
func vectorFieldOf(s *model.Schema) (model.Field, bool) {
	for _, f := range s.Fields {
		if f.Type == model.FieldFloatVector {
			return f, true
		}
	}
	return model.Field{}, false
}

// rerank re-scores sorted's candidates against query using c.reranker,
// spec section 4.4's fused-scoring reranking pass. Each candidate's text
// is rendered from the fields the query actually searched (sp.Fields),
// matching the reranker's own docs/prompts contract.
func (c *Collection) rerank(ctx context.Context, query string, fields []search.FieldSpec, scoreSlot int, sorted []model.KV) ([]model.KV, error) {
	if scoreSlot < 0 || scoreSlot >= 3 {
		scoreSlot = 0
	}
	candidates := make([]rerank.Candidate, len(sorted))
	for i, kv := range sorted {
		candidates[i] = rerank.Candidate{KV: kv, Text: c.renderSearchText(kv.SeqID, fields)}
	}
	return rerank.Apply(ctx, c.reranker, query, candidates, scoreSlot)
}

// renderSearchText concatenates a document's values for the fields a
// query searched, the text the reranker's prompt is built from.
func (c *Collection) renderSearchText(seqID uint32, fields []search.FieldSpec) string {
	doc, found, err := c.DocumentBySeqID(seqID)
	if err != nil || !found {
		return ""
	}
	flat := document.Flatten(doc)
	var parts []string
	for _, f := range fields {
		parts = append(parts, stringValues(flat.Flat[f.Name])...)
	}
	return strings.Join(parts, " ")
}

// referenceFieldNamesOf collects every reference field's name, used to
// strip "<name>_sequence_id" helper keys from assembled hits, spec
// section 4.6 step 1.
func referenceFieldNamesOf(s *model.Schema) []string {
	var out []string
	for _, f := range s.Fields {
		if f.Reference != "" {
			out = append(out, f.Name)
		}
	}
	return out
}

func curatedPositionsOf(pins []model.Hit, resolver idResolver) map[uint32]int {
	positions := make(map[uint32]int, len(pins))
	for _, h := range pins {
		if seqID, ok := resolver.SeqIDFor(h.DocID); ok {
			positions[seqID] = h.Position
		}
	}
	return positions
}

// facetSeqIDSource adapts a Collection into facet.ValueProvider by
// flattening the stored document on demand, spec section 4.8.
type facetSeqIDSource struct{ c *Collection }

func (s facetSeqIDSource) Values(seqID uint32, field string) []string {
	doc, found, err := s.c.DocumentBySeqID(seqID)
	if err != nil || !found {
		return nil
	}
	flat := document.Flatten(doc)
	return stringValues(flat.Flat[field])
}

func stringValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, stringValues(e)...)
		}
		return out
	default:
		return []string{toString(val)}
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case float64:
		return formatFloat(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (c *Collection) computeFacets(plan *query.Plan) []assemble.FacetCount {
	// candidate seq_ids for faceting are the collection's full document
	// set restricted to the facet field's own postings; without a
	// pre-filtered candidate list wired through from Execute, this scans
	// every stored document, the same fallback the in-memory reference
	// index uses.
	var seqIDs []uint32
	_ = c.kvScanSeqIDs(&seqIDs)

	out := make([]assemble.FacetCount, 0, len(plan.FacetBy))
	values := facetSeqIDSource{c: c}
	for _, fieldName := range plan.FacetBy {
		spec := facet.Spec{
			Field: fieldName, MaxValues: plan.MaxFacetValues,
			SamplePercent: plan.FacetSamplePercent, SampleThreshold: plan.FacetSampleThreshold,
			Query: plan.FacetQuery,
		}
		res := facet.Compute(spec, seqIDs, values)
		fc := assemble.FacetCount{FieldName: fieldName, Sampled: res.Sampled}
		for _, cnt := range res.Counts {
			fc.Counts = append(fc.Counts, assemble.FacetValue{Value: cnt.Value, Count: cnt.Count})
		}
		out = append(out, fc)
	}
	return out
}

func (c *Collection) kvScanSeqIDs(out *[]uint32) error {
	return c.kv.ScanPrefix(context.Background(), seqIDPrefixKey(c.id), func(kv store.KeyValue) bool {
		*out = append(*out, decodeSeqID(kv.Key))
		return true
	})
}
