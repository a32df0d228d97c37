package rank

import "github.com/antflydb/collectioncore/model"

// maxGroupLimit is the spec section 4.5 cap on group_limit.
const maxGroupLimit = 99

// GroupedTopster composes an outer Topster of capacity Capacity with one
// inner Topster of capacity GroupLimit per distinct_key, spec section
// 4.5's grouped variant.
type GroupedTopster struct {
	Capacity   int
	GroupLimit int
	better     Comparator

	groups map[uint64]*Topster
	order  []uint64 // first-seen order, used only to keep Sort deterministic pre-outer-ranking
}

// NewGroupedTopster returns a GroupedTopster; groupLimit is clamped to
// maxGroupLimit per spec.
func NewGroupedTopster(capacity, groupLimit int, better Comparator) *GroupedTopster {
	if groupLimit > maxGroupLimit {
		groupLimit = maxGroupLimit
	}
	if groupLimit < 1 {
		groupLimit = 1
	}
	if better == nil {
		better = DefaultComparator
	}
	return &GroupedTopster{
		Capacity:   capacity,
		GroupLimit: groupLimit,
		better:     better,
		groups:     make(map[uint64]*Topster),
	}
}

// Add offers kv into its distinct_key's inner topster, creating the
// group's topster on first sight.
func (g *GroupedTopster) Add(kv model.KV) {
	inner, ok := g.groups[kv.DistinctKey]
	if !ok {
		inner = NewTopster(g.GroupLimit, g.better)
		g.groups[kv.DistinctKey] = inner
		g.order = append(g.order, kv.DistinctKey)
	}
	inner.Add(kv)
}

// GroupCount returns the number of distinct groups seen so far.
func (g *GroupedTopster) GroupCount() int { return len(g.groups) }

// Group is one sorted group in a GroupedTopster's result.
type Group struct {
	DistinctKey uint64
	Hits        []model.KV
	Found       int // total candidates ever added to this group, not just retained
}

// GroupFoundTracker tracks each group's true cardinality separately from
// its retained-hit count, since the inner topster only keeps GroupLimit
// of potentially many more candidates.
type GroupFoundTracker map[uint64]int

// Sort sorts every inner group, then ranks the groups themselves by each
// group's representative (its own top element), producing at most
// Capacity groups. If groupFoundOrder is non-nil, the representative's
// lead score is overwritten with the group's Found size (negated when
// groupFoundOrder is SortAsc), spec section 4.5's group_found sort field.
func (g *GroupedTopster) Sort(found GroupFoundTracker, groupFoundOrder *model.SortOrder) []Group {
	type repGroup struct {
		rep   model.KV
		group Group
	}

	reps := make([]repGroup, 0, len(g.groups))
	for _, key := range g.order {
		inner := g.groups[key]
		sorted := inner.Sort()
		if len(sorted) == 0 {
			continue
		}
		rep := sorted[0]
		n := found[key]
		if n == 0 {
			n = len(sorted)
		}
		if groupFoundOrder != nil {
			score := int64(n)
			if *groupFoundOrder == model.SortAsc {
				score = -score
			}
			rep.Scores[0] = score
		}
		reps = append(reps, repGroup{rep: rep, group: Group{DistinctKey: key, Hits: sorted, Found: n}})
	}

	outer := NewTopster(g.Capacity, g.better)
	repByKey := make(map[uint32]repGroup, len(reps))
	for _, r := range reps {
		outer.Add(r.rep)
		repByKey[r.rep.SeqID] = r // seq_id of the representative is unique across groups at a point in time
	}

	orderedReps := outer.Sort()
	out := make([]Group, 0, len(orderedReps))
	for _, rep := range orderedReps {
		if rg, ok := repByKey[rep.SeqID]; ok {
			out = append(out, rg.group)
		}
	}
	return out
}
