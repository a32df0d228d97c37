// Package rank implements the bounded top-K candidate selector (the
// "topster") described in spec section 4.5 and grounded directly on
// original_source/include/topster.h: a fixed-capacity binary heap kept
// as a flat array, hand-rolled rather than routed through container/heap
// so the hot insertion loop stays a tight array scan (spec section 9's
// "Heap-based proximity scoring"/"Topster" design notes ask for the same
// discipline).
package rank

import "github.com/antflydb/collectioncore/model"

// Comparator reports whether a ranks strictly better than b. It must
// already resolve every tiebreak (callers get DefaultComparator, which
// compares the Scores tuple lexicographically and falls back to seq_id
// descending) so the heap never needs a secondary key.
type Comparator func(a, b model.KV) bool

// DefaultComparator compares KVs by their Scores tuple, highest first,
// slot 0 before slot 1 before slot 2 (spec section 4.5's "composite score
// ... tiebreak with id as the final tiebreak").
func DefaultComparator(a, b model.KV) bool {
	for i := 0; i < 3; i++ {
		if a.Scores[i] != b.Scores[i] {
			return a.Scores[i] > b.Scores[i]
		}
	}
	return a.SeqID > b.SeqID
}

// Topster retains at most Capacity candidates under Comparator, spec
// section 4.5. The zero value is not usable; construct with NewTopster.
type Topster struct {
	Capacity int
	better   Comparator
	data     []model.KV
}

// NewTopster returns a Topster that retains at most capacity candidates,
// ranked by better.
func NewTopster(capacity int, better Comparator) *Topster {
	if better == nil {
		better = DefaultComparator
	}
	return &Topster{Capacity: capacity, better: better, data: make([]model.KV, 0, capacity)}
}

// Len returns the number of candidates currently retained.
func (t *Topster) Len() int { return len(t.data) }

// Add offers kv to the topster. Below capacity it is always retained;
// at capacity it replaces the current worst-retained candidate only if
// it ranks better, per topster.h's add().
func (t *Topster) Add(kv model.KV) {
	if len(t.data) < t.Capacity {
		t.data = append(t.data, kv)
		t.siftUp(len(t.data) - 1)
		return
	}
	if !t.better(kv, t.data[0]) {
		return
	}
	t.data[0] = kv
	t.siftDown(0)
}

// worseIdx reports whether i ranks strictly worse than j, the heap's
// ordering relation: root (index 0) is always the single worst
// candidate currently retained, so Add can test/evict it in O(1).
func (t *Topster) worseIdx(i, j int) bool {
	return t.better(t.data[j], t.data[i])
}

func (t *Topster) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if t.worseIdx(i, parent) {
			t.data[i], t.data[parent] = t.data[parent], t.data[i]
			i = parent
		} else {
			break
		}
	}
}

func (t *Topster) siftDown(i int) {
	n := len(t.data)
	for {
		left, right := 2*i+1, 2*i+2
		worst := i
		if left < n && t.worseIdx(left, worst) {
			worst = left
		}
		if right < n && t.worseIdx(right, worst) {
			worst = right
		}
		if worst == i {
			break
		}
		t.data[i], t.data[worst] = t.data[worst], t.data[i]
		i = worst
	}
}

// Sort returns the retained candidates in descending order (best first)
// per Comparator. The topster remains usable afterward; Sort
// does not mutate the retention heap, only the slice it returns.
func (t *Topster) Sort() []model.KV {
	out := make([]model.KV, len(t.data))
	copy(out, t.data)
	insertionSortDesc(out, t.better)
	return out
}

// FillRatio reports Len()/Capacity, used by obsmetrics.TopsterFillRatio.
func (t *Topster) FillRatio() float64 {
	if t.Capacity == 0 {
		return 0
	}
	return float64(len(t.data)) / float64(t.Capacity)
}

// insertionSortDesc is a small stable sort; topster result sets are
// small (bounded by Capacity, typically a few hundred) so an O(n^2)
// worst case never matters and stability keeps ties in insertion order.
func insertionSortDesc(kvs []model.KV, better Comparator) {
	for i := 1; i < len(kvs); i++ {
		v := kvs[i]
		j := i - 1
		for j >= 0 && better(v, kvs[j]) {
			kvs[j+1] = kvs[j]
			j--
		}
		kvs[j+1] = v
	}
}
