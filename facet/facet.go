// Package facet implements faceted counting over a candidate seq_id
// set, spec section 4.8: count, range, and wildcard facets with
// sampling, sorting, and nested-array parent resolution.
package facet

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Kind selects a facet field's aggregation mode, spec section 4.8.
type Kind int

const (
	KindCount Kind = iota
	KindRange
	KindWildcard
)

// SortMode selects the facet-value ordering, spec section 4.8: "Sorts by
// count desc then shorter-value then value; alternatively by an _alpha
// order or by an explicit numerical sort field."
type SortMode int

const (
	SortCountDesc SortMode = iota
	SortAlpha
	SortNumerical
)

// RangeBucket is one labeled bucket of a range facet, spec section
// 4.3's facet_by range syntax (e.g. "points:[0,50]").
type RangeBucket struct {
	Label string
	Lo, Hi float64 // Hi is exclusive and applies only when HasHi is set; otherwise there is no upper bound
	HasHi  bool
}

// Spec is one resolved facet_by field's configuration, spec section 4.3's
// facet_by/facet_query/max_facet_values/facet_sample_percent/
// facet_sample_threshold/facet_index_type table.
type Spec struct {
	Field           string
	Kind            Kind
	Ranges          []RangeBucket
	Query           string // facet_query substring filter, empty = no filter
	MaxValues       int
	SamplePercent   int
	SampleThreshold int
	SortMode        SortMode
	ReturnParent    bool
}

// ValueProvider resolves a document's facet values for a field. Scalar
// fields return a single-element slice; array/nested-array fields return
// every value the document carries for that field.
type ValueProvider interface {
	Values(seqID uint32, field string) []string
}

// Count is one facet bucket's result.
type Count struct {
	Value string
	Count int
}

// Result is a single facet field's computed counts, spec section 6's
// "facet_counts" response shape.
type Result struct {
	FieldName string
	Sampled   bool
	Counts    []Count
	Stats     map[string]float64 // numeric min/max/sum/avg, populated by callers that request it
}

// Compute aggregates spec.Field's values across seqIDs, applying
// sampling, facet_query filtering, and range/wildcard bucketing, spec
// section 4.8.
func Compute(spec Spec, seqIDs []uint32, values ValueProvider) Result {
	sampled := false
	candidates := seqIDs
	sampleMultiplier := 1.0

	if spec.SamplePercent > 0 && spec.SamplePercent < 100 && len(seqIDs) > spec.SampleThreshold {
		candidates = bernoulliSample(seqIDs, spec.SamplePercent)
		sampled = true
		if len(candidates) > 0 {
			sampleMultiplier = float64(len(seqIDs)) / float64(len(candidates))
		}
	}

	counts := make(map[string]int)
	for _, id := range candidates {
		for _, v := range values.Values(id, spec.Field) {
			bucket := bucketize(spec, v)
			if bucket == "" {
				continue
			}
			if spec.Query != "" && spec.Kind != KindRange && !strings.Contains(strings.ToLower(v), strings.ToLower(spec.Query)) {
				continue
			}
			counts[bucket]++
		}
	}

	result := Result{FieldName: spec.Field, Sampled: sampled}
	for val, c := range counts {
		if sampled {
			c = int(float64(c)*sampleMultiplier + 0.5)
		}
		result.Counts = append(result.Counts, Count{Value: val, Count: c})
	}
	sortCounts(result.Counts, spec.SortMode)

	if spec.MaxValues > 0 && len(result.Counts) > spec.MaxValues {
		result.Counts = result.Counts[:spec.MaxValues]
	}
	return result
}

func bucketize(spec Spec, v string) string {
	switch spec.Kind {
	case KindRange:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ""
		}
		for _, b := range spec.Ranges {
			if f < b.Lo {
				continue
			}
			if b.HasHi && f >= b.Hi {
				continue
			}
			return b.Label
		}
		return "" // value falls outside every configured bucket: skipped, spec section 4.8 "wildcard facets skip zero-count buckets" generalizes to unmatched values too
	case KindWildcard:
		if spec.Query != "" && !strings.Contains(strings.ToLower(v), strings.ToLower(spec.Query)) {
			return ""
		}
		return v
	default:
		return v
	}
}

// sortCounts orders result buckets per spec section 4.8: count desc,
// then shorter value, then lexicographic value (SortCountDesc); plain
// lexicographic (SortAlpha); or numeric value ascending (SortNumerical).
func sortCounts(counts []Count, mode SortMode) {
	switch mode {
	case SortAlpha:
		sort.Slice(counts, func(i, j int) bool { return counts[i].Value < counts[j].Value })
	case SortNumerical:
		sort.Slice(counts, func(i, j int) bool {
			fi, _ := strconv.ParseFloat(counts[i].Value, 64)
			fj, _ := strconv.ParseFloat(counts[j].Value, 64)
			return fi < fj
		})
	default:
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			if len(counts[i].Value) != len(counts[j].Value) {
				return len(counts[i].Value) < len(counts[j].Value)
			}
			return counts[i].Value < counts[j].Value
		})
	}
}

// bernoulliSample deterministically selects roughly percent% of ids by
// hashing each id rather than calling a process-wide RNG, so sampling a
// fixed candidate set is reproducible across repeated queries (spec
// section 4.8's "applies a per-document Bernoulli selection at a fixed
// percent").
func bernoulliSample(ids []uint32, percent int) []uint32 {
	threshold := uint32(float64(percent) / 100 * float64(1<<32-1))
	out := make([]uint32, 0, len(ids)*percent/100+1)
	for _, id := range ids {
		h := fnv.New32a()
		h.Write([]byte{byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24)})
		if h.Sum32() <= threshold {
			out = append(out, id)
		}
	}
	return out
}

// ParentLookup resolves a representative-parent for a nested array
// facet match, spec section 4.8: "walks the dotted path, returning the
// deepest ancestor whose children contain the matched value."
func ParentLookup(doc map[string]any, fieldPath string, matchedValue string) (map[string]any, bool) {
	parts := strings.Split(fieldPath, ".")
	return walkParent(doc, parts, matchedValue)
}

func walkParent(node map[string]any, parts []string, matchedValue string) (map[string]any, bool) {
	if len(parts) == 0 {
		return nil, false
	}
	key := parts[0]
	v, ok := node[key]
	if !ok {
		return nil, false
	}

	if len(parts) == 1 {
		if containsValue(v, matchedValue) {
			return node, true
		}
		return nil, false
	}

	switch child := v.(type) {
	case map[string]any:
		if parent, ok := walkParent(child, parts[1:], matchedValue); ok {
			return parent, true
		}
		return nil, false
	case []any:
		for _, elem := range child {
			if obj, ok := elem.(map[string]any); ok {
				if parent, ok := walkParent(obj, parts[1:], matchedValue); ok {
					return parent, true
				}
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

func containsValue(v any, target string) bool {
	switch x := v.(type) {
	case string:
		return x == target
	case []any:
		for _, e := range x {
			if containsValue(e, target) {
				return true
			}
		}
	}
	return false
}
