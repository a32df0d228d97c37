package model

// CuratedRecordIdentifier is the match_score_index sentinel curated hits
// are inserted into the topster under, spec section 4.4.
const CuratedRecordIdentifier = 100

// KV is a ranker candidate, spec section 3's "Ranker candidate (KV)".
// Scores holds the up-to-three-slot composite sort key, filled in the
// order the query plan's SortFields declares; Topster.Sort orders
// candidates by this tuple, highest first per slot, with SeqID as the
// final descending tiebreak.
type KV struct {
	QueryIndex            int
	SeqID                 uint32
	DistinctKey           uint64 // group_by hash; 0 when not grouping
	MatchScoreIndex       int    // which Scores slot text_match_score lives in, or CuratedRecordIdentifier
	Scores                [3]int64
	TextMatchScore        int64
	VectorDistance        float32
	HasVectorDistance     bool
	ReferenceFilterResult map[string][]uint32
	Curated               bool
}

// SortOrder is ascending or descending for a single sort clause.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortFieldKind enumerates the clause kinds spec section 4.3's sort_by
// table names.
type SortFieldKind int

const (
	SortTextMatch SortFieldKind = iota
	SortVectorDistance
	SortSeqID
	SortEval
	SortGeoField
	SortScalarField
	SortReference // $coll(expr)
)

// SortField is one resolved sort_by clause. At most three appear in a
// Plan, spec section 4.3.
type SortField struct {
	Kind    SortFieldKind
	Field   string
	Order   SortOrder
	// EvalExpr is the filter expression for a SortEval clause; Weight is
	// its "+n"/"-n" contribution.
	EvalExpr string
	Weight   int64
	// GeoPoint is the reference point for a geo-field sort clause.
	GeoPoint [2]float64
	// ReferenceCollection/ReferenceField identify a $coll(expr) sort.
	ReferenceCollection string
	ReferenceField      string
}
