package assemble

import "github.com/antflydb/collectioncore/model"

// JoinStrategy selects how a reference inclusion clause attaches the
// referenced document(s) to the host document, spec section 4.6 step 3.
type JoinStrategy string

const (
	JoinMerge     JoinStrategy = "merge"
	JoinNest      JoinStrategy = "nest"
	JoinNestArray JoinStrategy = "nest_array"
)

// ReferenceClause is one resolved reference-inclusion clause, spec
// section 4.6 step 3.
type ReferenceClause struct {
	Collection    string
	IncludeFields []string
	ExcludeFields []string
	Alias         string
	Strategy      JoinStrategy
	// NestedJoinIncludes recurses the same resolution one level deeper
	// for a reference field on the referenced collection itself.
	NestedJoinIncludes []ReferenceClause
}

// ReferenceResolver fetches the referenced document(s) for a host
// document's resolved seq_id(s) in another collection. Implemented by
// the (out-of-scope) store/collection-registry layer; this package only
// drives the merge/nest shaping.
type ReferenceResolver interface {
	// FetchOne returns the single referenced document for a scalar
	// reference slot.
	FetchOne(collection string, seqID uint32) (model.Document, bool, error)
	// FetchMany returns the referenced documents for an array reference
	// slot, in the order given.
	FetchMany(collection string, seqIDs []uint32) ([]model.Document, error)
}

// ResolveReferences attaches each configured ReferenceClause's joined
// document(s) onto doc, spec section 4.6 step 3:
//   - one-to-one merges or nests a single object;
//   - one-to-many produces an array under alias/collection when
//     nesting, or broadcasts value-arrays under alias+key when merging.
func ResolveReferences(doc model.Document, referenceSeqIDs map[string]any, clauses []ReferenceClause, resolver ReferenceResolver) (model.Document, error) {
	for _, clause := range clauses {
		helperKey := clause.Collection + "_sequence_id" // convention: helper name mirrors the target collection when no explicit field alias is given
		raw, ok := referenceSeqIDs[helperKey]
		if !ok {
			continue
		}

		switch ids := raw.(type) {
		case uint32:
			joined, found, err := resolver.FetchOne(clause.Collection, ids)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			projected := projectReferenced(joined, clause)
			attachOne(doc, projected, clause)

		case []uint32:
			joined, err := resolver.FetchMany(clause.Collection, ids)
			if err != nil {
				return nil, err
			}
			projected := make([]model.Document, len(joined))
			for i, j := range joined {
				projected[i] = projectReferenced(j, clause)
			}
			attachMany(doc, projected, clause)

		case [][2]uint32:
			seqIDs := make([]uint32, len(ids))
			for i, pair := range ids {
				seqIDs[i] = pair[1]
			}
			joined, err := resolver.FetchMany(clause.Collection, seqIDs)
			if err != nil {
				return nil, err
			}
			projected := make([]model.Document, len(joined))
			for i, j := range joined {
				projected[i] = projectReferenced(j, clause)
			}
			attachMany(doc, projected, clause)
		}
	}
	return doc, nil
}

func projectReferenced(doc model.Document, clause ReferenceClause) model.Document {
	projector := NewProjector(clause.IncludeFields, clause.ExcludeFields)
	return projector.Project(doc)
}

func aliasOrCollection(clause ReferenceClause) string {
	if clause.Alias != "" {
		return clause.Alias
	}
	return clause.Collection
}

// attachOne handles a scalar reference slot: merge folds the joined
// document's fields into doc (prefixed by alias if set), nest places it
// under a single key.
func attachOne(doc model.Document, joined model.Document, clause ReferenceClause) {
	switch clause.Strategy {
	case JoinMerge:
		for k, v := range joined {
			key := k
			if clause.Alias != "" {
				key = clause.Alias + "." + k
			}
			doc[key] = v
		}
	default: // JoinNest, JoinNestArray treated the same for a singular slot
		doc[aliasOrCollection(clause)] = joined
	}
}

// attachMany handles an array reference slot: merge broadcasts each
// field as a value-array under "alias.key" (or "collection.key"); nest/
// nest_array places the joined documents as an array under alias.
func attachMany(doc model.Document, joined []model.Document, clause ReferenceClause) {
	switch clause.Strategy {
	case JoinMerge:
		keys := map[string]bool{}
		for _, j := range joined {
			for k := range j {
				keys[k] = true
			}
		}
		prefix := clause.Collection
		if clause.Alias != "" {
			prefix = clause.Alias
		}
		for k := range keys {
			vals := make([]any, len(joined))
			for i, j := range joined {
				vals[i] = j[k]
			}
			doc[prefix+"."+k] = vals
		}
	default:
		arr := make([]any, len(joined))
		for i, j := range joined {
			arr[i] = map[string]any(j)
		}
		doc[aliasOrCollection(clause)] = arr
	}
}
