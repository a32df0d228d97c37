package document

import (
	"fmt"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/model"
)

// ReferenceTarget describes one reference field's target, spec section 3.
type ReferenceTarget struct {
	FieldName        string // the reference field's own name in this collection
	TargetCollection string
	TargetField      string
	Optional         bool
	IsArray          bool
	IsObjectArray    bool
}

// ReferenceLookup resolves "ref_field = value" against a target
// collection, the filter-query collaborator add_reference_helper_fields
// issues per spec section 4.1.
type ReferenceLookup interface {
	FilterEquals(collection, field string, value any) (seqIDs []uint32, err error)
}

// AddReferenceHelperFields resolves every configured reference field on
// doc to the paired "<name>_sequence_id" helper, spec section 4.1:
//   - scalar slot: exactly one match required, except that an Optional
//     field may be absent/null or match nothing;
//   - array slot: zero-or-more allowed;
//   - object-array slot: records [object_index, ref_seq_id] pairs.
func AddReferenceHelperFields(doc model.Document, targets []ReferenceTarget, lookup ReferenceLookup) (map[string]any, error) {
	helpers := make(map[string]any, len(targets))

	for _, t := range targets {
		raw, present := doc[t.FieldName]
		if !present || raw == nil {
			if t.Optional {
				continue
			}
			return nil, collerr.Unprocessable("reference field %q is required", t.FieldName)
		}

		switch {
		case t.IsObjectArray:
			arr, ok := raw.([]any)
			if !ok {
				return nil, collerr.BadRequest("reference field %q: expected object array", t.FieldName)
			}
			var pairs [][2]uint32
			for idx, elem := range arr {
				obj, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				v, ok := obj[t.TargetField]
				if !ok {
					continue
				}
				ids, err := lookup.FilterEquals(t.TargetCollection, t.TargetField, v)
				if err != nil {
					return nil, fmt.Errorf("resolving reference %q[%d]: %w", t.FieldName, idx, err)
				}
				for _, id := range ids {
					pairs = append(pairs, [2]uint32{uint32(idx), id})
				}
			}
			helpers[t.FieldName+"_sequence_id"] = pairs

		case t.IsArray:
			arr, ok := raw.([]any)
			if !ok {
				arr = []any{raw}
			}
			var ids []uint32
			for _, v := range arr {
				resolved, err := lookup.FilterEquals(t.TargetCollection, t.TargetField, v)
				if err != nil {
					return nil, fmt.Errorf("resolving reference %q: %w", t.FieldName, err)
				}
				ids = append(ids, resolved...)
			}
			helpers[t.FieldName+"_sequence_id"] = ids

		default:
			ids, err := lookup.FilterEquals(t.TargetCollection, t.TargetField, raw)
			if err != nil {
				return nil, fmt.Errorf("resolving reference %q: %w", t.FieldName, err)
			}
			if len(ids) == 0 {
				if t.Optional {
					continue
				}
				return nil, collerr.NotFound("reference %q: no document in %q with %q = %v", t.FieldName, t.TargetCollection, t.TargetField, raw)
			}
			if len(ids) > 1 {
				return nil, collerr.BadRequest("reference %q: value %v matched %d documents in %q, expected exactly one", t.FieldName, raw, len(ids), t.TargetCollection)
			}
			helpers[t.FieldName+"_sequence_id"] = ids[0]
		}
	}

	return helpers, nil
}
