package document

import (
	"strconv"
	"strings"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/model"
)

// IDResolver looks up the seq_id a doc_id currently maps to, the
// collaborator to_record needs to decide Create/Update/Upsert/Emplace
// semantics without reaching into the store directly.
type IDResolver interface {
	SeqIDFor(docID string) (seqID uint32, exists bool)
}

// ToRecordRequest bundles to_record's inputs, spec section 4.1.
type ToRecordRequest struct {
	Doc       model.Document
	Op        model.Op
	Dirty     model.DirtyValuesPolicy
	ProvidedID string // non-empty if the caller passed an id argument separately from the body
	NextSeqID func() uint32
}

// ToRecordResult is to_record's successful output.
type ToRecordResult struct {
	SeqID uint32
	IsNew bool
	ID    string
}

// ToRecord validates and assigns identity to a single document mutation
// per spec section 4.1's rules:
//   - Create fails 409 if id exists; Update fails 404 if absent; Upsert/
//     Emplace adapt to whichever is true.
//   - Missing id is auto-generated from next_seq_id.
//   - id must be a non-empty string and, when both body and argument
//     provide it, they must match.
func ToRecord(req ToRecordRequest, resolver IDResolver) (ToRecordResult, error) {
	if raw, ok := req.Doc["id"]; ok {
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			return ToRecordResult{}, collerr.BadRequest("document id must be a non-empty string")
		}
	}
	bodyID, bodyHasID := docID(req.Doc)

	id := req.ProvidedID
	switch {
	case req.ProvidedID != "" && bodyHasID && bodyID != req.ProvidedID:
		return ToRecordResult{}, collerr.BadRequest("document id %q does not match request id %q", bodyID, req.ProvidedID)
	case req.ProvidedID == "" && bodyHasID:
		id = bodyID
	}

	if id == "" {
		if req.Op == model.OpUpdate {
			return ToRecordResult{}, collerr.BadRequest("update requires an id")
		}
		id = strconv.FormatUint(uint64(req.NextSeqID()), 10)
	}

	existingSeqID, exists := resolver.SeqIDFor(id)

	switch req.Op {
	case model.OpCreate:
		if exists {
			return ToRecordResult{}, collerr.Conflict("document with id %q already exists", id)
		}
		return ToRecordResult{SeqID: req.NextSeqID(), IsNew: true, ID: id}, nil
	case model.OpUpdate:
		if !exists {
			return ToRecordResult{}, collerr.NotFound("document with id %q not found", id)
		}
		return ToRecordResult{SeqID: existingSeqID, IsNew: false, ID: id}, nil
	case model.OpUpsert, model.OpEmplace:
		if exists {
			return ToRecordResult{SeqID: existingSeqID, IsNew: false, ID: id}, nil
		}
		return ToRecordResult{SeqID: req.NextSeqID(), IsNew: true, ID: id}, nil
	default:
		return ToRecordResult{}, collerr.BadRequest("unknown op")
	}
}

func docID(doc model.Document) (string, bool) {
	raw, ok := doc["id"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), s != ""
}
