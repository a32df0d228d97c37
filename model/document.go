package model

// Document is a JSON object keyed by field name. Nested objects are
// stored as nested map[string]any/[]any the way encoding/json decodes
// them; FlattenedDocument carries the dotted-key projection used for
// indexing alongside the original structure used for retrieval.
type Document map[string]any

// FlattenedDocument pairs a document's original JSON shape with its
// dotted-key flattening, spec section 3: "Nested objects are flattened to
// dotted keys for indexing while the original structure is preserved for
// retrieval."
type FlattenedDocument struct {
	Original Document
	// Flat maps a dotted field path (e.g. "address.city") to its scalar
	// or array-of-scalar value.
	Flat map[string]any
}

// StoredDocument is what to_record hands to the indexing pipeline: the
// seq_id-addressed record plus the flattening and the reference-helper
// fields resolved for it (spec section 4.1's add_reference_helper_fields).
type StoredDocument struct {
	SeqID       uint32
	ID          string
	Doc         FlattenedDocument
	// ReferenceSeqIDs maps a reference field's name to its resolved
	// seq_id(s) in the target collection: a single uint32 for a scalar
	// slot, []uint32 for an array slot, or [][2]uint32 (index, seq_id)
	// pairs for an object-array slot.
	ReferenceSeqIDs map[string]any
}

// Op is the write verb a document mutation was requested under, spec
// section 4.1's to_record contract.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpUpsert
	OpEmplace
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpUpsert:
		return "upsert"
	case OpEmplace:
		return "emplace"
	default:
		return "unknown"
	}
}

// DirtyValuesPolicy governs how to_record/validate reacts to a field
// value that doesn't match its schema type, spec section 4.1.
type DirtyValuesPolicy int

const (
	DirtyReject DirtyValuesPolicy = iota
	DirtyDrop
	DirtyCoerceOrReject
	DirtyCoerceOrDrop
)

// LineResult is the per-record outcome of an add_many batch call, spec
// section 4.2.
type LineResult struct {
	Success bool
	SeqID   uint32
	Doc     Document // only populated when ReturnDoc was requested
	ID      string   // only populated when ReturnID was requested
	Error   error
}

// BatchResult is the aggregate outcome of an add_many call.
type BatchResult struct {
	NumImported int
	Results     []LineResult
}
