// Package store declares the collaborator interfaces the collection core
// consumes but does not implement: the durable key-value store, the
// inverted-index primitives (trie + posting lists), the vector index, and
// the filter evaluator. Spec section 1 scopes all four out as external
// collaborators; this package also provides a small in-memory Store used
// only by this module's own tests, standing in for the real prefix-
// scannable, batch-writable byte store named there.
package store

import "context"

// KeyValue is a single key/value pair, used by BatchWrite and prefix
// scans.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Store is the durable, prefix-scannable, batch-writable byte store spec
// section 1 names as an external collaborator. The collection core never
// reaches into its internals — only through this interface — so the
// catalog key scheme in spec section 6 is the only contract between them.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	// BatchWrite atomically applies puts and deletes. Spec section 4.2
	// requires the (doc_id -> seq_id) and (seq_id -> json) keys to land
	// in a single durable batch write.
	BatchWrite(ctx context.Context, puts []KeyValue, deletes [][]byte) error
	// ScanPrefix iterates all keys with the given prefix in key order,
	// calling fn for each; it stops early if fn returns false.
	ScanPrefix(ctx context.Context, prefix []byte, fn func(KeyValue) bool) error
}

// Posting is one document's token offsets for a (field, token) pair,
// spec section 3's "Posting list".
type Posting struct {
	SeqID   uint32
	Offsets []uint16
}

// PostingList is the result of a single-token lookup against a field's
// inverted index.
type PostingList interface {
	// Postings streams postings in ascending seq_id order.
	Postings(ctx context.Context) iterPostings
	Size() int
}

type iterPostings = func(yield func(Posting) bool)

// InvertedIndex is the trie + posting-list primitive spec section 1 scopes
// out. field is a flattened field name; token is a single normalized
// token.
type InvertedIndex interface {
	// Lookup returns the exact-match posting list for (field, token), or
	// nil if the token has no postings.
	Lookup(ctx context.Context, field, token string) (PostingList, error)
	// LookupTypo returns posting lists for tokens within maxTypos edit
	// distance of token, most exact first, capped at maxCandidates.
	LookupTypo(ctx context.Context, field, token string, maxTypos int, maxCandidates int) ([]PostingList, error)
	// LookupPrefix returns posting lists for tokens with the given prefix,
	// capped at maxCandidates.
	LookupPrefix(ctx context.Context, field, prefix string, maxCandidates int) ([]PostingList, error)
	// LookupInfix returns posting lists for tokens containing infix as a
	// substring, capped at maxCandidates.
	LookupInfix(ctx context.Context, field, infix string, maxCandidates int) ([]PostingList, error)
}

// VectorIndex is the approximate nearest-neighbor collaborator behind a
// float[]#vector field, spec section 1.
type VectorIndex interface {
	// Search returns the k nearest seq_ids to query and their distances,
	// ascending by distance.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
}

// VectorHit is one nearest-neighbor result.
type VectorHit struct {
	SeqID    uint32
	Distance float32
}

// FilterEvaluator evaluates a parsed filter_by expression against the
// index's scalar/geo/reference fields, spec section 1.
type FilterEvaluator interface {
	// Evaluate returns the seq_ids satisfying expr, ascending.
	Evaluate(ctx context.Context, expr string) ([]uint32, error)
}
