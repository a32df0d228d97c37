// Package collection ties schema, document, query, search, rank,
// assemble, highlight, facet, and alter together into the Collection
// struct spec section 1 calls "the collection core": one schema'd,
// independently locked unit of documents plus its catalog state.
package collection

import (
	"strconv"

	"github.com/antflydb/collectioncore/model"
)

// Meta is the collection-level catalog record persisted under the
// $CM_<name> key, spec section 6: "collection meta JSON (id, fields,
// fallback type, symbols, separators, metadata, default_sorting_field,
// voice_query_model)".
type Meta struct {
	ID                  uint32        `json:"id"`
	Name                string        `json:"name"`
	Fields              []model.Field `json:"fields"`
	FallbackType        model.FieldType `json:"fallback_type,omitempty"`
	EnableNestedFields  bool          `json:"enable_nested_fields,omitempty"`
	DefaultSortingField string        `json:"default_sorting_field,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	VoiceQueryModel     string        `json:"voice_query_model,omitempty"`
}

// catalog key scheme, spec section 6. Prefix "$" groups catalog keys
// lexicographically before any collection's own "<id>_$..." record keys.
const (
	metaPrefix     = "$CM_"
	seqCounterPrefix = "$CS_"
	overridePrefix = "$CO_"
	docIDInfix     = "_$DI_"
	seqIDInfix     = "_$SI_"
	convModelPrefix = "$CVMP_"
	recModelPrefix  = "$REMP_"
)

func metaKey(name string) []byte { return []byte(metaPrefix + name) }

func seqCounterKey(name string) []byte { return []byte(seqCounterPrefix + name) }

func overrideKey(name, overrideID string) []byte {
	return []byte(overridePrefix + name + "_" + overrideID)
}

func overridePrefixKey(name string) []byte {
	return []byte(overridePrefix + name + "_")
}

// docIDKey maps a collection's doc_id to its seq_id, spec section 6:
// "<id>_$DI_<doc_id> → seq_id (as ASCII unsigned int)".
func docIDKey(collID uint32, docID string) []byte {
	return []byte(strconv.FormatUint(uint64(collID), 10) + docIDInfix + docID)
}

func docIDPrefixKey(collID uint32) []byte {
	return []byte(strconv.FormatUint(uint64(collID), 10) + docIDInfix)
}

// seqIDKey maps a collection's seq_id to its stored document JSON, big-
// endian encoded so key order matches seq_id order for ScanPrefix, spec
// section 6: "<id>_$SI_<be32(seq_id)> → document JSON".
func seqIDKey(collID uint32, seqID uint32) []byte {
	key := make([]byte, 0, 16)
	key = append(key, strconv.FormatUint(uint64(collID), 10)...)
	key = append(key, seqIDInfix...)
	key = append(key, byte(seqID>>24), byte(seqID>>16), byte(seqID>>8), byte(seqID))
	return key
}

func seqIDPrefixKey(collID uint32) []byte {
	return []byte(strconv.FormatUint(uint64(collID), 10) + seqIDInfix)
}

func convModelKey(modelID string) []byte { return []byte(convModelPrefix + modelID) }

func recModelKey(modelID string) []byte { return []byte(recModelPrefix + modelID) }

// CatalogPrefixes returns the key prefixes that together cover this
// collection's entire catalog and document state, spec section 6's key
// scheme: collection meta, the sequence counter, overrides, the
// doc_id->seq_id map, and the seq_id->json map. snapshot.Export scans
// each of these in turn to produce a full backup.
func (c *Collection) CatalogPrefixes() [][]byte {
	return [][]byte{
		metaKey(c.name),
		seqCounterKey(c.name),
		overridePrefixKey(c.name),
		docIDPrefixKey(c.id),
		seqIDPrefixKey(c.id),
	}
}

// ID returns the collection's immutable numeric id, spec section 3.
func (c *Collection) ID() uint32 { return c.id }

// decodeSeqID reverses seqIDKey's big-endian suffix.
func decodeSeqID(key []byte) uint32 {
	n := len(key)
	if n < 4 {
		return 0
	}
	b := key[n-4:]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
