package collection

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/document"
	"github.com/antflydb/collectioncore/jsonutil"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/obslog"
	"github.com/antflydb/collectioncore/obsmetrics"
	"github.com/antflydb/collectioncore/overrides"
	"github.com/antflydb/collectioncore/rerank"
	"github.com/antflydb/collectioncore/store"
	"github.com/antflydb/collectioncore/synonym"
)

// Collection is one schema'd unit of documents plus its catalog state,
// spec section 5: "Each collection owns a primary shared/exclusive lock
// protecting its schema and field maps, plus a separate lifecycle lock
// preventing destruction while in use."
//
// Writing a document's postings into InvertedIndex/VectorIndex is not
// this package's job: those two collaborators are read-only lookup
// surfaces from the core's perspective (spec section 1 scopes the real
// indexer out); Collection only persists the document through Store and
// assumes the configured indexes observe that write independently.
type Collection struct {
	id   uint32
	name string

	kv         store.Store
	invIdx     store.InvertedIndex
	vecIdx     store.VectorIndex
	filterEval store.FilterEvaluator

	// embedder/reranker/refLookup are the optional domain collaborators
	// spec section 1 scopes out as external services: nil means the
	// corresponding feature (embed.from fields, vector_query auto-
	// embedding, post-rank reranking, reference fields) is unconfigured
	// and degrades to its no-op behavior rather than erroring, except
	// reference fields, which are a document invariant once declared.
	embedder  document.Embedder
	reranker  rerank.Model
	refLookup document.ReferenceLookup

	metrics *obsmetrics.Collectors
	logger  *zap.Logger

	// schemaMu is the primary shared/exclusive lock guarding schema and
	// the override/synonym sets, spec section 5.
	schemaMu sync.RWMutex
	schema   *model.Schema
	meta     Meta
	overrideSet *overrides.Set
	synonymIdx  *synonym.Index

	// lifecycleMu prevents Close/Drop while any operation is in flight,
	// spec section 5's "separate lifecycle lock".
	lifecycleMu sync.RWMutex
	closed      bool

	nextSeqID    atomic.Uint32
	numDocuments atomic.Int64
}

// Config bundles a Collection's external collaborators and initial
// catalog state, spec section 1's collaborator list.
type Config struct {
	Store          store.Store
	InvertedIndex  store.InvertedIndex
	VectorIndex    store.VectorIndex
	FilterEvaluator store.FilterEvaluator

	// Embedder resolves embed.from fields during validation (spec
	// section 4.1) and vector_query auto-embedding during planning
	// (spec section 4.3). Leave nil to skip auto-embedding entirely.
	Embedder document.Embedder
	// Reranker, when set, reorders the top text/vector candidates
	// before assembly (spec section 4.4's fused scoring).
	Reranker rerank.Model
	// ReferenceLookup resolves reference field values against their
	// target collection (spec section 4.1's add_reference_helper_fields).
	// Required only if the schema declares a reference field.
	ReferenceLookup document.ReferenceLookup

	Metrics        *obsmetrics.Collectors
	Logger         *zap.Logger
}

// Open loads (or initializes, if absent) the collection named name from
// kv's catalog keys, spec section 6's $CM_/$CS_/$CO_ records.
func Open(ctx context.Context, name string, schema *model.Schema, cfg Config) (*Collection, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = obslog.NewLogger(nil)
	}

	c := &Collection{
		name:       name,
		kv:         cfg.Store,
		invIdx:     cfg.InvertedIndex,
		vecIdx:     cfg.VectorIndex,
		filterEval: cfg.FilterEvaluator,
		embedder:   cfg.Embedder,
		reranker:   cfg.Reranker,
		refLookup:  cfg.ReferenceLookup,
		metrics:    cfg.Metrics,
		logger:     logger,
		schema:     schema,
	}

	raw, found, err := cfg.Store.Get(ctx, metaKey(name))
	if err != nil {
		return nil, err
	}
	if found {
		var meta Meta
		if err := jsonutil.Unmarshal(raw, &meta); err != nil {
			return nil, collerr.Internal(err, "decoding collection meta for %q", name)
		}
		c.meta = meta
		c.id = meta.ID
		c.schema = model.NewSchema(meta.Fields)
	} else {
		c.meta = Meta{Name: name, Fields: schema.Fields}
	}

	counterRaw, found, err := cfg.Store.Get(ctx, seqCounterKey(name))
	if err != nil {
		return nil, err
	}
	if found {
		n, err := strconv.ParseUint(string(counterRaw), 10, 32)
		if err != nil {
			return nil, collerr.Internal(err, "decoding seq counter for %q", name)
		}
		c.nextSeqID.Store(uint32(n))
	}

	var overrideList []model.Override
	if err := cfg.Store.ScanPrefix(ctx, overridePrefixKey(name), func(kv store.KeyValue) bool {
		var o model.Override
		if err := jsonutil.Unmarshal(kv.Value, &o); err == nil {
			overrideList = append(overrideList, o)
		}
		return true
	}); err != nil {
		return nil, err
	}
	c.overrideSet = overrides.NewSet(overrideList)
	c.synonymIdx = synonym.NewIndex(nil)

	count := 0
	if err := cfg.Store.ScanPrefix(ctx, seqIDPrefixKey(c.id), func(store.KeyValue) bool {
		count++
		return true
	}); err != nil {
		return nil, err
	}
	c.numDocuments.Store(int64(count))

	c.logger.Info("collection opened", zap.String("collection", name), zap.Uint32("collection_id", c.id), zap.Int("documents", count))
	return c, nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Schema returns the live schema. The shared lock is held only while the
// pointer is read, so a later Alter can change the returned schema in
// place.
func (c *Collection) Schema() *model.Schema {
	c.schemaMu.RLock()
	defer c.schemaMu.RUnlock()
	return c.schema
}

// Overrides returns the collection's curation rule set.
func (c *Collection) Overrides() *overrides.Set { return c.overrideSet }

// Synonyms returns the collection's synonym index.
func (c *Collection) Synonyms() *synonym.Index { return c.synonymIdx }

// SetSynonyms replaces the synonym index, e.g. after a synonym CRUD
// operation (out of this package's narrow scope beyond storage, spec
// section 6 only names the override catalog key; synonym persistence
// follows the same $CO_-style convention left to the caller).
func (c *Collection) SetSynonyms(idx *synonym.Index) {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	c.synonymIdx = idx
}

// Stats is the collection's point-in-time counters, SPEC_FULL.md section
// C item 4: "Collection metadata additionally carries a num_documents
// live counter separate from next_seq_id, since deletes decrement one
// but never the other."
type Stats struct {
	NextSeqID    uint32
	NumDocuments int64
}

func (c *Collection) Stats() Stats {
	return Stats{NextSeqID: c.nextSeqID.Load(), NumDocuments: c.numDocuments.Load()}
}

// nextSeq allocates the next seq_id, spec section 5: "the sequence id
// counter is monotonically incremented under the schema lock."
func (c *Collection) nextSeq(ctx context.Context) (uint32, error) {
	id := c.nextSeqID.Add(1) - 1
	if err := c.kv.BatchWrite(ctx, []store.KeyValue{{
		Key:   seqCounterKey(c.name),
		Value: []byte(strconv.FormatUint(uint64(id+1), 10)),
	}}, nil); err != nil {
		return 0, err
	}
	return id, nil
}

// withSchemaShared runs fn holding the schema lock for reads, spec
// section 4.2's "Read operations acquire shared access."
func (c *Collection) withSchemaShared(fn func() error) error {
	c.schemaMu.RLock()
	defer c.schemaMu.RUnlock()
	return fn()
}

// withSchemaExclusive runs fn holding the schema lock for writes. The
// document writes (AddOne, AddMany, Delete) hold it for the whole write,
// durable store write included, so searches wait for them.
func (c *Collection) withSchemaExclusive(fn func() error) error {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	return fn()
}

// Close marks the collection closed under its lifecycle lock, spec
// section 5's "lifecycle lock preventing destruction while in use."
func (c *Collection) Close() error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.closed = true
	return nil
}

func (c *Collection) acquireLifecycle() (func(), error) {
	c.lifecycleMu.RLock()
	if c.closed {
		c.lifecycleMu.RUnlock()
		return nil, collerr.NotFound("collection %q is closed", c.name)
	}
	return c.lifecycleMu.RUnlock, nil
}

// persistMeta writes the current schema/meta to its catalog key.
func (c *Collection) persistMeta(ctx context.Context) error {
	c.meta.Fields = c.schema.Fields
	raw, err := jsonutil.Marshal(c.meta)
	if err != nil {
		return collerr.Internal(err, "encoding collection meta for %q", c.name)
	}
	return c.kv.BatchWrite(ctx, []store.KeyValue{{Key: metaKey(c.name), Value: raw}}, nil)
}
