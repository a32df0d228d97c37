package collection

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/document"
	"github.com/antflydb/collectioncore/jsonutil"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/schema"
	"github.com/antflydb/collectioncore/store"
)

// idResolver adapts the collection's Store into document.IDResolver,
// spec section 4.1's "doc_id → seq_id" lookup.
type idResolver struct {
	ctx context.Context
	c   *Collection
}

func (r idResolver) SeqIDFor(docID string) (uint32, bool) {
	raw, found, err := r.c.kv.Get(r.ctx, docIDKey(r.c.id, docID))
	if err != nil || !found {
		return 0, false
	}
	n, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// DocumentBySeqID implements assemble.DocFetcher by reading a single
// seq_id's stored document.
func (c *Collection) DocumentBySeqID(seqID uint32) (model.Document, bool, error) {
	raw, found, err := c.kv.Get(context.Background(), seqIDKey(c.id, seqID))
	if err != nil || !found {
		return nil, found, err
	}
	var doc model.Document
	if err := jsonutil.Unmarshal(raw, &doc); err != nil {
		return nil, false, collerr.Internal(err, "decoding document seq_id %d in %q", seqID, c.name)
	}
	return doc, true, nil
}

// AddOneRequest is a single document mutation, spec section 4.1.
type AddOneRequest struct {
	Doc        model.Document
	Op         model.Op
	Dirty      model.DirtyValuesPolicy
	ProvidedID string
	ReturnDoc  bool
	ReturnID   bool
}

// AddOne validates and persists a single document, spec sections 4.1-4.2
// applied to exactly one record (add_many's per-line behavior with
// batch-boundary bookkeeping removed).
func (c *Collection) AddOne(ctx context.Context, req AddOneRequest) (model.LineResult, error) {
	release, err := c.acquireLifecycle()
	if err != nil {
		return model.LineResult{}, err
	}
	defer release()

	var result model.LineResult
	err = c.withSchemaExclusive(func() error {
		res, werr := c.indexOne(ctx, req)
		result = res
		return werr
	})
	return result, err
}

// indexOne performs the full to_record -> discover -> validate -> write
// sequence for one document. Caller holds the schema lock exclusively.
func (c *Collection) indexOne(ctx context.Context, req AddOneRequest) (model.LineResult, error) {
	tr, err := document.ToRecord(document.ToRecordRequest{
		Doc:        req.Doc,
		Op:         req.Op,
		Dirty:      req.Dirty,
		ProvidedID: req.ProvidedID,
		NextSeqID:  func() uint32 { id, _ := c.nextSeq(ctx); return id },
	}, idResolver{ctx: ctx, c: c})
	if err != nil {
		return model.LineResult{Success: false, Error: err}, nil
	}

	working := req.Doc
	if !tr.IsNew {
		prior, found, ferr := c.DocumentBySeqID(tr.SeqID)
		if ferr != nil {
			return model.LineResult{}, ferr
		}
		if found {
			working = mergeDocument(prior, req.Doc, req.Op)
		}
	}
	working["id"] = tr.ID

	if targets := referenceTargetsOf(c.schema); len(targets) > 0 {
		if c.refLookup == nil {
			return model.LineResult{}, collerr.Unprocessable("collection %q declares reference fields but no reference lookup is configured", c.name)
		}
		helpers, rerr := document.AddReferenceHelperFields(working, targets, c.refLookup)
		if rerr != nil {
			return model.LineResult{Success: false, Error: rerr}, nil
		}
		for k, v := range helpers {
			working[k] = v
		}
	}

	added, err := schema.NewDiscoverer().DetectNewFields(working, c.schema, c.meta.FallbackType, c.meta.EnableNestedFields)
	if err != nil {
		return model.LineResult{}, err
	}
	if len(added) > 0 {
		for _, f := range added {
			c.schema.Add(f)
		}
		if err := c.persistMeta(ctx); err != nil {
			return model.LineResult{}, err
		}
	}

	flat := document.Flatten(working)
	if err := document.Validate(flat, c.schema, req.Dirty, c.embedder); err != nil {
		return model.LineResult{Success: false, Error: err}, nil
	}
	syncFlatToOriginal(flat, c.schema)

	stored := stripUnstoredFields(flat.Original, c.schema)
	raw, err := jsonutil.Marshal(stored)
	if err != nil {
		return model.LineResult{}, collerr.Internal(err, "encoding document %q", tr.ID)
	}

	puts := []store.KeyValue{
		{Key: docIDKey(c.id, tr.ID), Value: []byte(strconv.FormatUint(uint64(tr.SeqID), 10))},
		{Key: seqIDKey(c.id, tr.SeqID), Value: raw},
	}
	if err := c.kv.BatchWrite(ctx, puts, nil); err != nil {
		return model.LineResult{Success: false, Error: collerr.Internal(err, "durable write for %q", tr.ID)}, nil
	}
	if tr.IsNew {
		c.numDocuments.Add(1)
	}

	if c.metrics != nil {
		c.metrics.IndexDocsTotal.WithLabelValues(c.name, "success").Inc()
	}
	c.logger.Debug("document indexed", zap.String("collection", c.name), zap.String("id", tr.ID), zap.Uint32("seq_id", tr.SeqID), zap.String("op", req.Op.String()))

	lr := model.LineResult{Success: true, SeqID: tr.SeqID}
	if req.ReturnDoc {
		lr.Doc = stored
	}
	if req.ReturnID {
		lr.ID = tr.ID
	}
	return lr, nil
}

// referenceTargetsOf builds the reference-resolution targets for every
// declared reference field, spec section 3's "coll.field" reference
// syntax. Reference fields are always concrete, never dynamic, so this
// only needs the current schema, not discovery.
func referenceTargetsOf(s *model.Schema) []document.ReferenceTarget {
	var out []document.ReferenceTarget
	for _, f := range s.Fields {
		if f.Reference == "" {
			continue
		}
		parts := strings.SplitN(f.Reference, ".", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, document.ReferenceTarget{
			FieldName:        f.Name,
			TargetCollection: parts[0],
			TargetField:      parts[1],
			Optional:         f.Optional,
			IsArray:          f.Type.IsArray(),
			IsObjectArray:    f.Type == model.FieldObjectArray,
		})
	}
	return out
}

// syncFlatToOriginal writes validate's per-field results (type coercion,
// embed.from vectors, and DirtyDrop removals) back into the document
// that gets persisted. Validate only mutates flat.Flat, the dotted-key
// projection; without this, a coerced or embedded top-level field's new
// value would be computed and then silently discarded at storage time.
// Only top-level (non-dotted), non-object fields round-trip this way: an
// object value is kept as sent, and a nested leaf's coerced value lives
// only under its dotted key in flat.Flat and is not written back.
func syncFlatToOriginal(flat model.FlattenedDocument, s *model.Schema) {
	for _, f := range s.Fields {
		if f.IsDynamic() || strings.Contains(f.Name, ".") {
			continue
		}
		if _, isObj := flat.Original[f.Name].(map[string]any); isObj {
			continue // Flatten stores only the object's dotted leaves
		}
		if v, ok := flat.Flat[f.Name]; ok {
			flat.Original[f.Name] = v
		} else if _, had := flat.Original[f.Name]; had {
			delete(flat.Original, f.Name)
		}
	}
}

// mergeDocument applies incoming onto prior per op's shallow-merge/
// replace rule, spec section 4.2 step 6: "Emplace = shallow merge;
// Update = replace with merged result; Upsert = replace wholesale."
func mergeDocument(prior, incoming model.Document, op model.Op) model.Document {
	if op == model.OpUpsert {
		return incoming
	}
	merged := make(model.Document, len(prior)+len(incoming))
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// stripUnstoredFields drops fields marked store=false before
// serializing, spec section 4.2 step 5, also dropping the derived
// ".flat" projection for nested fields.
func stripUnstoredFields(doc model.Document, s *model.Schema) model.Document {
	out := make(model.Document, len(doc))
	for k, v := range doc {
		if k == ".flat" {
			continue
		}
		if f, ok := s.Get(k); ok && !f.Store && f.Name != "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// AddManyRequest bundles add_many's batch-level options, spec section
// 4.2.
type AddManyRequest struct {
	Lines     []model.Document
	Op        model.Op
	Dirty     model.DirtyValuesPolicy
	ReturnDoc bool
	ReturnID  bool
}

// AddMany persists a batch of documents, spec section 4.2's full
// contract: per-line failures are recorded and the batch continues.
// Lines are indexed one at a time, in order, under a single exclusive
// schema-lock window, so a duplicate id within the same batch resolves
// to last-writer-wins automatically: no separate batch-flush step is
// needed to get that guarantee.
func (c *Collection) AddMany(ctx context.Context, req AddManyRequest) (model.BatchResult, error) {
	release, err := c.acquireLifecycle()
	if err != nil {
		return model.BatchResult{}, err
	}
	defer release()

	start := time.Now()
	var out model.BatchResult
	out.Results = make([]model.LineResult, len(req.Lines))

	err = c.withSchemaExclusive(func() error {
		for i, line := range req.Lines {
			lr, lerr := c.indexOne(ctx, AddOneRequest{
				Doc: line, Op: req.Op, Dirty: req.Dirty,
				ReturnDoc: req.ReturnDoc, ReturnID: req.ReturnID,
			})
			if lerr != nil {
				return lerr
			}
			out.Results[i] = lr
			if lr.Success {
				out.NumImported++
			}
		}
		return nil
	})
	if err != nil {
		return model.BatchResult{}, err
	}

	if c.metrics != nil {
		c.metrics.IndexBatchDuration.Observe(time.Since(start).Seconds())
	}
	return out, nil
}

// Delete removes a document by id, spec section 8's "(DI, SI) key exists;
// deletion removes both atomically."
func (c *Collection) Delete(ctx context.Context, docID string) error {
	release, err := c.acquireLifecycle()
	if err != nil {
		return err
	}
	defer release()

	return c.withSchemaExclusive(func() error {
		seqID, ok := idResolver{ctx: ctx, c: c}.SeqIDFor(docID)
		if !ok {
			return collerr.NotFound("document with id %q not found", docID)
		}
		if err := c.kv.BatchWrite(ctx, nil, [][]byte{docIDKey(c.id, docID), seqIDKey(c.id, seqID)}); err != nil {
			return collerr.Internal(err, "deleting document %q", docID)
		}
		c.numDocuments.Add(-1)
		return nil
	})
}
