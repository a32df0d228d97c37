package collection

import (
	"context"

	"github.com/antflydb/collectioncore/alter"
	"github.com/antflydb/collectioncore/document"
	"github.com/antflydb/collectioncore/jsonutil"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/store"
)

// documentSource adapts a Collection into alter.DocumentSource by
// scanning every stored document under the $SI_ prefix, spec section
// 4.9's "iterate every stored document under a shared lock."
type documentSource struct{ c *Collection }

func (d documentSource) ForEach(ctx context.Context, fn func(seqID uint32, doc model.Document) error) error {
	var outer error
	err := d.c.kv.ScanPrefix(ctx, seqIDPrefixKey(d.c.id), func(kv store.KeyValue) bool {
		var doc model.Document
		if jerr := jsonutil.Unmarshal(kv.Value, &doc); jerr != nil {
			outer = jerr
			return false
		}
		if ferr := fn(decodeSeqID(kv.Key), doc); ferr != nil {
			outer = ferr
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return outer
}

// Alter runs the full schema-alter protocol, spec section 4.9: plan,
// dry-run validate under a shared lock, then apply. alter.Apply takes no
// locks itself; Alter holds the exclusive schema lock for the whole apply,
// so searches, which take the shared lock, wait until it finishes.
func (c *Collection) Alter(ctx context.Context, changes []alter.FieldChange, progress alter.ProgressFunc) error {
	release, err := c.acquireLifecycle()
	if err != nil {
		return err
	}
	defer release()

	plan, err := alter.DecomposePlan(changes)
	if err != nil {
		return err
	}

	var validateErr error
	c.withSchemaShared(func() error {
		prospective := prospectiveSchema(c.schema, plan)
		validateErr = alter.DryRunValidate(ctx, documentSource{c: c}, prospective, c.embedder)
		return nil
	})
	if validateErr != nil {
		return validateErr
	}

	return c.withSchemaExclusive(func() error {
		total := int(c.numDocuments.Load())
		err := alter.Apply(ctx, documentSource{c: c}, c.schema, plan, total, func(seqID uint32, doc model.Document) error {
			return c.reindexDocument(ctx, seqID, doc)
		}, func(processed, total int) {
			if c.metrics != nil && total > 0 {
				c.metrics.AlterProgress.WithLabelValues(c.name).Set(float64(processed) / float64(total))
			}
			if progress != nil {
				progress(processed, total)
			}
		})
		if err != nil {
			return err
		}
		alter.CleanupOrphanedEmbedSources(c.schema)
		return c.persistMeta(ctx)
	})
}

// prospectiveSchema builds the schema alter.DryRunValidate should check
// documents against: current fields plus the plan's additions/reindexes,
// deletions not yet applied, spec section 4.9 step 2.
func prospectiveSchema(s *model.Schema, plan alter.Plan) *model.Schema {
	fields := make([]model.Field, len(s.Fields))
	copy(fields, s.Fields)
	fields = append(fields, plan.AdditionFields...)
	fields = append(fields, plan.ReindexFields...)
	return model.NewSchema(fields)
}

// reindexDocument re-persists doc through the (already schema-mutated)
// live schema, spec section 4.9 step 3's "re-indexing the document
// through the now-enlarged schema."
func (c *Collection) reindexDocument(ctx context.Context, seqID uint32, doc model.Document) error {
	flat := document.Flatten(doc)
	if err := document.Validate(flat, c.schema, model.DirtyCoerceOrReject, c.embedder); err != nil {
		return err
	}
	syncFlatToOriginal(flat, c.schema)
	stored := stripUnstoredFields(flat.Original, c.schema)
	raw, err := jsonutil.Marshal(stored)
	if err != nil {
		return err
	}
	return c.kv.BatchWrite(ctx, []store.KeyValue{{Key: seqIDKey(c.id, seqID), Value: raw}}, nil)
}
