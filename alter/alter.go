// Package alter implements the schema-alter protocol, spec section 4.9:
// decomposing a schema-change payload into additions/deletions/
// reindexes, dry-run validating it against live data, then applying it
// to every stored document. Apply takes no locks of its own.
package alter

import (
	"context"
	"time"

	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/document"
	"github.com/antflydb/collectioncore/model"
)

// FieldChange is one entry in an alter payload: either a new field
// (Drop=false) or a field marked for removal (Drop=true). A field
// appearing as both Drop and a later Add with the same name is a
// reindex, spec section 4.9 step 1.
type FieldChange struct {
	Field model.Field
	Drop  bool
}

// Plan is the decomposed alter payload, spec section 4.9 step 1.
type Plan struct {
	DelFields      []string
	AdditionFields []model.Field
	ReindexFields  []model.Field // drop+add of the same name
	FallbackType   model.FieldType
	HasFallback    bool
}

// DecomposePlan splits changes into del/addition/reindex groups, spec
// section 4.9 step 1: "A field named .* governs fallback_field_type; id
// is immutable; schema must contain at most one .*."
func DecomposePlan(changes []FieldChange) (Plan, error) {
	var p Plan

	drops := make(map[string]bool)
	adds := make(map[string]model.Field)
	var addOrder []string
	fallbackCount := 0

	for _, c := range changes {
		name := c.Field.Name
		if name == "id" {
			return Plan{}, collerr.BadRequest("alter: field %q is immutable", "id")
		}
		if name == ".*" {
			fallbackCount++
			if fallbackCount > 1 {
				return Plan{}, collerr.BadRequest("alter: schema may contain at most one .* fallback entry")
			}
			if !c.Drop {
				p.FallbackType = c.Field.Type
				p.HasFallback = true
			}
			continue
		}
		if c.Drop {
			drops[name] = true
			continue
		}
		adds[name] = c.Field
		addOrder = append(addOrder, name)
	}

	for name := range drops {
		if f, ok := adds[name]; ok {
			p.ReindexFields = append(p.ReindexFields, f)
			delete(adds, name)
			continue
		}
		p.DelFields = append(p.DelFields, name)
	}
	for _, name := range addOrder {
		if f, ok := adds[name]; ok {
			p.AdditionFields = append(p.AdditionFields, f)
		}
	}

	return p, nil
}

// DocumentSource iterates every stored document under a shared lock, the
// collaborator both DryRunValidate and Apply need, spec section 4.9
// steps 2-3: "iterate every stored document under a shared lock."
type DocumentSource interface {
	// ForEach calls fn with every live (seqID, doc) pair in seq_id order,
	// stopping early if fn returns an error.
	ForEach(ctx context.Context, fn func(seqID uint32, doc model.Document) error) error
}

// Embedder is the narrow embedding collaborator document.Validate needs;
// re-exported here so alter callers don't need to import document
// separately just for this type.
type Embedder = document.Embedder

// IncompatibilityError maps a validation failure category to the
// user-visible message spec section 4.9 step 2 names.
type IncompatibilityError struct {
	Field   string
	Message string
}

func (e *IncompatibilityError) Error() string { return e.Message }

// DryRunValidate iterates every document against the prospective schema
// (schema with additions/reindexes applied, deletions not yet applied)
// under CoerceOrReject, spec section 4.9 step 2. The first incompatible
// document's error is mapped to a 400 with a user-facing message and
// returned; a nil return means the alter is safe to apply.
func DryRunValidate(ctx context.Context, src DocumentSource, prospective *model.Schema, embedder Embedder) error {
	return src.ForEach(ctx, func(seqID uint32, doc model.Document) error {
		flat := flattenShallow(doc)
		err := document.Validate(flat, prospective, model.DirtyCoerceOrReject, embedder)
		if err == nil {
			return nil
		}
		return mapIncompatibility(err)
	})
}

// mapIncompatibility turns a document.Validate failure into spec section
// 4.9 step 2's three user-visible categories: "missing-required => field
// already present; set optional", "type conflict => existing data cannot
// be coerced", else a generic incompatibility message.
func mapIncompatibility(err error) error {
	ce, ok := collerr.As(err)
	if !ok {
		return collerr.BadRequest("alter: schema change is incompatible with existing data: %v", err)
	}
	switch ce.Kind {
	case collerr.KindUnprocessable:
		return collerr.BadRequest("alter: field is already present in existing documents; mark the new field optional")
	case collerr.KindBadRequest:
		return collerr.BadRequest("alter: existing data cannot be coerced to the new field type")
	default:
		return collerr.BadRequest("alter: schema change is incompatible with existing data: %v", ce.Message)
	}
}

func flattenShallow(doc model.Document) model.FlattenedDocument {
	return document.Flatten(doc)
}

// ProgressFunc is called periodically during Apply's document scan,
// spec section 4.9: "emit informational messages every ~30 seconds based
// on a sample of processed documents (roughly every 16,384)."
type ProgressFunc func(processed, total int)

// progressSampleInterval is the document-count sampling stride spec
// section 4.9 names.
const progressSampleInterval = 16384

// progressReportInterval is the minimum time between two progress calls.
const progressReportInterval = 30 * time.Second

// Apply updates the schema's field maps for additions and deletions, then
// iterates every document, removing deleted fields and re-indexing it
// through reindexDoc against the enlarged schema. ReindexFields are
// swapped into the schema and re-indexed in a second pass, after
// additions/deletions, so reindexed fields see the already-discovered new
// fields. Removing orphaned embed sources and persisting the schema are
// left to the caller. total, when >0, is used only to size progress
// reporting and has no effect on correctness.
func Apply(ctx context.Context, src DocumentSource, schema *model.Schema, plan Plan, total int, reindexDoc func(seqID uint32, doc model.Document) error, progress ProgressFunc) error {
	for _, name := range plan.DelFields {
		schema.Remove(name)
	}
	for _, f := range plan.AdditionFields {
		schema.Add(f)
	}
	if plan.HasFallback {
		schema.Remove(".*")
		schema.Add(model.Field{Name: ".*", Type: plan.FallbackType})
	}

	processed := 0
	lastReport := time.Now()
	err := src.ForEach(ctx, func(seqID uint32, doc model.Document) error {
		for _, name := range plan.DelFields {
			delete(doc, name)
		}
		if err := reindexDoc(seqID, doc); err != nil {
			return err
		}
		processed++
		if progress != nil && processed%progressSampleInterval == 0 && time.Since(lastReport) >= progressReportInterval {
			lastReport = time.Now()
			progress(processed, total)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// second pass: drop+add (reindex) fields, enforced after additions so
	// discovery of new parent/child fields introduced by the additions
	// pass is honoured, spec section 4.9 step 4.
	for _, f := range plan.ReindexFields {
		schema.Remove(f.Name)
		schema.Add(f)
	}
	if len(plan.ReindexFields) == 0 {
		return nil
	}
	return src.ForEach(ctx, func(seqID uint32, doc model.Document) error {
		return reindexDoc(seqID, doc)
	})
}

// CleanupOrphanedEmbedSources removes embed.from dependencies that named
// a field no longer in schema, spec section 4.9 step 5: "remove orphaned
// embedding-from dependencies."
func CleanupOrphanedEmbedSources(schema *model.Schema) {
	for i, f := range schema.Fields {
		if f.Embed == nil {
			continue
		}
		var kept []string
		for _, src := range f.Embed.From {
			if _, ok := schema.Get(src); ok {
				kept = append(kept, src)
			}
		}
		schema.Fields[i].Embed.From = kept
	}
}
