package document

import (
	"github.com/antflydb/collectioncore/collerr"
	"github.com/antflydb/collectioncore/model"
	"github.com/antflydb/collectioncore/schema"
)

// Embedder resolves an embed.from field's vector, the narrow slice of
// the embedding-model manager (spec section 1, out of scope) validate
// needs: given the concatenated source text, produce its vector.
type Embedder interface {
	Embed(field model.Field, sourceText string) ([]float32, error)
}

// Validate performs type coercion per policy and, when embedder is set,
// computes the embedding of every field with an Embed config that is
// present in the document, spec section 4.1's validate. It does not check
// whether the source fields changed.
func Validate(flat model.FlattenedDocument, s *model.Schema, policy model.DirtyValuesPolicy, embedder Embedder) error {
	for _, f := range s.Fields {
		if f.IsDynamic() {
			continue
		}
		v, present := flat.Flat[f.Name]
		if !present {
			if !f.Optional {
				return collerr.Unprocessable("field %q is required", f.Name)
			}
			continue
		}
		coerced, keep, err := schema.CoerceField(f, v, policy)
		if err != nil {
			return err
		}
		if !keep {
			delete(flat.Flat, f.Name)
			continue
		}
		flat.Flat[f.Name] = coerced

		if f.Embed != nil && embedder != nil {
			text := concatSources(flat, f.Embed.From)
			vec, err := embedder.Embed(f, text)
			if err != nil {
				return collerr.Internal(err, "embedding field %q", f.Name)
			}
			flat.Flat[f.Name] = toAnySlice(vec)
		}
	}
	return nil
}

func concatSources(flat model.FlattenedDocument, from []string) string {
	var out string
	for i, name := range from {
		if i > 0 {
			out += " "
		}
		if v, ok := flat.Flat[name]; ok {
			if s, ok := v.(string); ok {
				out += s
			}
		}
	}
	return out
}

func toAnySlice(vec []float32) []any {
	out := make([]any, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}
