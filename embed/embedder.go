// Package embed adapts an embedding-model collaborator to the
// collection core's embed.from fields (spec sections 3-4.1) and
// auto-embedding query fields (spec section 4.3). The embedding-model
// manager itself is an out-of-scope external collaborator (spec section
// 1); this package only defines the narrow interface this module
// consumes and the plumbing that turns document/query text into calls
// against it.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/antflydb/collectioncore/model"
)

// ContentPart is a part of an embedding request: text, binary, or an
// image URL. Kept as a closed sum type rather than an `any` so a
// misconfigured embed.model_config can't silently embed garbage.
type ContentPart interface {
	isContentPart()
}

// TextContent is plain text content.
type TextContent struct{ Text string }

func (TextContent) isContentPart() {}

// BinaryContent is MIME-typed binary content (e.g. an image blob used by
// a multimodal embedder for an embed.from field backed by stored bytes).
type BinaryContent struct {
	MIMEType string
	Data     []byte
}

func (BinaryContent) isContentPart() {}

// EmbedderCapabilities describes what an Embedder supports. The planner
// does not consult it; field configurations are not checked against it.
type EmbedderCapabilities struct {
	Dimensions       []int
	DefaultDimension int
	MaxBatchSize     int
	SupportsFusion   bool
}

// Embedder is the embedding-model manager's narrow surface this module
// consumes: given one or more documents' content parts, return one
// vector per document.
type Embedder interface {
	Capabilities() EmbedderCapabilities
	Embed(ctx context.Context, contents [][]ContentPart) ([][]float32, error)
}

// EmbedText is a convenience wrapper for text-only embedding, the common
// case for an embed.from field sourced from string fields.
func EmbedText(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([][]ContentPart, len(texts))
	for i, t := range texts {
		contents[i] = []ContentPart{TextContent{Text: t}}
	}
	return e.Embed(ctx, contents)
}

// DocumentEmbedder wraps an Embedder with a per-document cache keyed by
// the hash of the source text, so re-validating an unmodified embed.from
// field during an alter reindex doesn't re-call the embedding model.
// Neither the cache nor the keying exist in the embedding client this was
// adapted from, which only wraps a single synchronous HTTP call.
type DocumentEmbedder struct {
	underlying Embedder

	mu    sync.Mutex
	cache map[string][]float32
}

// NewDocumentEmbedder wraps e with a content-addressed cache.
func NewDocumentEmbedder(e Embedder) *DocumentEmbedder {
	return &DocumentEmbedder{underlying: e, cache: make(map[string][]float32)}
}

// Embed implements document.Embedder: resolve sourceText's vector for
// field, using the cache when the exact source text was embedded before.
func (d *DocumentEmbedder) Embed(field model.Field, sourceText string) ([]float32, error) {
	key := cacheKey(field.Name, sourceText)

	d.mu.Lock()
	if v, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return v, nil
	}
	d.mu.Unlock()

	vecs, err := EmbedText(context.Background(), d.underlying, []string{sourceText})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	d.cache[key] = vecs[0]
	d.mu.Unlock()
	return vecs[0], nil
}

func cacheKey(field, text string) string {
	sum := sha256.Sum256([]byte(text))
	return field + ":" + hex.EncodeToString(sum[:])
}
