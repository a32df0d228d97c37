// Package assemble implements result assembly, spec section 4.6:
// projection, curated-hit merge, reference joins, pagination, and the
// per-hit/response envelope fields.
package assemble

import (
	"strings"

	"github.com/antflydb/collectioncore/model"
)

// trieNode is one level of an include/exclude projection trie, spec
// section 4.6 step 2: "Projection uses trie prefix logic: a dotted field
// is kept iff no ancestor is excluded and (no include list OR an
// ancestor/self is included)."
type trieNode struct {
	excluded bool
	included bool
	children map[string]*trieNode
}

func newTrieNode() *trieNode { return &trieNode{children: make(map[string]*trieNode)} }

func buildTrie(fields []string, mark func(*trieNode)) *trieNode {
	root := newTrieNode()
	for _, f := range fields {
		node := root
		for _, part := range strings.Split(f, ".") {
			child, ok := node.children[part]
			if !ok {
				child = newTrieNode()
				node.children[part] = child
			}
			node = child
		}
		mark(node)
	}
	return root
}

// Projector prunes a document to its requested include/exclude fields.
type Projector struct {
	hasInclude bool
	include    *trieNode
	exclude    *trieNode
}

// NewProjector builds a Projector from include_fields/exclude_fields,
// spec section 4.3's table and section 4.6 step 2. It applies only the
// caller's lists; reference helper fields ("<name>_sequence_id") are
// removed before projection (see Project).
func NewProjector(includeFields, excludeFields []string) *Projector {
	return &Projector{
		hasInclude: len(includeFields) > 0,
		include:    buildTrie(includeFields, func(n *trieNode) { n.included = true }),
		exclude:    buildTrie(excludeFields, func(n *trieNode) { n.excluded = true }),
	}
}

// Project returns a pruned copy of doc. Fields ending in
// "_sequence_id" that correspond to a reference helper are dropped by
// the caller before Project is invoked (document.AddReferenceHelperFields'
// output is never merged back into the retrieval-facing document).
func (p *Projector) Project(doc model.Document) model.Document {
	out, _ := p.projectObject(doc, p.include, p.exclude, false, false)
	if out == nil {
		return model.Document{}
	}
	return out
}

// projectObject recurses through obj, returning the pruned map and
// whether the caller keeps it: false only when a non-empty source object
// pruned to empty (so an originally-empty object
// survives pruning per spec section 4.6 step 2: "empty objects after
// pruning are removed unless they were empty in the source").
func (p *Projector) projectObject(obj map[string]any, include, exclude *trieNode, parentIncluded, parentExcluded bool) (map[string]any, bool) {
	out := make(map[string]any)
	wasEmpty := len(obj) == 0

	for k, v := range obj {
		var childInclude, childExclude *trieNode
		if include != nil {
			childInclude = include.children[k]
		}
		if exclude != nil {
			childExclude = exclude.children[k]
		}

		excluded := parentExcluded || (childExclude != nil && childExclude.excluded)
		if excluded && (childExclude == nil || len(childExclude.children) == 0) {
			continue
		}

		included := parentIncluded
		if !p.hasInclude {
			included = true
		} else if childInclude != nil && childInclude.included {
			included = true
		}

		switch child := v.(type) {
		case map[string]any:
			nextInclude := childInclude
			nextExclude := childExclude
			pruned, keep := p.projectObject(child, nextInclude, nextExclude, included, excluded)
			if keep {
				out[k] = pruned
			}
		case []any:
			pruned, keep := p.projectArray(child, childInclude, childExclude, included, excluded)
			if keep {
				out[k] = pruned
			}
		default:
			leafIncluded := included
			if p.hasInclude && childInclude == nil && !included {
				leafIncluded = false
			}
			if leafIncluded && !excluded {
				out[k] = v
			}
		}
	}

	if len(out) == 0 && !wasEmpty {
		return nil, false
	}
	return out, true
}

func (p *Projector) projectArray(arr []any, include, exclude *trieNode, parentIncluded, parentExcluded bool) ([]any, bool) {
	if parentExcluded {
		return nil, false
	}
	out := make([]any, 0, len(arr))
	for _, elem := range arr {
		if obj, ok := elem.(map[string]any); ok {
			pruned, keep := p.projectObject(obj, include, exclude, parentIncluded, parentExcluded)
			if keep {
				out = append(out, pruned)
			}
			continue
		}
		if parentIncluded || !p.hasInclude {
			out = append(out, elem)
		}
	}
	if len(out) == 0 && len(arr) > 0 {
		return out, true // a non-empty source array that pruned to empty is kept empty, not dropped
	}
	return out, true
}

// StripInternal removes the ".flat" derived array and every
// "<ref>_sequence_id" helper key from doc before it is handed to a
// Projector, spec section 4.6 step 1: "strip .flat and reference-helper
// keys."
func StripInternal(doc model.Document, referenceFieldNames []string) model.Document {
	out := make(model.Document, len(doc))
	for k, v := range doc {
		if k == ".flat" {
			continue
		}
		out[k] = v
	}
	for _, name := range referenceFieldNames {
		delete(out, name+"_sequence_id")
	}
	return out
}
