package ingest

import (
	"slangdict/api/internal/store"
	"slangdict/api/internal/translit"
)

// TermIndex maps transliteration keys onto term ids.
type TermIndex map[string]int64

// NewTermIndex keys every term by its text. When two stored terms share a
// key the lower id wins.
func NewTermIndex(terms []store.TermRef) TermIndex {
	index := make(TermIndex, len(terms))
	for _, term := range terms {
		key := translit.Key(term.Text)
		if key == "" {
			continue
		}
		if existing, ok := index[key]; ok && existing < term.ID {
			continue
		}
		index[key] = term.ID
	}
	return index
}

// FindReferences returns the terms mentioned by a definition's body and
// example, once each, in order of first mention. A definition that mentions
// its own term references it like any other.
func FindReferences(def store.Definition, index TermIndex) []store.DefinitionReference {
	words := translit.ExtractWords(def.Body + " " + def.Example)
	seen := make(map[int64]struct{})
	refs := make([]store.DefinitionReference, 0)
	for _, word := range words {
		termID, ok := index[translit.Key(word)]
		if !ok {
			continue
		}
		if _, dup := seen[termID]; dup {
			continue
		}
		seen[termID] = struct{}{}
		refs = append(refs, store.DefinitionReference{DefinitionID: def.ID, ReferencedTermID: termID})
	}
	return refs
}

// withoutSelf drops the references from a definition to its own term.
func withoutSelf(def store.Definition, refs []store.DefinitionReference) []store.DefinitionReference {
	kept := refs[:0]
	for _, ref := range refs {
		if ref.ReferencedTermID != def.TermID {
			kept = append(kept, ref)
		}
	}
	return kept
}
