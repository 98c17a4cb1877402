package ingest

import (
	"fmt"

	"slangdict/api/internal/translit"
)

// Term is a deduplicated term ready to insert: the first-seen text under
// its transliteration key, every source URL, and the definitions of all
// merged records in input order.
type Term struct {
	Key         string
	Text        string
	URLs        []string
	Definitions []Definition
}

// SourceURL is the URL persisted for the term.
func (t *Term) SourceURL() string {
	if len(t.URLs) == 0 {
		return ""
	}
	return t.URLs[0]
}

type merger struct {
	byKey map[string]*Term
	order []*Term
}

func newMerger() *merger {
	return &merger{byKey: make(map[string]*Term)}
}

// add folds rec into the term sharing its key, or starts a new one. It
// reports whether rec was merged into an earlier record.
func (m *merger) add(rec Record) (bool, error) {
	key := translit.Key(rec.Term)
	if key == "" {
		return false, fmt.Errorf("%w: term %q has an empty transliteration key", ErrMalformed, rec.Term)
	}

	term, ok := m.byKey[key]
	if !ok {
		term = &Term{Key: key, Text: rec.Term}
		m.byKey[key] = term
		m.order = append(m.order, term)
	}
	if rec.URL != "" {
		term.URLs = append(term.URLs, rec.URL)
	}
	term.Definitions = append(term.Definitions, rec.Definitions...)
	return ok, nil
}

func (m *merger) terms() []*Term {
	return m.order
}
