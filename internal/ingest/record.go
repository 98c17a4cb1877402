package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed marks a record that is skipped and counted instead of
// inserted.
var ErrMalformed = errors.New("malformed record")

type Definition struct {
	Text    string `json:"text"`
	Example string `json:"example,omitempty"`
}

// Record is one source file: a term with its definitions and the page it
// was taken from.
type Record struct {
	Term        string       `json:"term"`
	Definitions []Definition `json:"definitions"`
	URL         string       `json:"url"`
}

// DecodeRecord reads one JSON record from r. Definitions with blank text
// are dropped; a record left with a blank term or no definitions is
// malformed.
func DecodeRecord(r io.Reader) (Record, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	return rec.normalized()
}

func (r Record) normalized() (Record, error) {
	r.Term = strings.TrimSpace(r.Term)
	r.URL = strings.TrimSpace(r.URL)
	if r.Term == "" {
		return Record{}, fmt.Errorf("%w: blank term", ErrMalformed)
	}

	defs := make([]Definition, 0, len(r.Definitions))
	for _, d := range r.Definitions {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		defs = append(defs, Definition{Text: text, Example: strings.TrimSpace(d.Example)})
	}
	if len(defs) == 0 {
		return Record{}, fmt.Errorf("%w: term %q has no definitions", ErrMalformed, r.Term)
	}
	r.Definitions = defs
	return r, nil
}
