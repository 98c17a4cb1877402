// Package ingest seeds the dictionary from raw term records: it reads and
// merges records whose terms transliterate to the same key, clears the
// archive, inserts terms and definitions in batches, and finally links
// definitions to the other terms their text mentions.
//
// A run is destructive and meant for a full re-seed. The source is read in
// full before the first write, so an unreadable source leaves the archive
// untouched. Bad records and failed batches are logged and counted; only
// store or source failures abort a run.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"slangdict/api/internal/logging"
	"slangdict/api/internal/store"
	"slangdict/api/internal/translit"
)

const DefaultBatchSize = 500

// Report tallies one run.
type Report struct {
	Files         int           `json:"files"`
	Malformed     int           `json:"malformed"`
	Merged        int           `json:"merged"`
	Terms         int           `json:"terms"`
	Definitions   int           `json:"definitions"`
	References    int           `json:"references"`
	FailedTerms   int           `json:"failedTerms"`
	FailedBatches int           `json:"failedBatches"`
	Duration      time.Duration `json:"duration"`
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("files", r.Files),
		slog.Int("malformed", r.Malformed),
		slog.Int("merged", r.Merged),
		slog.Int("terms", r.Terms),
		slog.Int("definitions", r.Definitions),
		slog.Int("references", r.References),
		slog.Int("failed_terms", r.FailedTerms),
		slog.Int("failed_batches", r.FailedBatches),
		slog.Duration("duration", r.Duration),
	)
}

type Pipeline struct {
	store     *store.SQLStore
	batchSize int
	skipSelf  bool
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithoutSelfReferences stops a definition from linking to the term it
// defines. By default such links are kept.
func WithoutSelfReferences() Option {
	return func(p *Pipeline) {
		p.skipSelf = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logging.Module(logger, "ingest")
	}
}

func New(s *store.SQLStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     s,
		batchSize: DefaultBatchSize,
		logger:    logging.Module(nil, "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads the whole source, then clears, inserts and links. The returned
// error is set only when the run had to stop; the report is filled in
// either way.
func (p *Pipeline) Run(ctx context.Context, src Source) (report Report, err error) {
	started := time.Now()
	defer func() { report.Duration = time.Since(started) }()

	terms, err := p.load(ctx, src, &report)
	if err != nil {
		return report, err
	}
	p.logger.Info("records loaded", "files", report.Files, "malformed", report.Malformed,
		"merged", report.Merged, "terms", len(terms))

	if err := p.store.ClearDictionary(ctx); err != nil {
		return report, fmt.Errorf("clear dictionary: %w", err)
	}
	p.logger.Info("dictionary cleared")

	if err := p.insert(ctx, terms, &report); err != nil {
		return report, err
	}
	p.logger.Info("terms inserted", "terms", report.Terms, "definitions", report.Definitions,
		"failed_terms", report.FailedTerms)

	if err := p.link(ctx, &report); err != nil {
		return report, err
	}

	report.Duration = time.Since(started)
	p.logger.Info("seed finished", "report", report)
	return report, nil
}

func (p *Pipeline) load(ctx context.Context, src Source, report *Report) ([]*Term, error) {
	m := newMerger()
	err := src.Records(ctx, func(name string, rec Record, recErr error) error {
		report.Files++
		if recErr != nil {
			report.Malformed++
			p.logger.Warn("skipping record", "source", name, "error", recErr)
			return nil
		}
		merged, err := m.add(rec)
		if err != nil {
			report.Malformed++
			p.logger.Warn("skipping record", "source", name, "error", err)
			return nil
		}
		if merged {
			report.Merged++
			p.logger.Debug("record merged", "source", name, "term", rec.Term)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return m.terms(), nil
}

// insert writes terms in first-seen order. Slugs are a running counter,
// so a term that fails leaves a gap.
func (p *Pipeline) insert(ctx context.Context, terms []*Term, report *Report) error {
	bw := newBatchWriter(p.store.DB(), p.batchSize)
	bw.OnItemError = func(label string, err error) {
		report.FailedTerms++
		p.logger.Error("term insert failed", "term", label, "error", err)
	}
	bw.OnBatchError = func(labels []string, err error) {
		report.FailedTerms += len(labels)
		report.FailedBatches++
		p.logger.Error("term batch failed", "terms", len(labels), "error", err)
	}

	for i, term := range terms {
		if err := ctx.Err(); err != nil {
			return err
		}
		slug := strconv.Itoa(i + 1)
		bw.Submit(ctx, term.Text, func(ctx context.Context, tx *sql.Tx) error {
			return insertTerm(ctx, tx, term, slug)
		}, func() {
			report.Terms++
			report.Definitions += len(term.Definitions)
		})
	}
	bw.Flush(ctx)
	return ctx.Err()
}

func insertTerm(ctx context.Context, tx *sql.Tx, term *Term, slug string) error {
	termID, err := store.InsertArchiveTerm(ctx, tx, term.Text, slug, term.SourceURL())
	if err != nil {
		return err
	}
	for _, def := range term.Definitions {
		body := translit.FormatDialogue(def.Text)
		example := translit.FormatDialogue(def.Example)
		if _, err := store.InsertDefinition(ctx, tx, termID, body, example); err != nil {
			return err
		}
	}
	return nil
}

// link scans definitions page by page for words that key to another term.
// A page whose inserts fail is logged and skipped.
func (p *Pipeline) link(ctx context.Context, report *Report) error {
	terms, err := p.store.ListAllTerms(ctx)
	if err != nil {
		return err
	}
	index := NewTermIndex(terms)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := p.store.ListDefinitionsAfter(ctx, afterID, p.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].ID

		refs := make([]store.DefinitionReference, 0)
		for _, def := range page {
			found := FindReferences(def, index)
			if p.skipSelf {
				found = withoutSelf(def, found)
			}
			refs = append(refs, found...)
		}
		if len(refs) == 0 {
			continue
		}

		var inserted int
		err = p.store.DB().WithTx(ctx, func(tx *sql.Tx) error {
			n, err := store.InsertReferences(ctx, tx, refs)
			inserted = n
			return err
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			report.FailedBatches++
			p.logger.Error("reference batch failed", "first_definition", page[0].ID, "definitions", len(page), "error", err)
			continue
		}
		report.References += inserted
	}
	p.logger.Info("references linked", "references", report.References)
	return nil
}
