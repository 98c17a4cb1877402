package ingest_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"slangdict/api/internal/ingest"
	"slangdict/api/internal/store"
	"slangdict/api/internal/store/storetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeRecord(t *testing.T, dir, name string, rec ingest.Record) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func writeRaw(t *testing.T, dir, name, raw string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(raw), 0o644))
}

func defs(texts ...string) []ingest.Definition {
	out := make([]ingest.Definition, 0, len(texts))
	for _, text := range texts {
		out = append(out, ingest.Definition{Text: text})
	}
	return out
}

func runPipeline(t *testing.T, db *store.DB, dir string, batchSize int) ingest.Report {
	t.Helper()
	pipeline := ingest.New(store.NewSQLStore(db), ingest.WithBatchSize(batchSize))
	report, err := pipeline.Run(context.Background(), ingest.DirSource{Dir: dir})
	require.NoError(t, err)
	return report
}

func TestRunMergesTransliterationDuplicates(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "001.json", ingest.Record{Term: "μπρο", Definitions: defs("φίλος"), URL: "https://example.org/1"})
	writeRecord(t, dir, "002.json", ingest.Record{Term: "μπρό", Definitions: defs("αδερφός", "κολλητός"), URL: "https://example.org/2"})

	report := runPipeline(t, db, dir, 10)

	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, report.Terms)
	assert.Equal(t, 3, report.Definitions)
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM terms`))
	assert.Equal(t, 3, storetest.Count(t, db, `SELECT COUNT(*) FROM definitions`))

	term, err := store.NewSQLStore(db).GetTermBySlug(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "μπρο", term.Text)
	assert.Equal(t, "https://example.org/1", term.SourceURL)
	assert.True(t, term.IsArchive())
}

func TestRunLinksReferencedTerms(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "γαμάτο", Definitions: defs("πάρα πολύ καλό")})
	writeRecord(t, dir, "b.json", ingest.Record{
		Term: "τέλειο",
		Definitions: []ingest.Definition{
			{Text: "Κάτι γαμάτο, πραγματικά ΓΑΜΆΤΟ.", Example: "ήταν γαμάτο το πάρτι"},
		},
	})

	report := runPipeline(t, db, dir, 1)

	assert.Equal(t, 1, report.References)
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM definition_references`))
	assert.Equal(t, 1, storetest.Count(t, db, `
		SELECT COUNT(*)
		FROM definition_references dr
		JOIN definitions d ON d.id = dr.definition_id
		JOIN terms src ON src.id = d.term_id
		JOIN terms ref ON ref.id = dr.referenced_term_id
		WHERE src.text = 'τέλειο' AND ref.text = 'γαμάτο'
	`))
}

func TestRunLinksWordsJoinedByPunctuation(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "γαμάτο", Definitions: defs("πάρα πολύ καλό")})
	writeRecord(t, dir, "b.json", ingest.Record{Term: "κουλ", Definitions: defs("χαλαρό")})
	writeRecord(t, dir, "c.json", ingest.Record{Term: "τέλειο", Definitions: defs("γαμάτο/κουλ πράγμα")})

	report := runPipeline(t, db, dir, 10)
	assert.Equal(t, 2, report.References)
}

func TestRunKeepsSelfReferencesByDefault(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "φάση", Definitions: defs("η φάση είναι κατάσταση, μεγάλη φάση")})

	report := runPipeline(t, db, dir, 10)
	assert.Equal(t, 1, report.References)
	assert.Equal(t, 1, storetest.Count(t, db, `
		SELECT COUNT(*)
		FROM definition_references dr
		JOIN definitions d ON d.id = dr.definition_id
		WHERE dr.referenced_term_id = d.term_id
	`))
}

func TestRunWithoutSelfReferences(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "φάση", Definitions: defs("η φάση είναι κατάσταση")})
	writeRecord(t, dir, "b.json", ingest.Record{Term: "μπρο", Definitions: defs("φίλος σε φάση μπρο")})

	pipeline := ingest.New(store.NewSQLStore(db), ingest.WithoutSelfReferences())
	report, err := pipeline.Run(context.Background(), ingest.DirSource{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, report.References)
	assert.Zero(t, storetest.Count(t, db, `
		SELECT COUNT(*)
		FROM definition_references dr
		JOIN definitions d ON d.id = dr.definition_id
		WHERE dr.referenced_term_id = d.term_id
	`))
}

func TestRunCountsMalformedRecords(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRaw(t, dir, "broken.json", `{"term": "μισό"`)
	writeRecord(t, dir, "blank.json", ingest.Record{Term: "  ", Definitions: defs("κάτι")})
	writeRecord(t, dir, "nodefs.json", ingest.Record{Term: "άδειο", Definitions: defs("   ")})
	writeRecord(t, dir, "symbols.json", ingest.Record{Term: "!!!", Definitions: defs("σύμβολα")})
	writeRecord(t, dir, "ok.json", ingest.Record{Term: "κοπάνα", Definitions: defs("απουσία από το σχολείο")})
	writeRaw(t, dir, "notes.txt", "ignored")

	report := runPipeline(t, db, dir, 10)
	assert.Equal(t, 5, report.Files)
	assert.Equal(t, 4, report.Malformed)
	assert.Equal(t, 1, report.Terms)
}

func TestRunFormatsDialogueAndAssignsCounterSlugs(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "1.json", ingest.Record{Term: "ένα", Definitions: defs("πρώτο")})
	writeRecord(t, dir, "2.json", ingest.Record{
		Term: "δύο",
		Definitions: []ingest.Definition{
			{Text: "δεύτερο", Example: "- Τι λες; - Τίποτα. - Εντάξει."},
		},
	})

	runPipeline(t, db, dir, 1)

	s := store.NewSQLStore(db)
	ctx := context.Background()
	first, err := s.GetTermBySlug(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "ένα", first.Text)
	second, err := s.GetTermBySlug(ctx, "2")
	require.NoError(t, err)

	list, err := s.ListDefinitions(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "δεύτερο", list[0].Body)
	assert.Equal(t, "- Τι λες;\n- Τίποτα.\n- Εντάξει.", list[0].Example)
}

func TestRunReplacesPreviousSeed(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "παλιό", Definitions: defs("παλιός ορισμός")})
	runPipeline(t, db, dir, 10)

	dir = t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "νέο", Definitions: defs("νέος ορισμός")})
	report := runPipeline(t, db, dir, 10)

	assert.Equal(t, 1, report.Terms)
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM terms`))
	assert.Equal(t, 0, storetest.Count(t, db, `SELECT COUNT(*) FROM terms WHERE text = 'παλιό'`))
}

func TestRunMissingSourceDirKeepsPreviousSeed(t *testing.T) {
	db := storetest.NewSQLite(t)
	dir := t.TempDir()
	writeRecord(t, dir, "a.json", ingest.Record{Term: "μπρο", Definitions: defs("φίλος")})
	writeRecord(t, dir, "b.json", ingest.Record{Term: "κοπάνα", Definitions: defs("σκασιαρχείο")})
	runPipeline(t, db, dir, 10)

	pipeline := ingest.New(store.NewSQLStore(db))
	_, err := pipeline.Run(context.Background(), ingest.DirSource{Dir: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)

	assert.Equal(t, 2, storetest.Count(t, db, `SELECT COUNT(*) FROM terms`))
	assert.Equal(t, 2, storetest.Count(t, db, `SELECT COUNT(*) FROM definitions`))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ingest.New(store.NewSQLStore(db)).Run(ctx, ingest.DirSource{Dir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}
