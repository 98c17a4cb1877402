package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slangdict/api/internal/store"
	"slangdict/api/internal/store/storetest"
)

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := storetest.NewSQLite(t)
	require.NoError(t, store.ApplyMigrations(context.Background(), db))
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM schema_migrations`))
}

func TestUpsertUserUpdatesRole(t *testing.T) {
	db := storetest.NewSQLite(t)
	s := store.NewSQLStore(db)
	ctx := context.Background()

	require.NoError(t, s.UpsertUser(ctx, store.User{ID: "u1", Username: "nikos"}))
	require.NoError(t, s.UpsertUser(ctx, store.User{ID: "u1", Username: "nikos_k", Role: "moderator"}))

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "nikos_k", user.Username)
	assert.Equal(t, "moderator", user.Role)
}

func TestGetTermBySlugMissingReturnsErrNoRows(t *testing.T) {
	db := storetest.NewSQLite(t)
	_, err := store.NewSQLStore(db).GetTermBySlug(context.Background(), "404")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestTermDetailQueries(t *testing.T) {
	db := storetest.NewSQLite(t)
	s := store.NewSQLStore(db)
	ctx := context.Background()

	termID := storetest.SeedTerm(t, db, "γαμάτο", "1")
	otherID := storetest.SeedTerm(t, db, "μπρο", "2")
	low := storetest.SeedDefinition(t, db, termID, "κάτι πολύ καλό", "")
	high := storetest.SeedDefinition(t, db, termID, "τέλειο μπρο", "ήταν γαμάτο")
	_, err := db.ExecContext(ctx, `UPDATE definitions SET upvotes = 3 WHERE id = $1`, high)
	require.NoError(t, err)

	n, err := store.InsertReferences(ctx, db, []store.DefinitionReference{
		{DefinitionID: high, ReferencedTermID: otherID},
		{DefinitionID: high, ReferencedTermID: otherID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	term, err := s.GetTermBySlug(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "γαμάτο", term.Text)
	assert.True(t, term.IsArchive())

	defs, err := s.ListDefinitions(ctx, termID)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, high, defs[0].ID)
	assert.Equal(t, "ήταν γαμάτο", defs[0].Example)
	assert.Equal(t, low, defs[1].ID)
	assert.Equal(t, "", defs[1].Example)

	refs, err := s.ListReferencedTerms(ctx, termID)
	require.NoError(t, err)
	require.Len(t, refs[high], 1)
	assert.Equal(t, "μπρο", refs[high][0].Text)
	assert.Empty(t, refs[low])
}

func TestListTermsNewestFirst(t *testing.T) {
	db := storetest.NewSQLite(t)
	for i, text := range []string{"ένα", "δύο", "τρία"} {
		storetest.SeedTerm(t, db, text, string(rune('1'+i)))
	}
	terms, err := store.NewSQLStore(db).ListTerms(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "τρία", terms[0].Text)
	assert.Equal(t, "δύο", terms[1].Text)
}

func TestTagsAttachAndList(t *testing.T) {
	db := storetest.NewSQLite(t)
	s := store.NewSQLStore(db)
	ctx := context.Background()
	termID := storetest.SeedTerm(t, db, "φάση", "1")

	tag, err := s.EnsureTag(ctx, "Νεανικά", "neanika")
	require.NoError(t, err)
	again, err := s.EnsureTag(ctx, "Νεανικά", "neanika")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)

	require.NoError(t, s.AttachTag(ctx, termID, tag.ID))
	require.NoError(t, s.AttachTag(ctx, termID, tag.ID))

	tags, err := s.ListTermTags(ctx, termID)
	require.NoError(t, err)
	assert.Equal(t, []store.Tag{tag}, tags)

	terms, err := s.ListTermsByTag(ctx, tag.ID)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, termID, terms[0].ID)
}

func TestToggleBookmark(t *testing.T) {
	db := storetest.NewSQLite(t)
	s := store.NewSQLStore(db)
	ctx := context.Background()
	storetest.SeedUser(t, db, "u1", "user")
	termID := storetest.SeedTerm(t, db, "φάση", "1")

	on, err := s.ToggleBookmark(ctx, "u1", termID)
	require.NoError(t, err)
	assert.True(t, on)

	list, err := s.ListBookmarks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "φάση", list[0].Term.Text)

	off, err := s.ToggleBookmark(ctx, "u1", termID)
	require.NoError(t, err)
	assert.False(t, off)
	assert.Equal(t, 0, storetest.Count(t, db, `SELECT COUNT(*) FROM bookmarks`))
}

// toggleConcurrently flips one bookmark from many goroutines. Toggles
// serialize, so the reported states alternate and the final row count
// matches the parity of the toggle count.
func toggleConcurrently(t *testing.T, db *store.DB) {
	t.Helper()
	const toggles = 9
	s := store.NewSQLStore(db)
	ctx := context.Background()
	storetest.SeedUser(t, db, "u1", "user")
	termID := storetest.SeedTerm(t, db, "φάση", "1")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		on   int
		errs []error
	)
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bookmarked, err := s.ToggleBookmark(ctx, "u1", termID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if bookmarked {
				on++
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, toggles/2+1, on)
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM bookmarks`))
}

func TestToggleBookmarkConcurrentSQLite(t *testing.T) {
	toggleConcurrently(t, storetest.NewSQLite(t))
}

func TestToggleBookmarkConcurrentPostgres(t *testing.T) {
	toggleConcurrently(t, storetest.NewPostgres(t))
}

func TestToggleBookmarkMissingTerm(t *testing.T) {
	db := storetest.NewSQLite(t)
	storetest.SeedUser(t, db, "u1", "user")
	_, err := store.NewSQLStore(db).ToggleBookmark(context.Background(), "u1", 404)
	assert.True(t, errors.Is(err, sql.ErrNoRows), "got %v", err)
}

func TestClearDictionaryCascades(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx := context.Background()
	storetest.SeedUser(t, db, "u1", "user")
	termID := storetest.SeedTerm(t, db, "φάση", "1")
	defID := storetest.SeedDefinition(t, db, termID, "κατάσταση", "")
	_, err := db.ExecContext(ctx, `INSERT INTO definition_votes (definition_id, user_id, vote_type) VALUES ($1, $2, 'up')`, defID, "u1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO bookmarks (user_id, term_id) VALUES ($1, $2)`, "u1", termID)
	require.NoError(t, err)

	require.NoError(t, store.NewSQLStore(db).ClearDictionary(ctx))

	for _, table := range []string{"terms", "definitions", "definition_votes", "bookmarks"} {
		assert.Equal(t, 0, storetest.Count(t, db, `SELECT COUNT(*) FROM `+table), table)
	}
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM users`))
}

func TestConstraintClassification(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx := context.Background()
	storetest.SeedTerm(t, db, "φάση", "1")

	_, err := store.InsertArchiveTerm(ctx, db, "άλλο", "1", "")
	require.Error(t, err)
	assert.True(t, store.IsUniqueViolation(err))
	assert.True(t, store.IsRetryable(err))

	_, err = store.InsertDefinition(ctx, db, 9999, "ορφανό", "")
	require.Error(t, err)
	assert.True(t, store.IsForeignKeyViolation(err))
	assert.False(t, store.IsRetryable(err))

	assert.False(t, store.IsUniqueViolation(errors.New("boom")))
}

func TestSavepointRollsBackOnlyInner(t *testing.T) {
	db := storetest.NewSQLite(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := store.InsertArchiveTerm(ctx, tx, "ένα", "1", ""); err != nil {
			return err
		}
		innerErr := store.Savepoint(ctx, tx, "term_2", func() error {
			if _, err := store.InsertArchiveTerm(ctx, tx, "δύο", "2", ""); err != nil {
				return err
			}
			_, err := store.InsertArchiveTerm(ctx, tx, "διπλό", "1", "")
			return err
		})
		assert.True(t, store.IsUniqueViolation(innerErr))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM terms`))
}
