package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ClearDictionary deletes every reference, definition and term. Rows that
// hang off them (votes, comments, tags, bookmarks) go with them by cascade.
func (s *SQLStore) ClearDictionary(ctx context.Context) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"definition_references", "definitions", "terms"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// InsertArchiveTerm inserts a term with no submitter.
func InsertArchiveTerm(ctx context.Context, q Querier, text, slug, sourceURL string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO terms (text, slug, source_url)
		VALUES ($1, $2, $3)
		RETURNING id
	`, text, slug, nullString(sourceURL)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert term: %w", err)
	}
	return id, nil
}

func InsertDefinition(ctx context.Context, q Querier, termID int64, body, example string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO definitions (term_id, body, example)
		VALUES ($1, $2, $3)
		RETURNING id
	`, termID, body, nullString(example)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert definition: %w", err)
	}
	return id, nil
}

// InsertReferences stores refs, skipping pairs that already exist, and
// returns how many rows were added.
func InsertReferences(ctx context.Context, q Querier, refs []DefinitionReference) (int, error) {
	inserted := 0
	for _, ref := range refs {
		res, err := q.ExecContext(ctx, `
			INSERT INTO definition_references (definition_id, referenced_term_id)
			VALUES ($1, $2)
			ON CONFLICT (definition_id, referenced_term_id) DO NOTHING
		`, ref.DefinitionID, ref.ReferencedTermID)
		if err != nil {
			return inserted, fmt.Errorf("insert reference: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert reference: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// ListAllTerms returns every term in id order.
func (s *SQLStore) ListAllTerms(ctx context.Context) ([]TermRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, slug FROM terms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all terms: %w", err)
	}
	defer rows.Close()

	items := make([]TermRef, 0)
	for rows.Next() {
		var item TermRef
		if err := rows.Scan(&item.ID, &item.Text, &item.Slug); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return items, nil
}

// ListDefinitionsAfter pages definitions by id: up to limit rows with an id
// greater than afterID.
func (s *SQLStore) ListDefinitionsAfter(ctx context.Context, afterID int64, limit int) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, term_id, body, COALESCE(example, ''), upvotes, downvotes, created_at
		FROM definitions
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("page definitions: %w", err)
	}
	defer rows.Close()

	items := make([]Definition, 0, limit)
	for rows.Next() {
		var item Definition
		if err := rows.Scan(&item.ID, &item.TermID, &item.Body, &item.Example, &item.Upvotes, &item.Downvotes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return items, nil
}
