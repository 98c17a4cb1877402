package store

import (
	"context"
	"database/sql"
	"fmt"
)

const termColumns = `id, text, slug, COALESCE(source_url, ''), submitted_by, created_at`

func scanTerm(row interface{ Scan(...any) error }) (Term, error) {
	var item Term
	var submittedBy sql.NullString
	if err := row.Scan(&item.ID, &item.Text, &item.Slug, &item.SourceURL, &submittedBy, &item.CreatedAt); err != nil {
		return Term{}, err
	}
	if submittedBy.Valid {
		item.SubmittedBy = &submittedBy.String
	}
	return item, nil
}

func (s *SQLStore) ListTerms(ctx context.Context, limit, offset int) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+termColumns+`
		FROM terms
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	items := make([]Term, 0)
	for rows.Next() {
		item, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetTermBySlug(ctx context.Context, slug string) (Term, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+termColumns+` FROM terms WHERE slug=$1`, slug)
	return scanTerm(row)
}

// ListDefinitions returns a term's definitions, best net score first.
func (s *SQLStore) ListDefinitions(ctx context.Context, termID int64) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, term_id, body, COALESCE(example, ''), upvotes, downvotes, created_at
		FROM definitions
		WHERE term_id=$1
		ORDER BY (upvotes - downvotes) DESC, id ASC
	`, termID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	items := make([]Definition, 0)
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

// ListReferencedTerms returns, per definition of the term, the terms its
// text links to.
func (s *SQLStore) ListReferencedTerms(ctx context.Context, termID int64) (map[int64][]TermRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dr.definition_id, t.id, t.text, t.slug
		FROM definition_references dr
		JOIN definitions d ON d.id = dr.definition_id
		JOIN terms t ON t.id = dr.referenced_term_id
		WHERE d.term_id=$1
		ORDER BY dr.definition_id, t.text, t.id
	`, termID)
	if err != nil {
		return nil, fmt.Errorf("list referenced terms: %w", err)
	}
	defer rows.Close()

	refs := make(map[int64][]TermRef)
	for rows.Next() {
		var definitionID int64
		var ref TermRef
		if err := rows.Scan(&definitionID, &ref.ID, &ref.Text, &ref.Slug); err != nil {
			return nil, fmt.Errorf("scan referenced term: %w", err)
		}
		refs[definitionID] = append(refs[definitionID], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referenced terms: %w", err)
	}
	return refs, nil
}
