package store

import (
	"context"
	"fmt"
)

// EnsureTag returns the tag with the given slug or name, creating it first
// if neither exists yet.
func (s *SQLStore) EnsureTag(ctx context.Context, name, slug string) (Tag, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (name, slug)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, name, slug); err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}

	var tag Tag
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug
		FROM tags
		WHERE slug=$1 OR name=$2
		ORDER BY id
		LIMIT 1
	`, slug, name).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		return Tag{}, fmt.Errorf("load tag: %w", err)
	}
	return tag, nil
}

func (s *SQLStore) GetTagBySlug(ctx context.Context, slug string) (Tag, error) {
	var tag Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug=$1`, slug).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if err != nil {
		return Tag{}, err
	}
	return tag, nil
}

func (s *SQLStore) AttachTag(ctx context.Context, termID, tagID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO term_tags (term_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, termID, tagID)
	if err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

func (s *SQLStore) ListTermTags(ctx context.Context, termID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tg.id, tg.name, tg.slug
		FROM term_tags tt
		JOIN tags tg ON tg.id = tt.tag_id
		WHERE tt.term_id=$1
		ORDER BY tg.name
	`, termID)
	if err != nil {
		return nil, fmt.Errorf("list term tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		items = append(items, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListTermsByTag(ctx context.Context, tagID int64) ([]Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.text, t.slug, COALESCE(t.source_url, ''), t.submitted_by, t.created_at
		FROM term_tags tt
		JOIN terms t ON t.id = tt.term_id
		WHERE tt.tag_id=$1
		ORDER BY t.text, t.id
	`, tagID)
	if err != nil {
		return nil, fmt.Errorf("list terms by tag: %w", err)
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
