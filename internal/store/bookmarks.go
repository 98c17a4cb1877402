package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ToggleBookmark removes the user's bookmark on the term if present and
// adds it otherwise. It reports whether the term is bookmarked afterwards.
// The term row is locked first so concurrent toggles see each other's
// writes; a missing term returns sql.ErrNoRows.
func (s *SQLStore) ToggleBookmark(ctx context.Context, userID string, termID int64) (bool, error) {
	var bookmarked bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var locked int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM terms WHERE id=$1`+s.db.Dialect.ForUpdate(), termID,
		).Scan(&locked)
		if err != nil {
			return fmt.Errorf("lock term: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id=$1 AND term_id=$2`, userID, termID)
		if err != nil {
			return fmt.Errorf("delete bookmark: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete bookmark: %w", err)
		}
		if removed > 0 {
			bookmarked = false
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bookmarks (user_id, term_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, termID); err != nil {
			return fmt.Errorf("insert bookmark: %w", err)
		}
		bookmarked = true
		return nil
	})
	return bookmarked, err
}

func (s *SQLStore) ListBookmarks(ctx context.Context, userID string) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.text, t.slug, b.created_at
		FROM bookmarks b
		JOIN terms t ON t.id = b.term_id
		WHERE b.user_id=$1
		ORDER BY b.created_at DESC, b.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	items := make([]Bookmark, 0)
	for rows.Next() {
		var item Bookmark
		if err := rows.Scan(&item.Term.ID, &item.Term.Text, &item.Term.Slug, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return items, nil
}
