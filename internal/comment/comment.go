// Package comment stores threaded discussion on terms. Comments are never
// removed by the service; deletion only sets a flag so replies keep their
// parent.
package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"slangdict/api/internal/apperr"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/rbac"
	"slangdict/api/internal/store"
)

const MaxContentLength = 5000

type Actor struct {
	ID   string
	Role rbac.Role
}

type Service struct {
	db     *store.DB
	logger *slog.Logger
}

func NewService(db *store.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logging.Module(logger, "comment")}
}

const selectComment = `
	SELECT c.id, c.term_id, c.author_id, COALESCE(u.username, ''), c.parent_id, c.content,
		c.is_deleted, c.upvotes, c.downvotes, c.created_at
	FROM comments c
	LEFT JOIN users u ON u.id = c.author_id
`

func scanComment(row interface{ Scan(...any) error }) (store.Comment, error) {
	var item store.Comment
	var parentID sql.NullInt64
	err := row.Scan(&item.ID, &item.TermID, &item.AuthorID, &item.AuthorName, &parentID, &item.Content,
		&item.IsDeleted, &item.Upvotes, &item.Downvotes, &item.CreatedAt)
	if err != nil {
		return store.Comment{}, err
	}
	if parentID.Valid {
		item.ParentID = &parentID.Int64
	}
	return item, nil
}

// Add creates a comment on termID, optionally as a reply to parentID. The
// parent must be a comment on the same term.
func (s *Service) Add(ctx context.Context, actor Actor, termID int64, parentID *int64, content string) (store.Comment, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return store.Comment{}, apperr.AuthenticationRequired()
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return store.Comment{}, apperr.InvalidArgument("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return store.Comment{}, apperr.Newf(apperr.KindInvalidArgument, "content exceeds %d characters", MaxContentLength)
	}

	var created store.Comment
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM terms WHERE id=$1`, termID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check term: %w", err)
		}
		if exists == 0 {
			return apperr.NotFound("term")
		}

		if parentID != nil {
			var parentTerm int64
			err := tx.QueryRowContext(ctx, `SELECT term_id FROM comments WHERE id=$1`, *parentID).Scan(&parentTerm)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && parentTerm != termID) {
				return apperr.InvalidArgument("parent comment must exist on the same term")
			}
			if err != nil {
				return fmt.Errorf("check parent comment: %w", err)
			}
		}

		var id int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO comments (term_id, author_id, parent_id, content)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, termID, actor.ID, nullInt64(parentID), content).Scan(&id); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		created, err = scanComment(tx.QueryRowContext(ctx, selectComment+` WHERE c.id=$1`, id))
		if err != nil {
			return fmt.Errorf("load comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Comment{}, classify(err, "add comment")
	}
	s.logger.Debug("comment added", "comment_id", created.ID, "term_id", termID, "reply", parentID != nil)
	return created, nil
}

// SoftDelete flags a comment as deleted. Only its author or a moderator may
// do so; deleting an already deleted comment succeeds.
func (s *Service) SoftDelete(ctx context.Context, actor Actor, commentID int64) error {
	if strings.TrimSpace(actor.ID) == "" {
		return apperr.AuthenticationRequired()
	}

	var moderated bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var authorID string
		var deleted bool
		err := tx.QueryRowContext(ctx, `SELECT author_id, is_deleted FROM comments WHERE id=$1`, commentID).Scan(&authorID, &deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("comment")
		}
		if err != nil {
			return fmt.Errorf("load comment: %w", err)
		}
		if authorID != actor.ID && !rbac.Can(actor.Role, rbac.ActionModerate) {
			return apperr.New(apperr.KindPermissionDenied, "only the author or a moderator can delete this comment")
		}
		moderated = authorID != actor.ID
		if deleted {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE comments SET is_deleted = TRUE WHERE id=$1`, commentID); err != nil {
			return fmt.Errorf("soft delete comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return classify(err, "delete comment")
	}
	s.logger.Info("comment deleted", "comment_id", commentID, "actor", actor.ID, "moderated", moderated)
	return nil
}

// List returns every comment on the term, deleted ones included, oldest
// first.
func (s *Service) List(ctx context.Context, termID int64) ([]store.Comment, error) {
	rows, err := s.db.QueryContext(ctx, selectComment+`
		WHERE c.term_id=$1
		ORDER BY c.created_at, c.id
	`, termID)
	if err != nil {
		return nil, classify(fmt.Errorf("list comments: %w", err), "list comments")
	}
	defer rows.Close()

	items := make([]store.Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, classify(fmt.Errorf("scan comment: %w", err), "list comments")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate comments: %w", err), "list comments")
	}
	return items, nil
}

func classify(err error, op string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case store.IsForeignKeyViolation(err):
		return apperr.Wrap(apperr.KindAuthenticationRequired, err, "unknown author")
	default:
		return apperr.Wrap(apperr.KindInternal, err, op)
	}
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
