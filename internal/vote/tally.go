package vote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slangdict/api/internal/apperr"
)

// Tally puts a target's stored counters next to the counts derived from its
// ledger. The two agree whenever no vote transaction is in flight.
type Tally struct {
	Upvotes    int
	Downvotes  int
	LedgerUp   int
	LedgerDown int
}

func (t Tally) Consistent() bool {
	return t.Upvotes == t.LedgerUp && t.Downvotes == t.LedgerDown
}

func (e *Engine) Tally(ctx context.Context, target Target, targetID int64) (Tally, error) {
	var tally Tally
	err := e.db.QueryRowContext(ctx,
		`SELECT upvotes, downvotes FROM `+target.table+` WHERE id=$1`, targetID,
	).Scan(&tally.Upvotes, &tally.Downvotes)
	if errors.Is(err, sql.ErrNoRows) {
		return Tally{}, apperr.NotFound(target.name)
	}
	if err != nil {
		return Tally{}, apperr.Wrap(apperr.KindInternal, err, "tally votes")
	}

	err = e.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN vote_type = 'up' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN vote_type = 'down' THEN 1 ELSE 0 END), 0)
		FROM `+target.ledger+`
		WHERE `+target.column+`=$1
	`, targetID).Scan(&tally.LedgerUp, &tally.LedgerDown)
	if err != nil {
		return Tally{}, apperr.Wrap(apperr.KindInternal, err, "tally votes")
	}
	return tally, nil
}

// CurrentVotes returns the actor's vote on each of ids that has one.
// An anonymous actor has none.
func (e *Engine) CurrentVotes(ctx context.Context, target Target, actorID string, ids []int64) (map[int64]Direction, error) {
	votes := make(map[int64]Direction)
	if actorID == "" || len(ids) == 0 {
		return votes, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, actorID)
	placeholders := make([]string, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
		args = append(args, id)
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT `+target.column+`, vote_type FROM `+target.ledger+
			` WHERE user_id=$1 AND `+target.column+` IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Errorf("list %s votes: %w", target.name, err), "list votes")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, fmt.Errorf("scan %s vote: %w", target.name, err), "list votes")
		}
		votes[id] = Direction(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, fmt.Errorf("iterate %s votes: %w", target.name, err), "list votes")
	}
	return votes, nil
}
