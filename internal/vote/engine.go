package vote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"slangdict/api/internal/apperr"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/store"
)

const defaultMaxAttempts = 3

// Recorder receives vote outcomes. metrics.VoteMetrics implements it.
type Recorder interface {
	RecordCast(target, transition string)
	RecordRetry(target string)
	RecordConflict(target string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCast(string, string) {}
func (nopRecorder) RecordRetry(string)        {}
func (nopRecorder) RecordConflict(string)     {}

type Engine struct {
	db          *store.DB
	maxAttempts int
	recorder    Recorder
	logger      *slog.Logger
}

type Option func(*Engine)

func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.Module(logger, "vote")
	}
}

func NewEngine(db *store.DB, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		maxAttempts: defaultMaxAttempts,
		recorder:    nopRecorder{},
		logger:      logging.Module(nil, "vote"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the state of the target right after a cast. Current is the
// actor's vote, nil when they have none.
type Result struct {
	Target     string     `json:"target"`
	TargetID   int64      `json:"targetId"`
	Upvotes    int        `json:"upvotes"`
	Downvotes  int        `json:"downvotes"`
	Current    *Direction `json:"current"`
	Transition Transition `json:"-"`
}

// Cast applies action for actorID on the target row. Counters and ledger
// change together or not at all. Transactions lost to a concurrent writer
// are retried; when attempts run out the error is a Conflict.
func (e *Engine) Cast(ctx context.Context, actorID string, target Target, targetID int64, action Action) (Result, error) {
	if strings.TrimSpace(actorID) == "" {
		return Result{}, apperr.AuthenticationRequired()
	}
	if !action.Valid() {
		return Result{}, apperr.Newf(apperr.KindInvalidArgument, "invalid vote action %q", string(action))
	}

	for attempt := 1; ; attempt++ {
		result, err := e.castOnce(ctx, actorID, target, targetID, action)
		if err == nil {
			e.recorder.RecordCast(target.name, string(result.Transition.Kind))
			return result, nil
		}

		var appErr *apperr.Error
		switch {
		case errors.As(err, &appErr):
			return Result{}, err
		case store.IsForeignKeyViolation(err):
			return Result{}, apperr.Wrap(apperr.KindAuthenticationRequired, err, "unknown voter")
		case !store.IsRetryable(err):
			return Result{}, apperr.Wrap(apperr.KindInternal, err, "cast vote")
		case attempt >= e.maxAttempts:
			e.recorder.RecordConflict(target.name)
			e.logger.Warn("vote conflict", "target", target.name, "target_id", targetID, "attempts", attempt, "error", err)
			return Result{}, apperr.Wrap(apperr.KindConflict, err, "vote conflicted with a concurrent update")
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, apperr.Wrap(apperr.KindInternal, ctxErr, "cast vote")
		}
		e.recorder.RecordRetry(target.name)
		e.logger.Debug("retrying vote", "target", target.name, "target_id", targetID, "attempt", attempt, "error", err)
	}
}

func (e *Engine) castOnce(ctx context.Context, actorID string, target Target, targetID int64, action Action) (Result, error) {
	result := Result{Target: target.name, TargetID: targetID}
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		var up, down int
		err := tx.QueryRowContext(ctx,
			`SELECT upvotes, downvotes FROM `+target.table+` WHERE id=$1`+e.db.Dialect.ForUpdate(),
			targetID,
		).Scan(&up, &down)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound(target.name)
		}
		if err != nil {
			return fmt.Errorf("lock %s: %w", target.name, err)
		}

		existing, err := currentVote(ctx, tx, target, targetID, actorID)
		if err != nil {
			return err
		}

		transition := Decide(existing, action)
		if err := applyLedger(ctx, tx, target, targetID, actorID, transition); err != nil {
			return err
		}
		if transition.UpDelta != 0 || transition.DownDelta != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+target.table+` SET upvotes = upvotes + $1, downvotes = downvotes + $2 WHERE id = $3`,
				transition.UpDelta, transition.DownDelta, targetID,
			); err != nil {
				return fmt.Errorf("update %s counters: %w", target.name, err)
			}
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT upvotes, downvotes FROM `+target.table+` WHERE id=$1`, targetID,
		).Scan(&result.Upvotes, &result.Downvotes); err != nil {
			return fmt.Errorf("read %s counters: %w", target.name, err)
		}

		result.Transition = transition
		switch transition.Kind {
		case Insert, Switch:
			to := transition.To
			result.Current = &to
		case Noop:
			result.Current = existing
		}
		return nil
	})
	return result, err
}

func currentVote(ctx context.Context, q store.Querier, target Target, targetID int64, actorID string) (*Direction, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT vote_type FROM `+target.ledger+` WHERE `+target.column+`=$1 AND user_id=$2`,
		targetID, actorID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s vote: %w", target.name, err)
	}
	dir := Direction(raw)
	return &dir, nil
}

func applyLedger(ctx context.Context, tx *sql.Tx, target Target, targetID int64, actorID string, transition Transition) error {
	var err error
	switch transition.Kind {
	case Insert:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+target.ledger+` (`+target.column+`, user_id, vote_type) VALUES ($1, $2, $3)`,
			targetID, actorID, string(transition.To),
		)
	case Delete:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM `+target.ledger+` WHERE `+target.column+`=$1 AND user_id=$2`,
			targetID, actorID,
		)
	case Switch:
		_, err = tx.ExecContext(ctx,
			`UPDATE `+target.ledger+` SET vote_type=$1, updated_at=CURRENT_TIMESTAMP WHERE `+target.column+`=$2 AND user_id=$3`,
			string(transition.To), targetID, actorID,
		)
	}
	if err != nil {
		return fmt.Errorf("%s %s vote: %w", transition.Kind, target.name, err)
	}
	return nil
}
