// Package vote is the only writer of the up/down counters on definitions
// and comments. Every change goes through Engine.Cast, which applies the
// ledger row and the counter delta in one transaction.
package vote

import (
	"strings"

	"slangdict/api/internal/apperr"
)

type Action string

const (
	ActionUp     Action = "up"
	ActionDown   Action = "down"
	ActionRemove Action = "remove"
)

// ParseAction accepts up, down or remove, ignoring case and surrounding
// space.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !action.Valid() {
		return "", apperr.Newf(apperr.KindInvalidArgument, "invalid vote action %q", raw)
	}
	return action, nil
}

func (a Action) Valid() bool {
	switch a {
	case ActionUp, ActionDown, ActionRemove:
		return true
	}
	return false
}

// Direction is the value stored in a ledger row.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

type TransitionKind string

const (
	Noop   TransitionKind = "noop"
	Insert TransitionKind = "insert"
	Delete TransitionKind = "delete"
	Switch TransitionKind = "switch"
)

// Transition is the ledger change and counter deltas for one vote request.
// To is the direction written by Insert and Switch.
type Transition struct {
	Kind      TransitionKind
	To        Direction
	UpDelta   int
	DownDelta int
}

// Decide maps the actor's existing vote (nil for none) and the requested
// action onto a transition. It assumes a valid action.
func Decide(existing *Direction, action Action) Transition {
	if action == ActionRemove {
		if existing == nil {
			return Transition{Kind: Noop}
		}
		up, down := delta(*existing)
		return Transition{Kind: Delete, UpDelta: -up, DownDelta: -down}
	}

	want := Up
	if action == ActionDown {
		want = Down
	}
	up, down := delta(want)
	switch {
	case existing == nil:
		return Transition{Kind: Insert, To: want, UpDelta: up, DownDelta: down}
	case *existing == want:
		return Transition{Kind: Noop}
	default:
		oldUp, oldDown := delta(*existing)
		return Transition{Kind: Switch, To: want, UpDelta: up - oldUp, DownDelta: down - oldDown}
	}
}

func delta(d Direction) (up, down int) {
	if d == Up {
		return 1, 0
	}
	return 0, 1
}

// Target names a votable entity: its table, its ledger and the ledger's
// foreign key column.
type Target struct {
	name   string
	table  string
	ledger string
	column string
}

var (
	Definition = Target{name: "definition", table: "definitions", ledger: "definition_votes", column: "definition_id"}
	Comment    = Target{name: "comment", table: "comments", ledger: "comment_votes", column: "comment_id"}
)

func (t Target) String() string {
	return t.name
}
