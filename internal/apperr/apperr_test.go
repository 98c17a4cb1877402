package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "direct", err: NotFound("term"), want: KindNotFound},
		{name: "wrapped by fmt", err: fmt.Errorf("cast vote: %w", InvalidArgument("bad action")), want: KindInvalidArgument},
		{name: "wrap helper", err: Wrap(KindConflict, errors.New("duplicate key"), "concurrent vote"), want: KindConflict},
		{name: "plain error", err: sql.ErrConnDone, want: KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindInternal, sql.ErrTxDone, "commit vote")
	if !errors.Is(err, sql.ErrTxDone) {
		t.Fatalf("expected wrapped error to match sql.ErrTxDone, got %v", err)
	}
	if Wrap(KindInternal, nil, "noop") != nil {
		t.Fatal("expected Wrap(nil) to be nil")
	}
}

func TestMessageOfHidesInternalDetail(t *testing.T) {
	if got := MessageOf(errors.New("pq: password authentication failed")); got != "internal error" {
		t.Fatalf("expected internal message to be hidden, got %q", got)
	}
	if got := MessageOf(NotFound("comment")); got != "comment not found" {
		t.Fatalf("unexpected message %q", got)
	}
}
