package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"slangdict/api/internal/store"
)

// WriteFunc performs the writes of one item inside the batch transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

type batchItem struct {
	label     string
	write     WriteFunc
	committed func()
}

// batchWriter buffers items and writes each full buffer in one
// transaction, every item behind its own savepoint. A failing item is
// rolled back alone; a failing commit loses the whole batch. Neither stops
// the writer.
type batchWriter struct {
	db   *store.DB
	size int
	buf  []batchItem

	OnItemError  func(label string, err error)
	OnBatchError func(labels []string, err error)
}

func newBatchWriter(db *store.DB, size int) *batchWriter {
	if size <= 0 {
		size = 1
	}
	return &batchWriter{db: db, size: size, buf: make([]batchItem, 0, size)}
}

// Submit enqueues write. committed, when non-nil, runs once the batch
// holding the item has committed and the item itself succeeded.
func (bw *batchWriter) Submit(ctx context.Context, label string, write WriteFunc, committed func()) {
	bw.buf = append(bw.buf, batchItem{label: label, write: write, committed: committed})
	if len(bw.buf) >= bw.size {
		bw.Flush(ctx)
	}
}

func (bw *batchWriter) Flush(ctx context.Context) {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]batchItem, 0, bw.size)

	var done []batchItem
	err := bw.db.WithTx(ctx, func(tx *sql.Tx) error {
		for i, item := range batch {
			err := store.Savepoint(ctx, tx, "item_"+strconv.Itoa(i), func() error {
				return item.write(ctx, tx)
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if bw.OnItemError != nil {
					bw.OnItemError(item.label, err)
				}
				continue
			}
			done = append(done, item)
		}
		return nil
	})
	if err != nil {
		if bw.OnBatchError != nil {
			labels := make([]string, 0, len(done))
			for _, item := range done {
				labels = append(labels, item.label)
			}
			bw.OnBatchError(labels, fmt.Errorf("batch of %d items: %w", len(batch), err))
		}
		return
	}
	for _, item := range done {
		if item.committed != nil {
			item.committed()
		}
	}
}
