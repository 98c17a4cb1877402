package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// YieldFunc receives each record in source order. A non-nil err means the
// named entry could not be read or decoded; rec is then the zero value.
// Returning an error stops the source.
type YieldFunc func(name string, rec Record, err error) error

type Source interface {
	Records(ctx context.Context, yield YieldFunc) error
}

// DirSource reads every *.json file of a directory in lexical order.
type DirSource struct {
	Dir string
}

func (s DirSource) Records(ctx context.Context, yield YieldFunc) error {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return fmt.Errorf("read source dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, recErr := readFile(filepath.Join(s.Dir, entry.Name()))
		if err := yield(entry.Name(), rec, recErr); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return DecodeRecord(f)
}
