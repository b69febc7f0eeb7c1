package record

import (
	"errors"
	"io"
	"os"

	"github.com/roach88/dbforge/internal/container"
)

// Each decodes every block in r as a Record and calls fn for it.
// Blocks that cannot be classified are reported as *container.LineError.
func Each(r io.Reader, fn func(Record) error) error {
	rd := container.NewReader(r)
	for {
		f, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := FromBlock(f)
		if err != nil {
			return &container.LineError{Line: rd.Line(), Err: err}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// EachFile opens path and calls fn for every record in it.
func EachFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Each(f, fn)
}

// ReadFile loads every record in path. Intended for small sets and tests;
// large inputs should stream through EachFile.
func ReadFile(path string) ([]Record, error) {
	var out []Record
	err := EachFile(path, func(r Record) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write encodes recs to w.
func Write(w *container.Writer, recs ...Record) error {
	for _, r := range recs {
		if err := w.Write(r.Block()); err != nil {
			return err
		}
	}
	return nil
}
