// Package container reads and writes record container files.
//
// A container is UTF-8 JSON Lines: every non-blank line is one top-level
// block as encoded by block.MarshalField. Files are processed one line at a
// time so large inputs never need to fit in memory.
package container

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dbforge/internal/block"
)

// maxLineSize bounds a single encoded block.
const maxLineSize = 64 << 20

// LineError reports a block that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader decodes blocks from a container stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next block. It returns io.EOF when the stream is exhausted.
// Decode failures are returned as *LineError.
func (r *Reader) Next() (block.Field, error) {
	for r.sc.Scan() {
		r.line++
		data := bytes.TrimSpace(r.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		f, err := block.UnmarshalField(data)
		if err != nil {
			return block.Field{}, &LineError{Line: r.line, Err: err}
		}
		return f, nil
	}
	if err := r.sc.Err(); err != nil {
		return block.Field{}, &LineError{Line: r.line + 1, Err: err}
	}
	return block.Field{}, io.EOF
}

// Line returns the line number of the most recently read block.
func (r *Reader) Line() int {
	return r.line
}

// Writer encodes blocks to a container stream, one per line.
type Writer struct {
	bw    *bufio.Writer
	count int
}

// NewWriter creates a Writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write appends one block.
func (w *Writer) Write(f block.Field) error {
	data, err := block.MarshalField(f)
	if err != nil {
		return fmt.Errorf("encode block %d: %w", w.count+1, err)
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Count returns the number of blocks written so far.
func (w *Writer) Count() int {
	return w.count
}
