package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Writer is implemented by TextWriter and BinaryWriter.
type Writer interface {
	Write(ex Example) error
	Flush() error
}

// NewWriter returns a Writer for the given format.
func NewWriter(w io.Writer, f Format) (Writer, error) {
	if f == FormatBinary {
		return NewBinaryWriter(w), nil
	}
	return NewTextWriter(w, f)
}

// Copy writes every remaining record of sc to w and flushes w. It checks ctx
// between records and returns the number of records copied.
func Copy(ctx context.Context, w Writer, sc Scanner) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ex, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		if err := w.Write(ex); err != nil {
			return n, fmt.Errorf("dataset: write record %d: %w", n+1, err)
		}
		n++
	}
	return n, w.Flush()
}
