package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed is returned for records that cannot be decoded.
var ErrMalformed = errors.New("dataset: malformed record")

// ParseError reports a malformed record.
type ParseError struct {
	// Line is the 1-based line (text formats) or record (binary) number.
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dataset: record %d: %s", e.Line, e.Msg)
}

// Unwrap allows errors.Is(err, ErrMalformed).
func (e *ParseError) Unwrap() error { return ErrMalformed }

// Example is a labelled sparse feature vector. Indices and Values have the
// same length; Indices are 0-based regardless of the file encoding.
type Example struct {
	Label   float32
	Indices []uint32
	Values  []float32
}

// NNZ returns the number of stored features.
func (e Example) NNZ() int { return len(e.Indices) }

// Dim returns one plus the largest feature index, or 0 for an empty vector.
func (e Example) Dim() int {
	var maxIdx uint32
	for _, idx := range e.Indices {
		maxIdx = max(maxIdx, idx)
	}
	if len(e.Indices) == 0 {
		return 0
	}
	return int(maxIdx) + 1
}

// Dot returns the inner product of the example with a dense vector. Indices
// at or beyond len(w) contribute nothing.
func (e Example) Dot(w []float32) float32 {
	var sum float32
	for i, idx := range e.Indices {
		if int(idx) < len(w) {
			sum += w[idx] * e.Values[i]
		}
	}
	return sum
}

// Clone returns a deep copy of the example.
func (e Example) Clone() Example {
	return Example{
		Label:   e.Label,
		Indices: append([]uint32(nil), e.Indices...),
		Values:  append([]float32(nil), e.Values...),
	}
}

// Scanner is a restartable record source.
//
// Next returns io.EOF after the last record. The slices of a returned Example
// may be reused by the next call to Next; callers that keep an example must
// copy it.
type Scanner interface {
	// Reset rewinds the scanner to the first record.
	Reset() error
	// Next decodes the next record.
	Next() (Example, error)
}

// ScanCloser is a Scanner that holds resources.
type ScanCloser interface {
	Scanner
	io.Closer
}

// Opener creates a fresh ScanCloser. Loaders that read from several threads at
// once call it once per thread.
type Opener func(ctx context.Context) (ScanCloser, error)

// Format selects a record encoding.
type Format int

const (
	// FormatTSV is tab-separated text with 0-based feature indices.
	FormatTSV Format = iota
	// FormatMatlabTSV is tab-separated text with 1-based feature indices.
	FormatMatlabTSV
	// FormatBinary is the binary record stream.
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatTSV:
		return "tsv"
	case FormatMatlabTSV:
		return "matlab-tsv"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat parses a format name as printed by Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tsv", "text":
		return FormatTSV, nil
	case "matlab-tsv", "matlab":
		return FormatMatlabTSV, nil
	case "binary", "bin":
		return FormatBinary, nil
	default:
		return 0, fmt.Errorf("dataset: unknown format %q", s)
	}
}

// Open returns a scanner decoding src in the given format.
func Open(ctx context.Context, src *Source, f Format) (ScanCloser, error) {
	switch f {
	case FormatTSV:
		return newTextScanner(ctx, src, 0)
	case FormatMatlabTSV:
		return newTextScanner(ctx, src, 1)
	case FormatBinary:
		return newBinaryScanner(ctx, src)
	default:
		return nil, fmt.Errorf("dataset: unknown format %v", f)
	}
}

// NewOpener returns an Opener for src in the given format.
func NewOpener(src *Source, f Format) Opener {
	return func(ctx context.Context) (ScanCloser, error) {
		return Open(ctx, src, f)
	}
}

// SliceScanner serves examples from memory.
type SliceScanner struct {
	examples []Example
	pos      int
}

// NewSliceScanner returns a scanner over examples. The examples are not copied.
func NewSliceScanner(examples []Example) *SliceScanner {
	return &SliceScanner{examples: examples}
}

// Reset implements Scanner.
func (s *SliceScanner) Reset() error {
	s.pos = 0
	return nil
}

// Next implements Scanner.
func (s *SliceScanner) Next() (Example, error) {
	if s.pos >= len(s.examples) {
		return Example{}, io.EOF
	}
	ex := s.examples[s.pos]
	s.pos++
	return ex, nil
}

// Close implements io.Closer.
func (s *SliceScanner) Close() error { return nil }
