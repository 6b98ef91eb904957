package dataset

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const maxLineSize = 64 << 20

type textScanner struct {
	ctx  context.Context
	src  *Source
	base uint64

	rc   io.ReadCloser
	sc   *bufio.Scanner
	line int

	indices []uint32
	values  []float32
}

func newTextScanner(ctx context.Context, src *Source, base uint64) (*textScanner, error) {
	s := &textScanner{ctx: ctx, src: src, base: base}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *textScanner) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	rc, err := s.src.Open(s.ctx)
	if err != nil {
		return err
	}
	s.rc = rc
	s.sc = bufio.NewScanner(rc)
	s.sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	s.line = 0
	return nil
}

func (s *textScanner) Next() (Example, error) {
	if s.sc == nil {
		return Example{}, io.EOF
	}
	for s.sc.Scan() {
		s.line++
		text := strings.TrimSpace(s.sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		return s.parse(text)
	}
	if err := s.sc.Err(); err != nil {
		return Example{}, fmt.Errorf("dataset: read %s: %w", s.src.Name(), err)
	}
	return Example{}, io.EOF
}

func (s *textScanner) parse(text string) (Example, error) {
	fields := strings.Fields(text)

	label, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return Example{}, s.errorf("bad label %q", fields[0])
	}

	s.indices = s.indices[:0]
	s.values = s.values[:0]

	for i := 1; i < len(fields); i++ {
		idxTok, valTok, paired := strings.Cut(fields[i], ":")
		if !paired {
			if i+1 >= len(fields) {
				return Example{}, s.errorf("feature %q has no value", fields[i])
			}
			i++
			valTok = fields[i]
		}

		idx, err := strconv.ParseUint(idxTok, 10, 32)
		if err != nil {
			return Example{}, s.errorf("bad feature index %q", idxTok)
		}
		if idx < s.base {
			return Example{}, s.errorf("feature index %d below base %d", idx, s.base)
		}
		val, err := strconv.ParseFloat(valTok, 32)
		if err != nil {
			return Example{}, s.errorf("bad feature value %q", valTok)
		}

		s.indices = append(s.indices, uint32(idx-s.base))
		s.values = append(s.values, float32(val))
	}

	return Example{Label: float32(label), Indices: s.indices, Values: s.values}, nil
}

func (s *textScanner) errorf(format string, args ...any) error {
	return &ParseError{Line: s.line, Msg: fmt.Sprintf(format, args...)}
}

func (s *textScanner) Close() error {
	if s.rc == nil {
		return nil
	}
	rc := s.rc
	s.rc, s.sc = nil, nil
	return rc.Close()
}

// TextWriter writes examples as tab-separated text.
type TextWriter struct {
	w    *bufio.Writer
	base uint32
	buf  []byte
}

// NewTextWriter returns a writer for FormatTSV or FormatMatlabTSV.
func NewTextWriter(w io.Writer, f Format) (*TextWriter, error) {
	switch f {
	case FormatTSV:
		return &TextWriter{w: bufio.NewWriter(w)}, nil
	case FormatMatlabTSV:
		return &TextWriter{w: bufio.NewWriter(w), base: 1}, nil
	default:
		return nil, fmt.Errorf("dataset: %v is not a text format", f)
	}
}

// Write appends one example as a line.
func (t *TextWriter) Write(ex Example) error {
	b := t.buf[:0]
	b = strconv.AppendFloat(b, float64(ex.Label), 'g', -1, 32)
	for i, idx := range ex.Indices {
		b = append(b, '\t')
		b = strconv.AppendUint(b, uint64(idx)+uint64(t.base), 10)
		b = append(b, '\t')
		b = strconv.AppendFloat(b, float64(ex.Values[i]), 'g', -1, 32)
	}
	b = append(b, '\n')
	t.buf = b
	_, err := t.w.Write(b)
	return err
}

// Flush writes buffered data to the underlying writer.
func (t *TextWriter) Flush() error { return t.w.Flush() }
