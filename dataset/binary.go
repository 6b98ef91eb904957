package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// BinaryMagic opens every binary record stream.
var BinaryMagic = [4]byte{'H', 'G', 'W', 'B'}

// BinaryVersion is the record layout version written by BinaryWriter.
const BinaryVersion = 1

// maxRecordNNZ bounds the feature count of one record.
const maxRecordNNZ = 1 << 28

// readChunk is the number of bytes read per step of a record payload. The
// payload buffers grow with the bytes that actually arrive, so a corrupt
// feature count on a short stream fails without a large allocation.
const readChunk = 64 << 10

type binaryScanner struct {
	ctx context.Context
	src *Source

	rc     io.ReadCloser
	br     *bufio.Reader
	record int

	head    [8]byte
	buf     []byte
	indices []uint32
	values  []float32
}

func newBinaryScanner(ctx context.Context, src *Source) (*binaryScanner, error) {
	s := &binaryScanner{ctx: ctx, src: src}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *binaryScanner) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	rc, err := s.src.Open(s.ctx)
	if err != nil {
		return err
	}
	br := bufio.NewReaderSize(rc, 1<<20)

	var header [5]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		_ = rc.Close()
		return &ParseError{Line: 0, Msg: "missing header"}
	}
	if !bytes.Equal(header[:4], BinaryMagic[:]) {
		_ = rc.Close()
		return &ParseError{Line: 0, Msg: fmt.Sprintf("bad magic %q", header[:4])}
	}
	if header[4] != BinaryVersion {
		_ = rc.Close()
		return &ParseError{Line: 0, Msg: fmt.Sprintf("unsupported version %d", header[4])}
	}

	s.rc, s.br, s.record = rc, br, 0
	return nil
}

func (s *binaryScanner) Next() (Example, error) {
	if s.br == nil {
		return Example{}, io.EOF
	}

	if _, err := io.ReadFull(s.br, s.head[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Example{}, io.EOF
		}
		return Example{}, s.readError(err, s.record+1)
	}
	s.record++

	label := math.Float32frombits(binary.LittleEndian.Uint32(s.head[0:4]))
	nnz := binary.LittleEndian.Uint32(s.head[4:8])
	if nnz > maxRecordNNZ {
		return Example{}, &ParseError{Line: s.record, Msg: fmt.Sprintf("feature count %d too large", nnz)}
	}

	n := int(nnz)
	s.indices = s.indices[:0]
	s.values = s.values[:0]
	for left := n; left > 0; {
		b, err := s.chunk(left)
		if err != nil {
			return Example{}, s.readError(err, s.record)
		}
		for i := 0; i < len(b); i += 4 {
			s.indices = append(s.indices, binary.LittleEndian.Uint32(b[i:]))
		}
		left -= len(b) / 4
	}
	for left := n; left > 0; {
		b, err := s.chunk(left)
		if err != nil {
			return Example{}, s.readError(err, s.record)
		}
		for i := 0; i < len(b); i += 4 {
			s.values = append(s.values, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
		}
		left -= len(b) / 4
	}

	return Example{Label: label, Indices: s.indices, Values: s.values}, nil
}

// chunk reads up to readChunk bytes of the next words of a record payload
// with at most words 32-bit words remaining.
func (s *binaryScanner) chunk(words int) ([]byte, error) {
	if s.buf == nil {
		s.buf = make([]byte, readChunk)
	}
	b := s.buf[:min(4*words, readChunk)]
	if _, err := io.ReadFull(s.br, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *binaryScanner) readError(err error, record int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParseError{Line: record, Msg: "truncated record"}
	}
	return fmt.Errorf("dataset: read %s: %w", s.src.Name(), err)
}

func (s *binaryScanner) Close() error {
	if s.rc == nil {
		return nil
	}
	rc := s.rc
	s.rc, s.br = nil, nil
	return rc.Close()
}

// BinaryWriter writes examples in the binary record format.
type BinaryWriter struct {
	w       *bufio.Writer
	started bool
	buf     []byte
}

// NewBinaryWriter returns a writer that emits the header before the first record.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{w: bufio.NewWriterSize(w, 1<<20)}
}

func (b *BinaryWriter) header() error {
	if b.started {
		return nil
	}
	b.started = true
	if _, err := b.w.Write(BinaryMagic[:]); err != nil {
		return err
	}
	return b.w.WriteByte(BinaryVersion)
}

// Write appends one record.
func (b *BinaryWriter) Write(ex Example) error {
	if len(ex.Indices) != len(ex.Values) {
		return fmt.Errorf("dataset: example has %d indices but %d values", len(ex.Indices), len(ex.Values))
	}
	if err := b.header(); err != nil {
		return err
	}

	buf := b.buf[:0]
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(ex.Label))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ex.Indices))) //nolint:gosec // bounded by maxRecordNNZ on read
	for _, idx := range ex.Indices {
		buf = binary.LittleEndian.AppendUint32(buf, idx)
	}
	for _, v := range ex.Values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	b.buf = buf
	_, err := b.w.Write(buf)
	return err
}

// Flush writes the header (for an empty stream) and any buffered records.
func (b *BinaryWriter) Flush() error {
	if err := b.header(); err != nil {
		return err
	}
	return b.w.Flush()
}
