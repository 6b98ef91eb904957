package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/hogwild/blobstore"
	"github.com/hupe1980/hogwild/resource"
)

// Compression identifies a stream compression.
type Compression int

const (
	// CompressionNone stores records as is.
	CompressionNone Compression = iota
	// CompressionZstd is Zstandard (.zst).
	CompressionZstd
	// CompressionGzip is gzip (.gz).
	CompressionGzip
	// CompressionLZ4 is the LZ4 frame format (.lz4).
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionGzip:
		return "gzip"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// Ext returns the file suffix of the compression, including the dot.
func (c Compression) Ext() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionGzip:
		return ".gz"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("dataset: unknown compression %q", s)
	}
}

// CompressionFromName infers the compression from a file name suffix.
func CompressionFromName(name string) Compression {
	lower := strings.ToLower(name)
	for _, c := range []Compression{CompressionZstd, CompressionGzip, CompressionLZ4} {
		if strings.HasSuffix(lower, c.Ext()) {
			return c
		}
	}
	return CompressionNone
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithCompression overrides the compression inferred from the name.
func WithCompression(c Compression) SourceOption {
	return func(s *Source) { s.compression = c }
}

// WithResources throttles reads through the controller's IO limit.
func WithResources(rc *resource.Controller) SourceOption {
	return func(s *Source) { s.rc = rc }
}

// Source is a named, reopenable dataset stream.
type Source struct {
	store       blobstore.Store
	name        string
	compression Compression
	rc          *resource.Controller
}

// NewSource returns a Source for the blob name in store.
func NewSource(store blobstore.Store, name string, opts ...SourceOption) *Source {
	s := &Source{
		store:       store,
		name:        name,
		compression: CompressionFromName(name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the blob name.
func (s *Source) Name() string { return s.name }

// Compression returns the compression applied when reading.
func (s *Source) Compression() Compression { return s.compression }

// Open returns the decompressed contents of the blob.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	blob, err := s.store.Open(ctx, s.name)
	if err != nil {
		return nil, err
	}
	raw, err := blobstore.Reader(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	sr := &sourceReader{closers: []io.Closer{raw, blob}}
	var r io.Reader = raw
	if s.rc != nil {
		r = resource.NewRateLimitedReader(ctx, r, s.rc)
	}

	switch s.compression {
	case CompressionNone:
		sr.Reader = r
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			_ = sr.Close()
			return nil, fmt.Errorf("dataset: open zstd stream %s: %w", s.name, err)
		}
		sr.Reader = zr
		sr.closers = append([]io.Closer{zr.IOReadCloser()}, sr.closers...)
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			_ = sr.Close()
			return nil, fmt.Errorf("dataset: open gzip stream %s: %w", s.name, err)
		}
		sr.Reader = gr
		sr.closers = append([]io.Closer{gr}, sr.closers...)
	case CompressionLZ4:
		sr.Reader = lz4.NewReader(r)
	default:
		_ = sr.Close()
		return nil, fmt.Errorf("dataset: unknown compression %v", s.compression)
	}
	return sr, nil
}

type sourceReader struct {
	io.Reader
	closers []io.Closer
}

func (r *sourceReader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewCompressWriter wraps w so that written bytes are compressed with c.
// Closing the returned writer flushes the compressor but does not close w.
func NewCompressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("dataset: unknown compression %v", c)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
