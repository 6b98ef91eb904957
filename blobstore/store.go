package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
// The value is os.ErrNotExist so local and remote misses look the same.
var ErrNotFound = os.ErrNotExist

// Store opens immutable blobs by name.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at off. It returns io.EOF when fewer
	// bytes are available.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange streams length bytes starting at off. The range is clipped to
	// the blob size.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// Reader streams a whole blob.
func Reader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	return b.ReadRange(ctx, 0, b.Size())
}

// bytesBlob serves a blob held in memory.
type bytesBlob struct {
	data    []byte
	release func() error
}

func (b *bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	size := int64(len(b.data))
	if off < 0 || off > size {
		off = size
	}
	end := off + length
	if end > size || length < 0 {
		end = size
	}
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

func (b *bytesBlob) Size() int64 { return int64(len(b.data)) }

func (b *bytesBlob) Close() error {
	if b.release == nil {
		return nil
	}
	release := b.release
	b.release = nil
	return release()
}

// NewBytesBlob wraps data as a Blob. Close is a no-op.
func NewBytesBlob(data []byte) Blob {
	return &bytesBlob{data: data}
}
