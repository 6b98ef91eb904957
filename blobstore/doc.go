// Package blobstore provides read access to dataset files wherever they live.
//
// A Store opens named, immutable blobs. Training datasets are read front to
// back once per NUMA node, so the interface is built around ReadRange, which
// streams a byte range, with ReadAt available for header probes.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, memory-mapped
//   - MemoryStore: in-memory blobs for tests
//   - s3.Store: Amazon S3 with ranged GETs and optional whole-object prefetch
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, length) (io.ReadCloser, error)
//	    Size() int64
//	    Close() error
//	}
//
// Implementations must be safe for concurrent use.
package blobstore
