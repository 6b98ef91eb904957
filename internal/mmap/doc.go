// Package mmap provides memory mappings for dataset files and node-local
// off-heap buffers.
//
// # File Mappings
//
// Open maps a dataset file read-only so a loader can make several full passes
// over it without copying through kernel buffers:
//
//	m, err := mmap.Open("train.tsv")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//
// # Anonymous Mappings
//
// MapAnon creates a private read-write mapping outside the Go heap. Pages are
// not backed until first written, which makes the thread that first touches a
// page decide its NUMA placement. Bind pins the pages of a mapping to one node
// with mbind(2) so placement no longer depends on first touch.
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers must
// ensure no goroutine touches Bytes() after Close returns.
package mmap
