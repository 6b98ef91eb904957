// Package mem provides cache-line aligned heap allocation.
//
// Replica weight vectors and partition columns are carved out of these
// buffers when no node-bound mapping is available, so that two replicas never
// share a cache line.
package mem
