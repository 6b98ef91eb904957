// Package resource governs the memory and IO a dataset load may consume.
//
// A Controller provides three limits:
//
//   - Memory: a hard budget for node-local partitions (non-blocking, fail-fast)
//   - Concurrency: how many per-node load passes may run at the same time
//   - IO: a token bucket on bytes read from dataset sources
//
// Loading replicates the whole dataset once per NUMA node, so the memory
// budget is charged N times for an N-node machine:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   32 << 30,
//	    IOLimitBytesPerSec: 200 << 20,
//	})
//
//	if err := rc.AcquireMemory(partitionBytes); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(partitionBytes)
//
//	r := resource.NewRateLimitedReader(ctx, src, rc)
//
// All methods are safe for concurrent use, and all of them treat a nil
// *Controller as "no limits".
package resource
