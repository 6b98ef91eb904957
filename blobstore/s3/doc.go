// Package s3 implements blobstore.Store for Amazon S3.
//
// Blobs are read with ranged GetObject calls, so a dataset is streamed rather
// than downloaded. A loader makes one full pass per NUMA node; for small and
// medium datasets WithPrefetch downloads the object once, in parallel parts,
// and serves every later pass from memory.
//
//	store, err := s3.New(ctx, "datasets", s3.WithPrefix("rcv1/"), s3.WithPrefetch())
//	blob, err := store.Open(ctx, "train.bin.zst")
package s3
