// Package minio implements blobstore.Store for MinIO and S3-compatible
// object storage.
//
//	store, err := minio.New("localhost:9000", "datasets",
//	    minio.WithCredentials("minioadmin", "minioadmin"))
//	blob, err := store.Open(ctx, "rcv1/train.tsv.zst")
package minio
