package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hogwild/blobstore"
	miniostore "github.com/hupe1980/hogwild/blobstore/minio"
	s3store "github.com/hupe1980/hogwild/blobstore/s3"
	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/resource"
)

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("s3-region", "", "region for s3:// sources (default from the AWS config)")
	f.Bool("s3-prefetch", false, "download s3:// objects in parallel parts before loading")
	f.String("minio-access-key", "", "access key for minio:// sources")
	f.String("minio-secret-key", "", "secret key for minio:// sources")
	f.Bool("minio-tls", false, "use HTTPS for minio:// sources")
}

// splitLocation splits a dataset location into scheme, host and object path.
// Anything that is not an s3:// or minio:// URL is a local path.
func splitLocation(location string) (scheme, host, path string) {
	u, err := url.Parse(location)
	if err != nil || (u.Scheme != "s3" && u.Scheme != "minio") {
		return "", "", location
	}
	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/")
}

// openSource resolves a dataset location to a Source.
func (a *app) openSource(ctx context.Context, location string, rc *resource.Controller) (*dataset.Source, error) {
	scheme, host, path := splitLocation(location)
	opts := []dataset.SourceOption{dataset.WithResources(rc)}

	switch scheme {
	case "s3":
		if host == "" || path == "" {
			return nil, fmt.Errorf("invalid S3 location %q (want s3://bucket/key)", location)
		}
		var s3opts []s3store.Option
		if region := a.v.GetString("s3-region"); region != "" {
			s3opts = append(s3opts, s3store.WithRegion(region))
		}
		if a.v.GetBool("s3-prefetch") {
			s3opts = append(s3opts, s3store.WithPrefetch())
		}
		store, err := s3store.New(ctx, host, s3opts...)
		if err != nil {
			return nil, fmt.Errorf("s3 bucket %s: %w", host, err)
		}
		return dataset.NewSource(store, path, opts...), nil

	case "minio":
		bucket, key, ok := strings.Cut(path, "/")
		if host == "" || !ok || key == "" {
			return nil, fmt.Errorf("invalid MinIO location %q (want minio://endpoint/bucket/key)", location)
		}
		var mopts []miniostore.Option
		if access := a.v.GetString("minio-access-key"); access != "" {
			mopts = append(mopts, miniostore.WithCredentials(access, a.v.GetString("minio-secret-key")))
		}
		if a.v.GetBool("minio-tls") {
			mopts = append(mopts, miniostore.WithTLS())
		}
		store, err := miniostore.New(host, bucket, mopts...)
		if err != nil {
			return nil, fmt.Errorf("minio bucket %s: %w", bucket, err)
		}
		return dataset.NewSource(store, key, opts...), nil

	default:
		return dataset.NewSource(blobstore.NewLocalStore(""), path, opts...), nil
	}
}
