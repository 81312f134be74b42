package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/rangestream/blobstore"
	miniostore "github.com/hupe1980/rangestream/blobstore/minio"
	s3store "github.com/hupe1980/rangestream/blobstore/s3"
)

// Environment variables holding MinIO credentials.
const (
	envMinioAccessKey = "MINIO_ACCESS_KEY"
	envMinioSecretKey = "MINIO_SECRET_KEY"
)

// openStore resolves a store location.
//
//	/var/lib/rangestream              local directory
//	s3://bucket/prefix                AWS S3, default credential chain
//	minio://host:9000/bucket/prefix   MinIO, credentials from the environment;
//	                                  ?secure=false disables TLS
func openStore(ctx context.Context, location string) (blobstore.BlobStore, error) {
	if !strings.Contains(location, "://") {
		return blobstore.NewLocalStore(location), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse store %q: %w", location, err)
	}

	switch u.Scheme {
	case "file":
		return blobstore.NewLocalStore(u.Path), nil
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3store.NewStore(s3.NewFromConfig(cfg), u.Host, strings.Trim(u.Path, "/")), nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("store %q names no bucket", location)
		}
		secure := true
		if v := u.Query().Get("secure"); v != "" {
			if secure, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("store %q: secure: %w", location, err)
			}
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewStaticV4(os.Getenv(envMinioAccessKey), os.Getenv(envMinioSecretKey), ""),
			Secure: secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, bucket, prefix), nil
	}
	return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
}
