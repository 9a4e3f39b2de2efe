package data

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBlobRepo stores raw uploads and prepared STL artifacts in an
// S3-compatible object store.
type MinioBlobRepo struct {
	client *minio.Client
	bucket string
}

// MinioConfig holds the connection settings for the blob store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioBlobRepo connects to the object store and ensures the bucket
// exists.
func NewMinioBlobRepo(ctx context.Context, cfg MinioConfig) (*MinioBlobRepo, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioBlobRepo{client: client, bucket: cfg.Bucket}, nil
}

// Fetch reads the full object at path.
func (r *MinioBlobRepo) Fetch(ctx context.Context, path string) ([]byte, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	defer obj.Close() //nolint:errcheck // read errors surface through ReadAll

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}

// Store writes data to path with the given content type.
func (r *MinioBlobRepo) Store(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, r.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

// Remove deletes the object at path. Removing a missing object is not an
// error.
func (r *MinioBlobRepo) Remove(ctx context.Context, path string) error {
	if err := r.client.RemoveObject(ctx, r.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", path, err)
	}
	return nil
}
