// Package storage moves pipeline inputs and outputs through S3-compatible
// object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// Download copies at most maxBytes of bucket/key into w. An empty bucket
	// means the configured one.
	Download(ctx context.Context, bucket, key string, w io.Writer, maxBytes int64) (int64, error)
}

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

type s3Storage struct {
	client     *minio.Client
	bucketName string
}

// NewS3 connects to the endpoint and creates the bucket if it is missing.
func NewS3(ctx context.Context, cfg Config) (Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &s3Storage{client: client, bucketName: cfg.Bucket}, nil
}

func (s *s3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *s3Storage) Download(ctx context.Context, bucket, key string, w io.Writer, maxBytes int64) (int64, error) {
	if bucket == "" {
		bucket = s.bucketName
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer obj.Close()

	st, err := obj.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}
	if maxBytes > 0 && st.Size > maxBytes {
		return 0, fmt.Errorf("object too large: %d bytes (max %d)", st.Size, maxBytes)
	}

	n, err := io.Copy(w, io.LimitReader(obj, st.Size))
	if err != nil {
		return n, fmt.Errorf("failed to read object data: %w", err)
	}
	return n, nil
}

// ResultKey names the combined artifact for an input file: the input's base
// name with a .json extension under prefix.
func ResultKey(prefix, inputPath string) string {
	base := path.Base(strings.ReplaceAll(inputPath, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "document"
	}
	return path.Join(strings.Trim(prefix, "/"), stem+".json")
}
