package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrObjectNotFound indicates the requested object does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectTooLarge indicates the object's listed size exceeds the allowed cap.
var ErrObjectTooLarge = errors.New("object exceeds maximum allowed size")

// ObjectStore provides access to the document buckets.
//
// Fetch stats the object before downloading: a spoofed or oversized upload is
// rejected on metadata alone, without spending bandwidth on its bytes.
type ObjectStore interface {
	Fetch(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// Config contains connection parameters for the MinIO-compatible store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Buckets   []string
}

// MinioStore implements ObjectStore against MinIO/S3 compatible storage.
type MinioStore struct {
	client *minio.Client
	logger zerolog.Logger
}

// NewMinioStore connects to MinIO and ensures the configured buckets exist.
func NewMinioStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	for _, bucket := range cfg.Buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}

	return &MinioStore{
		client: client,
		logger: logger.With().Str("component", "object_store").Logger(),
	}, nil
}

// Fetch downloads an object after validating its existence and size metadata.
func (m *MinioStore) Fetch(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	if maxBytes > 0 && info.Size > maxBytes {
		return nil, ErrObjectTooLarge
	}

	object, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	return data, nil
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	return nil
}

// Delete removes an object. Missing objects are treated as already deleted.
func (m *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}
