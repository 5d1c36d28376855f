package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/muandane/special-stack/signet/internal/config"
)

type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(cfg *config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	// Presigning is offline; stat first so a missing object fails here
	// instead of at render time.
	if _, err := s.client.StatObject(ctx, bucket, objectPath, minio.StatObjectOptions{}); err != nil {
		return "", minioError(bucket, objectPath, err)
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, objectPath, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, objectPath, err)
	}
	return u.String(), nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, objectPath, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "max-age=60",
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *MinioStore) Remove(ctx context.Context, bucket string, objectPaths ...string) error {
	for _, p := range objectPaths {
		if err := s.client.RemoveObject(ctx, bucket, p, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove object %s/%s: %w", bucket, p, err)
		}
	}
	return nil
}

func minioError(bucket, objectPath string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s/%s: %w", bucket, objectPath, ErrObjectNotFound)
	}
	return fmt.Errorf("stat %s/%s: %w", bucket, objectPath, err)
}
