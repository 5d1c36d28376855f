package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/muandane/special-stack/signet/internal/config"
)

// S3Store signs and manages objects through the AWS SDK. Credentials come
// from the shared AWS chain unless static keys are configured.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
}

func NewS3Store(ctx context.Context, cfg *config.StorageConfig) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			scheme := "http://"
			if cfg.UseSSL {
				scheme = "https://"
			}
			o.BaseEndpoint = aws.String(scheme + cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, presign: s3.NewPresignClient(client)}, nil
}

func (s *S3Store) SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return "", fmt.Errorf("%s/%s: %w", bucket, objectPath, ErrObjectNotFound)
		}
		return "", fmt.Errorf("head %s/%s: %w", bucket, objectPath, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, objectPath, err)
	}
	return req.URL, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectPath),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=60"),
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *S3Store) Remove(ctx context.Context, bucket string, objectPaths ...string) error {
	for _, p := range objectPaths {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(p),
		})
		if err != nil {
			return fmt.Errorf("failed to remove object %s/%s: %w", bucket, p, err)
		}
	}
	return nil
}
