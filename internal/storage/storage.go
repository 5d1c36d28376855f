package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/muandane/special-stack/signet/internal/config"
)

// ErrObjectNotFound is returned when the object to sign does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Store is the object-storage collaborator: it mints signed GET URLs and
// manages the objects behind them.
type Store interface {
	SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
	Put(ctx context.Context, bucket, objectPath string, body io.Reader, size int64, contentType string) error
	// Remove deletes every path and stops at the first failure.
	Remove(ctx context.Context, bucket string, objectPaths ...string) error
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioStore(cfg)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
