// Package storage keeps the bytes of uploaded reports, addressed by the
// relative path recorded on each file row.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/config"
)

var ErrNotFound = errors.New("stored object not found")

type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New picks the backend named by the configuration.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocalStorage(cfg.DataDir)
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
			UseSSL:          cfg.S3UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
