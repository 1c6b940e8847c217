package storage

import (
	"context"
	"fmt"

	"github.com/platinummonkey/buildpro/pkg/config"
)

// NewBlobStore builds the backend selected by cfg.Backend
func NewBlobStore(ctx context.Context, cfg config.StorageConfig, isProduction bool) (BlobStore, error) {
	switch cfg.Backend {
	case config.StorageBackendS3:
		return NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			CreateBucket: !isProduction,
		})
	case config.StorageBackendFilesystem:
		return NewFileSystemStore(cfg.FilesystemRoot)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
