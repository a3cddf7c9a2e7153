package storage

import (
	"context"
	"fmt"

	appconfig "summitpass.id/app/internal/config"
)

// New builds the configured store. Driver "none" returns nil: archiving is off.
func New(ctx context.Context, cfg appconfig.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir), nil
	case "s3":
		if cfg.S3Region == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage: S3_REGION and S3_BUCKET are required for the s3 driver")
		}
		return NewS3(ctx, S3Config{
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			PublicBaseURL: cfg.S3PublicBase,
		})
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("storage: unknown STORAGE_DRIVER %q", cfg.Driver)
	}
}
