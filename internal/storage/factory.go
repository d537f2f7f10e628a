package storage

import (
	"context"
	"fmt"

	"github.com/dev-tams/sqlbackup/internal/config"
	"github.com/dev-tams/sqlbackup/internal/storage/local"
	s3store "github.com/dev-tams/sqlbackup/internal/storage/s3"
)

// FromConfig builds the configured sink. It returns a nil Sink when no
// storage is configured.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (Sink, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil

	case "local":
		if cfg.Local.Path == "" {
			return nil, fmt.Errorf("storage local: local.path is required")
		}
		return local.New("local", cfg.Local.Path), nil

	case "s3":
		s, err := s3store.New(ctx, s3store.Options{
			Name:      "s3",
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Prefix:    cfg.S3.Prefix,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("storage s3: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("storage: unknown type %q", cfg.Type)
	}
}
