package storage

import (
	"context"
	"fmt"

	"github.com/pageza/kitchen-assistant/backend/config"
)

// New builds the upload store selected by cfg.UploadBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.UploadBackend {
	case "disk", "":
		return NewDiskStore(cfg.UploadFolder)
	case "s3":
		s3Config, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		return NewS3Store(s3Config.Client, s3Config.BucketName), nil
	default:
		return nil, fmt.Errorf("unknown upload backend %q", cfg.UploadBackend)
	}
}
