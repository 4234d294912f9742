package upload

import (
	"context"
	"fmt"

	"github.com/biruktk/LifeTraker/internal/config"
)

// NewObjectStore выбирает бэкенд по STORAGE_PROVIDER.
func NewObjectStore(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case config.StorageProviderGCS:
		return NewGCSStore(ctx, cfg.GCSCredentialsFile, cfg.PublicBaseURL)
	case config.StorageProviderMinio, "":
		return NewMinioStore(MinioConfig{
			Endpoint:      cfg.Endpoint,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Region:        cfg.Region,
			UseSSL:        cfg.UseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
