package blobstore

import (
	"context"
	"fmt"

	"webcarros-backend/internal/config"
)

// Store is implemented by every backend in this package.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SupabaseStore)(nil)
	_ Store = (*S3Store)(nil)
	_ Store = (*GCSStore)(nil)
)

// New selects the backend named by BLOB_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case "", "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "supabase":
		return &SupabaseStore{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey, Bucket: cfg.SupabaseBucket}, nil
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}
