// Package storage keeps the bytes of uploaded files. Rows in storage_items
// describe the files; a Backend holds their content keyed by item id.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"spx-studio/internal/config"
)

var ErrNotFound = errors.New("blob not found")

type Backend interface {
	// Put stores size bytes read from r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case "", "local":
		return NewLocalStorage(cfg.Storage.Path)
	case "s3":
		return NewS3Storage(ctx, S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
