package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spx-studio/internal/metrics"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

// getPathFromKey shards blobs by the first characters of the key so no single
// directory grows too large.
func (ls *LocalStorage) getPathFromKey(key string) string {
	shards := make([]string, 0, 3)
	for i := 0; i < 2 && i < len(key); i++ {
		shards = append(shards, key[i:i+1])
	}
	shards = append(shards, key)
	return filepath.Join(ls.basePath, filepath.Join(shards...))
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

func (ls *LocalStorage) Put(ctx context.Context, key string, data io.Reader, size int64) error {
	defer observeBlob("local", "put")()

	if err := validKey(key); err != nil {
		return err
	}
	filePath := ls.getPathFromKey(key)
	dir := filepath.Dir(filePath)

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: data})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if size >= 0 && written != size {
		return fmt.Errorf("short write for %s: expected %d bytes, got %d", key, size, written)
	}

	return os.Rename(tmp.Name(), filePath)
}

func (ls *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	defer observeBlob("local", "get")()

	if err := validKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(ls.getPathFromKey(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Delete(ctx context.Context, key string) error {
	defer observeBlob("local", "delete")()

	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(ls.getPathFromKey(key))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

func observeBlob(backend, operation string) func() {
	start := time.Now()
	return func() {
		metrics.RecordBlobOperation(backend, operation, time.Since(start))
	}
}
