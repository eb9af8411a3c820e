package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of path-style requests S3Storage makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	if len(parts) == 1 || parts[1] == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case http.MethodPut:
			f.buckets[bucket] = true
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	key := bucket + "/" + parts[1]
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	backend, err := NewS3Storage(context.Background(), S3Options{
		Endpoint:  server.URL,
		Bucket:    "blobs",
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return backend, fake
}

func TestS3Storage_CreatesBucket(t *testing.T) {
	_, fake := newTestS3(t)
	require.True(t, fake.buckets["blobs"])
}

func TestS3Storage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	backend, fake := newTestS3(t)

	content := "<h1>uploaded</h1>"
	require.NoError(t, backend.Put(ctx, "item_1", strings.NewReader(content), int64(len(content))))
	require.Equal(t, content, string(fake.objects["blobs/item_1"]))

	body, err := backend.Get(ctx, "item_1")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	body.Close()
	require.Equal(t, content, string(data))

	require.NoError(t, backend.Delete(ctx, "item_1"))
	require.NotContains(t, fake.objects, "blobs/item_1")

	_, err = backend.Get(ctx, "item_1")
	require.ErrorIs(t, err, ErrNotFound)
}
