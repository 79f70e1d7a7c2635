package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrNotFound is returned when no object exists for a key or prefix.
var ErrNotFound = errors.New("object not found")

// Store is the object-storage capability consumed by the snapshot
// cache. This interface enables mocking and testing without a bucket.
type Store interface {
	// Put writes data under the given object key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object stored under the given key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Find returns the key of the first object matching the prefix.
	Find(ctx context.Context, prefix string) (string, error)
}

// GCS is the concrete Store backed by Google Cloud Storage.
// It assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a GCS store over the given bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Put writes data under the given object key.
func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", key, err)
	}
	return nil
}

// Get reads the object stored under the given key.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Find returns the key of the first object matching the prefix.
func (g *GCS) Find(ctx context.Context, prefix string) (string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	attrs, err := it.Next()
	if err == iterator.Done {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("list objects with prefix %s: %w", prefix, err)
	}
	return attrs.Name, nil
}
