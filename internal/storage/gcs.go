package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStorage implements BlobStore for Google Cloud Storage.
type GCSStorage struct {
	client   *gcs.Client
	bucket   string
	maxBytes int64
}

// NewGCSStorage creates a new GCS blob store. maxBytes bounds the size
// of fetchable objects; larger objects are rejected before download.
func NewGCSStorage(ctx context.Context, bucket string, maxBytes int64) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{client: client, bucket: bucket, maxBytes: maxBytes}, nil
}

// Fetch downloads an object's content by key.
func (g *GCSStorage) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj := g.client.Bucket(g.bucket).Object(key)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if attrs.Size > g.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrObjectTooLarge, key, attrs.Size, g.maxBytes)
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, g.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, fmt.Errorf("%w: %s, limit %d", ErrObjectTooLarge, key, g.maxBytes)
	}

	return maybeDecompress(key, data)
}

// List returns all object keys under the given prefix.
func (g *GCSStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Close releases the underlying client.
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
