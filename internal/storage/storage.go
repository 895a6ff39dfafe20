// Package storage provides object storage abstractions for fetching
// notification payload blobs.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/golang/snappy"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds size limit")
	ErrFetchFailed    = errors.New("fetch failed")
)

// BlobStore abstracts object storage reads.
// Implementations include GCS, S3, and local filesystem for testing.
// Implementations must tolerate concurrent invocation.
type BlobStore interface {
	// Fetch downloads an object's content by key. Objects larger than
	// the store's configured limit return ErrObjectTooLarge without
	// being downloaded; missing objects return ErrObjectNotFound.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// List returns all object keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// maybeDecompress transparently decodes snappy-compressed payloads for
// objects stored with a .snappy suffix.
func maybeDecompress(key string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(key, ".snappy") {
		return data, nil
	}
	return snappy.Decode(nil, data)
}
