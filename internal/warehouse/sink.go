// Package warehouse batches records, applies datetime normalization, and
// writes them to an analytical table sink.
package warehouse

import (
	"context"

	"github.com/loadstone/loadstone/pkg/types"
)

// TableSink abstracts the destination warehouse table.
// Implementations must either support concurrent submissions or
// serialize internally.
type TableSink interface {
	// EnsureTable creates the destination table if it does not exist.
	// Idempotent: succeeds if the table is already present.
	EnsureTable(ctx context.Context, schema types.Schema) error

	// WriteBatch submits all rows as one bulk append operation and
	// blocks until the sink confirms. There is no partial success:
	// the batch lands entirely or the call returns an error.
	WriteBatch(ctx context.Context, rows []types.Record) error
}
