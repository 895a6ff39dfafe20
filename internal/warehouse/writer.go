package warehouse

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/loadstone/loadstone/internal/errors"
	"github.com/loadstone/loadstone/internal/timeconv"
	"github.com/loadstone/loadstone/pkg/types"
)

// Writer normalizes record datetime fields and writes batches to a sink.
// It never retries internally; the caller decides retry/dead-letter policy.
type Writer struct {
	sink           TableSink
	conv           *timeconv.Converter
	datetimeFields map[string]struct{}
	log            zerolog.Logger
}

// NewWriter creates a Writer for the given sink. datetimeFields is the
// set of field names to normalize, derived once from the schema.
func NewWriter(sink TableSink, conv *timeconv.Converter, datetimeFields map[string]struct{}, log zerolog.Logger) *Writer {
	return &Writer{
		sink:           sink,
		conv:           conv,
		datetimeFields: datetimeFields,
		log:            log,
	}
}

// EnsureTable creates the destination table if it does not exist.
func (w *Writer) EnsureTable(ctx context.Context, schema types.Schema) error {
	if err := w.sink.EnsureTable(ctx, schema); err != nil {
		w.log.Error().Err(err).Msg("failed to ensure destination table")
		return errors.NewWriteError("ensure table failed", err)
	}
	w.log.Info().Msg("destination table is ready")
	return nil
}

// WriteBatch normalizes every record's datetime fields in place and
// submits the whole batch as one bulk append. Inputs may be mutated;
// callers must not reuse them. An empty batch is a no-op.
func (w *Writer) WriteBatch(ctx context.Context, records []types.Record) error {
	if len(records) == 0 {
		w.log.Warn().Msg("no records to write")
		return nil
	}

	// The batch path trades the caller's originals for memory: large
	// batches are normalized without a second copy of every record.
	for _, rec := range records {
		w.conv.NormalizeInPlace(rec, w.datetimeFields)
	}

	if err := w.sink.WriteBatch(ctx, records); err != nil {
		w.log.Error().Err(err).Int("records", len(records)).
			Msg("failed to write batch to sink")
		return errors.NewWriteError("batch write failed", err)
	}

	w.log.Info().Int("records", len(records)).Msg("batch written")
	return nil
}
