package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/loadstone/loadstone/pkg/types"
)

// BigQuerySink implements TableSink for BigQuery. Batches are submitted
// as a single load job (not per-row streaming inserts) with append
// disposition, for cost and throughput.
type BigQuerySink struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQuerySink creates a sink for project.dataset.table.
func NewBigQuerySink(ctx context.Context, projectID, datasetID, tableID string) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &BigQuerySink{client: client, dataset: datasetID, table: tableID}, nil
}

// EnsureTable creates the table if it does not exist. An existing table
// passes unchanged: this is an existence check, not schema reconciliation.
func (s *BigQuerySink) EnsureTable(ctx context.Context, schema types.Schema) error {
	tbl := s.client.Dataset(s.dataset).Table(s.table)

	if _, err := tbl.Metadata(ctx); err == nil {
		return nil
	} else if !isHTTPStatus(err, 404) {
		return fmt.Errorf("failed to read table metadata: %w", err)
	}

	meta := &bigquery.TableMetadata{Schema: toBigQuerySchema(schema)}
	if err := tbl.Create(ctx, meta); err != nil {
		// Concurrent creation by another replica.
		if isHTTPStatus(err, 409) {
			return nil
		}
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// WriteBatch serializes rows to NDJSON and runs one load job, blocking
// until BigQuery confirms the write or reports failure.
func (s *BigQuerySink) WriteBatch(ctx context.Context, rows []types.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}

	source := bigquery.NewReaderSource(bytes.NewReader(buf.Bytes()))
	source.SourceFormat = bigquery.JSON

	loader := s.client.Dataset(s.dataset).Table(s.table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *BigQuerySink) Close() error {
	return s.client.Close()
}

func toBigQuerySchema(schema types.Schema) bigquery.Schema {
	out := make(bigquery.Schema, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		out = append(out, &bigquery.FieldSchema{
			Name:     f.Name,
			Type:     toBigQueryType(f.Type),
			Required: f.Mode == types.FieldModeRequired,
			Repeated: f.Mode == types.FieldModeRepeated,
		})
	}
	return out
}

func toBigQueryType(t types.FieldType) bigquery.FieldType {
	switch t {
	case types.FieldTypeString:
		return bigquery.StringFieldType
	case types.FieldTypeInteger:
		return bigquery.IntegerFieldType
	case types.FieldTypeFloat:
		return bigquery.FloatFieldType
	case types.FieldTypeBoolean:
		return bigquery.BooleanFieldType
	case types.FieldTypeDatetime:
		return bigquery.DateTimeFieldType
	case types.FieldTypeTimestamp:
		// Normalized values are zone-naive; the destination column
		// stores local wall-clock time.
		return bigquery.DateTimeFieldType
	case types.FieldTypeRecord:
		return bigquery.RecordFieldType
	default:
		return bigquery.StringFieldType
	}
}

func isHTTPStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
