// Package config provides unified configuration for the Loadstone service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/loadstone/loadstone/internal/errors"
)

// Mode represents the consumption mode to run.
type Mode string

const (
	// ModeListen runs the blocking streaming subscriber with callback
	// delivery and per-message ack/nack.
	ModeListen Mode = "listen"

	// ModePull performs a single non-blocking pull of up to MaxMessages,
	// processes them sequentially, and acknowledges the successful subset
	// in one batched call.
	ModePull Mode = "pull"
)

// Storage backends.
const (
	StorageGCS   = "gcs"
	StorageS3    = "s3"
	StorageLocal = "local"
)

// Sink backends.
const (
	SinkBigQuery = "bigquery"
	SinkSQLite   = "sqlite"
)

// Config holds the immutable service configuration. It is constructed once
// at startup and passed explicitly into each component's constructor.
type Config struct {
	// Mode selects listen or pull consumption
	Mode Mode

	// ProjectID is the cloud project identity
	ProjectID string

	// SubscriptionID is the broker subscription to consume
	SubscriptionID string

	// TopicID is the optional topic for the publish tool
	TopicID string

	// DeadLetterTopicID is the optional dead-letter channel; empty means
	// failures are nacked for broker-native retry
	DeadLetterTopicID string

	// Storage selects and configures the blob store backend
	Storage StorageConfig

	// Warehouse selects and configures the table sink
	Warehouse WarehouseConfig

	// SchemaFile is the path to the table schema definition (JSON or YAML)
	SchemaFile string

	// TargetTimezone is the IANA zone datetime fields are normalized into
	TargetTimezone string

	// MaxMessages bounds concurrent outstanding messages (listen mode)
	// and the pull batch size (pull mode)
	MaxMessages int

	// AckDeadline is the broker-level lease duration for one delivery
	AckDeadline time.Duration

	// HTTPAddr is the health/metrics listener address; empty disables it
	HTTPAddr string

	// LogLevel is the zerolog level name (debug, info, warn, error)
	LogLevel string
}

// StorageConfig holds blob store configuration.
type StorageConfig struct {
	// Backend is gcs, s3, or local
	Backend string

	// Bucket is the GCS bucket name (gcs backend)
	Bucket string

	// MaxObjectBytes rejects objects larger than this before download
	MaxObjectBytes int64

	// S3 configuration (s3 backend)
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// LocalPath is the base directory (local backend)
	LocalPath string
}

// WarehouseConfig holds table sink configuration.
type WarehouseConfig struct {
	// Backend is bigquery or sqlite
	Backend string

	// DatasetID and TableID identify the destination table (bigquery)
	DatasetID string
	TableID   string

	// SQLitePath is the database file (sqlite backend)
	SQLitePath string
}

const defaultMaxObjectMB = 100

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mode:           ModeListen,
		SchemaFile:     "table_schema.json",
		TargetTimezone: "Asia/Bangkok",
		MaxMessages:    10,
		AckDeadline:    60 * time.Second,
		HTTPAddr:       ":8080",
		LogLevel:       "info",
		Storage: StorageConfig{
			Backend:        StorageGCS,
			MaxObjectBytes: defaultMaxObjectMB * 1024 * 1024,
		},
		Warehouse: WarehouseConfig{
			Backend: SinkBigQuery,
		},
	}
}

// Load builds the configuration from the environment. If envFile is
// non-empty it is loaded first (missing file is an error); otherwise a
// .env in the working directory is loaded when present.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.NewConfigError(errors.CodeInvalidSetting,
				fmt.Sprintf("cannot load env file %s: %v", envFile, err))
		}
	} else {
		// Best effort: a local .env is optional.
		_ = godotenv.Load()
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MODE"); v != "" {
		c.Mode = Mode(v)
	}
	if v := os.Getenv("GCP_PROJECT_ID"); v != "" {
		c.ProjectID = v
	}
	if v := os.Getenv("PUBSUB_SUBSCRIPTION_ID"); v != "" {
		c.SubscriptionID = v
	}
	if v := os.Getenv("PUBSUB_TOPIC_ID"); v != "" {
		c.TopicID = v
	}
	if v := os.Getenv("DEADLETTER_TOPIC_ID"); v != "" {
		c.DeadLetterTopicID = v
	}
	if v := os.Getenv("GCS_BUCKET_NAME"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.S3Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.S3Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.S3Endpoint = v
	}
	if v := os.Getenv("S3_PATH_STYLE"); v != "" {
		c.Storage.S3PathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("LOCAL_STORAGE_PATH"); v != "" {
		c.Storage.LocalPath = v
	}
	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.NewConfigError(errors.CodeInvalidSetting, "MAX_FILE_SIZE_MB must be an integer")
		}
		c.Storage.MaxObjectBytes = mb * 1024 * 1024
	}
	if v := os.Getenv("SINK_BACKEND"); v != "" {
		c.Warehouse.Backend = v
	}
	if v := os.Getenv("BQ_DATASET_ID"); v != "" {
		c.Warehouse.DatasetID = v
	}
	if v := os.Getenv("BQ_TABLE_ID"); v != "" {
		c.Warehouse.TableID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Warehouse.SQLitePath = v
	}
	if v := os.Getenv("BQ_SCHEMA_FILE"); v != "" {
		c.SchemaFile = v
	}
	if v := os.Getenv("TARGET_TIMEZONE"); v != "" {
		c.TargetTimezone = v
	}
	if v := os.Getenv("MAX_MESSAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigError(errors.CodeInvalidSetting, "MAX_MESSAGES must be an integer")
		}
		c.MaxMessages = n
	}
	if v := os.Getenv("ACK_DEADLINE_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigError(errors.CodeInvalidSetting, "ACK_DEADLINE_SECONDS must be an integer")
		}
		c.AckDeadline = time.Duration(n) * time.Second
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate fails fast on a configuration the service cannot start with.
func (c *Config) Validate() error {
	if c.Mode != ModeListen && c.Mode != ModePull {
		return errors.NewConfigError(errors.CodeInvalidSetting,
			fmt.Sprintf("MODE must be listen or pull, got %q", c.Mode))
	}

	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "GCP_PROJECT_ID")
	}
	if c.SubscriptionID == "" {
		missing = append(missing, "PUBSUB_SUBSCRIPTION_ID")
	}

	switch c.Storage.Backend {
	case StorageGCS:
		if c.Storage.Bucket == "" {
			missing = append(missing, "GCS_BUCKET_NAME")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
	case StorageLocal:
		if c.Storage.LocalPath == "" {
			missing = append(missing, "LOCAL_STORAGE_PATH")
		}
	default:
		return errors.NewConfigError(errors.CodeInvalidSetting,
			fmt.Sprintf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Warehouse.Backend {
	case SinkBigQuery:
		if c.Warehouse.DatasetID == "" {
			missing = append(missing, "BQ_DATASET_ID")
		}
		if c.Warehouse.TableID == "" {
			missing = append(missing, "BQ_TABLE_ID")
		}
	case SinkSQLite:
		if c.Warehouse.SQLitePath == "" {
			missing = append(missing, "SQLITE_PATH")
		}
		if c.Warehouse.TableID == "" {
			missing = append(missing, "BQ_TABLE_ID")
		}
	default:
		return errors.NewConfigError(errors.CodeInvalidSetting,
			fmt.Sprintf("unknown SINK_BACKEND %q", c.Warehouse.Backend))
	}

	if len(missing) > 0 {
		return errors.NewConfigError(errors.CodeMissingSetting,
			fmt.Sprintf("missing required configuration: %v", missing))
	}

	if c.MaxMessages <= 0 {
		return errors.NewConfigError(errors.CodeInvalidSetting, "MAX_MESSAGES must be positive")
	}
	if c.AckDeadline <= 0 {
		return errors.NewConfigError(errors.CodeInvalidSetting, "ACK_DEADLINE_SECONDS must be positive")
	}
	if c.Storage.MaxObjectBytes <= 0 {
		return errors.NewConfigError(errors.CodeInvalidSetting, "MAX_FILE_SIZE_MB must be positive")
	}
	if c.SchemaFile == "" {
		return errors.NewConfigError(errors.CodeMissingSetting, "BQ_SCHEMA_FILE must not be empty")
	}
	if _, err := time.LoadLocation(c.TargetTimezone); err != nil {
		return errors.NewConfigError(errors.CodeInvalidSetting,
			fmt.Sprintf("unrecognized TARGET_TIMEZONE %q", c.TargetTimezone))
	}

	return nil
}

// Location resolves the configured target timezone. Validate must have
// succeeded before calling this.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TargetTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
