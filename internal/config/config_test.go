package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.ProjectID = "proj-1"
	cfg.SubscriptionID = "sub-1"
	cfg.Storage.Bucket = "bucket-1"
	cfg.Warehouse.DatasetID = "ds"
	cfg.Warehouse.TableID = "events"
	return cfg
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no project", func(c *Config) { c.ProjectID = "" }},
		{"no subscription", func(c *Config) { c.SubscriptionID = "" }},
		{"no bucket", func(c *Config) { c.Storage.Bucket = "" }},
		{"no dataset", func(c *Config) { c.Warehouse.DatasetID = "" }},
		{"no table", func(c *Config) { c.Warehouse.TableID = "" }},
		{"no schema file", func(c *Config) { c.SchemaFile = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateNumericAndZone(t *testing.T) {
	cfg := validConfig()
	cfg.MaxMessages = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive MAX_MESSAGES")
	}

	cfg = validConfig()
	cfg.AckDeadline = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive ack deadline")
	}

	cfg = validConfig()
	cfg.Storage.MaxObjectBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive max object size")
	}

	cfg = validConfig()
	cfg.TargetTimezone = "Nowhere/Atlantis"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unrecognized timezone")
	}
}

func TestValidateBackendSelection(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown storage backend")
	}

	cfg = validConfig()
	cfg.Storage.Backend = StorageS3
	if err := cfg.Validate(); err == nil {
		t.Error("expected error: s3 backend without S3_BUCKET")
	}
	cfg.Storage.S3Bucket = "lake"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid s3 config, got %v", err)
	}

	cfg = validConfig()
	cfg.Warehouse.Backend = SinkSQLite
	if err := cfg.Validate(); err == nil {
		t.Error("expected error: sqlite backend without SQLITE_PATH")
	}
	cfg.Warehouse.SQLitePath = "/tmp/loadstone.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid sqlite config, got %v", err)
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	t.Setenv("GCP_PROJECT_ID", "env-proj")
	t.Setenv("PUBSUB_SUBSCRIPTION_ID", "env-sub")
	t.Setenv("GCS_BUCKET_NAME", "env-bucket")
	t.Setenv("BQ_DATASET_ID", "env-ds")
	t.Setenv("BQ_TABLE_ID", "env-table")
	t.Setenv("MAX_MESSAGES", "25")
	t.Setenv("ACK_DEADLINE_SECONDS", "90")
	t.Setenv("TARGET_TIMEZONE", "UTC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ProjectID != "env-proj" || cfg.SubscriptionID != "env-sub" {
		t.Errorf("identity not applied: %+v", cfg)
	}
	if cfg.MaxMessages != 25 {
		t.Errorf("MaxMessages = %d, want 25", cfg.MaxMessages)
	}
	if cfg.AckDeadline != 90*time.Second {
		t.Errorf("AckDeadline = %v, want 90s", cfg.AckDeadline)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected env config to validate, got %v", err)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestLoadRejectsBadNumeric(t *testing.T) {
	t.Setenv("MAX_MESSAGES", "lots")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-integer MAX_MESSAGES")
	}
}
