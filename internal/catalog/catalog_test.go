package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	pipeerrors "github.com/loadstone/loadstone/internal/errors"
	"github.com/loadstone/loadstone/pkg/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "table_schema.json", `[
		{"name": "id", "type": "STRING", "mode": "REQUIRED"},
		{"name": "created_at", "type": "TIMESTAMP", "mode": "NULLABLE"},
		{"name": "amount", "type": "FLOAT", "mode": "NULLABLE"}
	]`)

	schema, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(schema.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(schema.Fields))
	}
	if schema.Fields[0].Name != "id" || schema.Fields[0].Type != types.FieldTypeString {
		t.Errorf("unexpected first field: %+v", schema.Fields[0])
	}

	dt := schema.DatetimeFields()
	if _, ok := dt["created_at"]; !ok || len(dt) != 1 {
		t.Errorf("unexpected datetime field set: %v", dt)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "table_schema.yaml", `
- name: id
  type: STRING
  mode: REQUIRED
- name: updated_at
  type: DATETIME
  mode: NULLABLE
`)

	schema, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(schema.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(schema.Fields))
	}
	if schema.Fields[1].Type != types.FieldTypeDatetime {
		t.Errorf("unexpected type: %v", schema.Fields[1].Type)
	}
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		code string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") },
			code: pipeerrors.CodeSchemaSource,
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string { return writeFile(t, "bad.json", `{not json`) },
			code: pipeerrors.CodeSchemaInvalid,
		},
		{
			name: "field missing mode",
			path: func(t *testing.T) string {
				return writeFile(t, "partial.json", `[{"name": "id", "type": "STRING"}]`)
			},
			code: pipeerrors.CodeSchemaInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *pipeerrors.PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PipelineError, got %T", err)
			}
			if pe.Category != pipeerrors.ErrCategorySchema || pe.Code != tt.code {
				t.Errorf("got [%s:%s], want [SCHEMA:%s]", pe.Category, pe.Code, tt.code)
			}
		})
	}
}
