package types

import "testing"

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{
			name: "valid",
			schema: Schema{Fields: []FieldDescriptor{
				{Name: "id", Type: FieldTypeString, Mode: FieldModeRequired},
				{Name: "created_at", Type: FieldTypeTimestamp, Mode: FieldModeNullable},
			}},
		},
		{
			name:    "empty",
			schema:  Schema{},
			wantErr: true,
		},
		{
			name: "missing name",
			schema: Schema{Fields: []FieldDescriptor{
				{Type: FieldTypeString, Mode: FieldModeNullable},
			}},
			wantErr: true,
		},
		{
			name: "missing type",
			schema: Schema{Fields: []FieldDescriptor{
				{Name: "id", Mode: FieldModeNullable},
			}},
			wantErr: true,
		},
		{
			name: "missing mode",
			schema: Schema{Fields: []FieldDescriptor{
				{Name: "id", Type: FieldTypeString},
			}},
			wantErr: true,
		},
		{
			name: "duplicate name",
			schema: Schema{Fields: []FieldDescriptor{
				{Name: "id", Type: FieldTypeString, Mode: FieldModeNullable},
				{Name: "id", Type: FieldTypeInteger, Mode: FieldModeNullable},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaDatetimeFields(t *testing.T) {
	schema := Schema{Fields: []FieldDescriptor{
		{Name: "id", Type: FieldTypeString, Mode: FieldModeRequired},
		{Name: "created_at", Type: FieldTypeTimestamp, Mode: FieldModeNullable},
		{Name: "updated_at", Type: FieldTypeDatetime, Mode: FieldModeNullable},
		{Name: "amount", Type: FieldTypeFloat, Mode: FieldModeNullable},
	}}

	fields := schema.DatetimeFields()
	if len(fields) != 2 {
		t.Fatalf("expected 2 datetime fields, got %d", len(fields))
	}
	for _, want := range []string{"created_at", "updated_at"} {
		if _, ok := fields[want]; !ok {
			t.Errorf("expected %q in datetime field set", want)
		}
	}
	if _, ok := fields["id"]; ok {
		t.Error("id should not be in datetime field set")
	}
}

func TestRecordDeepCopy(t *testing.T) {
	original := Record{
		"id": "r-1",
		"nested": map[string]interface{}{
			"inner": []interface{}{1.0, 2.0},
		},
	}

	copied := original.DeepCopy()
	copied["id"] = "r-2"
	copied["nested"].(map[string]interface{})["inner"].([]interface{})[0] = 99.0

	if original["id"] != "r-1" {
		t.Errorf("top-level key mutated through copy: %v", original["id"])
	}
	inner := original["nested"].(map[string]interface{})["inner"].([]interface{})
	if inner[0] != 1.0 {
		t.Errorf("nested sequence mutated through copy: %v", inner[0])
	}
}
