// Package types provides core data types for Loadstone.
package types

import "fmt"

// FieldType is the warehouse column type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeInteger   FieldType = "INTEGER"
	FieldTypeFloat     FieldType = "FLOAT"
	FieldTypeBoolean   FieldType = "BOOLEAN"
	FieldTypeDatetime  FieldType = "DATETIME"
	FieldTypeTimestamp FieldType = "TIMESTAMP"
	FieldTypeRecord    FieldType = "RECORD"
)

// FieldMode is the nullability/repetition mode of a schema field.
type FieldMode string

const (
	FieldModeNullable FieldMode = "NULLABLE"
	FieldModeRequired FieldMode = "REQUIRED"
	FieldModeRepeated FieldMode = "REPEATED"
)

// FieldDescriptor describes a single column in the destination table.
type FieldDescriptor struct {
	// Name is the column name, unique within a schema
	Name string `json:"name" yaml:"name"`

	// Type is the warehouse column type (STRING, INTEGER, DATETIME, ...)
	Type FieldType `json:"type" yaml:"type"`

	// Mode is NULLABLE, REQUIRED or REPEATED
	Mode FieldMode `json:"mode" yaml:"mode"`
}

// Schema is the ordered column definition of the destination table.
// It is loaded once at startup and treated as immutable thereafter.
type Schema struct {
	Fields []FieldDescriptor
}

// Validate checks that every field carries name/type/mode and that
// field names are unique within the schema.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: missing name", i)
		}
		if f.Type == "" {
			return fmt.Errorf("field %q: missing type", f.Name)
		}
		if f.Mode == "" {
			return fmt.Errorf("field %q: missing mode", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// DatetimeFields returns the set of field names whose type is DATETIME
// or TIMESTAMP. Pure derivation, no I/O; computed once at startup.
func (s Schema) DatetimeFields() map[string]struct{} {
	fields := make(map[string]struct{})
	for _, f := range s.Fields {
		if f.Type == FieldTypeDatetime || f.Type == FieldTypeTimestamp {
			fields[f.Name] = struct{}{}
		}
	}
	return fields
}
