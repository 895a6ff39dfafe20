// Package catalog loads the destination table schema from a static
// definition file and derives which fields need datetime normalization.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loadstone/loadstone/internal/errors"
	"github.com/loadstone/loadstone/pkg/types"
)

// Load reads a schema definition from path. The file holds a sequence of
// field entries, each with name, type and mode, in JSON (the original
// table_schema.json layout) or YAML selected by file extension.
func Load(path string) (types.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Schema{}, errors.NewSchemaError(errors.CodeSchemaSource,
			fmt.Sprintf("cannot read schema file %s", path), err)
	}

	var fields []types.FieldDescriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &fields)
	default:
		err = json.Unmarshal(raw, &fields)
	}
	if err != nil {
		return types.Schema{}, errors.NewSchemaError(errors.CodeSchemaInvalid,
			fmt.Sprintf("malformed schema file %s", path), err)
	}

	schema := types.Schema{Fields: fields}
	if err := schema.Validate(); err != nil {
		return types.Schema{}, errors.NewSchemaError(errors.CodeSchemaInvalid,
			fmt.Sprintf("invalid schema in %s", path), err)
	}
	return schema, nil
}
