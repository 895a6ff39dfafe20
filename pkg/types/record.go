package types

// Record is a single row as parsed from a fetched blob's JSON content:
// a mapping from field name to string, number, boolean, nested mapping,
// null, or a sequence of those.
type Record map[string]interface{}

// DeepCopy returns a copy of the record that shares no nested mappings
// or sequences with the original.
func (r Record) DeepCopy() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(tv))
		for k, nested := range tv {
			out[k] = deepCopyValue(nested)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, nested := range tv {
			out[i] = deepCopyValue(nested)
		}
		return out
	default:
		return v
	}
}
