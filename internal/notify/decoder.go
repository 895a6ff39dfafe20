// Package notify extracts object keys from broker notification payloads.
package notify

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/loadstone/loadstone/internal/errors"
)

// Decoder turns a raw notification payload into the object key to fetch.
//
// Two payload shapes are accepted. Bucket-event notifications are JSON
// objects carrying the key under "name". Anything else is treated as a
// plain-text key, so manually published messages keep working.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode returns the object key named by the payload.
func (d *Decoder) Decode(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.NewDecodeError("notification payload is not valid UTF-8", nil)
	}
	text := string(raw)

	var event map[string]interface{}
	if err := json.Unmarshal(raw, &event); err == nil {
		if name, ok := event["name"].(string); ok && name != "" {
			return name, nil
		}
	}

	key := strings.TrimSpace(text)
	if key == "" {
		return "", errors.NewDecodeError("notification payload is empty", nil)
	}
	return key, nil
}
