package notify

import (
	"testing"

	"github.com/loadstone/loadstone/internal/errors"
)

func TestDecode(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "bucket event object",
			payload: `{"name":"a/b.json"}`,
			want:    "a/b.json",
		},
		{
			name:    "object with extra fields",
			payload: `{"bucket":"landing","name":"2024/01/events.json","size":"123"}`,
			want:    "2024/01/events.json",
		},
		{
			name:    "plain text key",
			payload: "incoming/events.json",
			want:    "incoming/events.json",
		},
		{
			name:    "json string literal stays literal",
			payload: `"plain-name.json"`,
			want:    `"plain-name.json"`,
		},
		{
			name:    "object without name falls back to text",
			payload: `{"bucket":"landing"}`,
			want:    `{"bucket":"landing"}`,
		},
		{
			name:    "surrounding whitespace trimmed",
			payload: "  key.json\n",
			want:    "key.json",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Decode([]byte(tc.payload))
			if err != nil {
				t.Fatalf("Decode(%q) failed: %v", tc.payload, err)
			}
			if got != tc.want {
				t.Errorf("Decode(%q) = %q, want %q", tc.payload, got, tc.want)
			}
		})
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	d := NewDecoder()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "invalid utf-8", payload: []byte{0xff, 0xfe, 0xfd}},
		{name: "empty payload", payload: nil},
		{name: "whitespace only", payload: []byte("   ")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Decode(tc.payload)
			if err == nil {
				t.Fatal("expected decode error")
			}
			if errors.GetCategory(err) != errors.ErrCategoryDecode {
				t.Errorf("category = %s, want %s", errors.GetCategory(err), errors.ErrCategoryDecode)
			}
		})
	}
}
