package timeconv

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/loadstone/loadstone/pkg/types"
)

func newConverter(t *testing.T, zone string) *Converter {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("failed to load zone %s: %v", zone, err)
	}
	return New(loc, zerolog.Nop())
}

func TestNormalizeNullLike(t *testing.T) {
	conv := newConverter(t, "UTC")

	for _, value := range []interface{}{nil, ""} {
		if _, ok := conv.Normalize(value); ok {
			t.Errorf("Normalize(%#v) should be null", value)
		}
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	conv := newConverter(t, "UTC")

	values := []interface{}{
		true,
		[]interface{}{"2024-01-01"},
		map[string]interface{}{"ts": 1.0},
		struct{}{},
	}
	for _, value := range values {
		if _, ok := conv.Normalize(value); ok {
			t.Errorf("Normalize(%#v) should be null for unsupported type", value)
		}
	}
}

func TestNormalizeString(t *testing.T) {
	conv := newConverter(t, "Asia/Bangkok")

	dt, ok := conv.Normalize("2024-01-01T00:00:00Z")
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if got := dt.Format(Layout); got != "2024-01-01 07:00:00" {
		t.Errorf("got %q, want 2024-01-01 07:00:00", got)
	}

	// Zoneless strings are assumed UTC.
	dt, ok = conv.Normalize("2024-06-15 12:00:00")
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if got := dt.Format(Layout); got != "2024-06-15 19:00:00" {
		t.Errorf("got %q, want 2024-06-15 19:00:00", got)
	}

	if _, ok := conv.Normalize("not a datetime at all"); ok {
		t.Error("expected unparsable string to normalize to null")
	}
}

func TestNormalizeEpochDisambiguation(t *testing.T) {
	conv := newConverter(t, "UTC")

	// Seconds: 2021-01-01T00:00:00Z.
	dt, ok := conv.Normalize(float64(1609459200))
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if got := dt.Format(Layout); got != "2021-01-01 00:00:00" {
		t.Errorf("seconds: got %q, want 2021-01-01 00:00:00", got)
	}

	// Past the year-3000 boundary: interpreted as milliseconds.
	dt, ok = conv.Normalize(float64(32503680001))
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if dt.Year() != 1971 {
		t.Errorf("milliseconds: got year %d, want 1971", dt.Year())
	}

	// Exactly at the boundary: still seconds (year 3000).
	dt, ok = conv.Normalize(float64(32503680000))
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if dt.Year() != 3000 {
		t.Errorf("boundary: got year %d, want 3000", dt.Year())
	}
}

func TestNormalizeDatetimeInput(t *testing.T) {
	conv := newConverter(t, "Asia/Bangkok")

	in := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dt, ok := conv.Normalize(in)
	if !ok {
		t.Fatal("expected successful conversion")
	}
	if got := dt.Format(Layout); got != "2024-01-01 07:00:00" {
		t.Errorf("got %q, want 2024-01-01 07:00:00", got)
	}
}

func TestNormalizeCopyDoesNotMutate(t *testing.T) {
	conv := newConverter(t, "Asia/Bangkok")
	fields := map[string]struct{}{"created_at": {}, "updated_at": {}}

	original := types.Record{
		"id":         "r-1",
		"created_at": "2024-01-01T00:00:00Z",
		"updated_at": nil,
		"payload":    map[string]interface{}{"tags": []interface{}{"a", "b"}},
	}
	snapshot := original.DeepCopy()

	normalized := conv.NormalizeCopy(original, fields)

	if !reflect.DeepEqual(map[string]interface{}(original), map[string]interface{}(snapshot)) {
		t.Errorf("NormalizeCopy mutated its input: %v", original)
	}
	if normalized["created_at"] != "2024-01-01 07:00:00" {
		t.Errorf("created_at = %v, want 2024-01-01 07:00:00", normalized["created_at"])
	}
	if normalized["updated_at"] != nil {
		t.Errorf("null field should stay null, got %v", normalized["updated_at"])
	}

	// Nested structures must not be shared with the original.
	normalized["payload"].(map[string]interface{})["tags"].([]interface{})[0] = "mutated"
	if original["payload"].(map[string]interface{})["tags"].([]interface{})[0] != "a" {
		t.Error("nested sequence shared between copy and original")
	}
}

func TestNormalizeInPlace(t *testing.T) {
	conv := newConverter(t, "UTC")
	fields := map[string]struct{}{"ts": {}, "broken": {}}

	rec := types.Record{
		"ts":     float64(1609459200),
		"broken": "definitely not a time",
		"other":  "untouched",
	}
	out := conv.NormalizeInPlace(rec, fields)

	if reflect.ValueOf(out).Pointer() != reflect.ValueOf(rec).Pointer() {
		t.Error("NormalizeInPlace must return the same map")
	}
	if rec["ts"] != "2021-01-01 00:00:00" {
		t.Errorf("ts = %v, want 2021-01-01 00:00:00", rec["ts"])
	}
	if rec["broken"] != nil {
		t.Errorf("unparsable value should become null, got %v", rec["broken"])
	}
	if rec["other"] != "untouched" {
		t.Errorf("non-datetime field was modified: %v", rec["other"])
	}
}

func TestAbsentFieldsUntouched(t *testing.T) {
	conv := newConverter(t, "UTC")
	fields := map[string]struct{}{"missing": {}}

	rec := types.Record{"id": "r-1"}
	out := conv.NormalizeInPlace(rec, fields)
	if _, present := out["missing"]; present {
		t.Error("absent field must not be introduced by normalization")
	}
}
