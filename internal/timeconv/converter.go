// Package timeconv converts heterogeneous datetime representations to a
// canonical naive local time in a configured zone. The warehouse sink
// expects zone-naive timestamps: the output of a conversion is "what
// wall-clock time this was in the target zone", not an absolute instant
// annotated with an offset.
package timeconv

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/loadstone/loadstone/pkg/types"
)

// Layout is the canonical naive datetime layout written into records.
const Layout = "2006-01-02 15:04:05"

// epochSecondsYear3000 disambiguates second- vs millisecond-precision
// numeric timestamps: anything past the year 3000 in seconds is taken
// to be milliseconds.
const epochSecondsYear3000 = 32503680000

// valueKind is the explicit classification of an input value's shape.
type valueKind int

const (
	kindNullLike valueKind = iota
	kindDatetimeLike
	kindText
	kindNumeric
	kindUnsupported
)

// Converter normalizes datetime values into a target zone.
type Converter struct {
	loc *time.Location
	log zerolog.Logger
}

// New creates a Converter targeting the given zone.
func New(loc *time.Location, log zerolog.Logger) *Converter {
	return &Converter{loc: loc, log: log}
}

// classify maps an input value onto the supported shapes. JSON decoding
// yields float64 for every number; the other numeric cases cover direct
// callers.
func classify(value interface{}) valueKind {
	switch v := value.(type) {
	case nil:
		return kindNullLike
	case time.Time:
		return kindDatetimeLike
	case string:
		if v == "" {
			return kindNullLike
		}
		return kindText
	case float64, float32, int, int32, int64:
		return kindNumeric
	default:
		return kindUnsupported
	}
}

// Normalize converts a single value to a naive datetime in the target
// zone. The second return is false when the value is null-like,
// unsupported, or unparsable; those cases normalize to null and are
// never fatal.
func (c *Converter) Normalize(value interface{}) (time.Time, bool) {
	var dt time.Time

	switch classify(value) {
	case kindNullLike:
		return time.Time{}, false

	case kindDatetimeLike:
		dt = value.(time.Time)

	case kindText:
		parsed, err := dateparse.ParseIn(value.(string), time.UTC)
		if err != nil {
			c.log.Warn().Str("value", value.(string)).Err(err).
				Msg("failed to parse datetime string")
			return time.Time{}, false
		}
		dt = parsed

	case kindNumeric:
		dt = fromEpoch(toFloat(value))

	default:
		c.log.Warn().Interface("value", value).
			Msg("unsupported datetime value type")
		return time.Time{}, false
	}

	// Zoneless values are interpreted as UTC, then converted to the
	// target zone and stripped of zone information.
	local := dt.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(),
		time.UTC), true
}

// NormalizeCopy returns a copy of the record with every datetime field
// replaced by its canonical naive form. The input record is never
// mutated; nested mappings and sequences are not shared with it.
func (c *Converter) NormalizeCopy(rec types.Record, fields map[string]struct{}) types.Record {
	return c.normalize(rec.DeepCopy(), fields)
}

// NormalizeInPlace replaces datetime fields directly in rec and returns
// the same map. Callers use this only when the original record is not
// needed afterwards.
func (c *Converter) NormalizeInPlace(rec types.Record, fields map[string]struct{}) types.Record {
	return c.normalize(rec, fields)
}

func (c *Converter) normalize(rec types.Record, fields map[string]struct{}) types.Record {
	for name := range fields {
		value, present := rec[name]
		if !present || value == nil {
			continue
		}
		if dt, ok := c.Normalize(value); ok {
			rec[name] = dt.Format(Layout)
		} else {
			rec[name] = nil
		}
	}
	return rec
}

// fromEpoch interprets a numeric value as a Unix epoch offset, treating
// values past the year 3000 as milliseconds.
func fromEpoch(v float64) time.Time {
	if v > epochSecondsYear3000 {
		v /= 1000
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
