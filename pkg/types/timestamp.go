package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp decodes the date shapes found across document backends: RFC3339 and
// date-only strings, JavaScript Date strings, epoch milliseconds, and
// {seconds,nanoseconds} maps with or without a leading underscore.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// MarshalJSON emits RFC3339 with nanoseconds, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp converts a loosely typed date value into a UTC time.
func ParseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return v.UTC(), nil
	case Timestamp:
		return v.UTC(), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		return parseString(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return fromMillis(f), nil
	case float64:
		return fromMillis(v), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case map[string]any:
		return fromSecondsMap(v)
	}
	return time.Time{}, fmt.Errorf("timestamp: unsupported type %T", value)
}

// Layouts tried in order after RFC3339. Zone-less layouts are read as UTC.
var stringLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000",
	jsDateLayout,
	time.RFC1123,
	time.RFC1123Z,
	time.UnixDate,
}

// jsDateLayout matches Date.prototype.toString once the "(zone name)" suffix is cut.
const jsDateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"

func parseString(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return parsed.UTC(), nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if i := strings.Index(v, " ("); i > 0 {
		v = v[:i]
	}
	for _, layout := range stringLayouts {
		if parsed, err := time.Parse(layout, v); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognized string %q", v)
}

func fromMillis(ms float64) time.Time {
	whole, frac := math.Modf(ms)
	return time.UnixMilli(int64(whole)).Add(time.Duration(frac * float64(time.Millisecond))).UTC()
}

func fromSecondsMap(m map[string]any) (time.Time, error) {
	secs, ok := lookupNumber(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp: map without seconds")
	}
	nanos, _ := lookupNumber(m, "nanoseconds", "_nanoseconds", "nanos")
	return time.Unix(int64(secs), int64(nanos)).UTC(), nil
}

func lookupNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok {
			continue
		}
		switch n := raw.(type) {
		case json.Number:
			f, err := n.Float64()
			if err == nil {
				return f, true
			}
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		}
	}
	return 0, false
}
