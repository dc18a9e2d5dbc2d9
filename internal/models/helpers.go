package models

import (
	"encoding/json"
	"time"
)

// NormalizeTime converts t to UTC at microsecond precision, the resolution Postgres keeps, so
// a saved value reads back equal to itself.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// normalizeJSONObject re-decodes m through encoding/json so numbers become float64 and
// arrays []any, whatever concrete types the caller or the column scanner produced. Values
// that cannot be encoded are returned unchanged and fail later at write time.
func normalizeJSONObject(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}
