package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/notionsync/internal/canonical"
	"github.com/roach88/notionsync/internal/notion"
)

// formatTime renders a timestamp in the fixed-width UTC layout.
// The layout is fixed so re-syncs produce identical text.
func formatTime(t time.Time) string {
	return t.UTC().Format(notion.TimeLayout)
}

// parseTime reverses formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(notion.TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// marshalBlob converts a required JSON sub-object to canonical TEXT.
func marshalBlob(field string, raw json.RawMessage) (string, error) {
	s, err := canonical.MarshalString(raw)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	if s == "" {
		return "", fmt.Errorf("marshal %s: empty value", field)
	}
	return s, nil
}

// marshalOptionalBlob converts an optional JSON sub-object; absent values
// stay NULL.
func marshalOptionalBlob(field string, raw json.RawMessage) (sql.NullString, error) {
	s, err := canonical.MarshalString(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal %s: %w", field, err)
	}
	return sql.NullString{String: s, Valid: s != ""}, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid {
		return nil
	}
	return json.RawMessage(ns.String)
}

// marshalJSON encodes bookkeeping values (run counts and failures).
// encoding/json sorts map keys, which keeps the text stable.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
