package entity

import (
	"time"
)

// TimestampLayout is the ISO-8601 layout used when this SDK writes
// metadata.created and metadata.updated.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Epoch is the fallback time for missing or unparsable timestamps.
var Epoch = time.Unix(0, 0).UTC()

// Now returns the current time formatted with TimestampLayout.
func Now() string {
	return time.Now().UTC().Format(TimestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp and normalizes it to UTC.
// Timestamps without an offset are read as UTC. Empty or unparsable values
// yield Epoch.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return Epoch
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}

// CreatedAt returns the parsed metadata.created of a generic wire object.
func CreatedAt(obj map[string]any) time.Time {
	md, ok := obj["metadata"].(map[string]any)
	if !ok {
		return Epoch
	}
	s, _ := md["created"].(string)
	return ParseTimestamp(s)
}
