package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// eventWire is the on-wire shape of Event: identical fields, but Timestamp
// is a string so marshaling always produces the RFC3339-with-Z form
// SPEC_FULL.md §3 requires, regardless of sub-second precision retained
// in memory.
type eventWire struct {
	EventID       string            `json:"event_id"`
	SchemaVersion string            `json:"schema_version"`
	Timestamp     string            `json:"timestamp"`
	Endpoint      Endpoint          `json:"endpoint"`
	EventType     EventType         `json:"event_type"`
	Severity      Severity          `json:"severity"`
	Process       *ProcessPayload   `json:"process"`
	File          *FilePayload      `json:"file"`
	Network       *NetworkPayload   `json:"network"`
	Auth          *AuthPayload      `json:"auth"`
	Alert         *AlertPayload     `json:"alert"`
	Signature     *SignaturePayload `json:"signature"`
}

// MarshalJSON satisfies testable property 5 (serialize/deserialize identity)
// while keeping Timestamp a time.Time in memory for comparisons.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventWire{
		EventID:       e.EventID,
		SchemaVersion: e.SchemaVersion,
		Timestamp:     e.TimestampRFC3339(),
		Endpoint:      e.Endpoint,
		EventType:     e.EventType,
		Severity:      e.Severity,
		Process:       e.Process,
		File:          e.File,
		Network:       e.Network,
		Auth:          e.Auth,
		Alert:         e.Alert,
		Signature:     e.Signature,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse("2006-01-02T15:04:05Z", w.Timestamp)
	if err != nil {
		// Tolerate sub-second precision or offset forms on ingest.
		ts, err = time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return fmt.Errorf("model: invalid timestamp %q: %w", w.Timestamp, err)
		}
	}
	e.EventID = w.EventID
	e.SchemaVersion = w.SchemaVersion
	e.Timestamp = ts.UTC()
	e.Endpoint = w.Endpoint
	e.EventType = w.EventType
	e.Severity = w.Severity
	e.Process = w.Process
	e.File = w.File
	e.Network = w.Network
	e.Auth = w.Auth
	e.Alert = w.Alert
	e.Signature = w.Signature
	return nil
}
