package schema

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kernox/agent/internal/bus"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

// Field length bounds (SPEC_FULL.md §3: process.name ≤16, process.path ≤256).
const (
	maxProcessName = 16
	maxProcessPath = 256
	maxGenericStr  = 4096
)

// Emitter implements C1: it fills identity/timestamp/endpoint fields,
// validates the enum, sanitizes strings, and hands the event to the bus.
type Emitter struct {
	endpoint model.Endpoint
	out      *bus.Queue[model.Event]
	counters *metrics.Counters

	now func() time.Time
}

// New creates an Emitter that publishes onto out and records rejects on
// counters.
func New(endpoint model.Endpoint, out *bus.Queue[model.Event], counters *metrics.Counters) *Emitter {
	return &Emitter{endpoint: endpoint, out: out, counters: counters, now: time.Now}
}

// Emit validates and sanitizes draft, then publishes it. draft must already
// carry EventType, Severity, and exactly the payload pointers relevant to
// its type; Emit nulls any others defensively. It returns the constructed
// event and whether it was accepted. Never blocks on I/O (bus.Push is an
// in-memory channel operation only).
func (e *Emitter) Emit(draft model.Event) (model.Event, bool) {
	if !IsKnownType(draft.EventType) {
		e.counters.IncSchemaRejects()
		return model.Event{}, false
	}
	if !isKnownSeverity(draft.Severity) {
		e.counters.IncSchemaRejects()
		return model.Event{}, false
	}

	slots, _ := AllowedSlots(draft.EventType)
	zeroDisallowedSlots(&draft, slots)

	sanitizeEvent(&draft)

	draft.EventID = uuid.NewString()
	draft.SchemaVersion = model.SchemaVersion
	draft.Timestamp = e.now().UTC()
	draft.Endpoint = e.endpoint

	if e.out != nil {
		e.out.Push(draft)
	}
	return draft, true
}

func isKnownSeverity(s model.Severity) bool {
	switch s {
	case model.SeverityInfo, model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical:
		return true
	default:
		return false
	}
}

// zeroDisallowedSlots nulls payload pointers that the event's category does
// not require, implementing invariant 2 (SPEC_FULL.md §3) defensively even
// if a caller over-populated the draft. auth/alert categories may carry an
// additional contextual "process" slot per §6, so that slot is left alone.
func zeroDisallowedSlots(e *model.Event, required []string) {
	allowed := make(map[string]bool, len(required)+1)
	for _, s := range required {
		allowed[s] = true
	}
	// auth_* and alert_* may optionally carry "process" as the contextual
	// slot that triggered them; never strip it defensively.
	allowed["process"] = allowed["process"] || e.EventType == model.AuthLoginSuccess ||
		e.EventType == model.AuthLoginFailure || e.EventType == model.AuthSudo ||
		isAlertType(e.EventType)

	if !allowed["process"] {
		e.Process = nil
	}
	if !allowed["file"] {
		e.File = nil
	}
	if !allowed["network"] {
		e.Network = nil
	}
	if !allowed["auth"] {
		e.Auth = nil
	}
	if !allowed["alert"] {
		e.Alert = nil
	}
	// signature is always reserved/unpopulated per SPEC_FULL.md §9.
	e.Signature = nil
}

func isAlertType(t model.EventType) bool {
	return strings.HasPrefix(string(t), "alert_")
}

func sanitizeEvent(e *model.Event) {
	if e.Process != nil {
		e.Process.Name = sanitizeString(e.Process.Name, maxProcessName)
		e.Process.Path = sanitizeString(e.Process.Path, maxProcessPath)
		e.Process.User = sanitizeString(e.Process.User, maxGenericStr)
	}
	if e.File != nil {
		e.File.Path = sanitizeString(e.File.Path, maxGenericStr)
		if e.File.OldPath != nil {
			v := sanitizeString(*e.File.OldPath, maxGenericStr)
			e.File.OldPath = &v
		}
	}
	if e.Network != nil {
		e.Network.DestIP = sanitizeString(e.Network.DestIP, maxGenericStr)
		if e.Network.Query != nil {
			v := sanitizeString(*e.Network.Query, maxGenericStr)
			e.Network.Query = &v
		}
	}
	if e.Auth != nil {
		e.Auth.User = sanitizeString(e.Auth.User, maxGenericStr)
		if e.Auth.SourceIP != nil {
			v := sanitizeString(*e.Auth.SourceIP, maxGenericStr)
			e.Auth.SourceIP = &v
		}
	}
	if e.Alert != nil {
		e.Alert.Rule = sanitizeString(e.Alert.Rule, maxGenericStr)
		for k, v := range e.Alert.Details {
			e.Alert.Details[k] = sanitizeString(v, maxGenericStr)
		}
	}
}

// sanitizeString coerces to valid UTF-8, strips C0 control characters other
// than tab (0x09), and truncates (never rejects) to maxLen runes
// (SPEC_FULL.md §3 invariant 4, §4.1 "oversize strings are truncated, not
// rejected").
func sanitizeString(s string, maxLen int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	count := 0
	for _, r := range s {
		if count >= maxLen {
			break
		}
		if r <= 0x1F && r != 0x09 {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
