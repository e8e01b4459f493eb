// Package model defines the canonical Kernox event schema (SPEC_FULL.md §3).
package model

import "time"

// SchemaVersion is the fixed schema_version string stamped on every event.
const SchemaVersion = "1.0"

// EventType is the closed set of event types the agent can emit
// (SPEC_FULL.md §6).
type EventType string

const (
	ProcessStart EventType = "process_start"
	ProcessStop  EventType = "process_stop"

	FileOpen   EventType = "file_open"
	FileWrite  EventType = "file_write"
	FileRename EventType = "file_rename"
	FileDelete EventType = "file_delete"

	NetworkConnect EventType = "network_connect"
	DNSQuery       EventType = "dns_query"

	PrivilegeChange EventType = "privilege_change"

	AuthLoginSuccess EventType = "auth_login_success"
	AuthLoginFailure EventType = "auth_login_failure"
	AuthSudo         EventType = "auth_sudo"

	AlertRansomwareBurst      EventType = "alert_ransomware_burst"
	AlertC2Beaconing          EventType = "alert_c2_beaconing"
	AlertPrivilegeEscalation  EventType = "alert_privilege_escalation"
	AlertBruteForce           EventType = "alert_brute_force"
	AlertSuspiciousDNS        EventType = "alert_suspicious_dns"
	AlertLogTamper            EventType = "alert_log_tamper"
	AlertRuleMatch            EventType = "alert_rule_match"

	ResponseAction   EventType = "response_action"
	ResponseRollback EventType = "response_rollback"

	Heartbeat EventType = "heartbeat"
)

// Severity is the closed severity enum.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Endpoint identifies the host that produced an event.
type Endpoint struct {
	EndpointID string `json:"endpoint_id"`
	Hostname   string `json:"hostname"`
}

// ProcessPayload is the `process` slot.
type ProcessPayload struct {
	PID  uint32 `json:"pid"`
	PPID uint32 `json:"ppid"`
	Name string `json:"name"`
	Path string `json:"path"`
	User string `json:"user"`
}

// FileOperation is the file payload's operation enum.
type FileOperation string

const (
	FileOpOpen   FileOperation = "open"
	FileOpWrite  FileOperation = "write"
	FileOpRename FileOperation = "rename"
	FileOpDelete FileOperation = "delete"
)

// FilePayload is the `file` slot.
type FilePayload struct {
	Path     string        `json:"path"`
	Op       FileOperation `json:"operation"`
	OldPath  *string       `json:"old_path,omitempty"`
}

// NetworkProtocol is the network payload's protocol enum.
type NetworkProtocol string

const (
	ProtoTCP NetworkProtocol = "tcp"
	ProtoUDP NetworkProtocol = "udp"
)

// NetworkPayload is the `network` slot.
type NetworkPayload struct {
	Protocol NetworkProtocol `json:"protocol"`
	DestIP   string          `json:"dest_ip"`
	DestPort uint16          `json:"dest_port"`
	Query    *string         `json:"query,omitempty"`
}

// AuthSource is the auth payload's source enum.
type AuthSource string

const (
	AuthSourceSSH  AuthSource = "ssh"
	AuthSourceSudo AuthSource = "sudo"
)

// AuthOutcome is the auth payload's outcome enum.
type AuthOutcome string

const (
	AuthOutcomeSuccess AuthOutcome = "success"
	AuthOutcomeFailure AuthOutcome = "failure"
)

// AuthPayload is the `auth` slot.
type AuthPayload struct {
	Source   AuthSource  `json:"source"`
	User     string      `json:"user"`
	SourceIP *string     `json:"source_ip,omitempty"`
	Outcome  AuthOutcome `json:"outcome"`
}

// AlertPayload is the `alert` slot.
type AlertPayload struct {
	Rule      string            `json:"rule"`
	Details   map[string]string `json:"details"`
	Count     *uint32           `json:"count,omitempty"`
	WindowSec *uint32           `json:"window_s,omitempty"`
}

// SignaturePayload is the reserved, always-nil `signature` slot
// (SPEC_FULL.md §9 open question).
type SignaturePayload struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// Event is the canonical, immutable-after-construction record.
type Event struct {
	EventID       string    `json:"event_id"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	Endpoint      Endpoint  `json:"endpoint"`
	EventType     EventType `json:"event_type"`
	Severity      Severity  `json:"severity"`

	Process   *ProcessPayload   `json:"process"`
	File      *FilePayload      `json:"file"`
	Network   *NetworkPayload   `json:"network"`
	Auth      *AuthPayload      `json:"auth"`
	Alert     *AlertPayload     `json:"alert"`
	Signature *SignaturePayload `json:"signature"`
}

// TimestampRFC3339 renders Timestamp per SPEC_FULL.md §3: UTC, second
// resolution, RFC3339 with a trailing Z.
func (e *Event) TimestampRFC3339() string {
	return e.Timestamp.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}
