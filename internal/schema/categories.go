package schema

import "github.com/kernox/agent/internal/model"

// category identifies which payload-slot set an event_type requires
// (SPEC_FULL.md §6).
type category int

const (
	catProcess category = iota
	catFile
	catNetwork
	catPrivilege
	catAuth
	catAlert
	catHeartbeat
	catResponse
)

// typeCategory maps every member of the closed event-type enum to its
// category. An event_type absent from this map is rejected by Emit.
var typeCategory = map[model.EventType]category{
	model.ProcessStart: catProcess,
	model.ProcessStop:  catProcess,

	model.FileOpen:   catFile,
	model.FileWrite:  catFile,
	model.FileRename: catFile,
	model.FileDelete: catFile,

	model.NetworkConnect: catNetwork,
	model.DNSQuery:       catNetwork,

	model.PrivilegeChange: catPrivilege,

	model.AuthLoginSuccess: catAuth,
	model.AuthLoginFailure: catAuth,
	model.AuthSudo:         catAuth,

	model.AlertRansomwareBurst:     catAlert,
	model.AlertC2Beaconing:         catAlert,
	model.AlertPrivilegeEscalation: catAlert,
	model.AlertBruteForce:          catAlert,
	model.AlertSuspiciousDNS:       catAlert,
	model.AlertLogTamper:           catAlert,
	model.AlertRuleMatch:           catAlert,

	model.ResponseAction:   catResponse,
	model.ResponseRollback: catResponse,

	model.Heartbeat: catHeartbeat,
}

// AllowedSlots reports which payload slots must be non-null for a type, per
// the category table in SPEC_FULL.md §6. "process"/"network"/"auth"/"alert"
// here name the slot, not the Go field directly, to keep this table
// independent of struct layout.
func AllowedSlots(t model.EventType) (slots []string, ok bool) {
	cat, known := typeCategory[t]
	if !known {
		return nil, false
	}
	switch cat {
	case catProcess:
		return []string{"process"}, true
	case catFile:
		return []string{"process", "file"}, true
	case catNetwork:
		return []string{"process", "network"}, true
	case catPrivilege:
		return []string{"process"}, true
	case catAuth:
		return []string{"auth"}, true // "process" optionally present when known
	case catAlert:
		return []string{"alert"}, true // plus the contextual slot that triggered it
	case catHeartbeat:
		return []string{"alert"}, true // carries the counter set in alert.details (SPEC_FULL.md §3)
	case catResponse:
		return []string{"alert"}, true
	}
	return nil, false
}

// IsKnownType reports whether t is a member of the closed enum.
func IsKnownType(t model.EventType) bool {
	_, ok := typeCategory[t]
	return ok
}
