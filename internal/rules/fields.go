package rules

import (
	"strconv"

	"github.com/kernox/agent/internal/model"
)

// fieldLookup is the dotted-path dispatcher called for by SPEC_FULL.md §9:
// a hand-written function table keyed by the closed set of field paths the
// schema can produce, rather than open reflection over a map. A missing
// field (payload slot nil, or path unknown) returns ok=false, which makes
// any condition referencing it evaluate false per SPEC_FULL.md §4.6.
var fieldLookup = map[string]func(*model.Event) (any, bool){
	"event_type": func(e *model.Event) (any, bool) { return string(e.EventType), true },
	"severity":   func(e *model.Event) (any, bool) { return string(e.Severity), true },

	"process.pid": func(e *model.Event) (any, bool) {
		if e.Process == nil {
			return nil, false
		}
		return uint64(e.Process.PID), true
	},
	"process.ppid": func(e *model.Event) (any, bool) {
		if e.Process == nil {
			return nil, false
		}
		return uint64(e.Process.PPID), true
	},
	"process.name": func(e *model.Event) (any, bool) {
		if e.Process == nil {
			return nil, false
		}
		return e.Process.Name, true
	},
	"process.path": func(e *model.Event) (any, bool) {
		if e.Process == nil {
			return nil, false
		}
		return e.Process.Path, true
	},
	"process.user": func(e *model.Event) (any, bool) {
		if e.Process == nil {
			return nil, false
		}
		return e.Process.User, true
	},

	"file.path": func(e *model.Event) (any, bool) {
		if e.File == nil {
			return nil, false
		}
		return e.File.Path, true
	},
	"file.operation": func(e *model.Event) (any, bool) {
		if e.File == nil {
			return nil, false
		}
		return string(e.File.Op), true
	},

	"network.protocol": func(e *model.Event) (any, bool) {
		if e.Network == nil {
			return nil, false
		}
		return string(e.Network.Protocol), true
	},
	"network.dest_ip": func(e *model.Event) (any, bool) {
		if e.Network == nil {
			return nil, false
		}
		return e.Network.DestIP, true
	},
	"network.dest_port": func(e *model.Event) (any, bool) {
		if e.Network == nil {
			return nil, false
		}
		return uint64(e.Network.DestPort), true
	},
	"network.query": func(e *model.Event) (any, bool) {
		if e.Network == nil || e.Network.Query == nil {
			return nil, false
		}
		return *e.Network.Query, true
	},

	"auth.source": func(e *model.Event) (any, bool) {
		if e.Auth == nil {
			return nil, false
		}
		return string(e.Auth.Source), true
	},
	"auth.user": func(e *model.Event) (any, bool) {
		if e.Auth == nil {
			return nil, false
		}
		return e.Auth.User, true
	},
	"auth.outcome": func(e *model.Event) (any, bool) {
		if e.Auth == nil {
			return nil, false
		}
		return string(e.Auth.Outcome), true
	},
	"auth.source_ip": func(e *model.Event) (any, bool) {
		if e.Auth == nil || e.Auth.SourceIP == nil {
			return nil, false
		}
		return *e.Auth.SourceIP, true
	},

	"alert.rule": func(e *model.Event) (any, bool) {
		if e.Alert == nil {
			return nil, false
		}
		return e.Alert.Rule, true
	},
	"alert.count": func(e *model.Event) (any, bool) {
		if e.Alert == nil || e.Alert.Count == nil {
			return nil, false
		}
		return uint64(*e.Alert.Count), true
	},
}

// lookupField resolves a dotted path against ev, returning ok=false for any
// unknown or absent path.
func lookupField(ev *model.Event, path string) (any, bool) {
	fn, known := fieldLookup[path]
	if !known {
		return nil, false
	}
	return fn(ev)
}

// toDisplayString renders a resolved field value for alert.details, using
// the same decimal-integer convention the schema's numeric fields use.
func toDisplayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return ""
	}
}
