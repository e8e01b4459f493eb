package probes

import (
	"context"
	"strings"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// noiseDirs are suppressed per SPEC_FULL.md §4.4; agentSelfPaths is filled
// in by the orchestrator with the agent's own spool and PID file paths at
// construction so the adapter does not report on those files.
var noiseDirs = []string{"/proc", "/sys", "/dev/pts"}

// fileRecord is the fixed-layout file-event record (SPEC_FULL.md §4.4).
type fileRecord struct {
	PID     uint32 `json:"pid"`
	Op      string `json:"op"`
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"`
}

// FileAdapter translates file-operation records into file_* events.
type FileAdapter struct {
	source      Source
	emitter     *schema.Emitter
	agentPaths  []string
	log         *logging.Logger
	counters    *metrics.Counters
}

// NewFileAdapter constructs the adapter. agentSelfPaths are additional
// noise-suppressed prefixes beyond the fixed list in SPEC_FULL.md §4.4
// (the orchestrator passes the agent's spool file and PID file).
func NewFileAdapter(source Source, emitter *schema.Emitter, agentSelfPaths []string, log *logging.Logger, counters *metrics.Counters) *FileAdapter {
	return &FileAdapter{
		source:     source,
		emitter:    emitter,
		agentPaths: agentSelfPaths,
		log:        log.WithComponent("probe.file"),
		counters:   counters,
	}
}

func (a *FileAdapter) Run(ctx context.Context) {
	a.log.LogProbeEvent("probe_started")
	defer a.log.LogProbeEvent("probe_stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		raw, err := a.source.Next(ctx)
		switch {
		case err == ErrPollTimeout:
			continue
		case err != nil:
			return
		}
		rec, ok := decode[fileRecord](raw)
		if !ok {
			a.counters.IncProbeError("file")
			a.log.LogProbeEvent("probe_read_error", "adapter", "file")
			continue
		}
		a.handle(rec)
	}
}

func (a *FileAdapter) handle(rec fileRecord) {
	if a.isNoise(rec.Path) {
		return
	}

	eventType, ok := fileOpEventType(rec.Op)
	if !ok {
		return
	}

	payload := &model.FilePayload{
		Path: rec.Path,
		Op:   model.FileOperation(rec.Op),
	}
	if rec.OldPath != "" {
		payload.OldPath = &rec.OldPath
	}

	a.emitter.Emit(model.Event{
		EventType: eventType,
		Severity:  model.SeverityLow,
		Process:   &model.ProcessPayload{PID: rec.PID},
		File:      payload,
	})
}

func (a *FileAdapter) isNoise(path string) bool {
	for _, d := range noiseDirs {
		if strings.HasPrefix(path, d) {
			return true
		}
	}
	for _, d := range a.agentPaths {
		if d != "" && strings.HasPrefix(path, d) {
			return true
		}
	}
	return false
}

func fileOpEventType(op string) (model.EventType, bool) {
	switch op {
	case "open":
		return model.FileOpen, true
	case "write":
		return model.FileWrite, true
	case "rename":
		return model.FileRename, true
	case "delete":
		return model.FileDelete, true
	default:
		return "", false
	}
}
