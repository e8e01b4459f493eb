package probes

import (
	"context"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// privilegeRecord is the fixed-layout uid-change record (SPEC_FULL.md §4.4).
type privilegeRecord struct {
	PID    uint32 `json:"pid"`
	OldUID uint32 `json:"old_uid"`
	NewUID uint32 `json:"new_uid"`
}

// PrivilegeAdapter translates uid-transition records into privilege_change
// events.
type PrivilegeAdapter struct {
	source   Source
	emitter  *schema.Emitter
	log      *logging.Logger
	counters *metrics.Counters
}

func NewPrivilegeAdapter(source Source, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *PrivilegeAdapter {
	return &PrivilegeAdapter{source: source, emitter: emitter, log: log.WithComponent("probe.privilege"), counters: counters}
}

func (a *PrivilegeAdapter) Run(ctx context.Context) {
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
		rec, ok := decode[privilegeRecord](raw)
		if !ok {
			a.counters.IncProbeError("privilege")
			a.log.LogProbeEvent("probe_read_error", "adapter", "privilege")
			continue
		}
		a.handle(rec)
	}
}

func (a *PrivilegeAdapter) handle(rec privilegeRecord) {
	severity := model.SeverityMedium
	if rec.OldUID != 0 && rec.NewUID == 0 {
		severity = model.SeverityCritical
	}
	a.emitter.Emit(model.Event{
		EventType: model.PrivilegeChange,
		Severity:  severity,
		Process:   &model.ProcessPayload{PID: rec.PID},
	})
}
