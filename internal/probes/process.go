package probes

import (
	"context"
	"os/user"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// processRecord is the fixed-layout exec/exit record SPEC_FULL.md §4.4
// describes. Kind disambiguates the two forms the same raw-record shape
// carries ("exec" or "exit"); exit records only populate PID and ExitCode.
type processRecord struct {
	Kind     string `json:"kind"`
	PID      uint32 `json:"pid"`
	PPID     uint32 `json:"ppid"`
	UID      uint32 `json:"uid"`
	GID      uint32 `json:"gid"`
	Comm     string `json:"comm"`
	Filename string `json:"filename"`
	ExitCode int32  `json:"exit_code"`
}

// ProcessAdapter translates exec/exit records into process_start/process_stop
// events. Container classification happens once, in the orchestrator's
// lineage-update step, rather than here — see agent.updateLineage.
type ProcessAdapter struct {
	source    Source
	emitter   *schema.Emitter
	userCache *lru.Cache[uint32, string]
	log       *logging.Logger
	counters  *metrics.Counters
}

// NewProcessAdapter constructs the adapter.
func NewProcessAdapter(source Source, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *ProcessAdapter {
	cache, _ := lru.New[uint32, string](4096)
	return &ProcessAdapter{
		source:    source,
		emitter:   emitter,
		userCache: cache,
		log:       log.WithComponent("probe.process"),
		counters:  counters,
	}
}

// Run drains the source until ctx is canceled or the source is exhausted.
func (a *ProcessAdapter) Run(ctx context.Context) {
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
		rec, ok := decode[processRecord](raw)
		if !ok {
			a.counters.IncProbeError("process")
			a.log.LogProbeEvent("probe_read_error", "adapter", "process")
			continue
		}
		a.handle(rec)
	}
}

func (a *ProcessAdapter) handle(rec processRecord) {
	if rec.Kind == "exit" {
		a.emitter.Emit(model.Event{
			EventType: model.ProcessStop,
			Severity:  model.SeverityInfo,
			Process: &model.ProcessPayload{
				PID: rec.PID,
			},
		})
		return
	}

	username := a.resolveUser(rec.UID)

	a.emitter.Emit(model.Event{
		EventType: model.ProcessStart,
		Severity:  model.SeverityLow,
		Process: &model.ProcessPayload{
			PID:  rec.PID,
			PPID: rec.PPID,
			Name: rec.Comm,
			Path: rec.Filename,
			User: username,
		},
	})
}

func (a *ProcessAdapter) resolveUser(uid uint32) string {
	if name, ok := a.userCache.Get(uid); ok {
		return name
	}
	name := strconv.FormatUint(uint64(uid), 10)
	if u, err := user.LookupId(name); err == nil {
		name = u.Username
	}
	a.userCache.Add(uid, name)
	return name
}
