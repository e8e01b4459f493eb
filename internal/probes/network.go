package probes

import (
	"context"
	"net"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// networkRecord is the fixed-layout connect record (SPEC_FULL.md §4.4).
type networkRecord struct {
	PID      uint32 `json:"pid"`
	Protocol string `json:"protocol"`
	DestIP   string `json:"dest_ip"`
	DestPort uint16 `json:"dest_port"`
}

// NetworkAdapter translates connect records into network_connect events.
type NetworkAdapter struct {
	source   Source
	emitter  *schema.Emitter
	log      *logging.Logger
	counters *metrics.Counters
}

func NewNetworkAdapter(source Source, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *NetworkAdapter {
	return &NetworkAdapter{source: source, emitter: emitter, log: log.WithComponent("probe.network"), counters: counters}
}

func (a *NetworkAdapter) Run(ctx context.Context) {
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
		rec, ok := decode[networkRecord](raw)
		if !ok {
			a.counters.IncProbeError("network")
			a.log.LogProbeEvent("probe_read_error", "adapter", "network")
			continue
		}
		a.handle(rec)
	}
}

func (a *NetworkAdapter) handle(rec networkRecord) {
	if isSuppressedDest(rec.DestIP) {
		return
	}
	proto := model.ProtoTCP
	if rec.Protocol == "udp" {
		proto = model.ProtoUDP
	}
	a.emitter.Emit(model.Event{
		EventType: model.NetworkConnect,
		Severity:  model.SeverityLow,
		Process:   &model.ProcessPayload{PID: rec.PID},
		Network: &model.NetworkPayload{
			Protocol: proto,
			DestIP:   rec.DestIP,
			DestPort: rec.DestPort,
		},
	})
}

// isSuppressedDest reports whether a destination is loopback or link-local
// (SPEC_FULL.md §4.4).
func isSuppressedDest(ip string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	return addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
