package probes

import (
	"context"
	"strings"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// dnsRecord is the fixed-layout DNS-query record (SPEC_FULL.md §4.4).
// QueryRaw carries the wire-format question name (length-prefixed labels
// terminated by a zero label) exactly as the eBPF probe captured it;
// json.Marshal/Unmarshal represent a []byte as base64.
type dnsRecord struct {
	PID      uint32 `json:"pid"`
	DestIP   string `json:"dest_ip"`
	QueryRaw []byte `json:"query_raw"`
}

// DNSAdapter translates DNS-query records into dns_query events.
type DNSAdapter struct {
	source   Source
	emitter  *schema.Emitter
	log      *logging.Logger
	counters *metrics.Counters
}

func NewDNSAdapter(source Source, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *DNSAdapter {
	return &DNSAdapter{source: source, emitter: emitter, log: log.WithComponent("probe.dns"), counters: counters}
}

func (a *DNSAdapter) Run(ctx context.Context) {
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
		rec, ok := decode[dnsRecord](raw)
		if !ok {
			a.counters.IncProbeError("dns")
			a.log.LogProbeEvent("probe_read_error", "adapter", "dns")
			continue
		}
		a.handle(rec)
	}
}

func (a *DNSAdapter) handle(rec dnsRecord) {
	name, ok := DecodeDNSName(rec.QueryRaw)
	if !ok {
		a.counters.IncProbeError("dns")
		return
	}
	a.emitter.Emit(model.Event{
		EventType: model.DNSQuery,
		Severity:  model.SeverityLow,
		Process:   &model.ProcessPayload{PID: rec.PID},
		Network: &model.NetworkPayload{
			Protocol: model.ProtoUDP,
			DestIP:   rec.DestIP,
			Query:    &name,
		},
	})
}

// DecodeDNSName decodes a DNS wire-format question name: length-prefixed
// labels terminated by a zero-length label. A label longer than 63 bytes
// terminates parsing early (SPEC_FULL.md §4.4), returning whatever labels
// were decoded so far, still considered a success if at least one label
// decoded.
func DecodeDNSName(raw []byte) (string, bool) {
	var labels []string
	i := 0
	for i < len(raw) {
		n := int(raw[i])
		if n == 0 {
			break
		}
		if n > 63 {
			break
		}
		i++
		if i+n > len(raw) {
			break
		}
		labels = append(labels, string(raw[i:i+n]))
		i += n
	}
	if len(labels) == 0 {
		return "", false
	}
	return strings.Join(labels, "."), true
}
