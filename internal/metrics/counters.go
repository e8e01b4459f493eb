// Package metrics holds the process-wide counter set referenced by
// SPEC_FULL.md §3/§7 ("heartbeat counter set") and mirrors it onto
// Prometheus counters for the optional debug listener.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters is the agent's internal failure/drop counter set. All fields are
// accessed via atomic ops so any worker can increment without a lock.
type Counters struct {
	SchemaRejects   atomic.Uint64
	TransportDrops  atomic.Uint64
	RuleParseErrors atomic.Uint64
	SpoolWrites     atomic.Uint64
	SpoolDrains     atomic.Uint64

	mu          sync.Mutex
	probeErrors map[string]uint64

	prom *promCounters
}

type promCounters struct {
	schemaRejects   prometheus.Counter
	transportDrops  prometheus.Counter
	ruleParseErrors prometheus.Counter
	spoolWrites     prometheus.Counter
	spoolDrains     prometheus.Counter
	probeErrors     *prometheus.CounterVec
}

// New creates a counter set. If reg is non-nil, Prometheus counters are
// registered on it; pass nil to skip Prometheus entirely (e.g. in tests).
func New(reg prometheus.Registerer) *Counters {
	c := &Counters{probeErrors: make(map[string]uint64)}
	if reg == nil {
		return c
	}
	p := &promCounters{
		schemaRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernox_schema_rejects_total",
			Help: "Events dropped for failing schema validation.",
		}),
		transportDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernox_transport_drops_total",
			Help: "Events dropped because the transport queue was full.",
		}),
		ruleParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernox_rule_parse_errors_total",
			Help: "Rule files skipped due to parse or validation errors.",
		}),
		spoolWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernox_spool_writes_total",
			Help: "Events appended to the fallback spool file.",
		}),
		spoolDrains: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernox_spool_drains_total",
			Help: "Events drained from the fallback spool file.",
		}),
		probeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kernox_probe_errors_total",
			Help: "Probe read/decode errors by adapter.",
		}, []string{"adapter"}),
	}
	reg.MustRegister(p.schemaRejects, p.transportDrops, p.ruleParseErrors,
		p.spoolWrites, p.spoolDrains, p.probeErrors)
	c.prom = p
	return c
}

// IncSchemaRejects increments the schema_rejects counter.
func (c *Counters) IncSchemaRejects() {
	c.SchemaRejects.Add(1)
	if c.prom != nil {
		c.prom.schemaRejects.Inc()
	}
}

// IncTransportDrops increments the transport_drops counter.
func (c *Counters) IncTransportDrops() {
	c.TransportDrops.Add(1)
	if c.prom != nil {
		c.prom.transportDrops.Inc()
	}
}

// IncRuleParseErrors increments the rule_parse_errors counter.
func (c *Counters) IncRuleParseErrors() {
	c.RuleParseErrors.Add(1)
	if c.prom != nil {
		c.prom.ruleParseErrors.Inc()
	}
}

// IncSpoolWrites increments the spool_writes counter by n.
func (c *Counters) IncSpoolWrites(n uint64) {
	c.SpoolWrites.Add(n)
	if c.prom != nil {
		c.prom.spoolWrites.Add(float64(n))
	}
}

// IncSpoolDrains increments the spool_drains counter by n.
func (c *Counters) IncSpoolDrains(n uint64) {
	c.SpoolDrains.Add(n)
	if c.prom != nil {
		c.prom.spoolDrains.Add(float64(n))
	}
}

// IncProbeError increments the per-adapter probe_errors counter.
func (c *Counters) IncProbeError(adapter string) {
	c.mu.Lock()
	c.probeErrors[adapter]++
	c.mu.Unlock()
	if c.prom != nil {
		c.prom.probeErrors.WithLabelValues(adapter).Inc()
	}
}

// Snapshot returns a string-keyed view of the counters. The orchestrator
// uses it as the heartbeat event's alert.details map as is, so each counter
// is a top-level details entry; there is no nested "counters" key.
// probe_errors is the sum over all adapters.
func (c *Counters) Snapshot() map[string]string {
	c.mu.Lock()
	probeTotal := uint64(0)
	for _, v := range c.probeErrors {
		probeTotal += v
	}
	c.mu.Unlock()

	return map[string]string{
		"schema_rejects":    itoa(c.SchemaRejects.Load()),
		"transport_drops":   itoa(c.TransportDrops.Load()),
		"rule_parse_errors": itoa(c.RuleParseErrors.Load()),
		"spool_writes":      itoa(c.SpoolWrites.Load()),
		"spool_drains":      itoa(c.SpoolDrains.Load()),
		"probe_errors":      itoa(probeTotal),
	}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
