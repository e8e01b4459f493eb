package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kernox/agent/internal/metrics"
)

func TestNew_NilRegistererSkipsPrometheus(t *testing.T) {
	c := metrics.New(nil)
	c.IncSchemaRejects()
	assert.Equal(t, uint64(1), c.SchemaRejects.Load())
}

func TestIncMethods_UpdateAtomicCounters(t *testing.T) {
	c := metrics.New(nil)

	c.IncSchemaRejects()
	c.IncSchemaRejects()
	c.IncTransportDrops()
	c.IncRuleParseErrors()
	c.IncSpoolWrites(3)
	c.IncSpoolDrains(2)

	assert.Equal(t, uint64(2), c.SchemaRejects.Load())
	assert.Equal(t, uint64(1), c.TransportDrops.Load())
	assert.Equal(t, uint64(1), c.RuleParseErrors.Load())
	assert.Equal(t, uint64(3), c.SpoolWrites.Load())
	assert.Equal(t, uint64(2), c.SpoolDrains.Load())
}

func TestIncProbeError_AggregatesAcrossAdapters(t *testing.T) {
	c := metrics.New(nil)
	c.IncProbeError("dns")
	c.IncProbeError("dns")
	c.IncProbeError("auth")

	snap := c.Snapshot()
	assert.Equal(t, "3", snap["probe_errors"])
}

func TestSnapshot_ReflectsAllCounters(t *testing.T) {
	c := metrics.New(nil)
	c.IncSchemaRejects()
	c.IncTransportDrops()
	c.IncRuleParseErrors()
	c.IncSpoolWrites(5)
	c.IncSpoolDrains(4)
	c.IncProbeError("process")

	snap := c.Snapshot()
	assert.Equal(t, "1", snap["schema_rejects"])
	assert.Equal(t, "1", snap["transport_drops"])
	assert.Equal(t, "1", snap["rule_parse_errors"])
	assert.Equal(t, "5", snap["spool_writes"])
	assert.Equal(t, "4", snap["spool_drains"])
	assert.Equal(t, "1", snap["probe_errors"])
}

func TestSnapshot_ZeroCountersRenderAsZeroString(t *testing.T) {
	c := metrics.New(nil)
	snap := c.Snapshot()
	for _, v := range snap {
		assert.Equal(t, "0", v)
	}
}
