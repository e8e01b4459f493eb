package agent

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/bus"
	"github.com/kernox/agent/internal/config"
	"github.com/kernox/agent/internal/container"
	"github.com/kernox/agent/internal/detect"
	"github.com/kernox/agent/internal/lineage"
	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/rules"
	"github.com/kernox/agent/internal/schema"
	"github.com/kernox/agent/internal/transport"
)

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	counters := metrics.New(nil)
	eventBus := bus.New[model.Event](64)
	emitter := schema.New(model.Endpoint{EndpointID: "ep-1"}, eventBus, counters)
	evaluator := rules.NewEvaluator(nil, emitter)
	return &Agent{
		cfg:        &config.Config{EndpointID: "ep-1"},
		log:        logging.NewLogger(&config.Config{EndpointID: "ep-1", LogLevel: "error"}),
		counters:   counters,
		bus:        eventBus,
		emitter:    emitter,
		lineage:    lineage.New(),
		classifier: container.New(64),
		detectors:  detect.New(emitter, 0),
		evaluator:  evaluator,
		transport:  transport.NewStdoutTransport(&bytes.Buffer{}),
	}
}

func TestEnrich_FillsProcessFieldsFromLineage(t *testing.T) {
	a := newTestAgent(t)
	a.updateLineage(model.Event{
		EventType: model.ProcessStart,
		Process:   &model.ProcessPayload{PID: 10, PPID: 1, Name: "bash", Path: "/bin/bash", User: "root"},
	})

	bare := model.Event{EventType: model.NetworkConnect, Process: &model.ProcessPayload{PID: 10}}
	enriched := a.enrich(bare)

	require.NotNil(t, enriched.Process)
	assert.Equal(t, "bash", enriched.Process.Name)
	assert.Equal(t, "/bin/bash", enriched.Process.Path)
	assert.Equal(t, "root", enriched.Process.User)
	assert.Equal(t, uint32(1), enriched.Process.PPID)
}

func TestEnrich_IsIdempotentOnSecondApplication(t *testing.T) {
	a := newTestAgent(t)
	a.updateLineage(model.Event{
		EventType: model.ProcessStart,
		Process:   &model.ProcessPayload{PID: 10, PPID: 1, Name: "bash", Path: "/bin/bash", User: "root"},
	})

	bare := model.Event{EventType: model.NetworkConnect, Process: &model.ProcessPayload{PID: 10}}
	once := a.enrich(bare)
	twice := a.enrich(once)

	assert.Equal(t, once, twice)
}

func TestEnrich_UnknownPID_LeavesEventUnchanged(t *testing.T) {
	a := newTestAgent(t)
	bare := model.Event{EventType: model.NetworkConnect, Process: &model.ProcessPayload{PID: 999}}
	enriched := a.enrich(bare)
	assert.Equal(t, "", enriched.Process.Name)
}

func TestEnrich_NoProcessSlot_ReturnsUnchanged(t *testing.T) {
	a := newTestAgent(t)
	ev := model.Event{EventType: model.Heartbeat}
	assert.Equal(t, ev, a.enrich(ev))
}

func TestUpdateLineage_ProcessStopTombstonesLineageNode(t *testing.T) {
	a := newTestAgent(t)
	a.updateLineage(model.Event{
		EventType: model.ProcessStart,
		Process:   &model.ProcessPayload{PID: 11, PPID: 1, Name: "sh", Path: "/bin/sh", User: "root"},
	})
	_, ok := a.lineage.Lookup(11)
	require.True(t, ok)

	a.updateLineage(model.Event{EventType: model.ProcessStop, Process: &model.ProcessPayload{PID: 11}})
	node, ok := a.lineage.Lookup(11)
	require.True(t, ok)
	assert.Equal(t, uint32(11), node.PID)
	assert.True(t, node.Tombstoned)
}

func TestProcess_PipelineEnrichesAndForwardsToTransport(t *testing.T) {
	a := newTestAgent(t)
	a.updateLineage(model.Event{
		EventType: model.ProcessStart,
		Process:   &model.ProcessPayload{PID: 20, PPID: 1, Name: "curl", Path: "/usr/bin/curl", User: "alice"},
	})

	a.process(model.Event{
		EventType: model.NetworkConnect,
		Process:   &model.ProcessPayload{PID: 20},
		Network:   &model.NetworkPayload{Protocol: model.ProtoTCP, DestIP: "203.0.113.9", DestPort: 443},
	})

	assert.Equal(t, uint64(0), a.counters.TransportDrops.Load())
}
