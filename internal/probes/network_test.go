package probes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

func TestNetworkAdapter_ConnectRecord_EmitsNetworkConnect(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":20,"protocol":"tcp","dest_ip":"203.0.113.5","dest_port":443}` + "\n",
	))
	a := NewNetworkAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.NetworkConnect, ev.EventType)
	require.NotNil(t, ev.Network)
	assert.Equal(t, model.ProtoTCP, ev.Network.Protocol)
	assert.Equal(t, uint16(443), ev.Network.DestPort)
}

func TestNetworkAdapter_UDPProtocol_IsPreserved(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":20,"protocol":"udp","dest_ip":"203.0.113.5","dest_port":53}` + "\n",
	))
	a := NewNetworkAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.ProtoUDP, ev.Network.Protocol)
}

func TestNetworkAdapter_LoopbackDest_IsSuppressed(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":20,"protocol":"tcp","dest_ip":"127.0.0.1","dest_port":80}` + "\n",
	))
	a := NewNetworkAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	assert.Equal(t, 0, q.Len())
}

func TestNetworkAdapter_LinkLocalDest_IsSuppressed(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":20,"protocol":"tcp","dest_ip":"169.254.1.1","dest_port":80}` + "\n",
	))
	a := NewNetworkAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	assert.Equal(t, 0, q.Len())
}
