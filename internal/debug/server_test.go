package debug

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/config"
	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
)

type fakeStatus struct {
	endpointID  string
	uptime      time.Duration
	lineageSize int
	rulesLoaded int
}

func (f fakeStatus) EndpointID() string    { return f.endpointID }
func (f fakeStatus) Uptime() time.Duration { return f.uptime }
func (f fakeStatus) LineageSize() int      { return f.lineageSize }
func (f fakeStatus) RulesLoaded() int      { return f.rulesLoaded }

func testServer() *Server {
	log := logging.NewLogger(&config.Config{EndpointID: "ep-1", LogLevel: "error"})
	status := fakeStatus{endpointID: "ep-1", uptime: 5 * time.Second, lineageSize: 3, rulesLoaded: 2}
	return New(":0", metrics.New(nil), status, log)
}

func TestHandleHealth_ReportsOKAndEndpointID(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ep-1", body["endpoint_id"])
}

func TestHandleStatus_ReportsLineageAndRuleCounts(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()

	s.handleStatus(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ep-1", body["endpoint_id"])
	assert.Equal(t, float64(3), body["lineage_size"])
	assert.Equal(t, float64(2), body["rules_loaded"])
	assert.Contains(t, body, "counters")
}
