package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kernox/agent/internal/model"
)

func TestIsFanoutType_HeartbeatAndAlerts(t *testing.T) {
	assert.True(t, isFanoutType(model.Heartbeat))
	assert.True(t, isFanoutType(model.AlertRuleMatch))
	assert.True(t, isFanoutType(model.AlertRansomwareBurst))
}

func TestIsFanoutType_PassThroughEventsAreExcluded(t *testing.T) {
	assert.False(t, isFanoutType(model.ProcessStart))
	assert.False(t, isFanoutType(model.FileWrite))
	assert.False(t, isFanoutType(model.NetworkConnect))
}
