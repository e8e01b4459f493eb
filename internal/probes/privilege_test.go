package probes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

func TestPrivilegeAdapter_RootEscalation_IsCriticalSeverity(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":30,"old_uid":1000,"new_uid":0}` + "\n",
	))
	a := NewPrivilegeAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.PrivilegeChange, ev.EventType)
	assert.Equal(t, model.SeverityCritical, ev.Severity)
}

func TestPrivilegeAdapter_NonRootTransition_IsMediumSeverity(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":30,"old_uid":1000,"new_uid":1001}` + "\n",
	))
	a := NewPrivilegeAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.SeverityMedium, ev.Severity)
}

func TestPrivilegeAdapter_AlreadyRoot_IsNotCritical(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":30,"old_uid":0,"new_uid":0}` + "\n",
	))
	a := NewPrivilegeAdapter(src, emitter, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.SeverityMedium, ev.Severity)
}
