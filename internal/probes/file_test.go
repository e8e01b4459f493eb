package probes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

func TestFileAdapter_WriteOutsideNoiseDirs_EmitsFileWrite(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":50,"op":"write","path":"/home/alice/notes.txt"}` + "\n",
	))
	a := NewFileAdapter(src, emitter, nil, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	assert.Equal(t, model.FileWrite, ev.EventType)
	require.NotNil(t, ev.File)
	assert.Equal(t, "/home/alice/notes.txt", ev.File.Path)
}

func TestFileAdapter_PathUnderProc_IsSuppressed(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":50,"op":"write","path":"/proc/50/status"}` + "\n",
	))
	a := NewFileAdapter(src, emitter, nil, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	assert.Equal(t, 0, q.Len())
}

func TestFileAdapter_AgentSelfPath_IsSuppressed(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":50,"op":"write","path":"/var/lib/kernox/fallback.jsonl"}` + "\n",
	))
	a := NewFileAdapter(src, emitter, []string{"/var/lib/kernox"}, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	assert.Equal(t, 0, q.Len())
}

func TestFileAdapter_RenameCarriesOldPath(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":50,"op":"rename","path":"/tmp/b","old_path":"/tmp/a"}` + "\n",
	))
	a := NewFileAdapter(src, emitter, nil, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	ev := drainOne(t, q)
	require.NotNil(t, ev.File.OldPath)
	assert.Equal(t, "/tmp/a", *ev.File.OldPath)
}

func TestFileAdapter_UnknownOp_IsIgnored(t *testing.T) {
	emitter, q := testEmitter()
	src := NewJSONLineSource(strings.NewReader(
		`{"pid":50,"op":"chmod","path":"/tmp/x"}` + "\n",
	))
	a := NewFileAdapter(src, emitter, nil, testLog(), metrics.New(nil))

	runAndStop(t, a.Run)

	assert.Equal(t, 0, q.Len())
}
