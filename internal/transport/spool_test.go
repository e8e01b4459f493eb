package transport

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

func testEvents(n int) []model.Event {
	evs := make([]model.Event, n)
	for i := range evs {
		evs[i] = model.Event{EventType: model.Heartbeat, Severity: model.SeverityInfo}
	}
	return evs
}

func TestSpool_AppendThenDrainUpTo_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.jsonl")
	s := NewSpool(path, metrics.New(nil))

	require.NoError(t, s.Append(testEvents(3)))

	drained, err := s.DrainUpTo(10)
	require.NoError(t, err)
	assert.Len(t, drained, 3)
}

// TestSpool_DrainUpTo_TruncatesWhenFullyDrained covers scenario S6's
// closing behavior: once the spool empties, the file is truncated to empty.
func TestSpool_DrainUpTo_TruncatesWhenFullyDrained(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.jsonl")
	s := NewSpool(path, metrics.New(nil))
	require.NoError(t, s.Append(testEvents(5)))

	drained, err := s.DrainUpTo(500)
	require.NoError(t, err)
	assert.Len(t, drained, 5)

	second, err := s.DrainUpTo(500)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestSpool_DrainUpTo_LeavesRemainderWhenLimited(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.jsonl")
	s := NewSpool(path, metrics.New(nil))
	require.NoError(t, s.Append(testEvents(10)))

	drained, err := s.DrainUpTo(4)
	require.NoError(t, err)
	assert.Len(t, drained, 4)

	remainder, err := s.DrainUpTo(100)
	require.NoError(t, err)
	assert.Len(t, remainder, 6)
}

func TestSpool_DrainUpTo_MissingFileReturnsNilNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent.jsonl")
	s := NewSpool(path, metrics.New(nil))

	drained, err := s.DrainUpTo(10)
	require.NoError(t, err)
	assert.Nil(t, drained)
}

// TestSpool_Append_HeadDropsOldestWhenOverCap covers the 100MiB head-drop
// cap (§4.7) against the real SpoolMaxBytes: five appends of one ~30MiB
// event each push the file over the cap from the fourth append on, and the
// test checks the newest line is still the last one left after head-drop.
func TestSpool_Append_HeadDropsOldestOverCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.jsonl")
	s := NewSpool(path, metrics.New(nil))

	// Build one event whose marshaled details payload is large enough that
	// a handful of them cross SpoolMaxBytes, without needing to iterate
	// millions of times in a unit test.
	big := strings.Repeat("x", 30*1024*1024)
	mk := func(tag string) model.Event {
		return model.Event{
			EventType: model.Heartbeat,
			Severity:  model.SeverityInfo,
			Alert:     &model.AlertPayload{Rule: tag, Details: map[string]string{"pad": big}},
		}
	}

	require.NoError(t, s.Append([]model.Event{mk("oldest")}))
	require.NoError(t, s.Append([]model.Event{mk("middle")}))
	require.NoError(t, s.Append([]model.Event{mk("middle2")}))
	require.NoError(t, s.Append([]model.Event{mk("middle3")}))
	require.NoError(t, s.Append([]model.Event{mk("newest")}))

	drained, err := s.DrainUpTo(500)
	require.NoError(t, err)
	require.NotEmpty(t, drained)
	assert.Equal(t, "newest", drained[len(drained)-1].Alert.Rule, "the most recently appended line must survive the cap")
}
