package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/config"
	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/rules"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLogger(&config.Config{EndpointID: "ep-1", LogLevel: "error"})
}

func TestLoadDir_SortedFilenameOrderBecomesEvaluationOrder(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "b_rule.yaml", "name: b\nconditions:\n  - field: event_type\n    operator: equals\n    value: x\n")
	writeRule(t, dir, "a_rule.yaml", "name: a\nconditions:\n  - field: event_type\n    operator: equals\n    value: x\n")

	loaded, err := rules.LoadDir(dir, testLogger(t), metrics.New(nil))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].Name)
	assert.Equal(t, "b", loaded[1].Name)
}

func TestLoadDir_SkipsInvalidFileRatherThanAborting(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "good.yaml", "name: good\nconditions:\n  - field: event_type\n    operator: equals\n    value: x\n")
	writeRule(t, dir, "bad.yaml", "name: bad\nconditions:\n  - field: event_type\n    operator: nonsense\n    value: x\n")

	counters := metrics.New(nil)
	loaded, err := rules.LoadDir(dir, testLogger(t), counters)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].Name)
	assert.Equal(t, uint64(1), counters.RuleParseErrors.Load())
}

func TestLoadDir_MissingDirectory_ReturnsEmptyNotError(t *testing.T) {
	loaded, err := rules.LoadDir(filepath.Join(t.TempDir(), "does-not-exist"), testLogger(t), metrics.New(nil))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadDir_IgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "rule.yaml", "name: r\nconditions:\n  - field: event_type\n    operator: equals\n    value: x\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a rule"), 0o644))

	loaded, err := rules.LoadDir(dir, testLogger(t), metrics.New(nil))
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func writeRule(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}
