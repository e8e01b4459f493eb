package probes

import (
	"context"
	"os"
	"time"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// DefaultWatchedLogs is the fixed list of 7 log paths SPEC_FULL.md §4.4
// names for tamper monitoring.
var DefaultWatchedLogs = []string{
	"/var/log/auth.log",
	"/var/log/syslog",
	"/var/log/kern.log",
	"/var/log/audit/audit.log",
	"/var/log/secure",
	"/var/log/messages",
	"/var/log/wtmp",
}

// DefaultLogTamperInterval is the default poll cadence (SPEC_FULL.md §4.4).
const DefaultLogTamperInterval = 10 * time.Second

type logSnapshot struct {
	exists bool
	size   int64
	inode  uint64
	mode   os.FileMode
	mtime  time.Time
}

// LogTamperAdapter periodically snapshots a fixed set of log files and
// emits alert_log_tamper on vanish/truncate/inode-swap/permission-loosen.
type LogTamperAdapter struct {
	paths    []string
	interval time.Duration
	emitter  *schema.Emitter
	log      *logging.Logger
	counters *metrics.Counters

	prev map[string]logSnapshot
}

// NewLogTamperAdapter constructs the adapter over paths, polling every
// interval (defaults applied by the caller if zero values are passed).
func NewLogTamperAdapter(paths []string, interval time.Duration, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *LogTamperAdapter {
	if len(paths) == 0 {
		paths = DefaultWatchedLogs
	}
	if interval <= 0 {
		interval = DefaultLogTamperInterval
	}
	return &LogTamperAdapter{
		paths:    paths,
		interval: interval,
		emitter:  emitter,
		log:      log.WithComponent("probe.logtamper"),
		counters: counters,
		prev:     make(map[string]logSnapshot),
	}
}

func (a *LogTamperAdapter) Run(ctx context.Context) {
	a.log.LogProbeEvent("probe_started")
	defer a.log.LogProbeEvent("probe_stopped")

	// Seed the baseline snapshot before the first comparison so startup
	// never fires a spurious "deleted" alert for files that simply haven't
	// been observed yet.
	a.snapshotAll()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.poll()
		}
	}
}

func (a *LogTamperAdapter) snapshotAll() {
	for _, p := range a.paths {
		a.prev[p] = snapshotPath(p)
	}
}

func (a *LogTamperAdapter) poll() {
	for _, p := range a.paths {
		cur := snapshotPath(p)
		prev, known := a.prev[p]
		a.prev[p] = cur
		if !known {
			continue
		}
		a.compare(p, prev, cur)
	}
}

func (a *LogTamperAdapter) compare(path string, prev, cur logSnapshot) {
	var reason string
	switch {
	case prev.exists && !cur.exists:
		reason = "deleted"
	case prev.exists && cur.exists && cur.size < prev.size:
		reason = "truncated"
	case prev.exists && cur.exists && cur.inode != prev.inode:
		reason = "inode_swap"
	case prev.exists && cur.exists && modeLoosened(prev.mode, cur.mode):
		reason = "permission_change"
	default:
		return
	}

	a.emitter.Emit(model.Event{
		EventType: model.AlertLogTamper,
		Severity:  model.SeverityHigh,
		Alert: &model.AlertPayload{
			Rule: "log_tamper",
			Details: map[string]string{
				"path":   path,
				"reason": reason,
			},
		},
	})
}

// modeLoosened reports whether cur grants any permission bit prev did not.
func modeLoosened(prev, cur os.FileMode) bool {
	return cur.Perm()&^prev.Perm() != 0
}

func snapshotPath(path string) logSnapshot {
	fi, err := os.Stat(path)
	if err != nil {
		return logSnapshot{exists: false}
	}
	return logSnapshot{
		exists: true,
		size:   fi.Size(),
		inode:  statInode(path),
		mode:   fi.Mode(),
		mtime:  fi.ModTime(),
	}
}
