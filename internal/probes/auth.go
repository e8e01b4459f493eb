package probes

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

var (
	sshAcceptRE = regexp.MustCompile(`Accepted \S+ for (\S+) from (\S+)`)
	sshFailRE   = regexp.MustCompile(`Failed \S+ for (?:invalid user )?(\S+) from (\S+)`)
	sudoRE      = regexp.MustCompile(`sudo:.*?(\S+) : .*COMMAND=`)
)

// AuthAdapter tails an auth log file (inode + byte offset tracked, reset on
// inode change or truncation) and emits auth_* events (SPEC_FULL.md §4.4).
type AuthAdapter struct {
	path     string
	emitter  *schema.Emitter
	log      *logging.Logger
	counters *metrics.Counters

	inode  uint64
	offset int64
}

// NewAuthAdapter constructs the adapter against path (SPEC_FULL.md §6:
// KERNOX_AUTH_LOG_PATH, default /var/log/auth.log).
func NewAuthAdapter(path string, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) *AuthAdapter {
	return &AuthAdapter{path: path, emitter: emitter, log: log.WithComponent("probe.auth"), counters: counters}
}

// Run polls the log file every PollInterval until ctx is canceled.
func (a *AuthAdapter) Run(ctx context.Context) {
	a.log.LogProbeEvent("probe_started")
	defer a.log.LogProbeEvent("probe_stopped")

	ticker := time.NewTicker(PollInterval)
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

func (a *AuthAdapter) poll() {
	f, err := os.Open(a.path)
	if err != nil {
		// File not yet created: retry next tick (original_source
		// auth_monitor.py behavior), not a probe error.
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		a.counters.IncProbeError("auth")
		return
	}

	inode := statInode(a.path)
	if a.inode != 0 && (inode != a.inode || st.Size() < a.offset) {
		// Rotation (inode changed) or truncation-in-place: reset to start.
		a.offset = 0
	}
	a.inode = inode

	if st.Size() < a.offset {
		a.offset = 0
	}

	if _, err := f.Seek(a.offset, io.SeekStart); err != nil {
		a.counters.IncProbeError("auth")
		return
	}

	scanner := bufio.NewScanner(f)
	var consumed int64
	for scanner.Scan() {
		line := scanner.Text()
		consumed += int64(len(line)) + 1
		a.handleLine(line)
	}
	a.offset += consumed
}

func (a *AuthAdapter) handleLine(line string) {
	if m := sshAcceptRE.FindStringSubmatch(line); m != nil {
		user, ip := m[1], m[2]
		a.emitter.Emit(model.Event{
			EventType: model.AuthLoginSuccess,
			Severity:  model.SeverityInfo,
			Auth: &model.AuthPayload{
				Source:   model.AuthSourceSSH,
				User:     user,
				SourceIP: &ip,
				Outcome:  model.AuthOutcomeSuccess,
			},
		})
		return
	}
	if m := sshFailRE.FindStringSubmatch(line); m != nil {
		user, ip := m[1], m[2]
		a.emitter.Emit(model.Event{
			EventType: model.AuthLoginFailure,
			Severity:  model.SeverityMedium,
			Auth: &model.AuthPayload{
				Source:   model.AuthSourceSSH,
				User:     user,
				SourceIP: &ip,
				Outcome:  model.AuthOutcomeFailure,
			},
		})
		return
	}
	if m := sudoRE.FindStringSubmatch(line); m != nil {
		user := m[1]
		a.emitter.Emit(model.Event{
			EventType: model.AuthSudo,
			Severity:  model.SeverityLow,
			Auth: &model.AuthPayload{
				Source:  model.AuthSourceSudo,
				User:    user,
				Outcome: model.AuthOutcomeSuccess,
			},
		})
	}
}
