// Package probes implements the per-source adapters of SPEC_FULL.md §4.4:
// process, file, network, privilege, DNS, auth-log, and log-tamper. Each
// adapter runs on its own worker and translates a raw record into canonical
// events via a shared *schema.Emitter.
package probes

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"
)

// ErrPollTimeout is returned by Source.Next when no record arrived within
// the adapter's poll interval, letting the adapter loop re-check for
// cancellation (SPEC_FULL.md §5: "poll with 100 ms timeout so shutdown is
// responsive").
var ErrPollTimeout = errors.New("probes: poll timeout")

// PollInterval is the auth adapter's log-file poll cadence. Ring-backed
// adapters do not use it; their Source decides how long Next blocks.
const PollInterval = 100 * time.Millisecond

// Source produces raw records for one probe adapter. The eBPF C programs
// that populate the real ring/perf channel are an opaque external
// collaborator (SPEC_FULL.md §1); production code wires a ring-buffer-backed
// Source (see internal/probes/ringebpf), while tests and local development
// wire NewJSONLineSource over a plain io.Reader.
type Source interface {
	// Next returns the next raw record. It may return ErrPollTimeout if no
	// record arrived in its poll window, io.EOF if the source is exhausted
	// and will never produce more, ctx.Err() once ctx is canceled, or another
	// error on a read failure. Neither Source in this tree returns
	// ErrPollTimeout: the JSON-line Source never blocks on a timer, and the
	// ringebpf Source blocks until a record arrives or ctx is canceled.
	Next(ctx context.Context) ([]byte, error)
}

// jsonLineSource reads newline-delimited JSON records from an io.Reader.
// Used by tests and by non-eBPF deployments (SPEC_FULL.md §4.4 FULL note).
type jsonLineSource struct {
	scanner *bufio.Scanner
	done    bool
}

// NewJSONLineSource wraps r as a Source of NDJSON records.
func NewJSONLineSource(r io.Reader) Source {
	return &jsonLineSource{scanner: bufio.NewScanner(r)}
}

func (s *jsonLineSource) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.scanner.Scan() {
		line := s.scanner.Bytes()
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// decode is a small helper adapters use to unmarshal their raw-record
// shape, returning ok=false (never an error) on malformed JSON so the
// caller can count it as a probe read error and continue.
func decode[T any](raw []byte) (T, bool) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}
