// Package ringebpf is the production probes.Source backed by a cilium/ebpf
// ring buffer map, matching the teacher's use of cilium/ebpf for program
// loading (internal/bpf) but specialized to reading records rather than
// attaching programs. The eBPF C program that fills the map is an opaque
// external collaborator (SPEC_FULL.md §1); this package only consumes it.
package ringebpf

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/ringbuf"

	"github.com/kernox/agent/internal/probes"
)

// Reader adapts a cilium/ebpf ring buffer map to probes.Source.
type Reader struct {
	rd *ringbuf.Reader
}

// Open pins to an existing ring buffer map (e.g. loaded by a sibling
// program-loading component) and returns a Reader.
func Open(m *ebpf.Map) (*Reader, error) {
	rd, err := ringbuf.NewReader(m)
	if err != nil {
		return nil, fmt.Errorf("ringebpf: open ring buffer: %w", err)
	}
	return &Reader{rd: rd}, nil
}

// OpenPinned loads the BPF_MAP_TYPE_RINGBUF map pinned at path (the
// eBPF loader's bpffs mount point for this probe, e.g.
// "/sys/fs/bpf/kernox/process") and opens a Reader over it. This is the
// production entry point: the loader is an external collaborator
// (SPEC_FULL.md §1) that pins its ring buffer maps before the agent starts.
func OpenPinned(path string) (*Reader, error) {
	m, err := ebpf.LoadPinnedMap(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ringebpf: load pinned map %s: %w", path, err)
	}
	rd, err := Open(m)
	if err != nil {
		m.Close()
		return nil, err
	}
	return rd, nil
}

// Next implements probes.Source. cilium/ebpf's ringbuf.Reader.Read blocks
// until a record or a Close(). Next has no poll timeout and never returns
// probes.ErrPollTimeout: it races the blocking read against ctx, so it
// returns when a record arrives or when ctx is canceled, at the cost of one
// extra goroutine per call. After a cancellation that goroutine stays
// blocked in Read until a record arrives or Close is called.
func (r *Reader) Next(ctx context.Context) ([]byte, error) {
	type result struct {
		rec ringbuf.Record
		err error
	}
	done := make(chan result, 1)
	go func() {
		rec, err := r.rd.Read()
		done <- result{rec, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.rec.RawSample, nil
	}
}

// Close releases the underlying ring buffer reader, unblocking any
// in-flight Read call.
func (r *Reader) Close() error {
	return r.rd.Close()
}

var _ probes.Source = (*Reader)(nil)
