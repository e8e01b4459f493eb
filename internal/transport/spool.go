package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

// SpoolMaxBytes caps the fallback spool file (SPEC_FULL.md §4.7).
const SpoolMaxBytes = 100 * 1024 * 1024

// SpoolDrainLimit bounds how many lines are drained ahead of new events on
// the next successful flush (SPEC_FULL.md §4.7).
const SpoolDrainLimit = 500

// Spool is the append-only JSON-Lines fallback file used when the backend
// is unreachable.
type Spool struct {
	mu       sync.Mutex
	path     string
	counters *metrics.Counters
}

// NewSpool returns a Spool for the file at path. It does not touch the
// file; Append creates the file and its directory as needed.
func NewSpool(path string, counters *metrics.Counters) *Spool {
	return &Spool{path: path, counters: counters}
}

// Append writes batch as JSON-Lines, head-dropping the oldest lines first
// if the file would exceed SpoolMaxBytes (SPEC_FULL.md §4.7/§7).
func (s *Spool) Append(batch []model.Event) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dirOf(s.path), 0o755); err != nil {
		return fmt.Errorf("spool: mkdir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("spool: open: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	for _, ev := range batch {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		lines = append(lines, data)
	}
	if len(lines) == 0 {
		return nil
	}

	if _, err := f.Seek(0, 2); err != nil {
		return fmt.Errorf("spool: seek end: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("spool: write: %w", err)
	}
	s.counters.IncSpoolWrites(uint64(len(lines)))

	return s.enforceCapLocked(f)
}

// enforceCapLocked head-drops the oldest lines until the file is at or
// under SpoolMaxBytes. Called with s.mu held.
func (s *Spool) enforceCapLocked(f *os.File) error {
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() <= SpoolMaxBytes {
		return nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), SpoolMaxBytes)

	var all [][]byte
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		all = append(all, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	size := int64(0)
	for _, l := range all {
		size += int64(len(l)) + 1
	}
	start := 0
	for size > SpoolMaxBytes && start < len(all) {
		size -= int64(len(all[start])) + 1
		start++
	}
	kept := all[start:]

	tmp := s.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, l := range kept {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	out.Close()
	return os.Rename(tmp, s.path)
}

// DrainUpTo reads up to n lines from the front of the spool, removing them,
// and returns the decoded events. Malformed lines are skipped.
func (s *Spool) DrainUpTo(n int) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("spool: open: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), SpoolMaxBytes)

	var drained []model.Event
	var remainder [][]byte
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if count < n {
			var ev model.Event
			if err := json.Unmarshal(line, &ev); err == nil {
				drained = append(drained, ev)
			}
			count++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		remainder = append(remainder, cp)
	}
	f.Close()

	if len(drained) == 0 {
		return nil, nil
	}
	s.counters.IncSpoolDrains(uint64(len(drained)))

	if len(remainder) == 0 {
		// Spool fully drained: truncate to empty (SPEC_FULL.md §8 S6).
		return drained, os.Truncate(s.path, 0)
	}

	tmp := s.path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return drained, err
	}
	w := bufio.NewWriter(out)
	for _, l := range remainder {
		w.Write(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return drained, err
	}
	out.Close()
	return drained, os.Rename(tmp, s.path)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
