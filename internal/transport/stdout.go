package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/kernox/agent/internal/model"
)

// StdoutTransport writes line-delimited JSON to an output writer, no
// batching (SPEC_FULL.md §4.7).
type StdoutTransport struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewStdoutTransport wraps w (os.Stdout in production, a bytes.Buffer in
// tests).
func NewStdoutTransport(w io.Writer) *StdoutTransport {
	return &StdoutTransport{w: bufio.NewWriter(w)}
}

func (t *StdoutTransport) Start() {}

func (t *StdoutTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Flush()
}

// Enqueue writes ev immediately; stdout mode has no queue or backpressure
// to speak of, so Enqueue reports false only when ev cannot be marshaled.
func (t *StdoutTransport) Enqueue(ev model.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Write(data)
	t.w.WriteByte('\n')
	t.w.Flush()
	return true
}

var _ Transport = (*StdoutTransport)(nil)
