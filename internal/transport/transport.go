// Package transport implements C7: stdout/HTTP delivery, batching, retry
// with backoff and full jitter, and a fallback spool file
// (SPEC_FULL.md §4.7).
package transport

import (
	"encoding/json"

	"github.com/kernox/agent/internal/model"
)

// Transport is the common interface the orchestrator drives: Enqueue
// accepts one event (pass-through or alert) for eventual delivery.
type Transport interface {
	Enqueue(ev model.Event) bool
	Start()
	Stop()
}

func marshalBatch(batch []model.Event) ([]byte, error) {
	return json.Marshal(batch)
}
