package transport

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
)

// BatchSize is the number of events that triggers an immediate flush,
// independent of FlushInterval (SPEC_FULL.md §4.7).
const BatchSize = 50

// FlushInterval is the maximum time a partial batch waits before flushing
// (SPEC_FULL.md §4.7).
const FlushInterval = 2 * time.Second

// MaxConsecutiveFailures is the number of failed flush attempts after which
// every batch buffered during that run of failures is handed to the
// fallback spool and the retry counter resets (SPEC_FULL.md §4.7).
const MaxConsecutiveFailures = 5

// BackoffBase and BackoffCap bound the exponential-backoff-with-full-jitter
// delay between retries (SPEC_FULL.md §4.7).
const (
	BackoffBase = 1 * time.Second
	BackoffCap  = 60 * time.Second
)

const requestTimeout = 10 * time.Second

// HTTPTransport batches events and POSTs them to a backend, falling back to
// a spool file when the backend is unreachable.
type HTTPTransport struct {
	endpointURL string
	client      *http.Client
	spool       *Spool
	counters    *metrics.Counters
	log         *logging.Logger

	queueCap int
	mu       sync.Mutex
	queue    []model.Event

	// failedBuf accumulates batches from a run of failed flushes so none of
	// them are lost before the run either recovers or crosses
	// MaxConsecutiveFailures and gets spooled as one unit.
	failedBuf []model.Event

	drainCh chan struct{}
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewHTTPTransport builds an HTTP batch transport posting to
// backendURL + "/events".
func NewHTTPTransport(backendURL string, queueCap int, spool *Spool, counters *metrics.Counters, log *logging.Logger) *HTTPTransport {
	return &HTTPTransport{
		endpointURL: backendURL + "/events",
		client:      &http.Client{Timeout: requestTimeout},
		spool:       spool,
		counters:    counters,
		log:         log.WithComponent("transport_http"),
		queueCap:    queueCap,
		drainCh:     make(chan struct{}, 1),
	}
}

// Start launches the dispatcher goroutine.
func (t *HTTPTransport) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go t.run(ctx)
}

// Stop cancels the dispatcher and flushes whatever remains in the queue,
// synchronously, best-effort.
func (t *HTTPTransport) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()

	t.mu.Lock()
	remaining := t.queue
	t.queue = nil
	t.mu.Unlock()
	if len(remaining) > 0 {
		if err := t.flush(remaining); err != nil {
			t.spool.Append(remaining)
		}
	}
	t.spoolFailedBuf()
}

// Enqueue appends ev to the pending batch. When the queue is at capacity the
// oldest event is dropped to make room (SPEC_FULL.md §4.7 backpressure).
func (t *HTTPTransport) Enqueue(ev model.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) >= t.queueCap {
		t.queue = t.queue[1:]
		t.counters.IncTransportDrops()
	}
	t.queue = append(t.queue, ev)
	full := len(t.queue) >= BatchSize
	if full {
		select {
		case t.drainCh <- struct{}{}:
		default:
		}
	}
	return true
}

func (t *HTTPTransport) run(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			consecutiveFailures = t.drainAndSend(consecutiveFailures)
		case <-t.drainCh:
			consecutiveFailures = t.drainAndSend(consecutiveFailures)
		}
	}
}

// drainAndSend sends one batch. A failed attempt is buffered rather than
// dropped, so a run of failures up to MaxConsecutiveFailures spools every
// batch in that run together (SPEC_FULL.md §4.7/§8 S6), not just the last.
func (t *HTTPTransport) drainAndSend(consecutiveFailures int) int {
	batch := t.takeBatch()
	if len(batch) == 0 {
		return consecutiveFailures
	}

	if err := t.flushWithBackoff(batch, consecutiveFailures); err != nil {
		consecutiveFailures++
		t.failedBuf = append(t.failedBuf, batch...)
		if consecutiveFailures >= MaxConsecutiveFailures {
			t.spoolFailedBuf()
			return 0
		}
		return consecutiveFailures
	}
	t.spoolFailedBuf()
	t.drainSpoolAhead()
	return 0
}

// spoolFailedBuf flushes any buffered failed-batch events to the fallback
// spool and clears the buffer. A no-op when nothing is buffered.
func (t *HTTPTransport) spoolFailedBuf() {
	if len(t.failedBuf) == 0 {
		return
	}
	t.log.LogTransportEvent("spooled", "batch_size", len(t.failedBuf))
	t.spool.Append(t.failedBuf)
	t.failedBuf = nil
}

// flushWithBackoff attempts one flush. On failure it sleeps for
// backoffDelay(priorFailures), exponential backoff with full jitter capped
// at BackoffCap, and returns the error; it does not resend the batch.
func (t *HTTPTransport) flushWithBackoff(batch []model.Event, priorFailures int) error {
	err := t.flush(batch)
	if err == nil {
		return nil
	}
	t.log.LogTransportEvent("flush_failed", "error", err.Error())

	delay := backoffDelay(priorFailures)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C

	return err
}

// backoffDelay computes exponential backoff with full jitter:
// delay = random(0, min(cap, base*2^attempt)).
func backoffDelay(attempt int) time.Duration {
	max := BackoffBase << attempt
	if max <= 0 || max > BackoffCap {
		max = BackoffCap
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func (t *HTTPTransport) takeBatch() []model.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil
	}
	n := len(t.queue)
	if n > BatchSize {
		n = BatchSize
	}
	batch := t.queue[:n]
	t.queue = t.queue[n:]
	return batch
}

// drainSpoolAhead drains up to SpoolDrainLimit events from the fallback
// spool and re-enqueues them ahead of the live queue, so a backlog from a
// prior outage empties before new traffic dominates the batches.
func (t *HTTPTransport) drainSpoolAhead() {
	drained, err := t.spool.DrainUpTo(SpoolDrainLimit)
	if err != nil || len(drained) == 0 {
		return
	}
	t.mu.Lock()
	t.queue = append(drained, t.queue...)
	t.mu.Unlock()
}

func (t *HTTPTransport) flush(batch []model.Event) error {
	body, err := marshalBatch(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpointURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Kernox-Agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Transport = (*HTTPTransport)(nil)
