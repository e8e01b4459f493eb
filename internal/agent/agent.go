// Package agent implements C8: the orchestrator that wires every probe
// adapter, the lineage graph, the container classifier, the temporal
// detectors, the rule engine, and the transport into one event pipeline
// (SPEC_FULL.md §4.8/§5).
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kernox/agent/internal/bus"
	"github.com/kernox/agent/internal/config"
	"github.com/kernox/agent/internal/container"
	"github.com/kernox/agent/internal/debug"
	"github.com/kernox/agent/internal/detect"
	"github.com/kernox/agent/internal/lineage"
	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/metrics"
	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/probes"
	"github.com/kernox/agent/internal/probes/ringebpf"
	"github.com/kernox/agent/internal/rules"
	"github.com/kernox/agent/internal/schema"
	"github.com/kernox/agent/internal/systemd"
	"github.com/kernox/agent/internal/transport"
)

// classifierCacheSize bounds the container classifier's per-pid LRU cache.
const classifierCacheSize = 8192

// lineageGCInterval is how often the orchestrator purges expired tombstones
// from the lineage graph.
const lineageGCInterval = 10 * time.Second

// shutdownFlushTimeout bounds how long shutdown waits for the adapter and
// worker goroutines to exit. The transport's final Stop runs after that wait
// and is not bounded by this timeout; the HTTP transport's final flush is
// bounded only by its own per-request timeout.
const shutdownFlushTimeout = 30 * time.Second

// Agent is the C8 orchestrator.
type Agent struct {
	cfg      *config.Config
	log      *logging.Logger
	counters *metrics.Counters

	bus        *bus.Queue[model.Event]
	emitter    *schema.Emitter
	lineage    *lineage.Graph
	classifier *container.Classifier
	detectors  *detect.Detectors
	evaluator  *rules.Evaluator
	transport  transport.Transport
	spool      *transport.Spool
	debugSrv   *debug.Server
	notifier   *systemd.Notifier

	adapters []adapter

	startTime time.Time
	wg        sync.WaitGroup
}

type adapter interface {
	Run(ctx context.Context)
}

// New constructs the agent from cfg. It loads the rule set and builds every
// adapter, but starts nothing; call Run to start the pipeline.
func New(cfg *config.Config, log *logging.Logger) (*Agent, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	endpoint := model.Endpoint{EndpointID: cfg.EndpointID, Hostname: hostname}

	counters := metrics.New(prometheus.DefaultRegisterer)
	eventBus := bus.New[model.Event](cfg.QueueCapacity)
	emitter := schema.New(endpoint, eventBus, counters)

	lineageGraph := lineage.New()
	classifier := container.New(classifierCacheSize)
	detectors := detect.New(emitter, cfg.DetectorCooldown)

	ruleSet, err := rules.LoadDir(cfg.RulesDir, log, counters)
	if err != nil {
		return nil, fmt.Errorf("agent: load rules: %w", err)
	}
	evaluator := rules.NewEvaluator(ruleSet, emitter)

	tp, spool, err := buildTransport(cfg, counters, log)
	if err != nil {
		return nil, fmt.Errorf("agent: build transport: %w", err)
	}

	a := &Agent{
		cfg:        cfg,
		log:        log,
		counters:   counters,
		bus:        eventBus,
		emitter:    emitter,
		lineage:    lineageGraph,
		classifier: classifier,
		detectors:  detectors,
		evaluator:  evaluator,
		transport:  tp,
		spool:      spool,
		notifier:   systemd.NewNotifier(),
		startTime:  time.Now(),
	}

	a.adapters = buildAdapters(cfg, emitter, log, counters)

	if cfg.DebugListenAddr != "" {
		a.debugSrv = debug.New(cfg.DebugListenAddr, counters, a, log)
	}

	return a, nil
}

func buildTransport(cfg *config.Config, counters *metrics.Counters, log *logging.Logger) (transport.Transport, *transport.Spool, error) {
	spool := transport.NewSpool(cfg.FallbackSpoolPath, counters)

	var tp transport.Transport
	switch cfg.OutputMode {
	case config.OutputHTTP:
		tp = transport.NewHTTPTransport(cfg.BackendURL, cfg.QueueCapacity, spool, counters, log)
	default:
		tp = transport.NewStdoutTransport(os.Stdout)
	}

	if cfg.OutputMode == config.OutputHTTP && cfg.NATSURL != "" {
		subject := "kernox.events." + cfg.EndpointID
		fanout, err := transport.NewNATSFanout(tp, cfg.NATSURL, subject, log)
		if err != nil {
			log.LogSystemEvent("nats_connect_failed", "error", err.Error())
			return tp, spool, nil
		}
		return fanout, spool, nil
	}
	return tp, spool, nil
}

// ringMapNames are the pinned-map filenames the eBPF loader (an external
// collaborator per SPEC_FULL.md §1) is expected to produce under
// cfg.RingMapDir, one BPF_MAP_TYPE_RINGBUF per ring-backed adapter.
var ringMapNames = []string{"process", "file", "network", "privilege", "dns"}

// buildAdapters constructs every probe adapter. Each ring-backed adapter
// (process/file/network/privilege/dns) gets its own Source, opened against
// cfg.RingMapDir via internal/probes/ringebpf when configured. A source that
// fails to open (map missing, dev workstation with no loader, RingMapDir
// unset) falls back to an exhausted source, logged explicitly so the
// fallback is never silent; the log-based auth/log-tamper adapters and the
// rest of the pipeline still start regardless.
func buildAdapters(cfg *config.Config, emitter *schema.Emitter, log *logging.Logger, counters *metrics.Counters) []adapter {
	agentSelfPaths := []string{cfg.FallbackSpoolPath, cfg.PIDFile}
	sources := make(map[string]probes.Source, len(ringMapNames))
	for _, name := range ringMapNames {
		sources[name] = openRingSource(cfg, name, log)
	}

	return []adapter{
		probes.NewProcessAdapter(sources["process"], emitter, log, counters),
		probes.NewFileAdapter(sources["file"], emitter, agentSelfPaths, log, counters),
		probes.NewNetworkAdapter(sources["network"], emitter, log, counters),
		probes.NewPrivilegeAdapter(sources["privilege"], emitter, log, counters),
		probes.NewDNSAdapter(sources["dns"], emitter, log, counters),
		probes.NewAuthAdapter(cfg.AuthLogPath, emitter, log, counters),
		probes.NewLogTamperAdapter(probes.DefaultWatchedLogs, probes.DefaultLogTamperInterval, emitter, log, counters),
	}
}

// openRingSource opens the pinned ring buffer map cfg.RingMapDir/name via
// ringebpf.OpenPinned. cfg.RingMapDir empty, or the map failing to open
// (no loader running, missing kernel feature), falls back to an exhausted
// source rather than treating it as fatal — SPEC_FULL.md §7 reserves fatal
// startup failure for eBPF *load* failure in the loader itself, not for this
// agent's inability to find its pinned maps in a dev environment.
func openRingSource(cfg *config.Config, name string, log *logging.Logger) probes.Source {
	if cfg.RingMapDir != "" {
		path := filepath.Join(cfg.RingMapDir, name)
		rd, err := ringebpf.OpenPinned(path)
		if err == nil {
			return rd
		}
		log.LogSystemEvent("ring_map_open_failed", "probe", name, "path", path, "error", err.Error())
	}
	log.LogSystemEvent("ring_source_fallback", "probe", name, "mode", "exhausted")
	return probes.NewJSONLineSource(exhaustedReader{})
}

// exhaustedReader satisfies io.Reader by immediately returning
// errNoRingSource. Wrapped in a JSON-line probes.Source, it backs an adapter
// that has no real eBPF map wired at startup time: the first Next returns
// that error and the adapter's Run exits.
type exhaustedReader struct{}

func (exhaustedReader) Read(p []byte) (int, error) { return 0, errNoRingSource }

var errNoRingSource = fmt.Errorf("agent: no ring source wired")

// Run starts every adapter, the transport, the debug listener (if
// configured), the heartbeat loop, and the orchestrator worker that drains
// the bus. It blocks until ctx is canceled, then runs the shutdown sequence.
func (a *Agent) Run(ctx context.Context) error {
	a.log.LogSystemEvent("agent_started", "endpoint_id", a.cfg.EndpointID, "output_mode", string(a.cfg.OutputMode))

	a.transport.Start()

	for _, ad := range a.adapters {
		a.wg.Add(1)
		go func(ad adapter) {
			defer a.wg.Done()
			ad.Run(ctx)
		}(ad)
	}

	if a.debugSrv != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.debugSrv.Start(ctx)
		}()
	}

	if a.notifier.IsAvailable() {
		if err := a.notifier.NotifyReady(); err != nil {
			a.log.LogSystemEvent("systemd_notify_failed", "error", err.Error())
		}
		a.notifier.StartWatchdog(ctx, 30*time.Second, a.log)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.heartbeatLoop(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.gcLoop(ctx)
	}()

	a.worker(ctx)

	return a.shutdown()
}

// worker drains the bus, the sole consumer, running every event through
// lineage update, enrichment, detectors, rules, and transport forwarding
// in that order (SPEC_FULL.md §4.8). It returns when ctx is canceled, after
// draining whatever was already queued.
func (a *Agent) worker(ctx context.Context) {
	for {
		select {
		case ev := <-a.bus.C():
			a.process(ev)
		case <-ctx.Done():
			a.drainRemaining()
			return
		}
	}
}

// drainRemaining flushes whatever is still sitting in the bus at shutdown,
// non-blocking, so in-flight events are not silently lost.
func (a *Agent) drainRemaining() {
	for {
		select {
		case ev := <-a.bus.C():
			a.process(ev)
		default:
			return
		}
	}
}

func (a *Agent) process(ev model.Event) {
	a.updateLineage(ev)
	ev = a.enrich(ev)

	a.detectors.Process(ev)
	a.evaluator.Process(ev)

	if !a.transport.Enqueue(ev) {
		a.counters.IncTransportDrops()
	}
}

func (a *Agent) updateLineage(ev model.Event) {
	if ev.Process == nil {
		return
	}
	switch ev.EventType {
	case model.ProcessStart:
		a.lineage.OnExec(ev.Process.PID, ev.Process.PPID, ev.Process.Name, ev.Process.Path, ev.Process.User)
		info := a.classifier.Classify(ev.Process.PID)
		a.lineage.SetContainer(ev.Process.PID, lineage.Container{
			Runtime: string(info.Runtime),
			ID:      info.ID,
		})
	case model.ProcessStop:
		a.lineage.OnExit(ev.Process.PID)
		a.classifier.Evict(ev.Process.PID)
	}
}

// enrich fills in the process name/path/user fields that non-process events
// only carry a bare PID for, by looking the pid up in the lineage graph
// (SPEC_FULL.md §4.8's lineage-enrichment step).
func (a *Agent) enrich(ev model.Event) model.Event {
	if ev.Process == nil || ev.Process.Name != "" {
		return ev
	}
	node, ok := a.lineage.Lookup(ev.Process.PID)
	if !ok {
		return ev
	}
	ev.Process.PPID = node.PPID
	ev.Process.Name = node.Comm
	ev.Process.Path = node.ExePath
	ev.Process.User = node.User
	return ev
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emitHeartbeat()
		}
	}
}

func (a *Agent) emitHeartbeat() {
	counters := a.counters.Snapshot()
	counters["lineage_size"] = itoa(a.lineage.Size())
	counters["uptime_s"] = itoa(int(time.Since(a.startTime).Seconds()))

	a.emitter.Emit(model.Event{
		EventType: model.Heartbeat,
		Severity:  model.SeverityInfo,
		Alert: &model.AlertPayload{
			Rule:    "heartbeat",
			Details: counters,
		},
	})
}

func (a *Agent) gcLoop(ctx context.Context) {
	ticker := time.NewTicker(lineageGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.lineage.GC()
		}
	}
}

// shutdown waits for every worker goroutine to exit, flushes the transport,
// and releases systemd notification (SPEC_FULL.md §5).
func (a *Agent) shutdown() error {
	if a.notifier.IsAvailable() {
		a.notifier.NotifyStopping()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownFlushTimeout):
		a.log.LogSystemEvent("shutdown_timeout", "waited", shutdownFlushTimeout.String())
	}

	a.transport.Stop()
	a.log.LogSystemEvent("agent_stopped")
	return nil
}

// EndpointID, Uptime, LineageSize, and RulesLoaded implement
// debug.StatusProvider.
func (a *Agent) EndpointID() string    { return a.cfg.EndpointID }
func (a *Agent) Uptime() time.Duration { return time.Since(a.startTime) }
func (a *Agent) LineageSize() int      { return a.lineage.Size() }
func (a *Agent) RulesLoaded() int      { return a.evaluator.RuleCount() }

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
