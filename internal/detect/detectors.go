package detect

import (
	"strconv"
	"time"

	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

const (
	ransomwareWindow    = 5 * time.Second
	ransomwareThreshold = 20

	c2Window    = 60 * time.Second
	c2Threshold = 10

	bruteForceWindow    = 60 * time.Second
	bruteForceThreshold = 5

	dgaEntropyThreshold = 3.8
	dgaMinLabelLen       = 12
)

// Detectors owns all five temporal detectors' state. Per SPEC_FULL.md §5,
// this struct is owned exclusively by the orchestrator worker — no lock is
// needed around calls to Process, only inside Window/Cooldown for their own
// bookkeeping.
type Detectors struct {
	ransomware *Window
	c2         *Window
	bruteForce *Window

	cooldown *Cooldown

	emitter *schema.Emitter
	now     func() time.Time
}

// New creates the detector set with the given cooldown duration
// (SPEC_FULL.md §9: "treat cooldown as configurable").
func New(emitter *schema.Emitter, cooldown time.Duration) *Detectors {
	return &Detectors{
		ransomware: NewWindow(ransomwareWindow),
		c2:         NewWindow(c2Window),
		bruteForce: NewWindow(bruteForceWindow),
		cooldown:   NewCooldown(cooldown),
		emitter:    emitter,
		now:        time.Now,
	}
}

// Process inspects ev and fires any detector whose condition is met. Called
// synchronously on the orchestrator worker for every event on the bus,
// after lineage update and enrichment (SPEC_FULL.md §4.8).
func (d *Detectors) Process(ev model.Event) {
	switch ev.EventType {
	case model.FileWrite:
		d.checkRansomware(ev)
	case model.NetworkConnect:
		d.checkC2(ev)
	case model.PrivilegeChange:
		d.checkPrivilegeEscalation(ev)
	case model.AuthLoginFailure:
		d.checkBruteForce(ev)
	case model.DNSQuery:
		d.checkDGA(ev)
	}
}

func (d *Detectors) checkRansomware(ev model.Event) {
	if ev.Process == nil {
		return
	}
	key := strconv.FormatUint(uint64(ev.Process.PID), 10)
	now := d.now()
	count := d.ransomware.Insert(key, now)
	if count < ransomwareThreshold {
		return
	}
	if d.cooldown.InCooldown("ransomware:"+key, now) {
		return
	}
	d.cooldown.Fire("ransomware:"+key, now)
	d.emitAlert(model.AlertRansomwareBurst, model.SeverityHigh, count, int(ransomwareWindow.Seconds()), map[string]string{
		"pid": key,
	})
}

func (d *Detectors) checkC2(ev model.Event) {
	if ev.Process == nil || ev.Network == nil {
		return
	}
	pidStr := strconv.FormatUint(uint64(ev.Process.PID), 10)
	key := pidStr + "|" + ev.Network.DestIP
	now := d.now()
	count := d.c2.Insert(key, now)
	if count < c2Threshold {
		return
	}
	if d.cooldown.InCooldown("c2:"+key, now) {
		return
	}
	d.cooldown.Fire("c2:"+key, now)
	d.emitAlert(model.AlertC2Beaconing, model.SeverityHigh, count, int(c2Window.Seconds()), map[string]string{
		"pid":     pidStr,
		"dest_ip": ev.Network.DestIP,
	})
}

func (d *Detectors) checkPrivilegeEscalation(ev model.Event) {
	if ev.Severity != model.SeverityCritical {
		return
	}
	pidStr := ""
	if ev.Process != nil {
		pidStr = strconv.FormatUint(uint64(ev.Process.PID), 10)
	}
	now := d.now()
	key := "privesc:" + pidStr
	if d.cooldown.InCooldown(key, now) {
		return
	}
	d.cooldown.Fire(key, now)
	d.emitAlert(model.AlertPrivilegeEscalation, model.SeverityCritical, 1, 0, map[string]string{
		"pid": pidStr,
	})
}

func (d *Detectors) checkBruteForce(ev model.Event) {
	if ev.Auth == nil || ev.Auth.Source != model.AuthSourceSSH || ev.Auth.SourceIP == nil {
		return
	}
	key := *ev.Auth.SourceIP
	now := d.now()
	count := d.bruteForce.Insert(key, now)
	if count < bruteForceThreshold {
		return
	}
	if d.cooldown.InCooldown("bruteforce:"+key, now) {
		return
	}
	d.cooldown.Fire("bruteforce:"+key, now)
	d.emitAlert(model.AlertBruteForce, model.SeverityHigh, count, int(bruteForceWindow.Seconds()), map[string]string{
		"source_ip": key,
	})
}

func (d *Detectors) checkDGA(ev model.Event) {
	if ev.Network == nil || ev.Network.Query == nil {
		return
	}
	query := *ev.Network.Query
	label := LeftmostLabel(query)
	if len(label) < dgaMinLabelLen {
		return
	}
	if ShannonEntropy(label) <= dgaEntropyThreshold {
		return
	}
	now := d.now()
	key := "dga:" + query
	if d.cooldown.InCooldown(key, now) {
		return
	}
	d.cooldown.Fire(key, now)
	d.emitAlert(model.AlertSuspiciousDNS, model.SeverityMedium, 1, 0, map[string]string{
		"query": query,
	})
}

func (d *Detectors) emitAlert(eventType model.EventType, severity model.Severity, count, windowSec int, details map[string]string) {
	c := uint32(count)
	w := uint32(windowSec)
	d.emitter.Emit(model.Event{
		EventType: eventType,
		Severity:  severity,
		Alert: &model.AlertPayload{
			Rule:      string(eventType),
			Details:   details,
			Count:     &c,
			WindowSec: &w,
		},
	})
}
