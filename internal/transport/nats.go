package transport

import (
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/kernox/agent/internal/logging"
	"github.com/kernox/agent/internal/model"
)

// NATSFanout wraps another Transport and additionally, fire-and-forget,
// publishes heartbeat and alert_* events onto a NATS subject. It is an
// optional secondary sink (SPEC_FULL.md §10.4): the wrapped Transport
// remains the sole delivery guarantee, matching spec.md's C7 contract of
// stdout/HTTP only.
type NATSFanout struct {
	inner   Transport
	nc      *nats.Conn
	subject string
	log     *logging.Logger
}

// NewNATSFanout connects to natsURL and wraps inner. subject is
// "kernox.events.<endpoint_id>".
func NewNATSFanout(inner Transport, natsURL, subject string, log *logging.Logger) (*NATSFanout, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &NATSFanout{
		inner:   inner,
		nc:      nc,
		subject: subject,
		log:     log.WithComponent("transport_nats"),
	}, nil
}

func (f *NATSFanout) Start() { f.inner.Start() }

func (f *NATSFanout) Stop() {
	f.inner.Stop()
	f.nc.Close()
}

// Enqueue forwards ev to the wrapped Transport unconditionally, and
// additionally publishes it to NATS when it is a heartbeat or alert_*
// event. A publish failure is logged and otherwise ignored: NATS is a
// fan-out convenience, not the transport of record.
func (f *NATSFanout) Enqueue(ev model.Event) bool {
	accepted := f.inner.Enqueue(ev)
	if isFanoutType(ev.EventType) {
		f.publish(ev)
	}
	return accepted
}

func (f *NATSFanout) publish(ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := f.nc.Publish(f.subject, data); err != nil {
		f.log.LogTransportEvent("nats_publish_failed", "error", err.Error())
	}
}

func isFanoutType(t model.EventType) bool {
	if t == model.Heartbeat {
		return true
	}
	return len(t) > 6 && t[:6] == "alert_"
}

var _ Transport = (*NATSFanout)(nil)
