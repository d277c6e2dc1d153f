// Package telemetry defines the typed event bus the pool publishes to and
// the dashboard/ws clients read from (SPEC_FULL.md §4.G/§4.N), grounded on
// the teacher's internal/hub.Hub for fan-out and internal/api.api for the
// event shapes it already streamed over the wire.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the event types the pool emits.
type Kind string

const (
	KindCompileStart         Kind = "compile.start"
	KindCompileStop          Kind = "compile.stop"
	KindCompileError         Kind = "compile.error"
	KindPoolPortCreated      Kind = "pool.port_created"
	KindPoolPortReused       Kind = "pool.port_reused"
	KindPoolPortTerminated   Kind = "pool.port_terminated"
	KindPoolExhausted        Kind = "pool.exhausted"
	KindMaintenanceCompleted Kind = "maintenance.cleanup_completed"
	KindMetricsSnapshot      Kind = "metrics.snapshot"
)

// Event is the envelope broadcast to every connected dashboard client.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Message     string    `json:"message,omitempty"`
	At          time.Time `json:"at"`
	Fields      any       `json:"fields,omitempty"`
}

// Sink is what the pool publishes events onto; *Bus and a no-op Discard
// implementation both satisfy it so the pool can run headless.
type Sink interface {
	Publish(kind Kind, fingerprint, message string, fields any)
}

// broadcaster is the subset of *hub.Hub the bus needs, kept narrow so
// telemetry never imports net/http.
type broadcaster interface {
	Broadcast(data []byte)
}

// Bus stamps events with an ID and timestamp, then hands the encoded JSON
// to a broadcaster (normally a *hub.Hub).
type Bus struct {
	out broadcaster
	now func() time.Time
}

// NewBus wraps a broadcaster. now defaults to time.Now if nil, overridable
// for deterministic tests.
func NewBus(out broadcaster, now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{out: out, now: now}
}

// Publish encodes and broadcasts an event. Marshal failures are swallowed —
// telemetry must never block or fail a compile.
func (b *Bus) Publish(kind Kind, fingerprint, message string, fields any) {
	ev := Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Fingerprint: fingerprint,
		Message:     message,
		At:          b.now().UTC(),
		Fields:      fields,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.out.Broadcast(data)
}

// Discard is a Sink that drops every event, used when no hub is configured.
type Discard struct{}

func (Discard) Publish(Kind, string, string, any) {}
