/*
Package events publishes audit outcomes to other services.

PURPOSE:
  The audit scheduler runs on its own clock. Treasurers, mailers and
  dashboards want to know when a run finished and whether it found errors,
  without polling the API. Every completed (or failed) run is published as
  an AuditCompletedEvent.

PUBLISHERS:
  - Nop:      discards events (no broker configured)
  - Recorder: keeps events in memory (tests)
  - AMQP:     RabbitMQ topic exchange, routing key "audit.completed"

MESSAGE FORMAT (application/json):
  {
    "run_id": "4f9c...",
    "trigger": "scheduled",
    "as_of": "2024-06",
    "status": "completed",
    "counts": {"errors": 2, "warnings": 5, "infos": 1},
    "error": "",
    "timestamp": "2024-06-15T10:00:00Z"
  }
*/
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/warp/condo-ledger/engine"
)

// RoutingAuditCompleted is the routing key of AuditCompletedEvent.
const RoutingAuditCompleted = "audit.completed"

// AuditCompletedEvent summarizes one audit run.
type AuditCompletedEvent struct {
	RunID     string                `json:"run_id"`
	Trigger   string                `json:"trigger"`
	AsOf      engine.Month          `json:"as_of"`
	Status    engine.AuditRunStatus `json:"status"`
	Counts    engine.Counts         `json:"counts"`
	Error     string                `json:"error,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewAuditCompletedEvent builds the event for a finished run.
func NewAuditCompletedEvent(run engine.AuditRun) AuditCompletedEvent {
	ts := run.StartedAt
	if run.FinishedAt != nil {
		ts = *run.FinishedAt
	}
	return AuditCompletedEvent{
		RunID:     run.ID,
		Trigger:   run.Trigger,
		AsOf:      run.AsOf,
		Status:    run.Status,
		Counts:    run.Counts,
		Error:     run.Error,
		Timestamp: ts,
	}
}

// ToJSON converts the event to JSON bytes.
func (e AuditCompletedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// AuditCompletedEventFromJSON decodes an event body.
func AuditCompletedEventFromJSON(data []byte) (AuditCompletedEvent, error) {
	var e AuditCompletedEvent
	err := json.Unmarshal(data, &e)
	return e, err
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishAuditCompleted(ctx context.Context, e AuditCompletedEvent) error
	Close() error
}

// =============================================================================
// NOP / RECORDER
// =============================================================================

// Nop discards every event.
type Nop struct{}

func (Nop) PublishAuditCompleted(context.Context, AuditCompletedEvent) error { return nil }
func (Nop) Close() error                                                     { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []AuditCompletedEvent
}

func (r *Recorder) PublishAuditCompleted(_ context.Context, e AuditCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []AuditCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditCompletedEvent(nil), r.events...)
}
