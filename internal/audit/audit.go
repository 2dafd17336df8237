// Package audit defines the audit event sink the credential service
// emits mutation events to. Events carry metadata only, never plaintext.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actions emitted by the credential service.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Event is one audit record for a mutating operation.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
	// ResourceKind is the credential kind the operation targeted.
	ResourceKind string `json:"resource_kind"`
	// ResourceID is the id of the affected record.
	ResourceID string `json:"resource_id"`
	// Action is one of CREATE, UPDATE or DELETE.
	Action string `json:"action"`
	// Metadata holds redacted, non-sensitive details of the mutation.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(resourceKind, resourceID, action string, metadata map[string]any) Event {
	return Event{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		ResourceKind: resourceKind,
		ResourceID:   resourceID,
		Action:       action,
		Metadata:     metadata,
	}
}

// Sink receives audit events. A delivery failure must never fail the
// primary operation; callers log and swallow it.
type Sink interface {
	Log(ctx context.Context, e Event) error
}

// ZapSink writes audit events to a structured logger.
type ZapSink struct {
	log *zap.Logger
}

// NewZapSink creates a sink writing to the given logger.
func NewZapSink(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

// Log writes the event as a structured log line.
func (s *ZapSink) Log(_ context.Context, e Event) error {
	s.log.Info("audit",
		zap.String("event_id", e.ID),
		zap.Time("timestamp", e.Timestamp),
		zap.String("resource_kind", e.ResourceKind),
		zap.String("resource_id", e.ResourceID),
		zap.String("action", e.Action),
		zap.Any("metadata", e.Metadata),
	)
	return nil
}

// NoOpSink discards all events, for use when auditing is disabled.
type NoOpSink struct{}

// Log discards the event.
func (NoOpSink) Log(context.Context, Event) error {
	return nil
}
