// internal/app/events.go
package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventKind identifies an outbound audit event.
type EventKind string

const (
	EventOccurrenceRolledOver       EventKind = "occurrence_rolled_over"
	EventNotificationSent           EventKind = "notification_sent"
	EventNotificationFailedTerminal EventKind = "notification_failed_terminal"
	EventMemorialMarkedStale        EventKind = "memorial_marked_stale"
	EventContactDeactivated         EventKind = "contact_deactivated"
)

// Event is emitted to the record-management and observability consumers.
type Event struct {
	Kind       EventKind
	MemorialID uuid.UUID
	ContactID  uuid.UUID
	CycleYear  int
	At         time.Time
	Detail     string
}

// Publisher delivers audit events to external consumers.
type Publisher interface {
	Publish(e Event)
}

// LogPublisher emits events as structured log lines. External consumers tail
// the log stream; a broker-backed publisher can replace this without touching
// the services.
type LogPublisher struct {
	logger *logrus.Logger
}

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(e Event) {
	fields := logrus.Fields{
		"event":       string(e.Kind),
		"memorial_id": e.MemorialID,
		"at":          e.At.Format(time.RFC3339),
	}
	if e.ContactID != uuid.Nil {
		fields["contact_id"] = e.ContactID
	}
	if e.CycleYear != 0 {
		fields["cycle_year"] = e.CycleYear
	}
	if e.Detail != "" {
		fields["detail"] = e.Detail
	}
	p.logger.WithFields(fields).Info("audit event")
}
