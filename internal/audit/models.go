// Package audit records every successful state transition in the scheduling
// core: who moved which entity from where to where, and when. The trail is
// append-only; nothing in the core reads it back to make decisions.
package audit

import (
	"time"

	"courseflow/pkg/domain"
)

// EventKind labels what happened.
type EventKind string

const (
	KindCourseCreated        EventKind = "course.created"
	KindCourseTransitioned   EventKind = "course.transitioned"
	KindPaymentRecorded      EventKind = "payment.recorded"
	KindPaymentTransitioned  EventKind = "payment.transitioned"
	KindAvailabilityOpened   EventKind = "availability.opened"
	KindAttendanceMarked     EventKind = "attendance.marked"
	KindCertificationIssued  EventKind = "certification.issued"
	KindRegistrationRecorded EventKind = "registration.recorded"
)

// Event is one audit record.
type Event struct {
	Kind      EventKind      `json:"kind"`
	ActorID   domain.ActorID `json:"actor_id"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	At        time.Time      `json:"at"`
}
