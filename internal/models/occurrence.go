package models

import "time"

// EventStatus tracks one year's occurrence of an event through the
// pipeline. There is at most one active occurrence per (event, year).
type EventStatus int

const (
	// StatusPending means the occurrence has been claimed by the preview
	// cycle and is waiting for its due time.
	StatusPending EventStatus = iota
	// StatusSkipped means the owner chose to skip this year's occurrence.
	StatusSkipped
	// StatusSent means the event-day notification was delivered.
	StatusSent
)

func (s EventStatus) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSent:
		return "sent"
	default:
		return "pending"
	}
}

// ParseEventStatus maps the db form back to an EventStatus.
func ParseEventStatus(s string) EventStatus {
	switch s {
	case "skipped":
		return StatusSkipped
	case "sent":
		return StatusSent
	default:
		return StatusPending
	}
}

const (
	// lastAllowableSendWindow is how long after the due time an event-day
	// notification may still be sent. Past that the occurrence is simply
	// dropped rather than delivered embarrassingly late.
	lastAllowableSendWindow = 12 * time.Hour

	// occurrenceGracePeriod is kept on top of the send window before the
	// record self-cleans, so late retries still find their occurrence.
	occurrenceGracePeriod = 24 * time.Hour
)

// EventOccurrence is the idempotency ledger entry for one (event, year).
type EventOccurrence struct {
	ID               string      `json:"id"`
	EventID          string      `json:"eventId"`
	OwnerAadObjectID string      `json:"ownerAadObjectId"`
	// DueAt is the UTC instant the celebration should be posted.
	DueAt    time.Time   `json:"date"`
	Year     int         `json:"year"`
	Status   EventStatus `json:"status"`
	ExpireAt time.Time   `json:"expireAt"`
}

// LastAllowableSendTime is the latest instant the event-day notification
// may still go out.
func (o *EventOccurrence) LastAllowableSendTime() time.Time {
	return o.DueAt.Add(lastAllowableSendWindow)
}

// DefaultExpiry is the send deadline plus a grace period; stale records
// past this are pruned by the store.
func (o *EventOccurrence) DefaultExpiry() time.Time {
	return o.LastAllowableSendTime().Add(occurrenceGracePeriod)
}
