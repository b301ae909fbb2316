package models

import (
	"time"

	"celebot/internal/transport"
)

// MessageType distinguishes owner previews from event-day notifications.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypePreview
	MessageTypeEvent
)

func (t MessageType) String() string {
	switch t {
	case MessageTypePreview:
		return "preview"
	case MessageTypeEvent:
		return "event"
	default:
		return "unknown"
	}
}

// ParseMessageType maps the db form back to a MessageType.
func ParseMessageType(s string) MessageType {
	switch s {
	case "preview":
		return MessageTypePreview
	case "event":
		return MessageTypeEvent
	default:
		return MessageTypeUnknown
	}
}

// MessageSendResult records the outcome of the last delivery attempt.
// StatusCode -1 means an unclassified failure (the error text is in
// ResponseBody); nil result means the message was never attempted.
type MessageSendResult struct {
	LastAttemptTime time.Time `json:"lastAttemptTime"`
	StatusCode      int       `json:"statusCode"`
	ResponseBody    string    `json:"responseBody,omitempty"`
}

// EventMessage is a delivery record: one per outbound message attempt
// group. It is created before the first send attempt and updated, never
// deleted, after every attempt.
//
// EventID/OccurrenceID are empty when the message batches several events
// into one carousel (there is no single event to point at).
type EventMessage struct {
	ID           string              `json:"id"`
	EventID      string              `json:"eventId,omitempty"`
	OccurrenceID string              `json:"occurrenceId,omitempty"`
	OccurrenceAt time.Time           `json:"occurrenceDateTime,omitempty"`
	Activity     *transport.Activity `json:"activity"`
	TenantID     string              `json:"tenantId,omitempty"`
	Type         MessageType         `json:"messageType"`
	SendResult   *MessageSendResult  `json:"messageSendResult,omitempty"`
	// ExpireAt is when retrying stops; expired records are excluded from
	// retry scans and eventually purged.
	ExpireAt time.Time `json:"expireAt"`
}

// RetryableStatusCodes are the transport results worth retrying.
// Never-attempted records (no result at all) are retried too; -1
// unclassified failures are terminal.
var RetryableStatusCodes = []int{429, 500, 502, 503, 504}

// RecordResult stores the attempt outcome on the message.
func (m *EventMessage) RecordResult(at time.Time, statusCode int, body string) {
	m.SendResult = &MessageSendResult{
		LastAttemptTime: at.UTC(),
		StatusCode:      statusCode,
		ResponseBody:    body,
	}
}

// Delivered reports whether the last attempt succeeded.
func (m *EventMessage) Delivered() bool {
	return m.SendResult != nil && m.SendResult.StatusCode == 200
}
