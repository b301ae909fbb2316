package models

import (
	"strings"
	"time"
)

// EventType classifies a celebration.
type EventType int

const (
	EventTypeOther EventType = iota
	EventTypeBirthday
	EventTypeAnniversary
)

func (t EventType) String() string {
	switch t {
	case EventTypeBirthday:
		return "birthday"
	case EventTypeAnniversary:
		return "anniversary"
	default:
		return "other"
	}
}

// ParseEventType maps the wire/db form back to an EventType.
// Unknown values collapse to "other".
func ParseEventType(s string) EventType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "birthday":
		return EventTypeBirthday
	case "anniversary":
		return EventTypeAnniversary
	default:
		return EventTypeOther
	}
}

// CelebrationEvent is a recurring yearly event registered by a user.
// The Date's year is whatever the user entered (e.g. birth year); only
// its month/day matter for scheduling. TimezoneID is an IANA zone name.
type CelebrationEvent struct {
	ID               string    `json:"id"`
	OwnerAadObjectID string    `json:"ownerAadObjectId"`
	OwnerTeamsID     string    `json:"ownerId,omitempty"`
	Type             EventType `json:"type"`
	Title            string    `json:"title"`
	Message          string    `json:"message,omitempty"`
	Date             time.Time `json:"date"`
	TimezoneID       string    `json:"timezoneId"`
	ImageURL         string    `json:"imageUrl,omitempty"`

	// Teams is the list of team ids this event is shared with. An event
	// shared with no team is never delivered (nobody to notify).
	Teams []string `json:"teams"`
}

// Month returns the recurrence month (1-12).
func (e *CelebrationEvent) Month() int { return int(e.Date.Month()) }

// Day returns the recurrence day of month.
func (e *CelebrationEvent) Day() int { return e.Date.Day() }

// SharedWith reports whether the event targets the given team.
func (e *CelebrationEvent) SharedWith(teamID string) bool {
	for _, id := range e.Teams {
		if id == teamID {
			return true
		}
	}
	return false
}
