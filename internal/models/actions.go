package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKind is the closed set of card submit actions the bot accepts.
// Incoming payloads are decoded once at the boundary; everything past
// that works with this enum, not with raw strings.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionSkipEvent
	ActionShareEvent
	ActionIgnoreEventShare
)

func (k ActionKind) String() string {
	switch k {
	case ActionSkipEvent:
		return "SkipEvent"
	case ActionShareEvent:
		return "ShareEvent"
	case ActionIgnoreEventShare:
		return "IgnoreEventShare"
	default:
		return "Unknown"
	}
}

// CardAction is the decoded submit payload of a card button.
// Exactly one of the pointer fields is set, matching Kind.
type CardAction struct {
	Kind   ActionKind
	Skip   *SkipEventPayload
	Share  *ShareEventPayload
	Ignore *ShareEventPayload
}

// SkipEventPayload is carried by the preview card's Skip button.
type SkipEventPayload struct {
	Action           string `json:"action"`
	EventID          string `json:"eventId"`
	OccurrenceID     string `json:"occurrenceId"`
	OwnerAadObjectID string `json:"ownerAadObjectId"`
	OwnerName        string `json:"ownerName,omitempty"`
}

// ShareEventPayload is carried by the share/ignore buttons of the
// "share your events" card posted when a user joins a team.
type ShareEventPayload struct {
	Action          string `json:"action"`
	UserAadObjectID string `json:"userAadObjectId"`
	TeamID          string `json:"teamId"`
	TeamName        string `json:"teamName,omitempty"`
}

// DecodeCardAction parses a card submit value into the closed action set.
// The payload carries all ids the handler needs; there is no conversational
// state to resume.
func DecodeCardAction(raw json.RawMessage) (CardAction, error) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return CardAction{}, fmt.Errorf("card action: %w", err)
	}

	switch strings.TrimSpace(probe.Action) {
	case "SkipEvent":
		var p SkipEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return CardAction{}, fmt.Errorf("skip payload: %w", err)
		}
		return CardAction{Kind: ActionSkipEvent, Skip: &p}, nil
	case "ShareEvent":
		var p ShareEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return CardAction{}, fmt.Errorf("share payload: %w", err)
		}
		return CardAction{Kind: ActionShareEvent, Share: &p}, nil
	case "IgnoreEventShare":
		var p ShareEventPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return CardAction{}, fmt.Errorf("ignore payload: %w", err)
		}
		return CardAction{Kind: ActionIgnoreEventShare, Ignore: &p}, nil
	default:
		return CardAction{}, fmt.Errorf("card action: unknown action %q", probe.Action)
	}
}
