package transport

import (
	"context"
	"errors"
	"fmt"
)

// Connector is the message-transport capability the pipeline needs.
// The production implementation lives in transport/msteams; tests use fakes.
type Connector interface {
	// SendToConversation posts the activity to its conversation and returns
	// the created resource id.
	SendToConversation(ctx context.Context, serviceURL string, activity *Activity) (ResourceResponse, error)

	// CreateReplyChain starts a new reply thread in the given channel with
	// activity as the root post, returning the thread's conversation id.
	CreateReplyChain(ctx context.Context, serviceURL, channelID string, activity *Activity) (string, error)

	// SendCard posts a single attachment to a conversation.
	SendCard(ctx context.Context, serviceURL, conversationID string, attachment Attachment) (ResourceResponse, error)

	// SendText posts a plain text message to a conversation.
	SendText(ctx context.Context, serviceURL, conversationID, text string) (ResourceResponse, error)

	// CreateOrGetDirectConversation returns the 1:1 conversation id between
	// the bot and the given user, creating it if needed.
	CreateOrGetDirectConversation(ctx context.Context, serviceURL, tenantID, userTeamsID string) (string, error)

	// UpdateActivity replaces a previously sent activity (card refresh).
	UpdateActivity(ctx context.Context, serviceURL, conversationID, activityID string, activity *Activity) error

	// GetConversationMembers returns the roster of a conversation. For a
	// team id this is the team roster.
	GetConversationMembers(ctx context.Context, serviceURL, conversationID string) ([]ChannelAccount, error)
}

// StatusError carries the HTTP status and response body of a failed
// connector call so callers can record and classify the result.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connector: status %d: %s", e.StatusCode, e.Body)
}

// StatusOf extracts the HTTP status from err. It returns -1 for errors
// that did not come from the transport (timeouts, bugs, ...), matching the
// "unclassified" delivery result.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return -1
}
