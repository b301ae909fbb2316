package transport

import "encoding/json"

// Wire types for the Bot Framework connector REST API, reduced to the
// fields this app reads and writes.

const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
)

const (
	LayoutList     = "list"
	LayoutCarousel = "carousel"
)

type Activity struct {
	Type             string               `json:"type"`
	ID               string               `json:"id,omitempty"`
	ServiceURL       string               `json:"serviceUrl,omitempty"`
	ChannelID        string               `json:"channelId,omitempty"`
	Conversation     *ConversationAccount `json:"conversation,omitempty"`
	From             *ChannelAccount      `json:"from,omitempty"`
	Recipient        *ChannelAccount      `json:"recipient,omitempty"`
	Text             string               `json:"text,omitempty"`
	Summary          string               `json:"summary,omitempty"`
	AttachmentLayout string               `json:"attachmentLayout,omitempty"`
	Attachments      []Attachment         `json:"attachments,omitempty"`
	Entities         []Mention            `json:"entities,omitempty"`
	MembersAdded     []ChannelAccount     `json:"membersAdded,omitempty"`
	MembersRemoved   []ChannelAccount     `json:"membersRemoved,omitempty"`
	ReplyToID        string               `json:"replyToId,omitempty"`
	Value            json.RawMessage      `json:"value,omitempty"`
	ChannelData      json.RawMessage      `json:"channelData,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

type ChannelAccount struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	AadObjectID string `json:"aadObjectId,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Content     any    `json:"content,omitempty"`
}

// Mention is the only entity kind this app attaches to activities.
type Mention struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Mentioned ChannelAccount `json:"mentioned"`
}

// TeamsChannelData mirrors the channelData blob Teams puts on activities.
type TeamsChannelData struct {
	Tenant  *TenantInfo  `json:"tenant,omitempty"`
	Team    *TeamInfo    `json:"team,omitempty"`
	Channel *ChannelInfo `json:"channel,omitempty"`
	// eventType for team events: teamRenamed, teamDeleted, ...
	EventType string `json:"eventType,omitempty"`
}

type TenantInfo struct {
	ID string `json:"id,omitempty"`
}

type TeamInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type ChannelInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ConversationParameters is the request body for conversation creation.
type ConversationParameters struct {
	IsGroup     bool             `json:"isGroup,omitempty"`
	Bot         *ChannelAccount  `json:"bot,omitempty"`
	Members     []ChannelAccount `json:"members,omitempty"`
	TopicName   string           `json:"topicName,omitempty"`
	Activity    *Activity        `json:"activity,omitempty"`
	ChannelData any              `json:"channelData,omitempty"`
	TenantID    string           `json:"tenantId,omitempty"`
}

// ResourceResponse is the connector's reply to a send.
type ResourceResponse struct {
	ID string `json:"id"`
}

// DecodeChannelData parses the Teams channelData blob, returning a zero
// value when absent or malformed.
func DecodeChannelData(a *Activity) TeamsChannelData {
	var cd TeamsChannelData
	if a == nil || len(a.ChannelData) == 0 {
		return cd
	}
	_ = json.Unmarshal(a.ChannelData, &cd)
	return cd
}
