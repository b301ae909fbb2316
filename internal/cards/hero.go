// Package cards builds the hero and adaptive card attachments the bot
// posts: event previews, event-day notifications, welcome messages and
// the share-with-team prompt.
package cards

import "celebot/internal/transport"

const (
	ContentTypeHero     = "application/vnd.microsoft.card.hero"
	ContentTypeAdaptive = "application/vnd.microsoft.card.adaptive"
)

// Button action types understood by the Teams client.
const (
	actionOpenURL     = "openUrl"
	actionMessageBack = "messageBack"
)

// HeroCard is the classic Bot Framework hero card.
type HeroCard struct {
	Title   string       `json:"title,omitempty"`
	Text    string       `json:"text,omitempty"`
	Images  []CardImage  `json:"images,omitempty"`
	Buttons []CardButton `json:"buttons,omitempty"`
}

type CardImage struct {
	URL string `json:"url"`
}

// CardButton is a card action. For messageBack buttons Value carries the
// submit payload; for openUrl buttons it carries the target URL.
type CardButton struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Text        string `json:"text,omitempty"`
	DisplayText string `json:"displayText,omitempty"`
	Value       any    `json:"value,omitempty"`
}

// Attachment wraps the card for inclusion in an activity.
func (c *HeroCard) Attachment() transport.Attachment {
	return transport.Attachment{ContentType: ContentTypeHero, Content: c}
}

// AdaptiveCard is a minimal adaptive card model covering the welcome
// cards: one image column next to a text column, plus openUrl actions.
type AdaptiveCard struct {
	Type    string        `json:"type"`
	Version string        `json:"version"`
	Body    []any         `json:"body"`
	Actions []OpenURLAction `json:"actions,omitempty"`
}

type TextBlock struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Size    string `json:"size,omitempty"`
	Weight  string `json:"weight,omitempty"`
	Spacing string `json:"spacing,omitempty"`
	Wrap    bool   `json:"wrap,omitempty"`
}

type Image struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Size string `json:"size,omitempty"`
}

type Column struct {
	Type  string `json:"type"`
	Width string `json:"width,omitempty"`
	Items []any  `json:"items"`
}

type ColumnSet struct {
	Type    string   `json:"type"`
	Columns []Column `json:"columns"`
}

type OpenURLAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c *AdaptiveCard) Attachment() transport.Attachment {
	return transport.Attachment{ContentType: ContentTypeAdaptive, Content: c}
}

func newTextBlock(text string) TextBlock {
	return TextBlock{Type: "TextBlock", Text: text, Wrap: true}
}

func newHeading(text string) TextBlock {
	return TextBlock{Type: "TextBlock", Text: text, Size: "large", Weight: "bolder"}
}
