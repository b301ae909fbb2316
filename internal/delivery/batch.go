package delivery

import (
	"fmt"
	"sort"
	"strings"

	"celebot/internal/cards"
	"celebot/internal/models"
	"celebot/internal/transport"
)

// MaxEventsPerCarousel caps how many celebration cards go into one
// carousel message.
const MaxEventsPerCarousel = 6

const (
	singleEventText = "Today is a special day! <at>%s</at> is celebrating %s."
	multiEventText  = "Today is a special day for several people! %s, and %s."
	multiEventPart  = "<at>%s</at> is celebrating %s"
	eventSummary    = "Celebrations today!"
)

// Notification bundles everything needed to announce one due event.
type Notification struct {
	Event      *models.CelebrationEvent
	Occurrence *models.EventOccurrence
	Owner      *models.User
}

func (n Notification) text() string {
	return fmt.Sprintf(singleEventText, n.Owner.DisplayName, n.Event.Title)
}

func (n Notification) part() string {
	return fmt.Sprintf(multiEventPart, n.Owner.DisplayName, n.Event.Title)
}

func (n Notification) mention() transport.Mention {
	return transport.Mention{
		Type: "mention",
		Text: "<at>" + n.Owner.DisplayName + "</at>",
		Mentioned: transport.ChannelAccount{
			ID:   n.Owner.TeamsID,
			Name: n.Owner.DisplayName,
		},
	}
}

// BuildTeamMessages turns one team's due notifications into delivery
// records: chunks of up to maxBatch as carousels, leftover singletons as
// individual messages. maxBatch <= 0 means MaxEventsPerCarousel.
func BuildTeamMessages(teamID string, items []Notification, builder *cards.Builder, maxBatch int) []*models.EventMessage {
	if len(items) == 0 {
		return nil
	}
	if maxBatch <= 0 {
		maxBatch = MaxEventsPerCarousel
	}

	var out []*models.EventMessage
	for start := 0; start < len(items); start += maxBatch {
		end := start + maxBatch
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		if len(chunk) == 1 {
			out = append(out, singleMessage(teamID, chunk[0], builder))
		} else {
			out = append(out, carouselMessage(teamID, chunk, builder))
		}
	}
	return out
}

func singleMessage(teamID string, n Notification, builder *cards.Builder) *models.EventMessage {
	activity := &transport.Activity{
		Type:             transport.ActivityMessage,
		ServiceURL:       n.Owner.ServiceURL,
		Conversation:     &transport.ConversationAccount{ID: teamID},
		AttachmentLayout: transport.LayoutCarousel,
		Text:             n.text(),
		Summary:          eventSummary,
		Attachments:      []transport.Attachment{builder.EventCard(n.Event, n.Owner.DisplayName)},
		Entities:         []transport.Mention{n.mention()},
	}
	return &models.EventMessage{
		EventID:      n.Event.ID,
		OccurrenceID: n.Occurrence.ID,
		OccurrenceAt: n.Occurrence.DueAt,
		Activity:     activity,
		TenantID:     n.Owner.TenantID,
		Type:         models.MessageTypeEvent,
		ExpireAt:     n.Occurrence.LastAllowableSendTime(),
	}
}

func carouselMessage(teamID string, chunk []Notification, builder *cards.Builder) *models.EventMessage {
	// Owner names are compared byte-wise so the order is stable across
	// machines and locales.
	sorted := make([]Notification, len(chunk))
	copy(sorted, chunk)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Owner.DisplayName < sorted[j].Owner.DisplayName
	})

	attachments := make([]transport.Attachment, 0, len(sorted))
	parts := make([]string, 0, len(sorted))
	var mentions []transport.Mention
	seen := map[string]bool{}
	for _, n := range sorted {
		attachments = append(attachments, builder.EventCard(n.Event, n.Owner.DisplayName))
		parts = append(parts, n.part())
		// One person can have several events in a chunk; mention them once.
		if m := n.mention(); !seen[m.Mentioned.ID] {
			seen[m.Mentioned.ID] = true
			mentions = append(mentions, m)
		}
	}
	text := fmt.Sprintf(multiEventText, strings.Join(parts[:len(parts)-1], ", "), parts[len(parts)-1])

	first := sorted[0]
	activity := &transport.Activity{
		Type:             transport.ActivityMessage,
		ServiceURL:       first.Owner.ServiceURL,
		Conversation:     &transport.ConversationAccount{ID: teamID},
		AttachmentLayout: transport.LayoutCarousel,
		Text:             text,
		Summary:          eventSummary,
		Attachments:      attachments,
		Entities:         mentions,
	}
	return &models.EventMessage{
		// A carousel spans several events; no single event or occurrence
		// id applies.
		OccurrenceAt: first.Occurrence.DueAt,
		Activity:     activity,
		TenantID:     first.Owner.TenantID,
		Type:         models.MessageTypeEvent,
		ExpireAt:     first.Occurrence.LastAllowableSendTime(),
	}
}
