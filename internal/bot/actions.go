package bot

import (
	"context"
	"fmt"
	"time"

	"celebot/internal/models"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

const (
	msgEventGone      = "I couldn't find that event. It may have been deleted."
	msgStaleSkipCard  = "This reminder is out of date, so there is nothing to skip."
	msgEventPassed    = "That occasion has already passed, so it can't be skipped anymore."
	msgEventSkipped   = "Okay, I'll skip \"%s\" this year."
	msgShareSuccess   = "Done! Your events are now shared with the team."
	msgShareNotMember = "You don't seem to be a member of %s anymore, so I can't share your events there."
	msgShareNoBot     = "I'm no longer part of %s, so I can't share your events there."
)

// handleSkipEvent marks the occurrence named by the preview card as
// skipped, refreshes the card and confirms.
func (h *Handler) handleSkipEvent(ctx context.Context, a *transport.Activity, p *models.SkipEventPayload) error {
	ev, err := h.store.GetEventByID(ctx, p.EventID, p.OwnerAadObjectID)
	if err != nil {
		return err
	}
	if ev == nil {
		h.log.Info("bot: skip for missing event", logx.String("event_id", p.EventID))
		return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, msgEventGone)
	}

	oc, err := h.store.GetOccurrenceByID(ctx, p.OccurrenceID)
	if err != nil {
		return err
	}
	if oc == nil || oc.EventID != p.EventID {
		h.log.Info("bot: skip from stale card",
			logx.String("event_id", p.EventID), logx.String("occurrence_id", p.OccurrenceID))
		return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, msgStaleSkipCard)
	}
	if oc.DueAt.Before(time.Now()) {
		return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, msgEventPassed)
	}

	oc.Status = models.StatusSkipped
	if err := h.store.UpdateOccurrence(ctx, oc); err != nil {
		return err
	}

	// Refresh the card with the skip button removed. A failure here is
	// cosmetic; the skip itself already took.
	if a.ReplyToID != "" {
		updated := &transport.Activity{
			Type:         transport.ActivityMessage,
			Conversation: a.Conversation,
			Attachments:  []transport.Attachment{h.builder.PreviewCard(ev, oc.ID, p.OwnerName, false)},
		}
		if err := h.conn.UpdateActivity(ctx, a.ServiceURL, a.Conversation.ID, a.ReplyToID, updated); err != nil {
			h.log.Warn("bot: preview card refresh failed", logx.Err(err))
		}
	}

	return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, fmt.Sprintf(msgEventSkipped, ev.Title))
}

// handleShareEvent shares all of the user's events with the team whose
// card they answered, provided both sides still exist.
func (h *Handler) handleShareEvent(ctx context.Context, a *transport.Activity, p *models.ShareEventPayload) error {
	members, err := h.conn.GetConversationMembers(ctx, a.ServiceURL, p.TeamID)
	if err != nil {
		return fmt.Errorf("bot: team roster: %w", err)
	}
	isMember := false
	for _, m := range members {
		if m.AadObjectID == p.UserAadObjectID {
			isMember = true
			break
		}
	}
	if !isMember {
		return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, fmt.Sprintf(msgShareNotMember, p.TeamName))
	}

	team, err := h.store.GetTeamByID(ctx, p.TeamID)
	if err != nil {
		return err
	}
	if team == nil {
		return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, fmt.Sprintf(msgShareNoBot, p.TeamName))
	}

	events, err := h.store.GetEventsByOwner(ctx, p.UserAadObjectID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.SharedWith(p.TeamID) {
			continue
		}
		ev.Teams = append(ev.Teams, p.TeamID)
		if err := h.store.UpdateEvent(ctx, ev); err != nil {
			return err
		}
	}
	h.log.Info("bot: events shared with team",
		logx.String("team_id", p.TeamID), logx.Int("events", len(events)))

	h.resolveShareCard(ctx, a, p.TeamName)
	return h.sendText(ctx, a.ServiceURL, a.Conversation.ID, msgShareSuccess)
}

func (h *Handler) handleIgnoreEventShare(ctx context.Context, a *transport.Activity, p *models.ShareEventPayload) error {
	h.resolveShareCard(ctx, a, p.TeamName)
	return nil
}

// resolveShareCard replaces the share prompt with its button-less form.
func (h *Handler) resolveShareCard(ctx context.Context, a *transport.Activity, teamName string) {
	if a.ReplyToID == "" {
		return
	}
	updated := &transport.Activity{
		Type:         transport.ActivityMessage,
		Conversation: a.Conversation,
		Attachments:  []transport.Attachment{h.builder.ShareEventsCardResolved(teamName)},
	}
	if err := h.conn.UpdateActivity(ctx, a.ServiceURL, a.Conversation.ID, a.ReplyToID, updated); err != nil {
		h.log.Warn("bot: share card refresh failed", logx.Err(err))
	}
}
