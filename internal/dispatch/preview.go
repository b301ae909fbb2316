package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"celebot/internal/models"
	"celebot/internal/recurrence"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

const previewText = "Hi %s! You have an event coming up. Here's a preview of what I'll post."

// PreviewCycle finds shared events occurring within the advance window,
// claims an occurrence for each and sends the owner a preview card.
// Events fail independently; the first error is joined into the result
// after all items ran.
func (d *Dispatcher) PreviewCycle(ctx context.Context, now time.Time) error {
	cfg := d.config()
	d.log.Info("dispatch: preview cycle started", logx.Time("now", now))

	window := recurrence.WindowMonthDays(now, cfg.DaysInAdvance)
	events, err := d.store.GetEventsByMonthDays(ctx, window)
	if err != nil {
		return fmt.Errorf("preview cycle: %w", err)
	}
	if len(events) == 0 {
		d.log.Info("dispatch: no shared events in window")
		return nil
	}

	// Drop events that already have a tracked occurrence; their reminder
	// is out (or deliberately withheld) already.
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	tracked, err := d.store.GetOccurrencesByEventIDs(ctx, ids, now)
	if err != nil {
		return fmt.Errorf("preview cycle: %w", err)
	}
	claimed := make(map[string]bool, len(tracked))
	for _, oc := range tracked {
		claimed[oc.EventID] = true
	}

	var errs []error
	sent := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if claimed[ev.ID] {
			continue
		}
		ok, perr := d.sendPreview(ctx, cfg, ev, now)
		if perr != nil {
			d.log.Error("dispatch: preview failed", logx.String("event_id", ev.ID), logx.Err(perr))
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, perr))
			continue
		}
		if ok {
			sent++
		}
	}

	d.log.Info("dispatch: preview cycle finished",
		logx.Int("events", len(events)), logx.Int("sent", sent), logx.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// sendPreview claims the event's next occurrence and, when far enough
// out, delivers the preview. Returns whether a preview went out.
func (d *Dispatcher) sendPreview(ctx context.Context, cfg Config, ev *models.CelebrationEvent, now time.Time) (bool, error) {
	postAt, err := timeOfDay(cfg.TimeToPost)
	if err != nil {
		return false, err
	}

	// The occurrence is computed in the event's own zone so "March 14 at
	// 10:00" means 10:00 where the owner lives.
	loc := d.loadZone(ev.TimezoneID)
	ref := time.Date(ev.Date.Year(), ev.Date.Month(), ev.Date.Day(), 0, 0, 0, 0, loc).Add(postAt)
	due := recurrence.NextOccurrenceAfter(ref, now.In(loc)).UTC()

	until := due.Sub(now)
	if until < 0 || until > time.Duration(cfg.DaysInAdvance)*24*time.Hour {
		d.log.Debug("dispatch: occurrence outside window",
			logx.String("event_id", ev.ID), logx.Time("due", due))
		return false, nil
	}

	oc := &models.EventOccurrence{
		ID:               newID(),
		EventID:          ev.ID,
		OwnerAadObjectID: ev.OwnerAadObjectID,
		DueAt:            due,
		Year:             due.Year(),
		Status:           models.StatusPending,
	}
	oc.ExpireAt = oc.DefaultExpiry()
	if err := d.store.AddOccurrence(ctx, oc); err != nil {
		if errors.Is(err, storage.ErrOccurrenceExists) {
			// Another cycle run claimed it first.
			return false, nil
		}
		return false, err
	}

	// Too close to the event to act on a preview; the claim above still
	// puts the occurrence on the event-day path.
	if until < cfg.MinProcessingBuffer {
		d.log.Info("dispatch: occurrence inside processing buffer, preview withheld",
			logx.String("event_id", ev.ID), logx.Time("due", due))
		return false, nil
	}

	owner, err := d.store.GetUserByAadObjectID(ctx, ev.OwnerAadObjectID)
	if err != nil {
		return false, err
	}
	if owner == nil {
		return false, fmt.Errorf("owner %s not known to the bot", ev.OwnerAadObjectID)
	}
	if err := d.ensureConversation(ctx, owner); err != nil {
		return false, err
	}

	text := fmt.Sprintf(previewText, owner.DisplayName)
	activity := &transport.Activity{
		Type:         transport.ActivityMessage,
		ServiceURL:   owner.ServiceURL,
		Conversation: &transport.ConversationAccount{ID: owner.ConversationID},
		Recipient:    &transport.ChannelAccount{ID: owner.TeamsID},
		Text:         text,
		Summary:      text,
		Attachments:  []transport.Attachment{d.builder.PreviewCard(ev, oc.ID, owner.DisplayName, true)},
	}
	msg := &models.EventMessage{
		EventID:      ev.ID,
		OccurrenceID: oc.ID,
		OccurrenceAt: due,
		Activity:     activity,
		TenantID:     owner.TenantID,
		Type:         models.MessageTypePreview,
		ExpireAt:     due.Add(24 * time.Hour),
	}
	if err := d.engine.Deliver(ctx, msg); err != nil {
		// The record is persisted; the retry sweep owns it from here.
		d.log.Warn("dispatch: preview send failed, left to retry",
			logx.String("event_id", ev.ID), logx.Err(err))
	}
	return true, nil
}

// ensureConversation resolves and persists the 1:1 conversation between
// the bot and the user.
func (d *Dispatcher) ensureConversation(ctx context.Context, u *models.User) error {
	if u.ConversationID != "" {
		return nil
	}
	convID, err := d.conn.CreateOrGetDirectConversation(ctx, u.ServiceURL, u.TenantID, u.TeamsID)
	if err != nil {
		return fmt.Errorf("create 1:1 conversation: %w", err)
	}
	u.ConversationID = convID
	return d.store.SaveUser(ctx, u)
}
