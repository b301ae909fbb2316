package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"celebot/internal/delivery"
	"celebot/internal/models"
	logx "celebot/pkg/logx"
)

// EventCycle delivers the celebrations that are due, grouped and
// batched per team, then marks their occurrences sent. Teams fail
// independently.
func (d *Dispatcher) EventCycle(ctx context.Context, now time.Time) error {
	cfg := d.config()
	d.log.Info("dispatch: event cycle started", logx.Time("now", now))

	due, err := d.store.GetDueOccurrences(ctx, now)
	if err != nil {
		return fmt.Errorf("event cycle: %w", err)
	}
	if len(due) == 0 {
		d.log.Info("dispatch: nothing due")
		return nil
	}

	// Resolve each occurrence to its event and owner. Broken references
	// (deleted events, unknown owners) are logged and dropped; the
	// occurrence is still closed out below so it stops coming back.
	byTeam := map[string][]delivery.Notification{}
	var resolved []*models.EventOccurrence
	for _, oc := range due {
		n, ok := d.resolve(ctx, oc)
		if !ok {
			resolved = append(resolved, oc)
			continue
		}
		if now.After(oc.LastAllowableSendTime()) {
			d.log.Warn("dispatch: occurrence past last allowable send time, dropped",
				logx.String("occurrence_id", oc.ID), logx.Time("due", oc.DueAt))
			resolved = append(resolved, oc)
			continue
		}
		for _, teamID := range n.Event.Teams {
			byTeam[teamID] = append(byTeam[teamID], n)
		}
		resolved = append(resolved, oc)
	}

	var errs []error
	for teamID, items := range byTeam {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := d.sendToTeam(ctx, cfg, teamID, items); err != nil {
			d.log.Error("dispatch: team delivery failed", logx.String("team_id", teamID), logx.Err(err))
			errs = append(errs, fmt.Errorf("team %s: %w", teamID, err))
		}
	}

	// Close the occurrences out regardless of per-team failures; failed
	// sends live on as delivery records for the retry sweep.
	for _, oc := range resolved {
		oc.Status = models.StatusSent
		if err := d.store.UpdateOccurrence(ctx, oc); err != nil {
			errs = append(errs, fmt.Errorf("occurrence %s: %w", oc.ID, err))
		}
	}

	d.log.Info("dispatch: event cycle finished",
		logx.Int("due", len(due)), logx.Int("teams", len(byTeam)), logx.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// resolve loads the event and owner behind an occurrence.
func (d *Dispatcher) resolve(ctx context.Context, oc *models.EventOccurrence) (delivery.Notification, bool) {
	ev, err := d.store.GetEventByID(ctx, oc.EventID, oc.OwnerAadObjectID)
	if err != nil || ev == nil {
		d.log.Info("dispatch: event missing for occurrence, skipping",
			logx.String("occurrence_id", oc.ID), logx.String("event_id", oc.EventID), logx.Err(err))
		return delivery.Notification{}, false
	}
	owner, err := d.store.GetUserByAadObjectID(ctx, oc.OwnerAadObjectID)
	if err != nil || owner == nil {
		d.log.Info("dispatch: owner missing for occurrence, skipping",
			logx.String("occurrence_id", oc.ID), logx.String("owner", oc.OwnerAadObjectID), logx.Err(err))
		return delivery.Notification{}, false
	}
	return delivery.Notification{Event: ev, Occurrence: oc, Owner: owner}, true
}

func (d *Dispatcher) sendToTeam(ctx context.Context, cfg Config, teamID string, items []delivery.Notification) error {
	// Unknown teams get nothing; their records were cleaned up when the
	// bot was removed.
	team, err := d.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team == nil {
		d.log.Info("dispatch: team not known, skipping", logx.String("team_id", teamID))
		return nil
	}

	var errs []error
	for _, msg := range delivery.BuildTeamMessages(teamID, items, d.builder, cfg.MaxEventsPerCarousel) {
		if err := d.engine.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
