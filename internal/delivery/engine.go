// Package delivery persists and sends outbound messages. Every message
// is written to storage before the first network attempt, and the
// outcome of every attempt is written back, so a crash at any point
// leaves a record the retry sweep can pick up.
package delivery

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"celebot/internal/models"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	"github.com/google/uuid"
)

type Config struct {
	// RatePerSec caps outbound connector calls. 0 means 10.
	RatePerSec int
}

// Engine sends persisted delivery records through the connector.
type Engine struct {
	store storage.Store
	conn  transport.Connector
	log   logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter

	// onTeamGone is invoked when a team send comes back 404, meaning the
	// team deleted the bot (or itself). The callback cleans up team state.
	onTeamGone func(ctx context.Context, teamID string)
}

func New(cfg Config, store storage.Store, conn transport.Connector, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Engine{
		store:   store,
		conn:    conn,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Apply swaps in new settings. Safe to call while sends are in flight.
func (e *Engine) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	e.mu.Lock()
	e.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	e.mu.Unlock()
}

func (e *Engine) SetTeamGoneHandler(fn func(ctx context.Context, teamID string)) {
	e.mu.Lock()
	e.onTeamGone = fn
	e.mu.Unlock()
}

// Deliver persists the message, then attempts to send it. The returned
// error reflects the send attempt; the record exists either way.
func (e *Engine) Deliver(ctx context.Context, m *models.EventMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := e.store.AddMessage(ctx, m); err != nil {
		return err
	}
	return e.Send(ctx, m)
}

// Send attempts delivery of an already persisted record and writes the
// attempt result back, whatever the outcome.
func (e *Engine) Send(ctx context.Context, m *models.EventMessage) (err error) {
	defer func() {
		status, body := http.StatusOK, ""
		if err != nil {
			status = transport.StatusOf(err)
			body = err.Error()
		}
		m.RecordResult(time.Now(), status, body)

		// The result must land even when ctx was cancelled mid-send.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if uerr := e.store.UpdateMessage(rctx, m); uerr != nil {
			e.log.Error("delivery: record result", logx.String("message_id", m.ID), logx.Err(uerr))
		}

		if status == http.StatusNotFound && m.Type == models.MessageTypeEvent {
			e.teamGone(rctx, m)
		}
	}()

	e.mu.Lock()
	lim := e.limiter
	e.mu.Unlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	return e.send(ctx, m)
}

func (e *Engine) send(ctx context.Context, m *models.EventMessage) error {
	a := m.Activity
	if a == nil {
		return errors.New("delivery: message has no activity")
	}
	if a.ServiceURL == "" {
		return errors.New("delivery: activity has no service url")
	}

	// 1:1 previews may not have a conversation yet.
	if a.Conversation == nil || a.Conversation.ID == "" {
		if a.Recipient == nil || a.Recipient.ID == "" {
			return errors.New("delivery: activity has neither conversation nor recipient")
		}
		convID, err := e.conn.CreateOrGetDirectConversation(ctx, a.ServiceURL, m.TenantID, a.Recipient.ID)
		if err != nil {
			return err
		}
		// Kept on the record so retries skip conversation creation.
		a.Conversation = &transport.ConversationAccount{ID: convID}
	}

	// Teams splits a channel message that carries both text and a card
	// into two posts. Sending the text as a thread root and the cards as
	// replies keeps them visually together.
	if m.Type == models.MessageTypeEvent && splits(a) {
		root := &transport.Activity{
			Type:     transport.ActivityMessage,
			Text:     a.Text,
			Entities: a.Entities,
		}
		threadID, err := e.conn.CreateReplyChain(ctx, a.ServiceURL, a.Conversation.ID, root)
		if err != nil {
			return err
		}
		for _, att := range a.Attachments {
			if _, err := e.conn.SendCard(ctx, a.ServiceURL, threadID, att); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := e.conn.SendToConversation(ctx, a.ServiceURL, a)
	return err
}

// splits reports whether the Teams client would split the activity into
// separate text and card posts. Carousels of two or more cards survive
// intact; everything else with text plus attachments gets split.
func splits(a *transport.Activity) bool {
	if len(a.Attachments) == 0 {
		return false
	}
	if a.AttachmentLayout == transport.LayoutCarousel {
		return a.Text != "" && len(a.Attachments) == 1
	}
	return true
}

// RetrySweep re-sends every unexpired record whose last attempt failed
// with a retryable status, or that was never attempted. Items fail
// independently.
func (e *Engine) RetrySweep(ctx context.Context, now time.Time) (attempted, failed int, err error) {
	msgs, err := e.store.GetMessagesByRetryableStatus(ctx, models.RetryableStatusCodes, now)
	if err != nil {
		return 0, 0, err
	}
	for _, m := range msgs {
		if ctx.Err() != nil {
			return attempted, failed, ctx.Err()
		}
		attempted++
		if serr := e.Send(ctx, m); serr != nil {
			failed++
			e.log.Warn("delivery: retry failed",
				logx.String("message_id", m.ID),
				logx.String("type", m.Type.String()),
				logx.Int("status", transport.StatusOf(serr)),
				logx.Err(serr))
		}
	}
	if attempted > 0 {
		e.log.Info("delivery: retry sweep done",
			logx.Int("attempted", attempted), logx.Int("failed", failed))
	}
	return attempted, failed, nil
}

func (e *Engine) teamGone(ctx context.Context, m *models.EventMessage) {
	e.mu.Lock()
	fn := e.onTeamGone
	e.mu.Unlock()
	if fn == nil || m.Activity == nil || m.Activity.Conversation == nil {
		return
	}
	teamID := m.Activity.Conversation.ID
	e.log.Info("delivery: team unreachable, cleaning up", logx.String("team_id", teamID))
	fn(ctx, teamID)
}

// SendToConversation is a thin rate-limited passthrough for fire-and-
// forget messages (welcome cards, confirmations) that need no delivery
// record.
func (e *Engine) SendToConversation(ctx context.Context, a *transport.Activity) error {
	e.mu.Lock()
	lim := e.limiter
	e.mu.Unlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := e.conn.SendToConversation(ctx, a.ServiceURL, a)
	return err
}
