// Package bot processes incoming Bot Framework activities: card button
// submits and the conversation-update bookkeeping that keeps the
// team/user records in sync with reality.
package bot

import (
	"context"
	"fmt"

	"celebot/internal/cards"
	"celebot/internal/delivery"
	"celebot/internal/models"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

// Handler reacts to activities delivered to /api/messages.
type Handler struct {
	store   storage.Store
	conn    transport.Connector
	engine  *delivery.Engine
	builder *cards.Builder
	log     logx.Logger
}

func New(store storage.Store, conn transport.Connector, engine *delivery.Engine, builder *cards.Builder, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{store: store, conn: conn, engine: engine, builder: builder, log: log}
}

// HandleActivity routes one incoming activity. Unknown activity types
// are ignored without error; the channel sends plenty we don't care
// about.
func (h *Handler) HandleActivity(ctx context.Context, a *transport.Activity) error {
	if a == nil || a.Conversation == nil {
		return fmt.Errorf("bot: activity without conversation")
	}
	h.log.Debug("bot: activity received",
		logx.String("type", a.Type),
		logx.String("conversation_type", a.Conversation.ConversationType))

	switch a.Type {
	case transport.ActivityMessage:
		if len(a.Value) > 0 {
			return h.handleCardAction(ctx, a)
		}
		// Any plain message gets the welcome card in response.
		return h.sendCard(ctx, a.ServiceURL, a.Conversation.ID, h.builder.WelcomeUserCard())

	case transport.ActivityConversationUpdate:
		switch a.Conversation.ConversationType {
		case "personal":
			return h.handlePersonalUpdate(ctx, a)
		case "channel":
			return h.handleTeamUpdate(ctx, a)
		default:
			h.log.Warn("bot: conversationUpdate with unexpected scope",
				logx.String("conversation_type", a.Conversation.ConversationType))
			return nil
		}

	default:
		return nil
	}
}

func (h *Handler) handleCardAction(ctx context.Context, a *transport.Activity) error {
	action, err := models.DecodeCardAction(a.Value)
	if err != nil {
		h.log.Warn("bot: undecodable card action", logx.Err(err))
		return err
	}
	switch action.Kind {
	case models.ActionSkipEvent:
		return h.handleSkipEvent(ctx, a, action.Skip)
	case models.ActionShareEvent:
		return h.handleShareEvent(ctx, a, action.Share)
	case models.ActionIgnoreEventShare:
		return h.handleIgnoreEventShare(ctx, a, action.Ignore)
	default:
		return fmt.Errorf("bot: unhandled action %v", action.Kind)
	}
}

// sendText and sendCard go through the delivery engine's rate-limited
// passthrough so interactive replies and bulk sends share one budget.

func (h *Handler) sendText(ctx context.Context, serviceURL, conversationID, text string) error {
	return h.engine.SendToConversation(ctx, &transport.Activity{
		Type:         transport.ActivityMessage,
		ServiceURL:   serviceURL,
		Conversation: &transport.ConversationAccount{ID: conversationID},
		Text:         text,
	})
}

func (h *Handler) sendCard(ctx context.Context, serviceURL, conversationID string, att transport.Attachment) error {
	return h.engine.SendToConversation(ctx, &transport.Activity{
		Type:         transport.ActivityMessage,
		ServiceURL:   serviceURL,
		Conversation: &transport.ConversationAccount{ID: conversationID},
		Attachments:  []transport.Attachment{att},
	})
}
