// Package msteams implements the transport.Connector against the Bot
// Framework connector REST API.
package msteams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

// Config carries the bot's Azure AD app registration.
type Config struct {
	AppID         string
	AppSecret     string
	TokenEndpoint string        // empty means the public Bot Framework endpoint
	Timeout       time.Duration // per-request; 0 means 30s
}

// Client talks to the Bot Framework connector service. Safe for
// concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *tokenSource
	log    logx.Logger

	// botAccount is attached as the From of created conversations.
	botAccount transport.ChannelAccount
}

var _ transport.Connector = (*Client)(nil)

func New(cfg Config, log logx.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:        cfg,
		http:       hc,
		tokens:     newTokenSource(cfg.AppID, cfg.AppSecret, cfg.TokenEndpoint, hc),
		log:        log,
		botAccount: transport.ChannelAccount{ID: "28:" + cfg.AppID},
	}
}

func (c *Client) SendToConversation(ctx context.Context, serviceURL string, activity *transport.Activity) (transport.ResourceResponse, error) {
	if activity == nil || activity.Conversation == nil || activity.Conversation.ID == "" {
		return transport.ResourceResponse{}, fmt.Errorf("msteams: activity has no conversation")
	}
	var rr transport.ResourceResponse
	err := c.call(ctx, http.MethodPost,
		joinURL(serviceURL, "/v3/conversations/"+activity.Conversation.ID+"/activities"),
		activity, &rr)
	return rr, err
}

func (c *Client) SendCard(ctx context.Context, serviceURL, conversationID string, attachment transport.Attachment) (transport.ResourceResponse, error) {
	return c.SendToConversation(ctx, serviceURL, &transport.Activity{
		Type:         transport.ActivityMessage,
		Conversation: &transport.ConversationAccount{ID: conversationID},
		Attachments:  []transport.Attachment{attachment},
	})
}

func (c *Client) SendText(ctx context.Context, serviceURL, conversationID, text string) (transport.ResourceResponse, error) {
	return c.SendToConversation(ctx, serviceURL, &transport.Activity{
		Type:         transport.ActivityMessage,
		Conversation: &transport.ConversationAccount{ID: conversationID},
		Text:         text,
	})
}

// CreateReplyChain posts activity as the root of a new thread in the
// given channel and returns the thread's conversation id, which accepts
// ordinary SendToConversation replies.
func (c *Client) CreateReplyChain(ctx context.Context, serviceURL, channelID string, activity *transport.Activity) (string, error) {
	params := transport.ConversationParameters{
		IsGroup:  true,
		Bot:      &c.botAccount,
		Activity: activity,
		ChannelData: transport.TeamsChannelData{
			Channel: &transport.ChannelInfo{ID: channelID},
		},
	}
	var rr transport.ResourceResponse
	if err := c.call(ctx, http.MethodPost, joinURL(serviceURL, "/v3/conversations"), params, &rr); err != nil {
		return "", err
	}
	return rr.ID, nil
}

func (c *Client) CreateOrGetDirectConversation(ctx context.Context, serviceURL, tenantID, userTeamsID string) (string, error) {
	params := transport.ConversationParameters{
		Bot:      &c.botAccount,
		Members:  []transport.ChannelAccount{{ID: userTeamsID}},
		TenantID: tenantID,
	}
	var rr transport.ResourceResponse
	if err := c.call(ctx, http.MethodPost, joinURL(serviceURL, "/v3/conversations"), params, &rr); err != nil {
		return "", err
	}
	return rr.ID, nil
}

func (c *Client) UpdateActivity(ctx context.Context, serviceURL, conversationID, activityID string, activity *transport.Activity) error {
	return c.call(ctx, http.MethodPut,
		joinURL(serviceURL, "/v3/conversations/"+conversationID+"/activities/"+activityID),
		activity, nil)
}

func (c *Client) GetConversationMembers(ctx context.Context, serviceURL, conversationID string) ([]transport.ChannelAccount, error) {
	var members []transport.ChannelAccount
	err := c.call(ctx, http.MethodGet,
		joinURL(serviceURL, "/v3/conversations/"+conversationID+"/members"),
		nil, &members)
	return members, err
}

// maxSendAttempts bounds the in-call retry on throttling; longer-lived
// retries belong to the persisted delivery records.
const maxSendAttempts = 3

func (c *Client) call(ctx context.Context, method, url string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("msteams: encode request: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		status, body, retryHint, err := c.do(ctx, method, url, payload)
		if err != nil {
			return err
		}
		switch {
		case status >= 200 && status < 300:
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return fmt.Errorf("msteams: decode response: %w", err)
				}
			}
			return nil
		case status == http.StatusUnauthorized:
			// Token may have been revoked server-side; force a refresh once.
			c.tokens.invalidate()
			if attempt < maxSendAttempts {
				continue
			}
		case status == http.StatusTooManyRequests && attempt < maxSendAttempts:
			delay := retryAfter(retryHint, attempt)
			c.log.Debug("msteams: throttled",
				logx.String("url", url), logx.Int("attempt", attempt), logx.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return &transport.StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) (status int, body []byte, retryHint string, err error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, "", err
	}

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, "", fmt.Errorf("msteams: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, "", fmt.Errorf("msteams: read response: %w", err)
	}
	return resp.StatusCode, b, resp.Header.Get("Retry-After"), nil
}

// retryAfter honors a Retry-After hint when present, otherwise backs off
// linearly with the attempt number.
func retryAfter(hint string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(hint)); err == nil && secs > 0 && secs <= 60 {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(attempt) * 2 * time.Second
}

func joinURL(serviceURL, path string) string {
	return strings.TrimSuffix(serviceURL, "/") + path
}
