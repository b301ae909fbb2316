package delivery

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"celebot/internal/models"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

// fakeConnector lets each test program the transport behavior it needs.
type fakeConnector struct {
	sendErr error

	sent        []*transport.Activity
	replyChains []*transport.Activity
	cardsSent   []transport.Attachment
	directCalls int
}

func (f *fakeConnector) SendToConversation(_ context.Context, _ string, a *transport.Activity) (transport.ResourceResponse, error) {
	if f.sendErr != nil {
		return transport.ResourceResponse{}, f.sendErr
	}
	f.sent = append(f.sent, a)
	return transport.ResourceResponse{ID: "res-1"}, nil
}

func (f *fakeConnector) CreateReplyChain(_ context.Context, _, _ string, a *transport.Activity) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.replyChains = append(f.replyChains, a)
	return "thread-1", nil
}

func (f *fakeConnector) SendCard(_ context.Context, _, _ string, att transport.Attachment) (transport.ResourceResponse, error) {
	if f.sendErr != nil {
		return transport.ResourceResponse{}, f.sendErr
	}
	f.cardsSent = append(f.cardsSent, att)
	return transport.ResourceResponse{ID: "res-2"}, nil
}

func (f *fakeConnector) SendText(_ context.Context, _, _, _ string) (transport.ResourceResponse, error) {
	return transport.ResourceResponse{}, nil
}

func (f *fakeConnector) CreateOrGetDirectConversation(_ context.Context, _, _, _ string) (string, error) {
	f.directCalls++
	return "direct-1", nil
}

func (f *fakeConnector) UpdateActivity(_ context.Context, _, _, _ string, _ *transport.Activity) error {
	return nil
}

func (f *fakeConnector) GetConversationMembers(_ context.Context, _, _ string) ([]transport.ChannelAccount, error) {
	return nil, nil
}

func newTestEngine(t *testing.T, conn transport.Connector) (*Engine, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Path:        filepath.Join(t.TempDir(), "delivery.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(Config{RatePerSec: 1000}, st, conn, logx.Nop()), st
}

func eventMessage(text string, attachments int) *models.EventMessage {
	atts := make([]transport.Attachment, attachments)
	for i := range atts {
		atts[i] = transport.Attachment{ContentType: "application/vnd.microsoft.card.hero"}
	}
	return &models.EventMessage{
		Type: models.MessageTypeEvent,
		Activity: &transport.Activity{
			Type:             transport.ActivityMessage,
			ServiceURL:       "https://smba.example.com/emea/",
			Conversation:     &transport.ConversationAccount{ID: "19:team@thread"},
			AttachmentLayout: transport.LayoutCarousel,
			Text:             text,
			Attachments:      atts,
		},
		ExpireAt: time.Now().Add(12 * time.Hour),
	}
}

func TestDeliverRecordsFailureThenRetrySucceeds(t *testing.T) {
	conn := &fakeConnector{sendErr: &transport.StatusError{StatusCode: 503, Body: "upstream sad"}}
	e, st := newTestEngine(t, conn)
	ctx := context.Background()

	m := eventMessage("hello", 2)
	if err := e.Deliver(ctx, m); err == nil {
		t.Fatal("expected delivery error")
	}

	// The failed attempt is on record.
	got, err := st.GetMessageByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("GetMessageByID: %v, %v", got, err)
	}
	if got.SendResult == nil || got.SendResult.StatusCode != 503 {
		t.Fatalf("unexpected send result: %+v", got.SendResult)
	}
	if got.Delivered() {
		t.Fatal("message must not count as delivered")
	}

	// Transport recovers; the sweep picks the record up and closes it out.
	conn.sendErr = nil
	attempted, failed, err := e.RetrySweep(ctx, time.Now())
	if err != nil {
		t.Fatalf("RetrySweep: %v", err)
	}
	if attempted != 1 || failed != 0 {
		t.Fatalf("attempted=%d failed=%d", attempted, failed)
	}

	got, err = st.GetMessageByID(ctx, m.ID)
	if err != nil || got == nil {
		t.Fatalf("GetMessageByID: %v, %v", got, err)
	}
	if !got.Delivered() {
		t.Fatalf("expected delivered, got %+v", got.SendResult)
	}

	// Nothing retryable remains.
	attempted, _, err = e.RetrySweep(ctx, time.Now())
	if err != nil || attempted != 0 {
		t.Fatalf("expected empty sweep, attempted=%d err=%v", attempted, err)
	}
}

func TestUnclassifiedFailureRecordedAsMinusOne(t *testing.T) {
	conn := &fakeConnector{sendErr: context.DeadlineExceeded}
	e, st := newTestEngine(t, conn)
	ctx := context.Background()

	m := eventMessage("hello", 2)
	if err := e.Deliver(ctx, m); err == nil {
		t.Fatal("expected delivery error")
	}
	got, _ := st.GetMessageByID(ctx, m.ID)
	if got.SendResult == nil || got.SendResult.StatusCode != -1 {
		t.Fatalf("unexpected send result: %+v", got.SendResult)
	}
	if got.SendResult.ResponseBody == "" {
		t.Fatal("error text must be recorded")
	}

	// Unclassified failures are terminal; the sweep leaves them alone.
	conn.sendErr = nil
	attempted, _, err := e.RetrySweep(ctx, time.Now())
	if err != nil || attempted != 0 {
		t.Fatalf("-1 must not be retried, attempted=%d err=%v", attempted, err)
	}
}

func TestChannelMessageSplitsIntoReplyChain(t *testing.T) {
	conn := &fakeConnector{}
	e, _ := newTestEngine(t, conn)
	ctx := context.Background()

	// Text plus a single card becomes a thread root plus a card reply.
	single := eventMessage("celebrate!", 1)
	if err := e.Deliver(ctx, single); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(conn.replyChains) != 1 || len(conn.cardsSent) != 1 || len(conn.sent) != 0 {
		t.Fatalf("expected split send, got chains=%d cards=%d direct=%d",
			len(conn.replyChains), len(conn.cardsSent), len(conn.sent))
	}
	if root := conn.replyChains[0]; root.Text != "celebrate!" || len(root.Attachments) != 0 {
		t.Fatalf("unexpected thread root: %+v", root)
	}

	// A carousel of several cards goes out as one activity.
	multi := eventMessage("celebrate!", 3)
	if err := e.Deliver(ctx, multi); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(conn.sent) != 1 || len(conn.replyChains) != 1 {
		t.Fatalf("carousel must not split, got sent=%d chains=%d", len(conn.sent), len(conn.replyChains))
	}
}

func TestPreviewCreatesDirectConversation(t *testing.T) {
	conn := &fakeConnector{}
	e, st := newTestEngine(t, conn)
	ctx := context.Background()

	m := &models.EventMessage{
		Type:     models.MessageTypePreview,
		TenantID: "tenant-1",
		Activity: &transport.Activity{
			Type:       transport.ActivityMessage,
			ServiceURL: "https://smba.example.com/emea/",
			Recipient:  &transport.ChannelAccount{ID: "29:owner"},
			Text:       "heads up",
		},
		ExpireAt: time.Now().Add(24 * time.Hour),
	}
	if err := e.Deliver(ctx, m); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if conn.directCalls != 1 {
		t.Fatalf("expected direct conversation creation, got %d", conn.directCalls)
	}

	// The resolved conversation is persisted so a retry skips creation.
	got, _ := st.GetMessageByID(ctx, m.ID)
	if got.Activity.Conversation == nil || got.Activity.Conversation.ID != "direct-1" {
		t.Fatalf("conversation not persisted: %+v", got.Activity.Conversation)
	}
}

func TestTeamGoneCleanup(t *testing.T) {
	conn := &fakeConnector{sendErr: &transport.StatusError{StatusCode: http.StatusNotFound, Body: "gone"}}
	e, st := newTestEngine(t, conn)
	ctx := context.Background()

	var cleaned []string
	e.SetTeamGoneHandler(func(_ context.Context, teamID string) {
		cleaned = append(cleaned, teamID)
	})

	m := eventMessage("hello", 2)
	if err := e.Deliver(ctx, m); err == nil {
		t.Fatal("expected delivery error")
	}
	if len(cleaned) != 1 || cleaned[0] != "19:team@thread" {
		t.Fatalf("unexpected cleanup calls: %v", cleaned)
	}
	got, _ := st.GetMessageByID(ctx, m.ID)
	if got == nil || got.SendResult == nil || got.SendResult.StatusCode != http.StatusNotFound {
		t.Fatalf("404 not recorded on the message: %+v", got)
	}

	// 404 is terminal; the sweep must leave it alone.
	attempted, _, err := e.RetrySweep(ctx, time.Now())
	if err != nil || attempted != 0 {
		t.Fatalf("404 must not be retried, attempted=%d err=%v", attempted, err)
	}
}
