package bot

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"celebot/internal/cards"
	"celebot/internal/delivery"
	"celebot/internal/models"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"
)

type sentCard struct {
	conversationID string
	att            transport.Attachment
}

type sentText struct {
	conversationID string
	text           string
}

type fakeConnector struct {
	roster      map[string][]transport.ChannelAccount
	rosterCalls int
	cardsSent   []sentCard
	textsSent   []sentText
	updates     []*transport.Activity
	directCalls int
}

func (f *fakeConnector) SendToConversation(_ context.Context, _ string, a *transport.Activity) (transport.ResourceResponse, error) {
	switch {
	case len(a.Attachments) > 0:
		for _, att := range a.Attachments {
			f.cardsSent = append(f.cardsSent, sentCard{conversationID: a.Conversation.ID, att: att})
		}
	case a.Text != "":
		f.textsSent = append(f.textsSent, sentText{conversationID: a.Conversation.ID, text: a.Text})
	}
	return transport.ResourceResponse{ID: "res"}, nil
}

func (f *fakeConnector) CreateReplyChain(_ context.Context, _, _ string, _ *transport.Activity) (string, error) {
	return "thread-1", nil
}

func (f *fakeConnector) SendCard(_ context.Context, _, conversationID string, att transport.Attachment) (transport.ResourceResponse, error) {
	f.cardsSent = append(f.cardsSent, sentCard{conversationID: conversationID, att: att})
	return transport.ResourceResponse{ID: "res"}, nil
}

func (f *fakeConnector) SendText(_ context.Context, _, conversationID, text string) (transport.ResourceResponse, error) {
	f.textsSent = append(f.textsSent, sentText{conversationID: conversationID, text: text})
	return transport.ResourceResponse{ID: "res"}, nil
}

func (f *fakeConnector) CreateOrGetDirectConversation(_ context.Context, _, _, userTeamsID string) (string, error) {
	f.directCalls++
	return "direct-" + userTeamsID, nil
}

func (f *fakeConnector) UpdateActivity(_ context.Context, _, _, _ string, a *transport.Activity) error {
	f.updates = append(f.updates, a)
	return nil
}

func (f *fakeConnector) GetConversationMembers(_ context.Context, _, conversationID string) ([]transport.ChannelAccount, error) {
	f.rosterCalls++
	return f.roster[conversationID], nil
}

func (f *fakeConnector) lastText(t *testing.T) sentText {
	t.Helper()
	if len(f.textsSent) == 0 {
		t.Fatalf("no text sent")
	}
	return f.textsSent[len(f.textsSent)-1]
}

type fixture struct {
	store   storage.Store
	conn    *fakeConnector
	handler *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Path:        filepath.Join(t.TempDir(), "bot.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	conn := &fakeConnector{roster: map[string][]transport.ChannelAccount{}}
	engine := delivery.New(delivery.Config{RatePerSec: 1000}, st, conn, logx.Nop())
	builder := &cards.Builder{BaseURL: "https://celebrations.example.com", ManifestAppID: "app"}
	return &fixture{
		store:   st,
		conn:    conn,
		handler: New(st, conn, engine, builder, logx.Nop()),
	}
}

func (f *fixture) seedEvent(t *testing.T, id, owner string, teams ...string) *models.CelebrationEvent {
	t.Helper()
	ev := &models.CelebrationEvent{
		ID:               id,
		OwnerAadObjectID: owner,
		Type:             models.EventTypeBirthday,
		Title:            "Birthday",
		Date:             time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		TimezoneID:       "UTC",
		Teams:            teams,
	}
	if err := f.store.AddEvent(context.Background(), ev); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	return ev
}

func cardActivity(value any, replyToID string) *transport.Activity {
	raw, _ := json.Marshal(value)
	return &transport.Activity{
		Type:         transport.ActivityMessage,
		ServiceURL:   "https://smba.example.com/emea/",
		Conversation: &transport.ConversationAccount{ID: "conv-1", ConversationType: "personal"},
		From:         &transport.ChannelAccount{ID: "29:owner", AadObjectID: "aad-1", Name: "Ana"},
		Recipient:    &transport.ChannelAccount{ID: "28:bot", Name: "Celebrations"},
		ReplyToID:    replyToID,
		Value:        raw,
	}
}

func teamUpdate(conversationType string, added, removed []transport.ChannelAccount, channelData any) *transport.Activity {
	raw, _ := json.Marshal(channelData)
	return &transport.Activity{
		Type:           transport.ActivityConversationUpdate,
		ServiceURL:     "https://smba.example.com/emea/",
		Conversation:   &transport.ConversationAccount{ID: "19:general", ConversationType: conversationType},
		From:           &transport.ChannelAccount{ID: "29:installer", Name: "Ivo"},
		Recipient:      &transport.ChannelAccount{ID: "28:bot", Name: "Celebrations"},
		MembersAdded:   added,
		MembersRemoved: removed,
		ChannelData:    raw,
	}
}

func channelData(teamID, teamName, eventType string) map[string]any {
	return map[string]any{
		"tenant":    map[string]any{"id": "tenant-1"},
		"team":      map[string]any{"id": teamID, "name": teamName},
		"eventType": eventType,
	}
}

func TestSkipEventMarksOccurrenceSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-1", "team-1")

	oc := &models.EventOccurrence{
		ID:               "oc-1",
		EventID:          "ev-1",
		OwnerAadObjectID: "aad-1",
		DueAt:            time.Now().Add(48 * time.Hour).UTC(),
		Year:             time.Now().Year(),
	}
	oc.ExpireAt = oc.DefaultExpiry()
	if err := f.store.AddOccurrence(ctx, oc); err != nil {
		t.Fatalf("AddOccurrence: %v", err)
	}

	a := cardActivity(models.SkipEventPayload{
		Action:           "SkipEvent",
		EventID:          "ev-1",
		OccurrenceID:     "oc-1",
		OwnerAadObjectID: "aad-1",
		OwnerName:        "Ana",
	}, "activity-1")
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	got, err := f.store.GetOccurrenceByID(ctx, "oc-1")
	if err != nil || got == nil {
		t.Fatalf("GetOccurrenceByID: %v %v", got, err)
	}
	if got.Status != models.StatusSkipped {
		t.Fatalf("status = %v, want skipped", got.Status)
	}
	if len(f.conn.updates) != 1 {
		t.Fatalf("card updates = %d, want 1", len(f.conn.updates))
	}
	if text := f.conn.lastText(t); !strings.Contains(text.text, "skip") {
		t.Fatalf("confirmation = %q", text.text)
	}
}

func TestSkipFromStaleCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-1", "team-1")

	a := cardActivity(models.SkipEventPayload{
		Action:           "SkipEvent",
		EventID:          "ev-1",
		OccurrenceID:     "oc-gone",
		OwnerAadObjectID: "aad-1",
	}, "activity-1")
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}
	if text := f.conn.lastText(t); text.text != msgStaleSkipCard {
		t.Fatalf("reply = %q, want stale-card notice", text.text)
	}
	if len(f.conn.updates) != 0 {
		t.Fatalf("card updated for a stale skip")
	}
}

func TestSkipAfterDueTimeRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-1", "team-1")

	oc := &models.EventOccurrence{
		ID:               "oc-1",
		EventID:          "ev-1",
		OwnerAadObjectID: "aad-1",
		DueAt:            time.Now().Add(-time.Hour).UTC(),
		Year:             time.Now().Year(),
	}
	oc.ExpireAt = oc.DefaultExpiry()
	if err := f.store.AddOccurrence(ctx, oc); err != nil {
		t.Fatalf("AddOccurrence: %v", err)
	}

	a := cardActivity(models.SkipEventPayload{
		Action:           "SkipEvent",
		EventID:          "ev-1",
		OccurrenceID:     "oc-1",
		OwnerAadObjectID: "aad-1",
	}, "")
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}
	if text := f.conn.lastText(t); text.text != msgEventPassed {
		t.Fatalf("reply = %q, want already-passed notice", text.text)
	}
	got, _ := f.store.GetOccurrenceByID(ctx, "oc-1")
	if got.Status != models.StatusPending {
		t.Fatalf("status = %v, want pending", got.Status)
	}
}

func TestShareEventsWithTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-1")
	f.seedEvent(t, "ev-2", "aad-1", "team-1")
	if err := f.store.SaveTeam(ctx, &models.Team{ID: "team-1", Name: "Design"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	f.conn.roster["team-1"] = []transport.ChannelAccount{
		{ID: "29:owner", AadObjectID: "aad-1", Name: "Ana"},
	}

	a := cardActivity(models.ShareEventPayload{
		Action:          "ShareEvent",
		UserAadObjectID: "aad-1",
		TeamID:          "team-1",
		TeamName:        "Design",
	}, "activity-7")
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	events, err := f.store.GetEventsByOwner(ctx, "aad-1")
	if err != nil {
		t.Fatalf("GetEventsByOwner: %v", err)
	}
	for _, ev := range events {
		if !ev.SharedWith("team-1") {
			t.Fatalf("event %s not shared with team-1", ev.ID)
		}
		if len(ev.Teams) != 1 {
			t.Fatalf("event %s teams = %v, want exactly one entry", ev.ID, ev.Teams)
		}
	}
	if len(f.conn.updates) != 1 {
		t.Fatalf("share card not resolved")
	}
	if text := f.conn.lastText(t); text.text != msgShareSuccess {
		t.Fatalf("reply = %q", text.text)
	}
}

func TestShareRefusedWhenNotMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-1")
	if err := f.store.SaveTeam(ctx, &models.Team{ID: "team-1", Name: "Design"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}

	a := cardActivity(models.ShareEventPayload{
		Action:          "ShareEvent",
		UserAadObjectID: "aad-1",
		TeamID:          "team-1",
		TeamName:        "Design",
	}, "")
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	events, _ := f.store.GetEventsByOwner(ctx, "aad-1")
	if events[0].SharedWith("team-1") {
		t.Fatalf("event shared despite user not being a member")
	}
	if text := f.conn.lastText(t); !strings.Contains(text.text, "Design") {
		t.Fatalf("reply = %q, want team name in refusal", text.text)
	}
}

func TestIgnoreShareOnlyResolvesCard(t *testing.T) {
	f := newFixture(t)
	a := cardActivity(models.ShareEventPayload{
		Action:          "IgnoreEventShare",
		UserAadObjectID: "aad-1",
		TeamID:          "team-1",
		TeamName:        "Design",
	}, "activity-9")
	if err := f.handler.HandleActivity(context.Background(), a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}
	if len(f.conn.updates) != 1 {
		t.Fatalf("card updates = %d, want 1", len(f.conn.updates))
	}
	if len(f.conn.textsSent) != 0 {
		t.Fatalf("unexpected reply %v", f.conn.textsSent)
	}
}

func TestTeamInstallWelcomesRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEvent(t, "ev-1", "aad-mia")
	f.conn.roster["19:team"] = []transport.ChannelAccount{
		{ID: "28:bot", Name: "Celebrations"},
		{ID: "29:mia", AadObjectID: "aad-mia", Name: "Mia"},
		{ID: "29:zoe", AadObjectID: "aad-zoe", Name: "Zoe"},
	}

	a := teamUpdate("channel",
		[]transport.ChannelAccount{{ID: "28:bot", Name: "Celebrations"}},
		nil, channelData("19:team", "Design", ""))
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	team, err := f.store.GetTeamByID(ctx, "19:team")
	if err != nil || team == nil {
		t.Fatalf("GetTeamByID: %v %v", team, err)
	}
	if team.Name != "Design" || team.InstallerName != "Ivo" || team.TenantID != "tenant-1" {
		t.Fatalf("team = %+v", team)
	}

	// Channel welcome plus a 1:1 welcome per member, and a share prompt
	// for the member who already has events.
	var channelCards, miaCards, zoeCards int
	for _, c := range f.conn.cardsSent {
		switch c.conversationID {
		case "19:general":
			channelCards++
		case "direct-29:mia":
			miaCards++
		case "direct-29:zoe":
			zoeCards++
		}
	}
	if channelCards != 1 {
		t.Fatalf("channel cards = %d, want 1", channelCards)
	}
	if miaCards != 2 {
		t.Fatalf("cards to mia = %d, want welcome plus share prompt", miaCards)
	}
	if zoeCards != 1 {
		t.Fatalf("cards to zoe = %d, want 1", zoeCards)
	}

	for _, id := range []string{"29:mia", "29:zoe"} {
		memberships, err := f.store.GetMembershipsByUserTeamsID(ctx, id)
		if err != nil || len(memberships) != 1 {
			t.Fatalf("memberships for %s = %v %v", id, memberships, err)
		}
	}
	mia, err := f.store.GetUserByAadObjectID(ctx, "aad-mia")
	if err != nil || mia == nil {
		t.Fatalf("GetUserByAadObjectID: %v %v", mia, err)
	}
	if mia.InstallationMethod != models.ScopeTeam || mia.ConversationID != "direct-29:mia" {
		t.Fatalf("mia = %+v", mia)
	}
}

func TestSingleMemberJoinsKnownTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveTeam(ctx, &models.Team{
		ID:         "19:team",
		Name:       "Design",
		ServiceURL: "https://smba.example.com/emea/",
		TenantID:   "tenant-1",
	}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}

	a := teamUpdate("channel",
		[]transport.ChannelAccount{{ID: "29:new", AadObjectID: "aad-new", Name: "Noa"}},
		nil, channelData("19:team", "Design", ""))
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	memberships, err := f.store.GetMembershipsByTeamID(ctx, "19:team")
	if err != nil || len(memberships) != 1 {
		t.Fatalf("memberships = %v %v", memberships, err)
	}
	user, _ := f.store.GetUserByAadObjectID(ctx, "aad-new")
	if user == nil || user.DisplayName != "Noa" {
		t.Fatalf("user = %+v", user)
	}
	// Only the joiner is greeted; the existing roster is left alone.
	for _, c := range f.conn.cardsSent {
		if c.conversationID != "direct-29:new" {
			t.Fatalf("card sent to %s", c.conversationID)
		}
	}
}

func TestBotRemovedFromTeamCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveTeam(ctx, &models.Team{ID: "19:team", Name: "Design"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	for _, id := range []string{"29:mia", "29:zoe"} {
		if err := f.store.AddMembership(ctx, &models.UserTeamMembership{UserTeamsID: id, TeamID: "19:team"}); err != nil {
			t.Fatalf("AddMembership: %v", err)
		}
	}

	a := teamUpdate("channel", nil,
		[]transport.ChannelAccount{{ID: "28:bot", Name: "Celebrations"}},
		channelData("19:team", "Design", ""))
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	team, _ := f.store.GetTeamByID(ctx, "19:team")
	if team != nil {
		t.Fatalf("team record survived removal")
	}
	memberships, _ := f.store.GetMembershipsByTeamID(ctx, "19:team")
	if len(memberships) != 0 {
		t.Fatalf("memberships survived removal: %v", memberships)
	}
}

func TestMemberRemovedDropsMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveTeam(ctx, &models.Team{ID: "19:team"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}
	if err := f.store.AddMembership(ctx, &models.UserTeamMembership{UserTeamsID: "29:mia", TeamID: "19:team"}); err != nil {
		t.Fatalf("AddMembership: %v", err)
	}

	a := teamUpdate("channel", nil,
		[]transport.ChannelAccount{{ID: "29:mia", Name: "Mia"}},
		channelData("19:team", "Design", ""))
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	memberships, _ := f.store.GetMembershipsByTeamID(ctx, "19:team")
	if len(memberships) != 0 {
		t.Fatalf("membership survived member removal")
	}
	if team, _ := f.store.GetTeamByID(ctx, "19:team"); team == nil {
		t.Fatalf("team deleted on plain member removal")
	}
}

func TestTeamRenamedUpdatesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveTeam(ctx, &models.Team{ID: "19:team", Name: "Design"}); err != nil {
		t.Fatalf("SaveTeam: %v", err)
	}

	a := teamUpdate("channel", nil, nil, channelData("19:team", "Design & Research", "teamRenamed"))
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	team, _ := f.store.GetTeamByID(ctx, "19:team")
	if team == nil || team.Name != "Design & Research" {
		t.Fatalf("team = %+v", team)
	}
}

func TestPersonalInstallSavesUserAndWelcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := &transport.Activity{
		Type:         transport.ActivityConversationUpdate,
		ServiceURL:   "https://smba.example.com/emea/",
		Conversation: &transport.ConversationAccount{ID: "a:1to1", ConversationType: "personal"},
		From:         &transport.ChannelAccount{ID: "29:ana", AadObjectID: "aad-ana", Name: "Ana"},
		Recipient:    &transport.ChannelAccount{ID: "28:bot", Name: "Celebrations"},
		MembersAdded: []transport.ChannelAccount{{ID: "28:bot", Name: "Celebrations"}},
	}
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}

	user, err := f.store.GetUserByAadObjectID(ctx, "aad-ana")
	if err != nil || user == nil {
		t.Fatalf("GetUserByAadObjectID: %v %v", user, err)
	}
	if user.InstallationMethod != models.ScopePersonal || user.ConversationID != "a:1to1" {
		t.Fatalf("user = %+v", user)
	}
	if len(f.conn.cardsSent) != 1 || f.conn.cardsSent[0].conversationID != "a:1to1" {
		t.Fatalf("cards = %v", f.conn.cardsSent)
	}
}

func TestPersonalInstallSilentForTeamScopedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveUser(ctx, &models.User{
		ID:                 "u1",
		AadObjectID:        "aad-ana",
		TeamsID:            "29:ana",
		InstallationMethod: models.ScopeTeam,
		ConversationID:     "direct-29:ana",
	}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	a := &transport.Activity{
		Type:         transport.ActivityConversationUpdate,
		ServiceURL:   "https://smba.example.com/emea/",
		Conversation: &transport.ConversationAccount{ID: "a:1to1", ConversationType: "personal"},
		From:         &transport.ChannelAccount{ID: "29:ana", AadObjectID: "aad-ana", Name: "Ana"},
		Recipient:    &transport.ChannelAccount{ID: "28:bot", Name: "Celebrations"},
		MembersAdded: []transport.ChannelAccount{{ID: "28:bot", Name: "Celebrations"}},
	}
	if err := f.handler.HandleActivity(ctx, a); err != nil {
		t.Fatalf("HandleActivity: %v", err)
	}
	if len(f.conn.cardsSent) != 0 {
		t.Fatalf("welcome sent despite prior team install")
	}
}
