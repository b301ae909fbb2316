package cards

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"celebot/internal/models"
	"celebot/internal/transport"
)

func testBuilder() *Builder {
	return &Builder{
		BaseURL:       "https://celebrations.example.com",
		ManifestAppID: "4d263f49-c3a1-4c9c-9e61-d0c830a5e68b",
	}
}

func testEvent() *models.CelebrationEvent {
	return &models.CelebrationEvent{
		ID:               "ev1",
		OwnerAadObjectID: "aad-1",
		Type:             models.EventTypeBirthday,
		Title:            "Birthday",
		Message:          "Let's celebrate!",
		Date:             time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestPreviewCardButtons(t *testing.T) {
	b := testBuilder()

	att := b.PreviewCard(testEvent(), "oc1", "Ana", true)
	if att.ContentType != ContentTypeHero {
		t.Fatalf("unexpected content type %q", att.ContentType)
	}
	card := att.Content.(*HeroCard)
	if len(card.Buttons) != 2 {
		t.Fatalf("expected skip + edit, got %+v", card.Buttons)
	}
	if card.Buttons[0].Type != actionMessageBack || card.Buttons[1].Type != actionOpenURL {
		t.Fatalf("unexpected button order: %+v", card.Buttons)
	}

	// The skip payload must survive a JSON round trip into the action
	// decoder the bot uses on the way back in.
	raw, err := json.Marshal(card.Buttons[0].Value)
	if err != nil {
		t.Fatalf("marshal skip value: %v", err)
	}
	action, err := models.DecodeCardAction(raw)
	if err != nil {
		t.Fatalf("DecodeCardAction: %v", err)
	}
	if action.Kind != models.ActionSkipEvent {
		t.Fatalf("unexpected action kind %v", action.Kind)
	}
	if action.Skip.EventID != "ev1" || action.Skip.OccurrenceID != "oc1" || action.Skip.OwnerAadObjectID != "aad-1" {
		t.Fatalf("unexpected skip payload: %+v", action.Skip)
	}

	// Inside the processing buffer skipping is no longer offered.
	att = b.PreviewCard(testEvent(), "oc1", "Ana", false)
	card = att.Content.(*HeroCard)
	if len(card.Buttons) != 1 || card.Buttons[0].Type != actionOpenURL {
		t.Fatalf("expected only the edit link, got %+v", card.Buttons)
	}
}

func TestEventCardUsesDefaultImage(t *testing.T) {
	b := testBuilder()
	ev := testEvent()
	ev.ImageURL = ""

	card := b.EventCard(ev, "Ana").Content.(*HeroCard)
	if len(card.Images) != 1 {
		t.Fatalf("expected one image, got %+v", card.Images)
	}
	if got := card.Images[0].URL; got != b.BaseURL+"/static/images/birthday.png" {
		t.Fatalf("unexpected image url %q", got)
	}

	ev.ImageURL = "https://cdn.example.com/cake.png"
	card = b.EventCard(ev, "Ana").Content.(*HeroCard)
	if got := card.Images[0].URL; got != ev.ImageURL {
		t.Fatalf("absolute image url must be kept, got %q", got)
	}
}

func TestShareEventsCardRoundTrip(t *testing.T) {
	b := testBuilder()
	card := b.ShareEventsCard("19:team@thread", "Engineering", "aad-1").Content.(*HeroCard)
	if len(card.Buttons) != 2 {
		t.Fatalf("expected share + no thanks, got %+v", card.Buttons)
	}

	for i, wantKind := range []models.ActionKind{models.ActionShareEvent, models.ActionIgnoreEventShare} {
		raw, err := json.Marshal(card.Buttons[i].Value)
		if err != nil {
			t.Fatalf("marshal button %d: %v", i, err)
		}
		action, err := models.DecodeCardAction(raw)
		if err != nil {
			t.Fatalf("DecodeCardAction button %d: %v", i, err)
		}
		if action.Kind != wantKind {
			t.Fatalf("button %d: got kind %v, want %v", i, action.Kind, wantKind)
		}
	}

	resolved := b.ShareEventsCardResolved("Engineering").Content.(*HeroCard)
	if len(resolved.Buttons) != 0 {
		t.Fatalf("resolved card must have no buttons: %+v", resolved.Buttons)
	}
	if !strings.Contains(resolved.Text, "Engineering") {
		t.Fatalf("team name missing from text: %q", resolved.Text)
	}
}

func TestEventsTabDeepLink(t *testing.T) {
	b := testBuilder()

	plain := b.EventsTabDeepLink("")
	if !strings.HasPrefix(plain, "https://teams.microsoft.com/l/entity/"+b.ManifestAppID+"/EventsTab") {
		t.Fatalf("unexpected deep link %q", plain)
	}
	if strings.Contains(plain, "context=") {
		t.Fatalf("plain link must carry no context: %q", plain)
	}

	focused := b.EventsTabDeepLink("ev1")
	if !strings.Contains(focused, "context=") {
		t.Fatalf("focused link missing context: %q", focused)
	}
	if strings.Contains(focused, `"subEntityId"`) {
		t.Fatalf("context must be escaped: %q", focused)
	}
}

func TestWelcomeCards(t *testing.T) {
	b := testBuilder()

	for name, att := range map[string]transport.Attachment{
		"installer": b.WelcomeInstallerCard(),
		"user":      b.WelcomeUserCard(),
		"team":      b.WelcomeTeamCard("Ana", "Engineering"),
	} {
		if att.ContentType != ContentTypeAdaptive {
			t.Fatalf("%s: unexpected content type %q", name, att.ContentType)
		}
		card := att.Content.(*AdaptiveCard)
		if card.Version != "1.0" || len(card.Body) != 1 {
			t.Fatalf("%s: unexpected card shape: %+v", name, card)
		}
		if len(card.Actions) == 0 || card.Actions[0].Type != "Action.OpenUrl" {
			t.Fatalf("%s: missing get-started action: %+v", name, card.Actions)
		}
	}

	team := b.WelcomeTeamCard("Ana", "Engineering").Content.(*AdaptiveCard)
	raw, err := json.Marshal(team)
	if err != nil {
		t.Fatalf("marshal team card: %v", err)
	}
	if !strings.Contains(string(raw), "Ana") || !strings.Contains(string(raw), "Engineering") {
		t.Fatalf("installer/team name missing from card: %s", raw)
	}
}
