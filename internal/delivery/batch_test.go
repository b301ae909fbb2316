package delivery

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"celebot/internal/cards"
	"celebot/internal/models"
)

func notification(i int, name string) Notification {
	due := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	oc := &models.EventOccurrence{
		ID:      fmt.Sprintf("oc-%d", i),
		EventID: fmt.Sprintf("ev-%d", i),
		DueAt:   due,
		Year:    2026,
	}
	return Notification{
		Event: &models.CelebrationEvent{
			ID:    fmt.Sprintf("ev-%d", i),
			Type:  models.EventTypeBirthday,
			Title: "Birthday",
		},
		Occurrence: oc,
		Owner: &models.User{
			TeamsID:     fmt.Sprintf("29:user-%d", i),
			DisplayName: name,
			ServiceURL:  "https://smba.example.com/emea/",
			TenantID:    "tenant-1",
		},
	}
}

func TestBuildTeamMessagesChunking(t *testing.T) {
	items := make([]Notification, 13)
	for i := range items {
		items[i] = notification(i, fmt.Sprintf("User %02d", i))
	}
	builder := &cards.Builder{BaseURL: "https://celebrations.example.com", ManifestAppID: "app"}

	msgs := BuildTeamMessages("19:team@thread", items, builder, MaxEventsPerCarousel)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages for 13 events, got %d", len(msgs))
	}
	for i, want := range []int{6, 6, 1} {
		if got := len(msgs[i].Activity.Attachments); got != want {
			t.Fatalf("message %d: %d attachments, want %d", i, got, want)
		}
	}

	// The trailing singleton carries its event and occurrence ids; the
	// carousels span several events and carry none.
	last := msgs[2]
	if last.EventID != "ev-12" || last.OccurrenceID != "oc-12" {
		t.Fatalf("singleton ids missing: %+v", last)
	}
	for i := 0; i < 2; i++ {
		if msgs[i].EventID != "" || msgs[i].OccurrenceID != "" {
			t.Fatalf("carousel %d must not carry single-event ids: %+v", i, msgs[i])
		}
	}

	// Expiry is the occurrence due time plus the send window.
	due := items[0].Occurrence.DueAt
	if !msgs[0].ExpireAt.Equal(due.Add(12 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", msgs[0].ExpireAt)
	}

	// Singletons split on send (text + one card); carousels do not.
	if !splits(last.Activity) {
		t.Fatal("singleton activity must split into a reply chain")
	}
	if splits(msgs[0].Activity) {
		t.Fatal("carousel activity must not split")
	}
}

func TestCarouselSortedAndMentionsDeduped(t *testing.T) {
	builder := &cards.Builder{BaseURL: "https://celebrations.example.com", ManifestAppID: "app"}

	items := []Notification{
		notification(0, "Zoe"),
		notification(1, "Ana"),
		notification(2, "Mia"),
	}
	// Ana has a second event in the same chunk.
	items = append(items, items[1])

	msgs := BuildTeamMessages("19:team@thread", items, builder, MaxEventsPerCarousel)
	if len(msgs) != 1 {
		t.Fatalf("expected one carousel, got %d", len(msgs))
	}
	a := msgs[0].Activity

	if len(a.Attachments) != 4 {
		t.Fatalf("every event keeps its card: got %d", len(a.Attachments))
	}
	if len(a.Entities) != 3 {
		t.Fatalf("mentions must be deduped per person: got %+v", a.Entities)
	}

	// Owner names appear in byte order in the message text.
	text := a.Text
	posAna := strings.Index(text, "Ana")
	posMia := strings.Index(text, "Mia")
	posZoe := strings.Index(text, "Zoe")
	if posAna < 0 || posMia < 0 || posZoe < 0 || !(posAna < posMia && posMia < posZoe) {
		t.Fatalf("names out of order in %q", text)
	}
	for _, m := range a.Entities {
		if !strings.Contains(text, m.Text) {
			t.Fatalf("mention token %q missing from text %q", m.Text, text)
		}
	}
}

func TestBuildTeamMessagesEmpty(t *testing.T) {
	builder := &cards.Builder{}
	if msgs := BuildTeamMessages("19:team@thread", nil, builder, 0); msgs != nil {
		t.Fatalf("expected nil, got %+v", msgs)
	}
}
