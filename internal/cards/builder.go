package cards

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"celebot/internal/models"
	"celebot/internal/transport"
)

// eventsTabEntityID is the static tab entity the deep links target.
const eventsTabEntityID = "EventsTab"

const (
	previewHeader    = "Hi! %s's special day \"%s\" is coming up. Here's what I'll post:"
	eventHeader      = "Today is %s's \"%s\"!"
	shareMessage     = "You have events that are not shared with %s yet. Would you like to share them?"
	welcomeInstaller = "Thanks for installing me! I'll help your teams celebrate birthdays, anniversaries and other special days."
	welcomeHowTo     = "Add your events in the Events tab and share them with the teams you want to celebrate with."
	welcomePreviews  = "I'll send you a preview a few days before each event so you can make changes or skip a year."
	welcomeUserTitle = "Hi, I'm Celebrations bot!"
	welcomeUserBody  = "I help teams celebrate each other's special days. Add your events in the Events tab to get started."
	welcomeTeamTitle = "Hi, I'm Celebrations bot!"
	welcomeTeamBody  = "%s added me to %s so this team never misses a birthday or anniversary again. Add your own events to join in."
)

// defaultImages maps event types to the bundled celebration artwork,
// used when the owner did not pick an image.
var defaultImages = map[models.EventType]string{
	models.EventTypeBirthday:    "/static/images/birthday.png",
	models.EventTypeAnniversary: "/static/images/anniversary.png",
	models.EventTypeOther:       "/static/images/generic.png",
}

// Builder renders cards with instance-specific URLs baked in.
type Builder struct {
	// BaseURL is the externally reachable root of this service, used for
	// card artwork links.
	BaseURL string
	// ManifestAppID is the Teams app id the deep links open.
	ManifestAppID string
}

// PreviewCard is the owner-facing heads-up sent days before the event.
// skipAllowed is false once the occurrence is inside the processing
// buffer; the card then only offers the Edit link.
func (b *Builder) PreviewCard(ev *models.CelebrationEvent, occurrenceID, ownerName string, skipAllowed bool) transport.Attachment {
	buttons := []CardButton{{
		Type:  actionOpenURL,
		Title: "Edit",
		Value: b.EventsTabDeepLink(ev.ID),
	}}
	if skipAllowed {
		skip := CardButton{
			Type:  actionMessageBack,
			Title: "Skip this year",
			Value: models.SkipEventPayload{
				Action:           models.ActionSkipEvent.String(),
				EventID:          ev.ID,
				OccurrenceID:     occurrenceID,
				OwnerAadObjectID: ev.OwnerAadObjectID,
				OwnerName:        ownerName,
			},
		}
		buttons = append([]CardButton{skip}, buttons...)
	}

	card := &HeroCard{
		Title:   fmt.Sprintf(previewHeader, ownerName, ev.Title),
		Text:    ev.Message,
		Images:  []CardImage{{URL: b.imageURL(ev)}},
		Buttons: buttons,
	}
	return card.Attachment()
}

// EventCard is the celebration posted to teams on the day itself.
func (b *Builder) EventCard(ev *models.CelebrationEvent, ownerName string) transport.Attachment {
	card := &HeroCard{
		Title:  fmt.Sprintf(eventHeader, ownerName, ev.Title),
		Text:   ev.Message,
		Images: []CardImage{{URL: b.imageURL(ev)}},
	}
	return card.Attachment()
}

// WelcomeInstallerCard greets the person who installed the app 1:1.
func (b *Builder) WelcomeInstallerCard() transport.Attachment {
	return b.welcomeCard(
		newTextBlock(welcomeInstaller),
		newTextBlock(welcomeHowTo),
		newTextBlock(welcomePreviews),
	)
}

// WelcomeUserCard replies to a user who messages the bot directly.
func (b *Builder) WelcomeUserCard() transport.Attachment {
	body := newTextBlock(welcomeUserBody)
	body.Spacing = "none"
	return b.welcomeCard(newHeading(welcomeUserTitle), body)
}

// WelcomeTeamCard greets a team's General channel and its members when
// the bot is installed into the team.
func (b *Builder) WelcomeTeamCard(installerName, teamName string) transport.Attachment {
	body := newTextBlock(fmt.Sprintf(welcomeTeamBody, installerName, teamName))
	body.Spacing = "none"
	return b.welcomeCard(newHeading(welcomeTeamTitle), body)
}

func (b *Builder) welcomeCard(text ...TextBlock) transport.Attachment {
	items := make([]any, 0, len(text))
	for _, t := range text {
		items = append(items, t)
	}
	card := &AdaptiveCard{
		Type:    "AdaptiveCard",
		Version: "1.0",
		Body: []any{ColumnSet{
			Type: "ColumnSet",
			Columns: []Column{
				{Type: "Column", Width: "60", Items: []any{Image{
					Type: "Image",
					URL:  b.BaseURL + "/static/images/celebrations-bot.png",
					Size: "medium",
				}}},
				{Type: "Column", Width: "400", Items: items},
			},
		}},
		Actions: []OpenURLAction{
			{Type: "Action.OpenUrl", Title: "Get started", URL: b.EventsTabDeepLink("")},
		},
	}
	return card.Attachment()
}

// ShareEventsCard asks a user with unshared events whether to share them
// with the team they just joined.
func (b *Builder) ShareEventsCard(teamID, teamName, userAadObjectID string) transport.Attachment {
	mk := func(title string, kind models.ActionKind) CardButton {
		return CardButton{
			Type:        actionMessageBack,
			Title:       title,
			Text:        title,
			DisplayText: title,
			Value: models.ShareEventPayload{
				Action:          kind.String(),
				UserAadObjectID: userAadObjectID,
				TeamID:          teamID,
				TeamName:        teamName,
			},
		}
	}
	card := &HeroCard{
		Text: fmt.Sprintf(shareMessage, teamName),
		Buttons: []CardButton{
			mk("Share", models.ActionShareEvent),
			mk("No thanks", models.ActionIgnoreEventShare),
		},
	}
	return card.Attachment()
}

// ShareEventsCardResolved replaces the prompt after the user picked an
// answer, with the buttons removed.
func (b *Builder) ShareEventsCardResolved(teamName string) transport.Attachment {
	card := &HeroCard{Text: fmt.Sprintf(shareMessage, teamName)}
	return card.Attachment()
}

// EventsTabDeepLink builds a link that opens the Events tab inside
// Teams, optionally focused on one event.
func (b *Builder) EventsTabDeepLink(eventID string) string {
	var ctx string
	if eventID != "" {
		sub, _ := json.Marshal(struct {
			SubEntityID string `json:"subEntityId"`
		}{eventID})
		ctx = "context=" + url.QueryEscape(string(sub))
	}
	return fmt.Sprintf("https://teams.microsoft.com/l/entity/%s/%s?%s", b.ManifestAppID, eventsTabEntityID, ctx)
}

func (b *Builder) imageURL(ev *models.CelebrationEvent) string {
	img := ev.ImageURL
	if img == "" {
		img = defaultImages[ev.Type]
	}
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return img
	}
	return b.BaseURL + img
}
