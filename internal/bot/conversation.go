package bot

import (
	"context"
	"errors"
	"fmt"

	"celebot/internal/models"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	"github.com/google/uuid"
)

const eventTeamRenamed = "teamRenamed"

// handlePersonalUpdate reacts to the bot being installed 1:1.
func (h *Handler) handlePersonalUpdate(ctx context.Context, a *transport.Activity) error {
	if !botIn(a.MembersAdded, a) || a.From == nil {
		return nil
	}
	h.log.Info("bot: personal install", logx.String("user", a.From.ID))

	cd := transport.DecodeChannelData(a)
	tenantID := ""
	if cd.Tenant != nil {
		tenantID = cd.Tenant.ID
	}

	existing, err := h.store.GetUserByAadObjectID(ctx, a.From.AadObjectID)
	if err != nil {
		return err
	}
	if existing == nil {
		u := &models.User{
			ID:                 uuid.NewString(),
			AadObjectID:        a.From.AadObjectID,
			TeamsID:            a.From.ID,
			DisplayName:        a.From.Name,
			InstallationMethod: models.ScopePersonal,
			ConversationID:     a.Conversation.ID,
			ServiceURL:         a.ServiceURL,
			TenantID:           tenantID,
		}
		if err := h.store.SaveUser(ctx, u); err != nil {
			return err
		}
	} else if existing.InstallationMethod == models.ScopeTeam {
		// Already welcomed through a team; don't greet twice.
		return nil
	}

	return h.sendCard(ctx, a.ServiceURL, a.Conversation.ID, h.builder.WelcomeInstallerCard())
}

// handleTeamUpdate reacts to membership churn and team events in a
// channel-scoped conversation.
func (h *Handler) handleTeamUpdate(ctx context.Context, a *transport.Activity) error {
	cd := transport.DecodeChannelData(a)
	if cd.Team == nil || cd.Team.ID == "" {
		return fmt.Errorf("bot: team conversationUpdate without team channel data")
	}

	switch {
	case len(a.MembersAdded) > 0:
		return h.handleTeamMembersAdded(ctx, a, cd)
	case len(a.MembersRemoved) > 0:
		return h.handleTeamMembersRemoved(ctx, a, cd)
	case cd.EventType == eventTeamRenamed:
		return h.handleTeamRenamed(ctx, a, cd)
	default:
		return nil
	}
}

func (h *Handler) handleTeamMembersAdded(ctx context.Context, a *transport.Activity, cd transport.TeamsChannelData) error {
	teamID := cd.Team.ID
	botAdded := botIn(a.MembersAdded, a)

	team, err := h.store.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}

	// A member event from a team we have no record of means we missed
	// the install; rebuild the team record from what we can see.
	backfill := team == nil && !botAdded
	if backfill {
		h.log.Info("bot: missed install detected, backfilling", logx.String("team_id", teamID))
	}

	members := a.MembersAdded
	roster := h.newRoster(a.ServiceURL)
	if botAdded || backfill {
		installerName := ""
		if !backfill && a.From != nil {
			installerName = a.From.Name
			if installerName == "" {
				installerName = roster.displayName(ctx, teamID, a.From.ID)
			}
		}

		tenantID := ""
		if cd.Tenant != nil {
			tenantID = cd.Tenant.ID
		}
		team = &models.Team{
			ID:            teamID,
			Name:          cd.Team.Name,
			ServiceURL:    a.ServiceURL,
			TenantID:      tenantID,
			InstallerName: installerName,
		}
		if err := h.store.SaveTeam(ctx, team); err != nil {
			return err
		}
		h.log.Info("bot: installed to team",
			logx.String("team_id", teamID), logx.String("installer", installerName))

		// Welcome the General channel, then greet the whole roster 1:1.
		if err := h.sendCard(ctx, a.ServiceURL, a.Conversation.ID, h.builder.WelcomeTeamCard(installerName, team.Name)); err != nil {
			h.log.Warn("bot: channel welcome failed", logx.Err(err))
		}
		if members, err = h.conn.GetConversationMembers(ctx, a.ServiceURL, teamID); err != nil {
			return fmt.Errorf("bot: team roster: %w", err)
		}
		roster.byTeam[teamID] = members
	}

	var errs []error
	for _, m := range members {
		if a.Recipient != nil && m.ID == a.Recipient.ID {
			continue
		}
		if err := h.processNewTeamMember(ctx, m, team, roster); err != nil {
			h.log.Error("bot: new member processing failed",
				logx.String("member", m.ID), logx.String("team_id", teamID), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// processNewTeamMember records the membership and greets the member in
// their 1:1, offering to share any events they already have.
func (h *Handler) processNewTeamMember(ctx context.Context, m transport.ChannelAccount, team *models.Team, roster *rosterCache) error {
	if err := h.store.AddMembership(ctx, &models.UserTeamMembership{
		UserTeamsID: m.ID,
		TeamID:      team.ID,
	}); err != nil {
		return err
	}

	aadObjectID := m.AadObjectID
	if aadObjectID == "" {
		return nil
	}

	attachments := []transport.Attachment{h.builder.WelcomeTeamCard(team.InstallerName, team.Name)}
	events, err := h.store.GetEventsByOwner(ctx, aadObjectID)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		attachments = append(attachments, h.builder.ShareEventsCard(team.ID, team.Name, aadObjectID))
	}

	user, err := h.store.GetUserByAadObjectID(ctx, aadObjectID)
	if err != nil {
		return err
	}
	conversationID := ""
	if user != nil {
		conversationID = user.ConversationID
	}
	if conversationID == "" {
		if conversationID, err = h.conn.CreateOrGetDirectConversation(ctx, team.ServiceURL, team.TenantID, m.ID); err != nil {
			return err
		}
	}

	for _, att := range attachments {
		if err := h.sendCard(ctx, team.ServiceURL, conversationID, att); err != nil {
			return err
		}
	}

	if user == nil {
		u := &models.User{
			ID:                 uuid.NewString(),
			AadObjectID:        aadObjectID,
			TeamsID:            m.ID,
			DisplayName:        roster.name(ctx, team.ID, m),
			InstallationMethod: models.ScopeTeam,
			ConversationID:     conversationID,
			ServiceURL:         team.ServiceURL,
			TenantID:           team.TenantID,
		}
		return h.store.SaveUser(ctx, u)
	}
	return nil
}

func (h *Handler) handleTeamMembersRemoved(ctx context.Context, a *transport.Activity, cd transport.TeamsChannelData) error {
	teamID := cd.Team.ID
	if botIn(a.MembersRemoved, a) {
		h.log.Info("bot: removed from team", logx.String("team_id", teamID))
		if err := h.store.DeleteTeam(ctx, teamID); err != nil {
			return err
		}
		return h.store.DeleteMembershipsByTeamID(ctx, teamID)
	}

	var errs []error
	for _, m := range a.MembersRemoved {
		if err := h.store.DeleteMembership(ctx, m.ID, teamID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) handleTeamRenamed(ctx context.Context, a *transport.Activity, cd transport.TeamsChannelData) error {
	team, err := h.store.GetTeamByID(ctx, cd.Team.ID)
	if err != nil {
		return err
	}
	if team == nil {
		tenantID := ""
		if cd.Tenant != nil {
			tenantID = cd.Tenant.ID
		}
		team = &models.Team{ID: cd.Team.ID, ServiceURL: a.ServiceURL, TenantID: tenantID}
	}
	team.Name = cd.Team.Name
	h.log.Info("bot: team renamed", logx.String("team_id", team.ID), logx.String("name", team.Name))
	return h.store.SaveTeam(ctx, team)
}

// botIn reports whether the activity's recipient (the bot) is among the
// listed members.
func botIn(members []transport.ChannelAccount, a *transport.Activity) bool {
	if a.Recipient == nil {
		return false
	}
	for _, m := range members {
		if m.ID == a.Recipient.ID {
			return true
		}
	}
	return false
}

// rosterCache memoizes team rosters so one burst of member events costs
// at most one members call per team.
type rosterCache struct {
	h          *Handler
	serviceURL string
	byTeam     map[string][]transport.ChannelAccount
}

func (h *Handler) newRoster(serviceURL string) *rosterCache {
	return &rosterCache{h: h, serviceURL: serviceURL, byTeam: map[string][]transport.ChannelAccount{}}
}

func (r *rosterCache) members(ctx context.Context, teamID string) []transport.ChannelAccount {
	if got, ok := r.byTeam[teamID]; ok {
		return got
	}
	members, err := r.h.conn.GetConversationMembers(ctx, r.serviceURL, teamID)
	if err != nil {
		r.h.log.Warn("bot: roster lookup failed", logx.String("team_id", teamID), logx.Err(err))
		members = nil
	}
	r.byTeam[teamID] = members
	return members
}

// name resolves a member's display name, falling back to the roster
// when the event did not carry it.
func (r *rosterCache) name(ctx context.Context, teamID string, m transport.ChannelAccount) string {
	if m.Name != "" {
		return m.Name
	}
	return r.displayName(ctx, teamID, m.ID)
}

func (r *rosterCache) displayName(ctx context.Context, teamID, memberID string) string {
	for _, m := range r.members(ctx, teamID) {
		if m.ID == memberID {
			return m.Name
		}
	}
	return ""
}
