package models

// BotScope says how the bot reached a user: personal install or via a team.
type BotScope int

const (
	ScopePersonal BotScope = iota
	ScopeTeam
)

func (s BotScope) String() string {
	if s == ScopeTeam {
		return "team"
	}
	return "personal"
}

// ParseBotScope maps the db form back to a BotScope.
func ParseBotScope(s string) BotScope {
	if s == "team" {
		return ScopeTeam
	}
	return ScopePersonal
}

// User is someone the bot can reach, recorded when the app is installed
// personally or when the user appears in a team the bot belongs to.
type User struct {
	ID                 string   `json:"id"`
	AadObjectID        string   `json:"aadObjectId"`
	TeamsID            string   `json:"teamsId"`
	DisplayName        string   `json:"userName,omitempty"`
	InstallationMethod BotScope `json:"installationMethod"`
	// ConversationID is the bot<->user 1:1 thread, created lazily.
	ConversationID string `json:"conversationId,omitempty"`
	ServiceURL     string `json:"serviceUrl,omitempty"`
	TenantID       string `json:"tenantId,omitempty"`
}

// Team records a team the bot is installed in.
type Team struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	ServiceURL    string `json:"serviceUrl,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
	InstallerName string `json:"installerName,omitempty"`
}

// UserTeamMembership links a user (by Teams id) to a team.
type UserTeamMembership struct {
	UserTeamsID string `json:"userTeamsId"`
	TeamID      string `json:"teamId"`
}
