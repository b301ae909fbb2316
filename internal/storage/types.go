package storage

import (
	"context"
	"errors"
	"time"

	"celebot/internal/models"
	"celebot/internal/recurrence"
)

// ErrOccurrenceExists is returned by AddOccurrence when the (event, year)
// claim has already been taken. Concurrent dispatcher runs treat this as
// "someone else got there first" and move on.
var ErrOccurrenceExists = errors.New("occurrence already claimed for this event and year")

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default when empty): SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store is the persistence API consumed by the pipeline.
//
// Lookup methods return (nil, nil) for missing rows: a data miss is an
// expected condition (stale cards, deleted events) handled by skipping,
// not an error.
type Store interface {
	// Events. Read-mostly from the pipeline's point of view; mutated by
	// the tab/CRUD surface.
	AddEvent(ctx context.Context, ev *models.CelebrationEvent) error
	UpdateEvent(ctx context.Context, ev *models.CelebrationEvent) error
	// DeleteEvent cascades to the event's occurrences and delivery records.
	DeleteEvent(ctx context.Context, id, ownerAadObjectID string) error
	GetEventByID(ctx context.Context, id, ownerAadObjectID string) (*models.CelebrationEvent, error)
	GetEventsByOwner(ctx context.Context, ownerAadObjectID string) ([]*models.CelebrationEvent, error)
	// GetEventsByMonthDays returns events whose (month, day) is in the set
	// and that are shared with at least one team.
	GetEventsByMonthDays(ctx context.Context, set []recurrence.MonthDay) ([]*models.CelebrationEvent, error)

	// Occurrences (the idempotency ledger).
	AddOccurrence(ctx context.Context, oc *models.EventOccurrence) error
	UpdateOccurrence(ctx context.Context, oc *models.EventOccurrence) error
	GetOccurrenceByID(ctx context.Context, id string) (*models.EventOccurrence, error)
	// GetOccurrencesByEventIDs returns occurrences unexpired as of now.
	GetOccurrencesByEventIDs(ctx context.Context, eventIDs []string, now time.Time) ([]*models.EventOccurrence, error)
	GetDueOccurrences(ctx context.Context, now time.Time) ([]*models.EventOccurrence, error)

	// Delivery records.
	AddMessage(ctx context.Context, m *models.EventMessage) error
	UpdateMessage(ctx context.Context, m *models.EventMessage) error
	GetMessageByID(ctx context.Context, id string) (*models.EventMessage, error)
	// GetMessagesByRetryableStatus returns unexpired messages whose last
	// status is in codes, plus ones never attempted at all.
	GetMessagesByRetryableStatus(ctx context.Context, codes []int, now time.Time) ([]*models.EventMessage, error)

	// Teams, users, membership bookkeeping.
	SaveTeam(ctx context.Context, t *models.Team) error
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
	DeleteTeam(ctx context.Context, id string) error
	SaveUser(ctx context.Context, u *models.User) error
	GetUserByAadObjectID(ctx context.Context, aadObjectID string) (*models.User, error)
	GetUserByTeamsID(ctx context.Context, teamsID string) (*models.User, error)
	DeleteUserByTeamsID(ctx context.Context, teamsID string) error
	AddMembership(ctx context.Context, m *models.UserTeamMembership) error
	DeleteMembership(ctx context.Context, userTeamsID, teamID string) error
	DeleteMembershipsByTeamID(ctx context.Context, teamID string) error
	GetMembershipsByTeamID(ctx context.Context, teamID string) ([]*models.UserTeamMembership, error)
	GetMembershipsByUserTeamsID(ctx context.Context, userTeamsID string) ([]*models.UserTeamMembership, error)

	Close() error
}
