package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"celebot/internal/models"
	"celebot/internal/recurrence"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// bump counts one write and occasionally sweeps expired occurrence and
// message rows so the file does not grow without bound.
func (s *sqliteStore) bump() {
	if s.opCount.Add(1)%s.pruneEvery != 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	now := timeStr(time.Now())
	if _, err := s.db.ExecContext(pctx, `DELETE FROM occurrences WHERE expire_at < ?`, now); err != nil {
		s.log.Debug("storage: prune occurrences", logx.Err(err))
	}
	if _, err := s.db.ExecContext(pctx, `DELETE FROM messages WHERE expire_at < ?`, now); err != nil {
		s.log.Debug("storage: prune messages", logx.Err(err))
	}
}

// -- events --

func (s *sqliteStore) AddEvent(ctx context.Context, ev *models.CelebrationEvent) error {
	teams, err := json.Marshal(nonNil(ev.Teams))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events(id, owner_aad_object_id, owner_teams_id, event_type, title, message,
		                    event_date, event_month, event_day, timezone_id, image_url, teams_json)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, ev.OwnerAadObjectID, nullStr(ev.OwnerTeamsID), ev.Type.String(), ev.Title, nullStr(ev.Message),
		timeStr(ev.Date), ev.Month(), ev.Day(), nullStr(ev.TimezoneID), nullStr(ev.ImageURL), string(teams),
	)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) UpdateEvent(ctx context.Context, ev *models.CelebrationEvent) error {
	teams, err := json.Marshal(nonNil(ev.Teams))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE events SET owner_teams_id=?, event_type=?, title=?, message=?, event_date=?,
		        event_month=?, event_day=?, timezone_id=?, image_url=?, teams_json=?
		 WHERE id=? AND owner_aad_object_id=?`,
		nullStr(ev.OwnerTeamsID), ev.Type.String(), ev.Title, nullStr(ev.Message), timeStr(ev.Date),
		ev.Month(), ev.Day(), nullStr(ev.TimezoneID), nullStr(ev.ImageURL), string(teams),
		ev.ID, ev.OwnerAadObjectID,
	)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) DeleteEvent(ctx context.Context, id, ownerAadObjectID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id=? AND owner_aad_object_id=?`, id, ownerAadObjectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	// Cascade by hand; the tables are not declared with FK references so
	// that a half-written occurrence never blocks an event delete.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM occurrences WHERE event_id=?`, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE event_id=?`, id)
	if err == nil {
		s.bump()
	}
	return err
}

const eventCols = `id, owner_aad_object_id, owner_teams_id, event_type, title, message,
       event_date, timezone_id, image_url, teams_json`

func (s *sqliteStore) GetEventByID(ctx context.Context, id, ownerAadObjectID string) (*models.CelebrationEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id=? AND owner_aad_object_id=?`, id, ownerAadObjectID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (s *sqliteStore) GetEventsByOwner(ctx context.Context, ownerAadObjectID string) ([]*models.CelebrationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE owner_aad_object_id=? ORDER BY event_month, event_day, title`,
		ownerAadObjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *sqliteStore) GetEventsByMonthDays(ctx context.Context, set []recurrence.MonthDay) ([]*models.CelebrationEvent, error) {
	if len(set) == 0 {
		return nil, nil
	}
	var (
		conds = make([]string, 0, len(set))
		args  = make([]any, 0, len(set)*2)
	)
	for _, md := range set {
		conds = append(conds, `(event_month=? AND event_day=?)`)
		args = append(args, md.Month, md.Day)
	}
	// Events shared with no team have nobody to notify and are skipped at
	// the query level.
	q := `SELECT ` + eventCols + ` FROM events WHERE (` + strings.Join(conds, " OR ") +
		`) AND teams_json != '[]' ORDER BY event_month, event_day`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// -- occurrences --

func (s *sqliteStore) AddOccurrence(ctx context.Context, oc *models.EventOccurrence) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO occurrences(id, event_id, owner_aad_object_id, due_at, year, status, expire_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(event_id, year) DO NOTHING`,
		oc.ID, oc.EventID, oc.OwnerAadObjectID, timeStr(oc.DueAt), oc.Year, oc.Status.String(), timeStr(oc.ExpireAt),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOccurrenceExists
	}
	s.bump()
	return nil
}

func (s *sqliteStore) UpdateOccurrence(ctx context.Context, oc *models.EventOccurrence) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE occurrences SET event_id=?, owner_aad_object_id=?, due_at=?, year=?, status=?, expire_at=?
		 WHERE id=?`,
		oc.EventID, oc.OwnerAadObjectID, timeStr(oc.DueAt), oc.Year, oc.Status.String(), timeStr(oc.ExpireAt),
		oc.ID,
	)
	if err == nil {
		s.bump()
	}
	return err
}

const occurrenceCols = `id, event_id, owner_aad_object_id, due_at, year, status, expire_at`

func (s *sqliteStore) GetOccurrenceByID(ctx context.Context, id string) (*models.EventOccurrence, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+occurrenceCols+` FROM occurrences WHERE id=?`, id)
	oc, err := scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return oc, err
}

func (s *sqliteStore) GetOccurrencesByEventIDs(ctx context.Context, eventIDs []string, now time.Time) ([]*models.EventOccurrence, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(eventIDs)+1)
	for _, id := range eventIDs {
		args = append(args, id)
	}
	args = append(args, timeStr(now))
	q := `SELECT ` + occurrenceCols + ` FROM occurrences WHERE event_id IN (` +
		placeholders(len(eventIDs)) + `) AND expire_at > ?`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

func (s *sqliteStore) GetDueOccurrences(ctx context.Context, now time.Time) ([]*models.EventOccurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceCols+` FROM occurrences WHERE status=? AND due_at <= ? ORDER BY due_at`,
		models.StatusPending.String(), timeStr(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// -- messages --

func (s *sqliteStore) AddMessage(ctx context.Context, m *models.EventMessage) error {
	activity, err := json.Marshal(m.Activity)
	if err != nil {
		return err
	}
	var (
		statusCode    any
		lastAttemptAt any
		responseBody  any
	)
	if r := m.SendResult; r != nil {
		statusCode = r.StatusCode
		lastAttemptAt = timeStr(r.LastAttemptTime)
		responseBody = nullStr(r.ResponseBody)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages(id, event_id, occurrence_id, occurrence_at, activity_json, tenant_id,
		                      message_type, status_code, last_attempt_at, response_body, expire_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, nullStr(m.EventID), nullStr(m.OccurrenceID), nullTime(m.OccurrenceAt), string(activity),
		nullStr(m.TenantID), m.Type.String(), statusCode, lastAttemptAt, responseBody, timeStr(m.ExpireAt),
	)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) UpdateMessage(ctx context.Context, m *models.EventMessage) error {
	activity, err := json.Marshal(m.Activity)
	if err != nil {
		return err
	}
	var (
		statusCode    any
		lastAttemptAt any
		responseBody  any
	)
	if r := m.SendResult; r != nil {
		statusCode = r.StatusCode
		lastAttemptAt = timeStr(r.LastAttemptTime)
		responseBody = nullStr(r.ResponseBody)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET event_id=?, occurrence_id=?, occurrence_at=?, activity_json=?, tenant_id=?,
		        message_type=?, status_code=?, last_attempt_at=?, response_body=?, expire_at=?
		 WHERE id=?`,
		nullStr(m.EventID), nullStr(m.OccurrenceID), nullTime(m.OccurrenceAt), string(activity),
		nullStr(m.TenantID), m.Type.String(), statusCode, lastAttemptAt, responseBody, timeStr(m.ExpireAt),
		m.ID,
	)
	if err == nil {
		s.bump()
	}
	return err
}

const messageCols = `id, event_id, occurrence_id, occurrence_at, activity_json, tenant_id,
       message_type, status_code, last_attempt_at, response_body, expire_at`

func (s *sqliteStore) GetMessageByID(ctx context.Context, id string) (*models.EventMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageCols+` FROM messages WHERE id=?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (s *sqliteStore) GetMessagesByRetryableStatus(ctx context.Context, codes []int, now time.Time) ([]*models.EventMessage, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(codes)+1)
	for _, c := range codes {
		args = append(args, c)
	}
	args = append(args, timeStr(now))
	// status_code NULL means the message was persisted but never attempted;
	// those are always worth a send.
	q := `SELECT ` + messageCols + ` FROM messages
	      WHERE (status_code IS NULL OR status_code IN (` + placeholders(len(codes)) + `))
	        AND expire_at > ?
	      ORDER BY expire_at`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EventMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// -- teams, users, memberships --

func (s *sqliteStore) SaveTeam(ctx context.Context, t *models.Team) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams(id, name, service_url, tenant_id, installer_name) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, service_url=excluded.service_url,
		        tenant_id=excluded.tenant_id, installer_name=excluded.installer_name`,
		t.ID, nullStr(t.Name), t.ServiceURL, nullStr(t.TenantID), nullStr(t.InstallerName),
	)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) GetTeamByID(ctx context.Context, id string) (*models.Team, error) {
	var (
		t                       models.Team
		name, tenant, installer sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, service_url, tenant_id, installer_name FROM teams WHERE id=?`, id).
		Scan(&t.ID, &name, &t.ServiceURL, &tenant, &installer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Name = name.String
	t.TenantID = tenant.String
	t.InstallerName = installer.String
	return &t, nil
}

func (s *sqliteStore) DeleteTeam(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id=?`, id)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) SaveUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, aad_object_id, teams_id, display_name, install_method,
		                   conversation_id, service_url, tenant_id)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET aad_object_id=excluded.aad_object_id, teams_id=excluded.teams_id,
		        display_name=excluded.display_name, install_method=excluded.install_method,
		        conversation_id=excluded.conversation_id, service_url=excluded.service_url,
		        tenant_id=excluded.tenant_id`,
		u.ID, nullStr(u.AadObjectID), nullStr(u.TeamsID), nullStr(u.DisplayName),
		u.InstallationMethod.String(), nullStr(u.ConversationID), nullStr(u.ServiceURL), nullStr(u.TenantID),
	)
	if err == nil {
		s.bump()
	}
	return err
}

const userCols = `id, aad_object_id, teams_id, display_name, install_method,
       conversation_id, service_url, tenant_id`

func (s *sqliteStore) GetUserByAadObjectID(ctx context.Context, aadObjectID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE aad_object_id=?`, aadObjectID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *sqliteStore) GetUserByTeamsID(ctx context.Context, teamsID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE teams_id=?`, teamsID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *sqliteStore) DeleteUserByTeamsID(ctx context.Context, teamsID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE teams_id=?`, teamsID)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) AddMembership(ctx context.Context, m *models.UserTeamMembership) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships(user_teams_id, team_id) VALUES(?,?)
		 ON CONFLICT(user_teams_id, team_id) DO NOTHING`,
		m.UserTeamsID, m.TeamID,
	)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) DeleteMembership(ctx context.Context, userTeamsID, teamID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_teams_id=? AND team_id=?`, userTeamsID, teamID)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) DeleteMembershipsByTeamID(ctx context.Context, teamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE team_id=?`, teamID)
	if err == nil {
		s.bump()
	}
	return err
}

func (s *sqliteStore) GetMembershipsByTeamID(ctx context.Context, teamID string) ([]*models.UserTeamMembership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_teams_id, team_id FROM memberships WHERE team_id=?`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (s *sqliteStore) GetMembershipsByUserTeamsID(ctx context.Context, userTeamsID string) ([]*models.UserTeamMembership, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_teams_id, team_id FROM memberships WHERE user_teams_id=?`, userTeamsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemberships(rows)
}

// -- scanning helpers --

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (*models.CelebrationEvent, error) {
	var (
		ev                              models.CelebrationEvent
		typ, date, teamsJSON            string
		ownerTeamsID, msg, tz, imageURL sql.NullString
	)
	if err := r.Scan(&ev.ID, &ev.OwnerAadObjectID, &ownerTeamsID, &typ, &ev.Title, &msg,
		&date, &tz, &imageURL, &teamsJSON); err != nil {
		return nil, err
	}
	t, err := parseTime(date)
	if err != nil {
		return nil, err
	}
	ev.Date = t
	ev.Type = models.ParseEventType(typ)
	ev.OwnerTeamsID = ownerTeamsID.String
	ev.Message = msg.String
	ev.TimezoneID = tz.String
	ev.ImageURL = imageURL.String
	if err := json.Unmarshal([]byte(teamsJSON), &ev.Teams); err != nil {
		return nil, fmt.Errorf("event %s: teams: %w", ev.ID, err)
	}
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]*models.CelebrationEvent, error) {
	var out []*models.CelebrationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanOccurrence(r rowScanner) (*models.EventOccurrence, error) {
	var (
		oc           models.EventOccurrence
		due, st, exp string
	)
	if err := r.Scan(&oc.ID, &oc.EventID, &oc.OwnerAadObjectID, &due, &oc.Year, &st, &exp); err != nil {
		return nil, err
	}
	var err error
	if oc.DueAt, err = parseTime(due); err != nil {
		return nil, err
	}
	if oc.ExpireAt, err = parseTime(exp); err != nil {
		return nil, err
	}
	oc.Status = models.ParseEventStatus(st)
	return &oc, nil
}

func collectOccurrences(rows *sql.Rows) ([]*models.EventOccurrence, error) {
	var out []*models.EventOccurrence
	for rows.Next() {
		oc, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

func scanMessage(r rowScanner) (*models.EventMessage, error) {
	var (
		m                       models.EventMessage
		activityJSON, typ, exp  string
		eventID, occID, tenant  sql.NullString
		occAt, lastAt, respBody sql.NullString
		statusCode              sql.NullInt64
	)
	if err := r.Scan(&m.ID, &eventID, &occID, &occAt, &activityJSON, &tenant,
		&typ, &statusCode, &lastAt, &respBody, &exp); err != nil {
		return nil, err
	}
	m.EventID = eventID.String
	m.OccurrenceID = occID.String
	m.TenantID = tenant.String
	m.Type = models.ParseMessageType(typ)
	var err error
	if m.ExpireAt, err = parseTime(exp); err != nil {
		return nil, err
	}
	if occAt.Valid {
		if m.OccurrenceAt, err = parseTime(occAt.String); err != nil {
			return nil, err
		}
	}
	if activityJSON != "" && activityJSON != "null" {
		var act transport.Activity
		if err := json.Unmarshal([]byte(activityJSON), &act); err != nil {
			return nil, fmt.Errorf("message %s: activity: %w", m.ID, err)
		}
		m.Activity = &act
	}
	if statusCode.Valid {
		at := time.Time{}
		if lastAt.Valid {
			if at, err = parseTime(lastAt.String); err != nil {
				return nil, err
			}
		}
		m.SendResult = &models.MessageSendResult{
			LastAttemptTime: at,
			StatusCode:      int(statusCode.Int64),
			ResponseBody:    respBody.String,
		}
	}
	return &m, nil
}

func scanUser(r rowScanner) (*models.User, error) {
	var (
		u                                        models.User
		install                                  string
		aad, teamsID, name, conv, svcURL, tenant sql.NullString
	)
	if err := r.Scan(&u.ID, &aad, &teamsID, &name, &install, &conv, &svcURL, &tenant); err != nil {
		return nil, err
	}
	u.AadObjectID = aad.String
	u.TeamsID = teamsID.String
	u.DisplayName = name.String
	u.InstallationMethod = models.ParseBotScope(install)
	u.ConversationID = conv.String
	u.ServiceURL = svcURL.String
	u.TenantID = tenant.String
	return &u, nil
}

func collectMemberships(rows *sql.Rows) ([]*models.UserTeamMembership, error) {
	var out []*models.UserTeamMembership
	for rows.Next() {
		var m models.UserTeamMembership
		if err := rows.Scan(&m.UserTeamsID, &m.TeamID); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return timeStr(t)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
