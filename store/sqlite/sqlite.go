/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Production persistence for the syndicate. Every interface in
  ledger/store.go is implemented here on top of sqlx.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statement on the ledger table exists in this package
  - Triggers abort any UPDATE/DELETE issued by anything else
  - Corrections are made by appending further entries

KEY TABLES:
  ledger:           Immutable signed entries (source of truth)
  bets:             Bet metadata; status moves pending -> terminal once
  seasons:          At most one row with is_active = 1 (partial unique index)
  player_seasons:   Memberships, unique per (player, season)
  weeks:            Rota weeks, unique per (season, week_number)
  week_assignments: Unique per (week, order) and (week, player)

CONCURRENCY:
  The pool is capped at one connection, so SQLite sees a single writer.
  Bet settlement is a compare-and-set on status = 'pending', so two
  settlements of the same bet cannot both succeed.

  Query() holds that connection while streaming. Outside WithTx, fn must not
  call back into the store.

USAGE:
  store, err := sqlite.New("./data/syndicate.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is managed by golang-migrate from the embedded migrations/
  directory and applied on New().

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/syndicate/ledger"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db *sqlx.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{ext: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &ledger.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&queries{ext: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &ledger.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// =============================================================================
// QUERIES - shared by the pooled handle and transactions
// =============================================================================

type queries struct {
	ext sqlx.ExtContext
}

// atomic runs fn in a transaction unless one is already open.
func (q *queries) atomic(ctx context.Context, fn func(*queries) error) error {
	db, ok := q.ext.(*sqlx.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return &ledger.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&queries{ext: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ledger.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

type entryRow struct {
	ID          string          `db:"id"`
	EntryDate   string          `db:"entry_date"`
	EntryType   string          `db:"entry_type"`
	PlayerID    string          `db:"player_id"`
	SeasonID    string          `db:"season_id"`
	WeekID      sql.NullString  `db:"week_id"`
	BetID       sql.NullString  `db:"bet_id"`
	Amount      decimal.Decimal `db:"amount"`
	Description sql.NullString  `db:"description"`
	CreatedAt   string          `db:"created_at"`
	CreatedBy   sql.NullString  `db:"created_by"`
}

func (r entryRow) toEntry() (ledger.Entry, error) {
	day, err := parseDate(r.EntryDate)
	if err != nil {
		return ledger.Entry{}, err
	}
	created, _ := time.Parse(timestampLayout, r.CreatedAt)
	return ledger.Entry{
		ID:          ledger.EntryID(r.ID),
		Date:        day,
		Type:        ledger.EntryType(r.EntryType),
		PlayerID:    ledger.PlayerID(r.PlayerID),
		SeasonID:    ledger.SeasonID(r.SeasonID),
		WeekID:      ledger.WeekID(r.WeekID.String),
		BetID:       ledger.BetID(r.BetID.String),
		Amount:      r.Amount,
		Description: r.Description.String,
		CreatedAt:   created,
		CreatedBy:   r.CreatedBy.String,
	}, nil
}

const entryColumns = `id, entry_date, entry_type, player_id, season_id, week_id, bet_id,
	amount, description, created_at, created_by`

// Append inserts entries as one atomic unit.
func (q *queries) Append(ctx context.Context, entries []ledger.Entry) error {
	return q.atomic(ctx, func(tq *queries) error {
		for _, e := range entries {
			if e.ID == "" {
				e.ID = ledger.EntryID(uuid.NewString())
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = time.Now().UTC()
			}
			_, err := tq.ext.ExecContext(ctx, `
				INSERT INTO ledger (`+entryColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID,
				formatDate(e.Date),
				e.Type,
				e.PlayerID,
				e.SeasonID,
				nullString(string(e.WeekID)),
				nullString(string(e.BetID)),
				e.Amount,
				nullString(e.Description),
				e.CreatedAt.UTC().Format(timestampLayout),
				nullString(e.CreatedBy),
			)
			if err != nil {
				return wrapErr("append entries", err)
			}
		}
		return nil
	})
}

// Query streams matching entries to fn.
func (q *queries) Query(ctx context.Context, filter ledger.Filter, fn func(ledger.Entry) error) error {
	var (
		where []string
		args  []any
	)
	if filter.PlayerID != "" {
		where = append(where, "player_id = ?")
		args = append(args, filter.PlayerID)
	}
	if filter.SeasonID != "" {
		where = append(where, "season_id = ?")
		args = append(args, filter.SeasonID)
	}
	if filter.WeekID != "" {
		where = append(where, "week_id = ?")
		args = append(args, filter.WeekID)
	}
	if filter.BetID != "" {
		where = append(where, "bet_id = ?")
		args = append(args, filter.BetID)
	}
	if len(filter.Types) > 0 {
		where = append(where, "entry_type IN (?)")
		args = append(args, filter.Types)
	}
	if !filter.From.IsZero() {
		where = append(where, "entry_date >= ?")
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "entry_date <= ?")
		args = append(args, formatDate(filter.To))
	}

	query := "SELECT " + entryColumns + " FROM ledger"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return &ledger.PersistenceError{Op: "query entries", Err: err}
	}

	rows, err := q.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return wrapErr("query entries", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r entryRow
		if err := rows.StructScan(&r); err != nil {
			return wrapErr("scan entry", err)
		}
		e, err := r.toEntry()
		if err != nil {
			return wrapErr("scan entry", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr("query entries", err)
	}
	return nil
}

// =============================================================================
// PLAYERS
// =============================================================================

type playerRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     sql.NullString `db:"email"`
	IsActive  bool           `db:"is_active"`
	CreatedAt string         `db:"created_at"`
}

func (r playerRow) toPlayer() ledger.Player {
	created, _ := time.Parse(timestampLayout, r.CreatedAt)
	return ledger.Player{
		ID:        ledger.PlayerID(r.ID),
		Name:      r.Name,
		Email:     r.Email.String,
		Active:    r.IsActive,
		CreatedAt: created,
	}
}

const playerColumns = "id, name, email, is_active, created_at"

func (q *queries) CreatePlayer(ctx context.Context, p ledger.Player) (ledger.Player, error) {
	if p.ID == "" {
		p.ID = ledger.PlayerID(uuid.NewString())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO players (`+playerColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Email), p.Active, p.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return ledger.Player{}, wrapErr("create player", err)
	}
	return p, nil
}

func (q *queries) GetPlayer(ctx context.Context, id ledger.PlayerID) (ledger.Player, error) {
	var r playerRow
	err := sqlx.GetContext(ctx, q.ext, &r, "SELECT "+playerColumns+" FROM players WHERE id = ?", id)
	if err != nil {
		return ledger.Player{}, notFoundOr("player", string(id), "get player", err)
	}
	return r.toPlayer(), nil
}

func (q *queries) FindPlayerByName(ctx context.Context, name string) (ledger.Player, error) {
	var r playerRow
	err := sqlx.GetContext(ctx, q.ext, &r, `
		SELECT `+playerColumns+` FROM players
		WHERE name = ? COLLATE NOCASE
		ORDER BY created_at, id LIMIT 1`, name)
	if err != nil {
		return ledger.Player{}, notFoundOr("player", name, "find player", err)
	}
	return r.toPlayer(), nil
}

func (q *queries) ListPlayers(ctx context.Context) ([]ledger.Player, error) {
	var rows []playerRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, "SELECT "+playerColumns+" FROM players ORDER BY created_at, id")
	if err != nil {
		return nil, wrapErr("list players", err)
	}
	out := make([]ledger.Player, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPlayer())
	}
	return out, nil
}

func (q *queries) SetPlayerActive(ctx context.Context, id ledger.PlayerID, active bool) error {
	res, err := q.ext.ExecContext(ctx, "UPDATE players SET is_active = ? WHERE id = ?", active, id)
	return affectedOne(res, err, "update player", "player", string(id))
}

// =============================================================================
// SEASONS & MEMBERSHIPS
// =============================================================================

type seasonRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	StartDate string         `db:"start_date"`
	EndDate   sql.NullString `db:"end_date"`
	IsActive  bool           `db:"is_active"`
	CreatedAt string         `db:"created_at"`
}

func (r seasonRow) toSeason() (ledger.Season, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return ledger.Season{}, err
	}
	s := ledger.Season{
		ID:        ledger.SeasonID(r.ID),
		Name:      r.Name,
		StartDate: start,
		Active:    r.IsActive,
	}
	s.CreatedAt, _ = time.Parse(timestampLayout, r.CreatedAt)
	if r.EndDate.Valid {
		end, err := parseDate(r.EndDate.String)
		if err != nil {
			return ledger.Season{}, err
		}
		s.EndDate = &end
	}
	return s, nil
}

const seasonColumns = "id, name, start_date, end_date, is_active, created_at"

func (q *queries) CreateSeason(ctx context.Context, s ledger.Season) (ledger.Season, error) {
	if s.ID == "" {
		s.ID = ledger.SeasonID(uuid.NewString())
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.StartDate = ledger.DateOf(s.StartDate)

	var end sql.NullString
	if s.EndDate != nil {
		end = nullString(formatDate(*s.EndDate))
	}
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO seasons (`+seasonColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, formatDate(s.StartDate), end, s.Active, s.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return ledger.Season{}, wrapErr("create season", err)
	}
	return s, nil
}

func (q *queries) getSeason(ctx context.Context, what, query string, args ...any) (ledger.Season, error) {
	var r seasonRow
	if err := sqlx.GetContext(ctx, q.ext, &r, query, args...); err != nil {
		return ledger.Season{}, notFoundOr("season", what, "get season", err)
	}
	s, err := r.toSeason()
	if err != nil {
		return ledger.Season{}, wrapErr("get season", err)
	}
	return s, nil
}

func (q *queries) GetSeason(ctx context.Context, id ledger.SeasonID) (ledger.Season, error) {
	return q.getSeason(ctx, string(id), "SELECT "+seasonColumns+" FROM seasons WHERE id = ?", id)
}

func (q *queries) FindSeasonByName(ctx context.Context, name string) (ledger.Season, error) {
	return q.getSeason(ctx, name, "SELECT "+seasonColumns+" FROM seasons WHERE name = ?", name)
}

func (q *queries) ActiveSeason(ctx context.Context) (ledger.Season, error) {
	return q.getSeason(ctx, "active", "SELECT "+seasonColumns+" FROM seasons WHERE is_active = 1")
}

func (q *queries) ListSeasons(ctx context.Context) ([]ledger.Season, error) {
	var rows []seasonRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, "SELECT "+seasonColumns+" FROM seasons ORDER BY start_date DESC, name")
	if err != nil {
		return nil, wrapErr("list seasons", err)
	}
	out := make([]ledger.Season, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSeason()
		if err != nil {
			return nil, wrapErr("list seasons", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ActivateSeason deactivates every other season and activates id in one
// transaction. The partial unique index is checked per row, so the
// deactivation must run first.
func (q *queries) ActivateSeason(ctx context.Context, id ledger.SeasonID) error {
	return q.atomic(ctx, func(tq *queries) error {
		if _, err := tq.ext.ExecContext(ctx,
			"UPDATE seasons SET is_active = 0 WHERE is_active = 1 AND id <> ?", id); err != nil {
			return wrapErr("activate season", err)
		}
		res, err := tq.ext.ExecContext(ctx, "UPDATE seasons SET is_active = 1 WHERE id = ?", id)
		return affectedOne(res, err, "activate season", "season", string(id))
	})
}

func (q *queries) SetSeasonEndDate(ctx context.Context, id ledger.SeasonID, end *time.Time) error {
	var value sql.NullString
	if end != nil {
		value = nullString(formatDate(*end))
	}
	res, err := q.ext.ExecContext(ctx, "UPDATE seasons SET end_date = ? WHERE id = ?", value, id)
	return affectedOne(res, err, "update season", "season", string(id))
}

type membershipRow struct {
	ID         string `db:"id"`
	PlayerID   string `db:"player_id"`
	SeasonID   string `db:"season_id"`
	JoinedDate string `db:"joined_date"`
	IsActive   bool   `db:"is_active"`
}

const membershipColumns = "id, player_id, season_id, joined_date, is_active"

func (q *queries) AddMembership(ctx context.Context, m ledger.Membership) (ledger.Membership, error) {
	if m.ID == "" {
		m.ID = ledger.MembershipID(uuid.NewString())
	}
	m.JoinedOn = ledger.DateOf(m.JoinedOn)
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO player_seasons (`+membershipColumns+`) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.PlayerID, m.SeasonID, formatDate(m.JoinedOn), m.Active,
	)
	if err != nil {
		return ledger.Membership{}, wrapErr("add membership", err)
	}
	return m, nil
}

func (q *queries) ListMemberships(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Membership, error) {
	var rows []membershipRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT `+membershipColumns+` FROM player_seasons
		WHERE season_id = ? ORDER BY joined_date, player_id`, seasonID)
	if err != nil {
		return nil, wrapErr("list memberships", err)
	}
	out := make([]ledger.Membership, 0, len(rows))
	for _, r := range rows {
		joined, err := parseDate(r.JoinedDate)
		if err != nil {
			return nil, wrapErr("list memberships", err)
		}
		out = append(out, ledger.Membership{
			ID:       ledger.MembershipID(r.ID),
			PlayerID: ledger.PlayerID(r.PlayerID),
			SeasonID: ledger.SeasonID(r.SeasonID),
			JoinedOn: joined,
			Active:   r.IsActive,
		})
	}
	return out, nil
}

func (q *queries) SetMembershipActive(ctx context.Context, seasonID ledger.SeasonID, playerID ledger.PlayerID, active bool) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE player_seasons SET is_active = ? WHERE season_id = ? AND player_id = ?",
		active, seasonID, playerID)
	return affectedOne(res, err, "update membership", "membership", string(seasonID)+"/"+string(playerID))
}

func (q *queries) CountActiveMembers(ctx context.Context, seasonID ledger.SeasonID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		"SELECT COUNT(*) FROM player_seasons WHERE season_id = ? AND is_active = 1", seasonID)
	if err != nil {
		return 0, wrapErr("count members", err)
	}
	return n, nil
}

// =============================================================================
// WEEKS & ASSIGNMENTS
// =============================================================================

type weekRow struct {
	ID         string `db:"id"`
	SeasonID   string `db:"season_id"`
	WeekNumber int    `db:"week_number"`
	StartDate  string `db:"start_date"`
	EndDate    string `db:"end_date"`
	CreatedAt  string `db:"created_at"`
}

func (r weekRow) toWeek() (ledger.Week, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return ledger.Week{}, err
	}
	end, err := parseDate(r.EndDate)
	if err != nil {
		return ledger.Week{}, err
	}
	created, _ := time.Parse(timestampLayout, r.CreatedAt)
	return ledger.Week{
		ID:        ledger.WeekID(r.ID),
		SeasonID:  ledger.SeasonID(r.SeasonID),
		Number:    r.WeekNumber,
		StartDate: start,
		EndDate:   end,
		CreatedAt: created,
	}, nil
}

const weekColumns = "id, season_id, week_number, start_date, end_date, created_at"

func (q *queries) CreateWeek(ctx context.Context, w ledger.Week) (ledger.Week, error) {
	if w.ID == "" {
		w.ID = ledger.WeekID(uuid.NewString())
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	w.StartDate = ledger.DateOf(w.StartDate)
	w.EndDate = ledger.DateOf(w.EndDate)
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO weeks (`+weekColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.SeasonID, w.Number, formatDate(w.StartDate), formatDate(w.EndDate),
		w.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return ledger.Week{}, wrapErr("create week", err)
	}
	return w, nil
}

func (q *queries) getWeek(ctx context.Context, what, query string, args ...any) (ledger.Week, error) {
	var r weekRow
	if err := sqlx.GetContext(ctx, q.ext, &r, query, args...); err != nil {
		return ledger.Week{}, notFoundOr("week", what, "get week", err)
	}
	w, err := r.toWeek()
	if err != nil {
		return ledger.Week{}, wrapErr("get week", err)
	}
	return w, nil
}

func (q *queries) GetWeek(ctx context.Context, id ledger.WeekID) (ledger.Week, error) {
	return q.getWeek(ctx, string(id), "SELECT "+weekColumns+" FROM weeks WHERE id = ?", id)
}

func (q *queries) FindWeek(ctx context.Context, seasonID ledger.SeasonID, number int) (ledger.Week, error) {
	return q.getWeek(ctx, fmt.Sprintf("%s/%d", seasonID, number),
		"SELECT "+weekColumns+" FROM weeks WHERE season_id = ? AND week_number = ?", seasonID, number)
}

func (q *queries) WeekOn(ctx context.Context, seasonID ledger.SeasonID, day time.Time) (ledger.Week, error) {
	d := formatDate(day)
	return q.getWeek(ctx, string(seasonID)+"@"+d, `
		SELECT `+weekColumns+` FROM weeks
		WHERE season_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY week_number LIMIT 1`, seasonID, d, d)
}

func (q *queries) ListWeeks(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Week, error) {
	var rows []weekRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		"SELECT "+weekColumns+" FROM weeks WHERE season_id = ? ORDER BY week_number", seasonID)
	if err != nil {
		return nil, wrapErr("list weeks", err)
	}
	out := make([]ledger.Week, 0, len(rows))
	for _, r := range rows {
		w, err := r.toWeek()
		if err != nil {
			return nil, wrapErr("list weeks", err)
		}
		out = append(out, w)
	}
	return out, nil
}

type assignmentRow struct {
	ID       string `db:"id"`
	WeekID   string `db:"week_id"`
	PlayerID string `db:"player_id"`
	Order    int    `db:"assignment_order"`
}

func (q *queries) AssignWeek(ctx context.Context, a ledger.WeekAssignment) (ledger.WeekAssignment, error) {
	if a.ID == "" {
		a.ID = ledger.AssignmentID(uuid.NewString())
	}
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO week_assignments (id, week_id, player_id, assignment_order) VALUES (?, ?, ?, ?)`,
		a.ID, a.WeekID, a.PlayerID, a.Order,
	)
	if err != nil {
		return ledger.WeekAssignment{}, wrapErr("assign week", err)
	}
	return a, nil
}

func (q *queries) ListAssignments(ctx context.Context, weekID ledger.WeekID) ([]ledger.WeekAssignment, error) {
	var rows []assignmentRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, `
		SELECT id, week_id, player_id, assignment_order FROM week_assignments
		WHERE week_id = ? ORDER BY assignment_order`, weekID)
	if err != nil {
		return nil, wrapErr("list assignments", err)
	}
	out := make([]ledger.WeekAssignment, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.WeekAssignment{
			ID:       ledger.AssignmentID(r.ID),
			WeekID:   ledger.WeekID(r.WeekID),
			PlayerID: ledger.PlayerID(r.PlayerID),
			Order:    r.Order,
		})
	}
	return out, nil
}

// =============================================================================
// BETS
// =============================================================================

type betRow struct {
	ID          string              `db:"id"`
	SeasonID    string              `db:"season_id"`
	WeekID      sql.NullString      `db:"week_id"`
	PlayerID    string              `db:"player_id"`
	Stake       decimal.Decimal     `db:"stake"`
	Description string              `db:"description"`
	Odds        sql.NullString      `db:"odds"`
	BetDate     string              `db:"bet_date"`
	Status      string              `db:"status"`
	ResultDate  sql.NullString      `db:"result_date"`
	Winnings    decimal.NullDecimal `db:"winnings"`
	Screenshot  sql.NullString      `db:"screenshot"`
	Notes       sql.NullString      `db:"notes"`
	CreatedAt   string              `db:"created_at"`
}

func (r betRow) toBet() (ledger.Bet, error) {
	placed, err := parseDate(r.BetDate)
	if err != nil {
		return ledger.Bet{}, err
	}
	b := ledger.Bet{
		ID:          ledger.BetID(r.ID),
		SeasonID:    ledger.SeasonID(r.SeasonID),
		WeekID:      ledger.WeekID(r.WeekID.String),
		PlayerID:    ledger.PlayerID(r.PlayerID),
		Stake:       r.Stake,
		Description: r.Description,
		Odds:        r.Odds.String,
		PlacedOn:    placed,
		Status:      ledger.BetStatus(r.Status),
		Winnings:    r.Winnings,
		Screenshot:  r.Screenshot.String,
		Notes:       r.Notes.String,
	}
	b.CreatedAt, _ = time.Parse(timestampLayout, r.CreatedAt)
	if r.ResultDate.Valid {
		day, err := parseDate(r.ResultDate.String)
		if err != nil {
			return ledger.Bet{}, err
		}
		b.ResultDate = &day
	}
	return b, nil
}

const betColumns = `id, season_id, week_id, player_id, stake, description, odds, bet_date,
	status, result_date, winnings, screenshot, notes, created_at`

func (q *queries) CreateBet(ctx context.Context, b ledger.Bet) (ledger.Bet, error) {
	if b.ID == "" {
		b.ID = ledger.BetID(uuid.NewString())
	}
	if b.Status == "" {
		b.Status = ledger.BetPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.PlacedOn = ledger.DateOf(b.PlacedOn)

	var result sql.NullString
	if b.ResultDate != nil {
		result = nullString(formatDate(*b.ResultDate))
	}
	_, err := q.ext.ExecContext(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SeasonID, nullString(string(b.WeekID)), b.PlayerID, b.Stake, b.Description,
		nullString(b.Odds), formatDate(b.PlacedOn), b.Status, result, b.Winnings,
		nullString(b.Screenshot), nullString(b.Notes), b.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return ledger.Bet{}, wrapErr("create bet", err)
	}
	return b, nil
}

func (q *queries) GetBet(ctx context.Context, id ledger.BetID) (ledger.Bet, error) {
	var r betRow
	err := sqlx.GetContext(ctx, q.ext, &r, "SELECT "+betColumns+" FROM bets WHERE id = ?", id)
	if err != nil {
		return ledger.Bet{}, notFoundOr("bet", string(id), "get bet", err)
	}
	b, err := r.toBet()
	if err != nil {
		return ledger.Bet{}, wrapErr("get bet", err)
	}
	return b, nil
}

func (q *queries) ListBets(ctx context.Context, filter ledger.BetFilter) ([]ledger.Bet, error) {
	var (
		where []string
		args  []any
	)
	if filter.SeasonID != "" {
		where = append(where, "season_id = ?")
		args = append(args, filter.SeasonID)
	}
	if filter.PlayerID != "" {
		where = append(where, "player_id = ?")
		args = append(args, filter.PlayerID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + betColumns + " FROM bets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY bet_date DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []betRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, wrapErr("list bets", err)
	}
	out := make([]ledger.Bet, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBet()
		if err != nil {
			return nil, wrapErr("list bets", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// SettleBet is a compare-and-set on status = 'pending'.
func (q *queries) SettleBet(ctx context.Context, id ledger.BetID, status ledger.BetStatus, resultDate time.Time, winnings decimal.NullDecimal) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE bets SET status = ?, result_date = ?, winnings = ?
		WHERE id = ? AND status = 'pending'`,
		status, formatDate(resultDate), winnings, id)
	if err != nil {
		return wrapErr("settle bet", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("settle bet", err)
	}
	if n == 1 {
		return nil
	}

	current, err := q.GetBet(ctx, id)
	if err != nil {
		return err
	}
	return &ledger.InvalidBetStateError{BetID: id, Status: current.Status}
}

func (q *queries) SetBetScreenshot(ctx context.Context, id ledger.BetID, ref string) error {
	res, err := q.ext.ExecContext(ctx, "UPDATE bets SET screenshot = ? WHERE id = ?", nullString(ref), id)
	return affectedOne(res, err, "update bet", "bet", string(id))
}

// =============================================================================
// HELPERS
// =============================================================================

func formatDate(t time.Time) string {
	return ledger.DateOf(t).Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	// Tolerate timestamps written by older tooling.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// wrapErr turns a driver error into a *ledger.PersistenceError, marking
// uniqueness violations with ledger.ErrDuplicate.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return &ledger.PersistenceError{Op: op, Err: fmt.Errorf("%w: %v", ledger.ErrDuplicate, err)}
	}
	return &ledger.PersistenceError{Op: op, Err: err}
}

func notFoundOr(kind, id, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return wrapErr(op, err)
}

func affectedOne(res sql.Result, err error, op, kind, id string) error {
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var _ ledger.TxStore = (*Store)(nil)
