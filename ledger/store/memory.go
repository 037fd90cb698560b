// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================
// Memory emulates the SQLite schema's constraints (foreign keys, unique
// indexes, single active season) so behavior matches production in tests.

type Memory struct {
	mu sync.RWMutex
	d  *data
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

// data holds the records and implements ledger.Store without locking.
// Memory takes the lock and delegates; transactions use data directly.
type data struct {
	players     map[ledger.PlayerID]ledger.Player
	seasons     map[ledger.SeasonID]ledger.Season
	memberships map[ledger.MembershipID]ledger.Membership
	weeks       map[ledger.WeekID]ledger.Week
	assignments map[ledger.AssignmentID]ledger.WeekAssignment
	bets        map[ledger.BetID]ledger.Bet
	entries     []ledger.Entry
}

func newData() *data {
	return &data{
		players:     make(map[ledger.PlayerID]ledger.Player),
		seasons:     make(map[ledger.SeasonID]ledger.Season),
		memberships: make(map[ledger.MembershipID]ledger.Membership),
		weeks:       make(map[ledger.WeekID]ledger.Week),
		assignments: make(map[ledger.AssignmentID]ledger.WeekAssignment),
		bets:        make(map[ledger.BetID]ledger.Bet),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.players {
		c.players[k] = v
	}
	for k, v := range d.seasons {
		c.seasons[k] = v
	}
	for k, v := range d.memberships {
		c.memberships[k] = v
	}
	for k, v := range d.weeks {
		c.weeks[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.bets {
		c.bets[k] = v
	}
	c.entries = append([]ledger.Entry{}, d.entries...)
	return c
}

func now() time.Time { return time.Now().UTC() }

func duplicate(op, what string) error {
	return &ledger.PersistenceError{Op: op, Err: fmt.Errorf("%w: %s", ledger.ErrDuplicate, what)}
}

func missingRef(op, what string) error {
	return &ledger.PersistenceError{Op: op, Err: fmt.Errorf("unknown %s", what)}
}

// =============================================================================
// LEDGER
// =============================================================================

func (d *data) Append(_ context.Context, entries []ledger.Entry) error {
	staged := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Type.Valid() {
			return &ledger.PersistenceError{Op: "append entries", Err: fmt.Errorf("invalid entry type %q", e.Type)}
		}
		if _, ok := d.players[e.PlayerID]; !ok {
			return missingRef("append entries", "player "+string(e.PlayerID))
		}
		if _, ok := d.seasons[e.SeasonID]; !ok {
			return missingRef("append entries", "season "+string(e.SeasonID))
		}
		if e.WeekID != "" {
			if _, ok := d.weeks[e.WeekID]; !ok {
				return missingRef("append entries", "week "+string(e.WeekID))
			}
		}
		if e.BetID != "" {
			if _, ok := d.bets[e.BetID]; !ok {
				return missingRef("append entries", "bet "+string(e.BetID))
			}
		}
		if e.ID == "" {
			e.ID = ledger.EntryID(uuid.NewString())
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now()
		}
		e.Date = ledger.DateOf(e.Date)
		staged = append(staged, e)
	}
	d.entries = append(d.entries, staged...)
	return nil
}

func (d *data) Query(ctx context.Context, filter ledger.Filter, fn func(ledger.Entry) error) error {
	for _, e := range d.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !filter.Matches(e) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PLAYERS
// =============================================================================

func (d *data) CreatePlayer(_ context.Context, p ledger.Player) (ledger.Player, error) {
	if p.Email != "" {
		for _, other := range d.players {
			if strings.EqualFold(other.Email, p.Email) {
				return ledger.Player{}, duplicate("create player", "email "+p.Email)
			}
		}
	}
	if p.ID == "" {
		p.ID = ledger.PlayerID(uuid.NewString())
	}
	if _, ok := d.players[p.ID]; ok {
		return ledger.Player{}, duplicate("create player", "id "+string(p.ID))
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	d.players[p.ID] = p
	return p, nil
}

func (d *data) GetPlayer(_ context.Context, id ledger.PlayerID) (ledger.Player, error) {
	p, ok := d.players[id]
	if !ok {
		return ledger.Player{}, &ledger.NotFoundError{Kind: "player", ID: string(id)}
	}
	return p, nil
}

func (d *data) FindPlayerByName(ctx context.Context, name string) (ledger.Player, error) {
	players, _ := d.ListPlayers(ctx)
	for _, p := range players {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return ledger.Player{}, &ledger.NotFoundError{Kind: "player", ID: name}
}

func (d *data) ListPlayers(_ context.Context) ([]ledger.Player, error) {
	out := make([]ledger.Player, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (d *data) SetPlayerActive(_ context.Context, id ledger.PlayerID, active bool) error {
	p, ok := d.players[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "player", ID: string(id)}
	}
	p.Active = active
	d.players[id] = p
	return nil
}

// =============================================================================
// SEASONS & MEMBERSHIPS
// =============================================================================

func (d *data) CreateSeason(_ context.Context, s ledger.Season) (ledger.Season, error) {
	for _, other := range d.seasons {
		if other.Name == s.Name {
			return ledger.Season{}, duplicate("create season", "name "+s.Name)
		}
		if s.Active && other.Active {
			return ledger.Season{}, duplicate("create season", "second active season")
		}
	}
	if s.ID == "" {
		s.ID = ledger.SeasonID(uuid.NewString())
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	s.StartDate = ledger.DateOf(s.StartDate)
	d.seasons[s.ID] = s
	return s, nil
}

func (d *data) GetSeason(_ context.Context, id ledger.SeasonID) (ledger.Season, error) {
	s, ok := d.seasons[id]
	if !ok {
		return ledger.Season{}, &ledger.NotFoundError{Kind: "season", ID: string(id)}
	}
	return s, nil
}

func (d *data) FindSeasonByName(_ context.Context, name string) (ledger.Season, error) {
	for _, s := range d.seasons {
		if s.Name == name {
			return s, nil
		}
	}
	return ledger.Season{}, &ledger.NotFoundError{Kind: "season", ID: name}
}

func (d *data) ListSeasons(_ context.Context) ([]ledger.Season, error) {
	out := make([]ledger.Season, 0, len(d.seasons))
	for _, s := range d.seasons {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *data) ActiveSeason(_ context.Context) (ledger.Season, error) {
	for _, s := range d.seasons {
		if s.Active {
			return s, nil
		}
	}
	return ledger.Season{}, &ledger.NotFoundError{Kind: "season", ID: "active"}
}

func (d *data) ActivateSeason(_ context.Context, id ledger.SeasonID) error {
	if _, ok := d.seasons[id]; !ok {
		return &ledger.NotFoundError{Kind: "season", ID: string(id)}
	}
	for sid, s := range d.seasons {
		s.Active = sid == id
		d.seasons[sid] = s
	}
	return nil
}

func (d *data) SetSeasonEndDate(_ context.Context, id ledger.SeasonID, end *time.Time) error {
	s, ok := d.seasons[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "season", ID: string(id)}
	}
	if end != nil {
		day := ledger.DateOf(*end)
		end = &day
	}
	s.EndDate = end
	d.seasons[id] = s
	return nil
}

func (d *data) AddMembership(_ context.Context, m ledger.Membership) (ledger.Membership, error) {
	if _, ok := d.players[m.PlayerID]; !ok {
		return ledger.Membership{}, missingRef("add membership", "player "+string(m.PlayerID))
	}
	if _, ok := d.seasons[m.SeasonID]; !ok {
		return ledger.Membership{}, missingRef("add membership", "season "+string(m.SeasonID))
	}
	for _, other := range d.memberships {
		if other.PlayerID == m.PlayerID && other.SeasonID == m.SeasonID {
			return ledger.Membership{}, duplicate("add membership", "player already in season")
		}
	}
	if m.ID == "" {
		m.ID = ledger.MembershipID(uuid.NewString())
	}
	m.JoinedOn = ledger.DateOf(m.JoinedOn)
	d.memberships[m.ID] = m
	return m, nil
}

func (d *data) ListMemberships(_ context.Context, seasonID ledger.SeasonID) ([]ledger.Membership, error) {
	var out []ledger.Membership
	for _, m := range d.memberships {
		if m.SeasonID == seasonID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedOn.Equal(out[j].JoinedOn) {
			return out[i].JoinedOn.Before(out[j].JoinedOn)
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (d *data) SetMembershipActive(_ context.Context, seasonID ledger.SeasonID, playerID ledger.PlayerID, active bool) error {
	for id, m := range d.memberships {
		if m.SeasonID == seasonID && m.PlayerID == playerID {
			m.Active = active
			d.memberships[id] = m
			return nil
		}
	}
	return &ledger.NotFoundError{Kind: "membership", ID: string(seasonID) + "/" + string(playerID)}
}

func (d *data) CountActiveMembers(_ context.Context, seasonID ledger.SeasonID) (int, error) {
	n := 0
	for _, m := range d.memberships {
		if m.SeasonID == seasonID && m.Active {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// WEEKS & ASSIGNMENTS
// =============================================================================

func (d *data) CreateWeek(_ context.Context, w ledger.Week) (ledger.Week, error) {
	if _, ok := d.seasons[w.SeasonID]; !ok {
		return ledger.Week{}, missingRef("create week", "season "+string(w.SeasonID))
	}
	for _, other := range d.weeks {
		if other.SeasonID == w.SeasonID && other.Number == w.Number {
			return ledger.Week{}, duplicate("create week", fmt.Sprintf("week %d", w.Number))
		}
	}
	if w.ID == "" {
		w.ID = ledger.WeekID(uuid.NewString())
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now()
	}
	w.StartDate = ledger.DateOf(w.StartDate)
	w.EndDate = ledger.DateOf(w.EndDate)
	d.weeks[w.ID] = w
	return w, nil
}

func (d *data) GetWeek(_ context.Context, id ledger.WeekID) (ledger.Week, error) {
	w, ok := d.weeks[id]
	if !ok {
		return ledger.Week{}, &ledger.NotFoundError{Kind: "week", ID: string(id)}
	}
	return w, nil
}

func (d *data) FindWeek(_ context.Context, seasonID ledger.SeasonID, number int) (ledger.Week, error) {
	for _, w := range d.weeks {
		if w.SeasonID == seasonID && w.Number == number {
			return w, nil
		}
	}
	return ledger.Week{}, &ledger.NotFoundError{Kind: "week", ID: fmt.Sprintf("%s/%d", seasonID, number)}
}

func (d *data) ListWeeks(_ context.Context, seasonID ledger.SeasonID) ([]ledger.Week, error) {
	var out []ledger.Week
	for _, w := range d.weeks {
		if w.SeasonID == seasonID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (d *data) WeekOn(ctx context.Context, seasonID ledger.SeasonID, day time.Time) (ledger.Week, error) {
	weeks, _ := d.ListWeeks(ctx, seasonID)
	for _, w := range weeks {
		if w.Contains(day) {
			return w, nil
		}
	}
	return ledger.Week{}, &ledger.NotFoundError{Kind: "week", ID: string(seasonID) + "@" + day.Format("2006-01-02")}
}

func (d *data) AssignWeek(_ context.Context, a ledger.WeekAssignment) (ledger.WeekAssignment, error) {
	if a.Order != 1 && a.Order != 2 {
		return ledger.WeekAssignment{}, &ledger.PersistenceError{Op: "assign week", Err: fmt.Errorf("assignment order %d out of range", a.Order)}
	}
	if _, ok := d.weeks[a.WeekID]; !ok {
		return ledger.WeekAssignment{}, missingRef("assign week", "week "+string(a.WeekID))
	}
	if _, ok := d.players[a.PlayerID]; !ok {
		return ledger.WeekAssignment{}, missingRef("assign week", "player "+string(a.PlayerID))
	}
	for _, other := range d.assignments {
		if other.WeekID != a.WeekID {
			continue
		}
		if other.Order == a.Order {
			return ledger.WeekAssignment{}, duplicate("assign week", fmt.Sprintf("order %d taken", a.Order))
		}
		if other.PlayerID == a.PlayerID {
			return ledger.WeekAssignment{}, duplicate("assign week", "player already assigned")
		}
	}
	if a.ID == "" {
		a.ID = ledger.AssignmentID(uuid.NewString())
	}
	d.assignments[a.ID] = a
	return a, nil
}

func (d *data) ListAssignments(_ context.Context, weekID ledger.WeekID) ([]ledger.WeekAssignment, error) {
	var out []ledger.WeekAssignment
	for _, a := range d.assignments {
		if a.WeekID == weekID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// =============================================================================
// BETS
// =============================================================================

func (d *data) CreateBet(_ context.Context, b ledger.Bet) (ledger.Bet, error) {
	if _, ok := d.players[b.PlayerID]; !ok {
		return ledger.Bet{}, missingRef("create bet", "player "+string(b.PlayerID))
	}
	if _, ok := d.seasons[b.SeasonID]; !ok {
		return ledger.Bet{}, missingRef("create bet", "season "+string(b.SeasonID))
	}
	if b.WeekID != "" {
		if _, ok := d.weeks[b.WeekID]; !ok {
			return ledger.Bet{}, missingRef("create bet", "week "+string(b.WeekID))
		}
	}
	if !b.Stake.IsPositive() {
		return ledger.Bet{}, &ledger.PersistenceError{Op: "create bet", Err: fmt.Errorf("stake must be positive")}
	}
	if b.ID == "" {
		b.ID = ledger.BetID(uuid.NewString())
	}
	if b.Status == "" {
		b.Status = ledger.BetPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}
	b.PlacedOn = ledger.DateOf(b.PlacedOn)
	d.bets[b.ID] = b
	return b, nil
}

func (d *data) GetBet(_ context.Context, id ledger.BetID) (ledger.Bet, error) {
	b, ok := d.bets[id]
	if !ok {
		return ledger.Bet{}, &ledger.NotFoundError{Kind: "bet", ID: string(id)}
	}
	return b, nil
}

func (d *data) ListBets(_ context.Context, filter ledger.BetFilter) ([]ledger.Bet, error) {
	var out []ledger.Bet
	for _, b := range d.bets {
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedOn.Equal(out[j].PlacedOn) {
			return out[i].PlacedOn.After(out[j].PlacedOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (d *data) SettleBet(_ context.Context, id ledger.BetID, status ledger.BetStatus, resultDate time.Time, winnings decimal.NullDecimal) error {
	b, ok := d.bets[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "bet", ID: string(id)}
	}
	if b.Status != ledger.BetPending {
		return &ledger.InvalidBetStateError{BetID: id, Status: b.Status}
	}
	day := ledger.DateOf(resultDate)
	b.Status = status
	b.ResultDate = &day
	b.Winnings = winnings
	d.bets[id] = b
	return nil
}

func (d *data) SetBetScreenshot(_ context.Context, id ledger.BetID, ref string) error {
	b, ok := d.bets[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "bet", ID: string(id)}
	}
	b.Screenshot = ref
	d.bets[id] = b
	return nil
}

// =============================================================================
// LOCKED ACCESS
// =============================================================================

func (m *Memory) Append(ctx context.Context, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.Append(ctx, entries)
}

func (m *Memory) Query(ctx context.Context, filter ledger.Filter, fn func(ledger.Entry) error) error {
	m.mu.RLock()
	snapshot := append([]ledger.Entry{}, m.d.entries...)
	m.mu.RUnlock()

	// fn runs without the lock held so it may call back into the store.
	view := &data{entries: snapshot}
	return view.Query(ctx, filter, fn)
}

func (m *Memory) CreatePlayer(ctx context.Context, p ledger.Player) (ledger.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreatePlayer(ctx, p)
}

func (m *Memory) GetPlayer(ctx context.Context, id ledger.PlayerID) (ledger.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetPlayer(ctx, id)
}

func (m *Memory) FindPlayerByName(ctx context.Context, name string) (ledger.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.FindPlayerByName(ctx, name)
}

func (m *Memory) ListPlayers(ctx context.Context) ([]ledger.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListPlayers(ctx)
}

func (m *Memory) SetPlayerActive(ctx context.Context, id ledger.PlayerID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SetPlayerActive(ctx, id, active)
}

func (m *Memory) CreateSeason(ctx context.Context, s ledger.Season) (ledger.Season, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateSeason(ctx, s)
}

func (m *Memory) GetSeason(ctx context.Context, id ledger.SeasonID) (ledger.Season, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetSeason(ctx, id)
}

func (m *Memory) FindSeasonByName(ctx context.Context, name string) (ledger.Season, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.FindSeasonByName(ctx, name)
}

func (m *Memory) ListSeasons(ctx context.Context) ([]ledger.Season, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListSeasons(ctx)
}

func (m *Memory) ActiveSeason(ctx context.Context) (ledger.Season, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ActiveSeason(ctx)
}

func (m *Memory) ActivateSeason(ctx context.Context, id ledger.SeasonID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.ActivateSeason(ctx, id)
}

func (m *Memory) SetSeasonEndDate(ctx context.Context, id ledger.SeasonID, end *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SetSeasonEndDate(ctx, id, end)
}

func (m *Memory) AddMembership(ctx context.Context, mb ledger.Membership) (ledger.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.AddMembership(ctx, mb)
}

func (m *Memory) ListMemberships(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListMemberships(ctx, seasonID)
}

func (m *Memory) SetMembershipActive(ctx context.Context, seasonID ledger.SeasonID, playerID ledger.PlayerID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SetMembershipActive(ctx, seasonID, playerID, active)
}

func (m *Memory) CountActiveMembers(ctx context.Context, seasonID ledger.SeasonID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.CountActiveMembers(ctx, seasonID)
}

func (m *Memory) CreateWeek(ctx context.Context, w ledger.Week) (ledger.Week, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateWeek(ctx, w)
}

func (m *Memory) GetWeek(ctx context.Context, id ledger.WeekID) (ledger.Week, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetWeek(ctx, id)
}

func (m *Memory) FindWeek(ctx context.Context, seasonID ledger.SeasonID, number int) (ledger.Week, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.FindWeek(ctx, seasonID, number)
}

func (m *Memory) ListWeeks(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Week, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListWeeks(ctx, seasonID)
}

func (m *Memory) WeekOn(ctx context.Context, seasonID ledger.SeasonID, day time.Time) (ledger.Week, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.WeekOn(ctx, seasonID, day)
}

func (m *Memory) AssignWeek(ctx context.Context, a ledger.WeekAssignment) (ledger.WeekAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.AssignWeek(ctx, a)
}

func (m *Memory) ListAssignments(ctx context.Context, weekID ledger.WeekID) ([]ledger.WeekAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListAssignments(ctx, weekID)
}

func (m *Memory) CreateBet(ctx context.Context, b ledger.Bet) (ledger.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.CreateBet(ctx, b)
}

func (m *Memory) GetBet(ctx context.Context, id ledger.BetID) (ledger.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.GetBet(ctx, id)
}

func (m *Memory) ListBets(ctx context.Context, filter ledger.BetFilter) ([]ledger.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.d.ListBets(ctx, filter)
}

func (m *Memory) SettleBet(ctx context.Context, id ledger.BetID, status ledger.BetStatus, resultDate time.Time, winnings decimal.NullDecimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SettleBet(ctx, id, status, resultDate, winnings)
}

func (m *Memory) SetBetScreenshot(ctx context.Context, id ledger.BetID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.d.SetBetScreenshot(ctx, id, ref)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The lock is held for the whole of fn, so transactions are serialized.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atomic(func(d *data) error { return fn(d) })
}

// atomic runs fn against the live data, restoring a snapshot if it fails.
// Caller must hold the write lock.
func (m *Memory) atomic(fn func(*data) error) error {
	snapshot := m.d.clone()
	if err := fn(m.d); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// Stats reports record counts.
func (m *Memory) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"players":     len(m.d.players),
		"seasons":     len(m.d.seasons),
		"memberships": len(m.d.memberships),
		"weeks":       len(m.d.weeks),
		"assignments": len(m.d.assignments),
		"bets":        len(m.d.bets),
		"entries":     len(m.d.entries),
	}
}

var (
	_ ledger.TxStore = (*Memory)(nil)
	_ ledger.Store   = (*data)(nil)
)
