/*
store.go - Persistence interfaces for the ledger and the records around it

PURPOSE:
  Defines the boundary between the accounting engine and the database. The
  engine only ever talks to these interfaces; SQLite and in-memory
  implementations live in their own packages.

KEY INTERFACES:
  LedgerStore:     append-only entries (Append, Query)
  PlayerStore:     players
  SeasonStore:     seasons, atomic activation, memberships
  WeekStore:       rota weeks and assignments
  BetStore:        bets, compare-and-set settlement
  Store:           all of the above
  TxStore:         Store + WithTx for all-or-nothing actions

APPEND-ONLY CONTRACT:
  - Append(): atomic multi-entry write
  - NO Update() or Delete() for entries exists
  Corrections are made by appending further entries.

STREAMING:
  Query() calls fn once per matching entry in no guaranteed order. Returning
  an error from fn stops the scan and is returned unchanged. Aggregations are
  commutative sums so ordering never matters.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: production SQLite
  - ledger/store/memory.go: in-memory for tests and demos
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER STORE - append-only
// =============================================================================

type LedgerStore interface {
	// Append persists entries as one atomic unit. Any unknown reference fails
	// the whole batch with a *PersistenceError.
	Append(ctx context.Context, entries []Entry) error

	// Query streams matching entries to fn.
	Query(ctx context.Context, filter Filter, fn func(Entry) error) error
}

// =============================================================================
// RECORD STORES
// =============================================================================

type PlayerStore interface {
	CreatePlayer(ctx context.Context, p Player) (Player, error)
	GetPlayer(ctx context.Context, id PlayerID) (Player, error)
	FindPlayerByName(ctx context.Context, name string) (Player, error)
	ListPlayers(ctx context.Context) ([]Player, error)
	SetPlayerActive(ctx context.Context, id PlayerID, active bool) error
}

type SeasonStore interface {
	CreateSeason(ctx context.Context, s Season) (Season, error)
	GetSeason(ctx context.Context, id SeasonID) (Season, error)
	FindSeasonByName(ctx context.Context, name string) (Season, error)
	ListSeasons(ctx context.Context) ([]Season, error)

	// ActiveSeason returns the season carrying the active flag, or a
	// NotFoundError if none does.
	ActiveSeason(ctx context.Context) (Season, error)

	// ActivateSeason clears the active flag on every other season and sets it
	// on id in one atomic update.
	ActivateSeason(ctx context.Context, id SeasonID) error

	// SetSeasonEndDate sets or (with nil) clears the end date.
	SetSeasonEndDate(ctx context.Context, id SeasonID, end *time.Time) error

	AddMembership(ctx context.Context, m Membership) (Membership, error)
	ListMemberships(ctx context.Context, seasonID SeasonID) ([]Membership, error)
	SetMembershipActive(ctx context.Context, seasonID SeasonID, playerID PlayerID, active bool) error
	CountActiveMembers(ctx context.Context, seasonID SeasonID) (int, error)
}

type WeekStore interface {
	CreateWeek(ctx context.Context, w Week) (Week, error)
	GetWeek(ctx context.Context, id WeekID) (Week, error)
	FindWeek(ctx context.Context, seasonID SeasonID, number int) (Week, error)
	ListWeeks(ctx context.Context, seasonID SeasonID) ([]Week, error)

	// WeekOn returns the season's week whose range contains day.
	WeekOn(ctx context.Context, seasonID SeasonID, day time.Time) (Week, error)

	AssignWeek(ctx context.Context, a WeekAssignment) (WeekAssignment, error)
	ListAssignments(ctx context.Context, weekID WeekID) ([]WeekAssignment, error)
}

type BetStore interface {
	CreateBet(ctx context.Context, b Bet) (Bet, error)
	GetBet(ctx context.Context, id BetID) (Bet, error)
	ListBets(ctx context.Context, filter BetFilter) ([]Bet, error)

	// SettleBet moves a pending bet to a terminal status. If the bet is no
	// longer pending it returns an *InvalidBetStateError and changes nothing.
	SettleBet(ctx context.Context, id BetID, status BetStatus, resultDate time.Time, winnings decimal.NullDecimal) error

	SetBetScreenshot(ctx context.Context, id BetID, ref string) error
}

// Store is everything the engine persists.
type Store interface {
	LedgerStore
	PlayerStore
	SeasonStore
	WeekStore
	BetStore
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
