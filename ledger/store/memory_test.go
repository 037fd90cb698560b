package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	store  *store.Memory
	player ledger.Player
	season ledger.Season
}

func newFixture(t *testing.T) fixture {
	ctx := context.Background()
	s := store.NewMemory()

	p, err := s.CreatePlayer(ctx, ledger.Player{Name: "Alice", Email: "alice@example.com", Active: true})
	require.NoError(t, err)
	season, err := s.CreateSeason(ctx, ledger.Season{Name: "2025/26", StartDate: ledger.NewDate(2025, time.August, 11), Active: true})
	require.NoError(t, err)

	return fixture{store: s, player: p, season: season}
}

func (f fixture) entry(typ ledger.EntryType, amount string) ledger.Entry {
	return ledger.Entry{
		Date:     ledger.NewDate(2025, time.August, 11),
		Type:     typ,
		PlayerID: f.player.ID,
		SeasonID: f.season.ID,
		Amount:   decimal.RequireFromString(amount),
	}
}

func collect(t *testing.T, s ledger.LedgerStore, filter ledger.Filter) []ledger.Entry {
	var out []ledger.Entry
	require.NoError(t, s.Query(context.Background(), filter, func(e ledger.Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

// =============================================================================
// LEDGER
// =============================================================================

func TestMemory_AppendAndQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, []ledger.Entry{
		f.entry(ledger.EntryContribution, "5"),
		f.entry(ledger.EntryPayout, "-3"),
	}))

	all := collect(t, f.store, ledger.Filter{SeasonID: f.season.ID})
	require.Len(t, all, 2)
	for _, e := range all {
		assert.NotEmpty(t, e.ID, "store assigns IDs")
		assert.False(t, e.CreatedAt.IsZero())
	}

	payouts := collect(t, f.store, ledger.Filter{Types: []ledger.EntryType{ledger.EntryPayout}})
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Equal(decimal.NewFromInt(-3)))
}

func TestMemory_AppendIsAtomic(t *testing.T) {
	// GIVEN: A batch whose second entry references an unknown player
	f := newFixture(t)
	ctx := context.Background()
	bad := f.entry(ledger.EntryContribution, "5")
	bad.PlayerID = "ghost"

	// WHEN: Appending
	err := f.store.Append(ctx, []ledger.Entry{f.entry(ledger.EntryContribution, "5"), bad})

	// THEN: Persistence error and nothing stored
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.Empty(t, collect(t, f.store, ledger.Filter{}))
}

func TestMemory_QueryStopsOnCallbackError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Append(ctx, []ledger.Entry{
		f.entry(ledger.EntryContribution, "5"),
		f.entry(ledger.EntryContribution, "5"),
	}))

	stop := errors.New("stop")
	calls := 0
	err := f.store.Query(ctx, ledger.Filter{}, func(ledger.Entry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestMemory_WithTx_RollsBackEverything(t *testing.T) {
	// GIVEN: A transaction that creates a bet, appends its entry, then fails
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.WithTx(ctx, func(tx ledger.Store) error {
		bet, err := tx.CreateBet(ctx, ledger.Bet{
			SeasonID:    f.season.ID,
			PlayerID:    f.player.ID,
			Stake:       decimal.NewFromInt(10),
			Description: "Acca",
			PlacedOn:    ledger.NewDate(2025, time.August, 12),
		})
		require.NoError(t, err)
		e := f.entry(ledger.EntryBetPlaced, "-10")
		e.BetID = bet.ID
		require.NoError(t, tx.Append(ctx, []ledger.Entry{e}))
		return boom
	})

	// THEN: The error is returned and neither record survives
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.store.Stats()["bets"])
	assert.Equal(t, 0, f.store.Stats()["entries"])
}

func TestMemory_ConcurrentTransactionsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.store.WithTx(ctx, func(tx ledger.Store) error {
				return tx.Append(ctx, []ledger.Entry{f.entry(ledger.EntryContribution, "5")})
			})
		}()
	}
	wg.Wait()

	assert.Len(t, collect(t, f.store, ledger.Filter{}), 50)
}

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestMemory_SingleActiveSeason(t *testing.T) {
	// GIVEN: Season A active
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: Creating a second active season directly
	_, err := f.store.CreateSeason(ctx, ledger.Season{Name: "Other", StartDate: ledger.NewDate(2026, time.August, 10), Active: true})

	// THEN: Rejected as duplicate
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	// WHEN: Creating inactive B and activating it
	b, err := f.store.CreateSeason(ctx, ledger.Season{Name: "2026/27", StartDate: ledger.NewDate(2026, time.August, 10)})
	require.NoError(t, err)
	require.NoError(t, f.store.ActivateSeason(ctx, b.ID))

	// THEN: Exactly one active season, and it is B
	seasons, err := f.store.ListSeasons(ctx)
	require.NoError(t, err)
	active := 0
	for _, s := range seasons {
		if s.Active {
			active++
			assert.Equal(t, b.ID, s.ID)
		}
	}
	assert.Equal(t, 1, active)

	current, err := f.store.ActiveSeason(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, current.ID)
}

func TestMemory_Uniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreatePlayer(ctx, ledger.Player{Name: "Alice B", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, ledger.ErrDuplicate, "email is case-insensitive unique")

	_, err = f.store.CreateSeason(ctx, ledger.Season{Name: "2025/26", StartDate: ledger.NewDate(2025, time.August, 11)})
	assert.ErrorIs(t, err, ledger.ErrDuplicate, "season name unique")

	_, err = f.store.AddMembership(ctx, ledger.Membership{PlayerID: f.player.ID, SeasonID: f.season.ID, Active: true})
	require.NoError(t, err)
	_, err = f.store.AddMembership(ctx, ledger.Membership{PlayerID: f.player.ID, SeasonID: f.season.ID, Active: true})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	week, err := f.store.CreateWeek(ctx, ledger.Week{SeasonID: f.season.ID, Number: 1, StartDate: f.season.StartDate, EndDate: f.season.StartDate.AddDate(0, 0, 6)})
	require.NoError(t, err)
	_, err = f.store.CreateWeek(ctx, ledger.Week{SeasonID: f.season.ID, Number: 1, StartDate: f.season.StartDate, EndDate: f.season.StartDate.AddDate(0, 0, 6)})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	bob, err := f.store.CreatePlayer(ctx, ledger.Player{Name: "Bob", Active: true})
	require.NoError(t, err)
	_, err = f.store.AssignWeek(ctx, ledger.WeekAssignment{WeekID: week.ID, PlayerID: f.player.ID, Order: 1})
	require.NoError(t, err)
	_, err = f.store.AssignWeek(ctx, ledger.WeekAssignment{WeekID: week.ID, PlayerID: bob.ID, Order: 1})
	assert.ErrorIs(t, err, ledger.ErrDuplicate, "order taken")
	_, err = f.store.AssignWeek(ctx, ledger.WeekAssignment{WeekID: week.ID, PlayerID: f.player.ID, Order: 2})
	assert.ErrorIs(t, err, ledger.ErrDuplicate, "player already on duty")
	_, err = f.store.AssignWeek(ctx, ledger.WeekAssignment{WeekID: week.ID, PlayerID: bob.ID, Order: 3})
	assert.ErrorIs(t, err, ledger.ErrPersistence, "order out of range")
}

func TestMemory_SettleBetIsCompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bet, err := f.store.CreateBet(ctx, ledger.Bet{
		SeasonID:    f.season.ID,
		PlayerID:    f.player.ID,
		Stake:       decimal.NewFromInt(10),
		Description: "Acca",
		PlacedOn:    ledger.NewDate(2025, time.August, 12),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BetPending, bet.Status)

	day := ledger.NewDate(2025, time.August, 16)
	require.NoError(t, f.store.SettleBet(ctx, bet.ID, ledger.BetWon, day, decimal.NewNullDecimal(decimal.NewFromInt(50))))

	err = f.store.SettleBet(ctx, bet.ID, ledger.BetVoid, day, decimal.NullDecimal{})
	assert.ErrorIs(t, err, ledger.ErrInvalidBetState)

	got, err := f.store.GetBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BetWon, got.Status)
	assert.True(t, got.Winnings.Decimal.Equal(decimal.NewFromInt(50)))
}

func TestMemory_WeekOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.season.StartDate
	w, err := f.store.CreateWeek(ctx, ledger.Week{SeasonID: f.season.ID, Number: 1, StartDate: start, EndDate: start.AddDate(0, 0, 6)})
	require.NoError(t, err)

	got, err := f.store.WeekOn(ctx, f.season.ID, start.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	_, err = f.store.WeekOn(ctx, f.season.ID, start.AddDate(0, 0, 7))
	assert.True(t, ledger.IsNotFound(err))
}

func TestMemory_FindPlayerByName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.store.FindPlayerByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.player.ID, got.ID)

	_, err = f.store.FindPlayerByName(ctx, "Zed")
	assert.True(t, ledger.IsNotFound(err))
}
