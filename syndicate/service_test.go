package syndicate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/ledger/store"
	"github.com/warp/syndicate/store/sqlite"
	"github.com/warp/syndicate/syndicate"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	// Monday 11 Aug 2025 to Monday 19 Jan 2026: 24 Mondays, 23 whole weeks.
	seasonStart = ledger.NewDate(2025, time.August, 11)
	today       = ledger.NewDate(2026, time.January, 19)
)

type harness struct {
	svc    *syndicate.Service
	store  ledger.TxStore
	logs   *test.Hook
	season ledger.Season
	alice  ledger.Player
	bob    ledger.Player
}

// forEachStore runs fn against a fresh in-memory store and a fresh SQLite
// database, each seeded with Alice and Bob in an active season.
func forEachStore(t *testing.T, fn func(t *testing.T, h *harness)) {
	t.Helper()
	openers := []struct {
		name string
		open func(t *testing.T) ledger.TxStore
	}{
		{"memory", func(*testing.T) ledger.TxStore { return store.NewMemory() }},
		{"sqlite", func(t *testing.T) ledger.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
	for _, o := range openers {
		t.Run(o.name, func(t *testing.T) {
			fn(t, newHarness(t, o.open(t)))
		})
	}
}

func newHarness(t *testing.T, s ledger.TxStore) *harness {
	t.Helper()
	ctx := context.Background()
	logger, hook := test.NewNullLogger()

	svc, err := syndicate.NewService(s,
		syndicate.WithClock(ledger.FixedClock(today.Add(15*time.Hour))),
		syndicate.WithLogger(logger),
	)
	require.NoError(t, err)

	alice, err := svc.CreatePlayer(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := svc.CreatePlayer(ctx, "Bob", "")
	require.NoError(t, err)
	season, err := svc.CreateSeason(ctx, syndicate.SeasonInput{
		Name:      "2025/26",
		StartDate: seasonStart,
		Players:   []ledger.PlayerID{alice.ID, bob.ID},
	})
	require.NoError(t, err)

	return &harness{svc: svc, store: s, logs: hook, season: season, alice: alice, bob: bob}
}

func (h *harness) contribute(t *testing.T, p ledger.Player, amount string) ledger.Entry {
	t.Helper()
	e, err := h.svc.RecordContribution(context.Background(), syndicate.CashMovement{
		PlayerID: p.ID,
		Amount:   decimal.RequireFromString(amount),
		Date:     seasonStart.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	return e
}

func (h *harness) payout(t *testing.T, p ledger.Player, amount string) ledger.Entry {
	t.Helper()
	e, err := h.svc.RecordPayout(context.Background(), syndicate.CashMovement{
		PlayerID: p.ID,
		Amount:   decimal.RequireFromString(amount),
		Date:     today,
	})
	require.NoError(t, err)
	return e
}

func (h *harness) placeBet(t *testing.T, p ledger.Player, stake string) ledger.Bet {
	t.Helper()
	b, err := h.svc.PlaceBet(context.Background(), syndicate.BetInput{
		PlayerID:    p.ID,
		Stake:       decimal.RequireFromString(stake),
		Description: "Saturday acca",
		Odds:        "11/2",
		Date:        seasonStart.AddDate(0, 0, 12),
	})
	require.NoError(t, err)
	return b
}

func (h *harness) entries(t *testing.T, filter ledger.Filter) []ledger.Entry {
	t.Helper()
	out, err := h.svc.LedgerEntries(context.Background(), filter, 0)
	require.NoError(t, err)
	return out
}

func (h *harness) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := h.svc.BankBalance(context.Background(), h.season.ID, today)
	require.NoError(t, err)
	return b
}

// seedActivity books a representative season:
//
//	contributions  Alice 50, Bob 40
//	bets           Alice 20 won 110, Bob 10 lost, Alice 15 void
//	payouts        Bob 25
func (h *harness) seedActivity(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	h.contribute(t, h.alice, "50")
	h.contribute(t, h.bob, "40")

	won := h.placeBet(t, h.alice, "20")
	_, err := h.svc.SettleBetWon(ctx, won.ID, decimal.NewFromInt(110), today, "tester")
	require.NoError(t, err)

	lost := h.placeBet(t, h.bob, "10")
	_, err = h.svc.SettleBetLost(ctx, lost.ID, today, "tester")
	require.NoError(t, err)

	void := h.placeBet(t, h.alice, "15")
	_, err = h.svc.VoidBet(ctx, void.ID, today, "tester")
	require.NoError(t, err)

	h.payout(t, h.bob, "25")
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got),
		append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// =============================================================================
// LEDGER PROPERTIES
// =============================================================================

func TestBankBalance_EqualsSumOfEntries(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: A season with every kind of entry
		h.seedActivity(t)

		// WHEN: Summing the raw ledger
		sum := decimal.Zero
		for _, e := range h.entries(t, ledger.Filter{SeasonID: h.season.ID}) {
			sum = sum.Add(e.Amount)
		}

		// THEN: The bank balance is exactly that sum
		// 90 - 20 + 110 - 10 - 15 + 15 - 25
		assertDecimal(t, "145", sum)
		assertDecimal(t, "145", h.balance(t))
	})
}

func TestEntrySigns_FollowType(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		h.seedActivity(t)

		entries := h.entries(t, ledger.Filter{SeasonID: h.season.ID})
		require.Len(t, entries, 8)
		for _, e := range entries {
			assert.NoError(t, e.CheckSign(), "%s %s", e.Type, e.Amount)
		}
	})
}

func TestReads_AreIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: A populated season
		h.seedActivity(t)
		ctx := context.Background()
		before := len(h.entries(t, ledger.Filter{}))

		// WHEN: Reading every aggregate twice
		first, err := h.svc.Dashboard(ctx, h.season.ID, today)
		require.NoError(t, err)
		second, err := h.svc.Dashboard(ctx, h.season.ID, today)
		require.NoError(t, err)

		// THEN: Same figures, and reading wrote nothing
		assert.True(t, first.Totals.BankBalance.Equal(second.Totals.BankBalance))
		assert.True(t, first.Totals.SharePerPlayer.Equal(second.Totals.SharePerPlayer))
		assert.True(t, first.Totals.BetBudget.Equal(second.Totals.BetBudget))
		require.Len(t, second.Stats, len(first.Stats))
		for i := range first.Stats {
			assert.Equal(t, first.Stats[i].Player.ID, second.Stats[i].Player.ID)
			assert.True(t, first.Stats[i].Payout.Equal(second.Stats[i].Payout))
		}
		assert.Len(t, h.entries(t, ledger.Filter{}), before)
	})
}

func TestDashboard_ConsistentUnderMembershipChanges(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: 100 in winnings and a writer toggling Bob's membership
		ctx := context.Background()
		bet := h.placeBet(t, h.alice, "10")
		_, err := h.svc.SettleBetWon(ctx, bet.ID, decimal.NewFromInt(100), today, "tester")
		require.NoError(t, err)

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for active := false; ; active = !active {
				select {
				case <-stop:
					return
				default:
				}
				assert.NoError(t, h.svc.SetMembershipActive(ctx, h.season.ID, h.bob.ID, active))
			}
		}()

		// WHEN: Reading the dashboard while memberships change
		shares := map[int]string{1: "100", 2: "50"}
		for i := 0; i < 50; i++ {
			d, err := h.svc.Dashboard(ctx, h.season.ID, today)
			require.NoError(t, err)

			// THEN: Totals and the table agree on who is active
			assert.Len(t, d.Stats, d.Totals.ActivePlayers)
			want, ok := shares[d.Totals.ActivePlayers]
			if assert.True(t, ok, "active players %d", d.Totals.ActivePlayers) {
				assertDecimal(t, want, d.Totals.SharePerPlayer)
			}
			for _, st := range d.Stats {
				assertDecimal(t, want, st.Payout.Sub(st.NetPosition).Add(st.ExpectedContribution), st.Player.Name)
			}
		}
		close(stop)
		wg.Wait()
	})
}

// =============================================================================
// BETS
// =============================================================================

func TestPlaceBet_WritesBetAndEntry(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		bet := h.placeBet(t, h.alice, "12.50")

		assert.Equal(t, ledger.BetPending, bet.Status)
		assert.Equal(t, h.season.ID, bet.SeasonID, "empty season means the active one")

		entries := h.entries(t, ledger.Filter{BetID: bet.ID})
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.EntryBetPlaced, entries[0].Type)
		assertDecimal(t, "-12.50", entries[0].Amount)
		assert.Equal(t, h.alice.ID, entries[0].PlayerID)
	})
}

func TestSettle_Twice(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: A bet settled as won
		ctx := context.Background()
		bet := h.placeBet(t, h.alice, "20")
		_, err := h.svc.SettleBetWon(ctx, bet.ID, decimal.NewFromInt(50), today, "tester")
		require.NoError(t, err)
		size := len(h.entries(t, ledger.Filter{}))

		// WHEN: Settling it again in any direction
		_, lostErr := h.svc.SettleBetLost(ctx, bet.ID, today, "tester")
		_, voidErr := h.svc.VoidBet(ctx, bet.ID, today, "tester")
		_, wonErr := h.svc.SettleBetWon(ctx, bet.ID, decimal.NewFromInt(50), today, "tester")

		// THEN: Every attempt is refused and the ledger is untouched
		for _, err := range []error{lostErr, voidErr, wonErr} {
			assert.ErrorIs(t, err, ledger.ErrInvalidBetState)
		}
		var stateErr *ledger.InvalidBetStateError
		require.ErrorAs(t, lostErr, &stateErr)
		assert.Equal(t, ledger.BetWon, stateErr.Status)
		assert.Len(t, h.entries(t, ledger.Filter{}), size)

		got, err := h.svc.GetBet(ctx, bet.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.BetWon, got.Status)
	})
}

func TestVoidBet_NetsToZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: A contribution and a 20 stake
		h.contribute(t, h.alice, "30")
		before := h.balance(t)
		bet := h.placeBet(t, h.alice, "20")
		assertDecimal(t, "10", h.balance(t))

		// WHEN: Voiding the bet
		voided, err := h.svc.VoidBet(context.Background(), bet.ID, today, "tester")
		require.NoError(t, err)

		// THEN: The bet's entries cancel out and the balance is restored
		assert.Equal(t, ledger.BetVoid, voided.Status)
		sum := decimal.Zero
		for _, e := range h.entries(t, ledger.Filter{BetID: bet.ID}) {
			sum = sum.Add(e.Amount)
		}
		assert.True(t, sum.IsZero(), "got %s", sum)
		assert.True(t, before.Equal(h.balance(t)))
	})
}

func TestSettleLost_AppendsNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		bet := h.placeBet(t, h.bob, "10")

		lost, err := h.svc.SettleBetLost(context.Background(), bet.ID, today, "tester")
		require.NoError(t, err)

		assert.Equal(t, ledger.BetLost, lost.Status)
		require.NotNil(t, lost.ResultDate)
		assert.Equal(t, today, *lost.ResultDate)
		assert.False(t, lost.Winnings.Valid)
		assert.Len(t, h.entries(t, ledger.Filter{BetID: bet.ID}), 1)
	})
}

func TestSettleWon_ConcurrentOnlyOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: One pending bet
		ctx := context.Background()
		bet := h.placeBet(t, h.alice, "20")

		// WHEN: Settling it as won from several goroutines at once
		const attempts = 8
		errs := make([]error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = h.svc.SettleBetWon(ctx, bet.ID, decimal.NewFromInt(50), today, "tester")
			}(i)
		}
		wg.Wait()

		// THEN: Exactly one settlement lands and the rest are refused
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ledger.ErrInvalidBetState)
		}
		assert.Equal(t, 1, succeeded)

		// AND: The winnings were credited once
		winnings := h.entries(t, ledger.Filter{BetID: bet.ID, Types: []ledger.EntryType{ledger.EntryWinnings}})
		require.Len(t, winnings, 1)
		assertDecimal(t, "50", winnings[0].Amount)
		assertDecimal(t, "30", h.balance(t))
	})
}

func TestSettleWon_CreditsWinnings(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		bet := h.placeBet(t, h.alice, "20")

		won, err := h.svc.SettleBetWon(context.Background(), bet.ID, decimal.RequireFromString("130.50"), today, "tester")
		require.NoError(t, err)

		assert.Equal(t, ledger.BetWon, won.Status)
		assertDecimal(t, "130.50", won.Winnings.Decimal)
		winnings := h.entries(t, ledger.Filter{BetID: bet.ID, Types: []ledger.EntryType{ledger.EntryWinnings}})
		require.Len(t, winnings, 1)
		assertDecimal(t, "130.50", winnings[0].Amount)
		assert.Equal(t, "tester", winnings[0].CreatedBy)
	})
}

// =============================================================================
// SEASON STATE
// =============================================================================

func TestFrozenSeason(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: A pending bet, then the season's end date set to yesterday
		ctx := context.Background()
		h.contribute(t, h.alice, "50")
		pending := h.placeBet(t, h.alice, "10")
		yesterday := today.AddDate(0, 0, -1)
		require.NoError(t, h.svc.SetSeasonEndDate(ctx, h.season.ID, &yesterday))

		state, err := h.svc.SeasonState(ctx, h.season.ID, today)
		require.NoError(t, err)
		require.Equal(t, ledger.SeasonFrozen, state)
		size := len(h.entries(t, ledger.Filter{}))

		// WHEN: Contributing or betting
		_, contribErr := h.svc.RecordContribution(ctx, syndicate.CashMovement{PlayerID: h.alice.ID, Amount: decimal.NewFromInt(5), Date: today})
		_, betErr := h.svc.PlaceBet(ctx, syndicate.BetInput{PlayerID: h.alice.ID, Stake: decimal.NewFromInt(5), Description: "Late bet", Date: today})

		// THEN: Both are refused with nothing written
		assert.ErrorIs(t, contribErr, ledger.ErrSeasonNotWritable)
		assert.ErrorIs(t, betErr, ledger.ErrSeasonNotWritable)
		var notWritable *ledger.SeasonNotWritableError
		require.ErrorAs(t, betErr, &notWritable)
		assert.Equal(t, ledger.SeasonFrozen, notWritable.State)
		assert.Len(t, h.entries(t, ledger.Filter{}), size)

		// AND: Payouts and settling existing bets still work
		h.payout(t, h.alice, "40")
		_, err = h.svc.VoidBet(ctx, pending.ID, today, "tester")
		require.NoError(t, err)

		// AND: Clearing the end date reopens the season
		require.NoError(t, h.svc.SetSeasonEndDate(ctx, h.season.ID, nil))
		h.contribute(t, h.alice, "5")
	})
}

func TestInactiveSeason_RejectsAllWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		next, err := h.svc.CreateSeason(ctx, syndicate.SeasonInput{Name: "2026/27", StartDate: today})
		require.NoError(t, err)
		require.NotEqual(t, h.season.ID, next.ID)

		_, err = h.svc.RecordPayout(ctx, syndicate.CashMovement{
			PlayerID: h.alice.ID, SeasonID: h.season.ID, Amount: decimal.NewFromInt(5), Date: today,
		})
		assert.ErrorIs(t, err, ledger.ErrSeasonNotWritable)

		state, err := h.svc.SeasonState(ctx, h.season.ID, today)
		require.NoError(t, err)
		assert.Equal(t, ledger.SeasonInactive, state)
	})
}

func TestActivation_ExactlyOneActive(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		activeCount := func() (int, ledger.SeasonID) {
			seasons, err := h.svc.ListSeasons(ctx)
			require.NoError(t, err)
			n, id := 0, ledger.SeasonID("")
			for _, s := range seasons {
				if s.Active {
					n++
					id = s.ID
				}
			}
			return n, id
		}

		// WHEN: Creating a second season
		next, err := h.svc.CreateSeason(ctx, syndicate.SeasonInput{Name: "2026/27", StartDate: ledger.NewDate(2026, time.August, 10)})
		require.NoError(t, err)

		// THEN: Only the new one is active
		n, id := activeCount()
		assert.Equal(t, 1, n)
		assert.Equal(t, next.ID, id)

		// WHEN: Re-activating the original
		require.NoError(t, h.svc.ActivateSeason(ctx, h.season.ID))

		// THEN: Only the original is active, and unscoped writes land there
		n, id = activeCount()
		assert.Equal(t, 1, n)
		assert.Equal(t, h.season.ID, id)
		e := h.contribute(t, h.bob, "5")
		assert.Equal(t, h.season.ID, e.SeasonID)

		// AND: Activating an unknown season changes nothing
		assert.True(t, ledger.IsNotFound(h.svc.ActivateSeason(ctx, "missing")))
		_, id = activeCount()
		assert.Equal(t, h.season.ID, id)
	})
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestRecordContribution_Rejects(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		valid := syndicate.CashMovement{PlayerID: h.alice.ID, Amount: decimal.NewFromInt(5), Date: today}

		zero := valid
		zero.Amount = decimal.Zero
		_, err := h.svc.RecordContribution(ctx, zero)
		assert.ErrorIs(t, err, ledger.ErrValidation)

		negative := valid
		negative.Amount = decimal.NewFromInt(-5)
		_, err = h.svc.RecordContribution(ctx, negative)
		assert.ErrorIs(t, err, ledger.ErrValidation)

		noDate := valid
		noDate.Date = time.Time{}
		_, err = h.svc.RecordContribution(ctx, noDate)
		assert.ErrorIs(t, err, ledger.ErrValidation)

		ghost := valid
		ghost.PlayerID = "ghost"
		_, err = h.svc.RecordContribution(ctx, ghost)
		assert.True(t, ledger.IsNotFound(err))

		assert.Empty(t, h.entries(t, ledger.Filter{}))
	})
}

func TestRecordContribution_WeekFromAnotherSeason(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		week, err := h.svc.CreateWeek(ctx, syndicate.WeekInput{SeasonID: h.season.ID, Number: 1, StartDate: seasonStart})
		require.NoError(t, err)
		_, err = h.svc.CreateSeason(ctx, syndicate.SeasonInput{Name: "2026/27", StartDate: today})
		require.NoError(t, err)

		_, err = h.svc.RecordContribution(ctx, syndicate.CashMovement{
			PlayerID: h.alice.ID, WeekID: week.ID, Amount: decimal.NewFromInt(5), Date: today,
		})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestPlaceBet_Rejects(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		cases := map[string]syndicate.BetInput{
			"zero stake":     {PlayerID: h.alice.ID, Stake: decimal.Zero, Description: "Acca", Date: today},
			"no description": {PlayerID: h.alice.ID, Stake: decimal.NewFromInt(5), Description: "  ", Date: today},
			"no player":      {Stake: decimal.NewFromInt(5), Description: "Acca", Date: today},
		}
		for name, in := range cases {
			_, err := h.svc.PlaceBet(ctx, in)
			assert.ErrorIs(t, err, ledger.ErrValidation, name)
		}

		bets, err := h.svc.ListBets(ctx, ledger.BetFilter{})
		require.NoError(t, err)
		assert.Empty(t, bets)
	})
}

func TestSettle_Rejects(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		bet := h.placeBet(t, h.alice, "10")

		_, err := h.svc.SettleBetWon(ctx, bet.ID, decimal.Zero, today, "tester")
		assert.ErrorIs(t, err, ledger.ErrValidation)

		_, err = h.svc.SettleBetLost(ctx, bet.ID, time.Time{}, "tester")
		assert.ErrorIs(t, err, ledger.ErrValidation)

		_, err = h.svc.VoidBet(ctx, "missing", today, "tester")
		assert.True(t, ledger.IsNotFound(err))

		got, err := h.svc.GetBet(ctx, bet.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.BetPending, got.Status)
	})
}

func TestRejectedActions_AreLogged(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	h.logs.Reset()

	_, err := h.svc.RecordContribution(context.Background(), syndicate.CashMovement{PlayerID: h.alice.ID, Date: today})
	require.Error(t, err)

	last := h.logs.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, log.WarnLevel, last.Level)
	assert.Equal(t, "action rejected", last.Message)
	assert.Equal(t, ledger.ActionContribute, last.Data["action"])
}

// =============================================================================
// ADMIN
// =============================================================================

func TestCreateSeason_Validation(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	ctx := context.Background()

	_, err := h.svc.CreateSeason(ctx, syndicate.SeasonInput{StartDate: today})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	before := today.AddDate(0, 0, -1)
	_, err = h.svc.CreateSeason(ctx, syndicate.SeasonInput{Name: "Backwards", StartDate: today, EndDate: &before})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.svc.CreateSeason(ctx, syndicate.SeasonInput{Name: "2025/26", StartDate: today})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	active, err := h.svc.ActiveSeason(ctx)
	require.NoError(t, err)
	assert.Equal(t, h.season.ID, active.ID, "failed creates leave activation alone")
}

func TestMemberships(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		carol, err := h.svc.CreatePlayer(ctx, "Carol", "")
		require.NoError(t, err)

		m, err := h.svc.AddPlayerToSeason(ctx, h.season.ID, carol.ID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, today, m.JoinedOn, "defaults to today")

		_, err = h.svc.AddPlayerToSeason(ctx, h.season.ID, carol.ID, today)
		assert.ErrorIs(t, err, ledger.ErrDuplicate)

		require.NoError(t, h.svc.SetMembershipActive(ctx, h.season.ID, h.bob.ID, false))
		members, err := h.svc.ListMemberships(ctx, h.season.ID)
		require.NoError(t, err)
		assert.Len(t, members, 3)

		totals, err := h.svc.SeasonTotals(ctx, h.season.ID, today)
		require.NoError(t, err)
		assert.Equal(t, 2, totals.ActivePlayers)
	})
}

func TestWeeks(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		week, err := h.svc.CreateWeek(ctx, syndicate.WeekInput{SeasonID: h.season.ID, Number: 1, StartDate: seasonStart})
		require.NoError(t, err)
		assert.Equal(t, seasonStart.AddDate(0, 0, 6), week.EndDate, "defaults to a seven-day week")

		_, err = h.svc.AssignWeek(ctx, week.ID, h.alice.ID, h.alice.ID)
		assert.ErrorIs(t, err, ledger.ErrValidation)
		_, err = h.svc.AssignWeek(ctx, week.ID)
		assert.ErrorIs(t, err, ledger.ErrValidation)

		assigned, err := h.svc.AssignWeek(ctx, week.ID, h.bob.ID, h.alice.ID)
		require.NoError(t, err)
		require.Len(t, assigned, 2)
		assert.Equal(t, 1, assigned[0].Order)
		assert.Equal(t, h.bob.ID, assigned[0].PlayerID)

		rota, err := h.svc.CurrentRota(ctx, h.season.ID, seasonStart.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.NotNil(t, rota)
		assert.Equal(t, week.ID, rota.Week.ID)
		require.Len(t, rota.Players, 2)
		assert.Equal(t, "Bob", rota.Players[0].Name)
		assert.Equal(t, "Alice", rota.Players[1].Name)

		none, err := h.svc.CurrentRota(ctx, h.season.ID, today)
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestLedgerEntries_NewestFirstWithLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		h.contribute(t, h.alice, "5")
		h.placeBet(t, h.alice, "5")
		h.payout(t, h.alice, "1")

		got, err := h.svc.LedgerEntries(context.Background(), ledger.Filter{SeasonID: h.season.ID}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, ledger.EntryPayout, got[0].Type)
		assert.Equal(t, ledger.EntryBetPlaced, got[1].Type)

		_, err = h.svc.LedgerEntries(context.Background(), ledger.Filter{Types: []ledger.EntryType{"refund"}}, 0)
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}
