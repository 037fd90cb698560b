package syndicate_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/ledger/store"
	"github.com/warp/syndicate/syndicate"
)

func historyRow(line int, day time.Time, player, amount string, typ ledger.EntryType) syndicate.HistoryRow {
	return syndicate.HistoryRow{
		Line:   line,
		Date:   day,
		Player: player,
		Amount: decimal.RequireFromString(amount),
		Type:   typ,
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func TestImportHistory_BooksEndedSeason(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: Last season's transactions, including an unknown player
		ctx := context.Background()
		start := ledger.NewDate(2024, time.August, 12)
		end := ledger.NewDate(2025, time.May, 31)
		rows := []syndicate.HistoryRow{
			historyRow(5, start.AddDate(0, 0, 30), "Bob", "10", ledger.EntryBetPlaced),
			historyRow(2, start, "alice", "50", ledger.EntryContribution),
			historyRow(3, start, "Carol", "50", ledger.EntryContribution),
			historyRow(6, start.AddDate(0, 0, 32), "Bob", "45", ledger.EntryWinnings),
			historyRow(7, end, "Carol", "20", ledger.EntryPayout),
		}

		// WHEN: Importing into a season whose end date has passed
		result, err := h.svc.ImportHistory(ctx, syndicate.HistoryImport{
			SeasonName: "2024/25",
			StartDate:  start,
			EndDate:    &end,
			Rows:       rows,
		})

		// THEN: Everything is booked despite the season not being active
		require.NoError(t, err)
		assert.Equal(t, 3, result.Players)
		assert.Equal(t, 1, result.PlayersCreated, "Alice matched case-insensitively, Carol created")
		assert.Equal(t, 1, result.BetsCreated)
		assert.Equal(t, 2, result.Counts[ledger.EntryContribution])
		assert.Equal(t, 1, result.Counts[ledger.EntryPayout])
		assert.False(t, result.Season.Active)

		balance, err := h.svc.BankBalance(ctx, result.Season.ID, today)
		require.NoError(t, err)
		// 100 - 10 + 45 - 20
		assertDecimal(t, "115", balance)

		members, err := h.svc.ListMemberships(ctx, result.Season.ID)
		require.NoError(t, err)
		assert.Len(t, members, 3)

		bets, err := h.svc.ListBets(ctx, ledger.BetFilter{SeasonID: result.Season.ID})
		require.NoError(t, err)
		require.Len(t, bets, 1)
		assert.Equal(t, ledger.BetPending, bets[0].Status)
		assert.Equal(t, "Imported from CSV", bets[0].Notes)

		// AND: The current season is still the active one
		active, err := h.svc.ActiveSeason(ctx)
		require.NoError(t, err)
		assert.Equal(t, h.season.ID, active.ID)

		entries := h.entries(t, ledger.Filter{SeasonID: result.Season.ID})
		for _, e := range entries {
			assert.Equal(t, "import", e.CreatedBy)
			assert.NoError(t, e.CheckSign())
		}
	})
}

func TestImportHistory_ReusesSeasonAndActivates(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		in := syndicate.HistoryImport{
			SeasonName: "2025/26",
			StartDate:  seasonStart,
			Rows:       []syndicate.HistoryRow{historyRow(2, seasonStart, "Alice", "5", ledger.EntryContribution)},
		}

		first, err := h.svc.ImportHistory(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, h.season.ID, first.Season.ID)
		assert.Equal(t, 0, first.PlayersCreated)

		// A later import into a new season can take over activation.
		in.SeasonName = "Summer league"
		in.Activate = true
		second, err := h.svc.ImportHistory(ctx, in)
		require.NoError(t, err)
		assert.True(t, second.Season.Active)

		active, err := h.svc.ActiveSeason(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.Season.ID, active.ID)
	})
}

func TestImportHistory_Rejects(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	ctx := context.Background()
	valid := historyRow(2, seasonStart, "Alice", "5", ledger.EntryContribution)

	cases := map[string]syndicate.HistoryImport{
		"no season name": {StartDate: seasonStart, Rows: []syndicate.HistoryRow{valid}},
		"no start date":  {SeasonName: "X", Rows: []syndicate.HistoryRow{valid}},
		"void rows":      {SeasonName: "X", StartDate: seasonStart, Rows: []syndicate.HistoryRow{historyRow(2, seasonStart, "Alice", "5", ledger.EntryBetVoid)}},
		"zero amount":    {SeasonName: "X", StartDate: seasonStart, Rows: []syndicate.HistoryRow{historyRow(2, seasonStart, "Alice", "0", ledger.EntryContribution)}},
		"no player":      {SeasonName: "X", StartDate: seasonStart, Rows: []syndicate.HistoryRow{historyRow(2, seasonStart, "", "5", ledger.EntryContribution)}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.ImportHistory(ctx, in)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}

	_, err := h.svc.GetSeason(ctx, "X")
	assert.True(t, ledger.IsNotFound(err))
	assert.Empty(t, h.entries(t, ledger.Filter{}))
}

// =============================================================================
// ROTA
// =============================================================================

func TestImportRota(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		// GIVEN: Three calendar weeks, two of them unusable
		ctx := context.Background()
		rows := []syndicate.RotaRow{
			{Number: 1, StartDate: seasonStart, Players: [2]string{"alice", "Bob"}},
			{Number: 2, StartDate: seasonStart.AddDate(0, 0, 7), Players: [2]string{"Bob", "Zed"}},
			{Number: 3, StartDate: seasonStart.AddDate(0, 0, 14), Players: [2]string{"Alice", "Alice"}},
		}

		// WHEN: Importing
		result, err := h.svc.ImportRota(ctx, h.season.ID, rows)

		// THEN: All weeks exist, only the first is staffed, and the rest warn
		require.NoError(t, err)
		assert.Equal(t, 3, result.WeeksCreated)
		assert.Equal(t, 1, result.Weeks)
		assert.Equal(t, 2, result.AssignmentsCreated)
		require.Len(t, result.Warnings, 2)
		assert.Contains(t, result.Warnings[0], "Zed")

		weeks, err := h.svc.ListWeeks(ctx, h.season.ID)
		require.NoError(t, err)
		require.Len(t, weeks, 3)
		assert.Equal(t, seasonStart.AddDate(0, 0, 20), weeks[2].EndDate)

		rota, err := h.svc.CurrentRota(ctx, h.season.ID, seasonStart.AddDate(0, 0, 4))
		require.NoError(t, err)
		require.NotNil(t, rota)
		require.Len(t, rota.Players, 2)
		assert.Equal(t, h.alice.ID, rota.Players[0].ID)
		assert.Equal(t, h.bob.ID, rota.Players[1].ID)

		// AND: Re-importing changes nothing
		again, err := h.svc.ImportRota(ctx, h.season.ID, rows)
		require.NoError(t, err)
		assert.Equal(t, 0, again.WeeksCreated)
		assert.Equal(t, 0, again.AssignmentsCreated)
	})
}

func TestImportRota_Rejects(t *testing.T) {
	h := newHarness(t, store.NewMemory())
	ctx := context.Background()

	_, err := h.svc.ImportRota(ctx, h.season.ID, []syndicate.RotaRow{{Number: 0, StartDate: seasonStart}})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.svc.ImportRota(ctx, "missing", []syndicate.RotaRow{{Number: 1, StartDate: seasonStart, Players: [2]string{"Alice", "Bob"}}})
	assert.True(t, ledger.IsNotFound(err))
}
