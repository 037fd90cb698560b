/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Loads each scenario through the HTTP API and checks the state it leaves
	behind: the new season is active, balances equal the sum of its entries
	and the figures match what the scenario describes.

The fixed clock puts today on Monday 19 Jan 2026.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadResponse struct {
	Status   string    `json:"status"`
	Scenario string    `json:"scenario"`
	SeasonID string    `json:"season_id"`
	Season   SeasonDTO `json:"season"`
}

func loadScenario(t *testing.T, s *testServer, id string) loadResponse {
	t.Helper()
	res := must[loadResponse](s, http.StatusOK, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, "loaded", res.Status)
	require.Equal(t, id, res.Scenario)
	return res
}

// assertBalanceMatchesLedger checks the season balance against a fold of
// the season's entries as listed by the ledger endpoint.
func assertBalanceMatchesLedger(t *testing.T, s *testServer, seasonID string) string {
	t.Helper()
	balance := must[map[string]string](s, http.StatusOK, "GET", "/api/seasons/"+seasonID+"/balance", nil)
	entries := must[[]EntryDTO](s, http.StatusOK, "GET", "/api/ledger?season_id="+seasonID, nil)

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(decimal.RequireFromString(e.Amount))
	}
	assert.Equal(t, sum.StringFixed(2), balance["bank_balance"])
	return balance["bank_balance"]
}

func TestScenario_FreshSeason(t *testing.T) {
	// GIVEN: An empty syndicate
	s := newTestServer(t)

	// WHEN: Loading the fresh season
	res := loadScenario(t, s, "fresh-season")

	// THEN: Four Mondays in, Dave one contribution short, one open bet
	assert.Equal(t, "active", res.Season.State)
	assert.Equal(t, "2025-12-29", res.Season.StartDate)

	// 15 contributions of 5, less a 10 stake
	assert.Equal(t, "65.00", assertBalanceMatchesLedger(t, s, res.SeasonID))

	totals := must[TotalsDTO](s, http.StatusOK, "GET", "/api/seasons/active/totals", nil)
	assert.Equal(t, res.SeasonID, totals.SeasonID)
	assert.Equal(t, 4, totals.MondaysElapsed)
	assert.Equal(t, 4, totals.ActivePlayers)
	assert.Equal(t, "75.00", totals.TotalContributions)

	stats := must[[]PositionDTO](s, http.StatusOK, "GET", "/api/seasons/"+res.SeasonID+"/stats", nil)
	require.Len(t, stats, 4)
	for _, p := range stats {
		if p.PlayerName == "Dave" {
			assert.Equal(t, "5.00", p.Owes)
		} else {
			assert.Equal(t, "0.00", p.Owes, p.PlayerName)
		}
	}

	bets := must[[]BetDTO](s, http.StatusOK, "GET", "/api/bets?status=pending&season_id="+res.SeasonID, nil)
	assert.Len(t, bets, 1)

	rota := must[*RotaDTO](s, http.StatusOK, "GET", "/api/seasons/active/rota", nil)
	require.NotNil(t, rota)
	assert.Equal(t, 4, rota.Week.WeekNumber)
	require.Len(t, rota.Players, 2)
	assert.Equal(t, "Carol", rota.Players[0].Name)
	assert.Equal(t, "Dave", rota.Players[1].Name)
}

func TestScenario_MidSeason(t *testing.T) {
	s := newTestServer(t)

	res := loadScenario(t, s, "mid-season")

	assert.Equal(t, "active", res.Season.State)
	// 44 contributions, +62.50 from history, +9 from live bets
	assert.Equal(t, "291.50", assertBalanceMatchesLedger(t, s, res.SeasonID))

	totals := must[TotalsDTO](s, http.StatusOK, "GET", "/api/seasons/active/totals", nil)
	assert.Equal(t, 12, totals.MondaysElapsed)
	assert.Equal(t, "60.00", totals.ExpectedContribution)

	stats := must[[]PositionDTO](s, http.StatusOK, "GET", "/api/seasons/"+res.SeasonID+"/stats", nil)
	require.Len(t, stats, 4)
	for _, p := range stats {
		if p.PlayerName == "Carol" {
			assert.Equal(t, "40.00", p.NetPosition)
			assert.Equal(t, "20.00", p.Owes)
		}
	}

	// Imported history bets stay pending next to Carol's live one.
	for status, want := range map[string]int{"won": 1, "lost": 1, "void": 1, "pending": 4} {
		bets := must[[]BetDTO](s, http.StatusOK, "GET", "/api/bets?status="+status+"&season_id="+res.SeasonID, nil)
		assert.Len(t, bets, want, status)
	}
}

func TestScenario_SeasonEnd(t *testing.T) {
	s := newTestServer(t)

	res := loadScenario(t, s, "season-end")

	// THEN: The season ended yesterday and is frozen
	assert.Equal(t, "frozen", res.Season.State)
	assert.Equal(t, "2026-01-18", res.Season.EndDate)

	// 400 contributed, +110 from bets, 4 payouts of 43.75
	assert.Equal(t, "335.00", assertBalanceMatchesLedger(t, s, res.SeasonID))

	payouts := must[[]EntryDTO](s, http.StatusOK, "GET", "/api/ledger?type=payout&season_id="+res.SeasonID, nil)
	require.Len(t, payouts, 4)
	for _, p := range payouts {
		assert.Equal(t, "-43.75", p.Amount)
	}

	// AND: Everyone has been paid what they were owed
	stats := must[[]PositionDTO](s, http.StatusOK, "GET", "/api/seasons/"+res.SeasonID+"/stats", nil)
	for _, p := range stats {
		assert.Equal(t, "0.00", p.Payout, p.PlayerName)
	}

	// AND: Contributions are refused
	rec := s.do("POST", "/api/contributions", map[string]any{"player_id": stats[0].PlayerID, "amount": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScenario_LoadingTwiceKeepsOneActiveSeason(t *testing.T) {
	s := newTestServer(t)

	first := loadScenario(t, s, "fresh-season")
	second := loadScenario(t, s, "mid-season")
	assert.NotEqual(t, first.SeasonID, second.SeasonID)

	seasons := must[[]SeasonDTO](s, http.StatusOK, "GET", "/api/seasons", nil)
	require.Len(t, seasons, 2)
	for _, season := range seasons {
		assert.Equal(t, season.ID == second.SeasonID, season.Active, season.Name)
	}

	// Players are matched by name, not duplicated.
	players := must[[]PlayerDTO](s, http.StatusOK, "GET", "/api/players", nil)
	assert.Len(t, players, 4)

	// The first season's ledger is untouched.
	assert.Equal(t, "65.00", assertBalanceMatchesLedger(t, s, first.SeasonID))
}

func TestScenarios_ListAndCurrent(t *testing.T) {
	s := newTestServer(t)

	list := must[[]ScenarioDTO](s, http.StatusOK, "GET", "/api/scenarios", nil)
	require.Len(t, list, 3)
	assert.Equal(t, "fresh-season", list[0].ID)

	none := must[*ScenarioDTO](s, http.StatusOK, "GET", "/api/scenarios/current", nil)
	assert.Nil(t, none)

	loadScenario(t, s, "season-end")
	current := must[*ScenarioDTO](s, http.StatusOK, "GET", "/api/scenarios/current", nil)
	require.NotNil(t, current)
	assert.Equal(t, "season-end", current.ID)

	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "no-such"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/scenarios/load", map[string]string{}).Code)
}
