/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the store with a realistic season for demos. Each scenario
  creates a new season (and activates it), reuses players by name, books
  history through the importer path and then performs a few live actions
  through the service, so the data is exactly what real usage produces.

AVAILABLE SCENARIOS:
  fresh-season:  four weeks in, everyone paid up but one, one open bet
  mid-season:    twelve weeks in, mixed bet results, a player behind
  season-end:    season ended yesterday (frozen), payouts being made

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "mid-season"}

NOTE:
  Scenarios never delete data. Loading one twice creates two seasons;
  the most recently loaded one is active.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/syndicate"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-season",
		Name:        "Fresh Season",
		Description: "Four weeks in, weekly contributions, one pending bet",
	},
	{
		ID:          "mid-season",
		Name:        "Mid Season",
		Description: "Twelve weeks in with won, lost and void bets and a player behind on contributions",
	},
	{
		ID:          "season-end",
		Name:        "Season End",
		Description: "Season ended yesterday: frozen, accepting payouts only",
	},
}

var demoPlayers = []string{"Alice", "Bob", "Carol", "Dave"}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario into a new season.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	today := h.svc.Clock().Today()

	var (
		season ledger.Season
		err    error
	)
	switch req.ScenarioID {
	case "fresh-season":
		season, err = h.loadFreshSeason(ctx, today)
	case "mid-season":
		season, err = h.loadMidSeason(ctx, today)
	case "season-end":
		season, err = h.loadSeasonEnd(ctx, today)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.log.WithField("scenario", req.ScenarioID).WithField("season_id", season.ID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "loaded",
		"scenario":  req.ScenarioID,
		"season_id": season.ID,
		"season":    toSeasonDTO(season, today),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadFreshSeason: started on the Monday three weeks before this week's
// Monday, so four Mondays have passed. Dave missed the latest contribution.
func (h *Handler) loadFreshSeason(ctx context.Context, today time.Time) (ledger.Season, error) {
	start := mondayWeeksBefore(today, 3)

	var rows []syndicate.HistoryRow
	for _, monday := range mondaysBetween(start, today) {
		for _, name := range demoPlayers {
			if name == "Dave" && monday.Equal(thisMonday(today)) {
				continue
			}
			rows = append(rows, contribution(monday, name))
		}
	}

	season, err := h.importScenario(ctx, "Fresh Season", start, nil, rows)
	if err != nil {
		return ledger.Season{}, err
	}
	if err := h.importScenarioRota(ctx, season, start, 8); err != nil {
		return ledger.Season{}, err
	}

	alice, err := h.playerIn(ctx, season, "Alice")
	if err != nil {
		return ledger.Season{}, err
	}
	_, err = h.svc.PlaceBet(ctx, syndicate.BetInput{
		PlayerID:    alice,
		SeasonID:    season.ID,
		Stake:       decimal.NewFromInt(10),
		Description: "Weekend accumulator",
		Odds:        "12/1",
		Date:        today,
		CreatedBy:   "scenario",
	})
	return season, err
}

// loadMidSeason: twelve weeks in. Carol stopped paying four weeks ago.
// History has two settled winners; live bets cover won, lost and void.
func (h *Handler) loadMidSeason(ctx context.Context, today time.Time) (ledger.Season, error) {
	start := mondayWeeksBefore(today, 11)
	carolStops := mondayWeeksBefore(today, 3)

	var rows []syndicate.HistoryRow
	for _, monday := range mondaysBetween(start, today) {
		for _, name := range demoPlayers {
			if name == "Carol" && !monday.Before(carolStops) {
				continue
			}
			rows = append(rows, contribution(monday, name))
		}
	}
	rows = append(rows,
		historyRow(start.AddDate(0, 0, 5), "Bob", "15", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 6), "Bob", "42.50", ledger.EntryWinnings),
		historyRow(start.AddDate(0, 0, 19), "Alice", "20", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 33), "Dave", "10", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 34), "Dave", "65", ledger.EntryWinnings),
	)

	season, err := h.importScenario(ctx, "Mid Season", start, nil, rows)
	if err != nil {
		return ledger.Season{}, err
	}
	if err := h.importScenarioRota(ctx, season, start, 16); err != nil {
		return ledger.Season{}, err
	}

	live := []struct {
		player  string
		stake   int64
		outcome ledger.BetStatus
		winning string
	}{
		{"Alice", 10, ledger.BetWon, "36"},
		{"Bob", 12, ledger.BetLost, ""},
		{"Dave", 8, ledger.BetVoid, ""},
		{"Carol", 5, ledger.BetPending, ""},
	}
	for _, l := range live {
		pid, err := h.playerIn(ctx, season, l.player)
		if err != nil {
			return ledger.Season{}, err
		}
		bet, err := h.svc.PlaceBet(ctx, syndicate.BetInput{
			PlayerID:    pid,
			SeasonID:    season.ID,
			Stake:       decimal.NewFromInt(l.stake),
			Description: fmt.Sprintf("%s's pick", l.player),
			Date:        today,
			CreatedBy:   "scenario",
		})
		if err != nil {
			return ledger.Season{}, err
		}
		switch l.outcome {
		case ledger.BetWon:
			_, err = h.svc.SettleBetWon(ctx, bet.ID, decimal.RequireFromString(l.winning), today, "scenario")
		case ledger.BetLost:
			_, err = h.svc.SettleBetLost(ctx, bet.ID, today, "scenario")
		case ledger.BetVoid:
			_, err = h.svc.VoidBet(ctx, bet.ID, today, "scenario")
		}
		if err != nil {
			return ledger.Season{}, err
		}
	}
	return season, nil
}

// loadSeasonEnd: twenty weeks that ended yesterday. The season is frozen,
// so only payouts are booked live: each player with a positive entitlement
// is paid out in full.
func (h *Handler) loadSeasonEnd(ctx context.Context, today time.Time) (ledger.Season, error) {
	start := mondayWeeksBefore(today, 20)
	end := today.AddDate(0, 0, -1)

	var rows []syndicate.HistoryRow
	for _, monday := range mondaysBetween(start, end) {
		for _, name := range demoPlayers {
			rows = append(rows, contribution(monday, name))
		}
	}
	rows = append(rows,
		historyRow(start.AddDate(0, 0, 12), "Alice", "30", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 13), "Alice", "120", ledger.EntryWinnings),
		historyRow(start.AddDate(0, 0, 54), "Carol", "25", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 96), "Bob", "30", ledger.EntryBetPlaced),
		historyRow(start.AddDate(0, 0, 97), "Bob", "75", ledger.EntryWinnings),
	)

	season, err := h.importScenario(ctx, "Season End", start, &end, rows)
	if err != nil {
		return ledger.Season{}, err
	}

	for _, name := range demoPlayers {
		pid, err := h.playerIn(ctx, season, name)
		if err != nil {
			return ledger.Season{}, err
		}
		payout, err := h.svc.PlayerPayout(ctx, pid, season.ID, today)
		if err != nil {
			return ledger.Season{}, err
		}
		if !payout.IsPositive() {
			continue
		}
		if _, err := h.svc.RecordPayout(ctx, syndicate.CashMovement{
			PlayerID:    pid,
			SeasonID:    season.ID,
			Amount:      payout,
			Date:        today,
			Description: "End of season payout",
			CreatedBy:   "scenario",
		}); err != nil {
			return ledger.Season{}, err
		}
	}
	return season, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) importScenario(ctx context.Context, name string, start time.Time, end *time.Time, rows []syndicate.HistoryRow) (ledger.Season, error) {
	for i := range rows {
		rows[i].Line = i + 1
	}
	res, err := h.svc.ImportHistory(ctx, syndicate.HistoryImport{
		SeasonName: fmt.Sprintf("%s %s", name, uuid.NewString()[:8]),
		StartDate:  start,
		EndDate:    end,
		Activate:   true,
		Rows:       rows,
		CreatedBy:  "scenario",
	})
	if err != nil {
		return ledger.Season{}, err
	}
	return res.Season, nil
}

// importScenarioRota pairs players round-robin for the first n weeks.
func (h *Handler) importScenarioRota(ctx context.Context, season ledger.Season, start time.Time, n int) error {
	rows := make([]syndicate.RotaRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, syndicate.RotaRow{
			Number:    i + 1,
			StartDate: start.AddDate(0, 0, 7*i),
			Players: [2]string{
				demoPlayers[(2*i)%len(demoPlayers)],
				demoPlayers[(2*i+1)%len(demoPlayers)],
			},
		})
	}
	_, err := h.svc.ImportRota(ctx, season.ID, rows)
	return err
}

// playerIn finds the season member called name.
func (h *Handler) playerIn(ctx context.Context, season ledger.Season, name string) (ledger.PlayerID, error) {
	members, err := h.svc.ListMemberships(ctx, season.ID)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		p, err := h.svc.GetPlayer(ctx, m.PlayerID)
		if err != nil {
			return "", err
		}
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", &ledger.NotFoundError{Kind: "player", ID: name}
}

func contribution(day time.Time, player string) syndicate.HistoryRow {
	return historyRow(day, player, "5", ledger.EntryContribution)
}

func historyRow(day time.Time, player, amount string, typ ledger.EntryType) syndicate.HistoryRow {
	return syndicate.HistoryRow{
		Date:   day,
		Player: player,
		Amount: decimal.RequireFromString(amount),
		Type:   typ,
	}
}

func thisMonday(today time.Time) time.Time {
	back := (int(today.Weekday()) + 6) % 7
	return ledger.DateOf(today).AddDate(0, 0, -back)
}

func mondayWeeksBefore(today time.Time, weeks int) time.Time {
	return thisMonday(today).AddDate(0, 0, -7*weeks)
}

// mondaysBetween lists Mondays in [from, to]; from must be a Monday.
func mondaysBetween(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 7) {
		out = append(out, d)
	}
	return out
}
