/*
dto.go - JSON request and response shapes for the HTTP API

NAMING CONVENTION:
  - *DTO:     response types returned to clients
  - *Request: request body types from clients

FORMATS:
  Dates are "YYYY-MM-DD". Money is a string with two decimal places in
  responses; requests accept either a JSON number or a string.

VALIDATION:
  Request types carry validator tags checked by Handler.decode before the
  service sees them. Business rules (positive amounts, season state) are
  still enforced by the service.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/syndicate"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUESTS
// =============================================================================

type CreatePlayerRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type CreateSeasonRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	StartDate string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	PlayerIDs []string `json:"player_ids" validate:"dive,required"`
}

// SetEndDateRequest clears the end date when EndDate is empty.
type SetEndDateRequest struct {
	EndDate string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type AddMemberRequest struct {
	PlayerID string `json:"player_id" validate:"required"`
	JoinedOn string `json:"joined_on" validate:"omitempty,datetime=2006-01-02"`
}

type CreateWeekRequest struct {
	WeekNumber int    `json:"week_number" validate:"required,gt=0"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type AssignWeekRequest struct {
	PlayerIDs []string `json:"player_ids" validate:"required,min=1,max=2,dive,required"`
}

type CashRequest struct {
	PlayerID    string          `json:"player_id" validate:"required"`
	SeasonID    string          `json:"season_id"`
	WeekID      string          `json:"week_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string          `json:"description" validate:"max=500"`
	CreatedBy   string          `json:"created_by"`
}

type PlaceBetRequest struct {
	PlayerID    string          `json:"player_id" validate:"required"`
	SeasonID    string          `json:"season_id"`
	WeekID      string          `json:"week_id"`
	Stake       decimal.Decimal `json:"stake"`
	Description string          `json:"description" validate:"required,max=500"`
	Odds        string          `json:"odds" validate:"max=50"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes       string          `json:"notes"`
	Screenshot  string          `json:"screenshot"`
	CreatedBy   string          `json:"created_by"`
}

// SettleRequest is shared by won, lost and void. Winnings is only read for won.
type SettleRequest struct {
	Winnings   decimal.Decimal `json:"winnings"`
	ResultDate string          `json:"result_date" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy  string          `json:"created_by"`
}

type ScreenshotRequest struct {
	Screenshot string `json:"screenshot" validate:"required"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type PlayerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

type SeasonDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Active    bool   `json:"active"`
	State     string `json:"state,omitempty"`
}

type MembershipDTO struct {
	ID       string `json:"id"`
	PlayerID string `json:"player_id"`
	SeasonID string `json:"season_id"`
	JoinedOn string `json:"joined_on"`
	Active   bool   `json:"active"`
}

type WeekDTO struct {
	ID         string `json:"id"`
	SeasonID   string `json:"season_id"`
	WeekNumber int    `json:"week_number"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

type AssignmentDTO struct {
	ID       string `json:"id"`
	WeekID   string `json:"week_id"`
	PlayerID string `json:"player_id"`
	Order    int    `json:"order"`
}

type BetDTO struct {
	ID          string `json:"id"`
	SeasonID    string `json:"season_id"`
	WeekID      string `json:"week_id,omitempty"`
	PlayerID    string `json:"player_id"`
	Stake       string `json:"stake"`
	Description string `json:"description"`
	Odds        string `json:"odds,omitempty"`
	PlacedOn    string `json:"placed_on"`
	Status      string `json:"status"`
	ResultDate  string `json:"result_date,omitempty"`
	Winnings    string `json:"winnings,omitempty"`
	Screenshot  string `json:"screenshot,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type EntryDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Type        string `json:"entry_type"`
	PlayerID    string `json:"player_id"`
	SeasonID    string `json:"season_id"`
	WeekID      string `json:"week_id,omitempty"`
	BetID       string `json:"bet_id,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type TotalsDTO struct {
	SeasonID                   string `json:"season_id"`
	AsOf                       string `json:"as_of"`
	State                      string `json:"state"`
	BankBalance                string `json:"bank_balance"`
	TotalContributions         string `json:"total_contributions"`
	TotalBetsPlaced            string `json:"total_bets_placed"`
	TotalVoided                string `json:"total_voided"`
	TotalWinnings              string `json:"total_winnings"`
	TotalPayouts               string `json:"total_payouts"`
	ProfitLoss                 string `json:"profit_loss"`
	ProfitPercentage           string `json:"profit_percentage"`
	ActivePlayers              int    `json:"active_players"`
	SharePerPlayer             string `json:"share_per_player"`
	BetAmountPerPlayer         string `json:"bet_amount_per_player"`
	MondaysElapsed             int    `json:"mondays_elapsed"`
	WeeksElapsed               int    `json:"weeks_elapsed"`
	ExpectedContribution       string `json:"expected_contribution"`
	ExpectedContributionsTotal string `json:"expected_contributions_total"`
	BudgetReleased             string `json:"budget_released"`
	BetBudget                  string `json:"bet_budget"`
}

type PositionDTO struct {
	PlayerID             string `json:"player_id"`
	PlayerName           string `json:"player_name,omitempty"`
	SeasonID             string `json:"season_id"`
	AsOf                 string `json:"as_of"`
	NetPosition          string `json:"net_position"`
	Contributions        string `json:"contributions"`
	Payouts              string `json:"payouts"`
	Staked               string `json:"staked"`
	Voided               string `json:"voided"`
	Winnings             string `json:"winnings"`
	ProfitLoss           string `json:"profit_loss"`
	ExpectedContribution string `json:"expected_contribution"`
	Owes                 string `json:"owes"`
	BetBudget            string `json:"bet_budget"`
	Payout               string `json:"payout"`
}

type RotaDTO struct {
	Week    WeekDTO     `json:"week"`
	Players []PlayerDTO `json:"players"`
}

type DashboardDTO struct {
	Season SeasonDTO     `json:"season"`
	Totals TotalsDTO     `json:"totals"`
	Stats  []PositionDTO `json:"stats"`
	Rota   *RotaDTO      `json:"rota"`
}

type HistoryImportDTO struct {
	Season         SeasonDTO      `json:"season"`
	Players        int            `json:"players"`
	PlayersCreated int            `json:"players_created"`
	BetsCreated    int            `json:"bets_created"`
	Counts         map[string]int `json:"counts"`
}

type RotaImportDTO struct {
	Weeks              int      `json:"weeks"`
	WeeksCreated       int      `json:"weeks_created"`
	AssignmentsCreated int      `json:"assignments_created"`
	Warnings           []string `json:"warnings"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func toPlayerDTO(p ledger.Player) PlayerDTO {
	return PlayerDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Email:     p.Email,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toSeasonDTO(s ledger.Season, today time.Time) SeasonDTO {
	dto := SeasonDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		StartDate: formatDate(s.StartDate),
		Active:    s.Active,
		State:     string(ledger.ResolveState(s, today)),
	}
	if s.EndDate != nil {
		dto.EndDate = formatDate(*s.EndDate)
	}
	return dto
}

func toMembershipDTO(m ledger.Membership) MembershipDTO {
	return MembershipDTO{
		ID:       string(m.ID),
		PlayerID: string(m.PlayerID),
		SeasonID: string(m.SeasonID),
		JoinedOn: formatDate(m.JoinedOn),
		Active:   m.Active,
	}
}

func toWeekDTO(w ledger.Week) WeekDTO {
	return WeekDTO{
		ID:         string(w.ID),
		SeasonID:   string(w.SeasonID),
		WeekNumber: w.Number,
		StartDate:  formatDate(w.StartDate),
		EndDate:    formatDate(w.EndDate),
	}
}

func toAssignmentDTO(a ledger.WeekAssignment) AssignmentDTO {
	return AssignmentDTO{
		ID:       string(a.ID),
		WeekID:   string(a.WeekID),
		PlayerID: string(a.PlayerID),
		Order:    a.Order,
	}
}

func toBetDTO(b ledger.Bet) BetDTO {
	dto := BetDTO{
		ID:          string(b.ID),
		SeasonID:    string(b.SeasonID),
		WeekID:      string(b.WeekID),
		PlayerID:    string(b.PlayerID),
		Stake:       money(b.Stake),
		Description: b.Description,
		Odds:        b.Odds,
		PlacedOn:    formatDate(b.PlacedOn),
		Status:      string(b.Status),
		Screenshot:  b.Screenshot,
		Notes:       b.Notes,
	}
	if b.ResultDate != nil {
		dto.ResultDate = formatDate(*b.ResultDate)
	}
	if b.Winnings.Valid {
		dto.Winnings = money(b.Winnings.Decimal)
	}
	return dto
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		Date:        formatDate(e.Date),
		Type:        string(e.Type),
		PlayerID:    string(e.PlayerID),
		SeasonID:    string(e.SeasonID),
		WeekID:      string(e.WeekID),
		BetID:       string(e.BetID),
		Amount:      money(e.Amount),
		Description: e.Description,
		CreatedBy:   e.CreatedBy,
	}
}

func toTotalsDTO(t syndicate.SeasonTotals) TotalsDTO {
	return TotalsDTO{
		SeasonID:                   string(t.SeasonID),
		AsOf:                       formatDate(t.AsOf),
		State:                      string(t.State),
		BankBalance:                money(t.BankBalance),
		TotalContributions:         money(t.TotalContributions),
		TotalBetsPlaced:            money(t.TotalBetsPlaced),
		TotalVoided:                money(t.TotalVoided),
		TotalWinnings:              money(t.TotalWinnings),
		TotalPayouts:               money(t.TotalPayouts),
		ProfitLoss:                 money(t.ProfitLoss),
		ProfitPercentage:           money(t.ProfitPercentage),
		ActivePlayers:              t.ActivePlayers,
		SharePerPlayer:             money(t.SharePerPlayer),
		BetAmountPerPlayer:         money(t.BetAmountPerPlayer),
		MondaysElapsed:             t.MondaysElapsed,
		WeeksElapsed:               t.WeeksElapsed,
		ExpectedContribution:       money(t.ExpectedContribution),
		ExpectedContributionsTotal: money(t.ExpectedContributionsTotal),
		BudgetReleased:             money(t.BudgetReleased),
		BetBudget:                  money(t.BetBudget),
	}
}

func toPositionDTO(p syndicate.PlayerPosition) PositionDTO {
	return PositionDTO{
		PlayerID:             string(p.PlayerID),
		SeasonID:             string(p.SeasonID),
		AsOf:                 formatDate(p.AsOf),
		NetPosition:          money(p.NetPosition),
		Contributions:        money(p.Contributions),
		Payouts:              money(p.Payouts),
		Staked:               money(p.Staked),
		Voided:               money(p.Voided),
		Winnings:             money(p.Winnings),
		ProfitLoss:           money(p.ProfitLoss),
		ExpectedContribution: money(p.ExpectedContribution),
		Owes:                 money(p.Owes),
		BetBudget:            money(p.BetBudget),
		Payout:               money(p.Payout),
	}
}

func toRotaDTO(r *syndicate.Rota) *RotaDTO {
	if r == nil {
		return nil
	}
	dto := &RotaDTO{Week: toWeekDTO(r.Week), Players: make([]PlayerDTO, 0, len(r.Players))}
	for _, p := range r.Players {
		dto.Players = append(dto.Players, toPlayerDTO(p))
	}
	return dto
}

func toDashboardDTO(d syndicate.Dashboard, today time.Time) DashboardDTO {
	dto := DashboardDTO{
		Season: toSeasonDTO(d.Season, today),
		Totals: toTotalsDTO(d.Totals),
		Stats:  make([]PositionDTO, 0, len(d.Stats)),
		Rota:   toRotaDTO(d.Rota),
	}
	for _, s := range d.Stats {
		p := toPositionDTO(s.PlayerPosition)
		p.PlayerName = s.Player.Name
		dto.Stats = append(dto.Stats, p)
	}
	return dto
}
