/*
handlers.go - HTTP API handlers for the syndicate ledger

PURPOSE:
  Exposes syndicate.Service over REST. Handlers parse and validate the
  request, call exactly one service operation and serialize the result.
  No accounting happens here.

ENDPOINTS:
  Players:
    GET    /api/players                         List players
    POST   /api/players                         Create player
    GET    /api/players/{id}                    Get player
    PUT    /api/players/{id}/active             Activate/deactivate

  Seasons ({id} may be "active"):
    GET    /api/seasons                         List seasons
    POST   /api/seasons                         Create + activate season
    GET    /api/seasons/{id}                    Get season with derived state
    POST   /api/seasons/{id}/activate           Make the only active season
    PUT    /api/seasons/{id}/end-date           Set or clear end date
    GET    /api/seasons/{id}/members            List memberships
    POST   /api/seasons/{id}/members            Enroll player
    PUT    /api/seasons/{id}/members/{playerID}/active
    GET    /api/seasons/{id}/weeks              List weeks
    POST   /api/seasons/{id}/weeks              Create week
    GET    /api/seasons/{id}/totals             Season totals
    GET    /api/seasons/{id}/balance            Bank balance
    GET    /api/seasons/{id}/state              Active / frozen / inactive
    GET    /api/seasons/{id}/stats              Player performance table
    GET    /api/seasons/{id}/rota               Week covering today
    GET    /api/seasons/{id}/dashboard          Totals + stats + rota
    GET    /api/seasons/{id}/players/{playerID}/position
    GET    /api/seasons/{id}/players/{playerID}/payout
    POST   /api/seasons/{id}/import/calendar    CSV rota import

  Weeks:
    GET    /api/weeks/{id}/assignments          Duty players
    POST   /api/weeks/{id}/assignments          Assign one or two players

  Money:
    POST   /api/contributions                   Record contribution
    POST   /api/payouts                         Record payout
    GET    /api/bets                            List bets
    POST   /api/bets                            Place bet
    GET    /api/bets/{id}                       Get bet
    POST   /api/bets/{id}/won|lost|void         Settle bet
    PUT    /api/bets/{id}/screenshot            Attach bet slip reference
    GET    /api/ledger                          Ledger entries (filters)
    POST   /api/import/transactions             CSV history import

  Reads accept ?as_of=YYYY-MM-DD to evaluate as of another day.

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the ledger error
  taxonomy:
  - 400: validation errors, malformed input
  - 404: unknown player, season, week or bet
  - 409: season not writable, bet already settled, duplicate
  - 500: persistence and anything unexpected

SEE ALSO:
  - dto.go: request/response shapes
  - scenarios.go: demo data loaders
  - server.go: routes and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/importer"
	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/syndicate"
)

// maxUploadBytes caps CSV uploads.
const maxUploadBytes = 5 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc      *syndicate.Service
	importer *importer.Importer
	validate *validator.Validate
	log      log.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over svc.
func NewHandler(svc *syndicate.Service, logger log.FieldLogger) *Handler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Handler{
		svc:      svc,
		importer: importer.New(svc, logger),
		validate: validator.New(),
		log:      logger,
	}
}

// =============================================================================
// PLAYER ENDPOINTS
// =============================================================================

// ListPlayers returns all players.
// GET /api/players
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.ListPlayers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list players", err)
		return
	}
	dtos := make([]PlayerDTO, 0, len(players))
	for _, p := range players {
		dtos = append(dtos, toPlayerDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlayer creates an active player.
// POST /api/players
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePlayerRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePlayer(r.Context(), req.Name, req.Email)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create player", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlayerDTO(p))
}

// GET /api/players/{id}
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPlayer(r.Context(), ledger.PlayerID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get player", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlayerDTO(p))
}

// PUT /api/players/{id}/active
func (h *Handler) SetPlayerActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := ledger.PlayerID(chi.URLParam(r, "id"))
	if err := h.svc.SetPlayerActive(r.Context(), id, *req.Active); err != nil {
		h.writeServiceError(w, r, "Failed to update player", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}

// =============================================================================
// SEASON ENDPOINTS
// =============================================================================

// GET /api/seasons
func (h *Handler) ListSeasons(w http.ResponseWriter, r *http.Request) {
	today, ok := h.asOf(w, r)
	if !ok {
		return
	}
	seasons, err := h.svc.ListSeasons(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list seasons", err)
		return
	}
	dtos := make([]SeasonDTO, 0, len(seasons))
	for _, s := range seasons {
		dtos = append(dtos, toSeasonDTO(s, today))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSeason creates a season, activates it and enrolls the given players.
// POST /api/seasons
func (h *Handler) CreateSeason(w http.ResponseWriter, r *http.Request) {
	var req CreateSeasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := syndicate.SeasonInput{Name: req.Name}
	in.StartDate, _ = time.Parse(dateLayout, req.StartDate)
	if req.EndDate != "" {
		end, _ := time.Parse(dateLayout, req.EndDate)
		in.EndDate = &end
	}
	for _, id := range req.PlayerIDs {
		in.Players = append(in.Players, ledger.PlayerID(id))
	}

	season, err := h.svc.CreateSeason(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create season", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSeasonDTO(season, h.svc.Clock().Today()))
}

// GET /api/seasons/{id}
func (h *Handler) GetSeason(w http.ResponseWriter, r *http.Request) {
	today, ok := h.asOf(w, r)
	if !ok {
		return
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	writeJSON(w, http.StatusOK, toSeasonDTO(season, today))
}

// POST /api/seasons/{id}/activate
func (h *Handler) ActivateSeason(w http.ResponseWriter, r *http.Request) {
	id := ledger.SeasonID(chi.URLParam(r, "id"))
	if err := h.svc.ActivateSeason(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "Failed to activate season", err)
		return
	}
	season, err := h.svc.GetSeason(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	writeJSON(w, http.StatusOK, toSeasonDTO(season, h.svc.Clock().Today()))
}

// SetSeasonEndDate sets the end date, or clears it when end_date is empty.
// PUT /api/seasons/{id}/end-date
func (h *Handler) SetSeasonEndDate(w http.ResponseWriter, r *http.Request) {
	var req SetEndDateRequest
	if !h.decode(w, r, &req) {
		return
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}

	var end *time.Time
	if req.EndDate != "" {
		d, _ := time.Parse(dateLayout, req.EndDate)
		end = &d
	}
	if err := h.svc.SetSeasonEndDate(r.Context(), season.ID, end); err != nil {
		h.writeServiceError(w, r, "Failed to set end date", err)
		return
	}
	season.EndDate = end
	writeJSON(w, http.StatusOK, toSeasonDTO(season, h.svc.Clock().Today()))
}

// GET /api/seasons/{id}/members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	members, err := h.svc.ListMemberships(r.Context(), season.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list members", err)
		return
	}
	dtos := make([]MembershipDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMembershipDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/seasons/{id}/members
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	var joined time.Time
	if req.JoinedOn != "" {
		joined, _ = time.Parse(dateLayout, req.JoinedOn)
	}
	m, err := h.svc.AddPlayerToSeason(r.Context(), season.ID, ledger.PlayerID(req.PlayerID), joined)
	if err != nil {
		h.writeServiceError(w, r, "Failed to add member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipDTO(m))
}

// PUT /api/seasons/{id}/members/{playerID}/active
func (h *Handler) SetMemberActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	playerID := ledger.PlayerID(chi.URLParam(r, "playerID"))
	if err := h.svc.SetMembershipActive(r.Context(), season.ID, playerID, *req.Active); err != nil {
		h.writeServiceError(w, r, "Failed to update member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"season_id": season.ID, "player_id": playerID, "active": *req.Active})
}

// =============================================================================
// WEEK ENDPOINTS
// =============================================================================

// GET /api/seasons/{id}/weeks
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	weeks, err := h.svc.ListWeeks(r.Context(), season.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list weeks", err)
		return
	}
	dtos := make([]WeekDTO, 0, len(weeks))
	for _, wk := range weeks {
		dtos = append(dtos, toWeekDTO(wk))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/seasons/{id}/weeks
func (h *Handler) CreateWeek(w http.ResponseWriter, r *http.Request) {
	var req CreateWeekRequest
	if !h.decode(w, r, &req) {
		return
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	in := syndicate.WeekInput{SeasonID: season.ID, Number: req.WeekNumber}
	in.StartDate, _ = time.Parse(dateLayout, req.StartDate)
	if req.EndDate != "" {
		in.EndDate, _ = time.Parse(dateLayout, req.EndDate)
	}
	week, err := h.svc.CreateWeek(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create week", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWeekDTO(week))
}

// GET /api/weeks/{id}/assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.svc.ListAssignments(r.Context(), ledger.WeekID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/weeks/{id}/assignments
func (h *Handler) AssignWeek(w http.ResponseWriter, r *http.Request) {
	var req AssignWeekRequest
	if !h.decode(w, r, &req) {
		return
	}
	players := make([]ledger.PlayerID, 0, len(req.PlayerIDs))
	for _, id := range req.PlayerIDs {
		players = append(players, ledger.PlayerID(id))
	}
	assignments, err := h.svc.AssignWeek(r.Context(), ledger.WeekID(chi.URLParam(r, "id")), players...)
	if err != nil {
		h.writeServiceError(w, r, "Failed to assign week", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		dtos = append(dtos, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// =============================================================================
// MONEY ENDPOINTS
// =============================================================================

// POST /api/contributions
func (h *Handler) RecordContribution(w http.ResponseWriter, r *http.Request) {
	h.recordCash(w, r, h.svc.RecordContribution)
}

// POST /api/payouts
func (h *Handler) RecordPayout(w http.ResponseWriter, r *http.Request) {
	h.recordCash(w, r, h.svc.RecordPayout)
}

func (h *Handler) recordCash(w http.ResponseWriter, r *http.Request, record func(context.Context, syndicate.CashMovement) (ledger.Entry, error)) {
	var req CashRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := record(r.Context(), syndicate.CashMovement{
		PlayerID:    ledger.PlayerID(req.PlayerID),
		SeasonID:    ledger.SeasonID(req.SeasonID),
		WeekID:      ledger.WeekID(req.WeekID),
		Amount:      req.Amount,
		Date:        h.dateOrToday(req.Date),
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to record entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// GET /api/bets?season_id=&player_id=&status=&limit=
func (h *Handler) ListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	bets, err := h.svc.ListBets(r.Context(), ledger.BetFilter{
		SeasonID: ledger.SeasonID(q.Get("season_id")),
		PlayerID: ledger.PlayerID(q.Get("player_id")),
		Status:   ledger.BetStatus(q.Get("status")),
		Limit:    limit,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to list bets", err)
		return
	}
	dtos := make([]BetDTO, 0, len(bets))
	for _, b := range bets {
		dtos = append(dtos, toBetDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/bets
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if !h.decode(w, r, &req) {
		return
	}
	bet, err := h.svc.PlaceBet(r.Context(), syndicate.BetInput{
		PlayerID:    ledger.PlayerID(req.PlayerID),
		SeasonID:    ledger.SeasonID(req.SeasonID),
		WeekID:      ledger.WeekID(req.WeekID),
		Stake:       req.Stake,
		Description: req.Description,
		Odds:        req.Odds,
		Date:        h.dateOrToday(req.Date),
		Notes:       req.Notes,
		Screenshot:  req.Screenshot,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetDTO(bet))
}

// GET /api/bets/{id}
func (h *Handler) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := h.svc.GetBet(r.Context(), ledger.BetID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, toBetDTO(bet))
}

// SettleBet handles won, lost and void; the outcome comes from the route.
// POST /api/bets/{id}/{outcome}
func (h *Handler) SettleBet(outcome ledger.BetStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettleRequest
		if !h.decode(w, r, &req) {
			return
		}
		id := ledger.BetID(chi.URLParam(r, "id"))
		resultDate := h.dateOrToday(req.ResultDate)

		var (
			bet ledger.Bet
			err error
		)
		switch outcome {
		case ledger.BetWon:
			bet, err = h.svc.SettleBetWon(r.Context(), id, req.Winnings, resultDate, req.CreatedBy)
		case ledger.BetLost:
			bet, err = h.svc.SettleBetLost(r.Context(), id, resultDate, req.CreatedBy)
		case ledger.BetVoid:
			bet, err = h.svc.VoidBet(r.Context(), id, resultDate, req.CreatedBy)
		default:
			err = &ledger.ValidationError{Field: "outcome", Message: "unknown outcome " + string(outcome)}
		}
		if err != nil {
			h.writeServiceError(w, r, "Failed to settle bet", err)
			return
		}
		writeJSON(w, http.StatusOK, toBetDTO(bet))
	}
}

// PUT /api/bets/{id}/screenshot
func (h *Handler) AttachScreenshot(w http.ResponseWriter, r *http.Request) {
	var req ScreenshotRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := ledger.BetID(chi.URLParam(r, "id"))
	if err := h.svc.AttachScreenshot(r.Context(), id, req.Screenshot); err != nil {
		h.writeServiceError(w, r, "Failed to attach screenshot", err)
		return
	}
	bet, err := h.svc.GetBet(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, toBetDTO(bet))
}

// LedgerEntries lists entries newest first.
// GET /api/ledger?season_id=&player_id=&week_id=&bet_id=&type=a,b&from=&to=&limit=
func (h *Handler) LedgerEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.Filter{
		SeasonID: ledger.SeasonID(q.Get("season_id")),
		PlayerID: ledger.PlayerID(q.Get("player_id")),
		WeekID:   ledger.WeekID(q.Get("week_id")),
		BetID:    ledger.BetID(q.Get("bet_id")),
	}
	if v := q.Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			filter.Types = append(filter.Types, ledger.EntryType(strings.TrimSpace(t)))
		}
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(name); v != "" {
			d, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s date (use YYYY-MM-DD)", name), err)
				return
			}
			*dst = d
		}
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.LedgerEntries(r.Context(), filter, limit)
	if err != nil {
		h.writeServiceError(w, r, "Failed to list ledger entries", err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AGGREGATION ENDPOINTS
// =============================================================================

// GET /api/seasons/{id}/totals
func (h *Handler) SeasonTotals(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	totals, err := h.svc.SeasonTotals(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute totals", err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

// GET /api/seasons/{id}/balance
func (h *Handler) BankBalance(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	balance, err := h.svc.BankBalance(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"season_id":    string(season.ID),
		"as_of":        formatDate(today),
		"bank_balance": money(balance),
	})
}

// GET /api/seasons/{id}/state
func (h *Handler) SeasonState(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	state, err := h.svc.SeasonState(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to resolve state", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"season_id": string(season.ID),
		"as_of":     formatDate(today),
		"state":     string(state),
	})
}

// GET /api/seasons/{id}/stats
func (h *Handler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.PlayerStats(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute stats", err)
		return
	}
	dtos := make([]PositionDTO, 0, len(stats))
	for _, s := range stats {
		dto := toPositionDTO(s.PlayerPosition)
		dto.PlayerName = s.Player.Name
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CurrentRota returns the week covering as_of, or null.
// GET /api/seasons/{id}/rota
func (h *Handler) CurrentRota(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	rota, err := h.svc.CurrentRota(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get rota", err)
		return
	}
	writeJSON(w, http.StatusOK, toRotaDTO(rota))
}

// GET /api/seasons/{id}/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Dashboard(r.Context(), season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d, today))
}

// GET /api/seasons/{id}/players/{playerID}/position
func (h *Handler) PlayerPosition(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	playerID := ledger.PlayerID(chi.URLParam(r, "playerID"))
	pos, err := h.svc.PlayerPosition(r.Context(), playerID, season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute position", err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionDTO(pos))
}

// GET /api/seasons/{id}/players/{playerID}/payout
func (h *Handler) PlayerPayout(w http.ResponseWriter, r *http.Request) {
	season, today, ok := h.seasonAsOf(w, r)
	if !ok {
		return
	}
	playerID := ledger.PlayerID(chi.URLParam(r, "playerID"))
	payout, err := h.svc.PlayerPayout(r.Context(), playerID, season.ID, today)
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute payout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"player_id": string(playerID),
		"season_id": string(season.ID),
		"as_of":     formatDate(today),
		"payout":    money(payout),
	})
}

// =============================================================================
// IMPORT ENDPOINTS
// =============================================================================

// ImportTransactions books a CSV export. The body is either raw text/csv or
// a multipart form with a "file" field.
// POST /api/import/transactions?season=&start_date=&end_date=&activate=true
func (h *Handler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := importer.TransactionOptions{SeasonName: q.Get("season")}
	if opts.SeasonName == "" {
		writeError(w, http.StatusBadRequest, "season is required", nil)
		return
	}
	start, err := time.Parse(dateLayout, q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	opts.StartDate = start
	if v := q.Get("end_date"); v != "" {
		end, err := time.Parse(dateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		opts.EndDate = &end
	}
	opts.Activate, _ = strconv.ParseBool(q.Get("activate"))

	body, ok := h.csvBody(w, r)
	if !ok {
		return
	}
	defer body.Close()

	res, err := h.importer.ImportTransactions(r.Context(), body, opts)
	if err != nil {
		h.writeServiceError(w, r, "Failed to import transactions", err)
		return
	}
	counts := make(map[string]int, len(res.Counts))
	for t, n := range res.Counts {
		counts[string(t)] = n
	}
	writeJSON(w, http.StatusCreated, HistoryImportDTO{
		Season:         toSeasonDTO(res.Season, h.svc.Clock().Today()),
		Players:        res.Players,
		PlayersCreated: res.PlayersCreated,
		BetsCreated:    res.BetsCreated,
		Counts:         counts,
	})
}

// POST /api/seasons/{id}/import/calendar
func (h *Handler) ImportCalendar(w http.ResponseWriter, r *http.Request) {
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return
	}
	body, ok := h.csvBody(w, r)
	if !ok {
		return
	}
	defer body.Close()

	res, err := h.importer.ImportCalendar(r.Context(), body, season.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to import calendar", err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusCreated, RotaImportDTO{
		Weeks:              res.Weeks,
		WeeksCreated:       res.WeeksCreated,
		AssignmentsCreated: res.AssignmentsCreated,
		Warnings:           warnings,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps the ledger error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case ledger.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error(message)
	}
	writeError(w, status, message, err)
}

// decode reads a JSON body into dst and validates its tags. It writes a 400
// and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// asOf returns ?as_of or the service clock's today.
func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return h.svc.Clock().Today(), true
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return d, true
}

// season loads the {id} season; "active" means the currently active one.
func (h *Handler) season(r *http.Request) (ledger.Season, error) {
	id := chi.URLParam(r, "id")
	if id == "active" {
		return h.svc.ActiveSeason(r.Context())
	}
	return h.svc.GetSeason(r.Context(), ledger.SeasonID(id))
}

func (h *Handler) seasonAsOf(w http.ResponseWriter, r *http.Request) (ledger.Season, time.Time, bool) {
	today, ok := h.asOf(w, r)
	if !ok {
		return ledger.Season{}, time.Time{}, false
	}
	season, err := h.season(r)
	if err != nil {
		h.writeServiceError(w, r, "Failed to get season", err)
		return ledger.Season{}, time.Time{}, false
	}
	return season, today, true
}

// dateOrToday parses an already validated date, defaulting to today.
func (h *Handler) dateOrToday(v string) time.Time {
	if d, err := time.Parse(dateLayout, v); err == nil {
		return d
	}
	return h.svc.Clock().Today()
}

func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return 0, false
	}
	return n, true
}

func (h *Handler) csvBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file upload", err)
			return nil, false
		}
		return file, true
	}
	return r.Body, true
}
