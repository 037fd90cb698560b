package syndicate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// HISTORY BACKFILL
// =============================================================================
// Historical rows are booked without season-state guards: they describe money
// that already moved, possibly in a season that has since ended. Everything
// else about an import (sign convention, references, atomicity) is the same
// as for interactive actions.

// HistoryRow is one parsed transaction line. Amount is a positive magnitude.
type HistoryRow struct {
	Line   int
	Date   time.Time
	Player string
	Amount decimal.Decimal
	Type   ledger.EntryType
}

type HistoryImport struct {
	SeasonName string
	StartDate  time.Time
	EndDate    *time.Time
	Activate   bool
	Rows       []HistoryRow
	CreatedBy  string
}

type HistoryResult struct {
	Season         ledger.Season
	Players        int
	PlayersCreated int
	BetsCreated    int
	Counts         map[ledger.EntryType]int
}

// ImportHistory gets or creates the season and players, enrolls every player
// seen, and books all rows. The whole import is one transaction.
func (s *Service) ImportHistory(ctx context.Context, in HistoryImport) (HistoryResult, error) {
	if in.SeasonName == "" {
		return HistoryResult{}, &ledger.ValidationError{Field: "season_name", Message: "required"}
	}
	if in.StartDate.IsZero() {
		return HistoryResult{}, &ledger.ValidationError{Field: "start_date", Message: "required"}
	}
	if in.CreatedBy == "" {
		in.CreatedBy = "import"
	}

	names := make(map[string]bool)
	for _, row := range in.Rows {
		if row.Player == "" {
			return HistoryResult{}, &ledger.ValidationError{Field: fmt.Sprintf("line %d", row.Line), Message: "player required"}
		}
		if !row.Amount.IsPositive() {
			return HistoryResult{}, &ledger.ValidationError{Field: fmt.Sprintf("line %d", row.Line), Message: "amount must be positive"}
		}
		if row.Type == ledger.EntryBetVoid || !row.Type.Valid() {
			return HistoryResult{}, &ledger.ValidationError{Field: fmt.Sprintf("line %d", row.Line), Message: fmt.Sprintf("cannot import %q rows", row.Type)}
		}
		names[row.Player] = true
	}

	rows := append([]HistoryRow{}, in.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	result := HistoryResult{Counts: make(map[ledger.EntryType]int)}
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		season, err := importSeason(ctx, tx, in)
		if err != nil {
			return err
		}
		result.Season = season

		players, created, err := importPlayers(ctx, tx, names)
		if err != nil {
			return err
		}
		result.Players = len(players)
		result.PlayersCreated = created

		if err := enroll(ctx, tx, season, players); err != nil {
			return err
		}

		entries := make([]ledger.Entry, 0, len(rows))
		for _, row := range rows {
			player := players[row.Player]
			posting := ledger.Posting{
				Type:      row.Type,
				PlayerID:  player.ID,
				SeasonID:  season.ID,
				Date:      row.Date,
				Magnitude: row.Amount,
				CreatedBy: in.CreatedBy,
			}

			if row.Type == ledger.EntryBetPlaced {
				day := ledger.DateOf(row.Date)
				bet, err := tx.CreateBet(ctx, ledger.Bet{
					ID:          ledger.BetID(uuid.NewString()),
					SeasonID:    season.ID,
					PlayerID:    player.ID,
					Stake:       row.Amount,
					Description: "Bet placed on " + day.Format("2006-01-02"),
					PlacedOn:    day,
					Status:      ledger.BetPending,
					Notes:       "Imported from CSV",
					CreatedAt:   time.Now().UTC(),
				})
				if err != nil {
					return err
				}
				posting.BetID = bet.ID
				result.BetsCreated++
			}

			entry, err := newEntry(posting)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			result.Counts[row.Type]++
		}
		return tx.Append(ctx, entries)
	})
	if err != nil {
		s.log.WithError(err).WithField("season", in.SeasonName).Error("history import rolled back")
		return HistoryResult{}, err
	}

	s.log.WithFields(log.Fields{
		"season_id":       result.Season.ID,
		"players":         result.Players,
		"players_created": result.PlayersCreated,
		"entries":         len(rows),
	}).Info("history imported")
	return result, nil
}

func importSeason(ctx context.Context, tx ledger.Store, in HistoryImport) (ledger.Season, error) {
	season, err := tx.FindSeasonByName(ctx, in.SeasonName)
	if err != nil && !ledger.IsNotFound(err) {
		return ledger.Season{}, err
	}
	if ledger.IsNotFound(err) {
		if in.EndDate != nil && ledger.DateOf(*in.EndDate).Before(ledger.DateOf(in.StartDate)) {
			return ledger.Season{}, &ledger.ValidationError{Field: "end_date", Message: "before start date"}
		}
		season, err = tx.CreateSeason(ctx, ledger.Season{
			ID:        ledger.SeasonID(uuid.NewString()),
			Name:      in.SeasonName,
			StartDate: ledger.DateOf(in.StartDate),
			EndDate:   in.EndDate,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return ledger.Season{}, err
		}
	}
	if in.Activate && !season.Active {
		if err := tx.ActivateSeason(ctx, season.ID); err != nil {
			return ledger.Season{}, err
		}
		season.Active = true
	}
	return season, nil
}

func importPlayers(ctx context.Context, tx ledger.Store, names map[string]bool) (map[string]ledger.Player, int, error) {
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	players := make(map[string]ledger.Player, len(sorted))
	created := 0
	for _, name := range sorted {
		p, err := tx.FindPlayerByName(ctx, name)
		if ledger.IsNotFound(err) {
			p, err = tx.CreatePlayer(ctx, ledger.Player{
				ID:        ledger.PlayerID(uuid.NewString()),
				Name:      name,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			})
			created++
		}
		if err != nil {
			return nil, 0, err
		}
		players[name] = p
	}
	return players, created, nil
}

func enroll(ctx context.Context, tx ledger.Store, season ledger.Season, players map[string]ledger.Player) error {
	existing, err := tx.ListMemberships(ctx, season.ID)
	if err != nil {
		return err
	}
	enrolled := make(map[ledger.PlayerID]bool, len(existing))
	for _, m := range existing {
		enrolled[m.PlayerID] = true
	}

	ids := make([]ledger.PlayerID, 0, len(players))
	for _, p := range players {
		if !enrolled[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, err := tx.AddMembership(ctx, ledger.Membership{
			ID:       ledger.MembershipID(uuid.NewString()),
			PlayerID: id,
			SeasonID: season.ID,
			JoinedOn: season.StartDate,
			Active:   true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ROTA IMPORT
// =============================================================================

// RotaRow is one calendar line: week Number starting on StartDate with two
// duty players named in order.
type RotaRow struct {
	Number    int
	StartDate time.Time
	Players   [2]string
}

type RotaResult struct {
	Weeks              int
	WeeksCreated       int
	AssignmentsCreated int
	Warnings           []string
}

// ImportRota creates missing weeks (end = start + 6 days) and assigns players
// to weeks that have no assignments yet. Unknown players produce a warning
// and leave that week unassigned.
func (s *Service) ImportRota(ctx context.Context, seasonID ledger.SeasonID, rows []RotaRow) (RotaResult, error) {
	for _, row := range rows {
		if row.Number <= 0 {
			return RotaResult{}, &ledger.ValidationError{Field: "week_number", Message: "must be positive"}
		}
		if row.StartDate.IsZero() {
			return RotaResult{}, &ledger.ValidationError{Field: fmt.Sprintf("week %d", row.Number), Message: "start date required"}
		}
	}

	var result RotaResult
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetSeason(ctx, seasonID); err != nil {
			return err
		}

		for _, row := range rows {
			week, err := tx.FindWeek(ctx, seasonID, row.Number)
			if ledger.IsNotFound(err) {
				start := ledger.DateOf(row.StartDate)
				week, err = tx.CreateWeek(ctx, ledger.Week{
					ID:        ledger.WeekID(uuid.NewString()),
					SeasonID:  seasonID,
					Number:    row.Number,
					StartDate: start,
					EndDate:   start.AddDate(0, 0, 6),
					CreatedAt: time.Now().UTC(),
				})
				if err == nil {
					result.WeeksCreated++
				}
			}
			if err != nil {
				return err
			}

			duty, warning, err := resolveDuty(ctx, tx, row)
			if err != nil {
				return err
			}
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
				continue
			}

			existing, err := tx.ListAssignments(ctx, week.ID)
			if err != nil {
				return err
			}
			if len(existing) == 0 {
				for i, p := range duty {
					if _, err := tx.AssignWeek(ctx, ledger.WeekAssignment{
						ID:       ledger.AssignmentID(uuid.NewString()),
						WeekID:   week.ID,
						PlayerID: p.ID,
						Order:    i + 1,
					}); err != nil {
						return err
					}
					result.AssignmentsCreated++
				}
			}
			result.Weeks++
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("season_id", seasonID).Error("rota import rolled back")
		return RotaResult{}, err
	}

	entry := s.log.WithFields(log.Fields{
		"season_id":   seasonID,
		"weeks":       result.Weeks,
		"assignments": result.AssignmentsCreated,
	})
	for _, w := range result.Warnings {
		entry.Warn(w)
	}
	entry.Info("rota imported")
	return result, nil
}

func resolveDuty(ctx context.Context, tx ledger.Store, row RotaRow) ([]ledger.Player, string, error) {
	duty := make([]ledger.Player, 0, 2)
	for _, name := range row.Players {
		p, err := tx.FindPlayerByName(ctx, name)
		if ledger.IsNotFound(err) {
			return nil, fmt.Sprintf("player %q not found for week %d", name, row.Number), nil
		}
		if err != nil {
			return nil, "", err
		}
		duty = append(duty, p)
	}
	if duty[0].ID == duty[1].ID {
		return nil, fmt.Sprintf("player %q assigned twice in week %d", duty[0].Name, row.Number), nil
	}
	return duty, "", nil
}
