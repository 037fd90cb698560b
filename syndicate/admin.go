package syndicate

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// PLAYERS
// =============================================================================

func (s *Service) CreatePlayer(ctx context.Context, name, email string) (ledger.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.Player{}, &ledger.ValidationError{Field: "name", Message: "required"}
	}
	p, err := s.store.CreatePlayer(ctx, ledger.Player{
		ID:        ledger.PlayerID(uuid.NewString()),
		Name:      name,
		Email:     strings.TrimSpace(email),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return ledger.Player{}, err
	}
	s.log.WithFields(log.Fields{"player_id": p.ID, "name": p.Name}).Info("player created")
	return p, nil
}

func (s *Service) SetPlayerActive(ctx context.Context, id ledger.PlayerID, active bool) error {
	return s.store.SetPlayerActive(ctx, id, active)
}

func (s *Service) GetPlayer(ctx context.Context, id ledger.PlayerID) (ledger.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

func (s *Service) ListPlayers(ctx context.Context) ([]ledger.Player, error) {
	return s.store.ListPlayers(ctx)
}

// =============================================================================
// SEASONS
// =============================================================================

type SeasonInput struct {
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Players   []ledger.PlayerID
}

// CreateSeason creates the season, makes it the only active season and
// enrolls Players, all in one transaction.
func (s *Service) CreateSeason(ctx context.Context, in SeasonInput) (ledger.Season, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ledger.Season{}, &ledger.ValidationError{Field: "name", Message: "required"}
	}
	if in.StartDate.IsZero() {
		return ledger.Season{}, &ledger.ValidationError{Field: "start_date", Message: "required"}
	}
	if in.EndDate != nil && ledger.DateOf(*in.EndDate).Before(ledger.DateOf(in.StartDate)) {
		return ledger.Season{}, &ledger.ValidationError{Field: "end_date", Message: "before start date"}
	}

	var season ledger.Season
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		var err error
		season, err = tx.CreateSeason(ctx, ledger.Season{
			ID:        ledger.SeasonID(uuid.NewString()),
			Name:      in.Name,
			StartDate: ledger.DateOf(in.StartDate),
			EndDate:   in.EndDate,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := tx.ActivateSeason(ctx, season.ID); err != nil {
			return err
		}
		season.Active = true

		for _, pid := range in.Players {
			if _, err := tx.AddMembership(ctx, ledger.Membership{
				ID:       ledger.MembershipID(uuid.NewString()),
				PlayerID: pid,
				SeasonID: season.ID,
				JoinedOn: season.StartDate,
				Active:   true,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ledger.Season{}, err
	}

	s.log.WithFields(log.Fields{
		"season_id": season.ID,
		"name":      season.Name,
		"players":   len(in.Players),
	}).Info("season created and activated")
	return season, nil
}

// ActivateSeason makes id the only active season.
func (s *Service) ActivateSeason(ctx context.Context, id ledger.SeasonID) error {
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		return tx.ActivateSeason(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.WithField("season_id", id).Info("season activated")
	return nil
}

// SetSeasonEndDate sets the end date, or clears it when end is nil. A
// frozen season becomes active again once its end date is cleared or moved
// past today.
func (s *Service) SetSeasonEndDate(ctx context.Context, id ledger.SeasonID, end *time.Time) error {
	return s.store.WithTx(ctx, func(tx ledger.Store) error {
		season, err := tx.GetSeason(ctx, id)
		if err != nil {
			return err
		}
		if end != nil && ledger.DateOf(*end).Before(season.StartDate) {
			return &ledger.ValidationError{Field: "end_date", Message: "before start date"}
		}
		return tx.SetSeasonEndDate(ctx, id, end)
	})
}

func (s *Service) GetSeason(ctx context.Context, id ledger.SeasonID) (ledger.Season, error) {
	return s.store.GetSeason(ctx, id)
}

func (s *Service) ActiveSeason(ctx context.Context) (ledger.Season, error) {
	return s.store.ActiveSeason(ctx)
}

func (s *Service) ListSeasons(ctx context.Context) ([]ledger.Season, error) {
	return s.store.ListSeasons(ctx)
}

// =============================================================================
// MEMBERSHIPS
// =============================================================================

// AddPlayerToSeason enrolls the player. A zero joinedOn means today.
func (s *Service) AddPlayerToSeason(ctx context.Context, seasonID ledger.SeasonID, playerID ledger.PlayerID, joinedOn time.Time) (ledger.Membership, error) {
	if joinedOn.IsZero() {
		joinedOn = s.clock.Today()
	}
	var m ledger.Membership
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetSeason(ctx, seasonID); err != nil {
			return err
		}
		if _, err := tx.GetPlayer(ctx, playerID); err != nil {
			return err
		}
		var err error
		m, err = tx.AddMembership(ctx, ledger.Membership{
			ID:       ledger.MembershipID(uuid.NewString()),
			PlayerID: playerID,
			SeasonID: seasonID,
			JoinedOn: joinedOn,
			Active:   true,
		})
		return err
	})
	if err != nil {
		return ledger.Membership{}, err
	}
	return m, nil
}

func (s *Service) SetMembershipActive(ctx context.Context, seasonID ledger.SeasonID, playerID ledger.PlayerID, active bool) error {
	return s.store.SetMembershipActive(ctx, seasonID, playerID, active)
}

func (s *Service) ListMemberships(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Membership, error) {
	if _, err := s.store.GetSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	return s.store.ListMemberships(ctx, seasonID)
}

// =============================================================================
// WEEKS
// =============================================================================

type WeekInput struct {
	SeasonID  ledger.SeasonID
	Number    int
	StartDate time.Time
	EndDate   time.Time // zero means StartDate + 6 days
}

func (s *Service) CreateWeek(ctx context.Context, in WeekInput) (ledger.Week, error) {
	if in.Number <= 0 {
		return ledger.Week{}, &ledger.ValidationError{Field: "week_number", Message: "must be positive"}
	}
	if in.StartDate.IsZero() {
		return ledger.Week{}, &ledger.ValidationError{Field: "start_date", Message: "required"}
	}
	start := ledger.DateOf(in.StartDate)
	end := ledger.DateOf(in.EndDate)
	if in.EndDate.IsZero() {
		end = start.AddDate(0, 0, 6)
	}
	if end.Before(start) {
		return ledger.Week{}, &ledger.ValidationError{Field: "end_date", Message: "before start date"}
	}
	if _, err := s.store.GetSeason(ctx, in.SeasonID); err != nil {
		return ledger.Week{}, err
	}

	return s.store.CreateWeek(ctx, ledger.Week{
		ID:        ledger.WeekID(uuid.NewString()),
		SeasonID:  in.SeasonID,
		Number:    in.Number,
		StartDate: start,
		EndDate:   end,
		CreatedAt: time.Now().UTC(),
	})
}

// AssignWeek puts one or two players on duty for the week, in order.
func (s *Service) AssignWeek(ctx context.Context, weekID ledger.WeekID, players ...ledger.PlayerID) ([]ledger.WeekAssignment, error) {
	if len(players) == 0 || len(players) > 2 {
		return nil, &ledger.ValidationError{Field: "players", Message: "one or two players required"}
	}
	if len(players) == 2 && players[0] == players[1] {
		return nil, &ledger.ValidationError{Field: "players", Message: "must be different players"}
	}

	var out []ledger.WeekAssignment
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.GetWeek(ctx, weekID); err != nil {
			return err
		}
		for i, pid := range players {
			a, err := tx.AssignWeek(ctx, ledger.WeekAssignment{
				ID:       ledger.AssignmentID(uuid.NewString()),
				WeekID:   weekID,
				PlayerID: pid,
				Order:    i + 1,
			})
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListWeeks(ctx context.Context, seasonID ledger.SeasonID) ([]ledger.Week, error) {
	return s.store.ListWeeks(ctx, seasonID)
}

func (s *Service) ListAssignments(ctx context.Context, weekID ledger.WeekID) ([]ledger.WeekAssignment, error) {
	if _, err := s.store.GetWeek(ctx, weekID); err != nil {
		return nil, err
	}
	return s.store.ListAssignments(ctx, weekID)
}

// =============================================================================
// BETS & LEDGER READS
// =============================================================================

// AttachScreenshot stores a reference to an uploaded bet slip.
func (s *Service) AttachScreenshot(ctx context.Context, id ledger.BetID, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return &ledger.ValidationError{Field: "screenshot", Message: "required"}
	}
	return s.store.SetBetScreenshot(ctx, id, ref)
}

func (s *Service) GetBet(ctx context.Context, id ledger.BetID) (ledger.Bet, error) {
	return s.store.GetBet(ctx, id)
}

// ListBets returns bets newest first.
func (s *Service) ListBets(ctx context.Context, filter ledger.BetFilter) ([]ledger.Bet, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &ledger.ValidationError{Field: "status", Message: "unknown bet status"}
	}
	return s.store.ListBets(ctx, filter)
}

// LedgerEntries returns matching entries newest first, capped at limit when
// limit > 0.
func (s *Service) LedgerEntries(ctx context.Context, filter ledger.Filter, limit int) ([]ledger.Entry, error) {
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, &ledger.ValidationError{Field: "entry_type", Message: "unknown entry type " + string(t)}
		}
	}

	var entries []ledger.Entry
	err := s.store.Query(ctx, filter, func(e ledger.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
