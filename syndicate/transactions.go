package syndicate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// INPUTS
// =============================================================================

// CashMovement is a contribution into, or payout out of, the syndicate.
// Amount is always a positive magnitude. An empty SeasonID means the
// currently active season.
type CashMovement struct {
	PlayerID    ledger.PlayerID
	SeasonID    ledger.SeasonID
	WeekID      ledger.WeekID
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	CreatedBy   string
}

// BetInput describes a new wager. An empty SeasonID means the currently
// active season.
type BetInput struct {
	PlayerID    ledger.PlayerID
	SeasonID    ledger.SeasonID
	WeekID      ledger.WeekID
	Stake       decimal.Decimal
	Description string
	Odds        string
	Date        time.Time
	Notes       string
	Screenshot  string
	CreatedBy   string
}

func (in CashMovement) validate() error {
	if in.PlayerID == "" {
		return &ledger.ValidationError{Field: "player_id", Message: "required"}
	}
	if !in.Amount.IsPositive() {
		return &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if in.Date.IsZero() {
		return &ledger.ValidationError{Field: "date", Message: "required"}
	}
	return nil
}

func (in BetInput) validate() error {
	if in.PlayerID == "" {
		return &ledger.ValidationError{Field: "player_id", Message: "required"}
	}
	if !in.Stake.IsPositive() {
		return &ledger.ValidationError{Field: "stake", Message: "must be positive"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ledger.ValidationError{Field: "description", Message: "required"}
	}
	if in.Date.IsZero() {
		return &ledger.ValidationError{Field: "date", Message: "required"}
	}
	return nil
}

// =============================================================================
// CONTRIBUTIONS & PAYOUTS
// =============================================================================

// RecordContribution appends one contribution entry. The season must be
// active.
func (s *Service) RecordContribution(ctx context.Context, in CashMovement) (ledger.Entry, error) {
	return s.recordCash(ctx, ledger.EntryContribution, ledger.ActionContribute, in)
}

// RecordPayout appends one payout entry. Frozen seasons still accept payouts.
func (s *Service) RecordPayout(ctx context.Context, in CashMovement) (ledger.Entry, error) {
	return s.recordCash(ctx, ledger.EntryPayout, ledger.ActionPayout, in)
}

func (s *Service) recordCash(ctx context.Context, typ ledger.EntryType, action ledger.Action, in CashMovement) (ledger.Entry, error) {
	fields := log.Fields{"action": action, "player_id": in.PlayerID, "season_id": in.SeasonID}
	if err := in.validate(); err != nil {
		s.logRejected(fields, err)
		return ledger.Entry{}, err
	}

	var entry ledger.Entry
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		season, err := s.writableSeason(ctx, tx, in.SeasonID, action)
		if err != nil {
			return err
		}
		if _, err := tx.GetPlayer(ctx, in.PlayerID); err != nil {
			return err
		}
		if err := checkWeek(ctx, tx, season.ID, in.WeekID); err != nil {
			return err
		}

		entry, err = newEntry(ledger.Posting{
			Type:        typ,
			PlayerID:    in.PlayerID,
			SeasonID:    season.ID,
			WeekID:      in.WeekID,
			Date:        in.Date,
			Magnitude:   in.Amount,
			Description: in.Description,
			CreatedBy:   in.CreatedBy,
		})
		if err != nil {
			return err
		}
		return tx.Append(ctx, []ledger.Entry{entry})
	})
	if err != nil {
		s.logRejected(fields, err)
		return ledger.Entry{}, err
	}

	s.log.WithFields(log.Fields{
		"action":    action,
		"entry_id":  entry.ID,
		"player_id": entry.PlayerID,
		"season_id": entry.SeasonID,
		"amount":    entry.Amount.StringFixed(2),
	}).Info("ledger entry recorded")
	return entry, nil
}

// =============================================================================
// BETS
// =============================================================================

// PlaceBet creates a pending bet and its bet_placed entry (-stake). The
// season must be active.
func (s *Service) PlaceBet(ctx context.Context, in BetInput) (ledger.Bet, error) {
	fields := log.Fields{"action": ledger.ActionPlaceBet, "player_id": in.PlayerID, "season_id": in.SeasonID}
	if err := in.validate(); err != nil {
		s.logRejected(fields, err)
		return ledger.Bet{}, err
	}

	var bet ledger.Bet
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		season, err := s.writableSeason(ctx, tx, in.SeasonID, ledger.ActionPlaceBet)
		if err != nil {
			return err
		}
		if _, err := tx.GetPlayer(ctx, in.PlayerID); err != nil {
			return err
		}
		if err := checkWeek(ctx, tx, season.ID, in.WeekID); err != nil {
			return err
		}

		bet, err = tx.CreateBet(ctx, ledger.Bet{
			ID:          ledger.BetID(uuid.NewString()),
			SeasonID:    season.ID,
			WeekID:      in.WeekID,
			PlayerID:    in.PlayerID,
			Stake:       in.Stake,
			Description: strings.TrimSpace(in.Description),
			Odds:        in.Odds,
			PlacedOn:    ledger.DateOf(in.Date),
			Status:      ledger.BetPending,
			Screenshot:  in.Screenshot,
			Notes:       in.Notes,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		entry, err := newEntry(ledger.Posting{
			Type:      ledger.EntryBetPlaced,
			PlayerID:  bet.PlayerID,
			SeasonID:  bet.SeasonID,
			WeekID:    bet.WeekID,
			BetID:     bet.ID,
			Date:      bet.PlacedOn,
			Magnitude: bet.Stake,
			CreatedBy: in.CreatedBy,
		})
		if err != nil {
			return err
		}
		return tx.Append(ctx, []ledger.Entry{entry})
	})
	if err != nil {
		s.logRejected(fields, err)
		return ledger.Bet{}, err
	}

	s.log.WithFields(log.Fields{
		"bet_id":    bet.ID,
		"player_id": bet.PlayerID,
		"season_id": bet.SeasonID,
		"stake":     bet.Stake.StringFixed(2),
	}).Info("bet placed")
	return bet, nil
}

// SettleBetWon marks a pending bet won and credits the winnings to the
// player who placed it.
func (s *Service) SettleBetWon(ctx context.Context, id ledger.BetID, winnings decimal.Decimal, resultDate time.Time, createdBy string) (ledger.Bet, error) {
	if !winnings.IsPositive() {
		return ledger.Bet{}, &ledger.ValidationError{Field: "winnings", Message: "must be positive"}
	}
	return s.settle(ctx, id, ledger.BetWon, resultDate, decimal.NewNullDecimal(winnings), createdBy)
}

// SettleBetLost marks a pending bet lost. No entry is appended: the stake
// already left the bank when the bet was placed.
func (s *Service) SettleBetLost(ctx context.Context, id ledger.BetID, resultDate time.Time, createdBy string) (ledger.Bet, error) {
	return s.settle(ctx, id, ledger.BetLost, resultDate, decimal.NullDecimal{}, createdBy)
}

// VoidBet marks a pending bet void and refunds the stake with a bet_void
// entry.
func (s *Service) VoidBet(ctx context.Context, id ledger.BetID, resultDate time.Time, createdBy string) (ledger.Bet, error) {
	return s.settle(ctx, id, ledger.BetVoid, resultDate, decimal.NullDecimal{}, createdBy)
}

func (s *Service) settle(ctx context.Context, id ledger.BetID, status ledger.BetStatus, resultDate time.Time, winnings decimal.NullDecimal, createdBy string) (ledger.Bet, error) {
	fields := log.Fields{"action": "settle_" + string(status), "bet_id": id}
	if resultDate.IsZero() {
		err := &ledger.ValidationError{Field: "result_date", Message: "required"}
		s.logRejected(fields, err)
		return ledger.Bet{}, err
	}

	var settled ledger.Bet
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		bet, err := tx.GetBet(ctx, id)
		if err != nil {
			return err
		}
		if bet.Status != ledger.BetPending {
			return &ledger.InvalidBetStateError{BetID: id, Status: bet.Status}
		}

		// Compare-and-set in the store decides any race with another settlement.
		if err := tx.SettleBet(ctx, id, status, resultDate, winnings); err != nil {
			return err
		}

		var posting *ledger.Posting
		switch status {
		case ledger.BetWon:
			posting = &ledger.Posting{Type: ledger.EntryWinnings, Magnitude: winnings.Decimal}
		case ledger.BetVoid:
			posting = &ledger.Posting{Type: ledger.EntryBetVoid, Magnitude: bet.Stake}
		}
		if posting != nil {
			posting.PlayerID = bet.PlayerID
			posting.SeasonID = bet.SeasonID
			posting.WeekID = bet.WeekID
			posting.BetID = bet.ID
			posting.Date = resultDate
			posting.CreatedBy = createdBy

			entry, err := newEntry(*posting)
			if err != nil {
				return err
			}
			if err := tx.Append(ctx, []ledger.Entry{entry}); err != nil {
				return err
			}
		}

		settled, err = tx.GetBet(ctx, id)
		return err
	})
	if err != nil {
		s.logRejected(fields, err)
		return ledger.Bet{}, err
	}

	s.log.WithFields(log.Fields{
		"bet_id":    settled.ID,
		"player_id": settled.PlayerID,
		"status":    settled.Status,
	}).Info("bet settled")
	return settled, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// writableSeason loads the season (or the active one when id is empty) and
// checks the action against its state as of the service clock's today.
func (s *Service) writableSeason(ctx context.Context, tx ledger.Store, id ledger.SeasonID, action ledger.Action) (ledger.Season, error) {
	var (
		season ledger.Season
		err    error
	)
	if id == "" {
		season, err = tx.ActiveSeason(ctx)
	} else {
		season, err = tx.GetSeason(ctx, id)
	}
	if err != nil {
		return ledger.Season{}, err
	}
	if err := ledger.Guard(season, s.clock.Today(), action); err != nil {
		return ledger.Season{}, err
	}
	return season, nil
}

func checkWeek(ctx context.Context, tx ledger.Store, seasonID ledger.SeasonID, weekID ledger.WeekID) error {
	if weekID == "" {
		return nil
	}
	week, err := tx.GetWeek(ctx, weekID)
	if err != nil {
		return err
	}
	if week.SeasonID != seasonID {
		return &ledger.ValidationError{Field: "week_id", Message: "week belongs to another season"}
	}
	return nil
}

func newEntry(p ledger.Posting) (ledger.Entry, error) {
	e, err := p.Entry()
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := e.CheckSign(); err != nil {
		return ledger.Entry{}, err
	}
	e.ID = ledger.EntryID(uuid.NewString())
	e.CreatedAt = time.Now().UTC()
	return e, nil
}

func (s *Service) logRejected(fields log.Fields, err error) {
	entry := s.log.WithFields(fields).WithError(err)
	if ledger.IsClientError(err) || ledger.IsNotFound(err) {
		entry.Warn("action rejected")
		return
	}
	entry.Error("action failed")
}
