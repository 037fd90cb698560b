package syndicate

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// AGGREGATION ENGINE
// =============================================================================
// Every figure below is recomputed from ledger entries on each call. Folds
// are commutative sums, so the order Query returns entries in is irrelevant.
//
// FORMULAS (per season):
//   bank balance          = Σ amount (all types)
//   player net position   = Σ amount over contribution + payout
//   total bets placed     = Σ |bet_placed|
//   net staked            = total bets placed - Σ bet_void
//   profit/loss           = winnings - net staked
//   share per player      = total winnings / active members, 0 if none
//   expected contribution = Mondays since start × contribution unit
//   bet budget            = ceil(weeks since start / window) × budget unit - total bets placed
//   player bet budget     = ceil(weeks since start / window) × budget unit - player's net staked
//   payout entitlement    = (net position - expected contribution) + share per player

var hundred = decimal.NewFromInt(100)

// tally accumulates one fold. All fields except Net are magnitudes.
type tally struct {
	Contributions decimal.Decimal
	Staked        decimal.Decimal
	Winnings      decimal.Decimal
	Voided        decimal.Decimal
	Payouts       decimal.Decimal
	Net           decimal.Decimal
}

func (t *tally) add(e ledger.Entry) {
	switch e.Type {
	case ledger.EntryContribution:
		t.Contributions = t.Contributions.Add(e.Amount)
	case ledger.EntryBetPlaced:
		t.Staked = t.Staked.Add(e.Magnitude())
	case ledger.EntryWinnings:
		t.Winnings = t.Winnings.Add(e.Amount)
	case ledger.EntryBetVoid:
		t.Voided = t.Voided.Add(e.Amount)
	case ledger.EntryPayout:
		t.Payouts = t.Payouts.Add(e.Magnitude())
	}
	t.Net = t.Net.Add(e.Amount)
}

// netStaked is stakes still at risk or lost: voided stakes were refunded.
func (t *tally) netStaked() decimal.Decimal {
	return t.Staked.Sub(t.Voided)
}

// position is Σ amount over contribution and payout entries.
func (t *tally) position() decimal.Decimal {
	return t.Contributions.Sub(t.Payouts)
}

// seasonFold is one pass over a season's entries.
type seasonFold struct {
	total   tally
	players map[ledger.PlayerID]*tally
}

func (f *seasonFold) player(id ledger.PlayerID) *tally {
	if t, ok := f.players[id]; ok {
		return t
	}
	return &tally{}
}

func fold(ctx context.Context, st ledger.Store, filter ledger.Filter) (*seasonFold, error) {
	f := &seasonFold{players: make(map[ledger.PlayerID]*tally)}
	err := st.Query(ctx, filter, func(e ledger.Entry) error {
		f.total.add(e)
		t, ok := f.players[e.PlayerID]
		if !ok {
			t = &tally{}
			f.players[e.PlayerID] = t
		}
		t.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// =============================================================================
// RESULT TYPES
// =============================================================================

type SeasonTotals struct {
	SeasonID ledger.SeasonID
	AsOf     time.Time
	State    ledger.SeasonState

	BankBalance        decimal.Decimal
	TotalContributions decimal.Decimal
	TotalBetsPlaced    decimal.Decimal
	TotalVoided        decimal.Decimal
	TotalWinnings      decimal.Decimal
	TotalPayouts       decimal.Decimal
	ProfitLoss         decimal.Decimal // winnings - net staked
	ProfitPercentage   decimal.Decimal // of net staked, 2dp, 0 when nothing staked

	ActivePlayers      int
	SharePerPlayer     decimal.Decimal
	BetAmountPerPlayer decimal.Decimal // net staked / active players

	MondaysElapsed             int
	WeeksElapsed               int
	ExpectedContribution       decimal.Decimal // per player
	ExpectedContributionsTotal decimal.Decimal // per player × active players
	BudgetReleased             decimal.Decimal
	BetBudget                  decimal.Decimal // released - bets placed
}

type PlayerPosition struct {
	PlayerID ledger.PlayerID
	SeasonID ledger.SeasonID
	AsOf     time.Time

	NetPosition   decimal.Decimal
	Contributions decimal.Decimal
	Payouts       decimal.Decimal
	Staked        decimal.Decimal
	Voided        decimal.Decimal
	Winnings      decimal.Decimal
	ProfitLoss    decimal.Decimal // winnings - (staked - voided)

	ExpectedContribution decimal.Decimal
	Owes                 decimal.Decimal // max(expected - net position, 0)
	BetBudget            decimal.Decimal // released - this player's net staked
	Payout               decimal.Decimal
}

// PlayerStat is one row of the season performance table.
type PlayerStat struct {
	Player ledger.Player
	PlayerPosition
}

// Rota is the week covering a day and who is on duty.
type Rota struct {
	Week    ledger.Week
	Players []ledger.Player // in assignment order
}

// Dashboard bundles the season overview.
type Dashboard struct {
	Season ledger.Season
	Totals SeasonTotals
	Stats  []PlayerStat
	Rota   *Rota
}

// =============================================================================
// QUERIES
// =============================================================================

// snapshot runs fn against one transactional view of the store, so every
// read behind a single figure sees the same entries and memberships.
func (s *Service) snapshot(ctx context.Context, fn func(ledger.Store) error) error {
	return s.store.WithTx(ctx, fn)
}

// BankBalance is Σ amount over the season's entries.
func (s *Service) BankBalance(ctx context.Context, seasonID ledger.SeasonID, today time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := s.snapshot(ctx, func(st ledger.Store) error {
		if _, err := st.GetSeason(ctx, seasonID); err != nil {
			return err
		}
		return st.Query(ctx, ledger.Filter{SeasonID: seasonID}, func(e ledger.Entry) error {
			balance = balance.Add(e.Amount)
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// SeasonState resolves the season's state as of today.
func (s *Service) SeasonState(ctx context.Context, seasonID ledger.SeasonID, today time.Time) (ledger.SeasonState, error) {
	season, err := s.store.GetSeason(ctx, seasonID)
	if err != nil {
		return "", err
	}
	return ledger.ResolveState(season, today), nil
}

// seasonView is everything the aggregation reads for one season, taken from
// a single snapshot.
type seasonView struct {
	season ledger.Season
	fold   *seasonFold
	active int
}

func (s *Service) view(ctx context.Context, st ledger.Store, seasonID ledger.SeasonID) (seasonView, error) {
	season, err := st.GetSeason(ctx, seasonID)
	if err != nil {
		return seasonView{}, err
	}
	f, err := fold(ctx, st, ledger.Filter{SeasonID: seasonID})
	if err != nil {
		return seasonView{}, err
	}
	active, err := st.CountActiveMembers(ctx, seasonID)
	if err != nil {
		return seasonView{}, err
	}
	return seasonView{season: season, fold: f, active: active}, nil
}

func (s *Service) SeasonTotals(ctx context.Context, seasonID ledger.SeasonID, today time.Time) (SeasonTotals, error) {
	var totals SeasonTotals
	err := s.snapshot(ctx, func(st ledger.Store) error {
		v, err := s.view(ctx, st, seasonID)
		if err != nil {
			return err
		}
		totals = s.totals(v, today)
		return nil
	})
	if err != nil {
		return SeasonTotals{}, err
	}
	return totals, nil
}

func (s *Service) totals(v seasonView, today time.Time) SeasonTotals {
	t := v.fold.total
	season := v.season
	netStaked := t.netStaked()
	mondays := ledger.CountMondaysSince(season.StartDate, today)
	expected := s.expectedContribution(season, today)
	released := s.budgetReleased(season, today)

	totals := SeasonTotals{
		SeasonID:                   season.ID,
		AsOf:                       ledger.DateOf(today),
		State:                      ledger.ResolveState(season, today),
		BankBalance:                t.Net,
		TotalContributions:         t.Contributions,
		TotalBetsPlaced:            t.Staked,
		TotalVoided:                t.Voided,
		TotalWinnings:              t.Winnings,
		TotalPayouts:               t.Payouts,
		ProfitLoss:                 t.Winnings.Sub(netStaked),
		ProfitPercentage:           decimal.Zero,
		ActivePlayers:              v.active,
		SharePerPlayer:             sharePerPlayer(t.Winnings, v.active),
		BetAmountPerPlayer:         decimal.Zero,
		MondaysElapsed:             mondays,
		WeeksElapsed:               ledger.WeeksSince(season.StartDate, today),
		ExpectedContribution:       expected,
		ExpectedContributionsTotal: expected.Mul(decimal.NewFromInt(int64(v.active))),
		BudgetReleased:             released,
		BetBudget:                  released.Sub(t.Staked),
	}
	if netStaked.IsPositive() {
		totals.ProfitPercentage = totals.ProfitLoss.Div(netStaked).Mul(hundred).RoundBank(2)
	}
	if v.active > 0 {
		totals.BetAmountPerPlayer = netStaked.Div(decimal.NewFromInt(int64(v.active))).RoundBank(2)
	}
	return totals
}

func (s *Service) PlayerPosition(ctx context.Context, playerID ledger.PlayerID, seasonID ledger.SeasonID, today time.Time) (PlayerPosition, error) {
	var pos PlayerPosition
	err := s.snapshot(ctx, func(st ledger.Store) error {
		v, err := s.view(ctx, st, seasonID)
		if err != nil {
			return err
		}
		if _, err := st.GetPlayer(ctx, playerID); err != nil {
			return err
		}
		pos = s.position(v, playerID, today)
		return nil
	})
	if err != nil {
		return PlayerPosition{}, err
	}
	return pos, nil
}

func (s *Service) position(v seasonView, playerID ledger.PlayerID, today time.Time) PlayerPosition {
	t := v.fold.player(playerID)
	net := t.position()
	expected := s.expectedContribution(v.season, today)
	share := sharePerPlayer(v.fold.total.Winnings, v.active)

	owes := expected.Sub(net)
	if owes.IsNegative() {
		owes = decimal.Zero
	}

	return PlayerPosition{
		PlayerID:             playerID,
		SeasonID:             v.season.ID,
		AsOf:                 ledger.DateOf(today),
		NetPosition:          net,
		Contributions:        t.Contributions,
		Payouts:              t.Payouts,
		Staked:               t.Staked,
		Voided:               t.Voided,
		Winnings:             t.Winnings,
		ProfitLoss:           t.Winnings.Sub(t.netStaked()),
		ExpectedContribution: expected,
		Owes:                 owes,
		BetBudget:            s.budgetReleased(v.season, today).Sub(t.netStaked()),
		Payout:               net.Sub(expected).Add(share),
	}
}

// PlayerPayout is what the player would receive on cashing out today. It may
// be negative.
func (s *Service) PlayerPayout(ctx context.Context, playerID ledger.PlayerID, seasonID ledger.SeasonID, today time.Time) (decimal.Decimal, error) {
	p, err := s.PlayerPosition(ctx, playerID, seasonID, today)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Payout, nil
}

// PlayerStats is the performance table: active members who are active
// players, sorted by profit/loss descending.
func (s *Service) PlayerStats(ctx context.Context, seasonID ledger.SeasonID, today time.Time) ([]PlayerStat, error) {
	var stats []PlayerStat
	err := s.snapshot(ctx, func(st ledger.Store) error {
		v, err := s.view(ctx, st, seasonID)
		if err != nil {
			return err
		}
		stats, err = s.stats(ctx, st, v, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) stats(ctx context.Context, st ledger.Store, v seasonView, today time.Time) ([]PlayerStat, error) {
	members, err := st.ListMemberships(ctx, v.season.ID)
	if err != nil {
		return nil, err
	}

	var out []PlayerStat
	for _, m := range members {
		if !m.Active {
			continue
		}
		p, err := st.GetPlayer(ctx, m.PlayerID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			continue
		}
		out = append(out, PlayerStat{Player: p, PlayerPosition: s.position(v, p.ID, today)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := out[i].ProfitLoss.Cmp(out[j].ProfitLoss)
		if c != 0 {
			return c > 0
		}
		return out[i].Player.Name < out[j].Player.Name
	})
	return out, nil
}

// CurrentRota returns the week covering today and its duty players, or nil
// when no week covers today.
func (s *Service) CurrentRota(ctx context.Context, seasonID ledger.SeasonID, today time.Time) (*Rota, error) {
	var rota *Rota
	err := s.snapshot(ctx, func(st ledger.Store) error {
		if _, err := st.GetSeason(ctx, seasonID); err != nil {
			return err
		}
		var err error
		rota, err = currentRota(ctx, st, seasonID, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rota, nil
}

func currentRota(ctx context.Context, st ledger.Store, seasonID ledger.SeasonID, today time.Time) (*Rota, error) {
	week, err := st.WeekOn(ctx, seasonID, today)
	if ledger.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	assignments, err := st.ListAssignments(ctx, week.ID)
	if err != nil {
		return nil, err
	}
	rota := &Rota{Week: week}
	for _, a := range assignments {
		p, err := st.GetPlayer(ctx, a.PlayerID)
		if err != nil {
			return nil, err
		}
		rota.Players = append(rota.Players, p)
	}
	return rota, nil
}

// Dashboard computes totals, the performance table and the rota from a
// single fold over a single snapshot.
func (s *Service) Dashboard(ctx context.Context, seasonID ledger.SeasonID, today time.Time) (Dashboard, error) {
	var d Dashboard
	err := s.snapshot(ctx, func(st ledger.Store) error {
		v, err := s.view(ctx, st, seasonID)
		if err != nil {
			return err
		}
		stats, err := s.stats(ctx, st, v, today)
		if err != nil {
			return err
		}
		rota, err := currentRota(ctx, st, seasonID, today)
		if err != nil {
			return err
		}
		d = Dashboard{
			Season: v.season,
			Totals: s.totals(v, today),
			Stats:  stats,
			Rota:   rota,
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// =============================================================================
// FORMULA HELPERS
// =============================================================================

func (s *Service) expectedContribution(season ledger.Season, today time.Time) decimal.Decimal {
	mondays := ledger.CountMondaysSince(season.StartDate, today)
	return s.rules.ContributionUnit.Mul(decimal.NewFromInt(int64(mondays)))
}

// budgetReleased is ceil(weeks / window) × budget unit.
func (s *Service) budgetReleased(season ledger.Season, today time.Time) decimal.Decimal {
	weeks := ledger.WeeksSince(season.StartDate, today)
	window := s.rules.BudgetWindowWeeks
	windows := (weeks + window - 1) / window
	return s.rules.BudgetUnit.Mul(decimal.NewFromInt(int64(windows)))
}

// sharePerPlayer splits winnings across active members, rounded to pence.
func sharePerPlayer(winnings decimal.Decimal, active int) decimal.Decimal {
	if active <= 0 {
		return decimal.Zero
	}
	return winnings.Div(decimal.NewFromInt(int64(active))).RoundBank(2)
}
