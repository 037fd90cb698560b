/*
Package ledger provides the core accounting engine for the syndicate.

PURPOSE:
  This package holds the records the syndicate tracks and the one rule that
  matters: money only ever moves by appending a signed Entry to the ledger.
  Nothing here stores a balance. Every figure is a fold over entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: typed string IDs so player/season/bet IDs cannot be mixed
  - Records: Player, Season, Membership, Week, WeekAssignment, Bet
  - Entry: an immutable, signed financial fact
  - Posting: the only way to build an Entry with the right sign
  - Filter: equality/range predicates used by Store.Query

SIGN CONVENTION:
  contribution, winnings, bet_void  -> amount >= 0 (money in)
  bet_placed, payout                -> amount <= 0 (money out)

  A Posting takes a positive magnitude; its type decides the sign. Callers
  never choose the sign themselves.

SEE ALSO:
  - store.go: persistence interfaces
  - season.go: season state resolver
  - time.go: Monday/week counting
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlayerID string
type SeasonID string
type MembershipID string
type WeekID string
type AssignmentID string
type BetID string
type EntryID string

// =============================================================================
// PLAYERS & SEASONS
// =============================================================================

// Player is a syndicate member, independent of any season.
type Player struct {
	ID        PlayerID
	Name      string
	Email     string
	Active    bool
	CreatedAt time.Time
}

// Season scopes all financial activity. Its state (active/frozen/inactive)
// is never stored; see ResolveState.
type Season struct {
	ID        SeasonID
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Active    bool
	CreatedAt time.Time
}

// Membership links a player to a season.
type Membership struct {
	ID       MembershipID
	PlayerID PlayerID
	SeasonID SeasonID
	JoinedOn time.Time
	Active   bool
}

// Week is a rota week within a season.
type Week struct {
	ID        WeekID
	SeasonID  SeasonID
	Number    int
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// Contains reports whether day falls inside the week (inclusive).
func (w Week) Contains(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(w.StartDate)) && !d.After(DateOf(w.EndDate))
}

// WeekAssignment names a player on betting duty for a week.
type WeekAssignment struct {
	ID       AssignmentID
	WeekID   WeekID
	PlayerID PlayerID
	Order    int // 1 or 2
}

// =============================================================================
// BETS
// =============================================================================

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetVoid    BetStatus = "void"
)

func (s BetStatus) Valid() bool {
	switch s {
	case BetPending, BetWon, BetLost, BetVoid:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetVoid
}

// Bet is metadata about a wager. Money moved by the bet lives in the ledger,
// never here; Winnings is informational.
type Bet struct {
	ID          BetID
	SeasonID    SeasonID
	WeekID      WeekID // empty when not tied to a rota week
	PlayerID    PlayerID
	Stake       decimal.Decimal
	Description string
	Odds        string
	PlacedOn    time.Time
	Status      BetStatus
	ResultDate  *time.Time
	Winnings    decimal.NullDecimal
	Screenshot  string
	Notes       string
	CreatedAt   time.Time
}

// BetFilter narrows ListBets. Zero values match everything.
type BetFilter struct {
	SeasonID SeasonID
	PlayerID PlayerID
	Status   BetStatus
	Limit    int
}

func (f BetFilter) Matches(b Bet) bool {
	if f.SeasonID != "" && b.SeasonID != f.SeasonID {
		return false
	}
	if f.PlayerID != "" && b.PlayerID != f.PlayerID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

type EntryType string

const (
	EntryContribution EntryType = "contribution"
	EntryBetPlaced    EntryType = "bet_placed"
	EntryWinnings     EntryType = "winnings"
	EntryBetVoid      EntryType = "bet_void"
	EntryPayout       EntryType = "payout"
)

// EntryTypes lists every valid entry type.
func EntryTypes() []EntryType {
	return []EntryType{EntryContribution, EntryBetPlaced, EntryWinnings, EntryBetVoid, EntryPayout}
}

func (t EntryType) Valid() bool {
	switch t {
	case EntryContribution, EntryBetPlaced, EntryWinnings, EntryBetVoid, EntryPayout:
		return true
	}
	return false
}

// Inflow reports whether entries of this type bring money into the bank.
func (t EntryType) Inflow() bool {
	return t == EntryContribution || t == EntryWinnings || t == EntryBetVoid
}

// Entry is one immutable ledger row.
//
// INVARIANTS:
//   - Never updated or deleted after Append.
//   - Amount sign is fixed by Type (see CheckSign).
type Entry struct {
	ID          EntryID
	Date        time.Time
	Type        EntryType
	PlayerID    PlayerID
	SeasonID    SeasonID
	WeekID      WeekID
	BetID       BetID
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
	CreatedBy   string
}

// Magnitude is |Amount|.
func (e Entry) Magnitude() decimal.Decimal { return e.Amount.Abs() }

// CheckSign verifies the amount direction matches the entry type.
func (e Entry) CheckSign() error {
	if !e.Type.Valid() {
		return &ValidationError{Field: "entry_type", Message: fmt.Sprintf("unknown entry type %q", e.Type)}
	}
	if e.Type.Inflow() && e.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("%s entries must not be negative", e.Type)}
	}
	if !e.Type.Inflow() && e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("%s entries must not be positive", e.Type)}
	}
	return nil
}

// Posting describes money movement before it becomes an Entry. The caller
// supplies a positive magnitude; Type decides the sign.
type Posting struct {
	Type        EntryType
	PlayerID    PlayerID
	SeasonID    SeasonID
	WeekID      WeekID
	BetID       BetID
	Date        time.Time
	Magnitude   decimal.Decimal
	Description string
	CreatedBy   string
}

// Entry validates the posting and returns the signed entry. ID and CreatedAt
// are left for the store to assign.
func (p Posting) Entry() (Entry, error) {
	if !p.Type.Valid() {
		return Entry{}, &ValidationError{Field: "entry_type", Message: fmt.Sprintf("unknown entry type %q", p.Type)}
	}
	if p.PlayerID == "" {
		return Entry{}, &ValidationError{Field: "player_id", Message: "required"}
	}
	if p.SeasonID == "" {
		return Entry{}, &ValidationError{Field: "season_id", Message: "required"}
	}
	if p.Date.IsZero() {
		return Entry{}, &ValidationError{Field: "date", Message: "required"}
	}
	if !p.Magnitude.IsPositive() {
		return Entry{}, &ValidationError{Field: "amount", Message: "must be positive"}
	}

	amount := p.Magnitude
	if !p.Type.Inflow() {
		amount = amount.Neg()
	}

	description := p.Description
	if description == "" {
		description = defaultDescriptions[p.Type]
	}

	return Entry{
		Date:        DateOf(p.Date),
		Type:        p.Type,
		PlayerID:    p.PlayerID,
		SeasonID:    p.SeasonID,
		WeekID:      p.WeekID,
		BetID:       p.BetID,
		Amount:      amount,
		Description: description,
		CreatedBy:   p.CreatedBy,
	}, nil
}

var defaultDescriptions = map[EntryType]string{
	EntryContribution: "Weekly contribution",
	EntryBetPlaced:    "Bet placed",
	EntryWinnings:     "Bet won",
	EntryBetVoid:      "Bet voided, stake returned",
	EntryPayout:       "Payout to player",
}

// =============================================================================
// FILTER
// =============================================================================

// Filter selects ledger entries. Zero-valued fields match everything; Types
// matches any of the listed types; From/To are inclusive civil dates.
type Filter struct {
	PlayerID PlayerID
	SeasonID SeasonID
	WeekID   WeekID
	BetID    BetID
	Types    []EntryType
	From     time.Time
	To       time.Time
}

func (f Filter) Matches(e Entry) bool {
	if f.PlayerID != "" && e.PlayerID != f.PlayerID {
		return false
	}
	if f.SeasonID != "" && e.SeasonID != f.SeasonID {
		return false
	}
	if f.WeekID != "" && e.WeekID != f.WeekID {
		return false
	}
	if f.BetID != "" && e.BetID != f.BetID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	day := DateOf(e.Date)
	if !f.From.IsZero() && day.Before(DateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(DateOf(f.To)) {
		return false
	}
	return true
}
