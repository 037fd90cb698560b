package ledger

import "time"

// =============================================================================
// SEASON STATE RESOLVER
// =============================================================================
// State is derived, never stored. Clearing or extending an end date moves a
// frozen season back to active on the next read.

type SeasonState string

const (
	SeasonActive   SeasonState = "active"
	SeasonFrozen   SeasonState = "frozen"
	SeasonInactive SeasonState = "inactive"
)

// Action names something a caller wants to do against a season.
type Action string

const (
	ActionContribute Action = "contribute"
	ActionPlaceBet   Action = "place_bet"
	ActionPayout     Action = "payout"
	ActionRead       Action = "read"
)

// ResolveState computes the season's state as of today.
func ResolveState(s Season, today time.Time) SeasonState {
	if !s.Active {
		return SeasonInactive
	}
	if s.EndDate != nil && DateOf(*s.EndDate).Before(DateOf(today)) {
		return SeasonFrozen
	}
	return SeasonActive
}

// Allows reports whether the action is permitted in this state.
func (st SeasonState) Allows(a Action) bool {
	switch a {
	case ActionContribute, ActionPlaceBet:
		return st == SeasonActive
	case ActionPayout:
		return st == SeasonActive || st == SeasonFrozen
	case ActionRead:
		return true
	}
	return false
}

// Guard returns a SeasonNotWritableError if the season's state as of today
// does not allow the action.
func Guard(s Season, today time.Time, a Action) error {
	st := ResolveState(s, today)
	if !st.Allows(a) {
		return &SeasonNotWritableError{SeasonID: s.ID, State: st, Action: a}
	}
	return nil
}
